package ws

import (
	"encoding/json"
	"log"
)

// SubscriptionSource is the hub's handle on the live backend feeds; the
// snapshot bridge implements it. Acquire is called when the first interest
// in a collection appears on a connection, Release when it goes away.
type SubscriptionSource interface {
	Acquire(collection, userID string)
	Release(collection string)
}

// PresenceSink hears about connection lifecycle, e.g. to refresh the
// user's last-active timestamp.
type PresenceSink interface {
	OnConnect(userID string)
	OnDisconnect(userID string)
}

// Hub manages all active WebSocket clients and routes snapshots to the
// connections subscribed to each collection.
type Hub struct {
	// clients maps userID → client.
	clients map[string]*Client

	register   chan *Client
	unregister chan *Client
	broadcast  chan *broadcastMsg
	direct     chan *directMsg

	source   SubscriptionSource
	presence PresenceSink
}

type broadcastMsg struct {
	collection string
	data       []byte
	excludeID  string // optional: skip this user (e.g. sender)
}

type directMsg struct {
	userID string
	data   []byte
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *broadcastMsg, 256),
		direct:     make(chan *directMsg, 256),
	}
}

// SetSource sets the backend feed source (optional dependency).
func (h *Hub) SetSource(s SubscriptionSource) { h.source = s }

// SetPresence sets the presence sink (optional dependency).
func (h *Hub) SetPresence(p PresenceSink) { h.presence = p }

// Run starts the Hub's main event loop. Call this in a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client.userID] = client
			log.Printf("ws hub: user %s connected (%d total)", client.userID, len(h.clients))

			if h.presence != nil {
				h.presence.OnConnect(client.userID)
			}
			h.broadcastPresence(client.userID, "online")

		case client := <-h.unregister:
			if _, ok := h.clients[client.userID]; ok {
				delete(h.clients, client.userID)
				h.releaseAll(client)
				close(client.send)
				close(client.done)
				log.Printf("ws hub: user %s disconnected (%d total)", client.userID, len(h.clients))

				if h.presence != nil {
					h.presence.OnDisconnect(client.userID)
				}
				h.broadcastPresence(client.userID, "offline")
			}

		case msg := <-h.broadcast:
			for _, client := range h.clients {
				if msg.excludeID != "" && client.userID == msg.excludeID {
					continue
				}
				if !client.IsSubscribed(msg.collection) {
					continue
				}
				select {
				case client.send <- msg.data:
				default:
					// Client buffer full - disconnect
					delete(h.clients, client.userID)
					h.releaseAll(client)
					close(client.send)
					close(client.done)
				}
			}

		case msg := <-h.direct:
			if client, ok := h.clients[msg.userID]; ok {
				select {
				case client.send <- msg.data:
				default:
				}
			}
		}
	}
}

// BroadcastToCollection sends an event to every connection subscribed to a
// collection.
func (h *Hub) BroadcastToCollection(collection string, event *Event, excludeUserID string) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("ws hub: marshal error: %v", err)
		return
	}
	h.broadcast <- &broadcastMsg{
		collection: collection,
		data:       data,
		excludeID:  excludeUserID,
	}
}

// BroadcastToUser sends an event directly to a specific user. The lookup
// runs on the hub loop; only Run may touch the clients map.
func (h *Hub) BroadcastToUser(userID string, event *Event) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	select {
	case h.direct <- &directMsg{userID: userID, data: data}:
	default:
		log.Printf("ws hub: direct queue full, dropping event for %s", userID)
	}
}

// HandleTyping broadcasts typing events to collection subscribers
// (excluding the sender).
func (h *Hub) HandleTyping(sender *Client, event *Event) {
	if event.Type != EventTypeTypingStart {
		return // typing.stop doesn't need broadcast, frontend uses timeout
	}

	evt, err := NewEvent(EventTypeTyping, event.Collection, TypingPayload{
		UserID: sender.userID,
	})
	if err != nil {
		return
	}

	h.BroadcastToCollection(event.Collection, evt, sender.userID)
}

// acquire routes a client's new collection interest to the backend feeds.
func (h *Hub) acquire(collection, userID string) {
	if h.source != nil {
		h.source.Acquire(collection, userID)
	}
}

// releaseAll drops every backend feed reference a client held.
func (h *Hub) releaseAll(client *Client) {
	if h.source == nil {
		return
	}
	for _, collection := range client.Subscriptions() {
		h.source.Release(collection)
	}
}

// broadcastPresence sends online/offline to all connected clients.
func (h *Hub) broadcastPresence(userID, status string) {
	evt, err := NewEvent(EventTypePresence, "", PresencePayload{
		UserID: userID,
		Status: status,
	})
	if err != nil {
		return
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	for _, client := range h.clients {
		if client.userID == userID {
			continue
		}
		select {
		case client.send <- data:
		default:
		}
	}
}
