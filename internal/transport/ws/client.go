package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const (
	writeWait      = 10 * time.Second
	pingInterval   = 30 * time.Second
	maxMessageSize = 4096
	sendBufSize    = 256
)

// Client represents a single WebSocket connection.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	userID string

	// subscribed tracks which collections this connection listens to.
	subscribed map[string]struct{}
	mu         sync.RWMutex

	send chan []byte
	done chan struct{}
}

func NewClient(hub *Hub, conn *websocket.Conn, userID string) *Client {
	return &Client{
		hub:        hub,
		conn:       conn,
		userID:     userID,
		subscribed: make(map[string]struct{}),
		send:       make(chan []byte, sendBufSize),
		done:       make(chan struct{}),
	}
}

// IsSubscribed checks if this connection is subscribed to a collection.
func (c *Client) IsSubscribed(collection string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.subscribed[collection]
	return ok
}

// Subscribe adds a collection subscription and reports whether it was
// newly added. Duplicates must not acquire a second backend reference.
func (c *Client) Subscribe(collection string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.subscribed[collection]; ok {
		return false
	}
	c.subscribed[collection] = struct{}{}
	return true
}

// Unsubscribe removes a collection subscription and reports whether it was
// present. A release without a matching subscribe would drive the backend
// refcount under the true subscriber count.
func (c *Client) Unsubscribe(collection string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.subscribed[collection]; !ok {
		return false
	}
	delete(c.subscribed, collection)
	return true
}

// Subscriptions lists the collections this connection listens to.
func (c *Client) Subscriptions() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.subscribed))
	for collection := range c.subscribed {
		out = append(out, collection)
	}
	return out
}

// ReadPump reads messages from the WebSocket and routes them to the Hub.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		var event Event
		err := wsjson.Read(context.Background(), c.conn, &event)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				log.Printf("ws: client %s disconnected", c.userID)
			} else {
				log.Printf("ws: read error from %s: %v", c.userID, err)
			}
			return
		}

		c.handleEvent(&event)
	}
}

// WritePump writes messages from the send channel to the WebSocket.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), writeWait)
			err := c.conn.Write(ctx, websocket.MessageText, message)
			cancel()
			if err != nil {
				log.Printf("ws: write error to %s: %v", c.userID, err)
				return
			}

		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), writeWait)
			err := c.conn.Ping(ctx)
			cancel()
			if err != nil {
				log.Printf("ws: ping error to %s: %v", c.userID, err)
				return
			}

		case <-c.done:
			return
		}
	}
}

// handleEvent routes an incoming client event.
func (c *Client) handleEvent(event *Event) {
	switch event.Type {
	case EventTypeSubscribe:
		var p CollectionPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil || p.Collection == "" {
			c.sendError("INVALID_PAYLOAD", "invalid subscribe payload")
			return
		}
		if c.Subscribe(p.Collection) {
			c.hub.acquire(p.Collection, c.userID)
			log.Printf("ws: %s subscribed to %s", c.userID, p.Collection)
		}

	case EventTypeUnsubscribe:
		var p CollectionPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil || p.Collection == "" {
			c.sendError("INVALID_PAYLOAD", "invalid unsubscribe payload")
			return
		}
		if c.Unsubscribe(p.Collection) {
			if c.hub.source != nil {
				c.hub.source.Release(p.Collection)
			}
			log.Printf("ws: %s unsubscribed from %s", c.userID, p.Collection)
		}

	case EventTypeTypingStart, EventTypeTypingStop:
		if event.Collection == "" {
			c.sendError("INVALID_PAYLOAD", "collection required for typing events")
			return
		}
		c.hub.HandleTyping(c, event)

	case EventTypePing:
		c.sendPong()

	default:
		c.sendError("UNKNOWN_EVENT", "unknown event type: "+event.Type)
	}
}

func (c *Client) sendPong() {
	data, _ := json.Marshal(Event{Type: EventTypePong})
	select {
	case c.send <- data:
	default:
	}
}

func (c *Client) sendError(code, message string) {
	evt, err := NewEvent(EventTypeError, "", ErrorPayload{Code: code, Message: message})
	if err != nil {
		return
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}
