package ws

import (
	"encoding/json"
	"time"
)

// Event types - Client → Server
const (
	EventTypeSubscribe   = "collection.subscribe"
	EventTypeUnsubscribe = "collection.unsubscribe"
	EventTypeTypingStart = "typing.start"
	EventTypeTypingStop  = "typing.stop"
	EventTypePing        = "ping"
)

// Event types - Server → Client
const (
	EventTypeSnapshot = "snapshot"
	EventTypeTyping   = "typing"
	EventTypePresence = "presence"
	EventTypePong     = "pong"
	EventTypeError    = "error"
)

// Event is the base envelope for all WebSocket messages.
type Event struct {
	Type       string          `json:"type"`
	Collection string          `json:"collection,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Timestamp  int64           `json:"ts,omitempty"`
}

// --- Client → Server payloads ---

type CollectionPayload struct {
	Collection string `json:"collection"`
}

// --- Server → Client payloads ---

// SnapshotPayload carries one complete ordered collection snapshot. The
// client replaces its local copy wholesale; snapshots are never diffs.
type SnapshotPayload struct {
	Docs []json.RawMessage `json:"docs"`
}

type TypingPayload struct {
	UserID string `json:"user_id"`
}

type PresencePayload struct {
	UserID string `json:"user_id"`
	Status string `json:"status"` // "online" | "offline"
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewEvent creates a server→client event with the current timestamp.
func NewEvent(eventType, collection string, payload any) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Event{
		Type:       eventType,
		Collection: collection,
		Payload:    data,
		Timestamp:  time.Now().Unix(),
	}, nil
}
