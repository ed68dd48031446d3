package ws

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingSource counts backend feed references handed out and returned.
type recordingSource struct {
	mu       sync.Mutex
	acquired []string
	released []string
}

func (r *recordingSource) Acquire(collection, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.acquired = append(r.acquired, collection)
}

func (r *recordingSource) Release(collection string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.released = append(r.released, collection)
}

func (r *recordingSource) counts() (acquired, released int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.acquired), len(r.released)
}

func collectionEvent(t *testing.T, eventType, collection string) *Event {
	t.Helper()
	payload, err := json.Marshal(CollectionPayload{Collection: collection})
	require.NoError(t, err)
	return &Event{Type: eventType, Payload: payload}
}

func TestDuplicateSubscribeHoldsOneReference(t *testing.T) {
	hub := NewHub()
	src := &recordingSource{}
	hub.SetSource(src)
	c := NewClient(hub, nil, "u1")

	c.handleEvent(collectionEvent(t, EventTypeSubscribe, "messages/ch1"))
	c.handleEvent(collectionEvent(t, EventTypeSubscribe, "messages/ch1"))

	acquired, _ := src.counts()
	assert.Equal(t, 1, acquired, "repeat subscribe must not stack references")
	assert.Equal(t, []string{"messages/ch1"}, c.Subscriptions())

	// Disconnect cleanup returns exactly the one reference the
	// connection holds.
	hub.releaseAll(c)
	_, released := src.counts()
	assert.Equal(t, 1, released)
}

func TestUnsubscribeReleasesOnlyHeldReferences(t *testing.T) {
	hub := NewHub()
	src := &recordingSource{}
	hub.SetSource(src)
	c := NewClient(hub, nil, "u1")

	// Never subscribed; nothing to give back.
	c.handleEvent(collectionEvent(t, EventTypeUnsubscribe, "messages/ch1"))
	_, released := src.counts()
	assert.Zero(t, released, "unsubscribe without subscribe must not release")

	c.handleEvent(collectionEvent(t, EventTypeSubscribe, "messages/ch1"))
	c.handleEvent(collectionEvent(t, EventTypeUnsubscribe, "messages/ch1"))
	c.handleEvent(collectionEvent(t, EventTypeUnsubscribe, "messages/ch1"))

	acquired, released := src.counts()
	assert.Equal(t, 1, acquired)
	assert.Equal(t, 1, released, "repeat unsubscribe must not over-release")
	assert.Empty(t, c.Subscriptions())
}

// connectSignal closes its channel once the hub loop has processed the
// registration, so tests can order calls against the loop.
type connectSignal struct{ ch chan struct{} }

func (s *connectSignal) OnConnect(string)    { close(s.ch) }
func (s *connectSignal) OnDisconnect(string) {}

func TestBroadcastToUserDeliversViaHubLoop(t *testing.T) {
	hub := NewHub()
	sig := &connectSignal{ch: make(chan struct{})}
	hub.SetPresence(sig)
	go hub.Run()

	c := NewClient(hub, nil, "u7")
	hub.register <- c
	select {
	case <-sig.ch:
	case <-time.After(time.Second):
		t.Fatal("hub loop never registered the client")
	}

	evt, err := NewEvent(EventTypeSnapshot, "users", SnapshotPayload{})
	require.NoError(t, err)
	hub.BroadcastToUser("u7", evt)

	select {
	case data := <-c.send:
		var got Event
		require.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, EventTypeSnapshot, got.Type)
		assert.Equal(t, "users", got.Collection)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the direct event")
	}

	// Unknown recipients are dropped quietly.
	hub.BroadcastToUser("nobody", evt)
}
