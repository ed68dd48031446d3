package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/dkezele/ripple/internal/docstore"
)

// SnapshotBridge refcounts one docstore subscription per collection and
// fans its snapshots out through the hub. The first interested connection
// opens the backend feed, the last one releases it; nothing lingers after
// every subscriber is gone.
type SnapshotBridge struct {
	store docstore.Store
	hub   *Hub

	mu    sync.Mutex
	feeds map[string]*feed
}

type feed struct {
	sub  docstore.Subscription
	refs int
	// last is the most recent snapshot event, replayed to connections
	// that join while the feed is already open.
	last *Event
}

func NewSnapshotBridge(store docstore.Store, hub *Hub) *SnapshotBridge {
	return &SnapshotBridge{
		store: store,
		hub:   hub,
		feeds: make(map[string]*feed),
	}
}

// Acquire registers interest in a collection for userID. The first caller
// opens the backend subscription; later callers get the cached snapshot
// replayed directly.
func (b *SnapshotBridge) Acquire(collection, userID string) {
	b.mu.Lock()
	if f, ok := b.feeds[collection]; ok {
		f.refs++
		last := f.last
		b.mu.Unlock()
		if last != nil {
			b.hub.BroadcastToUser(userID, last)
		}
		return
	}

	sub, err := b.store.Subscribe(context.Background(), collection, "created_at")
	if err != nil {
		b.mu.Unlock()
		log.Printf("ws bridge: subscribing to %s: %v", collection, err)
		return
	}
	f := &feed{sub: sub, refs: 1}
	b.feeds[collection] = f
	b.mu.Unlock()

	go b.pump(collection, f)
}

// Release drops one reference; the backend subscription closes when the
// last one goes.
func (b *SnapshotBridge) Release(collection string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	f, ok := b.feeds[collection]
	if !ok {
		return
	}
	f.refs--
	if f.refs <= 0 {
		f.sub.Unsubscribe()
		delete(b.feeds, collection)
	}
}

// Close releases every open feed.
func (b *SnapshotBridge) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for collection, f := range b.feeds {
		f.sub.Unsubscribe()
		delete(b.feeds, collection)
	}
}

func (b *SnapshotBridge) pump(collection string, f *feed) {
	for snap := range f.sub.Snapshots() {
		docs := make([]json.RawMessage, len(snap.Docs))
		for i, doc := range snap.Docs {
			docs[i] = doc.Data
		}
		evt, err := NewEvent(EventTypeSnapshot, collection, SnapshotPayload{Docs: docs})
		if err != nil {
			log.Printf("ws bridge: marshal error: %v", err)
			continue
		}

		b.mu.Lock()
		if current, ok := b.feeds[collection]; ok && current == f {
			f.last = evt
		}
		b.mu.Unlock()

		b.hub.BroadcastToCollection(collection, evt, "")
	}
}
