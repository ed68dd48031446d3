package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dkezele/ripple/internal/docstore"
)

func newTestStore() *Store {
	return &Store{subs: make(map[string][]*subscription)}
}

func (s *Store) addSub(collection string) *subscription {
	sub := &subscription{
		store:      s,
		collection: collection,
		ch:         make(chan docstore.Snapshot, 1),
	}
	s.subs[collection] = append(s.subs[collection], sub)
	return sub
}

func TestDeliverSkipsUnsubscribedChannel(t *testing.T) {
	s := newTestStore()
	gone := s.addSub("users")
	live := s.addSub("users")

	gone.Unsubscribe()

	// A snapshot built before the unsubscribe landed must be dropped,
	// not sent into the closed channel.
	snap := docstore.Snapshot{Collection: "users"}
	s.deliver(gone, snap)
	s.deliver(live, snap)

	got, ok := <-live.ch
	assert.True(t, ok)
	assert.Equal(t, "users", got.Collection)

	_, ok = <-gone.ch
	assert.False(t, ok, "unsubscribed channel stays closed")
}

func TestDeliverAfterListenerDeath(t *testing.T) {
	s := newTestStore()
	sub := s.addSub("channels")

	s.dropSubscribers()
	s.deliver(sub, docstore.Snapshot{Collection: "channels"})

	_, ok := <-sub.ch
	assert.False(t, ok)
	sub.Unsubscribe() // already closed; must not close twice
}

func TestDeliverCoalescesPendingSnapshot(t *testing.T) {
	s := newTestStore()
	sub := s.addSub("users")

	s.deliver(sub, docstore.Snapshot{Collection: "users"})
	s.deliver(sub, docstore.Snapshot{
		Collection: "users",
		Docs:       []docstore.Document{{ID: "u1"}},
	})

	got := <-sub.ch
	assert.Len(t, got.Docs, 1, "a newer snapshot supersedes the unread one")
}

func TestPathHelpers(t *testing.T) {
	assert.Equal(t, "users", collectionOf("users/u1"))
	assert.Equal(t, "messages/ch1", collectionOf("messages/ch1/m1"))
	assert.Equal(t, "", collectionOf("root"))
	assert.Equal(t, "m1", lastSegment("messages/ch1/m1"))
	assert.Equal(t, "root", lastSegment("root"))
}
