package memory

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkezele/ripple/internal/docstore"
)

type note struct {
	ID        string `json:"id,omitempty"`
	Text      string `json:"text"`
	CreatedAt int64  `json:"created_at,omitempty"`
}

func recvSnapshot(t *testing.T, sub docstore.Subscription) docstore.Snapshot {
	t.Helper()
	select {
	case snap, ok := <-sub.Snapshots():
		require.True(t, ok, "subscription channel closed")
		return snap
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for snapshot")
		return docstore.Snapshot{}
	}
}

func TestGetSetRoundTrip(t *testing.T) {
	s := New()
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "notes/a", note{Text: "hello"}))

	var got note
	require.NoError(t, s.Get(ctx, "notes/a", &got))
	assert.Equal(t, "hello", got.Text)
	assert.Equal(t, "a", got.ID, "path key is stamped into the body")

	err := s.Get(ctx, "notes/missing", &got)
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestCreateIsExclusive(t *testing.T) {
	s := New()
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, "notes/a", note{Text: "first"}))
	err := s.Create(ctx, "notes/a", note{Text: "second"})
	assert.ErrorIs(t, err, docstore.ErrExists)

	var got note
	require.NoError(t, s.Get(ctx, "notes/a", &got))
	assert.Equal(t, "first", got.Text, "losing create must not overwrite")
}

func TestUpdateMergesFields(t *testing.T) {
	s := New()
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "notes/a", note{Text: "hello", CreatedAt: 100}))
	require.NoError(t, s.Update(ctx, "notes/a", map[string]any{"text": "edited"}))

	var got note
	require.NoError(t, s.Get(ctx, "notes/a", &got))
	assert.Equal(t, "edited", got.Text)
	assert.Equal(t, int64(100), got.CreatedAt, "untouched fields survive")

	err := s.Update(ctx, "notes/missing", map[string]any{"text": "x"})
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestMutateRewritesDocument(t *testing.T) {
	s := New()
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "notes/a", note{Text: "aa"}))
	err := s.Mutate(ctx, "notes/a", func(data json.RawMessage) (json.RawMessage, error) {
		return json.RawMessage(`{"id":"a","text":"bb"}`), nil
	})
	require.NoError(t, err)

	var got note
	require.NoError(t, s.Get(ctx, "notes/a", &got))
	assert.Equal(t, "bb", got.Text)
}

func TestListOrdersAndSkipsNested(t *testing.T) {
	s := New()
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "notes/b", note{Text: "second", CreatedAt: 200}))
	require.NoError(t, s.Set(ctx, "notes/a", note{Text: "first", CreatedAt: 100}))
	require.NoError(t, s.Set(ctx, "notes/a/replies/r1", note{Text: "nested", CreatedAt: 50}))

	docs, err := s.List(ctx, "notes", "created_at")
	require.NoError(t, err)
	require.Len(t, docs, 2, "nested collections are not part of the parent list")
	assert.Equal(t, "a", docs[0].ID)
	assert.Equal(t, "b", docs[1].ID)
}

func TestSubscribeEmitsFullSnapshots(t *testing.T) {
	s := New()
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "notes/a", note{Text: "first", CreatedAt: 100}))

	sub, err := s.Subscribe(ctx, "notes", "created_at")
	require.NoError(t, err)
	defer sub.Unsubscribe()

	snap := recvSnapshot(t, sub)
	require.Len(t, snap.Docs, 1, "initial snapshot reflects current state")

	require.NoError(t, s.Set(ctx, "notes/b", note{Text: "second", CreatedAt: 200}))
	snap = recvSnapshot(t, sub)
	require.Len(t, snap.Docs, 2, "every emission is the complete list, not a delta")
	assert.Equal(t, "a", snap.Docs[0].ID)
	assert.Equal(t, "b", snap.Docs[1].ID)

	require.NoError(t, s.Delete(ctx, "notes/a"))
	snap = recvSnapshot(t, sub)
	require.Len(t, snap.Docs, 1)
	assert.Equal(t, "b", snap.Docs[0].ID)
}

func TestSlowSubscriberCoalescesToNewest(t *testing.T) {
	s := New()
	defer s.Close()
	ctx := context.Background()

	sub, err := s.Subscribe(ctx, "notes", "created_at")
	require.NoError(t, err)
	defer sub.Unsubscribe()

	// Consume nothing while three writes land; the buffer holds one
	// pending snapshot, so the reader must observe the final state.
	require.NoError(t, s.Set(ctx, "notes/a", note{Text: "a", CreatedAt: 100}))
	require.NoError(t, s.Set(ctx, "notes/b", note{Text: "b", CreatedAt: 200}))
	require.NoError(t, s.Set(ctx, "notes/c", note{Text: "c", CreatedAt: 300}))

	snap := recvSnapshot(t, sub)
	assert.Len(t, snap.Docs, 3)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	s := New()
	defer s.Close()
	ctx := context.Background()

	sub, err := s.Subscribe(ctx, "notes", "created_at")
	require.NoError(t, err)
	recvSnapshot(t, sub)

	sub.Unsubscribe()
	sub.Unsubscribe() // idempotent

	_, ok := <-sub.Snapshots()
	assert.False(t, ok)

	// Writes after unsubscribe must not panic on the closed channel.
	require.NoError(t, s.Set(ctx, "notes/a", note{Text: "late"}))
}

func TestSubscribersAreIndependentPerCollection(t *testing.T) {
	s := New()
	defer s.Close()
	ctx := context.Background()

	notes, err := s.Subscribe(ctx, "notes", "created_at")
	require.NoError(t, err)
	defer notes.Unsubscribe()
	recvSnapshot(t, notes)

	other, err := s.Subscribe(ctx, "drafts", "created_at")
	require.NoError(t, err)
	defer other.Unsubscribe()
	recvSnapshot(t, other)

	require.NoError(t, s.Set(ctx, "drafts/d1", note{Text: "draft"}))

	snap := recvSnapshot(t, other)
	assert.Len(t, snap.Docs, 1)

	select {
	case snap := <-notes.Snapshots():
		t.Fatalf("notes subscriber saw unrelated write: %+v", snap)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestAddAssignsID(t *testing.T) {
	s := New()
	defer s.Close()
	ctx := context.Background()

	id, err := s.Add(ctx, "notes", note{Text: "hello"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	var got note
	require.NoError(t, s.Get(ctx, "notes/"+id, &got))
	assert.Equal(t, id, got.ID)
}

func TestDeleteMissingIsNoop(t *testing.T) {
	s := New()
	defer s.Close()
	assert.NoError(t, s.Delete(context.Background(), "notes/missing"))
}

func TestClosedStoreRejectsWrites(t *testing.T) {
	s := New()
	ctx := context.Background()
	sub, err := s.Subscribe(ctx, "notes", "created_at")
	require.NoError(t, err)
	recvSnapshot(t, sub)

	s.Close()

	_, ok := <-sub.Snapshots()
	assert.False(t, ok, "close ends open subscriptions")
	assert.ErrorIs(t, s.Set(ctx, "notes/a", note{Text: "x"}), docstore.ErrClosed)
	_, err = s.Subscribe(ctx, "notes", "created_at")
	assert.ErrorIs(t, err, docstore.ErrClosed)
}
