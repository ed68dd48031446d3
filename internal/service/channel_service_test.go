package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkezele/ripple/internal/docstore"
	"github.com/dkezele/ripple/internal/docstore/memory"
)

func newChannelService(t *testing.T) (*memory.Store, *ChannelService) {
	t.Helper()
	store := memory.New()
	t.Cleanup(store.Close)
	return store, NewChannelService(store)
}

func TestCreateChannel(t *testing.T) {
	store, svc := newChannelService(t)
	ctx := context.Background()

	ch, err := svc.Create(ctx, "u1", CreateChannelInput{Name: "design", Description: "Pixels"})
	require.NoError(t, err)
	require.NotEmpty(t, ch.ID)
	assert.Equal(t, []string{"u1"}, ch.Members, "creator joins on creation")
	assert.True(t, ch.HasAdmin("u1"), "creator is first admin")
	assert.Equal(t, "u1", ch.CreatedBy)

	got, err := svc.Get(ctx, ch.ID)
	require.NoError(t, err)
	assert.Equal(t, "design", got.Name)

	// The lookup document carries the reservation.
	var ref map[string]any
	require.NoError(t, store.Get(ctx, docstore.ChannelNamePath("design"), &ref))
	assert.Equal(t, ch.ID, ref["channel_id"])
}

func TestCreateDuplicateNameIsCaseInsensitive(t *testing.T) {
	_, svc := newChannelService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "u1", CreateChannelInput{Name: "Design"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, "u2", CreateChannelInput{Name: "design"})
	assert.ErrorIs(t, err, ErrChannelNameTaken)
	_, err = svc.Create(ctx, "u2", CreateChannelInput{Name: "DESIGN"})
	assert.ErrorIs(t, err, ErrChannelNameTaken)

	channels, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, channels, 1, "losing create must not add a channel")
}

func TestCreateChannelValidation(t *testing.T) {
	_, svc := newChannelService(t)
	ctx := context.Background()

	for _, name := range []string{"", "x", "has spaces", "emoji🦊"} {
		_, err := svc.Create(ctx, "u1", CreateChannelInput{Name: name})
		assert.ErrorIs(t, err, ErrInvalidChannel, "name %q", name)
	}
}

func TestJoinAndLeave(t *testing.T) {
	_, svc := newChannelService(t)
	ctx := context.Background()

	ch, err := svc.Create(ctx, "u1", CreateChannelInput{Name: "random"})
	require.NoError(t, err)

	require.NoError(t, svc.Join(ctx, ch.ID, "u2"))
	require.NoError(t, svc.Join(ctx, ch.ID, "u2"), "joining twice is a no-op")

	got, err := svc.Get(ctx, ch.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, got.Members)

	require.NoError(t, svc.Leave(ctx, ch.ID, "u1"))
	got, err = svc.Get(ctx, ch.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"u2"}, got.Members)
	assert.Empty(t, got.Admins, "leaving drops admin status too")

	assert.ErrorIs(t, svc.Join(ctx, "missing", "u1"), ErrChannelNotFound)
}

func TestUpdateDescription(t *testing.T) {
	_, svc := newChannelService(t)
	ctx := context.Background()

	ch, err := svc.Create(ctx, "u1", CreateChannelInput{Name: "ops", Description: "old"})
	require.NoError(t, err)
	require.NoError(t, svc.UpdateDescription(ctx, ch.ID, "new words"))

	got, err := svc.Get(ctx, ch.ID)
	require.NoError(t, err)
	assert.Equal(t, "new words", got.Description)
	assert.Equal(t, "ops", got.Name, "name untouched")
}

func TestGetMissingChannel(t *testing.T) {
	_, svc := newChannelService(t)
	_, err := svc.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrChannelNotFound)
}

func TestChannelSubscribe(t *testing.T) {
	_, svc := newChannelService(t)
	ctx := context.Background()

	feed, err := svc.Subscribe(ctx)
	require.NoError(t, err)
	defer feed.Unsubscribe()

	_, err = svc.Create(ctx, "u1", CreateChannelInput{Name: "general"})
	require.NoError(t, err)

	deadline := time.After(time.Second)
	for {
		select {
		case channels, ok := <-feed.Channels():
			require.True(t, ok)
			if len(channels) == 1 {
				assert.Equal(t, "general", channels[0].Name)
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for channel snapshot")
		}
	}
}
