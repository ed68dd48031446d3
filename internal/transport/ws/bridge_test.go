package ws

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkezele/ripple/internal/docstore"
	"github.com/dkezele/ripple/internal/docstore/memory"
	"github.com/dkezele/ripple/internal/domain"
)

func (b *SnapshotBridge) refs(collection string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if f, ok := b.feeds[collection]; ok {
		return f.refs
	}
	return 0
}

func (b *SnapshotBridge) cached(collection string) *Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	if f, ok := b.feeds[collection]; ok {
		return f.last
	}
	return nil
}

func TestBridgeRefcountsFeeds(t *testing.T) {
	store := memory.New()
	defer store.Close()
	hub := NewHub()
	go hub.Run()
	bridge := NewSnapshotBridge(store, hub)
	defer bridge.Close()

	bridge.Acquire("users", "u1")
	assert.Equal(t, 1, bridge.refs("users"))

	bridge.Acquire("users", "u2")
	assert.Equal(t, 2, bridge.refs("users"), "second interest shares the feed")

	bridge.Release("users")
	assert.Equal(t, 1, bridge.refs("users"), "feed survives while anyone is interested")

	bridge.Release("users")
	assert.Equal(t, 0, bridge.refs("users"), "last release closes the backend feed")

	bridge.Release("users") // no feed left; must not panic
}

func TestBridgeCachesLatestSnapshot(t *testing.T) {
	store := memory.New()
	defer store.Close()
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, docstore.UserPath("u1"), &domain.User{
		Username:  "max",
		CreatedAt: domain.Now(),
	}))

	hub := NewHub()
	go hub.Run()
	bridge := NewSnapshotBridge(store, hub)
	defer bridge.Close()

	bridge.Acquire("users", "u1")
	require.Eventually(t, func() bool {
		return bridge.cached("users") != nil
	}, time.Second, 10*time.Millisecond, "pump caches the initial snapshot")

	evt := bridge.cached("users")
	assert.Equal(t, EventTypeSnapshot, evt.Type)
	assert.Equal(t, "users", evt.Collection)
}

func TestValidateToken(t *testing.T) {
	const secret = "test-secret"
	userID := uuid.NewString()

	mint := func(claims jwt.MapClaims, key string) string {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
		signed, err := token.SignedString([]byte(key))
		require.NoError(t, err)
		return signed
	}

	t.Run("valid token", func(t *testing.T) {
		signed := mint(jwt.MapClaims{
			"sub": userID,
			"exp": time.Now().Add(time.Hour).Unix(),
		}, secret)
		got, err := validateToken(signed, secret)
		require.NoError(t, err)
		assert.Equal(t, userID, got)
	})

	t.Run("wrong secret", func(t *testing.T) {
		signed := mint(jwt.MapClaims{"sub": userID, "exp": time.Now().Add(time.Hour).Unix()}, "other")
		_, err := validateToken(signed, secret)
		assert.Error(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		signed := mint(jwt.MapClaims{"sub": userID, "exp": time.Now().Add(-time.Hour).Unix()}, secret)
		_, err := validateToken(signed, secret)
		assert.Error(t, err)
	})

	t.Run("subject is not a user id", func(t *testing.T) {
		signed := mint(jwt.MapClaims{"sub": "admin", "exp": time.Now().Add(time.Hour).Unix()}, secret)
		_, err := validateToken(signed, secret)
		assert.Error(t, err)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := validateToken("not-a-token", secret)
		assert.Error(t, err)
	})
}
