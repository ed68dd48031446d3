package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dkezele/ripple/internal/domain"
)

func TestResolveContext(t *testing.T) {
	tests := []struct {
		path string
		want domain.Context
	}{
		{"c/abc123", domain.Context{Kind: domain.ContextChannel, ID: "abc123"}},
		{"/c/abc123/", domain.Context{Kind: domain.ContextChannel, ID: "abc123"}},
		{"c/general", domain.Context{Kind: domain.ContextChannel, ID: "general"}},
		{"dm/alice_bob", domain.Context{Kind: domain.ContextConversation, ID: "alice_bob"}},
		{"", domain.Context{Kind: domain.ContextNewMessage}},
		{"/", domain.Context{Kind: domain.ContextNewMessage}},
		{"new", domain.Context{Kind: domain.ContextNewMessage}},
		{"settings", domain.Context{Kind: domain.ContextNewMessage}},
		{"c", domain.Context{Kind: domain.ContextNewMessage}},
		{"c/", domain.Context{Kind: domain.ContextNewMessage}},
		{"dm", domain.Context{Kind: domain.ContextNewMessage}},
		{"x/y", domain.Context{Kind: domain.ContextNewMessage}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ResolveContext(tt.path), "path %q", tt.path)
	}
}

func TestContextDocPath(t *testing.T) {
	assert.Equal(t, "channels/ch1", domain.Context{Kind: domain.ContextChannel, ID: "ch1"}.DocPath())
	assert.Equal(t, "conversations/a_b", domain.Context{Kind: domain.ContextConversation, ID: "a_b"}.DocPath())
	assert.Equal(t, "", domain.Context{Kind: domain.ContextNewMessage}.DocPath())
}

func TestContextKeysAreDistinct(t *testing.T) {
	keys := map[string]bool{}
	for _, c := range []domain.Context{
		{Kind: domain.ContextChannel, ID: "x"},
		{Kind: domain.ContextConversation, ID: "x"},
		{Kind: domain.ContextNewMessage},
	} {
		keys[c.Key()] = true
	}
	assert.Len(t, keys, 3, "each context kind keys its own scroll state")
}
