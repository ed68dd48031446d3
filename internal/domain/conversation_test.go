package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildConversationIDOrderIndependent(t *testing.T) {
	assert.Equal(t, BuildConversationID("alice", "bob"), BuildConversationID("bob", "alice"))
	assert.Equal(t, "alice_bob", BuildConversationID("bob", "alice"))
}

func TestNewConversationCanonicalOrder(t *testing.T) {
	conv := NewConversation("zoe", "adam")
	assert.Equal(t, "adam_zoe", conv.ID)
	assert.Equal(t, [2]string{"adam", "zoe"}, conv.Participants)
	assert.True(t, conv.HasParticipant("zoe"))
	assert.True(t, conv.HasParticipant("adam"))
	assert.False(t, conv.HasParticipant("eve"))
	assert.Equal(t, "adam", conv.Other("zoe"))
}
