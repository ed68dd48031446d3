package domain

import "sort"

// Conversation is a private 1:1 messaging space. Its id is derived from the
// sorted participant pair, so the pair maps to exactly one document and
// creation is idempotent regardless of who opens it first.
type Conversation struct {
	ID            string    `json:"id"`
	Participants  [2]string `json:"participants"`
	CreatedAt     Timestamp `json:"created_at"`
	LastMessageAt Timestamp `json:"last_message_at,omitempty"`
}

// BuildConversationID derives the canonical conversation id for two users:
// the pair sorted and joined with "_". Order-independent by construction.
func BuildConversationID(a, b string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	return pair[0] + "_" + pair[1]
}

// NewConversation builds the conversation document for two participants,
// with participants stored in canonical (sorted) order.
func NewConversation(a, b string) *Conversation {
	pair := []string{a, b}
	sort.Strings(pair)
	return &Conversation{
		ID:           pair[0] + "_" + pair[1],
		Participants: [2]string{pair[0], pair[1]},
		CreatedAt:    Now(),
	}
}

// HasParticipant reports whether userID is one of the two participants.
func (c *Conversation) HasParticipant(userID string) bool {
	return c.Participants[0] == userID || c.Participants[1] == userID
}

// Other returns the participant that is not userID.
func (c *Conversation) Other(userID string) string {
	if c.Participants[0] == userID {
		return c.Participants[1]
	}
	return c.Participants[0]
}
