package domain

import (
	"sort"
	"strings"
)

// ValidMessageText reports whether text carries anything beyond whitespace.
func ValidMessageText(text string) bool {
	return strings.TrimSpace(text) != ""
}

// Message is one entry in a channel, conversation, or thread collection.
// Reactions map a reaction kind to the set of user ids that applied it;
// an empty set is never stored, the key is removed instead.
type Message struct {
	ID          string              `json:"id"`
	Text        string              `json:"text"`
	SenderID    string              `json:"sender_id"`
	CreatedAt   Timestamp           `json:"created_at"`
	EditedAt    Timestamp           `json:"edited_at"`
	ReplyCount  int                 `json:"reply_count"`
	LastReplyAt Timestamp           `json:"last_reply_at,omitempty"`
	Reactions   map[string][]string `json:"reactions,omitempty"`
}

// HasReacted reports whether userID is in the reaction set for kind.
func (m *Message) HasReacted(kind, userID string) bool {
	for _, id := range m.Reactions[kind] {
		if id == userID {
			return true
		}
	}
	return false
}

// ToggleReaction flips userID's membership in the reaction set for kind.
// The set is kept sorted so repeated toggles are byte-stable; the key is
// dropped when its set empties.
func (m *Message) ToggleReaction(kind, userID string) {
	if m.Reactions == nil {
		m.Reactions = make(map[string][]string)
	}
	users := m.Reactions[kind]
	for i, id := range users {
		if id == userID {
			users = append(users[:i], users[i+1:]...)
			if len(users) == 0 {
				delete(m.Reactions, kind)
			} else {
				m.Reactions[kind] = users
			}
			return
		}
	}
	users = append(users, userID)
	sort.Strings(users)
	m.Reactions[kind] = users
}
