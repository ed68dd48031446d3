package domain

// Channel is a named, persistent group messaging space. Name uniqueness is
// case-insensitive and enforced through a name-keyed lookup document rather
// than a read-then-create check.
type Channel struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	Members       []string  `json:"members"`
	Admins        []string  `json:"admins"`
	CreatedBy     string    `json:"created_by"`
	Private       bool      `json:"private"`
	CreatedAt     Timestamp `json:"created_at"`
	LastMessageAt Timestamp `json:"last_message_at,omitempty"`
}

// HasMember reports whether userID is in the membership list.
func (c *Channel) HasMember(userID string) bool {
	for _, id := range c.Members {
		if id == userID {
			return true
		}
	}
	return false
}

// HasAdmin reports whether userID is in the admin list.
func (c *Channel) HasAdmin(userID string) bool {
	for _, id := range c.Admins {
		if id == userID {
			return true
		}
	}
	return false
}
