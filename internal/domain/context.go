package domain

// ContextKind identifies which conversational scope is active.
type ContextKind string

const (
	ContextChannel      ContextKind = "channel"
	ContextConversation ContextKind = "conversation"
	ContextNewMessage   ContextKind = "newMessage"
)

// Context is the active scope message operations run against. For the
// compose-new state ID is empty.
type Context struct {
	Kind ContextKind `json:"kind"`
	ID   string      `json:"id,omitempty"`
}

// DocPath returns the backend document path for the context's parent
// document, or "" for the compose-new state.
func (c Context) DocPath() string {
	switch c.Kind {
	case ContextChannel:
		return "channels/" + c.ID
	case ContextConversation:
		return "conversations/" + c.ID
	default:
		return ""
	}
}

// Key returns the stable per-context key used by the scroll follower.
func (c Context) Key() string {
	switch c.Kind {
	case ContextChannel:
		return "channel-" + c.ID
	case ContextConversation:
		return "conversation-" + c.ID
	default:
		return "new"
	}
}
