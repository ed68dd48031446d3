package service

import (
	"strings"

	"github.com/dkezele/ripple/internal/domain"
)

// ResolveContext maps a navigation path to the active conversational
// context. Recognized shapes:
//
//	c/:channelId   → channel
//	dm/:convId     → conversation
//	anything else  → compose-new state
//
// Re-evaluated on every navigation event; the result is a value, so stale
// contexts never outlive a route change.
//
// Channel ids get no special-casing: "c/general" resolves to the general
// channel like any other. The compose-new state is purely the absence of a
// channel or conversation segment.
func ResolveContext(path string) domain.Context {
	segs := splitPath(path)
	if len(segs) >= 2 && segs[1] != "" {
		switch segs[0] {
		case "c":
			return domain.Context{Kind: domain.ContextChannel, ID: segs[1]}
		case "dm":
			return domain.Context{Kind: domain.ContextConversation, ID: segs[1]}
		}
	}
	return domain.Context{Kind: domain.ContextNewMessage}
}

func splitPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}
