// Package mention parses in-progress message text for @user and #channel
// triggers and filters candidate lists for the autocomplete popup.
//
// Everything here works in logical text units: the caret is a rune offset
// and the popup anchor is the trigger's rune offset. Pixel geometry belongs
// entirely to the rendering layer.
package mention

import (
	"strings"
	"unicode"

	"github.com/dkezele/ripple/internal/domain"
)

const (
	TriggerUser    = '@'
	TriggerChannel = '#'
)

// Trigger describes the active autocomplete query at the caret.
type Trigger struct {
	// Kind is '@' for users or '#' for channels.
	Kind rune
	// Query is the text between the trigger rune and the caret. Empty is
	// valid and matches everything loaded.
	Query string
	// Start is the rune offset of the trigger rune; the popup anchors
	// here and completion replaces from here.
	Start int
}

// ActiveTrigger finds the most recent trigger rune before the caret with
// no whitespace between it and the caret. A caret offset outside the text
// is clamped.
func ActiveTrigger(text string, caret int) (Trigger, bool) {
	runes := []rune(text)
	if caret > len(runes) {
		caret = len(runes)
	}
	if caret < 0 {
		caret = 0
	}
	for i := caret - 1; i >= 0; i-- {
		r := runes[i]
		if unicode.IsSpace(r) {
			return Trigger{}, false
		}
		if r == TriggerUser || r == TriggerChannel {
			return Trigger{Kind: r, Query: string(runes[i+1 : caret]), Start: i}, true
		}
	}
	return Trigger{}, false
}

// FilterUsers returns the users whose display name, username, or email
// contains the query, case-insensitively. Order is preserved.
func FilterUsers(users []domain.User, query string) []domain.User {
	q := strings.ToLower(query)
	var out []domain.User
	for _, u := range users {
		if strings.Contains(strings.ToLower(u.DisplayName), q) ||
			strings.Contains(strings.ToLower(u.Username), q) ||
			strings.Contains(strings.ToLower(u.Email), q) {
			out = append(out, u)
		}
	}
	return out
}

// FilterChannels returns the channels whose name or description contains
// the query, case-insensitively.
func FilterChannels(channels []domain.Channel, query string) []domain.Channel {
	q := strings.ToLower(query)
	var out []domain.Channel
	for _, ch := range channels {
		if strings.Contains(strings.ToLower(ch.Name), q) ||
			strings.Contains(strings.ToLower(ch.Description), q) {
			out = append(out, ch)
		}
	}
	return out
}

// UserLabel is the canonical completion label for a user.
func UserLabel(u domain.User) string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}

// ChannelLabel is the canonical completion label for a channel.
func ChannelLabel(ch domain.Channel) string { return ch.Name }

// Complete replaces the text from the trigger rune through the caret with
// the canonical label plus one space, and returns the new text and caret.
// The candidate list should be closed afterwards.
func Complete(text string, caret int, tr Trigger, label string) (string, int) {
	runes := []rune(text)
	if caret > len(runes) {
		caret = len(runes)
	}
	if tr.Start < 0 || tr.Start > caret {
		return text, caret
	}
	inserted := []rune(string(tr.Kind) + label + " ")
	out := make([]rune, 0, tr.Start+len(inserted)+len(runes)-caret)
	out = append(out, runes[:tr.Start]...)
	out = append(out, inserted...)
	out = append(out, runes[caret:]...)
	return string(out), tr.Start + len(inserted)
}

// Selection is the keyboard-driven index over the current candidate list.
// It clamps at both ends; there is no wraparound.
type Selection struct {
	index  int
	length int
}

// SetLength resizes the candidate list and clamps the index into it.
func (s *Selection) SetLength(n int) {
	s.length = n
	if s.index >= n {
		s.index = n - 1
	}
	if s.index < 0 {
		s.index = 0
	}
}

// Next moves the selection down one candidate.
func (s *Selection) Next() {
	if s.index < s.length-1 {
		s.index++
	}
}

// Prev moves the selection up one candidate.
func (s *Selection) Prev() {
	if s.index > 0 {
		s.index--
	}
}

// Reset returns the selection to the top, for when the query changes.
func (s *Selection) Reset() { s.index = 0 }

// Index is the currently selected candidate position.
func (s *Selection) Index() int { return s.index }
