package domain

import "time"

// OnlineThreshold is how fresh a user's last-active timestamp must be for
// the user to count as online. Presence is computed at read time, never
// stored.
const OnlineThreshold = 3 * time.Minute

// Avatar is one entry of the fixed avatar catalog.
type Avatar string

const (
	AvatarFalcon  Avatar = "falcon"
	AvatarFox     Avatar = "fox"
	AvatarKoala   Avatar = "koala"
	AvatarLynx    Avatar = "lynx"
	AvatarOtter   Avatar = "otter"
	AvatarPenguin Avatar = "penguin"
)

// Avatars lists the full catalog in display order.
var Avatars = []Avatar{AvatarFalcon, AvatarFox, AvatarKoala, AvatarLynx, AvatarOtter, AvatarPenguin}

// Valid reports whether a is part of the catalog.
func (a Avatar) Valid() bool {
	for _, known := range Avatars {
		if a == known {
			return true
		}
	}
	return false
}

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	DisplayName  string    `json:"display_name"`
	PasswordHash string    `json:"-"`
	Avatar       Avatar    `json:"avatar"`
	CreatedAt    Timestamp `json:"created_at"`
	LastActiveAt Timestamp `json:"last_active_at,omitempty"`
}

// Online reports whether the user was active within OnlineThreshold of now.
func (u *User) Online(now time.Time) bool {
	if u.LastActiveAt.IsZero() {
		return false
	}
	return now.Sub(u.LastActiveAt.Time()) < OnlineThreshold
}
