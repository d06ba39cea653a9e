package models

import "time"

type User struct {
	ID           int       `json:"id"`
	Username     string    `json:"username"`
	IsOnline     bool      `json:"is_online"`
	LastSeen     time.Time `json:"last_seen"`
	JoinedAt     time.Time `json:"joined_at"`
	IsBlocked    bool      `json:"is_blocked"`
	BlockedUntil time.Time `json:"blocked_until,omitempty"`
}

// Blocked reports whether the user's block window has not yet expired.
func (u *User) Blocked(now time.Time) bool {
	return u.IsBlocked && u.BlockedUntil.After(now)
}

// RoomVisit is one entry of a user's room history.
type RoomVisit struct {
	RoomID     string    `json:"roomId"`
	LastJoined time.Time `json:"lastJoined"`
}

// UserPresence is the subset of user state shipped in history and
// user_joined frames.
type UserPresence struct {
	Username string    `json:"username"`
	LastSeen time.Time `json:"lastSeen"`
}
