package models

import "time"

// Session is a server-side authenticated session. The token is opaque;
// ExpiresAt is authoritative and slides forward on every successful
// validation, so a session outlives its cookie only as long as it stays
// active.
type Session struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	Token     string    `db:"token"`
	CreatedAt time.Time `db:"created_at"`
	ExpiresAt time.Time `db:"expires_at"`
}

// IsExpired reports whether the session has passed its sliding deadline.
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}
