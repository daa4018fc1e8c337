package models

import (
	"time"
)

type User struct {
	ID             string
	Username       string // case-insensitive unique
	PasswordHash   string
	Role           string // e.g., "user", "technician", "admin"
	IsLocked       bool
	LockedAt       *time.Time
	FailedAttempts int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// PublicUser is the subset of User safe to hand to callers: no hash, no
// failure counters.
type PublicUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

func (u *User) Public() *PublicUser {
	return &PublicUser{
		ID:       u.ID,
		Username: u.Username,
		Role:     u.Role,
	}
}
