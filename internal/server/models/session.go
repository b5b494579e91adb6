package models

import "time"

// Session maps an opaque token to a user identity for a bounded lifetime.
type Session struct {
	Token     string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the session is past its lifetime at now.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
