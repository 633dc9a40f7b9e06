package model

import (
	"time"

	"github.com/google/uuid"
)

// User is the identity record attached to an authenticated session.
type User struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
}

// Session is the authenticated identity context of the client.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         User      `json:"user"`
}

// Expired reports whether the access token is expired at now, or will be
// within margin.
func (s *Session) Expired(now time.Time, margin time.Duration) bool {
	if s == nil {
		return true
	}
	if s.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(margin).Before(s.ExpiresAt)
}

// UserID returns the string form of the session user's id, or "" for a nil
// session.
func (s *Session) UserID() string {
	if s == nil || s.User.ID == uuid.Nil {
		return ""
	}
	return s.User.ID.String()
}
