package session

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nhle/todosync/internal/model"
)

// Claims is the subset of access-token claims the client reads.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// ParseClaims decodes the claims of an access token without verifying its
// signature. Tokens are only ever verified by the service.
func ParseClaims(accessToken string) (*Claims, error) {
	var c Claims
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, &c); err != nil {
		return nil, fmt.Errorf("parsing access token: %w", err)
	}
	return &c, nil
}

// complete fills the user and expiry of s from its access token when the
// auth response left them out. s is modified in place and returned.
func complete(s *model.Session) *model.Session {
	if s == nil || (s.User.ID != uuid.Nil && !s.ExpiresAt.IsZero()) {
		return s
	}
	c, err := ParseClaims(s.AccessToken)
	if err != nil {
		return s
	}
	if s.User.ID == uuid.Nil {
		if id, err := uuid.Parse(c.Subject); err == nil {
			s.User.ID = id
		}
	}
	if s.User.Email == "" {
		s.User.Email = c.Email
	}
	if s.ExpiresAt.IsZero() && c.ExpiresAt != nil {
		s.ExpiresAt = c.ExpiresAt.Time.UTC()
	}
	return s
}
