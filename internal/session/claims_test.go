package session

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/todosync/internal/model"
)

func signedToken(t *testing.T, sub, email string, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}).SignedString([]byte("any-secret"))
	require.NoError(t, err)
	return tok
}

func TestParseClaims(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	id := uuid.New()

	c, err := ParseClaims(signedToken(t, id.String(), "ada@example.com", exp))
	require.NoError(t, err)
	assert.Equal(t, id.String(), c.Subject)
	assert.Equal(t, "ada@example.com", c.Email)
	assert.True(t, exp.Equal(c.ExpiresAt.Time))
}

func TestParseClaims_Garbage(t *testing.T) {
	_, err := ParseClaims("not-a-token")
	assert.ErrorContains(t, err, "parsing access token")
}

func TestComplete(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	id := uuid.New()
	tok := signedToken(t, id.String(), "ada@example.com", exp)

	t.Run("fills missing user and expiry", func(t *testing.T) {
		s := complete(&model.Session{AccessToken: tok})
		assert.Equal(t, model.User{ID: id, Email: "ada@example.com"}, s.User)
		assert.True(t, exp.Equal(s.ExpiresAt))
	})

	t.Run("keeps what the response carried", func(t *testing.T) {
		other := model.User{ID: uuid.New(), Email: "bob@example.com"}
		at := time.Now().Add(time.Minute)
		s := complete(&model.Session{AccessToken: tok, User: other, ExpiresAt: at})
		assert.Equal(t, other, s.User)
		assert.Equal(t, at, s.ExpiresAt)
	})

	t.Run("opaque token is left alone", func(t *testing.T) {
		s := complete(&model.Session{AccessToken: "opaque"})
		assert.Equal(t, uuid.Nil, s.User.ID)
		assert.True(t, s.ExpiresAt.IsZero())
	})

	t.Run("nil", func(t *testing.T) {
		assert.Nil(t, complete(nil))
	})
}
