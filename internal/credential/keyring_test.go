package credential

import (
	"testing"
	"time"

	"github.com/99designs/keyring"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/todosync/internal/model"
)

func newTestStore() *Store {
	return New(keyring.NewArrayKeyring(nil))
}

func TestStore_GetMissing(t *testing.T) {
	s := newTestStore()

	_, err := s.Get("absent")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_SetGetDelete(t *testing.T) {
	s := newTestStore()

	require.NoError(t, s.Set("k", "v"))
	got, err := s.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)

	require.NoError(t, s.Delete("k"))
	_, err = s.Get("k")
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting twice is fine.
	assert.NoError(t, s.Delete("k"))
}

func TestStore_SessionRoundTrip(t *testing.T) {
	s := newTestStore()

	sess, err := s.LoadSession()
	require.NoError(t, err)
	assert.Nil(t, sess)

	want := &model.Session{
		AccessToken:  "access",
		RefreshToken: "refresh",
		ExpiresAt:    time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
		User:         model.User{ID: uuid.New(), Email: "ada@example.com"},
	}
	require.NoError(t, s.SaveSession(want))

	got, err := s.LoadSession()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want.AccessToken, got.AccessToken)
	assert.Equal(t, want.RefreshToken, got.RefreshToken)
	assert.True(t, want.ExpiresAt.Equal(got.ExpiresAt))
	assert.Equal(t, want.User, got.User)

	require.NoError(t, s.ClearSession())
	got, err = s.LoadSession()
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_LoadSessionCorrupt(t *testing.T) {
	s := newTestStore()
	require.NoError(t, s.Set(sessionKey, "{not json"))

	_, err := s.LoadSession()
	assert.ErrorContains(t, err, "parsing stored session")
}
