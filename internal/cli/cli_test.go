package cli

import (
	"bytes"
	"net/http"
	"path/filepath"
	"strings"
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/todosync/internal/credential"
	"github.com/nhle/todosync/internal/model"
	"github.com/nhle/todosync/tests/testutil"
)

type fixture struct {
	backend    *testutil.Backend
	user       model.User
	configPath string
	ring       keyring.Keyring
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	b := testutil.NewBackend(t)
	user := b.CreateUser(t, "ada@example.com", "hunter22")

	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, model.SaveConfig(configPath, &model.AppConfig{
		Backend: model.BackendConfig{URL: b.URL, AnonKey: b.AnonKey},
		Display: model.DisplayConfig{Theme: model.ThemeLight},
		Log:     model.LogConfig{Level: "debug", File: filepath.Join(dir, "todosync.log")},
		Session: model.SessionConfig{RefreshMarginSec: 60},
	}))

	return fixture{backend: b, user: user, configPath: configPath, ring: testutil.NewKeyring()}
}

func (f fixture) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	a := &App{openCredentials: func() (*credential.Store, error) {
		return credential.New(f.ring), nil
	}}
	cmd := newRootCmd(a)

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--config", f.configPath}, args...))

	err := cmd.Execute()
	return out.String(), err
}

func (f fixture) login(t *testing.T) {
	t.Helper()
	out, err := f.run(t, "hunter22\n", "auth", "login", "--email", "ada@example.com", "--password-stdin")
	require.NoError(t, err)
	require.Contains(t, out, "Signed in as ada@example.com")
}

func TestAuth_LoginStatusLogout(t *testing.T) {
	f := newFixture(t)

	out, err := f.run(t, "", "auth", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Not signed in.")

	f.login(t)

	out, err = f.run(t, "", "auth", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed in as ada@example.com")
	assert.Contains(t, out, f.user.ID.String())

	out, err = f.run(t, "", "auth", "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed out.")

	out, err = f.run(t, "", "auth", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Not signed in.")
}

func TestAuth_LogoutFailureKeepsSession(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	f.backend.FailNext(http.MethodPost, "/auth/v1/logout", http.StatusInternalServerError, "logout unavailable")
	out, err := f.run(t, "", "auth", "logout")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session kept")
	assert.Contains(t, err.Error(), "logout unavailable")
	assert.NotContains(t, out, "Signed out.")

	out, err = f.run(t, "", "auth", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed in as ada@example.com")
}

func TestAuth_RejectedStoredSessionIsDropped(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	f.backend.FailNext(http.MethodGet, "/auth/v1/user", http.StatusUnauthorized, "invalid JWT")
	out, err := f.run(t, "", "auth", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Not signed in.")

	out, err = f.run(t, "", "auth", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Not signed in.")
}

func TestAuth_StoredSessionKeptWhenUserCheckFails(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	f.backend.FailNext(http.MethodGet, "/auth/v1/user", http.StatusServiceUnavailable, "try again later")
	out, err := f.run(t, "", "auth", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed in as ada@example.com")
}

func TestAuth_LoginWrongPassword(t *testing.T) {
	f := newFixture(t)

	_, err := f.run(t, "wrong\n", "auth", "login", "--email", "ada@example.com", "--password-stdin")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid login credentials")
}

func TestAuth_LoginRequiresEmailWithStdin(t *testing.T) {
	f := newFixture(t)

	_, err := f.run(t, "hunter22\n", "auth", "login", "--password-stdin")
	assert.ErrorContains(t, err, "--email is required")
}

func TestAuth_Signup(t *testing.T) {
	f := newFixture(t)

	out, err := f.run(t, "s3cret-pass\n", "auth", "signup", "--email", "grace@example.com", "--password-stdin")
	require.NoError(t, err)
	assert.Contains(t, out, "Check your email for the confirmation link!")

	out, err = f.run(t, "", "auth", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Not signed in.")
}

func TestTodos_RequireSignIn(t *testing.T) {
	f := newFixture(t)

	_, err := f.run(t, "", "ls")
	assert.ErrorIs(t, err, errNotSignedIn)
}

func TestTodos_ListAddDoneMoveRemove(t *testing.T) {
	f := newFixture(t)
	f.backend.SeedTodos(t, f.user.ID.String(), "Buy milk", "Walk dog")
	f.login(t)

	out, err := f.run(t, "", "ls")
	require.NoError(t, err)
	assert.Equal(t, "1. [ ] Buy milk\n2. [ ] Walk dog\n", out)

	out, err = f.run(t, "", "add", "Call", "mom")
	require.NoError(t, err)
	assert.Contains(t, out, "Added 3. Call mom")

	out, err = f.run(t, "", "done", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "Completed 2. Walk dog")

	out, err = f.run(t, "", "mv", "3", "1")
	require.NoError(t, err)
	assert.Equal(t, "1. [ ] Call mom\n2. [ ] Buy milk\n3. [x] Walk dog\n", out)

	upserts := f.backend.Upserts()
	require.Len(t, upserts, 1)
	assert.Len(t, upserts[0], 3)

	// A fresh fetch lists rows by id.
	out, err = f.run(t, "", "rm", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted Buy milk")

	out, err = f.run(t, "", "ls")
	require.NoError(t, err)
	assert.Equal(t, "1. [x] Walk dog\n2. [ ] Call mom\n", out)
}

func TestTodos_MoveHelpMentionsFetchOrder(t *testing.T) {
	f := newFixture(t)

	out, err := f.run(t, "", "mv", "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "fetched in id order")
	assert.Contains(t, out, "later ls shows todos by id")
}

func TestTodos_EmptyList(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	out, err := f.run(t, "", "ls")
	require.NoError(t, err)
	assert.Equal(t, "Nothing to do.\n", out)
}

func TestTodos_InvalidPosition(t *testing.T) {
	f := newFixture(t)
	f.backend.SeedTodos(t, f.user.ID.String(), "Buy milk")
	f.login(t)

	_, err := f.run(t, "", "done", "2")
	assert.ErrorContains(t, err, "out of range")

	_, err = f.run(t, "", "rm", "first")
	assert.ErrorContains(t, err, "invalid position")
}

func TestTodos_WriteFailureReported(t *testing.T) {
	f := newFixture(t)
	f.backend.SeedTodos(t, f.user.ID.String(), "Buy milk")
	f.login(t)

	f.backend.FailNext(http.MethodDelete, "/rest/v1/todos", http.StatusServiceUnavailable, "try again later")
	_, err := f.run(t, "", "rm", "1")
	assert.ErrorContains(t, err, "try again later")

	assert.Len(t, f.backend.Todos(t, f.user.ID.String()), 1)
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "todosync", "config.yaml")
	a := &App{openCredentials: func() (*credential.Store, error) {
		return credential.New(testutil.NewKeyring()), nil
	}}

	run := func(args ...string) (string, error) {
		cmd := newRootCmd(a)
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetErr(&out)
		cmd.SetArgs(append([]string{"--config", path}, args...))
		err := cmd.Execute()
		return out.String(), err
	}

	out, err := run("config", "init", "--url", "https://abc.example.co/", "--anon-key", "anon", "--theme", "dark")
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote "+path)

	cfg, err := model.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "https://abc.example.co", cfg.Backend.URL)
	assert.Equal(t, "anon", cfg.Backend.AnonKey)
	assert.Equal(t, model.ThemeDark, cfg.Display.Theme)

	_, err = run("config", "init", "--url", "https://other.example.co")
	assert.ErrorContains(t, err, "already exists")
}

func TestPosition(t *testing.T) {
	i, err := position("1", 3)
	require.NoError(t, err)
	assert.Equal(t, 0, i)

	_, err = position("0", 3)
	assert.Error(t, err)
	_, err = position("4", 3)
	assert.Error(t, err)
}
