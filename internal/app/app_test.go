package app

import (
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/todosync/internal/model"
	"github.com/nhle/todosync/internal/session"
	"github.com/nhle/todosync/internal/state"
	appsync "github.com/nhle/todosync/internal/sync"
)

type recorder struct {
	effects []state.Effect
}

func (r *recorder) Cmd(eff state.Effect) tea.Cmd {
	r.effects = append(r.effects, eff)
	return nil
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func newTestModel(t *testing.T) (Model, *recorder) {
	t.Helper()
	rec := &recorder{}
	m := New(state.New(false), rec, nil, nil)
	return update(t, m, tea.WindowSizeMsg{Width: 100, Height: 30}), rec
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	out, ok := next.(Model)
	require.True(t, ok)
	return out
}

func testSession() *model.Session {
	return &model.Session{
		AccessToken: "token",
		User:        model.User{ID: uuid.New(), Email: "ada@example.com"},
	}
}

func signedIn(t *testing.T) (Model, *recorder) {
	t.Helper()
	m, rec := newTestModel(t)
	m = update(t, m, appsync.AuthEventMsg{Event: session.Event{Kind: session.SignedIn, Session: testSession()}})
	m = update(t, m, appsync.ResultMsg{Intent: state.TodosFetched{Todos: []model.Todo{
		{ID: 1, Text: "Buy milk"},
		{ID: 2, Text: "Walk dog", Completed: true, Order: 1},
	}}})
	return m, rec
}

func TestView_NotReady(t *testing.T) {
	m := New(state.New(false), &recorder{}, nil, nil)
	assert.Equal(t, "Loading...", m.View())
}

func TestView_SignedOutShowsOnlyLoginForm(t *testing.T) {
	m, rec := newTestModel(t)

	assert.Equal(t, ViewLogin, m.CurrentView())
	view := m.View()
	assert.Contains(t, view, "Email")
	assert.Contains(t, view, "Password")
	assert.Contains(t, view, "Sign in")
	assert.NotContains(t, view, "What needs to be done?")
	assert.NotContains(t, view, "Nothing to do")
	assert.NotContains(t, view, "log out")
	assert.Empty(t, rec.effects)
}

func TestUpdate_SignedInFetchesAndRenders(t *testing.T) {
	m, rec := signedIn(t)

	require.Len(t, rec.effects, 1)
	assert.Equal(t, state.FetchAll{}, rec.effects[0])
	assert.Equal(t, ViewTodos, m.CurrentView())

	view := m.View()
	assert.Contains(t, view, "ada@example.com")
	assert.Contains(t, view, "Buy milk")
	assert.Contains(t, view, "Walk dog")
	assert.NotContains(t, view, "Password")
}

func TestUpdate_SignInFailureShowsAlert(t *testing.T) {
	m, _ := newTestModel(t)

	m = update(t, m, appsync.ResultMsg{Intent: state.AuthFailed{Err: errors.New("Invalid login credentials")}})
	assert.Nil(t, m.State().Session)
	assert.Contains(t, m.View(), "Invalid login credentials")

	m = update(t, m, runes("z"))
	assert.Empty(t, m.State().Alert)
	assert.Equal(t, ViewLogin, m.CurrentView())
}

func TestUpdate_ThemeToggle(t *testing.T) {
	m, _ := signedIn(t)
	assert.Contains(t, m.View(), "ada@example.com · light")

	m = update(t, m, runes("t"))
	assert.True(t, m.State().Dark)
	assert.Contains(t, m.View(), "ada@example.com · dark")
}

func TestUpdate_ToggleTodoIssuesUpdate(t *testing.T) {
	m, rec := signedIn(t)

	m = update(t, m, runes("x"))
	assert.True(t, m.State().Todos[0].Completed)
	require.Len(t, rec.effects, 2)
	upd, ok := rec.effects[1].(state.Update)
	require.True(t, ok)
	assert.Equal(t, int64(1), upd.ID)
	assert.True(t, upd.Completed)
}

func TestUpdate_TypingSwallowsGlobalKeys(t *testing.T) {
	m, _ := signedIn(t)

	m = update(t, m, runes("a"))
	m = update(t, m, runes("q"))
	m = update(t, m, runes("t"))

	assert.Equal(t, "qt", m.State().Draft)
	assert.False(t, m.State().Dark)
}

func TestUpdate_SignOut(t *testing.T) {
	m, rec := signedIn(t)

	m = update(t, m, runes("L"))
	assert.Equal(t, state.SignOut{}, rec.effects[len(rec.effects)-1])

	m = update(t, m, appsync.AuthEventMsg{Event: session.Event{Kind: session.SignedOut}})
	assert.Equal(t, ViewLogin, m.CurrentView())
	assert.Empty(t, m.State().Todos)
	assert.NotContains(t, m.View(), "Buy milk")
}

func TestUpdate_HelpOverlay(t *testing.T) {
	m, _ := signedIn(t)

	m = update(t, m, runes("?"))
	assert.Equal(t, ViewHelp, m.CurrentView())

	m = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, ViewTodos, m.CurrentView())
}

func TestUpdate_Quit(t *testing.T) {
	m, _ := signedIn(t)

	_, cmd := m.Update(runes("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}
