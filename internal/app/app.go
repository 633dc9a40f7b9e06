package app

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/nhle/todosync/internal/keys"
	"github.com/nhle/todosync/internal/session"
	"github.com/nhle/todosync/internal/state"
	appsync "github.com/nhle/todosync/internal/sync"
	"github.com/nhle/todosync/internal/theme"
	"github.com/nhle/todosync/internal/ui"
	helpview "github.com/nhle/todosync/internal/ui/help"
	"github.com/nhle/todosync/internal/ui/login"
	"github.com/nhle/todosync/internal/ui/todolist"
)

const title = "todosync"

// Effects turns an effect into a command whose message reports its outcome.
type Effects interface {
	Cmd(eff state.Effect) tea.Cmd
}

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewLogin ViewState = iota
	ViewTodos
	ViewHelp
)

// Model is the root Bubble Tea model. It owns the application state and
// routes every change through state.Reduce.
type Model struct {
	st      state.State
	effects Effects
	sub     *session.Subscription
	logger  *log.Logger

	keys     *keys.KeyMap
	layout   ui.Layout
	login    login.Model
	todos    todolist.Model
	helpView helpview.Model
	showHelp bool
	ready    bool
}

// New creates the root model. sub delivers auth state changes; it may be
// nil when nothing needs listening to.
func New(st state.State, effects Effects, sub *session.Subscription, logger *log.Logger) Model {
	if logger == nil {
		logger = log.Default()
	}
	k := keys.DefaultKeyMap()
	theme.SetDark(st.Dark)

	m := Model{
		st:       st,
		effects:  effects,
		sub:      sub,
		logger:   logger,
		keys:     k,
		login:    login.New(80, 24),
		todos:    todolist.New(k, 80, 24),
		helpView: helpview.New(k, 80, 24),
	}
	m.todos.Sync(st)
	return m
}

// State returns the current application state.
func (m Model) State() state.State {
	return m.st
}

// CurrentView reports which screen is shown.
func (m Model) CurrentView() ViewState {
	switch {
	case !m.st.LoggedIn():
		return ViewLogin
	case m.showHelp:
		return ViewHelp
	default:
		return ViewTodos
	}
}

// Init starts listening for auth events and focuses the login form.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.login.Init()}
	if m.sub != nil {
		cmds = append(cmds, appsync.Listen(m.sub))
	}
	return tea.Batch(cmds...)
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		w, h := m.layout.ContentWidth(), m.layout.ContentHeight()
		m.login.SetSize(w, h)
		m.todos.SetSize(w, h)
		m.helpView.SetSize(w, h)
		return m, nil

	case appsync.AuthEventMsg:
		m.logger.Debug("auth event", "kind", msg.Event.Kind)
		var cmd tea.Cmd
		m, cmd = m.dispatch(msg.Intent())
		return m, tea.Batch(cmd, appsync.Listen(m.sub))

	case appsync.ResultMsg:
		return m.dispatch(msg.Intent)

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m.forward(msg)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m, tea.Quit
	}

	// Any key dismisses a pending alert.
	if m.st.Alert != "" {
		return m.dispatch(state.AlertDismissed{})
	}

	switch m.CurrentView() {
	case ViewLogin:
		var intent state.Intent
		var cmd tea.Cmd
		m.login, intent, cmd = m.login.Update(msg)
		if intent == nil {
			return m, cmd
		}
		m2, effCmd := m.dispatch(intent)
		return m2, tea.Batch(cmd, effCmd)

	case ViewHelp:
		if key.Matches(msg, m.keys.Help) || key.Matches(msg, m.keys.Back) {
			m.showHelp = false
		}
		return m, nil
	}

	// Global bindings yield to the input and to a drag in progress.
	if !m.todos.Typing() && !m.todos.Dragging() {
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.showHelp = true
			return m, nil
		case key.Matches(msg, m.keys.Theme):
			return m.dispatch(state.ThemeToggled{})
		case key.Matches(msg, m.keys.Logout):
			return m.dispatch(state.SignOutRequested{})
		case key.Matches(msg, m.keys.Refresh):
			return m.dispatch(state.FetchRequested{})
		}
	}

	var intent state.Intent
	var cmd tea.Cmd
	m.todos, intent, cmd = m.todos.Update(msg)
	if intent == nil {
		return m, cmd
	}
	m2, effCmd := m.dispatch(intent)
	return m2, tea.Batch(cmd, effCmd)
}

// forward hands non-key messages (cursor blinks, form internals) to the
// active view.
func (m Model) forward(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	if m.CurrentView() == ViewLogin {
		var intent state.Intent
		m.login, intent, cmd = m.login.Update(msg)
		if intent != nil {
			m2, effCmd := m.dispatch(intent)
			return m2, tea.Batch(cmd, effCmd)
		}
		return m, cmd
	}
	m.todos, _, cmd = m.todos.Update(msg)
	return m, cmd
}

// dispatch is the single place state changes.
func (m Model) dispatch(intent state.Intent) (Model, tea.Cmd) {
	wasLoggedIn := m.st.LoggedIn()

	var effects []state.Effect
	m.st, effects = state.Reduce(m.st, intent)

	theme.SetDark(m.st.Dark)
	m.todos.Sync(m.st)
	if !m.st.LoggedIn() {
		m.showHelp = false
	}

	cmds := make([]tea.Cmd, 0, len(effects)+1)
	if wasLoggedIn && !m.st.LoggedIn() {
		cmds = append(cmds, m.login.Reset())
	}
	for _, eff := range effects {
		m.logger.Debug("effect", "type", effectName(eff))
		cmds = append(cmds, m.effects.Cmd(eff))
	}
	return m, tea.Batch(cmds...)
}

// View renders the header, the active screen and the status bar.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.layout.RenderHeader(title, m.headerStatus())
	statusBar := m.layout.RenderStatusBar(m.keyHints(), m.st.Alert)
	return m.layout.RenderWithFrame(header, m.renderContent(), statusBar)
}

func (m Model) renderContent() string {
	switch m.CurrentView() {
	case ViewLogin:
		return m.layout.Center(m.login.View())
	case ViewHelp:
		return m.helpView.View()
	default:
		return m.todos.View()
	}
}

func (m Model) headerStatus() string {
	if !m.st.LoggedIn() {
		return m.st.Theme()
	}
	return m.st.Session.User.Email + " · " + m.st.Theme()
}

func (m Model) keyHints() string {
	switch {
	case !m.st.LoggedIn():
		return "tab: next field • enter: submit • ctrl+c: quit"
	case m.todos.Typing():
		return "enter: add • esc: done typing"
	case m.todos.Dragging():
		return "j/k: move • enter: drop here • esc: cancel"
	}
	return m.helpView.ShortView()
}

func effectName(eff state.Effect) string {
	switch eff.(type) {
	case state.SignIn:
		return "sign_in"
	case state.SignUp:
		return "sign_up"
	case state.SignOut:
		return "sign_out"
	case state.FetchAll:
		return string(state.OpFetch)
	case state.Insert:
		return string(state.OpInsert)
	case state.Update:
		return string(state.OpUpdate)
	case state.Delete:
		return string(state.OpDelete)
	case state.Upsert:
		return string(state.OpUpsert)
	}
	return "unknown"
}
