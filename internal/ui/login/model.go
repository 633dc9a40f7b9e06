package login

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/todosync/internal/state"
	"github.com/nhle/todosync/internal/theme"
)

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	email    string
	password string
	signIn   bool
}

// Model is the sign-in / sign-up form shown while signed out.
type Model struct {
	form   *huh.Form
	fb     *formBindings
	width  int
	height int
}

// New creates the form.
func New(width, height int) Model {
	m := Model{
		fb:     &formBindings{signIn: true},
		width:  width,
		height: height,
	}
	m.form = m.buildForm()
	return m
}

// Init focuses the first field.
func (m Model) Init() tea.Cmd {
	return m.form.Init()
}

// Reset rebuilds the form for another attempt. The email is kept and the
// password cleared.
func (m *Model) Reset() tea.Cmd {
	m.fb.password = ""
	m.fb.signIn = true
	m.form = m.buildForm()
	return m.form.Init()
}

// Update forwards msg to the form. Once the form is submitted it returns
// the sign-in or sign-up intent and a fresh form.
func (m Model) Update(msg tea.Msg) (Model, state.Intent, tea.Cmd) {
	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		intent := m.intent()
		cmd := m.Reset()
		return m, intent, cmd
	case huh.StateAborted:
		cmd := m.Reset()
		return m, nil, cmd
	}
	return m, nil, cmd
}

func (m Model) intent() state.Intent {
	if m.fb.signIn {
		return state.SignInRequested{Email: m.fb.email, Password: m.fb.password}
	}
	return state.SignUpRequested{Email: m.fb.email, Password: m.fb.password}
}

// View renders the form in a panel.
func (m Model) View() string {
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1).
		Render("Sign in to todosync")

	return theme.PanelStyle.
		Width(m.formWidth() + 4).
		Render(title + "\n" + m.form.View())
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.form = m.form.WithWidth(m.formWidth())
}

func (m *Model) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Email").
				Placeholder("you@example.com").
				Value(&m.fb.email),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&m.fb.password),
			huh.NewConfirm().
				Affirmative("Sign in").
				Negative("Sign up").
				Value(&m.fb.signIn),
		),
	).WithWidth(m.formWidth()).WithShowHelp(false)
}

func (m Model) formWidth() int {
	w := m.width - 8
	if w > 50 {
		w = 50
	}
	if w < 20 {
		w = 20
	}
	return w
}
