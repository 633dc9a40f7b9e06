package todolist

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/todosync/internal/keys"
	"github.com/nhle/todosync/internal/model"
	"github.com/nhle/todosync/internal/state"
	"github.com/nhle/todosync/internal/theme"
)

// inputHeight is the framed new-todo input plus its margin.
const inputHeight = 4

// Model is the signed-in screen: the new-todo input above the ordered list.
//
// A drag is a keyboard gesture: grab the selected row, move it with the
// navigation keys while the list previews the result, then drop it or
// cancel.
type Model struct {
	list  list.Model
	input textinput.Model
	keys  *keys.KeyMap
	drag  *dragState

	todos   []model.Todo
	grabbed int
	target  int

	width  int
	height int
}

// New creates the todo list view.
func New(k *keys.KeyMap, width, height int) Model {
	drag := &dragState{}
	l := list.New([]list.Item{}, ItemDelegate{drag: drag}, width, listHeight(height))
	l.Title = "Todos"
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.Styles.Title = theme.HeaderStyle
	l.KeyMap.Quit.SetEnabled(false)
	l.KeyMap.ForceQuit.SetEnabled(false)
	l.KeyMap.ShowFullHelp.SetEnabled(false)
	l.KeyMap.CloseFullHelp.SetEnabled(false)

	in := textinput.New()
	in.Placeholder = "What needs to be done?"
	in.Prompt = "+ "
	in.Width = width - 8

	return Model{
		list:   l,
		input:  in,
		keys:   k,
		drag:   drag,
		width:  width,
		height: height,
	}
}

// Typing reports whether the new-todo input has focus.
func (m Model) Typing() bool {
	return m.input.Focused()
}

// Dragging reports whether a row is grabbed.
func (m Model) Dragging() bool {
	return m.drag.active
}

// Sync shows st's todos and draft. A drag in progress survives only if the
// list still holds the same items.
func (m *Model) Sync(st state.State) {
	same := sameIDs(m.todos, st.Todos)
	m.todos = st.Todos

	if m.drag.active && !same {
		m.endDrag()
	}
	if m.drag.active {
		m.preview()
	} else {
		m.setItems(m.todos)
	}

	if m.input.Value() != st.Draft {
		m.input.SetValue(st.Draft)
		m.input.CursorEnd()
	}
}

// Update handles a message and returns the intent it produced, if any.
func (m Model) Update(msg tea.Msg) (Model, state.Intent, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		var cmd tea.Cmd
		if m.input.Focused() {
			m.input, cmd = m.input.Update(msg)
			return m, nil, cmd
		}
		m.list, cmd = m.list.Update(msg)
		return m, nil, cmd
	}

	switch {
	case m.input.Focused():
		return m.handleInputKeys(keyMsg)
	case m.drag.active:
		return m.handleDragKeys(keyMsg)
	}
	return m.handleNormalKeys(keyMsg)
}

func (m Model) handleInputKeys(msg tea.KeyMsg) (Model, state.Intent, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Submit):
		return m, state.AddRequested{Text: m.input.Value()}, nil
	case key.Matches(msg, m.keys.Back):
		m.input.Blur()
		return m, nil, nil
	}

	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if after := m.input.Value(); after != before {
		return m, state.DraftChanged{Text: after}, cmd
	}
	return m, nil, cmd
}

func (m Model) handleDragKeys(msg tea.KeyMsg) (Model, state.Intent, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Up):
		if m.target > 0 {
			m.target--
			m.preview()
		}
	case key.Matches(msg, m.keys.Down):
		if m.target < len(m.todos)-1 {
			m.target++
			m.preview()
		}
	case key.Matches(msg, m.keys.Drop):
		dest := m.target
		intent := state.ReorderRequested{Source: m.grabbed, Destination: &dest}
		m.endDrag()
		return m, intent, nil
	case key.Matches(msg, m.keys.Back):
		// Dropped outside the list.
		intent := state.ReorderRequested{Source: m.grabbed}
		m.endDrag()
		m.setItems(m.todos)
		m.list.Select(intent.Source)
		return m, intent, nil
	}
	return m, nil, nil
}

func (m Model) handleNormalKeys(msg tea.KeyMsg) (Model, state.Intent, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Add):
		return m, nil, m.input.Focus()

	case key.Matches(msg, m.keys.Toggle):
		if t, ok := m.selected(); ok {
			return m, state.ToggleRequested{ID: t.ID}, nil
		}
		return m, nil, nil

	case key.Matches(msg, m.keys.Delete):
		if t, ok := m.selected(); ok {
			return m, state.DeleteRequested{ID: t.ID}, nil
		}
		return m, nil, nil

	case key.Matches(msg, m.keys.Grab):
		if len(m.todos) == 0 {
			return m, nil, nil
		}
		m.drag.active = true
		m.grabbed = m.list.Index()
		m.target = m.grabbed
		return m, nil, nil
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, nil, cmd
}

// View renders the input above the list.
func (m Model) View() string {
	inputStyle := theme.InputStyle
	if m.input.Focused() {
		inputStyle = theme.FocusedInputStyle
	}
	input := inputStyle.Width(m.width - 4).Render(m.input.View())

	var body string
	if len(m.todos) == 0 {
		body = theme.HelpStyle.PaddingLeft(2).Render("Nothing to do. Press a to add a todo.")
	} else {
		body = m.list.View()
	}
	return lipgloss.JoinVertical(lipgloss.Left, input, "", body)
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, listHeight(height))
	m.input.Width = width - 8
}

func (m Model) selected() (model.Todo, bool) {
	ti, ok := m.list.SelectedItem().(TodoItem)
	if !ok {
		return model.Todo{}, false
	}
	return ti.Todo, true
}

func (m *Model) preview() {
	m.setItems(state.Move(m.todos, m.grabbed, m.target))
	m.list.Select(m.target)
}

func (m *Model) endDrag() {
	m.drag.active = false
}

func (m *Model) setItems(todos []model.Todo) {
	items := make([]list.Item, len(todos))
	for i, t := range todos {
		items[i] = TodoItem{Todo: t}
	}
	m.list.SetItems(items)
}

func sameIDs(a, b []model.Todo) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID {
			return false
		}
	}
	return true
}

func listHeight(height int) int {
	if h := height - inputHeight; h > 0 {
		return h
	}
	return 1
}
