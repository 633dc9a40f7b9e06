package todolist

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/todosync/internal/keys"
	"github.com/nhle/todosync/internal/model"
	"github.com/nhle/todosync/internal/state"
)

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

var (
	enter = tea.KeyMsg{Type: tea.KeyEnter}
	esc   = tea.KeyMsg{Type: tea.KeyEsc}
	down  = tea.KeyMsg{Type: tea.KeyDown}
)

func abc() state.State {
	st := state.New(false)
	st.Session = &model.Session{AccessToken: "t"}
	st.Todos = []model.Todo{
		{ID: 1, Text: "A"},
		{ID: 2, Text: "B", Completed: true},
		{ID: 3, Text: "C"},
	}
	return st
}

func newSynced(st state.State) Model {
	m := New(keys.DefaultKeyMap(), 80, 20)
	m.Sync(st)
	return m
}

func TestModel_ToggleAndDeleteSelected(t *testing.T) {
	m := newSynced(abc())

	m, intent, _ := m.Update(runes("x"))
	assert.Equal(t, state.ToggleRequested{ID: 1}, intent)

	m, _, _ = m.Update(down)
	_, intent, _ = m.Update(runes("d"))
	assert.Equal(t, state.DeleteRequested{ID: 2}, intent)
}

func TestModel_ActionsOnEmptyList(t *testing.T) {
	st := abc()
	st.Todos = nil
	m := newSynced(st)

	for _, k := range []tea.KeyMsg{runes("x"), runes("d"), runes("m")} {
		var intent state.Intent
		m, intent, _ = m.Update(k)
		assert.Nil(t, intent)
	}
	assert.False(t, m.Dragging())
	assert.Contains(t, m.View(), "Nothing to do")
}

func TestModel_DragAndDrop(t *testing.T) {
	m := newSynced(abc())

	m, intent, _ := m.Update(runes("m"))
	assert.Nil(t, intent)
	require.True(t, m.Dragging())

	m, _, _ = m.Update(down)
	m, _, _ = m.Update(down)
	// Already at the bottom.
	m, _, _ = m.Update(down)

	items := m.list.Items()
	require.Len(t, items, 3)
	assert.Equal(t, "A", items[2].(TodoItem).Todo.Text)

	m, intent, _ = m.Update(enter)
	dest := 2
	assert.Equal(t, state.ReorderRequested{Source: 0, Destination: &dest}, intent)
	assert.False(t, m.Dragging())
}

func TestModel_DragCancelled(t *testing.T) {
	m := newSynced(abc())

	m, _, _ = m.Update(runes("m"))
	m, _, _ = m.Update(down)
	m, intent, _ := m.Update(esc)

	assert.Equal(t, state.ReorderRequested{Source: 0}, intent)
	assert.False(t, m.Dragging())
	assert.Equal(t, "A", m.list.Items()[0].(TodoItem).Todo.Text)
	assert.Equal(t, 0, m.list.Index())
}

func TestModel_DragEndsWhenListChanges(t *testing.T) {
	m := newSynced(abc())
	m, _, _ = m.Update(runes("m"))
	require.True(t, m.Dragging())

	st := abc()
	st.Todos = st.Todos[:2]
	m.Sync(st)
	assert.False(t, m.Dragging())
	assert.Len(t, m.list.Items(), 2)
}

func TestModel_TypingAndAdding(t *testing.T) {
	st := abc()
	m := newSynced(st)

	m, intent, _ := m.Update(runes("a"))
	assert.Nil(t, intent)
	require.True(t, m.Typing())

	m, intent, _ = m.Update(runes("milk"))
	assert.Equal(t, state.DraftChanged{Text: "milk"}, intent)
	st, _ = state.Reduce(st, intent)
	m.Sync(st)

	// Keys that are bindings elsewhere are text here.
	m, intent, _ = m.Update(runes("x"))
	assert.Equal(t, state.DraftChanged{Text: "milkx"}, intent)

	m, intent, _ = m.Update(enter)
	assert.Equal(t, state.AddRequested{Text: "milkx"}, intent)

	m, _, _ = m.Update(esc)
	assert.False(t, m.Typing())
}

func TestModel_SyncClearsDraft(t *testing.T) {
	st := abc()
	st.Draft = "milk"
	m := newSynced(st)
	assert.Equal(t, "milk", m.input.Value())

	st.Draft = ""
	m.Sync(st)
	assert.Empty(t, m.input.Value())
}

func TestModel_View(t *testing.T) {
	m := newSynced(abc())
	view := m.View()
	assert.Contains(t, view, "A")
	assert.Contains(t, view, "[x]")
	assert.Contains(t, view, "What needs to be done?")
}
