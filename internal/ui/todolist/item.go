package todolist

import (
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/todosync/internal/model"
	"github.com/nhle/todosync/internal/theme"
)

// TodoItem wraps a model.Todo so it can be used in a bubbles/list.
type TodoItem struct {
	Todo model.Todo
}

// FilterValue returns the string used for fuzzy filtering.
func (i TodoItem) FilterValue() string { return i.Todo.Text }

// dragState is shared by reference between the Model and its delegate so
// the delegate sees the current gesture.
type dragState struct {
	active bool
}

// ItemDelegate implements list.ItemDelegate for rendering todos.
type ItemDelegate struct {
	drag *dragState
}

// Height returns the number of lines each item takes.
func (d ItemDelegate) Height() int { return 1 }

// Spacing returns the number of blank lines between items.
func (d ItemDelegate) Spacing() int { return 0 }

// Update handles per-item messages (unused).
func (d ItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

// Render draws a single todo line.
func (d ItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	ti, ok := item.(TodoItem)
	if !ok {
		return
	}
	fmt.Fprint(w, renderLine(ti.Todo, index == m.Index(), d.drag != nil && d.drag.active))
}

func renderLine(t model.Todo, selected, dragging bool) string {
	box := "[ ]"
	if t.Completed {
		box = "[x]"
	}

	text := t.Text
	switch {
	case t.Provisional():
		text = theme.PendingStyle.Render(text + " …")
	case t.Completed:
		text = theme.DoneStyle.Render(text)
	}
	line := box + " " + text

	switch {
	case selected && dragging:
		return theme.GrabbedItemStyle.Render("≡ " + line)
	case selected:
		return theme.SelectedItemStyle.Render(line)
	default:
		return theme.ListItemStyle.Render(line)
	}
}
