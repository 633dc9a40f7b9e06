package state

import "github.com/nhle/todosync/internal/model"

// Move returns a copy of todos with the item at from removed and reinserted
// at to. Both indices must be in range.
func Move(todos []model.Todo, from, to int) []model.Todo {
	out := make([]model.Todo, 0, len(todos))
	out = append(out, todos[:from]...)
	out = append(out, todos[from+1:]...)

	moved := todos[from]
	out = append(out, model.Todo{})
	copy(out[to+1:], out[to:])
	out[to] = moved
	return out
}

// OrderBatch assigns each todo its index as order.
func OrderBatch(todos []model.Todo) []model.OrderUpdate {
	rows := make([]model.OrderUpdate, len(todos))
	for i, t := range todos {
		rows[i] = model.OrderUpdate{ID: t.ID, Order: i}
	}
	return rows
}

func indexOf(todos []model.Todo, id int64) int {
	for i, t := range todos {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func ids(todos []model.Todo) []int64 {
	out := make([]int64, len(todos))
	for i, t := range todos {
		out[i] = t.ID
	}
	return out
}

// arrange orders todos by their position in order. Todos missing from order
// keep their relative sequence after the known ones.
func arrange(todos []model.Todo, order []int64) []model.Todo {
	pos := make(map[int64]int, len(order))
	for i, id := range order {
		pos[id] = i
	}

	placed := make([]model.Todo, len(order))
	filled := make([]bool, len(order))
	var rest []model.Todo
	for _, t := range todos {
		if i, ok := pos[t.ID]; ok {
			placed[i] = t
			filled[i] = true
			continue
		}
		rest = append(rest, t)
	}

	out := make([]model.Todo, 0, len(todos))
	for i, t := range placed {
		if filled[i] {
			out = append(out, t)
		}
	}
	return append(out, rest...)
}
