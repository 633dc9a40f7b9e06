package state

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nhle/todosync/internal/model"
)

// spliceMove is the reference: remove at from, then insert at to.
func spliceMove(in []string, from, to int) []string {
	items := append([]string(nil), in...)
	moved := items[from]
	items = append(items[:from], items[from+1:]...)
	items = append(items[:to], append([]string{moved}, items[to:]...)...)
	return items
}

func TestMove_MatchesSpliceMove(t *testing.T) {
	names := []string{"A", "B", "C", "D", "E"}
	todos := make([]model.Todo, len(names))
	for i, n := range names {
		todos[i] = model.Todo{ID: int64(i + 1), Text: n}
	}

	pairs := [][2]int{
		{0, 0}, {2, 2}, {4, 4},
		{0, 4}, {4, 0},
		{0, 1}, {1, 0}, {3, 4}, {4, 3},
		{1, 3}, {3, 1}, {2, 0},
	}

	for _, p := range pairs {
		got := Move(todos, p[0], p[1])
		assert.Equal(t, spliceMove(names, p[0], p[1]), texts(got), "move %d to %d", p[0], p[1])
		assert.Equal(t, names, texts(todos), "input mutated by move %d to %d", p[0], p[1])
	}
}

func TestOrderBatch(t *testing.T) {
	todos := []model.Todo{{ID: 9}, {ID: 4}, {ID: 6}}
	assert.Equal(t, []model.OrderUpdate{
		{ID: 9, Order: 0},
		{ID: 4, Order: 1},
		{ID: 6, Order: 2},
	}, OrderBatch(todos))

	assert.Empty(t, OrderBatch(nil))
}

func TestArrange(t *testing.T) {
	todos := []model.Todo{{ID: 3, Text: "C"}, {ID: 1, Text: "A"}, {ID: 5, Text: "E"}, {ID: 2, Text: "B"}}

	got := arrange(todos, []int64{1, 2, 3, 4})
	assert.Equal(t, []string{"A", "B", "C", "E"}, texts(got))
}
