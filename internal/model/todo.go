package model

// Todo is a single task row in the remote "todos" table.
type Todo struct {
	ID        int64  `json:"id" db:"id"`
	Text      string `json:"text" db:"text"`
	Completed bool   `json:"completed" db:"completed"`
	Order     int    `json:"order" db:"order"`
	UserID    string `json:"user_id" db:"user_id"`
}

// Provisional reports whether the todo has not been acknowledged by the
// service yet. Provisional rows carry a negative local id.
func (t Todo) Provisional() bool {
	return t.ID < 0
}

// NewTodo is the insert payload for a todo. The id is assigned by the
// service and completed defaults to false.
type NewTodo struct {
	Text   string `json:"text"`
	UserID string `json:"user_id"`
	Order  int    `json:"order"`
}

// OrderUpdate is one row of a reorder batch upsert.
type OrderUpdate struct {
	ID    int64 `json:"id"`
	Order int   `json:"order"`
}
