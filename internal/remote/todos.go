package remote

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/nhle/todosync/internal/model"
)

const todosPath = "/rest/v1/todos"

// TokenFunc returns the access token of the current session, or "" when
// signed out.
type TokenFunc func() string

// TodoTable accesses the "todos" table. Row-level security on the service
// scopes every query to the user owning the access token.
type TodoTable struct {
	c     *Client
	token TokenFunc
}

// NewTodoTable returns a table client that authenticates each request with
// the token returned by token.
func NewTodoTable(c *Client, token TokenFunc) *TodoTable {
	return &TodoTable{c: c, token: token}
}

// SelectAll returns every visible todo ordered by id ascending.
func (t *TodoTable) SelectAll(ctx context.Context) ([]model.Todo, error) {
	var todos []model.Todo
	err := t.c.do(ctx, request{
		method: http.MethodGet,
		path:   todosPath,
		query:  url.Values{"select": {"*"}, "order": {"id.asc"}},
		token:  t.token(),
	}, &todos)
	if err != nil {
		return nil, fmt.Errorf("selecting todos: %w", err)
	}
	if todos == nil {
		todos = []model.Todo{}
	}
	return todos, nil
}

// Insert creates a todo and returns the stored row.
func (t *TodoTable) Insert(ctx context.Context, todo model.NewTodo) (model.Todo, error) {
	var rows []model.Todo
	err := t.c.do(ctx, request{
		method: http.MethodPost,
		path:   todosPath,
		query:  url.Values{"select": {"*"}},
		token:  t.token(),
		prefer: "return=representation",
		body:   todo,
	}, &rows)
	if err != nil {
		return model.Todo{}, fmt.Errorf("inserting todo: %w", err)
	}
	if len(rows) == 0 {
		return model.Todo{}, fmt.Errorf("inserting todo: service returned no row")
	}
	return rows[0], nil
}

// Update patches the given fields of the todo with id.
func (t *TodoTable) Update(ctx context.Context, id int64, fields map[string]interface{}) error {
	err := t.c.do(ctx, request{
		method: http.MethodPatch,
		path:   todosPath,
		query:  idFilter(id),
		token:  t.token(),
		prefer: "return=minimal",
		body:   fields,
	}, nil)
	if err != nil {
		return fmt.Errorf("updating todo %d: %w", id, err)
	}
	return nil
}

// Delete removes the todo with id.
func (t *TodoTable) Delete(ctx context.Context, id int64) error {
	err := t.c.do(ctx, request{
		method: http.MethodDelete,
		path:   todosPath,
		query:  idFilter(id),
		token:  t.token(),
		prefer: "return=minimal",
	}, nil)
	if err != nil {
		return fmt.Errorf("deleting todo %d: %w", id, err)
	}
	return nil
}

// Upsert writes the order of many todos in one request. Rows are merged
// into existing ones by primary key.
func (t *TodoTable) Upsert(ctx context.Context, rows []model.OrderUpdate) error {
	if len(rows) == 0 {
		return nil
	}
	err := t.c.do(ctx, request{
		method: http.MethodPost,
		path:   todosPath,
		query:  url.Values{"on_conflict": {"id"}},
		token:  t.token(),
		prefer: "resolution=merge-duplicates,return=minimal",
		body:   rows,
	}, nil)
	if err != nil {
		return fmt.Errorf("upserting %d todo orders: %w", len(rows), err)
	}
	return nil
}

func idFilter(id int64) url.Values {
	return url.Values{"id": {"eq." + strconv.FormatInt(id, 10)}}
}
