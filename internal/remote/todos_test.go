package remote_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/todosync/internal/model"
	"github.com/nhle/todosync/internal/remote"
	"github.com/nhle/todosync/tests/testutil"
)

type tableFixture struct {
	backend *testutil.Backend
	user    model.User
	table   *remote.TodoTable
}

func newTableFixture(t *testing.T) tableFixture {
	t.Helper()
	b := testutil.NewBackend(t)
	user := b.CreateUser(t, "ada@example.com", "hunter22")
	token := b.IssueToken(t, user, time.Hour)
	table := remote.NewTodoTable(remote.NewClient(b.URL, b.AnonKey), func() string { return token })
	return tableFixture{backend: b, user: user, table: table}
}

func TestTodoTable_SelectAllOrdersByID(t *testing.T) {
	f := newTableFixture(t)
	seeded := f.backend.SeedTodos(t, f.user.ID.String(), "milk", "eggs", "bread")

	other := f.backend.CreateUser(t, "bob@example.com", "hunter22")
	f.backend.SeedTodos(t, other.ID.String(), "not mine")

	got, err := f.table.SelectAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, seeded, got)

	reqs := f.backend.Requests()
	require.NotEmpty(t, reqs)
	assert.Equal(t, "order=id.asc&select=%2A", reqs[len(reqs)-1].Query)
}

func TestTodoTable_SelectAllEmpty(t *testing.T) {
	f := newTableFixture(t)

	got, err := f.table.SelectAll(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestTodoTable_AnonymousSeesNothing(t *testing.T) {
	f := newTableFixture(t)
	f.backend.SeedTodos(t, f.user.ID.String(), "milk")

	anon := remote.NewTodoTable(remote.NewClient(f.backend.URL, f.backend.AnonKey), func() string { return "" })
	got, err := anon.SelectAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestTodoTable_Insert(t *testing.T) {
	f := newTableFixture(t)

	got, err := f.table.Insert(context.Background(), model.NewTodo{
		Text:   "milk",
		UserID: f.user.ID.String(),
		Order:  0,
	})
	require.NoError(t, err)
	assert.Positive(t, got.ID)
	assert.Equal(t, "milk", got.Text)
	assert.False(t, got.Completed)
	assert.Equal(t, f.user.ID.String(), got.UserID)

	assert.Equal(t, []model.Todo{got}, f.backend.Todos(t, f.user.ID.String()))
}

func TestTodoTable_InsertForAnotherUserIsRejected(t *testing.T) {
	f := newTableFixture(t)
	other := f.backend.CreateUser(t, "bob@example.com", "hunter22")

	_, err := f.table.Insert(context.Background(), model.NewTodo{Text: "x", UserID: other.ID.String()})

	var apiErr *remote.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
	assert.Equal(t, "42501", apiErr.Code)
	assert.Empty(t, f.backend.Todos(t, other.ID.String()))
}

func TestTodoTable_UpdateAndDelete(t *testing.T) {
	f := newTableFixture(t)
	ctx := context.Background()
	seeded := f.backend.SeedTodos(t, f.user.ID.String(), "milk", "eggs")

	require.NoError(t, f.table.Update(ctx, seeded[0].ID, map[string]interface{}{"completed": true}))
	got := f.backend.Todos(t, f.user.ID.String())
	assert.True(t, got[0].Completed)
	assert.Equal(t, "milk", got[0].Text)
	assert.False(t, got[1].Completed)

	require.NoError(t, f.table.Delete(ctx, seeded[0].ID))
	got = f.backend.Todos(t, f.user.ID.String())
	require.Len(t, got, 1)
	assert.Equal(t, seeded[1].ID, got[0].ID)
}

func TestTodoTable_UpsertOrders(t *testing.T) {
	f := newTableFixture(t)
	seeded := f.backend.SeedTodos(t, f.user.ID.String(), "A", "B", "C")

	batch := []model.OrderUpdate{
		{ID: seeded[1].ID, Order: 0},
		{ID: seeded[2].ID, Order: 1},
		{ID: seeded[0].ID, Order: 2},
	}
	require.NoError(t, f.table.Upsert(context.Background(), batch))

	assert.Equal(t, [][]model.OrderUpdate{batch}, f.backend.Upserts())
	got := f.backend.Todos(t, f.user.ID.String())
	assert.Equal(t, 2, got[0].Order)
	assert.Equal(t, 0, got[1].Order)
	assert.Equal(t, 1, got[2].Order)
	assert.Equal(t, "A", got[0].Text)

	last := f.backend.Requests()[len(f.backend.Requests())-1]
	assert.Equal(t, "resolution=merge-duplicates,return=minimal", last.Prefer)
}

func TestTodoTable_UpsertEmptyIsNoop(t *testing.T) {
	f := newTableFixture(t)
	before := len(f.backend.Requests())

	require.NoError(t, f.table.Upsert(context.Background(), nil))
	assert.Len(t, f.backend.Requests(), before)
}

func TestTodoTable_UpsertUnknownIDFails(t *testing.T) {
	f := newTableFixture(t)

	err := f.table.Upsert(context.Background(), []model.OrderUpdate{{ID: 999, Order: 0}})
	var apiErr *remote.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "23502", apiErr.Code)
	assert.Empty(t, f.backend.Upserts())
}

func TestTodoTable_ExpiredToken(t *testing.T) {
	f := newTableFixture(t)
	expired := f.backend.IssueToken(t, f.user, -time.Minute)
	table := remote.NewTodoTable(remote.NewClient(f.backend.URL, f.backend.AnonKey), func() string { return expired })

	_, err := table.SelectAll(context.Background())
	require.Error(t, err)
	assert.True(t, remote.IsAuthError(err))
	assert.Equal(t, "JWT expired", remote.Message(err))
}

func TestTodoTable_ServerError(t *testing.T) {
	f := newTableFixture(t)
	f.backend.FailNext(http.MethodDelete, "/rest/v1/todos", http.StatusServiceUnavailable, "maintenance")

	err := f.table.Delete(context.Background(), 1)
	var apiErr *remote.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.Status)
	assert.Equal(t, "maintenance", apiErr.Message)
	assert.False(t, remote.IsRejected(err))
}
