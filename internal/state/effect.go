package state

import "github.com/nhle/todosync/internal/model"

// Op names a remote operation in logs and failures.
type Op string

const (
	OpFetch  Op = "fetch"
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
	OpUpsert Op = "upsert"
)

// Effect is a side-effect request produced by Reduce. Effects are executed
// outside the reducer and report back with an Intent.
type Effect interface {
	isEffect()
}

// SignIn authenticates through the session manager.
type SignIn struct {
	Email    string
	Password string
}

// SignUp registers through the session manager.
type SignUp struct {
	Email    string
	Password string
}

// SignOut ends the session.
type SignOut struct{}

// FetchAll reloads every todo. It is also the resync after a failed write.
type FetchAll struct{}

// Insert stores a new todo in place of the provisional item TempID.
type Insert struct {
	TempID   int64
	Todo     model.NewTodo
	Rollback Intent
}

// Update writes the completed flag of one todo.
type Update struct {
	ID        int64
	Completed bool
	Rollback  Intent
}

// Delete removes one todo.
type Delete struct {
	ID       int64
	Rollback Intent
}

// Upsert writes the order of every todo in one batch.
type Upsert struct {
	Rows     []model.OrderUpdate
	Rollback Intent
}

func (SignIn) isEffect()   {}
func (SignUp) isEffect()   {}
func (SignOut) isEffect()  {}
func (FetchAll) isEffect() {}
func (Insert) isEffect()   {}
func (Update) isEffect()   {}
func (Delete) isEffect()   {}
func (Upsert) isEffect()   {}
