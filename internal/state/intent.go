package state

import "github.com/nhle/todosync/internal/model"

// Intent is anything that can change the application state: a user action,
// an auth state change or the outcome of an effect.
type Intent interface {
	isIntent()
}

// SessionChanged reports a new auth state. Session is nil when signed out.
type SessionChanged struct {
	Session *model.Session
}

// SignInRequested asks to authenticate with email and password.
type SignInRequested struct {
	Email    string
	Password string
}

// SignUpRequested asks to register a new account.
type SignUpRequested struct {
	Email    string
	Password string
}

// SignOutRequested asks to end the current session.
type SignOutRequested struct{}

// AuthFailed is the outcome of a rejected sign-in or sign-up.
type AuthFailed struct {
	Err error
}

// SignUpSucceeded is the outcome of an accepted sign-up.
type SignUpSucceeded struct {
	ConfirmationRequired bool
}

// AlertDismissed clears the current alert.
type AlertDismissed struct{}

// DraftChanged mirrors the new-todo input.
type DraftChanged struct {
	Text string
}

// AddRequested asks to append a todo with Text.
type AddRequested struct {
	Text string
}

// ToggleRequested asks to flip the completed flag of the todo with ID.
type ToggleRequested struct {
	ID int64
}

// DeleteRequested asks to remove the todo with ID.
type DeleteRequested struct {
	ID int64
}

// ReorderRequested is a finished drag gesture. Destination is nil when the
// item was dropped outside the list.
type ReorderRequested struct {
	Source      int
	Destination *int
}

// FetchRequested asks to reload the list from the service.
type FetchRequested struct{}

// TodosFetched carries the service's list, ordered by id.
type TodosFetched struct {
	Todos []model.Todo
}

// FetchFailed is the outcome of a failed fetch. The list is left stale.
type FetchFailed struct {
	Err error
}

// TodoInserted swaps the provisional item TempID for the stored row.
type TodoInserted struct {
	TempID int64
	Todo   model.Todo
}

// WriteFailed is the outcome of a failed write. Rollback undoes the local
// change the write was applied with.
type WriteFailed struct {
	Op       Op
	ID       int64
	Err      error
	Rollback Intent
}

// ThemeToggled flips between the light and dark palette.
type ThemeToggled struct{}

// Rollbacks. They are only produced by Reduce and returned to it through
// WriteFailed.

type revertInsert struct {
	TempID int64
	Text   string
}

type revertToggle struct {
	ID        int64
	Completed bool
}

type revertDelete struct {
	Todo  model.Todo
	Index int
}

type revertReorder struct {
	IDs []int64
}

func (SessionChanged) isIntent()   {}
func (SignInRequested) isIntent()  {}
func (SignUpRequested) isIntent()  {}
func (SignOutRequested) isIntent() {}
func (AuthFailed) isIntent()       {}
func (SignUpSucceeded) isIntent()  {}
func (AlertDismissed) isIntent()   {}
func (DraftChanged) isIntent()     {}
func (AddRequested) isIntent()     {}
func (ToggleRequested) isIntent()  {}
func (DeleteRequested) isIntent()  {}
func (ReorderRequested) isIntent() {}
func (FetchRequested) isIntent()   {}
func (TodosFetched) isIntent()     {}
func (FetchFailed) isIntent()      {}
func (TodoInserted) isIntent()     {}
func (WriteFailed) isIntent()      {}
func (ThemeToggled) isIntent()     {}
func (revertInsert) isIntent()     {}
func (revertToggle) isIntent()     {}
func (revertDelete) isIntent()     {}
func (revertReorder) isIntent()    {}
