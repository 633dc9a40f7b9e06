package sync

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/nhle/todosync/internal/model"
	"github.com/nhle/todosync/internal/remote"
	"github.com/nhle/todosync/internal/state"
)

// opTimeout is the maximum time allowed for a single remote operation.
const opTimeout = 30 * time.Second

// Sessions is the part of the session manager effects drive.
type Sessions interface {
	Current() *model.Session
	SignIn(ctx context.Context, email, password string) error
	SignUp(ctx context.Context, email, password string) (*remote.SignUpResult, error)
	SignOut(ctx context.Context) error
	Invalidate(reason error)
}

// Todos is the remote todo table.
type Todos interface {
	SelectAll(ctx context.Context) ([]model.Todo, error)
	Insert(ctx context.Context, todo model.NewTodo) (model.Todo, error)
	Update(ctx context.Context, id int64, fields map[string]interface{}) error
	Delete(ctx context.Context, id int64) error
	Upsert(ctx context.Context, rows []model.OrderUpdate) error
}

// ResultMsg is a tea.Msg carrying the outcome of an effect.
type ResultMsg struct {
	Intent state.Intent
}

// Executor runs effects against the service. Nothing is retried.
type Executor struct {
	sessions Sessions
	todos    Todos
	logger   *log.Logger
}

// NewExecutor creates an executor. A nil logger uses the default logger.
func NewExecutor(sessions Sessions, todos Todos, logger *log.Logger) *Executor {
	if logger == nil {
		logger = log.Default()
	}
	return &Executor{sessions: sessions, todos: todos, logger: logger}
}

// Cmd returns a tea.Cmd that runs eff and delivers its outcome as a
// ResultMsg.
func (e *Executor) Cmd(eff state.Effect) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()

		intent := e.Run(ctx, eff)
		if intent == nil {
			return nil
		}
		return ResultMsg{Intent: intent}
	}
}

// Run executes eff and returns the intent describing its outcome, or nil
// when there is nothing to report.
func (e *Executor) Run(ctx context.Context, eff state.Effect) state.Intent {
	switch eff := eff.(type) {
	case state.SignIn:
		if err := e.sessions.SignIn(ctx, eff.Email, eff.Password); err != nil {
			e.logger.Warn("sign in failed", "email", eff.Email, "err", err)
			return state.AuthFailed{Err: err}
		}
		return state.SessionChanged{Session: e.sessions.Current()}

	case state.SignUp:
		res, err := e.sessions.SignUp(ctx, eff.Email, eff.Password)
		if err != nil {
			e.logger.Warn("sign up failed", "email", eff.Email, "err", err)
			return state.AuthFailed{Err: err}
		}
		return state.SignUpSucceeded{ConfirmationRequired: res.ConfirmationRequired()}

	case state.SignOut:
		if err := e.sessions.SignOut(ctx); err != nil {
			e.logger.Error("sign out failed", "err", err)
			return state.AuthFailed{Err: err}
		}
		return state.SessionChanged{}

	case state.FetchAll:
		todos, err := e.todos.SelectAll(ctx)
		if err != nil {
			e.logFailure(state.OpFetch, 0, err)
			if e.rejectedSession(err) {
				return state.SessionChanged{}
			}
			return state.FetchFailed{Err: err}
		}
		return state.TodosFetched{Todos: todos}

	case state.Insert:
		todo, err := e.todos.Insert(ctx, eff.Todo)
		if err != nil {
			return e.writeFailed(state.OpInsert, eff.TempID, err, eff.Rollback)
		}
		return state.TodoInserted{TempID: eff.TempID, Todo: todo}

	case state.Update:
		err := e.todos.Update(ctx, eff.ID, map[string]interface{}{"completed": eff.Completed})
		if err != nil {
			return e.writeFailed(state.OpUpdate, eff.ID, err, eff.Rollback)
		}
		return nil

	case state.Delete:
		if err := e.todos.Delete(ctx, eff.ID); err != nil {
			return e.writeFailed(state.OpDelete, eff.ID, err, eff.Rollback)
		}
		return nil

	case state.Upsert:
		if err := e.todos.Upsert(ctx, eff.Rows); err != nil {
			return e.writeFailed(state.OpUpsert, 0, err, eff.Rollback)
		}
		return nil
	}

	e.logger.Error("unknown effect", "effect", eff)
	return nil
}

func (e *Executor) writeFailed(op state.Op, id int64, err error, rollback state.Intent) state.Intent {
	e.logFailure(op, id, err)
	if e.rejectedSession(err) {
		return state.SessionChanged{}
	}
	return state.WriteFailed{Op: op, ID: id, Err: err, Rollback: rollback}
}

func (e *Executor) logFailure(op state.Op, id int64, err error) {
	if id != 0 {
		e.logger.Error("remote operation failed", "op", op, "id", id, "err", err)
		return
	}
	e.logger.Error("remote operation failed", "op", op, "err", err)
}

// rejectedSession drops the session when the service refused its token.
func (e *Executor) rejectedSession(err error) bool {
	if !remote.IsAuthError(err) {
		return false
	}
	e.sessions.Invalidate(err)
	return true
}
