// Package state holds the application state and its single update function.
//
// Reduce is pure: it never performs I/O and never mutates the state it is
// given. Remote calls are returned as effects, executed elsewhere, and their
// outcomes come back as intents.
//
// Every write is applied locally before the service confirms it. A failed
// write comes back as WriteFailed, whose rollback undoes the local change,
// followed by a FetchAll to resync with the service.
package state

import (
	"strings"

	"github.com/nhle/todosync/internal/model"
	"github.com/nhle/todosync/internal/remote"
)

// ConfirmEmailAlert is shown after a sign-up that awaits email confirmation.
const ConfirmEmailAlert = "Check your email for the confirmation link!"

// SignUpDoneAlert is shown after a sign-up the service confirmed at once.
const SignUpDoneAlert = "Account created. You can sign in now."

// State is everything the views render.
type State struct {
	// Session is nil when signed out.
	Session *model.Session
	Todos   []model.Todo
	Draft   string
	Dark    bool
	// Alert is a transient message for the user, dismissed by any key.
	Alert string

	tempIDs int64
}

// New returns the signed-out state with the given palette.
func New(dark bool) State {
	return State{Dark: dark}
}

// LoggedIn reports whether a user is signed in.
func (s State) LoggedIn() bool {
	return s.Session != nil
}

// Theme names the active palette.
func (s State) Theme() string {
	if s.Dark {
		return model.ThemeDark
	}
	return model.ThemeLight
}

// Reduce applies intent to s and returns the new state plus the effects to
// execute, in order.
func Reduce(s State, intent Intent) (State, []Effect) {
	switch in := intent.(type) {
	case SessionChanged:
		return sessionChanged(s, in)

	case SignInRequested:
		if s.LoggedIn() {
			return s, nil
		}
		s.Alert = ""
		return s, []Effect{SignIn{Email: in.Email, Password: in.Password}}

	case SignUpRequested:
		if s.LoggedIn() {
			return s, nil
		}
		s.Alert = ""
		return s, []Effect{SignUp{Email: in.Email, Password: in.Password}}

	case SignOutRequested:
		if !s.LoggedIn() {
			return s, nil
		}
		return s, []Effect{SignOut{}}

	case AuthFailed:
		s.Alert = remote.Message(in.Err)
		return s, nil

	case SignUpSucceeded:
		if in.ConfirmationRequired {
			s.Alert = ConfirmEmailAlert
		} else {
			s.Alert = SignUpDoneAlert
		}
		return s, nil

	case AlertDismissed:
		s.Alert = ""
		return s, nil

	case DraftChanged:
		s.Draft = in.Text
		return s, nil

	case AddRequested:
		return add(s, in.Text)

	case ToggleRequested:
		return toggle(s, in.ID)

	case DeleteRequested:
		return remove(s, in.ID)

	case ReorderRequested:
		return reorder(s, in.Source, in.Destination)

	case FetchRequested:
		if !s.LoggedIn() {
			return s, nil
		}
		return s, []Effect{FetchAll{}}

	case TodosFetched:
		return fetched(s, in.Todos), nil

	case FetchFailed:
		return s, nil

	case TodoInserted:
		i := indexOf(s.Todos, in.TempID)
		if i < 0 {
			return s, nil
		}
		// A fetch that landed before the reply already holds the row.
		if indexOf(s.Todos, in.Todo.ID) >= 0 {
			s.Todos = removeAt(s.Todos, i)
			return s, nil
		}
		s.Todos = replaceAt(s.Todos, i, in.Todo)
		return s, nil

	case WriteFailed:
		if !s.LoggedIn() {
			return s, nil
		}
		if in.Rollback != nil {
			s, _ = Reduce(s, in.Rollback)
		}
		return s, []Effect{FetchAll{}}

	case ThemeToggled:
		s.Dark = !s.Dark
		return s, nil

	case revertInsert:
		if i := indexOf(s.Todos, in.TempID); i >= 0 {
			s.Todos = removeAt(s.Todos, i)
		}
		if s.Draft == "" {
			s.Draft = in.Text
		}
		return s, nil

	case revertToggle:
		if i := indexOf(s.Todos, in.ID); i >= 0 {
			t := s.Todos[i]
			t.Completed = in.Completed
			s.Todos = replaceAt(s.Todos, i, t)
		}
		return s, nil

	case revertDelete:
		if indexOf(s.Todos, in.Todo.ID) >= 0 {
			return s, nil
		}
		s.Todos = insertAt(s.Todos, in.Index, in.Todo)
		return s, nil

	case revertReorder:
		s.Todos = arrange(s.Todos, in.IDs)
		return s, nil
	}

	return s, nil
}

func sessionChanged(s State, in SessionChanged) (State, []Effect) {
	prev := s.Session
	s.Session = in.Session

	if in.Session == nil {
		s.Todos = nil
		s.Draft = ""
		return s, nil
	}
	if prev != nil && prev.UserID() == in.Session.UserID() {
		// Token refresh for the same user.
		return s, nil
	}
	s.Todos = nil
	s.Alert = ""
	return s, []Effect{FetchAll{}}
}

// fetched replaces the list with the service's rows. Provisional items whose
// insert is still in flight stay at the end.
func fetched(s State, todos []model.Todo) State {
	if !s.LoggedIn() {
		return s
	}
	out := make([]model.Todo, 0, len(todos))
	out = append(out, todos...)
	for _, t := range s.Todos {
		if t.Provisional() {
			out = append(out, t)
		}
	}
	s.Todos = out
	return s
}

func add(s State, text string) (State, []Effect) {
	if strings.TrimSpace(text) == "" || !s.LoggedIn() {
		return s, nil
	}

	s.tempIDs++
	tempID := -s.tempIDs
	todo := model.Todo{
		ID:     tempID,
		Text:   text,
		Order:  len(s.Todos),
		UserID: s.Session.UserID(),
	}
	s.Todos = insertAt(s.Todos, len(s.Todos), todo)
	s.Draft = ""

	return s, []Effect{Insert{
		TempID:   tempID,
		Todo:     model.NewTodo{Text: todo.Text, UserID: todo.UserID, Order: todo.Order},
		Rollback: revertInsert{TempID: tempID, Text: text},
	}}
}

func toggle(s State, id int64) (State, []Effect) {
	i := indexOf(s.Todos, id)
	if i < 0 || s.Todos[i].Provisional() {
		return s, nil
	}

	t := s.Todos[i]
	t.Completed = !t.Completed
	s.Todos = replaceAt(s.Todos, i, t)

	return s, []Effect{Update{
		ID:        id,
		Completed: t.Completed,
		Rollback:  revertToggle{ID: id, Completed: !t.Completed},
	}}
}

func remove(s State, id int64) (State, []Effect) {
	i := indexOf(s.Todos, id)
	if i < 0 || s.Todos[i].Provisional() {
		return s, nil
	}

	removed := s.Todos[i]
	s.Todos = removeAt(s.Todos, i)

	return s, []Effect{Delete{
		ID:       id,
		Rollback: revertDelete{Todo: removed, Index: i},
	}}
}

func reorder(s State, source int, destination *int) (State, []Effect) {
	if destination == nil {
		return s, nil
	}
	dest := *destination
	n := len(s.Todos)
	if source < 0 || source >= n || dest < 0 || dest >= n {
		return s, nil
	}
	// The batch names every id, so it waits for pending inserts.
	for _, t := range s.Todos {
		if t.Provisional() {
			return s, nil
		}
	}

	previous := ids(s.Todos)
	s.Todos = Move(s.Todos, source, dest)

	return s, []Effect{Upsert{
		Rows:     OrderBatch(s.Todos),
		Rollback: revertReorder{IDs: previous},
	}}
}

func replaceAt(todos []model.Todo, i int, t model.Todo) []model.Todo {
	out := make([]model.Todo, len(todos))
	copy(out, todos)
	out[i] = t
	return out
}

func removeAt(todos []model.Todo, i int) []model.Todo {
	out := make([]model.Todo, 0, len(todos)-1)
	out = append(out, todos[:i]...)
	return append(out, todos[i+1:]...)
}

// insertAt clamps i to the list bounds.
func insertAt(todos []model.Todo, i int, t model.Todo) []model.Todo {
	if i < 0 {
		i = 0
	}
	if i > len(todos) {
		i = len(todos)
	}
	out := make([]model.Todo, 0, len(todos)+1)
	out = append(out, todos[:i]...)
	out = append(out, t)
	return append(out, todos[i:]...)
}
