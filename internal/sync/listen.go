package sync

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/todosync/internal/session"
	"github.com/nhle/todosync/internal/state"
)

// AuthEventMsg is a tea.Msg sent for every auth state change.
type AuthEventMsg struct {
	Event session.Event
}

// Intent converts the event into the state transition it causes.
func (m AuthEventMsg) Intent() state.Intent {
	return state.SessionChanged{Session: m.Event.Session}
}

// Listen returns a tea.Cmd that waits for the next auth event on sub. Call
// it again after handling each AuthEventMsg to keep listening. It yields
// nil once the subscription is closed.
func Listen(sub *session.Subscription) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-sub.C()
		if !ok {
			return nil
		}
		return AuthEventMsg{Event: ev}
	}
}
