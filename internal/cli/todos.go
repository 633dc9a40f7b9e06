package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nhle/todosync/internal/model"
	"github.com/nhle/todosync/internal/state"
)

func newListCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List todos in display order",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.start(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			st, err := rt.loadTodos(cmd.Context())
			if err != nil {
				return err
			}
			writeTodos(cmd.OutOrStdout(), st.Todos)
			return nil
		},
	}
}

func newAddCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "add <text...>",
		Short: "Add a todo at the end of the list",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if strings.TrimSpace(text) == "" {
				return errors.New("todo text is empty")
			}

			rt, err := a.start(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			st, err := rt.loadTodos(cmd.Context())
			if err != nil {
				return err
			}
			st, err = rt.apply(cmd.Context(), st, state.AddRequested{Text: text})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %d. %s\n", len(st.Todos), text)
			return nil
		},
	}
}

func newDoneCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "done <position>",
		Short: "Toggle a todo between done and not done",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.start(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			st, err := rt.loadTodos(cmd.Context())
			if err != nil {
				return err
			}
			i, err := position(args[0], len(st.Todos))
			if err != nil {
				return err
			}
			todo := st.Todos[i]
			if _, err := rt.apply(cmd.Context(), st, state.ToggleRequested{ID: todo.ID}); err != nil {
				return err
			}

			verb := "Completed"
			if todo.Completed {
				verb = "Reopened"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d. %s\n", verb, i+1, todo.Text)
			return nil
		},
	}
}

func newRemoveCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <position>",
		Aliases: []string{"remove"},
		Short:   "Delete a todo",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.start(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			st, err := rt.loadTodos(cmd.Context())
			if err != nil {
				return err
			}
			i, err := position(args[0], len(st.Todos))
			if err != nil {
				return err
			}
			todo := st.Todos[i]
			if _, err := rt.apply(cmd.Context(), st, state.DeleteRequested{ID: todo.ID}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", todo.Text)
			return nil
		},
	}
}

func newMoveCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "mv <from> <to>",
		Short: "Move a todo to another position (ls lists by id)",
		Long: `Move a todo to another position and print the reordered list.

The new order is saved, but the list is always fetched in id order, so a
later ls shows todos by id rather than in the order set here.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.start(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			st, err := rt.loadTodos(cmd.Context())
			if err != nil {
				return err
			}
			from, err := position(args[0], len(st.Todos))
			if err != nil {
				return err
			}
			to, err := position(args[1], len(st.Todos))
			if err != nil {
				return err
			}
			st, err = rt.apply(cmd.Context(), st, state.ReorderRequested{Source: from, Destination: &to})
			if err != nil {
				return err
			}
			writeTodos(cmd.OutOrStdout(), st.Todos)
			return nil
		},
	}
}

// position parses a 1-based list position into an index.
func position(arg string, n int) (int, error) {
	p, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("invalid position %q", arg)
	}
	if p < 1 || p > n {
		return 0, fmt.Errorf("position %d out of range (1-%d)", p, n)
	}
	return p - 1, nil
}

func writeTodos(w io.Writer, todos []model.Todo) {
	if len(todos) == 0 {
		fmt.Fprintln(w, "Nothing to do.")
		return
	}
	for i, t := range todos {
		box := "[ ]"
		if t.Completed {
			box = "[x]"
		}
		fmt.Fprintf(w, "%d. %s %s\n", i+1, box, t.Text)
	}
}
