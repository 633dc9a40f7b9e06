package cli

import (
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/nhle/todosync/internal/app"
	"github.com/nhle/todosync/internal/credential"
	"github.com/nhle/todosync/internal/model"
)

// App holds the flags and dependencies shared by every subcommand.
type App struct {
	ConfigPath string

	// openCredentials opens the session store. Tests swap in an in-memory
	// keyring.
	openCredentials func() (*credential.Store, error)
}

// NewRootCmd builds the todosync command tree.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&App{openCredentials: credential.Open})
}

func newRootCmd(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "todosync",
		Short:        "A todo list synced with your account",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Start the interactive TUI
  todosync

  # Sign in once, then script against the same list
  todosync auth login --email ada@example.com
  todosync add Buy milk
  todosync ls
  todosync done 1
  todosync mv 3 1
`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd, a)
		},
	}

	cmd.PersistentFlags().StringVar(&a.ConfigPath, "config", envOr("TODOSYNC_CONFIG", model.DefaultConfigPath()), "Path to the config file")

	cmd.AddCommand(newAuthCmd(a))
	cmd.AddCommand(newListCmd(a))
	cmd.AddCommand(newAddCmd(a))
	cmd.AddCommand(newDoneCmd(a))
	cmd.AddCommand(newRemoveCmd(a))
	cmd.AddCommand(newMoveCmd(a))
	cmd.AddCommand(newConfigCmd(a))

	return cmd
}

func runTUI(cmd *cobra.Command, a *App) error {
	rt, err := a.start(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.Close()

	m := app.New(rt.initialState(), rt.exec, rt.sub, rt.logger)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
	if _, err := p.Run(); err != nil {
		rt.logger.Error("tui exited", "err", err)
		return fmt.Errorf("running TUI: %w", err)
	}
	return nil
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}
