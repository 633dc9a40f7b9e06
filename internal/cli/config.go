package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/nhle/todosync/internal/model"
)

func newConfigCmd(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the config file",
	}
	cmd.AddCommand(newConfigInitCmd(a))
	return cmd
}

func newConfigInitCmd(a *App) *cobra.Command {
	var (
		url     string
		anonKey string
		theme   string
		force   bool
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				if _, err := os.Stat(a.ConfigPath); err == nil {
					return fmt.Errorf("%s already exists (use --force to overwrite)", a.ConfigPath)
				} else if !errors.Is(err, fs.ErrNotExist) {
					return err
				}
			}

			cfg, err := model.LoadConfig(a.ConfigPath)
			if err != nil {
				return err
			}
			if url != "" {
				cfg.Backend.URL = url
			}
			if anonKey != "" {
				cfg.Backend.AnonKey = anonKey
			}
			if theme != "" {
				cfg.Display.Theme = theme
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			if err := model.SaveConfig(a.ConfigPath, cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", a.ConfigPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "Backend project URL")
	cmd.Flags().StringVar(&anonKey, "anon-key", "", "Backend public API key")
	cmd.Flags().StringVar(&theme, "theme", "", "Theme: auto, dark or light")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")
	return cmd
}
