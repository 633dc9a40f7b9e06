package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/nhle/todosync/internal/remote"
	"github.com/nhle/todosync/internal/state"
	appsync "github.com/nhle/todosync/internal/sync"
)

type credentialFlags struct {
	email         string
	passwordStdin bool
}

func newAuthCmd(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Sign in, sign up, sign out",
	}
	cmd.AddCommand(newLoginCmd(a))
	cmd.AddCommand(newSignupCmd(a))
	cmd.AddCommand(newLogoutCmd(a))
	cmd.AddCommand(newStatusCmd(a))
	return cmd
}

func newLoginCmd(a *App) *cobra.Command {
	var f credentialFlags
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.start(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			if sess := rt.mgr.Current(); sess != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Already signed in as %s\n", sess.User.Email)
				return nil
			}

			email, password, err := f.read(cmd.InOrStdin())
			if err != nil {
				return err
			}
			st, err := appsync.Drive(cmd.Context(), rt.exec, rt.initialState(), state.SignInRequested{Email: email, Password: password})
			if err != nil {
				return errors.New(remote.Message(err))
			}
			if !st.LoggedIn() {
				return errors.New("sign in failed")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", st.Session.User.Email)
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

func newSignupCmd(a *App) *cobra.Command {
	var f credentialFlags
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.start(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			email, password, err := f.read(cmd.InOrStdin())
			if err != nil {
				return err
			}
			// Sign-up never signs in; start from a signed-out state.
			st, err := appsync.Drive(cmd.Context(), rt.exec, rt.initialState(), state.SignUpRequested{Email: email, Password: password})
			if err != nil {
				return errors.New(remote.Message(err))
			}
			fmt.Fprintln(cmd.OutOrStdout(), st.Alert)
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

func newLogoutCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.start(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			st := rt.initialState()
			st.Session = rt.mgr.Current()
			if !st.LoggedIn() {
				fmt.Fprintln(cmd.OutOrStdout(), "Not signed in.")
				return nil
			}
			st, err = appsync.Drive(cmd.Context(), rt.exec, st, state.SignOutRequested{})
			if err != nil {
				return fmt.Errorf("sign out failed; session kept: %s", remote.Message(err))
			}
			if st.LoggedIn() {
				return errors.New("sign out failed; session kept")
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
			return nil
		},
	}
}

func newStatusCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the signed-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.start(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			sess := rt.mgr.Current()
			if sess == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "Not signed in.")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s (%s)\n", sess.User.Email, sess.UserID())
			if !sess.ExpiresAt.IsZero() {
				fmt.Fprintf(cmd.OutOrStdout(), "Access token expires %s\n", sess.ExpiresAt.Local().Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}
}

func (f *credentialFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.email, "email", "", "Account email (prompted when omitted)")
	cmd.Flags().BoolVar(&f.passwordStdin, "password-stdin", false, "Read the password from the first line of stdin")
}

// read collects the email and password, prompting for whatever the flags
// did not supply.
func (f *credentialFlags) read(stdin io.Reader) (string, string, error) {
	email := strings.TrimSpace(f.email)
	if email == "" {
		if f.passwordStdin {
			return "", "", errors.New("--email is required with --password-stdin")
		}
		err := huh.NewInput().
			Title("Email").
			Placeholder("you@example.com").
			Value(&email).
			Run()
		if err != nil {
			return "", "", err
		}
		email = strings.TrimSpace(email)
	}
	if email == "" {
		return "", "", errors.New("email is required")
	}

	var password string
	if f.passwordStdin {
		line, err := bufio.NewReader(stdin).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", "", fmt.Errorf("reading password: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	} else {
		err := huh.NewInput().
			Title("Password").
			EchoMode(huh.EchoModePassword).
			Value(&password).
			Run()
		if err != nil {
			return "", "", err
		}
	}
	if password == "" {
		return "", "", errors.New("password is required")
	}
	return email, password, nil
}
