// ABOUTME: Session commands for the gradeportal CLI
// ABOUTME: login, register, logout and whoami on top of the session provider

package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/uniportal/gradeportal/internal/client"
	"github.com/uniportal/gradeportal/internal/identity"
	"github.com/uniportal/gradeportal/internal/session"
)

var (
	loginEmail         string
	loginPasswordStdin bool

	regFirstName     string
	regLastName      string
	regEmail         string
	regRole          string
	regPasswordStdin bool
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and store the session",
	Long: `Sign in with email and password. Prompts when run on a terminal.

Exit codes:
  0 - Signed in
  1 - Credentials rejected
  2 - Error (connectivity, invalid input)`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		exitCode := runLogin(ctx, os.Stdout, os.Stdin)
		if exitCode != 0 {
			os.Exit(exitCode)
		}
	},
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account and sign in",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		exitCode := runRegister(ctx, os.Stdout, os.Stdin)
		if exitCode != 0 {
			os.Exit(exitCode)
		}
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "End the session",
	Long:  `Tell the server to end the session and remove the stored token. The local session is cleared even when the server cannot be reached.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		exitCode := runLogout(ctx, os.Stdout)
		if exitCode != 0 {
			os.Exit(exitCode)
		}
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	Long: `Resolve the stored session with the server and print the user.

Exit codes:
  0 - Signed in
  1 - Not signed in, or the session could not be renewed
  2 - Server unreachable`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		exitCode := runWhoami(ctx, os.Stdout)
		if exitCode != 0 {
			os.Exit(exitCode)
		}
	},
}

func init() {
	rootCmd.AddCommand(loginCmd, registerCmd, logoutCmd, whoamiCmd)

	loginCmd.Flags().StringVar(&loginEmail, "email", "", "Account email")
	loginCmd.Flags().BoolVar(&loginPasswordStdin, "password-stdin", false, "Read the password from stdin")

	registerCmd.Flags().StringVar(&regFirstName, "first-name", "", "First name")
	registerCmd.Flags().StringVar(&regLastName, "last-name", "", "Last name")
	registerCmd.Flags().StringVar(&regEmail, "email", "", "Account email")
	registerCmd.Flags().StringVar(&regRole, "role", "student", "Role: admin, teacher or student")
	registerCmd.Flags().BoolVar(&regPasswordStdin, "password-stdin", false, "Read the password from stdin")
	_ = registerCmd.MarkFlagRequired("first-name")
	_ = registerCmd.MarkFlagRequired("last-name")
	_ = registerCmd.MarkFlagRequired("email")
}

// exitCodeFor maps a failed call to an exit code
func exitCodeFor(err error) int {
	if errors.Is(err, client.ErrNetworkUnavailable) {
		return 2
	}
	return 1
}

// reportError prints the user-facing message for err and returns its exit code
func reportError(w io.Writer, err error) int {
	slog.Debug("Command failed", "error", err)
	fmt.Fprintf(w, "Error: %s\n", session.Describe(err))
	return exitCodeFor(err)
}

// runLogin signs in and returns exit code
func runLogin(ctx context.Context, w io.Writer, in io.Reader) int {
	email := loginEmail
	var password string

	if loginPasswordStdin {
		if email == "" {
			fmt.Fprintln(w, "Error: --email is required with --password-stdin")
			return 2
		}
		secret, err := readSecret(in)
		if err != nil {
			fmt.Fprintf(w, "Error: %v\n", err)
			return 2
		}
		password = secret
	} else {
		if !stdinIsTerminal() {
			fmt.Fprintf(w, "Error: %v\n", errNoTerminal)
			return 2
		}
		if err := promptLogin(&email, &password); err != nil {
			fmt.Fprintf(w, "Error: %v\n", err)
			return 2
		}
	}

	_, p := newSession()
	res, err := p.Login(ctx, client.Credentials{Email: email, Password: password})
	if err != nil {
		return reportError(w, err)
	}

	fmt.Fprintln(w, formatIdentity("Logged in as", res.Identity))
	return 0
}

// runRegister creates an account and returns exit code
func runRegister(ctx context.Context, w io.Writer, in io.Reader) int {
	role, ok := identity.ParseRole(regRole)
	if !ok {
		fmt.Fprintf(w, "Error: unknown role %q (want admin, teacher or student)\n", regRole)
		return 2
	}

	password, err := collectPassword(in, regPasswordStdin, promptNewPassword)
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return 2
	}

	_, p := newSession()
	res, err := p.Register(ctx, client.Registration{
		FirstName: regFirstName,
		LastName:  regLastName,
		Email:     regEmail,
		Password:  password,
		Role:      role,
	})
	if err != nil {
		return reportError(w, err)
	}

	fmt.Fprintln(w, formatIdentity("Registered and logged in as", res.Identity))
	return 0
}

// runLogout ends the session and returns exit code
func runLogout(ctx context.Context, w io.Writer) int {
	c, p := newSession()
	if c.TokenStore().Read() == "" {
		fmt.Fprintln(w, "Not logged in")
		return 0
	}
	p.Logout(ctx)
	fmt.Fprintln(w, "Logged out")
	return 0
}

// runWhoami resolves the stored session and returns exit code
func runWhoami(ctx context.Context, w io.Writer) int {
	_, p := newSession()
	err := p.Start(ctx)

	st := p.State()
	if !st.IsAuthenticated() {
		if err != nil && errors.Is(err, client.ErrNetworkUnavailable) {
			return reportError(w, err)
		}
		if IsJSONOutput() {
			fmt.Fprintln(w, `{"authenticated": false}`)
		} else {
			fmt.Fprintln(w, "Not logged in")
		}
		return 1
	}

	fmt.Fprintln(w, formatIdentity("Logged in as", st.Identity))
	return 0
}

// formatIdentity renders an identity as a line of text or as JSON
func formatIdentity(prefix string, ident *identity.Identity) string {
	if IsJSONOutput() {
		data, _ := json.MarshalIndent(ident, "", "  ")
		return string(data)
	}
	return fmt.Sprintf("%s %s <%s> (%s)", prefix, ident.DisplayName(), ident.Email, ident.Role)
}
