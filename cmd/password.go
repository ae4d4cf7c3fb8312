// ABOUTME: Password recovery commands for the gradeportal CLI
// ABOUTME: forgot-password requests a reset link, reset-password redeems it

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var resetPasswordStdin bool

var forgotPasswordCmd = &cobra.Command{
	Use:   "forgot-password EMAIL",
	Short: "Request a password reset link",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		exitCode := runForgotPassword(ctx, os.Stdout, args[0])
		if exitCode != 0 {
			os.Exit(exitCode)
		}
	},
}

var resetPasswordCmd = &cobra.Command{
	Use:   "reset-password TOKEN",
	Short: "Set a new password with a reset token",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		exitCode := runResetPassword(ctx, os.Stdout, os.Stdin, args[0])
		if exitCode != 0 {
			os.Exit(exitCode)
		}
	},
}

func init() {
	rootCmd.AddCommand(forgotPasswordCmd, resetPasswordCmd)
	resetPasswordCmd.Flags().BoolVar(&resetPasswordStdin, "password-stdin", false, "Read the new password from stdin")
}

// runForgotPassword requests a reset link and returns exit code
func runForgotPassword(ctx context.Context, w io.Writer, email string) int {
	if err := newClient().ForgotPassword(ctx, email); err != nil {
		return reportError(w, err)
	}
	fmt.Fprintln(w, "If that email is registered, a reset link has been sent.")
	return 0
}

// runResetPassword sets a new password and returns exit code
func runResetPassword(ctx context.Context, w io.Writer, in io.Reader, token string) int {
	password, err := collectPassword(in, resetPasswordStdin, promptNewPassword)
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return 2
	}
	if len(password) < 8 {
		fmt.Fprintln(w, "Error: password must be at least 8 characters")
		return 2
	}

	if err := newClient().ResetPassword(ctx, token, password); err != nil {
		return reportError(w, err)
	}
	fmt.Fprintln(w, "Password updated. You can now log in.")
	return 0
}
