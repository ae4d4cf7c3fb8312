// ABOUTME: Route command for the gradeportal CLI
// ABOUTME: Prints what the route guard decides for a path under the current session

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/uniportal/gradeportal/internal/guard"
	"github.com/uniportal/gradeportal/internal/identity"
	"github.com/uniportal/gradeportal/internal/session"
)

var routeRole string

var routeCmd = &cobra.Command{
	Use:   "route PATH",
	Short: "Show the guard decision for a path",
	Long: `Resolve the stored session and print whether PATH would render, redirect or
wait. Role homes (/admin, /teacher, /student) require their role; --role
overrides the required role for any other path.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		exitCode := runRoute(ctx, os.Stdout, args[0])
		if exitCode != 0 {
			os.Exit(exitCode)
		}
	},
}

func init() {
	rootCmd.AddCommand(routeCmd)
	routeCmd.Flags().StringVar(&routeRole, "role", "", "Required role: admin, teacher or student (default: any)")
}

// decideRoute applies the guard the way the UI does
func decideRoute(st session.State, path string, required identity.Role) guard.Decision {
	if path == "/" {
		return guard.Root(st)
	}
	if required == guard.AnyRole {
		if r, ok := guard.RouteRole(path); ok {
			required = r
		}
	}
	return guard.Protect(st, path, required)
}

// runRoute resolves the session, decides for path and returns exit code
func runRoute(ctx context.Context, w io.Writer, path string) int {
	required := guard.AnyRole
	if routeRole != "" {
		r, ok := identity.ParseRole(routeRole)
		if !ok {
			fmt.Fprintf(w, "Error: unknown role %q (want admin, teacher or student)\n", routeRole)
			return 2
		}
		required = r
	}

	_, p := newSession()
	if err := p.Start(ctx); err != nil {
		slog.Debug("Session not resolved before routing", "error", err)
	}

	d := decideRoute(p.State(), path, required)
	if IsJSONOutput() {
		data, _ := json.MarshalIndent(map[string]string{
			"path":     path,
			"outcome":  d.Outcome.String(),
			"location": d.Location,
		}, "", "  ")
		fmt.Fprintln(w, string(data))
		return 0
	}
	fmt.Fprintf(w, "%s: %s\n", path, d)
	return 0
}
