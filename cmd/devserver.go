// ABOUTME: Devserver command for the gradeportal CLI
// ABOUTME: Runs the in-memory reference API the client is tested against

package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/uniportal/gradeportal/internal/config"
	"github.com/uniportal/gradeportal/internal/devserver"
)

var devserverPort string

var devserverCmd = &cobra.Command{
	Use:   "devserver",
	Short: "Run the development API server",
	Long: `Run an in-memory implementation of the portal's auth API.

Environment Variables:
  PORT              Listen port (default: 5000)
  JWT_SECRET        HS256 signing secret, at least 16 characters (required)
  ACCESS_TOKEN_TTL  Access token lifetime (default: 15m)
  REFRESH_WINDOW    How long after login a token may be refreshed (default: 168h)
  RESET_TOKEN_TTL   Password reset token lifetime (default: 1h)
  MAX_ADMINS        Admin accounts allowed to register (default: 1)
  RATE_LIMIT_AUTH   Auth requests per minute per client (default: 20)
  SEED_USERS        Create one account per role (default: true)`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		serverCfg, err := config.LoadServer()
		if err != nil {
			return err
		}
		if devserverPort != "" {
			serverCfg.Port = devserverPort
		}

		srv, err := devserver.New(serverCfg)
		if err != nil {
			return err
		}
		return srv.ListenAndServe(ctx, ":"+serverCfg.Port)
	},
}

func init() {
	rootCmd.AddCommand(devserverCmd)
	devserverCmd.Flags().StringVar(&devserverPort, "port", "", "Listen port (overrides PORT)")
}
