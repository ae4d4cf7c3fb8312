// ABOUTME: Root command for the gradeportal CLI
// ABOUTME: Handles global flags, configuration, logging and session wiring

package cmd

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/uniportal/gradeportal/internal/client"
	"github.com/uniportal/gradeportal/internal/config"
	"github.com/uniportal/gradeportal/internal/logger"
	"github.com/uniportal/gradeportal/internal/session"
	"github.com/uniportal/gradeportal/internal/tokenstore"
)

var (
	apiURL     string
	configDir  string
	jsonOutput bool

	// cfg is loaded before any subcommand runs. Nil in unit tests that call
	// run functions directly.
	cfg *config.Config
)

// rootCmd is the base command
var rootCmd = &cobra.Command{
	Use:   "gradeportal",
	Short: "CLI for the University Grading Portal",
	Long: `gradeportal signs you in to the University Grading Portal and keeps the session
fresh. Tokens are stored in the config directory and refreshed transparently.

Environment Variables:
  GRADEPORTAL_API_URL     Backend API URL (default: http://localhost:5000)
  GRADEPORTAL_TIMEOUT     Request timeout (default: 30s)
  GRADEPORTAL_CONFIG_DIR  Session and log directory (default: $XDG_CONFIG_HOME/gradeportal)
  LOG_LEVEL               debug, info, warn or error (default: info)
  LOG_FORMAT              text or json (default: text)`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config.LoadDotEnv()
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		cfg = loaded
		logger.Init(os.Stderr, cfg.LogLevel, cfg.LogFormat)
		return nil
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "Backend API URL (overrides GRADEPORTAL_API_URL)")
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "Session directory (overrides GRADEPORTAL_CONFIG_DIR)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output JSON instead of human-readable text")
}

// GetAPIURL returns the API URL from flag, env, or default (in priority order)
func GetAPIURL() string {
	if apiURL != "" {
		return strings.TrimRight(apiURL, "/")
	}
	if envURL := os.Getenv("GRADEPORTAL_API_URL"); envURL != "" {
		return strings.TrimRight(envURL, "/")
	}
	return config.DefaultAPIURL
}

// GetConfigDir returns the session directory from flag, env, or the XDG default
func GetConfigDir() string {
	if configDir != "" {
		return configDir
	}
	if envDir := os.Getenv("GRADEPORTAL_CONFIG_DIR"); envDir != "" {
		return envDir
	}
	return tokenstore.DefaultConfigDir()
}

// IsJSONOutput returns whether JSON output is requested
func IsJSONOutput() bool {
	return jsonOutput
}

func requestTimeout() time.Duration {
	if cfg != nil {
		return cfg.Timeout
	}
	return client.DefaultTimeout
}

// newClient builds an API client backed by the on-disk token store
func newClient() *client.Client {
	store := tokenstore.NewFileStore(GetConfigDir())
	return client.New(GetAPIURL(),
		client.WithTimeout(requestTimeout()),
		client.WithTokenStore(store),
	)
}

// newSession builds a provider for one-shot commands. Commands are not
// racing a renderer, so startup does not wait.
func newSession() (*client.Client, *session.Provider) {
	c := newClient()
	return c, session.New(c, session.WithSettleDelay(0))
}
