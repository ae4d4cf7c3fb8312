// ABOUTME: UI command for the gradeportal CLI
// ABOUTME: Launches the full-screen portal with logging redirected to a file

package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/uniportal/gradeportal/internal/logger"
	"github.com/uniportal/gradeportal/internal/session"
	"github.com/uniportal/gradeportal/internal/tui"
)

var uiCmd = &cobra.Command{
	Use:   "ui",
	Short: "Open the interactive portal",
	Long:  `Open the full-screen portal. Logs go to debug.log in the config directory.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		f, err := logger.OpenFile(GetConfigDir())
		if err != nil {
			logger.Discard()
		} else {
			defer f.Close()
			level, format := "debug", "text"
			if cfg != nil {
				level, format = cfg.LogLevel, cfg.LogFormat
			}
			logger.Init(f, level, format)
		}

		c := newClient()
		return tui.Run(ctx, session.New(c), c)
	},
}

func init() {
	rootCmd.AddCommand(uiCmd)
}
