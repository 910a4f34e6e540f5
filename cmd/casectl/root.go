package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/kirillkom/case-intake/internal/bootstrap"
	"github.com/kirillkom/case-intake/internal/config"
	"github.com/kirillkom/case-intake/internal/observability/logging"
)

// app is wired once per invocation by the root pre-run hook.
var app *bootstrap.App

var rootCmd = &cobra.Command{
	Use:   "casectl",
	Short: "Operate the case intake pipeline from the command line",
	Long: `casectl ingests case files, asks grounded questions about a case
process and manages process state, using the same configuration as the
API and worker services.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		// stdout belongs to command output and the MCP transport.
		slog.SetDefault(logging.New(os.Stderr, "casectl", cfg.LogLevel, "text"))

		app, err = bootstrap.New(cmd.Context(), cfg)
		if err != nil {
			return fmt.Errorf("bootstrap: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(*cobra.Command, []string) {
		if app != nil {
			app.Close()
		}
	},
}
