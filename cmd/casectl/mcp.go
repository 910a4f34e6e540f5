package main

import (
	"github.com/spf13/cobra"

	mcpadapter "github.com/kirillkom/case-intake/internal/adapters/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the ask_case and process_status tools over MCP stdio",
	Long: `Starts a Model Context Protocol server on stdin/stdout so assistants
can ask grounded questions about a case process.`,
	Args: cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		return mcpadapter.NewServer(app.AnswerUC, app.ProcessUC, app.Config.QueryTimeout).ServeStdio()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
