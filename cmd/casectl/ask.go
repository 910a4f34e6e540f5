package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var askJSON bool

var askCmd = &cobra.Command{
	Use:   "ask <processId> <question>...",
	Short: "Ask a question grounded in a process's documents",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askJSON, "json", false, "print the answer with its supporting chunk ids as JSON")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	processID := args[0]
	question := strings.Join(args[1:], " ")

	ctx, cancel := context.WithTimeout(cmd.Context(), app.Config.QueryTimeout)
	defer cancel()

	answer, err := app.AnswerUC.Answer(ctx, processID, question, nil)
	if err != nil {
		return fmt.Errorf("answer failed: %w", err)
	}

	if askJSON {
		data, err := json.MarshalIndent(answer, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal answer: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}
	cmd.Println(answer.Text)
	return nil
}
