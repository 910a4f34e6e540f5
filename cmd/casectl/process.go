package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status <processId>",
	Short: "Show the ingestion status of a process",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		process, err := app.ProcessUC.GetByID(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(process, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal process: %w", err)
		}
		cmd.Println(string(data))
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <processId>",
	Short: "Delete a process with its files, chunks, vectors and analyses",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := app.ProcessUC.RemoveProcess(cmd.Context(), args[0]); err != nil {
			return err
		}
		cmd.Printf("deleted process %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(deleteCmd)
}
