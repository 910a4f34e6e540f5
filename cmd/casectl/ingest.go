package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kirillkom/case-intake/internal/core/domain"
	"github.com/kirillkom/case-intake/internal/core/usecase"
)

var ingestWait bool

var ingestCmd = &cobra.Command{
	Use:   "ingest <processId> <file>...",
	Short: "Upload case files into a process",
	Long: `Uploads files under {processId}/{fileName} and queues them for the
workers. With --wait the files are ingested in this process instead and the
per-file outcome is printed.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestWait, "wait", false, "ingest synchronously instead of queueing")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	processID, paths := args[0], args[1:]
	ctx := cmd.Context()

	if !ingestWait {
		for _, path := range paths {
			doc, err := uploadFile(ctx, processID, path)
			if err != nil {
				return err
			}
			cmd.Printf("queued %s (%s)\n", doc.StoragePath, doc.ID)
		}
		return nil
	}

	docs := make([]*domain.Document, 0, len(paths))
	for _, path := range paths {
		doc, err := storeFile(ctx, processID, path)
		if err != nil {
			return err
		}
		docs = append(docs, doc)
	}

	ingestCtx, cancel := context.WithTimeout(ctx, app.Config.IngestTimeout)
	defer cancel()

	failed := 0
	for _, outcome := range app.IngestUC.IngestBatch(ingestCtx, docs) {
		if outcome.Status == domain.StatusError {
			failed++
			cmd.Printf("  [error]   %s: %s\n", outcome.FileName, outcome.Error)
			continue
		}
		cmd.Printf("  [indexed] %s (%d chunks)\n", outcome.FileName, outcome.Chunks)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(docs))
	}
	return nil
}

func uploadFile(ctx context.Context, processID, path string) (*domain.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	name := filepath.Base(path)
	doc, err := app.UploadUC.Upload(ctx, processID, name, usecase.DetectMimeType(name), f)
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", path, err)
	}
	return doc, nil
}

func storeFile(ctx context.Context, processID, path string) (*domain.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	name := filepath.Base(path)
	doc, err := app.UploadUC.Stage(ctx, processID, name, usecase.DetectMimeType(name), data)
	if err != nil {
		return nil, fmt.Errorf("store %s: %w", path, err)
	}
	return doc, nil
}
