package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirillkom/case-intake/internal/core/domain"
	"github.com/kirillkom/case-intake/internal/core/ports"
)

type ProcessUseCase struct {
	processes ports.ProcessRepository
	chunks    ports.ChunkStore
	analyses  ports.AnalysisRepository
	index     ports.VectorIndex
	storage   ports.ObjectStorage
}

func NewProcessUseCase(
	processes ports.ProcessRepository,
	chunks ports.ChunkStore,
	analyses ports.AnalysisRepository,
	index ports.VectorIndex,
	storage ports.ObjectStorage,
) *ProcessUseCase {
	return &ProcessUseCase{
		processes: processes,
		chunks:    chunks,
		analyses:  analyses,
		index:     index,
		storage:   storage,
	}
}

func (uc *ProcessUseCase) GetByID(ctx context.Context, processID string) (*domain.Process, error) {
	if err := validateProcessID(processID); err != nil {
		return nil, err
	}
	return uc.processes.GetByID(ctx, processID)
}

// RemoveProcess deletes vectors first, then rows, then stored files, so an
// interrupted removal can be repeated.
func (uc *ProcessUseCase) RemoveProcess(ctx context.Context, processID string) error {
	if _, err := uc.GetByID(ctx, processID); err != nil {
		return err
	}

	ids, err := uc.chunks.ListIDsByProcess(ctx, processID)
	if err != nil {
		return domain.WrapError(domain.ErrPersistenceFailed, "list chunk ids", err)
	}
	if err := uc.index.Delete(ctx, ids); err != nil {
		return domain.WrapError(domain.ErrIndexWriteFailed, "delete vectors", err)
	}
	if err := uc.chunks.DeleteByProcess(ctx, processID); err != nil {
		return domain.WrapError(domain.ErrPersistenceFailed, "delete chunks", err)
	}
	if err := uc.analyses.DeleteByProcess(ctx, processID); err != nil {
		return domain.WrapError(domain.ErrPersistenceFailed, "delete analyses", err)
	}
	if err := uc.storage.DeletePrefix(ctx, processID); err != nil {
		return fmt.Errorf("delete stored files: %w", err)
	}
	if err := uc.processes.Delete(ctx, processID); err != nil {
		return err
	}

	slog.Info("process_removed", "process_id", processID, "chunks", len(ids))
	return nil
}
