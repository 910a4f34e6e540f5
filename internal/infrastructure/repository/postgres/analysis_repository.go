package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/case-intake/internal/core/domain"
)

type AnalysisRepository struct {
	db *sql.DB
}

func NewAnalysisRepository(db *sql.DB) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

func (r *AnalysisRepository) SaveAnalysis(ctx context.Context, analysis *domain.DocumentAnalysis) error {
	if analysis.ID == "" {
		analysis.ID = uuid.NewString()
	}
	if analysis.CreatedAt.IsZero() {
		analysis.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
INSERT INTO document_analyses (id, process_id, document_id, file_name, prompt, result, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`, analysis.ID, analysis.ProcessID, analysis.DocumentID, analysis.FileName, analysis.Prompt,
		[]byte(analysis.Result), analysis.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert document analysis: %w", err)
	}
	return nil
}

func (r *AnalysisRepository) DeleteByProcess(ctx context.Context, processID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM document_analyses WHERE process_id = $1`, processID); err != nil {
		return fmt.Errorf("delete document analyses: %w", err)
	}
	return nil
}
