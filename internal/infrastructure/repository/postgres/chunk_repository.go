package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/kirillkom/case-intake/internal/core/domain"
)

type ChunkRepository struct {
	db *sql.DB
}

func NewChunkRepository(db *sql.DB) *ChunkRepository {
	return &ChunkRepository{db: db}
}

// ReplaceDocumentChunks swaps the document's rows in one transaction. Either
// every new chunk is stored or the previous rows stay untouched.
func (r *ChunkRepository) ReplaceDocumentChunks(ctx context.Context, documentID string, chunks []domain.Chunk) ([]string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin chunks tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	rows, err := tx.QueryContext(ctx, `SELECT chunk_id FROM chunks WHERE document_id = $1 FOR UPDATE`, documentID)
	if err != nil {
		return nil, fmt.Errorf("select previous chunks: %w", err)
	}
	previous, err := scanIDs(rows)
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID); err != nil {
		return nil, fmt.Errorf("delete previous chunks: %w", err)
	}

	now := time.Now().UTC()
	for _, c := range chunks {
		createdAt := c.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO chunks (chunk_id, process_id, document_id, file_name, chunk_number, total_chunks, text, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`, c.ID, c.ProcessID, c.DocumentID, c.FileName, c.Index, c.Total, c.Text, createdAt); err != nil {
			return nil, fmt.Errorf("insert chunk %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit chunks tx: %w", err)
	}
	return previous, nil
}

// FetchMany returns the chunks of processID among ids. Unknown ids and ids of
// other processes are omitted.
func (r *ChunkRepository) FetchMany(ctx context.Context, processID string, ids []string) (map[string]domain.Chunk, error) {
	out := make(map[string]domain.Chunk, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT chunk_id, process_id, document_id, file_name, chunk_number, total_chunks, text, created_at
FROM chunks
WHERE process_id = $1 AND chunk_id = ANY($2)
`, processID, ids)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c domain.Chunk
		if err := rows.Scan(&c.ID, &c.ProcessID, &c.DocumentID, &c.FileName, &c.Index, &c.Total, &c.Text, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		out[c.ID] = c
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks: %w", err)
	}
	return out, nil
}

func (r *ChunkRepository) DeleteByDocument(ctx context.Context, documentID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("delete document chunks: %w", err)
	}
	return nil
}

func (r *ChunkRepository) ListIDsByProcess(ctx context.Context, processID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT chunk_id FROM chunks WHERE process_id = $1 ORDER BY chunk_id`, processID)
	if err != nil {
		return nil, fmt.Errorf("list process chunks: %w", err)
	}
	return scanIDs(rows)
}

func (r *ChunkRepository) DeleteByProcess(ctx context.Context, processID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM chunks WHERE process_id = $1`, processID); err != nil {
		return fmt.Errorf("delete process chunks: %w", err)
	}
	return nil
}

func scanIDs(rows *sql.Rows) ([]string, error) {
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan chunk id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunk ids: %w", err)
	}
	return ids, nil
}
