package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/case-intake/internal/core/domain"
)

type ProcessRepository struct {
	db *sql.DB
}

func NewProcessRepository(db *sql.DB) *ProcessRepository {
	return &ProcessRepository{db: db}
}

// Ensure creates the process in the uploaded state unless it already exists.
func (r *ProcessRepository) Ensure(ctx context.Context, processID string) (*domain.Process, error) {
	now := time.Now().UTC()
	row := r.db.QueryRowContext(ctx, `
INSERT INTO processes (id, status, error_message, created_at, updated_at)
VALUES ($1, $2, '', $3, $3)
ON CONFLICT (id) DO UPDATE SET updated_at = processes.updated_at
RETURNING id, status, error_message, created_at, updated_at
`, processID, string(domain.StatusUploaded), now)

	p, err := scanProcess(row)
	if err != nil {
		return nil, fmt.Errorf("ensure process: %w", err)
	}
	return p, nil
}

func (r *ProcessRepository) GetByID(ctx context.Context, processID string) (*domain.Process, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, status, error_message, created_at, updated_at
FROM processes
WHERE id = $1
`, processID)

	p, err := scanProcess(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrProcessNotFound, "get process", fmt.Errorf("id=%s", processID))
		}
		return nil, fmt.Errorf("scan process: %w", err)
	}
	return p, nil
}

// UpdateStatus is last-write-wins; concurrent ingestions of one process race freely.
func (r *ProcessRepository) UpdateStatus(ctx context.Context, processID string, status domain.ProcessStatus, errMessage string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE processes
SET status = $2, error_message = $3, updated_at = $4
WHERE id = $1
`, processID, string(status), errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update process status: %w", err)
	}
	return requireAffected(res, processID)
}

func (r *ProcessRepository) Delete(ctx context.Context, processID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM processes WHERE id = $1`, processID)
	if err != nil {
		return fmt.Errorf("delete process: %w", err)
	}
	return requireAffected(res, processID)
}

func requireAffected(res sql.Result, processID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return domain.WrapError(domain.ErrProcessNotFound, "process", fmt.Errorf("id=%s", processID))
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProcess(row rowScanner) (*domain.Process, error) {
	var p domain.Process
	var status string
	if err := row.Scan(&p.ID, &status, &p.Error, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Status = domain.ProcessStatus(status)
	return &p, nil
}
