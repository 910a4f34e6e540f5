package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/case-intake/internal/core/domain"
)

// passthroughConverter lets array arguments reach the mock unchanged, as the
// pgx driver accepts them natively.
type passthroughConverter struct{}

func (passthroughConverter) ConvertValue(v any) (driver.Value, error) { return v, nil }

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.ValueConverterOption(passthroughConverter{}))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db, mock
}

func assertExpectations(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestProcessGetByIDReturnsDomainNotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewProcessRepository(db)

	mock.ExpectQuery("SELECT id, status, error_message").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrProcessNotFound) {
		t.Fatalf("expected ErrProcessNotFound, got %v", err)
	}
	assertExpectations(t, mock)
}

func TestProcessEnsureReturnsStoredRow(t *testing.T) {
	db, mock := newMock(t)
	repo := NewProcessRepository(db)

	created := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery("INSERT INTO processes").
		WithArgs("case-42", string(domain.StatusUploaded), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status", "error_message", "created_at", "updated_at"}).
			AddRow("case-42", string(domain.StatusIndexed), "", created, created))

	p, err := repo.Ensure(context.Background(), "case-42")
	if err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}
	if p.Status != domain.StatusIndexed || !p.CreatedAt.Equal(created) {
		t.Fatalf("unexpected process %+v", p)
	}
	assertExpectations(t, mock)
}

func TestProcessUpdateStatusReturnsNotFoundWhenNoRowsAffected(t *testing.T) {
	db, mock := newMock(t)
	repo := NewProcessRepository(db)

	mock.ExpectExec("UPDATE processes").
		WithArgs("missing", string(domain.StatusExtracting), "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), "missing", domain.StatusExtracting, "")
	if !domain.IsKind(err, domain.ErrProcessNotFound) {
		t.Fatalf("expected ErrProcessNotFound, got %v", err)
	}
	assertExpectations(t, mock)
}

func TestReplaceDocumentChunksRunsInOneTransaction(t *testing.T) {
	db, mock := newMock(t)
	repo := NewChunkRepository(db)

	chunks := []domain.Chunk{
		{ID: "doc_0", ProcessID: "p", DocumentID: "doc", FileName: "a.pdf", Index: 0, Total: 2, Text: "first"},
		{ID: "doc_1", ProcessID: "p", DocumentID: "doc", FileName: "a.pdf", Index: 1, Total: 2, Text: "second"},
	}

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT chunk_id FROM chunks WHERE document_id").
		WithArgs("doc").
		WillReturnRows(sqlmock.NewRows([]string{"chunk_id"}).AddRow("doc_0").AddRow("doc_1").AddRow("doc_2"))
	mock.ExpectExec("DELETE FROM chunks WHERE document_id").
		WithArgs("doc").
		WillReturnResult(sqlmock.NewResult(0, 3))
	for _, c := range chunks {
		mock.ExpectExec("INSERT INTO chunks").
			WithArgs(c.ID, c.ProcessID, c.DocumentID, c.FileName, c.Index, c.Total, c.Text, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()

	previous, err := repo.ReplaceDocumentChunks(context.Background(), "doc", chunks)
	if err != nil {
		t.Fatalf("ReplaceDocumentChunks() error = %v", err)
	}
	if len(previous) != 3 || previous[2] != "doc_2" {
		t.Fatalf("unexpected previous ids %v", previous)
	}
	assertExpectations(t, mock)
}

func TestReplaceDocumentChunksRollsBackOnInsertFailure(t *testing.T) {
	db, mock := newMock(t)
	repo := NewChunkRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT chunk_id FROM chunks WHERE document_id").
		WithArgs("doc").
		WillReturnRows(sqlmock.NewRows([]string{"chunk_id"}))
	mock.ExpectExec("DELETE FROM chunks WHERE document_id").
		WithArgs("doc").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO chunks").
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err := repo.ReplaceDocumentChunks(context.Background(), "doc", []domain.Chunk{{ID: "doc_0", DocumentID: "doc"}})
	if err == nil {
		t.Fatalf("expected error")
	}
	assertExpectations(t, mock)
}

func TestFetchManyScopesToProcess(t *testing.T) {
	db, mock := newMock(t)
	repo := NewChunkRepository(db)

	now := time.Now().UTC()
	mock.ExpectQuery("FROM chunks").
		WithArgs("p-1", []string{"doc_0", "doc_9", "other_0"}).
		WillReturnRows(sqlmock.NewRows([]string{"chunk_id", "process_id", "document_id", "file_name", "chunk_number", "total_chunks", "text", "created_at"}).
			AddRow("doc_0", "p-1", "doc", "a.pdf", 0, 1, "text", now))

	got, err := repo.FetchMany(context.Background(), "p-1", []string{"doc_0", "doc_9", "other_0"})
	if err != nil {
		t.Fatalf("FetchMany() error = %v", err)
	}
	if len(got) != 1 || got["doc_0"].Text != "text" {
		t.Fatalf("unexpected chunks %+v", got)
	}
	assertExpectations(t, mock)
}

func TestFetchManyWithoutIDsSkipsQuery(t *testing.T) {
	db, mock := newMock(t)
	got, err := NewChunkRepository(db).FetchMany(context.Background(), "p", nil)
	if err != nil || len(got) != 0 {
		t.Fatalf("expected empty result, got %v, %v", got, err)
	}
	assertExpectations(t, mock)
}

func TestSaveAnalysisAssignsIDAndTimestamp(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAnalysisRepository(db)

	mock.ExpectExec("INSERT INTO document_analyses").
		WithArgs(sqlmock.AnyArg(), "p", "doc", "a.pdf", "summarise", []byte(`{"ok":true}`), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	a := &domain.DocumentAnalysis{ProcessID: "p", DocumentID: "doc", FileName: "a.pdf", Prompt: "summarise", Result: json.RawMessage(`{"ok":true}`)}
	if err := repo.SaveAnalysis(context.Background(), a); err != nil {
		t.Fatalf("SaveAnalysis() error = %v", err)
	}
	if a.ID == "" || a.CreatedAt.IsZero() {
		t.Fatalf("expected id and timestamp to be set, got %+v", a)
	}
	assertExpectations(t, mock)
}
