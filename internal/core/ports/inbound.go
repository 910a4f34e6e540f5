package ports

import (
	"context"
	"io"

	"github.com/kirillkom/case-intake/internal/core/domain"
)

// DocumentUploader is the inbound contract for document upload orchestration.
type DocumentUploader interface {
	Upload(ctx context.Context, processID, fileName, mimeType string, body io.Reader) (*domain.Document, error)
	NotifyObjectFinalized(ctx context.Context, event ObjectFinalized) error
}

// DocumentIngestor runs the extraction-to-index pipeline.
type DocumentIngestor interface {
	Ingest(ctx context.Context, doc *domain.Document) error
	IngestObject(ctx context.Context, event ObjectFinalized) error
}

// QuestionAnswerer is the inbound contract for grounded RAG answers.
type QuestionAnswerer interface {
	Answer(ctx context.Context, processID, query string, history []domain.ChatTurn) (*domain.Answer, error)
}

// BatchAnalyzer fans a prompt out across documents.
type BatchAnalyzer interface {
	AnalyzeBatch(ctx context.Context, processID string, fileNames []string, prompt string) []domain.AnalysisResult
}

// ProcessReader is the inbound read model for process state.
type ProcessReader interface {
	GetByID(ctx context.Context, processID string) (*domain.Process, error)
}

// ProcessRemover deletes a process with every derived artifact.
type ProcessRemover interface {
	RemoveProcess(ctx context.Context, processID string) error
}
