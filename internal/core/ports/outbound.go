package ports

import (
	"context"
	"io"

	"github.com/kirillkom/case-intake/internal/core/domain"
)

// ProcessRepository persists process state.
type ProcessRepository interface {
	Ensure(ctx context.Context, processID string) (*domain.Process, error)
	GetByID(ctx context.Context, processID string) (*domain.Process, error)
	UpdateStatus(ctx context.Context, processID string, status domain.ProcessStatus, errMessage string) error
	Delete(ctx context.Context, processID string) error
}

// ChunkStore persists chunk text keyed by chunk id.
type ChunkStore interface {
	// ReplaceDocumentChunks atomically swaps all chunk rows of a document and
	// returns the ids that were stored before the swap.
	ReplaceDocumentChunks(ctx context.Context, documentID string, chunks []domain.Chunk) ([]string, error)
	// FetchMany omits ids that are unknown or belong to another process.
	FetchMany(ctx context.Context, processID string, ids []string) (map[string]domain.Chunk, error)
	DeleteByDocument(ctx context.Context, documentID string) error
	ListIDsByProcess(ctx context.Context, processID string) ([]string, error)
	DeleteByProcess(ctx context.Context, processID string) error
}

// AnalysisRepository stores batch analysis output.
type AnalysisRepository interface {
	SaveAnalysis(ctx context.Context, analysis *domain.DocumentAnalysis) error
	DeleteByProcess(ctx context.Context, processID string) error
}

// ObjectStorage stores source documents. Save and DeletePrefix act on the
// configured bucket; Open reads from bucket, or the configured one when empty.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	DeletePrefix(ctx context.Context, prefix string) error
}

// ObjectFinalized is the storage notification that triggers ingestion.
type ObjectFinalized struct {
	Bucket      string `json:"bucket"`
	Name        string `json:"name"`
	ContentType string `json:"contentType,omitempty"`
}

// MessageQueue publishes/consumes ingestion events.
type MessageQueue interface {
	PublishObjectFinalized(ctx context.Context, event ObjectFinalized) error
	SubscribeObjectFinalized(ctx context.Context, handler func(context.Context, ObjectFinalized) error) error
}

// TextExtractor extracts plain text from a document, falling back to OCR.
type TextExtractor interface {
	Extract(ctx context.Context, doc *domain.Document) (domain.ExtractionResult, error)
}

// Embedder builds vectors for chunks and query text. Embed returns one vector
// per input, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Chunker splits text into overlapping chunks.
type Chunker interface {
	Split(text string) ([]string, error)
}

// VectorIndex stores chunk embeddings partitioned by process.
type VectorIndex interface {
	Upsert(ctx context.Context, processID string, points []domain.VectorPoint) error
	Query(ctx context.Context, processID string, vector []float32, limit int) ([]domain.Neighbor, error)
	Delete(ctx context.Context, ids []string) error
}

// Generator calls the language model.
type Generator interface {
	Generate(ctx context.Context, req domain.GenerationRequest) (string, error)
}
