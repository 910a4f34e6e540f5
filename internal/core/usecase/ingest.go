package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/case-intake/internal/core/domain"
	"github.com/kirillkom/case-intake/internal/core/ports"
)

const defaultIngestConcurrency = 4

type IngestUseCase struct {
	processes   ports.ProcessRepository
	chunks      ports.ChunkStore
	extractor   ports.TextExtractor
	chunker     ports.Chunker
	embedder    ports.Embedder
	index       ports.VectorIndex
	concurrency int
}

func NewIngestUseCase(
	processes ports.ProcessRepository,
	chunks ports.ChunkStore,
	extractor ports.TextExtractor,
	chunker ports.Chunker,
	embedder ports.Embedder,
	index ports.VectorIndex,
	concurrency int,
) *IngestUseCase {
	if concurrency <= 0 {
		concurrency = defaultIngestConcurrency
	}
	return &IngestUseCase{
		processes:   processes,
		chunks:      chunks,
		extractor:   extractor,
		chunker:     chunker,
		embedder:    embedder,
		index:       index,
		concurrency: concurrency,
	}
}

// IngestObject ingests the object named by a storage notification. The process
// id is the object's parent folder.
func (uc *IngestUseCase) IngestObject(ctx context.Context, event ports.ObjectFinalized) error {
	processID, fileName, ok := domain.SplitStoragePath(event.Name)
	if !ok {
		return domain.WrapError(domain.ErrInvalidInput, "object event", fmt.Errorf("object %q is not {processId}/{fileName}", event.Name))
	}
	if _, err := uc.processes.Ensure(ctx, processID); err != nil {
		return fmt.Errorf("ensure process: %w", err)
	}

	mimeType := event.ContentType
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = DetectMimeType(fileName)
	}
	doc := domain.NewDocument(processID, fileName, mimeType, nil)
	doc.Bucket = event.Bucket
	return uc.Ingest(ctx, doc)
}

// Ingest runs one document through extraction, chunking, embedding and
// indexing. On failure the process is marked error before the error is returned.
func (uc *IngestUseCase) Ingest(ctx context.Context, doc *domain.Document) error {
	_, err := uc.run(ctx, doc)
	return err
}

// IngestBatch ingests documents concurrently. A failing document never aborts
// the others; outcomes are in input order.
func (uc *IngestUseCase) IngestBatch(ctx context.Context, docs []*domain.Document) []domain.IngestOutcome {
	outcomes := make([]domain.IngestOutcome, len(docs))

	var g errgroup.Group
	g.SetLimit(uc.concurrency)
	for i, doc := range docs {
		g.Go(func() error {
			outcome := domain.IngestOutcome{
				DocumentID: doc.ID,
				ProcessID:  doc.ProcessID,
				FileName:   doc.FileName,
				Status:     domain.StatusIndexed,
			}
			n, err := uc.run(ctx, doc)
			if err != nil {
				outcome.Status = domain.StatusError
				outcome.Error = err.Error()
			}
			outcome.Chunks = n
			outcomes[i] = outcome
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func (uc *IngestUseCase) run(ctx context.Context, doc *domain.Document) (int, error) {
	if err := uc.markStatus(ctx, doc.ProcessID, domain.StatusExtracting, ""); err != nil {
		return 0, fmt.Errorf("set status=extracting: %w", err)
	}

	n, err := uc.pipeline(ctx, doc)
	if err != nil {
		slog.Error("ingestion_failed",
			"process_id", doc.ProcessID,
			"document_id", doc.ID,
			"file_name", doc.FileName,
			"error", err,
		)
		// The error status must land even when ctx timed out.
		if failErr := uc.markStatus(context.WithoutCancel(ctx), doc.ProcessID, domain.StatusError, err.Error()); failErr != nil {
			return 0, fmt.Errorf("%w; mark error status: %v", err, failErr)
		}
		return 0, err
	}

	if err := uc.markStatus(ctx, doc.ProcessID, domain.StatusIndexed, ""); err != nil {
		err = fmt.Errorf("set status=indexed: %w", err)
		if failErr := uc.markStatus(context.WithoutCancel(ctx), doc.ProcessID, domain.StatusError, err.Error()); failErr != nil {
			return 0, fmt.Errorf("%w; mark error status: %v", err, failErr)
		}
		return 0, err
	}
	slog.Info("document_indexed",
		"process_id", doc.ProcessID,
		"document_id", doc.ID,
		"file_name", doc.FileName,
		"chunks", n,
	)
	return n, nil
}

func (uc *IngestUseCase) pipeline(ctx context.Context, doc *domain.Document) (int, error) {
	text, err := uc.extractText(ctx, doc)
	if err != nil {
		return 0, err
	}

	pieces, err := uc.chunk(text)
	if err != nil {
		return 0, err
	}

	if err := uc.markStatus(ctx, doc.ProcessID, domain.StatusChunkingEmbedding, ""); err != nil {
		return 0, fmt.Errorf("set status=chunking_embedding: %w", err)
	}

	vectors, err := uc.embed(ctx, pieces)
	if err != nil {
		return 0, err
	}

	chunks := buildChunks(doc, pieces)
	if err := uc.store(ctx, doc, chunks, vectors); err != nil {
		return 0, err
	}
	return len(chunks), nil
}

func (uc *IngestUseCase) extractText(ctx context.Context, doc *domain.Document) (string, error) {
	res, err := uc.extractor.Extract(ctx, doc)
	if err != nil {
		if domain.IsKind(err, domain.ErrExtractionFailed) {
			return "", fmt.Errorf("extract text: %w", err)
		}
		return "", domain.WrapError(domain.ErrExtractionFailed, "extract text", err)
	}
	if res.WasEmpty {
		return "", domain.WrapError(domain.ErrExtractionFailed, "extract text", errors.New("no text extracted"))
	}
	slog.Info("text_extracted",
		"process_id", doc.ProcessID,
		"document_id", doc.ID,
		"source", string(res.Source),
		"chars", len(res.Text),
	)
	return res.Text, nil
}

func (uc *IngestUseCase) chunk(text string) ([]string, error) {
	pieces, err := uc.chunker.Split(text)
	if err != nil {
		return nil, fmt.Errorf("chunk document: %w", err)
	}
	if len(pieces) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "chunk document", errors.New("chunking produced zero chunks"))
	}
	return pieces, nil
}

func (uc *IngestUseCase) embed(ctx context.Context, pieces []string) ([][]float32, error) {
	vectors, err := uc.embedder.Embed(ctx, pieces)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(pieces) {
		return nil, domain.WrapError(
			domain.ErrEmbeddingCountMismatch,
			"embed chunks",
			fmt.Errorf("vectors/chunks mismatch: %d/%d", len(vectors), len(pieces)),
		)
	}
	return vectors, nil
}

// store commits chunk rows first, then vectors. A failed upsert removes the
// rows again so no row exists without its vector.
func (uc *IngestUseCase) store(ctx context.Context, doc *domain.Document, chunks []domain.Chunk, vectors [][]float32) error {
	previous, err := uc.chunks.ReplaceDocumentChunks(ctx, doc.ID, chunks)
	if err != nil {
		return domain.WrapError(domain.ErrPersistenceFailed, "store chunks", err)
	}

	points := make([]domain.VectorPoint, len(chunks))
	current := make(map[string]struct{}, len(chunks))
	for i, c := range chunks {
		points[i] = domain.VectorPoint{ID: c.ID, Vector: vectors[i]}
		current[c.ID] = struct{}{}
	}

	if err := uc.index.Upsert(ctx, doc.ProcessID, points); err != nil {
		uc.compensate(context.WithoutCancel(ctx), doc, previous, chunks)
		return domain.WrapError(domain.ErrIndexWriteFailed, "upsert vectors", err)
	}

	var stale []string
	for _, id := range previous {
		if _, ok := current[id]; !ok {
			stale = append(stale, id)
		}
	}
	if len(stale) > 0 {
		if err := uc.index.Delete(ctx, stale); err != nil {
			return domain.WrapError(domain.ErrIndexWriteFailed, "delete stale vectors", err)
		}
	}
	return nil
}

// compensate runs after a failed upsert. The previous rows are already gone, so
// vectors of both the previous and the current chunk ids are removed with them.
func (uc *IngestUseCase) compensate(ctx context.Context, doc *domain.Document, previous []string, chunks []domain.Chunk) {
	if err := uc.chunks.DeleteByDocument(ctx, doc.ID); err != nil {
		slog.Error("chunk_compensation_failed",
			"process_id", doc.ProcessID,
			"document_id", doc.ID,
			"error", err,
		)
	}

	seen := make(map[string]struct{}, len(previous)+len(chunks))
	ids := make([]string, 0, len(previous)+len(chunks))
	for _, id := range previous {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	for _, c := range chunks {
		if _, ok := seen[c.ID]; !ok {
			seen[c.ID] = struct{}{}
			ids = append(ids, c.ID)
		}
	}
	if err := uc.index.Delete(ctx, ids); err != nil {
		slog.Error("vector_compensation_failed",
			"process_id", doc.ProcessID,
			"document_id", doc.ID,
			"vectors", len(ids),
			"error", err,
		)
	}
}

func (uc *IngestUseCase) markStatus(ctx context.Context, processID string, status domain.ProcessStatus, errMessage string) error {
	return uc.processes.UpdateStatus(ctx, processID, status, errMessage)
}

func buildChunks(doc *domain.Document, pieces []string) []domain.Chunk {
	now := time.Now().UTC()
	chunks := make([]domain.Chunk, len(pieces))
	for i, text := range pieces {
		chunks[i] = domain.Chunk{
			ID:         domain.ChunkID(doc.ID, i),
			ProcessID:  doc.ProcessID,
			DocumentID: doc.ID,
			FileName:   doc.FileName,
			Index:      i,
			Total:      len(pieces),
			Text:       text,
			CreatedAt:  now,
		}
	}
	return chunks
}
