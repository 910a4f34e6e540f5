package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/case-intake/internal/core/domain"
	"github.com/kirillkom/case-intake/internal/core/ports"
)

const defaultTopK = 5

type AnswerUseCase struct {
	embedder  ports.Embedder
	index     ports.VectorIndex
	chunks    ports.ChunkStore
	generator ports.Generator
	topK      int
}

func NewAnswerUseCase(
	embedder ports.Embedder,
	index ports.VectorIndex,
	chunks ports.ChunkStore,
	generator ports.Generator,
	topK int,
) *AnswerUseCase {
	if topK <= 0 {
		topK = defaultTopK
	}
	return &AnswerUseCase{
		embedder:  embedder,
		index:     index,
		chunks:    chunks,
		generator: generator,
		topK:      topK,
	}
}

// Answer retrieves the process's nearest chunks and asks the model to answer
// from them alone.
func (uc *AnswerUseCase) Answer(
	ctx context.Context,
	processID, query string,
	history []domain.ChatTurn,
) (*domain.Answer, error) {
	if err := validateProcessID(processID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(query) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "answer", errors.New("query is required"))
	}

	queryVector, err := uc.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, answerError("embed query", nil, err)
	}

	neighbors, err := uc.index.Query(ctx, processID, queryVector, uc.topK)
	if err != nil {
		return nil, answerError("query vector index", domain.ErrIndexQueryFailed, err)
	}
	if len(neighbors) == 0 {
		slog.Info("rag_no_neighbors", "process_id", processID)
		return &domain.Answer{Text: NoRelevantInformationMessage}, nil
	}

	ids := make([]string, len(neighbors))
	for i, n := range neighbors {
		ids[i] = n.ID
	}
	found, err := uc.chunks.FetchMany(ctx, processID, ids)
	if err != nil {
		return nil, answerError("fetch chunks", domain.ErrPersistenceFailed, err)
	}

	contexts := make([]string, 0, len(ids))
	resolved := make([]string, 0, len(ids))
	for _, id := range ids {
		chunk, ok := found[id]
		if !ok {
			continue
		}
		contexts = append(contexts, chunk.Text)
		resolved = append(resolved, id)
	}
	if dropped := len(ids) - len(resolved); dropped > 0 {
		slog.Warn("rag_unresolved_neighbors", "process_id", processID, "dropped", dropped)
	}
	if len(contexts) == 0 {
		return &domain.Answer{Text: NoRelevantInformationMessage}, nil
	}

	text, err := uc.generator.Generate(ctx, domain.GenerationRequest{
		Prompt:      buildAnswerPrompt(contexts, query),
		History:     history,
		Temperature: answerTemperature,
	})
	if err != nil {
		return nil, answerError("generate answer", domain.ErrGenerationFailed, err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, answerError("generate answer", domain.ErrGenerationFailed, errors.New("model returned no text"))
	}

	return &domain.Answer{
		Text:     text,
		ChunkIDs: resolved,
		Grounded: true,
	}, nil
}

func answerError(operation string, kind, err error) error {
	if kind != nil && !domain.IsKind(err, kind) {
		err = fmt.Errorf("%w: %w", kind, err)
	}
	return domain.WrapError(domain.ErrAnswerFailed, operation, err)
}
