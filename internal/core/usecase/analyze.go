package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/case-intake/internal/core/domain"
	"github.com/kirillkom/case-intake/internal/core/ports"
)

const defaultAnalyzeConcurrency = 4

type AnalyzeUseCase struct {
	storage     ports.ObjectStorage
	extractor   ports.TextExtractor
	generator   ports.Generator
	analyses    ports.AnalysisRepository
	concurrency int
}

func NewAnalyzeUseCase(
	storage ports.ObjectStorage,
	extractor ports.TextExtractor,
	generator ports.Generator,
	analyses ports.AnalysisRepository,
	concurrency int,
) *AnalyzeUseCase {
	if concurrency <= 0 {
		concurrency = defaultAnalyzeConcurrency
	}
	return &AnalyzeUseCase{
		storage:     storage,
		extractor:   extractor,
		generator:   generator,
		analyses:    analyses,
		concurrency: concurrency,
	}
}

// AnalyzeBatch runs prompt against every named document of the process. Each
// document gets its own result, in input order; one failure never affects the
// others.
func (uc *AnalyzeUseCase) AnalyzeBatch(ctx context.Context, processID string, fileNames []string, prompt string) []domain.AnalysisResult {
	results := make([]domain.AnalysisResult, len(fileNames))
	if err := uc.precheck(ctx, processID, prompt); err != nil {
		for i, name := range fileNames {
			results[i] = domain.AnalysisFailed(name, err)
		}
		return results
	}

	var g errgroup.Group
	g.SetLimit(uc.concurrency)
	for i, name := range fileNames {
		g.Go(func() error {
			result, err := uc.analyzeOne(ctx, processID, name, prompt)
			if err != nil {
				slog.Warn("analysis_failed", "process_id", processID, "file_name", name, "error", err)
				results[i] = domain.AnalysisFailed(name, err)
				return nil
			}
			results[i] = domain.AnalysisSucceeded(name, result)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (uc *AnalyzeUseCase) precheck(ctx context.Context, processID, prompt string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateProcessID(processID); err != nil {
		return err
	}
	if strings.TrimSpace(prompt) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "analyze", errors.New("prompt is required"))
	}
	return nil
}

func (uc *AnalyzeUseCase) analyzeOne(ctx context.Context, processID, fileName, prompt string) (json.RawMessage, error) {
	if fileName == "" || fileName != sanitizeFilename(fileName) {
		return nil, domain.WrapError(domain.ErrInvalidInput, "analyze", fmt.Errorf("invalid file name %q", fileName))
	}
	doc := domain.NewDocument(processID, fileName, DetectMimeType(fileName), nil)

	data, err := uc.load(ctx, doc.StoragePath)
	if err != nil {
		return nil, err
	}
	doc.Data = data

	res, err := uc.extractor.Extract(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("extract text: %w", err)
	}
	if res.WasEmpty {
		return nil, domain.WrapError(domain.ErrExtractionFailed, "extract text", errors.New("no text extracted"))
	}

	raw, err := uc.generator.Generate(ctx, domain.GenerationRequest{
		Prompt:      buildAnalysisPrompt(prompt, fileName, res.Text),
		Temperature: answerTemperature,
		JSON:        true,
	})
	if err != nil {
		return nil, domain.WrapError(domain.ErrGenerationFailed, "generate analysis", err)
	}

	result, err := parseJSONResult(raw)
	if err != nil {
		return nil, domain.WrapError(domain.ErrGenerationFailed, "parse analysis", err)
	}

	if err := uc.analyses.SaveAnalysis(ctx, &domain.DocumentAnalysis{
		ProcessID:  processID,
		DocumentID: doc.ID,
		FileName:   fileName,
		Prompt:     prompt,
		Result:     result,
	}); err != nil {
		return nil, domain.WrapError(domain.ErrPersistenceFailed, "save analysis", err)
	}
	return result, nil
}

func (uc *AnalyzeUseCase) load(ctx context.Context, key string) ([]byte, error) {
	reader, err := uc.storage.Open(ctx, "", key)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", key, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return data, nil
}

// parseJSONResult accepts the model output with or without a markdown fence.
func parseJSONResult(raw string) (json.RawMessage, error) {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
		text = strings.TrimSpace(text)
	}
	if text == "" || !json.Valid([]byte(text)) {
		return nil, fmt.Errorf("model returned invalid JSON")
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, []byte(text)); err != nil {
		return nil, fmt.Errorf("compact JSON: %w", err)
	}
	return json.RawMessage(compact.Bytes()), nil
}
