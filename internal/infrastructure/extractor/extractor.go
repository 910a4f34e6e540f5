package extractor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/kirillkom/case-intake/internal/core/domain"
	"github.com/kirillkom/case-intake/internal/core/ports"
)

// TextLayer reads text that is already embedded in a file.
type TextLayer interface {
	Supports(mimeType string) bool
	ExtractText(ctx context.Context, data []byte) (string, error)
}

// OCR recognises text from the rendered document.
type OCR interface {
	Supports(mimeType string) bool
	DetectText(ctx context.Context, doc *domain.Document) (string, error)
}

// Extractor prefers a text layer and falls back to OCR when it yields only
// whitespace. When both come back empty it reports WasEmpty instead of failing.
type Extractor struct {
	storage    ports.ObjectStorage
	textLayers []TextLayer
	ocr        OCR
}

func New(storage ports.ObjectStorage, ocr OCR, textLayers ...TextLayer) *Extractor {
	return &Extractor{
		storage:    storage,
		textLayers: textLayers,
		ocr:        ocr,
	}
}

func (e *Extractor) Extract(ctx context.Context, doc *domain.Document) (domain.ExtractionResult, error) {
	data, err := e.load(ctx, doc)
	if err != nil {
		return domain.ExtractionResult{}, domain.WrapError(domain.ErrExtractionFailed, "load document", err)
	}
	withData := *doc
	withData.Data = data

	if layer := e.textLayerFor(doc.MimeType); layer != nil {
		text, err := layer.ExtractText(ctx, data)
		text = stripNUL(text)
		switch {
		case err != nil:
			// An unreadable text layer is not fatal while OCR can still read the page images.
			slog.Warn("text_layer_unreadable",
				"process_id", doc.ProcessID,
				"document_id", doc.ID,
				"error", err,
			)
		case strings.TrimSpace(text) != "":
			return domain.ExtractionResult{Text: text, Source: domain.ExtractionTextLayer}, nil
		}
	}

	if e.ocr == nil || !e.ocr.Supports(doc.MimeType) {
		return domain.ExtractionResult{Source: domain.ExtractionNone, WasEmpty: true}, nil
	}

	slog.Info("ocr_fallback", "process_id", doc.ProcessID, "document_id", doc.ID, "file_name", doc.FileName)
	text, err := e.ocr.DetectText(ctx, &withData)
	if err != nil {
		return domain.ExtractionResult{}, domain.WrapError(domain.ErrExtractionFailed, "ocr", err)
	}
	text = stripNUL(text)
	if strings.TrimSpace(text) == "" {
		return domain.ExtractionResult{Source: domain.ExtractionNone, WasEmpty: true}, nil
	}
	return domain.ExtractionResult{Text: text, Source: domain.ExtractionOCR}, nil
}

// stripNUL drops NUL characters, which Postgres text columns reject.
func stripNUL(text string) string {
	return strings.ReplaceAll(text, "\x00", "")
}

func (e *Extractor) textLayerFor(mimeType string) TextLayer {
	for _, layer := range e.textLayers {
		if layer.Supports(mimeType) {
			return layer
		}
	}
	return nil
}

func (e *Extractor) load(ctx context.Context, doc *domain.Document) ([]byte, error) {
	if len(doc.Data) > 0 {
		return doc.Data, nil
	}
	if e.storage == nil || doc.StoragePath == "" {
		return nil, fmt.Errorf("document %s has neither data nor storage path", doc.ID)
	}

	reader, err := e.storage.Open(ctx, doc.Bucket, doc.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("open source document: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read source document: %w", err)
	}
	return raw, nil
}
