package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"path/filepath"
	"strings"

	"github.com/kirillkom/case-intake/internal/core/domain"
	"github.com/kirillkom/case-intake/internal/core/ports"
)

type UploadUseCase struct {
	processes ports.ProcessRepository
	storage   ports.ObjectStorage
	queue     ports.MessageQueue
	bucket    string
}

func NewUploadUseCase(
	processes ports.ProcessRepository,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
	bucket string,
) *UploadUseCase {
	return &UploadUseCase{
		processes: processes,
		storage:   storage,
		queue:     queue,
		bucket:    bucket,
	}
}

// Upload stores the file under {processId}/{fileName} and announces it to the
// ingestion workers.
func (uc *UploadUseCase) Upload(
	ctx context.Context,
	processID, fileName, mimeType string,
	body io.Reader,
) (*domain.Document, error) {
	doc, err := uc.store(ctx, processID, fileName, mimeType, body)
	if err != nil {
		return nil, err
	}
	if err := uc.processes.UpdateStatus(ctx, processID, domain.StatusUploaded, ""); err != nil {
		return nil, fmt.Errorf("set status=uploaded: %w", err)
	}

	event := ports.ObjectFinalized{Bucket: uc.bucket, Name: doc.StoragePath, ContentType: doc.MimeType}
	if err := uc.queue.PublishObjectFinalized(ctx, event); err != nil {
		return nil, fmt.Errorf("publish object event: %w", err)
	}

	slog.Info("document_uploaded",
		"process_id", processID,
		"document_id", doc.ID,
		"file_name", doc.FileName,
		"mime_type", doc.MimeType,
	)
	return doc, nil
}

// Stage stores the file exactly as Upload does but announces nothing. The
// returned document carries data so it can be ingested in-process.
func (uc *UploadUseCase) Stage(
	ctx context.Context,
	processID, fileName, mimeType string,
	data []byte,
) (*domain.Document, error) {
	doc, err := uc.store(ctx, processID, fileName, mimeType, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	doc.Data = data
	return doc, nil
}

func (uc *UploadUseCase) store(
	ctx context.Context,
	processID, fileName, mimeType string,
	body io.Reader,
) (*domain.Document, error) {
	if err := validateProcessID(processID); err != nil {
		return nil, err
	}
	name := sanitizeFilename(fileName)
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = DetectMimeType(name)
	}
	doc := domain.NewDocument(processID, name, mimeType, nil)

	if err := uc.storage.Save(ctx, doc.StoragePath, body); err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}
	if _, err := uc.processes.Ensure(ctx, processID); err != nil {
		return nil, fmt.Errorf("ensure process: %w", err)
	}
	return doc, nil
}

// NotifyObjectFinalized forwards a storage notification for an object that was
// written by another producer.
func (uc *UploadUseCase) NotifyObjectFinalized(ctx context.Context, event ports.ObjectFinalized) error {
	if _, _, ok := domain.SplitStoragePath(event.Name); !ok {
		return domain.WrapError(domain.ErrInvalidInput, "object event", fmt.Errorf("object %q is not {processId}/{fileName}", event.Name))
	}
	if event.Bucket == "" {
		event.Bucket = uc.bucket
	}
	if err := uc.queue.PublishObjectFinalized(ctx, event); err != nil {
		return fmt.Errorf("publish object event: %w", err)
	}
	return nil
}

func validateProcessID(processID string) error {
	id := strings.TrimSpace(processID)
	switch {
	case id == "":
		return domain.WrapError(domain.ErrInvalidInput, "validate process id", errors.New("process id is required"))
	case id != processID, strings.ContainsAny(id, `/\`), id == "." || id == "..", len(id) > 128:
		return domain.WrapError(domain.ErrInvalidInput, "validate process id", fmt.Errorf("invalid process id %q", processID))
	}
	return nil
}

// DetectMimeType guesses the media type from the file extension.
func DetectMimeType(fileName string) string {
	ext := strings.ToLower(filepath.Ext(fileName))
	switch ext {
	case ".pdf":
		return "application/pdf"
	case ".tif", ".tiff":
		return "image/tiff"
	}
	if t := mime.TypeByExtension(ext); t != "" {
		if mediaType, _, err := mime.ParseMediaType(t); err == nil {
			return mediaType
		}
	}
	return "application/octet-stream"
}

func sanitizeFilename(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." || base == ".." {
		return "document.bin"
	}
	return base
}
