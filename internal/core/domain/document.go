package domain

import (
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

type ProcessStatus string

const (
	StatusUploaded          ProcessStatus = "uploaded"
	StatusExtracting        ProcessStatus = "extracting"
	StatusChunkingEmbedding ProcessStatus = "chunking_embedding"
	StatusIndexed           ProcessStatus = "indexed"
	StatusError             ProcessStatus = "error"
)

// Process groups the documents of one case/matter.
type Process struct {
	ID        string        `json:"id"`
	Status    ProcessStatus `json:"status"`
	Error     string        `json:"error,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Document is one uploaded file. Data is only held while the file is processed.
// Bucket is set when the file was announced by a storage notification.
type Document struct {
	ID          string `json:"id"`
	ProcessID   string `json:"process_id"`
	FileName    string `json:"file_name"`
	MimeType    string `json:"mime_type"`
	Bucket      string `json:"bucket,omitempty"`
	StoragePath string `json:"storage_path"`
	Data        []byte `json:"-"`
}

var documentNamespace = uuid.MustParse("6f1c2a64-8a9e-4f52-9d53-3c0b6c1e7a10")

// DocumentID derives a stable id from the storage path so re-ingesting the same
// object replaces its chunks instead of duplicating them.
func DocumentID(storagePath string) string {
	return uuid.NewSHA1(documentNamespace, []byte(storagePath)).String()
}

// StoragePath returns the {processId}/{fileName} object key.
func StoragePath(processID, fileName string) string {
	return processID + "/" + fileName
}

// SplitStoragePath derives the process id from the parent folder of an object key.
func SplitStoragePath(objectPath string) (processID, fileName string, ok bool) {
	clean := strings.Trim(path.Clean("/"+objectPath), "/")
	dir, file := path.Split(clean)
	dir = strings.Trim(dir, "/")
	if dir == "" || file == "" || strings.Contains(dir, "/") {
		return "", "", false
	}
	return dir, file, true
}

// NewDocument builds a document addressed by its storage path.
func NewDocument(processID, fileName, mimeType string, data []byte) *Document {
	storagePath := StoragePath(processID, fileName)
	return &Document{
		ID:          DocumentID(storagePath),
		ProcessID:   processID,
		FileName:    fileName,
		MimeType:    mimeType,
		StoragePath: storagePath,
		Data:        data,
	}
}

type ExtractionSource string

const (
	ExtractionTextLayer ExtractionSource = "text_layer"
	ExtractionOCR       ExtractionSource = "ocr"
	ExtractionNone      ExtractionSource = "none"
)

// ExtractionResult carries extracted text. WasEmpty is set when neither the
// text layer nor OCR produced any text.
type ExtractionResult struct {
	Text     string           `json:"text"`
	Source   ExtractionSource `json:"source"`
	WasEmpty bool             `json:"was_empty"`
}

// IngestOutcome reports one document of a batch ingestion.
type IngestOutcome struct {
	DocumentID string        `json:"document_id"`
	ProcessID  string        `json:"process_id"`
	FileName   string        `json:"file_name"`
	Status     ProcessStatus `json:"status"`
	Chunks     int           `json:"chunks"`
	Error      string        `json:"error,omitempty"`
}
