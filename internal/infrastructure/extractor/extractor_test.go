package extractor

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/kirillkom/case-intake/internal/core/domain"
	"github.com/kirillkom/case-intake/internal/infrastructure/extractor/plaintext"
)

type textLayerFake struct {
	text string
	err  error
}

func (f *textLayerFake) Supports(mimeType string) bool { return mimeType == "application/pdf" }

func (f *textLayerFake) ExtractText(context.Context, []byte) (string, error) {
	return f.text, f.err
}

type ocrFake struct {
	text  string
	err   error
	calls int
	data  []byte
}

func (f *ocrFake) Supports(mimeType string) bool {
	return mimeType == "application/pdf" || mimeType == "image/tiff"
}

func (f *ocrFake) DetectText(_ context.Context, doc *domain.Document) (string, error) {
	f.calls++
	f.data = doc.Data
	return f.text, f.err
}

type storageFake struct {
	body   string
	err    error
	bucket string
	key    string
}

func (f *storageFake) Save(context.Context, string, io.Reader) error { return nil }
func (f *storageFake) Open(_ context.Context, bucket, key string) (io.ReadCloser, error) {
	f.bucket, f.key = bucket, key
	if f.err != nil {
		return nil, f.err
	}
	return io.NopCloser(strings.NewReader(f.body)), nil
}
func (f *storageFake) DeletePrefix(context.Context, string) error { return nil }

func pdfDoc() *domain.Document {
	return &domain.Document{ID: "doc-1", ProcessID: "p-1", MimeType: "application/pdf", Data: []byte("%PDF-1.4")}
}

func TestExtractPrefersTextLayer(t *testing.T) {
	ocr := &ocrFake{text: "ocr text"}
	e := New(nil, ocr, &textLayerFake{text: "native text"})

	res, err := e.Extract(context.Background(), pdfDoc())
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if res.Text != "native text" || res.Source != domain.ExtractionTextLayer || res.WasEmpty {
		t.Fatalf("unexpected result %+v", res)
	}
	if ocr.calls != 0 {
		t.Fatalf("expected no OCR call, got %d", ocr.calls)
	}
}

func TestExtractFallsBackToOCRForWhitespaceTextLayer(t *testing.T) {
	ocr := &ocrFake{text: "scanned judgment"}
	e := New(nil, ocr, &textLayerFake{text: " \n\t "})

	res, err := e.Extract(context.Background(), pdfDoc())
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if res.Text != "scanned judgment" || res.Source != domain.ExtractionOCR {
		t.Fatalf("unexpected result %+v", res)
	}
	if string(ocr.data) != "%PDF-1.4" {
		t.Fatalf("expected OCR to receive document bytes, got %q", ocr.data)
	}
}

func TestExtractFallsBackToOCRWhenTextLayerUnreadable(t *testing.T) {
	ocr := &ocrFake{text: "recovered"}
	e := New(nil, ocr, &textLayerFake{err: errors.New("malformed xref")})

	res, err := e.Extract(context.Background(), pdfDoc())
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if res.Source != domain.ExtractionOCR {
		t.Fatalf("expected OCR source, got %+v", res)
	}
}

func TestExtractReportsEmptyWhenOCRFindsNothing(t *testing.T) {
	e := New(nil, &ocrFake{text: "   "}, &textLayerFake{})

	res, err := e.Extract(context.Background(), pdfDoc())
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if !res.WasEmpty || res.Text != "" || res.Source != domain.ExtractionNone {
		t.Fatalf("expected empty result, got %+v", res)
	}
}

func TestExtractOCRErrorIsExtractionFailed(t *testing.T) {
	e := New(nil, &ocrFake{err: errors.New("vision unavailable")}, &textLayerFake{})

	_, err := e.Extract(context.Background(), pdfDoc())
	if !domain.IsKind(err, domain.ErrExtractionFailed) {
		t.Fatalf("expected ErrExtractionFailed, got %v", err)
	}
}

func TestExtractStripsNULCharacters(t *testing.T) {
	e := New(nil, nil, &textLayerFake{text: "Claim\x00ant: ACME\x00"})
	res, err := e.Extract(context.Background(), pdfDoc())
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if res.Text != "Claimant: ACME" {
		t.Fatalf("expected NUL-free text, got %q", res.Text)
	}

	ocr := &ocrFake{text: "\x00\x00"}
	e = New(nil, ocr, &textLayerFake{text: "\x00"})
	res, err = e.Extract(context.Background(), pdfDoc())
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if !res.WasEmpty || ocr.calls != 1 {
		t.Fatalf("NUL-only text must count as empty, got %+v calls=%d", res, ocr.calls)
	}
}

func TestExtractTIFFGoesStraightToOCR(t *testing.T) {
	ocr := &ocrFake{text: "tiff text"}
	e := New(nil, ocr, &textLayerFake{text: "should not be used"})

	res, err := e.Extract(context.Background(), &domain.Document{ID: "d", MimeType: "image/tiff", Data: []byte("II*")})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if res.Text != "tiff text" || ocr.calls != 1 {
		t.Fatalf("unexpected result %+v calls=%d", res, ocr.calls)
	}
}

func TestExtractLoadsFromStorageWhenDataMissing(t *testing.T) {
	e := New(&storageFake{body: "plain case notes"}, nil, plaintext.NewExtractor())

	res, err := e.Extract(context.Background(), &domain.Document{ID: "d", MimeType: "text/plain", StoragePath: "p-1/notes.txt"})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if res.Text != "plain case notes" {
		t.Fatalf("unexpected text %q", res.Text)
	}
}

func TestExtractReadsFromDocumentBucket(t *testing.T) {
	storage := &storageFake{body: "notes"}
	e := New(storage, nil, plaintext.NewExtractor())

	doc := &domain.Document{ID: "d", MimeType: "text/plain", Bucket: "intake-drop", StoragePath: "p-1/notes.txt"}
	if _, err := e.Extract(context.Background(), doc); err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if storage.bucket != "intake-drop" || storage.key != "p-1/notes.txt" {
		t.Fatalf("expected gs://intake-drop/p-1/notes.txt, got bucket=%q key=%q", storage.bucket, storage.key)
	}
}

func TestExtractStorageErrorIsExtractionFailed(t *testing.T) {
	e := New(&storageFake{err: errors.New("no such object")}, nil)

	_, err := e.Extract(context.Background(), &domain.Document{ID: "d", MimeType: "application/pdf", StoragePath: "p/x.pdf"})
	if !domain.IsKind(err, domain.ErrExtractionFailed) {
		t.Fatalf("expected ErrExtractionFailed, got %v", err)
	}
}
