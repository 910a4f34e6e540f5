package pdftext

import (
	"context"
	"testing"
)

func TestSupportsOnlyPDF(t *testing.T) {
	e := NewExtractor()
	if !e.Supports(" Application/PDF ") {
		t.Fatalf("expected pdf to be supported")
	}
	if e.Supports("image/tiff") {
		t.Fatalf("tiff has no text layer")
	}
}

func TestExtractTextRejectsMalformedPDF(t *testing.T) {
	_, err := NewExtractor().ExtractText(context.Background(), []byte("not a pdf"))
	if err == nil {
		t.Fatalf("expected error for malformed pdf")
	}
}

func TestExtractTextHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewExtractor().ExtractText(ctx, []byte("%PDF-1.4")); err == nil {
		t.Fatalf("expected context error")
	}
}
