package plaintext

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Extractor treats text/* uploads as their own text layer.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Supports(mimeType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(mimeType)), "text/")
}

func (e *Extractor) ExtractText(_ context.Context, data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", fmt.Errorf("text document is not valid utf-8")
	}
	return string(data), nil
}
