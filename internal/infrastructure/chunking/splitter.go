package chunking

import (
	"fmt"

	"github.com/kirillkom/case-intake/internal/core/domain"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// Splitter cuts text into fixed-size rune windows. Consecutive chunks share
// exactly Overlap runes.
type Splitter struct {
	ChunkSize int
	Overlap   int
}

func NewSplitter(chunkSize, overlap int) (*Splitter, error) {
	if err := validate(chunkSize, overlap); err != nil {
		return nil, err
	}
	return &Splitter{
		ChunkSize: chunkSize,
		Overlap:   overlap,
	}, nil
}

func (s *Splitter) Split(text string) ([]string, error) {
	return Split(text, s.ChunkSize, s.Overlap)
}

// Split is a pure function of its arguments.
func Split(text string, size, overlap int) ([]string, error) {
	if err := validate(size, overlap); err != nil {
		return nil, err
	}

	runes := []rune(text)
	if len(runes) == 0 {
		return []string{}, nil
	}

	step := size - overlap
	out := make([]string, 0, len(runes)/step+1)
	for start := 0; ; start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return out, nil
}

func validate(size, overlap int) error {
	if size <= 0 {
		return domain.WrapError(domain.ErrInvalidConfiguration, "chunking", fmt.Errorf("chunk size must be positive, got %d", size))
	}
	if overlap < 0 || overlap >= size {
		return domain.WrapError(domain.ErrInvalidConfiguration, "chunking", fmt.Errorf("overlap must be in [0, %d), got %d", size, overlap))
	}
	return nil
}
