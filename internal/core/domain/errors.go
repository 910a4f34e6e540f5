package domain

import (
	"errors"
	"fmt"
)

var (
	ErrProcessNotFound = errors.New("process not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrTemporary       = errors.New("temporary failure")

	ErrExtractionFailed       = errors.New("extraction failed")
	ErrInvalidConfiguration   = errors.New("invalid configuration")
	ErrEmbeddingCountMismatch = errors.New("embedding count mismatch")
	ErrIndexWriteFailed       = errors.New("index write failed")
	ErrIndexQueryFailed       = errors.New("index query failed")
	ErrGenerationFailed       = errors.New("generation failed")
	ErrPersistenceFailed      = errors.New("persistence failed")
	ErrAnswerFailed           = errors.New("answer failed")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
