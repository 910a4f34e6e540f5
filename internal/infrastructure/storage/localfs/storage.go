package localfs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Storage is a single-bucket object store rooted at a local directory.
type Storage struct {
	basePath string
	bucket   string
}

func New(basePath, bucket string) (*Storage, error) {
	if basePath == "" {
		basePath = "./data/storage"
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &Storage{basePath: basePath, bucket: bucket}, nil
}

func (s *Storage) Save(_ context.Context, key string, data io.Reader) error {
	path, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create object dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	return writeAndClose(f, data)
}

// writeAndClose returns the close error when the copy itself succeeded.
func writeAndClose(w io.WriteCloser, data io.Reader) error {
	if _, err := io.Copy(w, data); err != nil {
		_ = w.Close()
		return fmt.Errorf("write file: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close file: %w", err)
	}
	return nil
}

// Open reads key. Objects of any bucket other than the configured one are unknown here.
func (s *Storage) Open(_ context.Context, bucket, key string) (io.ReadCloser, error) {
	if bucket != "" && bucket != s.bucket {
		return nil, fmt.Errorf("bucket %q is not served by local storage %q", bucket, s.bucket)
	}
	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	return f, nil
}

// DeletePrefix removes every object stored under a {processId}/ folder.
func (s *Storage) DeletePrefix(_ context.Context, prefix string) error {
	path, err := s.resolve(prefix)
	if err != nil {
		return err
	}
	if path == filepath.Clean(s.basePath) {
		return fmt.Errorf("refusing to delete storage root")
	}
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("remove objects: %w", err)
	}
	return nil
}

func (s *Storage) resolve(key string) (string, error) {
	base := filepath.Clean(s.basePath)
	path := filepath.Join(base, filepath.FromSlash(key))
	if path != base && !strings.HasPrefix(path, base+string(filepath.Separator)) {
		return "", fmt.Errorf("object key escapes storage root: %s", key)
	}
	return path, nil
}
