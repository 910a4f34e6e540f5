package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	storage "google.golang.org/api/storage/v1"

	"github.com/kirillkom/case-intake/internal/infrastructure/resilience"
)

// Storage keeps source documents in a Cloud Storage bucket as
// {processId}/{fileName} objects. Writes always go to the configured bucket;
// reads may name the bucket a notification came from.
type Storage struct {
	service  *storage.Service
	bucket   string
	executor *resilience.Executor
}

func New(ctx context.Context, bucket string, executor *resilience.Executor, opts ...option.ClientOption) (*Storage, error) {
	if strings.TrimSpace(bucket) == "" {
		return nil, errors.New("gcs bucket is required")
	}
	service, err := storage.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage service: %w", err)
	}
	return &Storage{service: service, bucket: bucket, executor: executor}, nil
}

func (s *Storage) Save(ctx context.Context, key string, data io.Reader) error {
	return s.executor.Execute(ctx, "gcs.insert", func(callCtx context.Context) error {
		_, err := s.service.Objects.Insert(s.bucket, &storage.Object{Name: key}).Media(data).Context(callCtx).Do()
		if err != nil {
			return fmt.Errorf("gcs insert gs://%s/%s: %w", s.bucket, key, err)
		}
		return nil
	}, classify)
}

func (s *Storage) Open(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	if bucket == "" {
		bucket = s.bucket
	}
	var body io.ReadCloser
	err := s.executor.Execute(ctx, "gcs.download", func(callCtx context.Context) error {
		resp, err := s.service.Objects.Get(bucket, key).Context(callCtx).Download()
		if err != nil {
			return fmt.Errorf("gcs download gs://%s/%s: %w", bucket, key, err)
		}
		body = resp.Body
		return nil
	}, classify)
	if err != nil {
		return nil, err
	}
	return body, nil
}

// DeletePrefix removes every object under {prefix}/. Objects already gone are skipped.
func (s *Storage) DeletePrefix(ctx context.Context, prefix string) error {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return errors.New("refusing to delete bucket root")
	}

	var names []string
	err := s.service.Objects.List(s.bucket).Prefix(prefix+"/").Pages(ctx, func(page *storage.Objects) error {
		for _, obj := range page.Items {
			names = append(names, obj.Name)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("gcs list gs://%s/%s/: %w", s.bucket, prefix, err)
	}

	for _, name := range names {
		err := s.executor.Execute(ctx, "gcs.delete", func(callCtx context.Context) error {
			return s.service.Objects.Delete(s.bucket, name).Context(callCtx).Do()
		}, classify)
		if err != nil && !isNotFound(err) {
			return fmt.Errorf("gcs delete gs://%s/%s: %w", s.bucket, name, err)
		}
	}
	return nil
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}

func classify(err error) resilience.ErrorClassification {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return resilience.ClassifyHTTP(&resilience.HTTPStatusError{
			Service:    "gcs",
			StatusCode: apiErr.Code,
			Status:     http.StatusText(apiErr.Code),
			Body:       apiErr.Message,
		})
	}
	return resilience.ClassifyHTTP(err)
}
