package vision

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"google.golang.org/api/option"
	visionapi "google.golang.org/api/vision/v1"

	"github.com/kirillkom/case-intake/internal/core/domain"
)

// pagesPerRequest is the synchronous files:annotate limit.
const pagesPerRequest = 5

// OCR runs full-document text detection through Cloud Vision.
type OCR struct {
	service *visionapi.Service
}

func New(ctx context.Context, opts ...option.ClientOption) (*OCR, error) {
	service, err := visionapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create vision service: %w", err)
	}
	return &OCR{service: service}, nil
}

func (o *OCR) Supports(mimeType string) bool {
	switch strings.ToLower(strings.TrimSpace(mimeType)) {
	case "application/pdf", "image/tiff", "image/gif":
		return true
	default:
		return false
	}
}

// DetectText annotates the document in windows of five pages until every page
// reported by the service has been read.
func (o *OCR) DetectText(ctx context.Context, doc *domain.Document) (string, error) {
	mimeType := doc.MimeType
	if !o.Supports(mimeType) {
		mimeType = "application/pdf"
	}
	content := base64.StdEncoding.EncodeToString(doc.Data)

	var text strings.Builder
	for first := int64(1); ; first += pagesPerRequest {
		pages := make([]int64, 0, pagesPerRequest)
		for p := first; p < first+pagesPerRequest; p++ {
			pages = append(pages, p)
		}

		resp, err := o.service.Files.Annotate(&visionapi.BatchAnnotateFilesRequest{
			Requests: []*visionapi.AnnotateFileRequest{{
				InputConfig: &visionapi.InputConfig{
					Content:  content,
					MimeType: mimeType,
				},
				Features: []*visionapi.Feature{{Type: "DOCUMENT_TEXT_DETECTION"}},
				Pages:    pages,
			}},
		}).Context(ctx).Do()
		if err != nil {
			return "", fmt.Errorf("vision annotate pages %d-%d: %w", first, first+pagesPerRequest-1, err)
		}

		totalPages, err := appendAnnotations(&text, resp)
		if err != nil {
			return "", err
		}
		if totalPages < first+pagesPerRequest {
			break
		}
	}
	return text.String(), nil
}

func appendAnnotations(text *strings.Builder, resp *visionapi.BatchAnnotateFilesResponse) (int64, error) {
	var totalPages int64
	for _, fileResp := range resp.Responses {
		if fileResp == nil {
			continue
		}
		if fileResp.Error != nil && fileResp.Error.Message != "" {
			return 0, fmt.Errorf("vision file error: %s", fileResp.Error.Message)
		}
		if fileResp.TotalPages > totalPages {
			totalPages = fileResp.TotalPages
		}
		for _, page := range fileResp.Responses {
			if page == nil {
				continue
			}
			if page.Error != nil && page.Error.Message != "" {
				return 0, fmt.Errorf("vision page error: %s", page.Error.Message)
			}
			if page.FullTextAnnotation == nil || page.FullTextAnnotation.Text == "" {
				continue
			}
			if text.Len() > 0 {
				text.WriteString("\n")
			}
			text.WriteString(page.FullTextAnnotation.Text)
		}
	}
	return totalPages, nil
}
