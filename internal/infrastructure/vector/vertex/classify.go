package vertex

import (
	"errors"
	"net/http"

	"google.golang.org/api/googleapi"

	"github.com/kirillkom/case-intake/internal/infrastructure/resilience"
)

// classify maps googleapi status errors onto the shared HTTP classification.
func classify(err error) resilience.ErrorClassification {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return resilience.ClassifyHTTP(&resilience.HTTPStatusError{
			Service:    "vertex",
			StatusCode: apiErr.Code,
			Status:     http.StatusText(apiErr.Code),
			Body:       apiErr.Message,
		})
	}
	return resilience.ClassifyHTTP(err)
}
