package httpclient

import (
	"errors"
	"fmt"
)

// ErrResponseTooLarge is returned when a body exceeds MaxResponseSize
var ErrResponseTooLarge = errors.New("response exceeds maximum allowed size")

// HTTPError is returned for a response with a non-2xx status code
type HTTPError struct {
	StatusCode int
	Status     string
	URL        string
}

// Error returns the error message
func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d for URL %s: %s", e.StatusCode, e.URL, e.Status)
}

// NewHTTPError creates a new HTTP error
func NewHTTPError(statusCode int, url, status string) error {
	return &HTTPError{
		StatusCode: statusCode,
		URL:        url,
		Status:     status,
	}
}

// StatusCode extracts the status code of an HTTPError anywhere in err's chain
func StatusCode(err error) (int, bool) {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode, true
	}
	return 0, false
}
