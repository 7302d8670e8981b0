package sources

import (
	"context"
	"fmt"
	"time"

	"github.com/stacklok/rewrite-sync/internal/registry"
)

//go:generate mockgen -destination=mocks/mock_fetcher.go -package=mocks -source=types.go Fetcher

// Fetcher downloads the rule document of a single source
type Fetcher interface {
	// Fetch performs exactly one request for src. Failures are reported on
	// the result, never as a panic or separate error.
	Fetch(ctx context.Context, src registry.SourceDescriptor) FetchResult
}

// Cause classifies why a fetch failed
type Cause string

const (
	// CauseTimeout means the request deadline was exceeded
	CauseTimeout Cause = "timeout"

	// CauseHTTPStatus means the server answered with a non-2xx status
	CauseHTTPStatus Cause = "http-status"

	// CauseTransport covers DNS, connection, TLS, body read and size errors
	CauseTransport Cause = "transport"
)

// FetchError describes a failed fetch of one source
type FetchError struct {
	// Source is the name of the source that failed
	Source string

	// Cause classifies the failure
	Cause Cause

	// StatusCode is set when Cause is CauseHTTPStatus
	StatusCode int

	// Err is the underlying error
	Err error
}

// Error implements the error interface
func (e *FetchError) Error() string {
	if e.Cause == CauseHTTPStatus {
		return fmt.Sprintf("fetch %s failed: HTTP %d", e.Source, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s failed (%s): %v", e.Source, e.Cause, e.Err)
}

// Unwrap returns the underlying error
func (e *FetchError) Unwrap() error {
	return e.Err
}

// FetchResult is the outcome of fetching one source
type FetchResult struct {
	// Source is the descriptor that was fetched
	Source registry.SourceDescriptor

	// Content is the response body. Nil on failure.
	Content []byte

	// Err is non-nil when the fetch failed
	Err *FetchError

	// Duration is the wall time of the request
	Duration time.Duration
}

// OK reports whether the fetch succeeded
func (r FetchResult) OK() bool {
	return r.Err == nil
}

// Index maps results by source name. Later duplicates win.
func Index(results []FetchResult) map[string]FetchResult {
	out := make(map[string]FetchResult, len(results))
	for _, r := range results {
		out[r.Source.Name] = r
	}
	return out
}
