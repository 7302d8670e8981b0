package sources

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/stacklok/rewrite-sync/internal/registry"
)

// FetchAll fetches every source concurrently, at most concurrency at a time
// (all at once when concurrency <= 0), and waits for all of them. Result i
// belongs to srcs[i] regardless of completion order.
func FetchAll(ctx context.Context, f Fetcher, srcs []registry.SourceDescriptor, concurrency int) []FetchResult {
	results := make([]FetchResult, len(srcs))
	if len(srcs) == 0 {
		return results
	}

	if concurrency <= 0 || concurrency > len(srcs) {
		concurrency = len(srcs)
	}

	var g errgroup.Group
	g.SetLimit(concurrency)

	for i, src := range srcs {
		g.Go(func() error {
			// Each goroutine owns results[i]; no locking needed.
			results[i] = f.Fetch(ctx, src)
			return nil
		})
	}

	// Fetch never fails the group; Wait is the join barrier.
	_ = g.Wait()

	return results
}
