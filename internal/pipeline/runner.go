package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/rewrite-sync/internal/cache"
	"github.com/stacklok/rewrite-sync/internal/logging"
	"github.com/stacklok/rewrite-sync/internal/merge"
	rsotel "github.com/stacklok/rewrite-sync/internal/otel"
	"github.com/stacklok/rewrite-sync/internal/publish"
	"github.com/stacklok/rewrite-sync/internal/registry"
	"github.com/stacklok/rewrite-sync/internal/sources"
	"github.com/stacklok/rewrite-sync/internal/status"
	"github.com/stacklok/rewrite-sync/internal/summary"
	"github.com/stacklok/rewrite-sync/internal/telemetry"
)

// Runner executes sync runs. It holds no state between runs.
type Runner struct {
	registry     *registry.Registry
	fetcher      sources.Fetcher
	store        cache.Store
	merger       *merge.Merger
	publisher    publish.Publisher
	statuses     status.StatusPersistence
	dirs         []string
	concurrency  int
	summaryTitle string
	metrics      *telemetry.SyncMetrics
	tracer       trace.Tracer
	now          func() time.Time
}

// Option is a function that configures the runner
type Option func(*Runner)

// WithStatusPersistence records per-source status after each run
func WithStatusPersistence(p status.StatusPersistence) Option {
	return func(r *Runner) {
		r.statuses = p
	}
}

// WithDirectories sets directories created before fetching
func WithDirectories(dirs ...string) Option {
	return func(r *Runner) {
		r.dirs = append(r.dirs, dirs...)
	}
}

// WithConcurrency bounds the number of concurrent fetches. Zero or less
// fetches all sources at once.
func WithConcurrency(n int) Option {
	return func(r *Runner) {
		r.concurrency = n
	}
}

// WithSummaryTitle sets the title of the summary document
func WithSummaryTitle(title string) Option {
	return func(r *Runner) {
		r.summaryTitle = title
	}
}

// WithMetrics sets the metrics recorder
func WithMetrics(m *telemetry.SyncMetrics) Option {
	return func(r *Runner) {
		r.metrics = m
	}
}

// WithTracer sets the tracer for run spans
func WithTracer(t trace.Tracer) Option {
	return func(r *Runner) {
		r.tracer = t
	}
}

// WithClock sets the time source used for document timestamps and status
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		r.now = now
	}
}

// NewRunner creates a runner with injected dependencies
func NewRunner(
	reg *registry.Registry,
	fetcher sources.Fetcher,
	store cache.Store,
	merger *merge.Merger,
	publisher publish.Publisher,
	opts ...Option,
) (*Runner, error) {
	if reg == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if store == nil {
		return nil, fmt.Errorf("cache store is required")
	}
	if merger == nil {
		return nil, fmt.Errorf("merger is required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}

	r := &Runner{
		registry:  reg,
		fetcher:   fetcher,
		store:     store,
		merger:    merger,
		publisher: publisher,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run performs one sync. The report is always returned, also on error.
// The returned error is a *publish.PublishError when publishing failed.
func (r *Runner) Run(ctx context.Context) (*RunReport, error) {
	report := &RunReport{
		RunID:     uuid.New(),
		StartedAt: r.now(),
	}

	ctx = logging.ContextWithAttrs(ctx, slog.String("run_id", report.RunID.String()))
	ctx, span := rsotel.StartSpan(ctx, r.tracer, "pipeline.Run",
		trace.WithAttributes(rsotel.AttrRunID.String(report.RunID.String())),
	)
	defer span.End()

	slog.InfoContext(ctx, "Starting sync run", "sources", r.registry.Len())

	err := r.run(ctx, report)
	report.FinishedAt = r.now()
	report.Err = err

	duration := report.FinishedAt.Sub(report.StartedAt)
	r.metrics.RecordRun(ctx, duration, len(report.Sections), err == nil)
	span.SetAttributes(rsotel.AttrSectionCount.Int(len(report.Sections)))
	rsotel.RecordError(span, err)

	if err != nil {
		slog.ErrorContext(ctx, "Sync run failed",
			"duration", duration,
			"sections", len(report.Sections),
			"error", err,
		)
		return report, err
	}

	slog.InfoContext(ctx, "Sync run completed",
		"duration", duration,
		"sections", len(report.Sections),
		"failed_sources", len(report.Failed()),
		"published", report.Published,
	)
	return report, nil
}

func (r *Runner) run(ctx context.Context, report *RunReport) error {
	for _, dir := range r.dirs {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	results := sources.FetchAll(ctx, r.fetcher, r.registry.All(), r.concurrency)
	report.Sources = r.storeCacheable(ctx, results)

	// Status reflects fetch outcomes and is saved whatever happens later
	defer r.saveStatus(ctx, report.Sources)

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("run cancelled: %w", err)
	}

	now := r.now()
	doc, err := r.merger.Merge(ctx, r.registry, r.store, results, now)
	if err != nil {
		return fmt.Errorf("failed to merge documents: %w", err)
	}
	report.Sections = doc.SectionNames()

	summaryDoc, err := summary.Render(r.registry, r.summaryTitle, now)
	if err != nil {
		return fmt.Errorf("failed to render summary: %w", err)
	}

	if err := r.publisher.Publish(ctx, doc, summaryDoc); err != nil {
		return err
	}
	report.Published = true
	return nil
}

// storeCacheable writes successful cacheable results to the cache and
// returns one outcome per result
func (r *Runner) storeCacheable(ctx context.Context, results []sources.FetchResult) []SourceOutcome {
	outcomes := make([]SourceOutcome, 0, len(results))
	for _, res := range results {
		outcome := SourceOutcome{
			Name:     res.Source.Name,
			Class:    res.Source.Class,
			Bytes:    len(res.Content),
			Duration: res.Duration,
			FetchErr: res.Err,
		}

		if res.OK() && res.Source.Cacheable() {
			if err := r.store.Store(ctx, res.Source.Name, res.Content); err != nil {
				var cacheErr *cache.CacheWriteError
				if !errors.As(err, &cacheErr) {
					cacheErr = &cache.CacheWriteError{Source: res.Source.Name, Err: err}
				}
				outcome.CacheErr = cacheErr
				r.metrics.RecordCacheWriteFailure(ctx, res.Source.Name)
				slog.ErrorContext(ctx, "Failed to store cache entry, keeping previous snapshot",
					"source", res.Source.Name,
					"error", err,
				)
			} else {
				slog.DebugContext(ctx, "Stored cache entry", "source", res.Source.Name, "bytes", len(res.Content))
			}
		}

		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

// saveStatus records the outcome of each source of this run, carrying forward
// the previous last success of failed sources. Entries of sources outside
// this run's registry are kept as they were.
func (r *Runner) saveStatus(ctx context.Context, outcomes []SourceOutcome) {
	if r.statuses == nil {
		return
	}

	prev, err := r.statuses.Load(ctx)
	if err != nil {
		slog.WarnContext(ctx, "Failed to load previous source status", "error", err)
		prev = map[string]*status.SourceStatus{}
	}

	now := r.now()
	next := make(map[string]*status.SourceStatus, len(prev)+len(outcomes))
	maps.Copy(next, prev)
	for _, o := range outcomes {
		next[o.Name] = status.Record(prev[o.Name], now, o.Bytes, o.Err())
	}

	// The run context may be cancelled by now
	if err := r.statuses.Save(context.WithoutCancel(ctx), next); err != nil {
		slog.WarnContext(ctx, "Failed to persist source status", "error", err)
	}
}
