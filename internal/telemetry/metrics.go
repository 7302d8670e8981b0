package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// SyncMetricsMeterName is the name used for the rule sync meter
	SyncMetricsMeterName = "github.com/stacklok/rewrite-sync/sync"

	// TracerName is the name used for spans emitted by the sync pipeline
	TracerName = "github.com/stacklok/rewrite-sync"
)

// SyncMetrics holds the OpenTelemetry instruments for a sync run
type SyncMetrics struct {
	fetchDuration      metric.Float64Histogram
	fetchBytes         metric.Int64Counter
	cacheWriteFailures metric.Int64Counter
	runDuration        metric.Float64Histogram
	sectionsTotal      metric.Int64Gauge
}

// NewSyncMetrics creates a new SyncMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewSyncMetrics(provider metric.MeterProvider) (*SyncMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(SyncMetricsMeterName)

	fetchDuration, err := meter.Float64Histogram(
		"rewrite_sync_fetch_duration_seconds",
		metric.WithDescription("Duration of rule source fetches in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30),
	)
	if err != nil {
		return nil, err
	}

	fetchBytes, err := meter.Int64Counter(
		"rewrite_sync_fetch_bytes_total",
		metric.WithDescription("Bytes downloaded from rule sources"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	cacheWriteFailures, err := meter.Int64Counter(
		"rewrite_sync_cache_write_failures_total",
		metric.WithDescription("Failed writes of cacheable rule snapshots"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return nil, err
	}

	runDuration, err := meter.Float64Histogram(
		"rewrite_sync_run_duration_seconds",
		metric.WithDescription("Duration of sync runs in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.5, 1, 2.5, 5, 10, 30, 60, 120, 300),
	)
	if err != nil {
		return nil, err
	}

	sectionsTotal, err := meter.Int64Gauge(
		"rewrite_sync_sections_total",
		metric.WithDescription("Number of sections in the last merged document"),
		metric.WithUnit("{section}"),
	)
	if err != nil {
		return nil, err
	}

	return &SyncMetrics{
		fetchDuration:      fetchDuration,
		fetchBytes:         fetchBytes,
		cacheWriteFailures: cacheWriteFailures,
		runDuration:        runDuration,
		sectionsTotal:      sectionsTotal,
	}, nil
}

// RecordFetch records the outcome of a single source fetch
func (m *SyncMetrics) RecordFetch(
	ctx context.Context, source, class string, duration time.Duration, size int, success bool,
) {
	if m == nil || m.fetchDuration == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("source", source),
		attribute.String("class", class),
		attribute.Bool("success", success),
	)

	m.fetchDuration.Record(ctx, duration.Seconds(), attrs)
	if success {
		m.fetchBytes.Add(ctx, int64(size), attrs)
	}
}

// RecordCacheWriteFailure counts a snapshot that could not be persisted
func (m *SyncMetrics) RecordCacheWriteFailure(ctx context.Context, source string) {
	if m == nil || m.cacheWriteFailures == nil {
		return
	}

	m.cacheWriteFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
}

// RecordRun records the duration and outcome of a sync run
func (m *SyncMetrics) RecordRun(ctx context.Context, duration time.Duration, sections int, success bool) {
	if m == nil || m.runDuration == nil {
		return
	}

	m.runDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.Bool("success", success)))
	if success {
		m.sectionsTotal.Record(ctx, int64(sections))
	}
}
