package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Telemetry owns the tracer and meter providers of one process
type Telemetry struct {
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider

	// gatherer and textfilePath are set when metrics go to a Prometheus textfile
	gatherer     prometheus.Gatherer
	textfilePath string
}

// Option is a function that configures the telemetry setup
type Option func(*telemetryConfig)

// telemetryConfig holds the configuration for creating telemetry
type telemetryConfig struct {
	config *Config
}

// WithTelemetryConfig sets the telemetry configuration
func WithTelemetryConfig(cfg *Config) Option {
	return func(tc *telemetryConfig) {
		tc.config = cfg
	}
}

// New creates the providers described by the configuration. Disabled or nil
// configuration yields no-op providers. Call Shutdown when the run ends.
func New(ctx context.Context, opts ...Option) (*Telemetry, error) {
	cfg := &telemetryConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.config == nil || !cfg.config.Enabled {
		slog.Debug("Telemetry disabled")
		return &Telemetry{
			tracerProvider: tracenoop.NewTracerProvider(),
			meterProvider:  metricnoop.NewMeterProvider(),
		}, nil
	}

	if err := cfg.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid telemetry configuration: %w", err)
	}

	target, err := newExportTarget(ctx, cfg.config)
	if err != nil {
		return nil, err
	}

	t := &Telemetry{}
	t.tracerProvider, err = newTracerProvider(ctx, target, cfg.config.Tracing)
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer provider: %w", err)
	}

	var registerer prometheus.Registerer
	if m := cfg.config.Metrics; m != nil && m.Enabled && m.GetExporter() == ExporterTextfile {
		reg := prometheus.NewRegistry()
		t.gatherer = reg
		t.textfilePath = m.TextfilePath
		registerer = reg
	}

	t.meterProvider, err = newMeterProvider(ctx, target, cfg.config.Metrics, registerer)
	if err != nil {
		if tp, ok := t.tracerProvider.(*sdktrace.TracerProvider); ok {
			_ = tp.Shutdown(ctx)
		}
		return nil, fmt.Errorf("failed to create meter provider: %w", err)
	}

	slog.Info("Telemetry initialized",
		"service_name", cfg.config.GetServiceName(),
		"service_version", cfg.config.GetServiceVersion(),
	)
	return t, nil
}

// TracerProvider returns the configured tracer provider
func (t *Telemetry) TracerProvider() trace.TracerProvider {
	return t.tracerProvider
}

// MeterProvider returns the configured meter provider
func (t *Telemetry) MeterProvider() metric.MeterProvider {
	return t.meterProvider
}

// Tracer returns a named tracer from the tracer provider
func (t *Telemetry) Tracer(name string, opts ...trace.TracerOption) trace.Tracer {
	return t.tracerProvider.Tracer(name, opts...)
}

// Meter returns a named meter from the meter provider
func (t *Telemetry) Meter(name string, opts ...metric.MeterOption) metric.Meter {
	return t.meterProvider.Meter(name, opts...)
}

// Shutdown flushes and shuts down all telemetry providers.
// With the textfile exporter, the metrics file is written first: the
// Prometheus exporter stops answering collections once its provider is shut down.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	slog.Debug("Shutting down telemetry")

	var errs []error

	if t.gatherer != nil && t.textfilePath != "" {
		if err := prometheus.WriteToTextfile(t.textfilePath, t.gatherer); err != nil {
			errs = append(errs, fmt.Errorf("failed to write metrics textfile: %w", err))
		} else {
			slog.Debug("Metrics textfile written", "path", t.textfilePath)
		}
	}

	if tp, ok := t.tracerProvider.(*sdktrace.TracerProvider); ok {
		if err := tp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown tracer provider: %w", err))
		} else {
			slog.Debug("Tracer provider shutdown complete")
		}
	}

	if mp, ok := t.meterProvider.(*sdkmetric.MeterProvider); ok {
		if err := mp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown meter provider: %w", err))
		} else {
			slog.Debug("Meter provider shutdown complete")
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	slog.Debug("Telemetry shutdown complete")
	return nil
}
