package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// DefaultMetricsInterval is the OTLP export period. A run is usually shorter,
// so most data points leave with the flush in Shutdown.
const DefaultMetricsInterval = 60 * time.Second

// exportTarget is where both providers send their data
type exportTarget struct {
	endpoint string
	insecure bool
	resource *resource.Resource
}

func newExportTarget(ctx context.Context, cfg *Config) (*exportTarget, error) {
	// resource.New rather than resource.Default: merging with the default
	// schema URL fails when semconv versions differ
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.GetServiceName()),
			semconv.ServiceVersion(cfg.GetServiceVersion()),
		),
		resource.WithHost(),
		resource.WithTelemetrySDK(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	if cfg.GetInsecure() {
		slog.Warn("Telemetry is exported over plain HTTP", "endpoint", cfg.GetEndpoint())
	}

	return &exportTarget{
		endpoint: cfg.GetEndpoint(),
		insecure: cfg.GetInsecure(),
		resource: res,
	}, nil
}

// newTracerProvider returns a no-op provider unless tracing is enabled
func newTracerProvider(ctx context.Context, target *exportTarget, tc *TracingConfig) (trace.TracerProvider, error) {
	if target == nil || tc == nil || !tc.Enabled {
		return tracenoop.NewTracerProvider(), nil
	}

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(target.endpoint)}
	if target.insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(target.resource),
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(tc.GetSampling())),
	)
	otel.SetTracerProvider(tp)

	slog.Info("Tracing initialized", "endpoint", target.endpoint, "sampling_ratio", tc.GetSampling())
	return tp, nil
}

// newMeterProvider returns a no-op provider unless metrics are enabled.
// The textfile exporter registers its collector with registerer.
func newMeterProvider(
	ctx context.Context,
	target *exportTarget,
	mc *MetricsConfig,
	registerer prometheus.Registerer,
) (metric.MeterProvider, error) {
	if target == nil || mc == nil || !mc.Enabled {
		return metricnoop.NewMeterProvider(), nil
	}

	var reader sdkmetric.Reader
	switch mc.GetExporter() {
	case ExporterTextfile:
		if registerer == nil {
			return nil, fmt.Errorf("textfile exporter requires a prometheus registerer")
		}
		exporter, err := otelprom.New(otelprom.WithRegisterer(registerer))
		if err != nil {
			return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
		}
		reader = exporter
	default:
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(target.endpoint)}
		if target.insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		exporter, err := otlpmetrichttp.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP metric exporter: %w", err)
		}
		reader = sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(DefaultMetricsInterval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(target.resource),
		sdkmetric.WithReader(reader),
	)
	otel.SetMeterProvider(mp)

	slog.Info("Metrics initialized", "exporter", mc.GetExporter(), "endpoint", target.endpoint)
	return mp, nil
}
