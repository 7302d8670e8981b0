package sources

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/rewrite-sync/internal/httpclient"
	rsotel "github.com/stacklok/rewrite-sync/internal/otel"
	"github.com/stacklok/rewrite-sync/internal/registry"
	"github.com/stacklok/rewrite-sync/internal/telemetry"
)

const (
	// AcceptHeader is sent to cacheable sources
	AcceptHeader = "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8"

	// AcceptLanguageHeader is sent to cacheable sources
	AcceptLanguageHeader = "en-US,en;q=0.5"
)

// Option configures an HTTPFetcher
type Option func(*fetcherConfig)

type fetcherConfig struct {
	timeout           time.Duration
	userAgent         string
	insecureCacheable bool
	cacheableClient   httpclient.Client
	directClient      httpclient.Client
	metrics           *telemetry.SyncMetrics
	tracer            trace.Tracer
}

// WithTimeout sets the per-request timeout
func WithTimeout(d time.Duration) Option {
	return func(cfg *fetcherConfig) {
		cfg.timeout = d
	}
}

// WithUserAgent overrides the browser user agent
func WithUserAgent(ua string) Option {
	return func(cfg *fetcherConfig) {
		cfg.userAgent = ua
	}
}

// WithInsecureCacheable controls TLS certificate verification for cacheable sources
func WithInsecureCacheable(insecure bool) Option {
	return func(cfg *fetcherConfig) {
		cfg.insecureCacheable = insecure
	}
}

// WithClients replaces the HTTP clients used for each class
func WithClients(cacheable, direct httpclient.Client) Option {
	return func(cfg *fetcherConfig) {
		cfg.cacheableClient = cacheable
		cfg.directClient = direct
	}
}

// WithMetrics records fetch metrics
func WithMetrics(m *telemetry.SyncMetrics) Option {
	return func(cfg *fetcherConfig) {
		cfg.metrics = m
	}
}

// WithTracer records a span per fetch
func WithTracer(t trace.Tracer) Option {
	return func(cfg *fetcherConfig) {
		cfg.tracer = t
	}
}

// HTTPFetcher fetches sources over HTTP with a per-class request profile
type HTTPFetcher struct {
	cacheable httpclient.Client
	direct    httpclient.Client
	metrics   *telemetry.SyncMetrics
	tracer    trace.Tracer
}

var _ Fetcher = (*HTTPFetcher)(nil)

// NewHTTPFetcher creates a fetcher. Cacheable sources skip certificate
// verification unless WithInsecureCacheable(false) is given.
func NewHTTPFetcher(opts ...Option) *HTTPFetcher {
	cfg := &fetcherConfig{
		timeout:           httpclient.DefaultTimeout,
		userAgent:         httpclient.BrowserUserAgent,
		insecureCacheable: true,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.cacheableClient == nil {
		clientOpts := []httpclient.Option{
			httpclient.WithHeaders(map[string]string{
				"User-Agent":      cfg.userAgent,
				"Accept":          AcceptHeader,
				"Accept-Language": AcceptLanguageHeader,
			}),
		}
		if cfg.insecureCacheable {
			clientOpts = append(clientOpts, httpclient.WithInsecureSkipVerify())
			slog.Warn("TLS certificate verification is disabled for cacheable sources; " +
				"their content can be tampered with in transit")
		}
		cfg.cacheableClient = httpclient.NewDefaultClient(cfg.timeout, clientOpts...)
	}

	if cfg.directClient == nil {
		cfg.directClient = httpclient.NewDefaultClient(cfg.timeout,
			httpclient.WithHeaders(map[string]string{"User-Agent": cfg.userAgent}),
		)
	}

	return &HTTPFetcher{
		cacheable: cfg.cacheableClient,
		direct:    cfg.directClient,
		metrics:   cfg.metrics,
		tracer:    cfg.tracer,
	}
}

// Fetch downloads one source
func (f *HTTPFetcher) Fetch(ctx context.Context, src registry.SourceDescriptor) FetchResult {
	ctx, span := rsotel.StartSpan(ctx, f.tracer, "sources.Fetch",
		trace.WithAttributes(
			rsotel.AttrSourceName.String(src.Name),
			rsotel.AttrSourceClass.String(string(src.Class)),
			rsotel.AttrSourceURL.String(src.URL),
		),
	)
	defer span.End()

	client := f.direct
	if src.Cacheable() {
		client = f.cacheable
	}

	slog.DebugContext(ctx, "Fetching source", "source", src.Name, "url", src.URL, "class", src.Class)

	start := time.Now()
	content, err := client.Get(ctx, src.URL)
	result := FetchResult{
		Source:   src,
		Duration: time.Since(start),
	}

	if err != nil {
		result.Err = classify(src.Name, err)
		span.SetAttributes(rsotel.AttrFetchCause.String(string(result.Err.Cause)))
		if result.Err.StatusCode != 0 {
			span.SetAttributes(rsotel.AttrHTTPStatusCode.Int(result.Err.StatusCode))
		}
		rsotel.RecordError(span, result.Err)
		f.metrics.RecordFetch(ctx, src.Name, string(src.Class), result.Duration, 0, false)
		slog.WarnContext(ctx, "Failed to fetch source",
			"source", src.Name,
			"cause", result.Err.Cause,
			"duration", result.Duration,
			"error", result.Err.Err,
		)
		return result
	}

	result.Content = content
	span.SetAttributes(rsotel.AttrFetchBytes.Int(len(content)))
	f.metrics.RecordFetch(ctx, src.Name, string(src.Class), result.Duration, len(content), true)
	slog.InfoContext(ctx, "Fetched source",
		"source", src.Name,
		"bytes", len(content),
		"duration", result.Duration,
	)
	return result
}

// classify maps a client error onto a FetchError
func classify(source string, err error) *FetchError {
	fe := &FetchError{Source: source, Cause: CauseTransport, Err: err}

	var netErr net.Error
	code, isStatus := httpclient.StatusCode(err)
	switch {
	case isStatus:
		fe.Cause = CauseHTTPStatus
		fe.StatusCode = code
	case errors.Is(err, context.DeadlineExceeded):
		fe.Cause = CauseTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		fe.Cause = CauseTimeout
	}

	return fe
}
