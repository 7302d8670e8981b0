// Package logging builds the process slog handler: a zap JSON core exposed
// through logr, with level filtering and OpenTelemetry trace correlation.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Option configures the handler created by NewHandler
type Option func(*options)

type options struct {
	level  slog.Leveler
	writer io.Writer
}

// WithLevel sets the minimum level that is written
func WithLevel(level slog.Leveler) Option {
	return func(o *options) {
		o.level = level
	}
}

// WithWriter sets the destination. Defaults to stderr so stdout stays clean
// for commands that print data.
func WithWriter(w io.Writer) Option {
	return func(o *options) {
		o.writer = w
	}
}

// NewHandler returns a JSON slog.Handler backed by zap
func NewHandler(opts ...Option) slog.Handler {
	o := &options{
		level:  slog.LevelInfo,
		writer: os.Stderr,
	}
	for _, opt := range opts {
		opt(o)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = levelEncoder

	// The zap core accepts everything down to slog's debug level; filtering
	// happens in levelHandler because logr folds warn into its V(0) check.
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encCfg),
		zapcore.AddSync(o.writer),
		zap.NewAtomicLevelAt(zapcore.Level(slog.LevelDebug)),
	)
	base := logr.ToSlogHandler(zapr.NewLogger(zap.New(core)))

	return &levelHandler{
		Handler: &traceHandler{Handler: base},
		level:   o.level,
	}
}

// New returns a logger using NewHandler
func New(opts ...Option) *slog.Logger {
	return slog.New(NewHandler(opts...))
}

// ParseLevel maps a level name to a slog.Level. The second value is false
// for unknown names.
func ParseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, true
	case "info", "":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

// levelEncoder prints zap's sub-debug levels, which is where slog debug lands, as "debug"
func levelEncoder(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	if l < zapcore.DebugLevel {
		l = zapcore.DebugLevel
	}
	zapcore.LowercaseLevelEncoder(l, enc)
}

type levelHandler struct {
	slog.Handler
	level slog.Leveler
}

func (h *levelHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.level.Level() && h.Handler.Enabled(ctx, level)
}

func (h *levelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelHandler{Handler: h.Handler.WithAttrs(attrs), level: h.level}
}

func (h *levelHandler) WithGroup(name string) slog.Handler {
	return &levelHandler{Handler: h.Handler.WithGroup(name), level: h.level}
}

type contextAttrsKey struct{}

// ContextWithAttrs returns a context whose log records carry attrs in
// addition to any attributes already attached to ctx
func ContextWithAttrs(ctx context.Context, attrs ...slog.Attr) context.Context {
	existing, _ := ctx.Value(contextAttrsKey{}).([]slog.Attr)
	merged := make([]slog.Attr, 0, len(existing)+len(attrs))
	merged = append(merged, existing...)
	merged = append(merged, attrs...)
	return context.WithValue(ctx, contextAttrsKey{}, merged)
}

// traceHandler wraps an slog.Handler to automatically inject OpenTelemetry
// trace_id and span_id into every log record, enabling log-trace correlation.
// Attributes attached with ContextWithAttrs are added as well.
type traceHandler struct {
	slog.Handler
}

func (h *traceHandler) Handle(ctx context.Context, r slog.Record) error {
	if attrs, ok := ctx.Value(contextAttrsKey{}).([]slog.Attr); ok {
		r.AddAttrs(attrs...)
	}
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		r.AddAttrs(
			slog.String("trace_id", span.SpanContext().TraceID().String()),
			slog.String("span_id", span.SpanContext().SpanID().String()),
		)
	}
	return h.Handler.Handle(ctx, r)
}

func (h *traceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &traceHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *traceHandler) WithGroup(name string) slog.Handler {
	return &traceHandler{Handler: h.Handler.WithGroup(name)}
}
