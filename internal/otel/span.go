// Package otel provides OpenTelemetry span helpers shared by the sync pipeline.
package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys used on pipeline spans.
const (
	AttrRunID          = attribute.Key("run.id")
	AttrSourceName     = attribute.Key("source.name")
	AttrSourceClass    = attribute.Key("source.class")
	AttrSourceURL      = attribute.Key("source.url")
	AttrFetchBytes     = attribute.Key("fetch.bytes")
	AttrFetchCause     = attribute.Key("fetch.cause")
	AttrHTTPStatusCode = attribute.Key("http.response.status_code")
	AttrSectionCount   = attribute.Key("merge.sections")
	AttrPublishStage   = attribute.Key("publish.stage")
)

// StartSpan starts a new span if the tracer is non-nil, otherwise returns a no-op span.
func StartSpan(
	ctx context.Context,
	tracer trace.Tracer,
	name string,
	opts ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, name, opts...)
}

// RecordError records an error on a span and sets the span status to error.
// It safely handles nil spans and nil errors. The status description stays
// generic; the error text is kept in the exception event only.
func RecordError(span trace.Span, err error) {
	if err != nil && span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "operation failed")
	}
}
