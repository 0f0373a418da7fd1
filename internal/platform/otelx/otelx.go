// Package otelx provides thin tracing helpers around the three entry
// points the core actually has — ingest, enrich, retrieve — grounded on
// the teacher's internal/observability/otel.go use of the otel API
// (tracer name, span attributes, semconv-style keys). Unlike the teacher,
// this package never calls otel.SetTracerProvider or wires an exporter:
// §6 and the Non-goals exclude a façade/observability layer from this
// core, so a deployment that wants real traces out of these spans
// installs its own TracerProvider before calling in; without one, the
// otel SDK's default no-op tracer makes every call here free.
package otelx

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/rivergate/mediareef"

func tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartIngest opens a span around one ingestor's Ingest call (C1-C4).
func StartIngest(ctx context.Context, ingestorID string, documentID string) (context.Context, trace.Span) {
	return tracer().Start(ctx, "ingest."+ingestorID, trace.WithAttributes(
		attribute.String("mediareef.ingestor_id", ingestorID),
		attribute.String("mediareef.document_id", documentID),
	))
}

// StartEnrich opens a span around one enricher's Enrich call (C5).
func StartEnrich(ctx context.Context, enricherID string, blockID string) (context.Context, trace.Span) {
	return tracer().Start(ctx, "enrich."+enricherID, trace.WithAttributes(
		attribute.String("mediareef.enricher_id", enricherID),
		attribute.String("mediareef.block_id", blockID),
	))
}

// StartRetrieve opens a span around one Retriever.Search call (C10).
func StartRetrieve(ctx context.Context, queryType string) (context.Context, trace.Span) {
	return tracer().Start(ctx, "retrieve.search", trace.WithAttributes(
		attribute.String("mediareef.query_type", queryType),
	))
}

// End records err on span (if non-nil) and closes it. Callers defer this
// immediately after a Start* call: `ctx, span := otelx.StartIngest(...); defer otelx.End(span, &err)`.
func End(span trace.Span, err *error) {
	if span == nil {
		return
	}
	if err != nil && *err != nil {
		span.RecordError(*err)
		span.SetStatus(codes.Error, (*err).Error())
	}
	span.End()
}
