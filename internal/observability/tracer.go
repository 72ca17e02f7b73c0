package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StartSpan creates a new internal span with the given name and attributes.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// SetSpanError marks the span as errored.
func SetSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// SetSpanOK marks the span as successful.
func SetSpanOK(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// Attribute keys for dispatch spans.
var (
	AttrInvocationID = attribute.Key("quasar.invocation_id")
	AttrTask         = attribute.Key("quasar.task")
	AttrFunction     = attribute.Key("quasar.function")
	AttrOutcome      = attribute.Key("quasar.outcome")
	AttrPayloadBytes = attribute.Key("quasar.payload_bytes")
	AttrPollCycles   = attribute.Key("quasar.poll_cycles")
)
