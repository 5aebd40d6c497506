package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type OpenTelemetryTracer struct {
	realTracer trace.Tracer
}

func NewOpenTelemetryTracer(t trace.Tracer) Tracer {
	return &OpenTelemetryTracer{
		realTracer: t,
	}
}

func (t OpenTelemetryTracer) StartSpan(ctx context.Context, operationName string) (context.Context, Span) {
	ctx, realSpan := t.realTracer.Start(ctx, operationName)
	return ctx, openTelemetrySpan{realSpan: realSpan}
}

type openTelemetrySpan struct {
	realSpan trace.Span
}

func (s openTelemetrySpan) SetBaggageItem(key string, value any) {
	switch v := value.(type) {
	case string:
		s.realSpan.SetAttributes(attribute.String(key, v))
	case int:
		s.realSpan.SetAttributes(attribute.Int(key, v))
	case int64:
		s.realSpan.SetAttributes(attribute.Int64(key, v))
	case bool:
		s.realSpan.SetAttributes(attribute.Bool(key, v))
	default:
		s.realSpan.SetAttributes(attribute.String(key, fmt.Sprint(v)))
	}
}

func (s openTelemetrySpan) Finish() {
	s.realSpan.End()
}

func (s openTelemetrySpan) TraceID() string {
	return s.realSpan.SpanContext().TraceID().String()
}

func (s openTelemetrySpan) SpanID() string {
	return s.realSpan.SpanContext().SpanID().String()
}
