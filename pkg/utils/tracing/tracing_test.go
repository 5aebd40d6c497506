package tracing

import (
	"context"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestNopTracer(t *testing.T) {
	ctx := context.Background()
	spanCtx, span := NopTracer{}.StartSpan(ctx, "render")
	span.SetBaggageItem("intent", "guestbook")
	span.Finish()
	assert.Equal(t, ctx, spanCtx)
	assert.Empty(t, span.TraceID())
	assert.Empty(t, span.SpanID())
}

func TestLoggingTracer(t *testing.T) {
	var lines []string
	log := funcr.New(func(prefix, args string) {
		lines = append(lines, args)
	}, funcr.Options{})
	tracer := NewLoggingTracer(log)
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	calls := 0
	tracer.now = func() time.Time {
		calls++
		return start.Add(time.Duration(calls) * time.Millisecond)
	}

	ctx, parent := tracer.StartSpan(context.Background(), "reconcile")
	_, child := tracer.StartSpan(ctx, "apply")
	child.SetBaggageItem("identity", "guestbook-1")
	child.Finish()
	parent.Finish()

	assert.Equal(t, parent.TraceID(), child.TraceID())
	assert.NotEqual(t, parent.SpanID(), child.SpanID())
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"operation_name"="apply"`)
	assert.Contains(t, lines[0], `"identity"="guestbook-1"`)
	assert.Contains(t, lines[0], `"parent_id"="`+parent.SpanID()+`"`)
	assert.Contains(t, lines[1], `"operation_name"="reconcile"`)
}

func TestNewTracerFromEnv(t *testing.T) {
	t.Setenv(EnvTracingEnabled, "")
	assert.IsType(t, NopTracer{}, NewTracerFromEnv(logr.Discard()))
	t.Setenv(EnvTracingEnabled, "1")
	assert.IsType(t, &LoggingTracer{}, NewTracerFromEnv(logr.Discard()))
}

func TestOpenTelemetryTracer(t *testing.T) {
	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	tracer := NewOpenTelemetryTracer(noop.NewTracerProvider().Tracer("test"))
	spanCtx, span := tracer.StartSpan(ctx, "render")
	span.SetBaggageItem("intent", "guestbook")
	span.SetBaggageItem("children", 4)
	span.Finish()

	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", span.TraceID())
	assert.Equal(t, traceID, trace.SpanContextFromContext(spanCtx).TraceID())
}
