// Package tracing records the duration of render, diff and apply operations. Spans started from a context that
// carries a span become its children.
package tracing

import "context"

type Tracer interface {
	// StartSpan starts a span that is a child of the span in ctx, if any, and returns a context carrying it
	StartSpan(ctx context.Context, operationName string) (context.Context, Span)
}

type Span interface {
	// SetBaggageItem attaches an attribute to the span; values are logged or exported as is
	SetBaggageItem(key string, value any)
	Finish()
	SpanID() string
	TraceID() string
}
