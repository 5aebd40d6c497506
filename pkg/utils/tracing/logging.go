package tracing

import (
	"context"
	"os"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
)

// EnvTracingEnabled enables the logging tracer when set to "1"
const EnvTracingEnabled = "HIERARCHY_TRACING_ENABLED"

var (
	_ Tracer = &LoggingTracer{}
	_ Span   = &loggingSpan{}
)

type spanContextKey struct{}

// NewTracerFromEnv returns a logging tracer if EnvTracingEnabled is set and a no-op tracer otherwise
func NewTracerFromEnv(log logr.Logger) Tracer {
	if os.Getenv(EnvTracingEnabled) == "1" {
		return NewLoggingTracer(log)
	}
	return NopTracer{}
}

// LoggingTracer logs the duration of every finished span
type LoggingTracer struct {
	log logr.Logger
	now func() time.Time
}

func NewLoggingTracer(log logr.Logger) *LoggingTracer {
	return &LoggingTracer{log: log, now: time.Now}
}

func (t *LoggingTracer) StartSpan(ctx context.Context, operationName string) (context.Context, Span) {
	s := &loggingSpan{
		tracer:        t,
		operationName: operationName,
		baggage:       make(map[string]interface{}),
		start:         t.now(),
		spanID:        uuid.New().String(),
	}
	if parent, ok := ctx.Value(spanContextKey{}).(*loggingSpan); ok {
		s.traceID = parent.traceID
		s.parentID = parent.spanID
	} else {
		s.traceID = uuid.New().String()
	}
	return context.WithValue(ctx, spanContextKey{}, s), s
}

type loggingSpan struct {
	tracer        *LoggingTracer
	operationName string
	baggage       map[string]interface{}
	start         time.Time
	traceID       string
	spanID        string
	parentID      string
}

func (s *loggingSpan) Finish() {
	s.tracer.log.WithValues(baggageToVals(s.baggage)...).
		WithValues("operation_name", s.operationName, "trace_id", s.traceID, "span_id", s.spanID, "parent_id", s.parentID,
			"time_ms", s.tracer.now().Sub(s.start).Seconds()*1e3).
		Info("Trace")
}

func (s *loggingSpan) SetBaggageItem(key string, value interface{}) {
	s.baggage[key] = value
}

func (s *loggingSpan) TraceID() string {
	return s.traceID
}

func (s *loggingSpan) SpanID() string {
	return s.spanID
}

func baggageToVals(baggage map[string]interface{}) []interface{} {
	result := make([]interface{}, 0, len(baggage)*2)
	for k, v := range baggage {
		result = append(result, k, v)
	}
	return result
}
