package observability

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/hugo-lorenzo-mato/workflow-advisor"

// Span status values.
const (
	StatusRunning = "running"
	StatusSuccess = "success"
)

// Span is one timed operation inside a trace.
type Span struct {
	SpanID     string                 `json:"span_id"`
	TraceID    string                 `json:"trace_id"`
	Operation  string                 `json:"operation"`
	StartTime  time.Time              `json:"start_time"`
	EndTime    time.Time              `json:"end_time,omitempty"`
	DurationMS int64                  `json:"duration_ms"`
	Status     string                 `json:"status"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`

	otelSpan trace.Span
}

// Succeeded reports whether the span ended without error.
func (s Span) Succeeded() bool {
	return s.Status == StatusSuccess
}

// TraceSummary aggregates the spans of one trace.
type TraceSummary struct {
	TraceID         string   `json:"trace_id"`
	SpanCount       int      `json:"span_count"`
	SuccessfulSpans int      `json:"successful_spans"`
	TotalDurationMS int64    `json:"total_duration_ms"`
	Operations      []string `json:"operations"`
}

// Tracer records spans grouped by trace id. It is safe for concurrent use
// and is shared by every run in the process.
type Tracer struct {
	mu     sync.RWMutex
	traces map[string][]*Span
	otel   trace.Tracer
}

// NewTracer creates a tracer that mirrors spans into the global
// OpenTelemetry tracer provider.
func NewTracer() *Tracer {
	return &Tracer{
		traces: make(map[string][]*Span),
		otel:   otel.Tracer(instrumentationName),
	}
}

// Start opens a span for operation under traceID. The returned context
// carries the mirrored OpenTelemetry span.
func (t *Tracer) Start(ctx context.Context, traceID, operation string, attrs map[string]interface{}) (context.Context, *Span) {
	span := &Span{
		SpanID:     uuid.New().String(),
		TraceID:    traceID,
		Operation:  operation,
		StartTime:  time.Now(),
		Status:     StatusRunning,
		Attributes: copyAttrs(attrs),
	}

	otelAttrs := append([]attribute.KeyValue{attribute.String("advisor.trace_id", traceID)}, toOtelAttributes(attrs)...)
	ctx, span.otelSpan = t.otel.Start(ctx, operation, trace.WithAttributes(otelAttrs...))

	t.mu.Lock()
	t.traces[traceID] = append(t.traces[traceID], span)
	t.mu.Unlock()

	return ctx, span
}

// End closes a span. A nil err marks it successful, otherwise the status
// becomes "error: <msg>". Ending a span twice has no effect.
func (t *Tracer) End(span *Span, err error) {
	if span == nil {
		return
	}

	t.mu.Lock()
	if span.Status != StatusRunning {
		t.mu.Unlock()
		return
	}
	span.EndTime = time.Now()
	span.DurationMS = span.EndTime.Sub(span.StartTime).Milliseconds()
	if err != nil {
		span.Status = "error: " + err.Error()
	} else {
		span.Status = StatusSuccess
	}
	otelSpan := span.otelSpan
	t.mu.Unlock()

	if otelSpan == nil {
		return
	}
	if err != nil {
		otelSpan.RecordError(err)
		otelSpan.SetStatus(codes.Error, err.Error())
	} else {
		otelSpan.SetStatus(codes.Ok, "")
	}
	otelSpan.End()
}

// SetAttribute adds an attribute to a running span.
func (t *Tracer) SetAttribute(span *Span, key string, value interface{}) {
	if span == nil {
		return
	}
	t.mu.Lock()
	if span.Attributes == nil {
		span.Attributes = make(map[string]interface{})
	}
	span.Attributes[key] = value
	otelSpan := span.otelSpan
	t.mu.Unlock()

	if otelSpan != nil {
		otelSpan.SetAttributes(toOtelAttributes(map[string]interface{}{key: value})...)
	}
}

// Spans returns copies of the spans recorded for traceID, in start order.
func (t *Tracer) Spans(traceID string) []Span {
	t.mu.RLock()
	defer t.mu.RUnlock()

	recorded := t.traces[traceID]
	result := make([]Span, 0, len(recorded))
	for _, s := range recorded {
		c := *s
		c.Attributes = copyAttrs(s.Attributes)
		c.otelSpan = nil
		result = append(result, c)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].StartTime.Before(result[j].StartTime)
	})
	return result
}

// Summary aggregates the spans of traceID. The total duration is the wall
// clock from the earliest start to the latest end, so overlapping spans
// are not double counted.
func (t *Tracer) Summary(traceID string) TraceSummary {
	spans := t.Spans(traceID)
	summary := TraceSummary{
		TraceID:    traceID,
		SpanCount:  len(spans),
		Operations: make([]string, 0, len(spans)),
	}
	if len(spans) == 0 {
		return summary
	}

	earliest := spans[0].StartTime
	var latest time.Time
	for _, s := range spans {
		summary.Operations = append(summary.Operations, s.Operation)
		if s.Succeeded() {
			summary.SuccessfulSpans++
		}
		if s.StartTime.Before(earliest) {
			earliest = s.StartTime
		}
		end := s.EndTime
		if end.IsZero() {
			end = s.StartTime
		}
		if end.After(latest) {
			latest = end
		}
	}
	summary.TotalDurationMS = latest.Sub(earliest).Milliseconds()
	return summary
}

// Has reports whether any span was recorded for traceID.
func (t *Tracer) Has(traceID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.traces[traceID]
	return ok
}

// Forget drops the spans of traceID.
func (t *Tracer) Forget(traceID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.traces, traceID)
}

func copyAttrs(attrs map[string]interface{}) map[string]interface{} {
	if len(attrs) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}

func toOtelAttributes(attrs map[string]interface{}) []attribute.KeyValue {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	kvs := make([]attribute.KeyValue, 0, len(attrs))
	for _, k := range keys {
		switch v := attrs[k].(type) {
		case string:
			kvs = append(kvs, attribute.String(k, v))
		case int:
			kvs = append(kvs, attribute.Int(k, v))
		case int64:
			kvs = append(kvs, attribute.Int64(k, v))
		case float64:
			kvs = append(kvs, attribute.Float64(k, v))
		case bool:
			kvs = append(kvs, attribute.Bool(k, v))
		case []string:
			kvs = append(kvs, attribute.StringSlice(k, v))
		default:
			kvs = append(kvs, attribute.String(k, fmt.Sprint(v)))
		}
	}
	return kvs
}
