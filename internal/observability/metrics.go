package observability

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/hugo-lorenzo-mato/workflow-advisor/internal/core"
)

// Metrics collects process-lifetime analysis metrics.
type Metrics struct {
	mu             sync.RWMutex
	analysesTotal  int64
	analysesFailed int64
	errorsByKind   map[core.ErrorKind]int64
	tools          map[string]*toolStats
	stages         map[string]*stageStats

	inst instruments
}

// latencyWindow bounds the samples kept per stage for the median.
const latencyWindow = 1024

// stageStats aggregates stage latencies. Count, min, max and total cover
// every sample; the median covers the most recent latencyWindow samples.
type stageStats struct {
	count  int
	min    time.Duration
	max    time.Duration
	total  time.Duration
	window []time.Duration
	next   int
}

func (s *stageStats) add(d time.Duration) {
	if s.count == 0 || d < s.min {
		s.min = d
	}
	if d > s.max {
		s.max = d
	}
	s.count++
	s.total += d
	if len(s.window) < latencyWindow {
		s.window = append(s.window, d)
		return
	}
	s.window[s.next] = d
	s.next = (s.next + 1) % latencyWindow
}

type toolStats struct {
	count int64
	total time.Duration
}

// LatencyStats summarizes the latency samples of one stage.
type LatencyStats struct {
	Count    int     `json:"count"`
	MinMS    float64 `json:"min_ms"`
	MaxMS    float64 `json:"max_ms"`
	AvgMS    float64 `json:"avg_ms"`
	TotalMS  float64 `json:"total_ms"`
	MedianMS float64 `json:"median_ms"`
}

// ToolStats summarizes the calls of one tool.
type ToolStats struct {
	Count   int64   `json:"count"`
	TotalMS float64 `json:"total_ms"`
	AvgMS   float64 `json:"avg_ms"`
}

// MetricsSummary is a point-in-time snapshot.
type MetricsSummary struct {
	AnalysesTotal  int64                   `json:"analyses_total"`
	AnalysesFailed int64                   `json:"analyses_failed"`
	ErrorsByKind   map[string]int64        `json:"errors_by_kind"`
	ToolCalls      map[string]ToolStats    `json:"tool_calls"`
	Stages         map[string]LatencyStats `json:"stage_latencies"`
}

type instruments struct {
	analyses      metric.Int64Counter
	failed        metric.Int64Counter
	errors        metric.Int64Counter
	toolCalls     metric.Int64Counter
	toolDuration  metric.Float64Histogram
	stageDuration metric.Float64Histogram
}

// NewMetrics creates a collector that mirrors its counters into the
// global OpenTelemetry meter provider.
func NewMetrics() *Metrics {
	return &Metrics{
		errorsByKind: make(map[core.ErrorKind]int64),
		tools:        make(map[string]*toolStats),
		stages:       make(map[string]*stageStats),
		inst:         newInstruments(otel.Meter(instrumentationName)),
	}
}

func newInstruments(meter metric.Meter) instruments {
	var inst instruments
	var err error

	if inst.analyses, err = meter.Int64Counter("advisor.analyses",
		metric.WithDescription("Analyses started")); err != nil {
		inst.analyses = noop.Int64Counter{}
	}
	if inst.failed, err = meter.Int64Counter("advisor.analyses.failed",
		metric.WithDescription("Analyses that ended without a report")); err != nil {
		inst.failed = noop.Int64Counter{}
	}
	if inst.errors, err = meter.Int64Counter("advisor.errors",
		metric.WithDescription("Errors by kind")); err != nil {
		inst.errors = noop.Int64Counter{}
	}
	if inst.toolCalls, err = meter.Int64Counter("advisor.tool.calls",
		metric.WithDescription("Capability tool invocations")); err != nil {
		inst.toolCalls = noop.Int64Counter{}
	}
	if inst.toolDuration, err = meter.Float64Histogram("advisor.tool.duration",
		metric.WithUnit("ms")); err != nil {
		inst.toolDuration = noop.Float64Histogram{}
	}
	if inst.stageDuration, err = meter.Float64Histogram("advisor.stage.duration",
		metric.WithUnit("ms")); err != nil {
		inst.stageDuration = noop.Float64Histogram{}
	}
	return inst
}

// RecordAnalysis counts a started analysis.
func (m *Metrics) RecordAnalysis(ctx context.Context) {
	m.mu.Lock()
	m.analysesTotal++
	m.mu.Unlock()
	m.inst.analyses.Add(ctx, 1)
}

// RecordAnalysisFailed counts an analysis that ended without a report.
func (m *Metrics) RecordAnalysisFailed(ctx context.Context) {
	m.mu.Lock()
	m.analysesFailed++
	m.mu.Unlock()
	m.inst.failed.Add(ctx, 1)
}

// RecordError counts an error under its kind.
func (m *Metrics) RecordError(ctx context.Context, kind core.ErrorKind) {
	m.mu.Lock()
	m.errorsByKind[kind]++
	m.mu.Unlock()
	m.inst.errors.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(kind))))
}

// RecordStageLatency adds a latency sample for stage.
func (m *Metrics) RecordStageLatency(ctx context.Context, stage string, d time.Duration) {
	m.mu.Lock()
	ss, ok := m.stages[stage]
	if !ok {
		ss = &stageStats{}
		m.stages[stage] = ss
	}
	ss.add(d)
	m.mu.Unlock()
	m.inst.stageDuration.Record(ctx, toMS(d), metric.WithAttributes(attribute.String("stage", stage)))
}

// RecordToolCall counts a tool invocation and its duration.
func (m *Metrics) RecordToolCall(ctx context.Context, tool string, d time.Duration) {
	m.mu.Lock()
	ts, ok := m.tools[tool]
	if !ok {
		ts = &toolStats{}
		m.tools[tool] = ts
	}
	ts.count++
	ts.total += d
	m.mu.Unlock()

	attrs := metric.WithAttributes(attribute.String("tool", tool))
	m.inst.toolCalls.Add(ctx, 1, attrs)
	m.inst.toolDuration.Record(ctx, toMS(d), attrs)
}

// Summary returns a snapshot of all collected metrics.
func (m *Metrics) Summary() MetricsSummary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	summary := MetricsSummary{
		AnalysesTotal:  m.analysesTotal,
		AnalysesFailed: m.analysesFailed,
		ErrorsByKind:   make(map[string]int64, len(m.errorsByKind)),
		ToolCalls:      make(map[string]ToolStats, len(m.tools)),
		Stages:         make(map[string]LatencyStats, len(m.stages)),
	}
	for k, v := range m.errorsByKind {
		summary.ErrorsByKind[string(k)] = v
	}
	for name, ts := range m.tools {
		stats := ToolStats{Count: ts.count, TotalMS: toMS(ts.total)}
		if ts.count > 0 {
			stats.AvgMS = stats.TotalMS / float64(ts.count)
		}
		summary.ToolCalls[name] = stats
	}
	for stage, ss := range m.stages {
		summary.Stages[stage] = ss.summary()
	}
	return summary
}

// Reset clears all metrics.
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.analysesTotal = 0
	m.analysesFailed = 0
	m.errorsByKind = make(map[core.ErrorKind]int64)
	m.tools = make(map[string]*toolStats)
	m.stages = make(map[string]*stageStats)
}

func (s *stageStats) summary() LatencyStats {
	if s.count == 0 {
		return LatencyStats{}
	}
	sorted := append([]time.Duration(nil), s.window...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	return LatencyStats{
		Count:    s.count,
		MinMS:    toMS(s.min),
		MaxMS:    toMS(s.max),
		AvgMS:    toMS(s.total) / float64(s.count),
		TotalMS:  toMS(s.total),
		MedianMS: toMS(sorted[len(sorted)/2]),
	}
}

func toMS(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
