package observability

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/hugo-lorenzo-mato/workflow-advisor/internal/core"
)

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics()
	ctx := context.Background()

	m.RecordAnalysis(ctx)
	m.RecordAnalysis(ctx)
	m.RecordAnalysisFailed(ctx)
	m.RecordError(ctx, core.KindSchema)
	m.RecordError(ctx, core.KindSchema)
	m.RecordError(ctx, core.KindStageExecution)

	s := m.Summary()
	if s.AnalysesTotal != 2 {
		t.Errorf("AnalysesTotal = %d, want 2", s.AnalysesTotal)
	}
	if s.AnalysesFailed != 1 {
		t.Errorf("AnalysesFailed = %d, want 1", s.AnalysesFailed)
	}
	if s.ErrorsByKind["SchemaViolationError"] != 2 {
		t.Errorf("ErrorsByKind[schema] = %d, want 2", s.ErrorsByKind["SchemaViolationError"])
	}
	if s.ErrorsByKind["StageExecutionError"] != 1 {
		t.Errorf("ErrorsByKind[stage] = %d, want 1", s.ErrorsByKind["StageExecutionError"])
	}
}

func TestMetrics_StageLatency(t *testing.T) {
	m := NewMetrics()
	ctx := context.Background()
	for _, ms := range []int{30, 10, 20, 40} {
		m.RecordStageLatency(ctx, "parser", time.Duration(ms)*time.Millisecond)
	}

	st := m.Summary().Stages["parser"]
	if st.Count != 4 {
		t.Errorf("Count = %d, want 4", st.Count)
	}
	if st.MinMS != 10 || st.MaxMS != 40 {
		t.Errorf("Min/Max = %v/%v, want 10/40", st.MinMS, st.MaxMS)
	}
	if st.TotalMS != 100 || st.AvgMS != 25 {
		t.Errorf("Total/Avg = %v/%v, want 100/25", st.TotalMS, st.AvgMS)
	}
	// sorted[len/2] of [10 20 30 40]
	if st.MedianMS != 30 {
		t.Errorf("MedianMS = %v, want 30", st.MedianMS)
	}
}

func TestMetrics_StageLatencyWindowIsBounded(t *testing.T) {
	m := NewMetrics()
	ctx := context.Background()
	total := 3 * latencyWindow
	for i := 1; i <= total; i++ {
		m.RecordStageLatency(ctx, "risk_assessment", time.Duration(i)*time.Millisecond)
	}

	st := m.Summary().Stages["risk_assessment"]
	if st.Count != total {
		t.Errorf("Count = %d, want %d", st.Count, total)
	}
	if st.MinMS != 1 || st.MaxMS != float64(total) {
		t.Errorf("Min/Max = %v/%v, want 1/%d", st.MinMS, st.MaxMS, total)
	}
	wantTotal := float64(total*(total+1)) / 2
	if st.TotalMS != wantTotal {
		t.Errorf("TotalMS = %v, want %v", st.TotalMS, wantTotal)
	}
	// The median only sees the last latencyWindow samples.
	if st.MedianMS <= float64(2*latencyWindow) {
		t.Errorf("MedianMS = %v, want it drawn from the recent window", st.MedianMS)
	}
	if n := len(m.stages["risk_assessment"].window); n != latencyWindow {
		t.Errorf("window holds %d samples, want %d", n, latencyWindow)
	}
}

func TestMetrics_ToolCalls(t *testing.T) {
	m := NewMetrics()
	ctx := context.Background()
	m.RecordToolCall(ctx, "lookup_api_docs", 2*time.Millisecond)
	m.RecordToolCall(ctx, "lookup_api_docs", 4*time.Millisecond)

	ts := m.Summary().ToolCalls["lookup_api_docs"]
	if ts.Count != 2 || ts.TotalMS != 6 || ts.AvgMS != 3 {
		t.Errorf("ToolStats = %+v", ts)
	}
}

func TestMetrics_Reset(t *testing.T) {
	m := NewMetrics()
	ctx := context.Background()
	m.RecordAnalysis(ctx)
	m.RecordStageLatency(ctx, "risk", time.Millisecond)
	m.Reset()

	s := m.Summary()
	if s.AnalysesTotal != 0 || len(s.Stages) != 0 {
		t.Errorf("after Reset: %+v", s)
	}
}

func TestMetrics_Concurrent(t *testing.T) {
	m := NewMetrics()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.RecordAnalysis(ctx)
			m.RecordToolCall(ctx, "get_compliance_rules", time.Microsecond)
			_ = m.Summary()
		}()
	}
	wg.Wait()

	if got := m.Summary().AnalysesTotal; got != 50 {
		t.Errorf("AnalysesTotal = %d, want 50", got)
	}
}
