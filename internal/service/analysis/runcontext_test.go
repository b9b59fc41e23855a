package analysis

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/hugo-lorenzo-mato/workflow-advisor/internal/core"
)

func TestRunContext_IDs(t *testing.T) {
	rc := NewRunContext("", "text", nil)
	if rc.RunID() == "" || rc.TraceID() == "" || rc.RunID() == rc.TraceID() {
		t.Errorf("ids = %q / %q", rc.RunID(), rc.TraceID())
	}
	if !strings.HasPrefix(rc.WorkflowID(), "wf_") || len(rc.WorkflowID()) != 11 {
		t.Errorf("derived workflow id = %q", rc.WorkflowID())
	}
	if named := NewRunContext("invoices", "text", nil); named.WorkflowID() != "invoices" {
		t.Errorf("workflow id = %q", named.WorkflowID())
	}
	if rc.State() != core.RunInitiated {
		t.Errorf("initial state = %s", rc.State())
	}
}

func TestRunContext_WriteOnce(t *testing.T) {
	rc := NewRunContext("wf", "text", nil)

	if err := rc.SetParsedSteps(parsedChain("a")); err != nil {
		t.Fatalf("first SetParsedSteps() error = %v", err)
	}
	err := rc.SetParsedSteps(parsedChain("b"))
	var de *core.DomainError
	if !errors.As(err, &de) || de.Code != core.CodeFieldAlreadySet {
		t.Errorf("second SetParsedSteps() = %v, want FIELD_ALREADY_SET", err)
	}
	if rc.ParsedSteps()[0].ID != "a" {
		t.Error("first write was overwritten")
	}

	if err := rc.SetRiskResults(nil); err != nil {
		t.Fatalf("SetRiskResults() error = %v", err)
	}
	if err := rc.SetRiskResults(nil); err == nil {
		t.Error("second SetRiskResults() should fail")
	}
	if err := rc.SetAutomationResults(map[string]core.AutomationView{}); err != nil {
		t.Fatalf("SetAutomationResults() error = %v", err)
	}
	if err := rc.SetAutomationResults(nil); err == nil {
		t.Error("second SetAutomationResults() should fail")
	}
	if err := rc.SetAnalysis(&core.WorkflowAnalysis{}); err != nil {
		t.Fatalf("SetAnalysis() error = %v", err)
	}
	if err := rc.SetAnalysis(&core.WorkflowAnalysis{}); err == nil {
		t.Error("second SetAnalysis() should fail")
	}
	if err := rc.SetNarrative(&core.Narrative{}); err != nil {
		t.Fatalf("SetNarrative() error = %v", err)
	}
	if err := rc.SetNarrative(&core.Narrative{}); err == nil {
		t.Error("second SetNarrative() should fail")
	}
}

func TestRunContext_ReadsAreCopies(t *testing.T) {
	rc := NewRunContext("wf", "text", nil)
	_ = rc.SetParsedSteps(parsedChain("a", "b"))
	steps := rc.ParsedSteps()
	steps[1].Dependencies[0] = "mutated"
	if rc.ParsedSteps()[1].Dependencies[0] != "a" {
		t.Error("caller mutation leaked into the run context")
	}
}

func TestRunContext_Transitions(t *testing.T) {
	rc := NewRunContext("wf", "text", nil)
	for _, s := range []core.RunState{core.RunParsing, core.RunParsed, core.RunAnalyzing, core.RunAnalysisComplete, core.RunMerged, core.RunDone} {
		if err := rc.Transition(s); err != nil {
			t.Fatalf("Transition(%s) error = %v", s, err)
		}
	}
	err := rc.Transition(core.RunParsing)
	if !core.IsCategory(err, core.ErrCatState) {
		t.Errorf("transition out of DONE = %v, want state error", err)
	}
	if len(rc.StateHistory()) != 6 {
		t.Errorf("history = %+v", rc.StateHistory())
	}
}

func TestRunContext_ConcurrentLogs(t *testing.T) {
	rc := NewRunContext("wf", "text", nil)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rc.RecordToolCall(core.ToolCall{Tool: "lookup_api_docs"})
			rc.RecordError(StageRisk, core.ErrSchema("bad"), "step_1")
			rc.RecordLatency(StageRisk, 0)
		}(i)
	}
	wg.Wait()

	if n := len(rc.ToolCalls()); n != 50 {
		t.Errorf("tool calls = %d, want 50", n)
	}
	errs := rc.Errors()
	if len(errs) != 50 || errs[0].Kind != core.KindSchema || errs[0].StepIDs[0] != "step_1" {
		t.Errorf("errors = %d, first %+v", len(errs), errs[0])
	}
	snap := rc.Snapshot()
	if len(snap.Errors) != 50 || len(snap.ToolCalls) != 50 {
		t.Errorf("snapshot = %+v", snap)
	}
}
