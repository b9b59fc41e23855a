package tools

import (
	"context"
	"sync"
	"testing"

	"github.com/hugo-lorenzo-mato/workflow-advisor/internal/core"
	"github.com/hugo-lorenzo-mato/workflow-advisor/internal/observability"
)

type recorder struct {
	mu    sync.Mutex
	calls []core.ToolCall
}

func (r *recorder) RecordToolCall(c core.ToolCall) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
}

func TestRegistry_InvokeRecordsCall(t *testing.T) {
	metrics := observability.NewMetrics()
	reg := NewDefaultRegistry(WithMetrics(metrics))
	rec := &recorder{}

	out, err := Invoke[APILookupInput, APILookupResult](context.Background(), reg, rec,
		NameAPILookup, "step_1", APILookupInput{StepDescription: "send email"})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if !out.Exists || out.APIName != "Gmail API" {
		t.Errorf("unexpected result %+v", out)
	}

	if len(rec.calls) != 1 {
		t.Fatalf("recorded %d calls, want 1", len(rec.calls))
	}
	call := rec.calls[0]
	if call.Tool != NameAPILookup || call.StepID != "step_1" || call.Status != StatusFound {
		t.Errorf("unexpected call record %+v", call)
	}
	if got := metrics.Summary().ToolCalls[NameAPILookup].Count; got != 1 {
		t.Errorf("metrics tool count = %d, want 1", got)
	}
}

func TestRegistry_InvokeCompliance(t *testing.T) {
	reg := NewDefaultRegistry()
	out, err := Invoke[ComplianceInput, ComplianceResult](context.Background(), reg, nil,
		NameCompliance, "step_2", ComplianceInput{RiskLevel: "CRITICAL", Domain: "financial"})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if len(out.ApplicableRules) == 0 || !out.RequiresAudit {
		t.Errorf("unexpected result %+v", out)
	}
}

func TestRegistry_UnknownTool(t *testing.T) {
	_, err := Invoke[APILookupInput, APILookupResult](context.Background(), NewRegistry(), nil,
		"missing", "", APILookupInput{})
	if !core.IsCategory(err, core.ErrCatNotFound) {
		t.Errorf("expected not_found, got %v", err)
	}
}

func TestRegistry_TypeMismatch(t *testing.T) {
	reg := NewDefaultRegistry()
	_, err := Invoke[ComplianceInput, ComplianceResult](context.Background(), reg, nil,
		NameAPILookup, "", ComplianceInput{})
	if !core.IsCategory(err, core.ErrCatValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestRegistry_DuplicateAndList(t *testing.T) {
	reg := NewDefaultRegistry()
	err := Register(reg, NameAPILookup, "dup", func(_ context.Context, in string) string { return in })
	if err == nil {
		t.Error("Register() should reject a duplicate name")
	}

	list := reg.List()
	if len(list) != 2 || list[0].Name != NameCompliance || list[1].Name != NameAPILookup {
		t.Errorf("List() = %+v", list)
	}
	if list[1].InputType != "tools.APILookupInput" {
		t.Errorf("InputType = %q", list[1].InputType)
	}
}
