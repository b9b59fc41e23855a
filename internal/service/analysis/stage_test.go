package analysis

import (
	"testing"

	"github.com/hugo-lorenzo-mato/workflow-advisor/internal/core"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare", `{"a":1}`, `{"a":1}`},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"fenced no lang", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"prose around", "Here you go: {\"a\":1} hope it helps", `{"a":1}`},
		{"none", "no json here", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractJSON(tt.in); got != tt.want {
				t.Errorf("extractJSON() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecodeReply(t *testing.T) {
	var reply core.RiskReply
	err := decodeReply(core.RoleRisk, "```json\n{\"risk_assessments\":[{\"step_id\":\"step_1\",\"risk_level\":\"HIGH\",\"requires_human_in_loop\":true}]}\n```", &reply)
	if err != nil {
		t.Fatalf("decodeReply() error = %v", err)
	}
	if len(reply.Assessments) != 1 || reply.Assessments[0].RiskLevel != "HIGH" {
		t.Errorf("decoded = %+v", reply)
	}
}

func TestDecodeReply_SchemaViolation(t *testing.T) {
	var reply core.AutomationReply
	err := decodeReply(core.RoleAutomation, `{"automation_analyses":[{"step_id":"a","determinism_score":"high"}]}`, &reply)
	if core.KindOf(err) != core.KindSchema {
		t.Fatalf("kind = %s, want SchemaViolationError (err %v)", core.KindOf(err), err)
	}
	violations, ok := err.(*core.DomainError).Details["violations"].([]string)
	if !ok || len(violations) == 0 {
		t.Errorf("violations = %v", err.(*core.DomainError).Details["violations"])
	}
}

func TestNormalizeParsedSteps(t *testing.T) {
	steps, err := normalizeParsedSteps([]core.ParsedStepReply{
		{StepID: " Step_1 ", Description: " Read "},
		{StepID: "step_2", Description: "Write", Dependencies: []string{"STEP_1", "step_1"}},
	})
	if err != nil {
		t.Fatalf("normalizeParsedSteps() error = %v", err)
	}
	if steps[0].ID != "step_1" || steps[0].Description != "Read" {
		t.Errorf("steps[0] = %+v", steps[0])
	}
	if len(steps[1].Dependencies) != 1 || steps[1].Dependencies[0] != "step_1" {
		t.Errorf("steps[1].Dependencies = %v", steps[1].Dependencies)
	}
	if steps[0].Inputs == nil {
		t.Error("inputs should be empty, not nil")
	}

	if _, err := normalizeParsedSteps(nil); core.KindOf(err) != core.KindSchema {
		t.Errorf("empty reply: %v", err)
	}
	if _, err := normalizeParsedSteps([]core.ParsedStepReply{{StepID: "a"}, {StepID: "A"}}); core.KindOf(err) != core.KindSchema {
		t.Errorf("duplicate ids: %v", err)
	}
	if _, err := normalizeParsedSteps([]core.ParsedStepReply{{StepID: "a", Dependencies: []string{"b"}}}); core.KindOf(err) != core.KindSchema {
		t.Errorf("unknown dependency: %v", err)
	}
}

func TestOutcome(t *testing.T) {
	if !Success(1).OK() {
		t.Error("Success should be OK")
	}
	f := Failure[int](core.ErrSchema("x"))
	if f.OK() || f.Scoped() {
		t.Error("Failure should be whole-stage")
	}
	p := Partial(map[string]int{"a": 1}, core.ErrSchema("x"), []string{"b"})
	if p.OK() || !p.Scoped() {
		t.Error("Partial should be step-scoped")
	}
	views := usableViews(p)
	if len(views) != 1 || views["a"] != 1 {
		t.Errorf("usableViews() = %v", views)
	}
	if len(usableViews(Failure[map[string]int](core.ErrSchema("x")))) != 0 {
		t.Error("whole-stage failure should contribute nothing")
	}
}
