package analysis

import (
	"context"
	"fmt"

	"github.com/hugo-lorenzo-mato/workflow-advisor/internal/core"
	"github.com/hugo-lorenzo-mato/workflow-advisor/internal/tools"
)

// RiskStage assesses the risk of every parsed step and enriches the model
// view with the compliance rules of the workflow domain.
type RiskStage struct {
	caller *modelCaller
	tools  *tools.Registry
	domain string
}

// NewRiskStage creates the risk assessment stage. An empty domain is
// inferred from the workflow text on every run.
func NewRiskStage(caller *modelCaller, registry *tools.Registry, domain string) *RiskStage {
	return &RiskStage{caller: caller, tools: registry, domain: domain}
}

// Name implements Stage.
func (s *RiskStage) Name() string { return StageRisk }

// Run implements Stage.
func (s *RiskStage) Run(ctx context.Context, run *RunContext) Outcome[map[string]core.RiskView] {
	steps := run.ParsedSteps()
	domain := s.domain
	if domain == "" {
		domain = tools.InferDomain(run.WorkflowText())
	}
	in := core.StepsInput{WorkflowText: run.WorkflowText(), Steps: steps, Domain: domain}

	var reply core.RiskReply
	err := s.caller.call(ctx, run, core.ModelRequest{
		Role:         core.RoleRisk,
		SystemPrompt: riskSystemPrompt,
		UserPrompt:   stepsUserPrompt("Assess the risk and compliance requirements of each workflow step.", in),
		Input:        in,
	}, &reply)
	if err != nil {
		return Failure[map[string]core.RiskView](err)
	}

	views := make(map[string]core.RiskView, len(reply.Assessments))
	invalid := make(map[string]string)
	for _, a := range reply.Assessments {
		id := normalizeID(a.StepID)
		if _, seen := views[id]; seen {
			continue
		}
		level, err := core.ParseRiskLevel(a.RiskLevel)
		if err != nil {
			invalid[id] = err.Error()
			continue
		}

		rules, err := tools.Invoke[tools.ComplianceInput, tools.ComplianceResult](ctx, s.tools, run,
			tools.NameCompliance, id, tools.ComplianceInput{RiskLevel: string(level), Domain: domain})
		if err != nil {
			return Failure[map[string]core.RiskView](err)
		}

		notes := appendUnique([]string{}, a.Notes)
		notes = appendUnique(notes, a.ApplicableRegulations...)
		notes = appendUnique(notes, a.MitigationSuggestions...)
		notes = appendUnique(notes, rules.ApplicableRules...)

		views[id] = core.RiskView{
			StepID:              id,
			RiskLevel:           level,
			RequiresHumanReview: a.RequiresHumanInLoop || rules.HITLRequired,
			ComplianceNotes:     notes,
			Confidence:          clamp01(a.ConfidenceScore),
		}
	}

	failed := missingSteps(steps, views)
	if len(failed) > 0 {
		return Partial(views, stepScopedError("risk assessment", failed, invalid), failed)
	}
	return Success(views)
}

// missingSteps returns, in parsed order, the steps with no view.
func missingSteps[V any](steps []core.ParsedStep, views map[string]V) []string {
	var failed []string
	for _, step := range steps {
		if _, ok := views[step.ID]; ok {
			continue
		}
		failed = append(failed, step.ID)
	}
	return failed
}

func stepScopedError(stage string, failed []string, invalid map[string]string) error {
	e := core.ErrSchema(fmt.Sprintf("%s produced no valid view for %d step(s)", stage, len(failed))).
		WithDetail("step_ids", failed)
	if len(invalid) > 0 {
		e.WithDetail("invalid", invalid)
	}
	return e
}
