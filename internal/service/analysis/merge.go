package analysis

import (
	"fmt"
	"sort"

	"github.com/hugo-lorenzo-mato/workflow-advisor/internal/core"
)

// Suggested tool names added by the merge.
const (
	ToolHumanReview       = "Human Review"
	ToolCustomIntegration = "Custom Integration"
)

// MergeSteps joins the parsed steps with their risk and automation views.
// Every parsed step appears exactly once, in parsed order. A step without a
// view gets the fallback view and the matching fallback flag. Views keyed by
// an unknown step id are rejected.
func MergeSteps(parsed []core.ParsedStep, risk map[string]core.RiskView, automation map[string]core.AutomationView) ([]core.WorkflowStep, error) {
	known := make(map[string]bool, len(parsed))
	for _, step := range parsed {
		if known[step.ID] {
			return nil, core.ErrMerge(core.CodeDuplicateStep,
				fmt.Sprintf("step %s is parsed more than once", step.ID)).
				WithDetail("step_id", step.ID)
		}
		known[step.ID] = true
	}
	for _, step := range parsed {
		for _, dep := range step.Dependencies {
			if !known[dep] {
				return nil, core.ErrMerge(core.CodeDanglingDependency,
					fmt.Sprintf("step %s depends on unknown step %s", step.ID, dep)).
					WithDetail("step_id", step.ID).
					WithDetail("dependency", dep)
			}
		}
	}
	if orphans := orphanIDs(known, risk, automation); len(orphans) > 0 {
		return nil, core.ErrMerge(core.CodeOrphanView,
			fmt.Sprintf("%d view(s) reference unknown steps", len(orphans))).
			WithDetail("step_ids", orphans)
	}

	steps := make([]core.WorkflowStep, 0, len(parsed))
	for _, p := range parsed {
		r, hasRisk := risk[p.ID]
		if !hasRisk {
			r = core.FallbackRiskView(p.ID)
		}
		a, hasAutomation := automation[p.ID]
		if !hasAutomation {
			a = core.FallbackAutomationView(p.ID)
		}

		step := core.WorkflowStep{
			ID:           p.ID,
			Description:  p.Description,
			Inputs:       nonNil(p.Inputs),
			Outputs:      nonNil(p.Outputs),
			Dependencies: nonNil(p.Dependencies),

			RiskLevel:           r.RiskLevel,
			RequiresHumanReview: r.RequiresHumanReview,
			ComplianceNotes:     nonNil(r.ComplianceNotes),

			AgentType:             a.AgentType,
			DeterminismScore:      a.DeterminismScore,
			AutomationFeasibility: a.AutomationFeasibility,
			ComplexityLevel:       a.ComplexityLevel,
			AvailableAPI:          a.AvailableAPI,
			SuggestedIntegrations: nonNil(a.SuggestedIntegrations),

			RiskFallback:       !hasRisk,
			AutomationFallback: !hasAutomation,
		}
		step.SuggestedTools = suggestedTools(step)
		steps = append(steps, step)
	}
	return steps, nil
}

func orphanIDs(known map[string]bool, risk map[string]core.RiskView, automation map[string]core.AutomationView) []string {
	seen := make(map[string]bool)
	for id := range risk {
		if !known[id] {
			seen[id] = true
		}
	}
	for id := range automation {
		if !known[id] {
			seen[id] = true
		}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func suggestedTools(step core.WorkflowStep) []string {
	tools := []string{}
	if step.AvailableAPI != "" {
		tools = appendUnique(tools, step.AvailableAPI)
	}
	tools = appendUnique(tools, step.SuggestedIntegrations...)
	if step.RequiresHumanReview {
		tools = appendUnique(tools, ToolHumanReview)
	}
	if step.AvailableAPI == "" && step.AutomationFeasibility > 0.5 {
		tools = appendUnique(tools, ToolCustomIntegration)
	}
	return tools
}

// Summarize computes the aggregate counts over merged steps.
func Summarize(steps []core.WorkflowStep, threshold float64) core.AutomationSummary {
	s := core.AutomationSummary{TotalSteps: len(steps)}
	for _, step := range steps {
		if step.AutomationFeasibility >= threshold {
			s.AutomatableCount++
		}
		if step.AgentType == core.AgentHuman {
			s.HumanRequiredCount++
		} else {
			s.AgentRequiredCount++
		}
		switch step.RiskLevel {
		case core.RiskHigh:
			s.HighRiskSteps++
		case core.RiskCritical:
			s.CriticalRiskSteps++
		}
	}
	if s.TotalSteps > 0 {
		s.AutomationPotential = float64(s.AutomatableCount) / float64(s.TotalSteps)
	}
	return s
}
