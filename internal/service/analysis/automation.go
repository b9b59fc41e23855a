package analysis

import (
	"context"
	"fmt"
	"strings"

	"github.com/hugo-lorenzo-mato/workflow-advisor/internal/core"
	"github.com/hugo-lorenzo-mato/workflow-advisor/internal/tools"
)

// AutomationStage scores the automation potential of every parsed step and
// enriches the model view with the API catalog.
type AutomationStage struct {
	caller *modelCaller
	tools  *tools.Registry
}

// NewAutomationStage creates the automation analysis stage.
func NewAutomationStage(caller *modelCaller, registry *tools.Registry) *AutomationStage {
	return &AutomationStage{caller: caller, tools: registry}
}

// Name implements Stage.
func (s *AutomationStage) Name() string { return StageAutomation }

// Run implements Stage.
func (s *AutomationStage) Run(ctx context.Context, run *RunContext) Outcome[map[string]core.AutomationView] {
	steps := run.ParsedSteps()
	descriptions := make(map[string]string, len(steps))
	for _, step := range steps {
		descriptions[step.ID] = step.Description
	}
	in := core.StepsInput{WorkflowText: run.WorkflowText(), Steps: steps}

	var reply core.AutomationReply
	err := s.caller.call(ctx, run, core.ModelRequest{
		Role:         core.RoleAutomation,
		SystemPrompt: automationSystemPrompt,
		UserPrompt:   stepsUserPrompt("Analyze the automation potential of each workflow step.", in),
		Input:        in,
	}, &reply)
	if err != nil {
		return Failure[map[string]core.AutomationView](err)
	}

	views := make(map[string]core.AutomationView, len(reply.Analyses))
	invalid := make(map[string]string)
	for _, a := range reply.Analyses {
		id := normalizeID(a.StepID)
		if _, seen := views[id]; seen {
			continue
		}

		lookup, err := tools.Invoke[tools.APILookupInput, tools.APILookupResult](ctx, s.tools, run,
			tools.NameAPILookup, id, tools.APILookupInput{StepDescription: descriptions[id]})
		if err != nil {
			return Failure[map[string]core.AutomationView](err)
		}

		view, err := automationView(id, a, lookup)
		if err != nil {
			invalid[id] = err.Error()
			continue
		}
		views[id] = view
	}

	failed := missingSteps(steps, views)
	if len(failed) > 0 {
		return Partial(views, stepScopedError("automation analysis", failed, invalid), failed)
	}
	return Success(views)
}

func automationView(id string, a core.AutomationAnalysisReply, lookup tools.APILookupResult) (core.AutomationView, error) {
	var agentType core.AgentType
	switch {
	case strings.TrimSpace(a.RecommendedAgentType) != "":
		t, err := core.ParseAgentType(a.RecommendedAgentType)
		if err != nil {
			return core.AutomationView{}, err
		}
		agentType = t
	case lookup.LookupStatus == tools.StatusNoAPIAvailable:
		agentType = core.AgentHuman
	default:
		agentType = core.DefaultAgentType
	}

	complexity, err := parseComplexity(a.ComplexityLevel)
	if err != nil {
		return core.AutomationView{}, err
	}

	view := core.AutomationView{
		StepID:                id,
		AgentType:             agentType,
		DeterminismScore:      clamp01(a.DeterminismScore),
		AutomationFeasibility: clamp01(a.AutomationFeasibility),
		ComplexityLevel:       complexity,
		SuggestedIntegrations: appendUnique([]string{}, a.SuggestedIntegrations...),
	}
	if a.AvailableAPI != nil {
		view.AvailableAPI = strings.TrimSpace(*a.AvailableAPI)
	}
	if lookup.Exists {
		if view.AvailableAPI == "" {
			view.AvailableAPI = lookup.APIName
		}
		view.SuggestedIntegrations = appendUnique(view.SuggestedIntegrations, lookup.APIName)
	}
	return view, nil
}

func parseComplexity(s string) (core.Complexity, error) {
	switch c := core.Complexity(strings.ToUpper(strings.TrimSpace(s))); c {
	case "":
		return core.ComplexityMedium, nil
	case core.ComplexityLow, core.ComplexityMedium, core.ComplexityHigh:
		return c, nil
	default:
		return "", fmt.Errorf("invalid complexity level: %q", s)
	}
}
