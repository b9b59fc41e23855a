// Package orgdesign turns an approved workflow analysis into an agent
// organisation: one agent per step, wired along the step dependencies.
package orgdesign

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hugo-lorenzo-mato/workflow-advisor/internal/core"
)

const (
	// ChannelRequestResponse is the channel used for dependency edges.
	ChannelRequestResponse = "request_response"

	apiToolPrefix  = "api::"
	toolToolPrefix = "tool::"

	// llmModeThreshold is the feasibility at which an unreviewed step is
	// handed to an LLM agent instead of a person.
	llmModeThreshold = 0.6
	// humanModeThreshold is the feasibility below which a reviewed step
	// stays fully manual.
	humanModeThreshold = 0.4
)

// Option configures Synthesize.
type Option func(*options)

type options struct {
	model string
	now   func() time.Time
}

// WithModel sets the model name recorded on LLM-backed agents.
func WithModel(name string) Option {
	return func(o *options) { o.model = name }
}

// WithClock overrides the clock used for the chart timestamp.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// Synthesize builds the org design for an analysis. The result depends
// only on the analysis and the options.
func Synthesize(analysis *core.WorkflowAnalysis, opts ...Option) (*core.OrgDesign, error) {
	if analysis == nil {
		return nil, core.ErrValidation(core.CodeInvalidInput, "analysis is required")
	}
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	chart := core.OrgChart{
		WorkflowID:  analysis.WorkflowID,
		Agents:      make([]core.AgentDescriptor, 0, len(analysis.Steps)),
		Connections: []core.AgentConnection{},
		CreatedAt:   o.now().UTC(),
	}

	known := make(map[string]bool, len(analysis.Steps))
	for _, step := range analysis.Steps {
		if known[step.ID] {
			return nil, core.ErrValidation(core.CodeDuplicateStep,
				fmt.Sprintf("step %s appears more than once", step.ID))
		}
		known[step.ID] = true
		chart.Agents = append(chart.Agents, describe(step, o.model))
	}

	for _, step := range analysis.Steps {
		for _, dep := range step.Dependencies {
			if !known[dep] {
				continue
			}
			chart.Connections = append(chart.Connections, core.AgentConnection{
				From:    AgentID(dep),
				To:      AgentID(step.ID),
				Channel: ChannelRequestResponse,
			})
		}
	}

	return &core.OrgDesign{
		Chart:         chart,
		AgentRegistry: AgentRegistry(chart),
		ToolRegistry:  ToolRegistry(chart),
	}, nil
}

// AgentID returns the agent id for a step id.
func AgentID(stepID string) string {
	return "agent_" + stepID
}

func describe(step core.WorkflowStep, model string) core.AgentDescriptor {
	mode := InferMode(step)
	agent := core.AgentDescriptor{
		AgentID:    AgentID(step.ID),
		Name:       agentName(step),
		Mode:       mode,
		Tools:      ToolIDs(step),
		Safety:     InferSafety(step, mode),
		Inputs:     nonNil(step.Inputs),
		Outputs:    nonNil(step.Outputs),
		SourceStep: step.ID,
		RiskLevel:  step.RiskLevel,
	}
	if mode == core.ModeLLMWithTools || mode == core.ModeHybrid {
		agent.Model = model
	}
	return agent
}

// InferMode decides how the agent for a step executes.
func InferMode(step core.WorkflowStep) core.ExecutionMode {
	if step.RequiresHumanReview || step.RiskLevel.AtLeast(core.RiskHigh) {
		if step.AutomationFeasibility < humanModeThreshold {
			return core.ModeHuman
		}
		return core.ModeHybrid
	}
	if step.AvailableAPI != "" {
		return core.ModeToolOnly
	}
	if step.AutomationFeasibility >= llmModeThreshold {
		return core.ModeLLMWithTools
	}
	return core.ModeHuman
}

// InferSafety derives the safety policy of an agent.
func InferSafety(step core.WorkflowStep, mode core.ExecutionMode) core.SafetyPolicy {
	highRisk := step.RiskLevel.AtLeast(core.RiskHigh)
	return core.SafetyPolicy{
		RequiresHumanApproval: step.RequiresHumanReview || highRisk || mode == core.ModeHuman,
		RestrictsPII:          highRisk,
	}
}

// ToolIDs lists the tools of a step, API first, without duplicates.
func ToolIDs(step core.WorkflowStep) []string {
	ids := make([]string, 0, 1+len(step.SuggestedTools))
	seen := make(map[string]bool)
	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	if step.AvailableAPI != "" {
		add(apiToolPrefix + step.AvailableAPI)
	}
	for _, name := range step.SuggestedTools {
		if name = strings.TrimSpace(name); name != "" {
			add(toolToolPrefix + name)
		}
	}
	return ids
}

// AgentRegistry indexes the chart's agents by id.
func AgentRegistry(chart core.OrgChart) map[string]core.AgentDescriptor {
	registry := make(map[string]core.AgentDescriptor, len(chart.Agents))
	for _, agent := range chart.Agents {
		registry[agent.AgentID] = agent
	}
	return registry
}

// ToolRegistry lists every tool referenced by the chart with the agents
// that use it, in order of first use.
func ToolRegistry(chart core.OrgChart) []core.ToolRegistration {
	index := make(map[string]int)
	registry := []core.ToolRegistration{}
	for _, agent := range chart.Agents {
		for _, tool := range agent.Tools {
			i, ok := index[tool]
			if !ok {
				i = len(registry)
				index[tool] = i
				registry = append(registry, core.ToolRegistration{ToolID: tool})
			}
			registry[i].Agents = append(registry[i].Agents, agent.AgentID)
		}
	}
	return registry
}

// ModeCounts tallies agents per execution mode.
func ModeCounts(chart core.OrgChart) map[core.ExecutionMode]int {
	counts := make(map[core.ExecutionMode]int)
	for _, agent := range chart.Agents {
		counts[agent.Mode]++
	}
	return counts
}

// SortedModes returns the modes present in counts in a stable order.
func SortedModes(counts map[core.ExecutionMode]int) []core.ExecutionMode {
	modes := make([]core.ExecutionMode, 0, len(counts))
	for m := range counts {
		modes = append(modes, m)
	}
	sort.Slice(modes, func(i, j int) bool { return modes[i] < modes[j] })
	return modes
}

func agentName(step core.WorkflowStep) string {
	desc := strings.TrimSpace(step.Description)
	if desc == "" {
		return "Agent for " + step.ID
	}
	if r := []rune(desc); len(r) > 60 {
		desc = string(r[:60]) + "..."
	}
	return desc
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
