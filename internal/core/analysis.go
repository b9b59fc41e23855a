package core

import (
	"fmt"
	"strings"
	"time"
)

// RiskLevel is the ordered consequence severity of automating a step incorrectly.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// Rank returns the position of the level in LOW < MEDIUM < HIGH < CRITICAL,
// or -1 for an unknown level.
func (r RiskLevel) Rank() int {
	switch r {
	case RiskLow:
		return 0
	case RiskMedium:
		return 1
	case RiskHigh:
		return 2
	case RiskCritical:
		return 3
	default:
		return -1
	}
}

// AtLeast reports whether r is as severe as other.
func (r RiskLevel) AtLeast(other RiskLevel) bool {
	return r.Rank() >= other.Rank() && r.Rank() >= 0
}

// ParseRiskLevel normalizes and validates a risk level.
func ParseRiskLevel(s string) (RiskLevel, error) {
	r := RiskLevel(strings.ToUpper(strings.TrimSpace(s)))
	if r.Rank() < 0 {
		return "", fmt.Errorf("invalid risk level: %q", s)
	}
	return r, nil
}

// AgentType classifies how a step should be executed.
type AgentType string

const (
	AgentADKBase    AgentType = "adk_base"
	AgentAgenticRAG AgentType = "agentic_rag"
	AgentTool       AgentType = "TOOL"
	AgentHuman      AgentType = "HUMAN"
)

// DefaultAgentType is the non-human class assigned by the automation fallback.
const DefaultAgentType = AgentADKBase

// ParseAgentType normalizes an agent type as returned by a model.
func ParseAgentType(s string) (AgentType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "adk_base":
		return AgentADKBase, nil
	case "agentic_rag":
		return AgentAgenticRAG, nil
	case "tool":
		return AgentTool, nil
	case "human":
		return AgentHuman, nil
	default:
		return "", fmt.Errorf("invalid agent type: %q", s)
	}
}

// Complexity is a coarse implementation effort estimate.
type Complexity string

const (
	ComplexityLow    Complexity = "LOW"
	ComplexityMedium Complexity = "MEDIUM"
	ComplexityHigh   Complexity = "HIGH"
)

// ParsedStep is one structural step produced by the parser.
type ParsedStep struct {
	ID           string   `json:"id" yaml:"id"`
	Description  string   `json:"description" yaml:"description"`
	Inputs       []string `json:"inputs" yaml:"inputs"`
	Outputs      []string `json:"outputs" yaml:"outputs"`
	Dependencies []string `json:"dependencies" yaml:"dependencies"`
}

// RiskView is the risk assessment of one step.
type RiskView struct {
	StepID              string    `json:"step_id" yaml:"step_id"`
	RiskLevel           RiskLevel `json:"risk_level" yaml:"risk_level"`
	RequiresHumanReview bool      `json:"requires_human_review" yaml:"requires_human_review"`
	ComplianceNotes     []string  `json:"compliance_notes" yaml:"compliance_notes"`
	Confidence          float64   `json:"confidence,omitempty" yaml:"confidence,omitempty"`
}

// FallbackRiskView is substituted when no risk view exists for a step.
func FallbackRiskView(stepID string) RiskView {
	return RiskView{
		StepID:              stepID,
		RiskLevel:           RiskLow,
		RequiresHumanReview: false,
		ComplianceNotes:     []string{},
	}
}

// AutomationView is the automation analysis of one step.
type AutomationView struct {
	StepID                string     `json:"step_id" yaml:"step_id"`
	AgentType             AgentType  `json:"agent_type" yaml:"agent_type"`
	DeterminismScore      float64    `json:"determinism_score" yaml:"determinism_score"`
	AutomationFeasibility float64    `json:"automation_feasibility" yaml:"automation_feasibility"`
	ComplexityLevel       Complexity `json:"complexity_level" yaml:"complexity_level"`
	AvailableAPI          string     `json:"available_api,omitempty" yaml:"available_api,omitempty"`
	SuggestedIntegrations []string   `json:"suggested_integrations" yaml:"suggested_integrations"`
}

// FallbackAutomationView is substituted when no automation view exists for a step.
func FallbackAutomationView(stepID string) AutomationView {
	return AutomationView{
		StepID:                stepID,
		AgentType:             DefaultAgentType,
		DeterminismScore:      0.5,
		AutomationFeasibility: 0.5,
		ComplexityLevel:       ComplexityMedium,
		SuggestedIntegrations: []string{},
	}
}

// WorkflowStep is the merged record of one step.
type WorkflowStep struct {
	ID           string   `json:"id" yaml:"id"`
	Description  string   `json:"description" yaml:"description"`
	Inputs       []string `json:"inputs" yaml:"inputs"`
	Outputs      []string `json:"outputs" yaml:"outputs"`
	Dependencies []string `json:"dependencies" yaml:"dependencies"`

	RiskLevel           RiskLevel `json:"risk_level" yaml:"risk_level"`
	RequiresHumanReview bool      `json:"requires_human_review" yaml:"requires_human_review"`
	ComplianceNotes     []string  `json:"compliance_notes" yaml:"compliance_notes"`

	AgentType             AgentType  `json:"agent_type" yaml:"agent_type"`
	DeterminismScore      float64    `json:"determinism_score" yaml:"determinism_score"`
	AutomationFeasibility float64    `json:"automation_feasibility" yaml:"automation_feasibility"`
	ComplexityLevel       Complexity `json:"complexity_level" yaml:"complexity_level"`
	AvailableAPI          string     `json:"available_api,omitempty" yaml:"available_api,omitempty"`
	SuggestedIntegrations []string   `json:"suggested_integrations" yaml:"suggested_integrations"`
	SuggestedTools        []string   `json:"suggested_tools" yaml:"suggested_tools"`

	RiskFallback       bool `json:"risk_fallback,omitempty" yaml:"risk_fallback,omitempty"`
	AutomationFallback bool `json:"automation_fallback,omitempty" yaml:"automation_fallback,omitempty"`
}

// AutomationSummary holds the aggregate counts over the merged steps.
type AutomationSummary struct {
	TotalSteps          int     `json:"total_steps" yaml:"total_steps"`
	AutomatableCount    int     `json:"automatable_count" yaml:"automatable_count"`
	AgentRequiredCount  int     `json:"agent_required_count" yaml:"agent_required_count"`
	HumanRequiredCount  int     `json:"human_required_count" yaml:"human_required_count"`
	AutomationPotential float64 `json:"automation_potential" yaml:"automation_potential"`
	HighRiskSteps       int     `json:"high_risk_steps" yaml:"high_risk_steps"`
	CriticalRiskSteps   int     `json:"critical_risk_steps" yaml:"critical_risk_steps"`
}

// Priority ranks insights.
type Priority string

const (
	PriorityLow      Priority = "LOW"
	PriorityMedium   Priority = "MEDIUM"
	PriorityHigh     Priority = "HIGH"
	PriorityCritical Priority = "CRITICAL"
)

// Insight is a short finding derived from the merged steps.
type Insight struct {
	Title         string   `json:"title" yaml:"title"`
	Description   string   `json:"description" yaml:"description"`
	Priority      Priority `json:"priority" yaml:"priority"`
	AffectedSteps []string `json:"affected_steps" yaml:"affected_steps"`
}

// RoadmapPhase is one phase of the automation roadmap.
type RoadmapPhase struct {
	Phase    string   `json:"phase" yaml:"phase"`
	Steps    []string `json:"steps" yaml:"steps"`
	Duration string   `json:"duration" yaml:"duration"`
}

// Roadmap is the structured part of the summarizer output.
type Roadmap struct {
	KeyBlockers         []string       `json:"key_blockers" yaml:"key_blockers"`
	QuickWins           []string       `json:"quick_wins" yaml:"quick_wins"`
	Phases              []RoadmapPhase `json:"phases" yaml:"phases"`
	EstimatedTimeToFull string         `json:"estimated_time_to_full_automation,omitempty" yaml:"estimated_time_to_full_automation,omitempty"`
}

// Narrative is the summarizer output.
type Narrative struct {
	OverallAssessment string  `json:"overall_assessment" yaml:"overall_assessment"`
	Roadmap           Roadmap `json:"roadmap" yaml:"roadmap"`
}

// WorkflowAnalysis is the final report of one run.
type WorkflowAnalysis struct {
	WorkflowID      string            `json:"workflow_id" yaml:"workflow_id"`
	RunID           string            `json:"run_id" yaml:"run_id"`
	TraceID         string            `json:"trace_id" yaml:"trace_id"`
	Steps           []WorkflowStep    `json:"steps" yaml:"steps"`
	Summary         AutomationSummary `json:"summary" yaml:"summary"`
	Insights        []Insight         `json:"insights" yaml:"insights"`
	Recommendations []string          `json:"recommendations" yaml:"recommendations"`
	Narrative       *Narrative        `json:"narrative,omitempty" yaml:"narrative,omitempty"`
	State           RunState          `json:"state" yaml:"state"`
	DurationMS      int64             `json:"duration_ms" yaml:"duration_ms"`
	CreatedAt       time.Time         `json:"created_at" yaml:"created_at"`
}

// Step returns the merged step with the given id.
func (a *WorkflowAnalysis) Step(id string) (WorkflowStep, bool) {
	for _, s := range a.Steps {
		if s.ID == id {
			return s, true
		}
	}
	return WorkflowStep{}, false
}
