package core

// Model roles, one per analysis stage.
const (
	RoleParser     = "parser"
	RoleRisk       = "risk"
	RoleAutomation = "automation"
	RoleSummarizer = "summarizer"
)

// ParseInput is the structured payload of a parser request.
type ParseInput struct {
	WorkflowText string `json:"workflow_text"`
}

// StepsInput is the structured payload of a risk or automation request.
type StepsInput struct {
	WorkflowText string       `json:"workflow_text"`
	Steps        []ParsedStep `json:"steps"`
	Domain       string       `json:"domain,omitempty"`
}

// SummaryInput is the structured payload of a summarizer request.
type SummaryInput struct {
	Analysis *WorkflowAnalysis `json:"analysis"`
}

// The reply types below are the JSON shapes a model returns for each role.
// Stages validate replies against an embedded schema before decoding them.

// ParserReply is the parser reply.
type ParserReply struct {
	Steps []ParsedStepReply `json:"steps"`
}

// ParsedStepReply is one step of a parser reply.
type ParsedStepReply struct {
	StepID       string   `json:"step_id"`
	Description  string   `json:"description"`
	Inputs       []string `json:"inputs"`
	Outputs      []string `json:"outputs"`
	Dependencies []string `json:"dependencies"`
}

// RiskReply is the risk assessment reply.
type RiskReply struct {
	Assessments []RiskAssessmentReply `json:"risk_assessments"`
}

// RiskAssessmentReply is the assessment of one step.
type RiskAssessmentReply struct {
	StepID                string   `json:"step_id"`
	RiskLevel             string   `json:"risk_level"`
	RequiresHumanInLoop   bool     `json:"requires_human_in_loop"`
	ConfidenceScore       float64  `json:"confidence_score"`
	Notes                 string   `json:"notes,omitempty"`
	ApplicableRegulations []string `json:"applicable_regulations,omitempty"`
	MitigationSuggestions []string `json:"mitigation_suggestions,omitempty"`
}

// AutomationReply is the automation analysis reply.
type AutomationReply struct {
	Analyses []AutomationAnalysisReply `json:"automation_analyses"`
}

// AutomationAnalysisReply is the analysis of one step.
type AutomationAnalysisReply struct {
	StepID                string   `json:"step_id"`
	RecommendedAgentType  string   `json:"recommended_agent_type,omitempty"`
	DeterminismScore      float64  `json:"determinism_score"`
	AutomationFeasibility float64  `json:"automation_feasibility"`
	ComplexityLevel       string   `json:"complexity_level,omitempty"`
	AvailableAPI          *string  `json:"available_api,omitempty"`
	SuggestedIntegrations []string `json:"suggested_integrations,omitempty"`
	ImplementationNotes   string   `json:"implementation_notes,omitempty"`
}

// SummaryReply is the summarizer reply.
type SummaryReply struct {
	Summary SummaryBody `json:"summary"`
}

// SummaryBody is the body of a summarizer reply.
type SummaryBody struct {
	OverallAssessment   string         `json:"overall_assessment"`
	KeyBlockers         []string       `json:"key_blockers,omitempty"`
	QuickWins           []string       `json:"quick_wins,omitempty"`
	Roadmap             []RoadmapPhase `json:"roadmap,omitempty"`
	EstimatedTimeToFull string         `json:"estimated_time_to_full_automation,omitempty"`
}
