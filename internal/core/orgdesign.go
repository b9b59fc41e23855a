package core

import "time"

// ExecutionMode is how an agent descriptor executes its step.
type ExecutionMode string

const (
	ModeToolOnly     ExecutionMode = "TOOL_ONLY"
	ModeLLMWithTools ExecutionMode = "LLM_WITH_TOOLS"
	ModeHybrid       ExecutionMode = "HYBRID"
	ModeHuman        ExecutionMode = "HUMAN"
)

// SafetyPolicy constrains an agent.
type SafetyPolicy struct {
	RequiresHumanApproval bool `json:"requires_human_approval"`
	RestrictsPII          bool `json:"restricts_pii"`
}

// AgentDescriptor is the agent synthesized for one workflow step.
type AgentDescriptor struct {
	AgentID    string        `json:"agent_id"`
	Name       string        `json:"name"`
	Mode       ExecutionMode `json:"mode"`
	Model      string        `json:"model,omitempty"`
	Tools      []string      `json:"tools"`
	Safety     SafetyPolicy  `json:"safety"`
	Inputs     []string      `json:"inputs"`
	Outputs    []string      `json:"outputs"`
	SourceStep string        `json:"source_step"`
	RiskLevel  RiskLevel     `json:"risk_level"`
}

// AgentConnection is a directed edge between agents.
type AgentConnection struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Channel string `json:"channel"`
}

// OrgChart is the agent organisation derived from an approved analysis.
type OrgChart struct {
	WorkflowID  string            `json:"workflow_id"`
	Agents      []AgentDescriptor `json:"agents"`
	Connections []AgentConnection `json:"connections"`
	CreatedAt   time.Time         `json:"created_at"`
}

// ToolRegistration lists the agents that use one tool.
type ToolRegistration struct {
	ToolID string   `json:"tool_id"`
	Agents []string `json:"agents"`
}

// OrgDesign bundles the org chart with its registries.
type OrgDesign struct {
	Chart         OrgChart                   `json:"org_chart"`
	AgentRegistry map[string]AgentDescriptor `json:"agent_registry"`
	ToolRegistry  []ToolRegistration         `json:"tool_registry"`
}
