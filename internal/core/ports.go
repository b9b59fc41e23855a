package core

import (
	"context"
	"time"
)

// =============================================================================
// Model Port
// =============================================================================

// Model is the language-model collaborator behind the analysis stages.
// Implementations return the raw reply text; parsing and shape validation
// happen in the calling stage.
type Model interface {
	// Name returns the provider identifier (e.g., "gemini", "openai", "heuristic").
	Name() string

	// Generate sends one request and returns the reply text.
	Generate(ctx context.Context, req ModelRequest) (string, error)
}

// ModelRequest describes one model call.
type ModelRequest struct {
	// Role names the calling stage (e.g., "parser", "risk").
	Role string

	// SystemPrompt carries the role/context instructions.
	SystemPrompt string

	// UserPrompt carries the user content.
	UserPrompt string

	// Schema names the structured shape the caller expects back.
	Schema string

	// Input is the structured payload the user prompt was rendered from.
	// Offline models read it instead of the prompt text.
	Input any

	Temperature     float64
	MaxOutputTokens int
}

// =============================================================================
// Tool Port
// =============================================================================

// ToolCall is one entry of a run's tool-call log.
type ToolCall struct {
	Tool     string        `json:"tool"`
	StepID   string        `json:"step_id,omitempty"`
	Duration time.Duration `json:"duration"`
	Status   string        `json:"status"`
	At       time.Time     `json:"at"`
}

// =============================================================================
// Analysis Store Port
// =============================================================================

// ApprovalStatus is the approval state of a stored analysis.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "PENDING"
	ApprovalApproved ApprovalStatus = "APPROVED"
	ApprovalRejected ApprovalStatus = "REJECTED"
)

// ParseApprovalStatus validates an approval status string.
func ParseApprovalStatus(s string) (ApprovalStatus, bool) {
	switch ApprovalStatus(s) {
	case ApprovalPending, ApprovalApproved, ApprovalRejected:
		return ApprovalStatus(s), true
	default:
		return "", false
	}
}

// StoredWorkflow is a persisted analysis with its approval state.
type StoredWorkflow struct {
	ID           string            `json:"workflow_id"`
	WorkflowText string            `json:"workflow_text"`
	Analysis     *WorkflowAnalysis `json:"analysis"`
	Status       ApprovalStatus    `json:"approval_status"`
	ApprovedBy   string            `json:"approved_by,omitempty"`
	RejectedBy   string            `json:"rejected_by,omitempty"`
	Notes        string            `json:"notes,omitempty"`
	OrgDesign    *OrgDesign        `json:"org_design,omitempty"`
	DecidedAt    *time.Time        `json:"decided_at,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// WorkflowSummary is the list view of a stored analysis.
type WorkflowSummary struct {
	ID                  string         `json:"workflow_id"`
	Status              ApprovalStatus `json:"approval_status"`
	TotalSteps          int            `json:"total_steps"`
	AutomationPotential float64        `json:"automation_potential"`
	Preview             string         `json:"preview"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

// ApprovalInfo is the approval-status view of a stored analysis.
type ApprovalInfo struct {
	ID           string         `json:"workflow_id"`
	Status       ApprovalStatus `json:"approval_status"`
	ApprovedBy   string         `json:"approved_by,omitempty"`
	RejectedBy   string         `json:"rejected_by,omitempty"`
	Notes        string         `json:"notes,omitempty"`
	DecidedAt    *time.Time     `json:"decided_at,omitempty"`
	HasOrgDesign bool           `json:"has_org_design"`
}

// ListFilter narrows a List call.
type ListFilter struct {
	Status ApprovalStatus
	Limit  int
}

// AnalysisStore persists analyses under an approval state.
type AnalysisStore interface {
	// Save stores a new or updated analysis. New records start PENDING.
	Save(ctx context.Context, wf *StoredWorkflow) error

	// Get returns a stored analysis or a WORKFLOW_NOT_FOUND error.
	Get(ctx context.Context, id string) (*StoredWorkflow, error)

	// List returns summaries, newest first.
	List(ctx context.Context, filter ListFilter) ([]WorkflowSummary, error)

	// Delete removes a stored analysis.
	Delete(ctx context.Context, id string) error

	// Approve marks a PENDING analysis approved and attaches its org design.
	Approve(ctx context.Context, id, approvedBy, notes string, design *OrgDesign) error

	// Reject marks a PENDING analysis rejected.
	Reject(ctx context.Context, id, rejectedBy, reason string) error

	// ApprovalStatus returns the approval view of a stored analysis.
	ApprovalStatus(ctx context.Context, id string) (*ApprovalInfo, error)
}
