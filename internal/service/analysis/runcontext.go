// Package analysis implements the workflow analysis pipeline: the parser
// barrier, the concurrent risk and automation stages, the merge and the
// optional summarizer.
package analysis

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hugo-lorenzo-mato/workflow-advisor/internal/core"
	"github.com/hugo-lorenzo-mato/workflow-advisor/internal/logging"
)

// ErrorEntry is one record of a run's error log.
type ErrorEntry struct {
	Stage   string         `json:"stage"`
	Kind    core.ErrorKind `json:"kind"`
	Message string         `json:"message"`
	StepIDs []string       `json:"step_ids,omitempty"`
	At      time.Time      `json:"at"`
}

// StateChange records one run state transition.
type StateChange struct {
	From core.RunState `json:"from"`
	To   core.RunState `json:"to"`
	At   time.Time     `json:"at"`
}

// RunContext is the state of one analysis run. It is created by the
// orchestrator and never shared across runs.
//
// Stage result fields are write-once and have a single producer each; the
// fan-out join orders those writes before any read. The logs, latencies and
// run state are guarded by mu.
type RunContext struct {
	runID        string
	traceID      string
	workflowID   string
	createdAt    time.Time
	workflowText string
	logger       *logging.Logger

	parsedSteps      []core.ParsedStep
	parsedSet        bool
	riskResults      map[string]core.RiskView
	riskSet          bool
	automationResult map[string]core.AutomationView
	automationSet    bool
	analysis         *core.WorkflowAnalysis
	narrative        *core.Narrative

	mu        sync.Mutex
	latencies map[string]time.Duration
	toolCalls []core.ToolCall
	errors    []ErrorEntry
	state     core.RunState
	history   []StateChange
}

// NewRunContext creates a run context with fresh run and trace ids.
func NewRunContext(workflowID, workflowText string, logger *logging.Logger) *RunContext {
	if logger == nil {
		logger = logging.NewNop()
	}
	rc := &RunContext{
		runID:        uuid.New().String(),
		traceID:      uuid.New().String(),
		workflowID:   workflowID,
		createdAt:    time.Now().UTC(),
		workflowText: workflowText,
		latencies:    make(map[string]time.Duration),
		state:        core.RunInitiated,
	}
	if rc.workflowID == "" {
		rc.workflowID = "wf_" + rc.runID[:8]
	}
	rc.logger = logger.WithRun(rc.runID, rc.traceID).WithWorkflow(rc.workflowID)
	return rc
}

// RunID returns the run id.
func (rc *RunContext) RunID() string { return rc.runID }

// TraceID returns the trace id.
func (rc *RunContext) TraceID() string { return rc.traceID }

// WorkflowID returns the workflow id the report is filed under.
func (rc *RunContext) WorkflowID() string { return rc.workflowID }

// CreatedAt returns the creation time.
func (rc *RunContext) CreatedAt() time.Time { return rc.createdAt }

// WorkflowText returns the original input.
func (rc *RunContext) WorkflowText() string { return rc.workflowText }

// Logger returns the run-scoped logger carrying run_id and trace_id.
func (rc *RunContext) Logger() *logging.Logger { return rc.logger }

// SetParsedSteps stores the parser output.
func (rc *RunContext) SetParsedSteps(steps []core.ParsedStep) error {
	if rc.parsedSet {
		return alreadySet("parsed_steps")
	}
	rc.parsedSteps = cloneSteps(steps)
	rc.parsedSet = true
	return nil
}

// ParsedSteps returns a copy of the parser output.
func (rc *RunContext) ParsedSteps() []core.ParsedStep {
	return cloneSteps(rc.parsedSteps)
}

// SetRiskResults stores the risk stage output.
func (rc *RunContext) SetRiskResults(views map[string]core.RiskView) error {
	if rc.riskSet {
		return alreadySet("risk_results")
	}
	rc.riskResults = make(map[string]core.RiskView, len(views))
	for id, v := range views {
		v.ComplianceNotes = append([]string{}, v.ComplianceNotes...)
		rc.riskResults[id] = v
	}
	rc.riskSet = true
	return nil
}

// RiskResults returns a copy of the risk stage output.
func (rc *RunContext) RiskResults() map[string]core.RiskView {
	out := make(map[string]core.RiskView, len(rc.riskResults))
	for id, v := range rc.riskResults {
		v.ComplianceNotes = append([]string{}, v.ComplianceNotes...)
		out[id] = v
	}
	return out
}

// SetAutomationResults stores the automation stage output.
func (rc *RunContext) SetAutomationResults(views map[string]core.AutomationView) error {
	if rc.automationSet {
		return alreadySet("automation_results")
	}
	rc.automationResult = make(map[string]core.AutomationView, len(views))
	for id, v := range views {
		v.SuggestedIntegrations = append([]string{}, v.SuggestedIntegrations...)
		rc.automationResult[id] = v
	}
	rc.automationSet = true
	return nil
}

// AutomationResults returns a copy of the automation stage output.
func (rc *RunContext) AutomationResults() map[string]core.AutomationView {
	out := make(map[string]core.AutomationView, len(rc.automationResult))
	for id, v := range rc.automationResult {
		v.SuggestedIntegrations = append([]string{}, v.SuggestedIntegrations...)
		out[id] = v
	}
	return out
}

// SetAnalysis stores the merged report.
func (rc *RunContext) SetAnalysis(a *core.WorkflowAnalysis) error {
	if rc.analysis != nil {
		return alreadySet("analysis")
	}
	rc.analysis = a
	return nil
}

// Analysis returns the merged report, or nil before merge.
func (rc *RunContext) Analysis() *core.WorkflowAnalysis { return rc.analysis }

// SetNarrative stores the summarizer output.
func (rc *RunContext) SetNarrative(n *core.Narrative) error {
	if rc.narrative != nil {
		return alreadySet("summary_narrative")
	}
	rc.narrative = n
	return nil
}

// Narrative returns the summarizer output, or nil.
func (rc *RunContext) Narrative() *core.Narrative { return rc.narrative }

// RecordLatency stores the elapsed time of a stage.
func (rc *RunContext) RecordLatency(stage string, d time.Duration) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.latencies[stage] = d
}

// Latencies returns a copy of the stage latencies.
func (rc *RunContext) Latencies() map[string]time.Duration {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	out := make(map[string]time.Duration, len(rc.latencies))
	for k, v := range rc.latencies {
		out[k] = v
	}
	return out
}

// RecordToolCall appends to the tool-call log.
func (rc *RunContext) RecordToolCall(call core.ToolCall) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.toolCalls = append(rc.toolCalls, call)
}

// ToolCalls returns a copy of the tool-call log.
func (rc *RunContext) ToolCalls() []core.ToolCall {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return append([]core.ToolCall(nil), rc.toolCalls...)
}

// RecordError appends to the error log.
func (rc *RunContext) RecordError(stage string, err error, stepIDs ...string) ErrorEntry {
	entry := ErrorEntry{
		Stage:   stage,
		Kind:    core.KindOf(err),
		Message: err.Error(),
		StepIDs: append([]string(nil), stepIDs...),
		At:      time.Now().UTC(),
	}
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.errors = append(rc.errors, entry)
	return entry
}

// Errors returns a copy of the error log.
func (rc *RunContext) Errors() []ErrorEntry {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	out := make([]ErrorEntry, len(rc.errors))
	for i, e := range rc.errors {
		e.StepIDs = append([]string(nil), e.StepIDs...)
		out[i] = e
	}
	return out
}

// State returns the current run state.
func (rc *RunContext) State() core.RunState {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.state
}

// StateHistory returns the transitions taken so far.
func (rc *RunContext) StateHistory() []StateChange {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return append([]StateChange(nil), rc.history...)
}

// Transition moves the run to the next state.
func (rc *RunContext) Transition(to core.RunState) error {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if !core.CanTransition(rc.state, to) {
		return core.ErrState(core.CodeInvalidTransition,
			fmt.Sprintf("illegal run transition %s -> %s", rc.state, to)).
			WithDetail("trace_id", rc.traceID)
	}
	rc.history = append(rc.history, StateChange{From: rc.state, To: to, At: time.Now().UTC()})
	rc.state = to
	return nil
}

// Snapshot is a serializable view of a finished run.
type Snapshot struct {
	RunID      string                   `json:"run_id"`
	TraceID    string                   `json:"trace_id"`
	WorkflowID string                   `json:"workflow_id"`
	State      core.RunState            `json:"state"`
	Latencies  map[string]time.Duration `json:"stage_latencies"`
	ToolCalls  []core.ToolCall          `json:"tool_calls"`
	Errors     []ErrorEntry             `json:"errors"`
	History    []StateChange            `json:"state_history"`
}

// Snapshot returns copies of the run's logs.
func (rc *RunContext) Snapshot() Snapshot {
	return Snapshot{
		RunID:      rc.runID,
		TraceID:    rc.traceID,
		WorkflowID: rc.workflowID,
		State:      rc.State(),
		Latencies:  rc.Latencies(),
		ToolCalls:  rc.ToolCalls(),
		Errors:     rc.Errors(),
		History:    rc.StateHistory(),
	}
}

func alreadySet(field string) error {
	return core.ErrState(core.CodeFieldAlreadySet, field+" is already set")
}

func cloneSteps(steps []core.ParsedStep) []core.ParsedStep {
	if steps == nil {
		return nil
	}
	out := make([]core.ParsedStep, len(steps))
	for i, s := range steps {
		s.Inputs = append([]string{}, s.Inputs...)
		s.Outputs = append([]string{}, s.Outputs...)
		s.Dependencies = append([]string{}, s.Dependencies...)
		out[i] = s
	}
	return out
}
