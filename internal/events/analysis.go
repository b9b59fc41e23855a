package events

import "time"

// Event type constants for analysis run events.
const (
	TypeRunStarted     = "run_started"
	TypeStageStarted   = "stage_started"
	TypeStageCompleted = "stage_completed"
	TypeStageFailed    = "stage_failed"
	TypeRunCompleted   = "run_completed"
	TypeRunFailed      = "run_failed"
)

// RunRef identifies the run an event belongs to.
type RunRef struct {
	WorkflowID string
	RunID      string
	TraceID    string
}

// RunStartedEvent is emitted when an analysis run begins.
type RunStartedEvent struct {
	BaseEvent
	TextLength int `json:"text_length"`
}

// NewRunStartedEvent creates a new run started event.
func NewRunStartedEvent(run RunRef, textLength int) RunStartedEvent {
	return RunStartedEvent{
		BaseEvent:  NewBaseEvent(TypeRunStarted, run),
		TextLength: textLength,
	}
}

// StageStartedEvent is emitted when a stage begins.
type StageStartedEvent struct {
	BaseEvent
	Stage string `json:"stage"`
}

// NewStageStartedEvent creates a new stage started event.
func NewStageStartedEvent(run RunRef, stage string) StageStartedEvent {
	return StageStartedEvent{
		BaseEvent: NewBaseEvent(TypeStageStarted, run),
		Stage:     stage,
	}
}

// StageCompletedEvent is emitted when a stage succeeds.
type StageCompletedEvent struct {
	BaseEvent
	Stage    string        `json:"stage"`
	Duration time.Duration `json:"duration"`
}

// NewStageCompletedEvent creates a new stage completed event.
func NewStageCompletedEvent(run RunRef, stage string, duration time.Duration) StageCompletedEvent {
	return StageCompletedEvent{
		BaseEvent: NewBaseEvent(TypeStageCompleted, run),
		Stage:     stage,
		Duration:  duration,
	}
}

// StageFailedEvent is emitted when a stage fails, entirely or for some steps.
type StageFailedEvent struct {
	BaseEvent
	Stage       string        `json:"stage"`
	Duration    time.Duration `json:"duration"`
	Error       string        `json:"error"`
	FailedSteps []string      `json:"failed_steps,omitempty"`
}

// NewStageFailedEvent creates a new stage failed event.
func NewStageFailedEvent(run RunRef, stage string, duration time.Duration, err error, failedSteps []string) StageFailedEvent {
	errStr := ""
	if err != nil {
		errStr = err.Error()
	}
	return StageFailedEvent{
		BaseEvent:   NewBaseEvent(TypeStageFailed, run),
		Stage:       stage,
		Duration:    duration,
		Error:       errStr,
		FailedSteps: append([]string(nil), failedSteps...),
	}
}

// RunCompletedEvent is emitted once when a run reaches a successful terminal state.
type RunCompletedEvent struct {
	BaseEvent
	State               string        `json:"state"`
	Duration            time.Duration `json:"duration"`
	TotalSteps          int           `json:"total_steps"`
	AutomationPotential float64       `json:"automation_potential"`
}

// NewRunCompletedEvent creates a new run completed event.
func NewRunCompletedEvent(run RunRef, state string, duration time.Duration, totalSteps int, potential float64) RunCompletedEvent {
	return RunCompletedEvent{
		BaseEvent:           NewBaseEvent(TypeRunCompleted, run),
		State:               state,
		Duration:            duration,
		TotalSteps:          totalSteps,
		AutomationPotential: potential,
	}
}

// RunFailedEvent is emitted when a run ends in a failure state.
// This is a PRIORITY event - never dropped.
type RunFailedEvent struct {
	BaseEvent
	State string `json:"state"`
	Stage string `json:"stage"`
	Error string `json:"error"`
}

// NewRunFailedEvent creates a new run failed event.
func NewRunFailedEvent(run RunRef, state, stage string, err error) RunFailedEvent {
	errStr := ""
	if err != nil {
		errStr = err.Error()
	}
	return RunFailedEvent{
		BaseEvent: NewBaseEvent(TypeRunFailed, run),
		State:     state,
		Stage:     stage,
		Error:     errStr,
	}
}
