package core

import "fmt"

// RunState is a position in the analysis run state machine.
type RunState string

const (
	// RunInitiated is the state of a freshly created run context.
	RunInitiated RunState = "INITIATED"

	// RunParsing means the parser stage is in flight.
	RunParsing RunState = "PARSING"

	// RunParseFailed is terminal. No other stage runs after it.
	RunParseFailed RunState = "PARSE_FAILED"

	// RunParsed means the step set is available to the analysis stages.
	RunParsed RunState = "PARSED"

	// RunAnalyzing means risk assessment and automation analysis are running concurrently.
	RunAnalyzing RunState = "ANALYZING"

	// RunAnalysisComplete means both analysis stages produced a view for every step.
	RunAnalysisComplete RunState = "ANALYSIS_COMPLETE"

	// RunAnalysisPartial means at least one step will receive a fallback view.
	RunAnalysisPartial RunState = "ANALYSIS_PARTIAL"

	// RunMerged means the final report exists.
	RunMerged RunState = "MERGED"

	// RunSummarized is terminal and carries a narrative.
	RunSummarized RunState = "SUMMARIZED"

	// RunDone is terminal without a narrative.
	RunDone RunState = "DONE"

	// RunFailed is terminal for validation, merge and deadline failures.
	RunFailed RunState = "FAILED"

	// RunCancelled is terminal when the caller cancels.
	RunCancelled RunState = "CANCELLED"
)

var runTransitions = map[RunState][]RunState{
	RunInitiated:        {RunParsing, RunFailed, RunCancelled},
	RunParsing:          {RunParsed, RunParseFailed, RunCancelled},
	RunParsed:           {RunAnalyzing, RunFailed, RunCancelled},
	RunAnalyzing:        {RunAnalysisComplete, RunAnalysisPartial, RunFailed, RunCancelled},
	RunAnalysisComplete: {RunMerged, RunFailed, RunCancelled},
	RunAnalysisPartial:  {RunMerged, RunFailed, RunCancelled},
	RunMerged:           {RunSummarized, RunDone, RunFailed, RunCancelled},
}

// AllRunStates returns every state in state machine order.
func AllRunStates() []RunState {
	return []RunState{
		RunInitiated, RunParsing, RunParseFailed, RunParsed, RunAnalyzing,
		RunAnalysisComplete, RunAnalysisPartial, RunMerged, RunSummarized,
		RunDone, RunFailed, RunCancelled,
	}
}

// CanTransition reports whether the state machine allows from -> to.
func CanTransition(from, to RunState) bool {
	for _, next := range runTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s RunState) Terminal() bool {
	_, ok := runTransitions[s]
	return !ok && ValidRunState(s)
}

// Succeeded reports whether the state is a successful terminal state.
func (s RunState) Succeeded() bool {
	return s == RunSummarized || s == RunDone
}

// ValidRunState checks if a state string is valid.
func ValidRunState(s RunState) bool {
	for _, st := range AllRunStates() {
		if st == s {
			return true
		}
	}
	return false
}

// ParseRunState converts a string to a RunState with validation.
func ParseRunState(s string) (RunState, error) {
	st := RunState(s)
	if !ValidRunState(st) {
		return "", fmt.Errorf("invalid run state: %s", s)
	}
	return st, nil
}

// String returns the string representation of the state.
func (s RunState) String() string {
	return string(s)
}

// Description returns a human-readable description of the state.
func (s RunState) Description() string {
	switch s {
	case RunInitiated:
		return "Run context created"
	case RunParsing:
		return "Parsing workflow text into steps"
	case RunParseFailed:
		return "Parsing failed, run aborted"
	case RunParsed:
		return "Workflow steps parsed"
	case RunAnalyzing:
		return "Assessing risk and automation in parallel"
	case RunAnalysisComplete:
		return "All analysis views produced"
	case RunAnalysisPartial:
		return "Some analysis views replaced by fallbacks"
	case RunMerged:
		return "Partial views merged into the report"
	case RunSummarized:
		return "Report merged and summarized"
	case RunDone:
		return "Report merged"
	case RunFailed:
		return "Run failed"
	case RunCancelled:
		return "Run cancelled"
	default:
		return "Unknown state"
	}
}
