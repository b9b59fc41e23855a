package core

import "testing"

func TestCanTransition_HappyPath(t *testing.T) {
	path := []RunState{
		RunInitiated, RunParsing, RunParsed, RunAnalyzing,
		RunAnalysisPartial, RunMerged, RunSummarized,
	}
	for i := 0; i < len(path)-1; i++ {
		if !CanTransition(path[i], path[i+1]) {
			t.Errorf("CanTransition(%s, %s) = false, want true", path[i], path[i+1])
		}
	}
}

func TestCanTransition_Rejects(t *testing.T) {
	tests := []struct {
		from, to RunState
	}{
		{RunInitiated, RunAnalyzing},
		{RunParsing, RunAnalyzing},
		{RunParseFailed, RunParsed},
		{RunAnalyzing, RunMerged},
		{RunDone, RunSummarized},
		{RunSummarized, RunDone},
	}
	for _, tt := range tests {
		if CanTransition(tt.from, tt.to) {
			t.Errorf("CanTransition(%s, %s) = true, want false", tt.from, tt.to)
		}
	}
}

func TestRunState_Terminal(t *testing.T) {
	terminal := map[RunState]bool{
		RunParseFailed: true,
		RunSummarized:  true,
		RunDone:        true,
		RunFailed:      true,
		RunCancelled:   true,
	}
	for _, s := range AllRunStates() {
		if s.Terminal() != terminal[s] {
			t.Errorf("%s.Terminal() = %v, want %v", s, s.Terminal(), terminal[s])
		}
	}
	if RunState("bogus").Terminal() {
		t.Error("unknown state should not be terminal")
	}
}

func TestParseRunState(t *testing.T) {
	if s, err := ParseRunState("MERGED"); err != nil || s != RunMerged {
		t.Errorf("ParseRunState(MERGED) = %v, %v", s, err)
	}
	if _, err := ParseRunState("merged"); err == nil {
		t.Error("expected error for lower-case state")
	}
}

func TestRunState_Description(t *testing.T) {
	for _, s := range AllRunStates() {
		if s.Description() == "Unknown state" {
			t.Errorf("%s has no description", s)
		}
	}
}
