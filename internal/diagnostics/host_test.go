package diagnostics

import (
	"context"
	"runtime"
	"testing"
)

func TestCollector_Collect(t *testing.T) {
	c := NewCollector(WithDiskPath(t.TempDir()))
	s := c.Collect(context.Background())

	if s.OS != runtime.GOOS || s.Arch != runtime.GOARCH {
		t.Errorf("platform = %s/%s", s.OS, s.Arch)
	}
	if s.Goroutines <= 0 {
		t.Errorf("Goroutines = %d", s.Goroutines)
	}
	if s.Timestamp.IsZero() || s.ProcessUptime == "" {
		t.Errorf("snapshot header = %+v", s)
	}

	// Second collection reuses the cached hardware facts.
	again := c.Collect(context.Background())
	if again.CPUModel != s.CPUModel || again.CPUCores != s.CPUCores {
		t.Errorf("hardware info changed between collections: %+v vs %+v", again, s)
	}
	if again.CPUPercent < 0 || again.CPUPercent > 100 {
		t.Errorf("CPUPercent = %v", again.CPUPercent)
	}
}

func TestCollector_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := NewCollector().Collect(ctx)
	if len(s.Notes) == 0 {
		t.Error("expected an interruption note")
	}
	if s.Goroutines <= 0 {
		t.Error("process stats should still be collected")
	}
}
