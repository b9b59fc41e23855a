package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hugo-lorenzo-mato/workflow-advisor/internal/core"
)

func TestRetryPolicy_Execute_Success(t *testing.T) {
	policy := NewRetryPolicy(WithMaxAttempts(3))

	callCount := 0
	err := policy.Execute(context.Background(), func(ctx context.Context) error {
		callCount++
		return nil
	})

	if err != nil {
		t.Errorf("Execute() error = %v, want nil", err)
	}
	if callCount != 1 {
		t.Errorf("callCount = %d, want 1", callCount)
	}
}

func TestRetryPolicy_Execute_SuccessAfterRetry(t *testing.T) {
	policy := NewRetryPolicy(WithMaxAttempts(3), WithBaseDelay(time.Millisecond))

	callCount := 0
	err := policy.Execute(context.Background(), func(ctx context.Context) error {
		callCount++
		if callCount < 3 {
			return core.ErrTransient(core.CodeModelFailed, "503 from model")
		}
		return nil
	})

	if err != nil {
		t.Errorf("Execute() error = %v, want nil", err)
	}
	if callCount != 3 {
		t.Errorf("callCount = %d, want 3", callCount)
	}
}

func TestRetryPolicy_Execute_NeverRetries(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"validation", core.ErrValidation(core.CodeInvalidInput, "bad")},
		{"schema", core.ErrSchema("missing steps")},
		{"merge", core.ErrMerge(core.CodeOrphanView, "orphan")},
		{"plain execution", core.ErrExecution(core.CodeModelFailed, "bad request")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			policy := NewRetryPolicy(WithMaxAttempts(3), WithBaseDelay(time.Millisecond))
			callCount := 0
			err := policy.Execute(context.Background(), func(ctx context.Context) error {
				callCount++
				return tt.err
			})
			if !errors.Is(err, tt.err) {
				t.Errorf("Execute() error = %v, want %v", err, tt.err)
			}
			if callCount != 1 {
				t.Errorf("callCount = %d, want 1", callCount)
			}
		})
	}
}

func TestRetryPolicy_Execute_Exhausted(t *testing.T) {
	policy := NewRetryPolicy(WithMaxAttempts(2), WithBaseDelay(time.Millisecond))

	var notified []int
	err := policy.ExecuteWithNotify(context.Background(), func(ctx context.Context) error {
		return core.ErrRateLimit("slow down")
	}, func(attempt int, _ error, _ time.Duration) {
		notified = append(notified, attempt)
	})

	if !IsRetryExhausted(err) {
		t.Fatalf("expected RetryExhaustedError, got %v", err)
	}
	if core.GetCategory(err) != core.ErrCatRateLimit {
		t.Errorf("category = %v, want rate_limit", core.GetCategory(err))
	}
	if len(notified) != 1 || notified[0] != 1 {
		t.Errorf("notified = %v, want [1]", notified)
	}
}

func TestRetryPolicy_Execute_ContextDeadline(t *testing.T) {
	policy := NewRetryPolicy(WithMaxAttempts(5), WithBaseDelay(time.Second))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := policy.Execute(ctx, func(ctx context.Context) error {
		return core.ErrNetwork("connection reset")
	})

	if !core.IsCategory(err, core.ErrCatTimeout) {
		t.Errorf("expected timeout category, got %v (%v)", core.GetCategory(err), err)
	}
}

func TestRetryPolicy_Execute_Cancelled(t *testing.T) {
	policy := NewRetryPolicy()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := policy.Execute(ctx, func(ctx context.Context) error {
		called = true
		return nil
	})

	if called {
		t.Error("fn should not run on a cancelled context")
	}
	if !core.IsCategory(err, core.ErrCatCancelled) {
		t.Errorf("expected cancelled category, got %v", core.GetCategory(err))
	}
}

func TestRetryPolicy_CalculateDelay(t *testing.T) {
	policy := NewRetryPolicy(WithBaseDelay(100*time.Millisecond), WithMaxDelay(300*time.Millisecond))

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 300 * time.Millisecond},
		{6, 300 * time.Millisecond},
	}
	for _, tt := range tests {
		if got := policy.CalculateDelayNoJitter(tt.attempt); got != tt.want {
			t.Errorf("CalculateDelayNoJitter(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}

	for i := 0; i < 20; i++ {
		d := policy.CalculateDelay(1)
		if d < 80*time.Millisecond || d > 120*time.Millisecond {
			t.Errorf("CalculateDelay(1) = %v, outside jitter range", d)
		}
	}
}
