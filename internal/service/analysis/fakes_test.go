package analysis

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/hugo-lorenzo-mato/workflow-advisor/internal/adapters/model"
	"github.com/hugo-lorenzo-mato/workflow-advisor/internal/core"
)

// scriptedModel answers with the heuristic model unless a role has a
// scripted reply or error. It also records call counts and time windows.
type scriptedModel struct {
	inner   core.Model
	replies map[string]string
	errs    map[string][]error // consumed in order, then the heuristic answers
	delays  map[string]time.Duration

	mu      sync.Mutex
	calls   map[string]int
	windows map[string][2]time.Time
}

func newScriptedModel() *scriptedModel {
	return &scriptedModel{
		inner:   model.NewHeuristic(),
		replies: map[string]string{},
		errs:    map[string][]error{},
		delays:  map[string]time.Duration{},
		calls:   map[string]int{},
		windows: map[string][2]time.Time{},
	}
}

func (m *scriptedModel) Name() string { return "scripted" }

func (m *scriptedModel) Generate(ctx context.Context, req core.ModelRequest) (string, error) {
	start := time.Now()
	m.mu.Lock()
	m.calls[req.Role]++
	var err error
	if queue := m.errs[req.Role]; len(queue) > 0 {
		err, m.errs[req.Role] = queue[0], queue[1:]
	}
	reply, scripted := m.replies[req.Role]
	delay := m.delays[req.Role]
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.windows[req.Role] = [2]time.Time{start, time.Now()}
		m.mu.Unlock()
	}()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return "", core.FromContext(ctx.Err(), req.Role+" model call")
		case <-time.After(delay):
		}
	}
	if err != nil {
		return "", err
	}
	if scripted {
		return reply, nil
	}
	return m.inner.Generate(ctx, req)
}

func (m *scriptedModel) callCount(role string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[role]
}

func (m *scriptedModel) window(role string) (time.Time, time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w := m.windows[role]
	return w[0], w[1]
}

// droppingModel removes the automation view of one step from the
// heuristic reply.
type droppingModel struct {
	inner core.Model
	drop  string
}

func (m *droppingModel) Name() string { return "dropping" }

func (m *droppingModel) Generate(ctx context.Context, req core.ModelRequest) (string, error) {
	raw, err := m.inner.Generate(ctx, req)
	if err != nil || req.Role != core.RoleAutomation {
		return raw, err
	}
	var reply core.AutomationReply
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		return "", err
	}
	kept := reply.Analyses[:0]
	for _, a := range reply.Analyses {
		if a.StepID != m.drop {
			kept = append(kept, a)
		}
	}
	reply.Analyses = kept
	out, err := json.Marshal(reply)
	return string(out), err
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.RetryBaseDelay = time.Millisecond
	cfg.StageTimeout = 5 * time.Second
	cfg.RunTimeout = 10 * time.Second
	return cfg
}
