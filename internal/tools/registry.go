// Package tools provides the capability tools consulted by the analysis
// stages and the registry that invokes them.
package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hugo-lorenzo-mato/workflow-advisor/internal/core"
	"github.com/hugo-lorenzo-mato/workflow-advisor/internal/logging"
	"github.com/hugo-lorenzo-mato/workflow-advisor/internal/observability"
)

// Tool names.
const (
	NameAPILookup  = "lookup_api_docs"
	NameCompliance = "get_compliance_rules"
)

// Func is a typed tool body. Tools always produce a value; a miss is a
// documented default result rather than an error.
type Func[I, O any] func(ctx context.Context, in I) O

// Descriptor describes a registered tool.
type Descriptor struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	InputType   string `json:"input_type"`
	OutputType  string `json:"output_type"`

	call func(ctx context.Context, in any) (any, bool)
}

// CallRecorder receives the tool-call log entries of a run.
type CallRecorder interface {
	RecordToolCall(call core.ToolCall)
}

// Registry maps tool names to typed tools. It is safe for concurrent use
// and shared by every run in the process.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]Descriptor
	logger  *logging.Logger
	metrics *observability.Metrics
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLogger sets the logger used for tool-call debug entries.
func WithLogger(l *logging.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = l
	}
}

// WithMetrics sets the metrics collector that counts tool calls.
func WithMetrics(m *observability.Metrics) RegistryOption {
	return func(r *Registry) {
		r.metrics = m
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		tools:  make(map[string]Descriptor),
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewDefaultRegistry creates a registry holding the built-in tools.
func NewDefaultRegistry(opts ...RegistryOption) *Registry {
	r := NewRegistry(opts...)
	MustRegister(r, NameAPILookup,
		"Check whether an API exists for automating a workflow step",
		func(_ context.Context, in APILookupInput) APILookupResult {
			return LookupAPIDocs(in.StepDescription)
		})
	MustRegister(r, NameCompliance,
		"Return the compliance rules that apply to a risk level in a domain",
		func(_ context.Context, in ComplianceInput) ComplianceResult {
			return GetComplianceRules(in.RiskLevel, in.Domain)
		})
	return r
}

// Register adds a typed tool under name.
func Register[I, O any](r *Registry, name, description string, fn Func[I, O]) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %s already registered", name)
	}

	var zeroIn I
	var zeroOut O
	r.tools[name] = Descriptor{
		Name:        name,
		Description: description,
		InputType:   fmt.Sprintf("%T", zeroIn),
		OutputType:  fmt.Sprintf("%T", zeroOut),
		call: func(ctx context.Context, in any) (any, bool) {
			typed, ok := in.(I)
			if !ok {
				return nil, false
			}
			return fn(ctx, typed), true
		},
	}
	return nil
}

// MustRegister is like Register but panics on a duplicate name.
func MustRegister[I, O any](r *Registry, name, description string, fn Func[I, O]) {
	if err := Register(r, name, description, fn); err != nil {
		panic(err)
	}
}

// List returns the registered tools sorted by name.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Descriptor, 0, len(r.tools))
	for _, d := range r.tools {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r *Registry) lookup(name string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.tools[name]
	return d, ok
}

// Invoke runs the named tool, times it, and appends the call to rec.
// An error is returned only for an unknown tool or mismatched types.
func Invoke[I, O any](ctx context.Context, r *Registry, rec CallRecorder, name, stepID string, in I) (O, error) {
	var zero O

	d, ok := r.lookup(name)
	if !ok {
		return zero, core.ErrNotFound("tool", name)
	}

	start := time.Now()
	raw, ok := d.call(ctx, in)
	elapsed := time.Since(start)
	if !ok {
		return zero, core.ErrValidation(core.CodeInvalidInput,
			fmt.Sprintf("tool %s expects %s, got %T", name, d.InputType, in))
	}
	out, ok := raw.(O)
	if !ok {
		return zero, core.ErrValidation(core.CodeInvalidInput,
			fmt.Sprintf("tool %s returns %s, not %T", name, d.OutputType, zero))
	}

	status := "ok"
	if s, ok := raw.(interface{ Status() string }); ok {
		status = s.Status()
	}

	if rec != nil {
		rec.RecordToolCall(core.ToolCall{
			Tool:     name,
			StepID:   stepID,
			Duration: elapsed,
			Status:   status,
			At:       start,
		})
	}
	if r.metrics != nil {
		r.metrics.RecordToolCall(ctx, name, elapsed)
	}
	r.loggerFor(rec).Debug("tool call",
		"tool", name,
		"step_id", stepID,
		"status", status,
		"duration_ms", elapsed.Milliseconds())

	return out, nil
}

// loggerFor prefers the run-scoped logger when the recorder carries one.
func (r *Registry) loggerFor(rec CallRecorder) *logging.Logger {
	if lr, ok := rec.(interface{ Logger() *logging.Logger }); ok {
		if l := lr.Logger(); l != nil {
			return l
		}
	}
	return r.logger
}
