package analysis

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/hugo-lorenzo-mato/workflow-advisor/internal/core"
	"github.com/hugo-lorenzo-mato/workflow-advisor/internal/service"
)

// Stage names, used for spans, latencies, metrics and the error log.
const (
	StageParser     = "parser"
	StageRisk       = "risk_assessment"
	StageAutomation = "automation_analysis"
	StageMerge      = "merge"
	StageSummarizer = "summarizer"
)

// Outcome is the result of one stage run. A nil Err is a success. A
// non-nil Err with FailedSteps is a step-scoped failure: Value is still
// valid for every other step. A non-nil Err without FailedSteps fails the
// whole stage.
type Outcome[T any] struct {
	Value       T
	Err         error
	FailedSteps []string
}

// Success wraps a complete stage result.
func Success[T any](v T) Outcome[T] {
	return Outcome[T]{Value: v}
}

// Failure wraps a failed stage result.
func Failure[T any](err error) Outcome[T] {
	return Outcome[T]{Err: err}
}

// Partial wraps a result that is valid except for failed.
func Partial[T any](v T, err error, failed []string) Outcome[T] {
	return Outcome[T]{Value: v, Err: err, FailedSteps: failed}
}

// OK reports whether the stage fully succeeded.
func (o Outcome[T]) OK() bool { return o.Err == nil }

// Scoped reports whether the failure is limited to FailedSteps.
func (o Outcome[T]) Scoped() bool { return o.Err != nil && len(o.FailedSteps) > 0 }

// Stage is one step of the pipeline. Implementations must be safe to retry.
// The returned Outcome is authoritative: the orchestrator records analysis
// stage views on the run context after the fan-out joins.
type Stage[T any] interface {
	Name() string
	Run(ctx context.Context, run *RunContext) Outcome[T]
}

//go:embed schemas/*.json
var schemaFS embed.FS

var (
	schemasOnce sync.Once
	schemas     map[string]*jsonschema.Schema
	schemasErr  error
)

// stageSchema returns the compiled reply schema of a model role.
func stageSchema(role string) (*jsonschema.Schema, error) {
	schemasOnce.Do(func() {
		schemas, schemasErr = compileSchemas(core.RoleParser, core.RoleRisk, core.RoleAutomation, core.RoleSummarizer)
	})
	if schemasErr != nil {
		return nil, schemasErr
	}
	s, ok := schemas[role]
	if !ok {
		return nil, fmt.Errorf("no schema for role %s", role)
	}
	return s, nil
}

func compileSchemas(roles ...string) (map[string]*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	for _, role := range roles {
		name := role + ".json"
		data, err := schemaFS.ReadFile("schemas/" + name)
		if err != nil {
			return nil, fmt.Errorf("reading schema %s: %w", name, err)
		}
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("parsing schema %s: %w", name, err)
		}
		if err := compiler.AddResource(name, doc); err != nil {
			return nil, fmt.Errorf("adding schema %s: %w", name, err)
		}
	}

	out := make(map[string]*jsonschema.Schema, len(roles))
	for _, role := range roles {
		s, err := compiler.Compile(role + ".json")
		if err != nil {
			return nil, fmt.Errorf("compiling schema %s: %w", role, err)
		}
		out[role] = s
	}
	return out, nil
}

// modelCaller is the model-call helper shared by the stages: it runs the
// model under the retry policy, extracts the JSON reply, validates it
// against the role schema and decodes it.
type modelCaller struct {
	model           core.Model
	retry           *service.RetryPolicy
	temperature     float64
	maxOutputTokens int
}

func (c *modelCaller) call(ctx context.Context, run *RunContext, req core.ModelRequest, out any) error {
	req.Temperature = c.temperature
	req.MaxOutputTokens = c.maxOutputTokens
	req.Schema = req.Role

	logger := run.Logger().WithStage(req.Role)

	var raw string
	err := c.retry.ExecuteWithNotify(ctx, func(ctx context.Context) error {
		reply, err := c.model.Generate(ctx, req)
		if err != nil {
			return err
		}
		raw = reply
		return nil
	}, func(attempt int, err error, delay time.Duration) {
		logger.Warn("retrying model call",
			"model", c.model.Name(),
			"attempt", attempt,
			"delay", delay,
			"error", err)
	})
	if err != nil {
		return asStageError(err, fmt.Sprintf("%s model call failed", req.Role))
	}

	return decodeReply(req.Role, raw, out)
}

// decodeReply validates raw against the role schema and decodes it into out.
func decodeReply(role, raw string, out any) error {
	payload := extractJSON(raw)
	if payload == "" {
		return core.ErrSchema(fmt.Sprintf("%s reply contains no JSON object", role))
	}

	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(payload))
	if err != nil {
		return core.ErrSchema(fmt.Sprintf("%s reply is not valid JSON", role)).WithCause(err)
	}

	schema, err := stageSchema(role)
	if err != nil {
		return core.ErrExecution(core.CodeStageFailed, "loading reply schema").WithCause(err)
	}
	if err := schema.Validate(doc); err != nil {
		return core.ErrSchema(fmt.Sprintf("%s reply does not match schema", role)).
			WithCause(err).
			WithDetail("violations", schemaViolations(err))
	}

	if err := json.Unmarshal([]byte(payload), out); err != nil {
		return core.ErrSchema(fmt.Sprintf("decoding %s reply", role)).WithCause(err)
	}
	return nil
}

var fencedJSON = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(\\{.*\\})\\s*\\n?```")

// extractJSON returns the JSON object carried by a model reply, which may
// be bare or wrapped in a markdown code fence.
func extractJSON(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "{") {
		return text
	}
	if m := fencedJSON.FindStringSubmatch(text); len(m) >= 2 {
		return strings.TrimSpace(m[1])
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		return text[start : end+1]
	}
	return ""
}

// schemaViolations flattens a validation error into "path: message" lines.
func schemaViolations(err error) []string {
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return []string{err.Error()}
	}
	var out []string
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			out = append(out, "/"+strings.Join(e.InstanceLocation, "/")+": "+e.Error())
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(verr)
	return out
}

// asStageError keeps domain errors and wraps anything else as a
// non-retryable stage execution error.
func asStageError(err error, msg string) error {
	var domErr *core.DomainError
	if errors.As(err, &domErr) {
		return err
	}
	return core.ErrExecution(core.CodeStageFailed, msg).WithCause(err)
}

// clamp01 limits a score to [0, 1].
func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// appendUnique appends items not already present, keeping order.
func appendUnique(dst []string, items ...string) []string {
	for _, item := range items {
		if item == "" {
			continue
		}
		found := false
		for _, existing := range dst {
			if existing == item {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, item)
		}
	}
	return dst
}
