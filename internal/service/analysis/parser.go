package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hugo-lorenzo-mato/workflow-advisor/internal/core"
	"github.com/hugo-lorenzo-mato/workflow-advisor/internal/service"
)

// Parser turns the workflow text into the ordered parsed step set.
type Parser struct {
	caller *modelCaller
}

// NewParser creates the parser stage.
func NewParser(caller *modelCaller) *Parser {
	return &Parser{caller: caller}
}

// Name implements Stage.
func (p *Parser) Name() string { return StageParser }

// Run implements Stage. A parser failure is never step-scoped.
func (p *Parser) Run(ctx context.Context, run *RunContext) Outcome[[]core.ParsedStep] {
	in := core.ParseInput{WorkflowText: run.WorkflowText()}

	var reply core.ParserReply
	err := p.caller.call(ctx, run, core.ModelRequest{
		Role:         core.RoleParser,
		SystemPrompt: parserSystemPrompt,
		UserPrompt:   parserUserPrompt(in.WorkflowText),
		Input:        in,
	}, &reply)
	if err != nil {
		return Failure[[]core.ParsedStep](err)
	}

	steps, err := normalizeParsedSteps(reply.Steps)
	if err != nil {
		return Failure[[]core.ParsedStep](err)
	}
	if err := run.SetParsedSteps(steps); err != nil {
		return Failure[[]core.ParsedStep](err)
	}
	return Success(steps)
}

// normalizeParsedSteps lower-cases ids and checks that the steps form a
// dependency DAG with unique ids.
func normalizeParsedSteps(replies []core.ParsedStepReply) ([]core.ParsedStep, error) {
	if len(replies) == 0 {
		return nil, core.ErrSchema("parser returned no steps")
	}

	steps := make([]core.ParsedStep, 0, len(replies))
	dag := service.NewDAGBuilder()
	for _, r := range replies {
		step := core.ParsedStep{
			ID:           normalizeID(r.StepID),
			Description:  strings.TrimSpace(r.Description),
			Inputs:       nonNil(r.Inputs),
			Outputs:      nonNil(r.Outputs),
			Dependencies: make([]string, 0, len(r.Dependencies)),
		}
		for _, dep := range r.Dependencies {
			step.Dependencies = appendUnique(step.Dependencies, normalizeID(dep))
		}
		if err := dag.AddNode(step.ID); err != nil {
			return nil, invalidStructure(err)
		}
		steps = append(steps, step)
	}

	for _, step := range steps {
		for _, dep := range step.Dependencies {
			if err := dag.AddDependency(step.ID, dep); err != nil {
				return nil, invalidStructure(err)
			}
		}
	}
	if _, err := dag.Build(); err != nil {
		return nil, invalidStructure(err)
	}
	return steps, nil
}

func invalidStructure(err error) error {
	msg := "parsed steps are not a valid dependency graph"
	var de *core.DomainError
	if errors.As(err, &de) {
		e := core.ErrSchema(fmt.Sprintf("%s: %s", msg, de.Message)).WithCause(err)
		for k, v := range de.Details {
			e.WithDetail(k, v)
		}
		return e
	}
	return core.ErrSchema(msg).WithCause(err)
}

func normalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return append([]string{}, in...)
}
