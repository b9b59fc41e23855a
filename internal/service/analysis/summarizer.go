package analysis

import (
	"context"
	"strings"

	"github.com/hugo-lorenzo-mato/workflow-advisor/internal/core"
)

// Summarizer writes the narrative synthesis of a merged analysis.
type Summarizer struct {
	caller *modelCaller
}

// NewSummarizer creates the summarizer stage.
func NewSummarizer(caller *modelCaller) *Summarizer {
	return &Summarizer{caller: caller}
}

// Name implements Stage.
func (s *Summarizer) Name() string { return StageSummarizer }

// Run implements Stage. It reads the merged analysis from the run.
func (s *Summarizer) Run(ctx context.Context, run *RunContext) Outcome[*core.Narrative] {
	analysis := run.Analysis()
	if analysis == nil {
		return Failure[*core.Narrative](core.ErrState(core.CodeInvalidTransition, "summarizer needs a merged analysis"))
	}
	in := core.SummaryInput{Analysis: analysis}

	var reply core.SummaryReply
	err := s.caller.call(ctx, run, core.ModelRequest{
		Role:         core.RoleSummarizer,
		SystemPrompt: summarizerSystemPrompt,
		UserPrompt:   summarizerUserPrompt(analysis),
		Input:        in,
	}, &reply)
	if err != nil {
		return Failure[*core.Narrative](err)
	}

	body := reply.Summary
	narrative := &core.Narrative{
		OverallAssessment: strings.TrimSpace(body.OverallAssessment),
		Roadmap: core.Roadmap{
			KeyBlockers:         nonNil(body.KeyBlockers),
			QuickWins:           nonNil(body.QuickWins),
			Phases:              make([]core.RoadmapPhase, 0, len(body.Roadmap)),
			EstimatedTimeToFull: body.EstimatedTimeToFull,
		},
	}
	for _, phase := range body.Roadmap {
		steps := make([]string, 0, len(phase.Steps))
		for _, id := range phase.Steps {
			steps = append(steps, normalizeID(id))
		}
		narrative.Roadmap.Phases = append(narrative.Roadmap.Phases, core.RoadmapPhase{
			Phase:    phase.Phase,
			Steps:    steps,
			Duration: phase.Duration,
		})
	}

	if err := run.SetNarrative(narrative); err != nil {
		return Failure[*core.Narrative](err)
	}
	return Success(narrative)
}
