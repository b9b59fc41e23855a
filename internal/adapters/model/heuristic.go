package model

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/hugo-lorenzo-mato/workflow-advisor/internal/core"
	"github.com/hugo-lorenzo-mato/workflow-advisor/internal/tools"
)

// Heuristic is a deterministic offline model. It answers from the
// structured request payload using keyword rules, so the pipeline runs
// without credentials and tests get reproducible replies.
type Heuristic struct {
	delay time.Duration
}

// HeuristicOption configures a Heuristic model.
type HeuristicOption func(*Heuristic)

// WithResponseDelay makes every call take at least d.
func WithResponseDelay(d time.Duration) HeuristicOption {
	return func(h *Heuristic) {
		h.delay = d
	}
}

// NewHeuristic creates the offline model.
func NewHeuristic(opts ...HeuristicOption) *Heuristic {
	h := &Heuristic{}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Name implements core.Model.
func (h *Heuristic) Name() string { return ProviderHeuristic }

// Generate implements core.Model.
func (h *Heuristic) Generate(ctx context.Context, req core.ModelRequest) (string, error) {
	if h.delay > 0 {
		timer := time.NewTimer(h.delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", core.FromContext(ctx.Err(), "heuristic "+req.Role+" call")
		case <-timer.C:
		}
	}

	var reply any
	switch in := req.Input.(type) {
	case core.ParseInput:
		reply = core.ParserReply{Steps: ParseSteps(in.WorkflowText)}
	case core.StepsInput:
		switch req.Role {
		case core.RoleRisk:
			reply = assessRisk(in)
		case core.RoleAutomation:
			reply = analyzeAutomation(in)
		default:
			return "", unsupported(req)
		}
	case core.SummaryInput:
		if in.Analysis == nil {
			return "", unsupported(req)
		}
		reply = summarize(in.Analysis)
	default:
		return "", unsupported(req)
	}

	data, err := json.Marshal(reply)
	if err != nil {
		return "", core.ErrExecution(core.CodeModelFailed, "encoding heuristic reply").WithCause(err)
	}
	return string(data), nil
}

func unsupported(req core.ModelRequest) error {
	return core.ErrExecution(core.CodeModelFailed,
		fmt.Sprintf("heuristic model cannot answer role %q with input %T", req.Role, req.Input))
}

var (
	stepPrefix    = regexp.MustCompile(`(?i)^(?:step\s*\d+\s*[:.)\-]|\d+\s*[.):\-]|[-*•])\s*`)
	sentenceSplit = regexp.MustCompile(`(?i)(?:[.;]\s+|\s+then\s+|,\s*then\s+)`)
)

// ParseSteps splits a workflow description into a linear chain of steps.
// Each non-empty line is a step; a single-line description is split into
// sentences instead.
func ParseSteps(text string) []core.ParsedStepReply {
	var parts []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts = append(parts, line)
	}
	if len(parts) == 1 {
		parts = parts[:0]
		for _, s := range sentenceSplit.Split(text, -1) {
			if s = strings.TrimSpace(s); s != "" {
				parts = append(parts, s)
			}
		}
	}

	steps := make([]core.ParsedStepReply, 0, len(parts))
	for _, part := range parts {
		desc := strings.TrimSpace(stepPrefix.ReplaceAllString(part, ""))
		desc = strings.TrimRight(desc, ".")
		if desc == "" {
			continue
		}
		id := fmt.Sprintf("step_%d", len(steps)+1)
		step := core.ParsedStepReply{
			StepID:       id,
			Description:  desc,
			Inputs:       []string{"workflow input"},
			Outputs:      []string{strings.ToLower(desc) + " result"},
			Dependencies: []string{},
		}
		if n := len(steps); n > 0 {
			prev := steps[n-1]
			step.Inputs = append([]string{}, prev.Outputs...)
			step.Dependencies = []string{prev.StepID}
		}
		steps = append(steps, step)
	}
	return steps
}

var (
	criticalKeywords = []string{"payment", "transfer", "wire", "patient", "medical record", "diagnos", "prescri", "delete account"}
	highKeywords     = []string{"personal data", "customer data", "pii", "refund", "contract", "invoice", "credit", "salary", "legal"}
	mediumKeywords   = []string{"send", "email", "update", "notify", "publish", "customer", "write"}
	humanKeywords    = []string{"human", "manual", "review", "approve"}
	ragKeywords      = []string{"knowledge", "research", "summar", "search", "answer", "draft", "analy"}
)

func containsAny(s string, keywords []string) (string, bool) {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return k, true
		}
	}
	return "", false
}

func assessRisk(in core.StepsInput) core.RiskReply {
	reply := core.RiskReply{Assessments: make([]core.RiskAssessmentReply, 0, len(in.Steps))}
	for _, step := range in.Steps {
		desc := strings.ToLower(step.Description)
		a := core.RiskAssessmentReply{
			StepID:                step.ID,
			RiskLevel:             string(core.RiskLow),
			ConfidenceScore:       0.8,
			Notes:                 "Low impact, easily reversible operation",
			ApplicableRegulations: []string{},
			MitigationSuggestions: []string{},
		}
		if k, ok := containsAny(desc, criticalKeywords); ok {
			a.RiskLevel = string(core.RiskCritical)
			a.RequiresHumanInLoop = true
			a.ConfidenceScore = 0.9
			a.Notes = fmt.Sprintf("Handles %s; errors carry severe legal or financial consequences", k)
			a.MitigationSuggestions = []string{"Require dual approval", "Keep an immutable audit trail"}
		} else if k, ok := containsAny(desc, highKeywords); ok {
			a.RiskLevel = string(core.RiskHigh)
			a.RequiresHumanInLoop = true
			a.ConfidenceScore = 0.85
			a.Notes = fmt.Sprintf("Touches %s; compliance controls required", k)
			a.MitigationSuggestions = []string{"Add a human checkpoint before committing"}
		} else if k, ok := containsAny(desc, mediumKeywords); ok {
			a.RiskLevel = string(core.RiskMedium)
			a.Notes = fmt.Sprintf("Produces externally visible effects (%s)", k)
			a.MitigationSuggestions = []string{"Log every action for later review"}
		}
		if _, ok := containsAny(desc, humanKeywords); ok {
			a.RequiresHumanInLoop = true
		}
		reply.Assessments = append(reply.Assessments, a)
	}
	return reply
}

func analyzeAutomation(in core.StepsInput) core.AutomationReply {
	reply := core.AutomationReply{Analyses: make([]core.AutomationAnalysisReply, 0, len(in.Steps))}
	for _, step := range in.Steps {
		desc := strings.ToLower(step.Description)
		lookup := tools.LookupAPIDocs(step.Description)
		a := core.AutomationAnalysisReply{
			StepID:                step.ID,
			SuggestedIntegrations: []string{},
		}

		_, human := containsAny(desc, humanKeywords)
		_, rag := containsAny(desc, ragKeywords)
		switch {
		case human:
			a.RecommendedAgentType = string(core.AgentHuman)
			a.DeterminismScore = lookup.Determinism
			a.AutomationFeasibility = lookup.Determinism
			a.ComplexityLevel = string(core.ComplexityHigh)
			a.ImplementationNotes = "Requires human judgment; route to a reviewer queue"
		case lookup.LookupStatus == tools.StatusNoAPIAvailable:
			a.RecommendedAgentType = string(core.AgentADKBase)
			a.DeterminismScore = lookup.Determinism
			a.AutomationFeasibility = lookup.Determinism
			a.ComplexityLevel = string(core.ComplexityMedium)
			a.ImplementationNotes = "Rule-based check; encode the acceptance criteria before automating"
		case lookup.Exists:
			api := lookup.APIName
			a.RecommendedAgentType = string(core.AgentTool)
			a.DeterminismScore = lookup.Determinism
			a.AutomationFeasibility = 0.9
			a.ComplexityLevel = string(core.ComplexityLow)
			a.AvailableAPI = &api
			a.ImplementationNotes = "Direct integration through " + api
		case rag:
			a.RecommendedAgentType = string(core.AgentAgenticRAG)
			a.DeterminismScore = 0.6
			a.AutomationFeasibility = 0.7
			a.ComplexityLevel = string(core.ComplexityMedium)
			a.ImplementationNotes = "Retrieval-augmented agent over the relevant sources"
		default:
			a.RecommendedAgentType = string(core.AgentADKBase)
			a.DeterminismScore = 0.8
			a.AutomationFeasibility = 0.75
			a.ComplexityLevel = string(core.ComplexityLow)
			a.ImplementationNotes = "Deterministic transformation"
		}
		reply.Analyses = append(reply.Analyses, a)
	}
	return reply
}

func summarize(a *core.WorkflowAnalysis) core.SummaryReply {
	var blockers, quickWins, early, core2, manual []string
	for _, step := range a.Steps {
		switch {
		case step.AgentType == core.AgentHuman || step.RiskLevel.AtLeast(core.RiskHigh):
			manual = append(manual, step.ID)
			blockers = append(blockers, fmt.Sprintf("%s: %s (%s risk, %s)", step.ID, step.Description, step.RiskLevel, step.AgentType))
		case step.AvailableAPI != "" && step.RiskLevel == core.RiskLow:
			early = append(early, step.ID)
			quickWins = append(quickWins, fmt.Sprintf("%s: integrate %s", step.ID, step.AvailableAPI))
		default:
			core2 = append(core2, step.ID)
		}
	}

	body := core.SummaryBody{
		OverallAssessment: fmt.Sprintf("%d of %d steps (%.0f%%) are automatable; %d need human involvement.",
			a.Summary.AutomatableCount, a.Summary.TotalSteps, a.Summary.AutomationPotential*100, len(manual)),
		KeyBlockers: blockers,
		QuickWins:   quickWins,
	}
	phase := func(name string, steps []string, duration string) {
		if len(steps) > 0 {
			body.Roadmap = append(body.Roadmap, core.RoadmapPhase{Phase: name, Steps: steps, Duration: duration})
		}
	}
	phase("Quick wins", early, "2 weeks")
	phase("Core automation", core2, "4-6 weeks")
	phase("Human-in-the-loop integration", manual, "6-8 weeks")

	switch {
	case len(manual) == 0:
		body.EstimatedTimeToFull = "1-2 months"
	case len(manual)*2 < len(a.Steps):
		body.EstimatedTimeToFull = "3-4 months"
	default:
		body.EstimatedTimeToFull = "6+ months"
	}
	return core.SummaryReply{Summary: body}
}
