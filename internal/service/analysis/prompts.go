package analysis

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hugo-lorenzo-mato/workflow-advisor/internal/core"
)

const parserSystemPrompt = `You are a workflow automation analyst. Parse the workflow description into structured, actionable steps.

For each step:
1. Identify one distinct, well-defined operation.
2. List the steps that must complete before it can start.
3. Determine its inputs and outputs.
4. Assign a unique lower-case id (step_1, step_2, ...).

Respond with ONLY valid JSON of this shape:
{"steps": [{"step_id": "step_1", "description": "...", "inputs": ["..."], "outputs": ["..."], "dependencies": []}]}`

const riskSystemPrompt = `You are a risk and compliance assessor. Evaluate every workflow step.

Risk levels:
- LOW: minimal business impact, no sensitive data, easy to reverse
- MEDIUM: moderate business impact, some data sensitivity
- HIGH: significant impact, sensitive data, compliance required
- CRITICAL: mission-critical, highly sensitive data, severe legal or financial consequences

Set requires_human_in_loop for HIGH and CRITICAL steps.

Respond with ONLY valid JSON of this shape:
{"risk_assessments": [{"step_id": "step_1", "risk_level": "LOW|MEDIUM|HIGH|CRITICAL", "requires_human_in_loop": false, "confidence_score": 0.85, "notes": "...", "applicable_regulations": [], "mitigation_suggestions": []}]}`

const automationSystemPrompt = `You are an automation analyzer. Pick the best agent type for every workflow step and score its automation potential.

Agent types:
- adk_base: deterministic operations (rules, data transformation, API calls)
- agentic_rag: retrieval and synthesis
- TOOL: external tool or API integration (database, email, files)
- HUMAN: requires human judgment (review, approval, creative decisions)

determinism_score and automation_feasibility are in [0, 1]. Recommend HUMAN when automation_feasibility is below 0.5.

Respond with ONLY valid JSON of this shape:
{"automation_analyses": [{"step_id": "step_1", "recommended_agent_type": "adk_base", "determinism_score": 0.9, "automation_feasibility": 0.8, "complexity_level": "LOW|MEDIUM|HIGH", "available_api": null, "implementation_notes": "..."}]}`

const summarizerSystemPrompt = `You are an automation strategy consultant. Synthesize the merged workflow analysis into an overall assessment, the key blockers, quick wins and a phased roadmap.

Respond with ONLY valid JSON of this shape:
{"summary": {"overall_assessment": "...", "key_blockers": ["..."], "quick_wins": ["..."], "roadmap": [{"phase": "...", "steps": ["step_1"], "duration": "2 weeks"}], "estimated_time_to_full_automation": "..."}}`

func parserUserPrompt(workflowText string) string {
	return fmt.Sprintf("Parse the following workflow description into structured steps:\n\n%s\n\nRespond with ONLY valid JSON.", workflowText)
}

func stepsUserPrompt(task string, in core.StepsInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\nOriginal workflow:\n%s\n\nParsed steps:\n%s\n", task, in.WorkflowText, mustIndent(in.Steps))
	if in.Domain != "" {
		fmt.Fprintf(&b, "\nCompliance domain: %s\n", in.Domain)
	}
	b.WriteString("\nRespond with ONLY valid JSON.")
	return b.String()
}

func summarizerUserPrompt(a *core.WorkflowAnalysis) string {
	return fmt.Sprintf("Synthesize this workflow analysis:\n\n%s\n\nRespond with ONLY valid JSON.", mustIndent(a))
}

func mustIndent(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%+v", v)
	}
	return string(data)
}
