package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/glamour"
	"gopkg.in/yaml.v3"

	"github.com/hugo-lorenzo-mato/workflow-advisor/internal/core"
	"github.com/hugo-lorenzo-mato/workflow-advisor/internal/service/analysis"
)

// Report formats.
const (
	formatJSON     = "json"
	formatYAML     = "yaml"
	formatMarkdown = "markdown"
	formatText     = "text"
)

func validateFormat(format string) error {
	switch format {
	case formatJSON, formatYAML, formatMarkdown, formatText:
		return nil
	default:
		return fmt.Errorf("unknown format %q (supported: json, yaml, markdown, text)", format)
	}
}

// reportError is the serialized form of a run error entry.
type reportError struct {
	Stage   string   `json:"stage" yaml:"stage"`
	Kind    string   `json:"kind" yaml:"kind"`
	Message string   `json:"message" yaml:"message"`
	StepIDs []string `json:"step_ids,omitempty" yaml:"step_ids,omitempty"`
}

// report is the document written by analyze and workflows get.
type report struct {
	Analysis *core.WorkflowAnalysis `json:"analysis" yaml:"analysis"`
	Errors   []reportError          `json:"errors" yaml:"errors"`
}

func newReport(a *core.WorkflowAnalysis, entries []analysis.ErrorEntry) report {
	r := report{Analysis: a, Errors: []reportError{}}
	for _, e := range entries {
		r.Errors = append(r.Errors, reportError{
			Stage:   e.Stage,
			Kind:    string(e.Kind),
			Message: e.Message,
			StepIDs: e.StepIDs,
		})
	}
	return r
}

// renderReport encodes r in format. Markdown is styled for the terminal
// only when styled is set.
func renderReport(r report, format string, styled bool) ([]byte, error) {
	switch format {
	case formatJSON:
		data, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	case formatYAML:
		return yaml.Marshal(r)
	case formatMarkdown:
		md := markdownReport(r)
		if !styled {
			return []byte(md), nil
		}
		renderer, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(100),
		)
		if err != nil {
			return []byte(md), nil
		}
		out, err := renderer.Render(md)
		if err != nil {
			return []byte(md), nil
		}
		return []byte(out), nil
	case formatText:
		return textReport(r), nil
	default:
		return nil, validateFormat(format)
	}
}

func markdownReport(r report) string {
	a := r.Analysis
	var b strings.Builder
	fmt.Fprintf(&b, "# Workflow analysis `%s`\n\n", a.WorkflowID)
	fmt.Fprintf(&b, "- **State:** %s\n", a.State)
	fmt.Fprintf(&b, "- **Trace:** `%s`\n", a.TraceID)
	fmt.Fprintf(&b, "- **Automation potential:** %.0f%% (%d of %d steps)\n",
		a.Summary.AutomationPotential*100, a.Summary.AutomatableCount, a.Summary.TotalSteps)
	fmt.Fprintf(&b, "- **High/critical risk steps:** %d/%d\n\n",
		a.Summary.HighRiskSteps, a.Summary.CriticalRiskSteps)

	b.WriteString("## Steps\n\n")
	b.WriteString("| Step | Description | Risk | Review | Agent | Feasibility | API |\n")
	b.WriteString("|---|---|---|---|---|---|---|\n")
	for _, s := range a.Steps {
		review := ""
		if s.RequiresHumanReview {
			review = "yes"
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %.2f | %s |\n",
			s.ID, escapeCell(s.Description), s.RiskLevel, review, s.AgentType, s.AutomationFeasibility, s.AvailableAPI)
	}

	if len(a.Insights) > 0 {
		b.WriteString("\n## Insights\n\n")
		for _, in := range a.Insights {
			fmt.Fprintf(&b, "- **[%s] %s**: %s\n", in.Priority, in.Title, in.Description)
		}
	}
	if len(a.Recommendations) > 0 {
		b.WriteString("\n## Recommendations\n\n")
		for _, rec := range a.Recommendations {
			fmt.Fprintf(&b, "- %s\n", rec)
		}
	}
	if n := a.Narrative; n != nil {
		b.WriteString("\n## Assessment\n\n")
		b.WriteString(n.OverallAssessment + "\n")
		for _, p := range n.Roadmap.Phases {
			fmt.Fprintf(&b, "\n- **%s** (%s): %s", p.Phase, p.Duration, strings.Join(p.Steps, ", "))
		}
		if len(n.Roadmap.Phases) > 0 {
			b.WriteString("\n")
		}
	}
	if len(r.Errors) > 0 {
		b.WriteString("\n## Errors\n\n")
		for _, e := range r.Errors {
			fmt.Fprintf(&b, "- `%s` %s: %s\n", e.Stage, e.Kind, e.Message)
		}
	}
	return b.String()
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}

func textReport(r report) []byte {
	a := r.Analysis
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Workflow:   %s\n", a.WorkflowID)
	fmt.Fprintf(&buf, "State:      %s\n", a.State)
	fmt.Fprintf(&buf, "Trace:      %s\n", a.TraceID)
	fmt.Fprintf(&buf, "Potential:  %.0f%% (%d/%d automatable)\n\n",
		a.Summary.AutomationPotential*100, a.Summary.AutomatableCount, a.Summary.TotalSteps)

	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STEP\tRISK\tAGENT\tFEASIBILITY\tDESCRIPTION")
	for _, s := range a.Steps {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%s\n", s.ID, s.RiskLevel, s.AgentType, s.AutomationFeasibility, s.Description)
	}
	_ = w.Flush()

	if len(a.Recommendations) > 0 {
		buf.WriteString("\nRecommendations:\n")
		for _, rec := range a.Recommendations {
			fmt.Fprintf(&buf, "  - %s\n", rec)
		}
	}
	if len(r.Errors) > 0 {
		buf.WriteString("\nErrors:\n")
		for _, e := range r.Errors {
			fmt.Fprintf(&buf, "  - [%s] %s: %s\n", e.Stage, e.Kind, e.Message)
		}
	}
	return buf.Bytes()
}
