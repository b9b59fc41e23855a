package analysis

import (
	"fmt"

	"github.com/hugo-lorenzo-mato/workflow-advisor/internal/core"
)

const (
	maxInsights        = 5
	maxRecommendations = 5

	// strongPotential is the automation potential above which automation
	// is the headline finding.
	strongPotential = 0.7

	// bottleneckShare is the HUMAN step share above which manual review
	// is a high priority bottleneck.
	bottleneckShare = 0.3
)

// ExtractInsights derives the heuristic findings of a merged analysis.
func ExtractInsights(steps []core.WorkflowStep, summary core.AutomationSummary, threshold float64) []core.Insight {
	var automatable, risky, human, degraded []string
	hasCritical := false
	for _, step := range steps {
		if step.AutomationFeasibility >= threshold {
			automatable = append(automatable, step.ID)
		}
		if step.RiskLevel.AtLeast(core.RiskHigh) {
			risky = append(risky, step.ID)
			if step.RiskLevel == core.RiskCritical {
				hasCritical = true
			}
		}
		if step.AgentType == core.AgentHuman {
			human = append(human, step.ID)
		}
		if step.RiskFallback || step.AutomationFallback {
			degraded = append(degraded, step.ID)
		}
	}

	insights := []core.Insight{}
	switch {
	case summary.AutomationPotential >= strongPotential:
		insights = append(insights, core.Insight{
			Title: "Strong Automation Potential",
			Description: fmt.Sprintf("%d of %d steps (%.0f%%) can be automated",
				summary.AutomatableCount, summary.TotalSteps, summary.AutomationPotential*100),
			Priority:      core.PriorityHigh,
			AffectedSteps: automatable,
		})
	case summary.AutomatableCount > 0:
		insights = append(insights, core.Insight{
			Title: "Moderate Automation Potential",
			Description: fmt.Sprintf("%d of %d steps (%.0f%%) can be automated",
				summary.AutomatableCount, summary.TotalSteps, summary.AutomationPotential*100),
			Priority:      core.PriorityMedium,
			AffectedSteps: automatable,
		})
	}

	if len(risky) > 0 {
		priority := core.PriorityHigh
		if hasCritical {
			priority = core.PriorityCritical
		}
		insights = append(insights, core.Insight{
			Title:         "Compliance Risks Detected",
			Description:   fmt.Sprintf("%d step(s) carry HIGH or CRITICAL risk and need compliance controls", len(risky)),
			Priority:      priority,
			AffectedSteps: risky,
		})
	}

	if len(human) > 0 {
		priority := core.PriorityMedium
		if float64(len(human))/float64(len(steps)) > bottleneckShare {
			priority = core.PriorityHigh
		}
		insights = append(insights, core.Insight{
			Title:         "Manual Review Bottleneck",
			Description:   fmt.Sprintf("%d step(s) require human judgment or approval", len(human)),
			Priority:      priority,
			AffectedSteps: human,
		})
	}

	if len(degraded) > 0 {
		insights = append(insights, core.Insight{
			Title:         "Analysis Degraded",
			Description:   fmt.Sprintf("%d step(s) received default views because an analysis stage failed", len(degraded)),
			Priority:      core.PriorityMedium,
			AffectedSteps: degraded,
		})
	}

	if len(insights) > maxInsights {
		insights = insights[:maxInsights]
	}
	return insights
}

// Recommendations derives the action items of a merged analysis.
func Recommendations(summary core.AutomationSummary) []string {
	recs := []string{}
	switch {
	case summary.AutomationPotential >= strongPotential:
		recs = append(recs, fmt.Sprintf("Prioritize automation of %d automatable steps", summary.AutomatableCount))
	case summary.AutomatableCount > 0:
		recs = append(recs, fmt.Sprintf("Review the %d automatable steps for ROI", summary.AutomatableCount))
	}
	if summary.CriticalRiskSteps > 0 {
		recs = append(recs, fmt.Sprintf("Implement compliance controls for %d critical-risk step(s)", summary.CriticalRiskSteps))
	}
	if summary.HighRiskSteps > 0 {
		recs = append(recs, fmt.Sprintf("Add human checkpoints for %d high-risk step(s)", summary.HighRiskSteps))
	}
	if summary.HumanRequiredCount > 0 {
		recs = append(recs, fmt.Sprintf("Allocate resources for %d manual review/approval step(s)", summary.HumanRequiredCount))
	}
	if len(recs) > maxRecommendations {
		recs = recs[:maxRecommendations]
	}
	return recs
}
