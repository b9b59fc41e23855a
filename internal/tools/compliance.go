package tools

import (
	"strings"

	"github.com/hugo-lorenzo-mato/workflow-advisor/internal/core"
)

// Compliance domains.
const (
	DomainFinancial  = "financial"
	DomainHealthcare = "healthcare"
	DomainGeneral    = "general"
)

// ComplianceInput is the input of get_compliance_rules.
type ComplianceInput struct {
	RiskLevel string `json:"risk_level"`
	Domain    string `json:"domain"`
}

// ComplianceResult is the output of get_compliance_rules.
type ComplianceResult struct {
	ApplicableRules []string `json:"applicable_rules"`
	RequiresAudit   bool     `json:"requires_audit"`
	HITLRequired    bool     `json:"hitl_required"`
	LookupStatus    string   `json:"lookup_status"`
	Notes           string   `json:"notes,omitempty"`
}

// Status returns the lookup status.
func (r ComplianceResult) Status() string { return r.LookupStatus }

type complianceKey struct {
	risk   core.RiskLevel
	domain string
}

type complianceEntry struct {
	rules []string
	audit bool
	hitl  bool
}

var complianceTable = map[complianceKey]complianceEntry{
	{core.RiskHigh, DomainFinancial}:  {rules: []string{"PCI-DSS"}, audit: true},
	{core.RiskHigh, DomainHealthcare}: {rules: []string{"HIPAA"}, hitl: true},
	{core.RiskMedium, DomainGeneral}:  {rules: []string{}},
	{core.RiskLow, DomainGeneral}:     {rules: []string{}},
}

// GetComplianceRules returns the rules that apply to riskLevel in domain.
func GetComplianceRules(riskLevel, domain string) ComplianceResult {
	risk, err := core.ParseRiskLevel(riskLevel)
	if err != nil {
		return ComplianceResult{
			ApplicableRules: []string{},
			LookupStatus:    StatusError,
			Notes:           "Invalid risk level provided",
		}
	}
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" {
		return ComplianceResult{
			ApplicableRules: []string{},
			LookupStatus:    StatusError,
			Notes:           "Invalid domain provided",
		}
	}

	if risk == core.RiskCritical {
		return ComplianceResult{
			ApplicableRules: criticalRules(domain),
			RequiresAudit:   true,
			HITLRequired:    true,
			LookupStatus:    StatusFound,
			Notes:           "CRITICAL risk requires audit and human review",
		}
	}

	if e, ok := complianceTable[complianceKey{risk, domain}]; ok {
		return ComplianceResult{
			ApplicableRules: append([]string{}, e.rules...),
			RequiresAudit:   e.audit,
			HITLRequired:    e.hitl,
			LookupStatus:    StatusFound,
		}
	}

	return ComplianceResult{
		ApplicableRules: []string{},
		LookupStatus:    StatusNoMatch,
		Notes:           "No specific rules found for this risk/domain combination",
	}
}

func criticalRules(domain string) []string {
	switch domain {
	case DomainFinancial:
		return []string{"SOX", "PCI-DSS"}
	case DomainHealthcare:
		return []string{"HIPAA", "HITECH"}
	default:
		return []string{"General Compliance Review Required"}
	}
}

var domainKeywords = []struct {
	domain   string
	keywords []string
}{
	{DomainFinancial, []string{"payment", "invoice", "bank", "financial", "finance", "credit card", "transaction", "accounting", "payroll", "loan"}},
	{DomainHealthcare, []string{"patient", "medical", "health", "clinical", "diagnosis", "prescription", "hospital"}},
}

// InferDomain picks the compliance domain from keywords in text. Text with
// no financial or healthcare keyword is general.
func InferDomain(text string) string {
	lower := strings.ToLower(text)
	for _, d := range domainKeywords {
		for _, kw := range d.keywords {
			if strings.Contains(lower, kw) {
				return d.domain
			}
		}
	}
	return DomainGeneral
}
