package tools

import (
	"reflect"
	"testing"
)

func TestGetComplianceRules(t *testing.T) {
	tests := []struct {
		name   string
		risk   string
		domain string
		rules  []string
		audit  bool
		hitl   bool
		status string
	}{
		{"critical financial", "CRITICAL", "financial", []string{"SOX", "PCI-DSS"}, true, true, StatusFound},
		{"critical healthcare", "critical", "Healthcare", []string{"HIPAA", "HITECH"}, true, true, StatusFound},
		{"critical other", "CRITICAL", "retail", []string{"General Compliance Review Required"}, true, true, StatusFound},
		{"high financial", "HIGH", "financial", []string{"PCI-DSS"}, true, false, StatusFound},
		{"high healthcare", " high ", "healthcare", []string{"HIPAA"}, false, true, StatusFound},
		{"medium general", "MEDIUM", "general", []string{}, false, false, StatusFound},
		{"low general", "LOW", "GENERAL", []string{}, false, false, StatusFound},
		{"high general", "HIGH", "general", []string{}, false, false, StatusNoMatch},
		{"low financial", "LOW", "financial", []string{}, false, false, StatusNoMatch},
		{"empty risk", "", "financial", []string{}, false, false, StatusError},
		{"unknown risk", "SEVERE", "financial", []string{}, false, false, StatusError},
		{"empty domain", "HIGH", "", []string{}, false, false, StatusError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GetComplianceRules(tt.risk, tt.domain)
			if !reflect.DeepEqual(got.ApplicableRules, tt.rules) {
				t.Errorf("ApplicableRules = %v, want %v", got.ApplicableRules, tt.rules)
			}
			if got.RequiresAudit != tt.audit {
				t.Errorf("RequiresAudit = %v, want %v", got.RequiresAudit, tt.audit)
			}
			if got.HITLRequired != tt.hitl {
				t.Errorf("HITLRequired = %v, want %v", got.HITLRequired, tt.hitl)
			}
			if got.LookupStatus != tt.status {
				t.Errorf("LookupStatus = %q, want %q", got.LookupStatus, tt.status)
			}
		})
	}
}

func TestGetComplianceRules_ResultIsCopy(t *testing.T) {
	first := GetComplianceRules("HIGH", "financial")
	first.ApplicableRules[0] = "mutated"
	if got := GetComplianceRules("HIGH", "financial"); got.ApplicableRules[0] != "PCI-DSS" {
		t.Errorf("table was mutated through a result: %v", got.ApplicableRules)
	}
}

func TestInferDomain(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"Process the invoice and record the payment", DomainFinancial},
		{"Triage patient intake forms", DomainHealthcare},
		{"Receive support ticket via email", DomainGeneral},
		{"", DomainGeneral},
	}
	for _, tt := range tests {
		if got := InferDomain(tt.text); got != tt.want {
			t.Errorf("InferDomain(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}
