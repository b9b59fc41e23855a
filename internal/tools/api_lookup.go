package tools

import (
	"fmt"
	"strings"
)

// Lookup statuses.
const (
	StatusFound          = "found"
	StatusNoAPIAvailable = "no_api_available"
	StatusNoMatch        = "no_match"
	StatusError          = "error"
)

// APILookupInput is the input of lookup_api_docs.
type APILookupInput struct {
	StepDescription string `json:"step_description"`
}

// APILookupResult is the output of lookup_api_docs.
type APILookupResult struct {
	Exists       bool    `json:"api_exists"`
	APIName      string  `json:"api_name,omitempty"`
	Determinism  float64 `json:"determinism"`
	Notes        string  `json:"notes"`
	LookupStatus string  `json:"lookup_status"`
}

// Status returns the lookup status.
func (r APILookupResult) Status() string { return r.LookupStatus }

type apiEntry struct {
	keyword     string
	apiName     string
	determinism float64
	description string
}

type noAPIEntry struct {
	keyword     string
	determinism float64
}

// Checked before apiCatalog; order matters for descriptions holding
// several keywords.
var noAPIKeywords = []noAPIEntry{
	{"human", 0.1},
	{"manual", 0.1},
	{"review", 0.2},
	{"approve", 0.3},
	{"validate", 0.4},
	{"check", 0.5},
}

var apiCatalog = []apiEntry{
	{"email", "Gmail API", 1.0, "Send and manage emails"},
	{"send email", "Gmail API", 1.0, "Send and manage emails"},
	{"draft email", "Gmail API", 1.0, "Send and manage emails"},
	{"database", "SQL API", 1.0, "Query and manage relational databases"},
	{"read file", "File System API", 1.0, "Read and write files"},
	{"write file", "File System API", 1.0, "Read and write files"},
	{"fetch", "HTTP API", 0.9, "Make HTTP requests"},
	{"http", "HTTP API", 0.9, "Make HTTP requests"},
	{"request", "HTTP API", 0.9, "Make HTTP requests"},
}

// LookupAPIDocs reports whether a known API can automate a step.
// Matching is case-insensitive substring matching against the ordered
// keyword tables.
func LookupAPIDocs(stepDescription string) APILookupResult {
	desc := strings.ToLower(strings.TrimSpace(stepDescription))
	if desc == "" {
		return APILookupResult{
			Determinism:  0.0,
			Notes:        "Invalid step description provided",
			LookupStatus: StatusError,
		}
	}

	for _, e := range noAPIKeywords {
		if strings.Contains(desc, e.keyword) {
			return APILookupResult{
				Determinism:  e.determinism,
				Notes:        fmt.Sprintf("Step requires %s which typically cannot be fully automated", e.keyword),
				LookupStatus: StatusNoAPIAvailable,
			}
		}
	}

	for _, e := range apiCatalog {
		if strings.Contains(desc, e.keyword) {
			return APILookupResult{
				Exists:       true,
				APIName:      e.apiName,
				Determinism:  e.determinism,
				Notes:        e.description,
				LookupStatus: StatusFound,
			}
		}
	}

	return APILookupResult{
		Determinism:  0.5,
		Notes:        "No specific API found. May require custom integration or manual review.",
		LookupStatus: StatusNoMatch,
	}
}
