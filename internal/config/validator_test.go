package config

import (
	"errors"
	"testing"

	"github.com/hugo-lorenzo-mato/workflow-advisor/internal/core"
)

func validConfig() *Config {
	return &Config{
		Log: LogConfig{Level: "info", Format: "auto"},
		Analysis: AnalysisConfig{
			MinWorkflowLength:    10,
			MaxWorkflowLength:    10000,
			AutomatableThreshold: 0.6,
			StageTimeout:         "30s",
			RunTimeout:           "2m",
			MaxRetries:           3,
			RetryBaseDelay:       "500ms",
		},
		Model:  ModelConfig{Provider: "heuristic", Temperature: 0.1},
		Trace:  TraceConfig{Dir: ".advisor/traces"},
		Server: ServerConfig{Host: "localhost", Port: 8080},
	}
}

func TestValidator_Valid(t *testing.T) {
	if err := ValidateConfig(validConfig()); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestValidator_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"log level", func(c *Config) { c.Log.Level = "verbose" }, "log.level"},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"min length", func(c *Config) { c.Analysis.MinWorkflowLength = 0 }, "analysis.min_workflow_length"},
		{"max below min", func(c *Config) { c.Analysis.MaxWorkflowLength = 5 }, "analysis.max_workflow_length"},
		{"threshold", func(c *Config) { c.Analysis.AutomatableThreshold = 1.5 }, "analysis.automatable_threshold"},
		{"retries", func(c *Config) { c.Analysis.MaxRetries = 0 }, "analysis.max_retries"},
		{"stage timeout", func(c *Config) { c.Analysis.StageTimeout = "soon" }, "analysis.stage_timeout"},
		{"run shorter than stage", func(c *Config) { c.Analysis.RunTimeout = "10s" }, "analysis.run_timeout"},
		{"domain", func(c *Config) { c.Analysis.Domain = "legal" }, "analysis.domain"},
		{"provider", func(c *Config) { c.Model.Provider = "claude" }, "model.provider"},
		{"missing key", func(c *Config) { c.Model.Provider = "openai"; c.Model.Name = "gpt-4o" }, "model.api_key"},
		{"temperature", func(c *Config) { c.Model.Temperature = 3 }, "model.temperature"},
		{"trace dir", func(c *Config) { c.Trace.Enabled = true; c.Trace.Dir = "" }, "trace.dir"},
		{"port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			v := NewValidator()
			err := v.Validate(cfg)
			if err == nil {
				t.Fatal("Validate() error = nil, want error")
			}
			if !core.IsCategory(err, core.ErrCatValidation) {
				t.Errorf("expected validation category, got %v", core.GetCategory(err))
			}

			var verrs ValidationErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("expected ValidationErrors cause, got %T", err)
			}
			found := false
			for _, e := range v.Errors() {
				if e.Field == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("no error for field %s: %v", tt.field, verrs)
			}
		})
	}
}

func TestValidator_GeminiProjectWithoutKey(t *testing.T) {
	cfg := validConfig()
	cfg.Model.Provider = "gemini"
	cfg.Model.Name = "gemini-2.0-flash-exp"
	cfg.Model.Project = "my-project"
	if err := ValidateConfig(cfg); err != nil {
		t.Errorf("Vertex project should not need an API key: %v", err)
	}
}
