package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/hugo-lorenzo-mato/workflow-advisor/internal/core"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation: %s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors collects multiple validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// HasErrors returns true if there are any validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator validates configuration.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new validator.
func NewValidator() *Validator {
	return &Validator{
		errors: make(ValidationErrors, 0),
	}
}

// Validate validates the entire configuration. The returned error is a
// core validation error wrapping ValidationErrors.
func (v *Validator) Validate(cfg *Config) error {
	v.validateLog(&cfg.Log)
	v.validateAnalysis(&cfg.Analysis)
	v.validateModel(&cfg.Model)
	v.validateTrace(&cfg.Trace)
	v.validateServer(&cfg.Server)

	if len(v.errors) > 0 {
		return core.ErrValidation(core.CodeInvalidConfig, "invalid configuration").WithCause(v.errors)
	}
	return nil
}

// Errors returns the collected validation errors.
func (v *Validator) Errors() ValidationErrors {
	return v.errors
}

func (v *Validator) addError(field string, value interface{}, msg string) {
	v.errors = append(v.errors, ValidationError{
		Field:   field,
		Value:   value,
		Message: msg,
	})
}

func (v *Validator) validateLog(cfg *LogConfig) {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[cfg.Level] {
		v.addError("log.level", cfg.Level, "must be one of: debug, info, warn, error")
	}

	validFormats := map[string]bool{
		"auto": true, "text": true, "json": true,
	}
	if !validFormats[cfg.Format] {
		v.addError("log.format", cfg.Format, "must be one of: auto, text, json")
	}
}

func (v *Validator) validateAnalysis(cfg *AnalysisConfig) {
	if cfg.MinWorkflowLength < 1 {
		v.addError("analysis.min_workflow_length", cfg.MinWorkflowLength, "must be at least 1")
	}
	if cfg.MaxWorkflowLength < cfg.MinWorkflowLength {
		v.addError("analysis.max_workflow_length", cfg.MaxWorkflowLength, "must not be below min_workflow_length")
	}
	if cfg.AutomatableThreshold < 0 || cfg.AutomatableThreshold > 1 {
		v.addError("analysis.automatable_threshold", cfg.AutomatableThreshold, "must be between 0 and 1")
	}
	if cfg.MaxRetries < 1 {
		v.addError("analysis.max_retries", cfg.MaxRetries, "must be at least 1")
	}

	stage := v.validateDuration("analysis.stage_timeout", cfg.StageTimeout)
	run := v.validateDuration("analysis.run_timeout", cfg.RunTimeout)
	v.validateDuration("analysis.retry_base_delay", cfg.RetryBaseDelay)
	if stage > 0 && run > 0 && run < stage {
		v.addError("analysis.run_timeout", cfg.RunTimeout, "must not be shorter than stage_timeout")
	}

	switch cfg.Domain {
	case "", "financial", "healthcare", "general":
	default:
		v.addError("analysis.domain", cfg.Domain, "must be one of: financial, healthcare, general (or empty to infer)")
	}
}

func (v *Validator) validateModel(cfg *ModelConfig) {
	switch cfg.Provider {
	case "heuristic":
	case "gemini", "openai":
		if cfg.Name == "" {
			v.addError("model.name", cfg.Name, "required for provider "+cfg.Provider)
		}
		if cfg.APIKey == "" && !(cfg.Provider == "gemini" && cfg.Project != "") {
			v.addError("model.api_key", "", "required for provider "+cfg.Provider)
		}
	default:
		v.addError("model.provider", cfg.Provider, "must be one of: heuristic, gemini, openai")
	}
	if cfg.Temperature < 0 || cfg.Temperature > 2 {
		v.addError("model.temperature", cfg.Temperature, "must be between 0 and 2")
	}
	if cfg.MaxOutputTokens < 0 {
		v.addError("model.max_output_tokens", cfg.MaxOutputTokens, "must not be negative")
	}
	if cfg.ResponseDelay != "" {
		v.validateDuration("model.response_delay", cfg.ResponseDelay)
	}
}

func (v *Validator) validateTrace(cfg *TraceConfig) {
	if cfg.Enabled && cfg.Dir == "" {
		v.addError("trace.dir", cfg.Dir, "required when trace.enabled is set")
	}
}

func (v *Validator) validateServer(cfg *ServerConfig) {
	if cfg.Port < 1 || cfg.Port > 65535 {
		v.addError("server.port", cfg.Port, "must be between 1 and 65535")
	}
}

func (v *Validator) validateDuration(field, value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		v.addError(field, value, "invalid duration format")
		return 0
	}
	if d <= 0 {
		v.addError(field, value, "must be positive")
		return 0
	}
	return d
}

// ValidateConfig is a convenience function to validate configuration.
func ValidateConfig(cfg *Config) error {
	return NewValidator().Validate(cfg)
}
