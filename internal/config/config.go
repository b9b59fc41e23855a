package config

import (
	"time"
)

// Config holds all application configuration.
type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Model    ModelConfig    `mapstructure:"model"`
	Trace    TraceConfig    `mapstructure:"trace"`
	State    StateConfig    `mapstructure:"state"`
	Server   ServerConfig   `mapstructure:"server"`
}

// LogConfig configures logging behavior.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// AnalysisConfig configures the analysis pipeline.
type AnalysisConfig struct {
	MinWorkflowLength    int     `mapstructure:"min_workflow_length"`
	MaxWorkflowLength    int     `mapstructure:"max_workflow_length"`
	AutomatableThreshold float64 `mapstructure:"automatable_threshold"`
	StageTimeout         string  `mapstructure:"stage_timeout"`
	RunTimeout           string  `mapstructure:"run_timeout"`
	MaxRetries           int     `mapstructure:"max_retries"`
	RetryBaseDelay       string  `mapstructure:"retry_base_delay"`
	SummarizerEnabled    bool    `mapstructure:"summarizer_enabled"`
	// Domain selects the compliance domain (financial, healthcare, general).
	// Empty means infer it from the workflow text.
	Domain string `mapstructure:"domain"`
}

// StageTimeoutDuration returns the parsed per-stage timeout.
func (c AnalysisConfig) StageTimeoutDuration() time.Duration {
	return parseDurationOr(c.StageTimeout, 30*time.Second)
}

// RunTimeoutDuration returns the parsed run deadline.
func (c AnalysisConfig) RunTimeoutDuration() time.Duration {
	return parseDurationOr(c.RunTimeout, 2*time.Minute)
}

// RetryBaseDelayDuration returns the parsed backoff base delay.
func (c AnalysisConfig) RetryBaseDelayDuration() time.Duration {
	return parseDurationOr(c.RetryBaseDelay, 500*time.Millisecond)
}

// ModelConfig configures the model collaborator.
type ModelConfig struct {
	Provider        string  `mapstructure:"provider"`
	Name            string  `mapstructure:"name"`
	Temperature     float64 `mapstructure:"temperature"`
	MaxOutputTokens int     `mapstructure:"max_output_tokens"`
	APIKey          string  `mapstructure:"api_key"`
	BaseURL         string  `mapstructure:"base_url"`
	Project         string  `mapstructure:"project"`
	Location        string  `mapstructure:"location"`
	// ResponseDelay adds latency to the offline heuristic model.
	ResponseDelay string `mapstructure:"response_delay"`
}

// ResponseDelayDuration returns the parsed heuristic response delay.
func (c ModelConfig) ResponseDelayDuration() time.Duration {
	return parseDurationOr(c.ResponseDelay, 0)
}

// TraceConfig configures span export.
type TraceConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Dir     string `mapstructure:"dir"`
}

// StateConfig configures analysis persistence.
type StateConfig struct {
	Path string `mapstructure:"path"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	CORS bool   `mapstructure:"cors"`
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
