package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoader_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := NewLoader().Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "info")
	}
	if cfg.Analysis.MinWorkflowLength != 10 {
		t.Errorf("Analysis.MinWorkflowLength = %d, want 10", cfg.Analysis.MinWorkflowLength)
	}
	if cfg.Analysis.MaxWorkflowLength != 10000 {
		t.Errorf("Analysis.MaxWorkflowLength = %d, want 10000", cfg.Analysis.MaxWorkflowLength)
	}
	if cfg.Analysis.AutomatableThreshold != 0.6 {
		t.Errorf("Analysis.AutomatableThreshold = %v, want 0.6", cfg.Analysis.AutomatableThreshold)
	}
	if cfg.Analysis.StageTimeoutDuration() != 30*time.Second {
		t.Errorf("StageTimeoutDuration() = %v, want 30s", cfg.Analysis.StageTimeoutDuration())
	}
	if !cfg.Analysis.SummarizerEnabled {
		t.Error("Analysis.SummarizerEnabled = false, want true")
	}
	if cfg.Model.Provider != "heuristic" {
		t.Errorf("Model.Provider = %q, want heuristic", cfg.Model.Provider)
	}
	if cfg.Model.Name != "gemini-2.0-flash-exp" {
		t.Errorf("Model.Name = %q", cfg.Model.Name)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}

	if err := ValidateConfig(cfg); err != nil {
		t.Errorf("defaults should validate, got %v", err)
	}
}

func TestLoader_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "advisor.yaml")
	content := `
analysis:
  automatable_threshold: 0.7
  stage_timeout: 5s
  domain: financial
model:
  provider: heuristic
  response_delay: 20ms
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	loader := NewLoader().WithConfigFile(path)
	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Analysis.AutomatableThreshold != 0.7 {
		t.Errorf("AutomatableThreshold = %v, want 0.7", cfg.Analysis.AutomatableThreshold)
	}
	if cfg.Analysis.StageTimeoutDuration() != 5*time.Second {
		t.Errorf("StageTimeoutDuration() = %v, want 5s", cfg.Analysis.StageTimeoutDuration())
	}
	if cfg.Analysis.Domain != "financial" {
		t.Errorf("Domain = %q, want financial", cfg.Analysis.Domain)
	}
	if cfg.Model.ResponseDelayDuration() != 20*time.Millisecond {
		t.Errorf("ResponseDelayDuration() = %v", cfg.Model.ResponseDelayDuration())
	}
	if loader.ConfigFileUsed() != path {
		t.Errorf("ConfigFileUsed() = %q, want %q", loader.ConfigFileUsed(), path)
	}
}

func TestLoader_EnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ADVISOR_ANALYSIS_MAX_RETRIES", "5")
	t.Setenv("ADVISOR_LOG_LEVEL", "debug")

	cfg, err := NewLoader().Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Analysis.MaxRetries != 5 {
		t.Errorf("MaxRetries = %d, want 5", cfg.Analysis.MaxRetries)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}
}

func TestLoader_ProviderKeyFromEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ADVISOR_MODEL_PROVIDER", "gemini")
	t.Setenv("GEMINI_API_KEY", "test-key")

	cfg, err := NewLoader().Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Model.APIKey != "test-key" {
		t.Errorf("Model.APIKey = %q, want test-key", cfg.Model.APIKey)
	}
}

func TestLoader_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("analysis: [unterminated"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewLoader().WithConfigFile(path).Load(); err == nil {
		t.Error("expected error for malformed config file")
	}
}
