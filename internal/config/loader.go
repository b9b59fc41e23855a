package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Loader handles configuration loading from multiple sources.
type Loader struct {
	v          *viper.Viper
	configFile string
	envPrefix  string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{
		v:         viper.New(),
		envPrefix: "ADVISOR",
	}
}

// NewLoaderWithViper creates a loader using an existing viper instance.
// This allows integration with CLI flag bindings.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	return &Loader{
		v:         v,
		envPrefix: "ADVISOR",
	}
}

// WithConfigFile sets an explicit config file path.
func (l *Loader) WithConfigFile(path string) *Loader {
	l.configFile = path
	return l
}

// WithEnvPrefix sets the environment variable prefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// Viper returns the underlying viper instance for flag binding.
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

// Load loads configuration from all sources.
// Precedence (highest to lowest):
// 1. CLI flags (set via viper.BindPFlag)
// 2. Environment variables (ADVISOR_*)
// 3. Project config (.advisor.yaml in current directory)
// 4. User config (~/.config/advisor/config.yaml)
// 5. Defaults
func (l *Loader) Load() (*Config, error) {
	l.setDefaults()

	l.v.SetEnvPrefix(l.envPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()

	if l.configFile != "" {
		l.v.SetConfigFile(l.configFile)
	} else {
		l.v.SetConfigName(".advisor")
		l.v.SetConfigType("yaml")
		l.v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			l.v.AddConfigPath(filepath.Join(home, ".config", "advisor"))
		}
	}

	if err := l.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	return l.unmarshal()
}

func (l *Loader) unmarshal() (*Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	// Provider keys are commonly exported without the prefix.
	if cfg.Model.APIKey == "" {
		cfg.Model.APIKey = providerKeyFromEnv(cfg.Model.Provider)
	}
	return &cfg, nil
}

// Watch re-reads the config file on change and hands the new configuration
// to onChange. It is a no-op when no config file was found.
func (l *Loader) Watch(onChange func(*Config, error)) {
	if l.v.ConfigFileUsed() == "" {
		return
	}
	l.v.OnConfigChange(func(_ fsnotify.Event) {
		onChange(l.unmarshal())
	})
	l.v.WatchConfig()
}

// ConfigFileUsed returns the path of the loaded config file, if any.
func (l *Loader) ConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

func providerKeyFromEnv(provider string) string {
	var names []string
	switch provider {
	case "gemini":
		names = []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"}
	case "openai":
		names = []string{"OPENAI_API_KEY"}
	}
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

// setDefaults configures default values.
func (l *Loader) setDefaults() {
	// Log defaults
	l.v.SetDefault("log.level", "info")
	l.v.SetDefault("log.format", "auto")

	// Analysis defaults
	l.v.SetDefault("analysis.min_workflow_length", 10)
	l.v.SetDefault("analysis.max_workflow_length", 10000)
	l.v.SetDefault("analysis.automatable_threshold", 0.6)
	l.v.SetDefault("analysis.stage_timeout", "30s")
	l.v.SetDefault("analysis.run_timeout", "2m")
	l.v.SetDefault("analysis.max_retries", 3)
	l.v.SetDefault("analysis.retry_base_delay", "500ms")
	l.v.SetDefault("analysis.summarizer_enabled", true)
	l.v.SetDefault("analysis.domain", "")

	// Model defaults
	l.v.SetDefault("model.provider", "heuristic")
	l.v.SetDefault("model.name", "gemini-2.0-flash-exp")
	l.v.SetDefault("model.temperature", 0.1)
	l.v.SetDefault("model.max_output_tokens", 8192)
	l.v.SetDefault("model.api_key", "")
	l.v.SetDefault("model.base_url", "")
	l.v.SetDefault("model.project", "")
	l.v.SetDefault("model.location", "")
	l.v.SetDefault("model.response_delay", "")

	// Trace defaults
	l.v.SetDefault("trace.enabled", false)
	l.v.SetDefault("trace.dir", ".advisor/traces")

	// State defaults
	l.v.SetDefault("state.path", ".advisor/state/advisor.db")

	// Server defaults
	l.v.SetDefault("server.host", "localhost")
	l.v.SetDefault("server.port", 8080)
	l.v.SetDefault("server.cors", true)
}
