package cmd

import (
	"io"
	"os"

	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/hugo-lorenzo-mato/workflow-advisor/internal/adapters/model"
	"github.com/hugo-lorenzo-mato/workflow-advisor/internal/adapters/state"
	"github.com/hugo-lorenzo-mato/workflow-advisor/internal/config"
	"github.com/hugo-lorenzo-mato/workflow-advisor/internal/core"
	"github.com/hugo-lorenzo-mato/workflow-advisor/internal/events"
	"github.com/hugo-lorenzo-mato/workflow-advisor/internal/logging"
	"github.com/hugo-lorenzo-mato/workflow-advisor/internal/observability"
	"github.com/hugo-lorenzo-mato/workflow-advisor/internal/service"
	"github.com/hugo-lorenzo-mato/workflow-advisor/internal/service/analysis"
)

// loadConfig loads and validates the configuration, honoring --config and
// the flags bound to the global viper instance.
func loadConfig() (*config.Config, *config.Loader, error) {
	cfg, loader, err := loadRawConfig()
	if err != nil {
		return nil, nil, err
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return nil, nil, err
	}
	return cfg, loader, nil
}

func loadRawConfig() (*config.Config, *config.Loader, error) {
	loader := config.NewLoaderWithViper(viper.GetViper())
	if cfgFile != "" {
		loader.WithConfigFile(cfgFile)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, nil, err
	}
	return cfg, loader, nil
}

func newLogger(cfg *config.Config, out io.Writer) *logging.Logger {
	return logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: out,
	})
}

// buildOrchestrator wires the configured model, trace exporter and
// optional event bus into an analysis orchestrator.
func buildOrchestrator(cfg *config.Config, logger *logging.Logger, bus *events.EventBus) (*analysis.Orchestrator, error) {
	m, err := model.New(cfg.Model, service.NewRateLimiterRegistry())
	if err != nil {
		return nil, err
	}
	exporter := observability.NewTraceExporter(observability.ExportConfig{
		Enabled: cfg.Trace.Enabled,
		Dir:     cfg.Trace.Dir,
	}, logger)

	opts := []analysis.Option{
		analysis.WithLogger(logger),
		analysis.WithExporter(exporter),
	}
	if bus != nil {
		opts = append(opts, analysis.WithEventBus(bus))
	}
	return analysis.New(analysis.ConfigFrom(cfg), m, opts...), nil
}

func openStore(cfg *config.Config) (core.AnalysisStore, error) {
	return state.NewAnalysisStore(cfg.State.Path)
}

func closeStore(store core.AnalysisStore, logger *logging.Logger) {
	if err := state.CloseStore(store); err != nil {
		logger.Warn("failed to close analysis store", "error", err)
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
