package cmd

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/workflow-advisor/internal/api"
	"github.com/hugo-lorenzo-mato/workflow-advisor/internal/config"
	"github.com/hugo-lorenzo-mato/workflow-advisor/internal/diagnostics"
	"github.com/hugo-lorenzo-mato/workflow-advisor/internal/events"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long: `Start the advisor REST API.

The server analyzes workflows on request, stores them for approval and
serves traces, metrics and host diagnostics.

Examples:
  # Start with defaults (localhost:8080)
  advisor serve

  # Start on custom host and port
  advisor serve --host 0.0.0.0 --port 3000

  # Disable CORS (for production behind a reverse proxy)
  advisor serve --no-cors`,
	RunE: runServe,
}

var (
	serveHost   string
	servePort   int
	serveNoCORS bool
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveHost, "host", "localhost",
		"Host address to bind to")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8080,
		"Port to listen on")
	serveCmd.Flags().BoolVar(&serveNoCORS, "no-cors", false,
		"Disable CORS headers")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, loader, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg, os.Stdout)

	// Flags win over the config file only when given explicitly.
	host, port, cors := cfg.Server.Host, cfg.Server.Port, cfg.Server.CORS
	if cmd.Flags().Changed("host") {
		host = serveHost
	}
	if cmd.Flags().Changed("port") {
		port = servePort
	}
	if serveNoCORS {
		cors = false
	}

	bus := events.New(100)
	defer bus.Close()

	orch, err := buildOrchestrator(cfg, logger, bus)
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("opening analysis store: %w", err)
	}
	defer closeStore(store, logger)
	logger.Info("analysis store initialized", "path", cfg.State.Path)

	loader.Watch(func(next *config.Config, err error) {
		if err != nil {
			logger.Warn("config reload failed", "error", err)
			return
		}
		logger.SetLevel(next.Log.Level)
		logger.Info("config reloaded", "log_level", next.Log.Level)
	})

	server := api.NewServer(orch, store,
		api.WithLogger(logger),
		api.WithEventBus(bus),
		api.WithDiagnostics(diagnostics.NewCollector(
			diagnostics.WithDiskPath(filepath.Dir(cfg.State.Path)))),
		api.WithModelName(cfg.Model.Name),
		api.WithCORS(cors),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	logger.Info("advisor server listening", "addr", addr, "provider", cfg.Model.Provider, "cors", cors)
	return server.ListenAndServe(ctx, addr)
}
