// Package api provides the HTTP REST API of the workflow advisor.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/hugo-lorenzo-mato/workflow-advisor/internal/core"
	"github.com/hugo-lorenzo-mato/workflow-advisor/internal/diagnostics"
	"github.com/hugo-lorenzo-mato/workflow-advisor/internal/events"
	"github.com/hugo-lorenzo-mato/workflow-advisor/internal/logging"
	"github.com/hugo-lorenzo-mato/workflow-advisor/internal/observability"
	"github.com/hugo-lorenzo-mato/workflow-advisor/internal/service/analysis"
)

// Analyzer runs workflow analyses and exposes the shared observability state.
type Analyzer interface {
	Analyze(ctx context.Context, req analysis.Request) (*analysis.Result, error)
	Tracer() *observability.Tracer
	Metrics() *observability.Metrics
}

// Server provides HTTP REST API endpoints for workflow analysis and approval.
type Server struct {
	router         chi.Router
	analyzer       Analyzer
	store          core.AnalysisStore
	eventBus       *events.EventBus
	diag           *diagnostics.Collector
	logger         *logging.Logger
	modelName      string
	cors           bool
	requestTimeout time.Duration
}

// ServerOption configures the server.
type ServerOption func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *logging.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithEventBus sets the bus whose run events the server logs.
func WithEventBus(bus *events.EventBus) ServerOption {
	return func(s *Server) {
		s.eventBus = bus
	}
}

// WithDiagnostics sets the host collector reported by /health.
func WithDiagnostics(c *diagnostics.Collector) ServerOption {
	return func(s *Server) {
		s.diag = c
	}
}

// WithModelName sets the model recorded on synthesized agents.
func WithModelName(name string) ServerOption {
	return func(s *Server) {
		s.modelName = name
	}
}

// WithCORS enables or disables CORS headers.
func WithCORS(enabled bool) ServerOption {
	return func(s *Server) {
		s.cors = enabled
	}
}

// WithRequestTimeout bounds every request, analysis runs included.
func WithRequestTimeout(d time.Duration) ServerOption {
	return func(s *Server) {
		if d > 0 {
			s.requestTimeout = d
		}
	}
}

// NewServer creates a new API server.
func NewServer(analyzer Analyzer, store core.AnalysisStore, opts ...ServerOption) *Server {
	s := &Server{
		analyzer:       analyzer,
		store:          store,
		logger:         logging.NewNop(),
		cors:           true,
		requestTimeout: 3 * time.Minute,
	}

	for _, opt := range opts {
		opt(s)
	}
	if s.diag == nil {
		s.diag = diagnostics.NewCollector()
	}

	s.router = s.setupRouter()
	if s.eventBus != nil {
		go s.logRunEvents(s.eventBus.Subscribe(
			events.TypeRunStarted,
			events.TypeStageFailed,
			events.TypeRunCompleted,
			events.TypeRunFailed,
		))
	}
	return s
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRouter configures Chi router with all routes and middleware.
func (s *Server) setupRouter() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.requestTimeout))
	r.Use(s.loggingMiddleware)

	if s.cors {
		corsHandler := cors.New(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Requested-With"},
			AllowCredentials: false,
			MaxAge:           300,
		})
		r.Use(corsHandler.Handler)
	}

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/metrics", s.handleMetrics)

		r.Route("/workflows", func(r chi.Router) {
			r.Get("/", s.handleListWorkflows)
			r.Post("/", s.handleCreateWorkflow)

			r.Route("/{workflowID}", func(r chi.Router) {
				r.Get("/", s.handleGetWorkflow)
				r.Delete("/", s.handleDeleteWorkflow)
				r.Post("/approve", s.handleApproveWorkflow)
				r.Post("/reject", s.handleRejectWorkflow)
				r.Get("/approval-status", s.handleApprovalStatus)
			})
		})

		r.Get("/traces/{traceID}", s.handleGetTrace)
	})

	return r
}

// loggingMiddleware logs HTTP requests.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			s.logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
				"bytes", ww.BytesWritten(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

// logRunEvents logs run lifecycle events until the bus is closed.
func (s *Server) logRunEvents(ch <-chan events.Event) {
	for ev := range ch {
		attrs := []any{
			"event", ev.EventType(),
			"workflow_id", ev.WorkflowID(),
			"run_id", ev.RunID(),
			"trace_id", ev.TraceID(),
		}
		switch e := ev.(type) {
		case events.RunCompletedEvent:
			attrs = append(attrs, "state", e.State, "total_steps", e.TotalSteps,
				"automation_potential", e.AutomationPotential, "duration", e.Duration)
			s.logger.Info("analysis run completed", attrs...)
		case events.RunFailedEvent:
			attrs = append(attrs, "state", e.State, "stage", e.Stage, "error", e.Error)
			s.logger.Warn("analysis run failed", attrs...)
		case events.StageFailedEvent:
			attrs = append(attrs, "stage", e.Stage, "failed_steps", e.FailedSteps, "error", e.Error)
			s.logger.Warn("analysis stage failed", attrs...)
		default:
			s.logger.Debug("analysis run event", attrs...)
		}
	}
}

// respondJSON sends a JSON response.
func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			s.logger.Error("failed to encode response", "error", err)
		}
	}
}

// respondError sends a JSON error response.
func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

// respondDomainError maps err onto a status and sends it.
func (s *Server) respondDomainError(w http.ResponseWriter, err error) {
	status, ok := httpStatusForDomainError(err)
	if !ok {
		status = http.StatusInternalServerError
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "status", status, "error", err)
	}
	s.respondJSON(w, status, errorBody(err))
}

// handleHealth returns server health with a host snapshot.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
		"host":   s.diag.Collect(r.Context()),
	})
}

// handleMetrics returns the process metrics snapshot.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, s.analyzer.Metrics().Summary())
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("starting API server", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
