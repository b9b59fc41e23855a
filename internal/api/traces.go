package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hugo-lorenzo-mato/workflow-advisor/internal/core"
)

// handleGetTrace returns the summary and spans of one trace.
func (s *Server) handleGetTrace(w http.ResponseWriter, r *http.Request) {
	traceID := chi.URLParam(r, "traceID")
	tracer := s.analyzer.Tracer()
	if !tracer.Has(traceID) {
		s.respondDomainError(w, core.ErrNotFound("trace", traceID))
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"summary": tracer.Summary(traceID),
		"spans":   tracer.Spans(traceID),
	})
}
