package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hugo-lorenzo-mato/workflow-advisor/internal/core"
	"github.com/hugo-lorenzo-mato/workflow-advisor/internal/service/analysis"
	"github.com/hugo-lorenzo-mato/workflow-advisor/internal/service/orgdesign"
)

// maxBodyBytes bounds request bodies. Workflow texts are far smaller.
const maxBodyBytes = 1 << 20

// CreateWorkflowRequest is the request body for creating an analysis.
type CreateWorkflowRequest struct {
	WorkflowText string `json:"workflow_text"`
	WorkflowID   string `json:"workflow_id,omitempty"`
}

// CreateWorkflowResponse is the reply to a successful analysis.
type CreateWorkflowResponse struct {
	*core.StoredWorkflow
	Errors []analysis.ErrorEntry `json:"errors"`
}

// ApproveRequest is the request body for approving an analysis.
type ApproveRequest struct {
	ApprovedBy string `json:"approved_by"`
	Notes      string `json:"notes,omitempty"`
}

// RejectRequest is the request body for rejecting an analysis.
type RejectRequest struct {
	RejectedBy string `json:"rejected_by"`
	Reason     string `json:"reason,omitempty"`
}

// ApproveResponse is the reply to an approval.
type ApproveResponse struct {
	WorkflowID string              `json:"workflow_id"`
	Status     core.ApprovalStatus `json:"approval_status"`
	OrgDesign  *core.OrgDesign     `json:"org_design"`
}

// handleCreateWorkflow runs an analysis and stores it as PENDING.
func (s *Server) handleCreateWorkflow(w http.ResponseWriter, r *http.Request) {
	var req CreateWorkflowRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	req.WorkflowID = strings.TrimSpace(req.WorkflowID)

	if req.WorkflowID != "" {
		_, err := s.store.Get(r.Context(), req.WorkflowID)
		switch {
		case err == nil:
			s.respondDomainError(w, core.ErrWorkflowExists(req.WorkflowID))
			return
		case !core.IsCategory(err, core.ErrCatNotFound):
			s.respondDomainError(w, err)
			return
		}
	}

	res, err := s.analyzer.Analyze(r.Context(), analysis.Request{
		WorkflowID:   req.WorkflowID,
		WorkflowText: req.WorkflowText,
	})
	if err != nil {
		if res != nil && res.Run != nil {
			w.Header().Set("X-Trace-ID", res.Run.TraceID())
		}
		s.respondDomainError(w, err)
		return
	}

	record := &core.StoredWorkflow{
		ID:           res.Analysis.WorkflowID,
		WorkflowText: req.WorkflowText,
		Analysis:     res.Analysis,
	}
	if err := s.store.Save(r.Context(), record); err != nil {
		s.respondDomainError(w, err)
		return
	}

	w.Header().Set("X-Trace-ID", res.Analysis.TraceID)
	w.Header().Set("Location", "/api/v1/workflows/"+record.ID)
	s.respondJSON(w, http.StatusCreated, CreateWorkflowResponse{
		StoredWorkflow: record,
		Errors:         nonNilErrors(res.Run.Errors()),
	})
}

// handleListWorkflows lists stored analyses, newest first.
func (s *Server) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	var filter core.ListFilter
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, ok := core.ParseApprovalStatus(strings.ToUpper(raw))
		if !ok {
			s.respondError(w, http.StatusBadRequest, "invalid status: "+raw)
			return
		}
		filter.Status = status
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			s.respondError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		filter.Limit = limit
	}

	list, err := s.store.List(r.Context(), filter)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	if list == nil {
		list = []core.WorkflowSummary{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"workflows": list,
		"count":     len(list),
	})
}

// handleGetWorkflow returns one stored analysis.
func (s *Server) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	record, err := s.store.Get(r.Context(), chi.URLParam(r, "workflowID"))
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, record)
}

// handleDeleteWorkflow deletes a stored analysis.
func (s *Server) handleDeleteWorkflow(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Delete(r.Context(), chi.URLParam(r, "workflowID")); err != nil {
		s.respondDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleApproveWorkflow approves a PENDING analysis and stores the org
// design synthesized from it.
func (s *Server) handleApproveWorkflow(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "workflowID")
	var req ApproveRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.ApprovedBy) == "" {
		s.respondDomainError(w, core.ErrValidation(core.CodeInvalidInput, "approved_by is required"))
		return
	}

	record, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	if record.Status != core.ApprovalPending {
		s.respondDomainError(w, core.ErrInvalidApprovalState(id, record.Status))
		return
	}

	design, err := orgdesign.Synthesize(record.Analysis, orgdesign.WithModel(s.modelName))
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	if err := s.store.Approve(r.Context(), id, req.ApprovedBy, req.Notes, design); err != nil {
		s.respondDomainError(w, err)
		return
	}

	s.logger.Info("workflow approved",
		"workflow_id", id,
		"approved_by", req.ApprovedBy,
		"agents", len(design.Chart.Agents),
		"tools", len(design.ToolRegistry))
	s.respondJSON(w, http.StatusOK, ApproveResponse{
		WorkflowID: id,
		Status:     core.ApprovalApproved,
		OrgDesign:  design,
	})
}

// handleRejectWorkflow rejects a PENDING analysis.
func (s *Server) handleRejectWorkflow(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "workflowID")
	var req RejectRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.RejectedBy) == "" {
		s.respondDomainError(w, core.ErrValidation(core.CodeInvalidInput, "rejected_by is required"))
		return
	}

	if err := s.store.Reject(r.Context(), id, req.RejectedBy, req.Reason); err != nil {
		s.respondDomainError(w, err)
		return
	}
	s.logger.Info("workflow rejected", "workflow_id", id, "rejected_by", req.RejectedBy)
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"workflow_id":     id,
		"approval_status": core.ApprovalRejected,
	})
}

// handleApprovalStatus returns the approval view of a stored analysis.
func (s *Server) handleApprovalStatus(w http.ResponseWriter, r *http.Request) {
	info, err := s.store.ApprovalStatus(r.Context(), chi.URLParam(r, "workflowID"))
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, info)
}

// decodeBody decodes a JSON body into dst and answers 400 on failure.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.respondError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		s.respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func nonNilErrors(in []analysis.ErrorEntry) []analysis.ErrorEntry {
	if in == nil {
		return []analysis.ErrorEntry{}
	}
	return in
}
