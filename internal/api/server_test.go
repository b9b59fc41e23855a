package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugo-lorenzo-mato/workflow-advisor/internal/adapters/model"
	"github.com/hugo-lorenzo-mato/workflow-advisor/internal/adapters/state"
	"github.com/hugo-lorenzo-mato/workflow-advisor/internal/core"
	"github.com/hugo-lorenzo-mato/workflow-advisor/internal/events"
	"github.com/hugo-lorenzo-mato/workflow-advisor/internal/logging"
	"github.com/hugo-lorenzo-mato/workflow-advisor/internal/service/analysis"
)

const invoiceWorkflow = `1. Fetch the invoice from the supplier portal
2. Check the invoice total against the purchase order
3. Manager reviews the invoice before payment
4. Send a confirmation email to the supplier`

func newTestServer(t *testing.T, opts ...ServerOption) (*Server, core.AnalysisStore) {
	t.Helper()
	store, err := state.NewAnalysisStore(filepath.Join(t.TempDir(), "advisor.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = state.CloseStore(store) })

	cfg := analysis.DefaultConfig()
	cfg.RetryBaseDelay = time.Millisecond
	orch := analysis.New(cfg, model.NewHeuristic())
	return NewServer(orch, store, append([]ServerOption{WithModelName("gemini-2.0-flash-exp")}, opts...)...), store
}

func doJSON(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func createWorkflow(t *testing.T, h http.Handler, id string) CreateWorkflowResponse {
	t.Helper()
	rec := doJSON(t, h, http.MethodPost, "/api/v1/workflows", CreateWorkflowRequest{WorkflowText: invoiceWorkflow, WorkflowID: id})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp CreateWorkflowResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv.Handler(), http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	host, ok := body["host"].(map[string]interface{})
	require.True(t, ok)
	assert.NotEmpty(t, host["os"])
}

func TestCreateAndGetWorkflow(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	created := createWorkflow(t, h, "invoices")
	assert.Equal(t, "invoices", created.ID)
	assert.Equal(t, core.ApprovalPending, created.Status)
	require.NotNil(t, created.Analysis)
	assert.Equal(t, 4, created.Analysis.Summary.TotalSteps)
	assert.NotNil(t, created.Errors)

	rec := doJSON(t, h, http.MethodGet, "/api/v1/workflows/invoices", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got core.StoredWorkflow
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, created.Analysis.TraceID, got.Analysis.TraceID)

	// The trace of the run is served while the process lives.
	rec = doJSON(t, h, http.MethodGet, "/api/v1/traces/"+got.Analysis.TraceID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "analyze_workflow")

	rec = doJSON(t, h, http.MethodGet, "/api/v1/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"analyses_total":1`)

	// Reusing the id is a conflict.
	rec = doJSON(t, h, http.MethodPost, "/api/v1/workflows", CreateWorkflowRequest{WorkflowText: invoiceWorkflow, WorkflowID: "invoices"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCreateWorkflow_Errors(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	rec := doJSON(t, h, http.MethodPost, "/api/v1/workflows", CreateWorkflowRequest{WorkflowText: "too short"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), core.CodeWorkflowTooShort)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/workflows", bytes.NewBufferString("{not json"))
	bad := httptest.NewRecorder()
	h.ServeHTTP(bad, req)
	assert.Equal(t, http.StatusBadRequest, bad.Code)
}

func TestListWorkflows(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()
	createWorkflow(t, h, "first")
	createWorkflow(t, h, "second")

	rec := doJSON(t, h, http.MethodGet, "/api/v1/workflows?status=pending&limit=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Workflows []core.WorkflowSummary `json:"workflows"`
		Count     int                    `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)

	rec = doJSON(t, h, http.MethodGet, "/api/v1/workflows?status=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = doJSON(t, h, http.MethodGet, "/api/v1/workflows?limit=-3", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestApproveWorkflow(t *testing.T) {
	srv, store := newTestServer(t)
	h := srv.Handler()
	created := createWorkflow(t, h, "invoices")

	rec := doJSON(t, h, http.MethodPost, "/api/v1/workflows/invoices/approve", ApproveRequest{})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/api/v1/workflows/invoices/approve", ApproveRequest{ApprovedBy: "alice", Notes: "ship it"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp ApproveResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.OrgDesign)
	assert.Len(t, resp.OrgDesign.Chart.Agents, created.Analysis.Summary.TotalSteps)
	assert.Len(t, resp.OrgDesign.AgentRegistry, created.Analysis.Summary.TotalSteps)
	assert.NotEmpty(t, resp.OrgDesign.Chart.Connections)

	rec = doJSON(t, h, http.MethodGet, "/api/v1/workflows/invoices/approval-status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var info core.ApprovalInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, core.ApprovalApproved, info.Status)
	assert.Equal(t, "alice", info.ApprovedBy)
	assert.True(t, info.HasOrgDesign)

	stored, err := store.Get(context.Background(), "invoices")
	require.NoError(t, err)
	require.NotNil(t, stored.OrgDesign)

	rec = doJSON(t, h, http.MethodPost, "/api/v1/workflows/invoices/reject", RejectRequest{RejectedBy: "bob"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = doJSON(t, h, http.MethodPost, "/api/v1/workflows/invoices/approve", ApproveRequest{ApprovedBy: "alice"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRejectAndDeleteWorkflow(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()
	createWorkflow(t, h, "invoices")

	rec := doJSON(t, h, http.MethodPost, "/api/v1/workflows/invoices/reject", RejectRequest{RejectedBy: "bob", Reason: "too risky"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), string(core.ApprovalRejected))

	rec = doJSON(t, h, http.MethodDelete, "/api/v1/workflows/invoices", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = doJSON(t, h, http.MethodGet, "/api/v1/workflows/invoices", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = doJSON(t, h, http.MethodDelete, "/api/v1/workflows/invoices", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = doJSON(t, h, http.MethodPost, "/api/v1/workflows/missing/approve", ApproveRequest{ApprovedBy: "alice"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetTrace_NotFound(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv.Handler(), http.MethodGet, "/api/v1/traces/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestServer_LogsRunEvents(t *testing.T) {
	store, err := state.NewAnalysisStore(filepath.Join(t.TempDir(), "advisor.db"))
	require.NoError(t, err)
	defer state.CloseStore(store)

	var out syncBuffer
	logger := logging.New(logging.Config{Level: "debug", Format: "json", Output: &out})
	bus := events.New(16)
	defer bus.Close()

	cfg := analysis.DefaultConfig()
	cfg.SummarizerEnabled = false
	orch := analysis.New(cfg, model.NewHeuristic(), analysis.WithEventBus(bus))
	srv := NewServer(orch, store, WithEventBus(bus), WithLogger(logger))

	createWorkflow(t, srv.Handler(), "logged")
	assert.Eventually(t, func() bool {
		return strings.Contains(out.String(), "analysis run completed")
	}, time.Second, 10*time.Millisecond)
	assert.Contains(t, out.String(), `"workflow_id":"logged"`)
}

func TestCORS(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/workflows", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	off, _ := newTestServer(t, WithCORS(false))
	rec = httptest.NewRecorder()
	off.Handler().ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
