package state

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/hugo-lorenzo-mato/workflow-advisor/internal/core"
)

func newTestStore(t *testing.T) *SQLiteAnalysisStore {
	t.Helper()
	store, err := NewSQLiteAnalysisStore(filepath.Join(t.TempDir(), "state", "advisor.db"))
	if err != nil {
		t.Fatalf("NewSQLiteAnalysisStore() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleWorkflow(id string, potential float64) *core.StoredWorkflow {
	return &core.StoredWorkflow{
		ID:           id,
		WorkflowText: "Step 1: Read file\nStep 2: Write output",
		Status:       core.ApprovalApproved, // ignored on insert
		Analysis: &core.WorkflowAnalysis{
			WorkflowID: id,
			Steps: []core.WorkflowStep{
				{ID: "step_1", Description: "Read file", RiskLevel: core.RiskLow, AgentType: core.AgentTool},
				{ID: "step_2", Description: "Write output", RiskLevel: core.RiskLow, AgentType: core.AgentADKBase, Dependencies: []string{"step_1"}},
			},
			Summary: core.AutomationSummary{TotalSteps: 2, AutomatableCount: 2, AutomationPotential: potential},
			State:   core.RunDone,
		},
	}
}

func TestSQLiteStore_SaveAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	wf := sampleWorkflow("wf-1", 1.0)
	if err := store.Save(ctx, wf); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if wf.Status != core.ApprovalPending {
		t.Errorf("new record status = %s, want PENDING", wf.Status)
	}

	got, err := store.Get(ctx, "wf-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != core.ApprovalPending {
		t.Errorf("stored status = %s, want PENDING", got.Status)
	}
	if len(got.Analysis.Steps) != 2 || got.Analysis.Steps[1].Dependencies[0] != "step_1" {
		t.Errorf("analysis not round-tripped: %+v", got.Analysis.Steps)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}
}

func TestSQLiteStore_SaveExistingKeepsApproval(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	wf := sampleWorkflow("wf-1", 0.5)
	if err := store.Save(ctx, wf); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := store.Approve(ctx, "wf-1", "alice", "ok", nil); err != nil {
		t.Fatalf("Approve() error = %v", err)
	}

	wf.Analysis.Summary.AutomationPotential = 0.9
	if err := store.Save(ctx, wf); err != nil {
		t.Fatalf("second Save() error = %v", err)
	}
	got, err := store.Get(ctx, "wf-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != core.ApprovalApproved {
		t.Errorf("status = %s, want APPROVED", got.Status)
	}
	if got.Analysis.Summary.AutomationPotential != 0.9 {
		t.Errorf("analysis not updated: %v", got.Analysis.Summary.AutomationPotential)
	}
}

func TestSQLiteStore_GetNotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Get(context.Background(), "missing")
	if !core.IsCategory(err, core.ErrCatNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := store.Delete(context.Background(), "missing"); !core.IsCategory(err, core.ErrCatNotFound) {
		t.Fatalf("Delete: expected not found, got %v", err)
	}
}

func TestSQLiteStore_ListNewestFirst(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	store, err := NewSQLiteAnalysisStore(filepath.Join(t.TempDir(), "advisor.db"),
		WithClock(func() time.Time {
			tick++
			return base.Add(time.Duration(tick) * time.Second)
		}))
	if err != nil {
		t.Fatalf("NewSQLiteAnalysisStore() error = %v", err)
	}
	defer store.Close()
	ctx := context.Background()

	for _, id := range []string{"wf-a", "wf-b", "wf-c"} {
		if err := store.Save(ctx, sampleWorkflow(id, 0.5)); err != nil {
			t.Fatalf("Save(%s) error = %v", id, err)
		}
	}
	if err := store.Reject(ctx, "wf-b", "bob", "not now"); err != nil {
		t.Fatalf("Reject() error = %v", err)
	}

	all, err := store.List(ctx, core.ListFilter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 3 || all[0].ID != "wf-c" || all[2].ID != "wf-a" {
		t.Fatalf("List() order = %+v", all)
	}
	if all[0].Preview == "" || all[0].TotalSteps != 2 {
		t.Errorf("summary fields missing: %+v", all[0])
	}

	pending, err := store.List(ctx, core.ListFilter{Status: core.ApprovalPending, Limit: 1})
	if err != nil {
		t.Fatalf("List(pending) error = %v", err)
	}
	if len(pending) != 1 || pending[0].ID != "wf-c" {
		t.Errorf("List(pending, 1) = %+v", pending)
	}
}

func TestSQLiteStore_ApprovalTransitions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	if err := store.Save(ctx, sampleWorkflow("wf-1", 0.5)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	design := &core.OrgDesign{Chart: core.OrgChart{WorkflowID: "wf-1", Agents: []core.AgentDescriptor{{AgentID: "agent_step_1"}}}}
	if err := store.Approve(ctx, "wf-1", "alice", "looks good", design); err != nil {
		t.Fatalf("Approve() error = %v", err)
	}

	info, err := store.ApprovalStatus(ctx, "wf-1")
	if err != nil {
		t.Fatalf("ApprovalStatus() error = %v", err)
	}
	if info.Status != core.ApprovalApproved || info.ApprovedBy != "alice" || !info.HasOrgDesign || info.DecidedAt == nil {
		t.Errorf("ApprovalStatus() = %+v", info)
	}

	got, err := store.Get(ctx, "wf-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.OrgDesign == nil || got.OrgDesign.Chart.Agents[0].AgentID != "agent_step_1" {
		t.Errorf("org design not stored: %+v", got.OrgDesign)
	}

	err = store.Reject(ctx, "wf-1", "bob", "changed my mind")
	if !core.IsCategory(err, core.ErrCatConflict) {
		t.Fatalf("Reject after approve: expected conflict, got %v", err)
	}
	if err := store.Approve(ctx, "missing", "alice", "", nil); !core.IsCategory(err, core.ErrCatNotFound) {
		t.Fatalf("Approve missing: expected not found, got %v", err)
	}
}

func TestSQLiteStore_Delete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	if err := store.Save(ctx, sampleWorkflow("wf-1", 0.5)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := store.Delete(ctx, "wf-1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Get(ctx, "wf-1"); !core.IsCategory(err, core.ErrCatNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestSQLiteStore_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "advisor.db")
	store, err := NewSQLiteAnalysisStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteAnalysisStore() error = %v", err)
	}
	if err := store.Save(context.Background(), sampleWorkflow("wf-1", 0.5)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	_ = store.Close()

	reopened, err := NewAnalysisStore(path)
	if err != nil {
		t.Fatalf("NewAnalysisStore() error = %v", err)
	}
	defer CloseStore(reopened)
	if _, err := reopened.Get(context.Background(), "wf-1"); err != nil {
		t.Fatalf("Get() after reopen error = %v", err)
	}
}

func TestSaveValidation(t *testing.T) {
	store := newTestStore(t)
	if err := store.Save(context.Background(), &core.StoredWorkflow{}); !core.IsCategory(err, core.ErrCatValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}
