// Package state persists finished analyses and their approval state.
package state

import (
	"context"
	"crypto/sha256"
	"database/sql"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/hugo-lorenzo-mato/workflow-advisor/internal/core"
	_ "modernc.org/sqlite"
)

//go:embed migrations/001_initial_schema.sql
var migrationV1 string

const previewLength = 100

// timeFormat has fixed-width fractions so stored timestamps sort as text.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteAnalysisStore implements core.AnalysisStore with SQLite storage.
type SQLiteAnalysisStore struct {
	dbPath string
	db     *sql.DB
	mu     sync.RWMutex
	now    func() time.Time
}

// SQLiteAnalysisStoreOption configures the store.
type SQLiteAnalysisStoreOption func(*SQLiteAnalysisStore)

// WithClock overrides the time source.
func WithClock(now func() time.Time) SQLiteAnalysisStoreOption {
	return func(s *SQLiteAnalysisStore) {
		s.now = now
	}
}

// NewSQLiteAnalysisStore opens (or creates) the store at dbPath.
func NewSQLiteAnalysisStore(dbPath string, opts ...SQLiteAnalysisStoreOption) (*SQLiteAnalysisStore, error) {
	s := &SQLiteAnalysisStore{
		dbPath: dbPath,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)
	s.db = db

	if err := s.migrate(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("running migrations: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *SQLiteAnalysisStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// migrate runs pending migrations.
func (s *SQLiteAnalysisStore) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at TEXT NOT NULL
	)`); err != nil {
		return fmt.Errorf("creating migrations table: %w", err)
	}

	var version int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version); err != nil {
		return fmt.Errorf("checking schema version: %w", err)
	}

	migrations := []string{migrationV1}
	for i, migration := range migrations {
		v := i + 1
		if v <= version {
			continue
		}
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning migration v%d: %w", v, err)
		}
		for _, stmt := range splitStatements(migration) {
			if _, err := tx.Exec(stmt); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("applying migration v%d: %w", v, err)
			}
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)",
			v, s.now().Format(time.RFC3339)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("recording migration v%d: %w", v, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration v%d: %w", v, err)
		}
	}
	return nil
}

// splitStatements splits a SQL script into statements, dropping comment lines.
func splitStatements(script string) []string {
	var statements []string
	for _, stmt := range strings.Split(script, ";") {
		var lines []string
		for _, line := range strings.Split(stmt, "\n") {
			trimmed := strings.TrimSpace(line)
			if trimmed != "" && !strings.HasPrefix(trimmed, "--") {
				lines = append(lines, line)
			}
		}
		if len(lines) > 0 {
			statements = append(statements, strings.Join(lines, "\n"))
		}
	}
	return statements
}

// Save upserts an analysis. New records are PENDING regardless of wf.Status;
// existing records keep their approval fields.
func (s *SQLiteAnalysisStore) Save(ctx context.Context, wf *core.StoredWorkflow) error {
	if wf == nil || wf.ID == "" {
		return core.ErrValidation(core.CodeInvalidInput, "workflow id is required")
	}
	if wf.Analysis == nil {
		return core.ErrValidation(core.CodeInvalidInput, "workflow analysis is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	analysisJSON, err := json.Marshal(wf.Analysis)
	if err != nil {
		return fmt.Errorf("marshaling analysis: %w", err)
	}
	hash := sha256.Sum256(analysisJSON)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := s.now()
	var createdAt string
	err = tx.QueryRowContext(ctx, "SELECT created_at FROM workflows WHERE id = ?", wf.ID).Scan(&createdAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO workflows (
				id, workflow_text, analysis_json, checksum, approval_status,
				total_steps, automation_potential, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			wf.ID, wf.WorkflowText, string(analysisJSON), hex.EncodeToString(hash[:]),
			string(core.ApprovalPending), wf.Analysis.Summary.TotalSteps,
			wf.Analysis.Summary.AutomationPotential,
			now.Format(timeFormat), now.Format(timeFormat),
		); err != nil {
			return fmt.Errorf("inserting workflow: %w", err)
		}
		wf.Status = core.ApprovalPending
		wf.CreatedAt = now
	case err != nil:
		return fmt.Errorf("checking workflow: %w", err)
	default:
		if _, err := tx.ExecContext(ctx, `
			UPDATE workflows SET
				workflow_text = ?, analysis_json = ?, checksum = ?,
				total_steps = ?, automation_potential = ?, updated_at = ?
			WHERE id = ?`,
			wf.WorkflowText, string(analysisJSON), hex.EncodeToString(hash[:]),
			wf.Analysis.Summary.TotalSteps, wf.Analysis.Summary.AutomationPotential,
			now.Format(timeFormat), wf.ID,
		); err != nil {
			return fmt.Errorf("updating workflow: %w", err)
		}
		if t, perr := time.Parse(timeFormat, createdAt); perr == nil {
			wf.CreatedAt = t
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing workflow: %w", err)
	}
	wf.UpdatedAt = now
	return nil
}

const selectWorkflow = `
	SELECT id, workflow_text, analysis_json, checksum, approval_status,
		approved_by, rejected_by, notes, org_design_json, decided_at,
		created_at, updated_at
	FROM workflows WHERE id = ?`

// Get returns a stored analysis.
func (s *SQLiteAnalysisStore) Get(ctx context.Context, id string) (*core.StoredWorkflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		wf                                     core.StoredWorkflow
		analysisJSON, checksum, status         string
		approvedBy, rejectedBy, notes, orgJSON sql.NullString
		decidedAt                              sql.NullString
		createdAt, updatedAt                   string
	)
	err := s.db.QueryRowContext(ctx, selectWorkflow, id).Scan(
		&wf.ID, &wf.WorkflowText, &analysisJSON, &checksum, &status,
		&approvedBy, &rejectedBy, &notes, &orgJSON, &decidedAt,
		&createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrWorkflowNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading workflow: %w", err)
	}

	hash := sha256.Sum256([]byte(analysisJSON))
	if hex.EncodeToString(hash[:]) != checksum {
		return nil, fmt.Errorf("workflow %s: analysis checksum mismatch", id)
	}
	wf.Analysis = &core.WorkflowAnalysis{}
	if err := json.Unmarshal([]byte(analysisJSON), wf.Analysis); err != nil {
		return nil, fmt.Errorf("unmarshaling analysis: %w", err)
	}
	if orgJSON.Valid && orgJSON.String != "" {
		wf.OrgDesign = &core.OrgDesign{}
		if err := json.Unmarshal([]byte(orgJSON.String), wf.OrgDesign); err != nil {
			return nil, fmt.Errorf("unmarshaling org design: %w", err)
		}
	}

	wf.Status = core.ApprovalStatus(status)
	wf.ApprovedBy = approvedBy.String
	wf.RejectedBy = rejectedBy.String
	wf.Notes = notes.String
	wf.DecidedAt = parseNullTime(decidedAt)
	wf.CreatedAt, _ = time.Parse(timeFormat, createdAt)
	wf.UpdatedAt, _ = time.Parse(timeFormat, updatedAt)
	return &wf, nil
}

// List returns summaries, newest first.
func (s *SQLiteAnalysisStore) List(ctx context.Context, filter core.ListFilter) ([]core.WorkflowSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, approval_status, total_steps, automation_potential,
		workflow_text, created_at, updated_at FROM workflows`
	var args []interface{}
	if filter.Status != "" {
		query += " WHERE approval_status = ?"
		args = append(args, string(filter.Status))
	}
	query += " ORDER BY created_at DESC, id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing workflows: %w", err)
	}
	defer rows.Close()

	summaries := []core.WorkflowSummary{}
	for rows.Next() {
		var (
			sum                  core.WorkflowSummary
			status, text         string
			createdAt, updatedAt string
		)
		if err := rows.Scan(&sum.ID, &status, &sum.TotalSteps, &sum.AutomationPotential,
			&text, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning workflow: %w", err)
		}
		sum.Status = core.ApprovalStatus(status)
		sum.Preview = preview(text)
		sum.CreatedAt, _ = time.Parse(timeFormat, createdAt)
		sum.UpdatedAt, _ = time.Parse(timeFormat, updatedAt)
		summaries = append(summaries, sum)
	}
	return summaries, rows.Err()
}

// Delete removes a stored analysis.
func (s *SQLiteAnalysisStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM workflows WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting workflow: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrWorkflowNotFound(id)
	}
	return nil
}

// Approve marks a PENDING analysis approved and stores its org design.
func (s *SQLiteAnalysisStore) Approve(ctx context.Context, id, approvedBy, notes string, design *core.OrgDesign) error {
	var orgJSON sql.NullString
	if design != nil {
		data, err := json.Marshal(design)
		if err != nil {
			return fmt.Errorf("marshaling org design: %w", err)
		}
		orgJSON = sql.NullString{String: string(data), Valid: true}
	}
	return s.decide(ctx, id, core.ApprovalApproved, func(tx *sql.Tx, now string) error {
		_, err := tx.ExecContext(ctx, `
			UPDATE workflows SET approval_status = ?, approved_by = ?, notes = ?,
				org_design_json = ?, decided_at = ?, updated_at = ?
			WHERE id = ?`,
			string(core.ApprovalApproved), approvedBy, notes, orgJSON, now, now, id)
		return err
	})
}

// Reject marks a PENDING analysis rejected.
func (s *SQLiteAnalysisStore) Reject(ctx context.Context, id, rejectedBy, reason string) error {
	return s.decide(ctx, id, core.ApprovalRejected, func(tx *sql.Tx, now string) error {
		_, err := tx.ExecContext(ctx, `
			UPDATE workflows SET approval_status = ?, rejected_by = ?, notes = ?,
				decided_at = ?, updated_at = ?
			WHERE id = ?`,
			string(core.ApprovalRejected), rejectedBy, reason, now, now, id)
		return err
	})
}

// decide applies an approval decision inside a transaction that first checks
// the record is still PENDING.
func (s *SQLiteAnalysisStore) decide(ctx context.Context, id string, to core.ApprovalStatus, update func(*sql.Tx, string) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var status string
	err = tx.QueryRowContext(ctx, "SELECT approval_status FROM workflows WHERE id = ?", id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ErrWorkflowNotFound(id)
	}
	if err != nil {
		return fmt.Errorf("checking workflow: %w", err)
	}
	if core.ApprovalStatus(status) != core.ApprovalPending {
		return core.ErrInvalidApprovalState(id, core.ApprovalStatus(status))
	}

	if err := update(tx, s.now().Format(timeFormat)); err != nil {
		return fmt.Errorf("marking workflow %s: %w", strings.ToLower(string(to)), err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing decision: %w", err)
	}
	return nil
}

// ApprovalStatus returns the approval view of a stored analysis.
func (s *SQLiteAnalysisStore) ApprovalStatus(ctx context.Context, id string) (*core.ApprovalInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		info                          core.ApprovalInfo
		status                        string
		approvedBy, rejectedBy, notes sql.NullString
		decidedAt                     sql.NullString
		hasOrg                        bool
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, approval_status, approved_by, rejected_by, notes, decided_at,
			org_design_json IS NOT NULL
		FROM workflows WHERE id = ?`, id).Scan(
		&info.ID, &status, &approvedBy, &rejectedBy, &notes, &decidedAt, &hasOrg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrWorkflowNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading approval status: %w", err)
	}
	info.Status = core.ApprovalStatus(status)
	info.ApprovedBy = approvedBy.String
	info.RejectedBy = rejectedBy.String
	info.Notes = notes.String
	info.DecidedAt = parseNullTime(decidedAt)
	info.HasOrgDesign = hasOrg
	return &info, nil
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(timeFormat, s.String)
	if err != nil {
		return nil
	}
	return &t
}

func preview(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	r := []rune(text)
	if len(r) <= previewLength {
		return text
	}
	return string(r[:previewLength]) + "..."
}
