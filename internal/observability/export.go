package observability

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/renameio/v2"

	"github.com/hugo-lorenzo-mato/workflow-advisor/internal/logging"
)

// TraceExporter persists finished traces.
type TraceExporter interface {
	Enabled() bool
	Export(ctx context.Context, summary TraceSummary, spans []Span) error
}

// ExportConfig configures trace export.
type ExportConfig struct {
	Enabled bool
	Dir     string
}

// NewTraceExporter creates an exporter based on config. A disabled config
// yields an exporter that drops everything.
func NewTraceExporter(cfg ExportConfig, logger *logging.Logger) TraceExporter {
	if !cfg.Enabled {
		return noopExporter{}
	}
	dir := cfg.Dir
	if dir == "" {
		dir = ".advisor/traces"
	}
	return &fileExporter{dir: dir, logger: logger, enabled: true}
}

type noopExporter struct{}

func (noopExporter) Enabled() bool { return false }
func (noopExporter) Export(_ context.Context, _ TraceSummary, _ []Span) error {
	return nil
}

// fileExporter atomically writes one JSON lines file per trace: a record
// per span followed by a summary record.
type fileExporter struct {
	dir    string
	logger *logging.Logger

	mu      sync.Mutex
	enabled bool
	warned  bool
}

type exportRecord struct {
	Type      string        `json:"type"`
	Timestamp string        `json:"ts"`
	Span      *Span         `json:"span,omitempty"`
	Summary   *TraceSummary `json:"summary,omitempty"`
}

func (e *fileExporter) Enabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enabled
}

func (e *fileExporter) Export(_ context.Context, summary TraceSummary, spans []Span) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.enabled {
		return nil
	}

	name := sanitizeTraceID(summary.TraceID)
	if name == "" {
		name = fmt.Sprintf("trace-%d", time.Now().Unix())
	}

	if err := os.MkdirAll(e.dir, 0o750); err != nil {
		e.disableWithWarning(fmt.Errorf("creating trace dir: %w", err))
		return err
	}

	var b strings.Builder
	now := time.Now().UTC().Format(time.RFC3339Nano)
	for i := range spans {
		line, err := json.Marshal(exportRecord{Type: "span", Timestamp: now, Span: &spans[i]})
		if err != nil {
			return err
		}
		b.Write(line)
		b.WriteByte('\n')
	}
	line, err := json.Marshal(exportRecord{Type: "summary", Timestamp: now, Summary: &summary})
	if err != nil {
		return err
	}
	b.Write(line)
	b.WriteByte('\n')

	path := filepath.Join(e.dir, name+".jsonl")
	if err := renameio.WriteFile(path, []byte(b.String()), 0o600); err != nil {
		e.disableWithWarning(fmt.Errorf("writing trace file: %w", err))
		return err
	}
	return nil
}

func (e *fileExporter) disableWithWarning(err error) {
	e.enabled = false
	if e.warned {
		return
	}
	e.warned = true
	if e.logger != nil {
		e.logger.Warn("trace export disabled", "error", err)
	}
}

func sanitizeTraceID(input string) string {
	var b strings.Builder
	for _, r := range input {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
