package observability

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestTraceExporter_Disabled(t *testing.T) {
	exp := NewTraceExporter(ExportConfig{Enabled: false}, nil)
	if exp.Enabled() {
		t.Error("Enabled() = true, want false")
	}
	if err := exp.Export(context.Background(), TraceSummary{TraceID: "x"}, nil); err != nil {
		t.Errorf("Export() error = %v", err)
	}
}

func TestTraceExporter_WritesJSONL(t *testing.T) {
	dir := t.TempDir()
	tr := NewTracer()
	ctx := context.Background()
	_, a := tr.Start(ctx, "abc/123", "parser", nil)
	tr.End(a, nil)
	_, b := tr.Start(ctx, "abc/123", "merge", nil)
	tr.End(b, nil)

	exp := NewTraceExporter(ExportConfig{Enabled: true, Dir: dir}, nil)
	if err := exp.Export(ctx, tr.Summary("abc/123"), tr.Spans("abc/123")); err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	f, err := os.Open(filepath.Join(dir, "abc_123.jsonl"))
	if err != nil {
		t.Fatalf("opening export: %v", err)
	}
	defer f.Close()

	var types []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec exportRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("invalid line: %v", err)
		}
		types = append(types, rec.Type)
	}
	if len(types) != 3 || types[2] != "summary" {
		t.Errorf("record types = %v, want [span span summary]", types)
	}
}
