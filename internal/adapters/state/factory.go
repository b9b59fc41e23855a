package state

import (
	"path/filepath"
	"strings"

	"github.com/hugo-lorenzo-mato/workflow-advisor/internal/core"
)

// NewAnalysisStore creates the SQLite analysis store at path. A path
// without the .db extension gets one.
func NewAnalysisStore(path string) (core.AnalysisStore, error) {
	if !strings.HasSuffix(path, ".db") {
		path = strings.TrimSuffix(path, filepath.Ext(path)) + ".db"
	}
	return NewSQLiteAnalysisStore(path)
}

// Closeable is an optional interface for stores that need cleanup.
type Closeable interface {
	Close() error
}

// CloseStore safely closes a store if it implements Closeable.
func CloseStore(s core.AnalysisStore) error {
	if closeable, ok := s.(Closeable); ok {
		return closeable.Close()
	}
	return nil
}
