// Package store persists run results so an experiment can be resumed and
// summarized later. Every matrix cell is stored at most once.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ShayCichocki/qqeval/pkg/models"
)

// ErrClosed is returned when using a closed store.
var ErrClosed = errors.New("store is closed")

// Store is an append-only collection of run results keyed by matrix cell.
// Implementations are safe for concurrent use.
type Store interface {
	// Append durably records r unless its cell is already present. It reports
	// whether the record was written.
	Append(r models.RunResult) (bool, error)
	// Has reports whether a result for the cell exists.
	Has(key models.CellKey) bool
	// Results returns every stored result in insertion order.
	Results() ([]models.RunResult, error)
	// Len returns the number of stored results.
	Len() int
	// Path returns the backing file.
	Path() string
	Close() error
}

// Backend names a storage format.
type Backend string

const (
	// BackendJSONL stores one JSON object per line. It is the dashboard input.
	BackendJSONL Backend = "jsonl"
	// BackendSQLite stores results in an SQLite database.
	BackendSQLite Backend = "sqlite"
)

// ParseBackend converts a backend name. An empty name selects JSONL.
func ParseBackend(name string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", string(BackendJSONL):
		return BackendJSONL, nil
	case string(BackendSQLite), "sqlite3", "db":
		return BackendSQLite, nil
	default:
		return "", fmt.Errorf("unknown store backend %q (want jsonl or sqlite)", name)
	}
}

// BackendForPath guesses the backend from a file extension.
func BackendForPath(path string) Backend {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return BackendSQLite
	default:
		return BackendJSONL
	}
}

// Open opens or creates a store at path. Parent directories are created.
func Open(backend Backend, path string) (Store, error) {
	if path == "" {
		return nil, errors.New("store path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	switch backend {
	case BackendJSONL, "":
		return OpenJSONL(path)
	case BackendSQLite:
		return OpenSQLite(path)
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}

// ReadAll loads every result from an existing store without modifying it.
func ReadAll(backend Backend, path string) ([]models.RunResult, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("read store: %w", err)
	}

	switch backend {
	case BackendJSONL, "":
		return ReadJSONL(path)
	case BackendSQLite:
		return ReadSQLite(path)
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}
