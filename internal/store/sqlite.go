package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ShayCichocki/qqeval/pkg/models"
)

// SQLiteStore keeps results in an SQLite database. The UNIQUE constraint on
// the cell columns makes appends idempotent.
type SQLiteStore struct {
	conn   *sql.DB
	path   string
	mu     sync.RWMutex
	keys   map[models.CellKey]struct{}
	closed bool
}

// OpenSQLite opens or creates an SQLite store and applies migrations.
// WAL mode is enabled for concurrent reads.
func OpenSQLite(path string) (*SQLiteStore, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	s := &SQLiteStore{
		conn: conn,
		path: path,
		keys: make(map[models.CellKey]struct{}),
	}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	if err := s.loadKeys(); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

// ReadSQLite loads every result from an existing database opened read-only.
// It neither migrates nor changes the journal mode.
func ReadSQLite(path string) ([]models.RunResult, error) {
	conn, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	defer conn.Close()

	var n int
	err = conn.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'run_results'").Scan(&n)
	if err != nil {
		return nil, fmt.Errorf("read database %s: %w", path, err)
	}
	if n == 0 {
		return nil, fmt.Errorf("%s has no run_results table", path)
	}
	return queryResults(conn)
}

const migrationV1Results = `
CREATE TABLE IF NOT EXISTS run_results (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL DEFAULT '',
	prompt_id TEXT NOT NULL,
	condition_id TEXT NOT NULL,
	run_index INTEGER NOT NULL,
	detected INTEGER NOT NULL,
	detection_method TEXT NOT NULL,
	category TEXT NOT NULL DEFAULT '',
	error TEXT NOT NULL DEFAULT '',
	recorded_at TEXT NOT NULL,
	record TEXT NOT NULL,
	UNIQUE(prompt_id, condition_id, run_index)
);
CREATE INDEX IF NOT EXISTS idx_run_results_condition ON run_results(condition_id);
`

// migrate applies all pending schema migrations.
func (s *SQLiteStore) migrate() error {
	_, err := s.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var currentVersion int
	row := s.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("get schema version: %w", err)
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migrationV1Results},
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}

		tx, err := s.conn.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration %d: %w", m.version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.version, err)
		}
	}
	return nil
}

func (s *SQLiteStore) loadKeys() error {
	rows, err := s.conn.Query("SELECT prompt_id, condition_id, run_index FROM run_results")
	if err != nil {
		return fmt.Errorf("load cell keys: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var k models.CellKey
		if err := rows.Scan(&k.PromptID, &k.ConditionID, &k.RunIndex); err != nil {
			return fmt.Errorf("scan cell key: %w", err)
		}
		s.keys[k] = struct{}{}
	}
	return rows.Err()
}

// Append inserts r unless its cell is already stored.
func (s *SQLiteStore) Append(r models.RunResult) (bool, error) {
	if err := r.Validate(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, ErrClosed
	}
	if _, ok := s.keys[r.Key()]; ok {
		return false, nil
	}

	record, err := json.Marshal(r)
	if err != nil {
		return false, fmt.Errorf("encode result %s: %w", r.Key(), err)
	}

	res, err := s.conn.Exec(`
		INSERT INTO run_results (run_id, prompt_id, condition_id, run_index, detected,
			detection_method, category, error, recorded_at, record)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(prompt_id, condition_id, run_index) DO NOTHING
	`, r.RunID, r.PromptID, r.ConditionID, r.RunIndex, r.Detected,
		string(r.DetectionMethod), string(r.Category), r.Error,
		r.RecordedAt.UTC().Format(time.RFC3339Nano), string(record))
	if err != nil {
		return false, fmt.Errorf("insert result %s: %w", r.Key(), err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert result %s: %w", r.Key(), err)
	}
	s.keys[r.Key()] = struct{}{}
	return n == 1, nil
}

// Has reports whether the cell has a stored result.
func (s *SQLiteStore) Has(key models.CellKey) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.keys[key]
	return ok
}

// Results returns every stored result in insertion order.
func (s *SQLiteStore) Results() ([]models.RunResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}
	return queryResults(s.conn)
}

func queryResults(conn *sql.DB) ([]models.RunResult, error) {
	rows, err := conn.Query("SELECT record FROM run_results ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	var results []models.RunResult
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		var r models.RunResult
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
			return nil, fmt.Errorf("decode result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// Len returns the number of stored results.
func (s *SQLiteStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close closes the database connection. Closing twice is a no-op.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.conn.Close()
}
