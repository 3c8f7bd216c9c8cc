package store

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/ShayCichocki/qqeval/pkg/models"
)

// JSONLStore keeps results in a newline-delimited JSON file. Each append is a
// single write of a complete line followed by fsync.
type JSONLStore struct {
	mu      sync.Mutex
	f       *os.File
	path    string
	keys    map[models.CellKey]struct{}
	results []models.RunResult
	closed  bool
}

// OpenJSONL opens or creates a JSONL store. A torn final line left by a
// crash is discarded so that later appends start on a clean line.
func OpenJSONL(path string) (*JSONLStore, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open results file: %w", err)
	}

	s := &JSONLStore{
		f:    f,
		path: path,
		keys: make(map[models.CellKey]struct{}),
	}

	results, good, unterminated, err := scanJSONL(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat results file: %w", err)
	}
	if info.Size() > good {
		if err := f.Truncate(good); err != nil {
			f.Close()
			return nil, fmt.Errorf("truncate torn line: %w", err)
		}
	}
	if unterminated {
		if _, err := f.Write([]byte{'\n'}); err != nil {
			f.Close()
			return nil, fmt.Errorf("terminate last line: %w", err)
		}
	}

	for _, r := range results {
		if _, dup := s.keys[r.Key()]; dup {
			continue
		}
		s.keys[r.Key()] = struct{}{}
		s.results = append(s.results, r)
	}
	return s, nil
}

// ReadJSONL reads results from a JSONL file without modifying it. A torn
// final line is ignored.
func ReadJSONL(path string) ([]models.RunResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open results file: %w", err)
	}
	defer f.Close()

	results, _, _, err := scanJSONL(f)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return results, nil
}

// scanJSONL decodes every line of r. It returns the byte offset just past
// the last intact record; anything after it is a torn write. A final line
// without a newline is kept when it decodes, and open reports that a newline
// must be written before the next append.
func scanJSONL(r io.Reader) (results []models.RunResult, good int64, unterminated bool, err error) {
	var (
		offset int64
		lineNo int
	)

	br := bufio.NewReader(r)
	for {
		line, rerr := br.ReadBytes('\n')
		if len(line) > 0 {
			lineNo++
			offset += int64(len(line))
			complete := line[len(line)-1] == '\n'

			trimmed := bytes.TrimSpace(line)
			if len(trimmed) > 0 {
				var rec models.RunResult
				if uerr := json.Unmarshal(trimmed, &rec); uerr != nil {
					if !complete {
						return results, good, false, nil
					}
					return nil, 0, false, fmt.Errorf("line %d: %w", lineNo, uerr)
				}
				results = append(results, rec)
			}
			good = offset
			unterminated = !complete && len(trimmed) > 0
		}
		if errors.Is(rerr, io.EOF) {
			return results, good, unterminated, nil
		}
		if rerr != nil {
			return nil, 0, false, rerr
		}
	}
}

// Append writes r as one line unless its cell is already stored.
func (s *JSONLStore) Append(r models.RunResult) (bool, error) {
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

	line, err := json.Marshal(r)
	if err != nil {
		return false, fmt.Errorf("encode result %s: %w", r.Key(), err)
	}
	line = append(line, '\n')

	if _, err := s.f.Write(line); err != nil {
		return false, fmt.Errorf("write result %s: %w", r.Key(), err)
	}
	if err := s.f.Sync(); err != nil {
		return false, fmt.Errorf("sync results file: %w", err)
	}

	s.keys[r.Key()] = struct{}{}
	s.results = append(s.results, r)
	return true, nil
}

// Has reports whether the cell has a stored result.
func (s *JSONLStore) Has(key models.CellKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.keys[key]
	return ok
}

// Results returns a copy of the stored results in file order.
func (s *JSONLStore) Results() ([]models.RunResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	out := make([]models.RunResult, len(s.results))
	copy(out, s.results)
	return out, nil
}

// Len returns the number of stored results.
func (s *JSONLStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.results)
}

// Path returns the results file path.
func (s *JSONLStore) Path() string {
	return s.path
}

// Close closes the results file. Closing twice is a no-op.
func (s *JSONLStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.f.Close()
}
