// Package history persists run reports as JSON files so past runs can be
// inspected after the process exits.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/agentrun-ai/agentrun/pkg/types"
)

var ErrNotFound = errors.New("not found")

// Record is one archived run.
type Record struct {
	RunID      string            `json:"run_id"`
	Task       string            `json:"task"`
	Model      string            `json:"model,omitempty"`
	WorkDir    string            `json:"workdir"`
	StartedAt  time.Time         `json:"started_at"`
	Result     *types.TaskResult `json:"result,omitempty"`
	Diffs      []types.FileDiff  `json:"diffs,omitempty"`
	Denials    int               `json:"denials"`
	NumTurns   int               `json:"num_turns,omitempty"`
	DurationMS int64             `json:"duration_ms"`
}

// Store is a file-based archive of run records. Writes are atomic and
// flock-guarded so concurrent agentrun processes sharing a data directory
// do not corrupt each other's records.
type Store struct {
	basePath string
	mu       sync.Mutex
	locks    map[string]*fileLock
}

// New creates a store rooted at basePath.
func New(basePath string) *Store {
	return &Store{
		basePath: basePath,
		locks:    make(map[string]*fileLock),
	}
}

func (s *Store) recordPath(runID string) string {
	return filepath.Join(s.basePath, runID+".json")
}

// Save writes one record.
func (s *Store) Save(rec *Record) error {
	if rec.RunID == "" {
		return fmt.Errorf("record has no run ID")
	}
	if err := os.MkdirAll(s.basePath, 0755); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}

	path := s.recordPath(rec.RunID)
	lock := s.getLock(path)
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer lock.Unlock()

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	// Write to temp file first, then rename (atomic operation)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename record: %w", err)
	}
	return nil
}

// Get loads one record by run ID.
func (s *Store) Get(runID string) (*Record, error) {
	data, err := os.ReadFile(s.recordPath(runID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read record: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record: %w", err)
	}
	return &rec, nil
}

// List returns all stored run IDs, newest first. ULID run IDs sort
// lexicographically by creation time.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to read history directory: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	sort.Sort(sort.Reverse(sort.StringSlice(ids)))
	return ids, nil
}

// Scan iterates over all records, newest first. Unreadable records are
// skipped.
func (s *Store) Scan(fn func(rec *Record) error) error {
	ids, err := s.List()
	if err != nil {
		return err
	}
	for _, id := range ids {
		rec, err := s.Get(id)
		if err != nil {
			continue
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}

// Latest returns the most recent record, or ErrNotFound when the store is
// empty.
func (s *Store) Latest() (*Record, error) {
	ids, err := s.List()
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if rec, err := s.Get(id); err == nil {
			return rec, nil
		}
	}
	return nil, ErrNotFound
}

// Delete removes a record. Deleting a missing record is not an error.
func (s *Store) Delete(runID string) error {
	path := s.recordPath(runID)
	lock := s.getLock(path)
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer lock.Unlock()

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	return nil
}

func (s *Store) getLock(path string) *fileLock {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[path]
	if !ok {
		lock = newFileLock(path)
		s.locks[path] = lock
	}
	return lock
}
