// Package state persists workspace-scoped sync records: codebase
// identities and per-codebase sync status. Values are JSON-serializable
// and written atomically, so a crash mid-write never corrupts the file.
//
// The store assumes a single editor process per workspace; there is no
// cross-process locking.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// SyncStatus records the outcome of the last diff check for a codebase.
type SyncStatus struct {
	// Hash is the branch/commit identifier at the time of the check.
	Hash string `json:"hash"`

	// Timestamp is when the check ran.
	Timestamp time.Time `json:"ts"`
}

// CodebaseKey returns the store key holding a workspace's codebase id.
func CodebaseKey(workspacePath string) string {
	return "codebase_key_" + workspacePath
}

// SyncStatusKey returns the store key holding a codebase's sync status.
func SyncStatusKey(codebaseID string) string {
	return fmt.Sprintf("codebase_%s_sync_status", codebaseID)
}

// Store is a JSON-file-backed key-value store.
type Store struct {
	path string

	mu     sync.Mutex
	values map[string]json.RawMessage
}

// Open loads the store at path, creating an empty one if the file does
// not exist.
func Open(path string) (*Store, error) {
	s := &Store{path: path, values: make(map[string]json.RawMessage)}

	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("reading state file: %w", err)
	}
	if err := json.Unmarshal(content, &s.values); err != nil {
		return nil, fmt.Errorf("parsing state file %s: %w", path, err)
	}
	return s, nil
}

// Get unmarshals the value for key into v, reporting whether the key
// exists.
func (s *Store) Get(key string, v any) (bool, error) {
	s.mu.Lock()
	raw, ok := s.values[key]
	s.mu.Unlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("decoding state value %s: %w", key, err)
	}
	return true, nil
}

// Put stores v under key and persists the whole store.
func (s *Store) Put(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding state value %s: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = raw
	return s.flushLocked()
}

// flushLocked writes the store via temp file + rename so readers never
// observe a partial write.
func (s *Store) flushLocked() error {
	content, err := json.MarshalIndent(s.values, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding state file: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".state-*")
	if err != nil {
		return fmt.Errorf("creating temp state file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing state file: %w", err)
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("setting state file permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing state file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing state file: %w", err)
	}
	return nil
}
