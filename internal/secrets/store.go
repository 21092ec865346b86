// Package secrets provides the secret-backed key-value store used for
// the path obfuscation key and API credentials.
//
// The default implementation keeps one file per secret under the
// codesync config directory with owner-only permissions, mirroring the
// handling of the config file itself. Hosts embedding the engine can
// substitute their own store (an editor's secret storage, a keychain)
// through the Store interface.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound indicates the requested secret does not exist.
var ErrNotFound = errors.New("secret not found")

// Store is a secret-backed key-value store.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Store(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// FileStore keeps secrets as 0600 files in a 0700 directory.
type FileStore struct {
	dir string
}

// NewFileStore creates a file-backed store rooted at dir, creating the
// directory with owner-only permissions if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create secrets directory %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

// Get returns the secret for key, or ErrNotFound.
func (s *FileStore) Get(_ context.Context, key string) (string, error) {
	content, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return "", fmt.Errorf("reading secret %s: %w", key, err)
	}
	return strings.TrimSpace(string(content)), nil
}

// Store writes the secret for key with owner-only permissions.
func (s *FileStore) Store(_ context.Context, key, value string) error {
	if err := os.WriteFile(s.path(key), []byte(value), 0600); err != nil {
		return fmt.Errorf("writing secret %s: %w", key, err)
	}
	return nil
}

// Delete removes the secret for key. Deleting a missing key is not an
// error.
func (s *FileStore) Delete(_ context.Context, key string) error {
	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting secret %s: %w", key, err)
	}
	return nil
}

// path maps a key to a filename, replacing separators so keys cannot
// escape the store directory.
func (s *FileStore) path(key string) string {
	name := strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(key)
	return filepath.Join(s.dir, name)
}
