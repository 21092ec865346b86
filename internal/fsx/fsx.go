// Package fsx abstracts filesystem access for the sync engine.
//
// The walker, ignore resolver, and sync clients all read the workspace
// through the FS interface so tests can substitute in-memory trees and
// the host editor can supply its own file provider.
package fsx

import (
	"context"
	"os"
)

// EntryType classifies a directory entry.
type EntryType int

const (
	// EntryFile is a regular file.
	EntryFile EntryType = iota

	// EntryDir is a directory.
	EntryDir

	// EntrySymlink is a symbolic link. The walker never follows these.
	EntrySymlink
)

// DirEntry is a single directory listing result.
type DirEntry struct {
	Name string
	Type EntryType
}

// FS reads files and lists directories.
//
// Paths are absolute. Implementations must be safe for concurrent use.
type FS interface {
	// ReadFile returns the full content of the file at path.
	ReadFile(ctx context.Context, path string) ([]byte, error)

	// ReadDir lists the immediate entries of the directory at path.
	ReadDir(ctx context.Context, path string) ([]DirEntry, error)
}

// OS is an FS backed by the local filesystem.
type OS struct{}

// ReadFile implements FS.
func (OS) ReadFile(_ context.Context, path string) ([]byte, error) {
	return os.ReadFile(path)
}

// ReadDir implements FS.
func (OS) ReadDir(_ context.Context, path string) ([]DirEntry, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}

	out := make([]DirEntry, 0, len(entries))
	for _, e := range entries {
		typ := EntryFile
		switch {
		case e.Type()&os.ModeSymlink != 0:
			typ = EntrySymlink
		case e.IsDir():
			typ = EntryDir
		}
		out = append(out, DirEntry{Name: e.Name(), Type: typ})
	}
	return out, nil
}
