// Package vcs provides version-control awareness for the sync engine:
// repository discovery, HEAD identification, and change detection.
//
// Supports both main repositories and git worktrees; each worktree is
// treated as an independent repository with its own git directory.
package vcs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	git "github.com/go-git/go-git/v5"
)

// ErrNotGitRepo indicates the directory is not a Git repository.
var ErrNotGitRepo = errors.New("not a git repository")

// Repository is one discovered repository root and its current HEAD.
type Repository struct {
	// Root is the workspace root directory.
	Root string

	// Head is the current HEAD commit hash, or "" when the root is not
	// a git repository.
	Head string
}

// Head returns the current HEAD commit hash for a workspace root, or
// "" when the root is not a git repository or HEAD cannot be resolved.
// Non-repos are a normal state (unversioned workspaces still sync), so
// this never returns an error for them.
func Head(root string) string {
	repo, err := git.PlainOpen(root)
	if err != nil {
		return ""
	}
	head, err := repo.Head()
	if err != nil {
		return ""
	}
	return head.Hash().String()
}

// Discover returns a Repository for every workspace root, with Head
// filled in where the root is a git repository.
func Discover(roots []string) []Repository {
	out := make([]Repository, 0, len(roots))
	for _, root := range roots {
		out = append(out, Repository{Root: root, Head: Head(root)})
	}
	return out
}

// DetectGitDir locates the git directory for a workspace root.
//
// For a main repository .git is a directory and is returned directly.
// For a worktree .git is a file containing "gitdir: <path>", and the
// referenced directory is returned.
func DetectGitDir(root string) (string, error) {
	gitPath := filepath.Join(root, ".git")

	info, err := os.Stat(gitPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrNotGitRepo, root)
		}
		return "", fmt.Errorf("stat .git: %w", err)
	}

	if info.IsDir() {
		return gitPath, nil
	}

	content, err := os.ReadFile(gitPath)
	if err != nil {
		return "", fmt.Errorf("reading .git file: %w", err)
	}
	gitDir := parseGitDir(string(content))
	if gitDir == "" {
		return "", fmt.Errorf("%w: invalid .git file format", ErrNotGitRepo)
	}
	return gitDir, nil
}

// parseGitDir extracts the gitdir path from a worktree's .git file.
// Expected format: "gitdir: /path/to/git/directory\n".
func parseGitDir(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "gitdir:") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(content, "gitdir:"))
}
