// Package ignore merges built-in exclusion patterns, workspace ignore
// files, and Git LFS patterns into per-directory ignore predicates.
//
// Precedence within a directory, highest to lowest:
//
//  1. .codesyncignore in the directory
//  2. built-in exclusions plus configured global patterns
//  3. .gitignore and Git LFS patterns in the directory
//
// A .codesyncignore negation (for example "!src/index.ts") can therefore
// re-include a file that .gitignore or the built-ins would drop.
package ignore

import (
	"context"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"

	"github.com/fyrsmithlabs/codesync/internal/fsx"
)

const (
	// GitIgnoreFile is the standard VCS ignore file name.
	GitIgnoreFile = ".gitignore"

	// LocalIgnoreFile is the editor-specific ignore file name. It takes
	// precedence over both .gitignore and the built-in exclusions.
	LocalIgnoreFile = ".codesyncignore"

	// gitAttributesFile is scanned for Git LFS filter patterns.
	gitAttributesFile = ".gitattributes"
)

// Ruleset is the combined ignore predicate for one directory and below.
type Ruleset struct {
	matcher gitignore.Matcher
}

// Match reports whether relPath, relative to the ruleset's directory,
// is ignored. isDir must be true when relPath names a directory.
func (r *Ruleset) Match(relPath string, isDir bool) bool {
	if r == nil || r.matcher == nil {
		return false
	}
	return r.matcher.Match(strings.Split(relPath, "/"), isDir)
}

// Resolver produces per-directory rulesets.
//
// Directories without local ignore files share one default ruleset, so
// the common case costs nothing and caches cleanly.
type Resolver struct {
	defaults []gitignore.Pattern
	shared   *Ruleset
}

// NewResolver creates a resolver from the built-in exclusion set plus
// globalPatterns (gitignore syntax, applied to every workspace).
func NewResolver(globalPatterns []string) *Resolver {
	patterns := compile(DefaultPatterns())
	patterns = append(patterns, compile(globalPatterns)...)
	return &Resolver{
		defaults: patterns,
		shared:   &Ruleset{matcher: gitignore.NewMatcher(patterns)},
	}
}

// Resolve builds the ruleset for dir given its immediate entries.
//
// Unreadable ignore files are skipped rather than failing the walk.
func (r *Resolver) Resolve(ctx context.Context, fsys fsx.FS, dir string, entries []fsx.DirEntry) *Ruleset {
	var hasGitignore, hasLocal, hasAttributes bool
	for _, e := range entries {
		if e.Type != fsx.EntryFile {
			continue
		}
		switch e.Name {
		case GitIgnoreFile:
			hasGitignore = true
		case LocalIgnoreFile:
			hasLocal = true
		case gitAttributesFile:
			hasAttributes = true
		}
	}

	if !hasGitignore && !hasLocal && !hasAttributes {
		return r.shared
	}

	// Order is lowest precedence first: the matcher consults patterns in
	// reverse, so later entries win.
	var patterns []gitignore.Pattern
	if hasAttributes {
		patterns = append(patterns, compile(r.readLFSPatterns(ctx, fsys, dir))...)
	}
	if hasGitignore {
		patterns = append(patterns, compile(r.readIgnoreFile(ctx, fsys, dir, GitIgnoreFile))...)
	}
	patterns = append(patterns, r.defaults...)
	if hasLocal {
		patterns = append(patterns, compile(r.readIgnoreFile(ctx, fsys, dir, LocalIgnoreFile))...)
	}

	return &Ruleset{matcher: gitignore.NewMatcher(patterns)}
}

// readIgnoreFile reads a gitignore-style file and returns its patterns.
func (r *Resolver) readIgnoreFile(ctx context.Context, fsys fsx.FS, dir, name string) []string {
	content, err := fsys.ReadFile(ctx, joinPath(dir, name))
	if err != nil {
		return nil
	}
	return ParseLines(string(content))
}

// readLFSPatterns extracts Git LFS file patterns from .gitattributes.
// A line like "*.psd filter=lfs diff=lfs merge=lfs -text" contributes
// the pattern "*.psd".
func (r *Resolver) readLFSPatterns(ctx context.Context, fsys fsx.FS, dir string) []string {
	content, err := fsys.ReadFile(ctx, joinPath(dir, gitAttributesFile))
	if err != nil {
		return nil
	}

	var patterns []string
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !strings.Contains(line, "filter=lfs") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) > 0 {
			patterns = append(patterns, fields[0])
		}
	}
	return patterns
}

// ParseLines parses gitignore-style file content into patterns,
// dropping blank lines and comments. Negations are kept.
func ParseLines(content string) []string {
	var patterns []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	return patterns
}

func compile(patterns []string) []gitignore.Pattern {
	out := make([]gitignore.Pattern, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, gitignore.ParsePattern(p, nil))
	}
	return out
}

// joinPath joins with forward slashes; the engine uses slash-separated
// absolute paths throughout, matching the editor's URI form.
func joinPath(dir, name string) string {
	if strings.HasSuffix(dir, "/") {
		return dir + name
	}
	return dir + "/" + name
}
