package ignore

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/codesync/internal/fsx"
)

type memFS struct {
	files map[string][]byte
}

func (m memFS) ReadFile(_ context.Context, path string) ([]byte, error) {
	content, ok := m.files[path]
	if !ok {
		return nil, os.ErrNotExist
	}
	return content, nil
}

func (m memFS) ReadDir(_ context.Context, _ string) ([]fsx.DirEntry, error) {
	return nil, os.ErrNotExist
}

func TestParseLines(t *testing.T) {
	content := `# build output
dist/

*.log
!keep.log

node_modules
`
	patterns := ParseLines(content)
	assert.Equal(t, []string{"dist/", "*.log", "!keep.log", "node_modules"}, patterns)
}

func TestDefaultRuleset(t *testing.T) {
	r := NewResolver(nil)
	rules := r.Resolve(context.Background(), memFS{}, "/ws", nil)

	tests := []struct {
		name    string
		path    string
		isDir   bool
		ignored bool
	}{
		{"dependency dir", "node_modules", true, true},
		{"nested dependency dir", "app/node_modules", true, true},
		{"vcs metadata", ".git", true, true},
		{"disabled vcs metadata", ".git.disabled", true, true},
		{"image", "assets/logo.png", false, true},
		{"env file", ".env", false, true},
		{"archive", "release.tar.gz", false, true},
		{"database", "data/users.sqlite", false, true},
		{"log file", "debug.log", false, true},
		{"source file", "src/main.go", false, false},
		{"manifest", "package.json", false, false},
		{"source dir", "src", true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.ignored, rules.Match(tt.path, tt.isDir))
		})
	}
}

func TestGlobalPatterns(t *testing.T) {
	r := NewResolver([]string{"generated/"})
	rules := r.Resolve(context.Background(), memFS{}, "/ws", nil)

	assert.True(t, rules.Match("generated", true))
	assert.False(t, rules.Match("src", true))
}

func TestSharedRulesetReused(t *testing.T) {
	r := NewResolver(nil)
	// No local ignore files means the shared predicate comes back
	// unchanged, the cheap path the directory cache relies on.
	a := r.Resolve(context.Background(), memFS{}, "/ws/a", nil)
	b := r.Resolve(context.Background(), memFS{}, "/ws/b", []fsx.DirEntry{
		{Name: "main.go", Type: fsx.EntryFile},
	})
	assert.Same(t, a, b)
}

func TestLocalIgnoreOverridesGitignoreAndBuiltins(t *testing.T) {
	fsys := memFS{files: map[string][]byte{
		"/ws/.gitignore":      []byte("*.ts\n"),
		"/ws/.codesyncignore": []byte("!src/index.ts\n!assets/logo.png\n"),
	}}
	entries := []fsx.DirEntry{
		{Name: ".gitignore", Type: fsx.EntryFile},
		{Name: ".codesyncignore", Type: fsx.EntryFile},
	}

	r := NewResolver(nil)
	rules := r.Resolve(context.Background(), fsys, "/ws", entries)

	// .gitignore excludes *.ts; the local negation re-includes index.ts.
	assert.False(t, rules.Match("src/index.ts", false))
	assert.True(t, rules.Match("src/utils.ts", false))

	// The local ignore can even override a built-in exclusion.
	assert.False(t, rules.Match("assets/logo.png", false))
	assert.True(t, rules.Match("assets/photo.jpg", false))
}

func TestGitignoreCannotOverrideBuiltins(t *testing.T) {
	fsys := memFS{files: map[string][]byte{
		"/ws/.gitignore": []byte("!node_modules\n"),
	}}
	entries := []fsx.DirEntry{{Name: ".gitignore", Type: fsx.EntryFile}}

	r := NewResolver(nil)
	rules := r.Resolve(context.Background(), fsys, "/ws", entries)

	// Built-ins sit above .gitignore in precedence.
	assert.True(t, rules.Match("node_modules", true))
}

func TestLFSPatterns(t *testing.T) {
	fsys := memFS{files: map[string][]byte{
		"/ws/.gitattributes": []byte(strLines(
			"# large assets",
			"*.onnx filter=lfs diff=lfs merge=lfs -text",
			"models/** filter=lfs diff=lfs merge=lfs -text",
			"*.md text",
		)),
	}}
	entries := []fsx.DirEntry{{Name: ".gitattributes", Type: fsx.EntryFile}}

	r := NewResolver(nil)
	rules := r.Resolve(context.Background(), fsys, "/ws", entries)

	assert.True(t, rules.Match("weights.onnx", false))
	assert.True(t, rules.Match("models/base/config.bin", false))
	assert.False(t, rules.Match("README.md", false))
}

func TestUnreadableIgnoreFileSkipped(t *testing.T) {
	// Entry list says .gitignore exists but reading fails; the resolver
	// must degrade to the remaining patterns instead of failing.
	entries := []fsx.DirEntry{{Name: ".gitignore", Type: fsx.EntryFile}}

	r := NewResolver(nil)
	rules := r.Resolve(context.Background(), memFS{}, "/ws", entries)
	require.NotNil(t, rules)
	assert.True(t, rules.Match("node_modules", true))
	assert.False(t, rules.Match("src/main.go", false))
}

func strLines(lines ...string) string {
	out := ""
	for _, l := range lines {
		out += l + "\n"
	}
	return out
}
