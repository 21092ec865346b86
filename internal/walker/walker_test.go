package walker

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/codesync/internal/fsx"
	"github.com/fyrsmithlabs/codesync/internal/ignore"
	"github.com/fyrsmithlabs/codesync/internal/logging"
	"github.com/fyrsmithlabs/codesync/internal/merkle"
)

// writeTree materializes files into root. Keys are slash-relative paths;
// parent directories are created as needed.
func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func newTestWalker(t *testing.T, cache *DirectoryCache) *Walker {
	t.Helper()
	if cache == nil {
		cache = NewDirectoryCache(time.Minute)
	}
	return NewWalker(fsx.OS{}, cache, ignore.NewResolver(nil), 4, logging.NewNop())
}

// childNames returns the sorted base names of a node's children.
func childNames(n *merkle.Node) []string {
	names := make([]string, 0, len(n.Children()))
	for _, c := range n.Children() {
		names = append(names, filepath.Base(c.Path()))
	}
	sort.Strings(names)
	return names
}

func findChild(n *merkle.Node, name string) *merkle.Node {
	for _, c := range n.Children() {
		if filepath.Base(c.Path()) == name {
			return c
		}
	}
	return nil
}

func TestBuildTreeRespectsGitignore(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"src/index.ts":              "export const x = 1\n",
		"src/utils.ts":              "export const y = 2\n",
		"package.json":              "{}\n",
		".gitignore":                "node_modules\n",
		"node_modules/lodash/x.js":  "module.exports = {}\n",
		"node_modules/package.json": "{}\n",
	})

	w := newTestWalker(t, nil)
	tree, err := w.BuildTree(context.Background(), root)
	require.NoError(t, err)

	// node_modules is dropped by the workspace .gitignore, and the
	// ignore files themselves never enter the tree.
	assert.Equal(t, []string{"package.json", "src"}, childNames(tree))

	src := findChild(tree, "src")
	require.NotNil(t, src)
	assert.Equal(t, []string{"index.ts", "utils.ts"}, childNames(src))

	// Everything reachable is hashed.
	_, err = tree.Hash()
	assert.NoError(t, err)
	assert.Len(t, tree.LeafHashes(), 3)
}

func TestBuildTreeLocalIgnorePrecedence(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"src/index.ts":    "a\n",
		"src/utils.ts":    "b\n",
		".gitignore":      "*.ts\n",
		".codesyncignore": "!src/\n!src/index.ts\n",
	})

	w := newTestWalker(t, nil)
	tree, err := w.BuildTree(context.Background(), root)
	require.NoError(t, err)

	src := findChild(tree, "src")
	require.NotNil(t, src)
	assert.Equal(t, []string{"index.ts"}, childNames(src))
}

func TestBuildTreeNestedGitignoreScoped(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a/.gitignore": "secret.ts\n",
		"a/secret.ts":  "hidden\n",
		"a/open.ts":    "visible\n",
		"b/secret.ts":  "visible too\n",
	})

	w := newTestWalker(t, nil)
	tree, err := w.BuildTree(context.Background(), root)
	require.NoError(t, err)

	a := findChild(tree, "a")
	require.NotNil(t, a)
	assert.Equal(t, []string{"open.ts"}, childNames(a))

	// a's .gitignore must not leak into the sibling directory.
	b := findChild(tree, "b")
	require.NotNil(t, b)
	assert.Equal(t, []string{"secret.ts"}, childNames(b))
}

func TestBuildTreeSkipsSymlinks(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink creation needs elevation on windows")
	}
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"real.ts": "content\n",
	})
	require.NoError(t, os.Symlink(
		filepath.Join(root, "real.ts"),
		filepath.Join(root, "link.ts"),
	))

	w := newTestWalker(t, nil)
	tree, err := w.BuildTree(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, []string{"real.ts"}, childNames(tree))
}

func TestBuildTreeExcludesBinaryFiles(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"main.ts": "text\n",
	})
	require.NoError(t, os.WriteFile(
		filepath.Join(root, "blob.dat"),
		[]byte{0x7f, 0x45, 0x4c, 0x46, 0x00, 0x01},
		0o644,
	))

	w := newTestWalker(t, nil)
	tree, err := w.BuildTree(context.Background(), root)
	require.NoError(t, err)

	// The binary file stays in the walked tree but is excluded from
	// hashes and exports.
	assert.Len(t, tree.LeafHashes(), 1)
	blob := findChild(tree, "blob.dat")
	require.NotNil(t, blob)
	assert.True(t, blob.Excluded())
}

func TestBuildTreeUsesCacheAcrossBuilds(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"src/index.ts": "a\n",
		"package.json": "{}\n",
	})

	cache := NewDirectoryCache(time.Minute)
	w := newTestWalker(t, cache)
	ctx := context.Background()

	first, err := w.BuildTree(ctx, root)
	require.NoError(t, err)
	_, missesAfterFirst := cache.Stats()

	second, err := w.BuildTree(ctx, root)
	require.NoError(t, err)

	hits, misses := cache.Stats()
	assert.Equal(t, missesAfterFirst, misses, "second build should be served from cache")
	assert.Positive(t, hits)

	firstHash, err := first.Hash()
	require.NoError(t, err)
	secondHash, err := second.Hash()
	require.NoError(t, err)
	assert.Equal(t, firstHash, secondHash)
}

func TestBuildTreeCanceledContext(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.ts": "x\n"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := newTestWalker(t, nil)
	_, err := w.BuildTree(ctx, root)
	assert.ErrorIs(t, err, context.Canceled)
}
