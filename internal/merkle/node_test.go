package merkle

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/codesync/internal/fsx"
)

// memFS is an in-memory fsx.FS for hashing tests.
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

func contentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// buildFixture creates /ws with src/{index.ts,utils.ts} and
// package.json, attaching children in the given order.
func buildFixture(reversed bool) (*Node, memFS) {
	fsys := memFS{files: map[string][]byte{
		"/ws/src/index.ts": []byte("export const x = 1\n"),
		"/ws/src/utils.ts": []byte("export const y = 2\n"),
		"/ws/package.json": []byte("{}\n"),
	}}

	root := NewDirNode("/ws")
	src := NewDirNode("/ws/src")
	index := NewFileNode("/ws/src/index.ts")
	utils := NewFileNode("/ws/src/utils.ts")
	pkg := NewFileNode("/ws/package.json")

	if reversed {
		src.AddChild(utils)
		src.AddChild(index)
		root.AddChild(pkg)
		root.AddChild(src)
	} else {
		src.AddChild(index)
		src.AddChild(utils)
		root.AddChild(src)
		root.AddChild(pkg)
	}
	return root, fsys
}

func mustHash(t *testing.T, n *Node) string {
	t.Helper()
	h, err := n.Hash()
	require.NoError(t, err)
	return h
}

func TestHashBeforeComputeIsError(t *testing.T) {
	n := NewFileNode("/ws/a.ts")
	_, err := n.Hash()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrHashNotCalculated))
}

func TestDeterminism(t *testing.T) {
	a, fsys := buildFixture(false)
	b, _ := buildFixture(true)

	require.NoError(t, a.ComputeHashes(context.Background(), fsys))
	require.NoError(t, b.ComputeHashes(context.Background(), fsys))

	// Child insertion order must not influence any hash.
	assert.Equal(t, mustHash(t, a), mustHash(t, b))
}

func TestFileHashIsContentDigest(t *testing.T) {
	root, fsys := buildFixture(false)
	require.NoError(t, root.ComputeHashes(context.Background(), fsys))

	src := root.Children()[0]
	index := src.Children()[0]
	assert.Equal(t, contentHash("export const x = 1\n"), mustHash(t, index))
}

func TestTamperSensitivity(t *testing.T) {
	before, fsys := buildFixture(false)
	require.NoError(t, before.ComputeHashes(context.Background(), fsys))

	after, tampered := buildFixture(false)
	tampered.files["/ws/src/index.ts"] = []byte("export const x = 999\n")
	require.NoError(t, after.ComputeHashes(context.Background(), tampered))

	beforeSrc, afterSrc := before.Children()[0], after.Children()[0]
	beforeIndex, afterIndex := beforeSrc.Children()[0], afterSrc.Children()[0]
	beforeUtils, afterUtils := beforeSrc.Children()[1], afterSrc.Children()[1]

	assert.NotEqual(t, mustHash(t, beforeIndex), mustHash(t, afterIndex))
	assert.NotEqual(t, mustHash(t, beforeSrc), mustHash(t, afterSrc))
	assert.NotEqual(t, mustHash(t, before), mustHash(t, after))

	// Siblings are untouched.
	assert.Equal(t, mustHash(t, beforeUtils), mustHash(t, afterUtils))
}

func TestBinaryFileExcluded(t *testing.T) {
	fsys := memFS{files: map[string][]byte{
		"/ws/ok.ts":  []byte("fine\n"),
		"/ws/bin.ts": {0x00, 0x01, 0x02},
	}}
	root := NewDirNode("/ws")
	ok := NewFileNode("/ws/ok.ts")
	bin := NewFileNode("/ws/bin.ts")
	root.AddChild(ok)
	root.AddChild(bin)

	require.NoError(t, root.ComputeHashes(context.Background(), fsys))

	assert.False(t, ok.Excluded())
	assert.True(t, bin.Excluded())

	// Excluded nodes never appear in exports.
	for _, tn := range root.ToTreeNodes() {
		assert.NotEqual(t, "", tn.ID)
	}
	assert.Len(t, root.ToTreeNodes(), 2) // root + ok.ts
	assert.Len(t, root.LeafHashes(), 1)

	// The parent digest folds only non-excluded children: a tree that
	// never had bin.ts hashes identically.
	clean := NewDirNode("/ws")
	clean.AddChild(NewFileNode("/ws/ok.ts"))
	require.NoError(t, clean.ComputeHashes(context.Background(), fsys))
	assert.Equal(t, mustHash(t, clean), mustHash(t, root))

	// And the sibling's own hash is unaffected.
	assert.Equal(t, contentHash("fine\n"), mustHash(t, ok))
}

func TestUnreadableFileExcluded(t *testing.T) {
	fsys := memFS{files: map[string][]byte{}}
	root := NewDirNode("/ws")
	missing := NewFileNode("/ws/gone.ts")
	root.AddChild(missing)

	// The walk tolerates individual unreadable files.
	require.NoError(t, root.ComputeHashes(context.Background(), fsys))
	assert.True(t, missing.Excluded())
	assert.Empty(t, root.LeafHashes())
}

func TestToTreeNodesParentLinks(t *testing.T) {
	root, fsys := buildFixture(false)
	require.NoError(t, root.ComputeHashes(context.Background(), fsys))

	nodes := root.ToTreeNodes()
	require.Len(t, nodes, 5)

	rootHash := mustHash(t, root)
	byID := make(map[string]TreeNode, len(nodes))
	roots := 0
	for _, tn := range nodes {
		byID[tn.ID] = tn
		if tn.ParentID == "" {
			roots++
		}
	}
	assert.Equal(t, 1, roots)
	assert.Equal(t, "dir", byID[rootHash].Type)

	srcHash := mustHash(t, root.Children()[0])
	indexHash := mustHash(t, root.Children()[0].Children()[0])
	assert.Equal(t, srcHash, byID[indexHash].ParentID)
	assert.Equal(t, "file", byID[indexHash].Type)
}

func TestExtension(t *testing.T) {
	tests := []struct {
		name     string
		node     *Node
		expected string
	}{
		{"lowercase", NewFileNode("/ws/a.ts"), "ts"},
		{"uppercased", NewFileNode("/ws/A.TS"), "ts"},
		{"multi dot", NewFileNode("/ws/a.test.ts"), "ts"},
		{"extensionless", NewFileNode("/ws/Makefile"), ""},
		{"trailing dot", NewFileNode("/ws/weird."), ""},
		{"directory", NewDirNode("/ws/src.d"), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.node.Extension())
		})
	}
}
