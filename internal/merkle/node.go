// Package merkle implements the content-addressed hash tree built over a
// workspace's file tree.
//
// Every non-ignored filesystem entry becomes a Node. File hashes digest
// the file's bytes; directory hashes digest the directory's path plus its
// sorted non-excluded children's (path, hash) pairs, so any change to any
// descendant changes every ancestor's hash up to the root.
package merkle

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/fyrsmithlabs/codesync/internal/fsx"
)

// ErrHashNotCalculated is returned by Hash before ComputeHashes ran.
var ErrHashNotCalculated = errors.New("hash not calculated")

// Kind distinguishes file and directory nodes.
type Kind int

const (
	// KindFile is a regular file node. File nodes have no children.
	KindFile Kind = iota

	// KindDir is a directory node.
	KindDir
)

// Node is one entry of the Merkle tree.
//
// Nodes are built by the walker, hashed once in a ComputeHashes pass,
// and discarded after the sync cycle. Identity across cycles is purely
// by content hash.
type Node struct {
	path     string
	kind     Kind
	children []*Node
	hash     string
	hashed   bool
	excluded bool
}

// NewFileNode creates an unhashed file node.
func NewFileNode(path string) *Node {
	return &Node{path: path, kind: KindFile}
}

// NewDirNode creates an unhashed directory node.
func NewDirNode(path string) *Node {
	return &Node{path: path, kind: KindDir}
}

// Path returns the node's absolute path.
func (n *Node) Path() string { return n.path }

// Kind returns the node kind.
func (n *Node) Kind() Kind { return n.kind }

// Children returns the node's children. Files have none.
func (n *Node) Children() []*Node { return n.children }

// Excluded reports whether the node was marked unhashable (binary or
// unreadable content). Excluded nodes stay in the tree for traversal but
// are pruned from every export.
func (n *Node) Excluded() bool { return n.excluded }

// AddChild attaches a child to a directory node.
func (n *Node) AddChild(c *Node) {
	n.children = append(n.children, c)
}

// Hash returns the computed content hash.
func (n *Node) Hash() (string, error) {
	if !n.hashed {
		return "", fmt.Errorf("%w: %s", ErrHashNotCalculated, n.path)
	}
	return n.hash, nil
}

// Extension returns the lowercase, dot-stripped file extension, or ""
// for directories and extensionless files.
func (n *Node) Extension() string {
	if n.kind != KindFile {
		return ""
	}
	base := n.path
	if i := strings.LastIndexByte(base, '/'); i >= 0 {
		base = base[i+1:]
	}
	i := strings.LastIndexByte(base, '.')
	if i < 0 || i == len(base)-1 {
		return ""
	}
	return strings.ToLower(base[i+1:])
}

// ComputeHashes fills in hashes bottom-up for the whole tree.
//
// File content is read through fsys. An unreadable or binary file marks
// its node excluded instead of failing; a directory's hash folds only
// its non-excluded children, so an excluded file still changes its
// parent's hash (by vanishing from it) but never its siblings'.
//
// Uses an explicit stack: hashing depth must not scale with workspace
// directory depth.
func (n *Node) ComputeHashes(ctx context.Context, fsys fsx.FS) error {
	type frame struct {
		node     *Node
		expanded bool
	}

	stack := []*frame{{node: n}}
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		top := stack[len(stack)-1]

		if top.node.kind == KindFile {
			stack = stack[:len(stack)-1]
			hashFile(ctx, fsys, top.node)
			continue
		}

		if !top.expanded {
			top.expanded = true
			for _, c := range top.node.children {
				stack = append(stack, &frame{node: c})
			}
			continue
		}

		stack = stack[:len(stack)-1]
		hashDir(top.node)
	}
	return nil
}

// hashFile digests a file's content, or marks the node excluded when the
// content cannot be meaningfully hashed.
func hashFile(ctx context.Context, fsys fsx.FS, n *Node) {
	content, err := fsys.ReadFile(ctx, n.path)
	if err != nil || isBinary(content) {
		n.excluded = true
		return
	}
	sum := sha256.Sum256(content)
	n.hash = hex.EncodeToString(sum[:])
	n.hashed = true
}

// hashDir digests a directory's own path plus its sorted non-excluded
// children's (path, hash) pairs. Children are sorted so the digest does
// not depend on discovery order.
func hashDir(n *Node) {
	children := make([]*Node, 0, len(n.children))
	for _, c := range n.children {
		if !c.excluded {
			children = append(children, c)
		}
	}
	sort.Slice(children, func(i, j int) bool {
		return children[i].path < children[j].path
	})

	h := sha256.New()
	h.Write([]byte(n.path))
	for _, c := range children {
		h.Write([]byte(c.path))
		h.Write([]byte(c.hash))
	}
	n.hash = hex.EncodeToString(h.Sum(nil))
	n.hashed = true
}

// isBinary sniffs actual content rather than trusting the extension:
// a NUL byte in the first 8KB or invalid UTF-8 marks the file binary.
func isBinary(content []byte) bool {
	probe := content
	if len(probe) > 8192 {
		probe = probe[:8192]
	}
	for _, b := range probe {
		if b == 0 {
			return true
		}
	}
	return !utf8.Valid(content)
}
