// Package syncer implements the per-workspace-root sync client: remote
// codebase identity, diff-check throttling, diverging-file discovery,
// and artifact upload.
package syncer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/codesync/internal/backend"
	"github.com/fyrsmithlabs/codesync/internal/fsx"
	"github.com/fyrsmithlabs/codesync/internal/logging"
	"github.com/fyrsmithlabs/codesync/internal/merkle"
	"github.com/fyrsmithlabs/codesync/internal/obfuscate"
	"github.com/fyrsmithlabs/codesync/internal/state"
	"github.com/fyrsmithlabs/codesync/internal/vcs"
	"github.com/fyrsmithlabs/codesync/internal/walker"
)

// Backend is the remote API surface the sync client needs.
type Backend interface {
	CreateCodebase(ctx context.Context) (*backend.Codebase, error)
	CheckSync(ctx context.Context, codebaseID string, req *backend.SyncRequest) (*backend.SyncResponse, error)
	UploadArtifact(ctx context.Context, codebaseID string, artifact *backend.Artifact) error
}

// Workspace is the sync client for one workspace root.
//
// Instances are recreated wholesale on branch change or cache
// invalidation; identity fields are never mutated incrementally.
type Workspace struct {
	root       string
	backend    Backend
	store      *state.Store
	walker     *walker.Walker
	fs         fsx.FS
	obfuscator *obfuscate.Obfuscator
	throttle   time.Duration
	log        *logging.Logger

	codebaseID string
}

// NewWorkspace creates a sync client for root. Call Init before use.
func NewWorkspace(root string, be Backend, store *state.Store, w *walker.Walker, fsys fsx.FS, obf *obfuscate.Obfuscator, throttle time.Duration, log *logging.Logger) *Workspace {
	return &Workspace{
		root:       root,
		backend:    be,
		store:      store,
		walker:     w,
		fs:         fsys,
		obfuscator: obf,
		throttle:   throttle,
		log:        log.Named("syncer").With(zap.String("root", root)),
	}
}

// Root returns the workspace root path.
func (w *Workspace) Root() string { return w.root }

// CodebaseID returns the remote identity, or "" before a successful
// Init.
func (w *Workspace) CodebaseID() string { return w.codebaseID }

// Init loads the persisted codebase id for this root, creating one
// remotely if absent. On failure the client stays degraded: no codebase
// id means DivergingFiles yields nothing until a later Init succeeds.
func (w *Workspace) Init(ctx context.Context) error {
	var id string
	found, err := w.store.Get(state.CodebaseKey(w.root), &id)
	if err != nil {
		return fmt.Errorf("reading codebase id: %w", err)
	}
	if found && id != "" {
		w.codebaseID = id
		return nil
	}

	cb, err := w.backend.CreateCodebase(ctx)
	if err != nil {
		return fmt.Errorf("creating codebase: %w", err)
	}
	if err := w.store.Put(state.CodebaseKey(w.root), cb.ID); err != nil {
		return fmt.Errorf("persisting codebase id: %w", err)
	}
	w.codebaseID = cb.ID
	w.log.Info("registered codebase", zap.String("codebase_id", cb.ID))
	return nil
}

// canSync bounds diff-check frequency. A diff check may run when no
// prior status exists, the recorded status is stale, or the branch
// moved since it was recorded. Branch switches react immediately while
// an idle workspace checks at most once per throttle window.
func (w *Workspace) canSync(head string) bool {
	var status state.SyncStatus
	found, err := w.store.Get(state.SyncStatusKey(w.codebaseID), &status)
	if err != nil || !found {
		return true
	}
	if time.Since(status.Timestamp) > w.throttle {
		return true
	}
	return status.Hash != head
}

// DivergingFiles builds the workspace's Merkle tree, submits it for a
// diff check, and returns the file nodes whose content the backend is
// missing.
//
// When force is false and the throttle says the last check is fresh,
// no tree is built and no remote call is made. A fresh sync status is
// persisted after every diff check regardless of its result, so the
// throttle window resets even when nothing changed. Diverging hashes
// with no local match (already-deleted files) are skipped silently.
func (w *Workspace) DivergingFiles(ctx context.Context, force bool) ([]*merkle.Node, error) {
	if w.codebaseID == "" {
		w.log.Debug("no codebase id; skipping sync")
		return nil, nil
	}

	head := vcs.Head(w.root)
	if !force && !w.canSync(head) {
		return nil, nil
	}

	tree, err := w.walker.BuildTree(ctx, w.root)
	if err != nil {
		return nil, fmt.Errorf("building tree: %w", err)
	}

	resp, err := w.backend.CheckSync(ctx, w.codebaseID, &backend.SyncRequest{
		Tree:   tree.ToTreeNodes(),
		Branch: head,
	})
	if err != nil {
		return nil, fmt.Errorf("diff check: %w", err)
	}

	if err := w.store.Put(state.SyncStatusKey(w.codebaseID), state.SyncStatus{
		Hash:      head,
		Timestamp: time.Now(),
	}); err != nil {
		w.log.Warn("cannot persist sync status", zap.Error(err))
	}

	if resp.Synced {
		return nil, nil
	}

	leaves := tree.LeafHashes()
	out := make([]*merkle.Node, 0, len(resp.DivergingFiles))
	for _, hash := range resp.DivergingFiles {
		node, ok := leaves[hash]
		if !ok {
			w.log.Debug("diverging hash has no local file", zap.String("hash", hash))
			continue
		}
		out = append(out, node)
	}
	return out, nil
}

// UploadArtifact reads one diverging file, obfuscates its path, and
// uploads it. Any non-accepted response is a hard failure for this
// call; retry policy lives with the indexer's queue.
func (w *Workspace) UploadArtifact(ctx context.Context, node *merkle.Node) error {
	hash, err := node.Hash()
	if err != nil {
		return err
	}

	content, err := w.fs.ReadFile(ctx, node.Path())
	if err != nil {
		return fmt.Errorf("reading %s: %w", node.Path(), err)
	}

	obfuscated, err := w.obfuscator.Obfuscate(ctx, node.Path())
	if err != nil {
		return fmt.Errorf("obfuscating path: %w", err)
	}

	return w.backend.UploadArtifact(ctx, w.codebaseID, &backend.Artifact{
		ID:        hash,
		Extension: node.Extension(),
		Path:      obfuscated,
		Content:   string(content),
	})
}
