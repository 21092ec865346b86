// Package indexer orchestrates codebase synchronization across all
// workspace roots: it owns the sync clients, reacts to filesystem and
// version-control events, serializes sync cycles, and drives the upload
// queue.
package indexer

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/codesync/internal/config"
	"github.com/fyrsmithlabs/codesync/internal/fsx"
	"github.com/fyrsmithlabs/codesync/internal/ignore"
	"github.com/fyrsmithlabs/codesync/internal/logging"
	"github.com/fyrsmithlabs/codesync/internal/merkle"
	"github.com/fyrsmithlabs/codesync/internal/obfuscate"
	"github.com/fyrsmithlabs/codesync/internal/state"
	"github.com/fyrsmithlabs/codesync/internal/syncer"
	"github.com/fyrsmithlabs/codesync/internal/vcs"
	"github.com/fyrsmithlabs/codesync/internal/walker"
	"github.com/fyrsmithlabs/codesync/internal/watch"
)

// syncState is the cycle mutual-exclusion state.
type syncState int

const (
	stateIdle syncState = iota
	stateRunning
)

// Indexer drives synchronization for every configured workspace root.
//
// At most one sync cycle runs at a time across all roots. A trigger
// arriving while a cycle is running sets a dirty flag instead of
// queueing, guaranteeing exactly one follow-up cycle after the current
// one completes. A change made mid-cycle never waits for an unrelated
// future trigger.
//
// Uploads within a cycle are strictly serialized and rate limited to
// bound load on the backend.
type Indexer struct {
	cfg        config.SyncConfig
	backend    syncer.Backend
	store      *state.Store
	fs         fsx.FS
	cache      *walker.DirectoryCache
	resolver   *ignore.Resolver
	obfuscator *obfuscate.Obfuscator
	limiter    *rate.Limiter
	progress   Progress
	metrics    *Metrics
	log        *logging.Logger

	mu           sync.Mutex
	state        syncState
	dirty        bool
	workspaces   map[string]*syncer.Workspace
	repoBranches map[string]string

	detector    *vcs.Detector
	fileWatcher *watch.Watcher
}

// New creates an indexer. Call Init to subscribe to events and run the
// initial sync.
func New(cfg config.SyncConfig, be syncer.Backend, store *state.Store, fsys fsx.FS, obf *obfuscate.Obfuscator, progress Progress, log *logging.Logger) *Indexer {
	if progress == nil {
		progress = NewLogProgress(log)
	}
	interval := cfg.UploadRateInterval
	if interval <= 0 {
		interval = time.Minute
	}
	return &Indexer{
		cfg:        cfg,
		backend:    be,
		store:      store,
		fs:         fsys,
		cache:      walker.NewDirectoryCache(cfg.DirCacheTTL),
		resolver:   ignore.NewResolver(cfg.IgnorePatterns),
		obfuscator: obf,
		limiter: rate.NewLimiter(
			rate.Limit(float64(cfg.UploadRateLimit)/interval.Seconds()),
			cfg.UploadRateLimit,
		),
		progress:     progress,
		metrics:      NewMetrics(),
		log:          log.Named("indexer"),
		workspaces:   make(map[string]*syncer.Workspace),
		repoBranches: make(map[string]string),
	}
}

// Init builds the sync clients, subscribes to filesystem and
// version-control events, and runs an initial forced sync.
func (ix *Indexer) Init(ctx context.Context) error {
	ix.rebuildWorkspaces(ctx)

	detector, err := vcs.NewDetector(ix.cfg.Workspaces, ix.cfg.Debounce, ix.log)
	if err != nil {
		return err
	}
	ix.detector = detector
	detector.Start(ctx)
	go ix.watchVCSEvents(ctx)

	fileWatcher, err := watch.New(ix.cfg.Workspaces, ix, ix.log)
	if err != nil {
		detector.Stop()
		return err
	}
	ix.fileWatcher = fileWatcher
	fileWatcher.Start(ctx)

	ix.Sync(ctx, true)
	return nil
}

// Close stops the event subscriptions.
func (ix *Indexer) Close() {
	if ix.detector != nil {
		ix.detector.Stop()
	}
	if ix.fileWatcher != nil {
		ix.fileWatcher.Stop()
	}
}

// Cache exposes the directory cache so hosts can share it.
func (ix *Indexer) Cache() *walker.DirectoryCache {
	return ix.cache
}

// InvalidateCaches clears the directory cache unconditionally.
func (ix *Indexer) InvalidateCaches() {
	ix.cache.Invalidate()
}

// FileSaved implements watch.Handler.
func (ix *Indexer) FileSaved(string) {
	go ix.Sync(context.Background(), false)
}

// FileCreated implements watch.Handler.
func (ix *Indexer) FileCreated(string) {
	ix.InvalidateCaches()
	go ix.Sync(context.Background(), false)
}

// FileDeleted implements watch.Handler.
func (ix *Indexer) FileDeleted(string) {
	ix.InvalidateCaches()
	go ix.Sync(context.Background(), false)
}

// watchVCSEvents reacts to debounced git state changes: when any
// repository's HEAD moved since last observed, the sync clients are
// recreated wholesale and a forced sync runs.
func (ix *Indexer) watchVCSEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ix.detector.Events():
			if !ok {
				return
			}
			if !ix.headsMoved() {
				continue
			}
			ix.log.Info("git state changed; recreating sync clients")
			ix.rebuildWorkspaces(ctx)
			ix.Sync(ctx, true)
		}
	}
}

// headsMoved reports whether any repository's HEAD differs from the
// last observed value.
func (ix *Indexer) headsMoved() bool {
	ix.mu.Lock()
	branches := make(map[string]string, len(ix.repoBranches))
	for root, head := range ix.repoBranches {
		branches[root] = head
	}
	ix.mu.Unlock()

	for root, last := range branches {
		if vcs.Head(root) != last {
			return true
		}
	}
	return false
}

// rebuildWorkspaces recreates every sync client and refreshes the
// observed HEAD map. Init failures are logged; the affected client is
// kept degraded and retried on a later rebuild.
func (ix *Indexer) rebuildWorkspaces(ctx context.Context) {
	wsWalker := walker.NewWalker(ix.fs, ix.cache, ix.resolver, ix.cfg.WalkConcurrency, ix.log)

	workspaces := make(map[string]*syncer.Workspace, len(ix.cfg.Workspaces))
	branches := make(map[string]string, len(ix.cfg.Workspaces))
	for _, repo := range vcs.Discover(ix.cfg.Workspaces) {
		ws := syncer.NewWorkspace(repo.Root, ix.backend, ix.store, wsWalker, ix.fs, ix.obfuscator, ix.cfg.Throttle, ix.log)
		if err := ws.Init(ctx); err != nil {
			ix.log.Warn("workspace init failed; client degraded until next sync",
				zap.String("root", repo.Root), zap.Error(err))
		}
		workspaces[repo.Root] = ws
		branches[repo.Root] = repo.Head
	}

	ix.mu.Lock()
	ix.workspaces = workspaces
	ix.repoBranches = branches
	ix.mu.Unlock()
}

// Sync runs one sync pass. Errors are logged, never propagated: a sync
// failure must not crash the host or block future attempts.
func (ix *Indexer) Sync(ctx context.Context, force bool) {
	ix.mu.Lock()
	empty := len(ix.workspaces) == 0
	ix.mu.Unlock()
	if empty {
		// Lazy recovery from an Init that never ran or failed.
		ix.rebuildWorkspaces(ctx)
	}

	if err := ix.traverse(ctx, force); err != nil {
		ix.log.Error("sync cycle failed", zap.Error(err))
	}
}

// traverse enforces the at-most-one-cycle rule and runs cycles until
// no trigger arrived mid-cycle.
func (ix *Indexer) traverse(ctx context.Context, force bool) error {
	ix.mu.Lock()
	if ix.state == stateRunning {
		ix.dirty = true
		ix.mu.Unlock()
		return nil
	}
	ix.state = stateRunning
	ix.mu.Unlock()

	defer func() {
		ix.mu.Lock()
		ix.state = stateIdle
		ix.mu.Unlock()
	}()

	for {
		if err := ix.runCycle(ctx, force); err != nil {
			return err
		}
		ix.mu.Lock()
		if !ix.dirty {
			ix.mu.Unlock()
			return nil
		}
		ix.dirty = false
		ix.mu.Unlock()
		force = false
	}
}

// runCycle collects diverging files from every workspace in parallel,
// then drains the serialized upload queue.
func (ix *Indexer) runCycle(ctx context.Context, force bool) error {
	cycleID := uuid.NewString()
	log := ix.log.With(zap.String("cycle_id", cycleID))
	ix.metrics.SyncCyclesTotal.Inc()

	type item struct {
		ws   *syncer.Workspace
		node *merkle.Node
	}

	ix.mu.Lock()
	workspaces := make([]*syncer.Workspace, 0, len(ix.workspaces))
	for _, ws := range ix.workspaces {
		workspaces = append(workspaces, ws)
	}
	ix.mu.Unlock()

	var itemsMu sync.Mutex
	var queue []item

	g, gctx := errgroup.WithContext(ctx)
	for _, ws := range workspaces {
		g.Go(func() error {
			files, err := ws.DivergingFiles(gctx, force)
			if err != nil {
				// One workspace failing must not sink the cycle.
				log.Warn("diverging file discovery failed",
					zap.String("root", ws.Root()), zap.Error(err))
				return nil
			}
			itemsMu.Lock()
			for _, f := range files {
				queue = append(queue, item{ws: ws, node: f})
			}
			itemsMu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	ix.metrics.DivergingFiles.Set(float64(len(queue)))
	if len(queue) == 0 {
		return nil
	}

	total := len(queue)
	processed := 0
	attempts := make(map[string]int)

	log.Info("sync cycle found diverging files", zap.Int("count", total))
	ix.progress.Begin(total)
	defer ix.progress.End()

	// Concurrency 1 by design: uploads must not overwhelm the backend.
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		next := queue[0]
		queue = queue[1:]

		hash, err := next.node.Hash()
		if err != nil {
			log.Warn("unhashed node in upload queue", zap.Error(err))
			continue
		}

		if err := ix.limiter.Wait(ctx); err != nil {
			return err
		}

		taskCtx, cancel := context.WithTimeout(ctx, ix.cfg.UploadTimeout)
		err = next.ws.UploadArtifact(taskCtx, next.node)
		cancel()

		if err != nil {
			attempts[hash]++
			ix.metrics.UploadFailuresTotal.Inc()
			if attempts[hash] < ix.cfg.MaxUploadAttempts {
				queue = append(queue, next)
				continue
			}
			// Give up silently: the file still counts as processed for
			// progress, and the next cycle's diff check rediscovers it.
			ix.metrics.FilesDroppedTotal.Inc()
			log.Warn("dropping file after repeated upload failures",
				zap.String("hash", hash), zap.Int("attempts", attempts[hash]))
		} else {
			ix.metrics.FilesUploadedTotal.Inc()
		}

		processed++
		ix.progress.Update(processed, total)
	}

	hits, misses := ix.cache.Stats()
	ix.metrics.DirCacheHits.Set(float64(hits))
	ix.metrics.DirCacheMisses.Set(float64(misses))
	return nil
}
