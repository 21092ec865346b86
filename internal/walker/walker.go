package walker

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/codesync/internal/fsx"
	"github.com/fyrsmithlabs/codesync/internal/ignore"
	"github.com/fyrsmithlabs/codesync/internal/logging"
	"github.com/fyrsmithlabs/codesync/internal/merkle"
)

// Walker builds fully hashed Merkle trees for workspace roots.
type Walker struct {
	fs          fsx.FS
	cache       *DirectoryCache
	resolver    *ignore.Resolver
	concurrency int
	log         *logging.Logger
}

// NewWalker creates a walker.
//
// concurrency caps concurrent entry processing per directory: enough to
// overlap I/O latency on wide directories without exhausting file
// descriptors.
func NewWalker(fsys fsx.FS, cache *DirectoryCache, resolver *ignore.Resolver, concurrency int, log *logging.Logger) *Walker {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Walker{
		fs:          fsys,
		cache:       cache,
		resolver:    resolver,
		concurrency: concurrency,
		log:         log.Named("walker"),
	}
}

// scope is one level of inherited ignore context: the directory the
// ruleset was written for, and the ruleset itself. Patterns written
// relative to a directory only apply beneath it, so matching strips
// the scope prefix first.
type scope struct {
	prefix string
	rules  *ignore.Ruleset
}

// dirFrame is one pending directory on the explicit traversal stack.
type dirFrame struct {
	node  *merkle.Node
	chain []scope
}

// BuildTree walks root depth-first and returns the fully hashed tree.
//
// The traversal is iterative with an explicit stack so recursion depth
// never scales with workspace depth. Individual unreadable directories
// are logged and skipped; unreadable or binary files become excluded
// nodes during the hash pass. The walk itself never aborts on one bad
// entry.
func (w *Walker) BuildTree(ctx context.Context, root string) (*merkle.Node, error) {
	root = strings.TrimSuffix(root, "/")
	rootNode := merkle.NewDirNode(root)

	stack := []*dirFrame{{node: rootNode}}
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		frame := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		dir := frame.node.Path()

		entries, err := w.cache.Listing(ctx, dir, func(ctx context.Context) ([]fsx.DirEntry, error) {
			return w.fs.ReadDir(ctx, dir)
		})
		if err != nil {
			w.log.Warn("skipping unreadable directory", zap.String("dir", dir), zap.Error(err))
			continue
		}

		rules := w.cache.Ruleset(ctx, dir, func(ctx context.Context) *ignore.Ruleset {
			return w.resolver.Resolve(ctx, w.fs, dir, entries)
		})

		chain := make([]scope, len(frame.chain), len(frame.chain)+1)
		copy(chain, frame.chain)
		chain = append(chain, scope{prefix: dir, rules: rules})

		var mu sync.Mutex
		var childDirs []*dirFrame

		g := new(errgroup.Group)
		g.SetLimit(w.concurrency)
		for _, entry := range entries {
			g.Go(func() error {
				// Symlinks are categorically skipped, not pattern-excluded.
				if entry.Type == fsx.EntrySymlink {
					return nil
				}

				path := dir + "/" + entry.Name
				isDir := entry.Type == fsx.EntryDir
				if ignored(chain, path, isDir) {
					return nil
				}

				mu.Lock()
				defer mu.Unlock()
				if isDir {
					child := merkle.NewDirNode(path)
					frame.node.AddChild(child)
					childDirs = append(childDirs, &dirFrame{node: child, chain: chain})
				} else {
					frame.node.AddChild(merkle.NewFileNode(path))
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		stack = append(stack, childDirs...)
	}

	if err := rootNode.ComputeHashes(ctx, w.fs); err != nil {
		return nil, err
	}
	return rootNode, nil
}

// ignored tests path against every ancestor's ruleset; a path is ignored
// if any ancestor's predicate matches it relative to that ancestor.
func ignored(chain []scope, path string, isDir bool) bool {
	for _, s := range chain {
		rel := strings.TrimPrefix(path, s.prefix)
		rel = strings.TrimPrefix(rel, "/")
		if s.rules.Match(rel, isDir) {
			return true
		}
	}
	return false
}
