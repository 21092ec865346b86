// Package walker builds the workspace Merkle tree: a time-bounded
// directory cache plus an iterative depth-first tree builder.
package walker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fyrsmithlabs/codesync/internal/fsx"
	"github.com/fyrsmithlabs/codesync/internal/ignore"
)

// listingEntry holds one cached (or in-flight) directory listing.
// done is closed once entries/err are populated.
type listingEntry struct {
	created time.Time
	done    chan struct{}
	entries []fsx.DirEntry
	err     error
}

// rulesetEntry holds one cached (or in-flight) ignore ruleset.
type rulesetEntry struct {
	created time.Time
	done    chan struct{}
	rules   *ignore.Ruleset
}

// DirectoryCache caches directory listings and per-directory ignore
// rulesets for a bounded window, coalescing concurrent requests for the
// same directory onto one operation.
//
// Invalidation is deliberately coarse: any filesystem mutation clears
// everything. Precise invalidation under renames and moves is not worth
// the correctness risk for a cache this cheap to refill.
//
// The cache is an explicitly owned object, not ambient global state;
// the indexer holds the one instance the sync engine shares.
type DirectoryCache struct {
	ttl time.Duration

	mu       sync.Mutex
	listings map[string]*listingEntry
	rulesets map[string]*rulesetEntry

	hits   atomic.Int64
	misses atomic.Int64
}

// NewDirectoryCache creates a cache whose entries expire after ttl.
func NewDirectoryCache(ttl time.Duration) *DirectoryCache {
	return &DirectoryCache{
		ttl:      ttl,
		listings: make(map[string]*listingEntry),
		rulesets: make(map[string]*rulesetEntry),
	}
}

// Listing returns dir's entries from cache, or by calling list exactly
// once no matter how many goroutines ask concurrently.
//
// Failed listings are not cached; the next caller retries.
func (c *DirectoryCache) Listing(ctx context.Context, dir string, list func(context.Context) ([]fsx.DirEntry, error)) ([]fsx.DirEntry, error) {
	c.mu.Lock()
	if e, ok := c.listings[dir]; ok {
		select {
		case <-e.done:
			if e.err == nil && time.Since(e.created) < c.ttl {
				c.mu.Unlock()
				c.hits.Add(1)
				return e.entries, nil
			}
			// Expired; fall through and replace.
		default:
			// In flight: wait for the winner's result.
			c.mu.Unlock()
			c.hits.Add(1)
			select {
			case <-e.done:
				return e.entries, e.err
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	e := &listingEntry{created: time.Now(), done: make(chan struct{})}
	c.listings[dir] = e
	c.mu.Unlock()
	c.misses.Add(1)

	e.entries, e.err = list(ctx)
	close(e.done)

	if e.err != nil {
		c.mu.Lock()
		if c.listings[dir] == e {
			delete(c.listings, dir)
		}
		c.mu.Unlock()
	}
	return e.entries, e.err
}

// Ruleset returns dir's ignore ruleset from cache, or by calling
// resolve exactly once. Same coalescing contract as Listing.
func (c *DirectoryCache) Ruleset(ctx context.Context, dir string, resolve func(context.Context) *ignore.Ruleset) *ignore.Ruleset {
	c.mu.Lock()
	if e, ok := c.rulesets[dir]; ok {
		select {
		case <-e.done:
			if time.Since(e.created) < c.ttl {
				c.mu.Unlock()
				c.hits.Add(1)
				return e.rules
			}
		default:
			c.mu.Unlock()
			c.hits.Add(1)
			select {
			case <-e.done:
				return e.rules
			case <-ctx.Done():
				return nil
			}
		}
	}

	e := &rulesetEntry{created: time.Now(), done: make(chan struct{})}
	c.rulesets[dir] = e
	c.mu.Unlock()
	c.misses.Add(1)

	e.rules = resolve(ctx)
	close(e.done)
	return e.rules
}

// Invalidate clears both caches unconditionally. In-flight operations
// finish against their old entries and are not re-cached.
func (c *DirectoryCache) Invalidate() {
	c.mu.Lock()
	c.listings = make(map[string]*listingEntry)
	c.rulesets = make(map[string]*rulesetEntry)
	c.mu.Unlock()
}

// Stats returns cumulative hit and miss counts.
func (c *DirectoryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
