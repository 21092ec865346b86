package vcs

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/codesync/internal/logging"
)

// Detector watches the git state of a set of workspace roots and emits
// one debounced notification per burst of changes.
//
// It watches each repository's HEAD file (branch switches, checkouts)
// and logs/HEAD (new commits). Raw filesystem events are collapsed:
// after a change, the detector waits for the debounce window to pass
// quietly before notifying, so a rebase or checkout touching HEAD many
// times produces a single event.
type Detector struct {
	watcher  *fsnotify.Watcher
	debounce time.Duration
	events   chan struct{}
	stop     chan struct{}
	log      *logging.Logger
}

// NewDetector creates a detector for the given workspace roots.
// Roots that are not git repositories are skipped.
func NewDetector(roots []string, debounce time.Duration, log *logging.Logger) (*Detector, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("initializing filesystem watcher: %w", err)
	}

	d := &Detector{
		watcher:  watcher,
		debounce: debounce,
		events:   make(chan struct{}, 1),
		stop:     make(chan struct{}),
		log:      log.Named("vcs"),
	}

	watched := 0
	for _, root := range roots {
		gitDir, err := DetectGitDir(root)
		if err != nil {
			d.log.Debug("root is not a git repository", zap.String("root", root))
			continue
		}
		if err := watcher.Add(filepath.Join(gitDir, "HEAD")); err != nil {
			d.log.Warn("cannot watch HEAD", zap.String("root", root), zap.Error(err))
			continue
		}
		// logs/HEAD may not exist in bare or fresh repos; best effort.
		_ = watcher.Add(filepath.Join(gitDir, "logs", "HEAD"))
		watched++
	}
	d.log.Info("watching repositories", zap.Int("count", watched))

	return d, nil
}

// Events returns the channel receiving debounced change notifications.
func (d *Detector) Events() <-chan struct{} {
	return d.events
}

// Start begins processing watcher events until ctx is done or Stop is
// called.
func (d *Detector) Start(ctx context.Context) {
	go d.run(ctx)
}

// Stop shuts the detector down and releases the watcher.
func (d *Detector) Stop() {
	select {
	case <-d.stop:
	default:
		close(d.stop)
		_ = d.watcher.Close()
	}
}

func (d *Detector) run(ctx context.Context) {
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.stop:
			return
		case event, ok := <-d.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			// Restart the quiet-period timer on every raw event.
			if timer == nil {
				timer = time.NewTimer(d.debounce)
				timerC = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(d.debounce)
			}
		case <-timerC:
			timer = nil
			timerC = nil
			select {
			case d.events <- struct{}{}:
			default:
				// A notification is already pending; coalesce.
			}
		case err, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
			d.log.Warn("watcher error", zap.Error(err))
		}
	}
}
