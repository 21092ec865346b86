package vcs

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/codesync/internal/logging"
)

// newRepoRoot fakes enough git layout for the detector: a .git
// directory with a HEAD file.
func newRepoRoot(t *testing.T) (root, headPath string) {
	t.Helper()
	root = t.TempDir()
	gitDir := filepath.Join(root, ".git")
	require.NoError(t, os.Mkdir(gitDir, 0o755))
	headPath = filepath.Join(gitDir, "HEAD")
	require.NoError(t, os.WriteFile(headPath, []byte("ref: refs/heads/main\n"), 0o644))
	return root, headPath
}

func TestDetectorEmitsOnHeadChange(t *testing.T) {
	root, headPath := newRepoRoot(t)

	d, err := NewDetector([]string{root}, 20*time.Millisecond, logging.NewNop())
	require.NoError(t, err)
	defer d.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	require.NoError(t, os.WriteFile(headPath, []byte("ref: refs/heads/feature\n"), 0o644))

	select {
	case <-d.Events():
	case <-time.After(2 * time.Second):
		t.Fatal("no event after HEAD change")
	}
}

func TestDetectorDebouncesBursts(t *testing.T) {
	root, headPath := newRepoRoot(t)

	d, err := NewDetector([]string{root}, 50*time.Millisecond, logging.NewNop())
	require.NoError(t, err)
	defer d.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	// A burst of writes inside the debounce window collapses into one
	// notification.
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(headPath, []byte("ref: refs/heads/main\n"), 0o644))
		time.Sleep(5 * time.Millisecond)
	}

	select {
	case <-d.Events():
	case <-time.After(2 * time.Second):
		t.Fatal("no event after burst")
	}

	// The quiet period already elapsed; no second event is pending.
	select {
	case <-d.Events():
		t.Fatal("burst produced more than one notification")
	case <-time.After(150 * time.Millisecond):
	}
}

func TestDetectorSkipsNonRepos(t *testing.T) {
	d, err := NewDetector([]string{t.TempDir()}, time.Millisecond, logging.NewNop())
	require.NoError(t, err)
	d.Stop()
}

func TestDetectorStopIdempotent(t *testing.T) {
	root, _ := newRepoRoot(t)
	d, err := NewDetector([]string{root}, time.Millisecond, logging.NewNop())
	require.NoError(t, err)

	d.Stop()
	d.Stop()
}
