package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestWatcherDebouncesChanges(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "alpha"), 0o755))

	changes := make(chan []string, 4)
	w := New(root, 100*time.Millisecond, func(_ context.Context, paths []string) {
		changes <- paths
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// give the watcher time to register its directories
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(root, "alpha", "SKILL.md"), []byte("a"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(root, "gamma"), 0o755))

	select {
	case paths := <-changes:
		assert.Contains(t, paths, filepath.Join(root, "alpha", "SKILL.md"))
		assert.Contains(t, paths, filepath.Join(root, "gamma"))
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}

	// new skill directories are watched too
	require.NoError(t, os.WriteFile(filepath.Join(root, "gamma", "SKILL.md"), []byte("g"), 0o644))
	select {
	case paths := <-changes:
		assert.Contains(t, paths, filepath.Join(root, "gamma", "SKILL.md"))
	case <-time.After(5 * time.Second):
		t.Fatal("change inside a new skill not reported")
	}

	cancel()
	require.NoError(t, <-done)
}

func TestWatcherCreatesRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "skills")
	w := New(root, time.Millisecond, func(context.Context, []string) {})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, w.Run(ctx))
	assert.DirExists(t, root)
}
