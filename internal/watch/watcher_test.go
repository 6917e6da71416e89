package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type restageRecorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *restageRecorder) restage(_ context.Context, paths []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, paths...)
	return nil
}

func (r *restageRecorder) seen(path string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.calls {
		if c == path {
			return true
		}
	}
	return false
}

func (r *restageRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func startWatcher(t *testing.T, root string, paths []string, rec *restageRecorder) {
	t.Helper()
	w, err := New(root, paths, rec.restage, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.NoError(t, w.Run(ctx))
	}()

	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestWatcherRestagesOnWrite(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "a.txt"), []byte("v1"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "other.txt"), []byte("v1"), 0644))

	rec := &restageRecorder{}
	startWatcher(t, root, []string{"sub/a.txt"}, rec)

	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "other.txt"), []byte("v2"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "a.txt"), []byte("v2"), 0644))

	require.Eventually(t, func() bool { return rec.seen("sub/a.txt") }, 2*time.Second, 20*time.Millisecond)
	assert.False(t, rec.seen("sub/other.txt"))
}

func TestWatcherIgnoresRemove(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "gone.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	rec := &restageRecorder{}
	startWatcher(t, root, []string{"gone.txt"}, rec)

	require.NoError(t, os.Remove(path))
	assert.Never(t, func() bool { return rec.count() > 0 }, 300*time.Millisecond, 20*time.Millisecond)
}

func TestNewRequiresPaths(t *testing.T) {
	_, err := New(t.TempDir(), nil, func(context.Context, []string) error { return nil }, nil)
	assert.Error(t, err)
}

func TestPaths(t *testing.T) {
	root := t.TempDir()
	w, err := New(root, []string{"b.txt", "a.txt"}, func(context.Context, []string) error { return nil }, nil)
	require.NoError(t, err)
	defer w.watcher.Close()

	assert.Equal(t, []string{"a.txt", "b.txt"}, w.Paths())
}
