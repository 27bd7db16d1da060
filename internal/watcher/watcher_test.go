package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitEvent(t *testing.T, w *Watcher, timeout time.Duration) (Event, bool) {
	t.Helper()
	select {
	case ev, ok := <-w.Events():
		return ev, ok
	case <-time.After(timeout):
		return Event{}, false
	}
}

func TestNew_InvalidPattern(t *testing.T) {
	_, err := New(t.TempDir(), "[", time.Millisecond)
	require.Error(t, err)
}

func TestNew_MissingDir(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing"), "*.log", time.Millisecond)
	require.Error(t, err)
}

func TestMatches(t *testing.T) {
	w, err := New(t.TempDir(), "*.log", time.Millisecond)
	require.NoError(t, err)
	defer w.Stop()

	assert.True(t, w.Matches("/tmp/x/build-12.log"))
	assert.False(t, w.Matches("/tmp/x/build-12.txt"))
}

func TestMatches_Alternatives(t *testing.T) {
	w, err := New(t.TempDir(), "{*.log,console-*.txt}", time.Millisecond)
	require.NoError(t, err)
	defer w.Stop()

	assert.True(t, w.Matches("build-12.log"))
	assert.True(t, w.Matches("logs/console-12.txt"))
	assert.False(t, w.Matches("notes.txt"))
}

func TestWatcher_DebouncesWrites(t *testing.T) {
	dir := t.TempDir()
	w, err := New(dir, "*.log", 100*time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	path := filepath.Join(dir, "build.log")
	f, err := os.Create(path)
	require.NoError(t, err)
	for range 5 {
		_, err := f.WriteString("line\n")
		require.NoError(t, err)
		time.Sleep(10 * time.Millisecond)
	}
	require.NoError(t, f.Close())

	ev, ok := waitEvent(t, w, 2*time.Second)
	require.True(t, ok)
	assert.Equal(t, path, ev.Path)

	_, ok = waitEvent(t, w, 300*time.Millisecond)
	assert.False(t, ok, "expected a single event for a burst of writes")
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	w, err := New(dir, "*.log", 20*time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x\n"), 0644))

	_, ok := waitEvent(t, w, 200*time.Millisecond)
	assert.False(t, ok)
}

func TestWatcher_StopClosesEvents(t *testing.T) {
	w, err := New(t.TempDir(), "*.log", time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())

	_, ok := <-w.Events()
	assert.False(t, ok)
}

func TestWatcher_StopWithoutStart(t *testing.T) {
	w, err := New(t.TempDir(), "*.log", time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, w.Stop())

	_, ok := <-w.Events()
	assert.False(t, ok)
}
