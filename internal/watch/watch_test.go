package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func startWatcher(t *testing.T, debounce time.Duration) *Watcher {
	t.Helper()
	w, err := New(debounce)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go w.Run(ctx)
	return w
}

func waitChange(t *testing.T, w *Watcher) Change {
	t.Helper()
	select {
	case c := <-w.C:
		return c
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for change")
		return Change{}
	}
}

func TestReportsWriteToWatchedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.pdf")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))

	w := startWatcher(t, 20*time.Millisecond)
	require.NoError(t, w.Add(path))

	require.NoError(t, os.WriteFile(path, []byte("v2"), 0o644))

	c := waitChange(t, w)
	abs, _ := filepath.Abs(path)
	require.Equal(t, abs, c.Path)
}

func TestDebouncesBurstIntoOneChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.pdf")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))

	w := startWatcher(t, 100*time.Millisecond)
	require.NoError(t, w.Add(path))

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte{byte(i)}, 0o644))
		time.Sleep(10 * time.Millisecond)
	}

	waitChange(t, w)

	// The burst collapsed; no second change should follow.
	select {
	case c := <-w.C:
		t.Fatalf("unexpected second change: %+v", c)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestIgnoresUnwatchedSibling(t *testing.T) {
	dir := t.TempDir()
	watched := filepath.Join(dir, "doc.pdf")
	sibling := filepath.Join(dir, "other.pdf")
	require.NoError(t, os.WriteFile(watched, []byte("v1"), 0o644))
	require.NoError(t, os.WriteFile(sibling, []byte("v1"), 0o644))

	w := startWatcher(t, 20*time.Millisecond)
	require.NoError(t, w.Add(watched))

	require.NoError(t, os.WriteFile(sibling, []byte("v2"), 0o644))

	select {
	case c := <-w.C:
		t.Fatalf("unexpected change for sibling: %+v", c)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestRemoveStopsReports(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.pdf")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))

	w := startWatcher(t, 20*time.Millisecond)
	require.NoError(t, w.Add(path))
	w.Remove(path)

	require.NoError(t, os.WriteFile(path, []byte("v2"), 0o644))

	select {
	case c := <-w.C:
		t.Fatalf("unexpected change after remove: %+v", c)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestAtomicRenameSaveDetected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.pdf")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))

	w := startWatcher(t, 20*time.Millisecond)
	require.NoError(t, w.Add(path))

	tmp := filepath.Join(dir, "doc.pdf.tmp")
	require.NoError(t, os.WriteFile(tmp, []byte("v2"), 0o644))
	require.NoError(t, os.Rename(tmp, path))

	c := waitChange(t, w)
	abs, _ := filepath.Abs(path)
	require.Equal(t, abs, c.Path)
}
