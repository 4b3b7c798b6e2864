package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/clipforge/clipforge/internal/media"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

// stubIngester records every path it is asked to ingest and optionally
// fails each call with a fixed error.
type stubIngester struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (stub *stubIngester) IngestFile(_ context.Context, path string) (*media.Asset, error) {
	stub.mu.Lock()
	defer stub.mu.Unlock()

	stub.calls = append(stub.calls, path)
	if stub.err != nil {
		return nil, stub.err
	}

	return &media.Asset{ID: uuid.New()}, nil
}

func dropFile(t *testing.T, dir string, name string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	assert.Nil(t, os.WriteFile(path, []byte("dropped bytes"), 0o644))
	return path
}

func newTestWatcher(t *testing.T, ingester fileIngester) (*Watcher, string) {
	t.Helper()

	watchDir := t.TempDir()
	watcher, err := NewWatcher(Config{WatchPath: watchDir, ForceSyncSeconds: 100, IngestionParallelism: 1}, ingester)
	assert.Nil(t, err)

	return watcher, watchDir
}

func TestWatcherDiscover_QueuesDroppedFilesExactlyOnce(t *testing.T) {
	watcher, watchDir := newTestWatcher(t, &stubIngester{})
	first := dropFile(t, watchDir, "first.mp4")
	second := dropFile(t, watchDir, "second.mp4")

	// Repeated scans (fs event bursts, force-sync ticks) must not queue
	// a path twice.
	watcher.discover()
	watcher.discover()
	watcher.discover()
	assert.Len(t, watcher.items, 2)

	claimed := map[string]bool{}
	for item := watcher.claimIdleItem(); item != nil; item = watcher.claimIdleItem() {
		assert.False(t, claimed[item.path], "path %s claimed twice", item.path)
		claimed[item.path] = true
	}

	assert.Len(t, claimed, 2)
	assert.True(t, claimed[first])
	assert.True(t, claimed[second])
}

func TestWatcherPerformIngest_SuccessRemovesDroppedFile(t *testing.T) {
	stub := &stubIngester{}
	watcher, watchDir := newTestWatcher(t, stub)
	path := dropFile(t, watchDir, "clip.mp4")

	watcher.discover()
	didWork, err := watcher.performIngest(context.Background())
	assert.True(t, didWork)
	assert.Nil(t, err)

	assert.Equal(t, []string{path}, stub.calls)
	assert.NoFileExists(t, path, "an ingested file must leave the drop folder")
	assert.Empty(t, watcher.items)

	didWork, err = watcher.performIngest(context.Background())
	assert.False(t, didWork)
	assert.Nil(t, err)
}

func TestWatcherPerformIngest_FailedFileRetainedWithoutRetry(t *testing.T) {
	stub := &stubIngester{err: errors.New("probe blew up")}
	watcher, watchDir := newTestWatcher(t, stub)
	path := dropFile(t, watchDir, "broken.mp4")

	watcher.discover()
	didWork, err := watcher.performIngest(context.Background())
	assert.True(t, didWork)
	assert.Nil(t, err)

	// The file stays in the folder for inspection and the item is
	// flagged, not removed.
	assert.FileExists(t, path)
	assert.Len(t, watcher.items, 1)
	assert.Equal(t, failed, watcher.items[0].state)

	// Re-scans neither duplicate the entry nor offer it up for another
	// attempt.
	watcher.discover()
	assert.Len(t, watcher.items, 1)
	assert.Nil(t, watcher.claimIdleItem())
	assert.Len(t, stub.calls, 1)
}

func TestWatcherDiscover_PrunesDeletedFailedItems(t *testing.T) {
	stub := &stubIngester{err: errors.New("probe blew up")}
	watcher, watchDir := newTestWatcher(t, stub)
	path := dropFile(t, watchDir, "broken.mp4")

	watcher.discover()
	_, _ = watcher.performIngest(context.Background())
	assert.Len(t, watcher.items, 1)

	// Deleting the file from the folder clears the failure on the next
	// scan, so a corrected copy under the same name can be re-queued.
	assert.Nil(t, os.Remove(path))
	watcher.discover()
	assert.Empty(t, watcher.items)

	dropFile(t, watchDir, "broken.mp4")
	watcher.discover()
	assert.Len(t, watcher.items, 1)
	assert.Equal(t, idle, watcher.items[0].state)
}
