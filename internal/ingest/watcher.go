package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/clipforge/clipforge/internal/media"
	"github.com/clipforge/clipforge/pkg/logger"
	"github.com/clipforge/clipforge/pkg/worker"
	"github.com/rjeczalik/notify"
)

type fileIngester interface {
	IngestFile(ctx context.Context, path string) (*media.Asset, error)
}

type itemState int

const (
	idle itemState = iota
	ingesting
	failed
)

type queuedItem struct {
	path  string
	state itemState
	err   error
}

// Watcher monitors a drop folder and ingests any file which appears in
// it. Successfully ingested files are removed from the folder (the asset
// store now owns a copy); failed files are left in place and flagged.
type Watcher struct {
	*sync.Mutex

	ingester   fileIngester
	config     Config
	items      []*queuedItem
	workerPool *worker.WorkerPool
}

// NewWatcher validates that the configured watch path is an existing
// directory (creating it when missing) and prepares the worker pool
// sized to the configured parallelism.
func NewWatcher(config Config, ingester fileIngester) (*Watcher, error) {
	if info, err := os.Stat(config.WatchPath); err == nil {
		if !info.IsDir() {
			return nil, fmt.Errorf("watch path '%s' is not a directory", config.WatchPath)
		}
	} else if errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(config.WatchPath, os.ModeDir|os.ModePerm); err != nil {
			return nil, fmt.Errorf("watch path '%s' could not be created: %w", config.WatchPath, err)
		}
	} else {
		return nil, fmt.Errorf("watch path '%s' could not be accessed: %w", config.WatchPath, err)
	}

	watcher := &Watcher{
		Mutex:      &sync.Mutex{},
		ingester:   ingester,
		config:     config,
		items:      make([]*queuedItem, 0),
		workerPool: worker.NewWorkerPool(),
	}

	return watcher, nil
}

// Run blocks, watching the drop folder until the context is cancelled.
// Discovery happens on file system events, on a periodic force-sync
// tick, and once immediately at startup to catch files dropped while
// the process was down.
func (watcher *Watcher) Run(ctx context.Context) error {
	for i := 0; i < watcher.config.IngestionParallelism; i++ {
		label := fmt.Sprintf("ingest-worker-%d", i)
		watcher.workerPool.PushWorker(worker.NewWorker(label, func(w worker.Worker) (bool, error) {
			return watcher.performIngest(ctx)
		}))
	}
	if err := watcher.workerPool.Start(); err != nil {
		return err
	}
	defer watcher.workerPool.Close()

	fsNotifyChannel := make(chan notify.EventInfo, 16)
	if err := notify.Watch(watcher.config.WatchPath, fsNotifyChannel, notify.Create, notify.Rename); err != nil {
		return fmt.Errorf("failed to watch '%s': %w", watcher.config.WatchPath, err)
	}
	defer notify.Stop(fsNotifyChannel)

	forceSyncChannel := time.NewTicker(time.Second * time.Duration(watcher.config.ForceSyncSeconds))
	defer forceSyncChannel.Stop()

	watcher.discover()

	for {
		select {
		case <-fsNotifyChannel:
			watcher.discover()
		case <-forceSyncChannel.C:
			watcher.discover()
		case <-ctx.Done():
			return nil
		}
	}
}

// performIngest is the worker pool task. It claims the first idle item
// and runs it through the ingestion service; the file is only removed
// from the drop folder once ingestion fully succeeds.
func (watcher *Watcher) performIngest(ctx context.Context) (bool, error) {
	item := watcher.claimIdleItem()
	if item == nil {
		return false, nil
	}

	if _, err := watcher.ingester.IngestFile(ctx, item.path); err != nil {
		log.Emit(logger.ERROR, "Ingestion of dropped file '%s' failed: %v\n", item.path, err)
		watcher.Lock()
		item.state = failed
		item.err = err
		watcher.Unlock()

		return true, nil
	}

	if err := os.Remove(item.path); err != nil {
		log.Emit(logger.WARNING, "Failed to remove ingested file '%s' from watch folder: %v\n", item.path, err)
	}
	watcher.removeItem(item.path)

	return true, nil
}

// discover scans the watch path for files not already queued and queues
// them. Failed items stay in the queue so a force-sync doesn't retry
// them endlessly; removing the file from the folder clears the failure.
func (watcher *Watcher) discover() {
	watcher.Lock()
	defer watcher.Unlock()

	known := make(map[string]bool, len(watcher.items))
	for _, item := range watcher.items {
		known[item.path] = true
	}

	dirty := false
	err := filepath.WalkDir(watcher.config.WatchPath, func(path string, dir fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if dir.IsDir() || known[path] {
			return nil
		}

		watcher.items = append(watcher.items, &queuedItem{path: path, state: idle})
		dirty = true
		return nil
	})
	if err != nil {
		log.Emit(logger.ERROR, "Watch folder scan failed: %v\n", err)
		return
	}

	watcher.pruneMissing()
	if dirty {
		watcher.workerPool.WakeupWorkers()
	}
}

// pruneMissing drops queued items whose backing file no longer exists,
// including failed items the user has deleted from the folder.
// Caller must hold the mutex.
func (watcher *Watcher) pruneMissing() {
	kept := watcher.items[:0]
	for _, item := range watcher.items {
		if item.state == ingesting {
			kept = append(kept, item)
			continue
		}

		if _, err := os.Stat(item.path); err == nil {
			kept = append(kept, item)
		}
	}
	watcher.items = kept
}

func (watcher *Watcher) claimIdleItem() *queuedItem {
	watcher.Lock()
	defer watcher.Unlock()

	for _, item := range watcher.items {
		if item.state == idle {
			item.state = ingesting
			return item
		}
	}

	return nil
}

func (watcher *Watcher) removeItem(path string) {
	watcher.Lock()
	defer watcher.Unlock()

	for k, item := range watcher.items {
		if item.path == path {
			watcher.items = append(watcher.items[:k], watcher.items[k+1:]...)
			return
		}
	}
}
