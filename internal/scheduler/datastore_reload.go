package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/fsnotify/fsnotify"

	"github.com/MrSnakeDoc/marks/internal/datastore"
	"github.com/MrSnakeDoc/marks/internal/domain"
	"github.com/MrSnakeDoc/marks/internal/index"
	"github.com/MrSnakeDoc/marks/internal/logger"
	"github.com/MrSnakeDoc/marks/internal/metrics"
)

// watchDebounce coalesces the burst of events a single save produces.
const watchDebounce = 200 * time.Millisecond

// Mirror receives the collection after every successful reload.
type Mirror interface {
	ReplaceBookmarks(ctx context.Context, bookmarks []*domain.Bookmark) error
	FlushTagClouds(ctx context.Context) error
}

// DatastoreReloader keeps the memory index in line with the datastore file:
// on start, on every tick, on manual trigger and, when watching, on file changes.
type DatastoreReloader struct {
	store         *datastore.Store
	mirror        Mirror // optional
	index         *index.MemoryIndex
	logger        logger.Logger
	interval      time.Duration
	watch         bool
	stopCh        chan struct{}
	stopOnce      sync.Once
	manualTrigger chan struct{}
	fileEvents    chan struct{}

	mu      sync.Mutex
	lastSum uint64
	loaded  bool
}

// NewDatastoreReloader creates a new datastore reloader
func NewDatastoreReloader(
	store *datastore.Store,
	mirror Mirror,
	idx *index.MemoryIndex,
	log logger.Logger,
	interval time.Duration,
	watch bool,
	manualTrigger chan struct{},
) *DatastoreReloader {
	return &DatastoreReloader{
		store:         store,
		mirror:        mirror,
		index:         idx,
		logger:        log,
		interval:      interval,
		watch:         watch,
		stopCh:        make(chan struct{}),
		manualTrigger: manualTrigger,
		fileEvents:    make(chan struct{}, 1),
	}
}

// Start loads the datastore once, then keeps reloading in the background until
// ctx is done or Stop is called. A broken datastore at start is fatal.
func (r *DatastoreReloader) Start(ctx context.Context) error {
	if err := r.reload(ctx, "start"); err != nil {
		return fmt.Errorf("initial datastore load failed: %w", err)
	}

	var watcher *fsnotify.Watcher
	if r.watch {
		w, err := r.startWatcher(ctx)
		if err != nil {
			r.logger.Warn("datastore watch disabled", logger.Error(err))
		} else {
			watcher = w
		}
	}

	ticker := time.NewTicker(r.interval)
	go func() {
		defer ticker.Stop()
		if watcher != nil {
			defer func() { _ = watcher.Close() }()
		}
		for {
			select {
			case <-ticker.C:
				r.reloadLogged(ctx, "tick")
			case <-r.manualTrigger:
				r.logger.Info("manual datastore reload triggered")
				r.reloadLogged(ctx, "manual")
			case <-r.fileEvents:
				r.logger.Debug("datastore changed on disk")
				r.reloadLogged(ctx, "watch")
			case <-r.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the reloader
func (r *DatastoreReloader) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
}

// Reload reads the datastore and replaces the index content.
func (r *DatastoreReloader) Reload(ctx context.Context) error {
	return r.reload(ctx, "manual")
}

func (r *DatastoreReloader) reloadLogged(ctx context.Context, trigger string) {
	if err := r.reload(ctx, trigger); err != nil {
		r.logger.Error("failed to reload datastore",
			logger.String("trigger", trigger),
			logger.Error(err))
	}
}

func (r *DatastoreReloader) reload(ctx context.Context, trigger string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var loaded []*domain.Bookmark
	// the index is replaced inside View so a library write cannot land between
	// the read and the replace and then be undone by stale content
	err := r.store.View(func(data []byte, err error) error {
		if errors.Is(err, fs.ErrNotExist) {
			// nothing on disk yet: keep what redis may have hydrated
			r.logger.Warn("datastore file not found, keeping current index",
				logger.String("path", r.store.Path()),
				logger.Int("count", r.index.Count()))
			metrics.ReloadsTotal.WithLabelValues(trigger, "unchanged").Inc()
			return nil
		}
		if err != nil {
			metrics.ReloadsTotal.WithLabelValues(trigger, "error").Inc()
			return fmt.Errorf("failed to read datastore: %w", err)
		}

		sum := xxhash.Sum64(data)
		if r.loaded && sum == r.lastSum {
			metrics.ReloadsTotal.WithLabelValues(trigger, "unchanged").Inc()
			return nil
		}

		bookmarks, err := datastore.Decode(data)
		if err != nil {
			// the previous index stays in place
			metrics.ReloadsTotal.WithLabelValues(trigger, "error").Inc()
			return err
		}

		r.index.Replace(bookmarks)
		r.lastSum, r.loaded = sum, true
		loaded = bookmarks
		return nil
	})
	if err != nil || loaded == nil {
		return err
	}

	metrics.BookmarksLoaded.Set(float64(len(loaded)))
	metrics.ReloadsTotal.WithLabelValues(trigger, "ok").Inc()
	r.logger.Info("datastore loaded",
		logger.String("trigger", trigger),
		logger.Int("count", len(loaded)))

	// Update Redis store (best effort)
	if r.mirror != nil {
		if err := r.mirror.ReplaceBookmarks(ctx, loaded); err != nil {
			r.logger.Warn("failed to mirror bookmarks to redis", logger.Error(err))
		}
		if err := r.mirror.FlushTagClouds(ctx); err != nil {
			r.logger.Warn("failed to flush tag clouds", logger.Error(err))
		}
	}

	return nil
}

// startWatcher watches the datastore directory (the file itself is replaced on
// every save, which would drop a watch placed on it).
func (r *DatastoreReloader) startWatcher(ctx context.Context) (*fsnotify.Watcher, error) {
	path := filepath.Clean(r.store.Path())
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return nil, err
	}

	go func() {
		var debounce *time.Timer
		for {
			select {
			case <-ctx.Done():
				return
			case <-r.stopCh:
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != path {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(watchDebounce, r.notifyFileEvent)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				r.logger.Warn("datastore watcher error", logger.Error(err))
			}
		}
	}()

	r.logger.Info("watching datastore", logger.String("path", path))
	return w, nil
}

// notifyFileEvent never blocks: one pending event is enough.
func (r *DatastoreReloader) notifyFileEvent() {
	select {
	case r.fileEvents <- struct{}{}:
	default:
	}
}
