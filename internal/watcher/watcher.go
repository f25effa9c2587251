// Package watcher re-ingests the data directory when files in it change.
package watcher

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/hyperjump/ragindex/internal/models"
	"github.com/hyperjump/ragindex/pkg/utils"
)

const defaultDebounce = 2 * time.Second

// Submitter schedules an ingestion run.
type Submitter interface {
	Submit(req models.IngestionRequest) (*models.Ingestion, error)
}

// Watcher watches a directory tree and, once changes settle, submits one ingestion
// per configured collection.
type Watcher struct {
	root         string
	collections  []string
	extensions   []string
	submitter    Submitter
	chunkSize    int
	chunkOverlap int
	debounce     time.Duration
	logger       *zap.Logger

	watcher  *fsnotify.Watcher
	mu       sync.Mutex
	timer    *time.Timer
	changed  map[string]bool
	done     chan struct{}
	started  bool
	stopOnce sync.Once
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithLogger sets a logger.
func WithLogger(l *zap.Logger) WatcherOption {
	return func(w *Watcher) { w.logger = l }
}

// WithDebounce sets how long the tree must be quiet before ingestion is submitted.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithExtensions limits which files trigger ingestion. Empty means all files.
func WithExtensions(exts ...string) WatcherOption {
	return func(w *Watcher) { w.extensions = exts }
}

// WithChunking sets the chunk parameters of submitted runs.
func WithChunking(size, overlap int) WatcherOption {
	return func(w *Watcher) {
		w.chunkSize = size
		w.chunkOverlap = overlap
	}
}

// NewWatcher creates a watcher over root that submits runs for collections to submitter.
func NewWatcher(root string, collections []string, submitter Submitter, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		root:         filepath.Clean(root),
		collections:  append([]string(nil), collections...),
		submitter:    submitter,
		chunkSize:    400,
		chunkOverlap: 40,
		debounce:     defaultDebounce,
		changed:      make(map[string]bool),
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = utils.OrNop(w.logger)
	return w
}

// Directory returns the watched root.
func (w *Watcher) Directory() string {
	return w.root
}

// Collections returns the collections re-ingested on change.
func (w *Watcher) Collections() []string {
	return append([]string(nil), w.collections...)
}

// Start begins watching. It runs until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.watcher = watcher
	if err := w.addTree(w.root); err != nil {
		_ = watcher.Close()
		w.watcher = nil
		return err
	}
	w.started = true
	w.logger.Info("watching data directory",
		zap.String("root", w.root),
		zap.Strings("collections", w.collections),
		zap.Strings("extensions", w.extensions),
		zap.Duration("debounce", w.debounce))
	go w.run(ctx)
	return nil
}

// addTree watches dir and every directory below it, skipping hidden ones.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return err
		}
		w.logger.Debug("watching directory", zap.String("path", path))
		return nil
	})
}

func (w *Watcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if err != nil {
				w.logger.Debug("watcher error", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	path := ev.Name
	if strings.HasPrefix(filepath.Base(path), ".") {
		return
	}
	w.logger.Debug("watcher event", zap.String("op", ev.Op.String()), zap.String("path", path))
	switch {
	case ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write):
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			w.mu.Lock()
			err := w.addTree(path)
			w.mu.Unlock()
			if err != nil && !errors.Is(err, fs.ErrNotExist) {
				w.logger.Warn("failed to watch new directory", zap.String("path", path), zap.Error(err))
			}
			w.schedule(path)
			return
		}
		if w.matchExtension(path) {
			w.schedule(path)
		}
	case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
		if w.matchExtension(path) {
			w.schedule(path)
		}
	}
}

// schedule records path and restarts the quiet-period timer.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.changed[path] = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flush)
}

func (w *Watcher) flush() {
	w.mu.Lock()
	changed := len(w.changed)
	w.changed = make(map[string]bool)
	w.timer = nil
	w.mu.Unlock()

	select {
	case <-w.done:
		return
	default:
	}
	w.logger.Info("data directory changed", zap.Int("paths", changed))
	w.Trigger()
}

// Trigger submits one ingestion per collection now.
func (w *Watcher) Trigger() {
	for _, name := range w.collections {
		rec, err := w.submitter.Submit(models.IngestionRequest{
			IndexName:    name,
			ChunkSize:    w.chunkSize,
			ChunkOverlap: w.chunkOverlap,
		})
		if err != nil {
			w.logger.Warn("failed to submit ingestion", zap.String("collection", name), zap.Error(err))
			continue
		}
		w.logger.Info("submitted ingestion", zap.String("collection", name), zap.String("task_id", rec.ID))
	}
}

func (w *Watcher) matchExtension(path string) bool {
	if len(w.extensions) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range w.extensions {
		if strings.ToLower(e) == ext {
			return true
		}
	}
	return false
}

// Stop stops the watcher and drops any pending trigger.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.mu.Lock()
		defer w.mu.Unlock()
		if w.timer != nil {
			w.timer.Stop()
			w.timer = nil
		}
		if w.watcher != nil {
			_ = w.watcher.Close()
		}
	})
}
