// Package watcher re-imports the seed catalog when files under the seed
// directory change.
package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/alucardeht/triad/internal/logger"
	"github.com/alucardeht/triad/internal/seed"
)

var log = logger.ForComponent("watcher")

const reloadTimeout = 30 * time.Second

type Reloader interface {
	Reload(ctx context.Context) error
}

type Watcher struct {
	cfg      Config
	root     string
	reloader Reloader

	fsWatcher   *fsnotify.Watcher
	fsWatcherMu sync.Mutex
	debouncer   *Debouncer

	mu      sync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}

	// reloadMu keeps at most one reload in flight.
	reloadMu sync.Mutex
}

func New(root string, cfg Config, reloader Reloader) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		cfg:       cfg,
		root:      filepath.Clean(root),
		reloader:  reloader,
		fsWatcher: fsWatcher,
	}
	w.debouncer = NewDebouncer(cfg.DebounceWindow, cfg.MaxBatchSize, w.onFlush)
	return w, nil
}

// Start watches the root recursively until ctx ends or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}

	if err := w.addTree(w.root); err != nil {
		return err
	}

	w.running = true
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	go w.handleEvents()

	log.Info("watching seed directory", "root", w.root)
	return nil
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			log.Debug("skipping unreadable path", "path", path, "error", err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && w.ignored(path) {
			return filepath.SkipDir
		}

		w.fsWatcherMu.Lock()
		err = w.fsWatcher.Add(path)
		w.fsWatcherMu.Unlock()
		if err != nil {
			log.Debug("failed to watch directory", "path", path, "error", err)
		}
		return nil
	})
}

func (w *Watcher) handleEvents() {
	defer close(w.done)
	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			log.Debug("file event", "path", event.Name, "op", event.Op.String())

			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() && !w.ignored(event.Name) {
					if err := w.addTree(event.Name); err != nil {
						log.Debug("failed to watch new directory", "path", event.Name, "error", err)
					}
					continue
				}
			}

			typ, ok := eventType(event.Op)
			if !ok || w.ignored(event.Name) {
				continue
			}
			w.debouncer.Add(FileEvent{Path: event.Name, Type: typ, Timestamp: time.Now()})

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			log.Warn("watcher error", "error", err)
		}
	}
}

func (w *Watcher) rel(path string) string {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

func (w *Watcher) ignored(path string) bool {
	if !w.cfg.WatchHidden && strings.HasPrefix(filepath.Base(path), ".") {
		return true
	}
	rel := w.rel(path)
	for _, pattern := range w.cfg.Ignore {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

// onFlush reloads once per batch that touches at least one seed file.
func (w *Watcher) onFlush(events []FileEvent) {
	relevant := 0
	for _, e := range events {
		if seed.Match(w.rel(e.Path), w.cfg.Include, w.cfg.Ignore) {
			relevant++
		}
	}
	if relevant == 0 {
		return
	}

	w.mu.Lock()
	parent := w.ctx
	w.mu.Unlock()
	if parent == nil || parent.Err() != nil {
		return
	}

	w.reloadMu.Lock()
	defer w.reloadMu.Unlock()

	ctx, cancel := context.WithTimeout(parent, reloadTimeout)
	defer cancel()

	start := time.Now()
	if err := w.reloader.Reload(ctx); err != nil {
		reloads.WithLabelValues("error").Inc()
		log.Warn("seed reload failed, keeping previous catalog", "changed", relevant, "error", err)
		return
	}
	reloads.WithLabelValues("ok").Inc()
	log.Info("seed catalog reloaded", "changed", relevant, "duration", time.Since(start))
}

// Stop flushes pending changes and releases the fsnotify watcher.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return w.closeFS()
	}
	w.running = false
	w.mu.Unlock()

	w.debouncer.Stop()
	w.cancel()
	<-w.done

	err := w.closeFS()
	log.Info("seed watcher stopped")
	return err
}

func (w *Watcher) closeFS() error {
	w.fsWatcherMu.Lock()
	defer w.fsWatcherMu.Unlock()
	err := w.fsWatcher.Close()
	if errors.Is(err, fsnotify.ErrClosed) {
		return nil
	}
	return err
}
