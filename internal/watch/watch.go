// Package watch reports files dropped into the inbox once they stop changing.
//
// Only direct children of the inbox are reported. Dotfiles are ignored, which
// also hides the partial copies written by cross-device relocations. A path is
// reported after no event touched it for the settle window, so a file that is
// still being copied in is not picked up half-written.
//
// Settled paths are handed to the emit func from a separate goroutine, so a
// slow or blocking consumer never stalls the fsnotify event loop.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"tracksync/internal/logging"
)

// EmitFunc receives settled inbox paths.
type EmitFunc func(path string)

// Watcher watches one directory.
type Watcher struct {
	dir    string
	settle time.Duration
	emit   EmitFunc
	logger *slog.Logger

	fsw *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]time.Time
	ready   []string
	queued  map[string]struct{}
	wake    chan struct{}
	running bool
	cancel  context.CancelFunc
	loops   sync.WaitGroup
}

// New creates a Watcher for dir. Call Start to begin watching.
func New(dir string, settle time.Duration, emit EmitFunc, logger *slog.Logger) (*Watcher, error) {
	if emit == nil {
		return nil, errors.New("watch: emit func is required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve inbox: %w", err)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	return &Watcher{
		dir:     filepath.Clean(abs),
		settle:  settle,
		emit:    emit,
		logger:  logging.NewComponentLogger(logger, "watcher"),
		fsw:     fsw,
		pending: make(map[string]time.Time),
		queued:  make(map[string]struct{}),
		wake:    make(chan struct{}, 1),
	}, nil
}

// Dir returns the watched directory.
func (w *Watcher) Dir() string {
	return w.dir
}

// Start arms the watcher. It does not block.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return errors.New("watcher already running")
	}
	if err := w.fsw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.running = true
	w.loops.Go(func() { w.run(runCtx) })
	w.loops.Go(func() { w.dispatch(runCtx) })
	w.logger.Info("watching inbox",
		logging.String(logging.FieldEventType, "watcher_started"),
		logging.String("inbox", w.dir),
		logging.Duration("settle", w.settle),
	)
	return nil
}

// Stop halts the watcher and releases the fsnotify handle. It waits for an
// emit call in progress to return. Pending and undelivered paths are dropped;
// the next initial scan finds them again.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		_ = w.fsw.Close()
		return
	}
	w.running = false
	cancel := w.cancel
	w.mu.Unlock()

	cancel()
	w.loops.Wait()
	if err := w.fsw.Close(); err != nil {
		w.logger.Warn("closing fsnotify watcher failed", logging.Error(err))
	}
}

// Scan lists the entries currently sitting in the inbox, sorted by name.
func (w *Watcher) Scan() ([]string, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return nil, fmt.Errorf("scan inbox: %w", err)
	}
	paths := make([]string, 0, len(entries))
	for _, entry := range entries {
		if ignored(entry.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(w.dir, entry.Name()))
	}
	slices.Sort(paths)
	return paths, nil
}

func (w *Watcher) run(ctx context.Context) {
	interval := max(min(w.settle/2, 100*time.Millisecond), 5*time.Millisecond)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logging.WarnWithContext(w.logger, "inbox watcher error", "watcher_error",
				logging.Error(err),
				logging.String(logging.FieldImpact, "some drops may be missed until the next restart scan"),
			)
		case now := <-ticker.C:
			w.enqueue(w.settled(now))
		}
	}
}

// enqueue appends settled paths to the delivery backlog, skipping paths that
// are already waiting there.
func (w *Watcher) enqueue(paths []string) {
	if len(paths) == 0 {
		return
	}
	w.mu.Lock()
	for _, path := range paths {
		if _, ok := w.queued[path]; ok {
			continue
		}
		w.queued[path] = struct{}{}
		w.ready = append(w.ready, path)
	}
	w.mu.Unlock()
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *Watcher) dispatch(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.wake:
		}
		for {
			path, ok := w.nextReady()
			if !ok {
				break
			}
			if ctx.Err() != nil {
				return
			}
			w.emit(path)
		}
	}
}

func (w *Watcher) nextReady() (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.ready) == 0 {
		return "", false
	}
	path := w.ready[0]
	w.ready = w.ready[1:]
	delete(w.queued, path)
	return path, true
}

// backlog reports how many settled paths wait for delivery.
func (w *Watcher) backlog() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.ready)
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if filepath.Dir(event.Name) != w.dir || ignored(filepath.Base(event.Name)) {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		// The name no longer refers to anything in the inbox.
		delete(w.pending, event.Name)
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write), event.Has(fsnotify.Chmod):
		w.pending[event.Name] = time.Now()
	}
}

func (w *Watcher) settled(now time.Time) []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	var ready []string
	for path, last := range w.pending {
		if now.Sub(last) < w.settle {
			continue
		}
		delete(w.pending, path)
		if _, err := os.Lstat(path); err != nil {
			continue
		}
		ready = append(ready, path)
	}
	slices.Sort(ready)
	return ready
}

func ignored(name string) bool {
	return name == "" || strings.HasPrefix(name, ".")
}
