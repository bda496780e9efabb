// Package watcher turns file system activity into debounced reindex
// triggers.
//
// Change detection is snapshot-diff based, so the watcher does not need
// per-file event fidelity: any burst of activity under the root
// coalesces into a single trigger after a quiet window, and the next
// indexing pass works out what actually changed.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounceWindow is the quiet period before a trigger fires.
const DefaultDebounceWindow = 500 * time.Millisecond

// Options configures the watcher.
type Options struct {
	// DebounceWindow is how long activity must be quiet before a
	// trigger is emitted. Zero means DefaultDebounceWindow.
	DebounceWindow time.Duration

	// IgnoreDirs are directory base names never descended into.
	IgnoreDirs []string
}

// Watcher watches a directory tree recursively and emits one trigger per
// burst of changes.
type Watcher struct {
	opts    Options
	ignore  map[string]struct{}
	fsw     *fsnotify.Watcher
	trigger chan struct{}
	errs    chan error

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

// New creates a watcher. Call Start to begin watching.
func New(opts Options) (*Watcher, error) {
	if opts.DebounceWindow <= 0 {
		opts.DebounceWindow = DefaultDebounceWindow
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	ignore := make(map[string]struct{}, len(opts.IgnoreDirs))
	for _, dir := range opts.IgnoreDirs {
		ignore[dir] = struct{}{}
	}

	return &Watcher{
		opts:    opts,
		ignore:  ignore,
		fsw:     fsw,
		trigger: make(chan struct{}, 1),
		errs:    make(chan error, 16),
	}, nil
}

// Start watches root recursively until ctx is cancelled or Close is
// called. Newly created directories are picked up as they appear.
func (w *Watcher) Start(ctx context.Context, root string) error {
	if err := w.addRecursive(root); err != nil {
		return err
	}

	go w.loop(ctx)
	return nil
}

func (w *Watcher) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			select {
			case w.errs <- err:
			default:
				slog.Warn("watcher error channel full", slog.String("error", err.Error()))
			}
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	base := filepath.Base(event.Name)
	if _, ignored := w.ignore[base]; ignored {
		return
	}

	// New directories need their own watches.
	if event.Op.Has(fsnotify.Create) {
		if err := w.addRecursive(event.Name); err != nil {
			slog.Debug("watch new path", slog.String("path", event.Name), slog.String("error", err.Error()))
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.opts.DebounceWindow, w.fire)
}

func (w *Watcher) fire() {
	select {
	case w.trigger <- struct{}{}:
	default:
		// A trigger is already pending; one pass covers both bursts.
	}
}

// addRecursive watches path and every directory below it, skipping
// ignored directory names. Files and vanished paths are tolerated.
func (w *Watcher) addRecursive(path string) error {
	return filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if _, ignored := w.ignore[d.Name()]; ignored && p != path {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(p); err != nil {
			slog.Debug("watch directory", slog.String("path", p), slog.String("error", err.Error()))
		}
		return nil
	})
}

// Triggers returns the channel of debounced reindex triggers.
func (w *Watcher) Triggers() <-chan struct{} {
	return w.trigger
}

// Errors returns the channel of non-fatal watcher errors.
func (w *Watcher) Errors() <-chan error {
	return w.errs
}

// Close stops the watcher. Safe to call more than once.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()

	return w.fsw.Close()
}
