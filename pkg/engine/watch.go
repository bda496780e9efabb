package engine

import (
	"context"
	"log/slog"

	"github.com/fathomdev/fathom/internal/watcher"
)

// Watch keeps the index current by running an incremental pass whenever
// file activity under the root settles. It blocks until ctx is
// cancelled. Progress events from triggered passes are drained
// internally; callers wanting per-pass progress should call Index
// themselves.
func (e *Engine) Watch(ctx context.Context) error {
	w, err := watcher.New(watcher.Options{
		IgnoreDirs: e.cfg.Paths.IgnoreDirs,
	})
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()

	if err := w.Start(ctx, e.root); err != nil {
		return err
	}

	slog.Info("watching for changes", slog.String("root", e.root))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-w.Errors():
			slog.Warn("watcher error", slog.String("error", err.Error()))
		case <-w.Triggers():
			events, err := e.Index(ctx, IndexOptions{})
			if err != nil {
				// A manual pass is already running; its scan will pick up
				// these changes.
				continue
			}
			for event := range events {
				if event.Phase == PhaseError {
					slog.Error("watch-triggered pass failed",
						slog.String("error", event.Err.Error()))
				}
			}
		}
	}
}
