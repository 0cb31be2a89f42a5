package cli

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceDefault is the quiet period after the last write before a re-run.
const debounceDefault = 300 * time.Millisecond

// suiteWatcher re-runs a suite when its file changes. It watches the
// containing directory so editors that save by renaming a temp file over
// the suite are still seen.
type suiteWatcher struct {
	path     string
	debounce time.Duration
	logger   *slog.Logger
}

// Run blocks until ctx is cancelled, calling onChange once per burst of
// writes. onChange runs on the watcher goroutine, so runs never overlap.
func (w *suiteWatcher) Run(ctx context.Context, onChange func(ctx context.Context)) error {
	abs, err := filepath.Abs(w.path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", w.path, err)
	}
	debounce := w.debounce
	if debounce <= 0 {
		debounce = debounceDefault
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	if w.logger != nil {
		w.logger.Info("watching suite", "path", abs)
	}

	// Single timer, reset on each relevant event. Stopped until the first one.
	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-timer.C:
			onChange(ctx)

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			if w.logger != nil {
				w.logger.Warn("watch error", "error", err)
			}
		}
	}
}
