// Package watch re-runs a batch whenever images land in a directory.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"

	"photorename/internal/fsutil"
)

// Trigger runs one batch.
type Trigger func(ctx context.Context) error

// Watcher debounces filesystem events for one directory into batch runs.
type Watcher struct {
	dir      string
	types    *fsutil.MediaTypes
	debounce time.Duration
	log      *slog.Logger
	watcher  *fsnotify.Watcher
}

// New starts watching dir. Close releases the underlying watcher.
func New(dir string, types *fsutil.MediaTypes, debounce time.Duration, log *slog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	if debounce <= 0 {
		debounce = time.Second
	}
	return &Watcher{dir: dir, types: types, debounce: debounce, log: log, watcher: fw}, nil
}

// Close stops the underlying watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

// Run calls trigger once the directory has been quiet for the debounce period
// after an image was created or written. It returns when ctx is done or the
// watcher is closed. Trigger errors are logged and watching continues.
func (w *Watcher) Run(ctx context.Context, trigger Trigger) error {
	w.log.Info("watching directory", "path", w.dir, "debounce", w.debounce)

	timer := time.NewTimer(w.debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			w.log.Debug("image event", "path", event.Name, "op", event.Op.String())
			timer.Reset(w.debounce)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Error("filesystem watcher error", "error", err)

		case <-timer.C:
			if err := trigger(ctx); err != nil {
				w.log.Error("batch failed", "path", w.dir, "error", err)
			}
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return false
	}
	_, ok := w.types.Classify(event.Name)
	return ok
}
