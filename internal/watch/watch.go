// Package watch reloads a file whenever it changes on disk.
package watch

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDelay is the quiet period after the last write before a reload.
const DefaultDelay = 100 * time.Millisecond

// File calls fn with the contents of path every time it is written, created
// or renamed into place. Bursts of events within delay are collapsed into a
// single call. File blocks until ctx is done.
//
// The parent directory is watched rather than the file itself so that
// editors replacing the file atomically keep being observed.
func File(ctx context.Context, path string, delay time.Duration, logger *slog.Logger, fn func([]byte)) error {
	if delay <= 0 {
		delay = DefaultDelay
	}
	if logger == nil {
		logger = slog.Default()
	}
	path, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}

	timer := time.NewTimer(delay)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				timer.Reset(delay)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("File watcher error", "path", path, "err", err)
		case <-timer.C:
			b, err := os.ReadFile(path)
			if err != nil {
				if !errors.Is(err, os.ErrNotExist) {
					logger.Warn("Failed to read watched file", "path", path, "err", err)
				}
				continue
			}
			logger.Debug("Watched file changed", "path", path, "size", len(b))
			fn(b)
		}
	}
}
