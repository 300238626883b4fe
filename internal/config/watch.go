package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"gpsconv/internal/domain"
)

// WatchSettings calls onChange with freshly loaded preferences whenever the
// file at store.Path() is written, replaced or removed. It watches the parent
// directory because Save replaces the file through a rename. WatchSettings
// returns once the watcher is registered; it stops when ctx is done.
func WatchSettings(ctx context.Context, store *JSONStore, logger *slog.Logger, onChange func(domain.Settings)) error {
	if logger == nil {
		logger = slog.Default()
	}

	dir := filepath.Dir(store.Path())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create settings directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create settings watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch settings directory: %w", err)
	}

	target := filepath.Clean(store.Path())
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
					!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
					continue
				}
				settings, err := store.Load()
				if err != nil {
					logger.Warn("reload settings", "path", target, "error", err)
					continue
				}
				logger.Debug("settings changed", "path", target, "op", event.Op.String())
				onChange(settings)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("settings watcher", "error", err)
			}
		}
	}()

	return nil
}
