package storage

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the storage whenever the backing file is changed by another
// process and fires the activation listeners so that dependants re-read their
// state. It blocks until ctx is done.
func (s *Storage) Watch(ctx context.Context) error {
	path := s.Path()
	if path == "" {
		return fmt.Errorf("watch: storage not activated")
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	// Watch the directory: atomic replaces swap the file's inode.
	dir := filepath.Dir(path)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	s.logger.Debug("watching storage", "path", path)

	name := filepath.Base(path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != name {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) && !ev.Has(fsnotify.Remove) {
				continue
			}
			changed, err := s.reload()
			if err != nil {
				s.logger.Warn("reload storage failed", "path", path, "err", err)
				continue
			}
			if changed {
				s.logger.Info("storage changed on disk, reloading", "path", path)
				s.activated.Fire()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("storage watcher error", "err", err)
		}
	}
}
