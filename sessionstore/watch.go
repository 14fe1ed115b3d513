package sessionstore

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// WatchFile calls fn whenever the file at path is created, written, renamed
// or removed. The parent directory is watched because FileSlots replaces the
// file through a rename. WatchFile blocks until ctx is done.
func WatchFile(ctx context.Context, path string, fn func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "[sessionstore.WatchFile] new watcher")
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return errors.Wrap(err, "[sessionstore.WatchFile] add")
	}

	name := filepath.Base(path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != name {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			fn()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Err(err).Str("path", path).Msg("Session file watcher error")
		}
	}
}
