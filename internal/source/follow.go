package source

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// settle is how long the file must stay quiet before a change is reported.
const settle = 100 * time.Millisecond

// Watch reports changes to the file at path until ctx ends. The parent
// directory is watched so that editors which save by renaming are seen.
// Bursts of events are coalesced into one notification.
func Watch(ctx context.Context, path string) (<-chan struct{}, error) {
	path, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("error creating fsnotify watcher: %w", err)
	}
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("error adding dir to fsnotify watcher: %w", err)
	}
	log.Debug("fsnotify watching dir", "dir", dir, "file", path)

	changes := make(chan struct{}, 1)
	go func() {
		defer close(changes)
		defer watcher.Close() //nolint:errcheck

		timer := time.NewTimer(settle)
		timer.Stop()
		for {
			select {
			case <-ctx.Done():
				timer.Stop()
				log.Debug("fsnotify dir unwatched", "dir", dir)
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Name != path || !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
					continue
				}
				log.Debug("fsnotify event", "file", event.Name, "event", event.Op)
				timer.Reset(settle)
			case <-timer.C:
				select {
				case changes <- struct{}{}:
				default:
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Debug("fsnotify error", "dir", dir, "error", err)
			}
		}
	}()
	return changes, nil
}
