package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

const watchDebounce = 200 * time.Millisecond

// Watch notifies onChange whenever another process rewrites the snapshot
// file, debounced so a burst of events fires once. Callers that cache a read
// snapshot for profile selection use this to refresh it. Watch returns once
// the watcher is installed; it stops when ctx is done.
func (f *FileStore) Watch(ctx context.Context, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("start store watcher: %w", err)
	}
	// The file is replaced by rename, so the directory is watched instead of
	// the path itself.
	if err := watcher.Add(filepath.Dir(f.path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch store directory: %w", err)
	}
	go f.watchLoop(ctx, watcher, onChange)
	log.Debugf("profile store: watching %s for changes", f.path)
	return nil
}

func (f *FileStore) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, onChange func()) {
	defer watcher.Close()
	var timer *time.Timer
	var timerCh <-chan time.Time
	for {
		select {
		case evt, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !f.isStoreEvent(evt.Name) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
				timerCh = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(watchDebounce)
			}
		case <-timerCh:
			timer = nil
			timerCh = nil
			onChange()
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.WithError(err).Warn("profile store watcher error")
		case <-ctx.Done():
			return
		}
	}
}

// isStoreEvent filters out the lock file and the in-flight temp file.
func (f *FileStore) isStoreEvent(name string) bool {
	if filepath.Base(name) != filepath.Base(f.path) {
		return false
	}
	return !strings.HasSuffix(name, ".tmp") && !strings.HasSuffix(name, ".lock")
}
