package source

import (
	"context"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"conductor/pkg/logging"
)

// watchDebounceInterval is how long the watcher waits for additional
// changes to the same manifest before emitting one notification. Editors
// tend to produce bursts of write events for a single save.
const watchDebounceInterval = 500 * time.Millisecond

// Watch emits the name of every module whose manifest changes in one of
// the module paths. Rapid successive changes to the same manifest are
// debounced into a single notification. The returned channel is closed
// when ctx is cancelled.
func (f *Filesystem) Watch(ctx context.Context) (<-chan string, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	f.mu.RLock()
	paths := f.paths
	f.mu.RUnlock()

	for _, dir := range paths {
		if err := watcher.Add(dir); err != nil {
			logging.Warn("SourceWatcher", "Cannot watch module path %s: %v", dir, err)
			// Continue with other paths
		} else {
			logging.Debug("SourceWatcher", "Watching directory: %s", dir)
		}
	}

	changes := make(chan string, 16)

	// Debounce timers hand the settled name back to the event loop, which
	// is the only goroutine that sends on (and eventually closes) changes.
	settled := make(chan string, 16)

	go func() {
		defer close(changes)
		defer watcher.Close()

		var mu sync.Mutex
		pending := make(map[string]*time.Timer)
		defer func() {
			mu.Lock()
			for _, timer := range pending {
				timer.Stop()
			}
			mu.Unlock()
		}()

		for {
			select {
			case <-ctx.Done():
				return

			case name := <-settled:
				select {
				case changes <- name:
					logging.Debug("SourceWatcher", "Emitted change notification for module %s", name)
				default:
					logging.Warn("SourceWatcher", "Change channel full, dropping notification for %s", name)
				}

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !isYAMLFile(event.Name) {
					continue
				}
				if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}

				name := moduleNameFromPath(event.Name)

				mu.Lock()
				if timer, exists := pending[name]; exists {
					timer.Stop()
				}
				pending[name] = time.AfterFunc(watchDebounceInterval, func() {
					mu.Lock()
					delete(pending, name)
					mu.Unlock()

					select {
					case settled <- name:
					default:
						logging.Warn("SourceWatcher", "Debounce queue full, dropping notification for %s", name)
					}
				})
				mu.Unlock()

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logging.Error("SourceWatcher", err, "Filesystem watcher error")
			}
		}
	}()

	return changes, nil
}
