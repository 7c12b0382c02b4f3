package manager

import (
	"context"

	"conductor/internal/api"
	"conductor/pkg/logging"
)

// StartWatching begins reacting to source changes when hot reload is
// enabled and the source supports watching. Every change notification for
// a loaded module triggers a reload; notifications for unknown names are
// ignored. It is a no-op (and returns nil) when hot reload is disabled or
// the source cannot watch.
func (m *Manager) StartWatching(ctx context.Context) error {
	if !m.cfg.EnableHotReload {
		return nil
	}

	watchable, ok := m.source.(api.WatchableSource)
	if !ok {
		logging.Debug("Manager", "Hot reload enabled but source does not support watching")
		return nil
	}

	watchCtx, cancel := context.WithCancel(ctx)
	changes, err := watchable.Watch(watchCtx)
	if err != nil {
		cancel()
		return err
	}

	m.watchCancel = cancel
	m.watchDone = make(chan struct{})

	go func() {
		defer close(m.watchDone)
		for name := range changes {
			if !m.registry.Has(name) {
				logging.Debug("Manager", "Ignoring change for unknown module %s", name)
				continue
			}
			logging.Info("Manager", "Source change detected, reloading module %s", name)
			if err := m.ReloadModule(watchCtx, name); err != nil {
				logging.Error("Manager", err, "Hot reload of module %s failed", name)
			}
		}
	}()

	logging.Info("Manager", "Hot reload watcher running")
	return nil
}

// TriggerReload reloads a module on demand. It is the manual counterpart
// of the watcher path and requires hot reload to be enabled.
func (m *Manager) TriggerReload(ctx context.Context, name string) error {
	if !m.cfg.EnableHotReload {
		return api.NewLoadError(name, errHotReloadDisabled)
	}
	return m.ReloadModule(ctx, name)
}

// StopWatching stops the hot reload watcher and waits for it to drain.
func (m *Manager) StopWatching() {
	if m.watchCancel != nil {
		m.watchCancel()
		m.watchCancel = nil
	}
	if m.watchDone != nil {
		<-m.watchDone
		m.watchDone = nil
	}
}
