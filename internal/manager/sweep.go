package manager

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"conductor/internal/api"
	"conductor/pkg/logging"
)

// startCandidates returns the names of all modules eligible for a start
// sweep: anything loaded but not yet started (or stopped earlier).
func (m *Manager) startCandidates() []string {
	var names []string
	for _, snap := range m.registry.List() {
		switch snap.State {
		case api.StateLoaded, api.StateInstalled, api.StateStopped:
			names = append(names, snap.Name)
		}
	}
	return names
}

// startOrInstall drives one module of a start sweep to STARTED, installing
// it first (with a nil config) when it is still LOADED. A config rejected
// by the module's validator skips the module without failing the sweep;
// every other failure is returned.
func (m *Manager) startOrInstall(ctx context.Context, name string) (skipped bool, err error) {
	state, err := m.registry.State(name)
	if err != nil {
		return false, err
	}

	if state == api.StateLoaded {
		if err := m.installOne(ctx, name, nil); err != nil {
			if api.IsConfigError(err) {
				logging.Warn("Manager", "Skipping module %s: default config rejected", name)
				return true, nil
			}
			return false, err
		}
	}

	err = m.startOne(ctx, name)
	if api.IsDependencyNotStarted(err) {
		m.registry.RecordError(ctx, name, err)
	}
	return false, err
}

// StartAll installs and starts all eligible modules in strict topological
// order. The first failure moves that module to ERROR and aborts the
// remaining starts; already-started modules are left running.
func (m *Manager) StartAll(ctx context.Context) error {
	order, err := m.resolver.StartOrder(m.startCandidates())
	if err != nil {
		return err
	}

	for _, name := range order {
		if _, err := m.startOrInstall(ctx, name); err != nil {
			logging.Error("Manager", err, "StartAll aborted at module %s", name)
			return err
		}
	}

	logging.Info("Manager", "Started %d modules", len(order))
	return nil
}

// StartAllConcurrent starts all eligible modules level by level: modules at
// the same dependency depth start in parallel, levels run in sequence.
// Within a level every module is attempted (fail-soft); a failed level
// aborts the remaining levels (fail-fast), since their modules could not
// satisfy their dependencies anyway.
func (m *Manager) StartAllConcurrent(ctx context.Context) error {
	levels, err := m.resolver.Levels(m.startCandidates())
	if err != nil {
		return err
	}

	for _, level := range levels {
		var g errgroup.Group
		for _, name := range level {
			g.Go(func() error {
				_, err := m.startOrInstall(ctx, name)
				return err
			})
		}
		if err := g.Wait(); err != nil {
			logging.Error("Manager", err, "Concurrent start aborted after a level failure")
			return err
		}
	}
	return nil
}

// StopAll stops all started modules in reverse-topological order. The
// sweep is best-effort: individual failures surface as module.error events
// and in the joined return value, but do not halt the sweep.
func (m *Manager) StopAll(ctx context.Context) error {
	var started []string
	for _, snap := range m.registry.List() {
		if snap.State == api.StateStarted {
			started = append(started, snap.Name)
		}
	}
	if len(started) == 0 {
		return nil
	}

	order, err := m.resolver.StopOrder(started)
	if err != nil {
		return err
	}

	var errs []error
	for _, name := range order {
		if state, _ := m.registry.State(name); state != api.StateStarted {
			continue
		}
		if err := m.stopOne(ctx, name); err != nil {
			logging.Error("Manager", err, "Failed to stop module %s during sweep", name)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
