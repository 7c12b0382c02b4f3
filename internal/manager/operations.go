package manager

import (
	"context"
	"fmt"

	"conductor/internal/api"
	"conductor/pkg/logging"
)

// LoadModule obtains a factory from the source, constructs a fresh
// instance, validates its metadata, and registers it as LOADED. A load
// that would introduce a dependency cycle is rolled back and fails with a
// CycleError.
func (m *Manager) LoadModule(ctx context.Context, name string) error {
	if m.excluded[name] {
		return api.NewNotFoundError(name)
	}

	lock := m.moduleLock(name)
	lock.Lock()
	defer lock.Unlock()

	if m.registry.Has(name) {
		return api.NewDuplicateError(name)
	}

	factory, err := m.source.Load(ctx, name)
	if err != nil {
		return err
	}

	instance, err := factory()
	if err != nil {
		return api.NewLoadError(name, err)
	}

	meta := instance.Metadata()
	if err := validateMetadata(name, meta); err != nil {
		return err
	}

	if b, ok := instance.(api.Bootstrapper); ok {
		if err := m.invokeHook(ctx, name, "bootstrap", b.Bootstrap); err != nil {
			return api.NewLoadError(name, err)
		}
	}

	m.loadMu.Lock()
	defer m.loadMu.Unlock()

	if cycles := m.wouldCycle(meta); len(cycles) > 0 {
		logging.Warn("Manager", "Refusing to load module %s: dependency cycle %v", name, cycles)
		return api.NewCycleError(cycles)
	}

	if err := m.registry.Add(name, factory); err != nil {
		return err
	}
	if err := m.registry.AttachInstance(ctx, name, instance); err != nil {
		m.registry.Remove(name)
		return err
	}
	m.rebuildGraph()

	logging.Info("Manager", "Loaded module %s (version %s)", name, meta.Version)
	return nil
}

// InstallModule validates the configuration and runs the install hook,
// transitioning LOADED -> INSTALLED. A rejected config fails with a
// ConfigError and leaves the state untouched; a failing hook moves the
// module to ERROR.
func (m *Manager) InstallModule(ctx context.Context, name string, config map[string]interface{}) error {
	return m.installOne(ctx, name, config)
}

func (m *Manager) installOne(ctx context.Context, name string, config map[string]interface{}) error {
	lock := m.moduleLock(name)
	lock.Lock()
	defer lock.Unlock()

	snap, err := m.registry.Get(name)
	if err != nil {
		return err
	}
	if snap.State != api.StateLoaded {
		return api.NewTransitionError(name, snap.State, api.StateInstalled)
	}

	instance, err := m.registry.Instance(name)
	if err != nil {
		return err
	}

	if err := m.validateConfig(name, instance, snap.Metadata, config); err != nil {
		return err
	}

	if installer, ok := instance.(api.Installer); ok {
		hookErr := m.invokeHook(ctx, name, "install", func(hctx context.Context) error {
			return installer.Install(hctx, config)
		})
		if hookErr != nil {
			m.registry.RecordError(ctx, name, hookErr)
			return hookErr
		}
	}

	m.registry.SetConfig(name, config)
	return m.registry.SetState(ctx, name, api.StateInstalled)
}

// validateConfig runs the module's own validator when present, falling back
// to the declared config schema.
func (m *Manager) validateConfig(name string, instance api.Module, meta api.Metadata, config map[string]interface{}) error {
	if validator, ok := instance.(api.ConfigValidator); ok {
		if !validator.ValidateConfig(config) {
			return api.NewConfigError(name, "rejected by module validator")
		}
		return nil
	}

	for option, typeLabel := range meta.ConfigSchema {
		value, present := config[option]
		if !present {
			continue
		}
		if !matchesType(value, typeLabel) {
			return api.NewConfigError(name, fmt.Sprintf("option %s: expected %s", option, typeLabel))
		}
	}
	return nil
}

// matchesType checks a config value against a schema type label.
func matchesType(value interface{}, typeLabel string) bool {
	switch typeLabel {
	case "string":
		_, ok := value.(string)
		return ok
	case "int":
		switch value.(type) {
		case int, int32, int64:
			return true
		}
		return false
	case "float", "number":
		switch value.(type) {
		case float32, float64, int, int32, int64:
			return true
		}
		return false
	case "bool":
		_, ok := value.(bool)
		return ok
	case "map":
		_, ok := value.(map[string]interface{})
		return ok
	case "list":
		_, ok := value.([]interface{})
		return ok
	default:
		// Unknown labels are not enforced.
		return true
	}
}

// StartModule runs the start hook, transitioning INSTALLED or STOPPED ->
// STARTED. Every required dependency must already be STARTED; the manager
// does not auto-start dependencies here (StartAll does).
func (m *Manager) StartModule(ctx context.Context, name string) error {
	return m.startOne(ctx, name)
}

func (m *Manager) startOne(ctx context.Context, name string) error {
	lock := m.moduleLock(name)
	lock.Lock()
	defer lock.Unlock()

	snap, err := m.registry.Get(name)
	if err != nil {
		return err
	}
	if snap.State != api.StateInstalled && snap.State != api.StateStopped {
		return api.NewTransitionError(name, snap.State, api.StateStarted)
	}

	for _, dep := range snap.Metadata.Dependencies {
		depState, err := m.registry.State(dep)
		if err != nil || depState != api.StateStarted {
			return api.NewDependencyNotStartedError(name, dep)
		}
	}

	instance, err := m.registry.Instance(name)
	if err != nil {
		return err
	}

	if starter, ok := instance.(api.Starter); ok {
		if hookErr := m.invokeHook(ctx, name, "start", starter.Start); hookErr != nil {
			m.registry.RecordError(ctx, name, hookErr)
			return hookErr
		}
	}

	return m.registry.SetState(ctx, name, api.StateStarted)
}

// StopModule runs the stop hook, transitioning STARTED -> STOPPED. Without
// cascade the call fails while any STARTED dependent exists; with cascade
// the dependents are stopped first, in reverse-topological order.
func (m *Manager) StopModule(ctx context.Context, name string, cascade bool) error {
	state, err := m.registry.State(name)
	if err != nil {
		return err
	}
	if state != api.StateStarted {
		return api.NewTransitionError(name, state, api.StateStopped)
	}

	running := m.runningDependents(name)
	if len(running) > 0 && !cascade {
		return api.NewDependentRunningError(name, running[0])
	}

	if cascade && len(running) > 0 {
		order, err := m.resolver.StopOrder(running)
		if err != nil {
			return err
		}
		for _, dependent := range order {
			if depState, _ := m.registry.State(dependent); depState != api.StateStarted {
				continue
			}
			if err := m.stopOne(ctx, dependent); err != nil {
				return err
			}
		}
	}

	return m.stopOne(ctx, name)
}

func (m *Manager) stopOne(ctx context.Context, name string) error {
	lock := m.moduleLock(name)
	lock.Lock()
	defer lock.Unlock()

	snap, err := m.registry.Get(name)
	if err != nil {
		return err
	}
	if snap.State != api.StateStarted {
		return api.NewTransitionError(name, snap.State, api.StateStopped)
	}

	instance, err := m.registry.Instance(name)
	if err != nil {
		return err
	}

	if stopper, ok := instance.(api.Stopper); ok {
		if hookErr := m.invokeHook(ctx, name, "stop", stopper.Stop); hookErr != nil {
			m.registry.RecordError(ctx, name, hookErr)
			return hookErr
		}
	}

	return m.registry.SetState(ctx, name, api.StateStopped)
}

// runningDependents returns the transitive dependents of name that are
// currently STARTED, unordered.
func (m *Manager) runningDependents(name string) []string {
	var running []string
	for _, dependent := range m.graph.TransitiveDependentsOf(name) {
		if state, err := m.registry.State(dependent); err == nil && state == api.StateStarted {
			running = append(running, dependent)
		}
	}
	return running
}

// UninstallModule runs the uninstall hook, transitioning STOPPED or
// INSTALLED -> LOADED and clearing the stored config.
func (m *Manager) UninstallModule(ctx context.Context, name string) error {
	if running := m.runningDependents(name); len(running) > 0 {
		return api.NewDependentRunningError(name, running[0])
	}
	return m.uninstallOne(ctx, name)
}

func (m *Manager) uninstallOne(ctx context.Context, name string) error {
	lock := m.moduleLock(name)
	lock.Lock()
	defer lock.Unlock()

	snap, err := m.registry.Get(name)
	if err != nil {
		return err
	}
	if snap.State != api.StateStopped && snap.State != api.StateInstalled {
		return api.NewTransitionError(name, snap.State, api.StateLoaded)
	}

	instance, err := m.registry.Instance(name)
	if err != nil {
		return err
	}

	if uninstaller, ok := instance.(api.Uninstaller); ok {
		if hookErr := m.invokeHook(ctx, name, "uninstall", uninstaller.Uninstall); hookErr != nil {
			m.registry.RecordError(ctx, name, hookErr)
			return hookErr
		}
	}

	m.registry.SetConfig(name, nil)
	return m.registry.SetState(ctx, name, api.StateLoaded)
}

// UnloadModule removes a LOADED module from the registry and drops its
// graph edges.
func (m *Manager) UnloadModule(ctx context.Context, name string) error {
	lock := m.moduleLock(name)
	lock.Lock()
	defer lock.Unlock()

	state, err := m.registry.State(name)
	if err != nil {
		return err
	}
	if state != api.StateLoaded {
		return api.NewTransitionError(name, state, api.StateNotInstalled)
	}

	m.loadMu.Lock()
	defer m.loadMu.Unlock()

	// The transition publishes module.unloaded before the entry vanishes.
	if err := m.registry.SetState(ctx, name, api.StateNotInstalled); err != nil {
		return err
	}
	if err := m.registry.Remove(name); err != nil {
		return err
	}
	m.rebuildGraph()

	logging.Info("Manager", "Unloaded module %s", name)
	return nil
}

// ReloadModule re-instantiates a module in place: running dependents are
// stopped, the module is torn down to LOADED, a fresh instance replaces the
// old one, config and state are restored, and previously running dependents
// are started again in dependency order. A module that was STOPPED comes
// back INSTALLED, not STOPPED.
func (m *Manager) ReloadModule(ctx context.Context, name string) error {
	snap, err := m.registry.Get(name)
	if err != nil {
		return err
	}

	// A module stuck in ERROR reloads from its last stable state.
	if snap.State == api.StateError {
		if err := m.registry.ResetError(ctx, name); err != nil {
			return err
		}
		snap, err = m.registry.Get(name)
		if err != nil {
			return err
		}
	}

	prevState := snap.State
	prevConfig := snap.Config
	wasRunning := prevState == api.StateStarted

	// Remember which dependents are running before anything stops.
	restartList := m.runningDependents(name)

	if wasRunning {
		if err := m.StopModule(ctx, name, true); err != nil {
			return err
		}
	}

	if state, _ := m.registry.State(name); state == api.StateInstalled || state == api.StateStopped {
		if err := m.uninstallOne(ctx, name); err != nil {
			return err
		}
	}

	// Build the fresh instance and swap it in.
	factory, err := m.registry.Factory(name)
	if err != nil {
		return err
	}
	instance, err := factory()
	if err != nil {
		loadErr := api.NewLoadError(name, err)
		m.registry.RecordError(ctx, name, loadErr)
		return loadErr
	}
	meta := instance.Metadata()
	if err := validateMetadata(name, meta); err != nil {
		m.registry.RecordError(ctx, name, err)
		return err
	}

	m.loadMu.Lock()
	if cycles := m.wouldCycle(meta); len(cycles) > 0 {
		m.loadMu.Unlock()
		return api.NewCycleError(cycles)
	}
	if err := m.registry.ReplaceInstance(name, instance); err != nil {
		m.loadMu.Unlock()
		return err
	}
	m.rebuildGraph()
	m.loadMu.Unlock()

	if reloader, ok := instance.(api.Reloader); ok {
		lock := m.moduleLock(name)
		lock.Lock()
		hookErr := m.invokeHook(ctx, name, "reload", reloader.Reload)
		lock.Unlock()
		if hookErr != nil {
			logging.Error("Manager", hookErr, "Reload hook of module %s failed", name)
		}
	}

	// Restore the module to where it was.
	if prevState == api.StateInstalled || prevState == api.StateStopped || wasRunning {
		if err := m.installOne(ctx, name, prevConfig); err != nil {
			return err
		}
	}
	if wasRunning {
		if err := m.startOne(ctx, name); err != nil {
			return err
		}
	}

	// Bring previously running dependents back, dependencies first.
	if len(restartList) > 0 {
		order, err := m.resolver.StartOrder(restartList)
		if err != nil {
			return err
		}
		for _, dependent := range order {
			if state, _ := m.registry.State(dependent); state != api.StateStopped {
				continue
			}
			if err := m.startOne(ctx, dependent); err != nil {
				return err
			}
		}
	}

	m.bus.Publish(ctx, api.Event{
		Type:       api.EventModuleReloaded,
		ModuleName: name,
		Payload: map[string]interface{}{
			"was_running": wasRunning,
		},
	})

	logging.Info("Manager", "Reloaded module %s", name)
	return nil
}
