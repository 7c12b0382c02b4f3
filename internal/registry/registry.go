package registry

import (
	"context"
	"sort"
	"sync"

	"conductor/internal/api"
	"conductor/internal/bus"
	"conductor/internal/lifecycle"
	"conductor/pkg/logging"
)

// Snapshot is a point-in-time copy of one registry entry, safe to hand out.
type Snapshot struct {
	Name       string
	State      api.ModuleState
	LastStable api.ModuleState
	Metadata   api.Metadata
	Config     map[string]interface{}
	Err        error
}

// entry is the mutable record for one known module. Its fields are guarded
// by mu; the instance itself is owned by the module author.
type entry struct {
	mu         sync.Mutex
	name       string
	factory    api.Factory
	instance   api.Module
	metadata   api.Metadata
	state      api.ModuleState
	lastStable api.ModuleState
	config     map[string]interface{}
	lastErr    error
}

// Registry is the single source of truth for module instances, metadata,
// states, and configs. All state mutations funnel through it; every
// successful transition is published on the injected event bus.
//
// Locking: the name->entry map is guarded by a read-write lock, per-entry
// fields by the entry's own mutex. Events are published outside both locks.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	bus     *bus.Bus
}

// New creates an empty registry publishing through the given bus.
func New(eventBus *bus.Bus) *Registry {
	return &Registry{
		entries: make(map[string]*entry),
		bus:     eventBus,
	}
}

// Add creates an entry in NOT_INSTALLED with no instance yet. It fails with
// a DuplicateError if the name is already known.
func (r *Registry) Add(name string, factory api.Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[name]; exists {
		return api.NewDuplicateError(name)
	}

	r.entries[name] = &entry{
		name:    name,
		factory: factory,
		state:   api.StateNotInstalled,
	}
	return nil
}

// AttachInstance transitions NOT_INSTALLED -> LOADED, storing the instance
// and caching its metadata.
func (r *Registry) AttachInstance(ctx context.Context, name string, instance api.Module) error {
	e, err := r.lookup(name)
	if err != nil {
		return err
	}

	e.mu.Lock()
	if err := lifecycle.Validate(name, e.state, api.StateLoaded); err != nil {
		e.mu.Unlock()
		return err
	}
	old := e.state
	e.instance = instance
	e.metadata = instance.Metadata()
	e.state = api.StateLoaded
	e.lastStable = api.StateLoaded
	e.lastErr = nil
	e.mu.Unlock()

	r.publishTransition(ctx, name, old, api.StateLoaded)
	return nil
}

// ReplaceInstance swaps in a freshly constructed instance for a module in
// LOADED state, refreshing the cached metadata. Used by hot reload; no
// event is published here, the manager announces the reload itself.
func (r *Registry) ReplaceInstance(name string, instance api.Module) error {
	e, err := r.lookup(name)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != api.StateLoaded {
		return api.NewTransitionError(name, e.state, api.StateLoaded)
	}
	e.instance = instance
	e.metadata = instance.Metadata()
	e.lastErr = nil
	return nil
}

// SetState performs a guarded transition to newState and publishes the
// corresponding events. Transitions into ERROR must go through RecordError
// so the failure cause is preserved.
func (r *Registry) SetState(ctx context.Context, name string, newState api.ModuleState) error {
	e, err := r.lookup(name)
	if err != nil {
		return err
	}

	e.mu.Lock()
	if err := lifecycle.Validate(name, e.state, newState); err != nil {
		e.mu.Unlock()
		return err
	}
	old := e.state
	e.state = newState
	if lifecycle.IsStable(newState) {
		e.lastStable = newState
		e.lastErr = nil
	}
	e.mu.Unlock()

	r.publishTransition(ctx, name, old, newState)
	return nil
}

// RecordError transitions the module to ERROR, preserving the prior state
// as the reset target, and publishes a module.error event.
func (r *Registry) RecordError(ctx context.Context, name string, cause error) {
	e, err := r.lookup(name)
	if err != nil {
		logging.Warn("Registry", "Cannot record error for unknown module %s: %v", name, cause)
		return
	}

	e.mu.Lock()
	old := e.state
	if lifecycle.IsStable(old) {
		e.lastStable = old
	}
	e.state = api.StateError
	e.lastErr = cause
	e.mu.Unlock()

	logging.Error("Registry", cause, "Module %s entered error state (was %s)", name, old)

	r.publish(ctx, api.Event{
		Type:       api.EventModuleStateChanged,
		ModuleName: name,
		Payload: map[string]interface{}{
			"old_state": string(old),
			"new_state": string(api.StateError),
		},
	})
	r.publish(ctx, api.Event{
		Type:       api.EventModuleError,
		ModuleName: name,
		Payload: map[string]interface{}{
			"error": cause.Error(),
		},
	})
}

// ResetError recovers a module from ERROR to its last stable state, or to
// LOADED when none is recorded.
func (r *Registry) ResetError(ctx context.Context, name string) error {
	e, err := r.lookup(name)
	if err != nil {
		return err
	}

	e.mu.Lock()
	if e.state != api.StateError {
		state := e.state
		e.mu.Unlock()
		return api.NewTransitionError(name, state, lifecycle.ResetTarget(e.lastStable))
	}
	target := lifecycle.ResetTarget(e.lastStable)
	e.state = target
	e.lastErr = nil
	e.mu.Unlock()

	r.publish(ctx, api.Event{
		Type:       api.EventModuleStateChanged,
		ModuleName: name,
		Payload: map[string]interface{}{
			"old_state": string(api.StateError),
			"new_state": string(target),
		},
	})
	return nil
}

// SetConfig stores the configuration mapping on the entry. It is
// overwritten on each install and cleared on uninstall.
func (r *Registry) SetConfig(name string, config map[string]interface{}) error {
	e, err := r.lookup(name)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.config = config
	e.mu.Unlock()
	return nil
}

// Get returns a snapshot of the named entry.
func (r *Registry) Get(name string) (Snapshot, error) {
	e, err := r.lookup(name)
	if err != nil {
		return Snapshot{}, err
	}
	return e.snapshot(), nil
}

// Instance returns the live module instance. It fails when the module has
// not been loaded yet.
func (r *Registry) Instance(name string) (api.Module, error) {
	e, err := r.lookup(name)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.instance == nil {
		return nil, api.NewNotFoundError(name)
	}
	return e.instance, nil
}

// Factory returns the factory the module was registered with.
func (r *Registry) Factory(name string) (api.Factory, error) {
	e, err := r.lookup(name)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.factory, nil
}

// State returns the current state of the named module.
func (r *Registry) State(name string) (api.ModuleState, error) {
	e, err := r.lookup(name)
	if err != nil {
		return "", err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state, nil
}

// Has reports whether the name is known to the registry.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.entries[name]
	return exists
}

// List returns snapshots of all entries, sorted by name.
func (r *Registry) List() []Snapshot {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	snapshots := make([]Snapshot, 0, len(entries))
	for _, e := range entries {
		snapshots = append(snapshots, e.snapshot())
	}
	sort.Slice(snapshots, func(i, j int) bool { return snapshots[i].Name < snapshots[j].Name })
	return snapshots
}

// Names returns all known module names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Remove deletes the entry. The manager guards the legality of removal.
func (r *Registry) Remove(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[name]; !exists {
		return api.NewNotFoundError(name)
	}
	delete(r.entries, name)
	return nil
}

func (r *Registry) lookup(name string) (*entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, exists := r.entries[name]
	if !exists {
		return nil, api.NewNotFoundError(name)
	}
	return e, nil
}

func (e *entry) snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	return Snapshot{
		Name:       e.name,
		State:      e.state,
		LastStable: e.lastStable,
		Metadata:   e.metadata,
		Config:     e.config,
		Err:        e.lastErr,
	}
}

// publishTransition emits the module.state_changed event plus the
// transition-specific event for a (from, to) state pair.
func (r *Registry) publishTransition(ctx context.Context, name string, from, to api.ModuleState) {
	r.publish(ctx, api.Event{
		Type:       api.EventModuleStateChanged,
		ModuleName: name,
		Payload: map[string]interface{}{
			"old_state": string(from),
			"new_state": string(to),
		},
	})

	if specific := eventForTransition(from, to); specific != "" {
		r.publish(ctx, api.Event{
			Type:       specific,
			ModuleName: name,
		})
	}
}

// eventForTransition maps a successful transition to its type-specific
// event. Transitions with no specific event (error resets) return "".
func eventForTransition(from, to api.ModuleState) string {
	switch {
	case from == api.StateNotInstalled && to == api.StateLoaded:
		return api.EventModuleLoaded
	case from == api.StateLoaded && to == api.StateInstalled:
		return api.EventModuleInstalled
	case to == api.StateStarted && (from == api.StateInstalled || from == api.StateStopped):
		return api.EventModuleStarted
	case from == api.StateStarted && to == api.StateStopped:
		return api.EventModuleStopped
	case to == api.StateLoaded && (from == api.StateInstalled || from == api.StateStopped):
		return api.EventModuleUninstalled
	case from == api.StateLoaded && to == api.StateNotInstalled:
		return api.EventModuleUnloaded
	default:
		return ""
	}
}

func (r *Registry) publish(ctx context.Context, event api.Event) {
	if r.bus == nil {
		return
	}
	r.bus.Publish(ctx, event)
}
