package manager

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"conductor/internal/api"
	"conductor/internal/bus"
	"conductor/internal/dependency"
	"conductor/internal/registry"
	"conductor/internal/resolver"
	"conductor/pkg/logging"
)

var errHotReloadDisabled = errors.New("hot reload is disabled")

// Config holds the configuration for the manager.
type Config struct {
	// ModulePaths is passed through to the module source; the manager
	// treats it as opaque.
	ModulePaths []string

	// ExcludeModules lists names the manager must never load.
	ExcludeModules []string

	// EnableHotReload turns on reload-on-source-change when the source
	// supports watching.
	EnableHotReload bool

	// HookTimeout bounds every lifecycle hook invocation. Zero disables
	// the per-hook deadline; the caller's context still applies.
	HookTimeout time.Duration
}

// Manager is the public facade of the module runtime. It owns the registry,
// the dependency graph, the resolver and the event bus, and encapsulates
// all concurrency around lifecycle operations.
//
// Operations on different modules proceed concurrently; every operation
// that invokes a lifecycle hook on module M holds M's lock from before the
// hook call until after the resulting state transition.
type Manager struct {
	cfg      Config
	excluded map[string]bool

	source   api.ModuleSource
	bus      *bus.Bus
	registry *registry.Registry
	graph    *dependency.Graph
	resolver *resolver.Resolver

	// loadMu serializes operations that mutate the module set and the
	// graph (load, unload, instance replacement), so cycle checks see a
	// consistent picture.
	loadMu sync.Mutex

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	watchCancel context.CancelFunc
	watchDone   chan struct{}
}

// New creates a manager reading modules from the given source. A nil bus
// creates a fresh one.
func New(cfg Config, source api.ModuleSource, eventBus *bus.Bus) *Manager {
	if eventBus == nil {
		eventBus = bus.New()
	}

	excluded := make(map[string]bool, len(cfg.ExcludeModules))
	for _, name := range cfg.ExcludeModules {
		excluded[name] = true
	}

	graph := dependency.New()
	reg := registry.New(eventBus)

	return &Manager{
		cfg:      cfg,
		excluded: excluded,
		source:   source,
		bus:      eventBus,
		registry: reg,
		graph:    graph,
		resolver: resolver.New(reg, graph),
		locks:    make(map[string]*sync.Mutex),
	}
}

// Bus returns the event bus modules and embedders subscribe on.
func (m *Manager) Bus() *bus.Bus { return m.bus }

// Resolver returns the ordering resolver. Resolution is pure and safe to
// call at any time.
func (m *Manager) Resolver() *resolver.Resolver { return m.resolver }

// List returns snapshots of all known modules, sorted by name.
func (m *Manager) List() []registry.Snapshot { return m.registry.List() }

// Discover asks the module source for available module names, minus the
// excluded ones. It does not instantiate anything and is idempotent.
func (m *Manager) Discover(ctx context.Context) ([]string, error) {
	names, err := m.source.Discover(ctx)
	if err != nil {
		return nil, err
	}

	available := make([]string, 0, len(names))
	for _, name := range names {
		if m.excluded[name] {
			continue
		}
		available = append(available, name)
	}
	sort.Strings(available)
	return available, nil
}

// GetModule returns the live instance of a loaded module. Modules use this
// for dependency injection at runtime.
func (m *Manager) GetModule(name string) (api.Module, error) {
	return m.registry.Instance(name)
}

// ResetModule recovers a module from ERROR to its last stable state.
func (m *Manager) ResetModule(ctx context.Context, name string) error {
	lock := m.moduleLock(name)
	lock.Lock()
	defer lock.Unlock()

	return m.registry.ResetError(ctx, name)
}

// moduleLock returns the per-module mutex, creating it on first use. Locks
// survive unload so a concurrent late operation still serializes.
func (m *Manager) moduleLock(name string) *sync.Mutex {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()

	lock, ok := m.locks[name]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[name] = lock
	}
	return lock
}

// invokeHook runs one lifecycle hook under the configured timeout,
// translating failures into the hook/timeout error kinds. The hook runs on
// its own goroutine so a stuck hook can be abandoned at the deadline.
func (m *Manager) invokeHook(ctx context.Context, name, hook string, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}

	hookCtx := ctx
	if m.cfg.HookTimeout > 0 {
		var cancel context.CancelFunc
		hookCtx, cancel = context.WithTimeout(ctx, m.cfg.HookTimeout)
		defer cancel()
	}

	done := make(chan error, 1)
	go func() {
		done <- fn(hookCtx)
	}()

	select {
	case err := <-done:
		if err != nil {
			return api.NewHookError(name, hook, err)
		}
		return nil
	case <-hookCtx.Done():
		if errors.Is(hookCtx.Err(), context.DeadlineExceeded) {
			logging.Warn("Manager", "Hook %s of module %s exceeded its deadline", hook, name)
			return api.NewTimeoutError(name, hook)
		}
		return api.NewHookError(name, hook, hookCtx.Err())
	}
}

// validateMetadata checks the invariants on a freshly read metadata block.
func validateMetadata(name string, meta api.Metadata) error {
	if meta.Name == "" {
		return api.NewLoadError(name, errors.New("metadata has empty name"))
	}
	if strings.ContainsAny(meta.Name, " \t\n\r") {
		return api.NewLoadError(name, errors.New("metadata name contains whitespace"))
	}
	if meta.Name != name {
		return api.NewLoadError(name, errors.New("metadata name does not match requested module"))
	}
	return nil
}

// rebuildGraph reconstructs the dependency graph from the registry: one
// node per entry with cached metadata, one edge per required dependency.
// Optional dependencies contribute edges only when the target is
// registered. Callers hold loadMu.
func (m *Manager) rebuildGraph() {
	m.graph.Clear()
	for _, snap := range m.registry.List() {
		if snap.State == api.StateNotInstalled {
			continue
		}
		m.graph.AddNode(snap.Name)
		for _, dep := range snap.Metadata.Dependencies {
			m.graph.AddEdge(snap.Name, dep)
		}
		for _, dep := range snap.Metadata.OptionalDependencies {
			if m.registry.Has(dep) {
				m.graph.AddEdge(snap.Name, dep)
			}
		}
	}
}

// wouldCycle builds a candidate graph with extra's metadata applied and
// reports any cycles it contains. Callers hold loadMu.
func (m *Manager) wouldCycle(extra api.Metadata) [][]string {
	candidate := dependency.New()
	for _, snap := range m.registry.List() {
		if snap.State == api.StateNotInstalled || snap.Name == extra.Name {
			continue
		}
		candidate.AddNode(snap.Name)
		for _, dep := range snap.Metadata.Dependencies {
			candidate.AddEdge(snap.Name, dep)
		}
		for _, dep := range snap.Metadata.OptionalDependencies {
			if m.registry.Has(dep) {
				candidate.AddEdge(snap.Name, dep)
			}
		}
	}
	candidate.AddNode(extra.Name)
	for _, dep := range extra.Dependencies {
		candidate.AddEdge(extra.Name, dep)
	}
	for _, dep := range extra.OptionalDependencies {
		if m.registry.Has(dep) || dep == extra.Name {
			candidate.AddEdge(extra.Name, dep)
		}
	}
	return candidate.DetectCycles()
}
