// Package manager implements the public facade of the conductor runtime.
//
// The manager coordinates the registry (authoritative state), the
// dependency graph and resolver (orderings), the event bus (observability)
// and the module source (loadable code). Users call the manager; the
// manager reads and mutates the registry, asks the resolver for orderings,
// invokes user lifecycle hooks, and lets the registry publish every state
// change on the bus.
//
// # Lifecycle operations
//
//	Discover            list loadable module names (no instantiation)
//	LoadModule          factory -> instance -> LOADED, with cycle check
//	InstallModule       validate config, install hook, -> INSTALLED
//	StartModule         dependency gate, start hook, -> STARTED
//	StopModule          stop hook, -> STOPPED; optional dependent cascade
//	UninstallModule     uninstall hook, -> LOADED, config cleared
//	UnloadModule        entry removed, graph edges dropped
//	StartAll            install+start everything in topological order
//	StartAllConcurrent  same, fanning out within dependency levels
//	StopAll             best-effort reverse sweep
//	ReloadModule        hot swap preserving dependents' running state
//	GetModule           live instance lookup for dependency injection
//
// # Concurrency
//
// Each module has a lock held from before any hook invocation until after
// the resulting state transition, so no two hooks of one module ever run
// concurrently. Operations on different modules proceed in parallel except
// where orderings require sequencing. Hooks run under an optional
// per-hook timeout; a hook exceeding it is abandoned and the module moves
// to ERROR with a timeout error kind.
package manager
