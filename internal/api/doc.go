// Package api defines the shared contracts of the conductor core: module
// states, metadata, the lifecycle capability interfaces, the module source
// interface, the event type with its wire-contract event names, and the
// error taxonomy.
//
// Every other internal package depends on api, and api depends on nothing
// else inside conductor, which keeps the component graph acyclic: bus,
// dependency, lifecycle, registry, resolver and manager all speak in api
// types.
//
// # Lifecycle capabilities
//
// A user module implements Module (Metadata only) plus any subset of the
// optional capability interfaces:
//
//	Bootstrapper     hook after construction
//	Installer        allocate resources, receives the config mapping
//	Starter          begin doing work
//	Stopper          stop doing work
//	Uninstaller      undo the install step
//	Reloader         notification after hot reload
//	ConfigValidator  accept or reject a config mapping
//
// A capability the module does not implement is treated as a no-op hook.
// All hooks take a context.Context; blocking hooks honor cancellation and
// deadlines through it.
//
// # Errors
//
// Each failure kind is an exported struct with a constructor and an
// errors.As-based predicate (NewNotFoundError / IsNotFound and so on).
// Callers branch on kinds with the predicates rather than string matching.
package api
