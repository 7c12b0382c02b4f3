// Package dependency maintains the directed acyclic graph of module
// dependencies and answers the ordering questions the resolver and manager
// ask of it.
//
// Edges point from dependent to dependency: AddEdge("api", "db") records
// that api depends on db. The graph mirrors the declared dependencies of
// all loaded modules; it is rebuilt on load and unload, not on state
// transitions.
//
// # Ordering
//
// TopologicalOrder implements Kahn's algorithm with a lexicographic
// tie-breaker, so the same graph always linearizes to the same sequence:
// every dependency appears before its dependents, and nodes at equal depth
// come out in name order. Levels groups nodes by dependency depth instead,
// which is what concurrent start uses to fan out independent modules.
//
// # Cycles
//
// A cycle makes linearization impossible. TopologicalOrder and Levels fail
// with an api.CycleError in that case; DetectCycles enumerates the cycles
// explicitly by running DFS over the nodes Kahn's algorithm could not
// resolve. Each reported cycle repeats its starting node at the end, e.g.
// [x y z x].
//
// All operations are safe for concurrent use. Orderings and lookups take a
// read lock; mutations take the write lock.
package dependency
