// Package resolver computes start and stop orderings from the dependency
// graph and the registry's current metadata. Resolution is pure: it never
// mutates state and may be called repeatedly.
package resolver

import (
	"conductor/internal/dependency"
	"conductor/internal/registry"
)

// Missing names a required dependency the registry does not know.
type Missing struct {
	Dependent  string
	Dependency string
}

// Resolver answers ordering queries over the registry and graph.
type Resolver struct {
	registry *registry.Registry
	graph    *dependency.Graph
}

// New creates a resolver over the given registry and graph.
func New(reg *registry.Registry, graph *dependency.Graph) *Resolver {
	return &Resolver{registry: reg, graph: graph}
}

// StartOrder returns the subset (all registered modules when nil) ordered
// so that every dependency appears before its dependents; modules at the
// same depth are ordered lexicographically. Fails with an api.CycleError
// when the graph cannot be linearized.
func (r *Resolver) StartOrder(subset []string) ([]string, error) {
	return r.graph.TopologicalOrder(r.defaulted(subset))
}

// StopOrder is the reverse of StartOrder: dependents before their
// dependencies.
func (r *Resolver) StopOrder(subset []string) ([]string, error) {
	order, err := r.StartOrder(subset)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	return order, nil
}

// Levels groups the subset by dependency depth; modules within one level
// are independent of each other and may start concurrently.
func (r *Resolver) Levels(subset []string) ([][]string, error) {
	return r.graph.Levels(r.defaulted(subset))
}

// ValidateDependencies checks that every required dependency of every
// module in the subset is known to the registry, returning one Missing per
// unsatisfied reference. Optional dependencies are skipped: their absence
// is not an error.
func (r *Resolver) ValidateDependencies(subset []string) []Missing {
	names := r.defaulted(subset)

	var missing []Missing
	for _, name := range names {
		snap, err := r.registry.Get(name)
		if err != nil {
			continue
		}
		for _, dep := range snap.Metadata.Dependencies {
			if !r.registry.Has(dep) {
				missing = append(missing, Missing{Dependent: name, Dependency: dep})
			}
		}
	}
	return missing
}

// CheckCycles returns the cycles Graph.DetectCycles reports for the
// dependency graph, empty for a DAG.
func (r *Resolver) CheckCycles() [][]string {
	return r.graph.DetectCycles()
}

// defaulted resolves a nil subset to all registered names. The graph also
// contains nodes for declared-but-unregistered dependencies; restricting to
// registry names keeps phantom nodes out of orderings.
func (r *Resolver) defaulted(subset []string) []string {
	if subset != nil {
		return subset
	}
	return r.registry.Names()
}
