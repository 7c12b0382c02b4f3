package dependency

import (
	"sort"
	"sync"

	"conductor/internal/api"
)

// Graph stores directed edges dependent -> dependency across all loaded
// modules and answers ordering queries. It is safe for concurrent use:
// reads (orderings, lookups) take a read lock, mutations take the write
// lock.
type Graph struct {
	mu      sync.RWMutex
	nodes   map[string]bool
	edges   map[string]map[string]bool // edges[A][B]: A depends on B
	reverse map[string]map[string]bool // reverse[B][A]: A depends on B
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		nodes:   make(map[string]bool),
		edges:   make(map[string]map[string]bool),
		reverse: make(map[string]map[string]bool),
	}
}

// AddNode adds a node to the graph. Duplicate adds are no-ops.
func (g *Graph) AddNode(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.addNodeLocked(name)
}

func (g *Graph) addNodeLocked(name string) {
	if g.nodes[name] {
		return
	}
	g.nodes[name] = true
	g.edges[name] = make(map[string]bool)
	g.reverse[name] = make(map[string]bool)
}

// AddEdge records that dependent depends on dependency. Both nodes are
// created if absent; adding the same edge twice is a no-op.
func (g *Graph) AddEdge(dependent, dependency string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.addNodeLocked(dependent)
	g.addNodeLocked(dependency)
	g.edges[dependent][dependency] = true
	g.reverse[dependency][dependent] = true
}

// RemoveNode removes a node and all incident edges. Removing an unknown
// node is a no-op.
func (g *Graph) RemoveNode(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.nodes[name] {
		return
	}
	for dependency := range g.edges[name] {
		delete(g.reverse[dependency], name)
	}
	for dependent := range g.reverse[name] {
		delete(g.edges[dependent], name)
	}
	delete(g.nodes, name)
	delete(g.edges, name)
	delete(g.reverse, name)
}

// Clear removes all nodes and edges.
func (g *Graph) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.nodes = make(map[string]bool)
	g.edges = make(map[string]map[string]bool)
	g.reverse = make(map[string]map[string]bool)
}

// HasNode reports whether the graph contains the named node.
func (g *Graph) HasNode(name string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nodes[name]
}

// Nodes returns all node names, sorted.
func (g *Graph) Nodes() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]string, 0, len(g.nodes))
	for name := range g.nodes {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// DependenciesOf returns the direct dependencies of a node, sorted.
func (g *Graph) DependenciesOf(name string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return sortedKeys(g.edges[name])
}

// DependentsOf returns the nodes that directly depend on name, sorted.
func (g *Graph) DependentsOf(name string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return sortedKeys(g.reverse[name])
}

// TransitiveDependenciesOf returns every node reachable by following
// dependency edges from name, sorted. The node itself is not included.
func (g *Graph) TransitiveDependenciesOf(name string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.walk(name, g.edges)
}

// TransitiveDependentsOf returns every node that transitively depends on
// name, sorted. The node itself is not included.
func (g *Graph) TransitiveDependentsOf(name string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.walk(name, g.reverse)
}

// walk performs a BFS from name over the given adjacency, excluding name.
func (g *Graph) walk(name string, adjacency map[string]map[string]bool) []string {
	if !g.nodes[name] {
		return nil
	}

	visited := map[string]bool{name: true}
	queue := []string{name}
	var result []string

	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]

		for next := range adjacency[node] {
			if !visited[next] {
				visited[next] = true
				result = append(result, next)
				queue = append(queue, next)
			}
		}
	}

	sort.Strings(result)
	return result
}

// TopologicalOrder returns the nodes of subset (or all nodes when subset is
// nil) ordered so that every dependency precedes its dependents. Ties are
// broken lexicographically, making the output deterministic. It fails with
// a CycleError when the (sub)graph contains a cycle.
func (g *Graph) TopologicalOrder(subset []string) ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	included := g.subsetSet(subset)

	// In-degree counts dependencies inside the subset; zero-degree nodes
	// have nothing left to wait for.
	inDegree := make(map[string]int, len(included))
	for name := range included {
		count := 0
		for dependency := range g.edges[name] {
			if included[dependency] {
				count++
			}
		}
		inDegree[name] = count
	}

	var ready []string
	for name := range included {
		if inDegree[name] == 0 {
			ready = append(ready, name)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(included))
	for len(ready) > 0 {
		var unlocked []string
		for _, node := range ready {
			order = append(order, node)
			for dependent := range g.reverse[node] {
				if !included[dependent] {
					continue
				}
				inDegree[dependent]--
				if inDegree[dependent] == 0 {
					unlocked = append(unlocked, dependent)
				}
			}
		}
		// Emit one depth level at a time, each sorted, so equal-depth
		// nodes come out in lexicographic order.
		sort.Strings(unlocked)
		ready = unlocked
	}

	if len(order) != len(included) {
		residual := make(map[string]bool, len(included))
		for name := range included {
			if inDegree[name] > 0 {
				residual[name] = true
			}
		}
		return nil, api.NewCycleError(g.cyclesIn(residual))
	}

	return order, nil
}

// DetectCycles returns the dependency cycles found by a depth-first search
// of the nodes Kahn's algorithm leaves unresolved: one cycle per back edge
// of that search. A cyclic graph yields at least one cycle; when cycles
// share nodes, not every elementary cycle is listed. Each cycle is an
// ordered name sequence with the starting node repeated at the end. An
// acyclic graph yields an empty result.
func (g *Graph) DetectCycles() [][]string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	// Kahn's algorithm resolves every node of an acyclic graph; whatever
	// remains unresolved participates in (or depends into) a cycle.
	inDegree := make(map[string]int, len(g.nodes))
	for name := range g.nodes {
		inDegree[name] = len(g.edges[name])
	}

	var ready []string
	for name := range g.nodes {
		if inDegree[name] == 0 {
			ready = append(ready, name)
		}
	}

	resolved := 0
	for len(ready) > 0 {
		node := ready[0]
		ready = ready[1:]
		resolved++

		for dependent := range g.reverse[node] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				ready = append(ready, dependent)
			}
		}
	}

	if resolved == len(g.nodes) {
		return nil
	}

	residual := make(map[string]bool)
	for name := range g.nodes {
		if inDegree[name] > 0 {
			residual[name] = true
		}
	}
	return g.cyclesIn(residual)
}

// cyclesIn enumerates cycles within the residual node set via DFS.
// Callers hold at least the read lock.
func (g *Graph) cyclesIn(residual map[string]bool) [][]string {
	const (
		white = 0 // unvisited
		gray  = 1 // on current path
		black = 2 // fully processed
	)

	color := make(map[string]int, len(residual))
	parent := make(map[string]string, len(residual))
	var cycles [][]string

	var dfs func(node string)
	dfs = func(node string) {
		color[node] = gray
		deps := make([]string, 0, len(g.edges[node]))
		for dep := range g.edges[node] {
			if residual[dep] {
				deps = append(deps, dep)
			}
		}
		sort.Strings(deps)

		for _, dep := range deps {
			if color[dep] == gray {
				// Reconstruct the path back to dep; reversing yields the
				// cycle with its start repeated at the end.
				cycle := []string{dep, node}
				cur := node
				for cur != dep {
					cur = parent[cur]
					cycle = append(cycle, cur)
				}
				for i, j := 0, len(cycle)-1; i < j; i, j = i+1, j-1 {
					cycle[i], cycle[j] = cycle[j], cycle[i]
				}
				cycles = append(cycles, cycle)
				continue
			}
			if color[dep] == white {
				parent[dep] = node
				dfs(dep)
			}
		}
		color[node] = black
	}

	names := make([]string, 0, len(residual))
	for name := range residual {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if color[name] == white {
			dfs(name)
		}
	}

	return cycles
}

// Levels groups the subset (or all nodes) by dependency depth: level 0 has
// no dependencies inside the subset, level N depends only on levels below.
// Nodes within one level are independent of each other and sorted
// lexicographically. Fails with a CycleError on cyclic input.
func (g *Graph) Levels(subset []string) ([][]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	included := g.subsetSet(subset)

	inDegree := make(map[string]int, len(included))
	for name := range included {
		count := 0
		for dependency := range g.edges[name] {
			if included[dependency] {
				count++
			}
		}
		inDegree[name] = count
	}

	var current []string
	for name := range included {
		if inDegree[name] == 0 {
			current = append(current, name)
		}
	}
	sort.Strings(current)

	var levels [][]string
	visited := 0
	for len(current) > 0 {
		levels = append(levels, current)
		visited += len(current)

		var next []string
		for _, node := range current {
			for dependent := range g.reverse[node] {
				if !included[dependent] {
					continue
				}
				inDegree[dependent]--
				if inDegree[dependent] == 0 {
					next = append(next, dependent)
				}
			}
		}
		sort.Strings(next)
		current = next
	}

	if visited != len(included) {
		residual := make(map[string]bool, len(included))
		for name := range included {
			if inDegree[name] > 0 {
				residual[name] = true
			}
		}
		return nil, api.NewCycleError(g.cyclesIn(residual))
	}

	return levels, nil
}

// subsetSet materializes the subset as a set, defaulting to all nodes.
// Unknown names are ignored. Callers hold at least the read lock.
func (g *Graph) subsetSet(subset []string) map[string]bool {
	included := make(map[string]bool)
	if subset == nil {
		for name := range g.nodes {
			included[name] = true
		}
		return included
	}
	for _, name := range subset {
		if g.nodes[name] {
			included[name] = true
		}
	}
	return included
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
