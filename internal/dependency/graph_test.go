package dependency

import (
	"reflect"
	"testing"

	"conductor/internal/api"
)

func TestNew(t *testing.T) {
	g := New()
	if g == nil {
		t.Fatal("New() returned nil")
	}
	if len(g.Nodes()) != 0 {
		t.Fatalf("expected empty graph, got %d nodes", len(g.Nodes()))
	}
}

func TestAddNodeIsIdempotent(t *testing.T) {
	g := New()
	g.AddNode("a")
	g.AddNode("a")
	g.AddNode("b")

	nodes := g.Nodes()
	if !reflect.DeepEqual(nodes, []string{"a", "b"}) {
		t.Errorf("Nodes() = %v, want [a b]", nodes)
	}
}

func TestAddEdge(t *testing.T) {
	tests := []struct {
		name         string
		edges        [][2]string
		node         string
		dependencies []string
		dependents   []string
	}{
		{
			name:         "single edge",
			edges:        [][2]string{{"api", "db"}},
			node:         "api",
			dependencies: []string{"db"},
			dependents:   nil,
		},
		{
			name:         "reverse lookup",
			edges:        [][2]string{{"api", "db"}, {"worker", "db"}},
			node:         "db",
			dependencies: nil,
			dependents:   []string{"api", "worker"},
		},
		{
			name:         "duplicate edge is a no-op",
			edges:        [][2]string{{"api", "db"}, {"api", "db"}},
			node:         "api",
			dependencies: []string{"db"},
			dependents:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New()
			for _, e := range tt.edges {
				g.AddEdge(e[0], e[1])
			}
			if got := g.DependenciesOf(tt.node); !equalOrEmpty(got, tt.dependencies) {
				t.Errorf("DependenciesOf(%s) = %v, want %v", tt.node, got, tt.dependencies)
			}
			if got := g.DependentsOf(tt.node); !equalOrEmpty(got, tt.dependents) {
				t.Errorf("DependentsOf(%s) = %v, want %v", tt.node, got, tt.dependents)
			}
		})
	}
}

func TestRemoveNode(t *testing.T) {
	g := New()
	g.AddEdge("api", "db")
	g.AddEdge("worker", "db")
	g.AddEdge("api", "cache")

	g.RemoveNode("db")

	if g.HasNode("db") {
		t.Error("db still present after RemoveNode")
	}
	if got := g.DependenciesOf("api"); !reflect.DeepEqual(got, []string{"cache"}) {
		t.Errorf("DependenciesOf(api) = %v, want [cache]", got)
	}
	if got := g.DependenciesOf("worker"); len(got) != 0 {
		t.Errorf("DependenciesOf(worker) = %v, want empty", got)
	}

	// Removing an unknown node is a no-op.
	g.RemoveNode("nonexistent")
}

func TestTransitiveLookups(t *testing.T) {
	g := New()
	g.AddEdge("c", "b")
	g.AddEdge("b", "a")
	g.AddEdge("d", "a")

	if got := g.TransitiveDependenciesOf("c"); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("TransitiveDependenciesOf(c) = %v, want [a b]", got)
	}
	if got := g.TransitiveDependentsOf("a"); !reflect.DeepEqual(got, []string{"b", "c", "d"}) {
		t.Errorf("TransitiveDependentsOf(a) = %v, want [b c d]", got)
	}
	if got := g.TransitiveDependenciesOf("nonexistent"); got != nil {
		t.Errorf("TransitiveDependenciesOf(nonexistent) = %v, want nil", got)
	}
}

func TestTopologicalOrder(t *testing.T) {
	tests := []struct {
		name     string
		edges    [][2]string
		nodes    []string
		subset   []string
		expected []string
	}{
		{
			name:     "linear chain",
			edges:    [][2]string{{"c", "b"}, {"b", "a"}},
			expected: []string{"a", "b", "c"},
		},
		{
			name:     "independent nodes sort lexicographically",
			nodes:    []string{"zeta", "alpha", "mid"},
			expected: []string{"alpha", "mid", "zeta"},
		},
		{
			name:     "diamond",
			edges:    [][2]string{{"top", "left"}, {"top", "right"}, {"left", "base"}, {"right", "base"}},
			expected: []string{"base", "left", "right", "top"},
		},
		{
			name:     "subset excludes outside edges",
			edges:    [][2]string{{"c", "b"}, {"b", "a"}},
			subset:   []string{"b", "c"},
			expected: []string{"b", "c"},
		},
		{
			name:     "subset ignores unknown names",
			edges:    [][2]string{{"b", "a"}},
			subset:   []string{"a", "b", "ghost"},
			expected: []string{"a", "b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New()
			for _, n := range tt.nodes {
				g.AddNode(n)
			}
			for _, e := range tt.edges {
				g.AddEdge(e[0], e[1])
			}

			order, err := g.TopologicalOrder(tt.subset)
			if err != nil {
				t.Fatalf("TopologicalOrder failed: %v", err)
			}
			if !reflect.DeepEqual(order, tt.expected) {
				t.Errorf("TopologicalOrder = %v, want %v", order, tt.expected)
			}
		})
	}
}

func TestTopologicalOrderIsDeterministic(t *testing.T) {
	g := New()
	g.AddEdge("api", "db")
	g.AddEdge("api", "cache")
	g.AddEdge("worker", "db")
	g.AddNode("standalone")

	first, err := g.TopologicalOrder(nil)
	if err != nil {
		t.Fatalf("TopologicalOrder failed: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := g.TopologicalOrder(nil)
		if err != nil {
			t.Fatalf("TopologicalOrder failed: %v", err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("non-deterministic order: %v vs %v", first, again)
		}
	}
}

func TestTopologicalOrderFailsOnCycle(t *testing.T) {
	g := New()
	g.AddEdge("x", "y")
	g.AddEdge("y", "z")
	g.AddEdge("z", "x")

	_, err := g.TopologicalOrder(nil)
	if err == nil {
		t.Fatal("expected CycleError, got nil")
	}
	if !api.IsCycleError(err) {
		t.Fatalf("expected CycleError, got %T: %v", err, err)
	}
}

func TestDetectCycles(t *testing.T) {
	t.Run("acyclic graph has no cycles", func(t *testing.T) {
		g := New()
		g.AddEdge("b", "a")
		g.AddEdge("c", "b")
		if cycles := g.DetectCycles(); len(cycles) != 0 {
			t.Errorf("DetectCycles = %v, want empty", cycles)
		}
	})

	t.Run("simple cycle closes on itself", func(t *testing.T) {
		g := New()
		g.AddEdge("x", "y")
		g.AddEdge("y", "x")

		cycles := g.DetectCycles()
		if len(cycles) != 1 {
			t.Fatalf("DetectCycles returned %d cycles, want 1: %v", len(cycles), cycles)
		}
		cycle := cycles[0]
		if len(cycle) != 3 {
			t.Fatalf("cycle length %d, want 3 (start repeated): %v", len(cycle), cycle)
		}
		if cycle[0] != cycle[len(cycle)-1] {
			t.Errorf("cycle does not repeat its start: %v", cycle)
		}
	})

	t.Run("cycle with acyclic satellite", func(t *testing.T) {
		g := New()
		g.AddEdge("x", "y")
		g.AddEdge("y", "z")
		g.AddEdge("z", "x")
		g.AddEdge("leaf", "x") // depends into the cycle but is not part of it

		cycles := g.DetectCycles()
		if len(cycles) != 1 {
			t.Fatalf("DetectCycles returned %d cycles, want 1: %v", len(cycles), cycles)
		}
		for _, name := range cycles[0] {
			if name == "leaf" {
				t.Errorf("satellite node reported inside cycle: %v", cycles[0])
			}
		}
	})
}

func TestLevels(t *testing.T) {
	g := New()
	g.AddEdge("api", "db")
	g.AddEdge("api", "cache")
	g.AddEdge("worker", "db")
	g.AddNode("standalone")

	levels, err := g.Levels(nil)
	if err != nil {
		t.Fatalf("Levels failed: %v", err)
	}

	expected := [][]string{
		{"cache", "db", "standalone"},
		{"api", "worker"},
	}
	if !reflect.DeepEqual(levels, expected) {
		t.Errorf("Levels = %v, want %v", levels, expected)
	}
}

func equalOrEmpty(got, want []string) bool {
	if len(got) == 0 && len(want) == 0 {
		return true
	}
	return reflect.DeepEqual(got, want)
}
