package engine

import (
	"errors"
	"reflect"
	"testing"

	"github.com/shaiso/megaflow/internal/domain"
)

func svc(name string) domain.ServiceDescriptor {
	return domain.ServiceDescriptor{Name: name, Host: "localhost", Port: 8000, Endpoint: "/v1/" + name}
}

func buildGraph(t *testing.T, nodes []string, edges [][2]string) *FlowGraph {
	t.Helper()
	g := NewFlowGraph()
	for _, name := range nodes {
		if err := g.AddNode(svc(name)); err != nil {
			t.Fatalf("add %s: %v", name, err)
		}
	}
	for _, e := range edges {
		if err := g.Connect(e[0], e[1]); err != nil {
			t.Fatalf("connect %s -> %s: %v", e[0], e[1], err)
		}
	}
	return g
}

func TestFlowGraph_SimpleChain(t *testing.T) {
	g := buildGraph(t, []string{"A", "B", "C"}, [][2]string{{"A", "B"}, {"B", "C"}})

	if g.Len() != 3 {
		t.Errorf("expected 3 nodes, got %d", g.Len())
	}

	roots := g.Roots()
	if len(roots) != 1 || roots[0].Name() != "A" {
		t.Errorf("expected single root A, got %v", names(roots))
	}

	leaves := g.Leaves()
	if len(leaves) != 1 || leaves[0].Name() != "C" {
		t.Errorf("expected single leaf C, got %v", names(leaves))
	}

	if got := g.Predecessors("C"); !reflect.DeepEqual(got, []string{"B"}) {
		t.Errorf("C should depend on B, got %v", got)
	}
	if got := g.Successors("A"); !reflect.DeepEqual(got, []string{"B"}) {
		t.Errorf("A should feed B, got %v", got)
	}
}

func TestFlowGraph_AddNode_Duplicate(t *testing.T) {
	g := buildGraph(t, []string{"A"}, nil)

	err := g.AddNode(svc("A"))
	if !errors.Is(err, ErrDuplicateNode) {
		t.Fatalf("expected ErrDuplicateNode, got %v", err)
	}

	var dupErr *DuplicateNodeError
	if !errors.As(err, &dupErr) || dupErr.Name != "A" {
		t.Errorf("expected DuplicateNodeError for A, got %v", err)
	}
	if g.Len() != 1 {
		t.Errorf("graph should still have 1 node, got %d", g.Len())
	}
}

func TestFlowGraph_AddNode_EmptyName(t *testing.T) {
	g := NewFlowGraph()
	if err := g.AddNode(domain.ServiceDescriptor{}); !errors.Is(err, ErrEmptyNodeName) {
		t.Errorf("expected ErrEmptyNodeName, got %v", err)
	}
}

func TestFlowGraph_AddNode_CopiesDescriptor(t *testing.T) {
	g := NewFlowGraph()
	desc := svc("A")
	desc.Inputs = []string{"text"}
	if err := g.AddNode(desc); err != nil {
		t.Fatal(err)
	}

	desc.Inputs[0] = "changed"
	desc.Host = "elsewhere"

	stored := g.Node("A").Service
	if stored.Inputs[0] != "text" || stored.Host != "localhost" {
		t.Errorf("stored descriptor must not change with caller's copy: %+v", stored)
	}
}

func TestFlowGraph_Connect_UnknownNode(t *testing.T) {
	g := buildGraph(t, []string{"A"}, nil)

	tests := []struct {
		name     string
		from, to string
		missing  string
	}{
		{"unknown target", "A", "X", "X"},
		{"unknown source", "Y", "A", "Y"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := g.Connect(tt.from, tt.to)
			var unknown *UnknownNodeError
			if !errors.As(err, &unknown) {
				t.Fatalf("expected UnknownNodeError, got %v", err)
			}
			if unknown.Name != tt.missing {
				t.Errorf("expected missing %s, got %s", tt.missing, unknown.Name)
			}
			if !errors.Is(err, ErrUnknownNode) {
				t.Error("UnknownNodeError should unwrap to ErrUnknownNode")
			}
		})
	}
}

func TestFlowGraph_Connect_RejectsCycle(t *testing.T) {
	tests := []struct {
		name  string
		nodes []string
		edges [][2]string
		from  string
		to    string
	}{
		{"self loop", []string{"A"}, nil, "A", "A"},
		{"two nodes", []string{"A", "B"}, [][2]string{{"A", "B"}}, "B", "A"},
		{"long path", []string{"A", "B", "C", "D"}, [][2]string{{"A", "B"}, {"B", "C"}, {"C", "D"}}, "D", "A"},
		{"diamond", []string{"A", "B", "C", "D"}, [][2]string{{"A", "B"}, {"A", "C"}, {"B", "D"}, {"C", "D"}}, "D", "A"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := buildGraph(t, tt.nodes, tt.edges)
			before := g.Edges()

			err := g.Connect(tt.from, tt.to)
			if !errors.Is(err, ErrCycle) {
				t.Fatalf("expected ErrCycle, got %v", err)
			}

			var cycleErr *CycleError
			if !errors.As(err, &cycleErr) || cycleErr.From != tt.from || cycleErr.To != tt.to {
				t.Errorf("unexpected CycleError: %v", err)
			}

			if after := g.Edges(); !reflect.DeepEqual(before, after) {
				t.Errorf("graph changed after rejected connect: %v -> %v", before, after)
			}
		})
	}
}

func TestFlowGraph_Connect_DuplicateEdgeIsNoop(t *testing.T) {
	g := buildGraph(t, []string{"A", "B"}, [][2]string{{"A", "B"}})

	if err := g.Connect("A", "B"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Node("B").InDegree() != 1 {
		t.Errorf("B should have inDegree 1, got %d", g.Node("B").InDegree())
	}
}

func TestFlowGraph_Diamond(t *testing.T) {
	// A → B → D
	// A → C → D
	g := buildGraph(t, []string{"A", "B", "C", "D"},
		[][2]string{{"A", "B"}, {"A", "C"}, {"B", "D"}, {"C", "D"}})

	if g.Node("A").InDegree() != 0 {
		t.Error("A should have inDegree 0")
	}
	if g.Node("D").InDegree() != 2 {
		t.Errorf("D should have inDegree 2, got %d", g.Node("D").InDegree())
	}

	order := names(g.TopologicalOrder())
	if !reflect.DeepEqual(order, []string{"A", "B", "C", "D"}) {
		t.Errorf("unexpected topological order: %v", order)
	}
}

func TestFlowGraph_RootsAndLeaves_InsertionOrder(t *testing.T) {
	g := buildGraph(t, []string{"z", "a", "m", "out"},
		[][2]string{{"z", "out"}, {"a", "out"}})

	if got := names(g.Roots()); !reflect.DeepEqual(got, []string{"z", "a", "m"}) {
		t.Errorf("unexpected roots: %v", got)
	}
	if got := names(g.Leaves()); !reflect.DeepEqual(got, []string{"m", "out"}) {
		t.Errorf("unexpected leaves: %v", got)
	}
}

func TestFlowGraph_TopologicalOrder_TieBreakByInsertion(t *testing.T) {
	// C добавлен раньше B, но оба зависят только от A
	g := buildGraph(t, []string{"A", "C", "B"}, [][2]string{{"A", "B"}, {"A", "C"}})

	order := names(g.TopologicalOrder())
	if !reflect.DeepEqual(order, []string{"A", "C", "B"}) {
		t.Errorf("unexpected order: %v", order)
	}
}

func TestFlowGraph_Validate(t *testing.T) {
	if err := NewFlowGraph().Validate(); !errors.Is(err, ErrEmptyGraph) {
		t.Errorf("expected ErrEmptyGraph, got %v", err)
	}

	g := buildGraph(t, []string{"A", "B"}, [][2]string{{"A", "B"}})
	if err := g.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestFlowGraph_SetPrimary(t *testing.T) {
	g := buildGraph(t, []string{"A", "B"}, nil)

	if err := g.SetPrimary("X"); !errors.Is(err, ErrUnknownNode) {
		t.Errorf("expected ErrUnknownNode, got %v", err)
	}
	if err := g.SetPrimary("A"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Primary() != "A" {
		t.Errorf("expected primary A, got %q", g.Primary())
	}
}

// --- RuntimeGraph ---

func TestRuntimeGraph_Leaves(t *testing.T) {
	// A → B, A → C; C не посещён
	g := buildGraph(t, []string{"A", "B", "C"}, [][2]string{{"A", "B"}, {"A", "C"}})

	rg := NewRuntimeGraph(g, map[string]bool{"A": true, "B": true})

	if got := rg.Nodes(); !reflect.DeepEqual(got, []string{"A", "B"}) {
		t.Errorf("unexpected nodes: %v", got)
	}
	if got := rg.Leaves(); !reflect.DeepEqual(got, []string{"B"}) {
		t.Errorf("unexpected leaves: %v", got)
	}
	if rg.Contains("C") {
		t.Error("C should not be in runtime graph")
	}
	if got := rg.Edges(); len(got) != 1 || got[0] != (Edge{From: "A", To: "B"}) {
		t.Errorf("unexpected edges: %v", got)
	}
}

func TestRuntimeGraph_PrunedSuccessorMakesLeaf(t *testing.T) {
	g := buildGraph(t, []string{"A", "B"}, [][2]string{{"A", "B"}})

	rg := NewRuntimeGraph(g, map[string]bool{"A": true})

	if got := rg.Leaves(); !reflect.DeepEqual(got, []string{"A"}) {
		t.Errorf("A should be a runtime leaf, got %v", got)
	}
}

func TestRuntimeGraph_IgnoresUnknownNames(t *testing.T) {
	g := buildGraph(t, []string{"A"}, nil)

	rg := NewRuntimeGraph(g, map[string]bool{"A": true, "ghost": true})
	if rg.Len() != 1 {
		t.Errorf("expected 1 node, got %d", rg.Len())
	}
}
