package rig

import (
	"testing"

	"github.com/Carmen-Shannon/skelport-go/rig/graph"
)

func newContextNode(t *testing.T, g graph.Graph, name string) graph.Node {
	t.Helper()
	mod := g.NewModifier()
	n, err := mod.CreateNode(graph.NodeTypeTransform, name, nil)
	if err != nil {
		t.Fatalf("CreateNode %s: %v", name, err)
	}
	if err := mod.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	return n
}

func TestNewImportContextRequiresGraph(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("NewImportContext(nil): no panic")
		}
	}()
	NewImportContext(nil)
}

func TestContextRegisterAndResolve(t *testing.T) {
	g := graph.NewGraph()
	ctx := NewImportContext(g)
	if ctx.Graph() != g {
		t.Fatalf("Graph: not the bound graph")
	}

	n := newContextNode(t, g, "pelvis")
	ctx.RegisterNode("/skel/pelvis", n)

	if got, ok := ctx.Node("/skel/pelvis"); !ok || got != n {
		t.Fatalf("Node:\nhave %v, %v\nwant registered node", got, ok)
	}
	if _, ok := ctx.Node("/skel/missing"); ok {
		t.Fatalf("Node: resolved a path that was never registered")
	}
}

func TestContextEmptyPathRecordsCreationOnly(t *testing.T) {
	g := graph.NewGraph()
	ctx := NewImportContext(g)
	n := newContextNode(t, g, "loose")

	ctx.RegisterNode("", n)
	if _, ok := ctx.Node(""); ok {
		t.Fatalf("Node(\"\"): empty path should not resolve")
	}
	if nodes := ctx.NewNodes(); len(nodes) != 1 || nodes[0] != n {
		t.Fatalf("NewNodes:\nhave %v\nwant the registered node", nodes)
	}
}

func TestContextIgnoresNilNode(t *testing.T) {
	g := graph.NewGraph()
	ctx := NewImportContext(g)

	ctx.RegisterNode("/skel/ghost", nil)
	if _, ok := ctx.Node("/skel/ghost"); ok {
		t.Fatalf("Node: nil registration should not resolve")
	}
	if nodes := ctx.NewNodes(); len(nodes) != 0 {
		t.Fatalf("NewNodes:\nhave %d nodes\nwant 0", len(nodes))
	}
}

func TestContextNodeOrAncestor(t *testing.T) {
	g := graph.NewGraph()
	ctx := NewImportContext(g)
	n := newContextNode(t, g, "arm")
	ctx.RegisterNode("/rig/arm", n)

	if got, ok := ctx.NodeOrAncestor("/rig/arm"); !ok || got != n {
		t.Fatalf("exact path:\nhave %v, %v\nwant registered node", got, ok)
	}
	if got, ok := ctx.NodeOrAncestor("/rig/arm/hand/finger"); !ok || got != n {
		t.Fatalf("descendant path:\nhave %v, %v\nwant nearest ancestor", got, ok)
	}
	if _, ok := ctx.NodeOrAncestor("/other/limb"); ok {
		t.Fatalf("unrelated path: resolved unexpectedly")
	}
	if _, ok := ctx.NodeOrAncestor("/"); ok {
		t.Fatalf("root path: resolved unexpectedly")
	}
	if _, ok := ctx.NodeOrAncestor(""); ok {
		t.Fatalf("empty path: resolved unexpectedly")
	}
}

func TestContextOnRegister(t *testing.T) {
	g := graph.NewGraph()
	ctx := NewImportContext(g)

	type reg struct {
		path string
		node graph.Node
	}
	var seen []reg
	ctx.OnRegister(func(path string, n graph.Node) {
		seen = append(seen, reg{path, n})
	})
	ctx.OnRegister(nil)

	a := newContextNode(t, g, "a")
	b := newContextNode(t, g, "b")
	ctx.RegisterNode("/a", a)
	ctx.RegisterNode("", b)

	if len(seen) != 2 {
		t.Fatalf("callback count:\nhave %d\nwant 2", len(seen))
	}
	if seen[0].path != "/a" || seen[0].node != a {
		t.Fatalf("first callback:\nhave %+v\nwant /a", seen[0])
	}
	if seen[1].path != "" || seen[1].node != b {
		t.Fatalf("second callback:\nhave %+v\nwant empty path", seen[1])
	}
}

func TestContextNewNodesIsACopy(t *testing.T) {
	g := graph.NewGraph()
	ctx := NewImportContext(g)
	a := newContextNode(t, g, "a")
	b := newContextNode(t, g, "b")
	ctx.RegisterNode("/a", a)
	ctx.RegisterNode("/b", b)

	nodes := ctx.NewNodes()
	if len(nodes) != 2 || nodes[0] != a || nodes[1] != b {
		t.Fatalf("NewNodes:\nhave %v\nwant [a b] in registration order", nodes)
	}
	nodes[0] = nil
	if again := ctx.NewNodes(); again[0] != a {
		t.Fatalf("NewNodes: caller mutation leaked into the context")
	}
}
