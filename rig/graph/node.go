package graph

import (
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
)

// NodeType identifies the behavior and attribute schema of a node.
type NodeType string

const (
	// NodeTypeTransform is a DAG transform with TRS channels.
	NodeTypeTransform NodeType = "transform"
	// NodeTypeJoint is a DAG transform that also carries bind-pose state and a display radius.
	NodeTypeJoint NodeType = "joint"
	// NodeTypeMesh is a DAG shape holding geometry points, deformable through its inMesh input.
	NodeTypeMesh NodeType = "mesh"
	// NodeTypeSkinDeformer is the weighted skin deformation node.
	NodeTypeSkinDeformer NodeType = "skinDeformer"
	// NodeTypeGroupID issues a unique component-group identifier.
	NodeTypeGroupID NodeType = "groupId"
	// NodeTypeGroupParts filters a geometry stream down to a component subset.
	NodeTypeGroupParts NodeType = "groupParts"
	// NodeTypeBindPose is the auxiliary record of a skeleton's bind state.
	NodeTypeBindPose NodeType = "bindPose"
	// NodeTypeAnimCurve holds keyed values feeding a channel.
	NodeTypeAnimCurve NodeType = "animCurve"
)

// IsDAG reports whether nodes of this type live in the transform hierarchy.
// Non-DAG types exist only in the dependency graph and have no parent or path.
func (t NodeType) IsDAG() bool {
	switch t {
	case NodeTypeTransform, NodeTypeJoint, NodeTypeMesh:
		return true
	}
	return false
}

// Node is a handle to a dependency-graph node. Handles returned by
// Modifier.CreateNode are valid immediately but the node only becomes
// reachable through the graph once the modifier commits.
type Node interface {
	// Name returns the node's current (unique) name.
	//
	// Returns:
	//   - string: the node name
	Name() string

	// Path returns the DAG path of the node ("/a/b/c"). Non-DAG nodes return
	// their plain name.
	//
	// Returns:
	//   - string: the path or name
	Path() string

	// Type returns the node's type tag.
	//
	// Returns:
	//   - NodeType: the node type
	Type() NodeType

	// UUID returns the stable identity assigned at handle creation.
	//
	// Returns:
	//   - uuid.UUID: the node identity
	UUID() uuid.UUID

	// Parent returns the DAG parent, or nil for root-level and non-DAG nodes.
	//
	// Returns:
	//   - Node: the parent handle or nil
	Parent() Node

	// Children returns the DAG children in creation order.
	//
	// Returns:
	//   - []Node: the child handles
	Children() []Node

	// Child looks up a direct child by name.
	//
	// Parameters:
	//   - name: the child node name
	//
	// Returns:
	//   - Node: the child handle
	//   - bool: false if no child has that name
	Child(name string) (Node, bool)

	// Plug returns the plug for a top-level attribute of this node. When the
	// schema has no such attribute the returned plug is invalid and carries
	// the errUnknownAttr failure, which surfaces from whatever operation
	// touches it next.
	//
	// Parameters:
	//   - attr: the attribute name from the node type's schema
	//
	// Returns:
	//   - Plug: the plug
	Plug(attr string) Plug

	// LocalMatrixAt composes the node's TRS channels at time t into a local
	// transform. Channels driven by curves are evaluated at t; non-DAG nodes
	// return identity.
	//
	// Parameters:
	//   - t: the evaluation time
	//
	// Returns:
	//   - mgl64.Mat4: the local transform
	LocalMatrixAt(t float64) mgl64.Mat4

	// WorldMatrixAt returns the node's transform composed with all DAG
	// ancestors at time t.
	//
	// Parameters:
	//   - t: the evaluation time
	//
	// Returns:
	//   - mgl64.Mat4: the world transform
	WorldMatrixAt(t float64) mgl64.Mat4

	// PointsAt evaluates the node's geometry at time t, pulling through the
	// deformation chain when the geometry input is connected.
	//
	// Parameters:
	//   - t: the evaluation time
	//
	// Returns:
	//   - []mgl64.Vec3: the evaluated points
	//   - error: if the node carries no geometry or the chain cannot evaluate
	PointsAt(t float64) ([]mgl64.Vec3, error)

	// CurveKeys returns the keyframes of an animCurve node.
	//
	// Returns:
	//   - []float64: key times
	//   - []float64: key values
	//   - bool: false if the node is not an animCurve
	CurveKeys() ([]float64, []float64, bool)
}

var _ Node = &node{}

type node struct {
	g    *graphImpl
	id   uuid.UUID
	name string
	typ  NodeType

	parent   *node
	children []*node

	attrs map[string]*attr

	// animCurve key storage, nil for other types
	curve *curveKeys

	// true once a modifier commit linked the node into the graph
	linked bool
}

func newNode(g *graphImpl, typ NodeType, name string) *node {
	n := &node{
		g:     g,
		id:    uuid.New(),
		name:  name,
		typ:   typ,
		attrs: make(map[string]*attr),
	}
	for _, spec := range schemaFor(typ) {
		n.attrs[spec.name] = newAttr(n, spec, nil, -1)
	}
	if typ == NodeTypeAnimCurve {
		n.curve = &curveKeys{}
	}
	return n
}

func (n *node) Name() string {
	n.g.mu.RLock()
	defer n.g.mu.RUnlock()
	return n.name
}

func (n *node) Path() string {
	n.g.mu.RLock()
	defer n.g.mu.RUnlock()
	return n.path()
}

func (n *node) path() string {
	if !n.typ.IsDAG() {
		return n.name
	}
	var parts []string
	for cur := n; cur != nil && cur != n.g.root; cur = cur.parent {
		parts = append(parts, cur.name)
	}
	var sb strings.Builder
	for i := len(parts) - 1; i >= 0; i-- {
		sb.WriteByte('/')
		sb.WriteString(parts[i])
	}
	return sb.String()
}

func (n *node) Type() NodeType {
	return n.typ
}

func (n *node) UUID() uuid.UUID {
	return n.id
}

func (n *node) Parent() Node {
	n.g.mu.RLock()
	defer n.g.mu.RUnlock()
	if n.parent == nil || n.parent == n.g.root {
		return nil
	}
	return n.parent
}

func (n *node) Children() []Node {
	n.g.mu.RLock()
	defer n.g.mu.RUnlock()
	out := make([]Node, len(n.children))
	for i, c := range n.children {
		out[i] = c
	}
	return out
}

func (n *node) Child(name string) (Node, bool) {
	n.g.mu.RLock()
	defer n.g.mu.RUnlock()
	if c := n.childNamed(name); c != nil {
		return c, true
	}
	return nil, false
}

func (n *node) childNamed(name string) *node {
	for _, c := range n.children {
		if c.name == name {
			return c
		}
	}
	return nil
}

func (n *node) Plug(attrName string) Plug {
	a, ok := n.attrs[attrName]
	if !ok {
		return Plug{err: wrapAttrErr(n.typ, attrName)}
	}
	return Plug{a: a}
}

func (n *node) CurveKeys() ([]float64, []float64, bool) {
	if n.curve == nil {
		return nil, nil, false
	}
	n.g.mu.RLock()
	defer n.g.mu.RUnlock()
	times := make([]float64, len(n.curve.times))
	values := make([]float64, len(n.curve.values))
	copy(times, n.curve.times)
	copy(values, n.curve.values)
	return times, values, true
}
