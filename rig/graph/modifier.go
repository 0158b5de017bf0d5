package graph

import (
	"fmt"
)

// Modifier stages graph mutations and applies them as one all-or-nothing
// batch. Operations are validated and applied in staging order at Commit;
// when any operation fails, every operation already applied in the batch is
// rolled back and the whole batch is discarded, leaving the graph untouched.
//
// A Modifier is not safe for concurrent use. Commit may be called again
// after a successful commit to apply newly staged operations.
type Modifier interface {
	// CreateNode stages creation of a node and returns its handle
	// immediately. The handle's plugs may be used in later operations of the
	// same batch; the node only becomes reachable through the graph once the
	// batch commits. DAG nodes with a nil parent are created under the root.
	//
	// Parameters:
	//   - typ: the node type
	//   - name: the requested name; uniquified at commit, empty derives from the type
	//   - parent: the DAG parent, nil for root-level and non-DAG nodes
	//
	// Returns:
	//   - Node: the staged node handle
	//   - error: unknown type, foreign parent, or a parent on a non-DAG type
	CreateNode(typ NodeType, name string, parent Node) (Node, error)

	// Rename stages a rename. The new name is uniquified at commit.
	//
	// Parameters:
	//   - n: the node to rename
	//   - newName: the requested name
	Rename(n Node, newName string)

	// Connect stages a connection from a source plug to a destination plug.
	// Fails at commit when the direction or kinds do not match, or the
	// destination already has an incoming connection.
	//
	// Parameters:
	//   - src: the source plug
	//   - dst: the destination plug
	Connect(src, dst Plug)

	// Disconnect stages removal of an existing connection.
	//
	// Parameters:
	//   - src: the source plug
	//   - dst: the destination plug
	Disconnect(src, dst Plug)

	// BreakIncoming stages removal of the destination plug's incoming
	// connection, if any. Staging it on an unconnected plug is a no-op.
	//
	// Parameters:
	//   - dst: the destination plug
	BreakIncoming(dst Plug)

	// Set stages a kind-checked value write.
	//
	// Parameters:
	//   - p: the plug to write
	//   - v: the value
	Set(p Plug, v any)

	// ResizeArray stages materialization of array elements 0..size-1 so later
	// per-element operations address pre-sized storage.
	//
	// Parameters:
	//   - p: the array plug
	//   - size: the number of logical elements
	ResizeArray(p Plug, size int)

	// SetCurveKeys stages replacement of an animCurve node's keyframes.
	//
	// Parameters:
	//   - n: the animCurve node
	//   - times: ascending key times
	//   - values: one value per key time
	SetCurveKeys(n Node, times, values []float64)

	// Commit applies the staged batch atomically. On failure the graph is
	// left exactly as before Commit and the batch is discarded.
	//
	// Returns:
	//   - error: the first operation failure, wrapping the graph-level cause
	Commit() error
}

var _ Modifier = &modifierImpl{}

type modOp struct {
	desc   string
	apply  func() error
	revert func()
}

type modifierImpl struct {
	g       *graphImpl
	ops     []modOp
	created []*node
}

func (m *modifierImpl) CreateNode(typ NodeType, name string, parent Node) (Node, error) {
	if !knownNodeType(typ) {
		return nil, fmt.Errorf("%w: %q", errUnknownNodeType, typ)
	}
	var parentNode *node
	if parent != nil {
		p, ok := parent.(*node)
		if !ok || p.g != m.g {
			return nil, errForeignNode
		}
		if !typ.IsDAG() {
			return nil, fmt.Errorf("%w: %q nodes take no parent", errBadParent, typ)
		}
		if !p.typ.IsDAG() {
			return nil, fmt.Errorf("%w: %q cannot parent DAG nodes", errBadParent, p.typ)
		}
		parentNode = p
	}

	n := newNode(m.g, typ, name)
	m.ops = append(m.ops, modOp{
		desc: "create " + string(typ),
		apply: func() error {
			return m.applyCreate(n, parentNode)
		},
		revert: func() {
			m.revertCreate(n)
		},
	})
	return n, nil
}

func (m *modifierImpl) applyCreate(n *node, parent *node) error {
	if n.linked {
		return fmt.Errorf("node %q is already in the graph", n.name)
	}
	if n.typ.IsDAG() {
		if parent == nil {
			parent = m.g.root
		}
		if !parent.linked {
			return fmt.Errorf("%w: parent %q", errNotLinked, parent.name)
		}
		n.parent = parent
		parent.children = append(parent.children, n)
	}
	n.name = m.g.uniqueName(n.name, n.typ)
	m.g.register(n)
	if n.typ == NodeTypeGroupID {
		m.g.nextGroupID++
		if a, ok := n.attrs["groupId"]; ok {
			a.value = m.g.nextGroupID
		}
	}
	n.linked = true
	m.created = append(m.created, n)
	return nil
}

func (m *modifierImpl) revertCreate(n *node) {
	if !n.linked {
		return
	}
	m.g.unregister(n)
	if n.parent != nil {
		siblings := n.parent.children
		for i, c := range siblings {
			if c == n {
				n.parent.children = append(siblings[:i], siblings[i+1:]...)
				break
			}
		}
		n.parent = nil
	}
	n.linked = false
	for i, c := range m.created {
		if c == n {
			m.created = append(m.created[:i], m.created[i+1:]...)
			break
		}
	}
}

func (m *modifierImpl) Rename(n Node, newName string) {
	var prev string
	m.ops = append(m.ops, modOp{
		desc: "rename node",
		apply: func() error {
			nn, ok := n.(*node)
			if !ok || nn.g != m.g {
				return errForeignNode
			}
			if !nn.linked {
				return fmt.Errorf("%w: %q", errNotLinked, nn.name)
			}
			prev = nn.name
			m.g.unregisterName(nn)
			nn.name = m.g.uniqueName(newName, nn.typ)
			m.g.registerName(nn)
			return nil
		},
		revert: func() {
			nn := n.(*node)
			m.g.unregisterName(nn)
			nn.name = prev
			m.g.registerName(nn)
		},
	})
}

func (m *modifierImpl) Connect(src, dst Plug) {
	m.ops = append(m.ops, modOp{
		desc: fmt.Sprintf("connect %s to %s", src.String(), dst.String()),
		apply: func() error {
			if err := src.Err(); err != nil {
				return err
			}
			if err := dst.Err(); err != nil {
				return err
			}
			return m.applyConnect(src.a, dst.a)
		},
		revert: func() {
			removeConnection(src.a, dst.a)
		},
	})
}

func (m *modifierImpl) applyConnect(src, dst *attr) error {
	if src == nil || dst == nil {
		return errInvalidPlug
	}
	if src.owner.g != m.g || dst.owner.g != m.g {
		return errForeignNode
	}
	if !src.owner.linked || !dst.owner.linked {
		return errNotLinked
	}
	if src.isArray() || dst.isArray() || src.spec.kind == KindCompound || dst.spec.kind == KindCompound {
		return fmt.Errorf("%w: connect addresses an array or compound base", errInvalidPlug)
	}
	if !src.spec.source {
		return fmt.Errorf("%w: %s is not a source", errPlugDirection, plugDesc(src))
	}
	if !dst.spec.dest {
		return fmt.Errorf("%w: %s is not a destination", errPlugDirection, plugDesc(dst))
	}
	if src.spec.kind != dst.spec.kind {
		return fmt.Errorf("%w: %s (%s) to %s (%s)", errKindMismatch,
			plugDesc(src), src.spec.kind, plugDesc(dst), dst.spec.kind)
	}
	if dst.in != nil {
		return fmt.Errorf("%w: %s", errPlugConnected, plugDesc(dst))
	}
	c := &connection{src: src, dst: dst}
	src.outs = append(src.outs, c)
	dst.in = c
	return nil
}

func (m *modifierImpl) Disconnect(src, dst Plug) {
	m.ops = append(m.ops, modOp{
		desc: fmt.Sprintf("disconnect %s from %s", src.String(), dst.String()),
		apply: func() error {
			if err := src.Err(); err != nil {
				return err
			}
			if err := dst.Err(); err != nil {
				return err
			}
			if dst.a.in == nil || dst.a.in.src != src.a {
				return fmt.Errorf("%w: %s and %s", errNotConnected, plugDesc(src.a), plugDesc(dst.a))
			}
			removeConnection(src.a, dst.a)
			return nil
		},
		revert: func() {
			c := &connection{src: src.a, dst: dst.a}
			src.a.outs = append(src.a.outs, c)
			dst.a.in = c
		},
	})
}

func (m *modifierImpl) BreakIncoming(dst Plug) {
	var prevSrc *attr
	m.ops = append(m.ops, modOp{
		desc: "break incoming on " + dst.String(),
		apply: func() error {
			if err := dst.Err(); err != nil {
				return err
			}
			prevSrc = nil
			if dst.a.in != nil {
				prevSrc = dst.a.in.src
				removeConnection(prevSrc, dst.a)
			}
			return nil
		},
		revert: func() {
			if prevSrc != nil {
				c := &connection{src: prevSrc, dst: dst.a}
				prevSrc.outs = append(prevSrc.outs, c)
				dst.a.in = c
			}
		},
	})
}

func removeConnection(src, dst *attr) {
	if dst.in != nil && dst.in.src == src {
		dst.in = nil
	}
	for i, c := range src.outs {
		if c.dst == dst {
			src.outs = append(src.outs[:i], src.outs[i+1:]...)
			break
		}
	}
}

func (m *modifierImpl) Set(p Plug, v any) {
	var prev any
	m.ops = append(m.ops, modOp{
		desc: "set " + p.String(),
		apply: func() error {
			if err := p.Err(); err != nil {
				return err
			}
			if p.a.owner.g != m.g {
				return errForeignNode
			}
			prev = p.a.value
			return p.a.setValue(v)
		},
		revert: func() {
			p.a.value = prev
		},
	})
}

func (m *modifierImpl) ResizeArray(p Plug, size int) {
	var added []int
	m.ops = append(m.ops, modOp{
		desc: "resize " + p.String(),
		apply: func() error {
			if err := p.Err(); err != nil {
				return err
			}
			if !p.a.isArray() {
				return fmt.Errorf("%w: %s", errNotAnArray, plugDesc(p.a))
			}
			added = added[:0]
			for i := 0; i < size; i++ {
				if p.a.elem(i, false) == nil {
					p.a.elem(i, true)
					added = append(added, i)
				}
			}
			return nil
		},
		revert: func() {
			for _, i := range added {
				delete(p.a.elems, i)
			}
		},
	})
}

func (m *modifierImpl) SetCurveKeys(n Node, times, values []float64) {
	var prevTimes, prevValues []float64
	m.ops = append(m.ops, modOp{
		desc: "set curve keys",
		apply: func() error {
			nn, ok := n.(*node)
			if !ok || nn.g != m.g {
				return errForeignNode
			}
			if nn.curve == nil {
				return fmt.Errorf("%w: %q", errNotACurve, nn.name)
			}
			if len(times) != len(values) {
				return fmt.Errorf("%w: %d times, %d values", errCurveKeyCounts, len(times), len(values))
			}
			prevTimes, prevValues = nn.curve.times, nn.curve.values
			nn.curve.set(times, values)
			return nil
		},
		revert: func() {
			nn := n.(*node)
			nn.curve.times, nn.curve.values = prevTimes, prevValues
		},
	})
}

func (m *modifierImpl) Commit() error {
	m.g.mu.Lock()
	var err error
	applied := 0
	var failedDesc string
	for _, op := range m.ops {
		if err = op.apply(); err != nil {
			failedDesc = op.desc
			break
		}
		applied++
	}
	var created []*node
	if err != nil {
		for i := applied - 1; i >= 0; i-- {
			m.ops[i].revert()
		}
	} else {
		created = m.created
	}
	m.ops = nil
	m.created = nil
	m.g.mu.Unlock()

	if err != nil {
		return fmt.Errorf("graph edit %q failed: %w", failedDesc, err)
	}
	for _, n := range created {
		m.g.announceCreated(n)
	}
	return nil
}
