package graph

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/go-gl/mathgl/mgl64"
)

// attr is one attribute instance on a node. Array attributes materialize
// element attrs by logical index on first access; compound attributes hold
// child attrs instead of a value. An attr with index >= 0 is an element of
// its parent array.
type attr struct {
	spec   *attrSpec
	owner  *node
	parent *attr
	index  int

	value    any
	elems    map[int]*attr
	children map[string]*attr

	in   *connection
	outs []*connection
}

type connection struct {
	src, dst *attr
}

func newAttr(owner *node, spec *attrSpec, parent *attr, index int) *attr {
	a := &attr{spec: spec, owner: owner, parent: parent, index: index, value: spec.def}
	if a.isCompoundInstance() {
		a.children = make(map[string]*attr)
		for _, child := range spec.children {
			a.children[child.name] = newAttr(owner, child, a, -1)
		}
	}
	return a
}

// isArray reports whether this attr is the array itself (not an element).
func (a *attr) isArray() bool {
	return a.spec.array && a.index < 0
}

// isCompoundInstance reports whether this attr carries compound children
// (a non-array compound, or one element of a compound array).
func (a *attr) isCompoundInstance() bool {
	return a.spec.kind == KindCompound && !a.isArray()
}

// elem returns the element attr at logical index i, materializing it when
// create is set. The graph lock must be held.
func (a *attr) elem(i int, create bool) *attr {
	if !a.isArray() || i < 0 {
		return nil
	}
	if a.elems == nil {
		if !create {
			return nil
		}
		a.elems = make(map[int]*attr)
	}
	if e, ok := a.elems[i]; ok {
		return e
	}
	if !create {
		return nil
	}
	e := newAttr(a.owner, a.spec, a, i)
	a.elems[i] = e
	return e
}

func (a *attr) child(name string) *attr {
	if a.children == nil {
		return nil
	}
	return a.children[name]
}

func (a *attr) numElements() int {
	return len(a.elems)
}

func (a *attr) elementIndices() []int {
	idx := make([]int, 0, len(a.elems))
	for i := range a.elems {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	return idx
}

// fullName renders the attr path below the node, e.g. "input[0].inputGeometry".
// An element's parent is its array base (same spec); the element already
// names it, so the base is skipped and its parent prefixes instead.
func (a *attr) fullName() string {
	name := a.spec.name
	if a.index >= 0 {
		name += "[" + strconv.Itoa(a.index) + "]"
	}
	p := a.parent
	if p != nil && p.spec == a.spec {
		p = p.parent
	}
	if p != nil {
		return p.fullName() + "." + name
	}
	return name
}

func plugDesc(a *attr) string {
	if a == nil {
		return "<invalid plug>"
	}
	return a.owner.name + "." + a.fullName()
}

func (a *attr) setValue(v any) error {
	if a.isArray() || a.spec.kind == KindCompound {
		return fmt.Errorf("%w: %s holds no direct value", errKindMismatch, a.fullName())
	}
	switch a.spec.kind {
	case KindFloat:
		switch x := v.(type) {
		case float64:
			a.value = x
		case int:
			a.value = float64(x)
		default:
			return kindErr(a, v)
		}
	case KindInt:
		x, ok := v.(int)
		if !ok {
			return kindErr(a, v)
		}
		a.value = x
	case KindBool:
		x, ok := v.(bool)
		if !ok {
			return kindErr(a, v)
		}
		a.value = x
	case KindString:
		x, ok := v.(string)
		if !ok {
			return kindErr(a, v)
		}
		a.value = x
	case KindMatrix:
		x, ok := v.(mgl64.Mat4)
		if !ok {
			return kindErr(a, v)
		}
		a.value = x
	case KindPoints:
		x, ok := v.([]mgl64.Vec3)
		if !ok {
			return kindErr(a, v)
		}
		// Copy so later caller-side mutation cannot alias stored geometry.
		pts := make([]mgl64.Vec3, len(x))
		copy(pts, x)
		a.value = pts
	case KindMessage:
		return fmt.Errorf("%w: %s is a message plug", errKindMismatch, a.fullName())
	}
	return nil
}

func kindErr(a *attr, v any) error {
	return fmt.Errorf("%w: %s expects %s, got %T", errKindMismatch, a.fullName(), a.spec.kind, v)
}

// Plug addresses a single attribute slot on a node: a top-level attribute,
// an array element, or a compound child. The zero Plug is invalid. Plug
// addressing is fluent: a failed lookup returns an invalid plug carrying
// the error, which later operations on the plug surface.
type Plug struct {
	a   *attr
	err error
}

// IsValid reports whether the plug addresses an attribute.
func (p Plug) IsValid() bool {
	return p.a != nil
}

// Err returns the addressing error carried by an invalid plug, nil for a
// valid one.
//
// Returns:
//   - error: the lookup failure that produced this plug, or errInvalidPlug
//     for a zero plug
func (p Plug) Err() error {
	if p.err != nil {
		return p.err
	}
	if p.a == nil {
		return errInvalidPlug
	}
	return nil
}

// Node returns the node owning the plug.
//
// Returns:
//   - Node: the owning node, nil for an invalid plug
func (p Plug) Node() Node {
	if p.a == nil {
		return nil
	}
	return p.a.owner
}

// String renders the plug as "node.attr[index].child" for diagnostics.
func (p Plug) String() string {
	if p.a == nil {
		return "<invalid plug>"
	}
	p.a.owner.g.mu.RLock()
	defer p.a.owner.g.mu.RUnlock()
	return plugDesc(p.a)
}

// Element addresses the array element at logical index i, materializing it on
// first access. Calling Element on a non-array plug returns an invalid plug.
//
// Parameters:
//   - i: the logical element index
//
// Returns:
//   - Plug: the element plug
func (p Plug) Element(i int) Plug {
	if p.a == nil {
		return Plug{err: p.Err()}
	}
	g := p.a.owner.g
	g.mu.Lock()
	defer g.mu.Unlock()
	e := p.a.elem(i, true)
	if e == nil {
		return Plug{err: fmt.Errorf("%w: %s", errNotAnArray, plugDesc(p.a))}
	}
	return Plug{a: e}
}

// Child addresses a compound child attribute by name. Calling Child on a
// non-compound plug or with an unknown name returns an invalid plug.
//
// Parameters:
//   - name: the child attribute name
//
// Returns:
//   - Plug: the child plug
func (p Plug) Child(name string) Plug {
	if p.a == nil {
		return Plug{err: p.Err()}
	}
	g := p.a.owner.g
	g.mu.RLock()
	defer g.mu.RUnlock()
	c := p.a.child(name)
	if c == nil {
		return Plug{err: fmt.Errorf("%w: %s has no child %q", errUnknownAttr, plugDesc(p.a), name)}
	}
	return Plug{a: c}
}

// NumElements returns the number of materialized elements of an array plug.
func (p Plug) NumElements() int {
	if p.a == nil {
		return 0
	}
	g := p.a.owner.g
	g.mu.RLock()
	defer g.mu.RUnlock()
	return p.a.numElements()
}

// Set writes a value immediately, outside any modifier batch. The write is
// kind-checked against the schema.
//
// Parameters:
//   - v: the value; float64/int/bool/string/mgl64.Mat4/[]mgl64.Vec3 by kind
//
// Returns:
//   - error: errKindMismatch when v does not match the attribute kind
func (p Plug) Set(v any) error {
	if p.a == nil {
		return p.Err()
	}
	g := p.a.owner.g
	g.mu.Lock()
	defer g.mu.Unlock()
	return p.a.setValue(v)
}

// Value returns the stored value without evaluation (a connected channel
// still reports its static value; use the node's matrix evaluation to see
// curve-driven values).
//
// Returns:
//   - any: the stored value, nil for arrays, compounds, and message plugs
func (p Plug) Value() any {
	if p.a == nil {
		return nil
	}
	g := p.a.owner.g
	g.mu.RLock()
	defer g.mu.RUnlock()
	return p.a.value
}

// Float returns the stored float value.
//
// Returns:
//   - float64: the value
//   - error: errKindMismatch for non-float plugs
func (p Plug) Float() (float64, error) {
	if p.a == nil {
		return 0, p.Err()
	}
	v := p.Value()
	f, ok := v.(float64)
	if !ok {
		return 0, fmt.Errorf("%w: %s is not a float", errKindMismatch, p.String())
	}
	return f, nil
}

// Int returns the stored int value.
//
// Returns:
//   - int: the value
//   - error: errKindMismatch for non-int plugs
func (p Plug) Int() (int, error) {
	if p.a == nil {
		return 0, p.Err()
	}
	v := p.Value()
	i, ok := v.(int)
	if !ok {
		return 0, fmt.Errorf("%w: %s is not an int", errKindMismatch, p.String())
	}
	return i, nil
}

// Bool returns the stored bool value.
//
// Returns:
//   - bool: the value
//   - error: errKindMismatch for non-bool plugs
func (p Plug) Bool() (bool, error) {
	if p.a == nil {
		return false, p.Err()
	}
	v := p.Value()
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%w: %s is not a bool", errKindMismatch, p.String())
	}
	return b, nil
}

// Matrix returns the stored matrix value; unset matrix plugs report identity.
//
// Returns:
//   - mgl64.Mat4: the value
//   - error: errKindMismatch for non-matrix plugs
func (p Plug) Matrix() (mgl64.Mat4, error) {
	if p.a == nil {
		return mgl64.Ident4(), p.Err()
	}
	if p.a.spec.kind != KindMatrix {
		return mgl64.Ident4(), fmt.Errorf("%w: %s is not a matrix", errKindMismatch, p.String())
	}
	v := p.Value()
	m, ok := v.(mgl64.Mat4)
	if !ok {
		return mgl64.Ident4(), nil
	}
	return m, nil
}

// Points returns the stored geometry value.
//
// Returns:
//   - []mgl64.Vec3: a copy of the stored points
//   - error: errKindMismatch for non-geometry plugs
func (p Plug) Points() ([]mgl64.Vec3, error) {
	if p.a == nil {
		return nil, p.Err()
	}
	if p.a.spec.kind != KindPoints {
		return nil, fmt.Errorf("%w: %s is not geometry", errKindMismatch, p.String())
	}
	v := p.Value()
	pts, _ := v.([]mgl64.Vec3)
	out := make([]mgl64.Vec3, len(pts))
	copy(out, pts)
	return out, nil
}

// Source returns the plug feeding this one through a connection.
//
// Returns:
//   - Plug: the source plug
//   - bool: false when nothing is connected
func (p Plug) Source() (Plug, bool) {
	if p.a == nil {
		return Plug{}, false
	}
	g := p.a.owner.g
	g.mu.RLock()
	defer g.mu.RUnlock()
	if p.a.in == nil {
		return Plug{}, false
	}
	return Plug{a: p.a.in.src}, true
}

// Destinations returns every plug this one feeds.
//
// Returns:
//   - []Plug: the destination plugs, in connection order
func (p Plug) Destinations() []Plug {
	if p.a == nil {
		return nil
	}
	g := p.a.owner.g
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Plug, len(p.a.outs))
	for i, c := range p.a.outs {
		out[i] = Plug{a: c.dst}
	}
	return out
}

// IsConnected reports whether the plug has an incoming connection.
func (p Plug) IsConnected() bool {
	_, ok := p.Source()
	return ok
}
