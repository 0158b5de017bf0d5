package graph

import (
	"fmt"

	"github.com/Carmen-Shannon/skelport-go/common"
	"github.com/go-gl/mathgl/mgl64"
)

// maxEvalDepth bounds geometry pull chains so a miswired graph fails instead
// of recursing forever.
const maxEvalDepth = 32

func (n *node) LocalMatrixAt(t float64) mgl64.Mat4 {
	n.g.mu.RLock()
	defer n.g.mu.RUnlock()
	return n.localMatrix(t)
}

func (n *node) WorldMatrixAt(t float64) mgl64.Mat4 {
	n.g.mu.RLock()
	defer n.g.mu.RUnlock()
	return n.worldMatrix(t)
}

func (n *node) PointsAt(t float64) ([]mgl64.Vec3, error) {
	n.g.mu.RLock()
	defer n.g.mu.RUnlock()
	return n.pointsAt(t, 0)
}

// localMatrix composes TRS channels at time t. Shapes carry no channels and
// contribute identity; non-DAG nodes always report identity.
func (n *node) localMatrix(t float64) mgl64.Mat4 {
	if !n.typ.IsDAG() || n.typ == NodeTypeMesh {
		return mgl64.Ident4()
	}
	translate := mgl64.Vec3{n.channel("translateX", t), n.channel("translateY", t), n.channel("translateZ", t)}
	rotate := mgl64.Vec3{n.channel("rotateX", t), n.channel("rotateY", t), n.channel("rotateZ", t)}
	scale := mgl64.Vec3{n.channel("scaleX", t), n.channel("scaleY", t), n.channel("scaleZ", t)}
	return common.ComposeTRS(translate, rotate, scale)
}

// channel reads one TRS channel at time t: a connected animCurve wins over
// the stored static value.
func (n *node) channel(name string, t float64) float64 {
	a, ok := n.attrs[name]
	if !ok {
		return 0
	}
	if a.in != nil {
		src := a.in.src.owner
		if src.curve != nil {
			return src.curve.evaluate(t)
		}
	}
	f, _ := a.value.(float64)
	return f
}

func (n *node) worldMatrix(t float64) mgl64.Mat4 {
	local := n.localMatrix(t)
	if n.parent == nil || n.parent == n.g.root {
		return local
	}
	if a, ok := n.attrs["inheritsTransform"]; ok {
		if inherits, _ := a.value.(bool); !inherits {
			return local
		}
	}
	return n.parent.worldMatrix(t).Mul4(local)
}

// pointsAt evaluates a node's output geometry at time t by pulling through
// incoming connections.
func (n *node) pointsAt(t float64, depth int) ([]mgl64.Vec3, error) {
	if depth > maxEvalDepth {
		return nil, errEvalDepth
	}
	switch n.typ {
	case NodeTypeMesh:
		if in := n.attrs["inMesh"]; in != nil && in.in != nil {
			return in.in.src.owner.pointsAt(t, depth+1)
		}
		pts, _ := n.attrs["points"].value.([]mgl64.Vec3)
		out := make([]mgl64.Vec3, len(pts))
		copy(out, pts)
		return out, nil
	case NodeTypeGroupParts:
		in := n.attrs["inputGeometry"]
		if in.in == nil {
			return nil, nil
		}
		// The only component set written by this module is "all points", so
		// group filtering is a passthrough.
		return in.in.src.owner.pointsAt(t, depth+1)
	case NodeTypeSkinDeformer:
		return n.evalSkinDeformer(t, depth)
	}
	return nil, fmt.Errorf("%w: %q", errNotGeometry, n.name)
}

// evalSkinDeformer applies linear-blend skinning to the deformer's input
// geometry: each point is taken to its bound position by geomMatrix, then
// blended through (matrix[j] * bindPreMatrix[j]) weighted by the point's
// weight row. Points with an all-zero weight row pass through at their bound
// position.
func (n *node) evalSkinDeformer(t float64, depth int) ([]mgl64.Vec3, error) {
	input := n.attrs["input"].elem(0, false)
	if input == nil {
		return nil, fmt.Errorf("%q has no input geometry", n.name)
	}
	geomIn := input.child("inputGeometry")
	if geomIn == nil || geomIn.in == nil {
		return nil, fmt.Errorf("%q has no input geometry", n.name)
	}
	rest, err := geomIn.in.src.owner.pointsAt(t, depth+1)
	if err != nil {
		return nil, err
	}

	geomMatrix := mgl64.Ident4()
	if m, ok := n.attrs["geomMatrix"].value.(mgl64.Mat4); ok {
		geomMatrix = m
	}

	matrixArr := n.attrs["matrix"]
	bindArr := n.attrs["bindPreMatrix"]
	jointIndices := matrixArr.elementIndices()
	blend := make([]mgl64.Mat4, 0, len(jointIndices))
	blendIdx := make([]int, 0, len(jointIndices))
	for _, j := range jointIndices {
		elem := matrixArr.elem(j, false)
		world := mgl64.Ident4()
		if elem.in != nil {
			src := elem.in.src
			if src.spec.name == "worldMatrix" {
				world = src.owner.worldMatrix(t)
			} else if m, ok := src.value.(mgl64.Mat4); ok {
				world = m
			}
		} else if m, ok := elem.value.(mgl64.Mat4); ok {
			world = m
		}
		pre := mgl64.Ident4()
		if bindElem := bindArr.elem(j, false); bindElem != nil {
			if m, ok := bindElem.value.(mgl64.Mat4); ok {
				pre = m
			}
		}
		blend = append(blend, world.Mul4(pre))
		blendIdx = append(blendIdx, j)
	}

	weightList := n.attrs["weightList"]
	out := make([]mgl64.Vec3, len(rest))
	for p := range rest {
		bound := common.TransformPoint(geomMatrix, rest[p])
		var sum mgl64.Vec3
		var total float64
		if row := weightList.elem(p, false); row != nil {
			weights := row.child("weights")
			for k, j := range blendIdx {
				wAttr := weights.elem(j, false)
				if wAttr == nil {
					continue
				}
				w, _ := wAttr.value.(float64)
				if w == 0 {
					continue
				}
				sum = sum.Add(common.TransformPoint(blend[k], bound).Mul(w))
				total += w
			}
		}
		if total == 0 {
			out[p] = bound
		} else {
			out[p] = sum
		}
	}
	return out, nil
}
