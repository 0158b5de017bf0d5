package loader

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/Carmen-Shannon/skelport-go/rig"
)

// gltfSkinningQuery answers rig.SkinningQuery for one skinned mesh node.
// Points are the concatenation of the mesh's primitive vertices in
// primitive order.
type gltfSkinningQuery struct {
	src       *sourceImpl
	skeleton  *gltfSkeletonQuery
	nodeIndex int
	meshPath  string
	numPoints int
}

var _ rig.SkinningQuery = &gltfSkinningQuery{}

func newSkinningQuery(s *sourceImpl, skeleton *gltfSkeletonQuery, nodeIndex int) (*gltfSkinningQuery, error) {
	node := s.doc.Nodes[nodeIndex]
	if node.Mesh == nil || int(*node.Mesh) >= len(s.doc.Meshes) {
		return nil, errors.Errorf("node %d: invalid mesh index", nodeIndex)
	}
	q := &gltfSkinningQuery{
		src:       s,
		skeleton:  skeleton,
		nodeIndex: nodeIndex,
		meshPath:  s.nodePath(nodeIndex),
	}
	mesh := s.doc.Meshes[*node.Mesh]
	for pi, prim := range mesh.Primitives {
		count, err := primitivePointCount(s.doc, prim)
		if err != nil {
			return nil, errors.Wrapf(err, "primitive %d", pi)
		}
		q.numPoints += count
	}
	return q, nil
}

func primitivePointCount(doc *gltf.Document, prim *gltf.Primitive) (int, error) {
	posIndex, ok := prim.Attributes["POSITION"]
	if !ok {
		return 0, nil
	}
	if int(posIndex) >= len(doc.Accessors) {
		return 0, errors.Errorf("invalid position accessor index %d", posIndex)
	}
	return int(doc.Accessors[posIndex].Count), nil
}

func (q *gltfSkinningQuery) MeshPath() string {
	return q.meshPath
}

// GeomBindTransform is identity for glTF sources: skinned meshes deform in
// skeleton space and the mesh node's own transform does not contribute.
func (q *gltfSkinningQuery) GeomBindTransform() (mgl64.Mat4, error) {
	return mgl64.Ident4(), nil
}

func (q *gltfSkinningQuery) NumPoints() int {
	return q.numPoints
}

func (q *gltfSkinningQuery) InfluencesPerPoint() int {
	return 4
}

// JointInfluences returns the per-point influence table, remapped from the
// skin's original joint order to the sorted joint order. Primitives without
// skinning attributes contribute zero-weight entries so point alignment is
// preserved.
func (q *gltfSkinningQuery) JointInfluences() ([]int, []float64, error) {
	doc := q.src.doc
	mesh := doc.Meshes[*doc.Nodes[q.nodeIndex].Mesh]
	per := q.InfluencesPerPoint()

	indices := make([]int, 0, q.numPoints*per)
	weights := make([]float64, 0, q.numPoints*per)
	for pi, prim := range mesh.Primitives {
		count, err := primitivePointCount(doc, prim)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "primitive %d", pi)
		}
		if count == 0 {
			continue
		}
		jointsIndex, hasJoints := prim.Attributes["JOINTS_0"]
		weightsIndex, hasWeights := prim.Attributes["WEIGHTS_0"]
		if !hasJoints || !hasWeights {
			for i := 0; i < count*per; i++ {
				indices = append(indices, 0)
				weights = append(weights, 0)
			}
			continue
		}
		if int(jointsIndex) >= len(doc.Accessors) || int(weightsIndex) >= len(doc.Accessors) {
			return nil, nil, errors.Errorf("primitive %d: invalid skinning accessor index", pi)
		}
		joints, err := modeler.ReadJoints(doc, doc.Accessors[jointsIndex], [][4]uint16{})
		if err != nil {
			return nil, nil, errors.Wrapf(err, "primitive %d joints", pi)
		}
		wts, err := modeler.ReadWeights(doc, doc.Accessors[weightsIndex], [][4]float32{})
		if err != nil {
			return nil, nil, errors.Wrapf(err, "primitive %d weights", pi)
		}
		if len(joints) < count || len(wts) < count {
			return nil, nil, errors.Errorf("primitive %d: skinning data covers %d of %d points",
				pi, min(len(joints), len(wts)), count)
		}
		for v := 0; v < count; v++ {
			for k := 0; k < per; k++ {
				old := int(joints[v][k])
				mapped := old
				if old < len(q.skeleton.oldToNew) {
					mapped = q.skeleton.oldToNew[old]
				}
				indices = append(indices, mapped)
				weights = append(weights, float64(wts[v][k]))
			}
		}
	}
	return indices, weights, nil
}
