package loader

import (
	"fmt"
	"sort"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"

	"github.com/Carmen-Shannon/skelport-go/common"
	"github.com/Carmen-Shannon/skelport-go/rig"
	"github.com/Carmen-Shannon/skelport-go/rig/model"
)

// gltfSkeletonQuery answers rig.SkeletonQuery for one skin. Joints are
// topologically sorted at construction so parents always precede children,
// and the old-to-new index mapping is kept for remapping skinning data.
type gltfSkeletonQuery struct {
	src       *sourceImpl
	skinIndex int
	name      string

	paths        []string
	topo         model.Topology
	nodeForJoint []int
	oldToNew     []int
	restTRS      []nodeTRS

	jointAnim []trsChannels
	animated  bool

	// rootNodeIndex is the skeleton node outside the joint set carrying the
	// rig's own transform, -1 when the document authors none.
	rootNodeIndex int
	rootRestTRS   nodeTRS
	rootAncestors mgl64.Mat4
	rootAnim      trsChannels
}

var _ rig.SkeletonQuery = &gltfSkeletonQuery{}

// newSkeletonQuery builds the sorted joint view of one skin.
func newSkeletonQuery(s *sourceImpl, skinIndex int) (*gltfSkeletonQuery, error) {
	doc := s.doc
	skin := doc.Skins[skinIndex]

	q := &gltfSkeletonQuery{
		src:           s,
		skinIndex:     skinIndex,
		rootNodeIndex: -1,
		rootAncestors: mgl64.Ident4(),
	}

	q.name = skin.Name
	if q.name == "" && skin.Skeleton != nil {
		q.name = nodeName(doc, int(*skin.Skeleton))
	}
	if q.name == "" {
		q.name = fmt.Sprintf("skeleton_%d", skinIndex)
	}

	// First pass: validate joints and find each joint's parent within the
	// joint set. Parents outside the set make the joint a root.
	jointOfNode := make(map[int]int, len(skin.Joints))
	for i, nodeIndex := range skin.Joints {
		if int(nodeIndex) >= len(doc.Nodes) {
			return nil, errors.Errorf("joint %d: invalid node index %d", i, nodeIndex)
		}
		jointOfNode[int(nodeIndex)] = i
	}
	parentBone := make([]int, len(skin.Joints))
	var rootBones []int
	for i, nodeIndex := range skin.Joints {
		parentBone[i] = -1
		if p := s.parentOf[nodeIndex]; p >= 0 {
			if pb, ok := jointOfNode[p]; ok {
				parentBone[i] = pb
			}
		}
		if parentBone[i] < 0 {
			rootBones = append(rootBones, i)
		}
	}

	sorted, oldToNew := topologicalSortJoints(len(skin.Joints), parentBone, rootBones)
	q.oldToNew = oldToNew

	q.paths = make([]string, len(sorted))
	q.topo = make(model.Topology, len(sorted))
	q.nodeForJoint = make([]int, len(sorted))
	q.restTRS = make([]nodeTRS, len(sorted))
	for newIdx, oldIdx := range sorted {
		nodeIndex := int(skin.Joints[oldIdx])
		q.nodeForJoint[newIdx] = nodeIndex
		q.paths[newIdx] = s.nodePath(nodeIndex)
		q.restTRS[newIdx] = nodeRestTRS(doc.Nodes[nodeIndex])
		if p := parentBone[oldIdx]; p >= 0 {
			q.topo[newIdx] = oldToNew[p]
		} else {
			q.topo[newIdx] = -1
		}
	}

	// The skeleton node carries the rig's own transform when it is not
	// itself a joint; its ancestors contribute a static prefix.
	if skin.Skeleton != nil {
		rootIndex := int(*skin.Skeleton)
		if rootIndex < len(doc.Nodes) {
			if _, isJoint := jointOfNode[rootIndex]; !isJoint {
				q.rootNodeIndex = rootIndex
				q.rootRestTRS = nodeRestTRS(doc.Nodes[rootIndex])
				for p := s.parentOf[rootIndex]; p >= 0; p = s.parentOf[p] {
					q.rootAncestors = nodeRestTRS(doc.Nodes[p]).matrix().Mul4(q.rootAncestors)
				}
			}
		}
	}

	// The skin's inverse bind matrices are the authoritative bind pose when
	// authored; node transforms only approximate it.
	if skin.InverseBindMatrices != nil {
		ibms, err := readMat4Accessor(doc, int(*skin.InverseBindMatrices))
		if err != nil {
			return nil, errors.Wrap(err, "inverse bind matrices")
		}
		q.applyInverseBind(ibms, sorted)
	}

	if err := q.loadAnimation(); err != nil {
		return nil, err
	}
	return q, nil
}

// applyInverseBind replaces the node-derived rest pose with the skin's
// authored bind pose. inverse(ibm) is a joint's document-global bind
// transform, so locals follow from parent globals, with the static scaffold
// above each root joint divided out. The node-derived pose is kept whenever
// the authored set is incomplete or singular.
func (q *gltfSkeletonQuery) applyInverseBind(ibms [][16]float32, sorted []int) bool {
	if len(ibms) < len(sorted) {
		return false
	}
	global := make([]mgl64.Mat4, len(sorted))
	for newIdx, oldIdx := range sorted {
		g, ok := common.InvertMatrix(mat4FromGLTF(ibms[oldIdx]))
		if !ok {
			return false
		}
		global[newIdx] = g
	}
	rest := make([]nodeTRS, len(sorted))
	for i := range sorted {
		var parentGlobal mgl64.Mat4
		if p := q.topo.Parent(i); p >= 0 {
			parentGlobal = global[p]
		} else if q.rootNodeIndex >= 0 {
			parentGlobal = q.rootAncestors.Mul4(q.rootRestTRS.matrix())
		} else {
			parentGlobal = q.src.globalRestMatrix(q.src.parentOf[q.nodeForJoint[i]])
		}
		inv, ok := common.InvertMatrix(parentGlobal)
		if !ok {
			return false
		}
		rest[i] = decomposeMat4(inv.Mul4(global[i]))
	}
	copy(q.restTRS, rest)
	return true
}

// loadAnimation loads the channels of the first document animation that
// targets this skin's joints or its skeleton root.
func (q *gltfSkeletonQuery) loadAnimation() error {
	doc := q.src.doc
	jointForNode := make(map[int]int, len(q.nodeForJoint))
	for j, nodeIndex := range q.nodeForJoint {
		jointForNode[nodeIndex] = j
	}

	animIndex := -1
	for i, anim := range doc.Animations {
		for _, ch := range anim.Channels {
			if ch.Target.Node == nil {
				continue
			}
			n := int(*ch.Target.Node)
			if _, ok := jointForNode[n]; ok || n == q.rootNodeIndex {
				animIndex = i
				break
			}
		}
		if animIndex >= 0 {
			break
		}
	}
	if animIndex < 0 {
		return nil
	}

	anim := doc.Animations[animIndex]
	q.jointAnim = make([]trsChannels, len(q.nodeForJoint))
	for i, ch := range anim.Channels {
		if ch.Target.Node == nil || ch.Sampler == nil {
			continue
		}
		n := int(*ch.Target.Node)
		var dst *trsChannels
		if j, ok := jointForNode[n]; ok {
			dst = &q.jointAnim[j]
		} else if n == q.rootNodeIndex {
			dst = &q.rootAnim
		} else {
			continue
		}
		if int(*ch.Sampler) >= len(anim.Samplers) {
			return errors.Errorf("animation %d channel %d: invalid sampler index %d", animIndex, i, *ch.Sampler)
		}
		if err := dst.load(doc, anim.Samplers[*ch.Sampler], ch.Target.Path); err != nil {
			return errors.Wrapf(err, "animation %d channel %d", animIndex, i)
		}
	}

	for i := range q.jointAnim {
		if !q.jointAnim[i].empty() {
			q.animated = true
		}
	}
	if !q.rootAnim.empty() {
		q.animated = true
	}
	return nil
}

func (q *gltfSkeletonQuery) Name() string {
	return q.name
}

func (q *gltfSkeletonQuery) JointPaths() []string {
	return q.paths
}

func (q *gltfSkeletonQuery) Topology() model.Topology {
	return q.topo
}

func (q *gltfSkeletonQuery) HasAnimation() bool {
	return q.animated
}

func (q *gltfSkeletonQuery) JointLocalTransforms(t float64, atRest bool) ([]mgl64.Mat4, error) {
	out := make([]mgl64.Mat4, len(q.restTRS))
	for i, rest := range q.restTRS {
		if atRest || q.jointAnim == nil || q.jointAnim[i].empty() {
			out[i] = rest.matrix()
			continue
		}
		out[i] = q.jointAnim[i].sample(t, rest).matrix()
	}
	return out, nil
}

func (q *gltfSkeletonQuery) JointSkelTransforms(t float64, atRest bool) ([]mgl64.Mat4, error) {
	locals, err := q.JointLocalTransforms(t, atRest)
	if err != nil {
		return nil, err
	}
	out := make([]mgl64.Mat4, len(locals))
	for i, local := range locals {
		if p := q.topo.Parent(i); p >= 0 {
			out[i] = out[p].Mul4(local)
		} else {
			out[i] = local
		}
	}
	return out, nil
}

func (q *gltfSkeletonQuery) TimeSamples(interval *model.TimeRange) ([]float64, error) {
	seen := make(map[float64]bool)
	var times []float64
	add := func(ts []float32) {
		for _, t32 := range ts {
			t := float64(t32)
			if interval != nil && !interval.Contains(t) {
				continue
			}
			if !seen[t] {
				seen[t] = true
				times = append(times, t)
			}
		}
	}
	for i := range q.jointAnim {
		q.jointAnim[i].eachTimes(add)
	}
	q.rootAnim.eachTimes(add)
	sort.Float64s(times)
	return times, nil
}

func (q *gltfSkeletonQuery) RootTransform(t float64) (mgl64.Mat4, bool, error) {
	if q.rootNodeIndex < 0 {
		return mgl64.Ident4(), false, nil
	}
	local := q.rootRestTRS
	if !q.rootAnim.empty() {
		local = q.rootAnim.sample(t, q.rootRestTRS)
	}
	return q.rootAncestors.Mul4(local.matrix()), true, nil
}

// topologicalSortJoints orders joints breadth-first from the roots so
// parents always come before children, appending any disconnected joints at
// the end. It returns the new order as old indices plus the old-to-new
// mapping.
func topologicalSortJoints(count int, parentBone []int, rootBones []int) ([]int, []int) {
	children := make(map[int][]int)
	for i := 0; i < count; i++ {
		if p := parentBone[i]; p >= 0 {
			children[p] = append(children[p], i)
		}
	}

	sorted := make([]int, 0, count)
	queue := append([]int(nil), rootBones...)
	for len(queue) > 0 {
		idx := queue[0]
		queue = queue[1:]
		sorted = append(sorted, idx)
		queue = append(queue, children[idx]...)
	}

	if len(sorted) < count {
		visited := make(map[int]bool, len(sorted))
		for _, idx := range sorted {
			visited[idx] = true
		}
		for i := 0; i < count; i++ {
			if !visited[i] {
				sorted = append(sorted, i)
			}
		}
	}

	oldToNew := make([]int, count)
	for newIdx, oldIdx := range sorted {
		oldToNew[oldIdx] = newIdx
	}
	return sorted, oldToNew
}
