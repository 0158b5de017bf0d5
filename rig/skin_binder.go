package rig

import (
	"fmt"

	"github.com/Carmen-Shannon/skelport-go/common"
	"github.com/Carmen-Shannon/skelport-go/rig/graph"
	"github.com/Carmen-Shannon/skelport-go/rig/model"
	"github.com/charmbracelet/log"
	"github.com/go-gl/mathgl/mgl64"
)

// skinPrep holds the computed inputs of one skin bind: the densified weight
// matrix, the inverse rest transform per joint, and the geometry bind
// transform. Preparation touches no graph state, so preps for sibling meshes
// can be computed concurrently.
type skinPrep struct {
	weights     *model.WeightMatrix
	inverseBind []mgl64.Mat4
	geomBind    mgl64.Mat4
}

// skinBinder attaches skinned meshes to a built skeleton: it duplicates the
// rest geometry, freezes the mesh transform to the geometry bind pose, wires
// the deformer chain, and writes the dense weight table.
type skinBinder interface {
	// ResolveMesh finds the live mesh the query addresses. Unregistered
	// paths and nodes that are not deformable meshes resolve to nothing,
	// which callers treat as a skip rather than a failure.
	//
	// Parameters:
	//   - q: the skinning description naming the mesh
	//   - ctx: the import context holding created nodes
	//
	// Returns:
	//   - graph.Node: the mesh's transform node
	//   - graph.Node: the mesh shape node
	//   - bool: false when the mesh cannot be bound
	ResolveMesh(q SkinningQuery, ctx *ImportContext) (graph.Node, graph.Node, bool)

	// PrepareBind computes the bind inputs without touching the graph.
	//
	// Parameters:
	//   - q: the skinning description to densify
	//   - skel: the built skeleton the mesh binds to
	//
	// Returns:
	//   - *skinPrep: the computed bind inputs
	//   - error: a *SingularBindMatrixError when a joint rest transform has
	//     no inverse, or a descriptive error for malformed influence data
	PrepareBind(q SkinningQuery, skel *ImportedSkeleton) (*skinPrep, error)

	// BindPrepared performs the graph mutations of one bind using inputs
	// computed by PrepareBind. Mutations are grouped into batches so a
	// failure discards the batch it occurred in.
	//
	// Parameters:
	//   - q: the skinning description being bound
	//   - prep: the computed bind inputs
	//   - meshTransform: the mesh's transform node
	//   - meshShape: the mesh shape node
	//   - skel: the built skeleton the mesh binds to
	//   - ctx: the import context to register created nodes with
	//
	// Returns:
	//   - graph.Node: the created deformer
	//   - error: if any wiring or write step fails
	BindPrepared(q SkinningQuery, prep *skinPrep, meshTransform, meshShape graph.Node, skel *ImportedSkeleton, ctx *ImportContext) (graph.Node, error)

	// BindSkin resolves, prepares, and binds one mesh.
	//
	// Parameters:
	//   - q: the skinning description to bind
	//   - skel: the built skeleton the mesh binds to
	//   - ctx: the import context
	//
	// Returns:
	//   - graph.Node: the created deformer, nil when skipped
	//   - bool: true when the mesh was skipped
	//   - error: a *SkinBindError describing the failed mesh
	BindSkin(q SkinningQuery, skel *ImportedSkeleton, ctx *ImportContext) (graph.Node, bool, error)
}

var _ skinBinder = &skinBinderImpl{}

type skinBinderImpl struct {
	logger *log.Logger
}

// newSkinBinder creates a skin binder.
//
// Parameters:
//   - logger: the logger for skip and recovery diagnostics
//
// Returns:
//   - skinBinder: the new binder
func newSkinBinder(logger *log.Logger) skinBinder {
	return &skinBinderImpl{logger: logger}
}

func (b *skinBinderImpl) BindSkin(q SkinningQuery, skel *ImportedSkeleton, ctx *ImportContext) (graph.Node, bool, error) {
	meshTransform, meshShape, ok := b.ResolveMesh(q, ctx)
	if !ok {
		return nil, true, nil
	}
	prep, err := b.PrepareBind(q, skel)
	if err != nil {
		return nil, false, &SkinBindError{MeshPath: q.MeshPath(), Err: err}
	}
	deformer, err := b.BindPrepared(q, prep, meshTransform, meshShape, skel, ctx)
	if err != nil {
		return nil, false, &SkinBindError{MeshPath: q.MeshPath(), Err: err}
	}
	return deformer, false, nil
}

func (b *skinBinderImpl) ResolveMesh(q SkinningQuery, ctx *ImportContext) (graph.Node, graph.Node, bool) {
	n, ok := ctx.Node(q.MeshPath())
	if !ok {
		b.logger.Debug("mesh not imported, skipping bind", "mesh", q.MeshPath())
		return nil, nil, false
	}
	switch n.Type() {
	case graph.NodeTypeMesh:
		if parent := n.Parent(); parent != nil {
			return parent, n, true
		}
	case graph.NodeTypeTransform:
		for _, c := range n.Children() {
			if c.Type() != graph.NodeTypeMesh {
				continue
			}
			if intermediate, err := c.Plug("intermediateObject").Bool(); err == nil && !intermediate {
				return n, c, true
			}
		}
	}
	b.logger.Warn("node is not a bindable mesh, skipping", "mesh", q.MeshPath())
	return nil, nil, false
}

func (b *skinBinderImpl) PrepareBind(q SkinningQuery, skel *ImportedSkeleton) (*skinPrep, error) {
	numJoints := len(skel.Joints)
	if len(skel.RestSkelTransforms) != numJoints {
		return nil, fmt.Errorf("skeleton carries %d rest transforms for %d joints", len(skel.RestSkelTransforms), numJoints)
	}

	numPoints := q.NumPoints()
	perPoint := q.InfluencesPerPoint()
	indices, sparse, err := q.JointInfluences()
	if err != nil {
		return nil, fmt.Errorf("reading influences: %w", err)
	}
	if perPoint <= 0 || len(indices) != numPoints*perPoint || len(sparse) != len(indices) {
		return nil, fmt.Errorf("influence data authors %d index and %d weight slots, want %d", len(indices), len(sparse), numPoints*perPoint)
	}

	// Duplicate influences of the same joint accumulate; indices outside
	// the joint range are dropped by the matrix itself.
	weights := model.NewWeightMatrix(numPoints, numJoints)
	for p := 0; p < numPoints; p++ {
		for s := 0; s < perPoint; s++ {
			weights.Add(p, indices[p*perPoint+s], sparse[p*perPoint+s])
		}
	}

	inverseBind := make([]mgl64.Mat4, numJoints)
	for j, m := range skel.RestSkelTransforms {
		inv, ok := common.InvertMatrix(m)
		if !ok {
			path := ""
			if j < len(skel.Paths) {
				path = skel.Paths[j]
			}
			return nil, &SingularBindMatrixError{JointIndex: j, JointPath: path}
		}
		inverseBind[j] = inv
	}

	geomBind, err := q.GeomBindTransform()
	if err != nil {
		return nil, fmt.Errorf("reading geometry bind transform: %w", err)
	}
	return &skinPrep{weights: weights, inverseBind: inverseBind, geomBind: geomBind}, nil
}

func (b *skinBinderImpl) BindPrepared(q SkinningQuery, prep *skinPrep, meshTransform, meshShape graph.Node, skel *ImportedSkeleton, ctx *ImportContext) (graph.Node, error) {
	g := ctx.Graph()
	meshName := meshShape.Name()

	restCopy, err := b.duplicateRestGeometry(meshTransform, meshShape, ctx)
	if err != nil {
		return nil, err
	}
	if err := b.freezeToGeomBind(q, meshTransform, prep.geomBind, ctx); err != nil {
		return nil, err
	}

	mod := g.NewModifier()
	deformer, err := mod.CreateNode(graph.NodeTypeSkinDeformer, meshName+"_skinCluster", nil)
	if err != nil {
		return nil, err
	}
	groupIDNode, err := mod.CreateNode(graph.NodeTypeGroupID, meshName+"_groupId", nil)
	if err != nil {
		return nil, err
	}
	groupPartsNode, err := mod.CreateNode(graph.NodeTypeGroupParts, meshName+"_groupParts", nil)
	if err != nil {
		return nil, err
	}

	mod.Set(groupPartsNode.Plug("inputComponents"), "vtx[*]")
	mod.Connect(restCopy.Plug("outMesh"), groupPartsNode.Plug("inputGeometry"))
	mod.Connect(groupIDNode.Plug("groupId"), groupPartsNode.Plug("groupId"))

	input0 := deformer.Plug("input").Element(0)
	mod.Connect(groupPartsNode.Plug("outputGeometry"), input0.Child("inputGeometry"))
	mod.Connect(groupIDNode.Plug("groupId"), input0.Child("groupId"))

	objectGroup := meshShape.Plug("instObjGroups").Element(0).Child("objectGroups").Element(0)
	mod.Connect(groupIDNode.Plug("groupId"), objectGroup.Child("objectGroupId"))

	mod.BreakIncoming(meshShape.Plug("inMesh"))
	mod.Connect(deformer.Plug("outputGeometry").Element(0), meshShape.Plug("inMesh"))
	mod.Set(deformer.Plug("geomMatrix"), prep.geomBind)

	matrixArr := deformer.Plug("matrix")
	preArr := deformer.Plug("bindPreMatrix")
	mod.ResizeArray(matrixArr, len(skel.Joints))
	mod.ResizeArray(preArr, len(skel.Joints))
	for j, joint := range skel.Joints {
		if joint == nil {
			continue
		}
		mod.Connect(joint.Plug("worldMatrix").Element(0), matrixArr.Element(j))
		mod.Set(preArr.Element(j), prep.inverseBind[j])
	}
	if skel.BindPose != nil {
		mod.Connect(skel.BindPose.Plug("message"), deformer.Plug("bindPose"))
	}
	if err := mod.Commit(); err != nil {
		return nil, err
	}
	ctx.RegisterNode("", deformer)
	ctx.RegisterNode("", groupIDNode)
	ctx.RegisterNode("", groupPartsNode)

	if err := b.writeWeights(deformer, prep.weights, ctx); err != nil {
		return nil, err
	}
	return deformer, nil
}

// duplicateRestGeometry copies the mesh's authored points into a hidden
// intermediate shape under the same transform. The copy feeds the deformer
// so the visible shape can become pure deformer output.
func (b *skinBinderImpl) duplicateRestGeometry(meshTransform, meshShape graph.Node, ctx *ImportContext) (graph.Node, error) {
	restPoints, err := meshShape.Plug("points").Points()
	if err != nil {
		return nil, err
	}
	mod := ctx.Graph().NewModifier()
	restCopy, err := mod.CreateNode(graph.NodeTypeMesh, meshShape.Name()+"_rest", meshTransform)
	if err != nil {
		return nil, err
	}
	mod.Set(restCopy.Plug("points"), restPoints)
	mod.Set(restCopy.Plug("intermediateObject"), true)
	if err := mod.Commit(); err != nil {
		return nil, err
	}
	ctx.RegisterNode("", restCopy)
	return restCopy, nil
}

// freezeToGeomBind pins the mesh transform to the geometry bind pose:
// inherited transforms are disabled and the nine channels are overwritten
// with the decomposed bind transform after clearing any incoming
// connections.
func (b *skinBinderImpl) freezeToGeomBind(q SkinningQuery, meshTransform graph.Node, geomBind mgl64.Mat4, ctx *ImportContext) error {
	if err := meshTransform.Plug("inheritsTransform").Set(false); err != nil {
		return err
	}
	t, r, s, ok := common.DecomposeTRS(geomBind)
	if !ok {
		b.logger.Warn("geometry bind transform does not decompose, using identity", "mesh", q.MeshPath())
		t, r, s = mgl64.Vec3{}, mgl64.Vec3{}, mgl64.Vec3{1, 1, 1}
	}
	components := [9]float64{t.X(), t.Y(), t.Z(), r.X(), r.Y(), r.Z(), s.X(), s.Y(), s.Z()}

	mod := ctx.Graph().NewModifier()
	for ci, channel := range transformChannels {
		ch := meshTransform.Plug(channel)
		mod.BreakIncoming(ch)
		mod.Set(ch, components[ci])
	}
	return mod.Commit()
}

// writeWeights writes the dense weight table onto the deformer in a single
// batch, so a failed write leaves no partial weights behind. Normalization
// is disabled first: authored weights are trusted as-is.
func (b *skinBinderImpl) writeWeights(deformer graph.Node, weights *model.WeightMatrix, ctx *ImportContext) error {
	mod := ctx.Graph().NewModifier()
	mod.Set(deformer.Plug("normalizeWeights"), 0)

	weightList := deformer.Plug("weightList")
	mod.ResizeArray(weightList, weights.Points)
	for p := 0; p < weights.Points; p++ {
		perJoint := weightList.Element(p).Child("weights")
		for j, w := range weights.Row(p) {
			if w == 0 {
				continue
			}
			mod.Set(perJoint.Element(j), w)
		}
	}
	return mod.Commit()
}
