package rig

import (
	"errors"
	"fmt"
	"testing"

	"github.com/Carmen-Shannon/skelport-go/rig/graph"
	"github.com/Carmen-Shannon/skelport-go/rig/model"
	"github.com/go-gl/mathgl/mgl64"
)

// cubeSkin is the standard four point skinning fixture: duplicate influences
// on point 0, an out-of-range influence on point 1, a fully weighted point 2
// and an unweighted point 3.
func cubeSkin(meshPath string) *fakeSkin {
	return &fakeSkin{
		meshPath: meshPath,
		points:   4,
		perPoint: 2,
		indices:  []int{0, 0, 1, 99, 2, 0, 0, 0},
		weights:  []float64{0.25, 0.5, 0.6, 0.4, 1.0, 0.0, 0.0, 0.0},
	}
}

var cubePoints = []mgl64.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {0, 0, 1}}

func TestBindMeshWiring(t *testing.T) {
	imp := NewImporter(WithComputeWorkers(1))
	skel, err := imp.ImportSkeleton(chainSkeleton())
	if err != nil {
		t.Fatalf("ImportSkeleton: %v", err)
	}
	transform, shape := buildTestMesh(t, imp, "/geo/cube", "cube", cubePoints)

	res := imp.BindMesh(skel, cubeSkin("/geo/cube"))
	if !res.Bound() {
		t.Fatalf("BindMesh: skipped=%v err=%v", res.Skipped, res.Err)
	}
	deformer := res.Deformer
	if have, want := deformer.Name(), "cubeShape_skinCluster"; have != want {
		t.Fatalf("deformer name:\nhave %q\nwant %q", have, want)
	}

	// The rest copy hides under the mesh transform as an intermediate.
	restCopy, ok := transform.Child("cubeShape_rest")
	if !ok {
		t.Fatalf("rest copy not found under mesh transform")
	}
	if restCopy.Type() != graph.NodeTypeMesh {
		t.Fatalf("rest copy type:\nhave %q\nwant mesh", restCopy.Type())
	}
	if inter, _ := restCopy.Plug("intermediateObject").Bool(); !inter {
		t.Fatalf("rest copy intermediateObject:\nhave false\nwant true")
	}
	restPts, err := restCopy.Plug("points").Points()
	if err != nil || len(restPts) != 4 || restPts[1] != cubePoints[1] {
		t.Fatalf("rest copy points:\nhave %v, %v\nwant authored points", restPts, err)
	}

	// Geometry flows rest copy -> groupParts -> deformer -> visible shape.
	groupParts, ok := imp.Graph().NodeByPath("cubeShape_groupParts")
	if !ok {
		t.Fatalf("groupParts node not found")
	}
	if src, ok := groupParts.Plug("inputGeometry").Source(); !ok || src.Node() != restCopy {
		t.Fatalf("groupParts input:\nhave %v, %v\nwant rest copy outMesh", src, ok)
	}
	if src, ok := deformer.Plug("input").Element(0).Child("inputGeometry").Source(); !ok || src.Node() != groupParts {
		t.Fatalf("deformer input:\nhave %v, %v\nwant groupParts outputGeometry", src, ok)
	}
	if src, ok := shape.Plug("inMesh").Source(); !ok || src.Node() != deformer {
		t.Fatalf("shape inMesh:\nhave %v, %v\nwant deformer outputGeometry[0]", src, ok)
	}
	if comps, _ := groupParts.Plug("inputComponents").Value().(string); comps != "vtx[*]" {
		t.Fatalf("inputComponents:\nhave %q\nwant vtx[*]", comps)
	}

	// One group id feeds the parts filter, the deformer input, and the
	// shape's object group.
	groupID, ok := imp.Graph().NodeByPath("cubeShape_groupId")
	if !ok {
		t.Fatalf("groupId node not found")
	}
	for _, dst := range []graph.Plug{
		groupParts.Plug("groupId"),
		deformer.Plug("input").Element(0).Child("groupId"),
		shape.Plug("instObjGroups").Element(0).Child("objectGroups").Element(0).Child("objectGroupId"),
	} {
		if src, ok := dst.Source(); !ok || src.Node() != groupID {
			t.Fatalf("group id wiring for %s:\nhave %v, %v\nwant groupId source", dst.String(), src, ok)
		}
	}
	if id, err := groupID.Plug("groupId").Int(); err != nil || id <= 0 {
		t.Fatalf("groupId value:\nhave %d, %v\nwant positive id", id, err)
	}

	// Joint matrices connect live, bind pre matrices invert the rest pose.
	for j, joint := range skel.Joints {
		src, ok := deformer.Plug("matrix").Element(j).Source()
		if !ok || src.Node() != joint {
			t.Fatalf("matrix[%d] source:\nhave %v, %v\nwant joint worldMatrix[0]", j, src, ok)
		}
		if have, want := src.String(), joint.Name()+".worldMatrix[0]"; have != want {
			t.Fatalf("matrix[%d] source plug:\nhave %q\nwant %q", j, have, want)
		}
		pre, err := deformer.Plug("bindPreMatrix").Element(j).Matrix()
		if err != nil {
			t.Fatalf("bindPreMatrix[%d]: %v", j, err)
		}
		if prod := pre.Mul4(skel.RestSkelTransforms[j]); !nearMat4(prod, mgl64.Ident4(), 1e-9) {
			t.Fatalf("bindPreMatrix[%d] * rest:\nhave %v\nwant identity", j, prod)
		}
	}

	// Authored weights are trusted as-is.
	if nw, err := deformer.Plug("normalizeWeights").Int(); err != nil || nw != 0 {
		t.Fatalf("normalizeWeights:\nhave %d, %v\nwant 0", nw, err)
	}
	if src, ok := deformer.Plug("bindPose").Source(); !ok || src.Node() != skel.BindPose {
		t.Fatalf("deformer bindPose:\nhave %v, %v\nwant bind pose record message", src, ok)
	}

	// The mesh transform froze to the geometry bind pose.
	if inherits, _ := transform.Plug("inheritsTransform").Bool(); inherits {
		t.Fatalf("mesh inheritsTransform:\nhave true\nwant false")
	}
}

func TestBindMeshWeightTable(t *testing.T) {
	imp := NewImporter(WithComputeWorkers(1))
	skel, err := imp.ImportSkeleton(chainSkeleton())
	if err != nil {
		t.Fatalf("ImportSkeleton: %v", err)
	}
	buildTestMesh(t, imp, "/geo/cube", "cube", cubePoints)

	res := imp.BindMesh(skel, cubeSkin("/geo/cube"))
	if !res.Bound() {
		t.Fatalf("BindMesh: skipped=%v err=%v", res.Skipped, res.Err)
	}
	weightList := res.Deformer.Plug("weightList")
	if have := weightList.NumElements(); have != 4 {
		t.Fatalf("weightList rows:\nhave %d\nwant 4", have)
	}

	// Point 0: duplicate influences of joint 0 accumulate.
	if w, err := weightList.Element(0).Child("weights").Element(0).Float(); err != nil || w != 0.75 {
		t.Fatalf("w[0][0]:\nhave %v, %v\nwant 0.75", w, err)
	}
	// Point 1: the out-of-range influence is dropped, not clamped.
	if w, err := weightList.Element(1).Child("weights").Element(1).Float(); err != nil || w != 0.6 {
		t.Fatalf("w[1][1]:\nhave %v, %v\nwant 0.6", w, err)
	}
	if have := weightList.Element(1).Child("weights").NumElements(); have != 1 {
		t.Fatalf("point 1 stored weights:\nhave %d\nwant 1", have)
	}
	// Point 3: zero weights write nothing.
	if have := weightList.Element(3).Child("weights").NumElements(); have != 0 {
		t.Fatalf("point 3 stored weights:\nhave %d\nwant 0", have)
	}
}

func TestBindMeshDeformsEndToEnd(t *testing.T) {
	imp := NewImporter(WithComputeWorkers(1))
	skel, err := imp.ImportSkeleton(chainSkeleton())
	if err != nil {
		t.Fatalf("ImportSkeleton: %v", err)
	}
	_, shape := buildTestMesh(t, imp, "/geo/cube", "cube", cubePoints)

	res := imp.BindMesh(skel, cubeSkin("/geo/cube"))
	if !res.Bound() {
		t.Fatalf("BindMesh: skipped=%v err=%v", res.Skipped, res.Err)
	}

	// At the bind pose every joint's blend matrix is identity, so output is
	// the bound point scaled by the (unnormalized) total weight.
	atRest := []mgl64.Vec3{{0, 0, 0}, {0.6, 0, 0}, {0, 1, 0}, {0, 0, 1}}
	got, err := shape.PointsAt(0)
	if err != nil {
		t.Fatalf("PointsAt: %v", err)
	}
	for i, want := range atRest {
		if !nearVec3(got[i], want, 1e-12) {
			t.Fatalf("rest point %d:\nhave %v\nwant %v", i, got[i], want)
		}
	}

	// Translating the hip shifts every joint world by the same delta.
	if err := skel.Joints[0].Plug("translateX").Set(3.0); err != nil {
		t.Fatalf("move hip: %v", err)
	}
	moved := []mgl64.Vec3{{1.5, 0, 0}, {1.8, 0, 0}, {2, 1, 0}, {0, 0, 1}}
	got, err = shape.PointsAt(0)
	if err != nil {
		t.Fatalf("PointsAt: %v", err)
	}
	for i, want := range moved {
		if !nearVec3(got[i], want, 1e-12) {
			t.Fatalf("moved point %d:\nhave %v\nwant %v", i, got[i], want)
		}
	}
}

func TestBindMeshFreezesGeomBind(t *testing.T) {
	imp := NewImporter(WithComputeWorkers(1))
	skel, err := imp.ImportSkeleton(chainSkeleton())
	if err != nil {
		t.Fatalf("ImportSkeleton: %v", err)
	}
	transform, _ := buildTestMesh(t, imp, "/geo/cube", "cube", cubePoints)

	skin := cubeSkin("/geo/cube")
	skin.geomBind = mgl64.Translate3D(0, 2, 0)
	res := imp.BindMesh(skel, skin)
	if !res.Bound() {
		t.Fatalf("BindMesh: skipped=%v err=%v", res.Skipped, res.Err)
	}

	gm, err := res.Deformer.Plug("geomMatrix").Matrix()
	if err != nil {
		t.Fatalf("geomMatrix: %v", err)
	}
	if !nearMat4(gm, skin.geomBind, 1e-12) {
		t.Fatalf("geomMatrix:\nhave %v\nwant %v", gm, skin.geomBind)
	}
	for channel, want := range map[string]float64{
		"translateX": 0, "translateY": 2, "translateZ": 0,
		"rotateX": 0, "scaleX": 1, "scaleZ": 1,
	} {
		v, err := transform.Plug(channel).Float()
		if err != nil {
			t.Fatalf("%s: %v", channel, err)
		}
		if v != want {
			t.Fatalf("frozen %s:\nhave %v\nwant %v", channel, v, want)
		}
	}
}

func TestBindSkipsUnresolvedMesh(t *testing.T) {
	imp := NewImporter(WithComputeWorkers(1))
	skel, err := imp.ImportSkeleton(chainSkeleton())
	if err != nil {
		t.Fatalf("ImportSkeleton: %v", err)
	}

	res := imp.BindMesh(skel, cubeSkin("/geo/never_imported"))
	if !res.Skipped || res.Err != nil || res.Deformer != nil {
		t.Fatalf("unresolved mesh:\nhave %+v\nwant clean skip", res)
	}
}

func TestBindSkipsNonMeshNode(t *testing.T) {
	imp := NewImporter(WithComputeWorkers(1))
	skel, err := imp.ImportSkeleton(chainSkeleton())
	if err != nil {
		t.Fatalf("ImportSkeleton: %v", err)
	}

	// A transform with no mesh shape under it is not bindable.
	mod := imp.Graph().NewModifier()
	empty, err := mod.CreateNode(graph.NodeTypeTransform, "empty", nil)
	if err != nil {
		t.Fatalf("CreateNode: %v", err)
	}
	if err := mod.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	imp.Context().RegisterNode("/geo/empty", empty)

	res := imp.BindMesh(skel, cubeSkin("/geo/empty"))
	if !res.Skipped || res.Err != nil {
		t.Fatalf("transform without shape:\nhave %+v\nwant skip", res)
	}

	// Registering a joint under the path is equally unbindable.
	imp.Context().RegisterNode("/geo/joint", skel.Joints[0])
	res = imp.BindMesh(skel, cubeSkin("/geo/joint"))
	if !res.Skipped || res.Err != nil {
		t.Fatalf("joint path:\nhave %+v\nwant skip", res)
	}
}

func TestBindSingularRestFails(t *testing.T) {
	imp := NewImporter(WithComputeWorkers(1))
	q := &fakeSkeleton{
		name:  "broken",
		paths: []string{"/skel/a", "/skel/a/b"},
		topo:  model.Topology{-1, 0},
		rest:  []mgl64.Mat4{mgl64.Translate3D(1, 0, 0), mgl64.Scale3D(0, 0, 0)},
	}
	skel, err := imp.ImportSkeleton(q)
	if err != nil {
		t.Fatalf("ImportSkeleton: %v", err)
	}
	buildTestMesh(t, imp, "/geo/cube", "cube", cubePoints)

	skin := cubeSkin("/geo/cube")
	res := imp.BindMesh(skel, skin)
	var sbe *SkinBindError
	if !errors.As(res.Err, &sbe) {
		t.Fatalf("singular rest:\nhave %v\nwant *SkinBindError", res.Err)
	}
	var sme *SingularBindMatrixError
	if !errors.As(res.Err, &sme) {
		t.Fatalf("singular rest:\nhave %v\nwant wrapped *SingularBindMatrixError", res.Err)
	}
	if sme.JointIndex != 1 || sme.JointPath != "/skel/a/b" {
		t.Fatalf("error detail:\nhave %+v\nwant joint 1, /skel/a/b", sme)
	}
}

func TestBindMeshesParallel(t *testing.T) {
	imp := NewImporter(WithComputeWorkers(4))
	skel, err := imp.ImportSkeleton(chainSkeleton())
	if err != nil {
		t.Fatalf("ImportSkeleton: %v", err)
	}

	var skins []SkinningQuery
	for i := 0; i < 6; i++ {
		path := fmt.Sprintf("/geo/m%d", i)
		name := fmt.Sprintf("m%d", i)
		buildTestMesh(t, imp, path, name, []mgl64.Vec3{{float64(i), 0, 0}})
		skins = append(skins, &fakeSkin{
			meshPath: path,
			points:   1,
			perPoint: 1,
			indices:  []int{0},
			weights:  []float64{1},
		})
	}

	results := imp.BindMeshes(skel, skins)
	if len(results) != 6 {
		t.Fatalf("result count:\nhave %d\nwant 6", len(results))
	}
	for i, res := range results {
		if res.MeshPath != fmt.Sprintf("/geo/m%d", i) {
			t.Fatalf("result %d order:\nhave %q\nwant /geo/m%d", i, res.MeshPath, i)
		}
		if !res.Bound() {
			t.Fatalf("result %d: skipped=%v err=%v", i, res.Skipped, res.Err)
		}
		if want := fmt.Sprintf("m%dShape_skinCluster", i); res.Deformer.Name() != want {
			t.Fatalf("result %d deformer:\nhave %q\nwant %q", i, res.Deformer.Name(), want)
		}
	}
}
