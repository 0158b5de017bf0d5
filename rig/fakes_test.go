package rig

import (
	"math"
	"testing"

	"github.com/Carmen-Shannon/skelport-go/rig/graph"
	"github.com/Carmen-Shannon/skelport-go/rig/model"
	"github.com/go-gl/mathgl/mgl64"
)

// fakeSkeleton answers SkeletonQuery from fixed data. Local rest transforms
// are authored per joint; animation is described by sample times plus an
// optional animLocal override evaluated at resolved times.
type fakeSkeleton struct {
	name     string
	paths    []string
	topo     model.Topology
	rest     []mgl64.Mat4
	animated bool
	samples  []float64

	animLocal func(t float64) []mgl64.Mat4
	rootAt    func(t float64) (mgl64.Mat4, bool)

	samplesErr error
	localErr   error
}

var _ SkeletonQuery = &fakeSkeleton{}

func (f *fakeSkeleton) Name() string             { return f.name }
func (f *fakeSkeleton) JointPaths() []string     { return f.paths }
func (f *fakeSkeleton) Topology() model.Topology { return f.topo }
func (f *fakeSkeleton) HasAnimation() bool       { return f.animated }

func (f *fakeSkeleton) resolveTime(t float64) float64 {
	if t == model.EarliestTime {
		if len(f.samples) > 0 {
			return f.samples[0]
		}
		return 0
	}
	return t
}

func (f *fakeSkeleton) JointLocalTransforms(t float64, atRest bool) ([]mgl64.Mat4, error) {
	if !atRest && f.localErr != nil {
		return nil, f.localErr
	}
	if atRest || f.animLocal == nil {
		return append([]mgl64.Mat4(nil), f.rest...), nil
	}
	return f.animLocal(f.resolveTime(t)), nil
}

func (f *fakeSkeleton) JointSkelTransforms(t float64, atRest bool) ([]mgl64.Mat4, error) {
	locals, err := f.JointLocalTransforms(t, atRest)
	if err != nil {
		return nil, err
	}
	out := make([]mgl64.Mat4, len(locals))
	for i, lm := range locals {
		if p := f.topo.Parent(i); p >= 0 {
			out[i] = out[p].Mul4(lm)
		} else {
			out[i] = lm
		}
	}
	return out, nil
}

func (f *fakeSkeleton) TimeSamples(interval *model.TimeRange) ([]float64, error) {
	if f.samplesErr != nil {
		return nil, f.samplesErr
	}
	out := make([]float64, 0, len(f.samples))
	for _, s := range f.samples {
		if interval == nil || interval.Contains(s) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSkeleton) RootTransform(t float64) (mgl64.Mat4, bool, error) {
	if f.rootAt == nil {
		return mgl64.Ident4(), false, nil
	}
	m, ok := f.rootAt(f.resolveTime(t))
	return m, ok, nil
}

// chainSkeleton is a three joint chain along X: hip at (1,0,0), knee at
// (3,0,0), foot at (5,0,0) in skel space.
func chainSkeleton() *fakeSkeleton {
	return &fakeSkeleton{
		name:  "biped",
		paths: []string{"/skel/hip", "/skel/hip/knee", "/skel/hip/knee/foot"},
		topo:  model.Topology{-1, 0, 1},
		rest: []mgl64.Mat4{
			mgl64.Translate3D(1, 0, 0),
			mgl64.Translate3D(2, 0, 0),
			mgl64.Translate3D(2, 0, 0),
		},
	}
}

// fakeSkin answers SkinningQuery from fixed sparse influence data.
type fakeSkin struct {
	meshPath string
	geomBind mgl64.Mat4
	points   int
	perPoint int
	indices  []int
	weights  []float64

	infErr  error
	geomErr error
}

var _ SkinningQuery = &fakeSkin{}

func (f *fakeSkin) MeshPath() string        { return f.meshPath }
func (f *fakeSkin) NumPoints() int          { return f.points }
func (f *fakeSkin) InfluencesPerPoint() int { return f.perPoint }

func (f *fakeSkin) GeomBindTransform() (mgl64.Mat4, error) {
	if f.geomErr != nil {
		return mgl64.Mat4{}, f.geomErr
	}
	if f.geomBind == (mgl64.Mat4{}) {
		return mgl64.Ident4(), nil
	}
	return f.geomBind, nil
}

func (f *fakeSkin) JointInfluences() ([]int, []float64, error) {
	if f.infErr != nil {
		return nil, nil, f.infErr
	}
	return f.indices, f.weights, nil
}

func nearMat4(a, b mgl64.Mat4, eps float64) bool {
	for i := 0; i < 16; i++ {
		if math.Abs(a[i]-b[i]) > eps {
			return false
		}
	}
	return true
}

func nearVec3(a, b mgl64.Vec3, eps float64) bool {
	for i := 0; i < 3; i++ {
		if math.Abs(a[i]-b[i]) > eps {
			return false
		}
	}
	return true
}

// buildTestMesh creates a live transform+shape mesh pair the way the mesh
// import step would, registering the transform under the given source path.
func buildTestMesh(t *testing.T, imp Importer, path, name string, pts []mgl64.Vec3) (graph.Node, graph.Node) {
	t.Helper()
	mod := imp.Graph().NewModifier()
	transform, err := mod.CreateNode(graph.NodeTypeTransform, name, nil)
	if err != nil {
		t.Fatalf("CreateNode transform: %v", err)
	}
	shape, err := mod.CreateNode(graph.NodeTypeMesh, name+"Shape", transform)
	if err != nil {
		t.Fatalf("CreateNode mesh: %v", err)
	}
	mod.Set(shape.Plug("points"), pts)
	if err := mod.Commit(); err != nil {
		t.Fatalf("Commit mesh: %v", err)
	}
	imp.Context().RegisterNode(path, transform)
	return transform, shape
}

// countNodeType counts committed nodes of one type.
func countNodeType(g graph.Graph, typ graph.NodeType) int {
	n := 0
	for _, node := range g.Nodes() {
		if node.Type() == typ {
			n++
		}
	}
	return n
}
