package rig

import (
	"errors"
	"fmt"
	"testing"

	"github.com/Carmen-Shannon/skelport-go/rig/graph"
	"github.com/go-gl/mathgl/mgl64"
)

// animatedChain returns the three joint chain with the hip sliding +1 unit
// in X per time unit, sampled at t=0 and t=10.
func animatedChain() *fakeSkeleton {
	q := chainSkeleton()
	q.animated = true
	q.samples = []float64{0, 10}
	q.animLocal = func(t float64) []mgl64.Mat4 {
		return []mgl64.Mat4{
			mgl64.Translate3D(1+t, 0, 0),
			mgl64.Translate3D(2, 0, 0),
			mgl64.Translate3D(2, 0, 0),
		}
	}
	return q
}

func TestAnimatedImportWritesCurves(t *testing.T) {
	imp := NewImporter(WithComputeWorkers(1))
	skel, err := imp.ImportSkeleton(animatedChain())
	if err != nil {
		t.Fatalf("ImportSkeleton: %v", err)
	}
	g := imp.Graph()

	// Nine channels per joint, all keyed even where values never change.
	if have, want := countNodeType(g, graph.NodeTypeAnimCurve), 27; have != want {
		t.Fatalf("animCurve count:\nhave %d\nwant %d", have, want)
	}
	for _, channel := range transformChannels {
		curve, ok := g.NodeByPath("hip_" + channel)
		if !ok {
			t.Fatalf("curve hip_%s not found", channel)
		}
		times, _, ok := curve.CurveKeys()
		if !ok {
			t.Fatalf("hip_%s carries no keys", channel)
		}
		// Key count always matches the resolved sample count.
		if len(times) != 2 || times[0] != 0 || times[1] != 10 {
			t.Fatalf("hip_%s key times:\nhave %v\nwant [0 10]", channel, times)
		}
	}

	curve, _ := g.NodeByPath("hip_translateX")
	_, values, _ := curve.CurveKeys()
	if values[0] != 1 || values[1] != 11 {
		t.Fatalf("hip_translateX values:\nhave %v\nwant [1 11]", values)
	}

	// Evaluation pulls the keyed values through the channels.
	hip := skel.Joints[0]
	for _, c := range []struct {
		t     float64
		wantX float64
	}{{0, 1}, {5, 6}, {10, 11}, {50, 11}} {
		have := hip.LocalMatrixAt(c.t).At(0, 3)
		if have != c.wantX {
			t.Fatalf("hip x at t=%v:\nhave %v\nwant %v", c.t, have, c.wantX)
		}
	}

	// The static channel keeps its curve-driven constant.
	knee := skel.Joints[1]
	if have := knee.LocalMatrixAt(7).At(0, 3); have != 2 {
		t.Fatalf("knee x at t=7:\nhave %v\nwant 2", have)
	}
}

func TestSingleSampleStaysStatic(t *testing.T) {
	// One authored sample produces static channels, not single-key curves.
	imp := NewImporter(WithComputeWorkers(1))
	q := animatedChain()
	q.samples = []float64{4}
	skel, err := imp.ImportSkeleton(q)
	if err != nil {
		t.Fatalf("ImportSkeleton: %v", err)
	}
	if have := countNodeType(imp.Graph(), graph.NodeTypeAnimCurve); have != 0 {
		t.Fatalf("animCurve count:\nhave %d\nwant 0", have)
	}
	x, err := skel.Joints[0].Plug("translateX").Float()
	if err != nil {
		t.Fatalf("translateX: %v", err)
	}
	if x != 5 {
		t.Fatalf("hip translateX from single sample at t=4:\nhave %v\nwant 5", x)
	}
}

func TestAnimationDisabledWritesRest(t *testing.T) {
	imp := NewImporter(WithComputeWorkers(1), WithAnimation(false))
	skel, err := imp.ImportSkeleton(animatedChain())
	if err != nil {
		t.Fatalf("ImportSkeleton: %v", err)
	}
	if have := countNodeType(imp.Graph(), graph.NodeTypeAnimCurve); have != 0 {
		t.Fatalf("animCurve count:\nhave %d\nwant 0", have)
	}
	// With sampling disabled the earliest sample's pose is written, which
	// for this source is the t=0 animated pose.
	x, err := skel.Joints[0].Plug("translateX").Float()
	if err != nil {
		t.Fatalf("translateX: %v", err)
	}
	if x != 1 {
		t.Fatalf("hip translateX with animation disabled:\nhave %v\nwant 1", x)
	}
}

func TestFrameRangeRestrictsSamples(t *testing.T) {
	imp := NewImporter(WithComputeWorkers(1), WithFrameRange(0, 5))
	skel, err := imp.ImportSkeleton(animatedChain())
	if err != nil {
		t.Fatalf("ImportSkeleton: %v", err)
	}
	// Only t=0 survives the range, so the import degrades to a static pose.
	if have := countNodeType(imp.Graph(), graph.NodeTypeAnimCurve); have != 0 {
		t.Fatalf("animCurve count:\nhave %d\nwant 0", have)
	}
	x, err := skel.Joints[0].Plug("translateX").Float()
	if err != nil {
		t.Fatalf("translateX: %v", err)
	}
	if x != 1 {
		t.Fatalf("hip translateX from restricted range:\nhave %v\nwant 1", x)
	}
}

func TestEmptySampleRangeFallsBackToEarliest(t *testing.T) {
	imp := NewImporter(WithComputeWorkers(1), WithFrameRange(100, 200))
	q := animatedChain()
	skel, err := imp.ImportSkeleton(q)
	if err != nil {
		t.Fatalf("ImportSkeleton: %v", err)
	}
	if have := countNodeType(imp.Graph(), graph.NodeTypeAnimCurve); have != 0 {
		t.Fatalf("animCurve count:\nhave %d\nwant 0", have)
	}
	// Nothing in range resolves to a single earliest-time sample.
	x, err := skel.Joints[0].Plug("translateX").Float()
	if err != nil {
		t.Fatalf("translateX: %v", err)
	}
	if x != 1 {
		t.Fatalf("hip translateX from empty range:\nhave %v\nwant 1", x)
	}
}

func TestUndecomposableSampleKeepsPreviousValues(t *testing.T) {
	imp := NewImporter(WithComputeWorkers(1))
	q := animatedChain()
	q.animLocal = func(t float64) []mgl64.Mat4 {
		hip := mgl64.Translate3D(1+t, 0, 0)
		if t == 10 {
			// Collapsed scale cannot decompose.
			hip = mgl64.Scale3D(0, 0, 0)
		}
		return []mgl64.Mat4{hip, mgl64.Translate3D(2, 0, 0), mgl64.Translate3D(2, 0, 0)}
	}
	_, err := imp.ImportSkeleton(q)
	if err != nil {
		t.Fatalf("ImportSkeleton: %v", err)
	}

	curve, ok := imp.Graph().NodeByPath("hip_translateX")
	if !ok {
		t.Fatalf("curve hip_translateX not found")
	}
	times, values, _ := curve.CurveKeys()
	if len(times) != 2 {
		t.Fatalf("key count:\nhave %d\nwant 2 (bad sample still keyed)", len(times))
	}
	if values[0] != 1 || values[1] != 1 {
		t.Fatalf("values:\nhave %v\nwant [1 1] (previous sample carried forward)", values)
	}
	scaleCurve, _ := imp.Graph().NodeByPath("hip_scaleX")
	_, scaleValues, _ := scaleCurve.CurveKeys()
	if scaleValues[0] != 1 || scaleValues[1] != 1 {
		t.Fatalf("scale values:\nhave %v\nwant [1 1]", scaleValues)
	}
}

func TestAnimatedRootTransform(t *testing.T) {
	imp := NewImporter(WithComputeWorkers(1))
	q := animatedChain()
	q.rootAt = func(t float64) (mgl64.Mat4, bool) {
		return mgl64.Translate3D(0, t, 0), true
	}
	skel, err := imp.ImportSkeleton(q)
	if err != nil {
		t.Fatalf("ImportSkeleton: %v", err)
	}

	// 3 joints plus the container get nine curves each.
	if have, want := countNodeType(imp.Graph(), graph.NodeTypeAnimCurve), 36; have != want {
		t.Fatalf("animCurve count:\nhave %d\nwant %d", have, want)
	}
	if have := skel.Container.LocalMatrixAt(10).At(1, 3); have != 10 {
		t.Fatalf("container y at t=10:\nhave %v\nwant 10", have)
	}
}

func TestJointCountMismatchFailsImport(t *testing.T) {
	imp := NewImporter(WithComputeWorkers(1))
	q := animatedChain()
	q.animLocal = func(t float64) []mgl64.Mat4 {
		return []mgl64.Mat4{mgl64.Ident4()} // wrong joint count
	}
	_, err := imp.ImportSkeleton(q)
	var awe *AnimWriteError
	if !errors.As(err, &awe) {
		t.Fatalf("mismatched sample:\nhave %v\nwant *AnimWriteError", err)
	}
}

func TestSampleEnumerationFailureFailsImport(t *testing.T) {
	imp := NewImporter(WithComputeWorkers(1))
	q := animatedChain()
	q.samplesErr = fmt.Errorf("stream truncated")
	_, err := imp.ImportSkeleton(q)
	var awe *AnimWriteError
	if !errors.As(err, &awe) {
		t.Fatalf("sample enumeration failure:\nhave %v\nwant *AnimWriteError", err)
	}
}
