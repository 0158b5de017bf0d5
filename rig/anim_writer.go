package rig

import (
	"fmt"

	"github.com/Carmen-Shannon/skelport-go/common"
	"github.com/Carmen-Shannon/skelport-go/rig/graph"
	"github.com/Carmen-Shannon/skelport-go/rig/model"
	"github.com/charmbracelet/log"
	"github.com/go-gl/mathgl/mgl64"
)

// transformChannels lists the nine animatable transform channels in write
// order: translation, then rotation, then scale.
var transformChannels = [9]string{
	"translateX", "translateY", "translateZ",
	"rotateX", "rotateY", "rotateZ",
	"scaleX", "scaleY", "scaleZ",
}

// animSampler resolves the skeleton's authored time samples and writes them
// onto built joints, either as static transform values or as keyed animation
// curves.
type animSampler interface {
	// WriteAnim writes the skeleton's animation onto the container (root
	// transform, when authored) and every built joint. A single resolved
	// sample produces static channel values; two or more produce one keyed
	// curve per channel.
	//
	// Parameters:
	//   - q: the skeleton supplying sampled transforms
	//   - container: the node carrying the skeleton's root transform
	//   - joints: the built joints, aligned with the skeleton's joint order
	//   - ctx: the import context to register created curves with
	//
	// Returns:
	//   - error: a *AnimWriteError on any sampling or write failure
	WriteAnim(q SkeletonQuery, container graph.Node, joints []graph.Node, ctx *ImportContext) error
}

var _ animSampler = &animSamplerImpl{}

type animSamplerImpl struct {
	logger   *log.Logger
	enabled  bool
	interval *model.TimeRange
}

// newAnimSampler creates an animation sampler.
//
// Parameters:
//   - logger: the logger for per-sample diagnostics
//   - enabled: when false, only the rest-time static pose is written
//   - interval: optional restriction on the sampled time range
//
// Returns:
//   - animSampler: the new sampler
func newAnimSampler(logger *log.Logger, enabled bool, interval *model.TimeRange) animSampler {
	return &animSamplerImpl{logger: logger, enabled: enabled, interval: interval}
}

func (a *animSamplerImpl) WriteAnim(q SkeletonQuery, container graph.Node, joints []graph.Node, ctx *ImportContext) error {
	times, err := a.resolveTimes(q)
	if err != nil {
		return err
	}

	if err := a.writeRootAnim(q, container, times, ctx); err != nil {
		return err
	}

	locals := make([][]mgl64.Mat4, len(times))
	for k, t := range times {
		lm, err := q.JointLocalTransforms(t, false)
		if err != nil {
			return &AnimWriteError{Node: q.Name(), Err: fmt.Errorf("evaluating joints at %v: %w", t, err)}
		}
		if len(lm) != len(joints) {
			return &AnimWriteError{Node: q.Name(), Err: fmt.Errorf("sample at %v evaluates %d joints, want %d", t, len(lm), len(joints))}
		}
		locals[k] = lm
	}

	seq := make([]mgl64.Mat4, len(times))
	for i, n := range joints {
		if n == nil {
			continue
		}
		for k := range times {
			seq[k] = locals[k][i]
		}
		if err := a.writeTransformSamples(n, times, seq, ctx); err != nil {
			return err
		}
	}
	return nil
}

// resolveTimes answers the times animation will be keyed at. With animation
// disabled, no animation source, or an empty restricted range, a single
// earliest-time sample is written instead.
func (a *animSamplerImpl) resolveTimes(q SkeletonQuery) ([]float64, error) {
	if !a.enabled || !q.HasAnimation() {
		return []float64{model.EarliestTime}, nil
	}
	times, err := q.TimeSamples(a.interval)
	if err != nil {
		return nil, &AnimWriteError{Node: q.Name(), Err: fmt.Errorf("resolving time samples: %w", err)}
	}
	if len(times) == 0 {
		a.logger.Debug("no samples in range, writing earliest pose", "skeleton", q.Name())
		return []float64{model.EarliestTime}, nil
	}
	return times, nil
}

// writeRootAnim writes the skeleton's own animated transform onto the
// container node. Skeletons that author no root transform leave the
// container untouched.
func (a *animSamplerImpl) writeRootAnim(q SkeletonQuery, container graph.Node, times []float64, ctx *ImportContext) error {
	mats := make([]mgl64.Mat4, len(times))
	authored := false
	for k, t := range times {
		m, ok, err := q.RootTransform(t)
		if err != nil {
			return &AnimWriteError{Node: container.Name(), Err: fmt.Errorf("evaluating root transform at %v: %w", t, err)}
		}
		if !ok {
			m = mgl64.Ident4()
		} else {
			authored = true
		}
		mats[k] = m
	}
	if !authored {
		return nil
	}
	return a.writeTransformSamples(container, times, mats, ctx)
}

// writeTransformSamples decomposes the sampled matrices and writes the nine
// transform channels of one node. A sample that fails to decompose keeps the
// previous sample's values rather than aborting, so every curve still keys
// every resolved time.
func (a *animSamplerImpl) writeTransformSamples(n graph.Node, times []float64, mats []mgl64.Mat4, ctx *ImportContext) error {
	if len(mats) != len(times) {
		return &AnimWriteError{Node: n.Name(), Err: fmt.Errorf("%d transforms for %d time samples", len(mats), len(times))}
	}

	var values [9][]float64
	for ci := range values {
		values[ci] = make([]float64, 0, len(times))
	}
	prevT, prevR := mgl64.Vec3{}, mgl64.Vec3{}
	prevS := mgl64.Vec3{1, 1, 1}
	for k, m := range mats {
		t, r, s, ok := common.DecomposeTRS(m)
		if !ok {
			a.logger.Warn("transform sample does not decompose, keeping previous values", "node", n.Name(), "time", times[k])
			t, r, s = prevT, prevR, prevS
		}
		prevT, prevR, prevS = t, r, s
		for axis := 0; axis < 3; axis++ {
			values[axis] = append(values[axis], t[axis])
			values[3+axis] = append(values[3+axis], r[axis])
			values[6+axis] = append(values[6+axis], s[axis])
		}
	}

	mod := ctx.Graph().NewModifier()
	if len(times) == 1 {
		for ci, channel := range transformChannels {
			mod.Set(n.Plug(channel), values[ci][0])
		}
		if err := mod.Commit(); err != nil {
			return &AnimWriteError{Node: n.Name(), Err: err}
		}
		return nil
	}

	curves := make([]graph.Node, 0, len(transformChannels))
	for ci, channel := range transformChannels {
		curve, err := mod.CreateNode(graph.NodeTypeAnimCurve, n.Name()+"_"+channel, nil)
		if err != nil {
			return &AnimWriteError{Node: n.Name(), Err: err}
		}
		mod.SetCurveKeys(curve, times, values[ci])
		mod.BreakIncoming(n.Plug(channel))
		mod.Connect(curve.Plug("output"), n.Plug(channel))
		curves = append(curves, curve)
	}
	if err := mod.Commit(); err != nil {
		return &AnimWriteError{Node: n.Name(), Err: err}
	}
	for _, curve := range curves {
		ctx.RegisterNode("", curve)
	}
	return nil
}
