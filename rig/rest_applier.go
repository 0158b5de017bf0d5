package rig

import (
	"fmt"

	"github.com/Carmen-Shannon/skelport-go/common"
	"github.com/Carmen-Shannon/skelport-go/rig/graph"
	"github.com/Carmen-Shannon/skelport-go/rig/model"
	"github.com/charmbracelet/log"
	"github.com/go-gl/mathgl/mgl64"
)

const (
	// jointRadiusScale sizes a joint's display radius against the average
	// distance to its children.
	jointRadiusScale = 0.1
	// defaultJointRadius is used for a leaf joint with no parent to inherit
	// from.
	defaultJointRadius = 1.0
)

// restStateApplier stamps the skeleton's rest pose onto built joints: the
// world bind matrix each joint carries, the scale-compensation override, and
// a display radius derived from bone lengths.
type restStateApplier interface {
	// ApplyRestState writes rest-pose state onto every built joint. Nil
	// placeholder slots still contribute to radius estimation but receive no
	// writes.
	//
	// Parameters:
	//   - q: the skeleton supplying rest transforms
	//   - joints: the built joints, aligned with the skeleton's joint order
	//
	// Returns:
	//   - error: if rest transforms cannot be evaluated or written
	ApplyRestState(q SkeletonQuery, joints []graph.Node) error
}

var _ restStateApplier = &restStateApplierImpl{}

type restStateApplierImpl struct {
	logger *log.Logger
}

// newRestStateApplier creates a rest-state applier.
//
// Parameters:
//   - logger: the logger for diagnostics
//
// Returns:
//   - restStateApplier: the new applier
func newRestStateApplier(logger *log.Logger) restStateApplier {
	return &restStateApplierImpl{logger: logger}
}

func (a *restStateApplierImpl) ApplyRestState(q SkeletonQuery, joints []graph.Node) error {
	rest, err := q.JointSkelTransforms(model.EarliestTime, true)
	if err != nil {
		return fmt.Errorf("evaluating rest transforms for %q: %w", q.Name(), err)
	}
	if len(rest) != len(joints) {
		return fmt.Errorf("skeleton %q rest pose has %d transforms for %d joints", q.Name(), len(rest), len(joints))
	}

	for i, n := range joints {
		if n == nil {
			continue
		}
		if err := n.Plug("bindPose").Set(rest[i]); err != nil {
			return fmt.Errorf("writing bind matrix for %q: %w", n.Name(), err)
		}
		// Scale inheritance is baked into the authored transforms already.
		if err := n.Plug("segmentScaleCompensate").Set(false); err != nil {
			return fmt.Errorf("configuring %q: %w", n.Name(), err)
		}
	}

	radii := a.estimateRadii(q.Topology(), rest)
	for i, n := range joints {
		if n == nil {
			continue
		}
		if err := n.Plug("radius").Set(radii[i]); err != nil {
			return fmt.Errorf("writing radius for %q: %w", n.Name(), err)
		}
	}
	return nil
}

// estimateRadii derives a display radius per joint from rest-pose bone
// lengths. Joints with children use a tenth of the average child distance;
// leaves inherit their parent's radius, which is already final because
// parents precede children in the joint order.
func (a *restStateApplierImpl) estimateRadii(topo model.Topology, rest []mgl64.Mat4) []float64 {
	childSum := make([]float64, len(rest))
	childCount := make([]int, len(rest))
	for i := range rest {
		p := topo.Parent(i)
		if p < 0 || p >= len(rest) {
			continue
		}
		childSum[p] += common.TranslationOf(rest[i]).Sub(common.TranslationOf(rest[p])).Len()
		childCount[p]++
	}

	radii := make([]float64, len(rest))
	for i := range rest {
		switch p := topo.Parent(i); {
		case childCount[i] > 0:
			radii[i] = jointRadiusScale * childSum[i] / float64(childCount[i])
		case p >= 0 && p < len(rest):
			radii[i] = radii[p]
		default:
			radii[i] = defaultJointRadius
		}
	}
	return radii
}
