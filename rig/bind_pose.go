package rig

import (
	"fmt"

	"github.com/Carmen-Shannon/skelport-go/rig/graph"
	"github.com/Carmen-Shannon/skelport-go/rig/model"
	"github.com/charmbracelet/log"
)

// bindPoseRecorder captures the imported skeleton's rest pose as a bind-pose
// record node, wiring joint membership, world and local rest matrices, and
// the parent chain in one atomic batch.
type bindPoseRecorder interface {
	// RecordBindPose creates the bind-pose record for a built skeleton. All
	// four record arrays are sized to the full joint count so placeholder
	// entries keep their slots; root joints point their parent entry at the
	// record's world plug.
	//
	// Parameters:
	//   - q: the skeleton supplying rest transforms and topology
	//   - joints: the built joints, aligned with the skeleton's joint order
	//   - ctx: the import context to register the record with
	//
	// Returns:
	//   - graph.Node: the record node, nil when no joints were built
	//   - error: a *GraphWireError when the wiring batch fails
	RecordBindPose(q SkeletonQuery, joints []graph.Node, ctx *ImportContext) (graph.Node, error)
}

var _ bindPoseRecorder = &bindPoseRecorderImpl{}

type bindPoseRecorderImpl struct {
	logger *log.Logger
}

// newBindPoseRecorder creates a bind-pose recorder.
//
// Parameters:
//   - logger: the logger for diagnostics
//
// Returns:
//   - bindPoseRecorder: the new recorder
func newBindPoseRecorder(logger *log.Logger) bindPoseRecorder {
	return &bindPoseRecorderImpl{logger: logger}
}

func (r *bindPoseRecorderImpl) RecordBindPose(q SkeletonQuery, joints []graph.Node, ctx *ImportContext) (graph.Node, error) {
	built := 0
	for _, n := range joints {
		if n != nil {
			built++
		}
	}
	if built == 0 {
		r.logger.Debug("no joints built, skipping bind pose", "skeleton", q.Name())
		return nil, nil
	}

	restLocal, err := q.JointLocalTransforms(model.EarliestTime, true)
	if err != nil {
		return nil, fmt.Errorf("evaluating rest transforms for %q: %w", q.Name(), err)
	}
	if len(restLocal) != len(joints) {
		return nil, fmt.Errorf("skeleton %q rest pose has %d transforms for %d joints", q.Name(), len(restLocal), len(joints))
	}

	name := "bindPose"
	if q.Name() != "" {
		name = q.Name() + "_bindPose"
	}

	topo := q.Topology()
	mod := ctx.Graph().NewModifier()
	pose, err := mod.CreateNode(graph.NodeTypeBindPose, name, nil)
	if err != nil {
		return nil, &GraphWireError{Node: name, Err: err}
	}

	members := pose.Plug("members")
	parents := pose.Plug("parents")
	worldMatrix := pose.Plug("worldMatrix")
	xformMatrix := pose.Plug("xformMatrix")
	mod.ResizeArray(members, len(joints))
	mod.ResizeArray(parents, len(joints))
	mod.ResizeArray(worldMatrix, len(joints))
	mod.ResizeArray(xformMatrix, len(joints))

	for i, n := range joints {
		if n == nil {
			continue
		}
		mod.Connect(n.Plug("message"), members.Element(i))
		mod.Connect(n.Plug("bindPose"), worldMatrix.Element(i))
		mod.Set(xformMatrix.Element(i), restLocal[i])
		if p := topo.Parent(i); p >= 0 && p < len(joints) {
			mod.Connect(members.Element(p), parents.Element(i))
		} else {
			mod.Connect(pose.Plug("world"), parents.Element(i))
		}
	}
	if err := mod.Commit(); err != nil {
		return nil, &GraphWireError{Node: name, Err: err}
	}

	// The record only counts as a bind pose once fully wired.
	if err := pose.Plug("bindPose").Set(true); err != nil {
		return nil, &GraphWireError{Node: name, Err: err}
	}
	ctx.RegisterNode("", pose)
	return pose, nil
}
