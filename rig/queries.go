package rig

import (
	"github.com/Carmen-Shannon/skelport-go/rig/model"
	"github.com/go-gl/mathgl/mgl64"
)

// SkeletonQuery supplies everything the importer needs to know about one
// authored skeleton. Implementations own parsing of the source description;
// the importer only consumes the answers.
//
// Joint arrays are parallel and ordered so ancestors precede descendants;
// an empty joint path marks a placeholder entry that keeps index alignment
// without producing a node.
type SkeletonQuery interface {
	// Name returns the skeleton's display name, used to derive node names.
	//
	// Returns:
	//   - string: the skeleton name, may be empty
	Name() string

	// JointPaths returns the ordered source path of every joint.
	//
	// Returns:
	//   - []string: one path per joint, "" for placeholder entries
	JointPaths() []string

	// Topology returns the parent index of every joint.
	//
	// Returns:
	//   - model.Topology: parent indices aligned with JointPaths
	Topology() model.Topology

	// JointLocalTransforms returns every joint's transform relative to its
	// parent joint.
	//
	// Parameters:
	//   - t: the sample time; model.EarliestTime resolves to the first authored sample
	//   - atRest: when true, ignore t and answer from the rest pose
	//
	// Returns:
	//   - []mgl64.Mat4: one local transform per joint
	//   - error: if the source cannot be evaluated
	JointLocalTransforms(t float64, atRest bool) ([]mgl64.Mat4, error)

	// JointSkelTransforms returns every joint's transform relative to the
	// skeleton root (skel space).
	//
	// Parameters:
	//   - t: the sample time; model.EarliestTime resolves to the first authored sample
	//   - atRest: when true, ignore t and answer from the rest pose
	//
	// Returns:
	//   - []mgl64.Mat4: one skel-space transform per joint
	//   - error: if the source cannot be evaluated
	JointSkelTransforms(t float64, atRest bool) ([]mgl64.Mat4, error)

	// HasAnimation reports whether an animation source is attached.
	//
	// Returns:
	//   - bool: true when animated transforms are authored
	HasAnimation() bool

	// TimeSamples returns the ascending set of times at which any joint's
	// local transform changes. A non-nil interval restricts the result;
	// inclusion of samples exactly on the interval boundaries is
	// best-effort.
	//
	// Parameters:
	//   - interval: optional restriction, nil for the full range
	//
	// Returns:
	//   - []float64: the sample times, empty when nothing is authored
	//   - error: if the source cannot be enumerated
	TimeSamples(interval *model.TimeRange) ([]float64, error)

	// RootTransform returns the skeleton's own animated root transform.
	//
	// Parameters:
	//   - t: the sample time
	//
	// Returns:
	//   - mgl64.Mat4: the root transform at t
	//   - bool: false when the source authors no root transform
	//   - error: if the source cannot be evaluated
	RootTransform(t float64) (mgl64.Mat4, bool, error)
}

// SkinningQuery supplies the per-mesh skinning description for one skinned
// prim: which live mesh it drives, its geometry bind transform, and the
// sparse influence data to densify.
type SkinningQuery interface {
	// MeshPath returns the identity path of the live mesh node created by an
	// earlier import step. An unresolvable path means the prim was excluded
	// upstream and binding is skipped.
	//
	// Returns:
	//   - string: the mesh node path
	MeshPath() string

	// GeomBindTransform returns the transform the mesh geometry carried when
	// its weights were authored.
	//
	// Returns:
	//   - mgl64.Mat4: the geometry bind transform
	//   - error: if the source cannot be evaluated
	GeomBindTransform() (mgl64.Mat4, error)

	// NumPoints returns the number of mesh points carrying influences.
	//
	// Returns:
	//   - int: the point count
	NumPoints() int

	// InfluencesPerPoint returns the fixed number of sparse influence slots
	// per point.
	//
	// Returns:
	//   - int: the slot count
	InfluencesPerPoint() int

	// JointInfluences returns the flattened sparse influences: point p's
	// slots occupy indices [p*K, (p+1)*K) for K = InfluencesPerPoint().
	// Joint indices address the skeleton's ordered joint list; out-of-range
	// indices are permitted and ignored during densification.
	//
	// Returns:
	//   - []int: joint index per slot
	//   - []float64: weight per slot
	//   - error: if the source cannot be read
	JointInfluences() ([]int, []float64, error)
}
