// package model contains the shared data types passed between the rig
// importer, its query collaborators, and the preview renderer. They are not
// interface-wrapped structs, just plain data in double precision.
package model

import (
	"fmt"
	"math"
)

// EarliestTime is the sentinel time value meaning "the first authored sample
// of the animation source". Sources resolve it to their own earliest sample
// (or 0 when nothing is authored).
const EarliestTime = -math.MaxFloat64

// TimeRange is a closed time interval used to restrict animation sampling.
// Sample inclusion exactly at the boundaries is best-effort, not guaranteed.
type TimeRange struct {
	// Start is the inclusive lower bound of the interval.
	Start float64
	// End is the inclusive upper bound of the interval.
	End float64
}

// IsValid reports whether the interval is non-empty (Start <= End).
func (r TimeRange) IsValid() bool {
	return r.Start <= r.End
}

// Contains reports whether t lies inside the interval.
func (r TimeRange) Contains(t float64) bool {
	return t >= r.Start && t <= r.End
}

// Topology is the parent index of every joint in an ordered joint list.
// Entry i is the parent joint index of joint i, or -1 for root joints.
// Joint lists are ordered so that every parent index is less than the indices
// of its children (ancestors precede descendants).
type Topology []int

// NumJoints returns the number of joints described by the topology.
func (t Topology) NumJoints() int {
	return len(t)
}

// Parent returns the parent index of joint i, or -1 when i is out of range.
func (t Topology) Parent(i int) int {
	if i < 0 || i >= len(t) {
		return -1
	}
	return t[i]
}

// IsRoot reports whether joint i has no parent.
func (t Topology) IsRoot(i int) bool {
	return t.Parent(i) < 0
}

// Validate checks the ordering invariant: every parent index must be -1 or a
// smaller joint index. It returns an error naming the first offending joint.
//
// Returns:
//   - error: nil if the topology is well ordered
func (t Topology) Validate() error {
	for i, p := range t {
		if p < -1 || p >= len(t) {
			return fmt.Errorf("joint %d: parent index %d out of range", i, p)
		}
		if p >= i {
			return fmt.Errorf("joint %d: parent index %d does not precede it", i, p)
		}
	}
	return nil
}

// ChildCounts returns the number of direct children per joint.
func (t Topology) ChildCounts() []int {
	counts := make([]int, len(t))
	for _, p := range t {
		if p >= 0 && p < len(t) {
			counts[p]++
		}
	}
	return counts
}

// WeightMatrix is a dense [Points x Joints] skin weight matrix. Rows are
// points, columns are joints; absent influences are zero. Weights are stored
// exactly as accumulated, never renormalized.
type WeightMatrix struct {
	// Points is the number of rows.
	Points int
	// Joints is the number of columns.
	Joints int

	data []float64
}

// NewWeightMatrix allocates a zeroed weight matrix of the given shape.
//
// Parameters:
//   - points: number of mesh points (rows)
//   - joints: number of joints (columns)
//
// Returns:
//   - *WeightMatrix: the zeroed matrix
func NewWeightMatrix(points, joints int) *WeightMatrix {
	return &WeightMatrix{
		Points: points,
		Joints: joints,
		data:   make([]float64, points*joints),
	}
}

// At returns the weight of joint j on point p, or 0 when out of range.
func (w *WeightMatrix) At(p, j int) float64 {
	if p < 0 || p >= w.Points || j < 0 || j >= w.Joints {
		return 0
	}
	return w.data[p*w.Joints+j]
}

// Add accumulates weight into entry (p, j). Out-of-range indices are ignored
// so sparse influence lists can be folded in without pre-filtering.
func (w *WeightMatrix) Add(p, j int, weight float64) {
	if p < 0 || p >= w.Points || j < 0 || j >= w.Joints {
		return
	}
	w.data[p*w.Joints+j] += weight
}

// Row returns the weights of every joint for point p. The returned slice
// aliases the matrix storage.
func (w *WeightMatrix) Row(p int) []float64 {
	if p < 0 || p >= w.Points {
		return nil
	}
	return w.data[p*w.Joints : (p+1)*w.Joints]
}

// RowSum returns the total weight applied to point p.
func (w *WeightMatrix) RowSum(p int) float64 {
	var sum float64
	for _, v := range w.Row(p) {
		sum += v
	}
	return sum
}
