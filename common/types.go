// package common contains common types that are used throughout this module. They are not interface-wrapped structs, just plain structs that express
// commonly used data-types.
package common

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Bounds3 is an axis-aligned bounding box over 3D points.
// A freshly constructed Bounds3 is empty; Extend grows it point by point.
type Bounds3 struct {
	// Min is the component-wise minimum corner of the box.
	Min mgl64.Vec3
	// Max is the component-wise maximum corner of the box.
	Max mgl64.Vec3
}

// NewBounds3 returns an empty bounding box (Min above Max on every axis) so
// the first Extend call snaps both corners to the point.
//
// Returns:
//   - Bounds3: an empty box
func NewBounds3() Bounds3 {
	inf := math.Inf(1)
	return Bounds3{
		Min: mgl64.Vec3{inf, inf, inf},
		Max: mgl64.Vec3{-inf, -inf, -inf},
	}
}

// Extend grows the box to include p.
//
// Parameters:
//   - p: the point to include
func (b *Bounds3) Extend(p mgl64.Vec3) {
	for i := 0; i < 3; i++ {
		if p[i] < b.Min[i] {
			b.Min[i] = p[i]
		}
		if p[i] > b.Max[i] {
			b.Max[i] = p[i]
		}
	}
}

// IsEmpty reports whether the box has never been extended.
//
// Returns:
//   - bool: true if no point has been added
func (b Bounds3) IsEmpty() bool {
	return b.Min.X() > b.Max.X()
}

// Center returns the midpoint of the box, or the zero vector for an empty box.
//
// Returns:
//   - mgl64.Vec3: the box center
func (b Bounds3) Center() mgl64.Vec3 {
	if b.IsEmpty() {
		return mgl64.Vec3{}
	}
	return b.Min.Add(b.Max).Mul(0.5)
}

// Size returns the box extent along each axis, or the zero vector for an
// empty box.
//
// Returns:
//   - mgl64.Vec3: the per-axis extents
func (b Bounds3) Size() mgl64.Vec3 {
	if b.IsEmpty() {
		return mgl64.Vec3{}
	}
	return b.Max.Sub(b.Min)
}
