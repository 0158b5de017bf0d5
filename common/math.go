package common

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// MatrixEpsilon is the determinant threshold below which a matrix is treated
// as singular by InvertMatrix and DecomposeTRS.
const MatrixEpsilon = 1e-12

// ComposeTRS builds a 4x4 transform from translate/rotate/scale components.
// Rotation is Euler XYZ in radians; the composed matrix is T * Rz * Ry * Rx * S
// (column-vector convention), so scale applies first and translation last.
//
// Parameters:
//   - translate: translation along each axis
//   - rotate: Euler rotation angles in radians (x, y, z)
//   - scale: scale factors along each axis
//
// Returns:
//   - mgl64.Mat4: the composed column-major transform
func ComposeTRS(translate, rotate, scale mgl64.Vec3) mgl64.Mat4 {
	m := mgl64.Translate3D(translate.X(), translate.Y(), translate.Z())
	m = m.Mul4(mgl64.HomogRotate3DZ(rotate.Z()))
	m = m.Mul4(mgl64.HomogRotate3DY(rotate.Y()))
	m = m.Mul4(mgl64.HomogRotate3DX(rotate.X()))
	return m.Mul4(mgl64.Scale3D(scale.X(), scale.Y(), scale.Z()))
}

// DecomposeTRS splits an affine transform into translate/rotate/scale
// components, the inverse of ComposeTRS. Shear is discarded. Decomposition
// fails when the matrix contains non-finite values, when the upper-left 3x3
// determinant is not positive (mirrored or collapsed axes), or when any basis
// column has near-zero length.
//
// Parameters:
//   - m: the column-major transform to decompose
//
// Returns:
//   - translate: translation components
//   - rotate: Euler XYZ rotation in radians
//   - scale: scale factors
//   - ok: false if the matrix is not decomposable
func DecomposeTRS(m mgl64.Mat4) (translate, rotate, scale mgl64.Vec3, ok bool) {
	for i := 0; i < 16; i++ {
		if math.IsNaN(m[i]) || math.IsInf(m[i], 0) {
			return translate, rotate, scale, false
		}
	}

	translate = mgl64.Vec3{m.At(0, 3), m.At(1, 3), m.At(2, 3)}

	x := mgl64.Vec3{m.At(0, 0), m.At(1, 0), m.At(2, 0)}
	y := mgl64.Vec3{m.At(0, 1), m.At(1, 1), m.At(2, 1)}
	z := mgl64.Vec3{m.At(0, 2), m.At(1, 2), m.At(2, 2)}
	scale = mgl64.Vec3{x.Len(), y.Len(), z.Len()}

	det3 := x.Dot(y.Cross(z))
	if det3 <= MatrixEpsilon {
		return translate, rotate, scale, false
	}
	for i := 0; i < 3; i++ {
		if scale[i] < MatrixEpsilon {
			return translate, rotate, scale, false
		}
	}

	// Normalized rotation basis; R = Rz * Ry * Rx so row 2 is (-sy, cy*sx, cy*cx).
	x = x.Mul(1 / scale[0])
	y = y.Mul(1 / scale[1])
	z = z.Mul(1 / scale[2])

	r20 := x.Z()
	sy := -r20
	if sy < -1 {
		sy = -1
	} else if sy > 1 {
		sy = 1
	}
	ry := math.Asin(sy)
	var rx, rz float64
	if math.Abs(math.Cos(ry)) > 1e-9 {
		rx = math.Atan2(y.Z(), z.Z())
		rz = math.Atan2(x.Y(), x.X())
	} else {
		// Gimbal lock: fold the indeterminate z rotation into x.
		rx = math.Atan2(sy*y.X(), sy*z.X())
		rz = 0
	}
	rotate = mgl64.Vec3{rx, ry, rz}
	return translate, rotate, scale, true
}

// InvertMatrix returns the inverse of m, or false when m is singular within
// MatrixEpsilon. Prefer this over calling Inv directly: mgl64 silently
// returns the zero matrix for singular input.
//
// Parameters:
//   - m: the matrix to invert
//
// Returns:
//   - mgl64.Mat4: the inverse, valid only when the second result is true
//   - bool: false if the determinant is non-finite or below MatrixEpsilon
func InvertMatrix(m mgl64.Mat4) (mgl64.Mat4, bool) {
	det := m.Det()
	if math.IsNaN(det) || math.IsInf(det, 0) || math.Abs(det) < MatrixEpsilon {
		return mgl64.Ident4(), false
	}
	return m.Inv(), true
}

// TransformPoint applies an affine transform to a 3D point (w = 1).
//
// Parameters:
//   - m: the transform to apply
//   - p: the point
//
// Returns:
//   - mgl64.Vec3: the transformed point
func TransformPoint(m mgl64.Mat4, p mgl64.Vec3) mgl64.Vec3 {
	v := m.Mul4x1(mgl64.Vec4{p.X(), p.Y(), p.Z(), 1})
	return mgl64.Vec3{v.X(), v.Y(), v.Z()}
}

// TranslationOf extracts the translation column of an affine transform.
//
// Parameters:
//   - m: the transform
//
// Returns:
//   - mgl64.Vec3: the translation components
func TranslationOf(m mgl64.Mat4) mgl64.Vec3 {
	return mgl64.Vec3{m.At(0, 3), m.At(1, 3), m.At(2, 3)}
}
