package sdf

import (
	"github.com/soypat/coinmesh/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

// M44 is a 3D affine transformation matrix. The zero value is the identity.
type M44 struct {
	t d3.Transform
}

// Identity3D returns the identity transformation.
func Identity3D() M44 { return M44{} }

// Translate3D returns a transformation matrix that translates by v.
func Translate3D(v r3.Vec) M44 {
	return M44{t: d3.Translation(v)}
}

// Rotate3D returns a transformation matrix that rotates by angle radians
// about axis, following the right hand rule. The axis need not be normalized.
func Rotate3D(axis r3.Vec, angle float64) M44 {
	if angle == 0 {
		return M44{}
	}
	if r3.Norm(axis) == 0 {
		panic("zero length rotation axis")
	}
	return M44{t: d3.Rotation(r3.NewRotation(angle, r3.Unit(axis)))}
}

// RotateAbout3D returns a rotation by angle about the line through center
// with direction axis.
func RotateAbout3D(center, axis r3.Vec, angle float64) M44 {
	return Translate3D(center).Mul(Rotate3D(axis, angle)).Mul(Translate3D(r3.Scale(-1, center)))
}

// Mul returns the matrix that applies b and then a.
func (a M44) Mul(b M44) M44 {
	return M44{t: a.t.Mul(b.t)}
}

// Inverse returns the inverse of the transformation.
func (a M44) Inverse() M44 {
	return M44{t: a.t.Inv()}
}

// MulPosition transforms a position.
func (a M44) MulPosition(p r3.Vec) r3.Vec {
	return a.t.Transform(p)
}

// MulDirection transforms a direction, ignoring translation.
func (a M44) MulDirection(v r3.Vec) r3.Vec {
	return a.t.Direction(v)
}

// MulBox returns the bounding box of the transformed box.
func (a M44) MulBox(b r3.Box) r3.Box {
	return r3.Box(a.t.Box(d3.Box(b)))
}

// Equals returns true if all matrix elements are within tol of b's.
func (a M44) Equals(b M44, tol float64) bool {
	return a.t.Equals(b.t, tol)
}

// Values returns the 12 row-major elements of the 3x4 affine matrix.
func (a M44) Values() []float64 {
	return a.t.SliceCopy()
}

// RotateToVec returns the rotation matrix that transforms a onto the same direction as b.
func RotateToVec(a, b r3.Vec) M44 {
	// is either vector == 0?
	if d3.EqualWithin(a, r3.Vec{}, epsilon) || d3.EqualWithin(b, r3.Vec{}, epsilon) {
		return Identity3D()
	}
	a = r3.Unit(a)
	b = r3.Unit(b)
	if d3.EqualWithin(a, b, epsilon) {
		return Identity3D()
	}
	// are the vectors opposite (180 degrees apart)?
	if d3.EqualWithin(r3.Scale(-1, a), b, epsilon) {
		return Rotate3D(d3.Perpendicular(a), pi)
	}
	// general case
	// See:	https://math.stackexchange.com/questions/180418/calculate-rotation-matrix-to-align-vector-a-to-vector-b-in-3d
	v := r3.Cross(a, b)
	vx := r3.Skew(v)

	k := 1 / (1 + r3.Dot(a, b))
	vx2 := r3.NewMat(nil)
	vx2.Mul(vx, vx)
	vx2.Scale(k, vx2)

	vx.Add(vx, r3.Eye())
	vx.Add(vx, vx2)
	return M44{t: d3.NewTransform([]float64{
		vx.At(0, 0), vx.At(0, 1), vx.At(0, 2), 0,
		vx.At(1, 0), vx.At(1, 1), vx.At(1, 2), 0,
		vx.At(2, 0), vx.At(2, 1), vx.At(2, 2), 0,
	})}
}
