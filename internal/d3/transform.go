package d3

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Transform represents a 3D affine transformation, a linear map
// followed by a translation. The zero value of Transform is the
// identity transform.
type Transform struct {
	// in order to make the zero value of Transform represent the identity
	// transform we store the linear part with the identity matrix subtracted.
	//  d00 = x00-1, d11 = x11-1, d22 = x22-1
	d00, x01, x02, x03 float64
	x10, d11, x12, x13 float64
	x20, x21, d22, x23 float64
}

// NewTransform returns a Transform from 12 row-major values of a 3x4
// affine matrix. The last column holds the translation.
func NewTransform(a []float64) Transform {
	if len(a) != 12 {
		panic("Transform is initialized with 12 values")
	}
	return Transform{
		d00: a[0] - 1, x01: a[1], x02: a[2], x03: a[3],
		x10: a[4], d11: a[5] - 1, x12: a[6], x13: a[7],
		x20: a[8], x21: a[9], d22: a[10] - 1, x23: a[11],
	}
}

// Translation returns the transform that translates by v.
func Translation(v r3.Vec) Transform {
	return Transform{x03: v.X, x13: v.Y, x23: v.Z}
}

// Rotation returns the transform that applies the rotation q about the origin.
func Rotation(q r3.Rotation) Transform {
	x2 := q.Imag + q.Imag
	y2 := q.Jmag + q.Jmag
	z2 := q.Kmag + q.Kmag
	xx := q.Imag * x2
	yy := q.Jmag * y2
	zz := q.Kmag * z2
	xy := q.Imag * y2
	xz := q.Imag * z2
	yz := q.Jmag * z2
	wx := q.Real * x2
	wy := q.Real * y2
	wz := q.Real * z2
	return Transform{
		d00: -(yy + zz), x01: xy - wz, x02: xz + wy,
		x10: xy + wz, d11: -(xx + zz), x12: yz - wx,
		x20: xz - wy, x21: yz + wx, d22: -(xx + yy),
	}
}

// Transform applies the Transform to the argument position.
func (t Transform) Transform(v r3.Vec) r3.Vec {
	return r3.Vec{
		X: (t.d00+1)*v.X + t.x01*v.Y + t.x02*v.Z + t.x03,
		Y: t.x10*v.X + (t.d11+1)*v.Y + t.x12*v.Z + t.x13,
		Z: t.x20*v.X + t.x21*v.Y + (t.d22+1)*v.Z + t.x23,
	}
}

// Direction applies only the linear part of the Transform to v.
func (t Transform) Direction(v r3.Vec) r3.Vec {
	return r3.Vec{
		X: (t.d00+1)*v.X + t.x01*v.Y + t.x02*v.Z,
		Y: t.x10*v.X + (t.d11+1)*v.Y + t.x12*v.Z,
		Z: t.x20*v.X + t.x21*v.Y + (t.d22+1)*v.Z,
	}
}

// Box returns the axis aligned box enclosing the transformed vertices of b.
func (t Transform) Box(b Box) Box {
	v := b.Vertices()
	for i := range v {
		v[i] = t.Transform(v[i])
	}
	return Box{Min: v.Min(), Max: v.Max()}
}

// Translate adds v to the positional part of the Transform.
func (t Transform) Translate(v r3.Vec) Transform {
	t.x03 += v.X
	t.x13 += v.Y
	t.x23 += v.Z
	return t
}

// Mul returns the Transform that applies b first and then t.
func (t Transform) Mul(b Transform) Transform {
	if t == (Transform{}) {
		return b
	}
	if b == (Transform{}) {
		return t
	}
	x00, x11, x22 := t.d00+1, t.d11+1, t.d22+1
	y00, y11, y22 := b.d00+1, b.d11+1, b.d22+1
	var m Transform
	m.d00 = x00*y00 + t.x01*b.x10 + t.x02*b.x20 - 1
	m.x01 = x00*b.x01 + t.x01*y11 + t.x02*b.x21
	m.x02 = x00*b.x02 + t.x01*b.x12 + t.x02*y22
	m.x03 = x00*b.x03 + t.x01*b.x13 + t.x02*b.x23 + t.x03

	m.x10 = t.x10*y00 + x11*b.x10 + t.x12*b.x20
	m.d11 = t.x10*b.x01 + x11*y11 + t.x12*b.x21 - 1
	m.x12 = t.x10*b.x02 + x11*b.x12 + t.x12*y22
	m.x13 = t.x10*b.x03 + x11*b.x13 + t.x12*b.x23 + t.x13

	m.x20 = t.x20*y00 + t.x21*b.x10 + x22*b.x20
	m.x21 = t.x20*b.x01 + t.x21*y11 + x22*b.x21
	m.d22 = t.x20*b.x02 + t.x21*b.x12 + x22*y22 - 1
	m.x23 = t.x20*b.x03 + t.x21*b.x13 + x22*b.x23 + t.x23
	return m
}

// Det returns the determinant of the linear part of the Transform.
func (t Transform) Det() float64 {
	x00, x11, x22 := t.d00+1, t.d11+1, t.d22+1
	return x00*(x11*x22-t.x12*t.x21) -
		t.x01*(t.x10*x22-t.x12*t.x20) +
		t.x02*(t.x10*t.x21-x11*t.x20)
}

// Inv returns the inverse of the transform such that
// t.Inv().Mul(t) is the identity Transform.
// If the linear part is singular Inv panics.
func (t Transform) Inv() Transform {
	if t == (Transform{}) {
		return t
	}
	det := t.Det()
	if math.Abs(det) < 1e-300 {
		panic("singular transform")
	}
	d := 1 / det
	x00, x11, x22 := t.d00+1, t.d11+1, t.d22+1
	// adjugate of the linear part.
	a00 := (x11*x22 - t.x12*t.x21) * d
	a01 := (t.x02*t.x21 - t.x01*x22) * d
	a02 := (t.x01*t.x12 - t.x02*x11) * d
	a10 := (t.x12*t.x20 - t.x10*x22) * d
	a11 := (x00*x22 - t.x02*t.x20) * d
	a12 := (t.x02*t.x10 - x00*t.x12) * d
	a20 := (t.x10*t.x21 - x11*t.x20) * d
	a21 := (t.x01*t.x20 - x00*t.x21) * d
	a22 := (x00*x11 - t.x01*t.x10) * d
	return Transform{
		d00: a00 - 1, x01: a01, x02: a02,
		x03: -(a00*t.x03 + a01*t.x13 + a02*t.x23),
		x10: a10, d11: a11 - 1, x12: a12,
		x13: -(a10*t.x03 + a11*t.x13 + a12*t.x23),
		x20: a20, x21: a21, d22: a22 - 1,
		x23: -(a20*t.x03 + a21*t.x13 + a22*t.x23),
	}
}

// Equals tests the equality of the Transforms to within a tolerance.
func (t Transform) Equals(b Transform, tolerance float64) bool {
	return math.Abs(t.d00-b.d00) < tolerance &&
		math.Abs(t.x01-b.x01) < tolerance &&
		math.Abs(t.x02-b.x02) < tolerance &&
		math.Abs(t.x03-b.x03) < tolerance &&
		math.Abs(t.x10-b.x10) < tolerance &&
		math.Abs(t.d11-b.d11) < tolerance &&
		math.Abs(t.x12-b.x12) < tolerance &&
		math.Abs(t.x13-b.x13) < tolerance &&
		math.Abs(t.x20-b.x20) < tolerance &&
		math.Abs(t.x21-b.x21) < tolerance &&
		math.Abs(t.d22-b.d22) < tolerance &&
		math.Abs(t.x23-b.x23) < tolerance
}

// SliceCopy returns a copy of the Transform's data
// in row major storage format. It returns 12 elements.
func (t Transform) SliceCopy() []float64 {
	return []float64{
		t.d00 + 1, t.x01, t.x02, t.x03,
		t.x10, t.d11 + 1, t.x12, t.x13,
		t.x20, t.x21, t.d22 + 1, t.x23,
	}
}
