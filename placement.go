// Package coinmesh places a tilted cylinder ("coin") inside a flow box,
// subtracts it and tags the boundary of the remaining fluid volume with the
// groups coin, inlet, plate and outlet before meshing and export.
package coinmesh

import (
	"math"

	"github.com/soypat/coinmesh/sdf"
	"gonum.org/v1/gonum/spatial/r3"
)

// Placement is the caller supplied position, tilt and size of the coin.
// A nil Z means the height was not supplied and DefaultZ applies.
type Placement struct {
	X, Y float64
	Z    *float64
	Phi  float64 // tilt in radians, sign selects the tilt direction
	R    float64 // radius
	T    float64 // thickness
}

// Pose is the rigid transform taking the coin from its canonical pose
// (axis along z, centered at the origin) to its final pose: a rotation of
// Angle radians about Axis through the origin followed by Translation.
type Pose struct {
	Axis        r3.Vec
	Angle       float64
	Translation r3.Vec
}

// DefaultZ is the coin center height used when none is given.
func DefaultZ(phi, r, t float64) float64 {
	return r*math.Sin(math.Abs(phi)) - t/4
}

// ComputePose returns the pose of p. The tilt is split into a unit axis
// (0, sign(phi), 0) and the non-negative angle |phi| so that a negative phi
// tilts the other way about the same nominal axis. ComputePose does not
// validate p.
func ComputePose(p Placement) Pose {
	z := DefaultZ(p.Phi, p.R, p.T)
	if p.Z != nil {
		z = *p.Z
	}
	return Pose{
		Axis:        r3.Vec{Y: math.Copysign(1, p.Phi)},
		Angle:       math.Abs(p.Phi),
		Translation: r3.Vec{X: p.X, Y: p.Y, Z: z},
	}
}

// Transform returns the pose as a matrix: rotate about the origin, then translate.
func (p Pose) Transform() sdf.M44 {
	return sdf.Translate3D(p.Translation).Mul(sdf.Rotate3D(p.Axis, p.Angle))
}

// Validate returns a geometry error for a non-positive radius or
// thickness or for any non-finite field.
func (p Placement) Validate() error {
	const op = "placement"
	fields := []struct {
		name string
		v    float64
	}{{"x", p.X}, {"y", p.Y}, {"phi", p.Phi}, {"R", p.R}, {"t", p.T}}
	if p.Z != nil {
		fields = append(fields, struct {
			name string
			v    float64
		}{"z", *p.Z})
	}
	for _, f := range fields {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return geometryErrorf(op, "%s is not finite: %g", f.name, f.v)
		}
	}
	if p.R <= 0 {
		return geometryErrorf(op, "radius must be positive, got %g", p.R)
	}
	if p.T <= 0 {
		return geometryErrorf(op, "thickness must be positive, got %g", p.T)
	}
	return nil
}
