package sdf

import (
	"fmt"
	"math"
	"runtime/debug"

	"github.com/soypat/coinmesh/internal/d3"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

type shapeErr struct {
	panicObj interface{}
	stack    string
}

func (s *shapeErr) Error() string {
	return fmt.Sprintf("%s", s.panicObj)
}

// Box return an SDF3 for a 3d box centered at the origin
// (rounded corners with round > 0).
func Box(size r3.Vec, round float64) (s SDF3, err error) {
	defer func() {
		if a := recover(); a != nil {
			err = &shapeErr{
				panicObj: a,
				stack:    string(debug.Stack()),
			}
		}
	}()
	return MustBox(size, round), err
}

// Cylinder return an SDF3 for a cylinder along the z axis centered at the
// origin (rounded edges with round > 0).
func Cylinder(height, radius, round float64) (s SDF3, err error) {
	defer func() {
		if a := recover(); a != nil {
			err = &shapeErr{
				panicObj: a,
				stack:    string(debug.Stack()),
			}
		}
	}()
	return MustCylinder(height, radius, round), err
}

// box is a 3d box.
type box struct {
	size  r3.Vec
	round float64
	bb    r3.Box
}

// MustBox return an SDF3 for a 3d box. It panics on invalid arguments.
func MustBox(size r3.Vec, round float64) SDF3 {
	if !d3.IsFinite(size) || math.IsNaN(round) {
		panic("non-finite box dimensions")
	}
	if d3.LTEZero(size) {
		panic("size <= 0")
	}
	if round < 0 {
		panic("round < 0")
	}
	size = r3.Scale(0.5, size)
	if round > d3.Min(size) {
		panic("round > half size")
	}
	return &box{
		size:  r3.Sub(size, d3.Elem(round)),
		round: round,
		bb:    r3.Box{Min: r3.Scale(-1, size), Max: size},
	}
}

// Evaluate returns the minimum distance to a 3d box.
func (s *box) Evaluate(p r3.Vec) float64 {
	return sdfBox3d(p, s.size) - s.round
}

// Bounds returns the bounding box for a 3d box.
func (s *box) Bounds() r3.Box {
	return s.bb
}

// cylinder is a cylinder (exact distance field).
type cylinder struct {
	height float64
	radius float64
	round  float64
	bb     r3.Box
}

// MustCylinder return an SDF3 for a cylinder. It panics on invalid arguments.
func MustCylinder(height, radius, round float64) SDF3 {
	if math.IsNaN(height) || math.IsNaN(radius) || math.IsNaN(round) ||
		math.IsInf(height, 0) || math.IsInf(radius, 0) {
		panic("non-finite cylinder dimensions")
	}
	if radius <= 0 {
		panic("radius <= 0")
	}
	if height <= 0 {
		panic("height <= 0")
	}
	if round < 0 {
		panic("round < 0")
	}
	if round > radius {
		panic("round > radius")
	}
	if height < 2.0*round {
		panic("height < 2 * round")
	}
	d := r3.Vec{X: radius, Y: radius, Z: height / 2}
	return &cylinder{
		height: (height / 2) - round,
		radius: radius - round,
		round:  round,
		bb:     r3.Box{Min: r3.Scale(-1, d), Max: d},
	}
}

// Evaluate returns the minimum distance to a cylinder.
func (s *cylinder) Evaluate(p r3.Vec) float64 {
	d := sdfBox2d(r2.Vec{X: math.Hypot(p.X, p.Y), Y: p.Z}, r2.Vec{X: s.radius, Y: s.height})
	return d - s.round
}

// Bounds returns the bounding box for a cylinder.
func (s *cylinder) Bounds() r3.Box {
	return s.bb
}

func sdfBox3d(p, s r3.Vec) float64 {
	d := r3.Sub(d3.AbsElem(p), s)
	outside := r3.Norm(d3.MaxElem(d, r3.Vec{}))
	inside := math.Min(d3.Max(d), 0)
	return outside + inside
}

func sdfBox2d(p, s r2.Vec) float64 {
	d := r2.Vec{X: math.Abs(p.X) - s.X, Y: math.Abs(p.Y) - s.Y}
	outside := math.Hypot(math.Max(d.X, 0), math.Max(d.Y, 0))
	inside := math.Min(math.Max(d.X, d.Y), 0)
	return outside + inside
}
