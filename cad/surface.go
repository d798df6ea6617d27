package cad

import (
	"math"

	"github.com/soypat/coinmesh/internal/d3"
	"github.com/soypat/coinmesh/sdf"
	"gonum.org/v1/gonum/spatial/r3"
)

// surface is the bounded geometric support of a face.
type surface interface {
	// distance returns the unsigned distance from p to the surface patch.
	distance(p r3.Vec) float64
	// centroid returns the center of mass of the surface patch.
	centroid() r3.Vec
	// normal returns the unit normal pointing out of the solid that
	// created the surface, or the zero vector for curved surfaces.
	normal() r3.Vec
	// samples returns points lying on the surface patch.
	samples() []r3.Vec
	// bounds returns a box containing the surface patch.
	bounds() d3.Box
	transform(m sdf.M44) surface
	flip() surface
}

// rect is a planar rectangle.
type rect struct {
	c      r3.Vec
	n      r3.Vec
	u, v   r3.Vec
	hu, hv float64
}

func (r rect) distance(p r3.Vec) float64 {
	d := r3.Sub(p, r.c)
	a, b, h := r3.Dot(d, r.u), r3.Dot(d, r.v), r3.Dot(d, r.n)
	da := math.Max(math.Abs(a)-r.hu, 0)
	db := math.Max(math.Abs(b)-r.hv, 0)
	return math.Sqrt(da*da + db*db + h*h)
}

func (r rect) centroid() r3.Vec { return r.c }
func (r rect) normal() r3.Vec   { return r.n }

func (r rect) samples() []r3.Vec {
	fractions := [...]float64{-0.9, -0.45, 0, 0.45, 0.9}
	pts := make([]r3.Vec, 0, len(fractions)*len(fractions))
	for _, fu := range fractions {
		for _, fv := range fractions {
			p := r3.Add(r.c, r3.Add(r3.Scale(fu*r.hu, r.u), r3.Scale(fv*r.hv, r.v)))
			pts = append(pts, p)
		}
	}
	return pts
}

func (r rect) bounds() d3.Box {
	ext := r3.Add(r3.Scale(r.hu, d3.AbsElem(r.u)), r3.Scale(r.hv, d3.AbsElem(r.v)))
	return d3.Box{Min: r3.Sub(r.c, ext), Max: r3.Add(r.c, ext)}
}

func (r rect) transform(m sdf.M44) surface {
	r.c = m.MulPosition(r.c)
	r.n = m.MulDirection(r.n)
	r.u = m.MulDirection(r.u)
	r.v = m.MulDirection(r.v)
	return r
}

func (r rect) flip() surface {
	r.n = r3.Scale(-1, r.n)
	return r
}

// disk is a planar circle.
type disk struct {
	c r3.Vec
	n r3.Vec
	r float64
}

func (s disk) distance(p r3.Vec) float64 {
	d := r3.Sub(p, s.c)
	h := r3.Dot(d, s.n)
	radial := r3.Norm(r3.Sub(d, r3.Scale(h, s.n)))
	dr := math.Max(radial-s.r, 0)
	return math.Hypot(dr, h)
}

func (s disk) centroid() r3.Vec { return s.c }
func (s disk) normal() r3.Vec   { return s.n }

func (s disk) samples() []r3.Vec {
	u := d3.Perpendicular(s.n)
	v := r3.Cross(s.n, u)
	pts := []r3.Vec{s.c}
	for _, f := range [...]float64{0.5, 0.9} {
		pts = append(pts, ring(s.c, u, v, f*s.r, 8)...)
	}
	return pts
}

func (s disk) bounds() d3.Box { return circleBounds(s.c, s.n, s.r) }

func (s disk) transform(m sdf.M44) surface {
	s.c = m.MulPosition(s.c)
	s.n = m.MulDirection(s.n)
	return s
}

func (s disk) flip() surface {
	s.n = r3.Scale(-1, s.n)
	return s
}

// tube is the lateral surface of a cylinder starting at base and
// extending h along the unit axis a.
type tube struct {
	base r3.Vec
	a    r3.Vec
	h    float64
	r    float64
}

func (s tube) distance(p r3.Vec) float64 {
	d := r3.Sub(p, s.base)
	t := r3.Dot(d, s.a)
	radial := r3.Norm(r3.Sub(d, r3.Scale(t, s.a)))
	dt := t - math.Max(0, math.Min(t, s.h))
	return math.Hypot(radial-s.r, dt)
}

func (s tube) centroid() r3.Vec { return r3.Add(s.base, r3.Scale(s.h/2, s.a)) }

// normal of a tube is not constant over the face.
func (s tube) normal() r3.Vec { return r3.Vec{} }

func (s tube) samples() []r3.Vec {
	u := d3.Perpendicular(s.a)
	v := r3.Cross(s.a, u)
	var pts []r3.Vec
	for _, f := range [...]float64{0.25, 0.5, 0.75} {
		pts = append(pts, ring(r3.Add(s.base, r3.Scale(f*s.h, s.a)), u, v, s.r, 8)...)
	}
	return pts
}

func (s tube) bounds() d3.Box {
	return circleBounds(s.base, s.a, s.r).Extend(circleBounds(r3.Add(s.base, r3.Scale(s.h, s.a)), s.a, s.r))
}

func (s tube) transform(m sdf.M44) surface {
	s.base = m.MulPosition(s.base)
	s.a = m.MulDirection(s.a)
	return s
}

// Only the orientation of the normal changes; a tube has no stored normal.
func (s tube) flip() surface { return s }

func ring(c, u, v r3.Vec, radius float64, n int) []r3.Vec {
	pts := make([]r3.Vec, n)
	for i := range pts {
		sin, cos := math.Sincos(2 * math.Pi * float64(i) / float64(n))
		pts[i] = r3.Add(c, r3.Add(r3.Scale(radius*cos, u), r3.Scale(radius*sin, v)))
	}
	return pts
}

// circleBounds returns the bounding box of a circle of radius r centered
// at c in the plane with unit normal n.
func circleBounds(c, n r3.Vec, r float64) d3.Box {
	ext := r3.Vec{
		X: r * math.Sqrt(math.Max(0, 1-n.X*n.X)),
		Y: r * math.Sqrt(math.Max(0, 1-n.Y*n.Y)),
		Z: r * math.Sqrt(math.Max(0, 1-n.Z*n.Z)),
	}
	return d3.Box{Min: r3.Sub(c, ext), Max: r3.Add(c, ext)}
}
