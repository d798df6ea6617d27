package render

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// Renderer reads triangles of a surface triangulation into a buffer.
// ReadTriangles returns io.EOF once all triangles have been read.
type Renderer interface {
	ReadTriangles(t []Triangle3) (int, error)
}

// Triangle3 is a 3D triangle. Vertices are ordered counter-clockwise
// when seen from the side the normal points to.
type Triangle3 struct {
	V [3]r3.Vec
}

// Normal returns the unit normal of the triangle following the right hand rule.
func (t Triangle3) Normal() r3.Vec {
	e1 := r3.Sub(t.V[1], t.V[0])
	e2 := r3.Sub(t.V[2], t.V[0])
	return r3.Unit(r3.Cross(e1, e2))
}

// Degenerate returns true if the triangle area is within tol of zero.
func (t Triangle3) Degenerate(tol float64) bool {
	e1 := r3.Sub(t.V[1], t.V[0])
	e2 := r3.Sub(t.V[2], t.V[0])
	return r3.Norm(r3.Cross(e1, e2)) <= tol
}

// Centroid returns the mean of the triangle's vertices.
func (t Triangle3) Centroid() r3.Vec {
	return r3.Scale(1.0/3, r3.Add(t.V[0], r3.Add(t.V[1], t.V[2])))
}

// Area returns the triangle's area.
func (t Triangle3) Area() float64 {
	e1 := r3.Sub(t.V[1], t.V[0])
	e2 := r3.Sub(t.V[2], t.V[0])
	return 0.5 * r3.Norm(r3.Cross(e1, e2))
}

// Flip returns the triangle with reversed orientation.
func (t Triangle3) Flip() Triangle3 {
	return Triangle3{V: [3]r3.Vec{t.V[0], t.V[2], t.V[1]}}
}
