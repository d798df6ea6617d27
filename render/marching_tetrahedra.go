package render

import (
	"github.com/soypat/coinmesh/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

// marchingTetMaxTriangles is the most triangles a single cube can produce:
// two per tetrahedron.
const marchingTetMaxTriangles = 12

// cubeCornerOffsets are the unit cube corners in vertex order.
//
//	   7-------6
//	  /|      /|
//	 4-------5 |
//	 | 3-----|-2
//	 |/      |/
//	 0-------1
var cubeCornerOffsets = [8]v3i{
	{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0},
	{0, 0, 1}, {1, 0, 1}, {1, 1, 1}, {0, 1, 1},
}

// cubeTetrahedra splits a cube into six tetrahedra sharing the 0-6 diagonal.
// Every face of the cube is split along the diagonal through its lowest
// corner, so the split agrees between neighbouring cubes.
var cubeTetrahedra = [6][4]int{
	{0, 5, 1, 6},
	{0, 1, 2, 6},
	{0, 2, 3, 6},
	{0, 3, 7, 6},
	{0, 7, 4, 6},
	{0, 4, 5, 6},
}

// mtToTriangles writes the triangles of the isosurface d=0 crossing a cube
// to dst and returns the amount written. Points with negative distance are inside.
func mtToTriangles(dst []Triangle3, p [8]r3.Vec, v [8]float64) int {
	n := 0
	for _, tet := range cubeTetrahedra {
		var tp [4]r3.Vec
		var tv [4]float64
		for i, idx := range tet {
			tp[i], tv[i] = p[idx], v[idx]
		}
		n += tetToTriangles(dst[n:], tp, tv)
	}
	return n
}

func tetToTriangles(dst []Triangle3, p [4]r3.Vec, v [4]float64) int {
	var in, out [4]int
	var nin, nout int
	for i := range v {
		if v[i] < 0 {
			in[nin] = i
			nin++
		} else {
			out[nout] = i
			nout++
		}
	}
	if nin == 0 || nout == 0 {
		return 0
	}
	// outward is the direction from the inside vertices to the outside ones.
	var cin, cout r3.Vec
	for _, i := range in[:nin] {
		cin = r3.Add(cin, p[i])
	}
	for _, i := range out[:nout] {
		cout = r3.Add(cout, p[i])
	}
	outward := r3.Sub(r3.Scale(1/float64(nout), cout), r3.Scale(1/float64(nin), cin))
	edge := func(a, b int) r3.Vec { return interpolate(p[a], p[b], v[a], v[b]) }

	n := 0
	emit := func(a, b, c r3.Vec) {
		t := Triangle3{V: [3]r3.Vec{a, b, c}}
		cross := r3.Cross(r3.Sub(b, a), r3.Sub(c, a))
		if cross == (r3.Vec{}) {
			return
		}
		if r3.Dot(cross, outward) < 0 {
			t = t.Flip()
		}
		dst[n] = t
		n++
	}
	switch {
	case nin == 1:
		i := in[0]
		emit(edge(i, out[0]), edge(i, out[1]), edge(i, out[2]))
	case nout == 1:
		o := out[0]
		emit(edge(in[0], o), edge(in[1], o), edge(in[2], o))
	default:
		// two inside (a, b) and two outside (c, d) vertices form a quad.
		a, b, c, d := in[0], in[1], out[0], out[1]
		ac, ad, bc, bd := edge(a, c), edge(a, d), edge(b, c), edge(b, d)
		emit(ac, ad, bd)
		emit(ac, bd, bc)
	}
	return n
}

// interpolate returns the zero crossing along the edge p1-p2. The endpoints
// are ordered first so an edge shared by neighbouring tetrahedra yields the
// exact same point.
func interpolate(p1, p2 r3.Vec, v1, v2 float64) r3.Vec {
	if d3.Less(p2, p1) {
		p1, p2 = p2, p1
		v1, v2 = v2, v1
	}
	t := v1 / (v1 - v2)
	return r3.Add(p1, r3.Scale(t, r3.Sub(p2, p1)))
}
