package render

import (
	"io"
	"math"

	"github.com/soypat/coinmesh/internal/d3"
	"github.com/soypat/coinmesh/sdf"
	"gonum.org/v1/gonum/spatial/r3"
)

// octree renders an SDF3 using marching tetrahedra with octree space sampling.
type octree struct {
	dc        dc3
	todo      []cube
	unwritten triangle3Buffer
	// cells whose center is inside region are kept when inside is true,
	// discarded otherwise. A zero region keeps every cell.
	region r3.Box
	inside bool
}

type cube struct {
	v3i      // origin of cube as integers
	n   uint // level of cube, size = 1 << n
}

// NewOctreeRenderer returns a marching tetrahedra Renderer using octree
// cube sampling. meshCells is the number of cells along the longest axis of
// the SDF3's bounding box. Every cell is split into six tetrahedra along its
// main diagonal so the resulting surface is closed and consistently oriented
// with normals pointing out of the SDF3.
func NewOctreeRenderer(s sdf.SDF3, meshCells int) *octree {
	if meshCells < 2 {
		panic("meshCells must be 2 or larger")
	}
	// Scale the bounding box about the center to make sure the boundaries
	// aren't on the object surface.
	bb := d3.Box(s.Bounds())
	bb = bb.ScaleAboutCenter(1.01)
	longAxis := d3.Max(bb.Size())
	// We want to test the smallest cube (side == resolution) for emptiness
	// so the level = 0 cube is at half resolution.
	resolution := 0.5 * longAxis / float64(meshCells)

	// how many cube levels for the octree?
	levels := uint(math.Ceil(math.Log2(longAxis/resolution))) + 1

	divisions := r3.Scale(1/resolution, bb.Size())
	maxCubes := int(divisions.X) * int(divisions.Y) * int(divisions.Z)

	cubes := make([]cube, 1, max(1, maxCubes/64))
	cubes[0] = cube{v3i{0, 0, 0}, levels - 1} // process the octree, start at the top level
	return &octree{
		dc:        *newDc3(s, bb.Min, resolution, levels),
		unwritten: triangle3Buffer{buf: make([]Triangle3, 0, 1024)},
		todo:      cubes,
	}
}

// ReadTriangles writes triangles rendered from the model into the argument buffer.
// returns number of triangles written and an error if present.
func (oc *octree) ReadTriangles(dst []Triangle3) (n int, err error) {
	if len(dst) == 0 {
		panic("cannot write to empty triangle slice")
	}
	if oc.unwritten.Len() > 0 {
		n += oc.unwritten.Read(dst[n:])
		if n == len(dst) {
			return n, nil
		}
	}
	if len(oc.todo) == 0 && oc.unwritten.Len() == 0 {
		// Done rendering model.
		return n, io.EOF
	}
	n += oc.readTriangles(dst[n:])
	return n, nil
}

// readTriangles processes queued cubes until dst is full or the queue is empty.
func (oc *octree) readTriangles(dst []Triangle3) (n int) {
	cubesProcessed := 0
	var newCubes []cube
	for _, cube := range oc.todo {
		if n == len(dst) {
			break
		}
		if n+marchingTetMaxTriangles > len(dst) {
			// Not enough room in buffer for the worst case output of a cube.
			var tmp [marchingTetMaxTriangles]Triangle3
			tri, cubes := oc.processCube(tmp[:], cube)
			oc.unwritten.Write(tmp[:tri])
			newCubes = append(newCubes, cubes...)
			cubesProcessed++
			break
		}
		tri, cubes := oc.processCube(dst[n:], cube)
		newCubes = append(newCubes, cubes...)
		cubesProcessed++
		n += tri
	}
	oc.todo = append(oc.todo, newCubes...)
	oc.todo = oc.todo[cubesProcessed:]
	return n
}

// Process a cube. Generate triangles, or more cubes.
func (oc *octree) processCube(dst []Triangle3, c cube) (writtenTriangles int, newCubes []cube) {
	if !oc.wanted(c) {
		return 0, nil
	}
	if c.n == 1 {
		// this cube is at the required resolution
		var corners [8]r3.Vec
		var values [8]float64
		for i, off := range cubeCornerOffsets {
			corners[i], values[i] = oc.dc.Evaluate(c.Add(off.scale(2)))
		}
		return mtToTriangles(dst, corners, values), nil
	}
	// process the sub cubes
	n := c.n - 1
	s := 1 << n
	for _, off := range cubeCornerOffsets {
		candidate := cube{c.Add(off.scale(s)), n}
		if !oc.dc.IsEmpty(&candidate) {
			newCubes = append(newCubes, candidate)
		}
	}
	return 0, newCubes
}

// wanted reports whether cube c may hold cells selected by the region.
func (oc *octree) wanted(c cube) bool {
	if oc.region == (r3.Box{}) {
		return true
	}
	side := oc.dc.resolution * float64(int(1)<<c.n)
	lo := r3.Add(oc.dc.origin, r3.Scale(oc.dc.resolution, c.toV3()))
	hi := r3.Add(lo, d3.Elem(side))
	if c.n == 1 {
		center := r3.Scale(0.5, r3.Add(lo, hi))
		return d3.Box(oc.region).Contains(center) == oc.inside
	}
	r := oc.region
	if oc.inside {
		return lo.X < r.Max.X && hi.X > r.Min.X &&
			lo.Y < r.Max.Y && hi.Y > r.Min.Y &&
			lo.Z < r.Max.Z && hi.Z > r.Min.Z
	}
	within := lo.X >= r.Min.X && hi.X <= r.Max.X &&
		lo.Y >= r.Min.Y && hi.Y <= r.Max.Y &&
		lo.Z >= r.Min.Z && hi.Z <= r.Max.Z
	return !within
}

// NewRefinedRenderer returns a marching tetrahedra Renderer that samples s
// with meshCells cells along its longest axis and with cells refine times
// smaller inside region. The region is grown to the coarse cell lattice so
// both samplings tile space: the coarse and fine surfaces meet without
// gaps wherever the surface crossing the region boundary is planar.
// The second return value is the grown region.
func NewRefinedRenderer(s sdf.SDF3, meshCells, refine int, region r3.Box) (Renderer, r3.Box) {
	coarse := NewOctreeRenderer(s, meshCells)
	if refine <= 1 || region == (r3.Box{}) {
		return coarse, r3.Box{}
	}
	origin := coarse.dc.origin
	cell := 2 * coarse.dc.resolution
	snap := func(v r3.Vec, round func(float64) float64) r3.Vec {
		return r3.Vec{
			X: origin.X + cell*round((v.X-origin.X)/cell),
			Y: origin.Y + cell*round((v.Y-origin.Y)/cell),
			Z: origin.Z + cell*round((v.Z-origin.Z)/cell),
		}
	}
	grown := r3.Box{Min: snap(region.Min, math.Floor), Max: snap(region.Max, math.Ceil)}
	coarse.region = grown
	fine := NewOctreeRenderer(s, meshCells*refine)
	fine.region = grown
	fine.inside = true
	return &multiRenderer{rs: []Renderer{coarse, fine}}, grown
}

// multiRenderer reads its renderers one after the other.
type multiRenderer struct {
	rs []Renderer
}

func (m *multiRenderer) ReadTriangles(dst []Triangle3) (int, error) {
	for len(m.rs) > 0 {
		n, err := m.rs[0].ReadTriangles(dst)
		if err == io.EOF {
			m.rs = m.rs[1:]
			if n == 0 {
				continue
			}
			err = nil
		}
		if len(m.rs) == 0 && err == nil {
			return n, io.EOF
		}
		return n, err
	}
	return 0, io.EOF
}

// dc3 implements a 3 dimensional distance cache. Neighbouring cubes share
// corners so most lookups are hits.
type dc3 struct {
	cache      map[v3i]float64 // cache of distances
	origin     r3.Vec          // origin of the overall bounding cube
	resolution float64         // size of smallest octree cube
	hdiag      []float64       // lookup table of cube half diagonals
	s          sdf.SDF3        // the SDF3 to be rendered
}

// Evaluate returns the position of lattice point vi and the SDF3 value there.
func (dc *dc3) Evaluate(vi v3i) (r3.Vec, float64) {
	v := r3.Add(dc.origin, r3.Scale(dc.resolution, vi.toV3()))
	if dist, found := dc.cache[vi]; found {
		return v, dist
	}
	dist := dc.s.Evaluate(v)
	dc.cache[vi] = dist
	return v, dist
}

// IsEmpty returns true if the cube contains no SDF surface
func (dc *dc3) IsEmpty(c *cube) bool {
	// evaluate the SDF3 at the center of the cube
	s := 1 << (c.n - 1) // half side
	_, d := dc.Evaluate(c.AddScalar(s))
	// compare to the center/corner distance
	return math.Abs(d) >= dc.hdiag[c.n]
}

func newDc3(s sdf.SDF3, origin r3.Vec, resolution float64, n uint) *dc3 {
	if n >= 64 {
		panic("size of n must be less than size of word for hdiag generation")
	}
	dc := dc3{
		origin:     origin,
		resolution: resolution,
		hdiag:      make([]float64, n),
		s:          s,
		cache:      make(map[v3i]float64),
	}
	// build a lut for cube half diagonal lengths
	for i := range dc.hdiag {
		si := 1 << uint(i)
		s := float64(si) * dc.resolution
		dc.hdiag[i] = 0.5 * math.Sqrt(3.0*s*s)
	}
	return &dc
}

// v3i is an integer lattice coordinate.
type v3i [3]int

func (a v3i) Add(b v3i) v3i {
	return v3i{a[0] + b[0], a[1] + b[1], a[2] + b[2]}
}

func (a v3i) AddScalar(s int) v3i {
	return v3i{a[0] + s, a[1] + s, a[2] + s}
}

func (a v3i) scale(s int) v3i {
	return v3i{a[0] * s, a[1] * s, a[2] * s}
}

func (a v3i) toV3() r3.Vec {
	return r3.Vec{X: float64(a[0]), Y: float64(a[1]), Z: float64(a[2])}
}
