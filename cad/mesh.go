package cad

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/soypat/coinmesh/internal/d3"
	"github.com/soypat/coinmesh/render"
	"gonum.org/v1/gonum/spatial/r3"
)

// minCells is the coarsest sampling used for any body.
const minCells = 8

// Mesh is the surface triangulation of a body. Every triangle is
// assigned to the boundary face nearest to its centroid.
type Mesh struct {
	Body BodyID
	// Cells is the number of sampling cells along the body's longest axis.
	Cells int
	// Refine is how many times smaller the cells near faces with a finer
	// mesh size are. It is 1 when the whole body is sampled uniformly.
	Refine int
	// Region is the refined region, zero when Refine is 1.
	Region    r3.Box
	Triangles []render.Triangle3
	// Faces holds the face ID of each triangle.
	Faces []int
}

// FaceTriangles returns the triangles assigned to a face.
func (m *Mesh) FaceTriangles(faceID int) []render.Triangle3 {
	var tris []render.Triangle3
	for i, f := range m.Faces {
		if f == faceID {
			tris = append(tris, m.Triangles[i])
		}
	}
	return tris
}

// Counts returns the number of triangles assigned to each face.
func (m *Mesh) Counts() map[int]int {
	counts := make(map[int]int)
	for _, f := range m.Faces {
		counts[f]++
	}
	return counts
}

// Generate triangulates the boundary of a body. The body is sampled with
// cells of the session mesh size. Faces given a finer size are sampled with
// cells of that size inside a region enclosing them with a margin of
// refineMargin coarse cells. Both cell counts are limited by the session's
// maximum cell count. Without a session mesh size the finest face size is
// used for the whole body.
func (s *Session) Generate(id BodyID) (*Mesh, error) {
	const op = "generate"
	b, err := s.body(op, id)
	if err != nil {
		return nil, err
	}
	coarse, fine := s.meshSize, 0.0
	var region d3.Box
	for _, f := range b.faces {
		fs, ok := s.faceSizes[f.id]
		if !ok || (coarse > 0 && fs >= coarse) {
			continue
		}
		if fine == 0 || fs < fine {
			fine = fs
		}
		if fb := f.surf.bounds(); region == (d3.Box{}) {
			region = fb
		} else {
			region = region.Extend(fb)
		}
	}
	if coarse == 0 {
		coarse, fine = fine, 0
	}
	if coarse == 0 {
		return nil, opErr(op, errors.New("no mesh size set"))
	}
	long := d3.Max(d3.Box(b.s.Bounds()).ScaleAboutCenter(1.01).Size())
	cells := s.limitCells(id, "coarse", int(math.Ceil(long/coarse)))
	cell := long / float64(cells) // side of the renderer's cells
	refine := 1
	if fine > 0 && fine < cell {
		region.Min = r3.Sub(region.Min, d3.Elem(refineMargin*cell))
		region.Max = r3.Add(region.Max, d3.Elem(refineMargin*cell))
		refine = int(math.Ceil(cell / fine))
		if s.maxCells > 0 {
			// cells across the refined region.
			across := d3.Max(region.Size()) / cell * float64(refine)
			if across > float64(s.maxCells) {
				s.log.Warn("cad.generate.capped", "body", id, "level", "fine", "cells", int(math.Ceil(across)), "max", s.maxCells)
				refine = max(1, int(float64(s.maxCells)*cell/d3.Max(region.Size())))
			}
		}
	}
	m := &Mesh{Body: id, Cells: cells, Refine: refine}
	var rd render.Renderer
	if refine > 1 {
		var grown r3.Box
		rd, grown = render.NewRefinedRenderer(b.s, cells, refine, r3.Box(region))
		m.Region = grown
	} else {
		rd = render.NewOctreeRenderer(b.s, cells)
	}
	tris, err := render.RenderAll(rd)
	if err != nil {
		return nil, opErr(op, err)
	}
	if len(tris) == 0 {
		return nil, opErr(op, errors.New("body has no surface at this resolution"))
	}
	m.Triangles, m.Faces = tris, make([]int, len(tris))
	for i, t := range tris {
		c := t.Centroid()
		best, bestDist := 0, math.Inf(1)
		for _, f := range b.faces {
			if d := f.surf.distance(c); d < bestDist {
				best, bestDist = f.id, d
			}
		}
		m.Faces[i] = best
	}
	s.mesh = m
	s.log.Debug("cad.generate", "body", id, "size", coarse, "fine", fine, "cells", cells,
		"refine", refine, "triangles", len(tris))
	return m, nil
}

// refineMargin is the number of coarse cells between refined faces and the
// boundary of the refined region.
const refineMargin = 2

func (s *Session) limitCells(id BodyID, level string, cells int) int {
	if s.maxCells > 0 && cells > s.maxCells {
		s.log.Warn("cad.generate.capped", "body", id, "level", level, "cells", cells, "max", s.maxCells)
		cells = s.maxCells
	}
	return max(cells, minCells)
}

// Solids returns one solid per 2D physical group of the generated mesh, in
// group tag order.
func (s *Session) Solids() ([]render.Solid, error) {
	const op = "solids"
	if err := s.check(op); err != nil {
		return nil, err
	}
	if s.mesh == nil {
		return nil, opErr(op, ErrNotMeshed)
	}
	var solids []render.Solid
	for _, g := range s.sortedGroups(2) {
		var sol render.Solid
		sol.Name = g.name
		for _, fid := range g.tags {
			sol.Triangles = append(sol.Triangles, s.mesh.FaceTriangles(fid)...)
		}
		solids = append(solids, sol)
	}
	if len(solids) == 0 {
		return nil, opErr(op, errors.New("no physical surface groups defined"))
	}
	return solids, nil
}

func (s *Session) sortedGroups(dim int) []physicalGroup {
	var groups []physicalGroup
	for _, g := range s.groups {
		if dim == 0 || g.dim == dim {
			groups = append(groups, g)
		}
	}
	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].dim != groups[j].dim {
			return groups[i].dim < groups[j].dim
		}
		return groups[i].tag < groups[j].tag
	})
	return groups
}

// Format is an output file format.
type Format int

const (
	// FormatSTLGroups is ASCII STL with one solid per 2D physical group.
	FormatSTLGroups Format = iota
	// FormatSTLBinary is binary STL holding every triangle of the mesh.
	FormatSTLBinary
	// FormatMSH is Gmsh 2.2 ASCII holding the 2D physical groups' triangles.
	FormatMSH
)

func (f Format) String() string {
	switch f {
	case FormatSTLGroups:
		return "stl"
	case FormatSTLBinary:
		return "binary"
	case FormatMSH:
		return "msh"
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// ParseFormat returns the Format named by its String value.
func ParseFormat(name string) (Format, error) {
	for _, f := range []Format{FormatSTLGroups, FormatSTLBinary, FormatMSH} {
		if f.String() == name {
			return f, nil
		}
	}
	return 0, fmt.Errorf("unknown format %q", name)
}

// Write writes the generated mesh to path.
func (s *Session) Write(path string, format Format) (err error) {
	const op = "write"
	if err := s.check(op); err != nil {
		return err
	}
	if s.mesh == nil {
		return opErr(op, ErrNotMeshed)
	}
	var (
		solids []render.Solid
		names  []render.PhysicalName
		groups []render.MeshGroup
	)
	switch format {
	case FormatSTLGroups:
		if solids, err = s.Solids(); err != nil {
			return err
		}
	case FormatSTLBinary:
	case FormatMSH:
		for _, g := range s.sortedGroups(0) {
			names = append(names, render.PhysicalName{Dim: g.dim, Tag: g.tag, Name: g.name})
			if g.dim != 2 {
				continue
			}
			for _, fid := range g.tags {
				if tris := s.mesh.FaceTriangles(fid); len(tris) > 0 {
					groups = append(groups, render.MeshGroup{Physical: g.tag, Elementary: fid, Triangles: tris})
				}
			}
		}
		if len(groups) == 0 {
			return opErr(op, errors.New("no meshed physical surface groups"))
		}
	default:
		return opErrf(op, "unknown format %v", format)
	}
	// Write next to path and rename so a failed write leaves no partial file.
	fp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp*")
	if err != nil {
		return opErr(op, err)
	}
	defer func() {
		if err != nil {
			fp.Close()
			os.Remove(fp.Name())
		}
	}()
	switch format {
	case FormatSTLGroups:
		err = render.WriteSTLSolids(fp, solids)
	case FormatSTLBinary:
		err = render.WriteSTL(fp, s.mesh.Triangles)
	case FormatMSH:
		err = render.WriteMSH(fp, names, groups)
	}
	if err != nil {
		return opErr(op, err)
	}
	if err = fp.Close(); err != nil {
		return opErr(op, err)
	}
	if err = os.Rename(fp.Name(), path); err != nil {
		return opErr(op, err)
	}
	s.log.Debug("cad.write", "path", path, "format", format)
	return nil
}
