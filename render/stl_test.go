package render_test

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"github.com/soypat/coinmesh/render"
	"github.com/soypat/coinmesh/sdf"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestSTLSolidsMalformed(t *testing.T) {
	const facet = "  facet normal 0 0 1\n    outer loop\n" +
		"      vertex 0 0 0\n      vertex 1 0 0\n      vertex 0 1 0\n" +
		"    endloop\n  endfacet\n"
	for _, test := range []struct {
		name  string
		input string
	}{
		{name: "endloop after endsolid", input: "solid a\n" + facet + "endsolid a\nendloop\n"},
		{name: "endloop before solid", input: "endloop\n"},
		{name: "two vertex facet", input: "solid a\n  facet normal 0 0 1\n    outer loop\n" +
			"      vertex 0 0 0\n      vertex 1 0 0\n    endloop\n  endfacet\nendsolid a\n"},
		{name: "vertices carried past endfacet", input: "solid a\n" + facet +
			"  facet normal 0 0 1\n      vertex 0 0 0\n    endloop\n  endfacet\nendsolid a\n"},
		{name: "bad coordinate", input: "solid a\n  facet normal 0 0 1\n    outer loop\n" +
			"      vertex 0 0 x\n"},
	} {
		_, err := render.ReadSTLSolids(bytes.NewBufferString(test.input))
		if err == nil {
			t.Errorf("%s: expected error", test.name)
		}
	}
	solids, err := render.ReadSTLSolids(bytes.NewBufferString("solid a\n" + facet + facet + "endsolid a\n"))
	if err != nil {
		t.Fatal(err)
	}
	if len(solids) != 1 || len(solids[0].Triangles) != 2 {
		t.Fatalf("unexpected solids %+v", solids)
	}
}

func TestSTLWriteReadback(t *testing.T) {
	const quality = 40
	cyl, _ := sdf.Cylinder(2, 1, 0.1)
	input, err := render.RenderAll(render.NewOctreeRenderer(cyl, quality))
	if err != nil {
		t.Fatal(err)
	}
	var b bytes.Buffer
	err = render.WriteSTL(&b, input)
	if err != nil {
		t.Fatal(err)
	}
	output, err := render.ReadSTL(&b)
	if err != nil && !errors.Is(err, render.ErrNormalMismatch) && !errors.Is(err, render.ErrDegenerate) {
		t.Fatal(err)
	}
	if len(output) != len(input) {
		t.Fatalf("length of triangles written/read not equal: %d != %d", len(output), len(input))
	}
	for i := range input {
		for j := range input[i].V {
			got, want := output[i].V[j], input[i].V[j]
			if r3.Norm(r3.Sub(got, want)) > 1e-6 {
				t.Fatalf("triangle %d vertex %d: got %v want %v", i, j, got, want)
			}
		}
	}
}

func TestWriteSTLEmpty(t *testing.T) {
	var b bytes.Buffer
	if err := render.WriteSTL(&b, nil); err == nil {
		t.Error("expected error writing empty model")
	}
	if _, err := render.ReadSTL(bytes.NewReader(make([]byte, 84))); err == nil {
		t.Error("expected error reading STL with zero triangles")
	}
}

func TestSTLSolidsRoundTrip(t *testing.T) {
	box, _ := sdf.Box(r3.Vec{X: 1, Y: 1, Z: 1}, 0)
	model, err := render.RenderAll(render.NewOctreeRenderer(box, 8))
	if err != nil {
		t.Fatal(err)
	}
	half := len(model) / 2
	solids := []render.Solid{
		{Name: "left", Triangles: model[:half]},
		{Name: "right", Triangles: model[half:]},
	}
	var b bytes.Buffer
	if err := render.WriteSTLSolids(&b, solids); err != nil {
		t.Fatal(err)
	}
	got, err := render.ReadSTLSolids(&b)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(solids) {
		t.Fatalf("got %d solids, want %d", len(got), len(solids))
	}
	for i := range solids {
		if got[i].Name != solids[i].Name {
			t.Errorf("solid %d name %q, want %q", i, got[i].Name, solids[i].Name)
		}
		if len(got[i].Triangles) != len(solids[i].Triangles) {
			t.Fatalf("solid %q: got %d triangles, want %d", solids[i].Name, len(got[i].Triangles), len(solids[i].Triangles))
		}
		for j := range solids[i].Triangles {
			// shortest float formatting round trips exactly.
			if got[i].Triangles[j] != solids[i].Triangles[j] {
				t.Fatalf("solid %q triangle %d mismatch", solids[i].Name, j)
			}
		}
	}
}

func TestSTLSolidsInvalidName(t *testing.T) {
	var b bytes.Buffer
	err := render.WriteSTLSolids(&b, []render.Solid{{Name: "two words"}})
	if err == nil {
		t.Fatal("expected error for solid name with whitespace")
	}
	_, err = render.ReadSTLSolids(bytes.NewBufferString("solid a\n  facet normal 0 0 1\n"))
	if err == nil {
		t.Fatal("expected error for unterminated solid")
	}
}

func TestMSHRoundTrip(t *testing.T) {
	box, _ := sdf.Box(r3.Vec{X: 1, Y: 2, Z: 1}, 0)
	model, err := render.RenderAll(render.NewOctreeRenderer(box, 10))
	if err != nil {
		t.Fatal(err)
	}
	var top, rest []render.Triangle3
	for _, tri := range model {
		if tri.Normal().Z > 0.99 {
			top = append(top, tri)
		} else {
			rest = append(rest, tri)
		}
	}
	if len(top) == 0 || len(rest) == 0 {
		t.Fatal("expected triangles on the top face and elsewhere")
	}
	names := []render.PhysicalName{
		{Dim: 2, Tag: 2, Name: "top"},
		{Dim: 2, Tag: 3, Name: "rest"},
		{Dim: 3, Tag: 1, Name: "Fluid_Domain"},
	}
	groups := []render.MeshGroup{
		{Physical: 2, Elementary: 10, Triangles: top},
		{Physical: 3, Elementary: 11, Triangles: rest},
	}
	var b bytes.Buffer
	if err := render.WriteMSH(&b, names, groups); err != nil {
		t.Fatal(err)
	}
	gotNames, gotGroups, err := render.ReadMSH(&b)
	if err != nil {
		t.Fatal(err)
	}
	if len(gotNames) != 3 || gotNames[2].Name != "Fluid_Domain" || gotNames[0].Name != "top" {
		t.Errorf("unexpected physical names %+v", gotNames)
	}
	if len(gotGroups) != 2 {
		t.Fatalf("got %d groups, want 2", len(gotGroups))
	}
	for i, g := range groups {
		if gotGroups[i].Physical != g.Physical || gotGroups[i].Elementary != g.Elementary {
			t.Errorf("group %d tags (%d,%d)", i, gotGroups[i].Physical, gotGroups[i].Elementary)
		}
		if len(gotGroups[i].Triangles) != len(g.Triangles) {
			t.Fatalf("group %d: got %d triangles want %d", i, len(gotGroups[i].Triangles), len(g.Triangles))
		}
		for j := range g.Triangles {
			if gotGroups[i].Triangles[j] != g.Triangles[j] {
				t.Fatalf("group %d triangle %d mismatch", i, j)
			}
		}
	}
}

func TestOctreeClosedOrientedSurface(t *testing.T) {
	box := sdf.MustBox(r3.Vec{X: 3, Y: 2, Z: 1}, 0)
	hole := sdf.Transform3D(sdf.MustCylinder(2, 0.4, 0), sdf.Rotate3D(r3.Vec{Y: 1}, math.Pi/6))
	shapes := map[string]sdf.SDF3{
		"box":        box,
		"difference": sdf.Difference3D(box, hole),
	}
	for name, s := range shapes {
		model, err := render.RenderAll(render.NewOctreeRenderer(s, 40))
		if err != nil {
			t.Fatal(err)
		}
		if len(model) == 0 {
			t.Fatalf("%s: no triangles", name)
		}
		directed := make(map[[2]r3.Vec]int)
		var volume float64
		for _, tri := range model {
			for i := 0; i < 3; i++ {
				directed[[2]r3.Vec{tri.V[i], tri.V[(i+1)%3]}]++
			}
			volume += r3.Dot(tri.V[0], r3.Cross(tri.V[1], tri.V[2])) / 6
		}
		for e, n := range directed {
			if n != 1 {
				t.Fatalf("%s: directed edge %v used %d times", name, e, n)
			}
			if directed[[2]r3.Vec{e[1], e[0]}] != 1 {
				t.Fatalf("%s: edge %v has no opposite twin, surface is open", name, e)
			}
		}
		if volume <= 0 {
			t.Errorf("%s: negative enclosed volume %g, normals point inwards", name, volume)
		}
		if name == "box" && math.Abs(volume-6) > 0.03*6 {
			t.Errorf("box volume %g, want approximately 6", volume)
		}
	}
}

func TestRefinedRenderer(t *testing.T) {
	const cells, refine = 8, 4
	box := sdf.MustBox(r3.Vec{X: 2, Y: 2, Z: 2}, 0)
	region := r3.Box{Min: r3.Vec{X: -0.3, Y: -0.3, Z: -1.2}, Max: r3.Vec{X: 0.3, Y: 0.3, Z: -0.8}}
	area := func(model []render.Triangle3) (a float64) {
		for _, tri := range model {
			a += tri.Area()
		}
		return a
	}
	coarse, err := render.RenderAll(render.NewOctreeRenderer(box, cells))
	if err != nil {
		t.Fatal(err)
	}
	fine, err := render.RenderAll(render.NewOctreeRenderer(box, cells*refine))
	if err != nil {
		t.Fatal(err)
	}
	rd, grown := render.NewRefinedRenderer(box, cells, refine, region)
	if grown.Min.X > region.Min.X || grown.Min.Z > region.Min.Z || grown.Max.X < region.Max.X || grown.Max.Z < region.Max.Z {
		t.Fatalf("grown region %v does not enclose %v", grown, region)
	}
	refined, err := render.RenderAll(rd)
	if err != nil {
		t.Fatal(err)
	}
	if len(refined) <= len(coarse) || len(refined) >= len(fine) {
		t.Errorf("refined triangle count %d not between %d and %d", len(refined), len(coarse), len(fine))
	}
	// the refined region lies inside the bottom face, away from chamfered edges.
	if got, want := area(refined), area(coarse); math.Abs(got-want) > 1e-9 {
		t.Errorf("refined area %g, want %g", got, want)
	}
	maxEdge := math.Sqrt(3) * 2.02 / (cells * refine)
	var inside int
	for _, tri := range refined {
		c := tri.Centroid()
		if c.X < grown.Min.X || c.X > grown.Max.X || c.Y < grown.Min.Y || c.Y > grown.Max.Y ||
			c.Z < grown.Min.Z || c.Z > grown.Max.Z {
			continue
		}
		inside++
		for i := 0; i < 3; i++ {
			if e := r3.Norm(r3.Sub(tri.V[i], tri.V[(i+1)%3])); e > maxEdge+1e-9 {
				t.Fatalf("triangle edge %g inside refined region, want at most %g", e, maxEdge)
			}
		}
	}
	if inside == 0 {
		t.Error("no triangles inside refined region")
	}
	plain, zero := render.NewRefinedRenderer(box, cells, 1, region)
	if zero != (r3.Box{}) {
		t.Errorf("unrefined renderer reported region %v", zero)
	}
	unrefined, err := render.RenderAll(plain)
	if err != nil {
		t.Fatal(err)
	}
	if len(unrefined) != len(coarse) {
		t.Errorf("refine 1 gave %d triangles, want %d", len(unrefined), len(coarse))
	}
}
