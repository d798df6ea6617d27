package preview

import (
	"errors"
	"fmt"
	"math"

	"github.com/soypat/coinmesh/sdf"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Slice configures SlicePNG.
type Slice struct {
	// Y is the offset of the XZ sampling plane.
	Y float64
	// Nx and Nz are the number of samples along x and z.
	Nx, Nz int
	// Title of the plot.
	Title string
	// Width and Height of the saved image.
	Width, Height vg.Length
}

// DefaultSlice samples the y=0 plane, the plane the coin tilts in.
func DefaultSlice() Slice {
	return Slice{
		Nx:     200,
		Nz:     200,
		Title:  "signed distance, y=0",
		Width:  6 * vg.Inch,
		Height: 6 * vg.Inch,
	}
}

// sdfGrid samples an SDF3 on a regular XZ grid. It implements plotter.GridXYZ.
type sdfGrid struct {
	min, step r3.Vec
	nx, nz    int
	z         []float64
}

func newSDFGrid(s sdf.SDF3, y float64, nx, nz int) *sdfGrid {
	bb := s.Bounds()
	g := &sdfGrid{
		min: r3.Vec{X: bb.Min.X, Y: y, Z: bb.Min.Z},
		nx:  nx,
		nz:  nz,
		z:   make([]float64, nx*nz),
	}
	g.step = r3.Vec{X: (bb.Max.X - bb.Min.X) / float64(nx-1), Z: (bb.Max.Z - bb.Min.Z) / float64(nz-1)}
	for r := 0; r < nz; r++ {
		for c := 0; c < nx; c++ {
			g.z[r*nx+c] = s.Evaluate(r3.Vec{X: g.X(c), Y: y, Z: g.Y(r)})
		}
	}
	return g
}

func (g *sdfGrid) Dims() (c, r int)   { return g.nx, g.nz }
func (g *sdfGrid) Z(c, r int) float64 { return g.z[r*g.nx+c] }
func (g *sdfGrid) X(c int) float64    { return g.min.X + float64(c)*g.step.X }
func (g *sdfGrid) Y(r int) float64    { return g.min.Z + float64(r)*g.step.Z }

// SlicePlot builds a heat map of s on the XZ plane at cfg.Y.
func SlicePlot(s sdf.SDF3, cfg Slice) (*plot.Plot, error) {
	if cfg.Nx < 2 || cfg.Nz < 2 {
		return nil, fmt.Errorf("slice needs at least 2x2 samples, got %dx%d", cfg.Nx, cfg.Nz)
	}
	bb := s.Bounds()
	if cfg.Y < bb.Min.Y || cfg.Y > bb.Max.Y || math.IsNaN(cfg.Y) {
		return nil, fmt.Errorf("slice y=%g outside bounds [%g, %g]", cfg.Y, bb.Min.Y, bb.Max.Y)
	}
	if bb.Max.X <= bb.Min.X || bb.Max.Z <= bb.Min.Z {
		return nil, errors.New("slice bounds are degenerate")
	}
	g := newSDFGrid(s, cfg.Y, cfg.Nx, cfg.Nz)

	p := plot.New()
	p.Title.Text = cfg.Title
	p.X.Label.Text = "x"
	p.Y.Label.Text = "z"
	p.Add(plotter.NewHeatMap(g, palette.Heat(32, 1)))
	return p, nil
}

// SlicePNG writes the slice plot of s to path. The image format follows the
// file extension.
func SlicePNG(s sdf.SDF3, cfg Slice, path string) error {
	p, err := SlicePlot(s, cfg)
	if err != nil {
		return err
	}
	return p.Save(cfg.Width, cfg.Height, path)
}
