// Package preview renders quick images of the generated geometry: a shaded
// view of an STL surface and a signed distance slice of the fluid domain.
package preview

import (
	"errors"
	"fmt"
	"image"

	"github.com/fogleman/fauxgl"
	"github.com/nfnt/resize"
	"gonum.org/v1/gonum/spatial/r3"
)

// View configures the camera of STLToPNG. Coordinates are in model units.
type View struct {
	// Eye is the camera position.
	Eye r3.Vec
	// Center is the point looked at.
	Center r3.Vec
	// Up is the camera's up direction.
	Up r3.Vec
	// Fovy is the vertical field of view in degrees.
	Fovy      float64
	Near, Far float64
	// Width and Height are the output image size in pixels.
	Width, Height int
	// Scale is the supersampling factor used for antialiasing.
	Scale int
}

// DefaultView looks at the coin along +y from just upstream of the
// plate, showing the XZ plane with z up.
func DefaultView() View {
	return View{
		Eye:    r3.Vec{Y: -0.09, Z: 0.01},
		Center: r3.Vec{Z: 0.01},
		Up:     r3.Vec{Z: 1},
		Fovy:   30,
		Near:   0.001,
		Far:    1,
		Width:  600,
		Height: 400,
		Scale:  2,
	}
}

func (v View) validate() error {
	switch {
	case v.Width <= 0 || v.Height <= 0:
		return fmt.Errorf("invalid image size %dx%d", v.Width, v.Height)
	case v.Scale <= 0:
		return fmt.Errorf("invalid supersampling scale %d", v.Scale)
	case v.Near <= 0 || v.Far <= v.Near:
		return fmt.Errorf("invalid clip planes near=%g far=%g", v.Near, v.Far)
	case r3.Norm(r3.Sub(v.Eye, v.Center)) == 0:
		return errors.New("eye and center coincide")
	}
	return nil
}

// STLToPNG renders the STL file at stlPath with Phong shading and writes
// the image to pngPath. Both ASCII and binary files are accepted.
func STLToPNG(stlPath, pngPath string, view View) error {
	if err := view.validate(); err != nil {
		return err
	}
	mesh, err := fauxgl.LoadSTL(stlPath)
	if err != nil {
		return err
	}
	if len(mesh.Triangles) == 0 {
		return errors.New("no triangles to render")
	}
	return fauxgl.SavePNG(pngPath, Render(mesh, view))
}

// Render draws mesh as seen from view and returns the downsampled image.
func Render(mesh *fauxgl.Mesh, view View) image.Image {
	var (
		eye    = fv(view.Eye)
		center = fv(view.Center)
		up     = fv(view.Up)
		light  = fauxgl.V(-0.75, -1, 0.25).Normalize() // light direction
		color  = fauxgl.HexColor("#468966")             // object color
	)
	w, h := view.Width*view.Scale, view.Height*view.Scale
	context := fauxgl.NewContext(w, h)
	context.ClearColorBufferWith(fauxgl.HexColor("#FFF8E3"))
	aspect := float64(view.Width) / float64(view.Height)
	matrix := fauxgl.LookAt(eye, center, up).Perspective(view.Fovy, aspect, view.Near, view.Far)
	shader := fauxgl.NewPhongShader(matrix, light, eye)
	shader.ObjectColor = color
	context.Shader = shader
	context.DrawMesh(mesh)
	// downsample image for antialiasing
	return resize.Resize(uint(view.Width), uint(view.Height), context.Image(), resize.Bilinear)
}

func fv(v r3.Vec) fauxgl.Vector { return fauxgl.V(v.X, v.Y, v.Z) }
