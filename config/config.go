// Package config holds the parameters of a coin-in-box meshing case.
package config

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/ghodss/yaml"
	"github.com/soypat/coinmesh/sdf"
)

// Case parameters obtained from the YAML case file
type Case struct {
	Title   string  `json:"Title"`
	Coin    Coin    `json:"Coin"`
	Domain  Domain  `json:"Domain"`
	Mesh    Mesh    `json:"Mesh"`
	Tagging Tagging `json:"Tagging"`
	Output  Output  `json:"Output"`
}

// Coin is the pose and size of the cylinder. A nil Z selects the
// default resting height.
type Coin struct {
	X   float64  `json:"X"`
	Y   float64  `json:"Y"`
	Z   *float64 `json:"Z,omitempty"`
	Phi float64  `json:"Phi"` // radians
	R   float64  `json:"R"`
	T   float64  `json:"T"`
}

// Domain is the size of the flow box. The box spans [-Lx/2,Lx/2] x
// [-Ly/2,Ly/2] x [0,Lz].
type Domain struct {
	Lx float64 `json:"Lx"`
	Ly float64 `json:"Ly"`
	Lz float64 `json:"Lz"`
}

// Mesh holds target element sizes.
type Mesh struct {
	DomainSize float64 `json:"DomainSize"`
	CoinSize   float64 `json:"CoinSize"`
	// MaxCells caps sampling cells along the longest axis, 0 is uncapped.
	MaxCells int `json:"MaxCells"`
}

// Tagging configures the geometric classification of boundary faces.
type Tagging struct {
	InletNormal [3]float64 `json:"InletNormal"`
	PlateNormal [3]float64 `json:"PlateNormal"`
	Tolerance   float64    `json:"Tolerance"`
}

// Output selects what is written and where.
type Output struct {
	Path     string `json:"Path"`
	Format   string `json:"Format"` // stl, binary or msh
	CoinPath string `json:"CoinPath"`
	MSH      string `json:"MSH,omitempty"`
	Preview  string `json:"Preview,omitempty"`
	Slice    string `json:"Slice,omitempty"`
}

// Default returns the reference case: a 0.3 m cube with a 30 degree
// tilted coin resting on the plate.
func Default() Case {
	return Case{
		Title: "Tilted_Coin_3D",
		Coin: Coin{
			Phi: sdf.DtoR(30),
			R:   0.01,
			T:   0.002,
		},
		Domain: Domain{Lx: 0.3, Ly: 0.3, Lz: 0.3},
		Mesh: Mesh{
			DomainSize: 0.006,
			CoinSize:   0.001,
			MaxCells:   200,
		},
		Tagging: Tagging{
			InletNormal: [3]float64{-1, 0, 0},
			PlateNormal: [3]float64{0, 0, -1},
			Tolerance:   1e-6,
		},
		Output: Output{
			Path:     "constant/triSurface/output.stl",
			Format:   "stl",
			CoinPath: "constant/triSurface/coin.stl",
		},
	}
}

// Parse unmarshals YAML data over the receiver so fields absent from
// data keep their current value.
func (c *Case) Parse(data []byte) error {
	return yaml.Unmarshal(data, c)
}

// Load reads and parses a case file on top of Default.
func Load(path string) (Case, error) {
	c := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err = c.Parse(data); err != nil {
		return c, fmt.Errorf("parsing %s: %w", path, err)
	}
	return c, nil
}

// Marshal returns the case as YAML.
func (c *Case) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// Print writes a human readable summary of the case.
func (c *Case) Print(w io.Writer) {
	z := "default"
	if c.Coin.Z != nil {
		z = fmt.Sprintf("%8.5f", *c.Coin.Z)
	}
	fmt.Fprintf(w, "\"%s\"\t\t= Title\n", c.Title)
	fmt.Fprintf(w, "(%g, %g, %s)\t= Coin position\n", c.Coin.X, c.Coin.Y, z)
	fmt.Fprintf(w, "%8.5f\t\t= Coin tilt [rad]\n", c.Coin.Phi)
	fmt.Fprintf(w, "%8.5f\t\t= Coin radius\n", c.Coin.R)
	fmt.Fprintf(w, "%8.5f\t\t= Coin thickness\n", c.Coin.T)
	fmt.Fprintf(w, "[%g %g %g]\t= Domain size\n", c.Domain.Lx, c.Domain.Ly, c.Domain.Lz)
	fmt.Fprintf(w, "%8.5f\t\t= Domain mesh size\n", c.Mesh.DomainSize)
	fmt.Fprintf(w, "%8.5f\t\t= Coin mesh size\n", c.Mesh.CoinSize)
	fmt.Fprintf(w, "[%s]\t= Output (%s)\n", c.Output.Path, c.Output.Format)
}

// Validate checks the parameters the coin placement does not cover.
func (c *Case) Validate() error {
	var errs []error
	positive := func(name string, v float64) {
		if !(v > 0) || math.IsInf(v, 0) {
			errs = append(errs, fmt.Errorf("%s must be positive and finite, got %g", name, v))
		}
	}
	positive("Domain.Lx", c.Domain.Lx)
	positive("Domain.Ly", c.Domain.Ly)
	positive("Domain.Lz", c.Domain.Lz)
	positive("Mesh.DomainSize", c.Mesh.DomainSize)
	positive("Mesh.CoinSize", c.Mesh.CoinSize)
	if c.Mesh.MaxCells < 0 {
		errs = append(errs, fmt.Errorf("Mesh.MaxCells must not be negative, got %d", c.Mesh.MaxCells))
	}
	if c.Tagging.InletNormal == ([3]float64{}) || c.Tagging.PlateNormal == ([3]float64{}) {
		errs = append(errs, errors.New("tagging normals must be non-zero"))
	}
	if c.Tagging.InletNormal == c.Tagging.PlateNormal {
		errs = append(errs, errors.New("inlet and plate normals must differ"))
	}
	if !(c.Tagging.Tolerance > 0) || c.Tagging.Tolerance >= 1 {
		errs = append(errs, fmt.Errorf("Tagging.Tolerance must be in (0,1), got %g", c.Tagging.Tolerance))
	}
	if c.Output.Path == "" {
		errs = append(errs, errors.New("Output.Path is empty"))
	}
	switch c.Output.Format {
	case "stl", "binary", "msh":
	default:
		errs = append(errs, fmt.Errorf("unknown Output.Format %q", c.Output.Format))
	}
	return errors.Join(errs...)
}
