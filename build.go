package coinmesh

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/soypat/coinmesh/cad"
	"github.com/soypat/coinmesh/config"
	"github.com/soypat/coinmesh/internal/logger"
	"github.com/soypat/coinmesh/render"
	"github.com/soypat/coinmesh/sdf"
	"gonum.org/v1/gonum/spatial/r3"
)

// Physical group tags written to the output.
const (
	TagFluid  = 1
	TagOutlet = 2
	TagCoin   = 3
	TagInlet  = 4
	TagPlate  = 5

	// TagCoinOnly is the coin group of a coin-only run.
	TagCoinOnly = 5
)

// Result describes a finished run.
type Result struct {
	Pose   Pose
	Groups Groups
	// Faces is the boundary of the fluid volume, or of the coin for
	// coin-only runs.
	Faces []cad.Face
	// Triangles counts output triangles per group name.
	Triangles map[string]int
	Cells     int
	// Refine is the refinement factor of the coin region, 1 when the
	// body was sampled uniformly.
	Refine int
	Output string
	// Fluid is the signed distance function of the meshed body.
	Fluid sdf.SDF3
}

// PlacementFromCase returns the coin placement of a case.
func PlacementFromCase(c config.Case) Placement {
	return Placement{X: c.Coin.X, Y: c.Coin.Y, Z: c.Coin.Z, Phi: c.Coin.Phi, R: c.Coin.R, T: c.Coin.T}
}

// ClassifierFromCase returns the face classifier of a case.
func ClassifierFromCase(c config.Case) Classifier {
	in, pl := c.Tagging.InletNormal, c.Tagging.PlateNormal
	return Classifier{
		InletNormal: r3.Vec{X: in[0], Y: in[1], Z: in[2]},
		PlateNormal: r3.Vec{X: pl[0], Y: pl[1], Z: pl[2]},
		Tolerance:   c.Tagging.Tolerance,
	}
}

type pipeline struct {
	ctx context.Context
	log *slog.Logger
	// current is the running or last started stage.
	current string
}

// stage runs fn after checking for cancellation. Errors that are not
// already an *Error are classified as i/o or kernel failures.
func (p *pipeline) stage(name string, fn func() error) error {
	p.current = name
	if err := p.ctx.Err(); err != nil {
		return &Error{Op: name, Kind: KindCanceled, Err: err}
	}
	p.log.Debug("stage.start", "stage", name)
	start := time.Now()
	if err := fn(); err != nil {
		err = stageError(name, err)
		p.log.Error("stage.failed", "stage", name, "err", err)
		return err
	}
	p.log.Info("stage.done", "stage", name, "elapsed", time.Since(start))
	return nil
}

func stageError(stage string, err error) error {
	var e *Error
	if errors.As(err, &e) {
		switch e.Op {
		case "":
			e.Op = stage
		case stage:
		default:
			e.Op = stage + "/" + e.Op
		}
		return err
	}
	var perr *fs.PathError
	if errors.As(err, &perr) {
		return &Error{Op: stage, Kind: KindIO, Path: perr.Path, Err: err}
	}
	return &Error{Op: stage, Kind: KindKernel, Err: err}
}

// session runs fn in a kernel session named after the case. The session
// is closed on every return path and a panic inside fn is reported as a
// kernel failure of the stage that was running.
func (p *pipeline) session(c config.Case, fn func(*cad.Session) error) error {
	name := c.Title
	if name == "" {
		name = "coinmesh"
	}
	p.current = "session"
	err := cad.Run(name, func(s *cad.Session) error {
		p.log.Debug("session.open", "name", s.Name())
		return fn(s)
	}, cad.WithLogger(p.log), cad.WithMaxCells(c.Mesh.MaxCells))
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	err = stageError(p.current, err)
	p.log.Error("stage.failed", "stage", p.current, "err", err)
	return err
}

func (p *pipeline) placeCoin(s *cad.Session, c config.Case, pose Pose) (cad.BodyID, error) {
	var coin cad.BodyID
	err := p.stage("coin", func() (err error) {
		// canonical pose: axis along z, centered at the origin.
		coin, err = s.AddCylinder(r3.Vec{Z: -c.Coin.T / 2}, r3.Vec{Z: c.Coin.T}, c.Coin.R)
		if err != nil {
			return err
		}
		if pose.Angle != 0 {
			if err = s.Rotate(coin, r3.Vec{}, pose.Axis, pose.Angle); err != nil {
				return err
			}
		}
		if err = s.Translate(coin, pose.Translation); err != nil {
			return err
		}
		bb, err := s.BoundingBox(coin)
		if err == nil {
			p.log.Debug("coin.placed", "body", coin, "min", bb.Min, "max", bb.Max)
		}
		return err
	})
	return coin, err
}

// export writes the session mesh to path and reads it back, checking that
// every one of the want triangles made it to disk.
func (p *pipeline) export(s *cad.Session, path string, format cad.Format, want int) error {
	return p.stage("export", func() error {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
		}
		if err := s.Write(path, format); err != nil {
			return err
		}
		got, err := countTriangles(path, format)
		if err != nil {
			return err
		}
		if got != want {
			return &Error{Kind: KindIO, Path: path,
				Err: fmt.Errorf("%s holds %d triangles, want %d", format, got, want)}
		}
		p.log.Debug("export.verified", "path", path, "format", format, "triangles", got)
		return nil
	})
}

func countTriangles(path string, format cad.Format) (n int, err error) {
	fp, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer fp.Close()
	switch format {
	case cad.FormatSTLGroups:
		solids, err := render.ReadSTLSolids(fp)
		if err != nil {
			return 0, &Error{Kind: KindIO, Path: path, Err: err}
		}
		for _, sol := range solids {
			n += len(sol.Triangles)
		}
	case cad.FormatSTLBinary:
		tris, err := render.ReadSTL(fp)
		// float32 rounding of tiny triangles is expected.
		if err != nil && !errors.Is(err, render.ErrDegenerate) && !errors.Is(err, render.ErrNormalMismatch) {
			return 0, &Error{Kind: KindIO, Path: path, Err: err}
		}
		n = len(tris)
	case cad.FormatMSH:
		_, groups, err := render.ReadMSH(fp)
		if err != nil {
			return 0, &Error{Kind: KindIO, Path: path, Err: err}
		}
		for _, g := range groups {
			n += len(g.Triangles)
		}
	}
	return n, nil
}

func validateCase(c config.Case) (Pose, error) {
	pl := PlacementFromCase(c)
	if err := pl.Validate(); err != nil {
		return Pose{}, err
	}
	if err := c.Validate(); err != nil {
		return Pose{}, &Error{Op: "placement", Kind: KindGeometry, Err: err}
	}
	return ComputePose(pl), nil
}

// Build runs the full procedure: place the coin, subtract it from the
// domain box, tag the fluid boundary, mesh it and write c.Output.Path.
// A nil log selects the process logger.
func Build(ctx context.Context, c config.Case, log *slog.Logger) (*Result, error) {
	if log == nil {
		log = logger.L()
	}
	p := &pipeline{ctx: ctx, log: log}
	res := &Result{Output: c.Output.Path}
	err := p.stage("placement", func() (err error) {
		res.Pose, err = validateCase(c)
		return err
	})
	if err != nil {
		return nil, err
	}
	// checked by Case.Validate.
	format, _ := cad.ParseFormat(c.Output.Format)
	log.Info("coin.pose", "axis", res.Pose.Axis, "degrees", sdf.RtoD(res.Pose.Angle), "translation", res.Pose.Translation)

	err = p.session(c, func(s *cad.Session) error {
		coin, err := p.placeCoin(s, c, res.Pose)
		if err != nil {
			return err
		}
		var box cad.BodyID
		err = p.stage("domain", func() (err error) {
			d := c.Domain
			box, err = s.AddBox(r3.Vec{X: -d.Lx / 2, Y: -d.Ly / 2}, r3.Vec{X: d.Lx, Y: d.Ly, Z: d.Lz})
			return err
		})
		if err != nil {
			return err
		}
		var fluid cad.BodyID
		err = p.stage("cut", func() (err error) {
			fluid, err = s.Cut(box, coin)
			if err == nil {
				log.Debug("cut.bodies", "fluid", fluid, "bodies", s.Bodies())
			}
			return err
		})
		if err != nil {
			return err
		}

		err = p.stage("tagging", func() error {
			faces, err := s.Boundary(fluid)
			if err != nil {
				return err
			}
			res.Faces = faces
			all := NewFaceSet()
			for _, f := range faces {
				all[f.ID] = struct{}{}
			}
			coinFaces, inlet, plate, err := ClassifierFromCase(c).Classify(faces, coin)
			if err != nil {
				return err
			}
			res.Groups, err = PartitionBoundaryFaces(all, coinFaces, inlet, plate)
			if err != nil {
				return err
			}
			log.Info("boundary.groups", "coin", res.Groups.Coin, "inlet", res.Groups.Inlet,
				"plate", res.Groups.Plate, "outlet", res.Groups.Outlet)
			for _, g := range []struct {
				dim  int
				tags []int
				tag  int
				name string
			}{
				{3, []int{int(fluid)}, TagFluid, "Fluid_Domain"},
				{2, res.Groups.Outlet.Sorted(), TagOutlet, "outlet"},
				{2, res.Groups.Coin.Sorted(), TagCoin, "coin"},
				{2, res.Groups.Inlet.Sorted(), TagInlet, "inlet"},
				{2, res.Groups.Plate.Sorted(), TagPlate, "plate"},
			} {
				if err := s.AddPhysicalGroup(g.dim, g.tags, g.tag, g.name); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}

		var total int
		err = p.stage("mesh", func() error {
			if err := s.SetMeshSize(c.Mesh.DomainSize); err != nil {
				return err
			}
			if err := s.SetFaceMeshSize(res.Groups.Coin.Sorted(), c.Mesh.CoinSize); err != nil {
				return err
			}
			m, err := s.Generate(fluid)
			if err != nil {
				return err
			}
			res.Cells, res.Refine, total = m.Cells, m.Refine, len(m.Triangles)
			res.Triangles = groupCounts(m, map[string]FaceSet{
				"coin": res.Groups.Coin, "inlet": res.Groups.Inlet,
				"plate": res.Groups.Plate, "outlet": res.Groups.Outlet,
			})
			log.Info("mesh.generated", "cells", m.Cells, "refine", m.Refine, "triangles", total)
			res.Fluid, err = s.SDF(fluid)
			return err
		})
		if err != nil {
			return err
		}
		if err = p.export(s, c.Output.Path, format, total); err != nil {
			return err
		}
		if c.Output.MSH != "" && format != cad.FormatMSH {
			return p.export(s, c.Output.MSH, cad.FormatMSH, total)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// BuildCoinOnly meshes the placed coin by itself and writes it to
// c.Output.CoinPath with a single coin group.
func BuildCoinOnly(ctx context.Context, c config.Case, log *slog.Logger) (*Result, error) {
	if log == nil {
		log = logger.L()
	}
	p := &pipeline{ctx: ctx, log: log}
	res := &Result{Output: c.Output.CoinPath}
	err := p.stage("placement", func() (err error) {
		res.Pose, err = validateCase(c)
		if err == nil && c.Output.CoinPath == "" {
			err = &Error{Kind: KindGeometry, Err: errors.New("Output.CoinPath is empty")}
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	err = p.session(c, func(s *cad.Session) error {
		coin, err := p.placeCoin(s, c, res.Pose)
		if err != nil {
			return err
		}
		err = p.stage("tagging", func() error {
			faces, err := s.Boundary(coin)
			if err != nil {
				return err
			}
			res.Faces = faces
			all := NewFaceSet()
			for _, f := range faces {
				all[f.ID] = struct{}{}
			}
			res.Groups = Groups{Coin: all, Inlet: NewFaceSet(), Plate: NewFaceSet(), Outlet: NewFaceSet()}
			return s.AddPhysicalGroup(2, all.Sorted(), TagCoinOnly, "coin")
		})
		if err != nil {
			return err
		}
		var total int
		err = p.stage("mesh", func() error {
			if err := s.SetMeshSize(c.Mesh.CoinSize); err != nil {
				return err
			}
			m, err := s.Generate(coin)
			if err != nil {
				return err
			}
			res.Cells, res.Refine, total = m.Cells, m.Refine, len(m.Triangles)
			res.Triangles = map[string]int{"coin": total}
			res.Fluid, err = s.SDF(coin)
			return err
		})
		if err != nil {
			return err
		}
		return p.export(s, c.Output.CoinPath, cad.FormatSTLGroups, total)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func groupCounts(m *cad.Mesh, groups map[string]FaceSet) map[string]int {
	counts := make(map[string]int, len(groups))
	perFace := m.Counts()
	for name, set := range groups {
		for id := range set {
			counts[name] += perFace[id]
		}
	}
	return counts
}
