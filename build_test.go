package coinmesh

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/soypat/coinmesh/cad"
	"github.com/soypat/coinmesh/config"
	"github.com/soypat/coinmesh/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

// testCase is the reference case with a coin large enough to be resolved
// on a coarse grid.
func testCase(t *testing.T) config.Case {
	t.Helper()
	c := config.Default()
	c.Coin.R = 0.05
	c.Coin.T = 0.02
	c.Mesh.DomainSize = 0.02
	c.Mesh.CoinSize = 0.005
	c.Mesh.MaxCells = 64
	dir := t.TempDir()
	c.Output.Path = filepath.Join(dir, "constant", "triSurface", "output.stl")
	c.Output.CoinPath = filepath.Join(dir, "constant", "triSurface", "coin.stl")
	return c
}

func readSolids(t *testing.T, path string) []render.Solid {
	t.Helper()
	fp, err := os.Open(path)
	require.NoError(t, err)
	defer fp.Close()
	solids, err := render.ReadSTLSolids(fp)
	require.NoError(t, err)
	return solids
}

func TestBuild(t *testing.T) {
	c := testCase(t)
	c.Output.MSH = filepath.Join(filepath.Dir(c.Output.Path), "output.msh")
	var logs bytes.Buffer
	log := slog.New(slog.NewTextHandler(&logs, nil))

	res, err := Build(context.Background(), c, log)
	require.NoError(t, err)

	assert.InDelta(t, 0.05*0.5-0.02/4, res.Pose.Translation.Z, 1e-12)
	all := NewFaceSet()
	for _, f := range res.Faces {
		all[f.ID] = struct{}{}
	}
	assert.True(t, res.Groups.All().Equal(all), "groups must cover the boundary")
	assert.Equal(t, 3, res.Groups.Coin.Len())
	assert.Equal(t, 1, res.Groups.Inlet.Len())
	assert.Equal(t, 1, res.Groups.Plate.Len())
	assert.Equal(t, 4, res.Groups.Outlet.Len())
	for _, name := range []string{"coin", "inlet", "plate", "outlet"} {
		assert.Positive(t, res.Triangles[name], "group %s has no triangles", name)
	}
	require.NotNil(t, res.Fluid)
	assert.Positive(t, res.Fluid.Evaluate(res.Pose.Translation), "coin center must be outside the fluid")
	assert.Negative(t, res.Fluid.Evaluate(r3.Vec{X: 0.1, Z: 0.15}))

	solids := readSolids(t, c.Output.Path)
	var names []string
	for _, s := range solids {
		names = append(names, s.Name)
		assert.Equal(t, res.Triangles[s.Name], len(s.Triangles), s.Name)
	}
	assert.Equal(t, []string{"outlet", "coin", "inlet", "plate"}, names)
	// edge chamfers and the coin crease are the only plate triangles off z=0.
	flat := 0
	for _, tri := range solids[3].Triangles {
		if math.Abs(tri.Centroid().Z) < 1e-9 {
			flat++
		}
	}
	assert.Greater(t, float64(flat), 0.8*float64(len(solids[3].Triangles)))

	fp, err := os.Open(c.Output.MSH)
	require.NoError(t, err)
	defer fp.Close()
	pnames, _, err := render.ReadMSH(fp)
	require.NoError(t, err)
	require.Len(t, pnames, 5)
	assert.Equal(t, render.PhysicalName{Dim: 3, Tag: TagFluid, Name: "Fluid_Domain"}, pnames[4])

	for _, stage := range []string{"placement", "coin", "domain", "cut", "tagging", "mesh", "export"} {
		assert.Contains(t, logs.String(), "stage="+stage)
	}
}

func TestBuildCoinOnly(t *testing.T) {
	c := testCase(t)
	res, err := BuildCoinOnly(context.Background(), c, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Groups.Coin.Len())
	solids := readSolids(t, c.Output.CoinPath)
	require.Len(t, solids, 1)
	assert.Equal(t, "coin", solids[0].Name)
	assert.NotEmpty(t, solids[0].Triangles)
	_, err = os.Stat(c.Output.Path)
	assert.ErrorIs(t, err, os.ErrNotExist, "coin-only run must not write the domain")
}

func TestBuildInvalidGeometry(t *testing.T) {
	c := testCase(t)
	c.Coin.R = 0
	_, err := Build(context.Background(), c, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGeometry)
	var e *Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, "placement", e.Op)
	_, serr := os.Stat(c.Output.Path)
	assert.ErrorIs(t, serr, os.ErrNotExist)

	c = testCase(t)
	c.Domain.Lx = -1
	_, err = Build(context.Background(), c, nil)
	assert.True(t, IsKind(err, KindGeometry))
}

func TestBuildCoinOutsideDomain(t *testing.T) {
	c := testCase(t)
	c.Coin.X = 10
	_, err := Build(context.Background(), c, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPartition)
	var e *Error
	require.True(t, errors.As(err, &e))
	assert.True(t, strings.HasPrefix(e.Op, "tagging"), "op %q", e.Op)
}

func TestBuildCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := testCase(t)
	_, err := Build(ctx, c, nil)
	assert.ErrorIs(t, err, ErrCanceled)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuildWriteFailure(t *testing.T) {
	c := testCase(t)
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))
	c.Output.Path = filepath.Join(blocker, "output.stl")
	_, err := Build(context.Background(), c, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIO)
	var e *Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, "export", e.Op)
}

func TestSessionPanicIsKernelError(t *testing.T) {
	p := &pipeline{ctx: context.Background(), log: slog.New(slog.NewTextHandler(io.Discard, nil))}
	var sess *cad.Session
	err := p.session(testCase(t), func(s *cad.Session) error {
		sess = s
		return p.stage("mesh", func() error { panic("boom") })
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrKernel)
	var e *Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, "mesh", e.Op)
	assert.Contains(t, err.Error(), "boom")
	_, err = sess.AddBox(r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1})
	assert.ErrorIs(t, err, cad.ErrClosed, "session must be closed after a panic")
}

func TestExportCountMismatch(t *testing.T) {
	c := testCase(t)
	p := &pipeline{ctx: context.Background(), log: slog.New(slog.NewTextHandler(io.Discard, nil))}
	err := p.session(c, func(s *cad.Session) error {
		box, err := s.AddBox(r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1})
		require.NoError(t, err)
		faces, err := s.Boundary(box)
		require.NoError(t, err)
		ids := make([]int, len(faces))
		for i, f := range faces {
			ids[i] = f.ID
		}
		require.NoError(t, s.AddPhysicalGroup(2, ids, 1, "walls"))
		require.NoError(t, s.SetMeshSize(0.25))
		m, err := s.Generate(box)
		require.NoError(t, err)
		require.NoError(t, p.export(s, c.Output.Path, cad.FormatSTLBinary, len(m.Triangles)))
		return p.export(s, c.Output.Path, cad.FormatSTLGroups, len(m.Triangles)+1)
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIO)
	var e *Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, "export", e.Op)
	assert.Equal(t, c.Output.Path, e.Path)
}

func TestBuildDefaultTriangleBudget(t *testing.T) {
	const budget = 200_000
	c := config.Default()
	dir := t.TempDir()
	c.Output.Path = filepath.Join(dir, "output.stl")
	c.Output.CoinPath = filepath.Join(dir, "coin.stl")
	res, err := Build(context.Background(), c, nil)
	require.NoError(t, err)
	total := 0
	for _, n := range res.Triangles {
		total += n
	}
	assert.Less(t, total, budget, "walls must be sampled at the domain mesh size")
	assert.Greater(t, res.Refine, 1, "coin must be refined")
	// the coin surface is about 7.5e-4 m², at least one triangle per coin size square.
	assert.Greater(t, res.Triangles["coin"], 750)
	for _, name := range []string{"inlet", "plate", "outlet"} {
		assert.Positive(t, res.Triangles[name], name)
	}
}
