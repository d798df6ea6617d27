package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/pkg/profile"
	"github.com/soypat/coinmesh"
	"github.com/soypat/coinmesh/config"
	"github.com/soypat/coinmesh/internal/logger"
	"github.com/soypat/coinmesh/preview"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// newRootCmd returns the command line. runFn receives the viper instance
// bound to the command's flags and COINMESH_* environment variables.
func newRootCmd(runFn func(*cobra.Command, *viper.Viper) error) *cobra.Command {
	v := viper.New()
	cmd := &cobra.Command{
		Use:   "coinmesh",
		Short: "Mesh a flow box around a tilted coin",
		Long: `
Places a cylinder ("coin") of radius R and thickness t, tilted by phi about
the y axis, inside a flow box anchored at z=0, subtracts it from the box and
tags the fluid boundary as coin, inlet, plate and outlet. The tagged surface
is written as an STL with one solid per patch, or as a Gmsh 2.2 file.

When --z is not given the coin rests at z = R*sin(|phi|) - t/4.

coinmesh --phi 0.5236 --R 0.01 --t 0.002 -o constant/triSurface/output.stl`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFn(cmd, v)
		},
	}
	def := config.Default()
	f := cmd.Flags()
	f.Float64("x", def.Coin.X, "coin center x")
	f.Float64("y", def.Coin.Y, "coin center y")
	f.Float64("z", 0, "coin center z (default R*sin(|phi|) - t/4)")
	f.Float64("phi", def.Coin.Phi, "coin tilt about the y axis in radians")
	f.Float64("R", def.Coin.R, "coin radius")
	f.Float64("t", def.Coin.T, "coin thickness")
	f.StringP("config", "c", "", "YAML case file, flags override its values")
	f.StringP("output", "o", "", "output file (default "+def.Output.Path+", coin-only "+def.Output.CoinPath+")")
	f.String("format", "", "output format: stl, binary or msh")
	f.String("msh", "", "also write a Gmsh 2.2 file to this path")
	f.Bool("coin-only", false, "mesh the placed coin alone")
	f.String("preview", "", "render the output STL to this PNG")
	f.String("slice", "", "plot the signed distance on the XZ plane through the coin to this PNG")
	f.Int("cells", 0, "maximum sampling cells along the longest axis")
	f.Bool("print", false, "print the resolved case and exit")
	f.Bool("debug", false, "debug logging")
	f.String("profile", "", "write a CPU profile to this directory")

	v.BindPFlags(f)
	v.SetEnvPrefix("COINMESH")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return cmd
}

func run(cmd *cobra.Command, v *viper.Viper) error {
	if dir := v.GetString("profile"); dir != "" {
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(dir), profile.NoShutdownHook).Stop()
	}
	log := logger.Setup(logger.Config{Writer: cmd.ErrOrStderr(), Debug: v.GetBool("debug")})
	c, err := caseFromFlags(v)
	if err != nil {
		return err
	}
	if v.GetBool("print") {
		c.Print(cmd.OutOrStdout())
		return nil
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var res *coinmesh.Result
	if v.GetBool("coin-only") {
		res, err = coinmesh.BuildCoinOnly(ctx, c, log)
	} else {
		res, err = coinmesh.Build(ctx, c, log)
	}
	if err != nil {
		return err
	}
	summary(cmd.OutOrStdout(), res)
	return previews(c, res, v.GetBool("coin-only"), log)
}

// caseFromFlags loads the case file, if any, and applies the flags and
// COINMESH_* variables that were set.
func caseFromFlags(v *viper.Viper) (config.Case, error) {
	c := config.Default()
	if path := v.GetString("config"); path != "" {
		path, err := homedir.Expand(path)
		if err != nil {
			return c, err
		}
		if c, err = config.Load(path); err != nil {
			return c, err
		}
	}
	for key, dst := range map[string]*float64{
		"x": &c.Coin.X, "y": &c.Coin.Y, "phi": &c.Coin.Phi, "R": &c.Coin.R, "t": &c.Coin.T,
	} {
		if v.IsSet(key) {
			*dst = v.GetFloat64(key)
		}
	}
	if v.IsSet("z") {
		z := v.GetFloat64("z")
		c.Coin.Z = &z
	}
	if v.IsSet("output") {
		if v.GetBool("coin-only") {
			c.Output.CoinPath = v.GetString("output")
		} else {
			c.Output.Path = v.GetString("output")
		}
	}
	for key, dst := range map[string]*string{
		"format": &c.Output.Format, "msh": &c.Output.MSH, "preview": &c.Output.Preview, "slice": &c.Output.Slice,
	} {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}
	if v.IsSet("cells") {
		c.Mesh.MaxCells = v.GetInt("cells")
	}
	for _, p := range []*string{&c.Output.Path, &c.Output.CoinPath, &c.Output.MSH, &c.Output.Preview, &c.Output.Slice} {
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return c, fmt.Errorf("expanding %q: %w", *p, err)
		}
		*p = expanded
	}
	return c, nil
}

func summary(w io.Writer, res *coinmesh.Result) {
	fmt.Fprintf(w, "wrote %s (%d cells along the longest axis)\n", res.Output, res.Cells)
	for _, g := range []struct {
		name string
		set  coinmesh.FaceSet
	}{
		{"coin", res.Groups.Coin}, {"inlet", res.Groups.Inlet},
		{"plate", res.Groups.Plate}, {"outlet", res.Groups.Outlet},
	} {
		if g.set.Len() == 0 {
			continue
		}
		fmt.Fprintf(w, "%-7s faces %-12v triangles %d\n", g.name, g.set, res.Triangles[g.name])
	}
}

func previews(c config.Case, res *coinmesh.Result, coinOnly bool, log *slog.Logger) error {
	var errs []error
	if c.Output.Preview != "" {
		if !coinOnly && c.Output.Format == "msh" {
			log.Warn("preview.skipped", "reason", "output is not an STL", "path", res.Output)
		} else if err := preview.STLToPNG(res.Output, c.Output.Preview, preview.DefaultView()); err != nil {
			errs = append(errs, fmt.Errorf("preview: %w", err))
		} else {
			log.Info("preview.written", "path", c.Output.Preview)
		}
	}
	if c.Output.Slice != "" {
		cfg := preview.DefaultSlice()
		cfg.Y = c.Coin.Y
		cfg.Title = fmt.Sprintf("signed distance, y=%g", cfg.Y)
		if err := preview.SlicePNG(res.Fluid, cfg, c.Output.Slice); err != nil {
			errs = append(errs, fmt.Errorf("slice: %w", err))
		} else {
			log.Info("slice.written", "path", c.Output.Slice)
		}
	}
	return errors.Join(errs...)
}
