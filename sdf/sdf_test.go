package sdf

import (
	"math"
	"testing"

	"github.com/soypat/coinmesh/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

const tol = 1e-12

func TestBoxEvaluate(t *testing.T) {
	b := MustBox(r3.Vec{X: 2, Y: 4, Z: 6}, 0)
	for _, test := range []struct {
		p    r3.Vec
		want float64
	}{
		{p: r3.Vec{}, want: -1},
		{p: r3.Vec{X: 2}, want: 1},
		{p: r3.Vec{Z: 3}, want: 0},
		{p: r3.Vec{X: 2, Y: 3}, want: math.Sqrt2},
	} {
		if got := b.Evaluate(test.p); math.Abs(got-test.want) > tol {
			t.Errorf("box(%v) = %g, want %g", test.p, got, test.want)
		}
	}
	bb := d3.Box(b.Bounds())
	if !bb.Equals(d3.Box{Min: r3.Vec{X: -1, Y: -2, Z: -3}, Max: r3.Vec{X: 1, Y: 2, Z: 3}}, tol) {
		t.Errorf("unexpected bounds %v", bb)
	}
}

func TestCylinderEvaluate(t *testing.T) {
	c := MustCylinder(2, 1, 0)
	for _, test := range []struct {
		p    r3.Vec
		want float64
	}{
		{p: r3.Vec{}, want: -1},
		{p: r3.Vec{X: 3}, want: 2},
		{p: r3.Vec{Z: 2}, want: 1},
		{p: r3.Vec{X: 0.6, Y: 0.8}, want: 0},
	} {
		if got := c.Evaluate(test.p); math.Abs(got-test.want) > tol {
			t.Errorf("cylinder(%v) = %g, want %g", test.p, got, test.want)
		}
	}
}

func TestPrimitiveErrors(t *testing.T) {
	if _, err := Box(r3.Vec{X: -1, Y: 1, Z: 1}, 0); err == nil {
		t.Error("expected error for negative box size")
	}
	if _, err := Box(r3.Vec{X: 1, Y: 1, Z: 1}, 0.6); err == nil {
		t.Error("expected error for round larger than half size")
	}
	if _, err := Cylinder(1, 0, 0); err == nil {
		t.Error("expected error for zero radius")
	}
	if _, err := Cylinder(math.NaN(), 1, 0); err == nil {
		t.Error("expected error for NaN height")
	}
	if _, err := Cylinder(0.002, 0.01, 0); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestDifference(t *testing.T) {
	b := MustBox(r3.Vec{X: 2, Y: 2, Z: 2}, 0)
	c := MustCylinder(4, 0.5, 0)
	d := Difference3D(b, c)
	if got := d.Evaluate(r3.Vec{}); math.Abs(got-0.5) > tol {
		t.Errorf("point in hole: got %g want 0.5", got)
	}
	if got := d.Evaluate(r3.Vec{X: 0.75}); got >= 0 {
		t.Errorf("point in material should be inside, got %g", got)
	}
	if d.Bounds() != b.Bounds() {
		t.Error("difference bounds should be the object's bounds")
	}
}

func TestRotateToVec(t *testing.T) {
	vecs := []r3.Vec{{X: 1}, {Y: 1}, {Z: 1}, {Z: -1}, {X: 1, Y: -2, Z: 3}, {X: -0.3, Z: -1}}
	for _, a := range vecs {
		for _, b := range vecs {
			m := RotateToVec(a, b)
			got := m.MulDirection(r3.Unit(a))
			if !d3.EqualWithin(got, r3.Unit(b), 1e-9) {
				t.Errorf("RotateToVec(%v, %v) maps a to %v", a, b, got)
			}
		}
	}
}

func TestRotateAbout3D(t *testing.T) {
	center := r3.Vec{X: 1, Y: 1}
	m := RotateAbout3D(center, r3.Vec{Z: 1}, math.Pi/2)
	if got := m.MulPosition(center); !d3.EqualWithin(got, center, tol) {
		t.Errorf("center moved to %v", got)
	}
	if got := m.MulPosition(r3.Vec{X: 2, Y: 1}); !d3.EqualWithin(got, r3.Vec{X: 1, Y: 2}, tol) {
		t.Errorf("got %v", got)
	}
}

func TestTransformCollapse(t *testing.T) {
	c := MustCylinder(0.002, 0.01, 0)
	rot := Rotate3D(r3.Vec{Y: 1}, math.Pi/6)
	tr := Translate3D(r3.Vec{X: 0.1, Z: 0.0045})
	nested := Transform3D(Transform3D(c, rot), tr)
	single := Transform3D(c, tr.Mul(rot))
	if _, ok := nested.(*transform3).sdf.(*transform3); ok {
		t.Error("nested transform was not collapsed")
	}
	for _, p := range []r3.Vec{{X: 0.1, Z: 0.0045}, {X: 0.11}, {Y: 0.2}} {
		if a, b := nested.Evaluate(p), single.Evaluate(p); math.Abs(a-b) > tol {
			t.Errorf("nested %g != single %g at %v", a, b, p)
		}
	}
	if got := single.Evaluate(r3.Vec{X: 0.1, Z: 0.0045}); math.Abs(got+0.001) > tol {
		t.Errorf("coin center distance %g want -0.001", got)
	}
}

