package form3_test

import (
	"math"
	"testing"

	"github.com/soypat/carve/eval"
	"github.com/soypat/carve/form3"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestSphere(t *testing.T) {
	s, err := form3.Sphere(0.5)
	if err != nil {
		t.Fatal(err)
	}
	tape := eval.Compile(s)
	ev := eval.NewEvaluator(tape)
	if v := ev.Value(tape, r3.Vec{}); v >= 0 {
		t.Errorf("sphere center value %v, want negative", v)
	}
	if v := ev.Value(tape, r3.Vec{X: 1}); v <= 0 {
		t.Errorf("outside value %v, want positive", v)
	}
	// Surface passes through (0.5, 0, 0).
	if v := ev.Value(tape, r3.Vec{X: 0.5}); math.Abs(v) > 1e-12 {
		t.Errorf("surface value %v, want 0", v)
	}
	if _, err := form3.Sphere(-1); err == nil {
		t.Error("negative radius accepted")
	}
}

func TestSphereAt(t *testing.T) {
	s, err := form3.SphereAt(0.7, r3.Vec{Z: 0.1})
	if err != nil {
		t.Fatal(err)
	}
	tape := eval.Compile(s)
	ev := eval.NewEvaluator(tape)
	if v := ev.Value(tape, r3.Vec{Z: 0.1}); v >= 0 {
		t.Errorf("center value %v, want negative", v)
	}
	if v := ev.Value(tape, r3.Vec{Z: 0.8}); math.Abs(v) > 1e-12 {
		t.Errorf("top surface value %v, want 0", v)
	}
}

func TestBoxes(t *testing.T) {
	b, err := form3.Box(r3.Vec{X: 3, Y: 3, Z: 3})
	if err != nil {
		t.Fatal(err)
	}
	tape := eval.Compile(b)
	ev := eval.NewEvaluator(tape)
	for _, tc := range []struct {
		p      r3.Vec
		inside bool
	}{
		{p: r3.Vec{}, inside: true},
		{p: r3.Vec{X: 1.4, Y: -1.4, Z: 1.4}, inside: true},
		{p: r3.Vec{X: 1.6}, inside: false},
		{p: r3.Vec{X: 2, Y: 2, Z: 2}, inside: false},
	} {
		v := ev.Value(tape, tc.p)
		if (v < 0) != tc.inside {
			t.Errorf("box value at %v = %v, want inside=%v", tc.p, v, tc.inside)
		}
	}
	if _, err := form3.Box(r3.Vec{X: 1, Y: -1, Z: 1}); err == nil {
		t.Error("negative box side accepted")
	}
	if _, err := form3.BoxBetween(r3.Vec{X: 1}, r3.Vec{X: 1, Y: 1, Z: 1}); err == nil {
		t.Error("degenerate box span accepted")
	}
}

func TestCylinder(t *testing.T) {
	c, err := form3.Cylinder(2, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	tape := eval.Compile(c)
	ev := eval.NewEvaluator(tape)
	if v := ev.Value(tape, r3.Vec{}); v >= 0 {
		t.Error("cylinder center not inside")
	}
	if v := ev.Value(tape, r3.Vec{Z: 1.01}); v <= 0 {
		t.Error("above cylinder cap not outside")
	}
	if v := ev.Value(tape, r3.Vec{X: 0.51}); v <= 0 {
		t.Error("outside cylinder wall not outside")
	}
}

func TestGyroid(t *testing.T) {
	g, err := form3.Gyroid(2, 0.2)
	if err != nil {
		t.Fatal(err)
	}
	tape := eval.Compile(g)
	ev := eval.NewEvaluator(tape)
	// The gyroid field is bounded by 3 + thickness in magnitude and
	// periodic with the requested period.
	p := r3.Vec{X: 0.3, Y: -0.7, Z: 1.1}
	v0 := ev.Value(tape, p)
	v1 := ev.Value(tape, r3.Vec{X: p.X + 2, Y: p.Y, Z: p.Z})
	if math.Abs(v0-v1) > 1e-9 {
		t.Errorf("gyroid not periodic: %v vs %v", v0, v1)
	}
	if math.Abs(v0) > 3.2 {
		t.Errorf("gyroid value %v out of range", v0)
	}
	if _, err := form3.Gyroid(0, 0.2); err == nil {
		t.Error("zero period accepted")
	}
}
