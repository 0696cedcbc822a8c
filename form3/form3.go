// Package form3 provides implicit solids expressed as carve field
// expressions. Shapes follow the signed distance convention: negative
// inside, positive outside.
package form3

import (
	"math"

	"github.com/soypat/carve"
	"gonum.org/v1/gonum/spatial/r3"
)

// Sphere returns the field r² distance form of a sphere centered at
// the origin: x² + y² + z² - radius².
func Sphere(radius float64) (carve.Expr, error) {
	return SphereAt(radius, r3.Vec{})
}

// SphereAt returns a sphere centered at center.
func SphereAt(radius float64, center r3.Vec) (carve.Expr, error) {
	if radius <= 0 {
		return carve.Expr{}, ErrMsg("sphere radius must be positive")
	}
	x := carve.X().SubConst(center.X)
	y := carve.Y().SubConst(center.Y)
	z := carve.Z().SubConst(center.Z)
	rr := x.Square().Add(y.Square()).Add(z.Square())
	return rr.SubConst(radius * radius), nil
}

// Box returns an axis-aligned box of the given size centered at the
// origin.
func Box(size r3.Vec) (carve.Expr, error) {
	if size.X <= 0 || size.Y <= 0 || size.Z <= 0 {
		return carve.Expr{}, ErrMsg("box sides must be positive")
	}
	h := r3.Scale(0.5, size)
	return BoxBetween(r3.Scale(-1, h), h)
}

// BoxBetween returns the axis-aligned box spanning [min, max] as the
// intersection of six half-spaces.
func BoxBetween(min, max r3.Vec) (carve.Expr, error) {
	if min.X >= max.X || min.Y >= max.Y || min.Z >= max.Z {
		return carve.Expr{}, ErrMsg("box min must be below max on every axis")
	}
	return carve.Intersect(
		slab(carve.X(), min.X, max.X),
		slab(carve.Y(), min.Y, max.Y),
		slab(carve.Z(), min.Z, max.Z),
	), nil
}

// slab bounds one coordinate to [lo, hi].
func slab(v carve.Expr, lo, hi float64) carve.Expr {
	return carve.Const(lo).Sub(v).Max(v.SubConst(hi))
}

// Cylinder returns a z-aligned cylinder centered at the origin.
func Cylinder(height, radius float64) (carve.Expr, error) {
	if height <= 0 || radius <= 0 {
		return carve.Expr{}, ErrMsg("cylinder dimensions must be positive")
	}
	rr := carve.X().Square().Add(carve.Y().Square()).Sqrt().SubConst(radius)
	return rr.Max(carve.Z().Abs().SubConst(height / 2)), nil
}

// Gyroid returns a triply periodic gyroid surface thickened into a
// solid shell boundary field:
//
//	sin(fx)cos(fy) + sin(fy)cos(fz) + sin(fz)cos(fx) - thickness
//
// where f = 2π/period.
func Gyroid(period, thickness float64) (carve.Expr, error) {
	if period <= 0 {
		return carve.Expr{}, ErrMsg("gyroid period must be positive")
	}
	f := 2 * math.Pi / period
	x := carve.X().MulConst(f)
	y := carve.Y().MulConst(f)
	z := carve.Z().MulConst(f)
	g := x.Sin().Mul(y.Cos()).
		Add(y.Sin().Mul(z.Cos())).
		Add(z.Sin().Mul(x.Cos()))
	return g.SubConst(thickness), nil
}
