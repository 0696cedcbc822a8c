package eval

import "math"

// Interval is a closed range of field values. Interval arithmetic is
// conservative: the result of an operation always contains every value
// the operation can produce over the operand ranges.
type Interval struct {
	Lo, Hi float64
}

// whole is the interval covering every value, used when nothing
// tighter can be proven (division by a straddling range, NaN inputs).
func whole() Interval {
	return Interval{Lo: math.Inf(-1), Hi: math.Inf(1)}
}

func (i Interval) isNaN() bool {
	return math.IsNaN(i.Lo) || math.IsNaN(i.Hi)
}

// Empty reports whether the interval proves the field positive over
// the queried region, i.e. the region is entirely outside the solid.
func (i Interval) Empty() bool { return i.Lo > 0 }

// Filled reports whether the interval proves the field negative over
// the queried region, i.e. the region is entirely inside the solid.
func (i Interval) Filled() bool { return i.Hi < 0 }

func (i Interval) Add(o Interval) Interval {
	return fix(Interval{i.Lo + o.Lo, i.Hi + o.Hi})
}

func (i Interval) Sub(o Interval) Interval {
	return fix(Interval{i.Lo - o.Hi, i.Hi - o.Lo})
}

func (i Interval) Mul(o Interval) Interval {
	a := i.Lo * o.Lo
	b := i.Lo * o.Hi
	c := i.Hi * o.Lo
	d := i.Hi * o.Hi
	return fix(Interval{
		Lo: math.Min(math.Min(a, b), math.Min(c, d)),
		Hi: math.Max(math.Max(a, b), math.Max(c, d)),
	})
}

func (i Interval) Div(o Interval) Interval {
	if o.Lo <= 0 && o.Hi >= 0 {
		return whole()
	}
	a := i.Lo / o.Lo
	b := i.Lo / o.Hi
	c := i.Hi / o.Lo
	d := i.Hi / o.Hi
	return fix(Interval{
		Lo: math.Min(math.Min(a, b), math.Min(c, d)),
		Hi: math.Max(math.Max(a, b), math.Max(c, d)),
	})
}

func (i Interval) Min(o Interval) Interval {
	return fix(Interval{math.Min(i.Lo, o.Lo), math.Min(i.Hi, o.Hi)})
}

func (i Interval) Max(o Interval) Interval {
	return fix(Interval{math.Max(i.Lo, o.Lo), math.Max(i.Hi, o.Hi)})
}

func (i Interval) Neg() Interval {
	return Interval{-i.Hi, -i.Lo}
}

func (i Interval) Abs() Interval {
	if i.Lo >= 0 {
		return i
	}
	if i.Hi <= 0 {
		return i.Neg()
	}
	return fix(Interval{0, math.Max(-i.Lo, i.Hi)})
}

func (i Interval) Square() Interval {
	a := i.Abs()
	return fix(Interval{a.Lo * a.Lo, a.Hi * a.Hi})
}

func (i Interval) Sqrt() Interval {
	return fix(Interval{
		Lo: math.Sqrt(math.Max(i.Lo, 0)),
		Hi: math.Sqrt(math.Max(i.Hi, 0)),
	})
}

func (i Interval) Exp() Interval {
	return fix(Interval{math.Exp(i.Lo), math.Exp(i.Hi)})
}

func (i Interval) Sin() Interval {
	return trig(i, math.Sin, -pihalf)
}

func (i Interval) Cos() Interval {
	return trig(i, math.Cos, 0)
}

const pihalf = math.Pi / 2

// trig bounds a sine-like function over the interval. phase is the
// position of one extremum of the function; the others lie pi apart.
func trig(i Interval, f func(float64) float64, phase float64) Interval {
	if i.isNaN() || i.Hi-i.Lo >= 2*math.Pi {
		return Interval{-1, 1}
	}
	lo := math.Min(f(i.Lo), f(i.Hi))
	hi := math.Max(f(i.Lo), f(i.Hi))
	// Extrema of the function lie on a pi-spaced grid. Widen the bound
	// for every extremum the interval straddles.
	k := math.Ceil((i.Lo - phase) / math.Pi)
	for x := phase + k*math.Pi; x <= i.Hi; x += math.Pi {
		lo = math.Min(lo, f(x))
		hi = math.Max(hi, f(x))
	}
	return fix(Interval{Lo: lo, Hi: hi})
}

// fix degrades NaN results to the whole interval so classification
// stays conservative.
func fix(i Interval) Interval {
	if i.isNaN() {
		return whole()
	}
	return i
}
