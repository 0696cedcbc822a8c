package eval

import (
	"math"

	"github.com/soypat/carve"
	"gonum.org/v1/gonum/spatial/r3"
)

// Evaluator executes tapes compiled from one expression. It owns all
// scratch state, so each worker goroutine gets its own Evaluator and
// shares the immutable tapes freely.
type Evaluator struct {
	root *Tape
	// value registers, one per instruction of the root program.
	v []float64
	// interval registers.
	lo, hi []float64
	// gradient registers.
	gx, gy, gz []float64
	// branch decision scratch for narrowing.
	choice []uint8
}

// NewEvaluator returns an evaluator for the tape chain rooted at t.
func NewEvaluator(t *Tape) *Evaluator {
	n := len(t.prog)
	return &Evaluator{
		root:   t,
		v:      make([]float64, n),
		lo:     make([]float64, n),
		hi:     make([]float64, n),
		gx:     make([]float64, n),
		gy:     make([]float64, n),
		gz:     make([]float64, n),
		choice: make([]uint8, n),
	}
}

// Tape returns the root tape the evaluator was built from.
func (e *Evaluator) Tape() *Tape { return e.root }

// Value evaluates the tape at a point.
func (e *Evaluator) Value(t *Tape, p r3.Vec) float64 {
	v := e.v
	for _, ac := range t.active {
		in := t.prog[ac.idx]
		var r float64
		switch in.op {
		case carve.OpConst:
			r = in.c
		case carve.OpVarX:
			r = p.X
		case carve.OpVarY:
			r = p.Y
		case carve.OpVarZ:
			r = p.Z
		case carve.OpAdd:
			r = v[in.a] + v[in.b]
		case carve.OpSub:
			r = v[in.a] - v[in.b]
		case carve.OpMul:
			r = v[in.a] * v[in.b]
		case carve.OpDiv:
			r = v[in.a] / v[in.b]
		case carve.OpMin:
			switch ac.choice {
			case choiceLeft:
				r = v[in.a]
			case choiceRight:
				r = v[in.b]
			default:
				r = math.Min(v[in.a], v[in.b])
			}
		case carve.OpMax:
			switch ac.choice {
			case choiceLeft:
				r = v[in.a]
			case choiceRight:
				r = v[in.b]
			default:
				r = math.Max(v[in.a], v[in.b])
			}
		case carve.OpNeg:
			r = -v[in.a]
		case carve.OpAbs:
			r = math.Abs(v[in.a])
		case carve.OpSquare:
			r = v[in.a] * v[in.a]
		case carve.OpSqrt:
			r = math.Sqrt(v[in.a])
		case carve.OpSin:
			r = math.Sin(v[in.a])
		case carve.OpCos:
			r = math.Cos(v[in.a])
		case carve.OpExp:
			r = math.Exp(v[in.a])
		}
		v[ac.idx] = r
	}
	return v[t.result]
}

// Gradient evaluates the field and its spatial gradient at a point
// using forward-mode differentiation.
func (e *Evaluator) Gradient(t *Tape, p r3.Vec) (float64, r3.Vec) {
	v, gx, gy, gz := e.v, e.gx, e.gy, e.gz
	for _, ac := range t.active {
		in := t.prog[ac.idx]
		i := ac.idx
		switch in.op {
		case carve.OpConst:
			v[i], gx[i], gy[i], gz[i] = in.c, 0, 0, 0
		case carve.OpVarX:
			v[i], gx[i], gy[i], gz[i] = p.X, 1, 0, 0
		case carve.OpVarY:
			v[i], gx[i], gy[i], gz[i] = p.Y, 0, 1, 0
		case carve.OpVarZ:
			v[i], gx[i], gy[i], gz[i] = p.Z, 0, 0, 1
		case carve.OpAdd:
			v[i] = v[in.a] + v[in.b]
			gx[i], gy[i], gz[i] = gx[in.a]+gx[in.b], gy[in.a]+gy[in.b], gz[in.a]+gz[in.b]
		case carve.OpSub:
			v[i] = v[in.a] - v[in.b]
			gx[i], gy[i], gz[i] = gx[in.a]-gx[in.b], gy[in.a]-gy[in.b], gz[in.a]-gz[in.b]
		case carve.OpMul:
			a, b := v[in.a], v[in.b]
			v[i] = a * b
			gx[i] = gx[in.a]*b + a*gx[in.b]
			gy[i] = gy[in.a]*b + a*gy[in.b]
			gz[i] = gz[in.a]*b + a*gz[in.b]
		case carve.OpDiv:
			a, b := v[in.a], v[in.b]
			v[i] = a / b
			bb := b * b
			gx[i] = (gx[in.a]*b - a*gx[in.b]) / bb
			gy[i] = (gy[in.a]*b - a*gy[in.b]) / bb
			gz[i] = (gz[in.a]*b - a*gz[in.b]) / bb
		case carve.OpMin, carve.OpMax:
			src := in.a
			switch ac.choice {
			case choiceLeft:
			case choiceRight:
				src = in.b
			default:
				less := v[in.a] <= v[in.b]
				if less != (in.op == carve.OpMin) {
					src = in.b
				}
			}
			v[i], gx[i], gy[i], gz[i] = v[src], gx[src], gy[src], gz[src]
		case carve.OpNeg:
			v[i], gx[i], gy[i], gz[i] = -v[in.a], -gx[in.a], -gy[in.a], -gz[in.a]
		case carve.OpAbs:
			s := 1.0
			if v[in.a] < 0 {
				s = -1
			}
			v[i] = s * v[in.a]
			gx[i], gy[i], gz[i] = s*gx[in.a], s*gy[in.a], s*gz[in.a]
		case carve.OpSquare:
			a := v[in.a]
			v[i] = a * a
			gx[i], gy[i], gz[i] = 2*a*gx[in.a], 2*a*gy[in.a], 2*a*gz[in.a]
		case carve.OpSqrt:
			r := math.Sqrt(v[in.a])
			v[i] = r
			d := 0.0
			if r > 0 {
				d = 0.5 / r
			}
			gx[i], gy[i], gz[i] = d*gx[in.a], d*gy[in.a], d*gz[in.a]
		case carve.OpSin:
			c := math.Cos(v[in.a])
			v[i] = math.Sin(v[in.a])
			gx[i], gy[i], gz[i] = c*gx[in.a], c*gy[in.a], c*gz[in.a]
		case carve.OpCos:
			s := -math.Sin(v[in.a])
			v[i] = math.Cos(v[in.a])
			gx[i], gy[i], gz[i] = s*gx[in.a], s*gy[in.a], s*gz[in.a]
		case carve.OpExp:
			r := math.Exp(v[in.a])
			v[i] = r
			gx[i], gy[i], gz[i] = r*gx[in.a], r*gy[in.a], r*gz[in.a]
		}
	}
	return v[t.result], r3.Vec{X: gx[t.result], Y: gy[t.result], Z: gz[t.result]}
}

// Interval evaluates a conservative bound of the field over the box.
func (e *Evaluator) Interval(t *Tape, b r3.Box) Interval {
	iv, _ := e.run(t, b, false)
	return iv
}

// IntervalNarrow evaluates a conservative bound of the field over the
// box and additionally returns a tape narrowed to the box: min/max
// branches proven inactive over the box are dropped. The returned tape
// is t itself when nothing could be pruned.
func (e *Evaluator) IntervalNarrow(t *Tape, b r3.Box) (Interval, *Tape) {
	return e.run(t, b, true)
}

func (e *Evaluator) run(t *Tape, b r3.Box, narrow bool) (Interval, *Tape) {
	lo, hi := e.lo, e.hi
	decided := 0
	for _, ac := range t.active {
		in := t.prog[ac.idx]
		var r Interval
		switch in.op {
		case carve.OpConst:
			r = Interval{in.c, in.c}
		case carve.OpVarX:
			r = Interval{b.Min.X, b.Max.X}
		case carve.OpVarY:
			r = Interval{b.Min.Y, b.Max.Y}
		case carve.OpVarZ:
			r = Interval{b.Min.Z, b.Max.Z}
		case carve.OpAdd:
			r = e.iv(in.a).Add(e.iv(in.b))
		case carve.OpSub:
			r = e.iv(in.a).Sub(e.iv(in.b))
		case carve.OpMul:
			r = e.iv(in.a).Mul(e.iv(in.b))
		case carve.OpDiv:
			r = e.iv(in.a).Div(e.iv(in.b))
		case carve.OpMin, carve.OpMax:
			r = e.branch(in, ac, &decided)
		case carve.OpNeg:
			r = e.iv(in.a).Neg()
		case carve.OpAbs:
			r = e.iv(in.a).Abs()
		case carve.OpSquare:
			r = e.iv(in.a).Square()
		case carve.OpSqrt:
			r = e.iv(in.a).Sqrt()
		case carve.OpSin:
			r = e.iv(in.a).Sin()
		case carve.OpCos:
			r = e.iv(in.a).Cos()
		case carve.OpExp:
			r = e.iv(in.a).Exp()
		}
		lo[ac.idx], hi[ac.idx] = r.Lo, r.Hi
	}
	result := Interval{lo[t.result], hi[t.result]}
	if !narrow {
		return result, t
	}
	return result, t.narrowed(e.choice, decided, b)
}

func (e *Evaluator) iv(i uint32) Interval {
	return Interval{e.lo[i], e.hi[i]}
}

// branch evaluates a min/max instruction, recording which side is
// provably taken over the whole region.
func (e *Evaluator) branch(in inst, ac action, decided *int) Interval {
	a, b := e.iv(in.a), e.iv(in.b)
	switch ac.choice {
	case choiceLeft:
		e.choice[ac.idx] = choiceLeft
		return a
	case choiceRight:
		e.choice[ac.idx] = choiceRight
		return b
	}
	isMin := in.op == carve.OpMin
	var r Interval
	choice := choiceBoth
	switch {
	case a.Hi <= b.Lo: // a dominates
		if isMin {
			choice, r = choiceLeft, a
		} else {
			choice, r = choiceRight, b
		}
	case b.Hi <= a.Lo: // b dominates
		if isMin {
			choice, r = choiceRight, b
		} else {
			choice, r = choiceLeft, a
		}
	default:
		if isMin {
			r = a.Min(b)
		} else {
			r = a.Max(b)
		}
	}
	if choice != choiceBoth {
		*decided++
	}
	e.choice[ac.idx] = choice
	return r
}
