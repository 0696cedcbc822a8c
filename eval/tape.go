// Package eval compiles carve expressions into flat evaluator programs
// (tapes) and evaluates them at points, with gradients, and over
// axis-aligned boxes using interval arithmetic.
//
// A tape can be narrowed: interval evaluation over a region proves some
// min/max branches inactive, and the narrowed tape skips them. Narrowed
// tapes form a chain back to the root tape; BaseFor walks the chain
// back up to the widest tape still valid over a region, which the
// octree engine uses while bubbling results towards the root.
package eval

import (
	"math"

	"github.com/soypat/carve"
	"github.com/soypat/carve/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

type inst struct {
	op   carve.Op
	a, b uint32  // operand instruction indices
	c    float64 // constant value for OpConst
}

// Branch decisions recorded by interval evaluation for min/max ops.
const (
	choiceBoth uint8 = iota
	choiceLeft
	choiceRight
)

type action struct {
	idx    uint32
	choice uint8
}

// Tape is an immutable compiled field program. Tapes are cheap to
// share between goroutines; all evaluation scratch state lives in the
// Evaluator.
type Tape struct {
	prog   []inst   // full instruction array, shared by the whole chain
	active []action // instructions to execute, ascending by index
	result uint32
	bounds d3.Box // region of validity; the root tape is valid everywhere
	parent *Tape
}

// Compile flattens the expression into a root tape. Shared expression
// nodes, equal constants and the coordinate variables are emitted once;
// structurally equal but separately built subtrees are emitted again.
func Compile(e carve.Expr) *Tape {
	if e.Zero() {
		panic("eval: compile of zero Expr")
	}
	c := compiler{
		seen:   make(map[carve.Expr]uint32),
		consts: make(map[float64]uint32),
		vars:   make(map[carve.Op]uint32),
	}
	result := c.emit(e)
	t := &Tape{
		prog:   c.prog,
		active: make([]action, len(c.prog)),
		result: result,
		bounds: d3.Box{
			Min: r3.Vec{X: math.Inf(-1), Y: math.Inf(-1), Z: math.Inf(-1)},
			Max: r3.Vec{X: math.Inf(1), Y: math.Inf(1), Z: math.Inf(1)},
		},
	}
	for i := range t.active {
		t.active[i] = action{idx: uint32(i)}
	}
	return t
}

type compiler struct {
	prog   []inst
	seen   map[carve.Expr]uint32
	consts map[float64]uint32
	vars   map[carve.Op]uint32
}

func (c *compiler) emit(e carve.Expr) uint32 {
	if idx, ok := c.seen[e]; ok {
		return idx
	}
	op := e.Op()
	var in inst
	in.op = op
	switch op.NumArgs() {
	case 0:
		if op == carve.OpConst {
			v := e.Const()
			if idx, ok := c.consts[v]; ok {
				c.seen[e] = idx
				return idx
			}
			in.c = v
		} else if idx, ok := c.vars[op]; ok {
			c.seen[e] = idx
			return idx
		}
	case 1:
		a, _ := e.Args()
		in.a = c.emit(a)
	case 2:
		a, b := e.Args()
		in.a = c.emit(a)
		in.b = c.emit(b)
	}
	idx := uint32(len(c.prog))
	c.prog = append(c.prog, in)
	c.seen[e] = idx
	switch op {
	case carve.OpConst:
		c.consts[in.c] = idx
	case carve.OpVarX, carve.OpVarY, carve.OpVarZ:
		c.vars[op] = idx
	}
	return idx
}

// Len returns the number of active instructions in the tape.
func (t *Tape) Len() int { return len(t.active) }

// BaseFor returns the widest ancestor tape still valid over the box.
// It is the inverse of narrowing, used while walking back up the tree.
func (t *Tape) BaseFor(b r3.Box) *Tape {
	for t.parent != nil && !t.bounds.ContainsBox(d3.Box(b)) {
		t = t.parent
	}
	return t
}

// narrowed builds a child tape from branch choices recorded during an
// interval evaluation over box b. choice is indexed by instruction.
// Returns t unchanged if no branch was decided.
func (t *Tape) narrowed(choice []uint8, decided int, b r3.Box) *Tape {
	if decided == 0 {
		return t
	}
	needed := make([]bool, len(t.prog))
	needed[t.result] = true
	n := 0
	for i := len(t.active) - 1; i >= 0; i-- {
		ac := t.active[i]
		if !needed[ac.idx] {
			continue
		}
		n++
		in := t.prog[ac.idx]
		switch {
		case in.op == carve.OpMin || in.op == carve.OpMax:
			switch choice[ac.idx] {
			case choiceLeft:
				needed[in.a] = true
			case choiceRight:
				needed[in.b] = true
			default:
				needed[in.a] = true
				needed[in.b] = true
			}
		case in.op.NumArgs() == 2:
			needed[in.a] = true
			needed[in.b] = true
		case in.op.NumArgs() == 1:
			needed[in.a] = true
		}
	}
	active := make([]action, 0, n)
	for _, ac := range t.active {
		if !needed[ac.idx] {
			continue
		}
		in := t.prog[ac.idx]
		if in.op == carve.OpMin || in.op == carve.OpMax {
			ac.choice = choice[ac.idx]
		}
		active = append(active, ac)
	}
	return &Tape{
		prog:   t.prog,
		active: active,
		result: t.result,
		bounds: d3.Box(b),
		parent: t,
	}
}
