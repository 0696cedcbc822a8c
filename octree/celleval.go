package octree

import (
	"math"

	"github.com/soypat/carve/eval"
	"github.com/soypat/carve/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

// evalInterval classifies the cell over its whole region and returns a
// tape narrowed to the region. The classification is never Unknown.
func (c *Cell) evalInterval(ev *eval.Evaluator, t *eval.Tape) *eval.Tape {
	iv, nt := ev.IntervalNarrow(t, c.region.Box())
	switch {
	case iv.Empty():
		c.typ = Empty
	case iv.Filled():
		c.typ = Filled
	default:
		c.typ = Ambiguous
	}
	return nt
}

// cube edges as corner index pairs, grouped by axis.
var cellEdges = [12][2]int{
	{0, 1}, {2, 3}, {4, 5}, {6, 7}, // x
	{0, 2}, {1, 3}, {4, 6}, {5, 7}, // y
	{0, 4}, {1, 5}, {2, 6}, {3, 7}, // z
}

// evalLeaf evaluates a minimum-size cell: corner values (shared with
// already-published neighbors where possible), the inside mask, and a
// vertex fitted to the surface crossings of the cell edges. Cells
// whose corners all agree are reclassified as Empty or Filled; their
// corner data stays available to neighbors.
func (c *Cell) evalLeaf(ev *eval.Evaluator, t *eval.Tape, p *pool, nb neighbors) {
	l := p.leaf()
	c.leaf = l
	var mask uint8
	for i := 0; i < 8; i++ {
		v, ok := nb.cornerValue(i)
		if !ok {
			v = ev.Value(t, c.region.Corner(i))
		}
		l.corners[i] = v
		if v < 0 {
			mask |= 1 << i
		}
	}
	l.mask = mask
	c.ready.Store(true)
	switch mask {
	case 0:
		c.typ = Empty
		return
	case 0xff:
		c.typ = Filled
		return
	}
	c.typ = Ambiguous
	for _, e := range cellEdges {
		a, b := e[0], e[1]
		inA := mask&(1<<a) != 0
		if inA == (mask&(1<<b) != 0) {
			continue
		}
		pa, pb := c.region.Corner(a), c.region.Corner(b)
		if !inA {
			pa, pb = pb, pa
		}
		pt := surfaceCrossing(ev, t, pa, pb)
		v, g := ev.Gradient(t, pt)
		norm := r3.Norm(g)
		if norm < 1e-12 || math.IsNaN(norm) || math.IsInf(norm, 0) {
			continue
		}
		n := r3.Scale(1/norm, g)
		// Project the sample onto the surface along the normal to
		// tighten the plane through a not-quite-converged crossing.
		if !math.IsNaN(v) {
			pt = r3.Sub(pt, r3.Scale(v/norm, g))
			pt = d3.Clamp(pt, d3.MinElem(pa, pb), d3.MaxElem(pa, pb))
		}
		l.qef.add(pt, n)
	}
	if l.qef.n == 0 {
		// Gradient degenerated on every crossing. Anchor the cell at
		// its center so the mesher still has a vertex to connect.
		l.vertex = d3.Box(c.region.Box()).Center()
		return
	}
	v, _ := l.qef.solve()
	if !d3.Box(c.region.Box()).Contains(v) {
		v = r3.Scale(1/float64(l.qef.n), l.qef.mass)
	}
	l.vertex = v
}

// surfaceCrossingSteps bisection iterations per edge. 30 halvings of a
// leaf edge put the crossing well below any meaningful tolerance.
const surfaceCrossingSteps = 30

// surfaceCrossing locates the zero crossing on the segment from inside
// point a to outside point b by bisection.
func surfaceCrossing(ev *eval.Evaluator, t *eval.Tape, a, b r3.Vec) r3.Vec {
	for i := 0; i < surfaceCrossingSteps; i++ {
		mid := r3.Scale(0.5, r3.Add(a, b))
		if ev.Value(t, mid) < 0 {
			a = mid
		} else {
			b = mid
		}
	}
	return r3.Scale(0.5, r3.Add(a, b))
}

// collectChildren is invoked while bubbling up from a just-finished
// child. The release-decrement of pending makes every child's writes
// visible to the one worker that observes zero; that worker alone
// merges the children and reports true, meaning the parent is complete
// and its own parent may be collected in turn. Workers arriving
// earlier report false and stop bubbling.
func (c *Cell) collectChildren(ev *eval.Evaluator, t *eval.Tape, region Region, p *pool, maxErr float64) bool {
	if c.pending.Add(-1) != 0 {
		return false
	}
	var nEmpty, nFilled, nLeaf int
	anyBranch := false
	for _, ch := range c.children {
		switch {
		case ch.IsBranch():
			anyBranch = true
		case ch.typ == Empty:
			nEmpty++
		case ch.typ == Filled:
			nFilled++
		default:
			nLeaf++
		}
	}
	switch {
	case nEmpty == 8:
		c.typ = Empty
		c.collapsed = true
		return true
	case nFilled == 8:
		c.typ = Filled
		c.collapsed = true
		return true
	case anyBranch || nLeaf == 0:
		// An unmerged subtree below us, or no surface data to merge:
		// the cell stays subdivided.
		return true
	}
	l := p.leaf()
	for i, ch := range c.children {
		switch ch.typ {
		case Filled:
			l.mask |= 1 << i
		case Ambiguous:
			l.qef.merge(&ch.leaf.qef)
			if ch.leaf.mask&(1<<i) != 0 {
				l.mask |= 1 << i
			}
		}
	}
	if l.qef.n == 0 {
		p.putLeaf(l)
		return true
	}
	v, errv := l.qef.solve()
	if errv > maxErr || !d3.Box(region.Box()).Contains(v) {
		p.putLeaf(l)
		return true
	}
	l.vertex = v
	c.leaf = l
	c.collapsed = true
	return true
}
