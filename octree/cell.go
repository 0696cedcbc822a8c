package octree

import (
	"sync"
	"sync/atomic"

	"gonum.org/v1/gonum/spatial/r3"
)

// CellType is the interval classification of a cell.
type CellType uint8

const (
	// Unknown cells have not been evaluated yet. No Unknown cell
	// survives in a finished tree.
	Unknown CellType = iota
	// Empty cells are entirely outside the solid.
	Empty
	// Filled cells are entirely inside the solid.
	Filled
	// Ambiguous cells contain the surface.
	Ambiguous
)

func (t CellType) String() string {
	switch t {
	case Unknown:
		return "unknown"
	case Empty:
		return "empty"
	case Filled:
		return "filled"
	case Ambiguous:
		return "ambiguous"
	}
	return "celltype?"
}

// Cell is one node of the adaptive octree. Cells are created by their
// parent with type Unknown, classified exactly once by interval or
// leaf evaluation, and possibly merged back into the parent by
// collectChildren. The children array is written before childrenOK is
// set and never mutated afterwards, so lateral readers that observe
// childrenOK may read it freely.
type Cell struct {
	parent      *Cell
	parentIndex uint8
	typ         CellType
	collapsed   bool
	region      Region
	children    [8]*Cell
	childrenOK  atomic.Bool
	// pending counts unfinished children. The worker that drives it
	// to zero performs collectChildren for this cell.
	pending atomic.Int32
	// ready publishes leaf corner data for neighbor sharing.
	ready atomic.Bool
	leaf  *leaf
}

// leaf holds the surface data of a minimum-size cell or of a collapsed
// subtree: corner field values, the inside mask and the fitted vertex.
type leaf struct {
	mask    uint8
	corners [8]float64
	qef     qef
	vertex  r3.Vec
}

func (l *leaf) reset() {
	*l = leaf{}
}

// Type returns the cell classification.
func (c *Cell) Type() CellType { return c.typ }

// Region returns the spatial extent of the cell.
func (c *Cell) Region() Region { return c.region }

// Level returns the subdivision level of the cell, 0 for leaf-sized.
func (c *Cell) Level() int { return c.region.Level }

// IsBranch reports whether the cell still has live children, i.e. it
// is an ambiguous interior cell that could not be merged.
func (c *Cell) IsBranch() bool {
	return c.children[0] != nil && c.typ == Ambiguous && !c.collapsed
}

// Child returns the i-th child cell or nil for cells that were never
// subdivided. Children of merged cells remain reachable but IsBranch
// is false for their parent.
func (c *Cell) Child(i int) *Cell { return c.children[i] }

// Vertex returns the surface vertex fitted to this cell and true when
// the cell behaves as an ambiguous leaf.
func (c *Cell) Vertex() (r3.Vec, bool) {
	if c.typ != Ambiguous || c.IsBranch() || c.leaf == nil {
		return r3.Vec{}, false
	}
	return c.leaf.vertex, true
}

// CornerInside reports whether corner i of the cell lies inside the
// solid. Corner indexing matches Region.Corner.
func (c *Cell) CornerInside(i int) bool {
	switch c.typ {
	case Filled:
		return true
	case Ambiguous:
		if c.leaf != nil {
			return c.leaf.mask&(1<<i) != 0
		}
	}
	return false
}

// Root owns a finished cell tree together with the arenas the worker
// goroutines allocated it from. An empty Root signals a cancelled
// build.
type Root struct {
	cell *Cell

	mu    sync.Mutex
	pools []*pool

	ticksTotal uint64
	ticksDone  uint64
}

// Cell returns the root cell of the tree, nil for an empty Root.
func (r *Root) Cell() *Cell { return r.cell }

// Empty reports whether the build was cancelled before completing.
func (r *Root) Empty() bool { return r.cell == nil }

// CellCount returns the number of cells reachable in the tree. It
// matches the number of cells a dual walk visits.
func (r *Root) CellCount() int {
	if r.cell == nil {
		return 0
	}
	return countCells(r.cell)
}

func countCells(c *Cell) int {
	n := 1
	if c.IsBranch() {
		for _, ch := range c.children {
			n += countCells(ch)
		}
	}
	return n
}

// Release drops the tree and its arenas so the memory can be
// reclaimed while the Root value itself stays alive.
func (r *Root) Release() {
	r.mu.Lock()
	r.cell = nil
	r.pools = nil
	r.mu.Unlock()
}

// claim takes ownership of a worker's arena at goroutine teardown.
func (r *Root) claim(p *pool) {
	r.mu.Lock()
	r.pools = append(r.pools, p)
	r.mu.Unlock()
}
