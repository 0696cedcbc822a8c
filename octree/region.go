// Package octree builds adaptive octrees of implicit fields using a
// pool of worker goroutines. Cells are classified by interval
// evaluation, subdivided while the surface remains ambiguous, and
// merged back together on the way up when a fitted vertex stays within
// the requested error. The finished tree is consumed by the render
// package's dual walker.
package octree

import (
	"github.com/soypat/carve/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

// maxLevel bounds the subdivision depth so lattice coordinates fit
// comfortably in an int and slice sizes stay sane.
const maxLevel = 21

// lattice anchors every region of one build to a shared integer grid.
// Corner coordinates are always derived from integers and the same
// origin, so a corner shared by two cells evaluates to bit-identical
// floats no matter which cell asks.
type lattice struct {
	origin r3.Vec
	step   r3.Vec // leaf cell size per axis
	level  int    // root level
}

func (l *lattice) pos(x, y, z int) r3.Vec {
	return r3.Vec{
		X: l.origin.X + l.step.X*float64(x),
		Y: l.origin.Y + l.step.Y*float64(y),
		Z: l.origin.Z + l.step.Z*float64(z),
	}
}

// Region is an axis-aligned box on the build lattice. X, Y, Z are the
// lattice coordinates of the lower corner in leaf-cell units and the
// region spans 1<<Level leaf cells per axis. Level 0 regions are
// leaf-sized and cannot subdivide further.
type Region struct {
	lat     *lattice
	X, Y, Z int
	Level   int
}

// NewRegion grids the bounding box so that the smallest cell edge does
// not exceed minFeature on the longest axis.
func NewRegion(bounds r3.Box, minFeature float64) Region {
	if minFeature <= 0 {
		panic("octree: minFeature must be positive")
	}
	size := d3.Box(bounds).Size()
	if d3.Min(size) <= 0 {
		panic("octree: empty region")
	}
	long := d3.Max(size)
	level := 0
	for float64(uint(1)<<level)*minFeature < long {
		level++
		if level > maxLevel {
			panic("octree: region resolution too fine")
		}
	}
	n := 1 << level
	return Region{
		lat: &lattice{
			origin: bounds.Min,
			step:   r3.Scale(1/float64(n), size),
			level:  level,
		},
		Level: level,
	}
}

// Size returns the region edge length in leaf cells.
func (r Region) Size() int { return 1 << r.Level }

// Box returns the spatial extent of the region.
func (r Region) Box() r3.Box {
	n := r.Size()
	return r3.Box{
		Min: r.lat.pos(r.X, r.Y, r.Z),
		Max: r.lat.pos(r.X+n, r.Y+n, r.Z+n),
	}
}

// Corner returns corner i of the region. Bit 0 of i selects the upper
// x bound, bit 1 the upper y bound, bit 2 the upper z bound.
func (r Region) Corner(i int) r3.Vec {
	n := r.Size()
	return r.lat.pos(
		r.X+(i&1)*n,
		r.Y+(i>>1&1)*n,
		r.Z+(i>>2&1)*n,
	)
}

// Child returns the i-th half-sized subregion, indexed like Corner.
func (r Region) Child(i int) Region {
	if r.Level == 0 {
		panic("octree: subdividing leaf region")
	}
	s := 1 << (r.Level - 1)
	return Region{
		lat:   r.lat,
		X:     r.X + (i&1)*s,
		Y:     r.Y + (i>>1&1)*s,
		Z:     r.Z + (i>>2&1)*s,
		Level: r.Level - 1,
	}
}

// Subdivide returns the eight children of the region.
func (r Region) Subdivide() [8]Region {
	var rs [8]Region
	for i := range rs {
		rs[i] = r.Child(i)
	}
	return rs
}

// Parent returns the region this one was subdivided from, given the
// child index this region had in it.
func (r Region) Parent(i int) Region {
	s := 1 << r.Level
	return Region{
		lat:   r.lat,
		X:     r.X - (i&1)*s,
		Y:     r.Y - (i>>1&1)*s,
		Z:     r.Z - (i>>2&1)*s,
		Level: r.Level + 1,
	}
}

// Equals reports whether two regions describe the same lattice cell.
func (r Region) Equals(o Region) bool {
	return r.X == o.X && r.Y == o.Y && r.Z == o.Z && r.Level == o.Level
}

// progressTicks is the tick budget of a full subtree rooted at the
// given level: one tick per leaf plus one per interior cell,
// sum of 8^i for i = 0..level.
func progressTicks(level int) uint64 {
	var t uint64
	for i := 0; i <= level; i++ {
		t = t*8 + 1
	}
	return t
}
