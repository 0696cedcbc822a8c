package octree

// neighbors is the immutable descriptor of the cells laterally
// adjacent to one cell, indexed by direction. It is passed down by
// value with each task; push derives the descriptor of a child from
// its parent's descriptor and the parent's children. push is not pure:
// a lateral cell contributes its children only once it has published
// them, so the descriptor also depends on how far other workers have
// progressed.
type neighbors struct {
	// c holds one cell per direction (dx,dy,dz) in {-1,0,1}³ at index
	// (dx+1) + 3(dy+1) + 9(dz+1). The center slot 13 stays nil.
	c [27]*Cell
}

func dirIndex(dx, dy, dz int) int {
	return (dx + 1) + 3*(dy+1) + 9*(dz+1)
}

// push returns the neighbor descriptor of child i of parent. Siblings
// are read directly from the parent; everything else goes through the
// parent's own neighbors, descending one level where a subdivided
// lateral cell is already published.
func (n neighbors) push(i uint8, parent *Cell) neighbors {
	var out neighbors
	cx := int(i) & 1
	cy := int(i) >> 1 & 1
	cz := int(i) >> 2 & 1
	for dz := -1; dz <= 1; dz++ {
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dx == 0 && dy == 0 && dz == 0 {
					continue
				}
				qx, ox := wrap(cx + dx)
				qy, oy := wrap(cy + dy)
				qz, oz := wrap(cz + dz)
				w := qx | qy<<1 | qz<<2
				if ox == 0 && oy == 0 && oz == 0 {
					// Sibling: the parent's children were fully
					// published before this task existed.
					out.c[dirIndex(dx, dy, dz)] = parent.children[w]
					continue
				}
				pn := n.c[dirIndex(ox, oy, oz)]
				if pn == nil || !pn.childrenOK.Load() {
					continue
				}
				out.c[dirIndex(dx, dy, dz)] = pn.children[w]
			}
		}
	}
	return out
}

// wrap folds a child coordinate displaced by one cell back into {0,1}
// and reports the overflow direction.
func wrap(q int) (coord, overflow int) {
	switch {
	case q < 0:
		return 1, -1
	case q > 1:
		return 0, 1
	}
	return q, 0
}

// cornerValue looks corner i of the cell up in the already-evaluated
// neighbors sharing that corner. Values are derived from the shared
// lattice, so a hit is bit-identical to evaluating the corner afresh;
// sharing only skips work, it never changes results.
func (n neighbors) cornerValue(i int) (float64, bool) {
	sx := cornerDir(i & 1)
	sy := cornerDir(i >> 1 & 1)
	sz := cornerDir(i >> 2 & 1)
	for m := 1; m < 8; m++ {
		dx, dy, dz := 0, 0, 0
		if m&1 != 0 {
			dx = sx
		}
		if m&2 != 0 {
			dy = sy
		}
		if m&4 != 0 {
			dz = sz
		}
		nb := n.c[dirIndex(dx, dy, dz)]
		if nb == nil || nb.region.Level != 0 || !nb.ready.Load() || nb.leaf == nil {
			continue
		}
		// Flip the corner bits along the axes we moved across.
		return nb.leaf.corners[i^m], true
	}
	return 0, false
}

func cornerDir(bit int) int {
	if bit != 0 {
		return 1
	}
	return -1
}
