package render

import (
	"github.com/soypat/carve/octree"
)

// Dual contouring walk over the adaptive octree. Cells contribute one
// vertex each; quads are emitted around every minimal cell edge whose
// endpoints straddle the surface, connecting the vertices of the four
// cells meeting at the edge.
//
// Axis bookkeeping: child/corner index bit 0 is x, bit 1 y, bit 2 z.
// For an edge along axis A the two transverse axes (B1, B2) follow the
// right-handed cycle X→(Y,Z), Y→(Z,X), Z→(X,Y), and the four cells
// around the edge are ordered by their (B1, B2) quadrant as
// (0,0), (1,0), (0,1), (1,1).

const (
	axisX = iota
	axisY
	axisZ
)

var cycle = [3][2]int{
	axisX: {axisY, axisZ},
	axisY: {axisZ, axisX},
	axisZ: {axisX, axisY},
}

type walker struct {
	mesh *Mesh
	// vertex index per cell, assigned on first use.
	idx map[*octree.Cell]int
	// tick is called once per visited cell for progress reporting.
	tick func()
}

func newWalker(tick func()) *walker {
	return &walker{
		mesh: newMesh(),
		idx:  make(map[*octree.Cell]int),
		tick: tick,
	}
}

// walkTree triangulates a finished cell tree.
func walkTree(root *octree.Root, tick func()) *Mesh {
	w := newWalker(tick)
	if c := root.Cell(); c != nil {
		w.cell(c)
	}
	return w.mesh
}

func (w *walker) cell(c *octree.Cell) {
	if w.tick != nil {
		w.tick()
	}
	if !c.IsBranch() {
		return
	}
	var ch [8]*octree.Cell
	for i := range ch {
		ch[i] = c.Child(i)
	}
	for _, k := range ch {
		w.cell(k)
	}
	// Interior faces between sibling pairs along each axis.
	for a := 0; a < 3; a++ {
		m := 1 << a
		for i := 0; i < 8; i++ {
			if i&m != 0 {
				continue
			}
			w.face([2]*octree.Cell{ch[i], ch[i|m]}, a)
		}
	}
	// The two center edge segments per axis. Cells around the edge
	// ordered by their (B1, B2) quadrant, at segment position q
	// along the axis.
	for a := 0; a < 3; a++ {
		m := 1 << a
		b1 := 1 << cycle[a][0]
		b2 := 1 << cycle[a][1]
		for q := 0; q < 2; q++ {
			w.edge([4]*octree.Cell{
				ch[q*m],
				ch[q*m|b1],
				ch[q*m|b2],
				ch[q*m|b1|b2],
			}, a)
		}
	}
}

// sub descends into a branch cell; leaves stand in for themselves.
func sub(c *octree.Cell, i int) *octree.Cell {
	if c.IsBranch() {
		return c.Child(i)
	}
	return c
}

// face handles a pair of cells sharing a face perpendicular to axis a.
// cells[0] is on the negative side.
func (w *walker) face(cells [2]*octree.Cell, a int) {
	if cells[0] == nil || cells[1] == nil {
		return
	}
	if !cells[0].IsBranch() && !cells[1].IsBranch() {
		return
	}
	m := 1 << a
	b1 := 1 << cycle[a][0]
	b2 := 1 << cycle[a][1]
	// Sub-faces.
	for p2 := 0; p2 < 2; p2++ {
		for p1 := 0; p1 < 2; p1++ {
			w.face([2]*octree.Cell{
				sub(cells[0], m|p1*b1|p2*b2),
				sub(cells[1], p1*b1|p2*b2),
			}, a)
		}
	}
	// Edges parallel to B1 lying in the face: ordered over (B2, A),
	// two segments along B1.
	for q := 0; q < 2; q++ {
		w.edge([4]*octree.Cell{
			sub(cells[0], m|q*b1),
			sub(cells[0], m|q*b1|b2),
			sub(cells[1], q*b1),
			sub(cells[1], q*b1|b2),
		}, cycle[a][0])
	}
	// Edges parallel to B2 lying in the face: ordered over (A, B1),
	// two segments along B2.
	for q := 0; q < 2; q++ {
		w.edge([4]*octree.Cell{
			sub(cells[0], m|q*b2),
			sub(cells[1], q*b2),
			sub(cells[0], m|b1|q*b2),
			sub(cells[1], b1|q*b2),
		}, cycle[a][1])
	}
}

// edge handles four cells around an edge along axis a, ordered by
// their (B1, B2) quadrant.
func (w *walker) edge(cells [4]*octree.Cell, a int) {
	for _, c := range cells {
		if c == nil {
			return
		}
	}
	if !cells[0].IsBranch() && !cells[1].IsBranch() &&
		!cells[2].IsBranch() && !cells[3].IsBranch() {
		w.emit(cells, a)
		return
	}
	m := 1 << a
	b1 := 1 << cycle[a][0]
	b2 := 1 << cycle[a][1]
	// Quadrant (p1,p2) touches the edge at its opposite corner.
	pos := [4][2]int{{0, 0}, {1, 0}, {0, 1}, {1, 1}}
	for q := 0; q < 2; q++ {
		var next [4]*octree.Cell
		for j, c := range cells {
			p := pos[j]
			next[j] = sub(c, q*m|(1-p[0])*b1|(1-p[1])*b2)
		}
		w.edge(next, a)
	}
}

// emit generates up to two triangles for the minimal edge shared by
// four leaf cells.
func (w *walker) emit(cells [4]*octree.Cell, a int) {
	// The deepest cell owns the minimal edge.
	deep := 0
	for j := 1; j < 4; j++ {
		if cells[j].Level() < cells[deep].Level() {
			deep = j
		}
	}
	pos := [4][2]int{{0, 0}, {1, 0}, {0, 1}, {1, 1}}
	b1 := 1 << cycle[a][0]
	b2 := 1 << cycle[a][1]
	p := pos[deep]
	c0 := (1-p[0])*b1 + (1-p[1])*b2 // edge corner at the negative A end
	c1 := c0 | 1<<a
	in0 := cells[deep].CornerInside(c0)
	in1 := cells[deep].CornerInside(c1)
	if in0 == in1 {
		return
	}
	var vi [4]int
	for j, c := range cells {
		v, ok := c.Vertex()
		if !ok {
			return
		}
		i, seen := w.idx[c]
		if !seen {
			i = w.mesh.addVert(v)
			w.idx[c] = i
		}
		vi[j] = i
	}
	// Cyclic order around the edge, counterclockwise seen from +A.
	quad := [4]int{vi[0], vi[1], vi[3], vi[2]}
	if in1 {
		// Inside at the +A end: the surface faces -A.
		quad = [4]int{vi[2], vi[3], vi[1], vi[0]}
	}
	w.tri(quad[0], quad[1], quad[2])
	w.tri(quad[0], quad[2], quad[3])
}

// tri appends a face, dropping triangles collapsed onto fewer than
// three distinct vertices.
func (w *walker) tri(a, b, c int) {
	if a == b || b == c || a == c {
		return
	}
	w.mesh.Faces = append(w.mesh.Faces, [3]int{a, b, c})
}
