package render

import (
	"io"

	"gonum.org/v1/gonum/spatial/r3"
)

// Mesh is an indexed triangle mesh. Verts[0] is an unused placeholder:
// vertex numbering starts at 1 so a zero face index always means "no
// vertex yet" while the mesh is assembled.
type Mesh struct {
	Verts []r3.Vec
	Faces [][3]int
}

func newMesh() *Mesh {
	return &Mesh{Verts: make([]r3.Vec, 1, 1024)}
}

// addVert appends a vertex and returns its index.
func (m *Mesh) addVert(v r3.Vec) int {
	m.Verts = append(m.Verts, v)
	return len(m.Verts) - 1
}

// Triangles expands the indexed faces into standalone triangles.
func (m *Mesh) Triangles() []Triangle3 {
	ts := make([]Triangle3, len(m.Faces))
	for i, f := range m.Faces {
		ts[i] = Triangle3{m.Verts[f[0]], m.Verts[f[1]], m.Verts[f[2]]}
	}
	return ts
}

// meshReader streams the triangles of a finished mesh through the
// Renderer interface.
type meshReader struct {
	tris []Triangle3
}

func (r *meshReader) ReadTriangles(dst []Triangle3) (int, error) {
	if len(r.tris) == 0 {
		return 0, io.EOF
	}
	n := copy(dst, r.tris)
	r.tris = r.tris[n:]
	return n, nil
}

// RenderAll reads the full contents of a Renderer and returns the slice read.
// It does not return error on io.EOF, unlike io.ReadAll-style helpers.
func RenderAll(r Renderer) ([]Triangle3, error) {
	var err error
	var nt int
	result := make([]Triangle3, 0, 1<<12)
	buf := make([]Triangle3, 1024)
	for {
		nt, err = r.ReadTriangles(buf)
		if err != nil {
			break
		}
		result = append(result, buf[:nt]...)
	}
	if err == io.EOF {
		return result, nil
	}
	return result, err
}
