// Package render meshes implicit fields by dual-walking the adaptive
// octree built by the octree package, and writes the result as STL.
package render

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Renderer is a triangle source, read in batches until io.EOF.
type Renderer interface {
	ReadTriangles(t []Triangle3) (int, error)
}

// Triangle3 is a 3D triangle.
type Triangle3 [3]r3.Vec

// Normal returns the normal vector to the plane defined by the triangle.
func (t Triangle3) Normal() r3.Vec {
	e1 := r3.Sub(t[1], t[0])
	e2 := r3.Sub(t[2], t[0])
	n := r3.Cross(e1, e2)
	l := r3.Norm(n)
	if l == 0 {
		return r3.Vec{}
	}
	return r3.Scale(1/l, n)
}

// Degenerate returns true if the triangle is degenerate.
func (t Triangle3) Degenerate(tol float64) bool {
	n := r3.Cross(r3.Sub(t[1], t[0]), r3.Sub(t[2], t[0]))
	l := r3.Norm(n)
	return l <= tol || math.IsNaN(l)
}

// Centroid returns the mean of the triangle vertices.
func (t Triangle3) Centroid() r3.Vec {
	return r3.Scale(1./3, r3.Add(r3.Add(t[0], t[1]), t[2]))
}
