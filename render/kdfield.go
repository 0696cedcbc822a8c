package render

import (
	"math"

	"github.com/soypat/carve/internal/d3"
	"gonum.org/v1/gonum/spatial/kdtree"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	_ kdtree.Interface = kdTriangles{}
	_ kdtree.Bounder   = kdTriangles{}
)

// KDField is a crude signed distance field reconstructed from a
// triangle mesh, backed by a k-d tree over triangle centroids. It
// answers nearest-surface queries on meshes produced by the dual
// walker, e.g. to compare a remesh against its source model.
type KDField struct {
	tree kdtree.Tree
}

// NewKDField indexes the model triangles for distance queries.
func NewKDField(model []Triangle3) *KDField {
	mykd := make(kdTriangles, len(model))
	for i := range mykd {
		mykd[i] = kdTriangle(model[i])
	}
	tree := kdtree.New(mykd, true)
	return &KDField{
		tree: *tree,
	}
}

// Evaluate returns the approximate signed distance from v to the
// mesh, negative inside. The sign comes from the facing of the
// nearest triangle, so it is only trustworthy for watertight meshes.
func (s *KDField) Evaluate(v r3.Vec) float64 {
	const eps = 1e-3
	triangle := s.nearest(v)
	minDist := math.MaxFloat64
	// Find closest vertex.
	closest := r3.Vec{}
	for i := 0; i < 3; i++ {
		vDist := r3.Norm(r3.Sub(v, triangle[i]))
		if vDist < minDist {
			closest = triangle[i]
			minDist = vDist
		}
	}
	if minDist < eps {
		return 0
	}
	pointDir := r3.Sub(v, closest)
	n := triangle.Normal()
	alpha := math.Acos(r3.Cos(n, pointDir))
	return math.Copysign(minDist, math.Pi/2-alpha)
}

// nearest returns the triangle whose centroid is closest to the point.
func (s *KDField) nearest(v r3.Vec) kdTriangle {
	got, _ := s.tree.Nearest(kdTriangle{v, v, v})
	return got.(kdTriangle)
}

// Bounds returns the bounding box of the indexed mesh.
func (s *KDField) Bounds() r3.Box {
	bb := s.tree.Root.Bounding
	if bb == nil {
		panic("got nil bounding box?")
	}
	tMin := bb.Min.(kdTriangle)
	tMax := bb.Max.(kdTriangle)
	return r3.Box{
		Min: d3.MinElem(tMin[2], d3.MinElem(tMin[0], tMin[1])),
		Max: d3.MaxElem(tMax[2], d3.MaxElem(tMax[0], tMax[1])),
	}
}

type kdTriangles []kdTriangle

type kdTriangle Triangle3

func (k kdTriangles) Index(i int) kdtree.Comparable {
	return k[i]
}

// Len returns the length of the list.
func (k kdTriangles) Len() int { return len(k) }

// Pivot partitions the list based on the dimension specified.
func (k kdTriangles) Pivot(d kdtree.Dim) int {
	p := kdPlane{dim: int(d), triangles: k}
	return kdtree.Partition(p, kdtree.MedianOfMedians(p))
}

// Slice returns a slice of the list using zero-based half
// open indexing equivalent to built-in slice indexing.
func (k kdTriangles) Slice(start, end int) kdtree.Interface {
	return k[start:end]
}

func (k kdTriangles) Bounds() *kdtree.Bounding {
	max := r3.Vec{X: -math.MaxFloat64, Y: -math.MaxFloat64, Z: -math.MaxFloat64}
	min := r3.Vec{X: math.MaxFloat64, Y: math.MaxFloat64, Z: math.MaxFloat64}
	for _, tri := range k {
		tbounds := tri.Bounds()
		tmin := tbounds.Min.(kdTriangle)
		tmax := tbounds.Max.(kdTriangle)
		min = d3.MinElem(min, tmin[0])
		max = d3.MaxElem(max, tmax[0])
	}
	return &kdtree.Bounding{
		Min: kdTriangle{min, min, min},
		Max: kdTriangle{max, max, max},
	}
}

// Compare returns the signed distance of a from the plane passing through
// b and perpendicular to the dimension d.
func (a kdTriangle) Compare(b kdtree.Comparable, d kdtree.Dim) float64 {
	return kdComp(a, b.(kdTriangle), int(d))
}

// Dims returns the number of dimensions described in the Comparable.
func (k kdTriangle) Dims() int {
	return 3
}

// Distance returns the squared Euclidean distance between the receiver and
// the parameter.
func (a kdTriangle) Distance(b kdtree.Comparable) float64 {
	return kdDist(a, b.(kdTriangle))
}

func (a kdTriangle) Bounds() *kdtree.Bounding {
	min := d3.MinElem(a[2], d3.MinElem(a[0], a[1]))
	max := d3.MaxElem(a[2], d3.MaxElem(a[0], a[1]))
	return &kdtree.Bounding{
		Min: kdTriangle{min, min, min},
		Max: kdTriangle{max, max, max},
	}
}

func (a kdTriangle) Normal() r3.Vec {
	return Triangle3(a).Normal()
}

// c = a.dim - b.dim averaged over the triangle vertices.
func kdComp(a, b kdTriangle, dim int) (c float64) {
	switch dim {
	case axisX:
		c = (a[0].X + a[1].X + a[2].X) - (b[0].X + b[1].X + b[2].X)
	case axisY:
		c = (a[0].Y + a[1].Y + a[2].Y) - (b[0].Y + b[1].Y + b[2].Y)
	case axisZ:
		c = (a[0].Z + a[1].Z + a[2].Z) - (b[0].Z + b[1].Z + b[2].Z)
	}
	return c / 3
}

// returns euclidean squared norm distance between triangle centroids.
func kdDist(a, b kdTriangle) (c float64) {
	return r3.Norm2(r3.Sub(Triangle3(a).Centroid(), Triangle3(b).Centroid()))
}

type kdPlane struct {
	dim       int
	triangles kdTriangles
}

func (p kdPlane) Less(i, j int) bool {
	return kdComp(p.triangles[i], p.triangles[j], p.dim) < 0
}
func (p kdPlane) Swap(i, j int) {
	p.triangles[i], p.triangles[j] = p.triangles[j], p.triangles[i]
}
func (p kdPlane) Len() int {
	return len(p.triangles)
}
func (p kdPlane) Slice(start, end int) kdtree.SortSlicer {
	p.triangles = p.triangles[start:end]
	return p
}
