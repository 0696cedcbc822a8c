package octree

import (
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// qef accumulates a quadratic error function Σ (n·(v-p))² over the
// surface samples of a cell: AᵀA, Aᵀb and bᵀb plus the sample mass
// point. Merging children is plain floating-point summation;
// collectChildren always merges in child order 0..7, which keeps parent
// collection deterministic.
type qef struct {
	// upper triangle of AᵀA: xx, xy, xz, yy, yz, zz.
	ata  [6]float64
	atb  r3.Vec
	btb  float64
	mass r3.Vec
	n    int
}

// add inserts the plane through point p with unit normal n.
func (q *qef) add(p, n r3.Vec) {
	d := n.X*p.X + n.Y*p.Y + n.Z*p.Z
	q.ata[0] += n.X * n.X
	q.ata[1] += n.X * n.Y
	q.ata[2] += n.X * n.Z
	q.ata[3] += n.Y * n.Y
	q.ata[4] += n.Y * n.Z
	q.ata[5] += n.Z * n.Z
	q.atb = r3.Add(q.atb, r3.Scale(d, n))
	q.btb += d * d
	q.mass = r3.Add(q.mass, p)
	q.n++
}

// merge accumulates another error function into q.
func (q *qef) merge(o *qef) {
	for i := range q.ata {
		q.ata[i] += o.ata[i]
	}
	q.atb = r3.Add(q.atb, o.atb)
	q.btb += o.btb
	q.mass = r3.Add(q.mass, o.mass)
	q.n += o.n
}

// eigenvalueCutoff discards near-singular directions of AᵀA when
// inverting, leaving the vertex on the mass point along directions the
// sampled planes do not constrain.
const eigenvalueCutoff = 0.1

// solve returns the position minimizing the error function, anchored
// at the mass point, together with the residual error at that
// position.
func (q *qef) solve() (r3.Vec, float64) {
	if q.n == 0 {
		return r3.Vec{}, 0
	}
	center := r3.Scale(1/float64(q.n), q.mass)
	a := mat.NewDense(3, 3, []float64{
		q.ata[0], q.ata[1], q.ata[2],
		q.ata[1], q.ata[3], q.ata[4],
		q.ata[2], q.ata[4], q.ata[5],
	})
	// Solve A·(v-center) = b - A·center with a truncated
	// pseudo-inverse.
	r := r3.Sub(q.atb, q.mulATA(center))
	var svd mat.SVD
	ok := svd.Factorize(a, mat.SVDFull)
	v := center
	if ok {
		var u, vt mat.Dense
		svd.UTo(&u)
		svd.VTo(&vt)
		s := svd.Values(nil)
		cutoff := eigenvalueCutoff * s[0]
		rv := [3]float64{r.X, r.Y, r.Z}
		var dv [3]float64
		for k := 0; k < 3; k++ {
			if s[k] <= cutoff || s[k] == 0 {
				continue
			}
			// dv += V_k * (U_kᵀ r) / s_k
			var ur float64
			for i := 0; i < 3; i++ {
				ur += u.At(i, k) * rv[i]
			}
			ur /= s[k]
			for i := 0; i < 3; i++ {
				dv[i] += vt.At(i, k) * ur
			}
		}
		v = r3.Add(center, r3.Vec{X: dv[0], Y: dv[1], Z: dv[2]})
	}
	return v, q.errorAt(v)
}

// mulATA returns AᵀA·v.
func (q *qef) mulATA(v r3.Vec) r3.Vec {
	return r3.Vec{
		X: q.ata[0]*v.X + q.ata[1]*v.Y + q.ata[2]*v.Z,
		Y: q.ata[1]*v.X + q.ata[3]*v.Y + q.ata[4]*v.Z,
		Z: q.ata[2]*v.X + q.ata[4]*v.Y + q.ata[5]*v.Z,
	}
}

// errorAt evaluates vᵀAᵀAv - 2vᵀAᵀb + bᵀb, clamped against the small
// negative values float cancellation can produce.
func (q *qef) errorAt(v r3.Vec) float64 {
	av := q.mulATA(v)
	e := v.X*av.X + v.Y*av.Y + v.Z*av.Z -
		2*(v.X*q.atb.X+v.Y*q.atb.Y+v.Z*q.atb.Z) +
		q.btb
	if e < 0 {
		return 0
	}
	return e
}
