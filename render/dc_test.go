package render_test

import (
	"math"
	"os"
	"sync/atomic"
	"testing"

	"github.com/deadsy/sdfx/obj"
	sdfxrender "github.com/deadsy/sdfx/render"
	"github.com/soypat/carve"
	"github.com/soypat/carve/form3"
	"github.com/soypat/carve/render"
	"gonum.org/v1/gonum/spatial/r3"
)

func symBox(half float64) r3.Box {
	return r3.Box{
		Min: r3.Vec{X: -half, Y: -half, Z: -half},
		Max: r3.Vec{X: half, Y: half, Z: half},
	}
}

func TestSphereNormals(t *testing.T) {
	sphere, err := form3.Sphere(0.5)
	if err != nil {
		t.Fatal(err)
	}
	m := render.RenderMesh(sphere, symBox(1), 0.0625, render.Config{})
	if m == nil || len(m.Faces) == 0 {
		t.Fatal("no mesh produced for sphere")
	}
	dot := 2.0
	pos, neg := 0, 0
	for _, tri := range m.Triangles() {
		n := tri.Normal()
		center := r3.Unit(tri.Centroid())
		d := r3.Dot(n, center)
		if d < 0 {
			neg++
		} else {
			pos++
		}
		dot = math.Min(dot, d)
	}
	t.Logf("triangles=%d inward=%d outward=%d", len(m.Faces), neg, pos)
	if dot <= 0.9 {
		t.Errorf("worst normal-radial alignment %v, want > 0.9", dot)
	}
}

func TestCubeFaceCount(t *testing.T) {
	cube, err := form3.Box(r3.Vec{X: 3, Y: 3, Z: 3})
	if err != nil {
		t.Fatal(err)
	}
	m := render.RenderMesh(cube, symBox(3), 0.15, render.Config{MaxErr: 1e-8})
	if m == nil {
		t.Fatal("no mesh produced")
	}
	if len(m.Faces) != 12 {
		t.Errorf("cube meshed to %d faces, want 12", len(m.Faces))
	}
	// Index 0 is the unused placeholder: 8 cube corners + 1.
	if len(m.Verts) != 9 {
		t.Errorf("cube meshed to %d vertices, want 9", len(m.Verts))
	}
}

func TestPrismFaceCount(t *testing.T) {
	prism, err := form3.BoxBetween(r3.Vec{}, r3.Vec{X: 4, Y: 1, Z: 0.25})
	if err != nil {
		t.Fatal(err)
	}
	bounds := r3.Box{
		Min: r3.Vec{X: -1, Y: -1, Z: -1},
		Max: r3.Vec{X: 5, Y: 2, Z: 1.25},
	}
	m := render.RenderMesh(prism, bounds, 0.125, render.Config{})
	if m == nil {
		t.Fatal("no mesh produced")
	}
	if len(m.Verts) != 9 { // index 0 is unused
		t.Errorf("prism meshed to %d vertices, want 9", len(m.Verts))
	}
	if len(m.Faces) != 12 {
		t.Errorf("prism meshed to %d faces, want 12", len(m.Faces))
	}
}

// sphereBoxUnion is a sphere poking through the top of a thin slab,
// with the shared face near z = 0.1. The flat top face historically
// induces collapsed and flipped triangles in dual contouring.
func sphereBoxUnion(t *testing.T) carve.Expr {
	t.Helper()
	ball, err := form3.SphereAt(0.7, r3.Vec{Z: 0.1})
	if err != nil {
		t.Fatal(err)
	}
	slab, err := form3.BoxBetween(r3.Vec{X: -1, Y: -1, Z: -1}, r3.Vec{X: 1, Y: 1, Z: 0.1})
	if err != nil {
		t.Fatal(err)
	}
	return carve.Union(ball, slab)
}

func TestNoDegenerateTriangles(t *testing.T) {
	m := render.RenderMesh(sphereBoxUnion(t), symBox(10), 0.25, render.Config{})
	if m == nil || len(m.Faces) == 0 {
		t.Fatal("no mesh produced")
	}
	for _, f := range m.Faces {
		if f[0] == f[1] || f[0] == f[2] || f[1] == f[2] {
			t.Fatalf("face %v repeats a vertex index", f)
		}
	}
}

func TestTopFaceOrientation(t *testing.T) {
	m := render.RenderMesh(sphereBoxUnion(t), symBox(10), 0.25, render.Config{})
	if m == nil {
		t.Fatal("no mesh produced")
	}
	checked := 0
	for _, tri := range m.Triangles() {
		onTop := true
		for i := 0; i < 3; i++ {
			onTop = onTop && math.Abs(tri[i].Z-0.1) < 1e-3
		}
		if !onTop {
			continue
		}
		checked++
		n := tri.Normal()
		if math.Abs(n.X) > 0.01 || math.Abs(n.Y) > 0.01 || math.Abs(n.Z-1) > 0.01 {
			t.Errorf("top face triangle %v has normal %v, want +z", tri, n)
		}
	}
	if checked == 0 {
		t.Error("no triangles found on the slab top face")
	}
}

func gyroidBall(t testing.TB, period, thickness, radius float64) carve.Expr {
	gyroid, err := form3.Gyroid(period, thickness)
	if err != nil {
		t.Fatal(err)
	}
	ball, err := form3.Sphere(radius)
	if err != nil {
		t.Fatal(err)
	}
	return carve.Intersect(gyroid, ball)
}

func TestPipelineProgress(t *testing.T) {
	var values []float64
	m := render.RenderMesh(gyroidBall(t, 2, 0.2, 2), symBox(2.5), 0.2, render.Config{
		Workers:  8,
		Progress: func(v float64) { values = append(values, v) },
	})
	if m == nil || len(m.Faces) == 0 {
		t.Fatal("no mesh produced")
	}
	if len(values) < 2 {
		t.Fatalf("too few progress reports: %v", values)
	}
	if values[0] != 0 {
		t.Errorf("first progress value %v, want 0.0", values[0])
	}
	if last := values[len(values)-1]; last != 3 {
		t.Errorf("final progress value %v, want 3.0 across build/mesh/release", last)
	}
	for i := 1; i < len(values); i++ {
		if values[i] <= values[i-1] {
			t.Fatalf("progress not strictly increasing: %v", values)
		}
	}
}

func TestPipelineCancel(t *testing.T) {
	var cancel atomic.Bool
	cancel.Store(true)
	m := render.RenderMesh(gyroidBall(t, 2, 0.2, 2), symBox(2.5), 0.2, render.Config{
		Cancel: &cancel,
	})
	if m != nil {
		t.Error("cancelled pipeline returned a mesh")
	}
}

func TestMeshWorkerDeterminism(t *testing.T) {
	shape := gyroidBall(t, 2, 0.2, 2)
	ref := render.RenderMesh(shape, symBox(2.5), 0.25, render.Config{Workers: 1})
	for _, workers := range []int{2, 4, 8} {
		m := render.RenderMesh(shape, symBox(2.5), 0.25, render.Config{Workers: workers})
		if len(m.Verts) != len(ref.Verts) || len(m.Faces) != len(ref.Faces) {
			t.Fatalf("workers=%d mesh size %d/%d, want %d/%d",
				workers, len(m.Verts), len(m.Faces), len(ref.Verts), len(ref.Faces))
		}
		for i := range ref.Verts {
			if m.Verts[i] != ref.Verts[i] {
				t.Fatalf("workers=%d vertex %d differs", workers, i)
			}
		}
		for i := range ref.Faces {
			if m.Faces[i] != ref.Faces[i] {
				t.Fatalf("workers=%d face %d differs", workers, i)
			}
		}
	}
}

func TestKDFieldRoundTrip(t *testing.T) {
	sphere, err := form3.Sphere(0.5)
	if err != nil {
		t.Fatal(err)
	}
	m := render.RenderMesh(sphere, symBox(1), 0.0625, render.Config{})
	field := render.NewKDField(m.Triangles())
	// Mesh vertices are surface samples: the reconstructed field
	// must see them as (nearly) on the surface.
	for _, v := range m.Verts[1:] {
		if d := math.Abs(field.Evaluate(v)); d > 0.0625 {
			t.Fatalf("mesh vertex %v at reconstructed distance %v", v, d)
		}
	}
	bb := field.Bounds()
	if bb.Min.X > -0.4 || bb.Max.X < 0.4 {
		t.Errorf("reconstructed bounds %+v too small for the sphere", bb)
	}
}

func BenchmarkGyroidBall(b *testing.B) {
	// Resolution matching the original gyroid benchmark pipeline.
	shape := gyroidBall(b, 2, 0.2, 4)
	for i := 0; i < b.N; i++ {
		m := render.RenderMesh(shape, symBox(5), 0.025, render.Config{Workers: 8})
		if m == nil {
			b.Fatal("no mesh")
		}
	}
}

func BenchmarkSphere(b *testing.B) {
	sphere, err := form3.Sphere(1)
	if err != nil {
		b.Fatal(err)
	}
	for i := 0; i < b.N; i++ {
		rend := render.NewDualContourRenderer(sphere, symBox(1.3), 0.01, render.Config{})
		err := render.CreateSTL("carve_sphere.stl", rend)
		if err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkSDFXBolt meshes a reference model through the sdfx marching
// cubes octree renderer to compare against the dual contouring
// pipeline above.
func BenchmarkSDFXBolt(b *testing.B) {
	stdout := os.Stdout
	defer func() {
		os.Stdout = stdout // pesky sdfx prints out stuff
	}()
	os.Stdout, _ = os.Open(os.DevNull)
	const output = "sdfx_bolt.stl"
	object, _ := obj.Bolt(&obj.BoltParms{
		Thread:      "npt_1/2",
		Style:       "hex",
		Tolerance:   0.1,
		TotalLength: 20,
		ShankLength: 10,
	})
	for i := 0; i < b.N; i++ {
		sdfxrender.ToSTL(object, 300, output, &sdfxrender.MarchingCubesOctree{})
	}
}
