package render

import (
	"bytes"
	"errors"
	"testing"

	"github.com/soypat/carve/form3"
	"github.com/soypat/carve/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestSTLWriteReadback(t *testing.T) {
	const tol = 1e-5
	sphere, err := form3.Sphere(0.5)
	if err != nil {
		t.Fatal(err)
	}
	bounds := r3.Box{Min: d3.Elem(-1), Max: d3.Elem(1)}
	m := RenderMesh(sphere, bounds, 0.0625, Config{})
	input := m.Triangles()
	if len(input) == 0 {
		t.Fatal("no triangles rendered")
	}
	var b bytes.Buffer
	err = WriteSTL(&b, input)
	if err != nil {
		t.Fatal(err)
	}
	output, err := readBinarySTL(&b)
	if err != nil && !errors.Is(err, errCalculatedNormalMismatch) {
		t.Fatal(err)
	}
	if len(output) != len(input) {
		t.Fatal("length of triangles written/read not equal")
	}
	// calculate relative tolerance; vertices survive a float32 trip.
	size := r3.Norm(d3.Box(bounds).Size())
	rtol := tol * size
	mismatches := 0
	for iface, expect := range input {
		got := output[iface]
		if got.Degenerate(1e-12) {
			t.Fatalf("triangle degenerate: %+v", got)
		}
		for i := range expect {
			if !d3.EqualWithin(got[i], expect[i], rtol) {
				mismatches++
				t.Errorf("%dth triangle equality out of tolerance. got vertex %0.5g, want %0.5g", iface, got[i], expect[i])
			}
		}
		if mismatches > 10 {
			t.Fatal("too many mismatches")
		}
	}
}

func TestCreateSTLMatchesWriteSTL(t *testing.T) {
	box, err := form3.Box(r3.Vec{X: 3, Y: 2, Z: 1})
	if err != nil {
		t.Fatal(err)
	}
	bounds := r3.Box{Min: d3.Elem(-3), Max: d3.Elem(3)}
	m := RenderMesh(box, bounds, 0.2, Config{})
	var direct bytes.Buffer
	if err := WriteSTL(&direct, m.Triangles()); err != nil {
		t.Fatal(err)
	}
	var streamed bytes.Buffer
	rd := &stlReader{r: &meshReader{tris: m.Triangles()}}
	buf := make([]byte, 50*8) // tiny buffer to force multiple reads
	for {
		n, err := rd.Read(buf)
		if n > 0 {
			streamed.Write(buf[:n])
		}
		if err != nil || n == 0 {
			break
		}
	}
	// The streamed output lacks the 84-byte header.
	if !bytes.Equal(direct.Bytes()[84:], streamed.Bytes()) {
		t.Error("streamed STL body differs from WriteSTL output")
	}
}
