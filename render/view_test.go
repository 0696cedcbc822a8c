package render_test

import (
	"fmt"
	"io"
	"os"
	"testing"

	"github.com/fogleman/fauxgl"
	"github.com/nfnt/resize"
	"github.com/soypat/carve/internal/d3"
	"github.com/soypat/carve/render"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/plot/cmpimg"
)

const (
	// imgDelta a normalized imgDelta parameter to describe how close the matching
	// should be performed (imgDelta=0: perfect match, imgDelta=1, loose match)
	imgDelta = 0
)

type viewConfig struct {
	// what position (point) to look at
	lookat r3.Vec
	// which way is up (direction)
	up r3.Vec
	// where the camera/eye located at (point)
	eyepos r3.Vec
	far    float64
	near   float64
}

// TestRenderImageDeterminism meshes the same model with different
// worker counts and compares the rasterized results pixel for pixel.
func TestRenderImageDeterminism(t *testing.T) {
	if testing.Short() {
		t.Skip("image comparison rasterizes two full meshes")
	}
	view := viewConfig{
		up:     r3.Vec{Z: 1},
		eyepos: d3.Elem(3),
		near:   1,
		far:    10,
	}
	shape := gyroidBall(t, 2, 0.2, 2)
	var pngs []string
	for _, workers := range []int{1, 4} {
		m := render.RenderMesh(shape, symBox(2.5), 0.25, render.Config{Workers: workers})
		if m == nil || len(m.Faces) == 0 {
			t.Fatal("no mesh produced")
		}
		stlName := fmt.Sprintf("determinism_w%d.stl", workers)
		fp, err := os.Create(stlName)
		if err != nil {
			t.Fatal(err)
		}
		err = render.WriteSTL(fp, m.Triangles())
		fp.Close()
		if err != nil {
			t.Fatal(err)
		}
		pngName := stlName + ".png"
		stlToPNG(t, stlName, pngName, view)
		pngs = append(pngs, pngName)
		os.Remove(stlName)
	}
	if !equalImages(t, pngs[0], pngs[1]) {
		t.Error("rendered images differ between worker counts")
	}
	for _, p := range pngs {
		os.Remove(p)
	}
}

func stlToPNG(t testing.TB, stlName, outputname string, view viewConfig) {
	mesh, err := fauxgl.LoadSTL(stlName)
	if err != nil {
		t.Fatal(err)
	}
	const (
		width, height = 640, 360 // output width and height in pixels
		scale         = 1        // optional supersampling
		fovy          = 30       // vertical field of view in degrees
	)

	var (
		far    = view.far
		near   = view.near
		eye    = fauxgl.V(view.eyepos.X, view.eyepos.Y, view.eyepos.Z) // camera position
		center = fauxgl.V(view.lookat.X, view.lookat.Y, view.lookat.Z) // view center position
		up     = fauxgl.V(view.up.X, view.up.Y, view.up.Z)             // up vector
		light  = fauxgl.V(-0.75, 1, 0.25).Normalize()                  // light direction
		color  = fauxgl.HexColor("#468966")                            // object color
	)

	// fit mesh in a bi-unit cube centered at the origin
	mesh.BiUnitCube()
	// create a rendering context
	context := fauxgl.NewContext(width*scale, height*scale)
	context.ClearColorBufferWith(fauxgl.HexColor("#FFF8E3"))
	// create transformation matrix and light direction
	aspect := float64(width) / float64(height)
	matrix := fauxgl.LookAt(eye, center, up).Perspective(fovy, aspect, near, far)
	// use builtin phong shader
	shader := fauxgl.NewPhongShader(matrix, light, eye)
	shader.ObjectColor = color
	context.Shader = shader
	// render
	context.DrawMesh(mesh)
	// downsample image for antialiasing
	image := context.Image()
	image = resize.Resize(width, height, image, resize.Bilinear)
	err = fauxgl.SavePNG(outputname, image)
	if err != nil {
		t.Fatal(err)
	}
}

func equalImages(t *testing.T, png1, png2 string) bool {
	fp1, err := os.Open(png1)
	if err != nil {
		t.Fatal(err)
	}
	defer fp1.Close()
	fp2, err := os.Open(png2)
	if err != nil {
		t.Fatal(err)
	}
	defer fp2.Close()
	b1, err := io.ReadAll(fp1)
	if err != nil {
		t.Fatal(err)
	}
	b2, err := io.ReadAll(fp2)
	if err != nil {
		t.Fatal(err)
	}
	equal, err := cmpimg.EqualApprox("png", b1, b2, imgDelta)
	if err != nil {
		t.Fatal(err)
	}
	return equal
}
