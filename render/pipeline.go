package render

import (
	"sync/atomic"

	"github.com/soypat/carve"
	"github.com/soypat/carve/octree"
	"gonum.org/v1/gonum/spatial/r3"
)

// Config carries the optional knobs of a meshing run.
type Config struct {
	// MaxErr is the octree merge tolerance. Defaults to 1e-8.
	MaxErr float64
	// Workers is the number of octree worker goroutines. Defaults to
	// one per CPU.
	Workers int
	// Progress receives strictly increasing values across the three
	// phases of the pipeline (tree build, dual walk, release),
	// starting at 0.0 and ending at 3.0.
	Progress func(float64)
	// Cancel aborts the pipeline cooperatively; a cancelled run
	// returns a nil mesh.
	Cancel *atomic.Bool
}

// RenderMesh builds the adaptive octree of the field over bounds and
// dual-walks it into an indexed triangle mesh. A nil mesh means the
// run was cancelled.
func RenderMesh(e carve.Expr, bounds r3.Box, minFeature float64, cfg Config) *Mesh {
	root := octree.Build(e, bounds, minFeature, octree.BuildConfig{
		MaxErr:   cfg.MaxErr,
		Workers:  cfg.Workers,
		Progress: cfg.Progress,
		Cancel:   cfg.Cancel,
	})
	if root.Empty() {
		return nil
	}
	if cancelled(cfg.Cancel) {
		return nil
	}

	walk := octree.NewProgressWatcher(uint64(root.CellCount()), 1, cfg.Progress, cfg.Cancel)
	m := walkTree(root, func() { walk.Tick(1) })
	walk.Stop()
	if cancelled(cfg.Cancel) {
		return nil
	}

	// The release phase mirrors the original pipeline's tree
	// deletion so a shared callback ends at 3.0.
	free := octree.NewProgressWatcher(1, 2, cfg.Progress, cfg.Cancel)
	root.Release()
	free.Tick(1)
	free.Stop()
	if cancelled(cfg.Cancel) {
		return nil
	}
	return m
}

func cancelled(c *atomic.Bool) bool {
	return c != nil && c.Load()
}

// DualContourRenderer adapts RenderMesh to the batched Renderer
// interface consumed by the STL writer. The mesh is built lazily on
// the first read.
type DualContourRenderer struct {
	expr       carve.Expr
	bounds     r3.Box
	minFeature float64
	cfg        Config
	src        *meshReader
}

// NewDualContourRenderer returns a Renderer meshing the field over
// bounds with the given minimum feature size.
func NewDualContourRenderer(e carve.Expr, bounds r3.Box, minFeature float64, cfg Config) *DualContourRenderer {
	return &DualContourRenderer{expr: e, bounds: bounds, minFeature: minFeature, cfg: cfg}
}

// ReadTriangles writes triangles rendered from the model into the
// argument buffer and returns the number written, io.EOF once the
// mesh is exhausted.
func (d *DualContourRenderer) ReadTriangles(dst []Triangle3) (int, error) {
	if len(dst) == 0 {
		panic("cannot write to empty triangle slice")
	}
	if d.src == nil {
		m := RenderMesh(d.expr, d.bounds, d.minFeature, d.cfg)
		if m == nil {
			m = newMesh()
		}
		d.src = &meshReader{tris: m.Triangles()}
	}
	return d.src.ReadTriangles(dst)
}
