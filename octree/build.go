package octree

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/soypat/carve"
	"github.com/soypat/carve/eval"
	"gonum.org/v1/gonum/spatial/r3"
)

// FreeThreadHandler lets an embedding application donate idle workers
// elsewhere. OfferWait is called whenever a worker finds no task; it
// may block until work is likely to be available again.
type FreeThreadHandler interface {
	OfferWait()
}

// BuildConfig carries the optional knobs of a build. The zero value
// is usable: default error tolerance, one worker per CPU, no progress
// reporting, not cancellable.
type BuildConfig struct {
	// MaxErr is the merge tolerance of parent collection: a subtree
	// collapses into its parent when the fitted vertex error stays
	// within MaxErr. Defaults to 1e-8.
	MaxErr float64
	// Workers fixes the number of worker goroutines and evaluators.
	// Defaults to runtime.GOMAXPROCS(0).
	Workers int
	// Progress receives monotonically increasing values from 0.0 up
	// to 1.0 plus ProgressOffset on a watcher goroutine.
	Progress func(float64)
	// ProgressOffset shifts reported values, letting multi-phase
	// pipelines reuse one callback across phases.
	ProgressOffset float64
	// Cancel is observed cooperatively at every scheduling point.
	// Setting it makes the build return an empty Root.
	Cancel *atomic.Bool
	// FreeThread, when non-nil, is offered every idle worker loop.
	FreeThread FreeThreadHandler
}

func (cfg *BuildConfig) maxErr() float64 {
	if cfg.MaxErr == 0 {
		return 1e-8
	}
	return cfg.MaxErr
}

func (cfg *BuildConfig) workers() int {
	if cfg.Workers < 1 {
		return runtime.GOMAXPROCS(0)
	}
	return cfg.Workers
}

// Build compiles the expression, grids the bounding box so no cell
// edge exceeds minFeature, and runs the worker pool with one fresh
// evaluator per worker.
func Build(e carve.Expr, bounds r3.Box, minFeature float64, cfg BuildConfig) *Root {
	t := eval.Compile(e)
	evals := make([]*eval.Evaluator, cfg.workers())
	for i := range evals {
		evals[i] = eval.NewEvaluator(t)
	}
	return BuildWith(evals, NewRegion(bounds, minFeature), cfg)
}

// BuildWith runs the worker pool over an already-gridded region with
// borrowed evaluators, one worker per evaluator. Reusing evaluators
// amortizes their construction across repeated builds.
func BuildWith(evals []*eval.Evaluator, region Region, cfg BuildConfig) *Root {
	workers := len(evals)
	if workers == 0 {
		panic("octree: build without evaluators")
	}
	root := &Cell{region: region}
	root.pending.Store(8)

	out := &Root{cell: root}
	var done atomic.Bool
	cancel := cfg.Cancel
	if cancel == nil {
		cancel = new(atomic.Bool)
	}

	tasks := newTaskStack(workers)
	tasks.boundedPush(task{target: root, tape: evals[0].Tape(), region: region})

	watcher := NewProgressWatcher(progressTicks(region.Level), cfg.ProgressOffset, cfg.Progress, cancel)

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := range evals {
		go func(ev *eval.Evaluator) {
			defer wg.Done()
			run(ev, tasks, cfg.maxErr(), &done, cancel, out, watcher, cfg.FreeThread)
		}(evals[i])
	}
	wg.Wait()
	watcher.Stop()

	out.ticksTotal = progressTicks(region.Level)
	out.ticksDone = watcher.Count()
	if cancel.Load() {
		return &Root{}
	}
	return out
}

// run is one worker loop: pop a task, classify or leaf-evaluate the
// cell, push children while ambiguous, and bubble completed subtrees
// towards the root. The worker completing the root flags done for
// everyone.
func run(ev *eval.Evaluator, tasks *taskStack, maxErr float64,
	done, cancel *atomic.Bool, out *Root, watcher *ProgressWatcher,
	free FreeThreadHandler) {

	// Tasks overflowing the shared stack stay on this worker,
	// keeping expansion depth-first and memory bounded.
	var local localStack
	p := newPool()

	for !done.Load() && !cancel.Load() {
		tk, ok := local.pop()
		if !ok {
			tk, ok = tasks.pop()
		}
		if !ok {
			if free != nil {
				free.OfferWait()
			} else {
				runtime.Gosched()
			}
			continue
		}

		t := tk.target
		region := tk.region
		tape := tk.tape

		// Resolve neighbors as late as possible so sibling subtrees
		// published in the meantime are visible.
		var nb neighbors
		if t.parent != nil {
			nb = tk.parentNeighbors.push(t.parentIndex, t.parent)
		}

		if region.Level > 0 {
			tape = t.evalInterval(ev, tape)
			if t.typ == Ambiguous {
				rs := region.Subdivide()
				for i := range rs {
					t.children[i] = p.cell(t, i, rs[i])
				}
				t.childrenOK.Store(true)
				for i := range rs {
					next := task{target: t.children[i], tape: tape, region: rs[i], parentNeighbors: nb}
					if !tasks.boundedPush(next) {
						local.push(next)
					}
				}
				continue
			}
			// A homogeneous cell stands in for the whole subtree it
			// no longer needs to expand.
			watcher.Tick(progressTicks(region.Level))
		} else {
			t.evalLeaf(ev, tape, p, nb)
			watcher.Tick(1)
		}

		// Bubble up, merging completed subtrees. Each completed
		// parent reports one tick.
		for t != nil {
			pi := int(t.parentIndex)
			t = t.parent
			if t == nil {
				break
			}
			region = region.Parent(pi)
			tape = tape.BaseFor(region.Box())
			if !t.collectChildren(ev, tape, region, p, maxErr) {
				break
			}
			watcher.Tick(1)
		}
		if t == nil {
			// Bubbled past the root: the tree is complete.
			break
		}
	}
	done.Store(true)

	out.claim(p)
}
