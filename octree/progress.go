package octree

import (
	"sync"
	"sync/atomic"
	"time"
)

// ProgressWatcher aggregates worker ticks into a monotone fraction
// delivered to a user callback from a background goroutine. Values
// are offset + done/total. A watcher with offset 0 first delivers 0.0;
// a watcher with a non-zero offset delivers only values above its
// offset, so chained phases never repeat a value. The last value is
// offset+1, emitted by Stop on clean completion. Multi-phase pipelines chain
// watchers with increasing offsets so one callback sweeps 0 to the
// number of phases.
type ProgressWatcher struct {
	total  uint64
	offset float64
	cb     func(float64)
	cancel *atomic.Bool

	done atomic.Uint64

	stop chan struct{}
	wg   sync.WaitGroup
	// last emitted value and callback liveness, owned by the watcher
	// goroutine until Stop joins it.
	last float64
	dead bool
}

const watchPeriod = time.Millisecond

// NewProgressWatcher starts watching a fresh tick counter. cb may be
// nil, in which case the watcher only counts. A non-nil cancel flag
// silences the watcher as soon as it is set.
func NewProgressWatcher(total uint64, offset float64, cb func(float64), cancel *atomic.Bool) *ProgressWatcher {
	if total == 0 {
		total = 1
	}
	w := &ProgressWatcher{
		total:  total,
		offset: offset,
		cb:     cb,
		cancel: cancel,
		stop:   make(chan struct{}),
		last:   offset,
	}
	if cb == nil {
		return w
	}
	w.wg.Add(1)
	go w.watch()
	return w
}

func (w *ProgressWatcher) watch() {
	defer w.wg.Done()
	if w.offset == 0 {
		// The very first value of a build is always 0.0.
		w.emit(0)
	}
	tick := time.NewTicker(watchPeriod)
	defer tick.Stop()
	for {
		select {
		case <-w.stop:
			return
		case <-tick.C:
		}
		if w.cancelled() {
			return
		}
		v := w.offset + float64(w.done.Load())/float64(w.total)
		if v > w.last && v <= w.offset+1 {
			w.emit(v)
		}
	}
}

// emit delivers one value, swallowing at most one callback panic. A
// panicking callback silences further reports but never disturbs the
// tick counter.
func (w *ProgressWatcher) emit(v float64) {
	if w.dead {
		return
	}
	defer func() {
		if recover() != nil {
			w.dead = true
		}
	}()
	w.cb(v)
	w.last = v
}

func (w *ProgressWatcher) cancelled() bool {
	return w.cancel != nil && w.cancel.Load()
}

// Tick adds n completed units. Safe for concurrent use.
func (w *ProgressWatcher) Tick(n uint64) {
	w.done.Add(n)
}

// Count returns the ticks accumulated so far.
func (w *ProgressWatcher) Count() uint64 {
	return w.done.Load()
}

// Stop joins the watcher goroutine. On clean completion the terminal
// offset+1 value is delivered before Stop returns; after cancellation
// nothing further is emitted.
func (w *ProgressWatcher) Stop() {
	if w.cb == nil {
		return
	}
	close(w.stop)
	w.wg.Wait()
	if w.cancelled() {
		return
	}
	if end := w.offset + 1; w.last < end {
		w.emit(end)
	}
}
