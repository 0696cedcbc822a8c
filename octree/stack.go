package octree

import (
	"sync/atomic"

	"github.com/soypat/carve/eval"
)

// task is one pending cell expansion. region duplicates target.region
// so the hot loop avoids chasing the cell pointer.
type task struct {
	target          *Cell
	tape            *eval.Tape
	region          Region
	parentNeighbors neighbors
}

// taskStack is the bounded multi-producer multi-consumer exchange of
// pending tasks. It is a fixed ring with per-slot sequence tags; the
// tags double as the ABA guard. Pushes fail instead of blocking when
// the ring is full, in which case the caller keeps the task on its
// local stack.
type taskStack struct {
	mask uint64
	slot []taskSlot
	_    [64]byte
	enq  atomic.Uint64
	_    [64]byte
	deq  atomic.Uint64
}

type taskSlot struct {
	seq atomic.Uint64
	t   task
}

// tasksPerWorker sizes the shared ring. Overflow lands on worker-local
// stacks, so the ring only needs enough slack to keep idle workers
// fed.
const tasksPerWorker = 64

func newTaskStack(workers int) *taskStack {
	n := 1
	for n < workers*tasksPerWorker {
		n <<= 1
	}
	s := &taskStack{
		mask: uint64(n - 1),
		slot: make([]taskSlot, n),
	}
	for i := range s.slot {
		s.slot[i].seq.Store(uint64(i))
	}
	return s
}

// boundedPush publishes a task unless the ring is full.
func (s *taskStack) boundedPush(t task) bool {
	pos := s.enq.Load()
	for {
		sl := &s.slot[pos&s.mask]
		seq := sl.seq.Load()
		switch {
		case seq == pos:
			if s.enq.CompareAndSwap(pos, pos+1) {
				sl.t = t
				sl.seq.Store(pos + 1)
				return true
			}
			pos = s.enq.Load()
		case seq < pos: // ring is full
			return false
		default:
			pos = s.enq.Load()
		}
	}
}

// pop takes a task if one is available.
func (s *taskStack) pop() (task, bool) {
	pos := s.deq.Load()
	for {
		sl := &s.slot[pos&s.mask]
		seq := sl.seq.Load()
		switch {
		case seq == pos+1:
			if s.deq.CompareAndSwap(pos, pos+1) {
				t := sl.t
				sl.t = task{}
				sl.seq.Store(pos + s.mask + 1)
				return t, true
			}
			pos = s.deq.Load()
		case seq <= pos: // empty or the producer has not finished writing
			return task{}, false
		default:
			pos = s.deq.Load()
		}
	}
}

// localStack is the worker-private unbounded LIFO that absorbs pushes
// the shared ring rejects. Draining it first keeps each worker inside
// its own subtree.
type localStack []task

func (l *localStack) push(t task) {
	*l = append(*l, t)
}

func (l *localStack) pop() (task, bool) {
	n := len(*l)
	if n == 0 {
		return task{}, false
	}
	t := (*l)[n-1]
	(*l)[n-1] = task{}
	*l = (*l)[:n-1]
	return t, true
}
