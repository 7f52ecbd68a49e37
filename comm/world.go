package comm

import (
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

type mailKey struct {
	src, dest, tag int
}

// mailbox is an unbounded FIFO of messages for one (src, dest, tag) triple.
// Messages between the same pair with the same tag never overtake each
// other.
type mailbox struct {
	mu    sync.Mutex
	cond  *sync.Cond
	queue [][]float64
}

func newMailbox() *mailbox {
	mb := &mailbox{}
	mb.cond = sync.NewCond(&mb.mu)
	return mb
}

func (mb *mailbox) put(msg []float64) {
	mb.mu.Lock()
	mb.queue = append(mb.queue, msg)
	mb.mu.Unlock()
	mb.cond.Signal()
}

func (mb *mailbox) take() []float64 {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	for len(mb.queue) == 0 {
		mb.cond.Wait()
	}
	msg := mb.queue[0]
	mb.queue[0] = nil
	mb.queue = mb.queue[1:]
	return msg
}

// World is a group of ranks living in one process, each rank driven by its
// own goroutine.  It is used for tests and for single machine runs.
type World struct {
	size  int
	mu    sync.Mutex
	boxes map[mailKey]*mailbox
}

// NewWorld creates a group of n ranks.
func NewWorld(n int) *World {
	if n < 1 {
		panic("comm: world needs at least one rank")
	}
	return &World{size: n, boxes: map[mailKey]*mailbox{}}
}

// Size returns the number of ranks in the world.
func (w *World) Size() int { return w.size }

// Comm returns the communicator of the given rank.
func (w *World) Comm(rank int) Communicator {
	if rank < 0 || rank >= w.size {
		panic("comm: rank out of range")
	}
	return &worldComm{w: w, rank: rank}
}

// Self returns the communicator of a fresh single-rank world.
func Self() Communicator { return NewWorld(1).Comm(0) }

func (w *World) box(k mailKey) *mailbox {
	w.mu.Lock()
	defer w.mu.Unlock()
	mb, ok := w.boxes[k]
	if !ok {
		mb = newMailbox()
		w.boxes[k] = mb
	}
	return mb
}

// Run executes fn once per rank of a new n-rank world, each call on its own
// goroutine, and returns the first error.  fn must issue the same
// collectives in the same order on every rank.
func Run(n int, fn func(c Communicator) error) error {
	w := NewWorld(n)
	var g errgroup.Group
	for rank := 0; rank < n; rank++ {
		c := w.Comm(rank)
		g.Go(func() error { return fn(c) })
	}
	return g.Wait()
}

type worldComm struct {
	w    *World
	rank int
}

func (c *worldComm) Rank() int { return c.rank }
func (c *worldComm) Size() int { return c.w.size }

func (c *worldComm) Isend(buf []float64, dest, tag int) *Request {
	msg := append([]float64(nil), buf...)
	c.w.box(mailKey{c.rank, dest, tag}).put(msg)
	r := newRequest()
	r.complete(nil)
	return r
}

func (c *worldComm) Irecv(buf []float64, src, tag int) *Request {
	mb := c.w.box(mailKey{src, c.rank, tag})
	return start(func() error {
		msg := mb.take()
		if len(msg) != len(buf) {
			return errors.Errorf("comm: rank %v got %v values from rank %v (tag %v), want %v",
				c.rank, len(msg), src, tag, len(buf))
		}
		copy(buf, msg)
		return nil
	})
}

func (c *worldComm) send1(v float64, dest, tag int) {
	c.w.box(mailKey{c.rank, dest, tag}).put([]float64{v})
}

func (c *worldComm) recv1(src, tag int) float64 {
	return c.w.box(mailKey{src, c.rank, tag}).take()[0]
}

func (c *worldComm) Reduce(v float64, root int) float64 {
	if c.rank != root {
		c.send1(v, root, tagReduce)
		return v
	}
	// summed in rank order so every run adds the same way
	sum := 0.0
	for r := 0; r < c.w.size; r++ {
		if r == root {
			sum += v
			continue
		}
		sum += c.recv1(r, tagReduce)
	}
	return sum
}

func (c *worldComm) Bcast(v float64, root int) float64 {
	if c.rank != root {
		return c.recv1(root, tagBcast)
	}
	for r := 0; r < c.w.size; r++ {
		if r != root {
			c.send1(v, r, tagBcast)
		}
	}
	return v
}

func (c *worldComm) Barrier() { c.Bcast(c.Reduce(0, 0), 0) }
