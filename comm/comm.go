// Package comm provides the message passing primitives the distributed
// solver is built on: non-blocking point-to-point exchange of float64
// buffers and the reduce/broadcast collectives.
//
// Every rank runs the same control flow.  Collectives must be called by all
// ranks in the same order or the job deadlocks - nothing here detects it,
// and there are no timeouts.  A lost message hangs the computation.
package comm

import "sync"

// Tags used for point-to-point messages.  User exchanges should use
// TagHalo or tags above tagReserved.
const (
	TagHalo = iota + 1
	tagReduce
	tagBcast
	tagReserved
)

// Communicator connects one rank to the rest of a fixed-size group of
// ranks.
type Communicator interface {
	// Rank returns the id of the local rank, 0 <= Rank() < Size().
	Rank() int
	// Size returns the number of ranks in the group.
	Size() int
	// Isend starts sending buf to dest.  buf must not be modified until the
	// returned request has completed.
	Isend(buf []float64, dest, tag int) *Request
	// Irecv starts receiving a message from src into buf.  buf must not be
	// read until the returned request has completed.
	Irecv(buf []float64, src, tag int) *Request
	// Reduce sums v over all ranks.  The result is only meaningful on root.
	Reduce(v float64, root int) float64
	// Bcast returns the root's v on every rank.
	Bcast(v float64, root int) float64
	// Barrier blocks until every rank has entered it.
	Barrier()
}

// Request tracks a single non-blocking operation.
type Request struct {
	done chan struct{}
	once sync.Once
	err  error
}

func newRequest() *Request { return &Request{done: make(chan struct{})} }

// start runs op on its own goroutine and completes the request when op
// returns.
func start(op func() error) *Request {
	r := newRequest()
	go func() { r.complete(op()) }()
	return r
}

func (r *Request) complete(err error) {
	r.once.Do(func() {
		r.err = err
		close(r.done)
	})
}

// Wait blocks until the operation has completed and returns its error.
func (r *Request) Wait() error {
	<-r.done
	return r.err
}

// Waitall blocks until every request has completed.  It returns the first
// error in request order.
func Waitall(reqs []*Request) error {
	var first error
	for _, r := range reqs {
		if err := r.Wait(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// AllSum sums v over all ranks and returns the same total on every rank:
// a reduce to rank 0 followed by a broadcast.
func AllSum(c Communicator, v float64) float64 {
	return c.Bcast(c.Reduce(v, 0), 0)
}
