package comm

import (
	"github.com/btracey/mpi"
	"github.com/pkg/errors"
)

// MPI is a Communicator over the process group set up by
// github.com/btracey/mpi: one OS process per rank talking over TCP.  The
// group is configured with the -mpi-addr and -mpi-alladdr flags, so
// flag.Parse and mpi.Init must have been called before NewMPI.
//
// The underlying Send and Receive calls block.  Non-blocking requests run
// them on their own goroutines.
type MPI struct {
	rank, size int
}

// NewMPI returns the communicator of the calling process.
func NewMPI() (*MPI, error) {
	rank, size := mpi.Rank(), mpi.Size()
	if rank < 0 || size < 1 {
		return nil, errors.New("comm: mpi is not initialized")
	}
	return &MPI{rank: rank, size: size}, nil
}

func (c *MPI) Rank() int { return c.rank }
func (c *MPI) Size() int { return c.size }

func (c *MPI) Isend(buf []float64, dest, tag int) *Request {
	return start(func() error {
		return errors.Wrapf(mpi.Send(buf, dest, tag), "comm: send to rank %v", dest)
	})
}

func (c *MPI) Irecv(buf []float64, src, tag int) *Request {
	return start(func() error {
		var msg []float64
		if err := mpi.Receive(&msg, src, tag); err != nil {
			return errors.Wrapf(err, "comm: receive from rank %v", src)
		}
		if len(msg) != len(buf) {
			return errors.Errorf("comm: rank %v got %v values from rank %v (tag %v), want %v",
				c.rank, len(msg), src, tag, len(buf))
		}
		copy(buf, msg)
		return nil
	})
}

// must panics on a failed collective.  A collective that lost a message
// cannot be recovered by any rank.
func must(err error) {
	if err != nil {
		panic(err)
	}
}

func (c *MPI) Reduce(v float64, root int) float64 {
	if c.rank != root {
		must(mpi.Send(v, root, tagReduce))
		return v
	}
	sum := 0.0
	for r := 0; r < c.size; r++ {
		if r == root {
			sum += v
			continue
		}
		var part float64
		must(mpi.Receive(&part, r, tagReduce))
		sum += part
	}
	return sum
}

func (c *MPI) Bcast(v float64, root int) float64 {
	if c.rank != root {
		must(mpi.Receive(&v, root, tagBcast))
		return v
	}
	for r := 0; r < c.size; r++ {
		if r != root {
			must(mpi.Send(v, r, tagBcast))
		}
	}
	return v
}

func (c *MPI) Barrier() { c.Bcast(c.Reduce(0, 0), 0) }
