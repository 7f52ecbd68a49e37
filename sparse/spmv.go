package sparse

import (
	"fmt"

	"github.com/cheremnov/Parallel-Computing-CMC-2020/comm"
)

// MulVec returns g*v.  When g has a communication scheme the halo values
// are first fetched from the neighbor ranks: one message per neighbor in
// each direction, all in flight at once.  Every rank of the group must
// call MulVec on its part of the same matrix.
func MulVec(g *Graph, v *Vector) *Vector {
	if len(v.Data) != g.Rows() {
		panic("inconsistent lengths for matrix-vector product")
	}
	halo := g.syncHalo(v)

	owned := g.Rows()
	res := NewVector(v.c, owned)
	for i := 0; i < owned; i++ {
		tot := 0.0
		for e := g.RowOffsets[i]; e < g.RowOffsets[i+1]; e++ {
			j := g.ColIndex[e]
			if j < owned {
				tot += g.Coeff[e] * v.Data[j]
				continue
			}
			if halo == nil {
				panic(fmt.Sprintf("sparse: row %v references halo node %v but the graph has no scheme", i, j))
			}
			tot += g.Coeff[e] * halo[j-owned]
		}
		res.Data[i] = tot
	}
	return res
}

// syncHalo fills the halo buffer of g with the current values of the halo
// nodes of v and returns it.  It returns nil for graphs without a scheme.
func (g *Graph) syncHalo(v *Vector) []float64 {
	s, ex := g.scheme, g.ex
	if s == nil {
		return nil
	}
	if len(s.Neighbors) > 0 && v.c == nil {
		panic("sparse: halo exchange on a vector without communicator")
	}

	reqs := make([]*comm.Request, 0, 2*len(s.Neighbors))
	for k, rank := range s.Neighbors {
		lo, hi := s.SendOffset[k], s.SendOffset[k+1]
		for idx := lo; idx < hi; idx++ {
			ex.send[idx] = v.Data[s.Send[idx]]
		}
		reqs = append(reqs, v.c.Isend(ex.send[lo:hi], rank, comm.TagHalo))
		reqs = append(reqs, v.c.Irecv(ex.recv[s.RecvOffset[k]:s.RecvOffset[k+1]], rank, comm.TagHalo))
	}
	if err := comm.Waitall(reqs); err != nil {
		// a broken exchange leaves the other ranks waiting; nothing to recover
		panic(err)
	}

	owned := g.Rows()
	for idx, local := range s.Recv {
		ex.halo[local-owned] = ex.recv[idx]
	}
	return ex.halo
}
