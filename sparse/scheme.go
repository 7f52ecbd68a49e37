package sparse

import (
	"fmt"
	"io"
	"sort"
)

// Scheme lists, for every neighbor rank, which owned values this rank must
// send and which halo values it receives before a matrix-vector product.
//
// Both sides order a neighbor's lists by global id, so the k-th value this
// rank sends to a neighbor is the k-th value that neighbor expects to
// receive from it.
type Scheme struct {
	// Neighbors holds the ranks this rank exchanges with, ascending.
	Neighbors []int
	// Send holds local ids of owned nodes.  The ids sent to Neighbors[k]
	// are Send[SendOffset[k]:SendOffset[k+1]].
	Send       []int
	SendOffset []int
	// Recv holds local ids of halo nodes, laid out like Send.
	Recv       []int
	RecvOffset []int

	globals []int // global id of every local id, for printing
}

// exchange holds the buffers reused by every halo synchronization.
type exchange struct {
	send []float64
	recv []float64
	halo []float64
}

// CreateScheme derives the communication scheme from the connectivity of g
// and the ownership of its columns.  An owned node is sent to every rank
// owning one of its neighbors; a halo node is received from its owner.
// The scheme is attached to g and used by every later MulVec.
func (g *Graph) CreateScheme() *Scheme {
	send := map[int]map[int]int{} // rank -> global id -> local id
	recv := map[int]map[int]int{}
	add := func(m map[int]map[int]int, rank, local int) {
		set, ok := m[rank]
		if !ok {
			set = map[int]int{}
			m[rank] = set
		}
		set[g.global(local)] = local
	}

	self := g.rank()
	for i := 0; i < g.Rows(); i++ {
		cols, _ := g.Row(i)
		for _, j := range cols {
			owner := g.owner(j)
			if owner == self {
				continue
			}
			add(send, owner, i)
			add(recv, owner, j)
		}
	}

	s := &Scheme{}
	for rank := range send {
		s.Neighbors = append(s.Neighbors, rank)
	}
	sort.Ints(s.Neighbors)
	s.Send, s.SendOffset = flatten(s.Neighbors, send)
	s.Recv, s.RecvOffset = flatten(s.Neighbors, recv)

	if g.part != nil {
		s.globals = g.part.LocalToGlobal
	}
	g.scheme = s
	nhalo := 0
	if g.part != nil {
		nhalo = g.part.Halo()
	}
	g.ex = &exchange{
		send: make([]float64, len(s.Send)),
		recv: make([]float64, len(s.Recv)),
		halo: make([]float64, nhalo),
	}
	return s
}

// flatten concatenates the per-rank sets in neighbor order, each sorted by
// global id, and returns the local ids with their offsets.
func flatten(neighbors []int, sets map[int]map[int]int) (ids, offsets []int) {
	offsets = make([]int, 1, len(neighbors)+1)
	for _, rank := range neighbors {
		set := sets[rank]
		globals := make([]int, 0, len(set))
		for gid := range set {
			globals = append(globals, gid)
		}
		sort.Ints(globals)
		for _, gid := range globals {
			ids = append(ids, set[gid])
		}
		offsets = append(offsets, len(ids))
	}
	return ids, offsets
}

// Scheme returns the scheme attached by CreateScheme, or nil.
func (g *Graph) Scheme() *Scheme { return g.scheme }

func (s *Scheme) global(local int) int {
	if s.globals == nil {
		return local
	}
	return s.globals[local]
}

// SendGlobal returns the global ids sent to Neighbors[k], in message order.
func (s *Scheme) SendGlobal(k int) []int {
	return s.globalIDs(s.Send[s.SendOffset[k]:s.SendOffset[k+1]])
}

// RecvGlobal returns the global ids received from Neighbors[k], in message
// order.
func (s *Scheme) RecvGlobal(k int) []int {
	return s.globalIDs(s.Recv[s.RecvOffset[k]:s.RecvOffset[k+1]])
}

func (s *Scheme) globalIDs(locals []int) []int {
	ids := make([]int, len(locals))
	for i, l := range locals {
		ids[i] = s.global(l)
	}
	return ids
}

// Print writes, for every neighbor, the global ids sent to it and received
// from it in message order.
func (s *Scheme) Print(w io.Writer) {
	for k, rank := range s.Neighbors {
		fmt.Fprintf(w, "neighbor %v\n    send: %v\n    recv: %v\n", rank, s.SendGlobal(k), s.RecvGlobal(k))
	}
}
