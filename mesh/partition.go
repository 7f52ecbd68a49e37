package mesh

import (
	"fmt"
	"sort"
)

// Partition is the rectangular block of mesh nodes owned by one rank
// together with the halo: the nodes owned by other ranks that the local
// stencil references.  Rows [RowStart, RowEnd) and columns [ColStart,
// ColEnd) are owned.
//
// Local ids are dense and private to the rank.  Owned nodes come first in
// row-major order, followed by the halo grouped by owning block.
type Partition struct {
	Rank, Procs        int
	BlockRow, BlockCol int
	RowStart, RowEnd   int
	ColStart, ColEnd   int
	// Owned is the number of owned nodes.  Local ids below Owned are owned,
	// the rest are halo.
	Owned int
	// LocalToGlobal maps every local id to its mesh-wide id.
	LocalToGlobal []int
	// Owner maps every local id to the rank owning the node.
	Owner []int

	params        Params
	globalToLocal map[int]int
}

// span returns the [start, end) range of block b when n items are split over
// nblocks blocks.  The remainder goes to the first blocks.
func span(n, nblocks, b int) (start, end int) {
	q, rem := n/nblocks, n%nblocks
	start = b*q + minInt(b, rem)
	end = (b+1)*q + minInt(b+1, rem)
	return start, end
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// NewPartition computes the block of the given rank.  p must be valid and
// nprocs must match its block geometry; a rank out of range panics.
func NewPartition(p Params, rank, nprocs int) *Partition {
	if err := p.CheckProcs(nprocs); err != nil {
		panic(err.Error())
	}
	if rank < 0 || rank >= nprocs {
		panic(fmt.Sprintf("rank %v out of range for %v processes", rank, nprocs))
	}

	pt := &Partition{
		Rank:          rank,
		Procs:         nprocs,
		BlockRow:      rank / p.BlockColumns,
		BlockCol:      rank % p.BlockColumns,
		params:        p,
		globalToLocal: map[int]int{},
	}
	pt.RowStart, pt.RowEnd = span(p.RowLen+1, p.BlockRows, pt.BlockRow)
	pt.ColStart, pt.ColEnd = span(p.ColumnLen+1, p.BlockColumns, pt.BlockCol)

	for row := pt.RowStart; row < pt.RowEnd; row++ {
		for col := pt.ColStart; col < pt.ColEnd; col++ {
			pt.add(row, col, rank)
		}
	}
	pt.Owned = len(pt.LocalToGlobal)

	if pt.BlockRow > 0 {
		for col := pt.ColStart; col < pt.ColEnd; col++ {
			pt.add(pt.RowStart-1, col, rank-p.BlockColumns)
		}
	}
	if pt.BlockRow < p.BlockRows-1 {
		for col := pt.ColStart; col < pt.ColEnd; col++ {
			pt.add(pt.RowEnd, col, rank+p.BlockColumns)
		}
	}
	if pt.BlockCol > 0 {
		for row := pt.RowStart; row < pt.RowEnd; row++ {
			pt.add(row, pt.ColStart-1, rank-1)
		}
	}
	if pt.BlockCol < p.BlockColumns-1 {
		for row := pt.RowStart; row < pt.RowEnd; row++ {
			pt.add(row, pt.ColEnd, rank+1)
		}
	}

	// The up-diagonal edge of the top-right owned node and the down-diagonal
	// edge of the bottom-left owned node reach into the diagonal blocks.
	if pt.BlockRow > 0 && pt.BlockCol < p.BlockColumns-1 && p.CellDivided(pt.RowStart-1, pt.ColEnd-1) {
		pt.add(pt.RowStart-1, pt.ColEnd, rank-p.BlockColumns+1)
	}
	if pt.BlockRow < p.BlockRows-1 && pt.BlockCol > 0 && p.CellDivided(pt.RowEnd-1, pt.ColStart-1) {
		pt.add(pt.RowEnd, pt.ColStart-1, rank+p.BlockColumns-1)
	}
	return pt
}

func (pt *Partition) add(row, col, owner int) {
	gid := pt.params.GlobalID(row, col)
	pt.globalToLocal[gid] = len(pt.LocalToGlobal)
	pt.LocalToGlobal = append(pt.LocalToGlobal, gid)
	pt.Owner = append(pt.Owner, owner)
}

// Params returns the mesh parameters the partition was built from.
func (pt *Partition) Params() Params { return pt.params }

// Nodes returns the number of owned and halo nodes.
func (pt *Partition) Nodes() int { return len(pt.LocalToGlobal) }

// Halo returns the number of halo nodes.
func (pt *Partition) Halo() int { return len(pt.LocalToGlobal) - pt.Owned }

// Local returns the local id of the node with mesh-wide id gid.  ok is false
// if the node is neither owned nor in the halo.
func (pt *Partition) Local(gid int) (local int, ok bool) {
	local, ok = pt.globalToLocal[gid]
	return local, ok
}

// Global returns the mesh-wide id of a local node.
func (pt *Partition) Global(local int) int { return pt.LocalToGlobal[local] }

// OwnerOf returns the rank owning a local node.
func (pt *Partition) OwnerOf(local int) int { return pt.Owner[local] }

// IsOwned reports whether a local id refers to an owned node.
func (pt *Partition) IsOwned(local int) bool { return local < pt.Owned }

// Contains reports whether (row, col) is an owned node.
func (pt *Partition) Contains(row, col int) bool {
	return pt.RowStart <= row && row < pt.RowEnd && pt.ColStart <= col && col < pt.ColEnd
}

// Neighbors returns the ranks owning at least one halo node in ascending
// order.
func (pt *Partition) Neighbors() []int {
	seen := map[int]bool{}
	var ranks []int
	for _, r := range pt.Owner[pt.Owned:] {
		if !seen[r] {
			seen[r] = true
			ranks = append(ranks, r)
		}
	}
	sort.Ints(ranks)
	return ranks
}

func (pt *Partition) String() string {
	return fmt.Sprintf("rank %v: rows [%v,%v) cols [%v,%v), %v owned + %v halo",
		pt.Rank, pt.RowStart, pt.RowEnd, pt.ColStart, pt.ColEnd, pt.Owned, pt.Halo())
}
