// Package sparse holds the distributed linear system: a compressed-row
// (CSR) graph over the owned nodes of one partition, the communication
// scheme that keeps its halo columns in sync, distributed vectors, and the
// preconditioned conjugate gradient solver built on them.
package sparse

import (
	"fmt"
	"io"
	"math"

	"github.com/gonum/matrix/mat64"

	"github.com/cheremnov/Parallel-Computing-CMC-2020/mesh"
)

// DominanceCoeff is the ratio between a diagonal entry and the sum of the
// magnitudes of the off-diagonal entries on its row.
const DominanceCoeff = 2

// Graph is a sparse matrix in compressed-row form.  Row i holds the owned
// node with local id i and spans ColIndex[RowOffsets[i]:RowOffsets[i+1]];
// column ids are local ids and may refer to halo nodes.
type Graph struct {
	RowOffsets []int
	ColIndex   []int
	Coeff      []float64

	part   *mesh.Partition
	scheme *Scheme
	ex     *exchange
}

// NewGraph wraps prepared CSR arrays.  The graph has no partition: every
// column must refer to one of its rows.  Malformed arrays panic.
func NewGraph(rowOffsets, colIndex []int, coeff []float64) *Graph {
	if len(rowOffsets) == 0 || rowOffsets[0] != 0 {
		panic("sparse: row offsets must start at zero")
	}
	rows := len(rowOffsets) - 1
	for i := 0; i < rows; i++ {
		if rowOffsets[i+1] < rowOffsets[i] {
			panic(fmt.Sprintf("sparse: row offsets decrease at row %v", i))
		}
	}
	nedges := rowOffsets[rows]
	if len(colIndex) != nedges || len(coeff) != nedges {
		panic(fmt.Sprintf("sparse: %v edges but %v columns and %v coefficients", nedges, len(colIndex), len(coeff)))
	}
	for e, j := range colIndex {
		if j < 0 || j >= rows {
			panic(fmt.Sprintf("sparse: column %v of edge %v out of range", j, e))
		}
	}
	return &Graph{RowOffsets: rowOffsets, ColIndex: colIndex, Coeff: coeff}
}

// stencil calls fn for every node the node at (row, col) is connected to,
// itself included, in the fixed order up, up-diagonal, left, self, right,
// down-diagonal, down.
func stencil(p mesh.Params, row, col int, fn func(row, col int)) {
	if row > 0 {
		fn(row-1, col)
		if col < p.ColumnLen && p.CellDivided(row-1, col) {
			fn(row-1, col+1)
		}
	}
	if col > 0 {
		fn(row, col-1)
	}
	fn(row, col)
	if col < p.ColumnLen {
		fn(row, col+1)
	}
	if row < p.RowLen {
		if col > 0 && p.CellDivided(row, col-1) {
			fn(row+1, col-1)
		}
		fn(row+1, col)
	}
}

// Generate builds the connectivity of the owned nodes of part.  Every
// coefficient is set to one; FillMatrix assigns the real values.
func Generate(p mesh.Params, part *mesh.Partition) *Graph {
	g := &Graph{part: part, RowOffsets: make([]int, part.Owned+1)}

	// first pass counts the edges so the arrays are allocated exactly once
	nedges := 0
	for i := 0; i < part.Owned; i++ {
		row, col := p.Coords(part.Global(i))
		stencil(p, row, col, func(int, int) { nedges++ })
		g.RowOffsets[i+1] = nedges
	}

	g.ColIndex = make([]int, nedges)
	g.Coeff = make([]float64, nedges)
	e := 0
	for i := 0; i < part.Owned; i++ {
		row, col := p.Coords(part.Global(i))
		stencil(p, row, col, func(r, c int) {
			j, ok := part.Local(p.GlobalID(r, c))
			if !ok {
				panic(fmt.Sprintf("sparse: node (%v,%v) referenced from (%v,%v) is not in the halo of rank %v", r, c, row, col, part.Rank))
			}
			g.ColIndex[e] = j
			g.Coeff[e] = 1
			e++
		})
	}
	return g
}

// Rows returns the number of rows, i.e. owned nodes.
func (g *Graph) Rows() int { return len(g.RowOffsets) - 1 }

// Edges returns the number of stored entries.
func (g *Graph) Edges() int { return g.RowOffsets[g.Rows()] }

// Partition returns the partition the graph was generated for, nil for
// graphs built by NewGraph.
func (g *Graph) Partition() *mesh.Partition { return g.part }

// Row returns the column ids and coefficients of row i.  The slices alias
// the graph storage.
func (g *Graph) Row(i int) (cols []int, vals []float64) {
	lo, hi := g.RowOffsets[i], g.RowOffsets[i+1]
	return g.ColIndex[lo:hi], g.Coeff[lo:hi]
}

func (g *Graph) global(local int) int {
	if g.part == nil {
		return local
	}
	return g.part.Global(local)
}

func (g *Graph) owner(local int) int {
	if g.part == nil {
		return 0
	}
	return g.part.OwnerOf(local)
}

func (g *Graph) rank() int {
	if g.part == nil {
		return 0
	}
	return g.part.Rank
}

// diagIndex returns the position of the self-loop of row i in ColIndex.
func (g *Graph) diagIndex(i int) (int, bool) {
	for e := g.RowOffsets[i]; e < g.RowOffsets[i+1]; e++ {
		if g.ColIndex[e] == i {
			return e, true
		}
	}
	return 0, false
}

// DiagonalAt returns the diagonal entry of row i.
func (g *Graph) DiagonalAt(i int) float64 {
	e, ok := g.diagIndex(i)
	if !ok {
		panic(fmt.Sprintf("sparse: row %v has no diagonal entry", i))
	}
	return g.Coeff[e]
}

// FillMatrix assigns every off-diagonal entry the synthetic value
// cos(gi + gj + gi*gj) of the global ids of its endpoints and every
// diagonal entry DominanceCoeff times the magnitude sum of the other
// entries on its row.  The result is symmetric and strictly diagonally
// dominant.
func (g *Graph) FillMatrix() {
	for i := 0; i < g.Rows(); i++ {
		gi := g.global(i)
		diag := -1
		rowsum := 0.0
		for e := g.RowOffsets[i]; e < g.RowOffsets[i+1]; e++ {
			j := g.ColIndex[e]
			if j == i {
				diag = e
				continue
			}
			gj := g.global(j)
			g.Coeff[e] = math.Cos(float64(gi + gj + gi*gj))
			rowsum += math.Abs(g.Coeff[e])
		}
		if diag < 0 {
			panic(fmt.Sprintf("sparse: row %v has no diagonal entry", i))
		}
		g.Coeff[diag] = DominanceCoeff * rowsum
	}
}

// Diagonal returns a new graph holding only the diagonal of g, or its
// reciprocal if reverse is true.  The result has no communication scheme:
// it never references halo nodes.
func (g *Graph) Diagonal(reverse bool) *Graph {
	n := g.Rows()
	d := &Graph{
		RowOffsets: make([]int, n+1),
		ColIndex:   make([]int, n),
		Coeff:      make([]float64, n),
		part:       g.part,
	}
	for i := 0; i < n; i++ {
		d.RowOffsets[i+1] = i + 1
		d.ColIndex[i] = i
		d.Coeff[i] = g.DiagonalAt(i)
		if reverse {
			d.Coeff[i] = 1 / d.Coeff[i]
		}
	}
	return d
}

// Dense returns g as a dense matrix.  It is meant for single-rank graphs;
// a graph with halo columns panics.
func (g *Graph) Dense() *mat64.Dense {
	n := g.Rows()
	m := mat64.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		cols, vals := g.Row(i)
		for k, j := range cols {
			if j >= n {
				panic("sparse: dense view of a graph with halo columns")
			}
			m.Set(i, j, m.At(i, j)+vals[k])
		}
	}
	return m
}

// Print writes every row with the global ids of its columns and its
// coefficients.
func (g *Graph) Print(w io.Writer) {
	for i := 0; i < g.Rows(); i++ {
		cols, vals := g.Row(i)
		fmt.Fprintf(w, "node %v\n    edges to:", g.global(i))
		for _, j := range cols {
			fmt.Fprintf(w, " %v", g.global(j))
		}
		fmt.Fprintf(w, "\n    coefficients:")
		for _, v := range vals {
			fmt.Fprintf(w, " %.6g", v)
		}
		fmt.Fprintf(w, "\n")
	}
}
