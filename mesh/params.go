// Package mesh describes the logical row×column mesh the linear system is
// generated from and splits it into rectangular blocks, one per process.
//
// A mesh with RowLen rows and ColumnLen columns of cells has
// (RowLen+1)×(ColumnLen+1) nodes.  Cells are cut along their
// bottom-left/top-right diagonal following a periodic pattern: NotDivided
// whole cells, then Divided cut cells, then NotDivided whole cells again and
// so on, counted over cells in row-major order:
//
//	N------N------N------N    row
//	|      |    / |      |
//	|      |  /   |      |
//	N------N------N------N    row + 1
package mesh

import (
	"bufio"
	"io"
	"strconv"

	"github.com/pkg/errors"
)

const (
	// MaxDimension bounds both the row and the column count.
	MaxDimension = 10000
	// MaxCells bounds the divided and not divided cell counts of the
	// division period.
	MaxCells = MaxDimension * MaxDimension
)

// Params is the immutable description of a mesh and of the block grid it is
// distributed over.  BlockRows*BlockColumns must equal the process count.
type Params struct {
	RowLen     int
	ColumnLen  int
	NotDivided int
	Divided    int
	// BlockRows and BlockColumns give the shape of the block grid.  Block
	// (i, j) is processed by rank i*BlockColumns+j.
	BlockRows    int
	BlockColumns int
}

// ParseParams reads a whitespace separated parameter record of the form
//
//	row_len column_len not_divided divided [block_rows block_columns]
//
// A missing block geometry means a single block.  The returned Params have
// been validated.
func ParseParams(r io.Reader) (Params, error) {
	s := bufio.NewScanner(r)
	s.Split(bufio.ScanWords)

	var vals []int
	for s.Scan() {
		v, err := strconv.Atoi(s.Text())
		if err != nil {
			return Params{}, errors.Wrapf(ErrParse, "field %v: %v", len(vals)+1, err)
		}
		vals = append(vals, v)
	}
	if err := s.Err(); err != nil {
		return Params{}, errors.Wrap(ErrParse, err.Error())
	}

	switch len(vals) {
	case 4:
		vals = append(vals, 1, 1)
	case 6:
	default:
		return Params{}, errors.Wrapf(ErrParse, "want 4 or 6 integers, got %v", len(vals))
	}

	p := Params{
		RowLen:       vals[0],
		ColumnLen:    vals[1],
		NotDivided:   vals[2],
		Divided:      vals[3],
		BlockRows:    vals[4],
		BlockColumns: vals[5],
	}
	if err := p.Validate(); err != nil {
		return Params{}, err
	}
	return p, nil
}

// Validate checks p against the dimension and cell limits and checks that
// the block grid can tile the mesh with every block owning at least one
// node.
func (p Params) Validate() error {
	if p.RowLen < 0 || p.ColumnLen < 0 || p.RowLen > MaxDimension || p.ColumnLen > MaxDimension {
		return errors.Wrapf(ErrDimension, "row_len=%v column_len=%v (max %v)", p.RowLen, p.ColumnLen, MaxDimension)
	}
	if p.NotDivided < 0 || p.Divided < 0 || p.NotDivided > MaxCells || p.Divided > MaxCells {
		return errors.Wrapf(ErrCells, "not_divided=%v divided=%v (max %v)", p.NotDivided, p.Divided, MaxCells)
	}
	if p.NotDivided+p.Divided == 0 {
		return errors.WithStack(ErrPattern)
	}
	if p.BlockRows < 1 || p.BlockColumns < 1 {
		return errors.Wrapf(ErrBlocks, "%vx%v blocks", p.BlockRows, p.BlockColumns)
	}
	if p.BlockRows > p.RowLen+1 || p.BlockColumns > p.ColumnLen+1 {
		return errors.Wrapf(ErrBlocks, "%vx%v blocks for %vx%v nodes", p.BlockRows, p.BlockColumns, p.RowLen+1, p.ColumnLen+1)
	}
	return nil
}

// CheckProcs verifies that the block grid has exactly one block per process.
func (p Params) CheckProcs(nprocs int) error {
	if p.BlockRows*p.BlockColumns != nprocs {
		return errors.Wrapf(ErrProcs, "%vx%v blocks for %v processes", p.BlockRows, p.BlockColumns, nprocs)
	}
	return nil
}

// Nodes returns the number of nodes in the whole mesh.
func (p Params) Nodes() int { return (p.RowLen + 1) * (p.ColumnLen + 1) }

// GlobalID returns the mesh-wide id of the node at (row, col).
func (p Params) GlobalID(row, col int) int { return row*(p.ColumnLen+1) + col }

// Coords is the inverse of GlobalID.
func (p Params) Coords(gid int) (row, col int) { return gid / (p.ColumnLen + 1), gid % (p.ColumnLen + 1) }

// CellDivided reports whether the cell whose top-left node is (row, col) is
// cut by a diagonal.  The cell must lie inside the mesh.
func (p Params) CellDivided(row, col int) bool {
	idx := row*p.ColumnLen + col
	return idx%(p.NotDivided+p.Divided) >= p.NotDivided
}
