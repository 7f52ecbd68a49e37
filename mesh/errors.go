package mesh

import "errors"

var (
	// ErrParse indicates the parameter record could not be read.
	ErrParse = errors.New("mesh: cannot parse parameters")
	// ErrDimension indicates a negative or too large row/column count.
	ErrDimension = errors.New("mesh: mesh dimension out of range")
	// ErrCells indicates a divided/not-divided cell count out of range.
	ErrCells = errors.New("mesh: cell count out of range")
	// ErrPattern indicates an empty division period.
	ErrPattern = errors.New("mesh: division pattern has zero period")
	// ErrBlocks indicates a block geometry that cannot tile the mesh.
	ErrBlocks = errors.New("mesh: invalid block geometry")
	// ErrProcs indicates the block geometry does not match the process count.
	ErrProcs = errors.New("mesh: block geometry does not match process count")
)
