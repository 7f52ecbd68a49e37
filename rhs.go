package main

import (
	"math"

	"github.com/gonum/integrate/quad"
	"github.com/pkg/errors"

	"github.com/cheremnov/Parallel-Computing-CMC-2020/mesh"
	"github.com/cheremnov/Parallel-Computing-CMC-2020/sparse"
)

const (
	rhsSin  = "sin"
	rhsLoad = "load"
)

// loadPoints is the number of Gauss-Legendre points per node integral.
const loadPoints = 8

// fillRHS sets the right-hand side b for the owned nodes of part.
//
// "sin" is sin of the local index, so it depends on the decomposition.
// "load" integrates sin(x) over [g-1/2, g+1/2] around each node's global id
// g and gives the same global vector for any number of ranks.
func fillRHS(kind string, part *mesh.Partition, b *sparse.Vector) error {
	switch kind {
	case rhsSin:
		b.FillSin()
	case rhsLoad:
		for i := range b.Data {
			g := float64(part.Global(i))
			b.Data[i] = quad.Fixed(math.Sin, g-0.5, g+0.5, loadPoints, quad.Legendre{}, 0)
		}
	default:
		return errors.Errorf("unknown right-hand side %q", kind)
	}
	return nil
}
