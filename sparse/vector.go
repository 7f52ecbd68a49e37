package sparse

import (
	"math"

	"github.com/gonum/floats"

	"github.com/cheremnov/Parallel-Computing-CMC-2020/comm"
)

// Vector is a distributed vector: Data holds the values of the owned nodes
// of the local rank, and reductions run over every rank of c.
type Vector struct {
	Data []float64
	c    comm.Communicator
}

// NewVector returns a zero vector of n owned values.
func NewVector(c comm.Communicator, n int) *Vector {
	return &Vector{Data: make([]float64, n), c: c}
}

// NewVectorFrom wraps data without copying it.
func NewVectorFrom(c comm.Communicator, data []float64) *Vector {
	return &Vector{Data: data, c: c}
}

// Len returns the number of owned values.
func (v *Vector) Len() int { return len(v.Data) }

// Comm returns the communicator reductions on v run over.
func (v *Vector) Comm() comm.Communicator { return v.c }

// Clone returns a deep copy of v.
func (v *Vector) Clone() *Vector {
	return &Vector{Data: append([]float64(nil), v.Data...), c: v.c}
}

// CopyFrom overwrites v with the values of src.
func (v *Vector) CopyFrom(src *Vector) {
	if len(v.Data) != len(src.Data) {
		panic("inconsistent lengths for vector copy")
	}
	copy(v.Data, src.Data)
}

// FillSin sets every value to the sine of its local index.
func (v *Vector) FillSin() {
	for i := range v.Data {
		v.Data[i] = math.Sin(float64(i))
	}
}

// Dot returns the global dot product of a and b.  Every rank gets the same
// value.
func Dot(a, b *Vector) float64 {
	if len(a.Data) != len(b.Data) {
		panic("inconsistent lengths for dot product")
	}
	return comm.AllSum(a.c, floats.Dot(a.Data, b.Data))
}

// L2 returns the global Euclidean norm of v.
func (v *Vector) L2() float64 {
	return math.Sqrt(Dot(v, v))
}

// LinearCombination returns alpha*a + beta*b.
func LinearCombination(a, b *Vector, alpha, beta float64) *Vector {
	res := NewVector(a.c, len(a.Data))
	linearCombinationTo(res, alpha, a, beta, b)
	return res
}

// linearCombinationTo stores alpha*a + beta*b in dst.  dst may alias a or
// b but not both.
func linearCombinationTo(dst *Vector, alpha float64, a *Vector, beta float64, b *Vector) {
	if len(dst.Data) != len(a.Data) || len(a.Data) != len(b.Data) {
		panic("inconsistent lengths for linear combination")
	}
	if len(dst.Data) == 0 {
		return
	}
	if &dst.Data[0] == &b.Data[0] {
		// p = z + beta*p
		floats.Scale(beta, dst.Data)
		floats.AddScaled(dst.Data, alpha, a.Data)
		return
	}
	copy(dst.Data, a.Data)
	floats.Scale(alpha, dst.Data)
	floats.AddScaled(dst.Data, beta, b.Data)
}
