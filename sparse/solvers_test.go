package sparse

import (
	"sync"
	"testing"
	"time"

	"github.com/gonum/matrix/mat64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cheremnov/Parallel-Computing-CMC-2020/comm"
	"github.com/cheremnov/Parallel-Computing-CMC-2020/mesh"
)

func denseSolve(t *testing.T, g *Graph, b []float64) []float64 {
	t.Helper()
	var u mat64.Vector
	err := u.SolveVec(g.Dense(), mat64.NewVector(len(b), b))
	require.NoError(t, err)
	return u.RawVector().Data
}

func TestCG_dense(t *testing.T) {
	var tests = []mesh.Params{
		{RowLen: 1, ColumnLen: 1, NotDivided: 1, Divided: 0},
		{RowLen: 4, ColumnLen: 5, NotDivided: 1, Divided: 1},
		{RowLen: 6, ColumnLen: 6, NotDivided: 0, Divided: 1},
		{RowLen: 9, ColumnLen: 4, NotDivided: 3, Divided: 2},
	}

	for i, p := range tests {
		A := singleRank(t, p)
		A.FillMatrix()
		b := NewVector(comm.Self(), A.Rows())
		b.FillSin()

		want := denseSolve(t, A, append([]float64(nil), b.Data...))

		cg := &CG{Tol: 1e-20}
		res, err := cg.Solve(A, b)
		require.NoError(t, err)
		t.Logf("case %v: %v, %v iterations, |r|=%v", i+1, res.Reason, res.Iterations, res.ResidualNorm)
		t.Log(cg.Status())

		assert.Equal(t, Converged, res.Reason, "case %v", i+1)
		for j := range want {
			assert.InDelta(t, want[j], res.X.Data[j], tol, "case %v entry %v", i+1, j)
		}
	}
}

func TestCG_distributed(t *testing.T) {
	var tests = []mesh.Params{
		{RowLen: 6, ColumnLen: 6, NotDivided: 1, Divided: 2, BlockRows: 2, BlockColumns: 2},
		{RowLen: 8, ColumnLen: 5, NotDivided: 0, Divided: 1, BlockRows: 3, BlockColumns: 2},
		{RowLen: 5, ColumnLen: 7, NotDivided: 1, Divided: 0, BlockRows: 1, BlockColumns: 3},
	}

	for i, p := range tests {
		ref := singleRank(t, p)
		ref.FillMatrix()
		b := NewVector(comm.Self(), ref.Rows())
		for gid := range b.Data {
			b.Data[gid] = globalValue(gid)
		}
		single, err := (&CG{Tol: 1e-20}).Solve(ref, b)
		require.NoError(t, err)
		require.Equal(t, Converged, single.Reason)

		nprocs := p.BlockRows * p.BlockColumns
		got := make([]float64, p.Nodes())
		results := make([]*Result, nprocs)
		err = comm.Run(nprocs, func(c comm.Communicator) error {
			part := mesh.NewPartition(p, c.Rank(), nprocs)
			A := Generate(p, part)
			A.FillMatrix()
			A.CreateScheme()
			bl := NewVector(c, part.Owned)
			for local := range bl.Data {
				bl.Data[local] = globalValue(part.Global(local))
			}
			res, err := (&CG{Tol: 1e-20}).Solve(A, bl)
			if err != nil {
				return err
			}
			for local, v := range res.X.Data {
				got[part.Global(local)] = v
			}
			results[c.Rank()] = res
			return nil
		})
		require.NoError(t, err, "case %v", i+1)

		// every rank took the same path
		for _, res := range results[1:] {
			assert.Equal(t, results[0].Iterations, res.Iterations, "case %v", i+1)
			assert.Equal(t, results[0].Reason, res.Reason, "case %v", i+1)
			assert.Equal(t, results[0].ResidualNorm, res.ResidualNorm, "case %v", i+1)
		}
		for gid := range got {
			assert.InDelta(t, single.X.Data[gid], got[gid], 1e-9, "case %v node %v", i+1, gid)
		}
	}
}

func TestCG_resolve(t *testing.T) {
	A := singleRank(t, mesh.Params{RowLen: 5, ColumnLen: 5, NotDivided: 1, Divided: 1})
	A.FillMatrix()
	b := NewVector(comm.Self(), A.Rows())
	b.FillSin()

	first, err := (&CG{Tol: 1e-20}).Solve(A, b)
	require.NoError(t, err)
	require.Equal(t, Converged, first.Reason)

	x0 := first.X.Clone()
	again, err := (&CG{Tol: 1e-10, X0: first.X}).Solve(A, b)
	require.NoError(t, err)
	assert.Equal(t, Converged, again.Reason)
	assert.True(t, again.Iterations <= 1, "re-solve took %v iterations", again.Iterations)
	assert.InDeltaSlice(t, first.X.Data, again.X.Data, 1e-9)
	// the initial guess is not modified
	assert.Equal(t, x0.Data, first.X.Data)
	assert.NotSame(t, first.X, again.X)
}

func TestCG_resolveDistributed(t *testing.T) {
	var tests = []mesh.Params{
		{RowLen: 5, ColumnLen: 5, NotDivided: 0, Divided: 1, BlockRows: 3, BlockColumns: 3},
		{RowLen: 7, ColumnLen: 8, NotDivided: 1, Divided: 2, BlockRows: 2, BlockColumns: 3},
		{RowLen: 6, ColumnLen: 4, NotDivided: 1, Divided: 1, BlockRows: 4, BlockColumns: 1},
		{RowLen: 30, ColumnLen: 20, NotDivided: 2, Divided: 1, BlockRows: 1, BlockColumns: 1},
	}

	for i, p := range tests {
		nprocs := p.BlockRows * p.BlockColumns
		firsts := make([]*Result, nprocs)
		agains := make([]*Result, nprocs)
		err := comm.Run(nprocs, func(c comm.Communicator) error {
			part := mesh.NewPartition(p, c.Rank(), nprocs)
			A := Generate(p, part)
			A.FillMatrix()
			A.CreateScheme()
			b := NewVector(c, part.Owned)
			for local := range b.Data {
				b.Data[local] = globalValue(part.Global(local))
			}
			first, err := (&CG{Tol: 1e-20}).Solve(A, b)
			if err != nil {
				return err
			}
			again, err := (&CG{Tol: 1e-10, X0: first.X}).Solve(A, b)
			if err != nil {
				return err
			}
			firsts[c.Rank()], agains[c.Rank()] = first, again
			return nil
		})
		require.NoError(t, err, "case %v", i+1)

		t.Logf("case %v: first %v/%v, again %v/%v", i+1,
			firsts[0].Reason, firsts[0].Iterations, agains[0].Reason, agains[0].Iterations)
		for rank, again := range agains {
			assert.Equal(t, Converged, firsts[rank].Reason, "case %v rank %v", i+1, rank)
			assert.Equal(t, Converged, again.Reason, "case %v rank %v", i+1, rank)
			assert.True(t, again.Iterations <= 1, "case %v rank %v: re-solve took %v iterations", i+1, rank, again.Iterations)
			assert.Equal(t, agains[0].Iterations, again.Iterations, "case %v rank %v", i+1, rank)
			assert.Equal(t, agains[0].ResidualNorm, again.ResidualNorm, "case %v rank %v", i+1, rank)
			assert.InDeltaSlice(t, firsts[rank].X.Data, again.X.Data, 1e-9, "case %v rank %v", i+1, rank)
		}
	}
}

func TestCG_zeroPQ(t *testing.T) {
	A := NewGraph([]int{0, 1, 2}, []int{1, 0}, []float64{1, -1})
	identity := NewGraph([]int{0, 1, 2}, []int{0, 1}, []float64{1, 1})
	b := NewVectorFrom(comm.Self(), []float64{1, 1})

	res, err := (&CG{Tol: 1e-5, Preconditioner: identity}).Solve(A, b)
	require.NoError(t, err)
	assert.Equal(t, Stalled, res.Reason)
	assert.Equal(t, ZeroPQ, res.Cause)
	assert.Equal(t, 0, res.Iterations)
	assert.Equal(t, []float64{0, 0}, res.X.Data)
	assert.InDelta(t, 1.4142135623730951, res.ResidualNorm, 1e-15)
}

func TestCG_zeroRho(t *testing.T) {
	// an indefinite preconditioner makes r·z vanish while z does not
	A := NewGraph([]int{0, 1, 2}, []int{0, 1}, []float64{1, 1})
	M := NewGraph([]int{0, 1, 2}, []int{0, 1}, []float64{1, -1})
	b := NewVectorFrom(comm.Self(), []float64{1, 1})

	res, err := (&CG{Tol: 0, Preconditioner: M}).Solve(A, b)
	require.NoError(t, err)
	assert.Equal(t, Stalled, res.Reason)
	assert.Equal(t, ZeroRho, res.Cause)
	assert.Equal(t, 1, res.Iterations)
}

func TestCG_exactSolution(t *testing.T) {
	// with tol=0 an exact solve can never converge and stalls on the next
	// direction instead
	A := NewGraph([]int{0, 1, 2}, []int{0, 1}, []float64{2, 4})
	b := NewVectorFrom(comm.Self(), []float64{2, 4})

	res, err := (&CG{Tol: 0}).Solve(A, b)
	require.NoError(t, err)
	assert.Equal(t, Stalled, res.Reason)
	assert.Equal(t, ZeroPQ, res.Cause)
	assert.Equal(t, 1, res.Iterations)
	assert.Equal(t, []float64{1, 1}, res.X.Data)
	assert.Equal(t, 0.0, res.ResidualNorm)
}

func TestCG_maxIterations(t *testing.T) {
	A := singleRank(t, mesh.Params{RowLen: 6, ColumnLen: 6, NotDivided: 1, Divided: 2})
	A.FillMatrix()
	b := NewVector(comm.Self(), A.Rows())
	b.FillSin()

	res, err := (&CG{Tol: 1e-30, MaxIter: 2}).Solve(A, b)
	require.NoError(t, err)
	assert.Equal(t, MaxIterations, res.Reason)
	assert.Equal(t, NoCause, res.Cause)
	assert.Equal(t, 2, res.Iterations)
	assert.True(t, res.ResidualNorm > 0)
}

func TestCG_lengthMismatch(t *testing.T) {
	A := NewGraph([]int{0, 1, 2}, []int{0, 1}, []float64{2, 4})
	_, err := (&CG{}).Solve(A, NewVector(comm.Self(), 3))
	assert.Error(t, err)

	_, err = (&CG{X0: NewVector(comm.Self(), 1)}).Solve(A, NewVector(comm.Self(), 2))
	assert.Error(t, err)

	M := NewGraph([]int{0, 1}, []int{0}, []float64{1})
	_, err = (&CG{Preconditioner: M}).Solve(A, NewVector(comm.Self(), 2))
	assert.Error(t, err)
}

type countMeter struct {
	mu    sync.Mutex
	calls map[string]int
}

func (m *countMeter) Observe(op string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[op]++
}

func TestCG_meter(t *testing.T) {
	A := singleRank(t, mesh.Params{RowLen: 3, ColumnLen: 3, NotDivided: 1, Divided: 1})
	A.FillMatrix()
	b := NewVector(comm.Self(), A.Rows())
	b.FillSin()

	m := &countMeter{calls: map[string]int{}}
	res, err := (&CG{Tol: 1e-12, Meter: m}).Solve(A, b)
	require.NoError(t, err)
	require.Equal(t, Converged, res.Reason)

	k := res.Iterations
	assert.Equal(t, k+1, m.calls[OpPrecon])
	assert.Equal(t, k, m.calls[OpSpMV])
	// rho every pass, p·q per update and the final norm
	assert.Equal(t, (k+1)+k+1, m.calls[OpDot])
	assert.Equal(t, k+k-1, m.calls[OpLinComb])
}

func TestReason_String(t *testing.T) {
	assert.Equal(t, "converged", Converged.String())
	assert.Equal(t, "stalled", Stalled.String())
	assert.Equal(t, "max iterations", MaxIterations.String())
	assert.Equal(t, "zero p.q", ZeroPQ.String())
}
