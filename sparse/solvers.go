package sparse

import (
	"bytes"
	"fmt"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// DefaultMaxIter is the iteration limit used when CG.MaxIter is zero.
const DefaultMaxIter = 10000

// Reason tells why a solve stopped.
type Reason int

const (
	Converged Reason = iota
	Stalled
	MaxIterations
)

func (r Reason) String() string {
	switch r {
	case Converged:
		return "converged"
	case Stalled:
		return "stalled"
	case MaxIterations:
		return "max iterations"
	}
	return fmt.Sprintf("Reason(%d)", int(r))
}

// Cause names the breakdown that stalled a solve.
type Cause int

const (
	NoCause Cause = iota
	// ZeroRho: the previous r·z was zero, so no new direction exists.
	ZeroRho
	// ZeroPQ: p·(A·p) was zero, so the step length is undefined.
	ZeroPQ
)

func (c Cause) String() string {
	switch c {
	case NoCause:
		return "none"
	case ZeroRho:
		return "zero rho"
	case ZeroPQ:
		return "zero p.q"
	}
	return fmt.Sprintf("Cause(%d)", int(c))
}

// Result is the outcome of a solve.  X is the last iterate whatever the
// reason.
type Result struct {
	X            *Vector
	Iterations   int
	ResidualNorm float64
	Reason       Reason
	Cause        Cause
}

// CG implements a distributed preconditioned conjugate gradient solver (see
// http://wikipedia.org/wiki/Conjugate_gradient_method).  Every rank calls
// Solve with its own part of the system; all branch decisions are taken on
// reduced scalars, so the ranks stay in lock-step.
type CG struct {
	// MaxIter bounds the number of iterations.  Zero means DefaultMaxIter.
	MaxIter int
	// Tol is compared against rho = r·z.  The solve converges once rho
	// falls below it.
	Tol float64
	// X0 is the initial guess.  If it is nil the solve starts from zero.
	X0 *Vector
	// Preconditioner is the matrix M⁻¹ applied to the residual each
	// iteration. If it is nil, the inverse diagonal of A (Jacobi) is used.
	Preconditioner *Graph
	// Meter receives the duration of every vector operation.  Nil means
	// NopMeter.
	Meter Meter
	// Log gets one debug event per iteration.  The zero Logger discards
	// them.
	Log zerolog.Logger

	niter int
	ndof  int
}

func (cg *CG) Status() string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "CG Solver Stats:\n")
	fmt.Fprintf(&buf, "    %v local dof\n", cg.ndof)
	fmt.Fprintf(&buf, "    %v iterations", cg.niter)
	return buf.String()
}

func (cg *CG) Solve(A *Graph, b *Vector) (*Result, error) {
	size := A.Rows()
	if len(b.Data) != size {
		return nil, errors.Errorf("sparse: right-hand side has %v values, matrix has %v rows", len(b.Data), size)
	}
	if cg.X0 != nil && len(cg.X0.Data) != size {
		return nil, errors.Errorf("sparse: initial guess has %v values, matrix has %v rows", len(cg.X0.Data), size)
	}
	M := cg.Preconditioner
	if M == nil {
		M = A.Diagonal(true)
	}
	if M.Rows() != size {
		return nil, errors.Errorf("sparse: preconditioner has %v rows, matrix has %v", M.Rows(), size)
	}
	maxIter := cg.MaxIter
	if maxIter <= 0 {
		maxIter = DefaultMaxIter
	}
	meter := cg.Meter
	if meter == nil {
		meter = NopMeter{}
	}
	cg.ndof = size
	cg.niter = 0

	var x, r *Vector
	if cg.X0 != nil {
		x = cg.X0.Clone()
		var ax *Vector
		measure(meter, OpSpMV, func() { ax = MulVec(A, x) })
		measure(meter, OpLinComb, func() { r = LinearCombination(b, ax, 1, -1) })
	} else {
		x = NewVector(b.c, size)
		r = b.Clone()
	}

	res := &Result{X: x}
	var z, p, q *Vector
	var rho, rhoPrev, pq float64
	for k := 1; ; k++ {
		measure(meter, OpPrecon, func() { z = MulVec(M, r) })
		measure(meter, OpDot, func() { rho = Dot(r, z) })
		cg.Log.Debug().Int("iter", k).Float64("rho", rho).Msg("cg")

		if rho < cg.Tol {
			res.Reason = Converged
			break
		}
		if k > maxIter {
			res.Reason = MaxIterations
			break
		}

		if k == 1 {
			p = z.Clone()
		} else {
			if rhoPrev == 0 {
				res.Reason, res.Cause = Stalled, ZeroRho
				break
			}
			beta := rho / rhoPrev
			measure(meter, OpLinComb, func() { linearCombinationTo(p, 1, z, beta, p) })
		}

		measure(meter, OpSpMV, func() { q = MulVec(A, p) })
		measure(meter, OpDot, func() { pq = Dot(p, q) })
		if pq == 0 {
			res.Reason, res.Cause = Stalled, ZeroPQ
			break
		}

		alpha := rho / pq
		measure(meter, OpLinComb, func() {
			linearCombinationTo(x, 1, x, alpha, p)
			linearCombinationTo(r, 1, r, -alpha, q)
		})
		rhoPrev = rho
		res.Iterations = k
	}

	cg.niter = res.Iterations
	measure(meter, OpDot, func() { res.ResidualNorm = r.L2() })
	return res, nil
}
