package main

import (
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/cheremnov/Parallel-Computing-CMC-2020/comm"
	"github.com/cheremnov/Parallel-Computing-CMC-2020/mesh"
	"github.com/cheremnov/Parallel-Computing-CMC-2020/sparse"
)

// newLogger returns the console logger every rank logs through.
func newLogger(w io.Writer, debug bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}).
		Level(level).With().Timestamp().Logger()
}

// run is the per-rank body of the program: build this rank's part of the
// system, solve it and report.  Every rank of c calls it with the same
// arguments.  Debug dumps go to out, one rank at a time.
func run(c comm.Communicator, p mesh.Params, cfg Config, base zerolog.Logger, out io.Writer) (*sparse.Result, error) {
	log := base.With().Int("rank", c.Rank()).Logger()
	root := c.Rank() == 0

	// phase times are reported by rank 0 only, as in a job log
	phase := func(name string, fn func()) {
		t0 := time.Now()
		fn()
		if cfg.Measure && root {
			log.Info().Dur("elapsed", time.Since(t0)).Msgf("%v time", name)
		}
	}

	start := time.Now()
	part := mesh.NewPartition(p, c.Rank(), c.Size())
	log.Debug().Stringer("partition", part).Msg("partition")

	var A *sparse.Graph
	phase("generate", func() { A = sparse.Generate(p, part) })

	b := sparse.NewVector(c, part.Owned)
	var err error
	phase("fill", func() {
		A.FillMatrix()
		err = fillRHS(cfg.RHS, part, b)
		A.CreateScheme()
	})
	if err != nil {
		return nil, err
	}

	timer := newOpTimer()
	cg := &sparse.CG{MaxIter: cfg.MaxIter, Tol: cfg.Tol, Log: log}
	if cfg.Measure {
		cg.Meter = timer
	}
	var res *sparse.Result
	phase("solver", func() { res, err = cg.Solve(A, b) })
	if err != nil {
		return nil, err
	}

	if root {
		log.Info().
			Int("iterations", res.Iterations).
			Float64("residual", res.ResidualNorm).
			Stringer("reason", res.Reason).
			Msg("solve finished")
		if res.Reason == sparse.Stalled {
			log.Warn().Stringer("cause", res.Cause).Msg("solver stalled")
		}
		if cfg.Measure {
			log.Info().Dur("elapsed", time.Since(start)).Msg("total time")
		}
	}
	if cfg.Measure {
		timer.log(log)
	}
	if cfg.Debug {
		log.Debug().Msg(cg.Status())
		for r := 0; r < c.Size(); r++ {
			if r == c.Rank() {
				A.Print(out)
				A.Scheme().Print(out)
				printSolution(out, part, res.X)
			}
			c.Barrier()
		}
	}
	return res, nil
}

// printSolution writes the owned values of x keyed by global id.
func printSolution(w io.Writer, part *mesh.Partition, x *sparse.Vector) {
	for local, v := range x.Data {
		fmt.Fprintf(w, "x[%v] = %.6g\n", part.Global(local), v)
	}
}
