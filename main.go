// Command pcg solves a synthetic sparse linear system on a partitioned 2-D
// mesh with a distributed Jacobi-preconditioned conjugate gradient method.
//
// Usage:
//
//	pcg [flags] PARAMFILE
//
// PARAMFILE holds whitespace separated integers
//
//	row_len column_len not_divided divided [block_rows block_columns]
//
// The ranks run either as goroutines of this process (-transport world, the
// default) or as separate processes connected by github.com/btracey/mpi
// (-transport mpi, with its -mpi-addr and -mpi-alladdr flags).
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/btracey/mpi"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/cheremnov/Parallel-Computing-CMC-2020/comm"
	"github.com/cheremnov/Parallel-Computing-CMC-2020/mesh"
)

func main() {
	flags := registerFlags(flag.CommandLine)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %v [flags] PARAMFILE\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	log := newLogger(os.Stderr, *flags.debug)
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := flags.buildConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("bad configuration")
	}
	log = newLogger(os.Stderr, cfg.Debug)

	p, err := readParams(flag.Arg(0))
	if err != nil {
		log.Fatal().Err(err).Msg("bad mesh parameters")
	}

	switch cfg.Transport {
	case transportWorld:
		err = runWorld(p, cfg, log, os.Stdout)
	case transportMPI:
		err = runMPI(p, cfg, log, os.Stdout)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("run failed")
	}
}

func readParams(path string) (mesh.Params, error) {
	f, err := os.Open(path)
	if err != nil {
		return mesh.Params{}, errors.Wrap(err, "open parameter file")
	}
	defer f.Close()
	p, err := mesh.ParseParams(f)
	return p, errors.Wrapf(err, "parameter file %v", path)
}

// runWorld runs every rank as a goroutine of this process.
func runWorld(p mesh.Params, cfg Config, log zerolog.Logger, out io.Writer) error {
	n := cfg.Procs
	if n == 0 {
		n = p.BlockRows * p.BlockColumns
	}
	if err := p.CheckProcs(n); err != nil {
		return err
	}
	return comm.Run(n, func(c comm.Communicator) error {
		_, err := run(c, p, cfg, log, out)
		return err
	})
}

// runMPI runs this process as one rank of an mpi job.  flag.Parse must
// have been called so the mpi flags are set.
func runMPI(p mesh.Params, cfg Config, log zerolog.Logger, out io.Writer) error {
	if err := mpi.Init(); err != nil {
		return errors.Wrap(err, "mpi init")
	}
	defer mpi.Finalize()

	c, err := comm.NewMPI()
	if err != nil {
		return err
	}
	if err := p.CheckProcs(c.Size()); err != nil {
		return err
	}
	_, err = run(c, p, cfg, log, out)
	return err
}
