package main

import (
	"flag"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"

	"github.com/cheremnov/Parallel-Computing-CMC-2020/sparse"
)

// Config holds the run settings that are not part of the mesh.  It can be
// read from a TOML file; flags given on the command line take precedence.
type Config struct {
	// Procs is the number of in-process ranks for the world transport.
	// Zero means BlockRows*BlockColumns of the mesh.
	Procs     int     `toml:"procs"`
	Tol       float64 `toml:"tol"`
	MaxIter   int     `toml:"max_iter"`
	RHS       string  `toml:"rhs"`
	Transport string  `toml:"transport"`
	Debug     bool    `toml:"debug"`
	Measure   bool    `toml:"measure"`
}

func defaultConfig() Config {
	return Config{
		Tol:       1e-5,
		MaxIter:   sparse.DefaultMaxIter,
		RHS:       rhsSin,
		Transport: transportWorld,
	}
}

const (
	transportWorld = "world"
	transportMPI   = "mpi"
)

// loadConfig decodes the TOML file at path over cfg.  Keys missing from
// the file keep their current value.
func loadConfig(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "read run config")
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return errors.Wrapf(err, "parse run config %v", path)
	}
	return nil
}

func (c Config) validate() error {
	if c.Procs < 0 {
		return errors.Errorf("invalid process count %v", c.Procs)
	}
	if c.Tol < 0 {
		return errors.Errorf("invalid tolerance %v", c.Tol)
	}
	if c.MaxIter < 1 {
		return errors.Errorf("invalid iteration limit %v", c.MaxIter)
	}
	switch c.RHS {
	case rhsSin, rhsLoad:
	default:
		return errors.Errorf("unknown right-hand side %q", c.RHS)
	}
	switch c.Transport {
	case transportWorld, transportMPI:
	default:
		return errors.Errorf("unknown transport %q", c.Transport)
	}
	return nil
}

// cliFlags are the command line switches mirroring Config.
type cliFlags struct {
	fs        *flag.FlagSet
	config    *string
	procs     *int
	tol       *float64
	maxIter   *int
	rhs       *string
	transport *string
	debug     *bool
	measure   *bool
}

func registerFlags(fs *flag.FlagSet) *cliFlags {
	def := defaultConfig()
	return &cliFlags{
		fs:        fs,
		config:    fs.String("config", "", "TOML file with run settings"),
		procs:     fs.Int("np", def.Procs, "number of in-process ranks (0 = block rows * block columns)"),
		tol:       fs.Float64("tol", def.Tol, "convergence threshold on r.z"),
		maxIter:   fs.Int("maxiter", def.MaxIter, "maximum number of CG iterations"),
		rhs:       fs.String("rhs", def.RHS, "right-hand side: sin or load"),
		transport: fs.String("transport", def.Transport, "rank transport: world or mpi"),
		debug:     fs.Bool("d", def.Debug, "debug output: per-iteration rho, graph and scheme dumps"),
		measure:   fs.Bool("measure", def.Measure, "report phase and vector operation timings"),
	}
}

// buildConfig returns the effective configuration: defaults, then the -config
// file if any, then every flag set explicitly.
func (f *cliFlags) buildConfig() (Config, error) {
	cfg := defaultConfig()
	if *f.config != "" {
		if err := loadConfig(*f.config, &cfg); err != nil {
			return cfg, err
		}
	}
	f.fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "np":
			cfg.Procs = *f.procs
		case "tol":
			cfg.Tol = *f.tol
		case "maxiter":
			cfg.MaxIter = *f.maxIter
		case "rhs":
			cfg.RHS = *f.rhs
		case "transport":
			cfg.Transport = *f.transport
		case "d":
			cfg.Debug = *f.debug
		case "measure":
			cfg.Measure = *f.measure
		}
	})
	return cfg, cfg.validate()
}
