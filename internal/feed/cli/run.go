package cli

import (
	"github.com/spf13/cobra"

	"github.com/chenzhangda16/web3-feed/internal/feed/config"
	"github.com/chenzhangda16/web3-feed/internal/feed/pipeline"
)

type runFlags struct {
	seed        string
	limit       int
	iterations  int
	weight      float64
	decay       float64
	now         float64
	workers     int
	tolerance   float64
	excludeSeed bool
	skip        bool
	outDir      string
	quiet       bool
}

func newRunCmd(rf *rootFlags) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Compute peer trust and topic scores and save both outputs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := rf.load()
			if err != nil {
				return err
			}
			f.apply(cmd, cfg)

			r := pipeline.NewRunner(cfg)
			if !f.quiet {
				r.Summary = cmd.OutOrStdout()
			}
			_, err = r.Run(cmd.Context())
			return err
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.seed, "seed", "", "seed address")
	fl.IntVar(&f.limit, "limit", 0, "hop limit of the vicinity")
	fl.IntVar(&f.iterations, "iterations", 0, "power-iteration rounds")
	fl.Float64Var(&f.weight, "weight", 0, "pre-trust weight in [0,1]")
	fl.Float64Var(&f.decay, "decay", 0, "topic decay rate per hour")
	fl.Float64Var(&f.now, "now", 0, "decay clock in hours since epoch (default: wall clock)")
	fl.IntVar(&f.workers, "workers", 0, "goroutines for row normalisation")
	fl.Float64Var(&f.tolerance, "tolerance", 0, "stop early once a round changes scores by at most this L1 amount")
	fl.BoolVar(&f.excludeSeed, "exclude-seed", false, "do not let peers pass trust back to the seed")
	fl.BoolVar(&f.skip, "skip-unchanged", false, "do nothing when inputs and parameters match the last run in --out")
	fl.StringVar(&f.outDir, "out", "", "directory for the manifest and lock")
	fl.BoolVarP(&f.quiet, "quiet", "q", false, "do not print the result tables")
	return cmd
}

// apply overlays only the flags the user set, so config values survive.
func (f *runFlags) apply(cmd *cobra.Command, c *config.Config) {
	fl := cmd.Flags()
	if fl.Changed("seed") {
		c.Seed = f.seed
	}
	if fl.Changed("limit") {
		c.Limit = f.limit
	}
	if fl.Changed("iterations") {
		c.Iterations = f.iterations
	}
	if fl.Changed("weight") {
		c.PreTrustWeight = f.weight
	}
	if fl.Changed("decay") {
		c.DecayRate = f.decay
	}
	if fl.Changed("now") {
		now := f.now
		c.NowHours = &now
	}
	if fl.Changed("workers") {
		c.Workers = f.workers
	}
	if fl.Changed("tolerance") {
		c.Tolerance = f.tolerance
	}
	if fl.Changed("exclude-seed") {
		c.ExcludeSeed = f.excludeSeed
	}
	if fl.Changed("skip-unchanged") {
		c.SkipUnchanged = f.skip
	}
	if fl.Changed("out") {
		c.OutDir = f.outDir
	}
}
