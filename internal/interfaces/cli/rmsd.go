package cli

import (
	"github.com/spf13/cobra"

	"github.com/turtacn/molfilter/internal/application/screening"
	"github.com/turtacn/molfilter/internal/config"
	"github.com/turtacn/molfilter/internal/domain/substructure"
	"github.com/turtacn/molfilter/internal/infrastructure/chemio"
	"github.com/turtacn/molfilter/internal/infrastructure/monitoring/logging"
)

type rmsdOptions struct {
	reference        string
	candidates       string
	format           string
	smarts           string
	threshold        float64
	output           string
	policy           string
	superpose        bool
	bestPose         bool
	excludeIdentical bool
	maxMatches       int
	workers          int
}

// NewRMSDFilterCommand creates the rmsd-filter root command.
func NewRMSDFilterCommand() *cobra.Command {
	opts := &rmsdOptions{}

	cmd, _ := newToolCommand("rmsd-filter",
		"Keep docked poses that reproduce a reference binding mode",
		`Match a SMARTS pattern in a reference ligand and in every candidate pose,
compute the RMSD over the matched atoms and write every pose whose RMSD is at
most the threshold.  Poses are assumed to share the reference frame unless
--superpose is given.

Policies for candidates with several matches:
  any    pass if any match is within the threshold (default)
  first  score only the first match
  all    every match must be within the threshold

Examples:
  rmsd-filter -r crystal.sdf -c poses.sdf.gz -s 'c1ccc2[nH]ccc2c1' -t 1.5 -o kept.sdf.gz
  rmsd-filter -r ref.mol2 -c dock.mol2 -s '[#6]1:[#6]:[#6]:[#6]:[#6]:[#6]:1' --best-pose -o best.mol2`)

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		cc, err := GetCLIContext(cmd)
		if err != nil {
			return err
		}
		applyFilterDefaults(cmd, cc.Config.Filter, opts)
		if err := requireFlags(map[string]string{"reference": opts.reference, "candidates": opts.candidates, "smarts": opts.smarts, "output": opts.output}); err != nil {
			return err
		}
		if err := checkWorkers(opts.workers); err != nil {
			return err
		}

		q, err := substructure.Compile(opts.smarts)
		if err != nil {
			return err
		}
		parse := chemio.ParseOptions{KeepHydrogens: q.NeedsExplicitH()}
		ref, err := chemio.LoadStructure(cmd.Context(), opts.reference, chemio.LoadOptions{Store: cc.Store, Parse: parse})
		if err != nil {
			return err
		}
		cc.Logger.Debug("reference loaded",
			logging.String("path", opts.reference),
			logging.String("name", ref.Name),
			logging.Int("atoms", ref.NumAtoms()))

		p, err := screening.NewBindingModeMatch(ref, q, screening.BindingModeOptions{
			Threshold:        opts.threshold,
			Policy:           opts.policy,
			Superpose:        opts.superpose,
			ExcludeIdentical: opts.excludeIdentical,
			MaxMatches:       opts.maxMatches,
			KeepHydrogens:    parse.KeepHydrogens,
		})
		if err != nil {
			return err
		}

		return runFilter(cmd.Context(), cc, RunOptions{
			Input:       opts.candidates,
			InputFormat: opts.format,
			Output:      opts.output,
			Workers:     opts.workers,
			Predicate:   p,
			BestPose:    opts.bestPose,
		})
	}

	f := cmd.Flags()
	f.StringVarP(&opts.reference, "reference", "r", "", "reference ligand with 3D coordinates")
	f.StringVarP(&opts.candidates, "candidates", "c", "", "candidate poses (sdf or mol2)")
	f.StringVar(&opts.format, "format", "", "candidate format when it cannot be told from the name (sdf, mol2)")
	f.StringVarP(&opts.smarts, "smarts", "s", "", "SMARTS pattern defining the compared atoms")
	f.Float64VarP(&opts.threshold, "threshold", "t", config.DefaultRMSDThreshold, "RMSD threshold in Å, inclusive")
	f.StringVarP(&opts.output, "output", "o", "", "output path, - for stdout")
	f.StringVar(&opts.policy, "policy", config.PolicyAny, "multi-match policy: any, first or all")
	f.BoolVar(&opts.superpose, "superpose", false, "superpose matched atoms before scoring")
	f.BoolVar(&opts.bestPose, "best-pose", false, "keep only the lowest-energy passing pose per ligand")
	f.BoolVar(&opts.excludeIdentical, "exclude-identical", false, "fail poses identical to the reference (RMSD 0)")
	f.IntVar(&opts.maxMatches, "max-matches", config.DefaultMaxMatches, "cap on enumerated pattern matches per pose")
	f.IntVarP(&opts.workers, "workers", "n", 1, "parallel evaluators")

	return cmd
}

// applyFilterDefaults fills flags the user did not set from the filter
// config section.
func applyFilterDefaults(cmd *cobra.Command, fc config.FilterConfig, opts *rmsdOptions) {
	fs := cmd.Flags()
	if !flagChanged(fs, "threshold") {
		opts.threshold = fc.RMSDThreshold
	}
	if !flagChanged(fs, "policy") {
		opts.policy = fc.Policy
	}
	if !flagChanged(fs, "max-matches") {
		opts.maxMatches = fc.MaxMatches
	}
	if !flagChanged(fs, "workers") {
		opts.workers = fc.Workers
	}
}
