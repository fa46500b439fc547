package cli

import (
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/molfilter/internal/application/screening"
	"github.com/turtacn/molfilter/internal/domain/substructure"
	"github.com/turtacn/molfilter/pkg/errors"
)

type patternOptions struct {
	input     string
	format    string
	pattern   string
	output    string
	maxWeight float64
	reverse   bool
	workers   int
}

// NewPatternFilterCommand creates the pattern-filter root command.
func NewPatternFilterCommand() *cobra.Command {
	opts := &patternOptions{}

	cmd, _ := newToolCommand("pattern-filter",
		"Keep molecules that contain a SMARTS pattern",
		`Stream a molecule library and write every record containing at least one
match of the SMARTS pattern.  Records are copied byte for byte and in input
order.  Records that cannot be parsed are skipped with a warning.

Examples:
  pattern-filter -i library.smi.gz -p 'c1ccccc1[OH]' -o phenols.smi.gz
  pattern-filter -i library.sdf -p '[#7]' -r -w 500 -n 8 -o - > no_nitrogen.sdf`)

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		cc, err := GetCLIContext(cmd)
		if err != nil {
			return err
		}
		fs := cmd.Flags()
		if !flagChanged(fs, "max-weight") {
			opts.maxWeight = cc.Config.Filter.MaxWeight
		}
		if !flagChanged(fs, "workers") {
			opts.workers = cc.Config.Filter.Workers
		}
		if err := requireFlags(map[string]string{"input": opts.input, "pattern": opts.pattern, "output": opts.output}); err != nil {
			return err
		}
		if err := checkWorkers(opts.workers); err != nil {
			return err
		}

		q, err := substructure.Compile(opts.pattern)
		if err != nil {
			return err
		}
		p, err := screening.NewSubstructureMatch(q, screening.SubstructureOptions{
			MaxWeight: opts.maxWeight,
			Reverse:   opts.reverse,
		})
		if err != nil {
			return err
		}

		return runFilter(cmd.Context(), cc, RunOptions{
			Input:       opts.input,
			InputFormat: opts.format,
			Output:      opts.output,
			Workers:     opts.workers,
			Predicate:   p,
		})
	}

	f := cmd.Flags()
	f.StringVarP(&opts.input, "input", "i", "", "molecule library (path, - or s3://bucket/key)")
	f.StringVar(&opts.format, "format", "", "input format when it cannot be told from the name (smi, csv, tsv, sdf, mol2)")
	f.StringVarP(&opts.pattern, "pattern", "p", "", "SMARTS pattern")
	f.StringVarP(&opts.output, "output", "o", "", "output path, - for stdout")
	f.Float64VarP(&opts.maxWeight, "max-weight", "w", 0, "fail molecules heavier than this many Da (0 disables)")
	f.BoolVarP(&opts.reverse, "reverse", "r", false, "keep molecules that do not match")
	f.IntVarP(&opts.workers, "workers", "n", 1, "parallel evaluators")

	return cmd
}

// requireFlags reports empty required flags as a usage error.
func requireFlags(flags map[string]string) error {
	var missing []string
	for name, v := range flags {
		if v == "" {
			missing = append(missing, "--"+name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return errors.InvalidParam("required flag(s) not set: " + strings.Join(missing, ", "))
}
