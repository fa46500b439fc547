package cli

import (
	"github.com/spf13/cobra"

	"github.com/turtacn/molfilter/internal/application/screening"
	"github.com/turtacn/molfilter/internal/config"
	"github.com/turtacn/molfilter/internal/domain/interaction"
	"github.com/turtacn/molfilter/internal/infrastructure/chemio"
	"github.com/turtacn/molfilter/internal/infrastructure/monitoring/logging"
)

type interactionOptions struct {
	protein   string
	input     string
	format    string
	site      string
	output    string
	namesOnly bool
	workers   int
}

// NewInteractionFilterCommand creates the interaction-filter root command.
func NewInteractionFilterCommand() *cobra.Command {
	opts := &interactionOptions{}

	cmd, _ := newToolCommand("interaction-filter",
		"Keep docked poses that form the required protein contacts",
		`Stream docked ligand poses and write every pose that satisfies the site
selector against the protein.

A selector term is <residue><code>, optionally chain-qualified (A/760H).
Terms joined by '-' are all required; terms joined by ':' need one to hold.
Codes: H h-bond, HD ligand donor, HA ligand acceptor, B salt bridge,
S pi-stacking, C cation-pi, X halogen bond, P hydrophobic, * any.

Examples:
  interaction-filter -p receptor.pdb -i poses.sdf.gz -s 760H -o hits.sdf.gz
  interaction-filter -p receptor.pdb -i poses.mol2 -s '760H-123B:456S' --names-only -o hits.txt`)

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		cc, err := GetCLIContext(cmd)
		if err != nil {
			return err
		}
		if !flagChanged(cmd.Flags(), "workers") {
			opts.workers = cc.Config.Filter.Workers
		}
		if err := requireFlags(map[string]string{"protein": opts.protein, "input": opts.input, "site": opts.site, "output": opts.output}); err != nil {
			return err
		}
		if err := checkWorkers(opts.workers); err != nil {
			return err
		}

		req, err := interaction.ParseSelector(opts.site)
		if err != nil {
			return err
		}
		protein, err := chemio.LoadStructure(cmd.Context(), opts.protein, chemio.LoadOptions{Store: cc.Store})
		if err != nil {
			return err
		}
		cc.Logger.Debug("protein loaded",
			logging.String("path", opts.protein),
			logging.Int("atoms", protein.NumAtoms()),
			logging.String("selector", req.String()))

		p, err := screening.NewInteractionMatch(protein, req, criteriaFromConfig(cc.Config.Interaction))
		if err != nil {
			return err
		}

		return runFilter(cmd.Context(), cc, RunOptions{
			Input:       opts.input,
			InputFormat: opts.format,
			Output:      opts.output,
			Workers:     opts.workers,
			Predicate:   p,
			NamesOnly:   opts.namesOnly,
		})
	}

	f := cmd.Flags()
	f.StringVarP(&opts.protein, "protein", "p", "", "protein structure with residue annotation (pdb or mol2)")
	f.StringVarP(&opts.input, "input", "i", "", "docked poses (sdf or mol2)")
	f.StringVar(&opts.format, "format", "", "input format when it cannot be told from the name (sdf, mol2)")
	f.StringVarP(&opts.site, "site", "s", "", "site selector, e.g. 760H-123B:456S")
	f.StringVarP(&opts.output, "output", "o", "", "output path, - for stdout")
	f.BoolVar(&opts.namesOnly, "names-only", false, "write one ligand name per passing pose")
	f.IntVarP(&opts.workers, "workers", "n", 1, "parallel evaluators")

	return cmd
}

func criteriaFromConfig(ic config.InteractionConfig) interaction.Criteria {
	return interaction.Criteria{
		HBondDistance:           ic.HBondDistance,
		SaltBridgeDistance:      ic.SaltBridgeDistance,
		StackingDistance:        ic.StackingDistance,
		StackingParallelAngle:   ic.StackingParallelAngle,
		StackingTShapedAngle:    ic.StackingTShapedAngle,
		StackingTShapedDistance: ic.StackingTShapedDistance,
		CationPiDistance:        ic.CationPiDistance,
		HalogenDistance:         ic.HalogenDistance,
		HalogenAngle:            ic.HalogenAngle,
		HydrophobicDistance:     ic.HydrophobicDistance,
	}
}
