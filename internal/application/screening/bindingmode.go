package screening

import (
	"context"
	"fmt"
	"math"

	"github.com/turtacn/molfilter/internal/config"
	"github.com/turtacn/molfilter/internal/domain/geometry"
	"github.com/turtacn/molfilter/internal/domain/molecule"
	"github.com/turtacn/molfilter/internal/domain/substructure"
	"github.com/turtacn/molfilter/internal/infrastructure/chemio"
	"github.com/turtacn/molfilter/pkg/errors"
)

// identicalRMSD is the deviation below which a pose counts as the reference
// itself.
const identicalRMSD = 1e-6

// BindingModeOptions tunes BindingModeMatch.
type BindingModeOptions struct {
	// Threshold is the pass cut-off in Å, inclusive.
	Threshold float64
	// Policy is config.PolicyAny, PolicyFirst or PolicyAll.
	Policy string
	// Superpose fits each candidate mapping onto the reference before
	// scoring.  Without it poses are compared in their own frame.
	Superpose bool
	// ExcludeIdentical fails mappings that reproduce the reference exactly.
	ExcludeIdentical bool
	// MaxMatches caps the candidate mappings enumerated per record.
	MaxMatches int
	// KeepHydrogens keeps file hydrogens as graph atoms, for patterns that
	// name hydrogens.
	KeepHydrogens bool
}

// BindingModeMatch passes poses whose pattern atoms lie within an RMSD
// threshold of the same atoms in a reference pose.
type BindingModeMatch struct {
	query     *substructure.Query
	reference []geometry.Vec3
	opts      BindingModeOptions
}

// NewBindingModeMatch locates the pattern in the reference pose.  The first
// reference mapping is used.  A pattern the reference does not contain is a
// fatal CodePatternAbsent error.
func NewBindingModeMatch(reference *molecule.Molecule, query *substructure.Query, opts BindingModeOptions) (*BindingModeMatch, error) {
	if math.IsNaN(opts.Threshold) || math.IsInf(opts.Threshold, 0) || opts.Threshold < 0 {
		return nil, errors.Newf(errors.CodeThresholdInvalid, "RMSD threshold must be a non-negative number, got %g", opts.Threshold)
	}
	if opts.Policy == "" {
		opts.Policy = config.PolicyAny
	}
	if !config.ValidPolicy(opts.Policy) {
		return nil, errors.Newf(errors.CodeInvalidParam, "unknown tie-break policy %q; expected any|first|all", opts.Policy)
	}
	if opts.MaxMatches == 0 {
		opts.MaxMatches = config.DefaultMaxMatches
	}
	if opts.MaxMatches < 0 {
		return nil, errors.Newf(errors.CodeInvalidParam, "max matches must be positive, got %d", opts.MaxMatches)
	}
	if query == nil {
		return nil, errors.InvalidParam("binding-mode predicate needs a pattern")
	}
	if reference == nil || !reference.Has3D() {
		return nil, errors.New(errors.CodeInputUnreadable, "reference structure has no 3D coordinates")
	}

	m, ok := query.FindFirst(reference)
	if !ok {
		return nil, errors.New(errors.CodePatternAbsent, "pattern does not match the reference structure").
			WithDetailf("smarts %q reference %q", query.String(), reference.Name)
	}
	return &BindingModeMatch{
		query:     query,
		reference: reference.Coords(m),
		opts:      opts,
	}, nil
}

func (p *BindingModeMatch) Name() string { return "binding_mode" }

// ParseOptions keeps hydrogens when the pattern names them.
func (p *BindingModeMatch) ParseOptions() chemio.ParseOptions {
	return chemio.ParseOptions{KeepHydrogens: p.opts.KeepHydrogens}
}

func (p *BindingModeMatch) Evaluate(_ context.Context, mol *molecule.Molecule, rec chemio.Record) (Outcome, error) {
	if !mol.Has3D() {
		return Outcome{}, errors.New(errors.CodeCoordinatesMissing, "pose has no 3D coordinates").
			WithDetailf("index=%d name=%q", rec.Index, rec.Name)
	}

	limit := p.opts.MaxMatches
	if p.opts.Policy == config.PolicyFirst {
		limit = 1
	}
	matches := p.query.FindAll(mol, substructure.MatchOptions{Max: limit})
	if len(matches) == 0 {
		return Outcome{}, errors.New(errors.CodePatternAbsent, "SMARTS did not match").
			WithDetailf("index=%d name=%q", rec.Index, rec.Name)
	}

	best, bestOK, worst := math.Inf(1), math.Inf(1), math.Inf(-1)
	anyOK, allOK := false, true
	for _, m := range matches {
		rmsd, err := p.score(mol.Coords(m))
		if err != nil {
			return Outcome{}, errors.Wrap(err, errors.CodeUnknown, "cannot score pose").
				WithDetailf("index=%d name=%q", rec.Index, rec.Name)
		}
		ok := p.accepts(rmsd)
		best = math.Min(best, rmsd)
		worst = math.Max(worst, rmsd)
		if ok {
			anyOK = true
			bestOK = math.Min(bestOK, rmsd)
		} else {
			allOK = false
		}
	}

	out := Outcome{Matches: len(matches)}
	var rmsd float64
	switch p.opts.Policy {
	case config.PolicyAll:
		out.Pass, rmsd = allOK, worst
	default:
		out.Pass, rmsd = anyOK, best
		if anyOK {
			rmsd = bestOK
		}
	}
	out.RMSD = &rmsd
	if !out.Pass {
		out.Reason = fmt.Sprintf("RMSD %.3f over threshold %.3f", rmsd, p.opts.Threshold)
		if p.opts.ExcludeIdentical && rmsd <= identicalRMSD {
			out.Reason = "pose identical to reference"
		}
	}
	return out, nil
}

func (p *BindingModeMatch) score(coords []geometry.Vec3) (float64, error) {
	if p.opts.Superpose {
		return geometry.SuperposedRMSD(coords, p.reference)
	}
	return geometry.RMSD(coords, p.reference)
}

func (p *BindingModeMatch) accepts(rmsd float64) bool {
	if p.opts.ExcludeIdentical && rmsd <= identicalRMSD {
		return false
	}
	return rmsd <= p.opts.Threshold
}
