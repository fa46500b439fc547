package screening

import (
	"context"
	"fmt"

	"github.com/turtacn/molfilter/internal/domain/molecule"
	"github.com/turtacn/molfilter/internal/domain/substructure"
	"github.com/turtacn/molfilter/internal/infrastructure/chemio"
	"github.com/turtacn/molfilter/pkg/errors"
)

// SubstructureOptions tunes SubstructureMatch.
type SubstructureOptions struct {
	// MaxWeight fails molecules heavier than this many Da before matching.
	// Zero disables the check.
	MaxWeight float64
	// Reverse keeps molecules that do not contain the pattern.
	Reverse bool
}

// SubstructureMatch passes molecules containing a SMARTS pattern.
type SubstructureMatch struct {
	query *substructure.Query
	opts  SubstructureOptions
}

// NewSubstructureMatch builds the predicate around a compiled query.
func NewSubstructureMatch(query *substructure.Query, opts SubstructureOptions) (*SubstructureMatch, error) {
	if query == nil {
		return nil, errors.InvalidParam("substructure predicate needs a pattern")
	}
	if opts.MaxWeight < 0 {
		return nil, errors.Newf(errors.CodeInvalidParam, "max weight must be non-negative, got %g", opts.MaxWeight)
	}
	return &SubstructureMatch{query: query, opts: opts}, nil
}

func (p *SubstructureMatch) Name() string { return "substructure" }

func (p *SubstructureMatch) Evaluate(_ context.Context, mol *molecule.Molecule, _ chemio.Record) (Outcome, error) {
	if p.opts.MaxWeight > 0 {
		if w := mol.MolecularWeight(); w > p.opts.MaxWeight {
			return Outcome{Reason: fmt.Sprintf("molecular weight %.2f exceeds %.2f", w, p.opts.MaxWeight)}, nil
		}
	}

	target := mol
	if p.query.NeedsExplicitH() {
		target = mol.AddExplicitHydrogens()
	}
	_, found := p.query.FindFirst(target)

	out := Outcome{Pass: found != p.opts.Reverse}
	if found {
		out.Matches = 1
	}
	if !out.Pass {
		if found {
			out.Reason = "pattern present"
		} else {
			out.Reason = "pattern absent"
		}
	}
	return out, nil
}
