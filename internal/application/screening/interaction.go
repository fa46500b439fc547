package screening

import (
	"context"
	"strings"

	"github.com/turtacn/molfilter/internal/domain/interaction"
	"github.com/turtacn/molfilter/internal/domain/molecule"
	"github.com/turtacn/molfilter/internal/infrastructure/chemio"
	"github.com/turtacn/molfilter/pkg/errors"
)

// InteractionMatch passes docked ligands that form the interactions a site
// selector asks for.
type InteractionMatch struct {
	site     *interaction.Site
	req      *interaction.Requirement
	criteria interaction.Criteria
}

// NewInteractionMatch types the protein and checks that every residue the
// selector names exists.  Perception is then restricted to those residues.
func NewInteractionMatch(protein *molecule.Molecule, req *interaction.Requirement, criteria interaction.Criteria) (*InteractionMatch, error) {
	if req == nil {
		return nil, errors.InvalidParam("interaction predicate needs a site selector")
	}
	site, err := interaction.NewSite(protein)
	if err != nil {
		return nil, err
	}
	if err := req.Check(site); err != nil {
		return nil, err
	}
	return &InteractionMatch{
		site:     site.Subset(req.Residues()),
		req:      req,
		criteria: criteria,
	}, nil
}

func (p *InteractionMatch) Name() string { return "interaction" }

func (p *InteractionMatch) Evaluate(_ context.Context, mol *molecule.Molecule, rec chemio.Record) (Outcome, error) {
	if !mol.Has3D() {
		return Outcome{}, errors.New(errors.CodeCoordinatesMissing, "ligand has no 3D coordinates").
			WithDetailf("index=%d name=%q", rec.Index, rec.Name)
	}
	contacts := interaction.Perceive(p.site, mol, p.criteria)
	out := Outcome{Interactions: len(contacts)}
	if unmet := p.req.Unmet(contacts); len(unmet) > 0 {
		out.Reason = "unmet: " + strings.Join(unmet, ", ")
		return out, nil
	}
	out.Pass = true
	return out, nil
}
