// Package interaction perceives non-bonded protein–ligand contacts and
// evaluates site selectors such as "760H-123B:456S" against them.
package interaction

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/turtacn/molfilter/internal/domain/molecule"
	"github.com/turtacn/molfilter/pkg/errors"
)

// Kind names an interaction type.  Selector codes and perceived contacts
// share the vocabulary; KindHBond and KindAny only appear in selectors.
type Kind string

const (
	KindHBond         Kind = "H"  // either H-bond direction
	KindHBondDonor    Kind = "HD" // ligand donates
	KindHBondAcceptor Kind = "HA" // ligand accepts
	KindSaltBridge    Kind = "B"
	KindStacking      Kind = "S"
	KindCationPi      Kind = "C"
	KindHalogen       Kind = "X"
	KindHydrophobic   Kind = "P"
	KindAny           Kind = "*"
)

// selectorKinds lists the codes accepted in a selector, two-letter codes
// first so that "HD" is not read as "H".
var selectorKinds = []Kind{
	KindHBondDonor, KindHBondAcceptor, KindHBond, KindSaltBridge,
	KindStacking, KindCationPi, KindHalogen, KindHydrophobic, KindAny,
}

// Covers reports whether a selector kind is satisfied by a contact of kind c.
func (k Kind) Covers(c Kind) bool {
	switch k {
	case KindAny:
		return true
	case KindHBond:
		return c == KindHBondDonor || c == KindHBondAcceptor
	}
	return k == c
}

func (k Kind) String() string { return string(k) }

// ResidueRef identifies a protein residue by number and, optionally, chain.
type ResidueRef struct {
	Chain  string
	Number int
}

// Matches reports whether r refers to the residue an atom belongs to.
func (r ResidueRef) Matches(res *molecule.ResidueInfo) bool {
	if res == nil || res.Number != r.Number {
		return false
	}
	return r.Chain == "" || strings.EqualFold(r.Chain, res.Chain)
}

func (r ResidueRef) String() string {
	if r.Chain == "" {
		return strconv.Itoa(r.Number)
	}
	return r.Chain + "/" + strconv.Itoa(r.Number)
}

// Term is one residue/interaction pair of a selector.
type Term struct {
	Residue ResidueRef
	Kind    Kind
}

func (t Term) String() string { return t.Residue.String() + string(t.Kind) }

// Satisfied reports whether any contact meets the term.
func (t Term) Satisfied(contacts []Contact) bool {
	for i := range contacts {
		if t.Kind.Covers(contacts[i].Kind) && t.Residue.Matches(contacts[i].Residue) {
			return true
		}
	}
	return false
}

// Option is one alternative of an OR-group.  Terms of a group that name the
// same residue merge into one option, and all of them must hold.
type Option []Term

// Satisfied reports whether every term of the option is met.
func (o Option) Satisfied(contacts []Contact) bool {
	for _, t := range o {
		if !t.Satisfied(contacts) {
			return false
		}
	}
	return true
}

// Requirement is a parsed site selector: every term of All must hold, and
// every group of AnyOf needs at least one holding option.
type Requirement struct {
	All    []Term
	AnyOf  [][]Option
	source string
}

// ParseSelector parses a site selector.  Terms are "<residue><code>" with an
// optional "<chain>/" prefix; '-' joins required parts and ':' joins the
// alternatives of an OR-group.  Errors carry errors.CodeInvalidSite.
func ParseSelector(s string) (*Requirement, error) {
	src := strings.TrimSpace(s)
	if src == "" {
		return nil, invalidSelector(s, "empty selector")
	}
	req := &Requirement{source: src}
	for _, part := range strings.Split(src, "-") {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, invalidSelector(s, "empty term")
		}
		if !strings.Contains(part, ":") {
			t, err := parseTerm(part)
			if err != nil {
				return nil, invalidSelector(s, err.Error())
			}
			req.All = append(req.All, t)
			continue
		}
		var group []Option
		byResidue := map[ResidueRef]int{}
		for _, alt := range strings.Split(part, ":") {
			t, err := parseTerm(strings.TrimSpace(alt))
			if err != nil {
				return nil, invalidSelector(s, err.Error())
			}
			if i, ok := byResidue[t.Residue]; ok {
				group[i] = append(group[i], t)
				continue
			}
			byResidue[t.Residue] = len(group)
			group = append(group, Option{t})
		}
		req.AnyOf = append(req.AnyOf, group)
	}
	return req, nil
}

func invalidSelector(src, msg string) error {
	return errors.New(errors.CodeInvalidSite, msg).WithDetailf("selector %q", src)
}

func parseTerm(s string) (Term, error) {
	var t Term
	if s == "" {
		return t, fmt.Errorf("empty term")
	}
	if slash := strings.IndexByte(s, '/'); slash >= 0 {
		t.Residue.Chain = s[:slash]
		if t.Residue.Chain == "" || strings.ContainsAny(t.Residue.Chain, " \t") {
			return t, fmt.Errorf("term %q: invalid chain", s)
		}
		s = s[slash+1:]
	}
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return t, fmt.Errorf("term %q: missing residue number", s)
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return t, fmt.Errorf("term %q: %v", s, err)
	}
	t.Residue.Number = n

	code := s[end:]
	for _, k := range selectorKinds {
		if code == string(k) {
			t.Kind = k
			return t, nil
		}
	}
	if code == "" {
		return t, fmt.Errorf("term %q: missing interaction code", s)
	}
	return t, fmt.Errorf("term %q: unknown interaction code %q (want one of H HD HA B S C X P *)", s, code)
}

// String returns the selector as written.
func (r *Requirement) String() string { return r.source }

// Residues returns every residue the selector names, first occurrence first.
func (r *Requirement) Residues() []ResidueRef {
	seen := map[ResidueRef]bool{}
	var out []ResidueRef
	add := func(t Term) {
		if !seen[t.Residue] {
			seen[t.Residue] = true
			out = append(out, t.Residue)
		}
	}
	for _, t := range r.All {
		add(t)
	}
	for _, g := range r.AnyOf {
		for _, o := range g {
			for _, t := range o {
				add(t)
			}
		}
	}
	return out
}

// Check verifies that every named residue exists in the site's protein.
func (r *Requirement) Check(site *Site) error {
	for _, ref := range r.Residues() {
		if !site.HasResidue(ref) {
			return errors.New(errors.CodeResidueNotFound, "residue "+ref.String()+" not found in protein").
				WithDetailf("selector %q", r.source)
		}
	}
	return nil
}

// Satisfied reports whether the contacts meet the requirement.
func (r *Requirement) Satisfied(contacts []Contact) bool {
	return len(r.Unmet(contacts)) == 0
}

// Unmet describes the parts of the requirement the contacts leave unmet:
// single terms as "760H", OR-groups as "123B:456S".
func (r *Requirement) Unmet(contacts []Contact) []string {
	var out []string
	for _, t := range r.All {
		if !t.Satisfied(contacts) {
			out = append(out, t.String())
		}
	}
	for _, g := range r.AnyOf {
		met := false
		var names []string
		for _, o := range g {
			for _, t := range o {
				names = append(names, t.String())
			}
			if o.Satisfied(contacts) {
				met = true
			}
		}
		if !met {
			out = append(out, strings.Join(names, ":"))
		}
	}
	return out
}
