package interaction

import (
	"sort"
	"strings"

	"github.com/turtacn/molfilter/internal/domain/geometry"
	"github.com/turtacn/molfilter/internal/domain/molecule"
	"github.com/turtacn/molfilter/pkg/errors"
)

// residueTemplate types the atoms of a standard residue by PDB atom name.
type residueTemplate struct {
	donors      []string
	acceptors   []string
	cations     []string
	anions      []string
	hydrophobic []string
	rings       [][]string
}

var (
	phenylRing = []string{"CG", "CD1", "CE1", "CZ", "CE2", "CD2"}
	indoleSix  = []string{"CD2", "CE2", "CZ2", "CH2", "CZ3", "CE3"}
	indoleFive = []string{"CG", "CD1", "NE1", "CE2", "CD2"}
	imidazole  = []string{"CG", "ND1", "CE1", "NE2", "CD2"}
)

var templates = map[string]residueTemplate{
	"ALA": {hydrophobic: []string{"CB"}},
	"ARG": {
		donors:      []string{"NE", "NH1", "NH2"},
		cations:     []string{"NE", "NH1", "NH2"},
		hydrophobic: []string{"CB", "CG"},
	},
	"ASN": {donors: []string{"ND2"}, acceptors: []string{"OD1"}},
	"ASP": {acceptors: []string{"OD1", "OD2"}, anions: []string{"OD1", "OD2"}},
	"CYS": {donors: []string{"SG"}, hydrophobic: []string{"CB", "SG"}},
	"GLN": {donors: []string{"NE2"}, acceptors: []string{"OE1"}, hydrophobic: []string{"CB", "CG"}},
	"GLU": {acceptors: []string{"OE1", "OE2"}, anions: []string{"OE1", "OE2"}, hydrophobic: []string{"CB", "CG"}},
	"GLY": {},
	"HIS": {
		donors:      []string{"ND1", "NE2"},
		acceptors:   []string{"ND1", "NE2"},
		hydrophobic: []string{"CB"},
		rings:       [][]string{imidazole},
	},
	"ILE": {hydrophobic: []string{"CB", "CG1", "CG2", "CD1"}},
	"LEU": {hydrophobic: []string{"CB", "CG", "CD1", "CD2"}},
	"LYS": {donors: []string{"NZ"}, cations: []string{"NZ"}, hydrophobic: []string{"CB", "CG", "CD"}},
	"MET": {acceptors: []string{"SD"}, hydrophobic: []string{"CB", "CG", "SD", "CE"}},
	"PHE": {
		hydrophobic: []string{"CB", "CG", "CD1", "CD2", "CE1", "CE2", "CZ"},
		rings:       [][]string{phenylRing},
	},
	"PRO": {hydrophobic: []string{"CB", "CG"}},
	"SER": {donors: []string{"OG"}, acceptors: []string{"OG"}},
	"THR": {donors: []string{"OG1"}, acceptors: []string{"OG1"}, hydrophobic: []string{"CG2"}},
	"TRP": {
		donors:      []string{"NE1"},
		hydrophobic: []string{"CB", "CG", "CD2", "CE3", "CZ2", "CZ3", "CH2"},
		rings:       [][]string{indoleSix, indoleFive},
	},
	"TYR": {
		donors:      []string{"OH"},
		acceptors:   []string{"OH"},
		hydrophobic: []string{"CB", "CG", "CD1", "CD2", "CE1", "CE2"},
		rings:       [][]string{phenylRing},
	},
	"VAL": {hydrophobic: []string{"CB", "CG1", "CG2"}},
}

// residueAliases maps protonation-state and modified residue names to the
// template they share.
var residueAliases = map[string]string{
	"HID": "HIS", "HIE": "HIS", "HSD": "HIS", "HSE": "HIS", "HIP": "HIS", "HSP": "HIS", "HIH": "HIS",
	"CYX": "CYS", "CYM": "CYS", "ASH": "ASP", "GLH": "GLU", "LYN": "LYS", "MSE": "MET",
}

var protonatedHis = map[string]bool{"HIP": true, "HSP": true, "HIH": true}

var waters = map[string]bool{"HOH": true, "WAT": true, "DOD": true, "H2O": true, "TIP": true, "TIP3": true}

type feature struct {
	atom int
	pos  geometry.Vec3
	res  *molecule.ResidueInfo
}

type ring struct {
	atoms    []int
	centroid geometry.Vec3
	normal   geometry.Vec3
	res      *molecule.ResidueInfo
}

// Site is a protein prepared for contact perception: atoms typed once by
// residue templates, shared read-only between goroutines.
type Site struct {
	protein *molecule.Molecule

	donors      []feature
	acceptors   []feature
	cations     []feature
	anions      []feature
	hydrophobic []feature
	rings       []ring
}

// NewSite types the atoms of protein.  Atoms without coordinates or residue
// annotation, and waters, are ignored.  Non-standard residues are typed by
// element and formal charge.
func NewSite(protein *molecule.Molecule) (*Site, error) {
	if protein == nil || protein.NumAtoms() == 0 {
		return nil, errors.New(errors.CodeAuxiliaryEmpty, "protein structure holds no atoms")
	}
	s := &Site{protein: protein}

	type residueAtoms struct {
		res   *molecule.ResidueInfo
		atoms map[string]int
	}
	var order []string
	byResidue := map[string]*residueAtoms{}

	for i := range protein.Atoms {
		a := &protein.Atoms[i]
		if !a.HasCoord || a.Residue == nil || a.AtomicNum == 1 {
			continue
		}
		name := strings.ToUpper(strings.TrimSpace(a.Residue.Name))
		if waters[name] {
			continue
		}
		key := a.Residue.Key() + ":" + name
		ra, ok := byResidue[key]
		if !ok {
			ra = &residueAtoms{res: a.Residue, atoms: map[string]int{}}
			byResidue[key] = ra
			order = append(order, key)
		}
		ra.atoms[strings.TrimSpace(a.Residue.AtomName)] = i
	}
	if len(order) == 0 {
		return nil, errors.New(errors.CodeAuxiliaryEmpty, "protein structure holds no residues with coordinates")
	}

	for _, key := range order {
		ra := byResidue[key]
		resName := strings.ToUpper(strings.TrimSpace(ra.res.Name))
		tmplName := resName
		if alias, ok := residueAliases[resName]; ok {
			tmplName = alias
		}
		tmpl, standard := templates[tmplName]
		if !standard {
			s.typeByElement(ra.atoms, ra.res)
			continue
		}

		// Backbone.
		if idx, ok := ra.atoms["N"]; ok && tmplName != "PRO" {
			s.donors = append(s.donors, s.feature(idx, ra.res))
		}
		if idx, ok := ra.atoms["O"]; ok {
			s.acceptors = append(s.acceptors, s.feature(idx, ra.res))
		}
		if idx, ok := ra.atoms["OXT"]; ok {
			s.acceptors = append(s.acceptors, s.feature(idx, ra.res))
			s.anions = append(s.anions, s.feature(idx, ra.res))
		}

		s.donors = s.appendNamed(s.donors, tmpl.donors, ra.atoms, ra.res)
		s.acceptors = s.appendNamed(s.acceptors, tmpl.acceptors, ra.atoms, ra.res)
		s.cations = s.appendNamed(s.cations, tmpl.cations, ra.atoms, ra.res)
		s.anions = s.appendNamed(s.anions, tmpl.anions, ra.atoms, ra.res)
		s.hydrophobic = s.appendNamed(s.hydrophobic, tmpl.hydrophobic, ra.atoms, ra.res)
		if protonatedHis[resName] {
			s.cations = s.appendNamed(s.cations, []string{"ND1", "NE2"}, ra.atoms, ra.res)
		}
		for _, names := range tmpl.rings {
			if r, ok := s.ringFrom(names, ra.atoms, ra.res); ok {
				s.rings = append(s.rings, r)
			}
		}
	}
	return s, nil
}

func (s *Site) feature(idx int, res *molecule.ResidueInfo) feature {
	return feature{atom: idx, pos: s.protein.Atoms[idx].Coord, res: res}
}

func (s *Site) appendNamed(dst []feature, names []string, atoms map[string]int, res *molecule.ResidueInfo) []feature {
	for _, n := range names {
		if idx, ok := atoms[n]; ok {
			dst = append(dst, s.feature(idx, res))
		}
	}
	return dst
}

func (s *Site) ringFrom(names []string, atoms map[string]int, res *molecule.ResidueInfo) (ring, bool) {
	r := ring{res: res}
	pts := make([]geometry.Vec3, 0, len(names))
	for _, n := range names {
		idx, ok := atoms[n]
		if !ok {
			return ring{}, false
		}
		r.atoms = append(r.atoms, idx)
		pts = append(pts, s.protein.Atoms[idx].Coord)
	}
	r.centroid = geometry.Centroid(pts)
	r.normal = geometry.RingNormal(pts)
	return r, true
}

// typeByElement handles cofactors, ions and other non-standard residues.
func (s *Site) typeByElement(atoms map[string]int, res *molecule.ResidueInfo) {
	indices := make([]int, 0, len(atoms))
	for _, idx := range atoms {
		indices = append(indices, idx)
	}
	sort.Ints(indices)
	for _, idx := range indices {
		a := &s.protein.Atoms[idx]
		switch {
		case a.Charge > 0:
			s.cations = append(s.cations, s.feature(idx, res))
		case a.Charge < 0:
			s.anions = append(s.anions, s.feature(idx, res))
		}
		switch a.AtomicNum {
		case 7, 8:
			s.donors = append(s.donors, s.feature(idx, res))
			s.acceptors = append(s.acceptors, s.feature(idx, res))
		case 6:
			s.hydrophobic = append(s.hydrophobic, s.feature(idx, res))
		}
	}
}

// Protein returns the underlying structure.
func (s *Site) Protein() *molecule.Molecule { return s.protein }

// HasResidue reports whether any protein atom belongs to ref.
func (s *Site) HasResidue(ref ResidueRef) bool {
	for i := range s.protein.Atoms {
		if ref.Matches(s.protein.Atoms[i].Residue) {
			return true
		}
	}
	return false
}

// Subset returns a site restricted to the given residues.  Contacts with
// other residues cannot affect a selector, so the screening predicate
// perceives against the subset only.
func (s *Site) Subset(refs []ResidueRef) *Site {
	keep := func(res *molecule.ResidueInfo) bool {
		for _, ref := range refs {
			if ref.Matches(res) {
				return true
			}
		}
		return false
	}
	filter := func(in []feature) []feature {
		var out []feature
		for _, f := range in {
			if keep(f.res) {
				out = append(out, f)
			}
		}
		return out
	}
	sub := &Site{
		protein:     s.protein,
		donors:      filter(s.donors),
		acceptors:   filter(s.acceptors),
		cations:     filter(s.cations),
		anions:      filter(s.anions),
		hydrophobic: filter(s.hydrophobic),
	}
	for _, r := range s.rings {
		if keep(r.res) {
			sub.rings = append(sub.rings, r)
		}
	}
	return sub
}
