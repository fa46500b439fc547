// Package molecule provides the molecular graph used by the screening
// predicates: atoms with element, charge, hydrogen and coordinate data, bonds
// with order and aromaticity, ring perception and a SMILES parser.
//
// A Molecule is built by a parser (SMILES here, SDF/MOL2/PDB in chemio) and
// then finalised with Perceive, which derives implicit hydrogens, rings and
// aromaticity.  After Perceive a Molecule is treated as immutable and may be
// shared read-only between goroutines.
package molecule

import (
	"fmt"

	"github.com/turtacn/molfilter/internal/domain/geometry"
)

// ─────────────────────────────────────────────────────────────────────────────
// Atoms and bonds
// ─────────────────────────────────────────────────────────────────────────────

// ResidueInfo annotates an atom that belongs to a biopolymer residue.
type ResidueInfo struct {
	Name      string // three-letter residue name, e.g. "ASP"
	Number    int    // residue sequence number
	Insertion string // insertion code, usually empty
	Chain     string // chain identifier, may be empty
	AtomName  string // PDB atom name, e.g. "OD1"
	HetAtom   bool
}

// Key returns "chain/number" (or "number" without a chain) for grouping.
func (r *ResidueInfo) Key() string {
	if r.Chain == "" {
		return fmt.Sprintf("%d%s", r.Number, r.Insertion)
	}
	return fmt.Sprintf("%s/%d%s", r.Chain, r.Number, r.Insertion)
}

// Atom is a node of the molecular graph.
type Atom struct {
	Element   string // normalised symbol, "*" for a wildcard atom
	AtomicNum int
	Aromatic  bool
	Charge    int
	Isotope   int

	// HCount is the number of hydrogens attached but not present as atoms:
	// bracket counts from SMILES or hydrogens folded by SuppressHydrogens.
	HCount int
	// ImplicitH is derived by Perceive from default valences.
	ImplicitH int
	// NoImplicit marks atoms whose hydrogen count is fully specified.
	NoImplicit bool

	Coord    geometry.Vec3
	HasCoord bool

	// Label is a format-specific atom type, e.g. the SYBYL type "N.ar".
	Label   string
	Residue *ResidueInfo
}

// TotalH returns HCount + ImplicitH; hydrogens present as graph atoms are
// not included (see Molecule.TotalHCount).
func (a *Atom) TotalH() int { return a.HCount + a.ImplicitH }

// BondOrder is the multiplicity of a bond.
type BondOrder int

// Bond orders.  BondAromatic is used when the input only states that a bond
// is aromatic (lower-case SMILES, SDF type 4, MOL2 "ar").
const (
	BondSingle   BondOrder = 1
	BondDouble   BondOrder = 2
	BondTriple   BondOrder = 3
	BondAromatic BondOrder = 4
)

// valence returns the contribution of the order to an atom's valence.
func (o BondOrder) valence() int {
	switch o {
	case BondDouble:
		return 2
	case BondTriple:
		return 3
	default:
		return 1
	}
}

func (o BondOrder) String() string {
	switch o {
	case BondSingle:
		return "single"
	case BondDouble:
		return "double"
	case BondTriple:
		return "triple"
	case BondAromatic:
		return "aromatic"
	}
	return fmt.Sprintf("BondOrder(%d)", int(o))
}

// Bond is an edge of the molecular graph.
type Bond struct {
	A, B     int
	Order    BondOrder
	Aromatic bool
	InRing   bool
}

// Other returns the bond partner of atom i.
func (b *Bond) Other(i int) int {
	if b.A == i {
		return b.B
	}
	return b.A
}

// Neighbor is one adjacency entry: the neighbouring atom and the bond index.
type Neighbor struct {
	Atom int
	Bond int
}

// ─────────────────────────────────────────────────────────────────────────────
// Molecule
// ─────────────────────────────────────────────────────────────────────────────

// Molecule is a molecular graph with optional coordinates.
type Molecule struct {
	Name  string
	Atoms []Atom
	Bonds []Bond

	adj       [][]Neighbor
	rings     [][]int
	atomRings [][]int // ring indices per atom
	perceived bool
}

// New returns an empty molecule with the given name.
func New(name string) *Molecule {
	return &Molecule{Name: name}
}

// AddAtom appends a and returns its index.
func (m *Molecule) AddAtom(a Atom) int {
	m.Atoms = append(m.Atoms, a)
	m.adj = append(m.adj, nil)
	m.perceived = false
	return len(m.Atoms) - 1
}

// AddBond connects atoms a and b and returns the bond index.  It fails on
// out-of-range indices, self-bonds and duplicate bonds.
func (m *Molecule) AddBond(a, b int, order BondOrder) (int, error) {
	if a < 0 || b < 0 || a >= len(m.Atoms) || b >= len(m.Atoms) {
		return -1, fmt.Errorf("bond %d-%d references a missing atom", a, b)
	}
	if a == b {
		return -1, fmt.Errorf("atom %d bonded to itself", a)
	}
	if m.BondBetween(a, b) >= 0 {
		return -1, fmt.Errorf("duplicate bond %d-%d", a, b)
	}
	m.Bonds = append(m.Bonds, Bond{A: a, B: b, Order: order, Aromatic: order == BondAromatic})
	idx := len(m.Bonds) - 1
	m.adj[a] = append(m.adj[a], Neighbor{Atom: b, Bond: idx})
	m.adj[b] = append(m.adj[b], Neighbor{Atom: a, Bond: idx})
	m.perceived = false
	return idx, nil
}

// NumAtoms returns the number of graph atoms.
func (m *Molecule) NumAtoms() int { return len(m.Atoms) }

// Neighbors returns the adjacency list of atom i.  The slice must not be
// modified.
func (m *Molecule) Neighbors(i int) []Neighbor { return m.adj[i] }

// Degree returns the number of explicit connections of atom i.
func (m *Molecule) Degree(i int) int { return len(m.adj[i]) }

// BondBetween returns the index of the bond joining a and b, or -1.
func (m *Molecule) BondBetween(a, b int) int {
	if a < 0 || a >= len(m.adj) {
		return -1
	}
	for _, n := range m.adj[a] {
		if n.Atom == b {
			return n.Bond
		}
	}
	return -1
}

// ExplicitHNeighbors returns the number of hydrogen atoms bonded to atom i.
func (m *Molecule) ExplicitHNeighbors(i int) int {
	n := 0
	for _, nb := range m.adj[i] {
		if m.Atoms[nb.Atom].AtomicNum == 1 {
			n++
		}
	}
	return n
}

// TotalHCount returns every hydrogen on atom i: bracket, folded, implicit and
// graph hydrogens.
func (m *Molecule) TotalHCount(i int) int {
	return m.Atoms[i].TotalH() + m.ExplicitHNeighbors(i)
}

// HeavyDegree returns the number of non-hydrogen neighbours of atom i.
func (m *Molecule) HeavyDegree(i int) int {
	return m.Degree(i) - m.ExplicitHNeighbors(i)
}

// BondValence returns the sum of bond-order contributions at atom i with
// aromatic bonds counted as 1.
func (m *Molecule) BondValence(i int) int {
	v := 0
	for _, nb := range m.adj[i] {
		v += m.Bonds[nb.Bond].Order.valence()
	}
	return v
}

// TotalValence returns the bonding valence of atom i including hydrogens.
// An aromatic atom whose explicit valence falls short of its default gains
// one for the delocalised π bond.
func (m *Molecule) TotalValence(i int) int {
	a := &m.Atoms[i]
	v := m.BondValence(i) + a.TotalH()
	if a.Aromatic && m.hasAromaticOnlyBonds(i) {
		if def := defaultValence(a.AtomicNum, a.Charge); def > 0 && v < def {
			v++
		}
	}
	return v
}

func (m *Molecule) hasAromaticOnlyBonds(i int) bool {
	for _, nb := range m.adj[i] {
		if m.Bonds[nb.Bond].Order == BondDouble {
			return false
		}
	}
	return true
}

// Coords returns the coordinates of the given atoms, in order.
func (m *Molecule) Coords(indices []int) []geometry.Vec3 {
	out := make([]geometry.Vec3, len(indices))
	for k, i := range indices {
		out[k] = m.Atoms[i].Coord
	}
	return out
}

// Has3D reports whether every atom carries coordinates and they are not all
// in one plane z = 0.
func (m *Molecule) Has3D() bool {
	if len(m.Atoms) == 0 {
		return false
	}
	nonZeroZ := false
	for i := range m.Atoms {
		if !m.Atoms[i].HasCoord {
			return false
		}
		if m.Atoms[i].Coord.Z != 0 {
			nonZeroZ = true
		}
	}
	return nonZeroZ || len(m.Atoms) < 4
}

// HeavyAtomCount returns the number of non-hydrogen atoms.
func (m *Molecule) HeavyAtomCount() int {
	n := 0
	for i := range m.Atoms {
		if m.Atoms[i].AtomicNum != 1 {
			n++
		}
	}
	return n
}

// MolecularWeight returns the average molecular weight including all
// hydrogens, in Da.
func (m *Molecule) MolecularWeight() float64 {
	var w float64
	for i := range m.Atoms {
		a := &m.Atoms[i]
		if e, ok := LookupNumber(a.AtomicNum); ok {
			w += e.Mass
		}
		w += float64(a.TotalH()) * HydrogenMass
	}
	return w
}

// Clone returns a deep copy of m.
func (m *Molecule) Clone() *Molecule {
	c := &Molecule{Name: m.Name}
	c.Atoms = make([]Atom, len(m.Atoms))
	copy(c.Atoms, m.Atoms)
	for i := range c.Atoms {
		if r := c.Atoms[i].Residue; r != nil {
			rc := *r
			c.Atoms[i].Residue = &rc
		}
	}
	c.Bonds = make([]Bond, len(m.Bonds))
	copy(c.Bonds, m.Bonds)
	c.adj = make([][]Neighbor, len(m.adj))
	for i := range m.adj {
		c.adj[i] = append([]Neighbor(nil), m.adj[i]...)
	}
	if m.perceived {
		c.rings = m.rings
		c.atomRings = m.atomRings
		c.perceived = true
	}
	return c
}

// ─────────────────────────────────────────────────────────────────────────────
// Perception
// ─────────────────────────────────────────────────────────────────────────────

// PerceiveOptions controls Perceive.
type PerceiveOptions struct {
	// SkipRings disables ring and aromaticity perception.  Used for protein
	// structures, which are typed by residue templates instead.
	SkipRings bool
}

// Perceive derives implicit hydrogens, ring membership and aromaticity.  It
// is idempotent.
func (m *Molecule) Perceive(opts PerceiveOptions) {
	if m.perceived {
		return
	}
	m.assignImplicitHydrogens()
	if !opts.SkipRings {
		m.findRings()
		m.perceiveAromaticity()
	}
	m.perceived = true
}

// Perceived reports whether Perceive has run since the last edit.
func (m *Molecule) Perceived() bool { return m.perceived }

// defaultValence returns the lowest default valence of an element adjusted
// for formal charge, or 0 when the element takes no implicit hydrogens.
func defaultValence(num, charge int) int {
	vs := valencesFor(num, charge)
	if len(vs) == 0 {
		return 0
	}
	return vs[0]
}

func valencesFor(num, charge int) []int {
	e, ok := LookupNumber(num)
	if !ok || len(e.Valences) == 0 {
		return nil
	}
	if charge == 0 {
		return e.Valences
	}
	var adj int
	switch num {
	case 7, 8, 15, 16, 33, 34: // N O P S As Se: cations gain a bond, anions lose one
		adj = charge
	case 5: // B: borate anion gains a bond
		adj = -charge
	default: // C and halogens lose a bond either way
		adj = -abs(charge)
	}
	out := make([]int, 0, len(e.Valences))
	for _, v := range e.Valences {
		if v+adj >= 0 {
			out = append(out, v+adj)
		}
	}
	return out
}

func (m *Molecule) assignImplicitHydrogens() {
	for i := range m.Atoms {
		a := &m.Atoms[i]
		if a.NoImplicit {
			a.ImplicitH = 0
			continue
		}
		used := m.BondValence(i) + a.HCount
		if a.Aromatic && m.hasAromaticOnlyBonds(i) && m.Degree(i) > 0 {
			used++
		}
		a.ImplicitH = 0
		for _, v := range valencesFor(a.AtomicNum, a.Charge) {
			if v >= used {
				a.ImplicitH = v - used
				break
			}
		}
		// A lone-pair donor such as pyrrole-type [nH] or furan o keeps no extra H.
		if a.Aromatic && a.ImplicitH > 0 && m.Degree(i) >= 2 && (a.AtomicNum == 8 || a.AtomicNum == 16) {
			a.ImplicitH = 0
		}
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// ─────────────────────────────────────────────────────────────────────────────
// Hydrogens
// ─────────────────────────────────────────────────────────────────────────────

// SuppressHydrogens returns a copy of m in which ordinary hydrogen atoms
// (neutral, isotope-free, bonded to exactly one heavy atom) are folded into
// their parent's HCount.  The mapping from new to old atom indices is also
// returned.
func (m *Molecule) SuppressHydrogens() (*Molecule, []int) {
	keep := make([]bool, len(m.Atoms))
	folded := make([]int, len(m.Atoms))
	for i := range m.Atoms {
		a := &m.Atoms[i]
		keep[i] = true
		if a.AtomicNum != 1 || a.Charge != 0 || a.Isotope != 0 || len(m.adj[i]) != 1 {
			continue
		}
		parent := m.adj[i][0].Atom
		if m.Atoms[parent].AtomicNum == 1 {
			continue
		}
		keep[i] = false
		folded[parent]++
	}

	out := &Molecule{Name: m.Name}
	oldToNew := make([]int, len(m.Atoms))
	var newToOld []int
	for i := range m.Atoms {
		if !keep[i] {
			oldToNew[i] = -1
			continue
		}
		a := m.Atoms[i]
		a.HCount += folded[i]
		if folded[i] > 0 {
			a.ImplicitH = 0
		}
		oldToNew[i] = out.AddAtom(a)
		newToOld = append(newToOld, i)
	}
	for _, b := range m.Bonds {
		na, nb := oldToNew[b.A], oldToNew[b.B]
		if na < 0 || nb < 0 {
			continue
		}
		idx, _ := out.AddBond(na, nb, b.Order)
		out.Bonds[idx].Aromatic = b.Aromatic
	}
	return out, newToOld
}

// AddExplicitHydrogens returns a copy of m in which every implicit and
// bracket hydrogen is materialised as a hydrogen atom without coordinates.
// m must have been perceived.
func (m *Molecule) AddExplicitHydrogens() *Molecule {
	out := m.Clone()
	out.perceived = false
	for i := range m.Atoms {
		n := m.Atoms[i].TotalH()
		out.Atoms[i].HCount = 0
		out.Atoms[i].ImplicitH = 0
		out.Atoms[i].NoImplicit = true
		for k := 0; k < n; k++ {
			h := out.AddAtom(Atom{Element: "H", AtomicNum: 1, NoImplicit: true})
			_, _ = out.AddBond(i, h, BondSingle)
		}
	}
	out.Perceive(PerceiveOptions{})
	return out
}
