package substructure

import "github.com/turtacn/molfilter/internal/domain/molecule"

// ── Logic ────────────────────────────────────────────────────────────────────

func andAtom(a, b atomPred) atomPred {
	return func(m *molecule.Molecule, i int) bool { return a(m, i) && b(m, i) }
}

func orAtom(a, b atomPred) atomPred {
	return func(m *molecule.Molecule, i int) bool { return a(m, i) || b(m, i) }
}

func notAtom(a atomPred) atomPred {
	return func(m *molecule.Molecule, i int) bool { return !a(m, i) }
}

func andBond(a, b bondPred) bondPred {
	return func(m *molecule.Molecule, i int) bool { return a(m, i) && b(m, i) }
}

func orBond(a, b bondPred) bondPred {
	return func(m *molecule.Molecule, i int) bool { return a(m, i) || b(m, i) }
}

func notBond(a bondPred) bondPred {
	return func(m *molecule.Molecule, i int) bool { return !a(m, i) }
}

// ── Atom primitives ──────────────────────────────────────────────────────────

func anyAtom(*molecule.Molecule, int) bool { return true }

func aromatic(m *molecule.Molecule, i int) bool { return m.Atoms[i].Aromatic }

func aliphatic(m *molecule.Molecule, i int) bool { return !m.Atoms[i].Aromatic }

func atomicNumber(n int) atomPred {
	return func(m *molecule.Molecule, i int) bool { return m.Atoms[i].AtomicNum == n }
}

func aliphaticElement(symbol string) atomPred {
	e, _ := molecule.LookupSymbol(symbol)
	n := e.Number
	return func(m *molecule.Molecule, i int) bool {
		a := &m.Atoms[i]
		return a.AtomicNum == n && !a.Aromatic
	}
}

func aromaticElement(symbol string) atomPred {
	e, _ := molecule.LookupSymbol(symbol)
	n := e.Number
	return func(m *molecule.Molecule, i int) bool {
		a := &m.Atoms[i]
		return a.AtomicNum == n && a.Aromatic
	}
}

func totalH(n int) atomPred {
	return func(m *molecule.Molecule, i int) bool { return m.TotalHCount(i) == n }
}

func implicitH(n int) atomPred {
	return func(m *molecule.Molecule, i int) bool { return m.Atoms[i].TotalH() == n }
}

func implicitHAny(m *molecule.Molecule, i int) bool { return m.Atoms[i].TotalH() > 0 }

func degree(n int) atomPred {
	return func(m *molecule.Molecule, i int) bool { return m.Degree(i) == n }
}

func connectivity(n int) atomPred {
	return func(m *molecule.Molecule, i int) bool { return m.Degree(i)+m.Atoms[i].TotalH() == n }
}

func valence(n int) atomPred {
	return func(m *molecule.Molecule, i int) bool { return m.TotalValence(i) == n }
}

func inRing(m *molecule.Molecule, i int) bool { return m.InRing(i) }

func ringCount(n int) atomPred {
	return func(m *molecule.Molecule, i int) bool { return m.AtomRingCount(i) == n }
}

func smallestRing(n int) atomPred {
	return func(m *molecule.Molecule, i int) bool { return m.SmallestRingSize(i) == n }
}

func countRingBonds(m *molecule.Molecule, i int) int {
	n := 0
	for _, nb := range m.Neighbors(i) {
		if m.Bonds[nb.Bond].InRing {
			n++
		}
	}
	return n
}

func ringBonds(n int) atomPred {
	return func(m *molecule.Molecule, i int) bool { return countRingBonds(m, i) == n }
}

func ringBondsAny(m *molecule.Molecule, i int) bool { return countRingBonds(m, i) > 0 }

func charge(n int) atomPred {
	return func(m *molecule.Molecule, i int) bool { return m.Atoms[i].Charge == n }
}

func isotope(n int) atomPred {
	return func(m *molecule.Molecule, i int) bool { return m.Atoms[i].Isotope == n }
}

// ── Bond primitives ──────────────────────────────────────────────────────────

func singleBond(m *molecule.Molecule, b int) bool {
	bd := &m.Bonds[b]
	return bd.Order == molecule.BondSingle && !bd.Aromatic
}

func doubleBond(m *molecule.Molecule, b int) bool {
	bd := &m.Bonds[b]
	return bd.Order == molecule.BondDouble && !bd.Aromatic
}

func tripleBond(m *molecule.Molecule, b int) bool {
	return m.Bonds[b].Order == molecule.BondTriple
}

func aromaticBond(m *molecule.Molecule, b int) bool { return m.Bonds[b].Aromatic }

func anyBond(*molecule.Molecule, int) bool { return true }

func ringBond(m *molecule.Molecule, b int) bool { return m.Bonds[b].InRing }

// singleOrAromatic is the meaning of an unwritten SMARTS bond.
func singleOrAromatic(m *molecule.Molecule, b int) bool {
	return singleBond(m, b) || aromaticBond(m, b)
}
