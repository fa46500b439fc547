package molecule

import (
	"sort"
	"strconv"
	"strings"
)

// Rings returns the perceived rings as ordered atom cycles.  Every ring bond
// lies on at least one returned ring, and each returned ring is a shortest
// cycle through one of its bonds.
func (m *Molecule) Rings() [][]int { return m.rings }

// AtomRingCount returns how many perceived rings contain atom i.
func (m *Molecule) AtomRingCount(i int) int {
	if i >= len(m.atomRings) {
		return 0
	}
	return len(m.atomRings[i])
}

// InRing reports whether atom i lies on any ring.
func (m *Molecule) InRing(i int) bool { return m.AtomRingCount(i) > 0 }

// SmallestRingSize returns the size of the smallest ring containing atom i,
// or 0 for acyclic atoms.
func (m *Molecule) SmallestRingSize(i int) int {
	best := 0
	if i >= len(m.atomRings) {
		return 0
	}
	for _, r := range m.atomRings[i] {
		if n := len(m.rings[r]); best == 0 || n < best {
			best = n
		}
	}
	return best
}

// InRingOfSize reports whether atom i lies on a perceived ring of size n.
func (m *Molecule) InRingOfSize(i, n int) bool {
	if i >= len(m.atomRings) {
		return false
	}
	for _, r := range m.atomRings[i] {
		if len(m.rings[r]) == n {
			return true
		}
	}
	return false
}

// AromaticRings returns the rings whose atoms are all aromatic.
func (m *Molecule) AromaticRings() [][]int {
	var out [][]int
	for _, r := range m.rings {
		all := true
		for _, i := range r {
			if !m.Atoms[i].Aromatic {
				all = false
				break
			}
		}
		if all {
			out = append(out, r)
		}
	}
	return out
}

// findRings marks ring bonds and collects one shortest cycle per ring bond.
func (m *Molecule) findRings() {
	m.rings = nil
	m.atomRings = make([][]int, len(m.Atoms))
	seen := map[string]bool{}

	for bi := range m.Bonds {
		b := &m.Bonds[bi]
		b.InRing = false
		path := m.shortestPathAvoiding(b.A, b.B, bi)
		if path == nil {
			continue
		}
		b.InRing = true
		key := ringKey(path)
		if seen[key] {
			continue
		}
		seen[key] = true
		m.rings = append(m.rings, path)
	}
	// Ring bonds found only as the closing bond of another ring still need
	// their flag; every bond between consecutive ring atoms is a ring bond.
	for ri, r := range m.rings {
		for k, a := range r {
			m.atomRings[a] = append(m.atomRings[a], ri)
			if bi := m.BondBetween(a, r[(k+1)%len(r)]); bi >= 0 {
				m.Bonds[bi].InRing = true
			}
		}
	}
}

// shortestPathAvoiding runs a BFS from src to dst that may not use bond skip.
// The returned path starts at src and ends at dst, or is nil.
func (m *Molecule) shortestPathAvoiding(src, dst, skip int) []int {
	prev := make([]int, len(m.Atoms))
	for i := range prev {
		prev[i] = -2
	}
	prev[src] = -1
	queue := []int{src}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == dst {
			break
		}
		for _, nb := range m.adj[cur] {
			if nb.Bond == skip || prev[nb.Atom] != -2 {
				continue
			}
			prev[nb.Atom] = cur
			queue = append(queue, nb.Atom)
		}
	}
	if prev[dst] == -2 {
		return nil
	}
	var rev []int
	for at := dst; at != -1; at = prev[at] {
		rev = append(rev, at)
	}
	path := make([]int, len(rev))
	for i := range rev {
		path[i] = rev[len(rev)-1-i]
	}
	return path
}

func ringKey(path []int) string {
	s := append([]int(nil), path...)
	sort.Ints(s)
	parts := make([]string, len(s))
	for i, v := range s {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

// ─────────────────────────────────────────────────────────────────────────────
// Aromaticity
// ─────────────────────────────────────────────────────────────────────────────

// perceiveAromaticity flags five- and six-membered rings that satisfy the
// Hückel 4n+2 rule.  Rings given as aromatic by the input stay aromatic.
func (m *Molecule) perceiveAromaticity() {
	// An aromatic bond outside any ring, such as the biaryl bond of
	// "c1ccccc1c1ccccc1", is single.
	for bi := range m.Bonds {
		if b := &m.Bonds[bi]; b.Order == BondAromatic && !b.InRing {
			b.Order = BondSingle
			b.Aromatic = false
		}
	}
	for _, r := range m.rings {
		if len(r) < 5 || len(r) > 7 {
			if m.ringBondsAromatic(r) {
				m.markAromatic(r)
			}
			continue
		}
		if m.ringBondsAromatic(r) {
			m.markAromatic(r)
			continue
		}
		if e, ok := m.piElectrons(r); ok && e%4 == 2 {
			m.markAromatic(r)
		}
	}
}

func (m *Molecule) ringBondsAromatic(r []int) bool {
	for k, a := range r {
		bi := m.BondBetween(a, r[(k+1)%len(r)])
		if bi < 0 || !m.Bonds[bi].Aromatic {
			return false
		}
	}
	return true
}

func (m *Molecule) markAromatic(r []int) {
	for k, a := range r {
		m.Atoms[a].Aromatic = true
		if bi := m.BondBetween(a, r[(k+1)%len(r)]); bi >= 0 {
			m.Bonds[bi].Aromatic = true
		}
	}
}

// piElectrons counts the π electrons a ring contributes.  ok is false when
// an atom cannot take part in an aromatic system (sp3 carbon, triple bond,
// exocyclic C=C).
func (m *Molecule) piElectrons(r []int) (int, bool) {
	total := 0
	for _, i := range r {
		a := &m.Atoms[i]
		double, exoDouble := false, false
		for _, nb := range m.adj[i] {
			b := &m.Bonds[nb.Bond]
			switch b.Order {
			case BondTriple:
				return 0, false
			case BondDouble:
				if b.InRing {
					double = true
				} else {
					exoDouble = true
					if m.Atoms[nb.Atom].AtomicNum == 6 {
						return 0, false
					}
				}
			case BondAromatic:
				double = true
			}
		}
		switch {
		case double:
			total++
		case exoDouble:
			// C=O, C=N or C=S exocyclic to the ring contributes nothing.
		case a.AtomicNum == 7 || a.AtomicNum == 15:
			if a.Charge > 0 {
				return 0, false
			}
			total += 2
		case a.AtomicNum == 8 || a.AtomicNum == 16 || a.AtomicNum == 34:
			if a.Charge != 0 {
				return 0, false
			}
			total += 2
		case a.AtomicNum == 6 && a.Charge < 0:
			total += 2
		case a.AtomicNum == 6 && a.Charge > 0:
			// empty p orbital
		case a.AtomicNum == 5:
			// empty p orbital
		default:
			return 0, false
		}
	}
	return total, true
}
