package substructure

import (
	"sort"
	"strconv"
	"strings"

	"github.com/turtacn/molfilter/internal/domain/molecule"
)

// MatchOptions bounds FindAll.
type MatchOptions struct {
	// Unique collapses matches that cover the same set of target atoms,
	// keeping the first one found.
	Unique bool
	// Max stops the search after this many matches.  Zero means no limit.
	Max int
}

// Match maps query atom k to target atom Match[k].
type Match []int

// Matches reports whether the query matches anywhere in m.  The molecule must
// already be perceived.
func (q *Query) Matches(m *molecule.Molecule) bool {
	_, ok := q.FindFirst(m)
	return ok
}

// FindFirst returns the first match found in m.
func (q *Query) FindFirst(m *molecule.Molecule) (Match, bool) {
	all := q.FindAll(m, MatchOptions{Max: 1})
	if len(all) == 0 {
		return nil, false
	}
	return all[0], true
}

// FindAll enumerates matches in a deterministic order: target atoms are tried
// in index order at every step.
func (q *Query) FindAll(m *molecule.Molecule, opts MatchOptions) []Match {
	s := newSearch(q, m, opts)
	s.extend(0, -1)
	return s.out
}

// matchesAt reports whether the query matches with its first atom mapped to
// target atom i.  It backs recursive SMARTS.
func (q *Query) matchesAt(m *molecule.Molecule, i int) bool {
	if len(q.order) == 0 || q.order[0] != 0 {
		return false
	}
	s := newSearch(q, m, MatchOptions{Max: 1})
	s.extend(0, i)
	return len(s.out) > 0
}

type search struct {
	q    *Query
	m    *molecule.Molecule
	opts MatchOptions
	qmap []int  // query atom -> target atom, -1 when unmapped
	used []bool // target atom already mapped
	seen map[string]bool
	out  []Match
}

func newSearch(q *Query, m *molecule.Molecule, opts MatchOptions) *search {
	s := &search{
		q:    q,
		m:    m,
		opts: opts,
		qmap: make([]int, len(q.atoms)),
		used: make([]bool, m.NumAtoms()),
	}
	for k := range s.qmap {
		s.qmap[k] = -1
	}
	if opts.Unique {
		s.seen = map[string]bool{}
	}
	return s
}

func (s *search) done() bool {
	return s.opts.Max > 0 && len(s.out) >= s.opts.Max
}

// extend maps the query atom at position k of the visiting order.  root, when
// non-negative, pins the first query atom to that target atom.
func (s *search) extend(k, root int) {
	if k == len(s.q.order) {
		s.record()
		return
	}
	qa := s.q.order[k]
	via := s.q.via[k]

	try := func(t int) {
		if s.used[t] || !s.q.atoms[qa].pred(s.m, t) || !s.closes(qa, t, via.bond) {
			return
		}
		s.qmap[qa], s.used[t] = t, true
		s.extend(k+1, root)
		s.qmap[qa], s.used[t] = -1, false
	}

	switch {
	case k == 0 && root >= 0:
		if root < s.m.NumAtoms() {
			try(root)
		}
	case via.atom < 0:
		for t := 0; t < s.m.NumAtoms() && !s.done(); t++ {
			try(t)
		}
	default:
		from := s.qmap[via.atom]
		pred := s.q.bonds[via.bond].pred
		for _, nb := range s.m.Neighbors(from) {
			if s.done() {
				return
			}
			if pred(s.m, nb.Bond) {
				try(nb.Atom)
			}
		}
	}
}

// closes checks every query bond from qa to an already-mapped atom other than
// the one it was reached through.
func (s *search) closes(qa, t, viaBond int) bool {
	for _, nb := range s.q.adj[qa] {
		if nb.bond == viaBond {
			continue
		}
		other := s.qmap[nb.atom]
		if other < 0 {
			continue
		}
		bi := s.m.BondBetween(t, other)
		if bi < 0 || !s.q.bonds[nb.bond].pred(s.m, bi) {
			return false
		}
	}
	return true
}

func (s *search) record() {
	match := append(Match(nil), s.qmap...)
	if s.seen != nil {
		key := atomSetKey(match)
		if s.seen[key] {
			return
		}
		s.seen[key] = true
	}
	s.out = append(s.out, match)
}

func atomSetKey(match Match) string {
	sorted := append([]int(nil), match...)
	sort.Ints(sorted)
	parts := make([]string, len(sorted))
	for i, v := range sorted {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}
