// Package substructure compiles SMARTS patterns and finds their matches in
// molecules.
//
// A compiled Query is immutable and safe for concurrent use; the screening
// pipeline compiles a pattern once at startup and shares it between workers.
package substructure

import (
	"strings"

	"github.com/turtacn/molfilter/internal/domain/molecule"
	"github.com/turtacn/molfilter/pkg/errors"
)

type atomPred func(m *molecule.Molecule, i int) bool
type bondPred func(m *molecule.Molecule, b int) bool

type qAtom struct {
	pred     atomPred
	hydrogen bool // the atom can only match a hydrogen
}

type qBond struct {
	a, b int
	pred bondPred
}

type qNeighbor struct {
	atom int
	bond int
}

// Query is a compiled SMARTS pattern.
type Query struct {
	source    string
	atoms     []qAtom
	bonds     []qBond
	adj       [][]qNeighbor
	order     []int       // atom visiting order for the matcher
	via       []qNeighbor // per order position: earlier neighbour to extend from, atom -1 if none
	explicitH bool
}

// Compile parses a SMARTS pattern.  Errors carry errors.CodeInvalidSMARTS and
// name the offending position.
func Compile(smarts string) (*Query, error) {
	p := &smartsParser{src: smarts, q: &Query{source: smarts}, prev: -1, rings: map[int]openRing{}}
	if err := p.parse(); err != nil {
		return nil, err
	}
	p.q.plan()
	return p.q, nil
}

// MustCompile is Compile that panics on error.  For patterns fixed at
// compile time only.
func MustCompile(smarts string) *Query {
	q, err := Compile(smarts)
	if err != nil {
		panic(err)
	}
	return q
}

// String returns the source pattern.
func (q *Query) String() string { return q.source }

// NumAtoms returns the number of query atoms, i.e. the length of every match.
func (q *Query) NumAtoms() int { return len(q.atoms) }

// NeedsExplicitH reports whether the pattern contains hydrogen atoms that
// can only match hydrogens present as graph atoms.
func (q *Query) NeedsExplicitH() bool { return q.explicitH }

// plan fixes a depth-first visiting order so that every query atom after the
// first of its component is adjacent to an already-mapped atom.
func (q *Query) plan() {
	n := len(q.atoms)
	seen := make([]bool, n)
	q.order = q.order[:0]
	q.via = q.via[:0]
	for start := 0; start < n; start++ {
		if seen[start] {
			continue
		}
		seen[start] = true
		stack := []qNeighbor{{atom: start, bond: -1}}
		from := map[int]int{start: -1}
		for len(stack) > 0 {
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			q.order = append(q.order, top.atom)
			q.via = append(q.via, qNeighbor{atom: from[top.atom], bond: top.bond})
			nbrs := q.adj[top.atom]
			for k := len(nbrs) - 1; k >= 0; k-- {
				nb := nbrs[k]
				if seen[nb.atom] {
					continue
				}
				seen[nb.atom] = true
				from[nb.atom] = top.atom
				stack = append(stack, qNeighbor{atom: nb.atom, bond: nb.bond})
			}
		}
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Parser
// ─────────────────────────────────────────────────────────────────────────────

type openRing struct {
	atom int
	bond bondPred
}

type smartsParser struct {
	src     string
	pos     int
	q       *Query
	prev    int
	pending bondPred
	branch  []int
	rings   map[int]openRing
}

func (p *smartsParser) fail(msg string) error {
	return errors.New(errors.CodeInvalidSMARTS, msg).WithDetailf("position %d in %q", p.pos, p.src)
}

func (p *smartsParser) peek() byte {
	if p.pos < len(p.src) {
		return p.src[p.pos]
	}
	return 0
}

func (p *smartsParser) parse() error {
	if strings.TrimSpace(p.src) == "" {
		return p.fail("empty SMARTS")
	}
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch {
		case c == '(':
			if p.prev < 0 {
				return p.fail("branch opened before any atom")
			}
			p.branch = append(p.branch, p.prev)
			p.pos++
		case c == ')':
			if len(p.branch) == 0 {
				return p.fail("unbalanced ')'")
			}
			if p.pending != nil {
				return p.fail("bond before ')'")
			}
			p.prev = p.branch[len(p.branch)-1]
			p.branch = p.branch[:len(p.branch)-1]
			p.pos++
		case c == '.':
			if p.pending != nil {
				return p.fail("bond before '.'")
			}
			p.prev = -1
			p.pos++
		case isBondChar(c):
			if p.pending != nil {
				return p.fail("two consecutive bonds")
			}
			b, err := p.parseBondLow()
			if err != nil {
				return err
			}
			p.pending = b
		case c >= '0' && c <= '9', c == '%':
			if err := p.ringClosure(); err != nil {
				return err
			}
		case c == '[':
			p.pos++
			pred, hydrogen, err := p.parseAtomLow(true)
			if err != nil {
				return err
			}
			if p.peek() != ']' {
				return p.fail("expected ']'")
			}
			p.pos++
			if err := p.attach(qAtom{pred: pred, hydrogen: hydrogen}); err != nil {
				return err
			}
		default:
			pred, err := p.organicAtom()
			if err != nil {
				return err
			}
			if err := p.attach(qAtom{pred: pred}); err != nil {
				return err
			}
		}
	}
	switch {
	case len(p.branch) > 0:
		return p.fail("unclosed branch")
	case len(p.rings) > 0:
		return p.fail("unclosed ring bond")
	case p.pending != nil:
		return p.fail("dangling bond")
	case len(p.q.atoms) == 0:
		return p.fail("no atoms")
	}
	return nil
}

func (p *smartsParser) addBond(a, b int, pred bondPred) error {
	for _, nb := range p.q.adj[a] {
		if nb.atom == b {
			return p.fail("duplicate bond")
		}
	}
	if a == b {
		return p.fail("atom bonded to itself")
	}
	if pred == nil {
		pred = singleOrAromatic
	}
	p.q.bonds = append(p.q.bonds, qBond{a: a, b: b, pred: pred})
	bi := len(p.q.bonds) - 1
	p.q.adj[a] = append(p.q.adj[a], qNeighbor{atom: b, bond: bi})
	p.q.adj[b] = append(p.q.adj[b], qNeighbor{atom: a, bond: bi})
	return nil
}

func (p *smartsParser) attach(a qAtom) error {
	p.q.atoms = append(p.q.atoms, a)
	p.q.adj = append(p.q.adj, nil)
	idx := len(p.q.atoms) - 1
	if a.hydrogen {
		p.q.explicitH = true
	}
	if p.prev >= 0 {
		if err := p.addBond(p.prev, idx, p.pending); err != nil {
			return err
		}
	} else if p.pending != nil {
		return p.fail("bond without a preceding atom")
	}
	p.pending = nil
	p.prev = idx
	return nil
}

func (p *smartsParser) ringClosure() error {
	if p.prev < 0 {
		return p.fail("ring bond before any atom")
	}
	var num int
	if p.src[p.pos] == '%' {
		if p.pos+2 >= len(p.src) || !isDigit(p.src[p.pos+1]) || !isDigit(p.src[p.pos+2]) {
			return p.fail("'%' must be followed by two digits")
		}
		num = int(p.src[p.pos+1]-'0')*10 + int(p.src[p.pos+2]-'0')
		p.pos += 3
	} else {
		num = int(p.src[p.pos] - '0')
		p.pos++
	}
	open, ok := p.rings[num]
	if !ok {
		p.rings[num] = openRing{atom: p.prev, bond: p.pending}
		p.pending = nil
		return nil
	}
	delete(p.rings, num)
	pred := p.pending
	if pred == nil {
		pred = open.bond
	}
	p.pending = nil
	return p.addBond(open.atom, p.prev, pred)
}

// organicAtom parses an atom written outside brackets.
func (p *smartsParser) organicAtom() (atomPred, error) {
	rest := p.src[p.pos:]
	for _, sym := range []string{"Cl", "Br"} {
		if strings.HasPrefix(rest, sym) {
			p.pos += 2
			return aliphaticElement(sym), nil
		}
	}
	c := rest[0]
	p.pos++
	switch c {
	case '*':
		return anyAtom, nil
	case 'A':
		return aliphatic, nil
	case 'a':
		return aromatic, nil
	case 'B', 'C', 'N', 'O', 'P', 'S', 'F', 'I':
		return aliphaticElement(string(c)), nil
	case 'b', 'c', 'n', 'o', 'p', 's':
		return aromaticElement(strings.ToUpper(string(c))), nil
	}
	p.pos--
	return nil, p.fail("unexpected character '" + string(c) + "'")
}

// ─────────────────────────────────────────────────────────────────────────────
// Bracket atom expressions: ';' < ',' < '&' = juxtaposition < '!'
// ─────────────────────────────────────────────────────────────────────────────

func (p *smartsParser) parseAtomLow(first bool) (atomPred, bool, error) {
	left, h, err := p.parseAtomOr(first)
	if err != nil {
		return nil, false, err
	}
	for p.peek() == ';' {
		p.pos++
		right, h2, err := p.parseAtomOr(false)
		if err != nil {
			return nil, false, err
		}
		left, h = andAtom(left, right), h || h2
	}
	return left, h, nil
}

func (p *smartsParser) parseAtomOr(first bool) (atomPred, bool, error) {
	left, h, err := p.parseAtomHigh(first)
	if err != nil {
		return nil, false, err
	}
	for p.peek() == ',' {
		p.pos++
		right, h2, err := p.parseAtomHigh(false)
		if err != nil {
			return nil, false, err
		}
		// Either branch may match a heavy atom, so the hydrogen marker only
		// holds when both sides are hydrogens.
		left, h = orAtom(left, right), h && h2
	}
	return left, h, nil
}

func (p *smartsParser) parseAtomHigh(first bool) (atomPred, bool, error) {
	left, h, err := p.parseAtomUnary(first)
	if err != nil {
		return nil, false, err
	}
	for {
		c := p.peek()
		switch {
		case c == '&':
			p.pos++
		case c == 0 || c == ']' || c == ',' || c == ';' || c == ')':
			return left, h, nil
		}
		right, h2, err := p.parseAtomUnary(false)
		if err != nil {
			return nil, false, err
		}
		left, h = andAtom(left, right), h || h2
	}
}

func (p *smartsParser) parseAtomUnary(first bool) (atomPred, bool, error) {
	if p.peek() == '!' {
		p.pos++
		inner, _, err := p.parseAtomUnary(false)
		if err != nil {
			return nil, false, err
		}
		return notAtom(inner), false, nil
	}
	return p.parseAtomPrimitive(first)
}

// readCount reads an optional unsigned integer.
func (p *smartsParser) readCount() (int, bool) {
	start := p.pos
	n := 0
	for p.pos < len(p.src) && isDigit(p.src[p.pos]) {
		n = n*10 + int(p.src[p.pos]-'0')
		p.pos++
	}
	return n, p.pos > start
}

func (p *smartsParser) parseAtomPrimitive(first bool) (atomPred, bool, error) {
	if p.pos >= len(p.src) {
		return nil, false, p.fail("unterminated bracket atom")
	}
	c := p.src[p.pos]
	rest := p.src[p.pos:]

	// Two-letter element symbols win over a one-letter primitive followed by
	// a lower-case primitive: [Cl], [Br], [Na], [Se], [Xe].
	if c >= 'A' && c <= 'Z' && len(rest) > 1 && rest[1] >= 'a' && rest[1] <= 'z' {
		if e, ok := molecule.LookupSymbol(rest[:2]); ok && e.Number > 0 {
			p.pos += 2
			return aliphaticElement(e.Symbol), false, nil
		}
	}

	switch {
	case c == '*':
		p.pos++
		return anyAtom, false, nil
	case c == 'a':
		if strings.HasPrefix(rest, "as") {
			p.pos += 2
			return aromaticElement("As"), false, nil
		}
		p.pos++
		return aromatic, false, nil
	case c == 'A':
		p.pos++
		return aliphatic, false, nil
	case c == '#':
		p.pos++
		n, ok := p.readCount()
		if !ok {
			return nil, false, p.fail("'#' must be followed by an atomic number")
		}
		return atomicNumber(n), n == 1, nil
	case c == 'H':
		p.pos++
		next := p.peek()
		if first && (next == ']' || next == '+' || next == '-' || next == ':') {
			return atomicNumber(1), true, nil
		}
		n, ok := p.readCount()
		if !ok {
			n = 1
		}
		return totalH(n), false, nil
	case c == 'h':
		p.pos++
		n, ok := p.readCount()
		if !ok {
			return implicitHAny, false, nil
		}
		return implicitH(n), false, nil
	case c == 'D':
		p.pos++
		n, ok := p.readCount()
		if !ok {
			n = 1
		}
		return degree(n), false, nil
	case c == 'X':
		p.pos++
		n, ok := p.readCount()
		if !ok {
			n = 1
		}
		return connectivity(n), false, nil
	case c == 'v':
		p.pos++
		n, ok := p.readCount()
		if !ok {
			n = 1
		}
		return valence(n), false, nil
	case c == 'R':
		p.pos++
		n, ok := p.readCount()
		if !ok {
			return inRing, false, nil
		}
		return ringCount(n), false, nil
	case c == 'r':
		p.pos++
		n, ok := p.readCount()
		if !ok {
			return inRing, false, nil
		}
		if n == 0 {
			return notAtom(inRing), false, nil
		}
		return smallestRing(n), false, nil
	case c == 'x':
		p.pos++
		n, ok := p.readCount()
		if !ok {
			return ringBondsAny, false, nil
		}
		return ringBonds(n), false, nil
	case c == '+' || c == '-':
		return p.parseCharge(), false, nil
	case c == '@':
		for p.peek() == '@' || p.peek() == '?' {
			p.pos++
		}
		return anyAtom, false, nil
	case isDigit(c):
		n, _ := p.readCount()
		if p.peek() == 'H' && p.pos+1 < len(p.src) && strings.IndexByte("]+-:", p.src[p.pos+1]) >= 0 {
			p.pos++
			return andAtom(isotope(n), atomicNumber(1)), true, nil
		}
		return isotope(n), false, nil
	case c == ':':
		p.pos++
		if _, ok := p.readCount(); !ok {
			return nil, false, p.fail("':' must be followed by an atom map number")
		}
		return anyAtom, false, nil
	case c == '$':
		return p.parseRecursive()
	case c >= 'A' && c <= 'Z':
		e, ok := molecule.LookupSymbol(string(c))
		if !ok {
			return nil, false, p.fail("unknown element '" + string(c) + "'")
		}
		p.pos++
		return aliphaticElement(e.Symbol), false, nil
	case c >= 'a' && c <= 'z':
		for _, two := range []string{"se", "te"} {
			if strings.HasPrefix(rest, two) {
				p.pos += 2
				return aromaticElement(molecule.NormalizeSymbol(two)), false, nil
			}
		}
		switch c {
		case 'b', 'c', 'n', 'o', 'p', 's':
			p.pos++
			return aromaticElement(strings.ToUpper(string(c))), false, nil
		}
	}
	return nil, false, p.fail("unsupported SMARTS primitive '" + string(c) + "'")
}

func (p *smartsParser) parseCharge() atomPred {
	c := p.src[p.pos]
	sign := 1
	if c == '-' {
		sign = -1
	}
	p.pos++
	if n, ok := p.readCount(); ok {
		return charge(sign * n)
	}
	n := 1
	for p.peek() == c {
		n++
		p.pos++
	}
	return charge(sign * n)
}

// parseRecursive compiles "$(...)" and returns a predicate that holds when
// the inner pattern matches with its first atom on the tested atom.
func (p *smartsParser) parseRecursive() (atomPred, bool, error) {
	if !strings.HasPrefix(p.src[p.pos:], "$(") {
		return nil, false, p.fail("'$' must be followed by '('")
	}
	start := p.pos + 2
	depth := 1
	i := start
	for ; i < len(p.src) && depth > 0; i++ {
		switch p.src[i] {
		case '(':
			depth++
		case ')':
			depth--
		}
	}
	if depth != 0 {
		return nil, false, p.fail("unclosed recursive SMARTS")
	}
	inner, err := Compile(p.src[start : i-1])
	if err != nil {
		return nil, false, errors.Wrap(err, errors.CodeInvalidSMARTS, "invalid recursive SMARTS").
			WithDetailf("position %d in %q", p.pos, p.src)
	}
	p.pos = i
	return func(m *molecule.Molecule, a int) bool {
		return inner.matchesAt(m, a)
	}, false, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Bond expressions
// ─────────────────────────────────────────────────────────────────────────────

func isBondChar(c byte) bool {
	return strings.IndexByte("-=#:~@/\\!&,;", c) >= 0
}

func isBondPrimitive(c byte) bool {
	return strings.IndexByte("-=#:~@/\\", c) >= 0
}

func (p *smartsParser) parseBondLow() (bondPred, error) {
	left, err := p.parseBondOr()
	if err != nil {
		return nil, err
	}
	for p.peek() == ';' {
		p.pos++
		right, err := p.parseBondOr()
		if err != nil {
			return nil, err
		}
		left = andBond(left, right)
	}
	return left, nil
}

func (p *smartsParser) parseBondOr() (bondPred, error) {
	left, err := p.parseBondHigh()
	if err != nil {
		return nil, err
	}
	for p.peek() == ',' {
		p.pos++
		right, err := p.parseBondHigh()
		if err != nil {
			return nil, err
		}
		left = orBond(left, right)
	}
	return left, nil
}

func (p *smartsParser) parseBondHigh() (bondPred, error) {
	left, err := p.parseBondUnary()
	if err != nil {
		return nil, err
	}
	for {
		c := p.peek()
		if c == '&' {
			p.pos++
		} else if !isBondPrimitive(c) && c != '!' {
			return left, nil
		}
		right, err := p.parseBondUnary()
		if err != nil {
			return nil, err
		}
		left = andBond(left, right)
	}
}

func (p *smartsParser) parseBondUnary() (bondPred, error) {
	if p.peek() == '!' {
		p.pos++
		inner, err := p.parseBondUnary()
		if err != nil {
			return nil, err
		}
		return notBond(inner), nil
	}
	c := p.peek()
	if !isBondPrimitive(c) {
		return nil, p.fail("expected a bond primitive")
	}
	p.pos++
	switch c {
	case '-', '/', '\\':
		return singleBond, nil
	case '=':
		return doubleBond, nil
	case '#':
		return tripleBond, nil
	case ':':
		return aromaticBond, nil
	case '~':
		return anyBond, nil
	default: // '@'
		return ringBond, nil
	}
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
