package molecule

import (
	"strings"

	"github.com/turtacn/molfilter/pkg/errors"
)

// ParseSMILES parses a SMILES string into a perceived Molecule.
//
// Supported: the organic subset, bracket atoms (isotope, element, chirality,
// hydrogen count, charge, atom class), bonds - = # : / \, branches, ring
// closures including %nn, and '.' disconnections.  Stereo marks are
// accepted and ignored.
func ParseSMILES(s string) (*Molecule, error) {
	p := &smilesParser{src: s, mol: New(""), prev: -1, rings: map[int]ringOpen{}}
	if err := p.parse(); err != nil {
		return nil, err
	}
	p.mol.Perceive(PerceiveOptions{})
	return p.mol, nil
}

type ringOpen struct {
	atom  int
	order BondOrder // 0 when unspecified
}

type smilesParser struct {
	src     string
	pos     int
	mol     *Molecule
	prev    int
	pending BondOrder
	branch  []int
	rings   map[int]ringOpen
}

func (p *smilesParser) fail(msg string) error {
	return errors.New(errors.CodeInvalidSMILES, msg).WithDetailf("position %d in %q", p.pos, p.src)
}

func (p *smilesParser) parse() error {
	if strings.TrimSpace(p.src) == "" {
		return p.fail("empty SMILES")
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
			if p.pending != 0 {
				return p.fail("bond symbol before ')'")
			}
			p.prev = p.branch[len(p.branch)-1]
			p.branch = p.branch[:len(p.branch)-1]
			p.pos++
		case c == '.':
			if p.pending != 0 {
				return p.fail("bond symbol before '.'")
			}
			p.prev = -1
			p.pos++
		case strings.IndexByte("-=#:/\\$", c) >= 0:
			if p.pending != 0 {
				return p.fail("two consecutive bond symbols")
			}
			switch c {
			case '=':
				p.pending = BondDouble
			case '#':
				p.pending = BondTriple
			case ':':
				p.pending = BondAromatic
			case '$':
				return p.fail("quadruple bonds are not supported")
			default:
				p.pending = BondSingle
			}
			p.pos++
		case c >= '0' && c <= '9', c == '%':
			if err := p.ringClosure(); err != nil {
				return err
			}
		case c == '[':
			if err := p.bracketAtom(); err != nil {
				return err
			}
		case c == ' ' || c == '\t':
			// Anything after whitespace is a title or CXSMILES extension.
			p.pos = len(p.src)
		default:
			if err := p.organicAtom(); err != nil {
				return err
			}
		}
	}
	switch {
	case len(p.branch) > 0:
		return p.fail("unclosed branch")
	case len(p.rings) > 0:
		return p.fail("unclosed ring bond")
	case p.pending != 0:
		return p.fail("dangling bond symbol")
	case len(p.mol.Atoms) == 0:
		return p.fail("no atoms")
	}
	return nil
}

func (p *smilesParser) implicitOrder(a, b int) BondOrder {
	if p.mol.Atoms[a].Aromatic && p.mol.Atoms[b].Aromatic {
		return BondAromatic
	}
	return BondSingle
}

func (p *smilesParser) attach(a Atom) error {
	idx := p.mol.AddAtom(a)
	if p.prev >= 0 {
		order := p.pending
		if order == 0 {
			order = p.implicitOrder(p.prev, idx)
		}
		if _, err := p.mol.AddBond(p.prev, idx, order); err != nil {
			return p.fail(err.Error())
		}
	} else if p.pending != 0 {
		return p.fail("bond symbol without a preceding atom")
	}
	p.pending = 0
	p.prev = idx
	return nil
}

func (p *smilesParser) organicAtom() error {
	rest := p.src[p.pos:]
	for _, sym := range []string{"Cl", "Br"} {
		if strings.HasPrefix(rest, sym) {
			p.pos += 2
			e, _ := LookupSymbol(sym)
			return p.attach(Atom{Element: sym, AtomicNum: e.Number})
		}
	}
	c := rest[0]
	switch c {
	case '*':
		p.pos++
		return p.attach(Atom{Element: "*", NoImplicit: true})
	case 'B', 'C', 'N', 'O', 'P', 'S', 'F', 'I':
		p.pos++
		e, _ := LookupSymbol(string(c))
		return p.attach(Atom{Element: e.Symbol, AtomicNum: e.Number})
	case 'b', 'c', 'n', 'o', 'p', 's':
		p.pos++
		e, _ := LookupSymbol(strings.ToUpper(string(c)))
		return p.attach(Atom{Element: e.Symbol, AtomicNum: e.Number, Aromatic: true})
	}
	return p.fail("unexpected character '" + string(c) + "'")
}

func (p *smilesParser) ringClosure() error {
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
		p.rings[num] = ringOpen{atom: p.prev, order: p.pending}
		p.pending = 0
		return nil
	}
	delete(p.rings, num)

	order := p.pending
	switch {
	case order == 0:
		order = open.order
	case open.order != 0 && open.order != order:
		return p.fail("conflicting ring bond orders")
	}
	if order == 0 {
		order = p.implicitOrder(open.atom, p.prev)
	}
	if _, err := p.mol.AddBond(open.atom, p.prev, order); err != nil {
		return p.fail(err.Error())
	}
	p.pending = 0
	return nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func (p *smilesParser) bracketAtom() error {
	end := strings.IndexByte(p.src[p.pos:], ']')
	if end < 0 {
		return p.fail("unclosed '['")
	}
	body := p.src[p.pos+1 : p.pos+end]
	a, err := parseBracket(body)
	if err != nil {
		return p.fail(err.Error())
	}
	p.pos += end + 1
	return p.attach(a)
}

// parseBracket parses the contents of a bracket atom, e.g. "13CH3+:1".
func parseBracket(body string) (Atom, error) {
	var a Atom
	a.NoImplicit = true
	i := 0

	for i < len(body) && isDigit(body[i]) {
		a.Isotope = a.Isotope*10 + int(body[i]-'0')
		i++
	}

	if i >= len(body) {
		return a, errors.New(errors.CodeInvalidSMILES, "bracket atom without element")
	}
	switch {
	case body[i] == '*':
		a.Element = "*"
		i++
	case body[i] >= 'a' && body[i] <= 'z':
		sym := ""
		for _, two := range []string{"se", "as", "te"} {
			if strings.HasPrefix(body[i:], two) {
				sym = two
				break
			}
		}
		if sym == "" {
			sym = body[i : i+1]
		}
		e, ok := LookupSymbol(NormalizeSymbol(sym))
		if !ok || !aromaticCapable[e.Symbol] {
			return a, errors.New(errors.CodeInvalidSMILES, "invalid aromatic element '"+sym+"'")
		}
		a.Element, a.AtomicNum, a.Aromatic = e.Symbol, e.Number, true
		i += len(sym)
	case body[i] >= 'A' && body[i] <= 'Z':
		sym := body[i : i+1]
		if i+1 < len(body) && body[i+1] >= 'a' && body[i+1] <= 'z' {
			if _, ok := LookupSymbol(body[i : i+2]); ok {
				sym = body[i : i+2]
			}
		}
		e, ok := LookupSymbol(sym)
		if !ok {
			return a, errors.New(errors.CodeInvalidSMILES, "unknown element '"+sym+"'")
		}
		a.Element, a.AtomicNum = e.Symbol, e.Number
		i += len(sym)
	default:
		return a, errors.New(errors.CodeInvalidSMILES, "bracket atom without element")
	}

	// Chirality.
	chiral := false
	for i < len(body) && body[i] == '@' {
		chiral = true
		i++
	}
	for _, cls := range []string{"TH", "AL", "SP", "TB", "OH"} {
		if chiral && strings.HasPrefix(body[i:], cls) {
			i += 2
			for i < len(body) && isDigit(body[i]) {
				i++
			}
			break
		}
	}

	// Hydrogen count.
	if i < len(body) && body[i] == 'H' {
		i++
		a.HCount = 1
		if i < len(body) && isDigit(body[i]) {
			a.HCount = int(body[i] - '0')
			i++
		}
	}

	// Charge.
	if i < len(body) && (body[i] == '+' || body[i] == '-') {
		sign := 1
		if body[i] == '-' {
			sign = -1
		}
		c := body[i]
		i++
		n := 1
		if i < len(body) && isDigit(body[i]) {
			n = 0
			for i < len(body) && isDigit(body[i]) {
				n = n*10 + int(body[i]-'0')
				i++
			}
		} else {
			for i < len(body) && body[i] == c {
				n++
				i++
			}
		}
		a.Charge = sign * n
	}

	// Atom class.
	if i < len(body) && body[i] == ':' {
		i++
		for i < len(body) && isDigit(body[i]) {
			i++
		}
	}

	if i != len(body) {
		return a, errors.New(errors.CodeInvalidSMILES, "unexpected text in bracket atom '"+body[i:]+"'")
	}
	return a, nil
}
