package chemio

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/turtacn/molfilter/internal/domain/geometry"
	"github.com/turtacn/molfilter/internal/domain/molecule"
	"github.com/turtacn/molfilter/pkg/errors"
)

// parsePDB reads ATOM and HETATM records of one model.  Only the first
// alternate location is kept.  CONECT records add single bonds between the
// atoms they name; standard residues carry no bonds and are typed by name.
func parsePDB(raw string) (*molecule.Molecule, error) {
	mol := molecule.New("")
	serials := map[int]int{}
	var conect []string
	for _, l := range strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n") {
		rec := column(l, 0, 6)
		switch rec {
		case "ATOM", "HETATM":
		case "CONECT":
			conect = append(conect, l)
			continue
		default:
			continue
		}
		if len(l) < 54 {
			return nil, fmt.Errorf("truncated %s record %q", rec, l)
		}
		if alt := l[16]; alt != ' ' && alt != 'A' && alt != '1' {
			continue
		}
		x, ex := strconv.ParseFloat(column(l, 30, 38), 64)
		y, ey := strconv.ParseFloat(column(l, 38, 46), 64)
		z, ez := strconv.ParseFloat(column(l, 46, 54), 64)
		if ex != nil || ey != nil || ez != nil {
			return nil, fmt.Errorf("malformed coordinates in %q", l)
		}
		name := column(l, 12, 16)
		sym := column(l, 76, 78)
		if sym == "" {
			sym = elementFromAtomName(l[12:16])
		}
		a, err := elementAtom(sym)
		if err != nil {
			return nil, fmt.Errorf("atom %q: %w", name, err)
		}
		a.Charge = pdbCharge(column(l, 78, 80))
		a.Coord = geometry.Vec3{X: x, Y: y, Z: z}
		a.HasCoord = true
		resNum, _ := strconv.Atoi(column(l, 22, 26))
		a.Residue = &molecule.ResidueInfo{
			Name:      column(l, 17, 20),
			Number:    resNum,
			Insertion: column(l, 26, 27),
			Chain:     column(l, 21, 22),
			AtomName:  name,
			HetAtom:   rec == "HETATM",
		}
		idx := mol.AddAtom(a)
		if serial, err := strconv.Atoi(column(l, 6, 11)); err == nil {
			serials[serial] = idx
		}
	}
	for _, l := range conect {
		from, err := strconv.Atoi(column(l, 6, 11))
		if err != nil {
			continue
		}
		a, ok := serials[from]
		if !ok {
			continue
		}
		for start := 11; start+5 <= len(l) && start < 31; start += 5 {
			to, err := strconv.Atoi(column(l, start, start+5))
			if err != nil {
				continue
			}
			if b, ok := serials[to]; ok && mol.BondBetween(a, b) < 0 && a != b {
				_, _ = mol.AddBond(a, b, molecule.BondSingle)
			}
		}
	}
	return mol, nil
}

// elementFromAtomName guesses the element from columns 13-16 when the
// element columns are blank: a name starting in column 13 has a two-letter
// symbol, otherwise the first letter is the element.
func elementFromAtomName(name string) string {
	name = strings.TrimRight(name, " ")
	if name == "" {
		return ""
	}
	// four-character hydrogen names such as "HG11" also start in column 13
	if name[0] != ' ' && name[0] != 'H' && !isDigitByte(name[0]) && len(name) >= 2 {
		two := molecule.NormalizeSymbol(name[:2])
		if _, ok := molecule.LookupSymbol(two); ok {
			return two
		}
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z' {
			return string(c)
		}
	}
	return ""
}

func isDigitByte(c byte) bool { return c >= '0' && c <= '9' }

// pdbCharge parses the "2+" / "1-" charge columns.
func pdbCharge(s string) int {
	if len(s) != 2 {
		return 0
	}
	n := int(s[0] - '0')
	if n < 0 || n > 9 {
		return 0
	}
	switch s[1] {
	case '+':
		return n
	case '-':
		return -n
	}
	return 0
}

// ─────────────────────────────────────────────────────────────────────────────
// Auxiliary structures
// ─────────────────────────────────────────────────────────────────────────────

// LoadOptions configures LoadStructure.
type LoadOptions struct {
	Format Format
	Store  ObjectStore
	Parse  ParseOptions
}

// LoadStructure reads the first structure of an auxiliary file such as a
// protein or a reference pose.  Unlike library records, a structure that
// cannot be read here is a run-level error.
func LoadStructure(ctx context.Context, uri string, opts LoadOptions) (*molecule.Molecule, error) {
	r, err := Open(ctx, uri, OpenOptions{Format: opts.Format, Store: opts.Store})
	if err != nil {
		return nil, err
	}
	defer r.Close()

	rec, err := r.Next()
	if err == io.EOF {
		return nil, errors.New(errors.CodeAuxiliaryEmpty, "file holds no structure").WithDetailf("path %q", uri)
	}
	if err != nil {
		return nil, err
	}
	mol, err := Parse(rec, opts.Parse)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInputUnreadable, "cannot parse structure").WithDetailf("path %q", uri)
	}
	return mol, nil
}
