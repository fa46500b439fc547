package chemio

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/turtacn/molfilter/internal/domain/geometry"
	"github.com/turtacn/molfilter/internal/domain/molecule"
	"github.com/turtacn/molfilter/pkg/errors"
)

// ParseOptions controls Parse.
type ParseOptions struct {
	// KeepHydrogens keeps hydrogen atoms read from the file as graph atoms.
	// By default they are folded into their heavy atom's hydrogen count.
	KeepHydrogens bool
}

// Parse converts one record into a perceived molecule.  Failures are
// record-level errors (see errors.IsRecordLevel).
func Parse(rec Record, opts ParseOptions) (*molecule.Molecule, error) {
	var (
		mol *molecule.Molecule
		err error
	)
	switch rec.Format {
	case FormatSMILES:
		smi := rec.Prop(PropSMILES)
		if smi == "" {
			return nil, errors.RecordParse(rec.Index, rec.Name, fmt.Errorf("empty SMILES column"))
		}
		mol, err = molecule.ParseSMILES(smi)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeInvalidSMILES, "invalid SMILES").
				WithDetailf("index=%d name=%q", rec.Index, rec.Name)
		}
		mol.Name = rec.Name
		return mol, nil
	case FormatSDF:
		mol, err = parseMolfile(string(rec.Raw))
	case FormatMOL2:
		mol, err = parseMOL2(string(rec.Raw))
	case FormatPDB:
		mol, err = parsePDB(string(rec.Raw))
	default:
		err = fmt.Errorf("unsupported format %q", rec.Format)
	}
	if err != nil {
		return nil, errors.RecordParse(rec.Index, rec.Name, err)
	}
	if mol.NumAtoms() == 0 {
		return nil, errors.RecordParse(rec.Index, rec.Name, fmt.Errorf("record holds no atoms"))
	}
	mol.Name = rec.Name
	if !opts.KeepHydrogens {
		mol, _ = mol.SuppressHydrogens()
	}
	mol.Perceive(molecule.PerceiveOptions{SkipRings: rec.Format == FormatPDB})
	return mol, nil
}

func column(line string, from, to int) string {
	if from >= len(line) {
		return ""
	}
	if to > len(line) {
		to = len(line)
	}
	return strings.TrimSpace(line[from:to])
}

func elementAtom(symbol string) (molecule.Atom, error) {
	sym := molecule.NormalizeSymbol(symbol)
	switch sym {
	case "*", "A", "Q", "R", "L", "Du", "Lp":
		return molecule.Atom{Element: "*"}, nil
	}
	info, ok := molecule.LookupSymbol(sym)
	if !ok {
		return molecule.Atom{}, fmt.Errorf("unknown element %q", symbol)
	}
	return molecule.Atom{Element: info.Symbol, AtomicNum: info.Number}, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// MDL molfile (V2000)
// ─────────────────────────────────────────────────────────────────────────────

// sdfCharge maps the V2000 atom block charge field to a formal charge.
var sdfCharge = map[int]int{1: 3, 2: 2, 3: 1, 5: -1, 6: -2, 7: -3}

func parseMolfile(raw string) (*molecule.Molecule, error) {
	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")
	if len(lines) < 4 {
		return nil, fmt.Errorf("molfile truncated before counts line")
	}
	counts := lines[3]
	if strings.Contains(counts, "V3000") {
		return nil, fmt.Errorf("V3000 molfiles are not supported")
	}
	nAtoms, err1 := strconv.Atoi(column(counts, 0, 3))
	nBonds, err2 := strconv.Atoi(column(counts, 3, 6))
	if err1 != nil || err2 != nil {
		return nil, fmt.Errorf("malformed counts line %q", counts)
	}
	if len(lines) < 4+nAtoms+nBonds {
		return nil, fmt.Errorf("molfile truncated: %d atoms and %d bonds declared", nAtoms, nBonds)
	}

	mol := molecule.New(strings.TrimSpace(lines[0]))
	for i := 0; i < nAtoms; i++ {
		l := lines[4+i]
		x, ex := strconv.ParseFloat(column(l, 0, 10), 64)
		y, ey := strconv.ParseFloat(column(l, 10, 20), 64)
		z, ez := strconv.ParseFloat(column(l, 20, 30), 64)
		if ex != nil || ey != nil || ez != nil {
			return nil, fmt.Errorf("atom %d: malformed coordinates", i+1)
		}
		a, err := elementAtom(column(l, 31, 34))
		if err != nil {
			return nil, fmt.Errorf("atom %d: %w", i+1, err)
		}
		if ccc, err := strconv.Atoi(column(l, 36, 39)); err == nil {
			a.Charge = sdfCharge[ccc]
		}
		a.Coord = geometry.Vec3{X: x, Y: y, Z: z}
		a.HasCoord = true
		mol.AddAtom(a)
	}
	for i := 0; i < nBonds; i++ {
		l := lines[4+nAtoms+i]
		a, ea := strconv.Atoi(column(l, 0, 3))
		b, eb := strconv.Atoi(column(l, 3, 6))
		t, et := strconv.Atoi(column(l, 6, 9))
		if ea != nil || eb != nil || et != nil {
			return nil, fmt.Errorf("bond %d: malformed bond line %q", i+1, l)
		}
		order, err := sdfBondOrder(t)
		if err != nil {
			return nil, fmt.Errorf("bond %d: %w", i+1, err)
		}
		if _, err := mol.AddBond(a-1, b-1, order); err != nil {
			return nil, fmt.Errorf("bond %d: %w", i+1, err)
		}
	}

	// Properties block; M  CHG and M  ISO supersede the atom block fields.
	chgSeen := false
	for _, l := range lines[4+nAtoms+nBonds:] {
		if strings.HasPrefix(l, "M  END") {
			break
		}
		switch {
		case strings.HasPrefix(l, "M  CHG"):
			if !chgSeen {
				for i := range mol.Atoms {
					mol.Atoms[i].Charge = 0
				}
				chgSeen = true
			}
			if err := applyPropertyPairs(mol, l, func(a *molecule.Atom, v int) { a.Charge = v }); err != nil {
				return nil, err
			}
		case strings.HasPrefix(l, "M  ISO"):
			if err := applyPropertyPairs(mol, l, func(a *molecule.Atom, v int) { a.Isotope = v }); err != nil {
				return nil, err
			}
		}
	}
	return mol, nil
}

func sdfBondOrder(t int) (molecule.BondOrder, error) {
	switch t {
	case 1:
		return molecule.BondSingle, nil
	case 2:
		return molecule.BondDouble, nil
	case 3:
		return molecule.BondTriple, nil
	case 4:
		return molecule.BondAromatic, nil
	case 5, 6, 7, 8:
		// query bond types; single is the closest concrete order
		return molecule.BondSingle, nil
	}
	return 0, fmt.Errorf("unknown bond type %d", t)
}

// applyPropertyPairs parses "M  XXXnn8 aaa vvv ..." lines.
func applyPropertyPairs(mol *molecule.Molecule, line string, set func(*molecule.Atom, int)) error {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return fmt.Errorf("malformed property line %q", line)
	}
	n, err := strconv.Atoi(fields[2])
	if err != nil || len(fields) < 3+2*n {
		return fmt.Errorf("malformed property line %q", line)
	}
	for k := 0; k < n; k++ {
		idx, e1 := strconv.Atoi(fields[3+2*k])
		val, e2 := strconv.Atoi(fields[4+2*k])
		if e1 != nil || e2 != nil || idx < 1 || idx > mol.NumAtoms() {
			return fmt.Errorf("malformed property line %q", line)
		}
		set(&mol.Atoms[idx-1], val)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Tripos MOL2
// ─────────────────────────────────────────────────────────────────────────────

func parseMOL2(raw string) (*molecule.Molecule, error) {
	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")
	mol := molecule.New("")
	ids := map[string]int{}
	substOf := map[int]string{}
	chains := map[string]string{}
	section := ""
	sawAtoms := false
	for i, l := range lines {
		t := strings.TrimSpace(l)
		if strings.HasPrefix(t, "@<TRIPOS>") {
			section = strings.TrimPrefix(t, "@<TRIPOS>")
			if section == "MOLECULE" && i+1 < len(lines) {
				mol.Name = strings.TrimSpace(lines[i+1])
			}
			continue
		}
		if t == "" || strings.HasPrefix(t, "#") {
			continue
		}
		switch section {
		case "ATOM":
			sawAtoms = true
			f := strings.Fields(t)
			if len(f) < 6 {
				return nil, fmt.Errorf("malformed ATOM line %q", t)
			}
			x, ex := strconv.ParseFloat(f[2], 64)
			y, ey := strconv.ParseFloat(f[3], 64)
			z, ez := strconv.ParseFloat(f[4], 64)
			if ex != nil || ey != nil || ez != nil {
				return nil, fmt.Errorf("atom %s: malformed coordinates", f[0])
			}
			sybyl := f[5]
			elem, _, _ := strings.Cut(sybyl, ".")
			a, err := elementAtom(elem)
			if err != nil {
				return nil, fmt.Errorf("atom %s: %w", f[0], err)
			}
			a.Label = sybyl
			a.Coord = geometry.Vec3{X: x, Y: y, Z: z}
			a.HasCoord = true
			if sybyl == "N.4" {
				a.Charge = 1
			}
			if len(f) >= 8 {
				a.Residue = mol2Residue(f[6], f[7], f[1])
			}
			if _, dup := ids[f[0]]; dup {
				return nil, fmt.Errorf("duplicate atom id %s", f[0])
			}
			ids[f[0]] = mol.AddAtom(a)
			if a.Residue != nil {
				substOf[ids[f[0]]] = f[6]
			}
		case "BOND":
			f := strings.Fields(t)
			if len(f) < 4 {
				return nil, fmt.Errorf("malformed BOND line %q", t)
			}
			a, okA := ids[f[1]]
			b, okB := ids[f[2]]
			if !okA || !okB {
				return nil, fmt.Errorf("bond %s references a missing atom", f[0])
			}
			order, err := mol2BondOrder(f[3])
			if err != nil {
				return nil, fmt.Errorf("bond %s: %w", f[0], err)
			}
			if _, err := mol.AddBond(a, b, order); err != nil {
				return nil, fmt.Errorf("bond %s: %w", f[0], err)
			}
		case "SUBSTRUCTURE":
			// subst_id subst_name root_atom subst_type dict_type chain ...
			f := strings.Fields(t)
			if len(f) >= 6 && f[5] != "****" {
				chains[f[0]] = f[5]
			}
		}
	}
	if !sawAtoms {
		return nil, fmt.Errorf("no @<TRIPOS>ATOM section")
	}
	for idx, id := range substOf {
		if chain, ok := chains[id]; ok {
			mol.Atoms[idx].Residue.Chain = chain
		}
	}
	fixCarboxylates(mol)
	return mol, nil
}

// mol2Residue reads the residue of a MOL2 atom from its substructure
// columns.  Names such as "LYS760" carry the residue number; otherwise the
// substructure ID is used.  Unnamed substructures give nil.
func mol2Residue(substID, substName, atomName string) *molecule.ResidueInfo {
	if substName == "" || substName == "****" || substName == "<0>" {
		return nil
	}
	split := len(substName)
	for split > 0 && substName[split-1] >= '0' && substName[split-1] <= '9' {
		split--
	}
	name, num := substName[:split], substName[split:]
	if name == "" {
		name, num = substName, substID
	} else if num == "" {
		num = substID
	}
	n, err := strconv.Atoi(num)
	if err != nil {
		return nil
	}
	return &molecule.ResidueInfo{Name: name, Number: n, AtomName: atomName}
}

func mol2BondOrder(t string) (molecule.BondOrder, error) {
	switch strings.ToLower(t) {
	case "1", "am":
		return molecule.BondSingle, nil
	case "2":
		return molecule.BondDouble, nil
	case "3":
		return molecule.BondTriple, nil
	case "ar":
		return molecule.BondAromatic, nil
	case "du", "un", "nc":
		return molecule.BondSingle, nil
	}
	return 0, fmt.Errorf("unknown bond type %q", t)
}

// fixCarboxylates resolves delocalised O.co2 oxygens: around each centre one
// oxygen gets the double bond and the others a single bond and charge -1.
func fixCarboxylates(mol *molecule.Molecule) {
	for c := range mol.Atoms {
		var oxygens []molecule.Neighbor
		hasDouble := false
		for _, nb := range mol.Neighbors(c) {
			if mol.Atoms[nb.Atom].Label != "O.co2" {
				continue
			}
			oxygens = append(oxygens, nb)
			if mol.Bonds[nb.Bond].Order == molecule.BondDouble {
				hasDouble = true
			}
		}
		if len(oxygens) < 2 {
			continue
		}
		for k, nb := range oxygens {
			b := &mol.Bonds[nb.Bond]
			if !hasDouble && k == 0 {
				b.Order = molecule.BondDouble
				b.Aromatic = false
				hasDouble = true
				continue
			}
			if b.Order == molecule.BondDouble {
				continue
			}
			b.Order = molecule.BondSingle
			b.Aromatic = false
			mol.Atoms[nb.Atom].Charge = -1
		}
	}
}
