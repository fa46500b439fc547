package molecule

import "strings"

// ElementInfo describes one chemical element.
type ElementInfo struct {
	Number   int
	Symbol   string
	Mass     float64 // standard atomic weight, Da
	Valences []int   // default valences, ascending; empty means no implicit H
}

// HydrogenMass is the standard atomic weight of hydrogen.
const HydrogenMass = 1.008

var elementTable = []ElementInfo{
	{0, "*", 0, nil},
	{1, "H", 1.008, []int{1}},
	{2, "He", 4.0026, nil},
	{3, "Li", 6.94, nil},
	{4, "Be", 9.0122, nil},
	{5, "B", 10.81, []int{3}},
	{6, "C", 12.011, []int{4}},
	{7, "N", 14.007, []int{3}},
	{8, "O", 15.999, []int{2}},
	{9, "F", 18.998, []int{1}},
	{10, "Ne", 20.180, nil},
	{11, "Na", 22.990, nil},
	{12, "Mg", 24.305, nil},
	{13, "Al", 26.982, nil},
	{14, "Si", 28.085, []int{4}},
	{15, "P", 30.974, []int{3, 5}},
	{16, "S", 32.06, []int{2, 4, 6}},
	{17, "Cl", 35.45, []int{1}},
	{18, "Ar", 39.948, nil},
	{19, "K", 39.098, nil},
	{20, "Ca", 40.078, nil},
	{21, "Sc", 44.956, nil},
	{22, "Ti", 47.867, nil},
	{23, "V", 50.942, nil},
	{24, "Cr", 51.996, nil},
	{25, "Mn", 54.938, nil},
	{26, "Fe", 55.845, nil},
	{27, "Co", 58.933, nil},
	{28, "Ni", 58.693, nil},
	{29, "Cu", 63.546, nil},
	{30, "Zn", 65.38, nil},
	{31, "Ga", 69.723, nil},
	{32, "Ge", 72.630, []int{4}},
	{33, "As", 74.922, []int{3, 5}},
	{34, "Se", 78.971, []int{2, 4, 6}},
	{35, "Br", 79.904, []int{1}},
	{36, "Kr", 83.798, nil},
	{37, "Rb", 85.468, nil},
	{38, "Sr", 87.62, nil},
	{39, "Y", 88.906, nil},
	{40, "Zr", 91.224, nil},
	{41, "Nb", 92.906, nil},
	{42, "Mo", 95.95, nil},
	{43, "Tc", 98, nil},
	{44, "Ru", 101.07, nil},
	{45, "Rh", 102.91, nil},
	{46, "Pd", 106.42, nil},
	{47, "Ag", 107.87, nil},
	{48, "Cd", 112.41, nil},
	{49, "In", 114.82, nil},
	{50, "Sn", 118.71, nil},
	{51, "Sb", 121.76, nil},
	{52, "Te", 127.60, []int{2, 4, 6}},
	{53, "I", 126.90, []int{1}},
	{54, "Xe", 131.29, nil},
	{55, "Cs", 132.91, nil},
	{56, "Ba", 137.33, nil},
	{78, "Pt", 195.08, nil},
	{79, "Au", 196.97, nil},
	{80, "Hg", 200.59, nil},
	{82, "Pb", 207.2, nil},
}

var (
	bySymbol = map[string]*ElementInfo{}
	byNumber = map[int]*ElementInfo{}
)

func init() {
	for i := range elementTable {
		e := &elementTable[i]
		bySymbol[e.Symbol] = e
		byNumber[e.Number] = e
	}
}

// LookupSymbol returns the element with the given symbol.  Matching is exact
// ("Cl", not "CL"); use NormalizeSymbol first for upper-case file formats.
func LookupSymbol(symbol string) (*ElementInfo, bool) {
	e, ok := bySymbol[symbol]
	return e, ok
}

// LookupNumber returns the element with the given atomic number.
func LookupNumber(n int) (*ElementInfo, bool) {
	e, ok := byNumber[n]
	return e, ok
}

// NormalizeSymbol converts "CL", "cl" or " Cl" to "Cl".
func NormalizeSymbol(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	if len(s) == 1 {
		return strings.ToUpper(s)
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}

// aromaticCapable lists the elements allowed as lower-case SMILES atoms.
var aromaticCapable = map[string]bool{
	"B": true, "C": true, "N": true, "O": true, "P": true, "S": true,
	"Se": true, "As": true, "Te": true,
}
