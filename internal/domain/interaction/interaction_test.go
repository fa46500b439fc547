package interaction

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/molfilter/internal/domain/geometry"
	"github.com/turtacn/molfilter/internal/domain/molecule"
	"github.com/turtacn/molfilter/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// Fixtures
// ─────────────────────────────────────────────────────────────────────────────

type protAtom struct {
	element string
	resName string
	resNum  int
	chain   string
	name    string
	pos     geometry.Vec3
}

func buildProtein(t *testing.T, atoms []protAtom) *molecule.Molecule {
	t.Helper()
	p := molecule.New("receptor")
	for _, a := range atoms {
		e, ok := molecule.LookupSymbol(a.element)
		require.True(t, ok, a.element)
		p.AddAtom(molecule.Atom{
			Element:    e.Symbol,
			AtomicNum:  e.Number,
			NoImplicit: true,
			Coord:      a.pos,
			HasCoord:   true,
			Residue:    &molecule.ResidueInfo{Name: a.resName, Number: a.resNum, Chain: a.chain, AtomName: a.name},
		})
	}
	p.Perceive(molecule.PerceiveOptions{SkipRings: true})
	return p
}

func hexagon(center geometry.Vec3) []geometry.Vec3 {
	pts := make([]geometry.Vec3, 6)
	for k := range pts {
		a := float64(k) * math.Pi / 3
		pts[k] = center.Add(geometry.Vec3{X: 1.39 * math.Cos(a), Y: 1.39 * math.Sin(a)})
	}
	return pts
}

func ligand(t *testing.T, smi string, coords ...geometry.Vec3) *molecule.Molecule {
	t.Helper()
	m, err := molecule.ParseSMILES(smi)
	require.NoError(t, err)
	require.Len(t, coords, m.NumAtoms())
	for i, c := range coords {
		m.Atoms[i].Coord = c
		m.Atoms[i].HasCoord = true
	}
	return m
}

func testSite(t *testing.T) *Site {
	t.Helper()
	ring := hexagon(geometry.Vec3{Z: 10})
	atoms := []protAtom{
		{"N", "LYS", 760, "A", "NZ", geometry.Vec3{}},
		{"C", "ALA", 761, "A", "CB", geometry.Vec3{X: 30}},
		{"O", "ASP", 800, "A", "OD1", geometry.Vec3{X: 20}},
		{"O", "HOH", 900, "A", "O", geometry.Vec3{X: 2.5}},
	}
	for k, name := range []string{"CG", "CD1", "CE1", "CZ", "CE2", "CD2"} {
		atoms = append(atoms, protAtom{"C", "PHE", 123, "A", name, ring[k]})
	}
	site, err := NewSite(buildProtein(t, atoms))
	require.NoError(t, err)
	return site
}

func kinds(contacts []Contact, resNum int) map[Kind]bool {
	out := map[Kind]bool{}
	for _, c := range contacts {
		if c.Residue.Number == resNum {
			out[c.Kind] = true
		}
	}
	return out
}

// ─────────────────────────────────────────────────────────────────────────────
// Selector grammar
// ─────────────────────────────────────────────────────────────────────────────

func TestParseSelector(t *testing.T) {
	req, err := ParseSelector("760H-123B:456S")
	require.NoError(t, err)
	assert.Equal(t, []Term{{Residue: ResidueRef{Number: 760}, Kind: KindHBond}}, req.All)
	require.Len(t, req.AnyOf, 1)
	assert.Equal(t, []Option{
		{{Residue: ResidueRef{Number: 123}, Kind: KindSaltBridge}},
		{{Residue: ResidueRef{Number: 456}, Kind: KindStacking}},
	}, req.AnyOf[0])
	assert.Equal(t, "760H-123B:456S", req.String())
}

func TestParseSelector_CodesAndChains(t *testing.T) {
	req, err := ParseSelector(" A/760HD - 760HA-12X-13C-14P-15* ")
	require.NoError(t, err)
	require.Len(t, req.All, 6)
	assert.Equal(t, ResidueRef{Chain: "A", Number: 760}, req.All[0].Residue)
	assert.Equal(t, KindHBondDonor, req.All[0].Kind)
	assert.Equal(t, KindHBondAcceptor, req.All[1].Kind)
	assert.Equal(t, KindHalogen, req.All[2].Kind)
	assert.Equal(t, KindCationPi, req.All[3].Kind)
	assert.Equal(t, KindHydrophobic, req.All[4].Kind)
	assert.Equal(t, KindAny, req.All[5].Kind)
	assert.Equal(t, "A/760HD", req.All[0].String())
}

func TestParseSelector_Errors(t *testing.T) {
	for _, s := range []string{"", "  ", "760", "H", "760Q", "760H--123B", "760H-", "/760H", "760H:", "760h", "A/H"} {
		t.Run(s, func(t *testing.T) {
			_, err := ParseSelector(s)
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.CodeInvalidSite))
			assert.Equal(t, errors.ExitUsage, errors.ExitStatus(err))
		})
	}
}

func TestRequirement_Residues(t *testing.T) {
	req, err := ParseSelector("760H-760B-123B:760S")
	require.NoError(t, err)
	assert.Equal(t, []ResidueRef{{Number: 760}, {Number: 123}}, req.Residues())
}

func TestKind_Covers(t *testing.T) {
	assert.True(t, KindHBond.Covers(KindHBondDonor))
	assert.True(t, KindHBond.Covers(KindHBondAcceptor))
	assert.False(t, KindHBond.Covers(KindSaltBridge))
	assert.True(t, KindAny.Covers(KindHydrophobic))
	assert.False(t, KindHBondDonor.Covers(KindHBondAcceptor))
	assert.True(t, KindStacking.Covers(KindStacking))
}

func TestResidueRef_Matches(t *testing.T) {
	res := &molecule.ResidueInfo{Name: "LYS", Number: 760, Chain: "B"}
	assert.True(t, ResidueRef{Number: 760}.Matches(res))
	assert.True(t, ResidueRef{Chain: "b", Number: 760}.Matches(res))
	assert.False(t, ResidueRef{Chain: "A", Number: 760}.Matches(res))
	assert.False(t, ResidueRef{Number: 761}.Matches(res))
	assert.False(t, ResidueRef{Number: 760}.Matches(nil))
}

func TestRequirement_SatisfiedAndUnmet(t *testing.T) {
	req, err := ParseSelector("760H-123B:456S")
	require.NoError(t, err)
	r760 := &molecule.ResidueInfo{Number: 760}
	r456 := &molecule.ResidueInfo{Number: 456}

	contacts := []Contact{{Kind: KindHBondAcceptor, Residue: r760}}
	assert.False(t, req.Satisfied(contacts))
	assert.Equal(t, []string{"123B:456S"}, req.Unmet(contacts))

	contacts = append(contacts, Contact{Kind: KindStacking, Residue: r456})
	assert.True(t, req.Satisfied(contacts))
	assert.Empty(t, req.Unmet(contacts))

	assert.Equal(t, []string{"760H", "123B:456S"}, req.Unmet(nil))
}

func TestRequirement_SameResidueCombinesWithAnd(t *testing.T) {
	req, err := ParseSelector("760H-760B")
	require.NoError(t, err)
	r760 := &molecule.ResidueInfo{Number: 760}

	assert.False(t, req.Satisfied([]Contact{{Kind: KindHBondDonor, Residue: r760}}))
	assert.True(t, req.Satisfied([]Contact{
		{Kind: KindHBondDonor, Residue: r760},
		{Kind: KindSaltBridge, Residue: r760},
	}))
}

func TestParseSelector_SameResidueInGroupMerges(t *testing.T) {
	req, err := ParseSelector("123B:456S:123S")
	require.NoError(t, err)
	require.Len(t, req.AnyOf, 1)
	assert.Equal(t, []Option{
		{
			{Residue: ResidueRef{Number: 123}, Kind: KindSaltBridge},
			{Residue: ResidueRef{Number: 123}, Kind: KindStacking},
		},
		{{Residue: ResidueRef{Number: 456}, Kind: KindStacking}},
	}, req.AnyOf[0])

	r123 := &molecule.ResidueInfo{Number: 123}
	bridgeOnly := []Contact{{Kind: KindSaltBridge, Residue: r123}}
	assert.False(t, req.Satisfied(bridgeOnly))
	assert.Equal(t, []string{"123B:123S:456S"}, req.Unmet(bridgeOnly))

	assert.True(t, req.Satisfied(append(bridgeOnly, Contact{Kind: KindStacking, Residue: r123})))
	assert.True(t, req.Satisfied([]Contact{{Kind: KindStacking, Residue: &molecule.ResidueInfo{Number: 456}}}))
}

func TestParseSelector_ChainsKeepResiduesApart(t *testing.T) {
	req, err := ParseSelector("A/123B:B/123S")
	require.NoError(t, err)
	require.Len(t, req.AnyOf, 1)
	assert.Len(t, req.AnyOf[0], 2)
}

// ─────────────────────────────────────────────────────────────────────────────
// Site typing
// ─────────────────────────────────────────────────────────────────────────────

func TestNewSite_Typing(t *testing.T) {
	site := testSite(t)
	assert.Len(t, site.donors, 1, "LYS NZ; water ignored")
	assert.Len(t, site.cations, 1)
	assert.Len(t, site.acceptors, 1, "ASP OD1")
	assert.Len(t, site.anions, 1)
	assert.Len(t, site.hydrophobic, 7, "ALA CB plus six PHE ring carbons")
	require.Len(t, site.rings, 1)
	assert.InDelta(t, 10, site.rings[0].centroid.Z, 1e-9)
	assert.InDelta(t, 1, math.Abs(site.rings[0].normal.Z), 1e-9)
}

func TestNewSite_Errors(t *testing.T) {
	_, err := NewSite(molecule.New("empty"))
	assert.True(t, errors.IsCode(err, errors.CodeAuxiliaryEmpty))

	bare := molecule.New("bare")
	bare.AddAtom(molecule.Atom{Element: "C", AtomicNum: 6})
	_, err = NewSite(bare)
	assert.True(t, errors.IsCode(err, errors.CodeAuxiliaryEmpty))
}

func TestNewSite_NonStandardResidueTypedByElement(t *testing.T) {
	p := buildProtein(t, []protAtom{
		{"O", "HEM", 500, "", "O1A", geometry.Vec3{}},
		{"C", "HEM", 500, "", "CAA", geometry.Vec3{X: 1.4}},
	})
	p.Atoms[0].Charge = -1
	site, err := NewSite(p)
	require.NoError(t, err)
	assert.Len(t, site.anions, 1)
	assert.Len(t, site.acceptors, 1)
	assert.Len(t, site.donors, 1)
	assert.Len(t, site.hydrophobic, 1)
}

func TestRequirement_Check(t *testing.T) {
	site := testSite(t)

	ok, err := ParseSelector("760H-A/123S")
	require.NoError(t, err)
	assert.NoError(t, ok.Check(site))

	missing, err := ParseSelector("760H-999B")
	require.NoError(t, err)
	err = missing.Check(site)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeResidueNotFound))
	assert.Contains(t, err.Error(), "999")

	wrongChain, err := ParseSelector("B/760H")
	require.NoError(t, err)
	assert.True(t, errors.IsCode(wrongChain.Check(site), errors.CodeResidueNotFound))
}

// ─────────────────────────────────────────────────────────────────────────────
// Contact perception
// ─────────────────────────────────────────────────────────────────────────────

func TestPerceive_HBondToResidue760(t *testing.T) {
	site := testSite(t)
	crit := DefaultCriteria()
	req, err := ParseSelector("760H")
	require.NoError(t, err)

	near := ligand(t, "CO", geometry.Vec3{X: 4.3}, geometry.Vec3{X: 2.9})
	contacts := Perceive(site, near, crit)
	got := kinds(contacts, 760)
	assert.True(t, got[KindHBondAcceptor], "ligand O accepts from LYS NZ")
	assert.False(t, got[KindHBondDonor], "LYS offers no acceptor")
	assert.True(t, req.Satisfied(contacts))

	far := ligand(t, "CO", geometry.Vec3{X: 14.3}, geometry.Vec3{X: 12.9, Y: 5})
	assert.False(t, req.Satisfied(Perceive(site, far, crit)))
}

func TestPerceive_SaltBridge(t *testing.T) {
	site := testSite(t)
	acetate := ligand(t, "CC(=O)[O-]",
		geometry.Vec3{X: 5.5, Y: 1}, geometry.Vec3{X: 4.5}, geometry.Vec3{X: 4.8, Y: -1.2}, geometry.Vec3{X: 3.0})
	got := kinds(Perceive(site, acetate, DefaultCriteria()), 760)
	assert.True(t, got[KindSaltBridge])
	assert.True(t, got[KindHBondAcceptor])
}

func TestPerceive_Stacking(t *testing.T) {
	site := testSite(t)
	parallel := ligand(t, "c1ccccc1", hexagon(geometry.Vec3{Z: 13.5})...)
	contacts := Perceive(site, parallel, DefaultCriteria())
	got := kinds(contacts, 123)
	require.True(t, got[KindStacking])
	for _, c := range contacts {
		if c.Kind == KindStacking {
			assert.InDelta(t, 3.5, c.Distance, 1e-9)
			assert.InDelta(t, 0, c.Angle, 1e-6)
		}
	}

	distant := ligand(t, "c1ccccc1", hexagon(geometry.Vec3{Z: 17})...)
	assert.False(t, kinds(Perceive(site, distant, DefaultCriteria()), 123)[KindStacking])
}

func TestPerceive_TShapedStacking(t *testing.T) {
	site := testSite(t)
	// Ring in the xz plane, centroid 5 Å above the PHE ring.
	pts := make([]geometry.Vec3, 6)
	for k := range pts {
		a := float64(k) * math.Pi / 3
		pts[k] = geometry.Vec3{X: 1.39 * math.Cos(a), Z: 15 + 1.39*math.Sin(a)}
	}
	edge := ligand(t, "c1ccccc1", pts...)
	contacts := Perceive(site, edge, DefaultCriteria())
	require.True(t, kinds(contacts, 123)[KindStacking])
}

func TestPerceive_CationPi(t *testing.T) {
	site := testSite(t)
	ammonium := ligand(t, "C[NH3+]", geometry.Vec3{Z: 15.5}, geometry.Vec3{Z: 14})
	got := kinds(Perceive(site, ammonium, DefaultCriteria()), 123)
	assert.True(t, got[KindCationPi])
}

func TestPerceive_HalogenBond(t *testing.T) {
	site := testSite(t)
	crit := DefaultCriteria()

	linear := ligand(t, "CCl", geometry.Vec3{X: 15.0}, geometry.Vec3{X: 16.8})
	assert.True(t, kinds(Perceive(site, linear, crit), 800)[KindHalogen])

	// Same distance, C–Cl···O angle 90°.
	bent := ligand(t, "CCl", geometry.Vec3{X: 16.8, Y: 1.8}, geometry.Vec3{X: 16.8})
	assert.False(t, kinds(Perceive(site, bent, crit), 800)[KindHalogen])
}

func TestPerceive_Hydrophobic(t *testing.T) {
	site := testSite(t)
	ethane := ligand(t, "CC", geometry.Vec3{X: 33.5}, geometry.Vec3{X: 35})
	assert.True(t, kinds(Perceive(site, ethane, DefaultCriteria()), 761)[KindHydrophobic])

	methanol := ligand(t, "OC", geometry.Vec3{X: 34.5}, geometry.Vec3{X: 33.5})
	assert.False(t, kinds(Perceive(site, methanol, DefaultCriteria()), 761)[KindHydrophobic],
		"carbon bonded to oxygen is not apolar")
}

func TestPerceive_ExplicitHydrogensAreEquivalent(t *testing.T) {
	site := testSite(t)
	m := ligand(t, "CO", geometry.Vec3{X: 4.3}, geometry.Vec3{X: 2.9})
	withH := m.AddExplicitHydrogens()
	for i := m.NumAtoms(); i < withH.NumAtoms(); i++ {
		withH.Atoms[i].HasCoord = true
		withH.Atoms[i].Coord = geometry.Vec3{X: 5, Y: float64(i)}
	}
	assert.Equal(t, kinds(Perceive(site, m, DefaultCriteria()), 760),
		kinds(Perceive(site, withH, DefaultCriteria()), 760))
}

func TestSite_Subset(t *testing.T) {
	site := testSite(t)
	sub := site.Subset([]ResidueRef{{Number: 760}})
	assert.Len(t, sub.donors, 1)
	assert.Empty(t, sub.rings)
	assert.Empty(t, sub.hydrophobic)
	assert.Same(t, site.Protein(), sub.Protein())

	ethane := ligand(t, "CC", geometry.Vec3{X: 33.5}, geometry.Vec3{X: 35})
	assert.Empty(t, Perceive(sub, ethane, DefaultCriteria()))
}
