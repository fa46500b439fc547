package substructure

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/molfilter/internal/domain/molecule"
	"github.com/turtacn/molfilter/pkg/errors"
)

func mol(t *testing.T, smi string) *molecule.Molecule {
	t.Helper()
	m, err := molecule.ParseSMILES(smi)
	require.NoError(t, err, smi)
	return m
}

func TestCompile_Basics(t *testing.T) {
	q, err := Compile("c1ccccc1")
	require.NoError(t, err)
	assert.Equal(t, "c1ccccc1", q.String())
	assert.Equal(t, 6, q.NumAtoms())
	assert.False(t, q.NeedsExplicitH())
}

func TestMatches_BenzenePattern(t *testing.T) {
	q := MustCompile("c1ccccc1")

	cases := []struct {
		smiles string
		want   bool
	}{
		{"c1ccccc1", true},
		{"Cc1ccccc1", true},
		{"C1=CC=CC=C1", true},
		{"c1ccc2ccccc2c1", true},
		{"C1CCCCC1", false},
		{"c1ccncc1", false},
		{"CCO", false},
	}
	for _, tc := range cases {
		t.Run(tc.smiles, func(t *testing.T) {
			assert.Equal(t, tc.want, q.Matches(mol(t, tc.smiles)))
		})
	}
}

func TestFindAll_SymmetricMappings(t *testing.T) {
	q := MustCompile("c1ccccc1")
	benzene := mol(t, "c1ccccc1")

	all := q.FindAll(benzene, MatchOptions{})
	assert.Len(t, all, 12)
	for _, m := range all {
		assert.Len(t, m, 6)
	}

	unique := q.FindAll(benzene, MatchOptions{Unique: true})
	assert.Len(t, unique, 1)

	capped := q.FindAll(benzene, MatchOptions{Max: 3})
	assert.Len(t, capped, 3)
}

func TestFindAll_DeterministicOrder(t *testing.T) {
	q := MustCompile("C")
	got := q.FindAll(mol(t, "CCC"), MatchOptions{})
	assert.Equal(t, []Match{{0}, {1}, {2}}, got)

	first, ok := q.FindFirst(mol(t, "OCC"))
	require.True(t, ok)
	assert.Equal(t, Match{1}, first)
}

func TestFindFirst_NoMatch(t *testing.T) {
	m, ok := MustCompile("N").FindFirst(mol(t, "CCO"))
	assert.False(t, ok)
	assert.Nil(t, m)
}

func TestMatches_AtomPrimitives(t *testing.T) {
	cases := []struct {
		smarts string
		smiles string
		want   bool
	}{
		{"[OH]", "CCO", true},
		{"[OH]", "COC", false},
		{"[#7]", "c1ccncc1", true},
		{"[#7]", "c1ccccc1", false},
		{"[n]", "c1ccncc1", true},
		{"[N]", "c1ccncc1", false},
		{"a", "C1CCCCC1", false},
		{"A", "C1CCCCC1", true},
		{"[O-]", "CC(=O)[O-]", true},
		{"[O-]", "CC(=O)O", false},
		{"[N+]", "C[N+](C)(C)C", true},
		{"[+]", "CCN", false},
		{"[D3]", "CC(C)C", true},
		{"[D3]", "CCC", false},
		{"[X4]", "CC", true},
		{"[CH3]", "CC", true},
		{"[CH2]", "CC", false},
		{"[v4]", "C=O", true},
		{"[R]", "C1CCCCC1", true},
		{"[R]", "CCCCCC", false},
		{"[R2]", "c1ccc2ccccc2c1", true},
		{"[R2]", "c1ccccc1", false},
		{"[r5]", "C1CCCC1", true},
		{"[r5]", "C1CCCCC1", false},
		{"[r0]", "C1CCCCC1", false},
		{"[x3]", "c1ccc2ccccc2c1", true},
		{"[x3]", "c1ccccc1", false},
		{"[13C]", "[13CH4]", true},
		{"[13C]", "C", false},
		{"[Cl]", "CCl", true},
		{"Br", "CBr", true},
		{"[se]", "c1cc[se]c1", true},
		{"*", "[Na+]", true},
	}
	for _, tc := range cases {
		t.Run(tc.smarts+"/"+tc.smiles, func(t *testing.T) {
			q, err := Compile(tc.smarts)
			require.NoError(t, err)
			assert.Equal(t, tc.want, q.Matches(mol(t, tc.smiles)))
		})
	}
}

func TestMatches_Logic(t *testing.T) {
	cases := []struct {
		smarts string
		smiles string
		want   bool
	}{
		{"[N,O]", "CCN", true},
		{"[N,O]", "CCC", false},
		{"[!C]", "CCC", false},
		{"[!C]", "CCO", true},
		{"[C&R]", "C1CCCC1", true},
		{"[C&R]", "CCCC", false},
		{"[c,n;H1]", "c1ccncc1", true},
		{"[n;H1]", "c1ccncc1", false},
		{"[n;H1]", "c1cc[nH]c1", true},
		{"[O;!H0]", "CCO", true},
		{"[O;!H0]", "COC", false},
	}
	for _, tc := range cases {
		t.Run(tc.smarts+"/"+tc.smiles, func(t *testing.T) {
			assert.Equal(t, tc.want, MustCompile(tc.smarts).Matches(mol(t, tc.smiles)))
		})
	}
}

func TestMatches_Bonds(t *testing.T) {
	cases := []struct {
		smarts string
		smiles string
		want   bool
	}{
		{"C=O", "CC(C)=O", true},
		{"C=O", "CCO", false},
		{"CO", "CCO", true},
		{"C-O", "CC=O", false},
		{"C~O", "CC=O", true},
		{"C#N", "CC#N", true},
		{"c:c", "c1ccccc1", true},
		{"cc", "c1ccccc1", true},
		{"c-c", "c1ccccc1c1ccccc1", true},
		{"c-c", "c1ccccc1", false},
		{"C@C", "C1CCCC1", true},
		{"C@C", "CCCC", false},
		{"C!@C", "C1CCCC1C", true},
		{"C=,#C", "C#C", true},
		{"C.O", "CCO", true},
		{"C.O", "CC", false},
	}
	for _, tc := range cases {
		t.Run(tc.smarts+"/"+tc.smiles, func(t *testing.T) {
			assert.Equal(t, tc.want, MustCompile(tc.smarts).Matches(mol(t, tc.smiles)))
		})
	}
}

func TestMatches_Recursive(t *testing.T) {
	q := MustCompile("[C;$(C(=O)O)]")
	acid := mol(t, "CC(=O)O")

	got := q.FindAll(acid, MatchOptions{Unique: true})
	assert.Equal(t, []Match{{1}}, got)
	assert.False(t, q.Matches(mol(t, "CC(=O)C")))

	nested := MustCompile("[$([OH][CX4])]")
	assert.True(t, nested.Matches(mol(t, "CCO")))
	assert.False(t, nested.Matches(mol(t, "OC=O")))
}

func TestMatches_RingClosureOnRecursiveAtom(t *testing.T) {
	q := MustCompile("[$(c1ccccc1)]Cl")
	assert.True(t, q.Matches(mol(t, "Clc1ccccc1")))
	assert.False(t, q.Matches(mol(t, "ClC1CCCCC1")))
}

func TestExplicitHydrogenPatterns(t *testing.T) {
	for _, s := range []string{"[H]O", "[#1]", "[2H]C", "[H+]"} {
		assert.True(t, MustCompile(s).NeedsExplicitH(), s)
	}
	for _, s := range []string{"[OH]", "[CH3]", "[H,C]", "[#6]"} {
		assert.False(t, MustCompile(s).NeedsExplicitH(), s)
	}

	q := MustCompile("[H]OC")
	methanol := mol(t, "CO")
	assert.False(t, q.Matches(methanol))
	assert.True(t, q.Matches(methanol.AddExplicitHydrogens()))
}

func TestCompile_Errors(t *testing.T) {
	bad := []string{
		"", "   ", "C(", "C)", "(C)", "[C", "C1CC", "C%1", "=C", "C=",
		"[#]", "[C&]", "[$(C]", "[Qq]", "Q", "C(=)C", "[$C]", "[:]",
	}
	for _, s := range bad {
		t.Run(s, func(t *testing.T) {
			_, err := Compile(s)
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.CodeInvalidSMARTS))
			assert.False(t, errors.IsRecordLevel(err))
		})
	}
}

func TestMustCompile_Panics(t *testing.T) {
	assert.Panics(t, func() { MustCompile("C(") })
}

func TestQuery_ConcurrentUse(t *testing.T) {
	q := MustCompile("[$(C=O)]O")
	m := mol(t, "CC(=O)O")
	done := make(chan bool, 8)
	for i := 0; i < 8; i++ {
		go func() { done <- q.Matches(m) }()
	}
	for i := 0; i < 8; i++ {
		assert.True(t, <-done)
	}
}
