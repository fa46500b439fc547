package screening

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/turtacn/molfilter/internal/config"
	"github.com/turtacn/molfilter/internal/domain/interaction"
	"github.com/turtacn/molfilter/internal/domain/molecule"
	"github.com/turtacn/molfilter/internal/domain/substructure"
	"github.com/turtacn/molfilter/internal/infrastructure/chemio"
	"github.com/turtacn/molfilter/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// Structure fixtures
// ─────────────────────────────────────────────────────────────────────────────

type sdfAtom struct {
	sym     string
	x, y, z float64
}

func sdfText(name string, atoms []sdfAtom, bonds [][2]int, props map[string]string) string {
	var sb strings.Builder
	sb.WriteString(name + "\n  molfilter\n\n")
	fmt.Fprintf(&sb, "%3d%3d  0  0  0  0  0  0  0  0999 V2000\n", len(atoms), len(bonds))
	for _, a := range atoms {
		fmt.Fprintf(&sb, "%10.4f%10.4f%10.4f %-3s 0  0  0  0  0  0  0  0  0  0  0  0\n", a.x, a.y, a.z, a.sym)
	}
	for _, b := range bonds {
		fmt.Fprintf(&sb, "%3d%3d  1  0\n", b[0], b[1])
	}
	sb.WriteString("M  END\n")
	for k, v := range props {
		fmt.Fprintf(&sb, "> <%s>\n%s\n\n", k, v)
	}
	sb.WriteString("$$$$\n")
	return sb.String()
}

func sdfRec(index int, name string, atoms []sdfAtom, bonds [][2]int) chemio.Record {
	return chemio.Record{
		Index:  index,
		Name:   name,
		Raw:    []byte(sdfText(name, atoms, bonds, nil)),
		Format: chemio.FormatSDF,
	}
}

func parseRec(t *testing.T, rec chemio.Record, opts chemio.ParseOptions) *molecule.Molecule {
	t.Helper()
	mol, err := chemio.Parse(rec, opts)
	require.NoError(t, err)
	return mol
}

// methanol places C and O along x, shifted by dy.
func methanol(index int, name string, dy float64) chemio.Record {
	return sdfRec(index, name,
		[]sdfAtom{{"C", 0, dy, 1}, {"O", 1.4, dy, 1}},
		[][2]int{{1, 2}})
}

func pdbLine(serial int, name, resName string, resNum int, x, y, z float64, elem string) string {
	return fmt.Sprintf("%-6s%5d %-4s %3s %1s%4d    %8.3f%8.3f%8.3f%6.2f%6.2f          %2s",
		"ATOM", serial, name, resName, "A", resNum, x, y, z, 1.0, 0.0, elem)
}

// receptor has a single donor, LYS 760 NZ, at the origin and an alanine far
// away.
func receptor(t *testing.T) *molecule.Molecule {
	t.Helper()
	raw := strings.Join([]string{
		pdbLine(1, " N  ", "LYS", 760, 1.2, 1.0, 0.5, "N"),
		pdbLine(2, " CA ", "LYS", 760, 2.0, 1.5, 0.5, "C"),
		pdbLine(3, " NZ ", "LYS", 760, 0, 0, 0, "N"),
		pdbLine(4, " CB ", "ALA", 761, 30, 0, 0, "C"),
		"END",
		"",
	}, "\n")
	return parseRec(t, chemio.Record{Name: "receptor", Raw: []byte(raw), Format: chemio.FormatPDB}, chemio.ParseOptions{})
}

// ─────────────────────────────────────────────────────────────────────────────
// Substructure
// ─────────────────────────────────────────────────────────────────────────────

func smilesMol(t *testing.T, smi string) (*molecule.Molecule, chemio.Record) {
	t.Helper()
	rec := smilesRecords(smi + " m")[0]
	return parseRec(t, rec, chemio.ParseOptions{}), rec
}

func TestSubstructureMatch(t *testing.T) {
	p, err := NewSubstructureMatch(substructure.MustCompile("c1ccccc1"), SubstructureOptions{})
	require.NoError(t, err)
	assert.Equal(t, "substructure", p.Name())

	mol, rec := smilesMol(t, "Cc1ccccc1")
	out, err := p.Evaluate(context.Background(), mol, rec)
	require.NoError(t, err)
	assert.True(t, out.Pass)
	assert.Equal(t, 1, out.Matches)

	mol, rec = smilesMol(t, "C1CCCCC1")
	out, err = p.Evaluate(context.Background(), mol, rec)
	require.NoError(t, err)
	assert.False(t, out.Pass)
	assert.Equal(t, "pattern absent", out.Reason)
}

func TestSubstructureMatch_Reverse(t *testing.T) {
	p, err := NewSubstructureMatch(substructure.MustCompile("c1ccccc1"), SubstructureOptions{Reverse: true})
	require.NoError(t, err)

	mol, rec := smilesMol(t, "Cc1ccccc1")
	out, _ := p.Evaluate(context.Background(), mol, rec)
	assert.False(t, out.Pass)

	mol, rec = smilesMol(t, "CCO")
	out, _ = p.Evaluate(context.Background(), mol, rec)
	assert.True(t, out.Pass)
}

func TestSubstructureMatch_MaxWeight(t *testing.T) {
	p, err := NewSubstructureMatch(substructure.MustCompile("c1ccccc1"), SubstructureOptions{MaxWeight: 100})
	require.NoError(t, err)

	mol, rec := smilesMol(t, "Cc1ccccc1") // 92.14 Da
	out, _ := p.Evaluate(context.Background(), mol, rec)
	assert.True(t, out.Pass)

	mol, rec = smilesMol(t, "c1ccccc1c1ccccc1") // 154.21 Da
	out, _ = p.Evaluate(context.Background(), mol, rec)
	assert.False(t, out.Pass)
	assert.Contains(t, out.Reason, "molecular weight")

	_, err = NewSubstructureMatch(substructure.MustCompile("C"), SubstructureOptions{MaxWeight: -1})
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))
	_, err = NewSubstructureMatch(nil, SubstructureOptions{})
	assert.Error(t, err)
}

func TestSubstructureMatch_ExplicitHydrogenPattern(t *testing.T) {
	p, err := NewSubstructureMatch(substructure.MustCompile("[H]OC"), SubstructureOptions{})
	require.NoError(t, err)

	mol, rec := smilesMol(t, "CO")
	out, err := p.Evaluate(context.Background(), mol, rec)
	require.NoError(t, err)
	assert.True(t, out.Pass, "implicit hydrogens are materialised for H patterns")
}

// ─────────────────────────────────────────────────────────────────────────────
// Interaction
// ─────────────────────────────────────────────────────────────────────────────

func TestInteractionMatch_Scenario(t *testing.T) {
	req, err := interaction.ParseSelector("760H")
	require.NoError(t, err)
	p, err := NewInteractionMatch(receptor(t), req, interaction.DefaultCriteria())
	require.NoError(t, err)
	assert.Equal(t, "interaction", p.Name())

	near := sdfRec(0, "A", []sdfAtom{{"C", 4.3, 0, 0.2}, {"O", 2.9, 0, 0.2}}, [][2]int{{1, 2}})
	out, err := p.Evaluate(context.Background(), parseRec(t, near, chemio.ParseOptions{}), near)
	require.NoError(t, err)
	assert.True(t, out.Pass)
	assert.Positive(t, out.Interactions)

	far := sdfRec(1, "B", []sdfAtom{{"C", 14.3, 0, 0.2}, {"O", 12.9, 5, 0.2}}, [][2]int{{1, 2}})
	out, err = p.Evaluate(context.Background(), parseRec(t, far, chemio.ParseOptions{}), far)
	require.NoError(t, err)
	assert.False(t, out.Pass)
	assert.Equal(t, "unmet: 760H", out.Reason)
}

func TestInteractionMatch_Filter(t *testing.T) {
	req, err := interaction.ParseSelector("760H")
	require.NoError(t, err)
	p, err := NewInteractionMatch(receptor(t), req, interaction.DefaultCriteria())
	require.NoError(t, err)

	recs := []chemio.Record{
		sdfRec(0, "A", []sdfAtom{{"C", 4.3, 0, 0.2}, {"O", 2.9, 0, 0.2}}, [][2]int{{1, 2}}),
		sdfRec(1, "B", []sdfAtom{{"C", 14.3, 0, 0.2}, {"O", 12.9, 5, 0.2}}, [][2]int{{1, 2}}),
		smilesRecords("CO flat")[0],
	}
	recs[2].Index = 2
	sink := &memSink{}
	stats, err := NewFilter(p, Options{}).Run(context.Background(), &sliceSource{recs: recs}, sink)
	require.NoError(t, err)

	assert.Equal(t, []string{"A"}, sink.names())
	assert.Equal(t, 1, stats.SkippedEval, "SMILES input carries no coordinates")
}

func TestInteractionMatch_ConstructionErrors(t *testing.T) {
	missing, err := interaction.ParseSelector("999H")
	require.NoError(t, err)
	_, err = NewInteractionMatch(receptor(t), missing, interaction.DefaultCriteria())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeResidueNotFound))
	assert.Equal(t, errors.ExitUsage, errors.ExitStatus(err))

	_, err = NewInteractionMatch(receptor(t), nil, interaction.DefaultCriteria())
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))

	req, _ := interaction.ParseSelector("760H")
	_, err = NewInteractionMatch(molecule.New("empty"), req, interaction.DefaultCriteria())
	assert.True(t, errors.IsCode(err, errors.CodeAuxiliaryEmpty))
}

// ─────────────────────────────────────────────────────────────────────────────
// Binding mode
// ─────────────────────────────────────────────────────────────────────────────

type BindingModeTestSuite struct {
	suite.Suite
	ctx context.Context
}

func (s *BindingModeTestSuite) SetupTest() {
	s.ctx = context.Background()
}

func (s *BindingModeTestSuite) predicate(smarts string, ref chemio.Record, opts BindingModeOptions) *BindingModeMatch {
	p, err := NewBindingModeMatch(parseRec(s.T(), ref, chemio.ParseOptions{KeepHydrogens: opts.KeepHydrogens}), substructure.MustCompile(smarts), opts)
	s.Require().NoError(err)
	return p
}

func (s *BindingModeTestSuite) evaluate(p *BindingModeMatch, rec chemio.Record) (Outcome, error) {
	return p.Evaluate(s.ctx, parseRec(s.T(), rec, p.ParseOptions()), rec)
}

func (s *BindingModeTestSuite) TestThresholdScenario() {
	p := s.predicate("CO", methanol(0, "ref", 0), BindingModeOptions{Threshold: 2.0})
	s.Equal("binding_mode", p.Name())

	out, err := s.evaluate(p, methanol(1, "close", 1.5))
	s.Require().NoError(err)
	s.True(out.Pass)
	s.Require().NotNil(out.RMSD)
	s.InDelta(1.5, *out.RMSD, 1e-4)

	out, err = s.evaluate(p, methanol(2, "far", 2.5))
	s.Require().NoError(err)
	s.False(out.Pass)
	s.InDelta(2.5, *out.RMSD, 1e-4)
	s.Contains(out.Reason, "over threshold")
}

func (s *BindingModeTestSuite) TestThresholdIsInclusive() {
	p := s.predicate("CO", methanol(0, "ref", 0), BindingModeOptions{Threshold: 1.5})
	out, err := s.evaluate(p, methanol(1, "edge", 1.5))
	s.Require().NoError(err)
	s.True(out.Pass)
}

// ethane candidates match "[#6][#6]" twice; the swapped mapping of an
// unmoved pose deviates by the full bond length.
func ethane(index int, name string) chemio.Record {
	return sdfRec(index, name, []sdfAtom{{"C", 0, 0, 1}, {"C", 1.5, 0, 1}}, [][2]int{{1, 2}})
}

func (s *BindingModeTestSuite) TestPolicies() {
	cases := []struct {
		policy  string
		exclude bool
		pass    bool
		rmsd    float64
	}{
		{config.PolicyAny, false, true, 0},
		{config.PolicyFirst, false, true, 0},
		{config.PolicyAll, false, false, 1.5},
		{config.PolicyAny, true, false, 0},
	}
	for _, tc := range cases {
		p := s.predicate("[#6][#6]", ethane(0, "ref"), BindingModeOptions{
			Threshold:        1.0,
			Policy:           tc.policy,
			ExcludeIdentical: tc.exclude,
		})
		out, err := s.evaluate(p, ethane(1, "pose"))
		s.Require().NoError(err)
		s.Equal(tc.pass, out.Pass, "%s exclude=%v", tc.policy, tc.exclude)
		s.InDelta(tc.rmsd, *out.RMSD, 1e-6, "%s exclude=%v", tc.policy, tc.exclude)
		if tc.policy == config.PolicyFirst {
			s.Equal(1, out.Matches)
		} else {
			s.Equal(2, out.Matches)
		}
	}
}

func (s *BindingModeTestSuite) TestSuperpose() {
	p := s.predicate("CO", methanol(0, "ref", 0), BindingModeOptions{Threshold: 0.1, Superpose: true})
	out, err := s.evaluate(p, methanol(1, "shifted", 5))
	s.Require().NoError(err)
	s.True(out.Pass, "a rigid shift vanishes after superposition")
	s.InDelta(0, *out.RMSD, 1e-6)
}

func (s *BindingModeTestSuite) TestPatternAbsentFromCandidateIsRecordLevel() {
	p := s.predicate("CO", methanol(0, "ref", 0), BindingModeOptions{Threshold: 2})
	_, err := s.evaluate(p, ethane(1, "no-oxygen"))
	s.Require().Error(err)
	s.True(errors.IsCode(err, errors.CodePatternAbsent))
	s.True(errors.IsRecordLevel(err))
}

func (s *BindingModeTestSuite) TestConstructionErrors() {
	ref := parseRec(s.T(), methanol(0, "ref", 0), chemio.ParseOptions{})
	q := substructure.MustCompile("CO")

	_, err := NewBindingModeMatch(ref, substructure.MustCompile("N"), BindingModeOptions{Threshold: 2})
	s.True(errors.IsCode(err, errors.CodePatternAbsent))
	s.Equal(errors.ExitInput, errors.ExitStatus(err))

	_, err = NewBindingModeMatch(ref, q, BindingModeOptions{Threshold: -1})
	s.True(errors.IsCode(err, errors.CodeThresholdInvalid))
	s.Equal(errors.ExitUsage, errors.ExitStatus(err))

	_, err = NewBindingModeMatch(ref, q, BindingModeOptions{Threshold: 2, Policy: "best"})
	s.True(errors.IsCode(err, errors.CodeInvalidParam))

	flat, _ := smilesMol(s.T(), "CCCCO")
	_, err = NewBindingModeMatch(flat, q, BindingModeOptions{Threshold: 2})
	s.True(errors.IsCode(err, errors.CodeInputUnreadable))
}

func (s *BindingModeTestSuite) TestFilterWithBestPose() {
	p := s.predicate("CO", methanol(0, "ref", 0), BindingModeOptions{Threshold: 2})
	pose := func(i int, name string, dy float64, energy string) chemio.Record {
		atoms := []sdfAtom{{"C", 0, dy, 1}, {"O", 1.4, dy, 1}}
		return chemio.Record{
			Index:  i,
			Name:   name,
			Raw:    []byte(sdfText(name, atoms, [][2]int{{1, 2}}, nil)),
			Format: chemio.FormatSDF,
			Props:  map[string]string{chemio.PropTotalEnergy: energy},
		}
	}
	recs := []chemio.Record{
		pose(0, "lig1", 0.5, "-30.0"),
		pose(1, "lig1", 0.7, "-42.5"),
		pose(2, "lig1", 3.0, "-99.0"), // fails the RMSD test
		pose(3, "lig2", 0.1, "-10.0"),
		pose(4, "lig1", 0.2, "-5.0"),
	}
	inner := &memSink{}
	sink := NewBestPoseSink(inner)
	stats, err := NewFilter(p, Options{Workers: 2}).Run(s.ctx, &sliceSource{recs: recs}, sink)
	s.Require().NoError(err)
	s.Require().NoError(sink.Close())

	s.Equal(4, stats.Passed)
	s.Equal(1, sink.Dropped())
	var idx []int
	for _, r := range inner.recs {
		idx = append(idx, r.Index)
	}
	s.Equal([]int{1, 3, 4}, idx)
	s.True(inner.closed)
}

func TestBindingModeTestSuite(t *testing.T) {
	suite.Run(t, new(BindingModeTestSuite))
}

// ─────────────────────────────────────────────────────────────────────────────
// Sinks
// ─────────────────────────────────────────────────────────────────────────────

func TestBestPoseSink_MissingEnergyRanksLast(t *testing.T) {
	inner := &memSink{}
	sink := NewBestPoseSink(inner)
	require.NoError(t, sink.Write(chemio.Record{Index: 0, Name: "x"}))
	require.NoError(t, sink.Write(chemio.Record{Index: 1, Name: "x", Props: map[string]string{chemio.PropTotalEnergy: "-1.0"}}))
	require.NoError(t, sink.Write(chemio.Record{Index: 2, Name: "x", Props: map[string]string{chemio.PropTotalEnergy: "-1.0"}}))
	require.NoError(t, sink.Close())

	require.Len(t, inner.recs, 1)
	assert.Equal(t, 1, inner.recs[0].Index, "ties keep the earlier pose")
}

type lineRecorder struct {
	lines  []string
	closed bool
}

func (l *lineRecorder) WriteLine(s string) error {
	l.lines = append(l.lines, s)
	return nil
}

func (l *lineRecorder) Close() error {
	l.closed = true
	return nil
}

func TestNamesOnlySink(t *testing.T) {
	lw := &lineRecorder{}
	sink := NewNamesOnlySink(lw)
	require.NoError(t, sink.Write(chemio.Record{Name: "ZINC01", Raw: []byte("ignored")}))
	require.NoError(t, sink.Write(chemio.Record{Name: "ZINC07"}))
	require.NoError(t, sink.Close())

	assert.Equal(t, []string{"ZINC01", "ZINC07"}, lw.lines)
	assert.True(t, lw.closed)
}
