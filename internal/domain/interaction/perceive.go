package interaction

import (
	"github.com/turtacn/molfilter/internal/domain/geometry"
	"github.com/turtacn/molfilter/internal/domain/molecule"
	"github.com/turtacn/molfilter/internal/domain/substructure"
)

// Criteria holds the geometric cut-offs, in Å and degrees.
type Criteria struct {
	HBondDistance           float64
	SaltBridgeDistance      float64
	StackingDistance        float64
	StackingParallelAngle   float64
	StackingTShapedAngle    float64
	StackingTShapedDistance float64
	CationPiDistance        float64
	HalogenDistance         float64
	HalogenAngle            float64
	HydrophobicDistance     float64
}

// DefaultCriteria returns the default cut-offs.
func DefaultCriteria() Criteria {
	return Criteria{
		HBondDistance:           3.5,
		SaltBridgeDistance:      4.0,
		StackingDistance:        5.5,
		StackingParallelAngle:   30,
		StackingTShapedAngle:    60,
		StackingTShapedDistance: 6.5,
		CationPiDistance:        6.0,
		HalogenDistance:         3.5,
		HalogenAngle:            140,
		HydrophobicDistance:     4.0,
	}
}

// Contact is one perceived protein–ligand interaction.
type Contact struct {
	Kind         Kind
	Residue      *molecule.ResidueInfo
	LigandAtoms  []int
	ProteinAtoms []int
	Distance     float64
	// Angle is the inter-plane angle for stacking and the C–X···A angle for
	// halogen bonds.
	Angle float64
}

// Ligand feature patterns.  Hydrogens may be implicit or graph atoms.
var (
	donorQuery    = substructure.MustCompile("[#7,#8,#16;!H0]")
	acceptorQuery = substructure.MustCompile(
		"[$([O,o;+0,-1]),$([n;H0;+0]),$([N;+0;X1]),$([N;v3;+0;!$(N-a);!$(N-[C,S]=[O,N,S])])]")
	cationQuery = substructure.MustCompile("[$([+,+2;!$(*~[-])]),$([NX3]-[CX3]=[NX3+])]")
	anionQuery  = substructure.MustCompile(
		"[$([-,-2;!$(*~[+])]),$([OX1]=[CX3]-[O-]),$([OX1]=[#15,#16]-[O-])]")
	halogenQuery     = substructure.MustCompile("[Cl,Br,I;X1]-[#6]")
	hydrophobicQuery = substructure.MustCompile("[#6,Cl,Br,I;+0;!$(*~[#7,#8])]")
)

type ligandFeatures struct {
	donors, acceptors, cations, anions, hydrophobic []int
	halogens                                        [][2]int // halogen, carbon
	rings                                           []ring
}

func typeLigand(lig *molecule.Molecule) ligandFeatures {
	atoms := func(q *substructure.Query) []int {
		var out []int
		for _, m := range q.FindAll(lig, substructure.MatchOptions{Unique: true}) {
			out = append(out, m[0])
		}
		return out
	}
	f := ligandFeatures{
		donors:      atoms(donorQuery),
		acceptors:   atoms(acceptorQuery),
		cations:     atoms(cationQuery),
		anions:      atoms(anionQuery),
		hydrophobic: atoms(hydrophobicQuery),
	}
	for _, m := range halogenQuery.FindAll(lig, substructure.MatchOptions{Unique: true}) {
		f.halogens = append(f.halogens, [2]int{m[0], m[1]})
	}
	for _, r := range lig.AromaticRings() {
		pts := lig.Coords(r)
		f.rings = append(f.rings, ring{
			atoms:    r,
			centroid: geometry.Centroid(pts),
			normal:   geometry.RingNormal(pts),
		})
	}
	return f
}

// Perceive lists the contacts between a docked ligand and the site.  The
// ligand must be perceived and carry coordinates.  Contacts are reported per
// ligand feature and protein feature pair, in a deterministic order.
func Perceive(site *Site, lig *molecule.Molecule, c Criteria) []Contact {
	lf := typeLigand(lig)
	pos := func(i int) geometry.Vec3 { return lig.Atoms[i].Coord }
	var out []Contact

	pairs := func(kind Kind, ligAtoms []int, prot []feature, cutoff float64) {
		for _, li := range ligAtoms {
			for _, pf := range prot {
				if d := pos(li).Dist(pf.pos); d <= cutoff {
					out = append(out, Contact{
						Kind:         kind,
						Residue:      pf.res,
						LigandAtoms:  []int{li},
						ProteinAtoms: []int{pf.atom},
						Distance:     d,
					})
				}
			}
		}
	}

	pairs(KindHBondDonor, lf.donors, site.acceptors, c.HBondDistance)
	pairs(KindHBondAcceptor, lf.acceptors, site.donors, c.HBondDistance)
	pairs(KindSaltBridge, lf.cations, site.anions, c.SaltBridgeDistance)
	pairs(KindSaltBridge, lf.anions, site.cations, c.SaltBridgeDistance)
	pairs(KindHydrophobic, lf.hydrophobic, site.hydrophobic, c.HydrophobicDistance)

	// π-stacking, face-to-face or edge-to-face.
	for _, lr := range lf.rings {
		for _, pr := range site.rings {
			d := lr.centroid.Dist(pr.centroid)
			angle := geometry.PlaneAngleDeg(lr.normal, pr.normal)
			parallel := d <= c.StackingDistance && angle <= c.StackingParallelAngle
			tshaped := d <= c.StackingTShapedDistance && angle >= c.StackingTShapedAngle
			if parallel || tshaped {
				out = append(out, Contact{
					Kind:         KindStacking,
					Residue:      pr.res,
					LigandAtoms:  lr.atoms,
					ProteinAtoms: pr.atoms,
					Distance:     d,
					Angle:        angle,
				})
			}
		}
	}

	// Cation–π in both directions.
	for _, li := range lf.cations {
		for _, pr := range site.rings {
			if d := pos(li).Dist(pr.centroid); d <= c.CationPiDistance {
				out = append(out, Contact{Kind: KindCationPi, Residue: pr.res,
					LigandAtoms: []int{li}, ProteinAtoms: pr.atoms, Distance: d})
			}
		}
	}
	for _, lr := range lf.rings {
		for _, pf := range site.cations {
			if d := lr.centroid.Dist(pf.pos); d <= c.CationPiDistance {
				out = append(out, Contact{Kind: KindCationPi, Residue: pf.res,
					LigandAtoms: lr.atoms, ProteinAtoms: []int{pf.atom}, Distance: d})
			}
		}
	}

	// Halogen bonds: C–X···A close to linear.
	for _, h := range lf.halogens {
		x, carbon := pos(h[0]), pos(h[1])
		for _, pf := range site.acceptors {
			d := x.Dist(pf.pos)
			if d > c.HalogenDistance {
				continue
			}
			if angle := geometry.AngleAtDeg(carbon, x, pf.pos); angle >= c.HalogenAngle {
				out = append(out, Contact{Kind: KindHalogen, Residue: pf.res,
					LigandAtoms: []int{h[0]}, ProteinAtoms: []int{pf.atom}, Distance: d, Angle: angle})
			}
		}
	}
	return out
}
