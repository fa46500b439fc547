package geometry

import (
	"gonum.org/v1/gonum/mat"

	"github.com/turtacn/molfilter/pkg/errors"
)

// Transform is a proper rigid-body motion: x' = R·(x − From) + To.
type Transform struct {
	R    [3][3]float64
	From Vec3
	To   Vec3
}

// Identity is the transform that leaves every point unchanged.
var Identity = Transform{R: [3][3]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}}

// Apply maps p through t.
func (t Transform) Apply(p Vec3) Vec3 {
	d := p.Sub(t.From)
	return Vec3{
		t.R[0][0]*d.X + t.R[0][1]*d.Y + t.R[0][2]*d.Z + t.To.X,
		t.R[1][0]*d.X + t.R[1][1]*d.Y + t.R[1][2]*d.Z + t.To.Y,
		t.R[2][0]*d.X + t.R[2][1]*d.Y + t.R[2][2]*d.Z + t.To.Z,
	}
}

// ApplyAll maps every point of pts through t into a new slice.
func (t Transform) ApplyAll(pts []Vec3) []Vec3 {
	out := make([]Vec3, len(pts))
	for i, p := range pts {
		out[i] = t.Apply(p)
	}
	return out
}

// Superpose returns the rotation and translation that minimise the RMSD of
// mobile onto target (Kabsch algorithm).  Reflections are excluded.
func Superpose(mobile, target []Vec3) (Transform, error) {
	if len(mobile) != len(target) {
		return Transform{}, errors.Newf(errors.CodeAtomCountMismatch,
			"cannot superpose %d atoms onto %d", len(mobile), len(target))
	}
	if len(mobile) == 0 {
		return Transform{}, errors.New(errors.CodeAtomCountMismatch, "cannot superpose zero atoms")
	}

	cm, ct := Centroid(mobile), Centroid(target)
	if len(mobile) == 1 {
		t := Identity
		t.From, t.To = cm, ct
		return t, nil
	}

	// Covariance H = Σ (m_i − cm)(t_i − ct)ᵀ.
	h := mat.NewDense(3, 3, nil)
	for i := range mobile {
		p := mobile[i].Sub(cm)
		q := target[i].Sub(ct)
		pv := [3]float64{p.X, p.Y, p.Z}
		qv := [3]float64{q.X, q.Y, q.Z}
		for r := 0; r < 3; r++ {
			for c := 0; c < 3; c++ {
				h.Set(r, c, h.At(r, c)+pv[r]*qv[c])
			}
		}
	}

	var svd mat.SVD
	if ok := svd.Factorize(h, mat.SVDFull); !ok {
		return Transform{}, errors.New(errors.CodeSuperposition, "SVD of the covariance matrix did not converge")
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	// R = V · diag(1, 1, d) · Uᵀ with d = sign(det(V·Uᵀ)).
	var vut mat.Dense
	vut.Mul(&v, u.T())
	d := 1.0
	if mat.Det(&vut) < 0 {
		d = -1
	}
	corr := mat.NewDiagDense(3, []float64{1, 1, d})
	var vd, rot mat.Dense
	vd.Mul(&v, corr)
	rot.Mul(&vd, u.T())

	t := Transform{From: cm, To: ct}
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			t.R[r][c] = rot.At(r, c)
		}
	}
	return t, nil
}

// SuperposedRMSD superposes mobile onto target and returns the RMSD after
// the fit.
func SuperposedRMSD(mobile, target []Vec3) (float64, error) {
	t, err := Superpose(mobile, target)
	if err != nil {
		return 0, err
	}
	return RMSD(t.ApplyAll(mobile), target)
}
