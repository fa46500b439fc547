package geometry

import (
	"math"

	"github.com/turtacn/molfilter/pkg/errors"
)

// RMSD returns the root-mean-square deviation between two equally sized,
// index-corresponding point sets: sqrt(1/N · Σ|a_i − b_i|²).  The poses are
// compared as given; no superposition is performed.
//
// An error is returned if the sets differ in size or are empty.
func RMSD(a, b []Vec3) (float64, error) {
	if len(a) != len(b) {
		return 0, errors.Newf(errors.CodeAtomCountMismatch,
			"cannot compute RMSD over %d and %d atoms", len(a), len(b))
	}
	if len(a) == 0 {
		return 0, errors.New(errors.CodeAtomCountMismatch, "cannot compute RMSD over zero atoms")
	}
	var sum float64
	for i := range a {
		sum += a[i].Dist2(b[i])
	}
	return math.Sqrt(sum / float64(len(a))), nil
}
