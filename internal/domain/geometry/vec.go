// Package geometry provides the 3D vector arithmetic, RMSD and rigid-body
// superposition used to compare docked poses and perceive interactions.
package geometry

import "math"

// Vec3 is a point or direction in Cartesian space, in Ångström.
type Vec3 struct {
	X, Y, Z float64
}

// Add returns v + o.
func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }

// Sub returns v - o.
func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }

// Scale returns v * s.
func (v Vec3) Scale(s float64) Vec3 { return Vec3{v.X * s, v.Y * s, v.Z * s} }

// Dot returns the scalar product.
func (v Vec3) Dot(o Vec3) float64 { return v.X*o.X + v.Y*o.Y + v.Z*o.Z }

// Cross returns the vector product v × o.
func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{
		v.Y*o.Z - v.Z*o.Y,
		v.Z*o.X - v.X*o.Z,
		v.X*o.Y - v.Y*o.X,
	}
}

// Norm returns the Euclidean length.
func (v Vec3) Norm() float64 { return math.Sqrt(v.Dot(v)) }

// Unit returns v scaled to length 1.  The zero vector is returned unchanged.
func (v Vec3) Unit() Vec3 {
	n := v.Norm()
	if n == 0 {
		return v
	}
	return v.Scale(1 / n)
}

// Dist2 returns the squared distance between v and o.
func (v Vec3) Dist2(o Vec3) float64 {
	d := v.Sub(o)
	return d.Dot(d)
}

// Dist returns the distance between v and o.
func (v Vec3) Dist(o Vec3) float64 { return math.Sqrt(v.Dist2(o)) }

// IsZero reports whether all components are exactly zero.
func (v Vec3) IsZero() bool { return v.X == 0 && v.Y == 0 && v.Z == 0 }

// Centroid returns the arithmetic mean of pts, or the zero vector for an
// empty slice.
func Centroid(pts []Vec3) Vec3 {
	if len(pts) == 0 {
		return Vec3{}
	}
	var c Vec3
	for _, p := range pts {
		c = c.Add(p)
	}
	return c.Scale(1 / float64(len(pts)))
}

// AngleDeg returns the angle between u and v in degrees, in [0, 180].
// Zero-length inputs yield 0.
func AngleDeg(u, v Vec3) float64 {
	nu, nv := u.Norm(), v.Norm()
	if nu == 0 || nv == 0 {
		return 0
	}
	c := u.Dot(v) / (nu * nv)
	c = math.Max(-1, math.Min(1, c))
	return math.Acos(c) * 180 / math.Pi
}

// AngleAtDeg returns the angle a-b-c at vertex b, in degrees.
func AngleAtDeg(a, b, c Vec3) float64 {
	return AngleDeg(a.Sub(b), c.Sub(b))
}

// PlaneAngleDeg returns the acute angle between two planes given their
// normals, in [0, 90].
func PlaneAngleDeg(n1, n2 Vec3) float64 {
	a := AngleDeg(n1, n2)
	if a > 90 {
		a = 180 - a
	}
	return a
}

// RingNormal returns a unit normal of the best plane through a ring's atoms,
// taken as the normalised sum of cross products of consecutive atoms about the
// centroid (Newell's method).
func RingNormal(pts []Vec3) Vec3 {
	c := Centroid(pts)
	var n Vec3
	for i := range pts {
		a := pts[i].Sub(c)
		b := pts[(i+1)%len(pts)].Sub(c)
		n = n.Add(a.Cross(b))
	}
	return n.Unit()
}
