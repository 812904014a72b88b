package types

import "github.com/chewxy/math32"

// A ray with a parametric validity interval [TMin, TMax].
type Ray struct {
	Origin Vec3
	Dir    Vec3
	TMin   float32
	TMax   float32
}

// Create a ray that is valid for the interval [0, +inf).
func NewRay(origin, dir Vec3) Ray {
	return Ray{Origin: origin, Dir: dir, TMin: 0, TMax: math32.Inf(1)}
}

// Position along the ray at distance t.
func (r Ray) At(t float32) Vec3 {
	return r.Origin.Add(r.Dir.Mul(t))
}

// Component-wise reciprocal of the ray direction. Zero components map to an
// infinity carrying the sign of the zero so that slab comparisons stay
// ordered (-0 maps to -inf).
func (r Ray) InvDir() Vec3 {
	var inv Vec3
	for axis := 0; axis < 3; axis++ {
		d := r.Dir[axis]
		if d == 0 {
			if math32.Signbit(d) {
				inv[axis] = math32.Inf(-1)
			} else {
				inv[axis] = math32.Inf(1)
			}
			continue
		}
		inv[axis] = 1 / d
	}
	return inv
}

// Octant returns the sign pattern of the direction: bit i is set when the
// direction component i is negative (including -0).
func (r Ray) Octant() uint8 {
	var octant uint8
	for axis := 0; axis < 3; axis++ {
		if math32.Signbit(r.Dir[axis]) {
			octant |= 1 << uint(axis)
		}
	}
	return octant
}
