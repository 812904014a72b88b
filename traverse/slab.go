package traverse

import "github.com/tksuoran/bvh/types"

// Precomputed per ray data for ray/box tests.
type slab struct {
	origin types.Vec3
	inv    types.Vec3
	tmin   float32

	// Box corner (0 = min, 1 = max) that holds the near plane per axis.
	near [3]int
}

func newSlab(ray *types.Ray) slab {
	s := slab{origin: ray.Origin, inv: ray.InvDir(), tmin: ray.TMin}
	octant := ray.Octant()
	for axis := range s.near {
		if octant&(1<<uint(axis)) != 0 {
			s.near[axis] = 1
		}
	}
	return s
}

// Entry distance of the ray into box, clipped to [tmin, tmax]. Products that
// evaluate to NaN (the origin lies on a plane the ray runs parallel to) are
// ignored by the comparisons.
func (s *slab) intersect(box *types.BBox, tmax float32) (float32, bool) {
	corners := [2]*types.Vec3{&box.Min, &box.Max}
	tEnter, tExit := s.tmin, tmax
	for axis := 0; axis < 3; axis++ {
		near := corners[s.near[axis]][axis]
		far := corners[1-s.near[axis]][axis]
		t0 := (near - s.origin[axis]) * s.inv[axis]
		t1 := (far - s.origin[axis]) * s.inv[axis]
		if t0 > tEnter {
			tEnter = t0
		}
		if t1 < tExit {
			tExit = t1
		}
	}
	return tEnter, tEnter <= tExit
}
