// Package synth generates synthetic axis-aligned box scenes. A BoxSet is both
// a primitive set that the builders accept and an intersector that the
// traverser accepts.
package synth

import (
	"math/rand"

	"github.com/tksuoran/bvh/types"
)

// BoxSet is a list of axis-aligned boxes.
type BoxSet []types.BBox

func (s BoxSet) Len() int                    { return len(s) }
func (s BoxSet) BBox(index int) types.BBox   { return s[index] }
func (s BoxSet) Center(index int) types.Vec3 { return s[index].Center() }

// Box returns the box for primitive prim; it matches the signature used by
// tree.Verify and tree.Refit.
func (s BoxSet) Box(prim uint32) types.BBox {
	return s[prim]
}

// Intersect reports the distance at which ray enters box prim. Rays that
// start inside the box hit it at ray.TMin. The slab distances are computed
// with the reciprocal direction so that results agree with the tree
// traversal box tests.
func (s BoxSet) Intersect(prim uint32, ray *types.Ray) (float32, bool) {
	box := &s[prim]
	inv := ray.InvDir()
	tNear, tFar := ray.TMin, ray.TMax
	for axis := 0; axis < 3; axis++ {
		near, far := box.Min[axis], box.Max[axis]
		if inv[axis] < 0 {
			near, far = far, near
		}
		t0 := (near - ray.Origin[axis]) * inv[axis]
		t1 := (far - ray.Origin[axis]) * inv[axis]
		// NaN distances (origin on a parallel plane) fail both tests
		if t0 > tNear {
			tNear = t0
		}
		if t1 < tFar {
			tFar = t1
		}
	}
	return tNear, tNear <= tFar
}

// Permute reorders the boxes in place so that slot i holds the box that was
// at primIndices[i].
func (s BoxSet) Permute(primIndices []uint32) {
	permuted := make(BoxSet, len(s))
	for slot, prim := range primIndices {
		permuted[slot] = s[prim]
	}
	copy(s, permuted)
}

// Clone returns a copy of the set.
func (s BoxSet) Clone() BoxSet {
	return append(BoxSet(nil), s...)
}

// Bounds of all boxes in the set.
func (s BoxSet) Bounds() types.BBox {
	bounds := types.EmptyBBox()
	for _, box := range s {
		bounds = bounds.Union(box)
	}
	return bounds
}

// Grid returns nx*ny*nz boxes of the given edge size whose centers lie on
// an integer lattice scaled by spacing. Boxes are generated in x-major order.
func Grid(nx, ny, nz int, size, spacing float32) BoxSet {
	half := types.Splat(size / 2)
	set := make(BoxSet, 0, nx*ny*nz)
	for z := 0; z < nz; z++ {
		for y := 0; y < ny; y++ {
			for x := 0; x < nx; x++ {
				center := types.XYZ(float32(x), float32(y), float32(z)).Mul(spacing)
				set = append(set, types.BBox{Min: center.Sub(half), Max: center.Add(half)})
			}
		}
	}
	return set
}

// Random returns count boxes with centers uniformly distributed in
// [0, extent]^3 and edge lengths in (0, maxSize].
func Random(count int, seed int64, extent, maxSize float32) BoxSet {
	rng := rand.New(rand.NewSource(seed))
	set := make(BoxSet, count)
	for i := range set {
		center := randomVec(rng).Mul(extent)
		size := types.XYZ(
			maxSize*(1-rng.Float32()),
			maxSize*(1-rng.Float32()),
			maxSize*(1-rng.Float32()),
		).Mul(0.5)
		set[i] = types.BBox{Min: center.Sub(size), Max: center.Add(size)}
	}
	return set
}

// Rays returns count rays whose origins are spread over bounds grown by half
// its diagonal and whose directions are uniform over the sphere. Roughly
// every eighth ray is axis aligned so that zero direction components are
// exercised.
func Rays(count int, seed int64, bounds types.BBox) []types.Ray {
	rng := rand.New(rand.NewSource(seed))
	diag := bounds.Diagonal()
	origin := bounds.Min.Sub(diag.Mul(0.5))
	span := diag.Mul(2)

	rays := make([]types.Ray, count)
	for i := range rays {
		o := origin.Add(randomVec(rng).MulVec(span))
		var dir types.Vec3
		if rng.Intn(8) == 0 {
			dir[rng.Intn(3)] = float32(2*rng.Intn(2) - 1)
		} else {
			for {
				dir = randomVec(rng).Mul(2).Sub(types.Splat(1))
				if l := dir.Len(); l > 1e-3 && l <= 1 {
					break
				}
			}
			dir = dir.Normalize()
		}
		rays[i] = types.NewRay(o, dir)
	}
	return rays
}

func randomVec(rng *rand.Rand) types.Vec3 {
	return types.XYZ(rng.Float32(), rng.Float32(), rng.Float32())
}
