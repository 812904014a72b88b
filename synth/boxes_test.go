package synth

import (
	"math"
	"testing"

	"github.com/tksuoran/bvh/types"
)

func TestGrid(t *testing.T) {
	set := Grid(3, 2, 1, 0.5, 2)
	if set.Len() != 6 {
		t.Fatalf("expected 6 boxes; got %d", set.Len())
	}
	// x-major order
	if exp := types.XYZ(2, 0, 0); set.Center(1) != exp {
		t.Fatalf("expected box 1 center to be %v; got %v", exp, set.Center(1))
	}
	expBounds := types.BBox{Min: types.XYZ(-0.25, -0.25, -0.25), Max: types.XYZ(4.25, 2.25, 0.25)}
	if got := set.Bounds(); got != expBounds {
		t.Fatalf("expected bounds %v; got %v", expBounds, got)
	}
}

func TestRandomIsSeeded(t *testing.T) {
	a, b := Random(64, 9, 10, 1), Random(64, 9, 10, 1)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("expected box %d to match for equal seeds", i)
		}
		if diag := a[i].Diagonal(); diag[0] <= 0 || diag[1] <= 0 || diag[2] <= 0 {
			t.Fatalf("expected box %d to have a positive size; got %v", i, a[i])
		}
	}
}

func TestIntersect(t *testing.T) {
	set := BoxSet{{Min: types.XYZ(0, 0, 0), Max: types.XYZ(1, 1, 1)}}
	inf := float32(math.Inf(1))

	type spec struct {
		origin, dir types.Vec3
		tmax        float32
		expOk       bool
		expDist     float32
	}
	specs := []spec{
		{types.XYZ(-1, 0.5, 0.5), types.XYZ(1, 0, 0), inf, true, 1},
		{types.XYZ(2, 0.5, 0.5), types.XYZ(-1, 0, 0), inf, true, 1},
		{types.XYZ(0.5, 0.5, 0.5), types.XYZ(0, 1, 0), inf, true, 0},
		{types.XYZ(-1, 0.5, 0.5), types.XYZ(-1, 0, 0), inf, false, 0},
		{types.XYZ(-1, 2, 0.5), types.XYZ(1, 0, 0), inf, false, 0},
		{types.XYZ(-1, 0.5, 0.5), types.XYZ(1, 0, 0), 0.5, false, 0},
	}
	for index, s := range specs {
		ray := types.NewRay(s.origin, s.dir)
		ray.TMax = s.tmax
		dist, ok := set.Intersect(0, &ray)
		if ok != s.expOk {
			t.Fatalf("[spec %d] expected hit=%t; got %t", index, s.expOk, ok)
		}
		if ok && dist != s.expDist {
			t.Fatalf("[spec %d] expected distance %f; got %f", index, s.expDist, dist)
		}
	}
}

func TestPermute(t *testing.T) {
	set := Grid(4, 1, 1, 1, 2)
	permuted := set.Clone()
	permuted.Permute([]uint32{3, 1, 0, 2})
	for slot, prim := range []uint32{3, 1, 0, 2} {
		if permuted[slot] != set[prim] {
			t.Fatalf("expected slot %d to hold box %d", slot, prim)
		}
	}
}
