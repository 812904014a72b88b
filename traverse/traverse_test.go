package traverse

import (
	"math"
	"testing"

	"github.com/tksuoran/bvh/builder"
	"github.com/tksuoran/bvh/optimizer"
	"github.com/tksuoran/bvh/synth"
	"github.com/tksuoran/bvh/tree"
	"github.com/tksuoran/bvh/types"
)

// Wraps a box set without exposing Permute.
type plainBoxes struct {
	set synth.BoxSet
}

func (p plainBoxes) Intersect(prim uint32, ray *types.Ray) (float32, bool) {
	return p.set.Intersect(prim, ray)
}

func build(t *testing.T, algo builder.Algorithm, set synth.BoxSet) *tree.Tree {
	tr, err := builder.Build(algo, set, builder.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	return tr
}

func TestClosestHitMatchesBruteForce(t *testing.T) {
	set := synth.Random(1500, 17, 60, 4)
	rays := synth.Rays(2000, 23, set.Bounds())

	trees := map[string]*tree.Tree{}
	for _, algo := range []builder.Algorithm{builder.Binned, builder.Sweep, builder.Clustered, builder.Linear} {
		trees[algo.String()] = build(t, algo, set)
	}
	optimized := build(t, builder.Linear, set)
	optStats, err := optimizer.Optimize(optimized, optimizer.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	if optStats.Moves == 0 {
		t.Fatalf("expected the optimizer to reshape the tree; got %+v", optStats)
	}
	trees["lbvh+optimizer"] = optimized

	for name, tr := range trees {
		traverser := New(tr, plainBoxes{set})
		hits, misses := 0, 0
		for index, ray := range rays {
			exp, expOk := BruteForce(set, set.Len(), ray, ClosestHit)
			got, gotOk := traverser.Trace(ray, ClosestHit)
			if expOk != gotOk {
				t.Fatalf("[%s ray %d] expected hit=%t; got %t", name, index, expOk, gotOk)
			}
			if !expOk {
				misses++
				continue
			}
			hits++
			if got.Dist != exp.Dist {
				t.Fatalf("[%s ray %d] expected hit distance %f; got %f", name, index, exp.Dist, got.Dist)
			}
			// Several boxes may be entered at the same distance
			if dist, ok := set.Intersect(got.Prim, &ray); !ok || dist != got.Dist {
				t.Fatalf("[%s ray %d] reported primitive %d is not hit at %f", name, index, got.Prim, got.Dist)
			}
		}
		if hits == 0 || misses == 0 {
			t.Fatalf("[%s] expected a mix of hits and misses; got %d hits, %d misses", name, hits, misses)
		}
	}
}

func TestAnyHitVisitsFewerLeaves(t *testing.T) {
	set := synth.Grid(8, 8, 8, 0.9, 1)
	tr := build(t, builder.Sweep, set)
	traverser := New(tr, plainBoxes{set})

	type spec struct {
		origin, dir types.Vec3
	}
	specs := []spec{
		{types.XYZ(-5, 3, 3), types.XYZ(1, 0, 0)},
		{types.XYZ(3.2, 3.1, 20), types.XYZ(0, 0, -1)},
		{types.XYZ(-3, -3, -3), types.XYZ(1, 1, 1).Normalize()},
		{types.XYZ(10, 2, 5), types.XYZ(-1, 0.1, -0.2).Normalize()},
	}

	for index, s := range specs {
		ray := types.NewRay(s.origin, s.dir)
		closest, closestOk, closestStats := traverser.TraceStats(ray, ClosestHit)
		_, anyOk, anyStats := traverser.TraceStats(ray, AnyHit)
		if !closestOk || !anyOk {
			t.Fatalf("[spec %d] expected both modes to report a hit", index)
		}
		if anyStats.LeavesVisited > closestStats.LeavesVisited {
			t.Fatalf("[spec %d] expected any-hit to visit at most %d leaves; visited %d", index, closestStats.LeavesVisited, anyStats.LeavesVisited)
		}
		if closest.Dist <= 0 {
			t.Fatalf("[spec %d] expected positive hit distance; got %f", index, closest.Dist)
		}
	}
}

func TestAnyHitStopsEarly(t *testing.T) {
	// Overlapping boxes reaching further and further along +x, all of them
	// containing the ray origin
	var set synth.BoxSet
	for i := 0; i < 8; i++ {
		offset := float32(i)
		set = append(set, types.BBox{Min: types.XYZ(offset-10, -1, -1), Max: types.XYZ(offset+10, 1, 1)})
	}
	tr := build(t, builder.Linear, set)
	traverser := New(tr, plainBoxes{set})

	ray := types.NewRay(types.XYZ(0, 0, 0), types.XYZ(1, 0, 0))
	_, closestOk, closestStats := traverser.TraceStats(ray, ClosestHit)
	_, anyOk, anyStats := traverser.TraceStats(ray, AnyHit)
	if !closestOk || !anyOk {
		t.Fatal("expected both modes to report a hit")
	}
	if anyStats.LeavesVisited != 1 {
		t.Fatalf("expected any-hit to stop at the first leaf; visited %d", anyStats.LeavesVisited)
	}
	if closestStats.LeavesVisited != len(set) {
		t.Fatalf("expected closest-hit to visit all %d leaves; visited %d", len(set), closestStats.LeavesVisited)
	}
}

func TestEmptyTreeMisses(t *testing.T) {
	traverser := New(tree.Empty(), plainBoxes{})
	for _, ray := range synth.Rays(100, 1, types.BBox{Max: types.Splat(1)}) {
		if _, ok := traverser.Trace(ray, ClosestHit); ok {
			t.Fatal("expected closest-hit miss on an empty tree")
		}
		if _, ok := traverser.Trace(ray, AnyHit); ok {
			t.Fatal("expected any-hit miss on an empty tree")
		}
	}
}

func TestAxisAlignedRays(t *testing.T) {
	// Boxes [-0.5,0.5] [1.5,2.5] [3.5,4.5] [5.5,6.5] along x
	set := synth.Grid(4, 1, 1, 1, 2)
	tr := build(t, builder.Binned, set)
	traverser := New(tr, plainBoxes{set})
	negZero := float32(math.Copysign(0, -1))

	type spec struct {
		origin, dir types.Vec3
		tmax        float32
		expOk       bool
		expPrim     uint32
		expDist     float32
	}
	inf := float32(math.Inf(1))
	specs := []spec{
		{types.XYZ(-5, 0, 0), types.XYZ(1, 0, 0), inf, true, 0, 4.5},
		{types.XYZ(10, 0, 0), types.XYZ(-1, negZero, negZero), inf, true, 3, 3.5},
		// Grazing the top face of every box
		{types.XYZ(-5, 0.5, 0), types.XYZ(1, 0, 0), inf, true, 0, 4.5},
		{types.XYZ(10, 0.5, 0), types.XYZ(-1, negZero, 0), inf, true, 3, 3.5},
		// Parallel to the row but above it
		{types.XYZ(-5, 0.6, 0), types.XYZ(1, 0, 0), inf, false, 0, 0},
		// Starting between boxes
		{types.XYZ(3, 0, 0), types.XYZ(1, 0, 0), inf, true, 2, 0.5},
		// Interval ends before the first box
		{types.XYZ(-5, 0, 0), types.XYZ(1, 0, 0), 4, false, 0, 0},
		// Origin inside a box
		{types.XYZ(2, 0, 0), types.XYZ(0, 0, 1), inf, true, 1, 0},
	}

	for index, s := range specs {
		ray := types.NewRay(s.origin, s.dir)
		ray.TMax = s.tmax
		hit, ok := traverser.Trace(ray, ClosestHit)
		if ok != s.expOk {
			t.Fatalf("[spec %d] expected hit=%t; got %t", index, s.expOk, ok)
		}
		if !ok {
			continue
		}
		if hit.Prim != s.expPrim || hit.Dist != s.expDist {
			t.Fatalf("[spec %d] expected hit on %d at %f; got %d at %f", index, s.expPrim, s.expDist, hit.Prim, hit.Dist)
		}
	}
}

func TestPermutedIntersector(t *testing.T) {
	set := synth.Random(800, 5, 40, 3)
	rays := synth.Rays(500, 6, set.Bounds())
	tr := build(t, builder.Clustered, set)

	permuted := set.Clone()
	traverser := New(tr, permuted)
	for slot, prim := range tr.PrimIndices {
		if permuted[slot] != set[prim] {
			t.Fatalf("expected slot %d to hold primitive %d", slot, prim)
		}
	}

	for index, ray := range rays {
		exp, expOk := BruteForce(set, set.Len(), ray, ClosestHit)
		got, gotOk := traverser.Trace(ray, ClosestHit)
		if expOk != gotOk || got.Dist != exp.Dist {
			t.Fatalf("[ray %d] expected hit=%t at %f; got hit=%t at %f", index, expOk, exp.Dist, gotOk, got.Dist)
		}
		if gotOk {
			if dist, ok := set.Intersect(got.Prim, &ray); !ok || dist != got.Dist {
				t.Fatalf("[ray %d] expected original primitive index; %d is not hit at %f", index, got.Prim, got.Dist)
			}
		}
	}
}
