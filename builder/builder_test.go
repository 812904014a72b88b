package builder

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/tksuoran/bvh/sah"
	"github.com/tksuoran/bvh/synth"
	"github.com/tksuoran/bvh/tree"
	"github.com/tksuoran/bvh/types"
)

var algorithms = []Algorithm{Binned, Sweep, Clustered, Linear}

func testOptions(workers int) Options {
	opts := DefaultOptions()
	opts.Workers = workers
	opts.ParallelThreshold = 64
	return opts
}

// Leaf contents as sorted primitive lists, independent of node order.
func leafSets(t *tree.Tree) []string {
	var sets []string
	for index := range t.Nodes {
		node := &t.Nodes[index]
		if !node.IsLeaf() {
			continue
		}
		first, count := node.Primitives()
		prims := append([]uint32(nil), t.PrimIndices[first:first+count]...)
		sort.Slice(prims, func(i, j int) bool { return prims[i] < prims[j] })
		sets = append(sets, fmt.Sprint(prims))
	}
	sort.Strings(sets)
	return sets
}

// Number of primitives referenced by the subtree rooted at index.
func subtreeCount(t *tree.Tree, index uint32) int {
	node := &t.Nodes[index]
	if node.IsLeaf() {
		_, count := node.Primitives()
		return int(count)
	}
	left, right := node.ChildNodes()
	return subtreeCount(t, left) + subtreeCount(t, right)
}

func TestBuildersProduceValidTrees(t *testing.T) {
	scenes := map[string]synth.BoxSet{
		"single": synth.Grid(1, 1, 1, 1, 1),
		"pair":   synth.Grid(2, 1, 1, 1, 2),
		"grid":   synth.Grid(6, 5, 4, 0.8, 1),
		"random": synth.Random(3000, 1, 100, 4),
	}

	for _, algo := range algorithms {
		for name, set := range scenes {
			t.Run(fmt.Sprintf("%s/%s", algo, name), func(t *testing.T) {
				tr, err := Build(algo, set, testOptions(4))
				if err != nil {
					t.Fatal(err)
				}
				if len(tr.PrimIndices) != set.Len() {
					t.Fatalf("expected permutation of length %d; got %d", set.Len(), len(tr.PrimIndices))
				}
				if err = tr.Verify(set.Box); err != nil {
					t.Fatal(err)
				}
				if exp := set.Bounds(); tr.BBox() != exp {
					t.Fatalf("expected root bbox %v; got %v", exp, tr.BBox())
				}
			})
		}
	}
}

func TestBinnedGridRootSplit(t *testing.T) {
	// Unit cubes centered at {0,1}^3
	set := synth.Grid(2, 2, 2, 1, 1)

	cfg := DefaultBinnedConfig()
	cfg.BinCount = 8
	tr, err := BuildBinned(set, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err = tr.Verify(set.Box); err != nil {
		t.Fatal(err)
	}

	root := &tr.Nodes[0]
	if root.IsLeaf() {
		t.Fatal("expected root to be split")
	}
	left, right := root.ChildNodes()
	for _, child := range []uint32{left, right} {
		if got := subtreeCount(tr, child); got != 4 {
			t.Fatalf("expected root child %d to hold 4 primitives; got %d", child, got)
		}
	}

	// All axes have the same extent; the first one wins
	expLeft := types.BBox{Min: types.XYZ(-0.5, -0.5, -0.5), Max: types.XYZ(0.5, 1.5, 1.5)}
	if got := tr.Nodes[left].BBox; got != expLeft {
		t.Fatalf("expected left child bbox %v; got %v", expLeft, got)
	}

	// Splitting a pair of cubes costs more than intersecting both
	if stats := tr.Stats(); stats.Leaves != 4 || stats.MaxDepth != 2 || stats.MaxLeafSize != 2 {
		t.Fatalf("expected 4 leaves with 2 primitives at depth 2; got %+v", stats)
	}
}

func TestEmptyInput(t *testing.T) {
	for _, algo := range algorithms {
		tr, err := Build(algo, synth.BoxSet{}, DefaultOptions())
		if err != nil {
			t.Fatalf("[%s] unexpected error %v", algo, err)
		}
		if !tr.IsEmpty() || len(tr.Nodes) != 1 || !tr.Nodes[0].IsLeaf() {
			t.Fatalf("[%s] expected a single empty root leaf; got %d nodes", algo, len(tr.Nodes))
		}
		if err = tr.Verify(nil); err != nil {
			t.Fatalf("[%s] %v", algo, err)
		}
	}
}

func TestIdenticalPrimitives(t *testing.T) {
	set := make(synth.BoxSet, 100)
	for i := range set {
		set[i] = types.BBox{Min: types.XYZ(1, 1, 1), Max: types.XYZ(2, 2, 2)}
	}

	opts := DefaultOptions()
	opts.MaxLeafSize = 4
	for _, algo := range algorithms {
		tr, err := Build(algo, set, opts)
		if err != nil {
			t.Fatalf("[%s] unexpected error %v", algo, err)
		}
		if err = tr.Verify(set.Box); err != nil {
			t.Fatalf("[%s] %v", algo, err)
		}

		switch algo {
		case Binned, Sweep:
			// Nothing separates the primitives so the root becomes a leaf
			if len(tr.Nodes) != 1 {
				t.Fatalf("[%s] expected a single leaf; got %d nodes", algo, len(tr.Nodes))
			}
		default:
			if exp := 2*len(set) - 1; len(tr.Nodes) != exp {
				t.Fatalf("[%s] expected %d nodes; got %d", algo, exp, len(tr.Nodes))
			}
		}
	}
}

func TestLeafSizeLimits(t *testing.T) {
	set := synth.Random(500, 7, 50, 2)

	type spec struct {
		minLeaf, maxLeaf int
	}
	specs := []spec{{1, 1}, {1, 8}, {4, 4}, {2, 16}}

	for index, s := range specs {
		for _, algo := range []Algorithm{Binned, Sweep} {
			opts := DefaultOptions()
			opts.MinLeafSize = s.minLeaf
			opts.MaxLeafSize = s.maxLeaf
			// Make leaves expensive so that only the size limits matter
			opts.Cost = sah.Config{TraversalCost: 0, IntersectionCost: 1}

			tr, err := Build(algo, set, opts)
			if err != nil {
				t.Fatalf("[spec %d] %s: unexpected error %v", index, algo, err)
			}
			if err = tr.Verify(set.Box); err != nil {
				t.Fatalf("[spec %d] %s: %v", index, algo, err)
			}
			if stats := tr.Stats(); stats.MaxLeafSize > s.maxLeaf {
				t.Fatalf("[spec %d] %s: expected leaves with at most %d primitives; got %d", index, algo, s.maxLeaf, stats.MaxLeafSize)
			}
		}
	}
}

func TestBottomUpLeafSizes(t *testing.T) {
	set := synth.Random(300, 8, 40, 2)

	for _, algo := range []Algorithm{Clustered, Linear} {
		opts := DefaultOptions()
		opts.MinLeafSize = 4
		opts.MaxLeafSize = 16

		tr, err := Build(algo, set, opts)
		if err != nil {
			t.Fatalf("[%s] unexpected error %v", algo, err)
		}
		stats := tr.Stats()
		if stats.Leaves != set.Len() || stats.MaxLeafSize != 1 {
			t.Fatalf("[%s] expected %d single primitive leaves; got %d leaves with up to %d primitives", algo, set.Len(), stats.Leaves, stats.MaxLeafSize)
		}
	}
}

func TestDeterminismAcrossWorkers(t *testing.T) {
	set := synth.Random(5000, 3, 200, 5)

	for _, algo := range algorithms {
		serial, err := Build(algo, set, testOptions(1))
		if err != nil {
			t.Fatal(err)
		}
		parallel, err := Build(algo, set, testOptions(8))
		if err != nil {
			t.Fatal(err)
		}

		exp, got := leafSets(serial), leafSets(parallel)
		if strings.Join(exp, ";") != strings.Join(got, ";") {
			t.Fatalf("[%s] expected identical leaf sets for 1 and 8 workers", algo)
		}
	}
}

func TestClusterSearchRadius(t *testing.T) {
	set := synth.Random(700, 11, 40, 3)

	for _, radius := range []int{0, 1, 14, 64} {
		cfg := DefaultClusterConfig()
		cfg.SearchRadius = radius
		tr, err := BuildClustered(set, cfg)
		if err != nil {
			t.Fatalf("[radius %d] unexpected error %v", radius, err)
		}
		if err = tr.Verify(set.Box); err != nil {
			t.Fatalf("[radius %d] %v", radius, err)
		}
		if stats := tr.Stats(); stats.Leaves != set.Len() {
			t.Fatalf("[radius %d] expected %d single primitive leaves; got %d", radius, set.Len(), stats.Leaves)
		}
	}
}

func TestInvalidConfig(t *testing.T) {
	set := synth.Grid(2, 2, 2, 1, 1)

	binned := func(mutate func(c *BinnedConfig)) error {
		cfg := DefaultBinnedConfig()
		mutate(&cfg)
		_, err := BuildBinned(set, cfg)
		return err
	}
	clustered := func(mutate func(c *ClusterConfig)) error {
		cfg := DefaultClusterConfig()
		mutate(&cfg)
		_, err := BuildClustered(set, cfg)
		return err
	}
	linear := func(mutate func(c *LinearConfig)) error {
		cfg := DefaultLinearConfig()
		mutate(&cfg)
		_, err := BuildLinear(set, cfg)
		return err
	}

	type spec struct {
		name string
		run  func() error
	}
	specs := []spec{
		{"bin count", func() error { return binned(func(c *BinnedConfig) { c.BinCount = 1 }) }},
		{"min leaf size", func() error { return binned(func(c *BinnedConfig) { c.MinLeafSize = 0 }) }},
		{"max leaf size", func() error { return binned(func(c *BinnedConfig) { c.MaxLeafSize = 0 }) }},
		{"workers", func() error { return binned(func(c *BinnedConfig) { c.Workers = -1 }) }},
		{"intersection cost", func() error { return binned(func(c *BinnedConfig) { c.Cost.IntersectionCost = 0 }) }},
		{"traversal cost", func() error { return binned(func(c *BinnedConfig) { c.Cost.TraversalCost = -1 }) }},
		{"search radius", func() error { return clustered(func(c *ClusterConfig) { c.SearchRadius = -1 }) }},
		{"cluster morton bits", func() error { return clustered(func(c *ClusterConfig) { c.MortonBits = 16 }) }},
		{"linear morton bits", func() error { return linear(func(c *LinearConfig) { c.MortonBits = 48 }) }},
		{"sweep threshold", func() error {
			cfg := DefaultSweepConfig()
			cfg.ParallelThreshold = -5
			_, err := BuildSweep(set, cfg)
			return err
		}},
	}

	for _, s := range specs {
		t.Run(s.name, func(t *testing.T) {
			if err := s.run(); !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig; got %v", err)
			}
		})
	}
}

func TestParseAlgorithm(t *testing.T) {
	for _, algo := range algorithms {
		got, err := ParseAlgorithm(strings.ToUpper(algo.String()))
		if err != nil || got != algo {
			t.Fatalf("expected %s; got %s (err %v)", algo, got, err)
		}
	}
	if _, err := ParseAlgorithm("octree"); !errors.Is(err, ErrUnknownAlgorithm) {
		t.Fatalf("expected ErrUnknownAlgorithm; got %v", err)
	}
	if _, err := Build(Algorithm(42), synth.BoxSet{}, DefaultOptions()); !errors.Is(err, ErrUnknownAlgorithm) {
		t.Fatalf("expected ErrUnknownAlgorithm; got %v", err)
	}
}

type volume struct {
	box types.BBox
}

func (v volume) BBox() types.BBox   { return v.box }
func (v volume) Center() types.Vec3 { return v.box.Center() }

func TestVolumesAdapter(t *testing.T) {
	set := synth.Grid(3, 3, 1, 1, 2)
	volumes := make(Volumes, len(set))
	for i, box := range set {
		volumes[i] = volume{box}
	}

	tr, err := BuildSweep(volumes, DefaultSweepConfig())
	if err != nil {
		t.Fatal(err)
	}
	if err = tr.Verify(set.Box); err != nil {
		t.Fatal(err)
	}
	if len(tr.PrimIndices) != len(volumes) {
		t.Fatalf("expected %d primitives; got %d", len(volumes), len(tr.PrimIndices))
	}
}
