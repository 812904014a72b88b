package optimizer

import (
	"errors"
	"reflect"
	"testing"

	"github.com/tksuoran/bvh/builder"
	"github.com/tksuoran/bvh/synth"
	"github.com/tksuoran/bvh/tree"
)

func buildLinear(t *testing.T, set synth.BoxSet) *tree.Tree {
	tr, err := builder.BuildLinear(set, builder.DefaultLinearConfig())
	if err != nil {
		t.Fatal(err)
	}
	return tr
}

// Leaf ranges keyed by their first slot.
func leafRanges(tr *tree.Tree) map[uint32]uint32 {
	ranges := make(map[uint32]uint32)
	for index := range tr.Nodes {
		if node := &tr.Nodes[index]; node.IsLeaf() {
			first, count := node.Primitives()
			ranges[first] = count
		}
	}
	return ranges
}

func TestOptimizeReducesCost(t *testing.T) {
	set := synth.Random(2000, 9, 100, 6)
	tr := buildLinear(t, set)

	perm := append([]uint32(nil), tr.PrimIndices...)
	leaves := leafRanges(tr)
	nodeCount := len(tr.Nodes)

	cfg := DefaultConfig()
	cfg.Workers = 4
	stats, err := Optimize(tr, cfg)
	if err != nil {
		t.Fatal(err)
	}

	if err = tr.Verify(set.Box); err != nil {
		t.Fatal(err)
	}
	if stats.Iterations == 0 || stats.Moves == 0 {
		t.Fatalf("expected at least one applied move; got %+v", stats)
	}
	if !(stats.FinalCost < stats.InitialCost) {
		t.Fatalf("expected final cost %f to be lower than initial cost %f", stats.FinalCost, stats.InitialCost)
	}
	if got := tr.Cost(cfg.Cost); got != stats.FinalCost {
		t.Fatalf("expected tree cost %f to match reported final cost %f", got, stats.FinalCost)
	}

	if len(stats.CostHistory) != stats.Iterations+1 {
		t.Fatalf("expected %d cost history entries; got %d", stats.Iterations+1, len(stats.CostHistory))
	}
	for i := 1; i < len(stats.CostHistory); i++ {
		if stats.CostHistory[i] > stats.CostHistory[i-1] {
			t.Fatalf("expected non-increasing cost; iteration %d went from %f to %f", i, stats.CostHistory[i-1], stats.CostHistory[i])
		}
	}

	if !reflect.DeepEqual(perm, tr.PrimIndices) {
		t.Fatal("expected the primitive permutation to stay untouched")
	}
	if !reflect.DeepEqual(leaves, leafRanges(tr)) {
		t.Fatal("expected leaf ranges to stay untouched")
	}
	if len(tr.Nodes) != nodeCount {
		t.Fatalf("expected %d nodes; got %d", nodeCount, len(tr.Nodes))
	}
}

func TestOptimizeIsDeterministic(t *testing.T) {
	set := synth.Random(1500, 21, 80, 5)
	a, b := buildLinear(t, set), buildLinear(t, set)

	cfg := DefaultConfig()
	cfg.MaxIterations = 8
	cfg.Workers = 1
	statsA, err := Optimize(a, cfg)
	if err != nil {
		t.Fatal(err)
	}
	cfg.Workers = 8
	statsB, err := Optimize(b, cfg)
	if err != nil {
		t.Fatal(err)
	}

	if statsA.Moves == 0 {
		t.Fatalf("expected the optimizer to move nodes; got %+v", statsA)
	}
	if !reflect.DeepEqual(statsA, statsB) {
		t.Fatalf("expected identical stats for 1 and 8 workers; got %+v and %+v", statsA, statsB)
	}
	if !reflect.DeepEqual(a.Nodes, b.Nodes) {
		t.Fatal("expected identical trees for 1 and 8 workers")
	}
}

func TestCostIsMonotone(t *testing.T) {
	set := synth.Random(3000, 2, 120, 6)
	for _, algo := range []builder.Algorithm{builder.Binned, builder.Linear} {
		t.Run(algo.String(), func(t *testing.T) {
			tr, err := builder.Build(algo, set, builder.DefaultOptions())
			if err != nil {
				t.Fatal(err)
			}
			stats, err := Optimize(tr, DefaultConfig())
			if err != nil {
				t.Fatal(err)
			}
			if len(stats.CostHistory) <= 2 {
				t.Fatalf("expected several committing iterations; got %+v", stats)
			}
			for i := 1; i < len(stats.CostHistory); i++ {
				if !(stats.CostHistory[i] < stats.CostHistory[i-1]) {
					t.Fatalf("expected iteration %d to lower the cost; got %f -> %f", i, stats.CostHistory[i-1], stats.CostHistory[i])
				}
			}
			if err = tr.Verify(set.Box); err != nil {
				t.Fatal(err)
			}
		})
	}
}

func TestOptimizeSkipsWindowsWithoutGain(t *testing.T) {
	set := synth.Random(1000, 3, 60, 4)
	tr, err := builder.BuildBinned(set, builder.DefaultBinnedConfig())
	if err != nil {
		t.Fatal(err)
	}

	// The largest nodes sit next to the root and rarely have a better place
	cfg := DefaultConfig()
	cfg.BatchSize = 1
	cfg.MaxIterations = 1
	stats, err := Optimize(tr, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Iterations != 1 || stats.Moves != 1 {
		t.Fatalf("expected a single committed move; got %+v", stats)
	}
	if !(stats.FinalCost < stats.InitialCost) {
		t.Fatalf("expected final cost %f to be lower than initial cost %f", stats.FinalCost, stats.InitialCost)
	}
}

func TestOptimizeTinyTrees(t *testing.T) {
	type spec struct {
		set synth.BoxSet
	}
	specs := []spec{
		{synth.BoxSet{}},
		{synth.Grid(1, 1, 1, 1, 1)},
		{synth.Grid(2, 1, 1, 1, 2)},
		{synth.Grid(3, 1, 1, 1, 2)},
	}

	for index, s := range specs {
		tr := buildLinear(t, s.set)
		before := append([]tree.Node(nil), tr.Nodes...)
		stats, err := Optimize(tr, DefaultConfig())
		if err != nil {
			t.Fatalf("[spec %d] unexpected error %v", index, err)
		}
		if stats.FinalCost > stats.InitialCost {
			t.Fatalf("[spec %d] expected cost not to increase; got %f -> %f", index, stats.InitialCost, stats.FinalCost)
		}
		if stats.Moves == 0 && !reflect.DeepEqual(before, tr.Nodes) {
			t.Fatalf("[spec %d] expected tree to stay unchanged without moves", index)
		}
		if err = tr.Verify(s.set.Box); err != nil {
			t.Fatalf("[spec %d] %v", index, err)
		}
	}
}

func TestInvalidConfig(t *testing.T) {
	type spec struct {
		name   string
		mutate func(c *Config)
	}
	specs := []spec{
		{"iterations", func(c *Config) { c.MaxIterations = 0 }},
		{"batch size", func(c *Config) { c.BatchSize = -1 }},
		{"threshold", func(c *Config) { c.ConvergenceThreshold = -0.5 }},
		{"workers", func(c *Config) { c.Workers = -2 }},
		{"cost", func(c *Config) { c.Cost.IntersectionCost = 0 }},
	}

	for _, s := range specs {
		t.Run(s.name, func(t *testing.T) {
			cfg := DefaultConfig()
			s.mutate(&cfg)
			tr := tree.Empty()
			if _, err := Optimize(tr, cfg); !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig; got %v", err)
			}
		})
	}
}
