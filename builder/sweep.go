package builder

import (
	"sort"
	"time"

	"github.com/tksuoran/bvh/log"
	"github.com/tksuoran/bvh/parallel"
	"github.com/tksuoran/bvh/sah"
	"github.com/tksuoran/bvh/tree"
	"github.com/tksuoran/bvh/types"
)

type sweepBuilder struct {
	logger log.Logger
	cfg    SweepConfig
	exec   *parallel.Executor

	prims []types.PrimitiveSummary

	// Primitive indices sorted by centroid along each axis. Every node owns
	// the same [begin, end) range in all three arrays.
	sorted [3][]uint32

	// Per axis scratch space: right side areas and stable partition output.
	rightAreas [3][]float32
	tmp        [3][]uint32

	// Indexed by primitive; true if the primitive goes to the left child.
	marks []bool

	nodes []tree.Node
}

// BuildSweep constructs a BVH top-down, evaluating the SAH at every
// primitive boundary along all three axes.
func BuildSweep(prims BoundedVolumeSet, cfg SweepConfig) (*tree.Tree, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	n := prims.Len()
	if n == 0 {
		return tree.Empty(), nil
	}

	start := time.Now()
	exec := cfg.executor()
	b := &sweepBuilder{
		logger: log.New("builder"),
		cfg:    cfg,
		exec:   exec,
		prims:  summarize(prims, exec),
		marks:  make([]bool, n),
		nodes:  make([]tree.Node, 2*n-1),
	}
	exec.Each(3, func(axis int) {
		b.sorted[axis] = b.sortAxis(types.Axis(axis))
		b.rightAreas[axis] = make([]float32, n)
		b.tmp[axis] = make([]uint32, n)
	})
	b.partition(0, 0, n)

	t := &tree.Tree{
		Nodes:       compact(b.nodes, 0),
		PrimIndices: b.sorted[0],
	}
	logBuild(b.logger, "sweep", t, start)
	return t, nil
}

// Primitive indices ordered by centroid along axis; ties go to the lower
// index.
func (b *sweepBuilder) sortAxis(axis types.Axis) []uint32 {
	order := identity(len(b.prims))
	sort.Slice(order, func(i, j int) bool {
		ci, cj := b.prims[order[i]].Center[axis], b.prims[order[j]].Center[axis]
		if ci != cj {
			return ci < cj
		}
		return order[i] < order[j]
	})
	return order
}

func (b *sweepBuilder) partition(nodeIndex uint32, begin, end int) {
	bbox := types.EmptyBBox()
	for _, prim := range b.sorted[0][begin:end] {
		bbox = bbox.Union(b.prims[prim].BBox)
	}
	node := &b.nodes[nodeIndex]
	node.BBox = bbox

	count := end - begin
	if count <= b.cfg.MinLeafSize {
		node.SetPrimitives(uint32(begin), uint32(count))
		return
	}

	split := b.findSplit(begin, end, bbox.HalfArea())
	if !split.Valid() || (split.Cost >= b.cfg.Cost.LeafCost(bbox.HalfArea(), count) && count <= b.cfg.MaxLeafSize) {
		node.SetPrimitives(uint32(begin), uint32(count))
		return
	}

	b.applySplit(begin, end, split)
	mid := split.Position
	left := nodeIndex + 1
	right := nodeIndex + uint32(2*(mid-begin))
	node.SetChildNodes(left, right)

	b.exec.Fork(count,
		func() { b.partition(left, begin, mid) },
		func() { b.partition(right, mid, end) },
	)
}

// Sweep all three axes and combine the per axis winners in axis order.
func (b *sweepBuilder) findSplit(begin, end int, halfArea float32) sah.Split {
	var candidates [3]sah.Split
	sweep := func(axis int) {
		candidates[axis] = b.sweepAxis(types.Axis(axis), begin, end, halfArea)
	}
	if end-begin >= b.exec.Grain() {
		b.exec.Each(3, sweep)
	} else {
		for axis := range candidates {
			sweep(axis)
		}
	}

	best := sah.NoSplit()
	for _, candidate := range candidates {
		if b.cfg.Cost.Better(candidate, best) {
			best = candidate
		}
	}
	return best
}

func (b *sweepBuilder) sweepAxis(axis types.Axis, begin, end int, halfArea float32) sah.Split {
	order := b.sorted[axis]

	// Axes where all centroids coincide cannot separate anything
	if b.prims[order[begin]].Center[axis] == b.prims[order[end-1]].Center[axis] {
		return sah.NoSplit()
	}

	// Right to left: rightAreas[i] is the half area of order[i:end]
	rightAreas := b.rightAreas[axis]
	box := types.EmptyBBox()
	for i := end - 1; i > begin; i-- {
		box = box.Union(b.prims[order[i]].BBox)
		rightAreas[i] = box.HalfArea()
	}

	best := sah.NoSplit()
	box = types.EmptyBBox()
	for i := begin + 1; i < end; i++ {
		box = box.Union(b.prims[order[i-1]].BBox)
		candidate := sah.Split{
			Axis:       axis,
			Position:   i,
			LeftCount:  i - begin,
			RightCount: end - i,
			Cost:       b.cfg.Cost.SplitCost(halfArea, box.HalfArea(), i-begin, rightAreas[i], end-i),
		}
		if b.cfg.Cost.Better(candidate, best) {
			best = candidate
		}
	}
	return best
}

// Mark the primitives left of the split along the winning axis and stable
// partition the other two axes so all arrays agree on the child ranges.
func (b *sweepBuilder) applySplit(begin, end int, split sah.Split) {
	order := b.sorted[split.Axis]
	for i := begin; i < end; i++ {
		b.marks[order[i]] = i < split.Position
	}

	for axis := range b.sorted {
		if types.Axis(axis) == split.Axis {
			continue
		}
		order := b.sorted[axis]
		tmp := b.tmp[axis]
		l, r := begin, split.Position
		for _, prim := range order[begin:end] {
			if b.marks[prim] {
				tmp[l] = prim
				l++
			} else {
				tmp[r] = prim
				r++
			}
		}
		copy(order[begin:end], tmp[begin:end])
	}
}
