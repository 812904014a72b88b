package builder

import (
	"time"

	"github.com/tksuoran/bvh/log"
	"github.com/tksuoran/bvh/parallel"
	"github.com/tksuoran/bvh/sah"
	"github.com/tksuoran/bvh/tree"
	"github.com/tksuoran/bvh/types"
)

type binnedBuilder struct {
	logger log.Logger
	cfg    BinnedConfig
	exec   *parallel.Executor

	prims   []types.PrimitiveSummary
	indices []uint32

	// A node with n primitives owns the 2n-1 slots starting at its own
	// index; its left child takes the next slot and its right child starts
	// after the left subtree.
	nodes []tree.Node
}

// Binning describes how a node's centroid bounds map to bins along each axis.
type binning struct {
	cmin  types.Vec3
	scale types.Vec3

	// False for axes whose centroid extent is zero.
	active [3]bool
}

func (bn *binning) index(center types.Vec3, axis types.Axis, count int) int {
	index := int((center[axis] - bn.cmin[axis]) * bn.scale[axis])
	if index >= count {
		index = count - 1
	}
	if index < 0 {
		index = 0
	}
	return index
}

// BuildBinned constructs a BVH top-down, evaluating the SAH at BinCount-1
// bin boundaries per axis. Bins are spread uniformly over each node's
// centroid bounds.
func BuildBinned(prims BoundedVolumeSet, cfg BinnedConfig) (*tree.Tree, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	n := prims.Len()
	if n == 0 {
		return tree.Empty(), nil
	}

	start := time.Now()
	exec := cfg.executor()
	b := &binnedBuilder{
		logger:  log.New("builder"),
		cfg:     cfg,
		exec:    exec,
		prims:   summarize(prims, exec),
		indices: identity(n),
		nodes:   make([]tree.Node, 2*n-1),
	}
	b.partition(0, 0, n)

	t := &tree.Tree{
		Nodes:       compact(b.nodes, 0),
		PrimIndices: b.indices,
	}
	logBuild(b.logger, "binned", t, start)
	return t, nil
}

// Partition indices[begin:end] into the subtree rooted at nodeIndex.
func (b *binnedBuilder) partition(nodeIndex uint32, begin, end int) {
	bbox, cbox := bounds(b.prims, b.indices[begin:end], b.exec)
	node := &b.nodes[nodeIndex]
	node.BBox = bbox

	count := end - begin
	if count <= b.cfg.MinLeafSize {
		node.SetPrimitives(uint32(begin), uint32(count))
		return
	}

	bn := b.binning(cbox)
	split := b.findSplit(begin, end, bbox.HalfArea(), &bn)
	if !split.Valid() || (split.Cost >= b.cfg.Cost.LeafCost(bbox.HalfArea(), count) && count <= b.cfg.MaxLeafSize) {
		node.SetPrimitives(uint32(begin), uint32(count))
		return
	}

	mid := b.partitionRange(begin, end, split, &bn)
	left := nodeIndex + 1
	right := nodeIndex + uint32(2*(mid-begin))
	node.SetChildNodes(left, right)

	b.exec.Fork(count,
		func() { b.partition(left, begin, mid) },
		func() { b.partition(right, mid, end) },
	)
}

func (b *binnedBuilder) binning(cbox types.BBox) binning {
	bn := binning{cmin: cbox.Min}
	extent := cbox.Diagonal()
	for axis := range types.Axes {
		if extent[axis] > 0 {
			bn.active[axis] = true
			bn.scale[axis] = float32(b.cfg.BinCount) / extent[axis]
		}
	}
	return bn
}

// Bin the node primitives along every active axis and sweep the bin
// boundaries. Returns NoSplit if all centroids coincide.
func (b *binnedBuilder) findSplit(begin, end int, halfArea float32, bn *binning) sah.Split {
	binCount := b.cfg.BinCount
	bins := b.fillBins(begin, end, bn)

	best := sah.NoSplit()
	scratch := make([]sah.Bin, binCount)
	for axis, axisBins := range bins {
		if !bn.active[axis] {
			continue
		}
		best = b.cfg.Cost.SweepBins(types.Axis(axis), halfArea, axisBins, best, scratch)
	}
	return best
}

// Per-axis bins for indices[begin:end]. Large nodes are binned in chunks that
// are merged in chunk order.
func (b *binnedBuilder) fillBins(begin, end int, bn *binning) [3][]sah.Bin {
	binCount := b.cfg.BinCount
	newBins := func() [3][]sah.Bin {
		var bins [3][]sah.Bin
		for axis := range bins {
			bins[axis] = make([]sah.Bin, binCount)
			sah.ResetBins(bins[axis])
		}
		return bins
	}

	chunks := b.exec.Chunks(end - begin)
	partial := make([][3][]sah.Bin, len(chunks))
	b.exec.Run(chunks, func(chunk int, r parallel.Range) {
		bins := newBins()
		for _, prim := range b.indices[begin+r.Begin : begin+r.End] {
			p := &b.prims[prim]
			for axis := range bins {
				if !bn.active[axis] {
					continue
				}
				bins[axis][bn.index(p.Center, types.Axis(axis), binCount)].Add(p.BBox)
			}
		}
		partial[chunk] = bins
	})

	bins := partial[0]
	for _, other := range partial[1:] {
		for axis := range bins {
			for i := range bins[axis] {
				bins[axis][i].Merge(other[axis][i])
			}
		}
	}
	return bins
}

// Move primitives whose centroid falls in a bin left of split.Position to the
// front of the range and return the first index of the right side.
func (b *binnedBuilder) partitionRange(begin, end int, split sah.Split, bn *binning) int {
	i, j := begin, end-1
	for i <= j {
		center := b.prims[b.indices[i]].Center
		if bn.index(center, split.Axis, b.cfg.BinCount) < split.Position {
			i++
			continue
		}
		b.indices[i], b.indices[j] = b.indices[j], b.indices[i]
		j--
	}
	return i
}
