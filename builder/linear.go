package builder

import (
	"math/bits"
	"time"

	"github.com/tksuoran/bvh/log"
	"github.com/tksuoran/bvh/parallel"
	"github.com/tksuoran/bvh/tree"
)

type linearBuilder struct {
	logger log.Logger
	exec   *parallel.Executor

	// Sorted Morton codes.
	codes []uint64

	// Internal nodes occupy [0, n-1) and leaves [n-1, 2n-1).
	nodes []tree.Node
}

// BuildLinear constructs a BVH from the Morton order of the primitive
// centroids. Every internal node is derived independently from the sorted
// codes, so the hierarchy is built in a single parallel pass followed by a
// bottom-up bbox pass.
func BuildLinear(prims BoundedVolumeSet, cfg LinearConfig) (*tree.Tree, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	n := prims.Len()
	if n == 0 {
		return tree.Empty(), nil
	}

	start := time.Now()
	exec := cfg.executor()
	summaries := summarize(prims, exec)
	codes, order := mortonOrder(summaries, cfg.MortonBits, exec)

	b := &linearBuilder{
		logger: log.New("builder"),
		exec:   exec,
		codes:  codes,
		nodes:  make([]tree.Node, 2*n-1),
	}

	exec.For(n, func(r parallel.Range) {
		for i := r.Begin; i < r.End; i++ {
			leaf := &b.nodes[n-1+i]
			leaf.BBox = summaries[order[i]].BBox
			leaf.SetPrimitives(uint32(i), 1)
		}
	})

	if n > 1 {
		exec.For(n-1, func(r parallel.Range) {
			for i := r.Begin; i < r.End; i++ {
				left, right := b.children(i)
				b.nodes[i].SetChildNodes(left, right)
			}
		})
		b.refit()
	}

	t := &tree.Tree{
		Nodes:       compact(b.nodes, 0),
		PrimIndices: order,
	}
	logBuild(b.logger, "linear", t, start)
	return t, nil
}

// Length of the common prefix of codes i and j. Equal codes are
// disambiguated by their indices; out of range j yields -1.
func (b *linearBuilder) delta(i, j int) int {
	if j < 0 || j >= len(b.codes) {
		return -1
	}
	ci, cj := b.codes[i], b.codes[j]
	if ci == cj {
		return 64 + bits.LeadingZeros64(uint64(i^j))
	}
	return bits.LeadingZeros64(ci ^ cj)
}

// Node slots of the children of internal node i.
func (b *linearBuilder) children(i int) (left, right uint32) {
	// Direction of the range covered by node i
	d := 1
	if b.delta(i, i+1) < b.delta(i, i-1) {
		d = -1
	}

	// Upper bound for the range length, then binary search the other end
	minDelta := b.delta(i, i-d)
	maxLen := 2
	for b.delta(i, i+maxLen*d) > minDelta {
		maxLen *= 2
	}
	l := 0
	for t := maxLen / 2; t >= 1; t /= 2 {
		if b.delta(i, i+(l+t)*d) > minDelta {
			l += t
		}
	}
	j := i + l*d

	// Binary search the split position
	nodeDelta := b.delta(i, j)
	s := 0
	for div := 2; ; div *= 2 {
		t := (l + div - 1) / div
		if b.delta(i, i+(s+t)*d) > nodeDelta {
			s += t
		}
		if t <= 1 {
			break
		}
	}
	gamma := i + s*d
	if d < 0 {
		gamma--
	}

	first, last := i, j
	if j < i {
		first, last = j, i
	}

	leafBase := len(b.codes) - 1
	left = uint32(gamma)
	if first == gamma {
		left = uint32(leafBase + gamma)
	}
	right = uint32(gamma + 1)
	if last == gamma+1 {
		right = uint32(leafBase + gamma + 1)
	}
	return left, right
}

// Compute internal node boxes level by level, deepest level first. Nodes of
// one level are independent and processed in parallel.
func (b *linearBuilder) refit() {
	leafBase := uint32(len(b.codes) - 1)
	var levels [][]uint32
	level := []uint32{0}
	for len(level) > 0 {
		levels = append(levels, level)
		var next []uint32
		for _, index := range level {
			left, right := b.nodes[index].ChildNodes()
			if left < leafBase {
				next = append(next, left)
			}
			if right < leafBase {
				next = append(next, right)
			}
		}
		level = next
	}

	for depth := len(levels) - 1; depth >= 0; depth-- {
		level := levels[depth]
		b.exec.For(len(level), func(r parallel.Range) {
			for _, index := range level[r.Begin:r.End] {
				node := &b.nodes[index]
				left, right := node.ChildNodes()
				node.BBox = b.nodes[left].BBox.Union(b.nodes[right].BBox)
			}
		})
	}
	b.logger.Debugf("refit %d internal node levels", len(levels))
}
