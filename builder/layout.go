package builder

import (
	"time"

	"github.com/tksuoran/bvh/log"
	"github.com/tksuoran/bvh/tree"
)

// compact copies the nodes reachable from root into a new list in depth-first
// order: the root ends up at index 0 and every left child directly follows
// its parent. Slots that were reserved but never used by a builder are
// dropped.
func compact(nodes []tree.Node, root uint32) []tree.Node {
	type entry struct {
		src    uint32
		parent int
		right  bool
	}

	out := make([]tree.Node, 0, len(nodes))
	stack := []entry{{src: root, parent: -1}}
	for len(stack) > 0 {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		dst := uint32(len(out))
		out = append(out, nodes[e.src])
		if e.parent >= 0 {
			left, right := out[e.parent].ChildNodes()
			if e.right {
				right = dst
			} else {
				left = dst
			}
			out[e.parent].SetChildNodes(left, right)
		}

		node := &nodes[e.src]
		if !node.IsLeaf() {
			left, right := node.ChildNodes()
			stack = append(stack,
				entry{src: right, parent: int(dst), right: true},
				entry{src: left, parent: int(dst)},
			)
		}
	}
	return out
}

func logBuild(logger log.Logger, algorithm string, t *tree.Tree, start time.Time) {
	stats := t.Stats()
	logger.Debugf(
		"%s BVH build time: %d ms, maxDepth: %d, nodes: %d, leafs: %d",
		algorithm, time.Since(start).Nanoseconds()/1e6,
		stats.MaxDepth, stats.Nodes, stats.Leaves,
	)
}
