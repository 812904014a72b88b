// Package tree holds the node store produced by the builders: a contiguous
// node list and the primitive-index permutation referenced by its leaves.
package tree

import (
	"github.com/tksuoran/bvh/sah"
	"github.com/tksuoran/bvh/types"
)

// NoParent marks the root in the table returned by Parents.
const NoParent = ^uint32(0)

// Tree is a binary BVH. Nodes[0] is the root. PrimIndices maps permutation
// slots to the caller's original primitive indices; each leaf references a
// contiguous slot range.
type Tree struct {
	Nodes       []Node
	PrimIndices []uint32
}

// Create a tree with a single empty leaf. Every ray misses it.
func Empty() *Tree {
	root := Node{BBox: types.EmptyBBox()}
	root.SetPrimitives(0, 0)
	return &Tree{
		Nodes:       []Node{root},
		PrimIndices: []uint32{},
	}
}

// Returns true if the tree references no primitives.
func (t *Tree) IsEmpty() bool {
	return len(t.PrimIndices) == 0
}

// Root bbox.
func (t *Tree) BBox() types.BBox {
	return t.Nodes[0].BBox
}

// Parents returns the parent index of every node. The root maps to NoParent.
func (t *Tree) Parents() []uint32 {
	parents := make([]uint32, len(t.Nodes))
	parents[0] = NoParent
	for index := range t.Nodes {
		node := &t.Nodes[index]
		if node.IsLeaf() {
			continue
		}
		left, right := node.ChildNodes()
		parents[left] = uint32(index)
		parents[right] = uint32(index)
	}
	return parents
}

// Cost calculates the SAH cost of the tree normalized by the root area:
//
//	(Σ_internal TraversalCost * A(n) + Σ_leaf IntersectionCost * |n| * A(n)) / A(root)
//
// A tree whose root has zero area reports the un-normalized sum.
func (t *Tree) Cost(cfg sah.Config) float64 {
	var total float64
	for index := range t.Nodes {
		node := &t.Nodes[index]
		area := float64(node.BBox.HalfArea())
		if node.IsLeaf() {
			_, count := node.Primitives()
			total += float64(cfg.IntersectionCost) * float64(count) * area
		} else {
			total += float64(cfg.TraversalCost) * area
		}
	}

	rootArea := float64(t.Nodes[0].BBox.HalfArea())
	if rootArea == 0 {
		return total
	}
	return total / rootArea
}

// Refit recomputes the bbox of every node from the primitive boxes. Children
// are processed before their parents.
func (t *Tree) Refit(boxes func(prim uint32) types.BBox) {
	order := t.postOrder()
	for _, index := range order {
		node := &t.Nodes[index]
		if node.IsLeaf() {
			first, count := node.Primitives()
			box := types.EmptyBBox()
			for _, prim := range t.PrimIndices[first : first+count] {
				box = box.Union(boxes(prim))
			}
			node.BBox = box
			continue
		}
		left, right := node.ChildNodes()
		node.BBox = t.Nodes[left].BBox.Union(t.Nodes[right].BBox)
	}
}

// Node indices in post-order (children before parents).
func (t *Tree) postOrder() []uint32 {
	order := make([]uint32, 0, len(t.Nodes))
	stack := []uint32{0}
	for len(stack) > 0 {
		index := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		order = append(order, index)

		node := &t.Nodes[index]
		if !node.IsLeaf() {
			left, right := node.ChildNodes()
			stack = append(stack, left, right)
		}
	}

	// Reversed pre-order visiting right before left is a valid post-order.
	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	return order
}
