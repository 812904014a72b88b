package tree

import "github.com/tksuoran/bvh/types"

// Bvh nodes hold a bbox and two multipurpose int32 parameters whose value
// depends on the node type:
//
//   - internal nodes: LData > 0 and RData > 0 are the left/right child indices.
//     The root lives at index 0 so no child can ever point to it.
//   - leaves: LData <= 0 holds the negated offset of the first primitive slot
//     in the tree permutation and RData >= 0 holds the primitive count.
type Node struct {
	BBox types.BBox

	LData int32
	RData int32
}

// Returns true if this node is a leaf.
func (n *Node) IsLeaf() bool {
	return n.LData <= 0
}

// Set left and right child node indices.
func (n *Node) SetChildNodes(left, right uint32) {
	n.LData = int32(left)
	n.RData = int32(right)
}

// Get left and right child node indices.
func (n *Node) ChildNodes() (left, right uint32) {
	return uint32(n.LData), uint32(n.RData)
}

// Set primitive offset and count.
func (n *Node) SetPrimitives(first, count uint32) {
	n.LData = -int32(first)
	n.RData = int32(count)
}

// Get primitive offset and count.
func (n *Node) Primitives() (first, count uint32) {
	return uint32(-n.LData), uint32(n.RData)
}

// Replace the child index old with replacement. Returns false if old is not a
// child of this node.
func (n *Node) ReplaceChild(old, replacement uint32) bool {
	switch {
	case n.IsLeaf():
		return false
	case uint32(n.LData) == old:
		n.LData = int32(replacement)
	case uint32(n.RData) == old:
		n.RData = int32(replacement)
	default:
		return false
	}
	return true
}
