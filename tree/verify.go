package tree

import (
	"fmt"

	"github.com/tksuoran/bvh/types"
)

// Verify checks the structural invariants of the tree:
//
//   - node 0 is the root and every other node is reachable from exactly one
//     parent;
//   - leaf ranges are in bounds, non-empty (except for the root of an empty
//     tree) and together cover every permutation slot exactly once;
//   - PrimIndices is a permutation of [0, len(PrimIndices));
//   - every internal node bbox contains both child boxes and every leaf bbox
//     contains the boxes of its primitives.
//
// boxes may be nil, in which case leaf containment is not checked.
func (t *Tree) Verify(boxes func(prim uint32) types.BBox) error {
	if len(t.Nodes) == 0 {
		return fmt.Errorf("%w: no root node", ErrInvalidTree)
	}

	numPrims := len(t.PrimIndices)
	seenPrim := make([]bool, numPrims)
	for slot, prim := range t.PrimIndices {
		if int(prim) >= numPrims {
			return fmt.Errorf("%w: slot %d references primitive %d out of %d", ErrInvalidTree, slot, prim, numPrims)
		}
		if seenPrim[prim] {
			return fmt.Errorf("%w: primitive %d appears twice in the permutation", ErrInvalidTree, prim)
		}
		seenPrim[prim] = true
	}

	if numPrims == 0 {
		root := &t.Nodes[0]
		if !root.IsLeaf() {
			return fmt.Errorf("%w: empty tree with internal root", ErrInvalidTree)
		}
		if _, count := root.Primitives(); count != 0 {
			return fmt.Errorf("%w: empty tree root references %d primitives", ErrInvalidTree, count)
		}
		return nil
	}

	visited := make([]bool, len(t.Nodes))
	coveredSlot := make([]bool, numPrims)
	covered := 0
	stack := []uint32{0}
	visited[0] = true
	for len(stack) > 0 {
		index := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		node := &t.Nodes[index]

		if node.IsLeaf() {
			first, count := node.Primitives()
			if count == 0 {
				return fmt.Errorf("%w: leaf %d is empty", ErrInvalidTree, index)
			}
			if int(first)+int(count) > numPrims {
				return fmt.Errorf("%w: leaf %d range [%d, %d) exceeds %d slots", ErrInvalidTree, index, first, first+count, numPrims)
			}
			for slot := first; slot < first+count; slot++ {
				if coveredSlot[slot] {
					return fmt.Errorf("%w: slot %d is referenced by more than one leaf", ErrInvalidTree, slot)
				}
				coveredSlot[slot] = true
				covered++

				if boxes != nil && !node.BBox.Contains(boxes(t.PrimIndices[slot])) {
					return fmt.Errorf("%w: leaf %d bbox does not contain primitive %d", ErrInvalidTree, index, t.PrimIndices[slot])
				}
			}
			continue
		}

		left, right := node.ChildNodes()
		for _, child := range [2]uint32{left, right} {
			if child == 0 || int(child) >= len(t.Nodes) {
				return fmt.Errorf("%w: node %d has out of range child %d", ErrInvalidTree, index, child)
			}
			if visited[child] {
				return fmt.Errorf("%w: node %d is reachable from more than one parent", ErrInvalidTree, child)
			}
			if !node.BBox.Contains(t.Nodes[child].BBox) {
				return fmt.Errorf("%w: node %d bbox does not contain child %d", ErrInvalidTree, index, child)
			}
			visited[child] = true
			stack = append(stack, child)
		}
	}

	if covered != numPrims {
		return fmt.Errorf("%w: leaves cover %d of %d slots", ErrInvalidTree, covered, numPrims)
	}
	for index, ok := range visited {
		if !ok {
			return fmt.Errorf("%w: node %d is unreachable", ErrInvalidTree, index)
		}
	}
	return nil
}
