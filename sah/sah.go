// Package sah implements the surface area heuristic used to score BVH splits.
//
// All costs are expressed in un-normalized form: for a node with half area A
// and n primitives
//
//	leaf cost  = IntersectionCost * n * A
//	split cost = TraversalCost * A + IntersectionCost * (A_l * n_l + A_r * n_r)
//
// Dividing both by A yields the familiar per-ray probabilities; keeping the
// products avoids a division for nodes with zero area.
package sah

import (
	"errors"
	"fmt"

	"github.com/tksuoran/bvh/types"
)

var (
	ErrInvalidConfig = errors.New("sah: invalid cost configuration")
)

// TieBreak selects between two splits with the same cost.
type TieBreak uint8

const (
	// Keep the split found first in scan order (axis x, y, z then ascending
	// split position).
	PreferFirst TieBreak = iota

	// Keep the split found last in scan order.
	PreferLast

	// Keep the split with the smaller difference between the left and right
	// primitive counts; remaining ties keep the first one.
	PreferBalanced
)

func (tb TieBreak) String() string {
	switch tb {
	case PreferFirst:
		return "first"
	case PreferLast:
		return "last"
	case PreferBalanced:
		return "balanced"
	}
	return "unknown"
}

// Parse a tie-break policy name.
func ParseTieBreak(name string) (TieBreak, error) {
	switch name {
	case "first", "":
		return PreferFirst, nil
	case "last":
		return PreferLast, nil
	case "balanced":
		return PreferBalanced, nil
	}
	return PreferFirst, fmt.Errorf("%w: unknown tie-break policy %q", ErrInvalidConfig, name)
}

type Config struct {
	// Cost of visiting an internal node (one ray/box test pair).
	TraversalCost float32

	// Cost of intersecting a single primitive.
	IntersectionCost float32

	// Policy for splits with equal cost.
	TieBreak TieBreak
}

// Default cost constants.
func DefaultConfig() Config {
	return Config{
		TraversalCost:    1,
		IntersectionCost: 1,
		TieBreak:         PreferFirst,
	}
}

// Validate the cost constants.
func (c Config) Validate() error {
	if !(c.TraversalCost >= 0) {
		return fmt.Errorf("%w: traversal cost %f must be >= 0", ErrInvalidConfig, c.TraversalCost)
	}
	if !(c.IntersectionCost > 0) {
		return fmt.Errorf("%w: intersection cost %f must be > 0", ErrInvalidConfig, c.IntersectionCost)
	}
	if c.TieBreak > PreferBalanced {
		return fmt.Errorf("%w: unknown tie-break policy %d", ErrInvalidConfig, c.TieBreak)
	}
	return nil
}

// Cost of turning a node with the given half area into a leaf.
func (c Config) LeafCost(halfArea float32, count int) float32 {
	return c.IntersectionCost * float32(count) * halfArea
}

// Cost of splitting a node with the given half area into two children.
func (c Config) SplitCost(halfArea, leftArea float32, leftCount int, rightArea float32, rightCount int) float32 {
	return c.TraversalCost*halfArea + c.IntersectionCost*(leftArea*float32(leftCount)+rightArea*float32(rightCount))
}

// A split candidate. Position is interpreted by the builder that produced it:
// a bin boundary for the binned builder or a sorted primitive offset for the
// sweep builder.
type Split struct {
	Axis       types.Axis
	Position   int
	LeftCount  int
	RightCount int
	Cost       float32
}

// Valid returns true if this candidate splits the primitives into two
// non-empty sets.
func (s Split) Valid() bool {
	return s.LeftCount > 0 && s.RightCount > 0
}

// Invalid split with the worst possible cost.
func NoSplit() Split {
	return Split{Cost: maxCost}
}

// Better reports whether candidate should replace best. Candidates must be
// offered in scan order.
func (c Config) Better(candidate, best Split) bool {
	if !candidate.Valid() {
		return false
	}
	if !best.Valid() || candidate.Cost < best.Cost {
		return true
	}
	if candidate.Cost > best.Cost {
		return false
	}

	switch c.TieBreak {
	case PreferLast:
		return true
	case PreferBalanced:
		return imbalance(candidate) < imbalance(best)
	}
	return false
}

func imbalance(s Split) int {
	d := s.LeftCount - s.RightCount
	if d < 0 {
		return -d
	}
	return d
}
