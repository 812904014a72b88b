package sah

import (
	"math"

	"github.com/tksuoran/bvh/types"
)

const maxCost float32 = math.MaxFloat32

// A bin aggregates the primitives whose centroids fall within a slice of a
// node's centroid bounds along one axis.
type Bin struct {
	BBox  types.BBox
	Count int
}

// Create an empty bin.
func EmptyBin() Bin {
	return Bin{BBox: types.EmptyBBox()}
}

// Add a primitive bbox to the bin.
func (b *Bin) Add(box types.BBox) {
	b.BBox = b.BBox.Union(box)
	b.Count++
}

// Merge another bin into this one.
func (b *Bin) Merge(o Bin) {
	b.BBox = b.BBox.Union(o.BBox)
	b.Count += o.Count
}

// Reset all bins to the empty state.
func ResetBins(bins []Bin) {
	for i := range bins {
		bins[i] = EmptyBin()
	}
}

// SweepBins evaluates the len(bins)-1 candidate splits between adjacent bins
// of a single axis and returns the best one according to Better, starting
// from best. The returned split Position is the number of bins on the left
// side. The right side aggregates are written to scratch, which must hold at
// least len(bins) entries.
func (c Config) SweepBins(axis types.Axis, halfArea float32, bins []Bin, best Split, scratch []Bin) Split {
	n := len(bins)
	if n < 2 {
		return best
	}

	// Right to left: scratch[i] aggregates bins[i:]
	acc := EmptyBin()
	for i := n - 1; i > 0; i-- {
		acc.Merge(bins[i])
		scratch[i] = acc
	}

	// Left to right evaluating each boundary
	acc = EmptyBin()
	for i := 1; i < n; i++ {
		acc.Merge(bins[i-1])
		right := scratch[i]
		if acc.Count == 0 || right.Count == 0 {
			continue
		}

		candidate := Split{
			Axis:       axis,
			Position:   i,
			LeftCount:  acc.Count,
			RightCount: right.Count,
			Cost:       c.SplitCost(halfArea, acc.BBox.HalfArea(), acc.Count, right.BBox.HalfArea(), right.Count),
		}
		if c.Better(candidate, best) {
			best = candidate
		}
	}
	return best
}
