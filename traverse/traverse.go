// Package traverse answers single-ray queries against a built tree.
package traverse

import (
	"github.com/tksuoran/bvh/tree"
	"github.com/tksuoran/bvh/types"
)

// Mode selects what a trace call looks for.
type Mode uint8

const (
	// Report the hit closest to the ray origin.
	ClosestHit Mode = iota

	// Report any hit and stop as soon as one is found.
	AnyHit
)

func (m Mode) String() string {
	switch m {
	case ClosestHit:
		return "closest"
	case AnyHit:
		return "any"
	}
	return "unknown"
}

// The Intersector interface is implemented by primitive collections that can
// be tested against rays. Intersect returns the hit distance for prim if the
// ray hits it within [ray.TMin, ray.TMax].
type Intersector interface {
	Intersect(prim uint32, ray *types.Ray) (float32, bool)
}

// Intersectors that also implement Permuter are asked once to reorder their
// storage so that slot i holds primitive primIndices[i]. Afterwards they are
// queried with slot indices instead of primitive indices.
type Permuter interface {
	Permute(primIndices []uint32)
}

type Hit struct {
	// Original index of the primitive that was hit.
	Prim uint32

	// Distance along the ray.
	Dist float32
}

// Per ray counters.
type Stats struct {
	NodesVisited  int
	LeavesVisited int
	PrimTests     int
}

// Traverser runs ray queries against an immutable tree. It is safe to use
// from multiple goroutines.
type Traverser struct {
	tree     *tree.Tree
	isect    Intersector
	permuted bool
}

type stackEntry struct {
	node uint32
	dist float32
}

// Create a traverser for t. If isect implements Permuter its Permute method
// is invoked before New returns.
func New(t *tree.Tree, isect Intersector) *Traverser {
	tr := &Traverser{tree: t, isect: isect}
	if p, ok := isect.(Permuter); ok {
		p.Permute(t.PrimIndices)
		tr.permuted = true
	}
	return tr
}

// Trace the ray through the tree.
func (tr *Traverser) Trace(ray types.Ray, mode Mode) (Hit, bool) {
	var stats Stats
	return tr.trace(ray, mode, &stats)
}

// Trace the ray through the tree and collect traversal counters.
func (tr *Traverser) TraceStats(ray types.Ray, mode Mode) (Hit, bool, Stats) {
	var stats Stats
	hit, found := tr.trace(ray, mode, &stats)
	return hit, found, stats
}

func (tr *Traverser) trace(ray types.Ray, mode Mode, stats *Stats) (Hit, bool) {
	if tr.tree.IsEmpty() {
		return Hit{}, false
	}

	nodes := tr.tree.Nodes
	slab := newSlab(&ray)

	var (
		hit   Hit
		found bool
		query = ray
		buf   [64]stackEntry
	)

	dist, ok := slab.intersect(&nodes[0].BBox, query.TMax)
	if !ok {
		return hit, false
	}
	stack := append(buf[:0], stackEntry{0, dist})

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if top.dist > query.TMax {
			continue
		}

		index := top.node
		for {
			node := &nodes[index]
			stats.NodesVisited++

			if node.IsLeaf() {
				stats.LeavesVisited++
				first, count := node.Primitives()
				for slot := first; slot < first+count; slot++ {
					prim := tr.tree.PrimIndices[slot]
					id := prim
					if tr.permuted {
						id = slot
					}

					stats.PrimTests++
					dist, ok := tr.isect.Intersect(id, &query)
					if !ok || (found && dist >= hit.Dist) {
						continue
					}
					hit, found = Hit{Prim: prim, Dist: dist}, true
					if mode == AnyHit {
						return hit, true
					}
					query.TMax = dist
				}
				break
			}

			left, right := node.ChildNodes()
			distL, hitL := slab.intersect(&nodes[left].BBox, query.TMax)
			distR, hitR := slab.intersect(&nodes[right].BBox, query.TMax)
			if hitL && hitR {
				near, far, farDist := left, right, distR
				if distR < distL {
					near, far, farDist = right, left, distL
				}
				stack = append(stack, stackEntry{far, farDist})
				index = near
				continue
			}
			if hitL {
				index = left
				continue
			}
			if hitR {
				index = right
				continue
			}
			break
		}
	}
	return hit, found
}

// BruteForce tests the ray against primitives [0, count) one by one.
func BruteForce(isect Intersector, count int, ray types.Ray, mode Mode) (Hit, bool) {
	var (
		hit   Hit
		found bool
	)
	for prim := 0; prim < count; prim++ {
		dist, ok := isect.Intersect(uint32(prim), &ray)
		if !ok || (found && dist >= hit.Dist) {
			continue
		}
		hit, found = Hit{Prim: uint32(prim), Dist: dist}, true
		if mode == AnyHit {
			break
		}
		ray.TMax = dist
	}
	return hit, found
}
