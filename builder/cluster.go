package builder

import (
	"time"

	"github.com/chewxy/math32"

	"github.com/tksuoran/bvh/log"
	"github.com/tksuoran/bvh/parallel"
	"github.com/tksuoran/bvh/tree"
)

type clusterBuilder struct {
	logger log.Logger
	cfg    ClusterConfig
	exec   *parallel.Executor

	// Leaves occupy the last n slots; merged clusters are allocated
	// downwards from slot n-2 so the final merge lands on slot 0.
	nodes    []tree.Node
	nextFree int
}

// BuildClustered constructs a BVH bottom-up by locally ordered clustering.
// Primitives are sorted along a Morton curve; every iteration then searches
// SearchRadius neighbors on each side of every cluster for the partner that
// minimizes the merged area and merges all mutually nearest pairs.
func BuildClustered(prims BoundedVolumeSet, cfg ClusterConfig) (*tree.Tree, error) {
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
	_, order := mortonOrder(summaries, cfg.MortonBits, exec)

	b := &clusterBuilder{
		logger:   log.New("builder"),
		cfg:      cfg,
		exec:     exec,
		nodes:    make([]tree.Node, 2*n-1),
		nextFree: n - 2,
	}

	clusters := make([]uint32, n)
	exec.For(n, func(r parallel.Range) {
		for i := r.Begin; i < r.End; i++ {
			slot := n - 1 + i
			b.nodes[slot].BBox = summaries[order[i]].BBox
			b.nodes[slot].SetPrimitives(uint32(i), 1)
			clusters[i] = uint32(slot)
		}
	})

	root := b.cluster(clusters)
	t := &tree.Tree{
		Nodes:       compact(b.nodes, root),
		PrimIndices: order,
	}
	logBuild(b.logger, "clustered", t, start)
	return t, nil
}

// Merge clusters until a single one remains and return its slot.
func (b *clusterBuilder) cluster(clusters []uint32) uint32 {
	neighbors := make([]int, len(clusters))
	next := make([]uint32, len(clusters))
	iterations := 0

	for len(clusters) > 1 {
		nb := neighbors[:len(clusters)]
		if b.cfg.SearchRadius == 0 {
			pairNeighbors(nb)
		} else {
			b.findNeighbors(clusters, nb)
		}

		merged := b.merge(clusters, nb, next)
		if len(merged) == len(clusters) {
			// No mutual pairs; fall back to merging adjacent pairs so
			// every iteration makes progress.
			pairNeighbors(nb)
			merged = b.merge(clusters, nb, next)
		}

		// The merged list becomes the input of the next iteration
		next = clusters[:cap(clusters)]
		clusters = merged
		iterations++
	}

	b.logger.Debugf("clustering converged after %d iterations", iterations)
	return clusters[0]
}

// Nearest neighbor of each cluster within the search radius; the partner
// minimizing the half area of the union wins and ties go to the lower index.
func (b *clusterBuilder) findNeighbors(clusters []uint32, neighbors []int) {
	radius := b.cfg.SearchRadius
	count := len(clusters)
	b.exec.For(count, func(r parallel.Range) {
		for i := r.Begin; i < r.End; i++ {
			box := b.nodes[clusters[i]].BBox
			lo, hi := i-radius, i+radius
			if lo < 0 {
				lo = 0
			}
			if hi > count-1 {
				hi = count - 1
			}

			best, bestArea := -1, math32.Inf(1)
			for j := lo; j <= hi; j++ {
				if j == i {
					continue
				}
				area := box.Union(b.nodes[clusters[j]].BBox).HalfArea()
				if area < bestArea {
					best, bestArea = j, area
				}
			}
			neighbors[i] = best
		}
	})
}

// Pair cluster 2k with 2k+1. A trailing odd cluster has no neighbor.
func pairNeighbors(neighbors []int) {
	for i := range neighbors {
		j := i ^ 1
		if j >= len(neighbors) {
			j = -1
		}
		neighbors[i] = j
	}
}

// Merge every mutually nearest pair into a new node placed at the position
// of the lower index and copy the remaining clusters over unchanged. Output
// positions and node slots are assigned from per chunk prefix sums so the
// result does not depend on the number of workers.
func (b *clusterBuilder) merge(clusters []uint32, neighbors []int, out []uint32) []uint32 {
	role := func(i int) (leader, follower bool) {
		j := neighbors[i]
		if j < 0 || neighbors[j] != i {
			return false, false
		}
		return i < j, i > j
	}

	type tally struct {
		emitted, merged int
	}
	chunks := b.exec.Chunks(len(clusters))
	tallies := make([]tally, len(chunks))
	b.exec.Run(chunks, func(chunk int, r parallel.Range) {
		var t tally
		for i := r.Begin; i < r.End; i++ {
			leader, follower := role(i)
			if follower {
				continue
			}
			t.emitted++
			if leader {
				t.merged++
			}
		}
		tallies[chunk] = t
	})

	var total tally
	for chunk, t := range tallies {
		tallies[chunk] = total
		total.emitted += t.emitted
		total.merged += t.merged
	}

	b.exec.Run(chunks, func(chunk int, r parallel.Range) {
		pos, merged := tallies[chunk].emitted, tallies[chunk].merged
		for i := r.Begin; i < r.End; i++ {
			leader, follower := role(i)
			if follower {
				continue
			}
			if leader {
				slot := uint32(b.nextFree - merged)
				left, right := clusters[i], clusters[neighbors[i]]
				node := &b.nodes[slot]
				node.BBox = b.nodes[left].BBox.Union(b.nodes[right].BBox)
				node.SetChildNodes(left, right)
				out[pos] = slot
				merged++
			} else {
				out[pos] = clusters[i]
			}
			pos++
		}
	})

	b.nextFree -= total.merged
	return out[:total.emitted]
}
