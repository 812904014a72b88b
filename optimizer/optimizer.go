// Package optimizer improves the SAH cost of a built tree by removing
// subtrees from their parents and reinserting them where the total node area
// shrinks the most. Leaves and the primitive permutation are never touched;
// only the shape of the hierarchy above them changes.
package optimizer

import (
	"sort"
	"time"

	"github.com/tksuoran/bvh/log"
	"github.com/tksuoran/bvh/parallel"
	"github.com/tksuoran/bvh/tree"
)

// Stats summarizes an optimizer run.
type Stats struct {
	// Iterations that committed at least one move.
	Iterations int
	Moves      int

	InitialCost float64
	FinalCost   float64

	// Tree cost before the first and after every iteration. Never
	// increases.
	CostHistory []float64
}

// Move subtree from so that it becomes the sibling of node to.
type move struct {
	from, to uint32
	gain     float32
}

type candidate struct {
	node uint32
	area float32
}

type optimizer struct {
	logger log.Logger
	cfg    Config
	exec   *parallel.Executor

	tree    *tree.Tree
	parents []uint32

	// Nodes touched by moves committed in the current batch.
	locked []bool
}

// Optimize reinserts subtrees of t in place until a sweep over all candidates
// improves the cost by less than cfg.ConvergenceThreshold or
// cfg.MaxIterations iterations have committed moves.
func Optimize(t *tree.Tree, cfg Config) (Stats, error) {
	if err := cfg.Validate(); err != nil {
		return Stats{}, err
	}

	o := &optimizer{
		logger:  log.New("optimizer"),
		cfg:     cfg,
		exec:    parallel.New(cfg.Workers, 1),
		tree:    t,
		parents: t.Parents(),
		locked:  make([]bool, len(t.Nodes)),
	}

	start := time.Now()
	cost := t.Cost(cfg.Cost)
	stats := Stats{InitialCost: cost, FinalCost: cost, CostHistory: []float64{cost}}

	// Candidates are visited in ranked windows. The cursor keeps moving after
	// a window without gain, and the run ends once every candidate has been
	// evaluated since the last committed iteration. Convergence is measured
	// over complete sweeps of the candidate list.
	cursor, idle := 0, 0
	sweepCost := cost
	for stats.Iterations < cfg.MaxIterations {
		candidates := o.candidates()
		if idle >= len(candidates) {
			break
		}
		if cursor >= len(candidates) {
			if sweepCost-cost <= sweepCost*cfg.ConvergenceThreshold {
				break
			}
			cursor, sweepCost = 0, cost
		}
		batch := candidates[cursor:min(cursor+o.batchSize(), len(candidates))]
		cursor += len(batch)

		moves := o.findMoves(batch)
		if len(moves) == 0 {
			idle += len(batch)
			continue
		}

		snapshot := append([]tree.Node(nil), t.Nodes...)
		applied := o.commit(moves)
		newCost := t.Cost(cfg.Cost)
		if newCost > cost {
			// The batch interacted badly; fall back to the single best move
			o.restore(snapshot)
			applied = o.commit(moves[:1])
			newCost = t.Cost(cfg.Cost)
		}
		if newCost >= cost {
			o.restore(snapshot)
			idle += len(batch)
			continue
		}

		cost = newCost
		idle = 0
		stats.Iterations++
		stats.Moves += applied
		stats.CostHistory = append(stats.CostHistory, cost)
		o.logger.Debugf("iteration %d: %d moves, cost %f", stats.Iterations, applied, cost)
	}

	stats.FinalCost = cost
	o.logger.Infof(
		"optimized BVH in %d ms: %d iterations, %d moves, cost %f -> %f",
		time.Since(start).Nanoseconds()/1e6,
		stats.Iterations, stats.Moves, stats.InitialCost, stats.FinalCost,
	)
	return stats, nil
}

func (o *optimizer) batchSize() int {
	batch := o.cfg.BatchSize
	if batch == 0 {
		batch = len(o.tree.Nodes) / 20
	}
	return max(batch, 1)
}

// Evaluate candidates in parallel and return the moves that reduce the node
// area, best first.
func (o *optimizer) findMoves(candidates []uint32) []move {
	moves := make([]move, len(candidates))
	o.exec.For(len(candidates), func(r parallel.Range) {
		for i := r.Begin; i < r.End; i++ {
			moves[i] = o.findReinsertion(candidates[i])
		}
	})

	found := moves[:0]
	for _, m := range moves {
		if m.gain > 0 {
			found = append(found, m)
		}
	}
	sort.Slice(found, func(i, j int) bool {
		if found[i].gain != found[j].gain {
			return found[i].gain > found[j].gain
		}
		return found[i].from < found[j].from
	})
	return found
}

// Nodes that can be moved ordered by decreasing bbox area. The root and its
// children stay in place so that node 0 remains the root.
func (o *optimizer) candidates() []uint32 {
	var list []uint32
	for index := 1; index < len(o.tree.Nodes); index++ {
		if o.parents[index] != 0 {
			list = append(list, uint32(index))
		}
	}

	nodes := o.tree.Nodes
	sort.Slice(list, func(i, j int) bool {
		ai, aj := nodes[list[i]].BBox.HalfArea(), nodes[list[j]].BBox.HalfArea()
		if ai != aj {
			return ai > aj
		}
		return list[i] < list[j]
	})
	return list
}

func (o *optimizer) sibling(index uint32) uint32 {
	left, right := o.tree.Nodes[o.parents[index]].ChildNodes()
	if left == index {
		return right
	}
	return left
}

// Search for the node that node should become a sibling of. The search
// descends into the sibling subtree and then into the siblings of every
// ancestor, tracking how the areas of the nodes along the path change.
// Subtrees that cannot beat the best gain found so far are pruned.
func (o *optimizer) findReinsertion(node uint32) move {
	nodes := o.tree.Nodes
	best := move{from: node}

	box := nodes[node].BBox
	area := box.HalfArea()
	parent := o.parents[node]
	sibling := o.sibling(node)

	// Removing node drops its parent
	areaDiff := nodes[parent].BBox.HalfArea()
	pivotBox := nodes[sibling].BBox
	pivot := parent

	stack := make([]candidate, 0, 64)
	for {
		stack = append(stack, candidate{sibling, areaDiff})
		for len(stack) > 0 {
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if top.area-area <= best.gain {
				continue
			}

			dst := &nodes[top.node]
			reinsertArea := top.area - dst.BBox.Union(box).HalfArea()
			if reinsertArea > best.gain {
				best.to = top.node
				best.gain = reinsertArea
			}
			if !dst.IsLeaf() {
				childArea := reinsertArea + dst.BBox.HalfArea()
				left, right := dst.ChildNodes()
				stack = append(stack, candidate{left, childArea}, candidate{right, childArea})
			}
		}

		// Ancestors above the parent shrink once node is gone
		if pivot != parent {
			pivotBox = pivotBox.Union(nodes[sibling].BBox)
			areaDiff += nodes[pivot].BBox.HalfArea() - pivotBox.HalfArea()
		}
		if pivot == 0 {
			break
		}
		sibling = o.sibling(pivot)
		pivot = o.parents[pivot]
	}

	if best.to == o.sibling(node) || best.to == parent {
		return move{from: node}
	}
	return best
}

// Apply moves in order, skipping those that touch a node changed by an
// earlier move of the same batch. Returns the number of applied moves.
func (o *optimizer) commit(moves []move) int {
	for i := range o.locked {
		o.locked[i] = false
	}

	applied := 0
	for _, m := range moves {
		p := o.parents[m.from]
		if p == tree.NoParent || p == 0 || m.to == 0 {
			continue
		}
		conflicts := [...]uint32{m.from, p, o.sibling(m.from), o.parents[p], m.to, o.parents[m.to]}
		if o.anyLocked(conflicts[:]) {
			continue
		}
		if !o.apply(m) {
			continue
		}
		for _, index := range conflicts {
			o.locked[index] = true
		}
		applied++
	}
	return applied
}

func (o *optimizer) anyLocked(indices []uint32) bool {
	for _, index := range indices {
		if index != tree.NoParent && o.locked[index] {
			return true
		}
	}
	return false
}

// Detach m.from together with its parent, let the old sibling take the
// parent's place and reuse the parent to join m.from with m.to.
func (o *optimizer) apply(m move) bool {
	n, t := m.from, m.to
	p := o.parents[n]
	g := o.parents[p]
	s := o.sibling(n)
	if t == n || t == p || t == s || o.isAncestor(n, t) {
		return false
	}

	nodes := o.tree.Nodes
	nodes[g].ReplaceChild(p, s)
	o.parents[s] = g

	q := o.parents[t]
	nodes[q].ReplaceChild(t, p)
	o.parents[p] = q
	nodes[p].SetChildNodes(t, n)
	o.parents[t] = p
	o.parents[n] = p

	o.refitUp(g)
	o.refitUp(p)
	return true
}

// Returns true if a is an ancestor of (or equal to) b.
func (o *optimizer) isAncestor(a, b uint32) bool {
	for index := b; index != tree.NoParent; index = o.parents[index] {
		if index == a {
			return true
		}
	}
	return false
}

func (o *optimizer) refitUp(index uint32) {
	nodes := o.tree.Nodes
	for ; index != tree.NoParent; index = o.parents[index] {
		left, right := nodes[index].ChildNodes()
		nodes[index].BBox = nodes[left].BBox.Union(nodes[right].BBox)
	}
}

func (o *optimizer) restore(snapshot []tree.Node) {
	copy(o.tree.Nodes, snapshot)
	o.parents = o.tree.Parents()
}
