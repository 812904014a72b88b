package tree

type Stats struct {
	Nodes    int
	Leaves   int
	MaxDepth int

	// Leaf primitive counts.
	MinLeafSize int
	MaxLeafSize int
	AvgLeafSize float64
}

// Collect tree statistics.
func (t *Tree) Stats() Stats {
	stats := Stats{Nodes: len(t.Nodes)}

	type entry struct {
		index uint32
		depth int
	}
	total := 0
	stack := []entry{{0, 0}}
	for len(stack) > 0 {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if e.depth > stats.MaxDepth {
			stats.MaxDepth = e.depth
		}

		node := &t.Nodes[e.index]
		if !node.IsLeaf() {
			left, right := node.ChildNodes()
			stack = append(stack, entry{left, e.depth + 1}, entry{right, e.depth + 1})
			continue
		}

		_, count := node.Primitives()
		if stats.Leaves == 0 || int(count) < stats.MinLeafSize {
			stats.MinLeafSize = int(count)
		}
		if int(count) > stats.MaxLeafSize {
			stats.MaxLeafSize = int(count)
		}
		stats.Leaves++
		total += int(count)
	}

	if stats.Leaves > 0 {
		stats.AvgLeafSize = float64(total) / float64(stats.Leaves)
	}
	return stats
}
