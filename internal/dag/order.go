package dag

import (
	"container/heap"
	"slices"
)

// releasedChunks holds chunks whose parents are all placed, keyed by host
// index so the chunk the host listed first loads first.
type releasedChunks []int

func (r releasedChunks) Len() int           { return len(r) }
func (r releasedChunks) Less(i, j int) bool { return r[i] < r[j] }
func (r releasedChunks) Swap(i, j int)      { r[i], r[j] = r[j], r[i] }
func (r *releasedChunks) Push(x any)        { *r = append(*r, x.(int)) }
func (r *releasedChunks) Pop() any {
	old := *r
	x := old[len(old)-1]
	*r = old[:len(old)-1]
	return x
}

// loadOrder places every chunk after its parents. A host order that
// already respects parent links comes back unchanged. Chunks on or below a
// parent cycle are never released and are missing from the result.
func (g *ChunkGraph) loadOrder() []int {
	pending := slices.Clone(g.indeg)
	var released releasedChunks
	for i, n := range pending {
		if n == 0 {
			released = append(released, i)
		}
	}
	heap.Init(&released)

	order := make([]int, 0, len(g.chunks))
	for released.Len() > 0 {
		i := heap.Pop(&released).(int)
		order = append(order, i)
		for _, child := range g.outgoing[i] {
			pending[child]--
			if pending[child] == 0 {
				heap.Push(&released, child)
			}
		}
	}
	return order
}

// parentCycle returns the IDs of one parent cycle among the chunks
// loadOrder left out, written parent to child and closed ("a -> b -> a").
// Every left-out chunk still has a left-out parent, so following the
// first such parent from the lowest left-out chunk must come back around.
func (g *ChunkGraph) parentCycle(placed []int) []string {
	left := make([]bool, len(g.chunks))
	for i := range left {
		left[i] = true
	}
	for _, i := range placed {
		left[i] = false
	}
	start := slices.Index(left, true)
	if start < 0 {
		return nil
	}

	// walk runs child to parent.
	var walk []int
	seenAt := make(map[int]int)
	for cur := start; ; {
		if at, ok := seenAt[cur]; ok {
			walk = walk[at:]
			break
		}
		seenAt[cur] = len(walk)
		walk = append(walk, cur)

		next := -1
		for _, p := range g.incoming[cur] {
			if left[p] {
				next = p
				break
			}
		}
		if next < 0 {
			return nil
		}
		cur = next
	}

	ids := make([]string, 0, len(walk)+1)
	for i := len(walk) - 1; i >= 0; i-- {
		ids = append(ids, g.chunks[walk[i]].ID)
	}
	return append(ids, ids[0])
}
