package queryeval

import "container/heap"

// rankSlice is the container/heap backing store for boundedRankHeap, a
// min-heap ordered by ascending weight so the smallest-weight rank is
// always at the root and cheapest to evict.
type rankSlice []Rank

func (h rankSlice) Len() int            { return len(h) }
func (h rankSlice) Less(i, j int) bool  { return h[i].Weight < h[j].Weight }
func (h rankSlice) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *rankSlice) Push(x interface{}) { *h = append(*h, x.(Rank)) }
func (h *rankSlice) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// boundedRankHeap keeps at most capacity ranks, evicting the minimum-weight
// rank on overflow (spec.md §4.4 step 4: "push into a bounded min-heap of
// size maxNofRanks+minRank; on overflow drop the minimum"). Grounded on the
// teacher's internal/util.MinHeap container/heap Push/Pop pattern,
// generalized from vector-distance candidates to ranked query results.
// capacity <= 0 means unlimited.
type boundedRankHeap struct {
	h        rankSlice
	capacity int
}

func newBoundedRankHeap(capacity int) *boundedRankHeap {
	return &boundedRankHeap{capacity: capacity}
}

func (b *boundedRankHeap) push(r Rank) {
	if b.capacity <= 0 || b.h.Len() < b.capacity {
		heap.Push(&b.h, r)
		return
	}
	if b.h.Len() > 0 && r.Weight > b.h[0].Weight {
		heap.Pop(&b.h)
		heap.Push(&b.h, r)
	}
}

// drain empties the heap into a slice in descending-weight order (the
// caller still applies the full §4.4 tie-break sort afterward, since this
// only orders by weight).
func (b *boundedRankHeap) drain() []Rank {
	out := make([]Rank, b.h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(&b.h).(Rank)
	}
	return out
}
