package pack

// Ordered is implemented by any fixed-size record array whose elements are
// sorted ascending by some key comparable to K, e.g. StructureField.end or
// DocIndexNode.base. SkipScanArray wraps such an array to implement the
// "skip-scan" search spec.md §4.1 requires: binary search when the target is
// far from the current position, linear advance when it is close, so hot
// sequential scans (the common case for posting intersection) do not pay a
// full binary-search cost at every step.
type Ordered[K any] interface {
	// Len returns the number of elements.
	Len() int
	// Less reports whether the key at index i is less than k (i.e. whether
	// we must keep advancing past i to find k).
	Less(i int, k K) bool
}

// SkipScanArray performs an upper-bound search for k starting at hint,
// returning the first index i (>= hint) for which !arr.Less(i, k), or
// arr.Len() if no such index exists. It linearly probes a small window
// ahead of hint first (cheap for sequential access patterns) and falls back
// to binary search across the remaining range otherwise.
func SkipScanArray[K any](arr Ordered[K], hint int, k K) int {
	n := arr.Len()
	if hint < 0 {
		hint = 0
	}
	if hint >= n {
		return n
	}

	const linearWindow = 8
	end := hint + linearWindow
	if end > n {
		end = n
	}
	for i := hint; i < end; i++ {
		if !arr.Less(i, k) {
			return i
		}
	}
	if end == n {
		return n
	}
	return upperBound(arr, end, n, k)
}

// upperBound performs a classic binary search for the first index in
// [lo,hi) for which !arr.Less(i, k).
func upperBound[K any](arr Ordered[K], lo, hi int, k K) int {
	for lo < hi {
		mid := lo + (hi-lo)/2
		if arr.Less(mid, k) {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}
