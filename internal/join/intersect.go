package join

// Intersect implements spec.md §4.3 "intersect(a1..an, cardinality=k)": for
// document selection, the document must appear in >= k inputs; for position
// selection, at a shared position among >= k inputs. cardinality = 0 means
// "all inputs". The lagging iterator is always the one advanced each round,
// exploiting that candidates strictly increase.
//
// Known upstream bug (spec.md §9, "Open questions"): the original
// IteratorIntersect::skipPos called the children's skipDoc rather than
// skipPos. That form is deprecated; this implementation always calls
// SkipPos on children when resolving positions.
type Intersect struct {
	inputs      []PostingIterator
	cardinality int

	curDoc uint32
	active []int // input indices that matched curDoc

	matched []int // input indices that matched the last SkipPos result
}

// NewIntersect builds an intersect operator. cardinality == 0 means "all
// inputs must match".
func NewIntersect(cardinality int, inputs ...PostingIterator) *Intersect {
	return &Intersect{inputs: inputs, cardinality: cardinality}
}

func (x *Intersect) need(total int) int {
	k := x.cardinality
	if k <= 0 || k > total {
		return total
	}
	return k
}

func (x *Intersect) SkipDoc(docno uint32) uint32 {
	candidate := docno
	need := x.need(len(x.inputs))
	for {
		var maxDoc uint32
		allExhausted := true
		for _, in := range x.inputs {
			d := in.SkipDoc(candidate)
			if d == 0 {
				continue
			}
			allExhausted = false
			if d > maxDoc {
				maxDoc = d
			}
		}
		if allExhausted || maxDoc == 0 {
			x.curDoc = 0
			x.active = nil
			return 0
		}
		active := make([]int, 0, len(x.inputs))
		for i, in := range x.inputs {
			if in.SkipDoc(maxDoc) == maxDoc {
				active = append(active, i)
			}
		}
		if len(active) >= need {
			x.curDoc = maxDoc
			x.active = active
			return maxDoc
		}
		candidate = maxDoc + 1
	}
}

func (x *Intersect) SkipDocCandidate(docno uint32) uint32 {
	// A cheap over-approximation: the candidate must at least be reachable
	// by every input's own candidate skip; fall back to the precise path
	// since cardinality bookkeeping needs exact membership anyway.
	return x.SkipDoc(docno)
}

func (x *Intersect) SkipPos(pos uint16) uint16 {
	if x.curDoc == 0 || len(x.active) == 0 {
		return 0
	}
	need := x.need(len(x.active))
	candidate := pos
	for {
		var maxPos uint16
		allExhausted := true
		for _, idx := range x.active {
			p := x.inputs[idx].SkipPos(candidate)
			if p == 0 {
				continue
			}
			allExhausted = false
			if p > maxPos {
				maxPos = p
			}
		}
		if allExhausted || maxPos == 0 {
			x.matched = nil
			return 0
		}
		matched := make([]int, 0, len(x.active))
		for _, idx := range x.active {
			if x.inputs[idx].SkipPos(maxPos) == maxPos {
				matched = append(matched, idx)
			}
		}
		if len(matched) >= need {
			x.matched = matched
			return maxPos
		}
		candidate = maxPos + 1
	}
}

func (x *Intersect) Frequency() uint16 {
	var total uint32
	for _, idx := range x.matched {
		total += uint32(x.inputs[idx].Frequency())
	}
	if total > 0xFFFF {
		return 0xFFFF
	}
	return uint16(total)
}

func (x *Intersect) Length() int { return 1 }

func (x *Intersect) DocumentFrequency() int {
	min := -1
	for _, in := range x.inputs {
		df := in.DocumentFrequency()
		if min == -1 || df < min {
			min = df
		}
	}
	if min < 0 {
		return 0
	}
	return min
}
