package join

import "sort"

// Within implements spec.md §4.3 "within(a1..an, range)": like sequence but
// order-independent — all inputs' positions must fall inside a window no
// wider than range. The match position reported is the smallest of the
// window's positions.
type Within struct {
	inputs []PostingIterator
	rng    int

	curDoc  uint32
	matchAt uint16
	span    int
}

// NewWithin builds a within operator; range bounds the window width
// (max position - min position) that all inputs must fit inside.
func NewWithin(rng int, inputs ...PostingIterator) *Within {
	return &Within{inputs: inputs, rng: rng}
}

func (w *Within) SkipDoc(docno uint32) uint32 {
	best := uint32(0)
	for _, in := range w.inputs {
		d := in.SkipDoc(docno)
		if d == 0 {
			w.curDoc = 0
			return 0
		}
		if best == 0 || d > best {
			best = d
		}
	}
	for {
		changed := false
		for _, in := range w.inputs {
			d := in.SkipDoc(best)
			if d == 0 {
				w.curDoc = 0
				return 0
			}
			if d > best {
				best = d
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	w.curDoc = best
	w.matchAt = 0
	w.span = 0
	return best
}

func (w *Within) SkipDocCandidate(docno uint32) uint32 {
	best := uint32(0)
	for _, in := range w.inputs {
		d := in.SkipDocCandidate(docno)
		if d == 0 {
			return 0
		}
		if best == 0 || d > best {
			best = d
		}
	}
	return best
}

// SkipPos finds the first within-window match whose minimum position is
// >= pos. It anchors on each input in turn as the "leftmost" candidate and
// tries to pull every other input into the window, advancing the overall
// search floor each time a candidate fails.
func (w *Within) SkipPos(pos uint16) uint16 {
	if w.curDoc == 0 || len(w.inputs) == 0 {
		return 0
	}
	floor := pos
	for {
		positions := make([]uint16, len(w.inputs))
		anyZero := false
		for i, in := range w.inputs {
			p := in.SkipPos(floor)
			if p == 0 {
				anyZero = true
				break
			}
			positions[i] = p
		}
		if anyZero {
			return 0
		}
		sorted := append([]uint16(nil), positions...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		lo, hi := sorted[0], sorted[len(sorted)-1]
		width := int(hi) - int(lo)
		if width <= w.rng {
			w.matchAt = lo
			w.span = width + 1
			return lo
		}
		floor = lo + 1
	}
}

func (w *Within) Frequency() uint16 {
	var total uint32
	for _, in := range w.inputs {
		total += uint32(in.Frequency())
	}
	if total > 0xFFFF {
		return 0xFFFF
	}
	return uint16(total)
}

func (w *Within) Length() int {
	if w.span == 0 {
		return 1
	}
	return w.span
}

func (w *Within) DocumentFrequency() int {
	min := -1
	for _, in := range w.inputs {
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
