package queryeval

import (
	"sort"
	"testing"

	"github.com/strusgo/strusengine/internal/join"
	"github.com/strusgo/strusengine/internal/weighting"
)

// docSetIterator is a posting iterator stub whose "documents" are exactly
// the members of a fixed, sorted docno set; every position is 1 in every
// document it matches.
type docSetIterator struct {
	docs []uint32
	cur  uint32
}

func newDocSetIterator(docs []uint32) *docSetIterator {
	sorted := append([]uint32(nil), docs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return &docSetIterator{docs: sorted}
}

func (d *docSetIterator) SkipDoc(docno uint32) uint32 {
	for _, x := range d.docs {
		if x >= docno {
			d.cur = x
			return x
		}
	}
	d.cur = 0
	return 0
}
func (d *docSetIterator) SkipDocCandidate(docno uint32) uint32 { return d.SkipDoc(docno) }
func (d *docSetIterator) SkipPos(pos uint16) uint16 {
	if d.cur != 0 && pos <= 1 {
		return 1
	}
	return 0
}
func (d *docSetIterator) Frequency() uint16      { return 1 }
func (d *docSetIterator) Length() int            { return 1 }
func (d *docSetIterator) DocumentFrequency() int { return len(d.docs) }

// divisibleBy returns the docnos in [2,n] divisible by k.
func divisibleBy(n int, k uint32) []uint32 {
	var out []uint32
	for i := uint32(2); i <= uint32(n); i++ {
		if i%k == 0 {
			out = append(out, i)
		}
	}
	return out
}

// TestEvaluatorExclusionRestriction reproduces the shape of spec.md §8's
// S6 scenario: selection is "hello" (all 10 documents), restriction is
// union(divisible-by-2, divisible-by-3) expressed as two restriction
// posting sets, no exclusion. Expected hits are documents 2,3,4,6,8,9.
func TestEvaluatorExclusionRestriction(t *testing.T) {
	selection := newDocSetIterator([]uint32{2, 3, 4, 5, 6, 7, 8, 9, 10})
	restrictBy2 := newDocSetIterator(divisibleBy(10, 2))
	restrictBy3 := newDocSetIterator(divisibleBy(10, 3))

	ev := &Evaluator{
		Selection:   selection,
		Restriction: []join.PostingIterator{restrictBy2, restrictBy3},
	}
	res, err := ev.Evaluate()
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	want := map[uint32]bool{2: true, 3: true, 4: true, 6: true, 8: true, 9: true}
	if len(res.Ranks) != len(want) {
		t.Fatalf("got %d ranks, want %d: %+v", len(res.Ranks), len(want), res.Ranks)
	}
	for _, r := range res.Ranks {
		if !want[r.Docno] {
			t.Fatalf("unexpected docno %d in results", r.Docno)
		}
	}
	if res.NofVisited != 9 {
		t.Fatalf("NofVisited = %d, want 9", res.NofVisited)
	}
}

func TestEvaluatorExclusionDropsMatches(t *testing.T) {
	selection := newDocSetIterator([]uint32{1, 2, 3})
	exclusion := newDocSetIterator([]uint32{2})
	ev := &Evaluator{Selection: selection, Exclusion: []join.PostingIterator{exclusion}}
	res, err := ev.Evaluate()
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	got := map[uint32]bool{}
	for _, r := range res.Ranks {
		got[r.Docno] = true
	}
	if got[2] || !got[1] || !got[3] {
		t.Fatalf("exclusion did not filter correctly: %+v", res.Ranks)
	}
}

func TestEvaluatorDocumentSetFilter(t *testing.T) {
	selection := newDocSetIterator([]uint32{1, 2, 3, 4})
	ev := &Evaluator{Selection: selection, DocumentSet: map[uint32]bool{2: true, 4: true}}
	res, err := ev.Evaluate()
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(res.Ranks) != 2 {
		t.Fatalf("got %d ranks, want 2", len(res.Ranks))
	}
}

// scalarContext is a FunctionContext stub returning a fixed scalar per
// docno, no weighted subfields.
type scalarContext struct{ weights map[uint32]float64 }

func (s scalarContext) AddWeightingFeature(name string, itr join.PostingIterator, weight float64, df int) error {
	return nil
}
func (s scalarContext) Call(docno uint32) (float64, []weighting.WeightedField, error) {
	return s.weights[docno], nil, nil
}

func TestEvaluatorBoundedRanksAndTieBreak(t *testing.T) {
	selection := newDocSetIterator([]uint32{1, 2, 3, 4, 5})
	weights := map[uint32]float64{1: 1.0, 2: 5.0, 3: 5.0, 4: 3.0, 5: 2.0}
	ev := &Evaluator{
		Selection:   selection,
		Weighting:   []WeightingBinding{{Context: scalarContext{weights: weights}}},
		MaxNofRanks: 3,
	}
	res, err := ev.Evaluate()
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(res.Ranks) != 3 {
		t.Fatalf("got %d ranks, want 3", len(res.Ranks))
	}
	// Top 3 by weight: docs 2 and 3 tie at 5.0 (docno ascending breaks the
	// tie), then doc 4 at 3.0.
	wantOrder := []uint32{2, 3, 4}
	for i, docno := range wantOrder {
		if res.Ranks[i].Docno != docno {
			t.Fatalf("rank[%d].Docno = %d, want %d (%+v)", i, res.Ranks[i].Docno, docno, res.Ranks)
		}
	}
}

func TestEvaluatorMinRankSkipsTopResults(t *testing.T) {
	selection := newDocSetIterator([]uint32{1, 2, 3})
	weights := map[uint32]float64{1: 1.0, 2: 2.0, 3: 3.0}
	ev := &Evaluator{
		Selection:   selection,
		Weighting:   []WeightingBinding{{Context: scalarContext{weights: weights}}},
		MaxNofRanks: 10,
		MinRank:     1,
	}
	res, err := ev.Evaluate()
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(res.Ranks) != 2 {
		t.Fatalf("got %d ranks, want 2 (skipped the top one)", len(res.Ranks))
	}
	if res.Ranks[0].Docno != 2 {
		t.Fatalf("first surviving rank should be docno 2, got %d", res.Ranks[0].Docno)
	}
}
