package queryeval

import (
	"math"
	"sort"

	"github.com/strusgo/strusengine/internal/join"
	"github.com/strusgo/strusengine/internal/metadata"
	"github.com/strusgo/strusengine/internal/structblock"
	"github.com/strusgo/strusengine/internal/weighting"
)

// epsilon is the floating-point equality tolerance for weight tie-breaking
// (spec.md §4.4 "Ordering and tie-break").
const epsilon = 1.19209290e-7

// WeightingBinding is one registered weighting function, already bound to
// its features, contributing one component weight per candidate.
type WeightingBinding struct {
	Context weighting.FunctionContext
}

// Evaluator runs the evaluation protocol described in spec.md §4.4.
type Evaluator struct {
	// Selection is the selection feature set's posting iterator; its
	// postings define the candidate docno stream.
	Selection join.PostingIterator

	// Exclusion features: a candidate is dropped if any matches.
	Exclusion []join.PostingIterator

	// Restriction features: a candidate is kept only if at least one
	// matches (empty slice = no restriction).
	Restriction []join.PostingIterator

	// DocumentSet, if non-nil, is the docnolist filter: a candidate is
	// kept only if present.
	DocumentSet map[uint32]bool

	MetadataRestriction *metadata.Restriction
	MetadataTable       *metadata.Table

	ACL   *metadata.ACL
	Users []string

	Weighting []WeightingBinding
	Formula   weighting.Formula

	// MaxNofRanks <= 0 means unlimited.
	MaxNofRanks int
	MinRank     int
}

// Evaluate runs the full protocol: for each selection candidate, apply
// exclusion/restriction/docset/metadata/ACL filters in order, then combine
// weighting function outputs, accumulate into a bounded heap, and return
// the tie-break-sorted, minRank/maxNofRanks-sliced result (spec.md §4.4
// steps 1-6).
func (e *Evaluator) Evaluate() (*Result, error) {
	result := &Result{Pass: true}
	if e.Selection == nil {
		return result, nil
	}
	formula := e.Formula
	if formula == nil {
		formula = weighting.SumFormula
	}

	heapCap := 0
	if e.MaxNofRanks > 0 {
		heapCap = e.MaxNofRanks + e.MinRank
	}
	ranks := newBoundedRankHeap(heapCap)

	docno := e.Selection.SkipDoc(1)
	for docno != 0 {
		result.NofVisited++

		if e.excluded(docno) || !e.restrictionPasses(docno) || !e.inDocumentSet(docno) {
			docno = e.Selection.SkipDoc(docno + 1)
			continue
		}
		if e.MetadataRestriction != nil && !e.MetadataRestriction.Empty() {
			ok, err := e.MetadataRestriction.Evaluate(e.MetadataTable, docno)
			if err != nil {
				return nil, err
			}
			if !ok {
				docno = e.Selection.SkipDoc(docno + 1)
				continue
			}
		}
		if e.ACL != nil && e.ACL.Enabled() && !e.ACL.AnyHasAccess(docno, e.Users) {
			docno = e.Selection.SkipDoc(docno + 1)
			continue
		}

		for _, r := range e.combine(docno) {
			ranks.push(r)
		}

		docno = e.Selection.SkipDoc(docno + 1)
	}

	out := ranks.drain()
	sort.Slice(out, func(i, j int) bool { return rankLess(out[i], out[j]) })

	lo := e.MinRank
	if lo > len(out) {
		lo = len(out)
	}
	hi := len(out)
	if e.MaxNofRanks > 0 && lo+e.MaxNofRanks < hi {
		hi = lo + e.MaxNofRanks
	}
	result.Ranks = out[lo:hi]
	result.NofRanked = len(result.Ranks)
	return result, nil
}

func (e *Evaluator) excluded(docno uint32) bool {
	for _, ex := range e.Exclusion {
		if ex.SkipDoc(docno) == docno {
			return true
		}
	}
	return false
}

func (e *Evaluator) restrictionPasses(docno uint32) bool {
	if len(e.Restriction) == 0 {
		return true
	}
	for _, r := range e.Restriction {
		if r.SkipDoc(docno) == docno {
			return true
		}
	}
	return false
}

func (e *Evaluator) inDocumentSet(docno uint32) bool {
	if e.DocumentSet == nil {
		return true
	}
	return e.DocumentSet[docno]
}

// combine invokes every weighting function's context and applies the
// formula (spec.md §4.4 step 3): scalar-only contexts contribute one
// component combined into a single document-level rank; any context that
// returns weighted subfields turns each field into its own ranked result,
// combined with the scalar components via the same formula.
func (e *Evaluator) combine(docno uint32) []Rank {
	var scalars []float64
	fieldWeights := make(map[structblock.IndexRange]float64)

	for _, wb := range e.Weighting {
		w, fields, err := wb.Context.Call(docno)
		if err != nil || len(fields) == 0 {
			scalars = append(scalars, w)
			continue
		}
		for _, wf := range fields {
			fieldWeights[wf.Field] += wf.Weight
		}
	}

	if len(fieldWeights) == 0 {
		return []Rank{{Docno: docno, Weight: formulaOrSum(e.Formula, scalars)}}
	}

	out := make([]Rank, 0, len(fieldWeights))
	for field, fw := range fieldWeights {
		components := append(append([]float64(nil), scalars...), fw)
		f := field
		out = append(out, Rank{Docno: docno, Field: &f, Weight: formulaOrSum(e.Formula, components)})
	}
	return out
}

func formulaOrSum(f weighting.Formula, components []float64) float64 {
	if f != nil {
		return f(components)
	}
	return weighting.SumFormula(components)
}

// rankLess implements spec.md §4.4's tie-break: weight descending (within
// epsilon), then docno ascending, then field.start ascending, field.end
// ascending.
func rankLess(a, b Rank) bool {
	if math.Abs(a.Weight-b.Weight) > epsilon {
		return a.Weight > b.Weight
	}
	if a.Docno != b.Docno {
		return a.Docno < b.Docno
	}
	af, bf := fieldOrZero(a.Field), fieldOrZero(b.Field)
	if af.Start != bf.Start {
		return af.Start < bf.Start
	}
	return af.End < bf.End
}

func fieldOrZero(f *structblock.IndexRange) structblock.IndexRange {
	if f == nil {
		return structblock.IndexRange{}
	}
	return *f
}
