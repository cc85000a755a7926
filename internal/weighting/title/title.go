// Package title implements the "title" weighting function (spec.md §4.5):
// a hierarchy-aware scorer that rewards query features matched inside
// nested structure headers, proportionally deeper matches weighted less
// than shallow, complete ones. Grounded on the factory/instance/context
// split of weightingTitle.cpp (original_source), re-expressed with Go
// interfaces instead of virtual base classes per SPEC_FULL.md §2.2's
// "trait objects for open-ended extension points" guidance.
package title

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/strusgo/strusengine/internal/join"
	"github.com/strusgo/strusengine/internal/metadata"
	"github.com/strusgo/strusengine/internal/structblock"
	"github.com/strusgo/strusengine/internal/weighting"
)

// StructureSource supplies the structure block for one document, used to
// discover header/content covers. Wired by the query evaluator from
// internal/structblock at execution time.
type StructureSource func(docno uint32) *structblock.StructBlock

const defaultHierarchyFactor = 0.7

// Function is the "title" weighting scheme factory.
type Function struct {
	Structure StructureSource
}

func (Function) Name() string { return "title" }

func (f Function) CreateInstance() weighting.FunctionInstance {
	return &Instance{hf: defaultHierarchyFactor, structure: f.Structure}
}

// Instance holds this evaluation scheme entry's parameters (spec.md §4.5).
type Instance struct {
	hf        float64 // hierarchy weight factor, default 0.7
	results   int     // max weighted subfields per document, 0 = unlimited
	maxdf     float64 // df > maxdf*N treated as a stopword feature
	structure StructureSource
}

func (in *Instance) AddStringParameter(name, value string) error {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("title: parameter %q expects a numeric value: %w", name, err)
	}
	return in.AddNumericParameter(name, v)
}

func (in *Instance) AddNumericParameter(name string, value float64) error {
	switch name {
	case "hf":
		in.hf = value
	case "results":
		in.results = int(value)
	case "maxdf":
		in.maxdf = value
	default:
		return fmt.Errorf("title: unknown parameter %q", name)
	}
	return nil
}

func (in *Instance) CreateFunctionContext(md *metadata.Table, nofCollectionDocuments int) (weighting.FunctionContext, error) {
	return &Context{
		inst: in,
		n:    nofCollectionDocuments,
	}, nil
}

// titleFeature is one query posting ("match" feature) bound to this context.
type titleFeature struct {
	itr join.PostingIterator
	idx int // query-posting index, used for the used-postings bitset
	df  int
}

// Context is bound once per evaluation run.
type Context struct {
	inst     *Instance
	n        int
	features []titleFeature
}

func (c *Context) AddWeightingFeature(name string, itr join.PostingIterator, weight float64, df int) error {
	if name != "match" {
		return fmt.Errorf("title: unknown weighting feature parameter %q", name)
	}
	if df < 0 {
		df = itr.DocumentFrequency()
	}
	c.features = append(c.features, titleFeature{itr: itr, idx: len(c.features), df: df})
	return nil
}

// header is one candidate structure header considered as a title-match site:
// a field that some structure instance declares as its Source, containing at
// least one matched query-feature position.
type header struct {
	field     structblock.IndexRange
	hierarchy int
	usedMask  uint64 // matched query-posting indices, trimmed per step 1
	complete  bool   // this header alone matches every query feature
	sinks     []structblock.IndexRange
}

// Call implements the search described in spec.md §4.5 steps 1-6: a chain
// walk over nested headers rather than an independent per-header score.
// Headers are restricted to true structure sources (step 1, via
// FieldScanner.GetLinks/Link.Head, since a field's IndexRange alone does not
// say whether it is acting as a header or as someone else's content — see
// structblock.Builder.Build, which can attach both kinds of Link to the same
// range from different instances). The walk is seeded from hierarchy-0
// headers (step 3) and descends into headers covered by the current state's
// content field(s) with disjoint query-posting matches (step 4), accumulating
// weight_so_far + (consumed/Nq)·hf^hierarchy at each step. A state emits a
// result — keyed by its header's content field(s), per step 6 — whenever all
// query postings are consumed, the remainder is all stopwords, or the header
// itself is a complete match (step 5); deeper states are still explored
// afterward, since a longer chain to the same leaf can score higher. Distinct
// chains reaching the same content field keep the better (max) weight, which
// is how an overlong "skip a level" chain loses out to the faithful one
// without needing to be rejected explicitly.
func (c *Context) Call(docno uint32) (float64, []weighting.WeightedField, error) {
	if c.inst.structure == nil || len(c.features) == 0 {
		return 0, nil, nil
	}
	block := c.inst.structure(docno)
	if block == nil {
		return 0, nil, nil
	}
	nq := len(c.features)
	if nq == 0 || nq > 64 {
		return 0, nil, nil
	}
	present := make([]titleFeature, 0, nq)
	for _, f := range c.features {
		if f.itr.SkipDoc(docno) == docno {
			present = append(present, f)
		}
	}
	if len(present) == 0 {
		return 0, nil, nil
	}

	// Collect stopword mask: features whose df exceeds maxdf*N may only
	// contribute as part of a complete header match (spec.md §4.5 step 1).
	var stopMask uint64
	if c.inst.maxdf > 0 && c.n > 0 {
		for i, f := range c.features {
			if float64(f.df) > c.inst.maxdf*float64(c.n) {
				stopMask |= 1 << uint(i)
			}
		}
	}
	fullQueryMask := uint64(1)<<uint(nq) - 1

	sinksBySource := sinksBySourceOf(block)
	headers := collectHeaders(block, present, stopMask, sinksBySource, nq)
	if len(headers) == 0 {
		return 0, nil, nil
	}

	best := make(map[structblock.IndexRange]float64)
	for _, h := range headers {
		if h.hierarchy == 0 {
			c.expand(h, headers, fullQueryMask, stopMask, nq, 0, 0, best)
		}
	}
	if len(best) == 0 {
		return 0, nil, nil
	}

	var fields []structblock.IndexRange
	for f := range best {
		fields = append(fields, f)
	}
	sort.Slice(fields, func(i, j int) bool {
		if fields[i].Start != fields[j].Start {
			return fields[i].Start < fields[j].Start
		}
		return fields[i].End < fields[j].End
	})
	if c.inst.results > 0 && len(fields) > c.inst.results {
		fields = fields[:c.inst.results]
	}

	out := make([]weighting.WeightedField, 0, len(fields))
	var total float64
	for _, f := range fields {
		out = append(out, weighting.WeightedField{Field: f, Weight: best[f]})
		total += best[f]
	}
	return total, out, nil
}

// expand advances the chain walk by one header (spec.md §4.5 step 4),
// records a result if this state qualifies for emission (step 5), and then
// tries every deeper header covered by h's content field(s) regardless —
// recording a result does not preclude a longer chain scoring higher.
func (c *Context) expand(h header, headers []header, fullQueryMask, stopMask uint64, nq int, weightSoFar float64, usedMask uint64, best map[structblock.IndexRange]float64) {
	newUsed := usedMask | h.usedMask
	weight := weightSoFar + (float64(popcount(h.usedMask))/float64(nq))*math.Pow(c.inst.hf, float64(h.hierarchy))
	if weight > 1.0 {
		weight = 1.0
	}

	remaining := fullQueryMask &^ newUsed
	allConsumed := remaining == 0
	remainingAreStopwords := remaining != 0 && remaining&^stopMask == 0
	if allConsumed || remainingAreStopwords || h.complete {
		sinks := h.sinks
		if len(sinks) == 0 {
			sinks = []structblock.IndexRange{h.field}
		}
		for _, sink := range sinks {
			if weight > best[sink] {
				best[sink] = weight
			}
		}
	}

	for _, next := range headers {
		if next.hierarchy <= h.hierarchy {
			continue
		}
		if next.usedMask&newUsed != 0 {
			continue
		}
		if !coveredByAny(next.field, h.sinks) {
			continue
		}
		c.expand(next, headers, fullQueryMask, stopMask, nq, weight, newUsed, best)
	}
}

// matchedRange reports which query-feature indices have a position inside
// field, and the count of distinct matched features (the "match length").
func matchedRange(features []titleFeature, field structblock.IndexRange) (mask uint64, n int) {
	for _, f := range features {
		p := f.itr.SkipPos(field.Start)
		if p != 0 && p < field.End {
			mask |= 1 << uint(f.idx)
			n++
		}
	}
	return mask, n
}

func popcount(mask uint64) int {
	n := 0
	for mask != 0 {
		n += int(mask & 1)
		mask >>= 1
	}
	return n
}

// hierarchyOf counts how many OTHER structure instances' content fields
// cover field (spec.md §4.5 step 2): d.Source != field excludes field's own
// instance(s), so a header is never counted as covering itself.
func hierarchyOf(block *structblock.StructBlock, field structblock.IndexRange) int {
	count := 0
	for _, d := range block.Declarations() {
		if d.Source != field && d.Sink.Start <= field.Start && field.End <= d.Sink.End {
			count++
		}
	}
	return count
}

// sinksBySourceOf groups every declared sink by its header (source) field,
// used to resolve a header's content field(s) without re-scanning
// Declarations() per header (spec.md §4.5 step 6, "Results are the
// (content_field, ...) of the leaf").
func sinksBySourceOf(block *structblock.StructBlock) map[structblock.IndexRange][]structblock.IndexRange {
	out := make(map[structblock.IndexRange][]structblock.IndexRange)
	for _, d := range block.Declarations() {
		out[d.Source] = append(out[d.Source], d.Sink)
	}
	return out
}

// collectHeaders scans every field level, keeping only fields that some
// structure instance declares as its header (Link.Head — spec.md §4.5 step 1:
// "a header field contains a query-feature position"). A field range can
// carry links from more than one instance with differing Head values
// (structblock.Builder.Build), so the Head filter is checked per-link rather
// than assumed from the field's geometry alone.
func collectHeaders(block *structblock.StructBlock, present []titleFeature, stopMask uint64, sinksBySource map[structblock.IndexRange][]structblock.IndexRange, nq int) []header {
	var headers []header
	for lvl := 0; lvl < block.NofFieldLevels(); lvl++ {
		scanner := block.FieldScanner(lvl)
		field, ok := scanner.Skip(0)
		for ok {
			if isHeaderField(scanner.GetLinks()) {
				fullMask, matchLen := matchedRange(present, field)
				if matchLen > 0 {
					complete := popcount(fullMask) == nq
					// Stopword features only count toward the consumed
					// fraction when the header matches completely (spec.md
					// §4.5 step 1: stopwords are "usable only as complete
					// matches").
					usedMask := fullMask
					if !complete {
						usedMask = fullMask &^ stopMask
					}
					headers = append(headers, header{
						field:     field,
						hierarchy: hierarchyOf(block, field),
						usedMask:  usedMask,
						complete:  complete,
						sinks:     sinksBySource[field],
					})
				}
			}
			var next structblock.IndexRange
			next, ok = scanner.Skip(field.End)
			if ok && next == field {
				break
			}
			field = next
		}
	}
	return headers
}

// isHeaderField reports whether any link of the most recently scanned field
// marks it as a structure header rather than (only) a content sink.
func isHeaderField(links []structblock.Link) bool {
	for _, l := range links {
		if l.Head {
			return true
		}
	}
	return false
}

// contains reports whether outer geometrically covers inner.
// structblock.IndexRange.contains is unexported, so this package reimplements
// the same check over the exported Start/End fields.
func contains(outer, inner structblock.IndexRange) bool {
	return outer.Start <= inner.Start && inner.End <= outer.End
}

// coveredByAny reports whether field is contained in at least one of fields.
func coveredByAny(field structblock.IndexRange, fields []structblock.IndexRange) bool {
	for _, f := range fields {
		if contains(f, field) {
			return true
		}
	}
	return false
}
