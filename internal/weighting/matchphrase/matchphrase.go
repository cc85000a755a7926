// Package matchphrase implements the "matchphrase" summarizer (spec.md
// §4.6): the companion to the "bm25pff" weighting function, selecting the
// best-scoring sentence windows inside a ranked document's winning field.
// "Sentence" boundaries come from a configurable "eos" posting, same as
// bm25pff's sentence proximity band; a window's score is Σ_p∈window
// W(p)·IDF(featidx(p)), reusing bm25pff.TouchWeightAt and bm25pff.IdfOf so
// both functions agree on what "proximity-weighted" means.
package matchphrase

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/strusgo/strusengine/internal/join"
	"github.com/strusgo/strusengine/internal/metadata"
	"github.com/strusgo/strusengine/internal/structblock"
	"github.com/strusgo/strusengine/internal/weighting"
	"github.com/strusgo/strusengine/internal/weighting/bm25pff"
)

// StructureSource supplies the structure block for one document, used for
// the title-touch proximity band (mirrors bm25pff.StructureSource).
type StructureSource func(docno uint32) *structblock.StructBlock

// ForwardSource recovers the forward-index term value at one document
// position, used to render a selected window's text. A nil source makes
// the summarizer emit "start-end" markers instead of decoded text.
type ForwardSource func(docno uint32, pos uint16) (string, bool)

// NofDocuments reports the collection's total document count, needed for
// IDF. Wired as a callback, like Structure, since
// weighting.SummarizerInstance.CreateSummarizerContext takes no document
// count parameter the way FunctionInstance.CreateFunctionContext does.
type NofDocuments func() int

// Function is the "matchphrase" summarizer factory.
type Function struct {
	Structure    StructureSource
	Forward      ForwardSource
	NofDocuments NofDocuments
}

func (Function) Name() string { return "matchphrase" }

func (f Function) CreateInstance() weighting.SummarizerInstance {
	return &Instance{
		NofSentences:     1,
		MaxSentenceWords: 100,
		Prox:             bm25pff.ProximityConfig{DistImm: 2, DistClose: 10, DistSentence: 20, DistNear: 40, FFBase: 0.4},
		structure:        f.Structure,
		forward:          f.Forward,
		nofDocuments:     f.NofDocuments,
	}
}

// Instance holds this summarizer entry's parameters (spec.md §4.6:
// "nofSummarySentences", "maxNofSummarySentenceWords", plus the same
// proximity-band thresholds bm25pff.Instance exposes, since W(p) is shared).
type Instance struct {
	NofSentences     int
	MaxSentenceWords int
	Prox             bm25pff.ProximityConfig

	structure    StructureSource
	forward      ForwardSource
	nofDocuments NofDocuments
}

func (in *Instance) AddStringParameter(name, value string) error {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("matchphrase: parameter %q expects a numeric value: %w", name, err)
	}
	return in.AddNumericParameter(name, v)
}

func (in *Instance) AddNumericParameter(name string, value float64) error {
	switch name {
	case "nofsentences":
		in.NofSentences = int(value)
	case "maxsentencewords":
		in.MaxSentenceWords = int(value)
	case "dist_imm":
		in.Prox.DistImm = int(value)
	case "dist_close":
		in.Prox.DistClose = int(value)
	case "dist_sentence":
		in.Prox.DistSentence = int(value)
	case "dist_near":
		in.Prox.DistNear = int(value)
	case "ffbase":
		in.Prox.FFBase = value
	default:
		return fmt.Errorf("matchphrase: unknown parameter %q", name)
	}
	return nil
}

func (in *Instance) CreateSummarizerContext(md *metadata.Table) (weighting.SummarizerContext, error) {
	n := 0
	if in.nofDocuments != nil {
		n = in.nofDocuments()
	}
	return &Context{inst: in, n: n}, nil
}

type feature struct {
	itr join.PostingIterator
	df  int
}

// Context is bound once per evaluation run.
type Context struct {
	inst     *Instance
	n        int
	features []feature
	eosItr   join.PostingIterator
}

// AddSummarizationFeature binds a query feature ("match") or the optional
// sentence-boundary posting ("eos"), same naming convention bm25pff uses.
func (c *Context) AddSummarizationFeature(name string, itr join.PostingIterator, weight float64) error {
	if name == "eos" {
		c.eosItr = itr
		return nil
	}
	if name != "match" {
		return fmt.Errorf("matchphrase: unknown summarization feature parameter %q", name)
	}
	c.features = append(c.features, feature{itr: itr, df: itr.DocumentFrequency()})
	return nil
}

// window is one candidate sentence-delimited span inside the result field.
type window struct {
	field structblock.IndexRange
	score float64
}

// Call scores every sentence window inside field and returns the
// NofSentences best as "matchphrase" SummaryElements, ranked by score
// descending (Index 0 = best), ties broken by window start ascending.
func (c *Context) Call(docno uint32, field *structblock.IndexRange) ([]weighting.SummaryElement, error) {
	if field == nil || len(c.features) == 0 {
		return nil, nil
	}
	nq := len(c.features)
	occs := c.collectOccurrences(docno, *field)
	if len(occs) == 0 {
		return nil, nil
	}
	eos := c.collectEOS(docno, *field)

	var block *structblock.StructBlock
	if c.inst.structure != nil {
		block = c.inst.structure(docno)
	}

	windows := segment(*field, eos, c.inst.MaxSentenceWords)
	scored := make([]window, 0, len(windows))
	for _, w := range windows {
		var score float64
		for _, o := range occs {
			if o.Pos < w.Start || o.Pos >= w.End {
				continue
			}
			idf := bm25pff.IdfOf(c.n, c.features[o.FeatIdx].df)
			score += bm25pff.TouchWeightAt(occs, eos, block, o.FeatIdx, nq, o.Pos, c.inst.Prox) * idf
		}
		if score > 0 {
			scored = append(scored, window{field: w, score: score})
		}
	}
	if len(scored) == 0 {
		return nil, nil
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].field.Start < scored[j].field.Start
	})
	if c.inst.NofSentences > 0 && len(scored) > c.inst.NofSentences {
		scored = scored[:c.inst.NofSentences]
	}

	out := make([]weighting.SummaryElement, 0, len(scored))
	for i, w := range scored {
		out = append(out, weighting.SummaryElement{
			Name:   "matchphrase",
			Value:  c.textOf(docno, w.field),
			Weight: w.score,
			Index:  i,
		})
	}
	return out, nil
}

// collectOccurrences walks every bound "match" feature's position list,
// restricted to field, the same SkipPos walk bm25pff.Context uses.
func (c *Context) collectOccurrences(docno uint32, field structblock.IndexRange) []bm25pff.Occurrence {
	var out []bm25pff.Occurrence
	for fi, ft := range c.features {
		for _, p := range bm25pff.CollectPositions(ft.itr, docno) {
			if p >= field.Start && p < field.End {
				out = append(out, bm25pff.Occurrence{FeatIdx: fi, Pos: p})
			}
		}
	}
	return out
}

// collectEOS walks the optional sentence-boundary posting, restricted to
// field.
func (c *Context) collectEOS(docno uint32, field structblock.IndexRange) []uint16 {
	if c.eosItr == nil {
		return nil
	}
	var out []uint16
	for _, p := range bm25pff.CollectPositions(c.eosItr, docno) {
		if p >= field.Start && p < field.End {
			out = append(out, p)
		}
	}
	return out
}

// segment splits field into sentence-delimited sub-ranges at each eos
// position, clipping any sentence longer than maxWords positions down to
// that many (spec.md §4.6 "maxNofSummarySentenceWords"). With no eos
// boundaries at all, field is treated as one sentence.
func segment(field structblock.IndexRange, eos []uint16, maxWords int) []structblock.IndexRange {
	bounds := make([]uint16, 0, len(eos)+2)
	bounds = append(bounds, field.Start)
	for _, e := range eos {
		if e > field.Start && e < field.End {
			bounds = append(bounds, e)
		}
	}
	bounds = append(bounds, field.End)

	var out []structblock.IndexRange
	for i := 0; i+1 < len(bounds); i++ {
		start, end := bounds[i], bounds[i+1]
		if maxWords > 0 && int(end-start) > maxWords {
			end = start + uint16(maxWords)
		}
		if end > start {
			out = append(out, structblock.IndexRange{Start: start, End: end})
		}
	}
	return out
}

// textOf joins the forward-index term values across w's positions, or a
// plain position-range marker if no ForwardSource is configured.
func (c *Context) textOf(docno uint32, w structblock.IndexRange) string {
	if c.inst.forward == nil {
		return fmt.Sprintf("%d-%d", w.Start, w.End)
	}
	var words []string
	for pos := w.Start; pos < w.End; pos++ {
		if v, ok := c.inst.forward(docno, pos); ok {
			words = append(words, v)
		}
	}
	return strings.Join(words, " ")
}
