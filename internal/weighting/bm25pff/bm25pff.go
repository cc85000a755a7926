// Package bm25pff implements the "bm25pff" weighting function (spec.md
// §4.6): BM25 scored per structure field with a proximity-weighted feature
// frequency replacing raw term frequency, degrading to ordinary BM25 with
// whole-document weighting for single-feature queries (spec.md invariant
// 7). Parameter binding and the context/instance split are grounded on
// weightingBM25.cpp (original_source); the proximity window and structure
// awareness are spec.md §4.6's own addition over that baseline.
package bm25pff

import (
	"fmt"
	"math"
	"strconv"

	"github.com/strusgo/strusengine/internal/join"
	"github.com/strusgo/strusengine/internal/metadata"
	"github.com/strusgo/strusengine/internal/structblock"
	"github.com/strusgo/strusengine/internal/weighting"
)

// StructureSource supplies the structure block for one document, used to
// find field boundaries and title-touch headers. A nil source makes the
// function treat the whole document as one field.
type StructureSource func(docno uint32) *structblock.StructBlock

// Function is the "bm25pff" weighting scheme factory.
type Function struct {
	Structure StructureSource
}

func (Function) Name() string { return "bm25pff" }

func (f Function) CreateInstance() weighting.FunctionInstance {
	return &Instance{
		K1:             1.5,
		B:              0.75,
		MaxDF:          1.0,
		DistImm:        2,
		DistClose:      10,
		DistSentence:   20,
		DistNear:       40,
		Cluster:        0.3,
		FFBase:         0.4,
		Results:        10,
		MetadataDoclen: "doclen",
		structure:      f.Structure,
	}
}

// Instance holds this evaluation scheme entry's parameters (spec.md §4.6).
type Instance struct {
	K1, B                                  float64
	AvgDocLen                              float64
	MetadataDoclen                         string
	MaxDF                                  float64
	DistImm, DistClose, DistSentence, DistNear int
	Cluster                                float64
	FFBase                                 float64
	Struct                                 int
	Results                                int

	structure StructureSource
}

func (in *Instance) AddStringParameter(name, value string) error {
	if name == "doclen" {
		in.MetadataDoclen = value
		return nil
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("bm25pff: parameter %q expects a numeric value: %w", name, err)
	}
	return in.AddNumericParameter(name, v)
}

func (in *Instance) AddNumericParameter(name string, value float64) error {
	switch name {
	case "k1":
		in.K1 = value
	case "b":
		in.B = value
	case "avgdoclen":
		in.AvgDocLen = value
	case "maxdf":
		in.MaxDF = value
	case "dist_imm":
		in.DistImm = int(value)
	case "dist_close":
		in.DistClose = int(value)
	case "dist_sentence":
		in.DistSentence = int(value)
	case "dist_near":
		in.DistNear = int(value)
	case "cluster":
		in.Cluster = value
	case "ffbase":
		in.FFBase = value
	case "struct":
		in.Struct = int(value)
	case "results":
		in.Results = int(value)
	default:
		return fmt.Errorf("bm25pff: unknown parameter %q", name)
	}
	return nil
}

func (in *Instance) CreateFunctionContext(md *metadata.Table, nofCollectionDocuments int) (weighting.FunctionContext, error) {
	return &Context{inst: in, md: md, n: nofCollectionDocuments}, nil
}

type feature struct {
	itr join.PostingIterator
	idf float64
	wgt float64
}

// Context is bound once per evaluation run.
type Context struct {
	inst     *Instance
	md       *metadata.Table
	n        int
	features []feature
	eosItr   join.PostingIterator // optional sentence-boundary posting (spec.md §4.6 "sentence")
}

// AddWeightingFeature binds a query feature ("match") or, optionally, the
// sentence-boundary posting ("eos") the proximity bands use to stop the
// sentence band at a sentence boundary (spec.md §4.6's `sentence` band).
func (c *Context) AddWeightingFeature(name string, itr join.PostingIterator, weight float64, df int) error {
	if name == "eos" {
		c.eosItr = itr
		return nil
	}
	if name != "match" {
		return fmt.Errorf("bm25pff: unknown weighting feature parameter %q", name)
	}
	if df < 0 {
		df = itr.DocumentFrequency()
	}
	idf := IdfOf(c.n, df)
	c.features = append(c.features, feature{itr: itr, idf: idf, wgt: weight})
	return nil
}

// IdfOf computes IDF(f) = max(0.00001, log10((N-df+0.5)/(df+0.5))), spec.md
// §4.6. Exported for internal/weighting/matchphrase's window scoring, which
// weights each occurrence by the same IDF of its matched feature.
func IdfOf(n, df int) float64 {
	v := math.Log10((float64(n)-float64(df)+0.5)/(float64(df)+0.5))
	if v < 0.00001 {
		v = 0.00001
	}
	return v
}

// Occurrence is one matched position of one feature within a document.
// Exported so internal/weighting/matchphrase can reuse the same
// per-position touch-weight formula (TouchWeightAt) when scoring summary
// windows, rather than re-deriving it.
type Occurrence struct {
	FeatIdx int
	Pos     uint16
}

// Call implements spec.md §4.6. For single-feature queries it degrades to
// ordinary BM25 over the whole document (invariant 7); otherwise it scores
// each structure-derived field using the proximity-weighted feature
// frequency ff(f,F) = Σ W(p).
func (c *Context) Call(docno uint32) (float64, []weighting.WeightedField, error) {
	if len(c.features) == 0 {
		return 0, nil, nil
	}

	doclen := c.docLen(docno)

	if len(c.features) == 1 {
		return c.plainBM25(docno, doclen), nil, nil
	}

	occs := c.collectOccurrences(docno)
	if len(occs) == 0 {
		return 0, nil, nil
	}
	eos := c.collectEOS(docno)

	var block *structblock.StructBlock
	if c.inst.structure != nil {
		block = c.inst.structure(docno)
	}
	fields := fieldsFor(block, doclen)

	var total float64
	var weighted []weighting.WeightedField
	nq := len(c.features)
	for _, field := range fields {
		var fw float64
		for fi, ft := range c.features {
			ff := sumWindowWeight(occs, eos, block, fi, nq, field, c.inst)
			if ff == 0 {
				continue
			}
			flen := float64(field.End - field.Start)
			rel := flen / relAvgDocLen(c.inst.AvgDocLen)
			fw += ft.wgt * ft.idf * (ff * (c.inst.K1 + 1)) / (ff + c.inst.K1*(1-c.inst.B+c.inst.B*rel))
		}
		if fw > 0 {
			weighted = append(weighted, weighting.WeightedField{Field: field, Weight: fw})
			total += fw
		}
	}
	if c.inst.Results > 0 && len(weighted) > c.inst.Results {
		weighted = weighted[:c.inst.Results]
	}
	return total, weighted, nil
}

func relAvgDocLen(avg float64) float64 {
	if avg <= 0 {
		return 1
	}
	return avg
}

// plainBM25 scores the single bound feature against the whole document,
// ff computed as the sum of occurrence frequencies across all positions
// (spec.md invariant 7: identical to weightingBM25.cpp's algorithm).
func (c *Context) plainBM25(docno uint32, doclen float64) float64 {
	ft := c.features[0]
	if ft.itr.SkipDoc(docno) != docno {
		return 0
	}
	var ff float64
	var pos uint16 = 1
	for {
		p := ft.itr.SkipPos(pos)
		if p == 0 {
			break
		}
		ff += float64(ft.itr.Frequency())
		if p == 65535 {
			break
		}
		pos = p + 1
	}
	if ff == 0 {
		return 0
	}
	rel := (doclen + 1) / relAvgDocLen(c.inst.AvgDocLen)
	return ft.wgt * ft.idf * (ff * (c.inst.K1 + 1)) / (ff + c.inst.K1*(1-c.inst.B+c.inst.B*rel))
}

func (c *Context) docLen(docno uint32) float64 {
	if c.md == nil {
		return 0
	}
	v, ok := c.md.Cell(docno, c.inst.MetadataDoclen)
	if !ok {
		return 0
	}
	return v
}

// collectOccurrences walks every feature's full position list for docno.
func (c *Context) collectOccurrences(docno uint32) []Occurrence {
	var out []Occurrence
	for fi, ft := range c.features {
		if ft.itr.SkipDoc(docno) != docno {
			continue
		}
		var pos uint16 = 1
		for {
			p := ft.itr.SkipPos(pos)
			if p == 0 {
				break
			}
			out = append(out, Occurrence{FeatIdx: fi, Pos: p})
			if p == 65535 {
				break
			}
			pos = p + 1
		}
	}
	return out
}

// collectEOS walks the optional sentence-boundary posting's full position
// list for docno, used to stop the sentence band at a sentence boundary. A
// nil or unbound iterator yields no boundaries, so the sentence band degrades
// to a plain distance cutoff (the whole document treated as one sentence).
func (c *Context) collectEOS(docno uint32) []uint16 {
	if c.eosItr == nil {
		return nil
	}
	return CollectPositions(c.eosItr, docno)
}

// CollectPositions walks one posting iterator's full position list for
// docno, or returns nil if the iterator doesn't match docno. Exported so
// internal/weighting/matchphrase can collect its "eos" posting with the same
// walk used here, rather than reimplementing the SkipPos loop.
func CollectPositions(itr join.PostingIterator, docno uint32) []uint16 {
	if itr == nil || itr.SkipDoc(docno) != docno {
		return nil
	}
	var out []uint16
	var pos uint16 = 1
	for {
		p := itr.SkipPos(pos)
		if p == 0 {
			break
		}
		out = append(out, p)
		if p == 65535 {
			break
		}
		pos = p + 1
	}
	return out
}

// fieldsFor returns the weighted fields: every structure content field plus
// the all-content (whole-document) field, or just the whole document if no
// structure is available (spec.md §4.6 "weighted fields").
func fieldsFor(block *structblock.StructBlock, doclen float64) []structblock.IndexRange {
	whole := structblock.IndexRange{Start: 1, End: uint16(doclen) + 1}
	if whole.End <= whole.Start {
		whole.End = whole.Start + 1
	}
	if block == nil {
		return []structblock.IndexRange{whole}
	}
	seen := map[structblock.IndexRange]bool{whole: true}
	fields := []structblock.IndexRange{whole}
	for _, d := range block.Declarations() {
		if !seen[d.Sink] {
			seen[d.Sink] = true
			fields = append(fields, d.Sink)
		}
	}
	return fields
}

// sumWindowWeight computes ff(f in F) = Σ_p∈F W(p) for feature fi's
// occurrences inside field, per spec.md §4.6's touch-weighting formula,
// gated by the minimum-cluster-size check (spec.md §4.6 "cluster"). Per
// qualifying occurrence the actual band computation is TouchWeightAt,
// shared with internal/weighting/matchphrase's window scoring.
func sumWindowWeight(occs []Occurrence, eos []uint16, block *structblock.StructBlock, fi, nq int, field structblock.IndexRange, p *Instance) float64 {
	var ff float64
	minCluster := int(math.Ceil(p.Cluster * float64(nq)))
	cfg := ProximityConfig{DistImm: p.DistImm, DistClose: p.DistClose, DistSentence: p.DistSentence, DistNear: p.DistNear, FFBase: p.FFBase}
	for _, o := range occs {
		if o.FeatIdx != fi || o.Pos < field.Start || o.Pos >= field.End {
			continue
		}
		if distinctNeighbours(occs, o, p.DistNear) < minCluster {
			continue
		}
		ff += TouchWeightAt(occs, eos, block, fi, nq, o.Pos, cfg)
	}
	return ff
}

// ProximityConfig carries the distance-band thresholds and ffbase floor
// TouchWeightAt needs, split out of *Instance so internal/weighting/
// matchphrase can drive the same formula without depending on bm25pff's
// full parameter set (k1, b, avgdoclen, ...).
type ProximityConfig struct {
	DistImm, DistClose, DistSentence, DistNear int
	FFBase                                     float64
}

// TouchWeightAt computes W(p) for the occurrence of feature fi at pos
// (spec.md §4.6): every other of the nq query features is bucketed into
// exactly one of five mutually-exclusive proximity bands around pos (imm,
// close, sentence, near, title — first one satisfied wins, closest distance
// first), then T1=imm+close, T2=T1+sentence, T3=T2+near+title, and
// W = (1-ffbase)·0.25·(I+T1²+T2²+T3²)+ffbase.
func TouchWeightAt(occs []Occurrence, eos []uint16, block *structblock.StructBlock, fi, nq int, pos uint16, cfg ProximityConfig) float64 {
	o := Occurrence{FeatIdx: fi, Pos: pos}
	var immCnt, closeCnt, sentCnt, nearCnt, titleCnt int
	var headerField structblock.IndexRange
	haveHeader := false
	for otherIdx := 0; otherIdx < nq; otherIdx++ {
		if otherIdx == fi {
			continue
		}
		if npos, dist, ok := nearestOccurrence(occs, o, otherIdx); ok {
			switch {
			case dist <= cfg.DistImm:
				immCnt++
				continue
			case dist <= cfg.DistClose:
				closeCnt++
				continue
			case dist <= cfg.DistSentence && !crossesEOS(o.Pos, npos, eos):
				sentCnt++
				continue
			case dist <= cfg.DistNear:
				nearCnt++
				continue
			}
		}
		if !haveHeader {
			headerField, haveHeader = headerFieldCovering(block, o.Pos)
		}
		if haveHeader && occursIn(occs, otherIdx, headerField) {
			titleCnt++
		}
	}

	i := 0.0
	if immCnt > 0 {
		i = 1
	}
	t1 := float64(immCnt + closeCnt)
	t2 := t1 + float64(sentCnt)
	t3 := t2 + float64(nearCnt+titleCnt)
	return (1-cfg.FFBase)*0.25*(i+t1*t1+t2*t2+t3*t3) + cfg.FFBase
}

// nearestOccurrence finds the occurrence of featIdx closest to o (either
// direction) and returns its position and distance.
func nearestOccurrence(occs []Occurrence, o Occurrence, featIdx int) (pos uint16, dist int, ok bool) {
	best := -1
	for _, other := range occs {
		if other.FeatIdx != featIdx {
			continue
		}
		d := int(other.Pos) - int(o.Pos)
		if d < 0 {
			d = -d
		}
		if best < 0 || d < best {
			best = d
			pos = other.Pos
		}
	}
	return pos, best, best >= 0
}

// crossesEOS reports whether a sentence-boundary posting falls strictly
// between a and b, in either order.
func crossesEOS(a, b uint16, eos []uint16) bool {
	lo, hi := a, b
	if lo > hi {
		lo, hi = hi, lo
	}
	for _, e := range eos {
		if e > lo && e < hi {
			return true
		}
	}
	return false
}

// headerFieldCovering returns the innermost structure header (Source) whose
// content (Sink) covers pos, used for the title-touch band (spec.md §4.6:
// "query feature occurs in the header whose content covers p").
func headerFieldCovering(block *structblock.StructBlock, pos uint16) (structblock.IndexRange, bool) {
	if block == nil {
		return structblock.IndexRange{}, false
	}
	var bestSource structblock.IndexRange
	var bestSize uint16
	found := false
	for _, d := range block.Declarations() {
		if d.Sink.Start <= pos && pos < d.Sink.End {
			size := d.Sink.End - d.Sink.Start
			if !found || size < bestSize {
				bestSource, bestSize, found = d.Source, size, true
			}
		}
	}
	return bestSource, found
}

// occursIn reports whether featIdx has any occurrence inside field.
func occursIn(occs []Occurrence, featIdx int, field structblock.IndexRange) bool {
	for _, o := range occs {
		if o.FeatIdx == featIdx && o.Pos >= field.Start && o.Pos < field.End {
			return true
		}
	}
	return false
}

func distinctNeighbours(occs []Occurrence, o Occurrence, dist int) int {
	seen := map[int]bool{o.FeatIdx: true}
	for _, other := range occs {
		d := int(other.Pos) - int(o.Pos)
		if d < 0 {
			d = -d
		}
		if d <= dist {
			seen[other.FeatIdx] = true
		}
	}
	return len(seen)
}
