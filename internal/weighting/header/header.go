// Package header implements the "header" summarizer (spec.md §4.5): the
// companion to the "title" weighting function, emitting for each result
// field the labeled title path from outermost to innermost header, indexed
// by depth. Grounded on the same structblock.Declarations hierarchy walk
// internal/weighting/title uses to find a field's covering headers, and on
// internal/forward for recovering the header's display text from its
// forward-index positions.
package header

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/strusgo/strusengine/internal/join"
	"github.com/strusgo/strusengine/internal/metadata"
	"github.com/strusgo/strusengine/internal/structblock"
	"github.com/strusgo/strusengine/internal/weighting"
)

// StructureSource supplies the structure block for one document, mirroring
// internal/weighting/title's StructureSource.
type StructureSource func(docno uint32) *structblock.StructBlock

// ForwardSource recovers the forward-index term value at one document
// position, used to render a header field's text. A nil source makes the
// summarizer emit field boundaries instead of decoded text.
type ForwardSource func(docno uint32, pos uint16) (string, bool)

const defaultMaxWords = 32

// Function is the "header" summarizer factory.
type Function struct {
	Structure StructureSource
	Forward   ForwardSource
}

func (Function) Name() string { return "header" }

func (f Function) CreateInstance() weighting.SummarizerInstance {
	return &Instance{maxWords: defaultMaxWords, structure: f.Structure, forward: f.Forward}
}

// Instance holds this summarizer entry's parameters.
type Instance struct {
	maxWords  int // caps how many forward-index positions build one label
	structure StructureSource
	forward   ForwardSource
}

func (in *Instance) AddStringParameter(name, value string) error {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("header: parameter %q expects a numeric value: %w", name, err)
	}
	return in.AddNumericParameter(name, v)
}

func (in *Instance) AddNumericParameter(name string, value float64) error {
	switch name {
	case "maxwords":
		in.maxWords = int(value)
	default:
		return fmt.Errorf("header: unknown parameter %q", name)
	}
	return nil
}

func (in *Instance) CreateSummarizerContext(md *metadata.Table) (weighting.SummarizerContext, error) {
	return &Context{inst: in}, nil
}

// Context is bound once per evaluation run; the header summarizer needs no
// bound features, since it reads the title path purely from structure.
type Context struct {
	inst *Instance
}

// AddSummarizationFeature accepts the conventional "match" feature role for
// parity with the weighting-side contexts, though this summarizer does not
// use it: the title path it emits comes entirely from document structure.
func (c *Context) AddSummarizationFeature(name string, itr join.PostingIterator, weight float64) error {
	if name != "match" {
		return fmt.Errorf("header: unknown summarization feature parameter %q", name)
	}
	return nil
}

// Call walks the chain of headers whose content covers field, outermost
// first, and emits one SummaryElement per depth carrying that header's
// decoded label text.
func (c *Context) Call(docno uint32, field *structblock.IndexRange) ([]weighting.SummaryElement, error) {
	if field == nil || c.inst.structure == nil {
		return nil, nil
	}
	block := c.inst.structure(docno)
	if block == nil {
		return nil, nil
	}

	headers := headersCovering(block, *field)
	if len(headers) == 0 {
		return nil, nil
	}

	out := make([]weighting.SummaryElement, 0, len(headers))
	for depth, h := range headers {
		label := c.labelOf(docno, h)
		if label == "" {
			continue
		}
		out = append(out, weighting.SummaryElement{Name: "header", Value: label, Index: depth})
	}
	return out, nil
}

// header is one candidate title-path entry: a structure header (Source)
// whose content (Sink) covers the result field, at a given nesting depth.
type header struct {
	field structblock.IndexRange
	depth int
}

// headersCovering collects every distinct header whose content covers
// field, sorted outermost (shallowest) first. Depth is the same
// "how many OTHER structure instances cover this header" count
// internal/weighting/title uses to order its own hierarchy chain.
func headersCovering(block *structblock.StructBlock, field structblock.IndexRange) []header {
	seen := make(map[structblock.IndexRange]bool)
	var out []header
	for _, d := range block.Declarations() {
		if !contains(d.Sink, field) || seen[d.Source] {
			continue
		}
		seen[d.Source] = true
		out = append(out, header{field: d.Source, depth: hierarchyOf(block, d.Source)})
	}
	sortByDepth(out)
	return out
}

// hierarchyOf counts how many OTHER structure instances' content fields
// cover field, identical in spirit to internal/weighting/title's hierarchyOf.
func hierarchyOf(block *structblock.StructBlock, field structblock.IndexRange) int {
	count := 0
	for _, d := range block.Declarations() {
		if d.Source != field && contains(d.Sink, field) {
			count++
		}
	}
	return count
}

func contains(outer, inner structblock.IndexRange) bool {
	return outer.Start <= inner.Start && inner.End <= outer.End
}

func sortByDepth(headers []header) {
	for i := 1; i < len(headers); i++ {
		for j := i; j > 0 && headers[j].depth < headers[j-1].depth; j-- {
			headers[j], headers[j-1] = headers[j-1], headers[j]
		}
	}
}

// labelOf joins the forward-index term values found across h's position
// range into one display string, capped at maxWords terms.
func (c *Context) labelOf(docno uint32, h header) string {
	if c.inst.forward == nil {
		return ""
	}
	var words []string
	for pos := h.field.Start; pos < h.field.End && len(words) < c.inst.maxWords; pos++ {
		if v, ok := c.inst.forward(docno, pos); ok {
			words = append(words, v)
		}
	}
	return strings.Join(words, " ")
}
