package posting

import (
	"sort"

	"github.com/strusgo/strusengine/internal/docindex"
)

// Builder accumulates postings for one (termtype,termvalue) across possibly
// many documents, collapsing duplicate (docno,position) pairs into
// accumulated frequency (spec.md §3 Posting).
type Builder struct {
	byDoc map[docindex.Index]map[uint16]uint16
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{byDoc: make(map[docindex.Index]map[uint16]uint16)}
}

// Add records one occurrence of the term at (docno,position).
func (b *Builder) Add(docno docindex.Index, position uint16) {
	m, ok := b.byDoc[docno]
	if !ok {
		m = make(map[uint16]uint16)
		b.byDoc[docno] = m
	}
	m[position]++
}

// AddN records freq occurrences of the term at (docno,position) at once,
// used by the storage layer to fold an already-aggregated existing block
// back into a builder when merging in new postings.
func (b *Builder) AddN(docno docindex.Index, position uint16, freq uint16) {
	m, ok := b.byDoc[docno]
	if !ok {
		m = make(map[uint16]uint16)
		b.byDoc[docno] = m
	}
	m[position] += freq
}

// Build finalizes the accumulated postings into an immutable PostingBlock,
// sorted ascending by docno then by position.
func (b *Builder) Build() *PostingBlock {
	docnos := make([]docindex.Index, 0, len(b.byDoc))
	for d := range b.byDoc {
		docnos = append(docnos, d)
	}
	sort.Slice(docnos, func(i, j int) bool { return docnos[i] < docnos[j] })

	var idxBuilder docindex.Builder
	docs := make([]DocEntry, 0, len(docnos))
	for i, docno := range docnos {
		posMap := b.byDoc[docno]
		positions := make([]uint16, 0, len(posMap))
		for p := range posMap {
			positions = append(positions, p)
		}
		sort.Slice(positions, func(i, j int) bool { return positions[i] < positions[j] })
		occs := make([]Occurrence, 0, len(positions))
		for _, p := range positions {
			occs = append(occs, Occurrence{Position: p, Freq: posMap[p]})
		}
		_ = idxBuilder.Add(docno, uint16(i))
		docs = append(docs, DocEntry{Docno: docno, Occurrences: occs})
	}
	return &PostingBlock{index: idxBuilder.Build(), docs: docs}
}

// Empty reports whether any posting was accumulated.
func (b *Builder) Empty() bool {
	return len(b.byDoc) == 0
}
