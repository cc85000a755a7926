// Package posting implements the PostingBlock family from spec.md §3/§4:
// positional posting lists for one (termtype,termvalue) stored as a
// DocIndexNode map plus a per-document packed position list and
// term-frequency aggregation.
package posting

import (
	"fmt"

	"github.com/strusgo/strusengine/internal/docindex"
	"github.com/strusgo/strusengine/internal/pack"
)

// Occurrence is one (position,frequency) pair: frequency accumulates when
// duplicate postings land on the same position (spec.md §3 Posting:
// "Duplicates at the same position accumulate feature frequency but
// collapse for positional enumeration").
type Occurrence struct {
	Position uint16
	Freq     uint16
}

// DocEntry holds one document's occurrences within a PostingBlock, sorted
// ascending by Position.
type DocEntry struct {
	Docno       docindex.Index
	Occurrences []Occurrence
}

// PostingBlock is the immutable, queryable unit for one
// (termtype,termvalue,docno-range), matching spec.md's 'T' key family.
type PostingBlock struct {
	index docindex.Array
	docs  []DocEntry
}

// DocumentFrequency returns the number of distinct documents carrying this
// term in the block.
func (p *PostingBlock) DocumentFrequency() int {
	return len(p.docs)
}

// Docs returns a copy of the block's per-document occurrence lists, sorted
// ascending by docno. Used by the storage layer to rebuild a block when
// merging new postings into existing ones, or splitting an over-full one.
func (p *PostingBlock) Docs() []DocEntry {
	out := make([]DocEntry, len(p.docs))
	copy(out, p.docs)
	return out
}

// LastDoc returns the highest docno present.
func (p *PostingBlock) LastDoc() docindex.Index {
	return p.index.LastDoc()
}

// DocAt returns the DocEntry for the doc addressed by a cursor.
func (p *PostingBlock) DocAt(c docindex.Cursor) DocEntry {
	ref := p.index.RefAt(c)
	return p.docs[ref]
}

// Marshal serializes the block to its on-disk byte representation: a
// varint-prefixed sequence of (docno-delta, occurrence-count,
// [position-delta, freq]...) records. This is an opaque blob from the KV
// store's point of view, per spec.md §6.
func (p *PostingBlock) Marshal() []byte {
	out := make([]byte, 0, 64)
	out = pack.PutUvarint(out, uint64(len(p.docs)))
	var prevDoc docindex.Index
	for _, d := range p.docs {
		out = pack.PutUvarint(out, uint64(d.Docno-prevDoc))
		prevDoc = d.Docno
		out = pack.PutUvarint(out, uint64(len(d.Occurrences)))
		var prevPos uint16
		for _, occ := range d.Occurrences {
			out = pack.PutUvarint(out, uint64(occ.Position-prevPos))
			prevPos = occ.Position
			out = pack.PutUvarint(out, uint64(occ.Freq))
		}
	}
	return out
}

// Unmarshal decodes a blob produced by Marshal.
func Unmarshal(data []byte) (*PostingBlock, error) {
	off := 0
	readUvarint := func() (uint64, error) {
		v, n := pack.Uvarint(data[off:])
		if n <= 0 {
			return 0, fmt.Errorf("posting: corrupt varint at offset %d", off)
		}
		off += n
		return v, nil
	}

	ndocs, err := readUvarint()
	if err != nil {
		return nil, err
	}
	docs := make([]DocEntry, 0, ndocs)
	var builder docindex.Builder
	var prevDoc docindex.Index
	for i := uint64(0); i < ndocs; i++ {
		delta, err := readUvarint()
		if err != nil {
			return nil, err
		}
		docno := prevDoc + docindex.Index(delta)
		prevDoc = docno
		nocc, err := readUvarint()
		if err != nil {
			return nil, err
		}
		occs := make([]Occurrence, 0, nocc)
		var prevPos uint16
		for j := uint64(0); j < nocc; j++ {
			pd, err := readUvarint()
			if err != nil {
				return nil, err
			}
			pos := prevPos + uint16(pd)
			prevPos = pos
			freq, err := readUvarint()
			if err != nil {
				return nil, err
			}
			occs = append(occs, Occurrence{Position: pos, Freq: uint16(freq)})
		}
		if err := builder.Add(docno, uint16(len(docs))); err != nil {
			return nil, fmt.Errorf("posting: %w", err)
		}
		docs = append(docs, DocEntry{Docno: docno, Occurrences: occs})
	}
	return &PostingBlock{index: builder.Build(), docs: docs}, nil
}
