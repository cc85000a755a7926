// Package forward implements the forward index (spec.md §3/§6): a
// per-document position → term reader, keyed 'F'+termtype+0x00+docno_range.
// Unlike the search-index posting blocks, forward-index positions must be
// unique within a document — no frequency accumulation (spec.md "Document
// builder contract").
package forward

import (
	"fmt"
	"sort"

	"github.com/strusgo/strusengine/internal/docindex"
	"github.com/strusgo/strusengine/internal/pack"
)

// Entry is one (position, term value) pair within a document.
type Entry struct {
	Position uint16
	Value    string
}

// DocEntry holds one document's forward-index entries, sorted ascending by
// position.
type DocEntry struct {
	Docno   docindex.Index
	Entries []Entry
}

// ForwardBlock is one blob covering a (termtype, docno-range) (spec.md §6).
type ForwardBlock struct {
	index docindex.Array
	docs  []DocEntry
}

// DocumentFrequency returns the number of documents this block covers.
func (f *ForwardBlock) DocumentFrequency() int { return len(f.docs) }

// Docs returns a copy of the block's per-document entry lists, sorted
// ascending by docno. Used by the storage layer to rebuild a block when
// merging new forward-index terms in, or splitting an over-full one.
func (f *ForwardBlock) Docs() []DocEntry {
	out := make([]DocEntry, len(f.docs))
	copy(out, f.docs)
	return out
}

// TermAt returns the term value at (docno, pos), or false if no forward
// entry exists there.
func (f *ForwardBlock) TermAt(docno docindex.Index, pos uint16) (string, bool) {
	var cursor docindex.Cursor
	found := f.index.SkipDoc(docno, &cursor)
	if found != docno {
		return "", false
	}
	ref := f.index.RefAt(cursor)
	entries := f.docs[ref].Entries
	i := sort.Search(len(entries), func(i int) bool { return entries[i].Position >= pos })
	if i < len(entries) && entries[i].Position == pos {
		return entries[i].Value, true
	}
	return "", false
}

// Builder accumulates forward-index entries before producing a ForwardBlock.
type Builder struct {
	byDoc map[docindex.Index]map[uint16]string
	order []docindex.Index
}

// NewBuilder creates an empty forward-block builder.
func NewBuilder() *Builder {
	return &Builder{byDoc: make(map[docindex.Index]map[uint16]string)}
}

// Add records one forward-index term. Returns an error if pos already has a
// value recorded for docno (forward-index positions must be unique).
func (b *Builder) Add(docno docindex.Index, pos uint16, value string) error {
	m, ok := b.byDoc[docno]
	if !ok {
		m = make(map[uint16]string)
		b.byDoc[docno] = m
		b.order = append(b.order, docno)
	}
	if _, exists := m[pos]; exists {
		return fmt.Errorf("forward: duplicate forward-index position %d for docno %d", pos, docno)
	}
	m[pos] = value
	return nil
}

// Build assembles the accumulated entries into a ForwardBlock.
func (b *Builder) Build() (*ForwardBlock, error) {
	docnos := append([]docindex.Index(nil), b.order...)
	sort.Slice(docnos, func(i, j int) bool { return docnos[i] < docnos[j] })

	var idxBuilder docindex.Builder
	docs := make([]DocEntry, 0, len(docnos))
	for _, d := range docnos {
		if err := idxBuilder.Add(d, uint16(len(docs))); err != nil {
			return nil, fmt.Errorf("forward: %w", err)
		}
		m := b.byDoc[d]
		positions := make([]uint16, 0, len(m))
		for p := range m {
			positions = append(positions, p)
		}
		sort.Slice(positions, func(i, j int) bool { return positions[i] < positions[j] })
		entries := make([]Entry, len(positions))
		for i, p := range positions {
			entries[i] = Entry{Position: p, Value: m[p]}
		}
		docs = append(docs, DocEntry{Docno: d, Entries: entries})
	}
	return &ForwardBlock{index: idxBuilder.Build(), docs: docs}, nil
}

// Marshal serializes the block to bytes for the 'F'-prefixed KV value: a
// varint-prefixed sequence of (docno-delta, entry-count, [position-delta,
// value-length, value-bytes]...) records, mirroring internal/posting's
// PostingBlock wire format.
func (f *ForwardBlock) Marshal() []byte {
	buf := make([]byte, 0, 128)
	buf = pack.PutUvarint(buf, uint64(len(f.docs)))
	var prevDoc docindex.Index
	for _, d := range f.docs {
		buf = pack.PutUvarint(buf, uint64(d.Docno-prevDoc))
		prevDoc = d.Docno
		buf = pack.PutUvarint(buf, uint64(len(d.Entries)))
		prevPos := uint16(0)
		for _, e := range d.Entries {
			buf = pack.PutUvarint(buf, uint64(e.Position-prevPos))
			prevPos = e.Position
			valBytes := []byte(e.Value)
			buf = pack.PutUvarint(buf, uint64(len(valBytes)))
			buf = append(buf, valBytes...)
		}
	}
	return buf
}

// Unmarshal decodes a blob produced by Marshal.
func Unmarshal(data []byte) (*ForwardBlock, error) {
	off := 0
	readUvarint := func(section string) (uint64, error) {
		if off >= len(data) {
			return 0, fmt.Errorf("forward: corrupt block: truncated %s at offset %d", section, off)
		}
		v, n := pack.Uvarint(data[off:])
		if n <= 0 {
			return 0, fmt.Errorf("forward: corrupt block: bad varint in %s at offset %d", section, off)
		}
		off += n
		return v, nil
	}

	nDocs, err := readUvarint("doc count")
	if err != nil {
		return nil, err
	}
	var idxBuilder docindex.Builder
	docs := make([]DocEntry, 0, nDocs)
	var prevDoc docindex.Index
	for i := uint64(0); i < nDocs; i++ {
		delta, err := readUvarint("docno delta")
		if err != nil {
			return nil, err
		}
		docno := prevDoc + docindex.Index(delta)
		prevDoc = docno
		nEntries, err := readUvarint("entry count")
		if err != nil {
			return nil, err
		}
		entries := make([]Entry, 0, nEntries)
		prevPos := uint16(0)
		for j := uint64(0); j < nEntries; j++ {
			pd, err := readUvarint("position delta")
			if err != nil {
				return nil, err
			}
			pos := prevPos + uint16(pd)
			prevPos = pos
			vlen, err := readUvarint("value length")
			if err != nil {
				return nil, err
			}
			if uint64(len(data)-off) < vlen {
				return nil, fmt.Errorf("forward: corrupt block: truncated value at doc %d entry %d", i, j)
			}
			value := string(data[off : off+int(vlen)])
			off += int(vlen)
			entries = append(entries, Entry{Position: pos, Value: value})
		}
		if err := idxBuilder.Add(docno, uint16(len(docs))); err != nil {
			return nil, fmt.Errorf("forward: %w", err)
		}
		docs = append(docs, DocEntry{Docno: docno, Entries: entries})
	}
	return &ForwardBlock{index: idxBuilder.Build(), docs: docs}, nil
}
