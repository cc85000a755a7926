package structblock

import (
	"fmt"
	"sort"

	"github.com/strusgo/strusengine/internal/pack"
)

type fieldRecord struct {
	Range IndexRange
	Links []Link
}

// instance reconstructs one (structno, idx) structure: one header plus its
// sinks (spec.md §3). StructBlock keeps this alongside the level/field
// layout so declarations() doesn't need to re-derive instances by scanning
// every Link (see DESIGN.md for why this duplicates information rather than
// bit-packing a single source of truth).
type instance struct {
	source IndexRange
	sinks  []IndexRange
}

// StructBlock is the read-side view of one document's packed structure
// relations (spec.md §4.1).
type StructBlock struct {
	Docno  uint32
	levels [][]fieldRecord // index L -> fields at level L, sorted by End ascending
	inst   map[instKey]instance
}

// fields enumerates all distinct fields across every level (spec.md §4.1
// "fields() -> IndexRange[]", used for test oracles).
func (b *StructBlock) Fields() []IndexRange {
	var out []IndexRange
	for _, recs := range b.levels {
		for _, r := range recs {
			out = append(out, r.Range)
		}
	}
	return out
}

// Declarations rebuilds the (structno, source, sink) triples: exactly one
// header per (structno, idx) and at least one sink (spec.md §4.1).
func (b *StructBlock) Declarations() []Declaration {
	var out []Declaration
	// Deterministic order: by structno then idx.
	keys := make([]instKey, 0, len(b.inst))
	for k := range b.inst {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].structno != keys[j].structno {
			return keys[i].structno < keys[j].structno
		}
		return keys[i].idx < keys[j].idx
	})
	for _, k := range keys {
		inst := b.inst[k]
		for _, sink := range inst.sinks {
			out = append(out, Declaration{Structno: k.structno, Source: inst.source, Sink: sink})
		}
	}
	return out
}

// NofFieldLevels reports how many levels this block actually uses.
func (b *StructBlock) NofFieldLevels() int { return len(b.levels) }

// FieldScanner iterates the fields of one level (spec.md §4.1
// "fieldscanner(level)"), supporting skip-based search that favors a linear
// advance over nearby targets and falls back to binary search otherwise
// (internal/pack.SkipScanArray), matching the posting/docindex skip style.
type FieldScanner struct {
	recs []fieldRecord
	ends fieldEnds
	idx  int
}

// fieldEnds adapts a fieldRecord slice's End values to pack.Ordered[uint16].
type fieldEnds []uint16

func (e fieldEnds) Len() int                  { return len(e) }
func (e fieldEnds) Less(i int, k uint16) bool { return e[i] < k }

// FieldScanner returns a scanner over level L, or an empty scanner if the
// level is unused.
func (b *StructBlock) FieldScanner(level int) *FieldScanner {
	if level < 0 || level >= len(b.levels) {
		return &FieldScanner{}
	}
	return &FieldScanner{recs: b.levels[level]}
}

// Skip returns the first field at this level whose End > pos (i.e. the
// field containing pos, or the next field strictly after pos if none
// contains it), or the zero IndexRange if the level is exhausted (spec.md
// §4.1 "skip semantics").
func (s *FieldScanner) Skip(pos uint16) (IndexRange, bool) {
	if len(s.recs) == 0 {
		return IndexRange{}, false
	}
	if s.ends == nil {
		s.ends = make(fieldEnds, len(s.recs))
		for i, r := range s.recs {
			s.ends[i] = r.Range.End
		}
	}
	if pos == 65535 {
		s.idx = len(s.recs)
		return IndexRange{}, false
	}
	i := pack.SkipScanArray(s.ends, s.idx, pos+1)
	if i >= len(s.recs) {
		s.idx = len(s.recs)
		return IndexRange{}, false
	}
	s.idx = i
	return s.recs[i].Range, true
}

// GetLinks returns the links of the field most recently returned by Skip.
func (s *FieldScanner) GetLinks() []Link {
	if s.idx < 0 || s.idx >= len(s.recs) {
		return nil
	}
	return s.recs[s.idx].Links
}

// Marshal serializes the block to a self-contained byte blob (one 'S'-keyed
// KV value, spec.md §6). The wire layout records the same semantic content
// as spec.md §4.1 (levels of non-overlapping fields, their links, and the
// header/sink instance table) but is expressed as a varint stream rather
// than spec.md's exact bit-packed StructureField/LinkBasePointer/
// StructBlockLink arrays — see DESIGN.md for why the byte-for-byte density
// optimizations (Enum/Repeat/PackedByte/PackedShort field encodings) are not
// reproduced.
func (b *StructBlock) Marshal() []byte {
	buf := make([]byte, 0, 256)

	putUvarint := func(v uint64) {
		buf = pack.PutUvarint(buf, v)
	}

	putUvarint(uint64(b.Docno))
	putUvarint(uint64(len(b.levels)))
	for level, recs := range b.levels {
		putUvarint(uint64(level))
		putUvarint(uint64(len(recs)))
		for _, r := range recs {
			putUvarint(uint64(r.Range.Start))
			putUvarint(uint64(r.Range.End))
			putUvarint(uint64(len(r.Links)))
			for _, l := range r.Links {
				flags := byte(l.Structno) << 1
				if l.Head {
					flags |= 1
				}
				buf = append(buf, flags)
				putUvarint(uint64(l.Idx))
			}
		}
	}

	keys := make([]instKey, 0, len(b.inst))
	for k := range b.inst {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].structno != keys[j].structno {
			return keys[i].structno < keys[j].structno
		}
		return keys[i].idx < keys[j].idx
	})
	putUvarint(uint64(len(keys)))
	for _, k := range keys {
		inst := b.inst[k]
		putUvarint(uint64(k.structno))
		putUvarint(uint64(k.idx))
		putUvarint(uint64(inst.source.Start))
		putUvarint(uint64(inst.source.End))
		putUvarint(uint64(len(inst.sinks)))
		for _, sink := range inst.sinks {
			putUvarint(uint64(sink.Start))
			putUvarint(uint64(sink.End))
		}
	}
	return buf
}

// Unmarshal decodes a blob produced by Marshal. Any length mismatch or
// structure number outside [1, MaxNofStructNo] is reported as a corruption
// error naming the offending section (spec.md §4.1 "failure semantics").
func Unmarshal(data []byte) (*StructBlock, error) {
	pos := 0
	readUvarint := func(section string) (uint64, error) {
		if pos >= len(data) {
			return 0, fmt.Errorf("structblock: corrupt block: truncated %s at offset %d", section, pos)
		}
		v, n := pack.Uvarint(data[pos:])
		if n <= 0 {
			return 0, fmt.Errorf("structblock: corrupt block: bad varint in %s at offset %d", section, pos)
		}
		pos += n
		return v, nil
	}

	docno, err := readUvarint("docno")
	if err != nil {
		return nil, err
	}
	nLevels, err := readUvarint("level count")
	if err != nil {
		return nil, err
	}
	b := &StructBlock{Docno: uint32(docno), inst: make(map[instKey]instance)}
	if nLevels > MaxFieldLevels {
		return nil, fmt.Errorf("structblock: corrupt block: level count %d exceeds MaxFieldLevels", nLevels)
	}
	b.levels = make([][]fieldRecord, nLevels)

	for i := uint64(0); i < nLevels; i++ {
		level, err := readUvarint("level index")
		if err != nil {
			return nil, err
		}
		if level >= nLevels {
			return nil, fmt.Errorf("structblock: corrupt block: level index %d out of range", level)
		}
		nFields, err := readUvarint("field count")
		if err != nil {
			return nil, err
		}
		recs := make([]fieldRecord, 0, nFields)
		for f := uint64(0); f < nFields; f++ {
			start, err := readUvarint("field start")
			if err != nil {
				return nil, err
			}
			end, err := readUvarint("field end")
			if err != nil {
				return nil, err
			}
			nLinks, err := readUvarint("link count")
			if err != nil {
				return nil, err
			}
			links := make([]Link, 0, nLinks)
			for l := uint64(0); l < nLinks; l++ {
				if pos >= len(data) {
					return nil, fmt.Errorf("structblock: corrupt block: truncated link flags at offset %d", pos)
				}
				flags := data[pos]
				pos++
				idx, err := readUvarint("link idx")
				if err != nil {
					return nil, err
				}
				structno := flags >> 1
				if structno < 1 || int(structno) > MaxNofStructNo {
					return nil, fmt.Errorf("structblock: corrupt block: structno %d out of range at offset %d", structno, pos)
				}
				links = append(links, Link{Head: flags&1 != 0, Structno: structno, Idx: uint16(idx)})
			}
			recs = append(recs, fieldRecord{Range: IndexRange{Start: uint16(start), End: uint16(end)}, Links: links})
		}
		b.levels[level] = recs
	}

	nInst, err := readUvarint("instance count")
	if err != nil {
		return nil, err
	}
	for i := uint64(0); i < nInst; i++ {
		structno, err := readUvarint("instance structno")
		if err != nil {
			return nil, err
		}
		idx, err := readUvarint("instance idx")
		if err != nil {
			return nil, err
		}
		srcStart, err := readUvarint("instance source start")
		if err != nil {
			return nil, err
		}
		srcEnd, err := readUvarint("instance source end")
		if err != nil {
			return nil, err
		}
		nSinks, err := readUvarint("instance sink count")
		if err != nil {
			return nil, err
		}
		sinks := make([]IndexRange, 0, nSinks)
		for s := uint64(0); s < nSinks; s++ {
			sStart, err := readUvarint("sink start")
			if err != nil {
				return nil, err
			}
			sEnd, err := readUvarint("sink end")
			if err != nil {
				return nil, err
			}
			sinks = append(sinks, IndexRange{Start: uint16(sStart), End: uint16(sEnd)})
		}
		if structno < 1 || int(structno) > MaxNofStructNo {
			return nil, fmt.Errorf("structblock: corrupt block: instance structno %d out of range", structno)
		}
		b.inst[instKey{structno: int(structno), idx: int(idx)}] = instance{
			source: IndexRange{Start: uint16(srcStart), End: uint16(srcEnd)},
			sinks:  sinks,
		}
	}
	return b, nil
}
