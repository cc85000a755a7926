package structblock

import (
	"fmt"
	"sort"
)

// Builder implements StructBlockBuilder (spec.md §4.2): given a docno and a
// possibly-empty, arbitrarily-ordered sequence of structure declarations,
// produces a single StructBlock whose Declarations() returns exactly the
// input set (order-insensitive).
type Builder struct {
	byHeader  map[headerKey]int
	instances map[instKey]*instance
	nextIdx   int

	membersDropped int
	statistics     []string
}

// NewBuilder creates an empty structure-block builder.
func NewBuilder() *Builder {
	return &Builder{
		byHeader:  make(map[headerKey]int),
		instances: make(map[instKey]*instance),
	}
}

// Add ingests one (structno, source, sink) declaration, attaching it to an
// existing structure instance when the header matches, or allocating a new
// one (spec.md §4.2 step 1). Returns an error for capacity overflow or an
// overlap invariant violation (spec.md §3).
func (b *Builder) Add(d Declaration) error {
	if err := d.validate(); err != nil {
		return err
	}
	hk := headerKey{structno: d.Structno, source: d.Source}
	idx, ok := b.byHeader[hk]
	if !ok {
		if err := b.checkSourceOverlap(d.Structno, d.Source); err != nil {
			return err
		}
		if b.nextIdx >= MaxNofStructIdx {
			return fmt.Errorf("structblock: MaxNofStructIdx (%d) exceeded adding structno=%d source=%v", MaxNofStructIdx, d.Structno, d.Source)
		}
		b.nextIdx++
		idx = b.nextIdx
		b.byHeader[hk] = idx
		b.instances[instKey{d.Structno, idx}] = &instance{source: d.Source}
	}
	inst := b.instances[instKey{d.Structno, idx}]
	for _, s := range inst.sinks {
		if s == d.Sink {
			b.membersDropped++
			b.statistics = append(b.statistics, fmt.Sprintf("duplicate sink %v dropped for structno=%d idx=%d", d.Sink, d.Structno, idx))
			return nil // idempotent re-add of the same declaration
		}
		if s.overlaps(d.Sink) {
			return fmt.Errorf("structblock: sink %v overlaps existing sink %v of structno=%d idx=%d", d.Sink, s, d.Structno, idx)
		}
	}
	inst.sinks = append(inst.sinks, d.Sink)
	return nil
}

func (b *Builder) checkSourceOverlap(structno int, source IndexRange) error {
	for k, inst := range b.instances {
		if k.structno != structno {
			continue
		}
		if inst.source == source {
			continue
		}
		if inst.source.overlaps(source) || inst.source.contains(source) || source.contains(inst.source) {
			return fmt.Errorf("structblock: source %v overlaps existing instance source %v for structno=%d", source, inst.source, structno)
		}
	}
	return nil
}

// Build assembles the accumulated declarations into a StructBlock (spec.md
// §4.2 steps 2-4): compute field covers, then emit per-level field/link
// arrays plus the instance table.
func (b *Builder) Build(docno uint32) (*StructBlock, error) {
	fieldSet := make(map[IndexRange]struct{})
	for _, inst := range b.instances {
		fieldSet[inst.source] = struct{}{}
		for _, s := range inst.sinks {
			fieldSet[s] = struct{}{}
		}
	}
	fields := make([]IndexRange, 0, len(fieldSet))
	for f := range fieldSet {
		fields = append(fields, f)
	}

	levelOf, err := assignLevels(fields)
	if err != nil {
		return nil, err
	}

	links := make(map[IndexRange][]Link)
	insts := make(map[instKey]instance, len(b.instances))
	for k, inst := range b.instances {
		links[inst.source] = append(links[inst.source], Link{Head: true, Structno: uint8(k.structno), Idx: uint16(k.idx)})
		for _, s := range inst.sinks {
			links[s] = append(links[s], Link{Head: false, Structno: uint8(k.structno), Idx: uint16(k.idx)})
		}
		sinks := append([]IndexRange(nil), inst.sinks...)
		sort.Slice(sinks, func(i, j int) bool {
			if sinks[i].Start != sinks[j].Start {
				return sinks[i].Start < sinks[j].Start
			}
			return sinks[i].End < sinks[j].End
		})
		insts[k] = instance{source: inst.source, sinks: sinks}
	}

	nLevels := 0
	for _, l := range levelOf {
		if l+1 > nLevels {
			nLevels = l + 1
		}
	}
	levels := make([][]fieldRecord, nLevels)
	for f, l := range levelOf {
		levels[l] = append(levels[l], fieldRecord{Range: f, Links: links[f]})
	}
	for l := range levels {
		sort.Slice(levels[l], func(i, j int) bool { return levels[l][i].Range.End < levels[l][j].Range.End })
	}

	return &StructBlock{Docno: docno, levels: levels, inst: insts}, nil
}

// Len reports the number of structure instances accumulated so far.
func (b *Builder) Len() int { return len(b.instances) }

// Stats returns the builder's diagnostic counters (§5 supplement, grounded
// on structBlockBuilder.hpp's statisticsMessage()/membersDropped()).
type Stats struct {
	MembersDropped int
	Messages       []string
}

func (b *Builder) Stats() Stats {
	return Stats{MembersDropped: b.membersDropped, Messages: append([]string(nil), b.statistics...)}
}
