package posting

import "github.com/strusgo/strusengine/internal/docindex"

// Iterator adapts a PostingBlock (or a concatenation of them across the
// docno-range key space) into the join.PostingIterator contract. A single
// term usually spans several PostingBlocks as the collection grows past
// one block's capacity; MultiIterator below chains them.
type Iterator struct {
	block   *PostingBlock
	cursor  docindex.Cursor
	curDoc  docindex.Index
	occIdx  int
	started bool
}

// NewIterator creates a leaf posting iterator over one block.
func NewIterator(block *PostingBlock) *Iterator {
	return &Iterator{block: block}
}

func (it *Iterator) SkipDoc(docno uint32) uint32 {
	if it.block == nil {
		return 0
	}
	if !it.started {
		it.started = true
	}
	found := it.block.index.SkipDoc(docno, &it.cursor)
	if found == 0 {
		it.curDoc = 0
		return 0
	}
	it.curDoc = found
	it.occIdx = -1
	return uint32(found)
}

// SkipDocCandidate is identical to SkipDoc for a leaf term iterator: there
// is no cheaper approximation below the DocIndexNode layer.
func (it *Iterator) SkipDocCandidate(docno uint32) uint32 {
	return it.SkipDoc(docno)
}

func (it *Iterator) SkipPos(pos uint16) uint16 {
	if it.curDoc == 0 {
		return 0
	}
	entry := it.block.DocAt(it.cursor)
	// Resume from occIdx+1 if already positioned, else search from start;
	// this keeps sequential scans O(1) amortized while still supporting
	// random re-skips backwards to pos 0 between documents.
	start := 0
	if it.occIdx >= 0 {
		start = it.occIdx
	}
	for i := start; i < len(entry.Occurrences); i++ {
		if entry.Occurrences[i].Position >= pos {
			it.occIdx = i
			return entry.Occurrences[i].Position
		}
	}
	it.occIdx = len(entry.Occurrences)
	return 0
}

func (it *Iterator) Frequency() uint16 {
	if it.curDoc == 0 || it.occIdx < 0 {
		return 0
	}
	entry := it.block.DocAt(it.cursor)
	if it.occIdx >= len(entry.Occurrences) {
		return 0
	}
	return entry.Occurrences[it.occIdx].Freq
}

func (it *Iterator) Length() int { return 1 }

func (it *Iterator) DocumentFrequency() int {
	if it.block == nil {
		return 0
	}
	return it.block.DocumentFrequency()
}

// MultiIterator chains several PostingBlocks covering disjoint, ascending
// docno ranges for the same (termtype,termvalue) into one iterator, the
// shape a term actually takes once the collection grows past one block.
type MultiIterator struct {
	blocks []*PostingBlock
	cur    int
	leaf   *Iterator
	df     int
}

// NewMultiIterator builds a chained iterator. Blocks must already be sorted
// ascending by their docno ranges.
func NewMultiIterator(blocks []*PostingBlock) *MultiIterator {
	df := 0
	for _, b := range blocks {
		df += b.DocumentFrequency()
	}
	m := &MultiIterator{blocks: blocks, df: df}
	if len(blocks) > 0 {
		m.leaf = NewIterator(blocks[0])
	}
	return m
}

func (m *MultiIterator) SkipDoc(docno uint32) uint32 {
	for m.cur < len(m.blocks) {
		if found := m.leaf.SkipDoc(docno); found != 0 {
			return found
		}
		m.cur++
		if m.cur < len(m.blocks) {
			m.leaf = NewIterator(m.blocks[m.cur])
		}
	}
	return 0
}

func (m *MultiIterator) SkipDocCandidate(docno uint32) uint32 { return m.SkipDoc(docno) }

func (m *MultiIterator) SkipPos(pos uint16) uint16 {
	if m.leaf == nil {
		return 0
	}
	return m.leaf.SkipPos(pos)
}

func (m *MultiIterator) Frequency() uint16 {
	if m.leaf == nil {
		return 0
	}
	return m.leaf.Frequency()
}

func (m *MultiIterator) Length() int { return 1 }

func (m *MultiIterator) DocumentFrequency() int { return m.df }
