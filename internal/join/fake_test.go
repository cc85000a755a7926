package join

// fakePosting is a minimal in-memory PostingIterator for exercising the join
// operators without needing a real posting block.
type fakePosting struct {
	docs map[uint32][]uint16
	docn []uint32 // ascending

	curDoc uint32
	pos    []uint16
	idx    int
}

func newFake(docs map[uint32][]uint16) *fakePosting {
	docn := make([]uint32, 0, len(docs))
	for d := range docs {
		docn = append(docn, d)
	}
	for i := 1; i < len(docn); i++ {
		for j := i; j > 0 && docn[j-1] > docn[j]; j-- {
			docn[j-1], docn[j] = docn[j], docn[j-1]
		}
	}
	return &fakePosting{docs: docs, docn: docn}
}

func (f *fakePosting) SkipDoc(docno uint32) uint32 {
	for _, d := range f.docn {
		if d >= docno {
			f.curDoc = d
			f.pos = f.docs[d]
			f.idx = 0
			return d
		}
	}
	f.curDoc = 0
	f.pos = nil
	return 0
}

func (f *fakePosting) SkipDocCandidate(docno uint32) uint32 { return f.SkipDoc(docno) }

func (f *fakePosting) SkipPos(pos uint16) uint16 {
	if f.curDoc == 0 {
		return 0
	}
	for f.idx < len(f.pos) {
		if f.pos[f.idx] >= pos {
			return f.pos[f.idx]
		}
		f.idx++
	}
	return 0
}

func (f *fakePosting) Frequency() uint16 { return 1 }

func (f *fakePosting) Length() int { return 1 }

func (f *fakePosting) DocumentFrequency() int { return len(f.docs) }
