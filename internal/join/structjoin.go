package join

// StructSequence implements spec.md §4.3 "struct_sequence(delimiter, a1..an,
// range)": a Sequence match that is additionally rejected if any position of
// delimiter lies between the first and last matched position.
type StructSequence struct {
	inner     *Sequence
	delimiter PostingIterator
}

// NewStructSequence wraps a sequence join with a delimiter posting; nil
// delimiter degenerates to a plain sequence.
func NewStructSequence(rng int, delimiter PostingIterator, inputs ...PostingIterator) *StructSequence {
	return &StructSequence{inner: NewSequence(rng, inputs...), delimiter: delimiter}
}

func (s *StructSequence) SkipDoc(docno uint32) uint32 {
	found := s.inner.SkipDoc(docno)
	if found != 0 && s.delimiter != nil {
		s.delimiter.SkipDoc(found)
	}
	return found
}

func (s *StructSequence) SkipDocCandidate(docno uint32) uint32 {
	return s.inner.SkipDocCandidate(docno)
}

func (s *StructSequence) SkipPos(pos uint16) uint16 {
	candidate := pos
	for {
		p := s.inner.SkipPos(candidate)
		if p == 0 {
			return 0
		}
		last := p + uint16(s.inner.Length()) - 1
		if s.delimiter == nil {
			return p
		}
		d := s.delimiter.SkipPos(p)
		if d == 0 || d > last {
			return p
		}
		candidate = p + 1
	}
}

func (s *StructSequence) Frequency() uint16      { return s.inner.Frequency() }
func (s *StructSequence) Length() int            { return s.inner.Length() }
func (s *StructSequence) DocumentFrequency() int { return s.inner.DocumentFrequency() }

// StructWithin implements spec.md §4.3 "struct_within(delimiter, a1..an,
// range)": a Within match additionally rejected if any position of
// delimiter lies between the first and last matched position.
type StructWithin struct {
	inner     *Within
	delimiter PostingIterator
}

// NewStructWithin wraps a within join with a delimiter posting; nil
// delimiter degenerates to a plain within.
func NewStructWithin(rng int, delimiter PostingIterator, inputs ...PostingIterator) *StructWithin {
	return &StructWithin{inner: NewWithin(rng, inputs...), delimiter: delimiter}
}

func (s *StructWithin) SkipDoc(docno uint32) uint32 {
	found := s.inner.SkipDoc(docno)
	if found != 0 && s.delimiter != nil {
		s.delimiter.SkipDoc(found)
	}
	return found
}

func (s *StructWithin) SkipDocCandidate(docno uint32) uint32 {
	return s.inner.SkipDocCandidate(docno)
}

func (s *StructWithin) SkipPos(pos uint16) uint16 {
	candidate := pos
	for {
		p := s.inner.SkipPos(candidate)
		if p == 0 {
			return 0
		}
		last := p + uint16(s.inner.Length()) - 1
		if s.delimiter == nil {
			return p
		}
		d := s.delimiter.SkipPos(p)
		if d == 0 || d > last {
			return p
		}
		candidate = p + 1
	}
}

func (s *StructWithin) Frequency() uint16      { return s.inner.Frequency() }
func (s *StructWithin) Length() int            { return s.inner.Length() }
func (s *StructWithin) DocumentFrequency() int { return s.inner.DocumentFrequency() }
