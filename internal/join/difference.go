package join

// Difference implements spec.md §4.3 "difference(a,b, range)": matches a's
// occurrences that have no occurrence of b within range positions of them
// (range == 0 requires an exact position match in b to exclude). Document
// selection is driven entirely by a; b only prunes positions (and can
// exclude a whole document if every one of a's positions collides with b).
type Difference struct {
	a, b PostingIterator
	rng  int

	curDoc  uint32
	bOnDoc  bool
	matchAt uint16
}

// NewDifference builds a difference operator: matches of a minus any that
// collide with b within range positions.
func NewDifference(rng int, a, b PostingIterator) *Difference {
	return &Difference{a: a, b: b, rng: rng}
}

func (d *Difference) SkipDoc(docno uint32) uint32 {
	found := d.a.SkipDoc(docno)
	if found == 0 {
		d.curDoc = 0
		d.bOnDoc = false
		return 0
	}
	d.curDoc = found
	d.bOnDoc = d.b.SkipDoc(found) == found
	return found
}

func (d *Difference) SkipDocCandidate(docno uint32) uint32 {
	return d.a.SkipDocCandidate(docno)
}

func (d *Difference) collides(p uint16) bool {
	if !d.bOnDoc {
		return false
	}
	lo := uint16(0)
	if int(p) > d.rng {
		lo = p - uint16(d.rng)
	}
	bp := d.b.SkipPos(lo)
	if bp == 0 {
		return false
	}
	diff := int(bp) - int(p)
	if diff < 0 {
		diff = -diff
	}
	return diff <= d.rng
}

func (d *Difference) SkipPos(pos uint16) uint16 {
	if d.curDoc == 0 {
		return 0
	}
	candidate := pos
	for {
		p := d.a.SkipPos(candidate)
		if p == 0 {
			return 0
		}
		if !d.collides(p) {
			d.matchAt = p
			return p
		}
		candidate = p + 1
	}
}

func (d *Difference) Frequency() uint16 { return d.a.Frequency() }

func (d *Difference) Length() int { return d.a.Length() }

func (d *Difference) DocumentFrequency() int { return d.a.DocumentFrequency() }
