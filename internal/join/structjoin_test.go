package join

import "testing"

func TestStructSequenceRejectsDelimiterBetween(t *testing.T) {
	a := newFake(map[uint32][]uint16{1: {1}})
	b := newFake(map[uint32][]uint16{1: {5}})
	delim := newFake(map[uint32][]uint16{1: {3}}) // falls between 1 and 5
	ss := NewStructSequence(10, delim, a, b)
	ss.SkipDoc(1)
	if got := ss.SkipPos(0); got != 0 {
		t.Fatalf("SkipPos(0) = %d, want 0 (delimiter at 3 sits between 1 and 5)", got)
	}
}

func TestStructSequenceAcceptsNoDelimiterBetween(t *testing.T) {
	a := newFake(map[uint32][]uint16{1: {1}})
	b := newFake(map[uint32][]uint16{1: {2}})
	delim := newFake(map[uint32][]uint16{1: {100}}) // outside [1,2]
	ss := NewStructSequence(10, delim, a, b)
	ss.SkipDoc(1)
	if got := ss.SkipPos(0); got != 1 {
		t.Fatalf("SkipPos(0) = %d, want 1 (no delimiter in range)", got)
	}
}

func TestStructWithinRejectsDelimiterBetween(t *testing.T) {
	a := newFake(map[uint32][]uint16{1: {6}})
	b := newFake(map[uint32][]uint16{1: {1}})
	delim := newFake(map[uint32][]uint16{1: {3}})
	sw := NewStructWithin(10, delim, a, b)
	sw.SkipDoc(1)
	if got := sw.SkipPos(0); got != 0 {
		t.Fatalf("SkipPos(0) = %d, want 0", got)
	}
}

func TestStructWithinNilDelimiterPassesThrough(t *testing.T) {
	a := newFake(map[uint32][]uint16{1: {6}})
	b := newFake(map[uint32][]uint16{1: {4}})
	sw := NewStructWithin(5, nil, a, b)
	sw.SkipDoc(1)
	if got := sw.SkipPos(0); got != 4 {
		t.Fatalf("SkipPos(0) = %d, want 4 (no delimiter, plain within match)", got)
	}
}
