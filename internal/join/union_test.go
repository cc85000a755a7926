package join

import "testing"

func TestUnionSmallestDocAndPos(t *testing.T) {
	a := newFake(map[uint32][]uint16{1: {5, 9}, 4: {2}})
	b := newFake(map[uint32][]uint16{2: {1}, 4: {1, 7}})
	u := NewUnion(a, b)

	if got := u.SkipDoc(1); got != 1 {
		t.Fatalf("SkipDoc(1) = %d, want 1", got)
	}
	if got := u.SkipPos(0); got != 5 {
		t.Fatalf("SkipPos(0) = %d, want 5", got)
	}
	if got := u.SkipDoc(2); got != 2 {
		t.Fatalf("SkipDoc(2) = %d, want 2", got)
	}
	if got := u.SkipPos(0); got != 1 {
		t.Fatalf("SkipPos(0) on doc 2 = %d, want 1", got)
	}
	if got := u.SkipDoc(3); got != 4 {
		t.Fatalf("SkipDoc(3) = %d, want 4 (doc 3 absent from both)", got)
	}
	if got := u.SkipPos(0); got != 1 {
		t.Fatalf("SkipPos(0) on doc 4 = %d, want 1 (smallest of 2 and 1)", got)
	}
}

func TestUnionDocumentFrequencyIsSum(t *testing.T) {
	a := newFake(map[uint32][]uint16{1: {1}, 2: {1}})
	b := newFake(map[uint32][]uint16{3: {1}})
	u := NewUnion(a, b)
	if got := u.DocumentFrequency(); got != 3 {
		t.Fatalf("DocumentFrequency = %d, want 3", got)
	}
}

func TestUnionExhausted(t *testing.T) {
	a := newFake(map[uint32][]uint16{1: {1}})
	b := newFake(map[uint32][]uint16{2: {1}})
	u := NewUnion(a, b)
	if got := u.SkipDoc(3); got != 0 {
		t.Fatalf("SkipDoc(3) = %d, want 0", got)
	}
}
