package docindex

import "testing"

func TestBuilderRoundTrip(t *testing.T) {
	docnos := []Index{2, 3, 5, 8, 13, 21, 34, 55, 100, 1000, 70000}
	var b Builder
	for i, d := range docnos {
		if err := b.Add(d, uint16(i)); err != nil {
			t.Fatalf("Add(%d): %v", d, err)
		}
	}
	arr := b.Build()

	var c Cursor
	got := arr.FirstDoc(&c)
	if got != docnos[0] {
		t.Fatalf("FirstDoc = %d, want %d", got, docnos[0])
	}
	for i := 1; i < len(docnos); i++ {
		got = arr.NextDoc(&c)
		if got != docnos[i] {
			t.Fatalf("NextDoc[%d] = %d, want %d", i, got, docnos[i])
		}
	}
	if got := arr.NextDoc(&c); got != 0 {
		t.Fatalf("NextDoc at end = %d, want 0", got)
	}

	if got := arr.LastDoc(); got != docnos[len(docnos)-1] {
		t.Fatalf("LastDoc = %d, want %d", got, docnos[len(docnos)-1])
	}
}

func TestArraySkipDocMonotone(t *testing.T) {
	docnos := []Index{1, 4, 9, 16, 25, 36, 49, 64, 81, 100, 10000, 20000}
	var b Builder
	for i, d := range docnos {
		if err := b.Add(d, uint16(i)); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	arr := b.Build()

	var c Cursor
	prev := Index(0)
	for _, target := range []Index{0, 1, 2, 5, 17, 50, 99, 101, 15000, 30000} {
		got := arr.SkipDoc(target, &c)
		if got != 0 && got < target {
			t.Fatalf("SkipDoc(%d) = %d, expected >= target or 0", target, got)
		}
		if got != 0 && got < prev {
			t.Fatalf("SkipDoc not monotone: got %d after %d", got, prev)
		}
		if got != 0 {
			prev = got
		}
	}
}

func TestSkipDocExactMatches(t *testing.T) {
	docnos := []Index{10, 20, 30, 40, 50, 60, 70}
	var b Builder
	for i, d := range docnos {
		if err := b.Add(d, uint16(i)); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	arr := b.Build()
	for _, d := range docnos {
		var c Cursor
		got := arr.SkipDoc(d, &c)
		if got != d {
			t.Fatalf("SkipDoc(%d) = %d, want exact match", d, got)
		}
	}
}

func TestAddDocumentRejectsNonAscending(t *testing.T) {
	var b Builder
	if err := b.Add(10, 0); err != nil {
		t.Fatal(err)
	}
	if err := b.Add(5, 0); err == nil {
		t.Fatal("expected error adding non-ascending docno")
	}
}
