package structblock

import (
	"reflect"
	"sort"
	"testing"
)

func sortDecls(ds []Declaration) {
	sort.Slice(ds, func(i, j int) bool {
		a, b := ds[i], ds[j]
		if a.Structno != b.Structno {
			return a.Structno < b.Structno
		}
		if a.Source != b.Source {
			return a.Source.Start < b.Source.Start
		}
		return a.Sink.Start < b.Sink.Start
	})
}

func TestBuilderRoundTripDeclarations(t *testing.T) {
	b := NewBuilder()
	input := []Declaration{
		{Structno: 1, Source: IndexRange{1, 10}, Sink: IndexRange{1, 4}},
		{Structno: 1, Source: IndexRange{1, 10}, Sink: IndexRange{5, 9}},
		{Structno: 2, Source: IndexRange{20, 30}, Sink: IndexRange{22, 25}},
	}
	for _, d := range input {
		if err := b.Add(d); err != nil {
			t.Fatalf("Add(%v): %v", d, err)
		}
	}
	blk, err := b.Build(7)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if blk.Docno != 7 {
		t.Fatalf("Docno = %d, want 7", blk.Docno)
	}
	got := blk.Declarations()
	sortDecls(got)
	want := append([]Declaration(nil), input...)
	sortDecls(want)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Declarations() = %v, want %v", got, want)
	}
}

func TestBuilderMultipleSinksShareSource(t *testing.T) {
	b := NewBuilder()
	b.Add(Declaration{Structno: 1, Source: IndexRange{1, 100}, Sink: IndexRange{1, 10}})
	b.Add(Declaration{Structno: 1, Source: IndexRange{1, 100}, Sink: IndexRange{11, 20}})
	b.Add(Declaration{Structno: 1, Source: IndexRange{1, 100}, Sink: IndexRange{21, 30}})
	if b.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 (one instance, three sinks)", b.Len())
	}
	blk, err := b.Build(1)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	decls := blk.Declarations()
	if len(decls) != 3 {
		t.Fatalf("len(Declarations()) = %d, want 3", len(decls))
	}
}

func TestBuilderRejectsDuplicateSinkSilently(t *testing.T) {
	b := NewBuilder()
	d := Declaration{Structno: 1, Source: IndexRange{1, 10}, Sink: IndexRange{2, 4}}
	if err := b.Add(d); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := b.Add(d); err != nil {
		t.Fatalf("Add (duplicate): %v", err)
	}
	if b.Stats().MembersDropped != 1 {
		t.Fatalf("MembersDropped = %d, want 1", b.Stats().MembersDropped)
	}
}

func TestBuilderRejectsOverlappingSinksOfSameInstance(t *testing.T) {
	b := NewBuilder()
	b.Add(Declaration{Structno: 1, Source: IndexRange{1, 100}, Sink: IndexRange{1, 10}})
	err := b.Add(Declaration{Structno: 1, Source: IndexRange{1, 100}, Sink: IndexRange{5, 15}})
	if err == nil {
		t.Fatal("expected error for overlapping sinks of the same instance")
	}
}

func TestBuilderRejectsOverlappingSourcesOfSameStructno(t *testing.T) {
	b := NewBuilder()
	b.Add(Declaration{Structno: 1, Source: IndexRange{1, 20}, Sink: IndexRange{2, 5}})
	err := b.Add(Declaration{Structno: 1, Source: IndexRange{10, 30}, Sink: IndexRange{11, 15}})
	if err == nil {
		t.Fatal("expected error for overlapping sources under the same structno")
	}
}

func TestAssignLevelsSeparatesNestedFields(t *testing.T) {
	outer := IndexRange{1, 100}
	inner := IndexRange{10, 20}
	levelOf, err := assignLevels([]IndexRange{outer, inner})
	if err != nil {
		t.Fatalf("assignLevels: %v", err)
	}
	if levelOf[outer] != 0 {
		t.Fatalf("outer level = %d, want 0", levelOf[outer])
	}
	if levelOf[inner] != 1 {
		t.Fatalf("inner level = %d, want 1 (nested inside outer)", levelOf[inner])
	}
}

func TestAssignLevelsSeparatesPartialOverlap(t *testing.T) {
	a := IndexRange{1, 20}
	b := IndexRange{10, 30} // partially overlaps a: neither contains the other
	levelOf, err := assignLevels([]IndexRange{a, b})
	if err != nil {
		t.Fatalf("assignLevels: %v", err)
	}
	if levelOf[a] == levelOf[b] {
		t.Fatalf("partially overlapping fields share a level: %d", levelOf[a])
	}
}

func TestStructBlockMarshalUnmarshalRoundTrip(t *testing.T) {
	b := NewBuilder()
	b.Add(Declaration{Structno: 1, Source: IndexRange{1, 50}, Sink: IndexRange{1, 10}})
	b.Add(Declaration{Structno: 1, Source: IndexRange{1, 50}, Sink: IndexRange{20, 30}})
	b.Add(Declaration{Structno: 3, Source: IndexRange{100, 200}, Sink: IndexRange{150, 160}})
	blk, err := b.Build(42)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	data := blk.Marshal()
	got, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.Docno != blk.Docno {
		t.Fatalf("Docno mismatch: %d vs %d", got.Docno, blk.Docno)
	}
	a := blk.Declarations()
	c := got.Declarations()
	sortDecls(a)
	sortDecls(c)
	if !reflect.DeepEqual(a, c) {
		t.Fatalf("Declarations mismatch after round-trip: %v vs %v", a, c)
	}
}

func TestFieldScannerSkip(t *testing.T) {
	b := NewBuilder()
	b.Add(Declaration{Structno: 1, Source: IndexRange{1, 5}, Sink: IndexRange{1, 3}})
	b.Add(Declaration{Structno: 1, Source: IndexRange{10, 15}, Sink: IndexRange{10, 12}})
	blk, err := b.Build(1)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	// Sources {1,5} and {10,15} are disjoint, so they share level 0; sinks
	// {1,3} and {10,12} are each nested one level deeper.
	scanner := blk.FieldScanner(0)
	f, ok := scanner.Skip(0)
	if !ok || f != (IndexRange{1, 5}) {
		t.Fatalf("Skip(0) = %v,%v want {1,5},true", f, ok)
	}
	links := scanner.GetLinks()
	if len(links) != 1 || !links[0].Head {
		t.Fatalf("GetLinks() = %v, want one head link", links)
	}
	f, ok = scanner.Skip(6)
	if !ok || f != (IndexRange{10, 15}) {
		t.Fatalf("Skip(6) = %v,%v want {10,15},true", f, ok)
	}
	_, ok = scanner.Skip(16)
	if ok {
		t.Fatal("Skip(16) should exhaust level 0")
	}
}

func TestBuilderCapacityLimit(t *testing.T) {
	b := NewBuilder()
	b.nextIdx = MaxNofStructIdx
	err := b.Add(Declaration{Structno: 1, Source: IndexRange{1000, 2000}, Sink: IndexRange{1000, 1500}})
	if err == nil {
		t.Fatal("expected MaxNofStructIdx overflow error")
	}
}
