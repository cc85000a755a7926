package title

import (
	"testing"

	"github.com/strusgo/strusengine/internal/structblock"
)

// fakeIter is a single-document, single-position posting stub: it always
// reports docno 1 and one fixed position, matching PostingIterator's
// contract closely enough for title.Context.Call's SkipPos usage.
type fakeIter struct {
	pos uint16
	df  int
}

func (f *fakeIter) SkipDoc(docno uint32) uint32          { return 1 }
func (f *fakeIter) SkipDocCandidate(docno uint32) uint32 { return 1 }
func (f *fakeIter) SkipPos(pos uint16) uint16 {
	if f.pos >= pos {
		return f.pos
	}
	return 0
}
func (f *fakeIter) Frequency() uint16        { return 1 }
func (f *fakeIter) Length() int              { return 1 }
func (f *fakeIter) DocumentFrequency() int   { return f.df }

func TestTitleSingleHeaderFullMatch(t *testing.T) {
	b := structblock.NewBuilder()
	// One header [1,10) with one content sink [2,9) - a single title field.
	if err := b.Add(structblock.Declaration{Structno: 1, Source: structblock.IndexRange{Start: 1, End: 10}, Sink: structblock.IndexRange{Start: 2, End: 9}}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	block, err := b.Build(1)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	fn := Function{Structure: func(docno uint32) *structblock.StructBlock {
		if docno == 1 {
			return block
		}
		return nil
	}}
	inst := fn.CreateInstance()
	ctx, err := inst.CreateFunctionContext(nil, 100)
	if err != nil {
		t.Fatalf("CreateFunctionContext: %v", err)
	}
	if err := ctx.AddWeightingFeature("match", &fakeIter{pos: 3, df: 5}, 1, -1); err != nil {
		t.Fatalf("AddWeightingFeature: %v", err)
	}

	weight, fields, err := ctx.Call(1)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if weight <= 0 {
		t.Fatalf("expected positive weight for a matched header, got %v", weight)
	}
	if len(fields) == 0 {
		t.Fatal("expected at least one weighted field")
	}
	if weight > 1.0 {
		t.Fatalf("weight %v exceeds invariant cap of 1.0", weight)
	}
}

// TestTitleNestedHierarchyAccumulatesWeight reproduces a three-level nested
// title hierarchy A ⊃ B ⊃ C with feature sets {f1,f2} (A), {f3} (B), {f4}
// (C) and a query matching all four: the chain walk must accumulate weight
// down A→B→C rather than taking the max of three independent header scores,
// landing on C's content field with weight 1·(2/4) + hf·(1/4) + hf²·(1/4).
func TestTitleNestedHierarchyAccumulatesWeight(t *testing.T) {
	b := structblock.NewBuilder()
	decls := []structblock.Declaration{
		{Structno: 1, Source: structblock.IndexRange{Start: 1, End: 5}, Sink: structblock.IndexRange{Start: 5, End: 31}},
		{Structno: 1, Source: structblock.IndexRange{Start: 10, End: 14}, Sink: structblock.IndexRange{Start: 14, End: 30}},
		{Structno: 1, Source: structblock.IndexRange{Start: 16, End: 20}, Sink: structblock.IndexRange{Start: 20, End: 29}},
	}
	for _, d := range decls {
		if err := b.Add(d); err != nil {
			t.Fatalf("Add(%v): %v", d, err)
		}
	}
	block, err := b.Build(1)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	fn := Function{Structure: func(docno uint32) *structblock.StructBlock {
		if docno == 1 {
			return block
		}
		return nil
	}}
	inst := fn.CreateInstance()
	ctx, err := inst.CreateFunctionContext(nil, 100)
	if err != nil {
		t.Fatalf("CreateFunctionContext: %v", err)
	}
	// f1, f2 inside A's header; f3 inside B's header; f4 inside C's header.
	for _, pos := range []uint16{2, 3, 11, 17} {
		if err := ctx.AddWeightingFeature("match", &fakeIter{pos: pos, df: 5}, 1, -1); err != nil {
			t.Fatalf("AddWeightingFeature(%d): %v", pos, err)
		}
	}

	weight, fields, err := ctx.Call(1)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	const hf = defaultHierarchyFactor
	want := 1.0*(2.0/4.0) + hf*(1.0/4.0) + hf*hf*(1.0/4.0)
	if len(fields) != 1 {
		t.Fatalf("expected exactly one leaf result field, got %d: %v", len(fields), fields)
	}
	if got := fields[0].Field; got != (structblock.IndexRange{Start: 20, End: 29}) {
		t.Fatalf("result field = %v, want the C content field {20,29}", got)
	}
	if diff := weight - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("weight = %v, want %v", weight, want)
	}
	if weight > 1.0 {
		t.Fatalf("weight %v exceeds invariant cap of 1.0", weight)
	}
}

func TestTitleNoStructureReturnsZero(t *testing.T) {
	fn := Function{Structure: nil}
	inst := fn.CreateInstance()
	ctx, _ := inst.CreateFunctionContext(nil, 10)
	ctx.AddWeightingFeature("match", &fakeIter{pos: 1, df: 1}, 1, -1)
	weight, fields, err := ctx.Call(1)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if weight != 0 || fields != nil {
		t.Fatalf("expected zero weight with no structure source, got %v %v", weight, fields)
	}
}

func TestTitleRejectsUnknownFeatureName(t *testing.T) {
	fn := Function{}
	inst := fn.CreateInstance()
	ctx, _ := inst.CreateFunctionContext(nil, 10)
	if err := ctx.AddWeightingFeature("bogus", &fakeIter{pos: 1}, 1, -1); err == nil {
		t.Fatal("expected error for unknown feature name")
	}
}

func TestTitleHierarchyFactorParameter(t *testing.T) {
	fn := Function{}
	inst := fn.CreateInstance().(*Instance)
	if err := inst.AddStringParameter("hf", "0.5"); err != nil {
		t.Fatalf("AddStringParameter: %v", err)
	}
	if inst.hf != 0.5 {
		t.Fatalf("hf = %v, want 0.5", inst.hf)
	}
	if err := inst.AddNumericParameter("results", 3); err != nil {
		t.Fatalf("AddNumericParameter: %v", err)
	}
	if inst.results != 3 {
		t.Fatalf("results = %v, want 3", inst.results)
	}
	if err := inst.AddNumericParameter("bogus", 1); err == nil {
		t.Fatal("expected error for unknown parameter")
	}
}
