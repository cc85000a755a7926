package header

import (
	"testing"

	"github.com/strusgo/strusengine/internal/structblock"
)

func TestHeaderEmitsOutermostToInnermostPath(t *testing.T) {
	b := structblock.NewBuilder()
	decls := []structblock.Declaration{
		{Structno: 1, Source: structblock.IndexRange{Start: 1, End: 5}, Sink: structblock.IndexRange{Start: 5, End: 31}},
		{Structno: 1, Source: structblock.IndexRange{Start: 10, End: 14}, Sink: structblock.IndexRange{Start: 14, End: 30}},
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

	words := map[uint16]string{1: "outer", 2: "title", 10: "inner", 11: "title"}
	fn := Function{
		Structure: func(docno uint32) *structblock.StructBlock {
			if docno == 1 {
				return block
			}
			return nil
		},
		Forward: func(docno uint32, pos uint16) (string, bool) {
			if docno != 1 {
				return "", false
			}
			v, ok := words[pos]
			return v, ok
		},
	}
	inst := fn.CreateInstance()
	ctx, err := inst.CreateSummarizerContext(nil)
	if err != nil {
		t.Fatalf("CreateSummarizerContext: %v", err)
	}

	field := structblock.IndexRange{Start: 14, End: 30}
	elems, err := ctx.Call(1, &field)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if len(elems) != 2 {
		t.Fatalf("expected 2 path entries, got %d: %v", len(elems), elems)
	}
	if elems[0].Index != 0 || elems[0].Value != "outer title" {
		t.Fatalf("outer entry = %+v, want Index 0, Value \"outer title\"", elems[0])
	}
	if elems[1].Index != 1 || elems[1].Value != "inner title" {
		t.Fatalf("inner entry = %+v, want Index 1, Value \"inner title\"", elems[1])
	}
}

func TestHeaderNoStructureReturnsNil(t *testing.T) {
	fn := Function{}
	inst := fn.CreateInstance()
	ctx, _ := inst.CreateSummarizerContext(nil)
	field := structblock.IndexRange{Start: 1, End: 10}
	elems, err := ctx.Call(1, &field)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if elems != nil {
		t.Fatalf("expected nil summary with no structure source, got %v", elems)
	}
}

func TestHeaderNilFieldReturnsNil(t *testing.T) {
	fn := Function{Structure: func(docno uint32) *structblock.StructBlock { return nil }}
	inst := fn.CreateInstance()
	ctx, _ := inst.CreateSummarizerContext(nil)
	elems, err := ctx.Call(1, nil)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if elems != nil {
		t.Fatalf("expected nil summary with a nil field, got %v", elems)
	}
}

func TestHeaderRejectsUnknownFeatureName(t *testing.T) {
	fn := Function{}
	inst := fn.CreateInstance()
	ctx, _ := inst.CreateSummarizerContext(nil)
	if err := ctx.AddSummarizationFeature("bogus", nil, 1); err == nil {
		t.Fatal("expected error for unknown feature name")
	}
}

func TestHeaderMaxWordsParameter(t *testing.T) {
	fn := Function{}
	inst := fn.CreateInstance().(*Instance)
	if err := inst.AddStringParameter("maxwords", "5"); err != nil {
		t.Fatalf("AddStringParameter: %v", err)
	}
	if inst.maxWords != 5 {
		t.Fatalf("maxWords = %v, want 5", inst.maxWords)
	}
	if err := inst.AddNumericParameter("bogus", 1); err == nil {
		t.Fatal("expected error for unknown parameter")
	}
}
