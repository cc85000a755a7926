package forward

import "testing"

func TestBuilderRejectsDuplicatePosition(t *testing.T) {
	b := NewBuilder()
	if err := b.Add(1, 5, "hello"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := b.Add(1, 5, "world"); err == nil {
		t.Fatal("expected error for duplicate forward-index position")
	}
}

func TestTermAtRoundTrip(t *testing.T) {
	b := NewBuilder()
	b.Add(2, 1, "the")
	b.Add(2, 2, "quick")
	b.Add(2, 3, "fox")
	b.Add(10, 1, "lazy")
	blk, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got, ok := blk.TermAt(2, 2); !ok || got != "quick" {
		t.Fatalf("TermAt(2,2) = %q,%v, want quick,true", got, ok)
	}
	if _, ok := blk.TermAt(2, 4); ok {
		t.Fatal("TermAt(2,4) should miss")
	}
	if _, ok := blk.TermAt(5, 1); ok {
		t.Fatal("TermAt(5,1) should miss: doc 5 absent")
	}
	if got, ok := blk.TermAt(10, 1); !ok || got != "lazy" {
		t.Fatalf("TermAt(10,1) = %q,%v, want lazy,true", got, ok)
	}
}

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	b := NewBuilder()
	b.Add(1, 1, "alpha")
	b.Add(1, 9, "beta")
	b.Add(3, 1, "gamma")
	blk, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	data := blk.Marshal()
	got, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.DocumentFrequency() != blk.DocumentFrequency() {
		t.Fatalf("DocumentFrequency mismatch")
	}
	for _, tc := range []struct {
		docno uint32
		pos   uint16
		want  string
	}{
		{1, 1, "alpha"},
		{1, 9, "beta"},
		{3, 1, "gamma"},
	} {
		v, ok := got.TermAt(tc.docno, tc.pos)
		if !ok || v != tc.want {
			t.Fatalf("TermAt(%d,%d) = %q,%v, want %q,true", tc.docno, tc.pos, v, ok, tc.want)
		}
	}
}
