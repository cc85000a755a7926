package strusengine

import (
	"context"
	"testing"
)

func TestTransactionUpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t, "path=/tmp/idx; metadata=doclen UINT16")
	defer s.Close()

	tx := s.Begin()
	doc := tx.CreateDocument("doc1", 0)
	doc.AddSearchIndexTerm("word", "hello", 1)
	doc.SetMetaData("doclen", 1)
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("Commit create: %v", err)
	}

	tx2 := s.Begin()
	upd := tx2.UpdateDocument("doc1")
	upd.SetMetaData("doclen", 9)
	if err := tx2.Commit(ctx); err != nil {
		t.Fatalf("Commit update: %v", err)
	}

	docno, ok := s.DocNo("doc1")
	if !ok {
		t.Fatalf("DocNo(doc1) not found after update")
	}
	_ = docno

	tx3 := s.Begin()
	tx3.DeleteDocument("doc1")
	if err := tx3.Commit(ctx); err != nil {
		t.Fatalf("Commit delete: %v", err)
	}

	if _, ok := s.DocNo("doc1"); ok {
		t.Fatalf("doc1 should no longer resolve after delete")
	}
	if s.NofDocuments() != 0 {
		t.Fatalf("NofDocuments = %d, want 0", s.NofDocuments())
	}
}

func TestTransactionSchemaChangeMixedWithWritesFails(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t, "path=/tmp/idx")
	defer s.Close()

	tx := s.Begin()
	tx.CreateDocument("doc1", 0)
	tx.SetSchema(nil)
	if err := tx.Commit(ctx); err == nil {
		t.Fatalf("expected error mixing schema change with document writes")
	}
}
