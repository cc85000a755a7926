package storageimpl

import (
	"context"
	"testing"

	"github.com/strusgo/strusengine/internal/kvstore/memstore"
	"github.com/strusgo/strusengine/internal/structblock"
)

func newTestClient(t *testing.T, confStr string) *Client {
	t.Helper()
	cfg, err := ParseConfig(confStr)
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	c, err := Open(context.Background(), memstore.New(), cfg, nil, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return c
}

func TestTransactionInsertAndQueryRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t, "path=/tmp/idx; metadata=doclen UINT16")

	tx := c.Begin()
	doc := tx.CreateDocument("doc1", 0)
	doc.AddSearchIndexTerm("word", "hello", 1)
	doc.AddSearchIndexTerm("word", "world", 2)
	doc.SetMetaData("doclen", 2)
	doc.SetAttribute("title", "Hello World")
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	docno, ok := c.DocNo("doc1")
	if !ok || docno != 1 {
		t.Fatalf("DocNo(doc1) = %d,%v want 1,true", docno, ok)
	}
	if v, ok := c.MetadataTable().Cell(docno, "doclen"); !ok || v != 2 {
		t.Fatalf("metadata cell = %v,%v want 2,true", v, ok)
	}
	if v, ok := c.Attributes().Get(docno, "title"); !ok || v != "Hello World" {
		t.Fatalf("attribute = %q,%v want %q,true", v, ok, "Hello World")
	}
	if c.NofDocuments() != 1 {
		t.Fatalf("NofDocuments = %d, want 1", c.NofDocuments())
	}
}

func TestTransactionUpdateReplacesMetadataOnly(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t, "path=/tmp/idx; metadata=doclen UINT16")

	tx := c.Begin()
	doc := tx.CreateDocument("doc1", 0)
	doc.AddSearchIndexTerm("word", "hello", 1)
	doc.SetMetaData("doclen", 1)
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("Commit create: %v", err)
	}

	tx2 := c.Begin()
	upd := tx2.UpdateDocument("doc1")
	upd.SetMetaData("doclen", 5)
	if err := tx2.Commit(ctx); err != nil {
		t.Fatalf("Commit update: %v", err)
	}

	docno, _ := c.DocNo("doc1")
	if v, _ := c.MetadataTable().Cell(docno, "doclen"); v != 5 {
		t.Fatalf("doclen after update = %v, want 5", v)
	}

	// Search content must survive a metadata-only update.
	cur, err := c.Store().Iterate(ctx, []byte{'T'}, nil)
	if err != nil {
		t.Fatalf("Iterate: %v", err)
	}
	defer cur.Close()
	if !cur.Next() {
		t.Fatalf("expected at least one surviving posting block after metadata-only update")
	}
}

func TestTransactionDeleteRemovesEverything(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t, "path=/tmp/idx; metadata=doclen UINT16; acl=yes")

	tx := c.Begin()
	doc := tx.CreateDocument("doc1", 0)
	doc.AddSearchIndexTerm("word", "hello", 1)
	doc.AddForwardIndexTerm("text", "hello", 1)
	doc.SetMetaData("doclen", 1)
	doc.SetAttribute("title", "x")
	doc.SetUserAccessRight("alice")
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("Commit create: %v", err)
	}

	tx2 := c.Begin()
	tx2.DeleteDocument("doc1")
	if err := tx2.Commit(ctx); err != nil {
		t.Fatalf("Commit delete: %v", err)
	}

	if _, ok := c.DocNo("doc1"); ok {
		t.Fatalf("doc1 should no longer resolve after delete")
	}
	if c.NofDocuments() != 0 {
		t.Fatalf("NofDocuments = %d, want 0", c.NofDocuments())
	}

	for _, prefix := range [][]byte{{'T'}, {'F'}, {'M'}, {'A'}, {'U'}} {
		cur, err := c.Store().Iterate(ctx, prefix, nil)
		if err != nil {
			t.Fatalf("Iterate %q: %v", prefix, err)
		}
		if cur.Next() {
			t.Fatalf("expected no keys left under prefix %q after delete, found %x", prefix, cur.Key())
		}
		cur.Close()
	}
}

func TestTransactionSchemaChangeRejectedWithDocumentWrites(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t, "path=/tmp/idx")

	tx := c.Begin()
	tx.CreateDocument("doc1", 0)
	tx.SetSchema(nil)
	err := tx.Commit(ctx)
	if err == nil {
		t.Fatalf("expected error mixing schema change with document writes")
	}
}

func TestTransactionPostingBlockSplitsOverCapacity(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t, "path=/tmp/idx")

	for i := 0; i < blockCapacity; i++ {
		tx := c.Begin()
		doc := tx.CreateDocument(docidFor(i), 0)
		doc.AddSearchIndexTerm("word", "common", 1)
		if err := tx.Commit(ctx); err != nil {
			t.Fatalf("Commit doc %d: %v", i, err)
		}
	}

	cur, err := c.Store().Iterate(ctx, []byte{'T'}, nil)
	if err != nil {
		t.Fatalf("Iterate: %v", err)
	}
	defer cur.Close()
	n := 0
	for cur.Next() {
		n++
	}
	if n < 2 {
		t.Fatalf("expected the posting group to split into >=2 blocks once over threshold, found %d", n)
	}
}

func TestTransactionStructureDeclarations(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t, "path=/tmp/idx")

	tx := c.Begin()
	doc := tx.CreateDocument("doc1", 0)
	doc.AddSearchIndexStructure(1, structblock.IndexRange{Start: 1, End: 5}, structblock.IndexRange{Start: 2, End: 3})
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	cur, err := c.Store().Iterate(ctx, []byte{'S'}, nil)
	if err != nil {
		t.Fatalf("Iterate: %v", err)
	}
	defer cur.Close()
	if !cur.Next() {
		t.Fatalf("expected a structure block to be written")
	}
	blk, err := structblock.Unmarshal(cur.Value())
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	decls := blk.Declarations()
	if len(decls) != 1 || decls[0].Structno != 1 {
		t.Fatalf("Declarations = %+v, want one declaration with structno 1", decls)
	}
}

func docidFor(i int) string {
	const letters = "abcdefghijklmnopqrstuvwxyz"
	b := make([]byte, 0, 8)
	for i >= 0 {
		b = append(b, letters[i%26])
		i = i/26 - 1
	}
	return string(b)
}
