package storageimpl

import (
	"bytes"
	"context"

	"github.com/strusgo/strusengine/internal/errbuf"
	"github.com/strusgo/strusengine/internal/forward"
	"github.com/strusgo/strusengine/internal/kvstore"
	"github.com/strusgo/strusengine/internal/posting"
)

// purgeDocFromAllPostings removes docno's occurrences from every posting
// block in the store, rewriting blocks that still carry other documents and
// deleting ones left empty. Document deletion and full-replace document
// updates both need this: the posting index is organized by term, not by
// document, so there is no cheaper way to find every (termtype,termvalue)
// group a document appears in without a separate per-document term index,
// which this storage layer does not maintain (documented simplification,
// see DESIGN.md).
func purgeDocFromAllPostings(ctx context.Context, c *Client, batch kvstore.Batch, docno uint32) error {
	prefix := []byte{kvstore.PrefixPosting}
	cur, err := c.store.Iterate(ctx, prefix, kvstore.PrefixUpperBound(prefix))
	if err != nil {
		return err
	}
	defer cur.Close()

	for cur.Next() {
		blk, err := posting.Unmarshal(cur.Value())
		if err != nil {
			c.invalidate()
			return wrapError(errbuf.KindDataCorruption, err, "decode posting block at key %x while purging docno %d", cur.Key(), docno)
		}
		docs := blk.Docs()
		found := false
		remaining := posting.NewBuilder()
		for _, d := range docs {
			if d.Docno == docno {
				found = true
				continue
			}
			for _, occ := range d.Occurrences {
				remaining.AddN(d.Docno, occ.Position, occ.Freq)
			}
		}
		if !found {
			continue
		}
		key := append([]byte(nil), cur.Key()...)
		batch.Delete(key)
		if remaining.Empty() {
			continue
		}
		rebuilt := remaining.Build()
		rdocs := rebuilt.Docs()
		last := rdocs[len(rdocs)-1].Docno
		typ, val, ok := splitPostingKey(key)
		if !ok {
			return newError(errbuf.KindDataCorruption, "malformed posting key %x", key)
		}
		batch.Put(kvstore.PostingKey(typ, val, last), rebuilt.Marshal())
	}
	return cur.Err()
}

// purgeDocFromAllForward is the forward-index analogue of
// purgeDocFromAllPostings.
func purgeDocFromAllForward(ctx context.Context, c *Client, batch kvstore.Batch, docno uint32) error {
	prefix := []byte{kvstore.PrefixForward}
	cur, err := c.store.Iterate(ctx, prefix, kvstore.PrefixUpperBound(prefix))
	if err != nil {
		return err
	}
	defer cur.Close()

	for cur.Next() {
		blk, err := forward.Unmarshal(cur.Value())
		if err != nil {
			c.invalidate()
			return wrapError(errbuf.KindDataCorruption, err, "decode forward block at key %x while purging docno %d", cur.Key(), docno)
		}
		docs := blk.Docs()
		found := false
		remaining := forward.NewBuilder()
		for _, d := range docs {
			if d.Docno == docno {
				found = true
				continue
			}
			for _, e := range d.Entries {
				// Every entry was already unique per (docno,position) when
				// this block was first built, so re-adding cannot collide.
				_ = remaining.Add(d.Docno, e.Position, e.Value)
			}
		}
		if !found {
			continue
		}
		key := append([]byte(nil), cur.Key()...)
		batch.Delete(key)
		rebuilt, err := remaining.Build()
		if err != nil {
			return wrapError(errbuf.KindRuntimeError, err, "rebuild forward block at key %x", key)
		}
		if rebuilt.DocumentFrequency() == 0 {
			continue
		}
		rdocs := rebuilt.Docs()
		last := rdocs[len(rdocs)-1].Docno
		termtype, ok := splitForwardKey(key)
		if !ok {
			return newError(errbuf.KindDataCorruption, "malformed forward key %x", key)
		}
		batch.Put(kvstore.ForwardKey(termtype, last), rebuilt.Marshal())
	}
	return cur.Err()
}

// purgeDocFromACL removes every user's access grant for docno, used only on
// document deletion (ACL grants/revokes are otherwise applied directly by
// name, never replaced wholesale by an update).
func purgeDocFromACL(ctx context.Context, c *Client, batch kvstore.Batch, docno uint32) error {
	prefix := []byte{kvstore.PrefixACL}
	cur, err := c.store.Iterate(ctx, prefix, kvstore.PrefixUpperBound(prefix))
	if err != nil {
		return err
	}
	defer cur.Close()

	for cur.Next() {
		key := cur.Key()
		if kvstore.DecodeDocno(key) != docno {
			continue
		}
		batch.Delete(append([]byte(nil), key...))
	}
	return cur.Err()
}

// splitPostingKey recovers (termtype,termvalue) from a 'T' key, the inverse
// of kvstore.PostingKey.
func splitPostingKey(key []byte) (termtype, termvalue string, ok bool) {
	if len(key) < 1+4 {
		return "", "", false
	}
	body := key[1 : len(key)-4]
	sep := bytes.IndexByte(body, 0x00)
	if sep < 0 {
		return "", "", false
	}
	rest := body[sep+1:]
	sep2 := bytes.LastIndexByte(rest, 0x00)
	if sep2 < 0 {
		return "", "", false
	}
	return string(body[:sep]), string(rest[:sep2]), true
}

// splitForwardKey recovers termtype from an 'F' key, the inverse of
// kvstore.ForwardKey.
func splitForwardKey(key []byte) (termtype string, ok bool) {
	if len(key) < 1+4 {
		return "", false
	}
	body := key[1 : len(key)-4]
	sep := bytes.LastIndexByte(body, 0x00)
	if sep < 0 {
		return "", false
	}
	return string(body[:sep]), true
}
