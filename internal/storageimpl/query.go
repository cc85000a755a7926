package storageimpl

import (
	"context"

	"github.com/strusgo/strusengine/internal/errbuf"
	"github.com/strusgo/strusengine/internal/forward"
	"github.com/strusgo/strusengine/internal/join"
	"github.com/strusgo/strusengine/internal/kvstore"
	"github.com/strusgo/strusengine/internal/posting"
	"github.com/strusgo/strusengine/internal/structblock"
)

// OpenPostingIterator loads every PostingBlock stored for (termtype,
// termvalue) and chains them into one join.PostingIterator (spec.md §4.4
// step 1 "selection"/"restriction"/"exclusion" all resolve named features
// to a posting iterator this way). A term with no blocks at all returns a
// non-nil, immediately-exhausted iterator rather than an error: an absent
// term is a valid (empty) match set, not a query error.
func (c *Client) OpenPostingIterator(ctx context.Context, termtype, termvalue string) (join.PostingIterator, error) {
	prefix := kvstore.PostingRangePrefix(termtype, termvalue)
	cur, err := c.store.Iterate(ctx, prefix, kvstore.PrefixUpperBound(prefix))
	if err != nil {
		return nil, wrapError(errbuf.KindIoError, err, "open posting iterator for %s/%s", termtype, termvalue)
	}
	defer cur.Close()

	var blocks []*posting.PostingBlock
	for cur.Next() {
		blk, err := posting.Unmarshal(cur.Value())
		if err != nil {
			return nil, wrapError(errbuf.KindDataCorruption, err, "decode posting block for %s/%s", termtype, termvalue)
		}
		blocks = append(blocks, blk)
	}
	if err := cur.Err(); err != nil {
		return nil, wrapError(errbuf.KindIoError, err, "scan posting blocks for %s/%s", termtype, termvalue)
	}
	return posting.NewMultiIterator(blocks), nil
}

// LoadStructBlock reads and decodes one document's structure block, or nil
// if it never declared any structure relations. Used to wire structure-aware
// weighting functions (internal/weighting/title, internal/weighting/bm25pff)
// and summarizers to a per-document field source. Decoded blocks are kept in
// a bounded LRU cache since one evaluation can probe the same docno's
// structure repeatedly across weighting/summarizer bindings.
func (c *Client) LoadStructBlock(ctx context.Context, docno uint32) (*structblock.StructBlock, error) {
	cacheKey := structCacheKey(docno)
	if c.structCache != nil {
		if v, ok := c.structCache.Get(cacheKey); ok {
			blk, _ := v.(*structblock.StructBlock)
			return blk, nil
		}
	}

	v, err := c.store.Get(ctx, kvstore.StructKey(docno))
	if err != nil {
		if err == kvstore.ErrNotFound {
			if c.structCache != nil {
				c.structCache.Put(cacheKey, (*structblock.StructBlock)(nil), 8)
			}
			return nil, nil
		}
		return nil, wrapError(errbuf.KindIoError, err, "load structure block for docno %d", docno)
	}
	blk, err := structblock.Unmarshal(v)
	if err != nil {
		return nil, wrapError(errbuf.KindDataCorruption, err, "decode structure block for docno %d", docno)
	}
	if c.structCache != nil {
		c.structCache.Put(cacheKey, blk, int64(len(v)))
	}
	return blk, nil
}

func structCacheKey(docno uint32) string {
	return string(kvstore.StructKey(docno))
}

// ForwardTermAt looks up the forward-index term value recorded at (docno,
// pos) under one termtype (spec.md §3 "forward index"), scanning that
// termtype's forward blocks the same way OpenPostingIterator scans posting
// blocks. Used by the "header" and "matchphrase" summarizers to render
// decoded text for a result field; a position with nothing recorded there
// returns ("", false) rather than an error, since an unindexed forward
// position is a valid (blank) summary, not a query error.
func (c *Client) ForwardTermAt(ctx context.Context, docno uint32, termtype string, pos uint16) (string, bool, error) {
	prefix := kvstore.ForwardRangePrefix(termtype)
	cur, err := c.store.Iterate(ctx, prefix, kvstore.PrefixUpperBound(prefix))
	if err != nil {
		return "", false, wrapError(errbuf.KindIoError, err, "open forward iterator for %s", termtype)
	}
	defer cur.Close()

	for cur.Next() {
		blk, err := forward.Unmarshal(cur.Value())
		if err != nil {
			return "", false, wrapError(errbuf.KindDataCorruption, err, "decode forward block for %s", termtype)
		}
		if v, ok := blk.TermAt(docno, pos); ok {
			return v, true, nil
		}
	}
	if err := cur.Err(); err != nil {
		return "", false, wrapError(errbuf.KindIoError, err, "scan forward blocks for %s", termtype)
	}
	return "", false, nil
}

// DocumentFrequency returns the total number of documents carrying
// (termtype,termvalue), summed across every block, without constructing a
// full iterator. Weighting functions use this for idf-style statistics when
// no override is configured (spec.md §4.4 step 3).
func (c *Client) DocumentFrequency(ctx context.Context, termtype, termvalue string) (int, error) {
	prefix := kvstore.PostingRangePrefix(termtype, termvalue)
	cur, err := c.store.Iterate(ctx, prefix, kvstore.PrefixUpperBound(prefix))
	if err != nil {
		return 0, wrapError(errbuf.KindIoError, err, "scan posting blocks for %s/%s", termtype, termvalue)
	}
	defer cur.Close()

	total := 0
	for cur.Next() {
		blk, err := posting.Unmarshal(cur.Value())
		if err != nil {
			return 0, wrapError(errbuf.KindDataCorruption, err, "decode posting block for %s/%s", termtype, termvalue)
		}
		total += blk.DocumentFrequency()
	}
	return total, cur.Err()
}
