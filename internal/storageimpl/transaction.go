package storageimpl

import (
	"context"

	"github.com/strusgo/strusengine/internal/errbuf"
	"github.com/strusgo/strusengine/internal/forward"
	"github.com/strusgo/strusengine/internal/kvstore"
	"github.com/strusgo/strusengine/internal/metadata"
	"github.com/strusgo/strusengine/internal/posting"
	"github.com/strusgo/strusengine/internal/structblock"
)

// Transaction accumulates document creates/updates/deletes and schema
// changes for one atomic commit (spec.md §4.7 "Transactions"). A Transaction
// is not safe for concurrent use; the client itself serializes one
// transaction's Commit against another's (spec.md §5 "writers are
// serialized via the Transaction's logical writer slot").
type Transaction struct {
	client *Client

	creates []*DocumentMutation
	updates []*DocumentMutation
	deletes []string

	schemaCols []metadata.ColumnDef
	schemaSet  bool

	done bool
}

// Begin opens a new transaction against the client.
func (c *Client) Begin() *Transaction {
	return &Transaction{client: c}
}

// CreateDocument starts a mutation for a new document. docno == 0 means the
// client allocates the next dense docno on commit; a nonzero value supplies
// a client-chosen docno (spec.md §4.7 step 1: "either client-supplied, or
// server-allocated monotone").
func (tx *Transaction) CreateDocument(docid string, docno uint32) *DocumentMutation {
	m := newMutation(docid)
	m.Docno = docno
	tx.creates = append(tx.creates, m)
	return m
}

// UpdateDocument starts a mutation for an existing docid, resolved to its
// docno at Commit.
func (tx *Transaction) UpdateDocument(docid string) *DocumentMutation {
	m := newMutation(docid)
	tx.updates = append(tx.updates, m)
	return m
}

// DeleteDocument marks docid for deletion.
func (tx *Transaction) DeleteDocument(docid string) {
	tx.deletes = append(tx.deletes, docid)
}

// SetSchema requests a metadata schema change. spec.md §4.7: "Schema updates
// are not permitted in the same transaction as document writes" — Commit
// rejects a transaction that calls both SetSchema and any document mutation.
func (tx *Transaction) SetSchema(cols []metadata.ColumnDef) {
	tx.schemaCols = cols
	tx.schemaSet = true
}

// termKey identifies one (termtype,termvalue) posting group.
type termKey struct{ typ, val string }

type posAdd struct {
	docno    uint32
	position uint16
}

type fwdAdd struct {
	docno    uint32
	position uint16
	value    string
}

type metaOp struct {
	docno uint32
	name  string
	value float64
}

type attrOp struct {
	docno uint32
	name  string
	value string
}

type aclOp struct {
	docno uint32
	user  string
	grant bool
}

// Commit applies the transaction atomically (spec.md §4.7 steps 1-4). On any
// error the batch is never committed, so no change becomes visible; the only
// exception is a DataCorruption finding mid-scan, which also invalidates the
// client (spec.md §7: programmatic state-machine errors are fatal).
func (tx *Transaction) Commit(ctx context.Context) error {
	if tx.done {
		return newError(errbuf.KindInvalidArgument, "transaction already committed")
	}
	tx.done = true

	c := tx.client
	if c.Closed() {
		return newError(errbuf.KindDataCorruption, "storage client is closed")
	}

	hasDocWrites := len(tx.creates)+len(tx.updates)+len(tx.deletes) > 0
	if tx.schemaSet && hasDocWrites {
		return newError(errbuf.KindInvalidArgument, "schema changes are not permitted in the same transaction as document writes")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if tx.schemaSet {
		return tx.commitSchemaChange(c)
	}
	if !hasDocWrites {
		return nil
	}
	return tx.commitDocuments(ctx, c)
}

// commitSchemaChange installs a new metadata schema. The schema itself has
// no dedicated on-disk key (spec.md §6's layout table has no "schema" row:
// it lives in the storage configuration string, external to the KV store),
// so this only updates the live client; persisting the new configuration
// string is the caller's responsibility, same as it is for the config
// string's path/acl/max_positions fields.
func (tx *Transaction) commitSchemaChange(c *Client) error {
	schema := metadata.NewSchema(tx.schemaCols)
	c.schema = schema
	c.metaTable = metadata.NewTable(schema)
	c.cfg.Metadata = tx.schemaCols
	return nil
}

func (tx *Transaction) commitDocuments(ctx context.Context, c *Client) error {
	if err := tx.resolveDocnos(c); err != nil {
		return err
	}
	deleteDocnos, err := tx.resolveDeletes(c)
	if err != nil {
		return err
	}

	batch := c.store.NewBatch()

	for _, docno := range deleteDocnos {
		if err := purgeDocFromAllPostings(ctx, c, batch, docno); err != nil {
			return err
		}
		if err := purgeDocFromAllForward(ctx, c, batch, docno); err != nil {
			return err
		}
		batch.Delete(kvstore.StructKey(docno))
		for _, col := range c.schema.Columns() {
			batch.Delete(kvstore.MetadataKey(col.Name, docno))
		}
		for _, name := range c.attrs.Names(docno) {
			batch.Delete(kvstore.AttributeKey(name, docno))
		}
		if err := purgeDocFromACL(ctx, c, batch, docno); err != nil {
			return err
		}
		if docid, ok := c.noToDocid[docno]; ok {
			batch.Delete(kvstore.DocidToNoKey(docid))
		}
		batch.Delete(kvstore.NoToDocidKey(docno))
	}

	all := make([]*DocumentMutation, 0, len(tx.creates)+len(tx.updates))
	all = append(all, tx.creates...)
	all = append(all, tx.updates...)

	// Per-concern replace: an update only wipes a document's existing
	// postings/forward entries for a concern it actually supplies new data
	// for, so e.g. a metadata-only update never touches search content.
	for _, m := range tx.updates {
		if len(m.SearchTerms) > 0 {
			if err := purgeDocFromAllPostings(ctx, c, batch, m.Docno); err != nil {
				return err
			}
		}
		if len(m.ForwardTerms) > 0 {
			if err := purgeDocFromAllForward(ctx, c, batch, m.Docno); err != nil {
				return err
			}
		}
	}

	postingAdds := make(map[termKey][]posAdd)
	forwardAdds := make(map[string][]fwdAdd)
	structureDocs := make(map[uint32][]StructureDecl)
	var metaOps []metaOp
	var attrOps []attrOp
	var aclOps []aclOp

	for _, m := range all {
		for _, t := range m.SearchTerms {
			k := termKey{t.Type, t.Value}
			postingAdds[k] = append(postingAdds[k], posAdd{docno: m.Docno, position: t.Position})
		}
		for _, t := range m.ForwardTerms {
			forwardAdds[t.Type] = append(forwardAdds[t.Type], fwdAdd{docno: m.Docno, position: t.Position, value: t.Value})
		}
		if len(m.Structures) > 0 {
			structureDocs[m.Docno] = m.Structures
		}
		for name, v := range m.Metadata {
			if _, _, ok := c.schema.Column(name); !ok {
				return newError(errbuf.KindInvalidArgument, "unknown metadata column %q", name)
			}
			metaOps = append(metaOps, metaOp{docno: m.Docno, name: name, value: v})
		}
		for name, v := range m.Attributes {
			attrOps = append(attrOps, attrOp{docno: m.Docno, name: name, value: v})
		}
		for _, user := range m.ACLGrants {
			aclOps = append(aclOps, aclOp{docno: m.Docno, user: user, grant: true})
		}
		for _, user := range m.ACLRevokes {
			aclOps = append(aclOps, aclOp{docno: m.Docno, user: user, grant: false})
		}
	}

	for k, adds := range postingAdds {
		if err := rebuildPostingGroup(ctx, c, batch, k.typ, k.val, adds); err != nil {
			return err
		}
	}
	for termtype, adds := range forwardAdds {
		if err := rebuildForwardGroup(ctx, c, batch, termtype, adds); err != nil {
			return err
		}
	}
	for docno, decls := range structureDocs {
		blk, err := buildStructBlock(docno, decls)
		if err != nil {
			return err
		}
		batch.Put(kvstore.StructKey(docno), blk.Marshal())
	}

	for _, op := range metaOps {
		col, _, _ := c.schema.Column(op.name)
		batch.Put(kvstore.MetadataKey(op.name, op.docno), metadata.EncodeValue(col.Type, op.value))
	}
	for _, op := range attrOps {
		batch.Put(kvstore.AttributeKey(op.name, op.docno), []byte(op.value))
	}
	for _, op := range aclOps {
		if op.grant {
			batch.Put(kvstore.ACLKey(op.user, op.docno), []byte{1})
		} else {
			batch.Delete(kvstore.ACLKey(op.user, op.docno))
		}
	}
	for _, m := range tx.creates {
		batch.Put(kvstore.DocidToNoKey(m.Docid), encodeDocnoValue(m.Docno))
		batch.Put(kvstore.NoToDocidKey(m.Docno), []byte(m.Docid))
	}

	if err := batch.Commit(ctx); err != nil {
		if c.metrics != nil {
			c.metrics.TransactionAborts.Inc()
		}
		return wrapError(errbuf.KindIoError, err, "commit transaction batch")
	}

	// Only now, with the durable write in place, fold the same changes into
	// the live in-memory indices (spec.md §4.7 step 3: "abort without
	// visible change on error" implies the converse too — no visible change
	// before success).
	for _, m := range tx.creates {
		c.docidToNo[m.Docid] = m.Docno
		c.noToDocid[m.Docno] = m.Docid
		c.nofDocuments++
	}
	for _, docno := range deleteDocnos {
		if docid, ok := c.noToDocid[docno]; ok {
			delete(c.docidToNo, docid)
		}
		delete(c.noToDocid, docno)
		c.metaTable.DeleteRow(docno)
		c.attrs.Delete(docno)
		c.acl.DeleteDocument(docno)
		c.nofDocuments--
		if c.structCache != nil {
			c.structCache.Remove(structCacheKey(docno))
		}
	}
	if c.structCache != nil {
		for docno := range structureDocs {
			c.structCache.Remove(structCacheKey(docno))
		}
	}
	for _, op := range metaOps {
		_ = c.metaTable.SetCell(op.docno, op.name, op.value)
	}
	for _, op := range attrOps {
		c.attrs.Set(op.docno, op.name, op.value)
	}
	for _, op := range aclOps {
		if op.grant {
			c.acl.Grant(op.user, op.docno)
		} else {
			c.acl.Revoke(op.user, op.docno)
		}
	}

	if c.metrics != nil {
		c.metrics.TransactionCommits.Inc()
		c.metrics.DocumentsInserted.Add(float64(len(tx.creates)))
		c.metrics.DocumentsDeleted.Add(float64(len(deleteDocnos)))
	}
	if c.logger != nil {
		c.logger.WithField("component", "storageimpl").
			WithField("creates", len(tx.creates)).
			WithField("updates", len(tx.updates)).
			WithField("deletes", len(deleteDocnos)).
			Info("transaction committed")
	}
	return nil
}

func (tx *Transaction) resolveDocnos(c *Client) error {
	for _, m := range tx.creates {
		if _, exists := c.docidToNo[m.Docid]; exists {
			return newError(errbuf.KindInvalidArgument, "docid %q already exists", m.Docid)
		}
		if m.Docno == 0 {
			m.Docno = c.nextDocno
		}
		if m.Docno >= c.nextDocno {
			c.nextDocno = m.Docno + 1
		}
	}
	for _, m := range tx.updates {
		docno, ok := c.docidToNo[m.Docid]
		if !ok {
			return newError(errbuf.KindUnknownIdentifier, "update: unknown docid %q", m.Docid)
		}
		m.Docno = docno
	}
	return nil
}

func (tx *Transaction) resolveDeletes(c *Client) ([]uint32, error) {
	docnos := make([]uint32, 0, len(tx.deletes))
	for _, docid := range tx.deletes {
		docno, ok := c.docidToNo[docid]
		if !ok {
			return nil, newError(errbuf.KindUnknownIdentifier, "delete: unknown docid %q", docid)
		}
		docnos = append(docnos, docno)
	}
	return docnos, nil
}

// encodeDocnoValue packs a docno into the 4-byte big-endian value stored
// behind the 'N' (docid->docno) key, matching kvstore.DecodeDocno's reader.
func encodeDocnoValue(docno uint32) []byte {
	return []byte{byte(docno >> 24), byte(docno >> 16), byte(docno >> 8), byte(docno)}
}

// rebuildPostingGroup reloads every existing PostingBlock for
// (termtype,termvalue), folds in adds, and rewrites the group as one or more
// blocks split at splitRatio (spec.md §4.7 step 2).
func rebuildPostingGroup(ctx context.Context, c *Client, batch kvstore.Batch, termtype, termvalue string, adds []posAdd) error {
	prefix := kvstore.PostingRangePrefix(termtype, termvalue)
	cur, err := c.store.Iterate(ctx, prefix, kvstore.PrefixUpperBound(prefix))
	if err != nil {
		return err
	}
	builder := posting.NewBuilder()
	var existingKeys [][]byte
	for cur.Next() {
		blk, err := posting.Unmarshal(cur.Value())
		if err != nil {
			cur.Close()
			c.invalidate()
			return wrapError(errbuf.KindDataCorruption, err, "decode posting block %s/%s", termtype, termvalue)
		}
		existingKeys = append(existingKeys, append([]byte(nil), cur.Key()...))
		for _, d := range blk.Docs() {
			for _, occ := range d.Occurrences {
				builder.AddN(d.Docno, occ.Position, occ.Freq)
			}
		}
	}
	if err := cur.Err(); err != nil {
		cur.Close()
		return err
	}
	cur.Close()

	for _, a := range adds {
		builder.Add(a.docno, a.position)
	}

	for _, k := range existingKeys {
		batch.Delete(k)
	}
	if builder.Empty() {
		return nil
	}

	blk := builder.Build()
	docs := blk.Docs()
	for _, bounds := range chunkDocs(len(docs)) {
		sub := posting.NewBuilder()
		for _, d := range docs[bounds[0]:bounds[1]] {
			for _, occ := range d.Occurrences {
				sub.AddN(d.Docno, occ.Position, occ.Freq)
			}
		}
		subBlk := sub.Build()
		last := docs[bounds[1]-1].Docno
		batch.Put(kvstore.PostingKey(termtype, termvalue, last), subBlk.Marshal())
	}
	return nil
}

// rebuildForwardGroup is the forward-index analogue of rebuildPostingGroup.
func rebuildForwardGroup(ctx context.Context, c *Client, batch kvstore.Batch, termtype string, adds []fwdAdd) error {
	prefix := kvstore.ForwardRangePrefix(termtype)
	cur, err := c.store.Iterate(ctx, prefix, kvstore.PrefixUpperBound(prefix))
	if err != nil {
		return err
	}
	builder := forward.NewBuilder()
	var existingKeys [][]byte
	for cur.Next() {
		blk, err := forward.Unmarshal(cur.Value())
		if err != nil {
			cur.Close()
			c.invalidate()
			return wrapError(errbuf.KindDataCorruption, err, "decode forward block %s", termtype)
		}
		existingKeys = append(existingKeys, append([]byte(nil), cur.Key()...))
		for _, d := range blk.Docs() {
			for _, e := range d.Entries {
				if err := builder.Add(d.Docno, e.Position, e.Value); err != nil {
					cur.Close()
					return wrapError(errbuf.KindDataCorruption, err, "rebuild forward block %s", termtype)
				}
			}
		}
	}
	if err := cur.Err(); err != nil {
		cur.Close()
		return err
	}
	cur.Close()

	for _, a := range adds {
		if err := builder.Add(a.docno, a.position, a.value); err != nil {
			return wrapError(errbuf.KindInvalidArgument, err, "add forward-index term for termtype %s", termtype)
		}
	}

	for _, k := range existingKeys {
		batch.Delete(k)
	}
	blk, err := builder.Build()
	if err != nil {
		return wrapError(errbuf.KindRuntimeError, err, "build forward block %s", termtype)
	}
	if blk.DocumentFrequency() == 0 {
		return nil
	}

	docs := blk.Docs()
	for _, bounds := range chunkDocs(len(docs)) {
		sub := forward.NewBuilder()
		for _, d := range docs[bounds[0]:bounds[1]] {
			for _, e := range d.Entries {
				_ = sub.Add(d.Docno, e.Position, e.Value)
			}
		}
		subBlk, err := sub.Build()
		if err != nil {
			return wrapError(errbuf.KindRuntimeError, err, "rebuild forward block chunk %s", termtype)
		}
		last := docs[bounds[1]-1].Docno
		batch.Put(kvstore.ForwardKey(termtype, last), subBlk.Marshal())
	}
	return nil
}

func buildStructBlock(docno uint32, decls []StructureDecl) (*structblock.StructBlock, error) {
	b := structblock.NewBuilder()
	for _, d := range decls {
		if err := b.Add(structblock.Declaration{Structno: d.Structno, Source: d.Source, Sink: d.Sink}); err != nil {
			return nil, wrapError(errbuf.KindInvalidArgument, err, "structure declaration for docno %d", docno)
		}
	}
	blk, err := b.Build(docno)
	if err != nil {
		return nil, wrapError(errbuf.KindRuntimeError, err, "build structure block for docno %d", docno)
	}
	return blk, nil
}

// chunkDocs partitions n items into contiguous [start,end) index ranges, no
// larger than blockCapacity, splitting only once the count exceeds
// blockCapacity*splitRatio (spec.md §4.7 "filledWithRatio(0.9)"). A single
// chunk covering everything is returned when n is at or below that
// threshold, which is also how two small groups end up coalesced into one
// block again: every commit that touches a group rebuilds all of it from
// scratch before re-chunking.
func chunkDocs(n int) [][2]int {
	if n == 0 {
		return nil
	}
	threshold := int(float64(blockCapacity) * splitRatio)
	if n <= threshold {
		return [][2]int{{0, n}}
	}
	size := threshold
	if size <= 0 {
		size = blockCapacity
	}
	chunks := make([][2]int, 0, (n+size-1)/size)
	for start := 0; start < n; start += size {
		end := start + size
		if end > n {
			end = n
		}
		chunks = append(chunks, [2]int{start, end})
	}
	return chunks
}
