package strusengine

import (
	"context"

	"github.com/strusgo/strusengine/internal/metadata"
	"github.com/strusgo/strusengine/internal/obs"
	"github.com/strusgo/strusengine/internal/storageimpl"
)

// Transaction accumulates document creates/updates/deletes and schema
// changes for one atomic Commit (spec.md §4.7).
type Transaction struct {
	tx      *storageimpl.Transaction
	breaker *obs.CircuitBreaker
}

// CreateDocument starts a mutation for a new document. docno == 0 lets the
// storage assign the next dense docno on commit.
func (t *Transaction) CreateDocument(docid string, docno uint32) *DocumentBuilder {
	return &DocumentBuilder{m: t.tx.CreateDocument(docid, docno)}
}

// UpdateDocument starts a mutation for an existing docid.
func (t *Transaction) UpdateDocument(docid string) *DocumentBuilder {
	return &DocumentBuilder{m: t.tx.UpdateDocument(docid)}
}

// DeleteDocument marks docid for deletion.
func (t *Transaction) DeleteDocument(docid string) {
	t.tx.DeleteDocument(docid)
}

// SetSchema requests a metadata schema change. Per spec.md §4.7, a
// transaction cannot mix a schema change with document writes; Commit
// rejects that combination.
func (t *Transaction) SetSchema(cols []metadata.ColumnDef) {
	t.tx.SetSchema(cols)
}

// Commit applies every accumulated mutation atomically. The commit runs
// through a circuit breaker so repeated KV store failures fail fast instead
// of retrying a backend that is already down, the same fault-tolerance
// posture the teacher's ErrorRecoveryManager applies per component.
func (t *Transaction) Commit(ctx context.Context) error {
	if t.breaker == nil {
		return t.tx.Commit(ctx)
	}
	return t.breaker.Execute(ctx, func() error {
		return t.tx.Commit(ctx)
	})
}
