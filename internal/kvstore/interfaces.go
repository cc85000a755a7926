// Package kvstore defines the ordered key/value store adapter contract
// spec.md §2 calls out as an external collaborator: opaque get/put/delete/
// iterate by key, batched writes, and snapshots. strusengine never assumes
// anything about the backing engine beyond what this interface promises;
// internal/kvstore/leveldb backs it with a real LevelDB-style store, and
// memstore backs it with an in-memory map for unit tests.
package kvstore

import "context"

// Store is the full read/write contract the storage client depends on.
type Store interface {
	Reader
	Writer

	// NewBatch starts an atomic batch of writes; nothing is visible to
	// readers until Batch.Commit succeeds (spec.md §4.7 step 3).
	NewBatch() Batch

	// Snapshot freezes the current view for a consistent read scope, per
	// spec.md §5: "reads within a single query see a consistent snapshot
	// taken at query start."
	Snapshot() (Snapshot, error)

	// Ping checks that the store is reachable and not corrupted, used by
	// obs.HealthChecker.
	Ping(ctx context.Context) error

	Close() error
}

// Reader is the read-only subset of Store, also satisfied by Snapshot.
type Reader interface {
	Get(ctx context.Context, key []byte) ([]byte, error)
	Has(ctx context.Context, key []byte) (bool, error)
	// Iterate returns a Cursor positioned before the first key >= start and
	// bounded above (exclusive) by end. A nil end means unbounded.
	Iterate(ctx context.Context, start, end []byte) (Cursor, error)
}

// Writer is the mutating subset of Store, used directly only outside of
// transactions (e.g. schema bootstrap); ordinary document mutation always
// goes through a Batch so it is atomic.
type Writer interface {
	Put(ctx context.Context, key, value []byte) error
	Delete(ctx context.Context, key []byte) error
}

// Batch accumulates writes for one atomic commit.
type Batch interface {
	Put(key, value []byte)
	Delete(key []byte)
	// Len returns the number of staged operations.
	Len() int
	// Commit stages all operations atomically; on error no change is
	// visible (spec.md §4.7 step 3).
	Commit(ctx context.Context) error
}

// Snapshot is a point-in-time read-only view.
type Snapshot interface {
	Reader
	Release()
}

// Cursor iterates keys in ascending order within the bounds given to
// Iterate.
type Cursor interface {
	// Next advances the cursor and reports whether a key is available.
	Next() bool
	Key() []byte
	Value() []byte
	Err() error
	Close() error
}
