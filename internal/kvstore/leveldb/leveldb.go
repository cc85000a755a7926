// Package leveldb backs kvstore.Store with a real LevelDB-style ordered
// store (github.com/syndtr/goleveldb), sourced from the wider example pack
// (direktiv-vorteil/go.mod) rather than hand-rolled, per SPEC_FULL.md's
// DOMAIN STACK section.
package leveldb

import (
	"context"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/strusgo/strusengine/internal/kvstore"
	"github.com/strusgo/strusengine/internal/obs"
)

// Store wraps a *leveldb.DB to satisfy kvstore.Store.
type Store struct {
	db *leveldb.DB
}

// Open opens (creating if absent) a LevelDB database at path.
func Open(path string) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Get(ctx context.Context, key []byte) ([]byte, error) {
	v, err := s.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, kvstore.ErrNotFound
	}
	return v, err
}

func (s *Store) Has(ctx context.Context, key []byte) (bool, error) {
	return s.db.Has(key, nil)
}

func (s *Store) Put(ctx context.Context, key, value []byte) error {
	return s.db.Put(key, value, nil)
}

func (s *Store) Delete(ctx context.Context, key []byte) error {
	return s.db.Delete(key, nil)
}

func (s *Store) Iterate(ctx context.Context, start, end []byte) (kvstore.Cursor, error) {
	rng := &util.Range{Start: start, Limit: end}
	it := s.db.NewIterator(rng, nil)
	return &cursor{it: it}, nil
}

func (s *Store) NewBatch() kvstore.Batch {
	return &batch{db: s.db, b: new(leveldb.Batch)}
}

func (s *Store) Snapshot() (kvstore.Snapshot, error) {
	snap, err := s.db.GetSnapshot()
	if err != nil {
		return nil, err
	}
	return &snapshot{snap: snap}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	_, err := s.db.Has([]byte("\x00ping"), nil)
	return err
}

func (s *Store) Close() error {
	obs.WithComponent("kvstore/leveldb").Info("closing leveldb store")
	return s.db.Close()
}

type batch struct {
	db *leveldb.DB
	b  *leveldb.Batch
	n  int
}

func (b *batch) Put(key, value []byte) { b.b.Put(key, value); b.n++ }
func (b *batch) Delete(key []byte)     { b.b.Delete(key); b.n++ }
func (b *batch) Len() int              { return b.n }
func (b *batch) Commit(ctx context.Context) error {
	return b.db.Write(b.b, nil)
}

type snapshot struct {
	snap *leveldb.Snapshot
}

func (s *snapshot) Get(ctx context.Context, key []byte) ([]byte, error) {
	v, err := s.snap.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, kvstore.ErrNotFound
	}
	return v, err
}

func (s *snapshot) Has(ctx context.Context, key []byte) (bool, error) {
	return s.snap.Has(key, nil)
}

func (s *snapshot) Iterate(ctx context.Context, start, end []byte) (kvstore.Cursor, error) {
	rng := &util.Range{Start: start, Limit: end}
	it := s.snap.NewIterator(rng, nil)
	return &cursor{it: it}, nil
}

func (s *snapshot) Release() {
	s.snap.Release()
}

type cursor struct {
	it      iterator.Iterator
	started bool
}

func (c *cursor) Next() bool {
	if !c.started {
		c.started = true
		return c.it.First()
	}
	return c.it.Next()
}

func (c *cursor) Key() []byte   { return c.it.Key() }
func (c *cursor) Value() []byte { return c.it.Value() }
func (c *cursor) Err() error    { return c.it.Error() }
func (c *cursor) Close() error  { c.it.Release(); return nil }
