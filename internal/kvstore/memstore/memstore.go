// Package memstore is an in-memory kvstore.Store used by unit tests and by
// the end-to-end scenario tests covering document indexing and evaluation.
// It mirrors the shape of a mutex-guarded map used as a fast-path cache, but
// keeps everything in-memory since tests never need WAL durability.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/strusgo/strusengine/internal/kvstore"
)

// Store is a sorted in-memory map guarded by a RWMutex.
type Store struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{data: make(map[string][]byte)}
}

func (s *Store) Get(ctx context.Context, key []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[string(key)]
	if !ok {
		return nil, kvstore.ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (s *Store) Has(ctx context.Context, key []byte) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.data[string(key)]
	return ok, nil
}

func (s *Store) Put(ctx context.Context, key, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := make([]byte, len(value))
	copy(v, value)
	s.data[string(key)] = v
	return nil
}

func (s *Store) Delete(ctx context.Context, key []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, string(key))
	return nil
}

func (s *Store) sortedKeys(start, end []byte) []string {
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		if start != nil && k < string(start) {
			continue
		}
		if end != nil && k >= string(end) {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s *Store) Iterate(ctx context.Context, start, end []byte) (kvstore.Cursor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := s.sortedKeys(start, end)
	entries := make([]kvPair, 0, len(keys))
	for _, k := range keys {
		entries = append(entries, kvPair{key: []byte(k), value: append([]byte(nil), s.data[k]...)})
	}
	return &cursor{entries: entries, idx: -1}, nil
}

func (s *Store) NewBatch() kvstore.Batch {
	return &batch{store: s}
}

func (s *Store) Snapshot() (kvstore.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	frozen := make(map[string][]byte, len(s.data))
	for k, v := range s.data {
		frozen[k] = append([]byte(nil), v...)
	}
	return &snapshot{data: frozen}, nil
}

func (s *Store) Ping(ctx context.Context) error { return nil }

func (s *Store) Close() error { return nil }

type kvPair struct {
	key   []byte
	value []byte
}

type batch struct {
	store *Store
	ops   []op
}

type op struct {
	del   bool
	key   []byte
	value []byte
}

func (b *batch) Put(key, value []byte) {
	b.ops = append(b.ops, op{key: append([]byte(nil), key...), value: append([]byte(nil), value...)})
}

func (b *batch) Delete(key []byte) {
	b.ops = append(b.ops, op{del: true, key: append([]byte(nil), key...)})
}

func (b *batch) Len() int { return len(b.ops) }

func (b *batch) Commit(ctx context.Context) error {
	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	for _, o := range b.ops {
		if o.del {
			delete(b.store.data, string(o.key))
		} else {
			b.store.data[string(o.key)] = o.value
		}
	}
	return nil
}

type snapshot struct {
	data map[string][]byte
}

func (s *snapshot) Get(ctx context.Context, key []byte) ([]byte, error) {
	v, ok := s.data[string(key)]
	if !ok {
		return nil, kvstore.ErrNotFound
	}
	return v, nil
}

func (s *snapshot) Has(ctx context.Context, key []byte) (bool, error) {
	_, ok := s.data[string(key)]
	return ok, nil
}

func (s *snapshot) Iterate(ctx context.Context, start, end []byte) (kvstore.Cursor, error) {
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		if start != nil && k < string(start) {
			continue
		}
		if end != nil && k >= string(end) {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	entries := make([]kvPair, 0, len(keys))
	for _, k := range keys {
		entries = append(entries, kvPair{key: []byte(k), value: s.data[k]})
	}
	return &cursor{entries: entries, idx: -1}, nil
}

func (s *snapshot) Release() {}

type cursor struct {
	entries []kvPair
	idx     int
}

func (c *cursor) Next() bool {
	c.idx++
	return c.idx < len(c.entries)
}

func (c *cursor) Key() []byte {
	if c.idx < 0 || c.idx >= len(c.entries) {
		return nil
	}
	return c.entries[c.idx].key
}

func (c *cursor) Value() []byte {
	if c.idx < 0 || c.idx >= len(c.entries) {
		return nil
	}
	return c.entries[c.idx].value
}

func (c *cursor) Err() error   { return nil }
func (c *cursor) Close() error { return nil }
