package strusengine

import (
	"context"
	"fmt"

	"github.com/strusgo/strusengine/internal/attribute"
	"github.com/strusgo/strusengine/internal/kvstore"
	"github.com/strusgo/strusengine/internal/kvstore/leveldb"
	"github.com/strusgo/strusengine/internal/kvstore/memstore"
	"github.com/strusgo/strusengine/internal/obs"
	"github.com/strusgo/strusengine/internal/storageimpl"
	"github.com/strusgo/strusengine/internal/structblock"
	"github.com/strusgo/strusengine/internal/weighting"
	"github.com/strusgo/strusengine/internal/weighting/bm25pff"
	"github.com/strusgo/strusengine/internal/weighting/header"
	"github.com/strusgo/strusengine/internal/weighting/matchphrase"
	"github.com/strusgo/strusengine/internal/weighting/title"
)

// Storage is the top-level handle on one index: it owns the storage client
// (document/term/metadata/ACL state) and the weighting/summarizer registry
// queries draw functions from. Mirrors how libravdb.Database wraps a
// storage.Engine and an obs.Metrics set behind one constructor.
type Storage struct {
	client   *storageimpl.Client
	registry *weighting.Registry
	metrics  *obs.Metrics
	health   *obs.HealthChecker
	breaker  *obs.CircuitBreaker
}

// Open creates or reopens a Storage. The configuration string (spec.md §6)
// must be supplied via WithConfigString; WithInMemoryStore selects a
// memstore-backed index instead of the default LevelDB-backed one.
func Open(ctx context.Context, opts ...Option) (*Storage, error) {
	cfg := &config{
		logger:          obs.Logger(),
		metrics:         obs.NewMetrics(),
		summaryTermtype: "orig",
	}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("strusengine: failed to apply option: %w", err)
		}
	}
	if cfg.confString == "" {
		return nil, fmt.Errorf("strusengine: WithConfigString is required")
	}

	parsed, err := storageimpl.ParseConfig(cfg.confString)
	if err != nil {
		return nil, err
	}

	var store kvstore.Store
	switch cfg.kv {
	case backendMemory:
		store = memstore.New()
	default:
		store, err = leveldb.Open(parsed.Path)
		if err != nil {
			return nil, fmt.Errorf("strusengine: failed to open storage at %q: %w", parsed.Path, err)
		}
	}

	client, err := storageimpl.Open(ctx, store, parsed, cfg.logger, cfg.metrics)
	if err != nil {
		return nil, err
	}

	registry := weighting.NewRegistry()

	// Structure-aware weighting functions (title, bm25pff) take a
	// StructureSource callback with no context parameter; evaluation reads
	// are cheap local KV lookups, so a background context is used here
	// rather than threading one through the weighting interfaces.
	source := func(docno uint32) *structblock.StructBlock {
		blk, err := client.LoadStructBlock(context.Background(), docno)
		if err != nil {
			return nil
		}
		return blk
	}

	if err := registry.RegisterFunction(title.Function{Structure: source}); err != nil {
		return nil, err
	}
	if err := registry.RegisterFunction(bm25pff.Function{Structure: source}); err != nil {
		return nil, err
	}

	// Forward-index text lookup, shared by the "header" and "matchphrase"
	// summarizers (spec.md §4.5/§4.6) to render the title path and the
	// selected sentence windows as readable text rather than bare field
	// boundaries.
	forwardText := func(docno uint32, pos uint16) (string, bool) {
		v, ok, err := client.ForwardTermAt(context.Background(), docno, cfg.summaryTermtype, pos)
		if err != nil {
			return "", false
		}
		return v, ok
	}

	if err := registry.RegisterSummarizer(header.Function{Structure: source, Forward: forwardText}); err != nil {
		return nil, err
	}
	if err := registry.RegisterSummarizer(matchphrase.Function{
		Structure:    source,
		Forward:      forwardText,
		NofDocuments: client.NofDocuments,
	}); err != nil {
		return nil, err
	}

	return &Storage{
		client:   client,
		registry: registry,
		metrics:  cfg.metrics,
		health:   obs.NewHealthChecker(client.Store()),
		breaker:  obs.NewCircuitBreaker(obs.DefaultCircuitBreakerConfig("storage.commit")),
	}, nil
}

// Health reports whether the underlying KV store is reachable, mirroring
// how libravdb.Database.Health wraps obs.HealthChecker around its storage
// engine.
func (s *Storage) Health(ctx context.Context) (*obs.HealthStatus, error) {
	return s.health.Check(ctx)
}

// Begin starts a new transaction against this storage (spec.md §4.7).
func (s *Storage) Begin() *Transaction {
	return &Transaction{tx: s.client.Begin(), breaker: s.breaker}
}

// NewQuery starts a new stack-based query against this storage.
func (s *Storage) NewQuery() *Query {
	return newQuery(s.client, s.registry)
}

// Registry exposes the weighting/summarizer registry so callers can
// register additional functions before building a query.
func (s *Storage) Registry() *weighting.Registry {
	return s.registry
}

// NofDocuments returns the current document count.
func (s *Storage) NofDocuments() int {
	return s.client.NofDocuments()
}

// Attributes exposes the schema-free attribute store, used by callers that
// want to display a ranked document's stored title/URL/etc.
func (s *Storage) Attributes() *attribute.Store {
	return s.client.Attributes()
}

// DocNo resolves a docid to its docno, or false if unknown.
func (s *Storage) DocNo(docid string) (uint32, bool) {
	return s.client.DocNo(docid)
}

// DocID resolves a docno back to its docid, or false if unknown.
func (s *Storage) DocID(docno uint32) (string, bool) {
	return s.client.DocID(docno)
}

// Close releases the underlying storage.
func (s *Storage) Close() error {
	return s.client.Close()
}
