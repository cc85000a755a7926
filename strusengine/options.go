package strusengine

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/strusgo/strusengine/internal/obs"
)

// Option configures a Storage at construction (functional-options pattern,
// grounded on the teacher's libravdb.Option).
type Option func(*config) error

type config struct {
	confString      string
	logger          *logrus.Logger
	metrics         *obs.Metrics
	kv              kvBackend
	summaryTermtype string
}

// kvBackend selects which internal/kvstore implementation backs a Storage.
type kvBackend int

const (
	backendLevelDB kvBackend = iota
	backendMemory
)

// WithConfigString sets the storage configuration string (spec.md §6:
// "path=<dir>; metadata=<name> TYPE,...; acl=yes|no; max_positions=<n>").
// Required; Open fails if it was never supplied.
func WithConfigString(s string) Option {
	return func(c *config) error {
		if s == "" {
			return fmt.Errorf("strusengine: configuration string cannot be empty")
		}
		c.confString = s
		return nil
	}
}

// WithLogger replaces the structured logger used for client/transaction/query
// diagnostics. Defaults to obs.Logger() when not set.
func WithLogger(l *logrus.Logger) Option {
	return func(c *config) error {
		c.logger = l
		return nil
	}
}

// WithMetrics attaches a Prometheus metrics set. Defaults to obs.NewMetrics()
// when not set; pass an explicit nil-valued *obs.Metrics via a custom
// Option only if metrics collection should be disabled entirely.
func WithMetrics(m *obs.Metrics) Option {
	return func(c *config) error {
		c.metrics = m
		return nil
	}
}

// WithInMemoryStore backs the storage with an in-memory kvstore instead of
// LevelDB, for tests and ephemeral indices; the on-disk path segment of the
// configuration string is ignored in that case.
func WithInMemoryStore() Option {
	return func(c *config) error {
		c.kv = backendMemory
		return nil
	}
}

// WithSummaryTermType selects the forward-index term type the "header" and
// "matchphrase" summarizers read to render decoded text (spec.md §4.5/§4.6);
// defaults to "orig", the forward-index type a document's original-form
// terms are conventionally indexed under. Documents that never populate
// this forward-index type still summarize, just without decoded text.
func WithSummaryTermType(termtype string) Option {
	return func(c *config) error {
		c.summaryTermtype = termtype
		return nil
	}
}
