package obs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every counter/histogram the storage and query layers emit.
// Field-by-field this is the same shape as the teacher's internal/obs.Metrics,
// re-themed from vector search to full-text search.
type Metrics struct {
	DocumentsInserted  prometheus.Counter
	DocumentsDeleted   prometheus.Counter
	TransactionCommits prometheus.Counter
	TransactionAborts  prometheus.Counter

	QueriesTotal  prometheus.Counter
	QueryErrors   prometheus.Counter
	QueryLatency  prometheus.Histogram
	RanksReturned prometheus.Histogram

	BlockSplits      prometheus.Counter
	BlockMerges      prometheus.Counter
	BlockCorruptions prometheus.Counter
}

// NewMetrics registers and returns a fresh Metrics instance.
func NewMetrics() *Metrics {
	return &Metrics{
		DocumentsInserted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "strusengine_documents_inserted_total",
			Help: "Total documents inserted",
		}),
		DocumentsDeleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "strusengine_documents_deleted_total",
			Help: "Total documents deleted",
		}),
		TransactionCommits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "strusengine_transaction_commits_total",
			Help: "Total committed transactions",
		}),
		TransactionAborts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "strusengine_transaction_aborts_total",
			Help: "Total aborted transactions",
		}),
		QueriesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "strusengine_queries_total",
			Help: "Total queries evaluated",
		}),
		QueryErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "strusengine_query_errors_total",
			Help: "Total queries that aborted with an error",
		}),
		QueryLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name: "strusengine_query_latency_seconds",
			Help: "Query evaluation latency",
		}),
		RanksReturned: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "strusengine_query_ranks_returned",
			Help:    "Number of ranked results returned per query",
			Buckets: prometheus.LinearBuckets(0, 10, 10),
		}),
		BlockSplits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "strusengine_block_splits_total",
			Help: "Total block split operations during commit",
		}),
		BlockMerges: promauto.NewCounter(prometheus.CounterOpts{
			Name: "strusengine_block_merges_total",
			Help: "Total block merge operations during commit",
		}),
		BlockCorruptions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "strusengine_block_corruptions_total",
			Help: "Total data corruption errors raised while reading packed blocks",
		}),
	}
}
