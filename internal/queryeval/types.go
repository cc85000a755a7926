// Package queryeval implements the query evaluation protocol (spec.md
// §4.4): selection, restriction, exclusion, metadata/ACL filtering,
// weighting-function composition, and bounded ranked accumulation with the
// documented tie-break ordering.
package queryeval

import "github.com/strusgo/strusengine/internal/structblock"

// Rank is one (docno, field?, weight) candidate result (spec.md §6
// "ResultDocument" before summarization is attached).
type Rank struct {
	Docno  uint32
	Field  *structblock.IndexRange
	Weight float64
}

// Result is the evaluator's raw output before summarizers run (spec.md §4.4
// step 6 "QueryResult{pass, nofRanked, nofVisited, ranks, ...}"); the
// top-level package attaches per-rank summaries and wraps this into the
// public QueryResult.
type Result struct {
	Pass       bool
	NofRanked  int
	NofVisited int
	Ranks      []Rank
}
