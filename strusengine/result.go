package strusengine

import (
	"github.com/strusgo/strusengine/internal/structblock"
	"github.com/strusgo/strusengine/internal/weighting"
)

// QueryResult is the public result of Query.Evaluate (spec.md §6
// "QueryResult{pass, nofRanked, nofVisited, ranks, summary}").
type QueryResult struct {
	Pass       bool
	NofRanked  int
	NofVisited int
	Ranks      []ResultDocument
}

// ResultDocument is one ranked document (spec.md §6 "ResultDocument"):
// docno, an optional matched field for structure-aware weighting, its total
// weight, and any summarizer output attached to it.
type ResultDocument struct {
	Docno   uint32
	Field   *structblock.IndexRange
	Weight  float64
	Summary []weighting.SummaryElement
}
