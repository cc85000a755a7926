// Package join implements the posting-set operator algebra from spec.md
// §4.3: union, intersect (with cardinality), sequence, within, difference,
// and their structure-aware variants, all composed over the common
// PostingIterator contract.
package join

// PostingIterator is the contract every term posting and every join
// operator satisfies (spec.md §4.3): skipDoc/skipDocCandidate/skipPos plus
// frequency/length/documentFrequency accessors. All iterators return
// strictly increasing positions within a document and strictly increasing
// docnos; no iterator returns the same (docno,pos) twice (spec.md §8
// invariant 3).
type PostingIterator interface {
	// SkipDoc advances to the first docno >= docno and returns it, or 0 if
	// none remains.
	SkipDoc(docno uint32) uint32

	// SkipDocCandidate is a faster approximation of SkipDoc allowed to
	// return false positives that SkipDoc would reject (spec.md §4.3); join
	// operators use it to prune before paying for an exact check. The
	// default implementation for leaf iterators is simply SkipDoc.
	SkipDocCandidate(docno uint32) uint32

	// SkipPos advances to the first position >= pos within the document
	// most recently selected by SkipDoc, and returns it, or 0 if none
	// remains in that document.
	SkipPos(pos uint16) uint16

	// Frequency returns the feature frequency (duplicate-collapsed
	// occurrence count) of the position last returned by SkipPos.
	Frequency() uint16

	// Length returns the query-posting match length in positions
	// contributed by this iterator (1 for a plain term, >1 for a phrase
	// match produced by sequence/within).
	Length() int

	// DocumentFrequency returns the iterator's estimate of how many
	// documents it matches in total, used by weighting functions for IDF
	// and by the union/intersect cost model.
	DocumentFrequency() int
}
