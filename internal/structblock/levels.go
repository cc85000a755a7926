package structblock

import (
	"fmt"
	"sort"
)

// assignLevels partitions a set of fields into level-separated,
// pairwise-non-overlapping covers (spec.md §4.2 step 2): "a tree-building
// routine that greedily attaches each field to the smallest existing tree
// containing it; ... partial overlaps ... are deferred to a rest list that
// seeds subsequent passes. Each pass yields a forest; each tree's
// level-assignment becomes a cover."
//
// A field nested inside another gets a deeper level in the same pass
// (siblings at the same stack depth never overlap, since the scan is
// left-to-right by Start and a field only descends when strictly contained
// in the current top of stack). Fields that partially overlap an open
// ancestor (neither contains nor is contained) cannot share any level with
// it and are deferred to the next pass entirely.
func assignLevels(fields []IndexRange) (map[IndexRange]int, error) {
	levelOf := make(map[IndexRange]int, len(fields))
	remaining := append([]IndexRange(nil), fields...)
	levelOffset := 0

	for len(remaining) > 0 {
		if levelOffset >= MaxFieldLevels {
			return nil, fmt.Errorf("structblock: exceeded MaxFieldLevels (%d) resolving field overlaps", MaxFieldLevels)
		}
		sort.Slice(remaining, func(i, j int) bool {
			a, b := remaining[i], remaining[j]
			if a.Start != b.Start {
				return a.Start < b.Start
			}
			return a.End > b.End // outer (longer) fields first among equal starts
		})

		type stackEntry struct {
			rng   IndexRange
			depth int
		}
		var stack []stackEntry
		var rest []IndexRange
		maxDepth := 0

		for _, f := range remaining {
			for len(stack) > 0 && stack[len(stack)-1].rng.End <= f.Start {
				stack = stack[:len(stack)-1]
			}
			if len(stack) == 0 {
				stack = append(stack, stackEntry{f, 0})
				levelOf[f] = levelOffset
				continue
			}
			top := stack[len(stack)-1]
			if top.rng.contains(f) {
				depth := top.depth + 1
				stack = append(stack, stackEntry{f, depth})
				levelOf[f] = levelOffset + depth
				if depth > maxDepth {
					maxDepth = depth
				}
			} else {
				// Partial overlap with an open ancestor: cannot nest or sit
				// alongside it at this level. Defer to the next pass.
				rest = append(rest, f)
			}
		}

		remaining = rest
		levelOffset += maxDepth + 1
	}
	return levelOf, nil
}
