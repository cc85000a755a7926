package strusengine

import (
	"context"
	"strconv"
	"testing"
)

// primeFactors returns the distinct prime factors of n, ascending.
func primeFactors(n int) []int {
	var out []int
	for p := 2; p*p <= n; p++ {
		if n%p == 0 {
			out = append(out, p)
			for n%p == 0 {
				n /= p
			}
		}
	}
	if n > 1 {
		out = append(out, n)
	}
	return out
}

// TestScenarioEvaluationExclusionRestriction reproduces spec.md §8 S6: ten
// documents each contain "hello world" plus the prime factors of their
// ordinal as search terms; a query selecting on "hello" and restricting to
// "the document has 2 or 3 as a prime factor" must return exactly the
// documents divisible by 2 or 3.
func TestScenarioEvaluationExclusionRestriction(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t, "path=/tmp/idx")
	defer s.Close()

	const n = 10
	tx := s.Begin()
	for i := 1; i <= n; i++ {
		doc := tx.CreateDocument("D"+strconv.Itoa(i), 0)
		doc.AddSearchIndexTerm("word", "hello", 1)
		doc.AddSearchIndexTerm("word", "world", 2)
		pos := uint16(10)
		for _, p := range primeFactors(i) {
			doc.AddSearchIndexTerm("prime", strconv.Itoa(p), pos)
			pos++
		}
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	q := s.NewQuery()
	if err := q.PushTerm(ctx, "word", "hello", 1); err != nil {
		t.Fatalf("PushTerm hello: %v", err)
	}
	if err := q.DefineFeature("select", 1.0); err != nil {
		t.Fatalf("DefineFeature select: %v", err)
	}
	q.SetSelectionFeatureSet("select")

	if err := q.PushTerm(ctx, "prime", "2", 1); err != nil {
		t.Fatalf("PushTerm prime:2: %v", err)
	}
	if err := q.DefineFeature("restrict", 1.0); err != nil {
		t.Fatalf("DefineFeature restrict 2: %v", err)
	}
	if err := q.PushTerm(ctx, "prime", "3", 1); err != nil {
		t.Fatalf("PushTerm prime:3: %v", err)
	}
	if err := q.DefineFeature("restrict", 1.0); err != nil {
		t.Fatalf("DefineFeature restrict 3: %v", err)
	}
	q.AddRestrictionFeatureSet("restrict")
	q.SetMaxNofRanks(n)

	res, err := q.Evaluate(ctx)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	want := map[uint32]bool{}
	for i := 1; i <= n; i++ {
		if i%2 == 0 || i%3 == 0 {
			want[uint32(i)] = true
		}
	}
	if len(res.Ranks) != len(want) {
		t.Fatalf("got %d ranks, want %d: %+v", len(res.Ranks), len(want), res.Ranks)
	}
	for _, r := range res.Ranks {
		if !want[r.Docno] {
			t.Fatalf("unexpected docno %d in results", r.Docno)
		}
	}
}

// TestScenarioACLRestrictsVisibility verifies that enabling ACL on a
// storage and adding user names to a query filters out documents the
// queried users cannot read (spec.md §4.4 step 2 "ACL").
func TestScenarioACLRestrictsVisibility(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t, "path=/tmp/idx; acl=yes")
	defer s.Close()

	tx := s.Begin()
	d1 := tx.CreateDocument("secret", 0)
	d1.AddSearchIndexTerm("word", "hello", 1)
	d1.SetUserAccessRight("alice")

	d2 := tx.CreateDocument("public", 0)
	d2.AddSearchIndexTerm("word", "hello", 1)
	d2.SetUserAccessRight("alice")
	d2.SetUserAccessRight("bob")

	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	q := s.NewQuery()
	if err := q.PushTerm(ctx, "word", "hello", 1); err != nil {
		t.Fatalf("PushTerm: %v", err)
	}
	if err := q.DefineFeature("select", 1.0); err != nil {
		t.Fatalf("DefineFeature: %v", err)
	}
	q.SetSelectionFeatureSet("select")
	q.AddUserName("bob")
	q.SetMaxNofRanks(10)

	res, err := q.Evaluate(ctx)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(res.Ranks) != 1 {
		t.Fatalf("got %d ranks, want 1 (bob can only see 'public')", len(res.Ranks))
	}
	docno, ok := s.client.DocNo("public")
	if !ok {
		t.Fatalf("DocNo(public) not found")
	}
	if res.Ranks[0].Docno != docno {
		t.Fatalf("Ranks[0].Docno = %d, want %d", res.Ranks[0].Docno, docno)
	}
}
