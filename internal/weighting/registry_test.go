package weighting

import (
	"testing"

	"github.com/strusgo/strusengine/internal/join"
	"github.com/strusgo/strusengine/internal/metadata"
)

type stubInstance struct{}

func (stubInstance) AddStringParameter(name, value string) error  { return nil }
func (stubInstance) AddNumericParameter(name string, v float64) error { return nil }
func (stubInstance) CreateFunctionContext(md *metadata.Table, n int) (FunctionContext, error) {
	return stubContext{}, nil
}

type stubContext struct{}

func (stubContext) AddWeightingFeature(name string, itr join.PostingIterator, w float64, df int) error {
	return nil
}
func (stubContext) Call(docno uint32) (float64, []WeightedField, error) { return 1, nil, nil }

type stubFunction struct{ name string }

func (s stubFunction) Name() string                 { return s.name }
func (s stubFunction) CreateInstance() FunctionInstance { return stubInstance{} }

func TestRegistryRegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	if err := r.RegisterFunction(stubFunction{name: "bm25"}); err != nil {
		t.Fatalf("RegisterFunction: %v", err)
	}
	if err := r.RegisterFunction(stubFunction{name: "bm25"}); err == nil {
		t.Fatal("expected error on duplicate registration")
	}
	f, err := r.Function("bm25")
	if err != nil {
		t.Fatalf("Function(bm25): %v", err)
	}
	if f.Name() != "bm25" {
		t.Fatalf("got %q", f.Name())
	}
	if _, err := r.Function("nope"); err == nil {
		t.Fatal("expected error for unknown function")
	}
}

func TestSumFormula(t *testing.T) {
	got := SumFormula([]float64{1.5, 2.5, 0.5})
	if got != 4.5 {
		t.Fatalf("SumFormula = %v, want 4.5", got)
	}
}
