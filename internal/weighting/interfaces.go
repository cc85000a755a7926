// Package weighting defines the weighting/summarizer function runtime
// (spec.md §4.4 step 3, §4.5, §4.6): a small closed set of interfaces any
// scoring function implements, plus a name-keyed registry used to look up
// and instantiate them from a query evaluation scheme. Concrete functions
// ("title", "bm25pff") live in sibling packages.
package weighting

import (
	"fmt"

	"github.com/strusgo/strusengine/internal/join"
	"github.com/strusgo/strusengine/internal/metadata"
	"github.com/strusgo/strusengine/internal/structblock"
)

// WeightedField is one (field, weight) contribution produced by a
// structure-aware weighting function (spec.md §4.4 step 3).
type WeightedField struct {
	Field  structblock.IndexRange
	Weight float64
}

// FunctionContext is bound to one evaluation run: features are added once,
// then Call is invoked once per candidate docno (spec.md §4.4 step 3).
// A context returns either a bare scalar (len(fields)==0) or a list of
// weighted subfields for structure-aware weighters such as title/bm25pff.
type FunctionContext interface {
	// AddWeightingFeature binds one named query feature (e.g. "match") to
	// its posting iterator, its configured weight, and an optional override
	// document frequency (< 0 means "use itr.DocumentFrequency()").
	AddWeightingFeature(name string, itr join.PostingIterator, weight float64, df int) error

	// Call evaluates the bound features against docno and returns the
	// scalar weight plus, for structure-aware functions, the weighted
	// subfields that produced it.
	Call(docno uint32) (float64, []WeightedField, error)
}

// FunctionInstance is a parameterized, not-yet-bound weighting function
// (one per evaluation scheme entry); CreateFunctionContext stamps out a
// fresh FunctionContext sharing this instance's parameters.
type FunctionInstance interface {
	AddStringParameter(name, value string) error
	AddNumericParameter(name string, value float64) error
	CreateFunctionContext(md *metadata.Table, nofCollectionDocuments int) (FunctionContext, error)
}

// Function is a named weighting scheme factory ("bm25", "bm25pff", "title").
type Function interface {
	Name() string
	CreateInstance() FunctionInstance
}

// SummaryElement is one descriptive result produced by a summarizer for a
// ranked document (spec.md §4.4 step 5): (name, value, weight, index).
type SummaryElement struct {
	Name   string
	Value  string
	Weight float64
	Index  int
}

// SummarizerContext mirrors FunctionContext for the summarizer side: bound
// once per evaluation run, invoked once per surviving rank.
type SummarizerContext interface {
	AddSummarizationFeature(name string, itr join.PostingIterator, weight float64) error
	Call(docno uint32, field *structblock.IndexRange) ([]SummaryElement, error)
}

// SummarizerInstance parallels FunctionInstance for summarizers.
type SummarizerInstance interface {
	AddStringParameter(name, value string) error
	AddNumericParameter(name string, value float64) error
	CreateSummarizerContext(md *metadata.Table) (SummarizerContext, error)
}

// Summarizer is a named summarizer factory ("header", "matchphrase").
type Summarizer interface {
	Name() string
	CreateInstance() SummarizerInstance
}

// Formula combines the component weights of one document's weighting
// functions into a single total weight (spec.md §4.4 step 3: "total weight
// = weighting_formula(component_weights) if a formula is set, else weighted
// sum").
type Formula func(components []float64) float64

// SumFormula is the default combiner used when no formula is configured.
func SumFormula(components []float64) float64 {
	var total float64
	for _, c := range components {
		total += c
	}
	return total
}

// Registry is a name-keyed factory for weighting functions and summarizers,
// grounded on the teacher's internal/index.IndexFactory switch-on-type
// pattern, generalized here to an open-ended map since weighting/summarizer
// names are a user-extensible set (spec.md §9's "trait object" guidance for
// open-ended extension points) rather than a closed enum.
type Registry struct {
	functions   map[string]Function
	summarizers map[string]Summarizer
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		functions:   make(map[string]Function),
		summarizers: make(map[string]Summarizer),
	}
}

// RegisterFunction adds a weighting function under its own Name(), erroring
// on duplicate registration.
func (r *Registry) RegisterFunction(f Function) error {
	name := f.Name()
	if _, exists := r.functions[name]; exists {
		return fmt.Errorf("weighting: function %q already registered", name)
	}
	r.functions[name] = f
	return nil
}

// RegisterSummarizer adds a summarizer under its own Name().
func (r *Registry) RegisterSummarizer(s Summarizer) error {
	name := s.Name()
	if _, exists := r.summarizers[name]; exists {
		return fmt.Errorf("weighting: summarizer %q already registered", name)
	}
	r.summarizers[name] = s
	return nil
}

// Function looks up a registered weighting function by name.
func (r *Registry) Function(name string) (Function, error) {
	f, ok := r.functions[name]
	if !ok {
		return nil, fmt.Errorf("weighting: unknown weighting function %q", name)
	}
	return f, nil
}

// Summarizer looks up a registered summarizer by name.
func (r *Registry) Summarizer(name string) (Summarizer, error) {
	s, ok := r.summarizers[name]
	if !ok {
		return nil, fmt.Errorf("weighting: unknown summarizer %q", name)
	}
	return s, nil
}

// FunctionNames returns every registered weighting function name.
func (r *Registry) FunctionNames() []string {
	out := make([]string, 0, len(r.functions))
	for n := range r.functions {
		out = append(out, n)
	}
	return out
}

// SummarizerNames returns every registered summarizer name.
func (r *Registry) SummarizerNames() []string {
	out := make([]string, 0, len(r.summarizers))
	for n := range r.summarizers {
		out = append(out, n)
	}
	return out
}
