package strusengine

import (
	"context"
	"fmt"

	"github.com/strusgo/strusengine/internal/join"
	"github.com/strusgo/strusengine/internal/metadata"
	"github.com/strusgo/strusengine/internal/queryeval"
	"github.com/strusgo/strusengine/internal/storageimpl"
	"github.com/strusgo/strusengine/internal/weighting"
)

// Query is the stack-based expression builder from spec.md §4.4: terms and
// join expressions are pushed onto an operand stack, complete expressions
// are popped and registered under named feature sets, and an evaluation
// scheme (selection/exclusion/restriction sets, weighting functions,
// summarizers, metadata/ACL restrictions, and ranking bounds) is configured
// around those sets before Evaluate runs the protocol.
type Query struct {
	client   *storageimpl.Client
	registry *weighting.Registry

	stack []stackEntry

	featureSets map[string][]featureEntry

	selectionSets   []string
	exclusionSets   []string
	restrictionSets []string

	weightingFns []weightingBinding
	summarizers  []summarizerBinding
	formula      weighting.Formula

	metaRestriction *metadata.Restriction
	docSet          map[uint32]bool
	hasDocSet       bool

	users []string

	maxNofRanks int
	minRank     int
}

type stackEntry struct {
	itr      join.PostingIterator
	variable string
}

// featureEntry is one posting, its per-feature weight (from defineFeature),
// and its optional attached variable name, registered under a feature set.
type featureEntry struct {
	itr      join.PostingIterator
	weight   float64
	variable string
}

type weightingBinding struct {
	funcName   string
	role       string
	featureSet string
	numParams  map[string]float64
	strParams  map[string]string
}

type summarizerBinding struct {
	funcName   string
	role       string
	featureSet string
	numParams  map[string]float64
	strParams  map[string]string
}

func newQuery(client *storageimpl.Client, registry *weighting.Registry) *Query {
	return &Query{
		client:      client,
		registry:    registry,
		featureSets: make(map[string][]featureEntry),
		maxNofRanks: 0,
		minRank:     0,
	}
}

// PushTerm pushes a leaf term onto the operand stack (spec.md §4.4
// "pushTerm(type, value, length)"). length overrides the match length the
// term contributes to a sequence/within expression (1 for a plain term).
func (q *Query) PushTerm(ctx context.Context, termtype, value string, length int) error {
	itr, err := q.client.OpenPostingIterator(ctx, termtype, value)
	if err != nil {
		return err
	}
	if length > 1 {
		itr = lengthOverride{PostingIterator: itr, length: length}
	}
	q.stack = append(q.stack, stackEntry{itr: itr})
	return nil
}

// PushExpression pops argc operands and pushes a single join expression
// combining them (spec.md §4.4 "pushExpression(op, argc, range,
// cardinality)"). Recognized op names dispatch to the seven operators of
// spec.md §4.3: "union", "intersect", "sequence", "within", "difference",
// "struct_sequence", "struct_within". difference takes exactly two operands
// (a, b); struct_sequence/struct_within take a leading delimiter operand
// followed by the sequence/within operands.
func (q *Query) PushExpression(op string, argc int, rng int, cardinality int) error {
	if argc > len(q.stack) {
		return fmt.Errorf("strusengine: pushExpression(%s): argc %d exceeds stack depth %d", op, argc, len(q.stack))
	}
	args := q.stack[len(q.stack)-argc:]
	inputs := make([]join.PostingIterator, argc)
	for i, a := range args {
		inputs[i] = a.itr
	}
	q.stack = q.stack[:len(q.stack)-argc]

	var result join.PostingIterator
	switch op {
	case "union":
		result = join.NewUnion(inputs...)
	case "intersect":
		result = join.NewIntersect(cardinality, inputs...)
	case "sequence":
		result = join.NewSequence(rng, inputs...)
	case "within":
		result = join.NewWithin(rng, inputs...)
	case "difference":
		if argc != 2 {
			return fmt.Errorf("strusengine: difference expects exactly 2 operands, got %d", argc)
		}
		result = join.NewDifference(rng, inputs[0], inputs[1])
	case "struct_sequence":
		if argc < 1 {
			return fmt.Errorf("strusengine: struct_sequence expects a delimiter plus at least one operand")
		}
		result = join.NewStructSequence(rng, inputs[0], inputs[1:]...)
	case "struct_within":
		if argc < 1 {
			return fmt.Errorf("strusengine: struct_within expects a delimiter plus at least one operand")
		}
		result = join.NewStructWithin(rng, inputs[0], inputs[1:]...)
	default:
		return fmt.Errorf("strusengine: unknown expression operator %q", op)
	}
	q.stack = append(q.stack, stackEntry{itr: result})
	return nil
}

// PushDuplicate duplicates the top argc stack entries, pushing copies on
// top without consuming the originals (spec.md §4.4 "pushDuplicate(argc)").
// This lets one already-built subexpression feed two different parent
// expressions (e.g. a term used for both selection and weighting) without
// rebuilding it; the duplicate shares the same underlying iterator, so it
// must not be advanced concurrently from two goroutines (spec.md §5:
// iterators are not thread-safe).
func (q *Query) PushDuplicate(argc int) error {
	if argc > len(q.stack) {
		return fmt.Errorf("strusengine: pushDuplicate: argc %d exceeds stack depth %d", argc, len(q.stack))
	}
	top := q.stack[len(q.stack)-argc:]
	dup := make([]stackEntry, len(top))
	copy(dup, top)
	q.stack = append(q.stack, dup...)
	return nil
}

// AttachVariable labels the top-of-stack expression with name, so a
// summarizer can later identify the matched subfield by that label
// (spec.md §4.4 "attachVariable(name)").
func (q *Query) AttachVariable(name string) error {
	if len(q.stack) == 0 {
		return fmt.Errorf("strusengine: attachVariable: stack is empty")
	}
	q.stack[len(q.stack)-1].variable = name
	return nil
}

// DefineFeature pops the top-of-stack expression and registers it under a
// named feature set with weight (spec.md §4.4 "defineFeature(set,
// weight)"). A set accumulates every feature registered under its name,
// across repeated calls.
func (q *Query) DefineFeature(set string, weight float64) error {
	if len(q.stack) == 0 {
		return fmt.Errorf("strusengine: defineFeature: stack is empty")
	}
	top := q.stack[len(q.stack)-1]
	q.stack = q.stack[:len(q.stack)-1]
	q.featureSets[set] = append(q.featureSets[set], featureEntry{itr: top.itr, weight: weight, variable: top.variable})
	return nil
}

// DefineMetaDataRestriction adds one (op, name, operand) condition to the
// query's metadata restriction CNF (spec.md §4.4 "defineMetaDataRestriction
// (op, name, operand, new_group)"). newGroup starts a fresh AND'd group;
// otherwise the condition joins the most recently started group's OR list.
func (q *Query) DefineMetaDataRestriction(op metadata.CompareOp, name string, operand float64, newGroup bool) {
	if q.metaRestriction == nil {
		q.metaRestriction = metadata.NewRestriction()
	}
	q.metaRestriction.Add(metadata.Condition{Op: op, Name: name, Operand: operand}, newGroup)
}

// AddDocumentEvaluationSet restricts candidates to docnos (spec.md §4.4
// "addDocumentEvaluationSet(docno[])"). Calling it more than once replaces
// the set rather than intersecting, matching a single docnolist filter.
func (q *Query) AddDocumentEvaluationSet(docnos []uint32) {
	set := make(map[uint32]bool, len(docnos))
	for _, d := range docnos {
		set[d] = true
	}
	q.docSet = set
	q.hasDocSet = true
}

// SetMaxNofRanks bounds the number of ranks returned (spec.md §4.4
// "setMaxNofRanks(k)"). k <= 0 means unlimited.
func (q *Query) SetMaxNofRanks(k int) { q.maxNofRanks = k }

// SetMinRank sets the zero-based offset of the first rank returned (spec.md
// §4.4 "setMinRank(m)").
func (q *Query) SetMinRank(m int) { q.minRank = m }

// AddUserName adds a user to the ACL disjunction: a candidate passes ACL
// filtering if at least one added user has read access (spec.md §4.4
// "addUserName(name)").
func (q *Query) AddUserName(name string) {
	q.users = append(q.users, name)
}

// SetSelectionFeatureSet names the feature set whose postings define the
// candidate docno stream (spec.md §4.4 step 1, "configured in the
// evaluation scheme"). Calling it more than once unions the named sets.
func (q *Query) SetSelectionFeatureSet(set string) {
	q.selectionSets = append(q.selectionSets, set)
}

// AddExclusionFeatureSet names a feature set whose postings exclude a
// candidate when any of them match (spec.md §4.4 step 2).
func (q *Query) AddExclusionFeatureSet(set string) {
	q.exclusionSets = append(q.exclusionSets, set)
}

// AddRestrictionFeatureSet names a feature set of which at least one
// posting must match for a candidate to survive (spec.md §4.4 step 2).
func (q *Query) AddRestrictionFeatureSet(set string) {
	q.restrictionSets = append(q.restrictionSets, set)
}

// SetWeightingFormula overrides the default weighted-sum combiner (spec.md
// §4.4 step 3: "total weight = weighting_formula(component_weights) if a
// formula is set, else weighted sum").
func (q *Query) SetWeightingFormula(f weighting.Formula) { q.formula = f }

// AddWeightingFunction binds a registered weighting function (by name) to a
// feature set: every posting registered under featureSet becomes one
// weighting feature under role (the function's expected feature-role
// name, e.g. "match" for bm25pff), each carrying its own defineFeature
// weight.
func (q *Query) AddWeightingFunction(funcName, role, featureSet string, numParams map[string]float64, strParams map[string]string) {
	q.weightingFns = append(q.weightingFns, weightingBinding{
		funcName: funcName, role: role, featureSet: featureSet, numParams: numParams, strParams: strParams,
	})
}

// AddSummarizer binds a registered summarizer (by name) to a feature set,
// invoked once per surviving rank (spec.md §4.4 step 5).
func (q *Query) AddSummarizer(funcName, role, featureSet string, numParams map[string]float64, strParams map[string]string) {
	q.summarizers = append(q.summarizers, summarizerBinding{
		funcName: funcName, role: role, featureSet: featureSet, numParams: numParams, strParams: strParams,
	})
}

func (q *Query) unionFeatureSets(names []string) (join.PostingIterator, error) {
	var itrs []join.PostingIterator
	for _, name := range names {
		for _, f := range q.featureSets[name] {
			itrs = append(itrs, f.itr)
		}
	}
	switch len(itrs) {
	case 0:
		return nil, nil
	case 1:
		return itrs[0], nil
	default:
		return join.NewUnion(itrs...), nil
	}
}

func (q *Query) flatFeatureIterators(names []string) []join.PostingIterator {
	var out []join.PostingIterator
	for _, name := range names {
		for _, f := range q.featureSets[name] {
			out = append(out, f.itr)
		}
	}
	return out
}

// paramSetter is the parameter-binding contract shared by
// weighting.FunctionInstance and weighting.SummarizerInstance.
type paramSetter interface {
	AddStringParameter(name, value string) error
	AddNumericParameter(name string, value float64) error
}

func (q *Query) bindParams(numParams map[string]float64, strParams map[string]string, inst paramSetter) error {
	for k, v := range strParams {
		if err := inst.AddStringParameter(k, v); err != nil {
			return err
		}
	}
	for k, v := range numParams {
		if err := inst.AddNumericParameter(k, v); err != nil {
			return err
		}
	}
	return nil
}

// Evaluate runs the full evaluation protocol (spec.md §4.4 steps 1-6) and
// wraps the result with per-rank summaries.
func (q *Query) Evaluate(ctx context.Context) (*QueryResult, error) {
	selection, err := q.unionFeatureSets(q.selectionSets)
	if err != nil {
		return nil, err
	}

	ev := &queryeval.Evaluator{
		Selection:           selection,
		Exclusion:           q.flatFeatureIterators(q.exclusionSets),
		Restriction:         q.flatFeatureIterators(q.restrictionSets),
		MetadataRestriction: q.metaRestriction,
		MetadataTable:       q.client.MetadataTable(),
		ACL:                 q.client.ACL(),
		Users:               q.users,
		Formula:             q.formula,
		MaxNofRanks:         q.maxNofRanks,
		MinRank:             q.minRank,
	}
	if q.hasDocSet {
		ev.DocumentSet = q.docSet
	}

	md := q.client.MetadataTable()
	n := q.client.NofDocuments()

	for _, wb := range q.weightingFns {
		fn, err := q.registry.Function(wb.funcName)
		if err != nil {
			return nil, err
		}
		inst := fn.CreateInstance()
		if err := q.bindParams(wb.numParams, wb.strParams, inst); err != nil {
			return nil, err
		}
		fctx, err := inst.CreateFunctionContext(md, n)
		if err != nil {
			return nil, err
		}
		for _, f := range q.featureSets[wb.featureSet] {
			if err := fctx.AddWeightingFeature(wb.role, f.itr, f.weight, -1); err != nil {
				return nil, err
			}
		}
		ev.Weighting = append(ev.Weighting, queryeval.WeightingBinding{Context: fctx})
	}

	raw, err := ev.Evaluate()
	if err != nil {
		return nil, err
	}

	ranks := make([]ResultDocument, len(raw.Ranks))
	for i, r := range raw.Ranks {
		rd := ResultDocument{Docno: r.Docno, Field: r.Field, Weight: r.Weight}
		for _, sb := range q.summarizers {
			sm, err := q.registry.Summarizer(sb.funcName)
			if err != nil {
				return nil, err
			}
			sinst := sm.CreateInstance()
			if err := q.bindParams(sb.numParams, sb.strParams, sinst); err != nil {
				return nil, err
			}
			sctx, err := sinst.CreateSummarizerContext(md)
			if err != nil {
				return nil, err
			}
			for _, f := range q.featureSets[sb.featureSet] {
				if err := sctx.AddSummarizationFeature(sb.role, f.itr, f.weight); err != nil {
					return nil, err
				}
			}
			elems, err := sctx.Call(r.Docno, r.Field)
			if err != nil {
				return nil, err
			}
			rd.Summary = append(rd.Summary, elems...)
		}
		ranks[i] = rd
	}

	return &QueryResult{
		Pass:       raw.Pass,
		NofRanked:  raw.NofRanked,
		NofVisited: raw.NofVisited,
		Ranks:      ranks,
	}, nil
}

// lengthOverride wraps a PostingIterator to report a fixed match length,
// used for pushTerm's length argument (normal term postings always report
// length 1).
type lengthOverride struct {
	join.PostingIterator
	length int
}

func (l lengthOverride) Length() int { return l.length }
