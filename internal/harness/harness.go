package harness

import (
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/calyx-lang/calyx/internal/elaborate"
	"github.com/calyx-lang/calyx/internal/eval"
	"github.com/calyx-lang/calyx/internal/gen"
	"github.com/calyx-lang/calyx/internal/invert"
	"github.com/calyx-lang/calyx/internal/ir"
	"github.com/calyx-lang/calyx/internal/store"
)

// Result captures one scenario execution.
type Result struct {
	// Inverted is true when the engine produced a generator.
	Inverted bool

	// FailureCode is the structured code when inversion failed.
	FailureCode string

	// Cardinality and MayHaveDuplicates describe the produced generator.
	Cardinality       string
	MayHaveDuplicates bool

	// GeneratorText is the canonical rendering of the synthesized
	// generator expression, used for golden file comparison.
	GeneratorText string

	// Tuples are the materialized rows, formatted and sorted.
	Tuples []string

	// Errors lists expectation failures. Empty means the scenario passed.
	Errors []string
}

// Passed reports whether all expectations held.
func (r *Result) Passed() bool {
	return len(r.Errors) == 0
}

func (r *Result) addErrorf(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh in-memory database for isolation:
//  1. Elaborate the CUE definition file
//  2. Load relations and tuples into a fresh store
//  3. Invert the named query against the store-backed environment
//  4. Materialize the generator and compare tuple sets
//  5. Optionally cross-check against exhaustive enumeration
//
// A non-nil error means the scenario could not be executed at all;
// expectation failures land in Result.Errors instead.
func Run(scenario *Scenario) (*Result, error) {
	doc, err := elaborate.LoadFile(scenario.Definitions)
	if err != nil {
		return nil, fmt.Errorf("failed to elaborate definitions: %w", err)
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	if err := loadRelations(st, doc); err != nil {
		return nil, err
	}

	query, err := selectQuery(doc, scenario.Query)
	if err != nil {
		return nil, err
	}
	goal, err := query.GoalPattern()
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", query.Name, err)
	}

	bound, binding, err := convertBound(scenario.Bound)
	if err != nil {
		return nil, err
	}

	env := store.NewEnv(st, doc.Functions)

	// Suppress logs in tests
	opts := []invert.Option{
		invert.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	if scenario.MaxDepth > 0 {
		opts = append(opts, invert.WithMaxDepth(scenario.MaxDepth))
	}

	result := &Result{}
	res, err := invert.Invert(env, query.Expr, goal, bound, opts...)
	if err != nil {
		if code := invert.CodeOf(err); code != "" {
			result.FailureCode = string(code)
			checkFailure(scenario, result)
			return result, nil
		}
		return nil, fmt.Errorf("inversion failed unexpectedly: %w", err)
	}

	result.Inverted = true
	result.Cardinality = string(res.Generator.Cardinality)
	result.MayHaveDuplicates = res.MayHaveDuplicates
	result.GeneratorText = ir.Format(res.Generator.Expr)

	universe, err := collectUniverse(st, doc)
	if err != nil {
		return nil, err
	}
	ev := eval.New(env, st, eval.WithUniverse(universe))

	tuples, err := ev.Materialize(res, binding)
	if err != nil {
		return nil, fmt.Errorf("failed to materialize generator: %w", err)
	}
	result.Tuples = formatTuples(tuples)

	checkOutcome(scenario, result, goal)

	if scenario.Expect.CheckFallback {
		if err := checkFallback(scenario, result, ev, query, goal, binding, universe); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// loadRelations defines the document's relations and inserts their tuples.
func loadRelations(st *store.Store, doc *elaborate.Document) error {
	for _, rel := range doc.Relations {
		if err := st.DefineRelation(rel.Name, rel.Arity, rel.Finite); err != nil {
			return fmt.Errorf("failed to define relation %q: %w", rel.Name, err)
		}
		if rows := doc.Data[rel.Name]; len(rows) > 0 {
			if err := st.InsertTuples(rel.Name, rows); err != nil {
				return fmt.Errorf("failed to load relation %q: %w", rel.Name, err)
			}
		}
	}
	return nil
}

// selectQuery resolves the scenario's query reference.
func selectQuery(doc *elaborate.Document, name string) (*elaborate.Query, error) {
	if name == "" {
		if len(doc.Queries) != 1 {
			return nil, fmt.Errorf("definition file has %d queries; scenario must name one", len(doc.Queries))
		}
		return doc.Queries[0], nil
	}
	for _, q := range doc.Queries {
		if q.Name == name {
			return q, nil
		}
	}
	return nil, fmt.Errorf("query %q not found in definition file", name)
}

// convertBound converts the scenario's bound map into the inverter's
// bound context and the evaluator's binding.
func convertBound(raw map[string]interface{}) (gen.BoundContext, eval.Binding, error) {
	bound := gen.BoundContext{}
	binding := eval.Binding{}
	for name, v := range raw {
		val, err := convertYAMLValue(v)
		if err != nil {
			return nil, nil, fmt.Errorf("bound.%s: %w", name, err)
		}
		bound[name] = val
		binding[name] = val
	}
	return bound, binding, nil
}

// convertYAMLValue converts a YAML-parsed value to an ir.Value.
// Floats are forbidden; all numbers must be ints.
func convertYAMLValue(val interface{}) (ir.Value, error) {
	switch v := val.(type) {
	case string:
		return ir.NewVString(v), nil
	case int:
		return ir.NewVInt(int64(v)), nil
	case int64:
		return ir.NewVInt(v), nil
	case float64:
		if v == float64(int64(v)) {
			return ir.NewVInt(int64(v)), nil
		}
		return nil, fmt.Errorf("floats are forbidden: %v", v)
	case bool:
		return ir.NewVBool(v), nil
	case []interface{}:
		elems := make([]ir.Value, len(v))
		for i, elem := range v {
			irElem, err := convertYAMLValue(elem)
			if err != nil {
				return nil, fmt.Errorf("list[%d]: %w", i, err)
			}
			elems[i] = irElem
		}
		return ir.NewVList(elems...), nil
	default:
		return nil, fmt.Errorf("unsupported type %T", val)
	}
}

// convertExpectedTuple converts one expected row. A scalar stands for a
// single goal variable; a list must match the goal arity.
func convertExpectedTuple(row interface{}, arity int) (ir.Value, error) {
	if arity == 1 {
		if _, isList := row.([]interface{}); !isList {
			return convertYAMLValue(row)
		}
	}
	elemsRaw, ok := row.([]interface{})
	if !ok {
		return nil, fmt.Errorf("expected a %d-element row, got %T", arity, row)
	}
	if len(elemsRaw) != arity {
		return nil, fmt.Errorf("row has %d elements, goal arity is %d", len(elemsRaw), arity)
	}
	elems := make([]ir.Value, len(elemsRaw))
	for i, raw := range elemsRaw {
		v, err := convertYAMLValue(raw)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		elems[i] = v
	}
	if arity == 1 {
		return elems[0], nil
	}
	return ir.NewVTuple(elems...), nil
}

// collectUniverse gathers every distinct scalar appearing in the loaded
// relation data. The evaluator uses it as the witness domain for
// existentials during filter evaluation.
func collectUniverse(st *store.Store, doc *elaborate.Document) ([]ir.Value, error) {
	seen := map[string]bool{}
	var universe []ir.Value

	add := func(v ir.Value) {
		key := ir.FormatValue(v)
		if !seen[key] {
			seen[key] = true
			universe = append(universe, v)
		}
	}

	for _, rel := range doc.Relations {
		if !rel.Finite {
			continue
		}
		rows, err := st.EnumerateRelation(rel.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to enumerate relation %q: %w", rel.Name, err)
		}
		for _, row := range rows {
			if tup, ok := row.(ir.VTuple); ok {
				for _, elem := range tup {
					add(elem)
				}
				continue
			}
			add(row)
		}
	}
	return universe, nil
}

// checkFailure validates a failed inversion against the expect clause.
func checkFailure(sc *Scenario, result *Result) {
	if sc.Expect.Inverted {
		result.addErrorf("expected a generator, inversion failed with %s", result.FailureCode)
		return
	}
	if sc.Expect.FailureCode != "" && sc.Expect.FailureCode != result.FailureCode {
		result.addErrorf("expected failure code %s, got %s", sc.Expect.FailureCode, result.FailureCode)
	}
}

// checkOutcome validates a successful inversion against the expect clause.
func checkOutcome(sc *Scenario, result *Result, goal gen.GoalPattern) {
	if !sc.Expect.Inverted {
		result.addErrorf("expected inversion to fail, got a %s generator", result.Cardinality)
		return
	}

	if sc.Expect.Tuples == nil {
		return
	}
	expected := make([]string, 0, len(sc.Expect.Tuples))
	for i, raw := range sc.Expect.Tuples {
		v, err := convertExpectedTuple(raw, len(goal))
		if err != nil {
			result.addErrorf("expect.tuples[%d]: %v", i, err)
			return
		}
		expected = append(expected, ir.FormatValue(v))
	}
	sort.Strings(expected)
	if !equalStrings(expected, result.Tuples) {
		result.addErrorf("tuple mismatch: expected %v, got %v", expected, result.Tuples)
	}
}

// checkFallback enumerates the predicate exhaustively and requires the
// same tuple set the generator produced.
func checkFallback(sc *Scenario, result *Result, ev *eval.Evaluator, query *elaborate.Query, goal gen.GoalPattern, binding eval.Binding, universe []ir.Value) error {
	domains := map[string][]ir.Value{}
	for _, v := range goal {
		domains[v] = universe
	}
	for name, raw := range sc.Expect.Domains {
		vals := make([]ir.Value, len(raw))
		for i, r := range raw {
			v, err := convertYAMLValue(r)
			if err != nil {
				return fmt.Errorf("expect.domains.%s[%d]: %w", name, i, err)
			}
			vals[i] = v
		}
		domains[name] = vals
	}

	rows, err := ev.Fallback(query.Expr, goal, domains, binding)
	if err != nil {
		return fmt.Errorf("fallback enumeration failed: %w", err)
	}
	fallback := formatTuples(rows)
	if !equalStrings(fallback, result.Tuples) {
		result.addErrorf("fallback mismatch: exhaustive %v, generator %v", fallback, result.Tuples)
	}
	return nil
}

func formatTuples(vals []ir.Value) []string {
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = ir.FormatValue(v)
	}
	sort.Strings(out)
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
