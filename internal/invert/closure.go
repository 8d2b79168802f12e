package invert

import (
	"fmt"
	"sort"

	"github.com/calyx-lang/calyx/internal/gen"
	"github.com/calyx-lang/calyx/internal/ir"
)

// synthesizeClosure turns the `base ∨ recursive` body of a self-recursive
// function into a fixpoint generator: an iterate call over a seed
// relation and a one-step inference function.
//
// Called only when orExpr is inside the body of fnName (fnName is the
// innermost active function) and the chain contains a self-call.
//
// The base-case cardinality check in step 1 is the single most important
// correctness gate in the engine. A base case that cannot be proven
// finite must never reach step assembly: embedding an unbounded
// collection inside a fixpoint generator is a fatal, hard-to-detect
// runtime failure rather than a compile-time one.
func (inv *inversion) synthesizeClosure(orExpr ir.Or, goal gen.GoalPattern, fnName string, bound gen.BoundContext, active activeSet, depth int) (*gen.InversionResult, *InversionError) {
	branches := ir.FlattenOr(orExpr)

	// Partition into base branches and the single recursive branch.
	var baseBranches []ir.Expr
	var recursive ir.Expr
	for _, branch := range branches {
		switch ir.CountCalls(branch, fnName) {
		case 0:
			baseBranches = append(baseBranches, branch)
		case 1:
			if recursive != nil {
				return nil, unsupportedRecursion(fnName, "more than one recursive disjunct in %q", fnName)
			}
			recursive = branch
		default:
			return nil, unsupportedRecursion(fnName, "more than one self-call in a disjunct of %q", fnName)
		}
	}
	if recursive == nil {
		return nil, unsupportedShape("no recursive disjunct found in body of %q", fnName)
	}
	if len(baseBranches) == 0 {
		return nil, unsupportedShape("recursive function %q has no base case", fnName)
	}

	// Step 1+2: invert every base branch outside the function's own
	// definition (empty bound context, fnName removed from the active
	// set) and union the results into one seed generator. Any branch
	// that fails, binds less than the full goal, or leaves residual
	// filters makes the base unprovably finite - abort before any
	// iterate call is constructed.
	baseActive := active.without(fnName)
	seeds := make([]gen.Generator, 0, len(baseBranches))
	for _, branch := range baseBranches {
		res, err := inv.invert(branch, goal, gen.BoundContext{}, baseActive, depth+1)
		if err != nil || res.Generator.Cardinality != gen.Finite ||
			len(res.SatisfiedPats) != len(goal) || len(res.RemainingFilters) > 0 {
			inv.logger.Debug("closure base case rejected",
				"fn", fnName, "base", ir.Format(branch))
			return nil, &InversionError{
				Code:    CodeUnboundedBase,
				Message: "base case cannot be proven finite",
				Fn:      fnName,
				Expr:    ir.Format(branch),
			}
		}
		seeds = append(seeds, res.Generator)
	}
	seed := UnionFinite(seeds)

	// Step 3: recognize the recursive case and extract the edge
	// condition standing between one accumulated tuple and a new one.
	step, err := inv.synthesizeStep(recursive, goal, fnName, bound, baseActive, depth)
	if err != nil {
		return nil, err
	}

	// Step 5: assemble the fixpoint generator. Termination of the loop
	// is the runtime iterate primitive's contract; different inference
	// chains may re-derive the same tuple, so consumers must dedup.
	result := &gen.InversionResult{
		Generator: gen.Generator{
			Cardinality: gen.Finite,
			Expr:        ir.Builtin{Op: ir.BuiltinIterate, Args: []ir.Expr{seed.Expr, step}},
			Binds:       []string(goal),
		},
		MayHaveDuplicates: true,
		SatisfiedPats:     []string(goal),
	}
	inv.logger.Debug("closure synthesized",
		"fn", fnName,
		"generator", ir.Format(result.Generator.Expr))
	return result, nil
}

// synthesizeStep builds the one-round inference function for a recursive
// disjunct: a lambda over the accumulated relation whose body is a
// comprehension joining one accumulated tuple against the edge condition.
//
// Recognized shape: an optional existential introducing intermediate
// variables, over a conjunction of exactly one self-call (all arguments
// distinct variables, positionally aligned with the goal) with one or
// more edge conditions.
func (inv *inversion) synthesizeStep(recursive ir.Expr, goal gen.GoalPattern, fnName string, bound gen.BoundContext, active activeSet, depth int) (ir.Expr, *InversionError) {
	// Peel existential binders introducing the intermediate variables.
	body := recursive
	for {
		ex, ok := body.(ir.Exists)
		if !ok {
			break
		}
		body = ex.Body
	}

	// The self-call must be a direct conjunct.
	conjuncts := ir.FlattenAnd(body)
	var selfCall *ir.Call
	edges := make([]ir.Expr, 0, len(conjuncts)-1)
	for _, conjunct := range conjuncts {
		if call, ok := conjunct.(ir.Call); ok && call.Fn == fnName {
			selfCall = &call
			continue
		}
		if ir.CountCalls(conjunct, fnName) > 0 {
			return nil, unsupportedShape("self-call to %q nested inside condition %s", fnName, ir.Format(conjunct))
		}
		edges = append(edges, conjunct)
	}
	if selfCall == nil {
		return nil, unsupportedShape("recursive disjunct of %q is not a conjunction with its self-call", fnName)
	}
	if len(edges) == 0 {
		return nil, unsupportedShape("recursive disjunct of %q has no edge condition beside the self-call", fnName)
	}
	if len(selfCall.Args) != len(goal) {
		return nil, unsupportedShape("self-call to %q has arity %d, goal pattern has %d", fnName, len(selfCall.Args), len(goal))
	}

	// Self-call arguments become the destructuring of one tuple from the
	// accumulated relation, positionally aligned with the goal pattern.
	argVars := make([]string, len(selfCall.Args))
	seen := make(map[string]bool, len(selfCall.Args))
	for i, arg := range selfCall.Args {
		v, ok := arg.(ir.Var)
		if !ok {
			return nil, unsupportedShape("self-call argument %s is not a variable", ir.Format(arg))
		}
		if seen[v.Name] {
			return nil, unsupportedShape("self-call argument %q repeats", v.Name)
		}
		seen[v.Name] = true
		argVars[i] = v.Name
	}

	// The edge condition must enumerate the goal variables the self-call
	// does not already supply, given the self-call variables as bound.
	outVars := make(gen.GoalPattern, 0, len(goal))
	for _, g := range goal {
		if !seen[g] {
			outVars = append(outVars, g)
		}
	}
	if len(outVars) == 0 {
		return nil, unsupportedShape("recursive disjunct of %q derives no new goal variable", fnName)
	}

	edgeBound := make(gen.BoundContext, len(bound)+len(argVars))
	for k, v := range bound {
		edgeBound[k] = v
	}
	for _, a := range argVars {
		// Bound at run time by the accumulated tuple; no static value.
		edgeBound[a] = nil
	}

	edgeExpr := ir.NewAnd(edges...)
	edgeRes, err := inv.invert(edgeExpr, outVars, edgeBound, active, depth+1)
	if err != nil {
		return nil, unsupportedShape("edge condition %s is not enumerable: %v", ir.Format(edgeExpr), err)
	}
	if !coversAll(edgeRes.SatisfiedPats, outVars) {
		return nil, unsupportedShape("edge condition %s binds %v, need %v", ir.Format(edgeExpr), edgeRes.SatisfiedPats, outVars)
	}

	// Build: fun acc -> { (goal...) | args <- acc; out <- edgeGen; guards }
	avoid := make(map[string]bool)
	for fv := range ir.FreeVars(recursive) {
		avoid[fv] = true
	}
	for _, g := range goal {
		avoid[g] = true
	}
	accParam := "acc"
	if avoid[accParam] {
		accParam = freshVar("acc", avoid)
	}

	head := make([]ir.Expr, len(goal))
	for i, g := range goal {
		head[i] = ir.Var{Name: g}
	}
	clauses := []ir.Clause{
		ir.Bind{Vars: argVars, Source: ir.Var{Name: accParam}},
		ir.Bind{Vars: edgeRes.SatisfiedPats, Source: edgeRes.Generator.Expr},
	}
	for _, f := range edgeRes.RemainingFilters {
		clauses = append(clauses, ir.Guard{Cond: f})
	}

	step := ir.Lambda{
		Param: accParam,
		Body:  ir.Comprehension{Head: head, Clauses: clauses},
	}

	// Step 4 free-variable check: the step may reference nothing beyond
	// the accumulated-relation parameter and the variables the
	// comprehension itself binds. A leftover free variable is a
	// synthesis error, not a warning.
	if free := ir.FreeVars(step); len(free) > 0 {
		return nil, unsupportedShape("synthesized step for %q has free variables %v", fnName, mapKeys(free))
	}

	return step, nil
}

// coversAll reports whether got contains every variable in want,
// ignoring order.
func coversAll(got []string, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	set := make(map[string]bool, len(got))
	for _, g := range got {
		set[g] = true
	}
	for _, w := range want {
		if !set[w] {
			return false
		}
	}
	return true
}

func freshVar(base string, avoid map[string]bool) string {
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s_%d", base, i)
		if !avoid[candidate] {
			return candidate
		}
	}
}

func mapKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
