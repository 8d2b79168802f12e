package invert

import (
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/calyx-lang/calyx/internal/gen"
	"github.com/calyx-lang/calyx/internal/ir"
)

// DefaultMaxDepth is the default bound on user-function inlining depth.
// Exceeding it is a deterministic typed failure, not a stack overflow.
const DefaultMaxDepth = 32

// Option configures a top-level inversion call.
type Option func(*options)

type options struct {
	maxDepth int
	logger   *slog.Logger
}

// WithMaxDepth overrides the inlining depth bound.
func WithMaxDepth(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxDepth = n
		}
	}
}

// WithLogger sets a structured logger for inversion diagnostics.
// By default diagnostics are discarded.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// Invert attempts to synthesize a finite, explicit enumeration of exactly
// the bindings of the goal pattern that satisfy expr.
//
// A nil error means success: the returned result carries a Finite
// generator plus the filters the caller must still apply. A non-nil error
// means no sound finite generator exists for this expression shape; the
// caller's only safe response is full exhaustive enumeration of the
// domain filtered by expr - never a partial or approximate generator.
//
// Invert is a pure function of its inputs: expr is borrowed and never
// mutated, and all working state (memo table, active set, depth counter)
// is confined to this one call. Concurrent top-level calls are
// independent.
func Invert(env ir.Env, expr ir.Expr, goal gen.GoalPattern, bound gen.BoundContext, opts ...Option) (*gen.InversionResult, error) {
	if _, err := gen.NewGoalPattern(goal...); err != nil {
		return nil, unsupportedShape("invalid goal pattern: %v", err)
	}

	o := options{
		maxDepth: DefaultMaxDepth,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&o)
	}

	inv := &inversion{
		env:      env,
		maxDepth: o.maxDepth,
		memo:     make(map[string]memoEntry),
		logger:   o.logger.With("inversion", uuid.NewString()),
	}

	inv.logger.Debug("inversion start",
		"expr", ir.Format(expr),
		"goal", strings.Join(goal, ","))

	res, ierr := inv.invert(expr, goal, bound, activeSet{}, 0)
	if ierr != nil {
		inv.logger.Debug("inversion failed", "code", ierr.Code, "reason", ierr.Message)
		return nil, ierr
	}
	if verr := gen.Validate(res); verr != nil {
		// Terminal invariant violated; report failure instead of letting
		// an unsound generator escape.
		inv.logger.Error("inversion produced invalid result", "reason", verr.Error())
		return nil, unsupportedShape("internal: %v", verr)
	}
	inv.logger.Debug("inversion succeeded",
		"generator", ir.Format(res.Generator.Expr),
		"satisfied", strings.Join(res.SatisfiedPats, ","),
		"filters", len(res.RemainingFilters))
	return res, nil
}

// inversion is the working state of one top-level call.
// Never shared across top-level calls.
type inversion struct {
	env      ir.Env
	maxDepth int
	memo     map[string]memoEntry
	logger   *slog.Logger
}

type memoEntry struct {
	res *gen.InversionResult
	err *InversionError
}

// memoKey identifies one dispatch outcome. Expression identity and goal
// pattern are the interesting coordinates; the active-set and bound-var
// fingerprints are included because re-entering the same sub-expression
// under a different inlining stack or binding scope can legitimately
// change the outcome.
func (inv *inversion) memoKey(e ir.Expr, goal gen.GoalPattern, bound gen.BoundContext, active activeSet) string {
	var b strings.Builder
	b.WriteString(ir.HashExpr(e))
	b.WriteByte('|')
	b.WriteString(strings.Join(goal, ","))
	b.WriteByte('|')
	b.WriteString(strings.Join(active.names, ","))
	b.WriteByte('|')
	b.WriteString(strings.Join(boundNames(bound), ","))
	return b.String()
}

// invert is the recursive-descent dispatcher. Every return path either
// produces a result whose generator is Finite or a typed failure.
func (inv *inversion) invert(e ir.Expr, goal gen.GoalPattern, bound gen.BoundContext, active activeSet, depth int) (*gen.InversionResult, *InversionError) {
	key := inv.memoKey(e, goal, bound, active)
	if entry, ok := inv.memo[key]; ok {
		return entry.res, entry.err
	}
	res, err := inv.dispatch(e, goal, bound, active, depth)
	inv.memo[key] = memoEntry{res: res, err: err}
	return res, err
}

func (inv *inversion) dispatch(e ir.Expr, goal gen.GoalPattern, bound gen.BoundContext, active activeSet, depth int) (*gen.InversionResult, *InversionError) {
	switch ex := e.(type) {
	case ir.In:
		return inv.invertMembership(ex, goal, bound)

	case ir.Compare:
		// A comparison never generates on its own, whatever its operands:
		// it constrains values it is handed. Only conjunction handling may
		// admit it, as a post-filter beside a generating conjunct.
		return nil, unsupportedShape("comparison %s generates nothing; usable only as a post-filter", ir.Format(ex))

	case ir.And:
		return inv.invertConjunction(ex, goal, bound, active, depth)

	case ir.Or:
		return inv.invertDisjunction(ex, goal, bound, active, depth)

	case ir.Exists:
		return inv.invertExists(ex, goal, bound, active, depth)

	case ir.Call:
		return inv.invertCall(ex, goal, bound, active, depth)

	case ir.Lit, ir.Var, ir.MkTuple, ir.Rel, ir.Lambda, ir.Comprehension, ir.Builtin:
		return nil, unsupportedShape("expression %s matches no invertible pattern", ir.Format(e))

	default:
		return nil, unsupportedShape("unknown expression type %T", e)
	}
}

// invertMembership handles `elem ∈ coll` (dispatch rule 1).
//
// The collection becomes the generator, verbatim when the element is a
// pattern of distinct free goal variables. Tuple positions holding
// already-bound variables or literals are projected away through a
// comprehension whose guards enforce them, so the generator still binds
// only free goal variables.
//
// Cardinality is Finite iff the collection is a literal, an
// already-bound finite collection, or a relation the catalog declares
// finite. An infinite collection fails here; conjunction handling may
// still use the membership as a filter beside another finite conjunct.
func (inv *inversion) invertMembership(m ir.In, goal gen.GoalPattern, bound gen.BoundContext) (*gen.InversionResult, *InversionError) {
	card, mayDup := inv.collectionCardinality(m.Coll, bound)
	if card != gen.Finite {
		return nil, unsupportedShape("membership collection %s is not statically finite", ir.Format(m.Coll))
	}

	switch el := m.Elem.(type) {
	case ir.Var:
		if !goal.Contains(el.Name) || isBound(bound, el.Name) {
			return nil, unsupportedShape("membership element %s does not bind a goal variable", ir.Format(el))
		}
		binds := []string{el.Name}
		return &gen.InversionResult{
			Generator: gen.Generator{
				Cardinality: gen.Finite,
				Expr:        m.Coll,
				Binds:       binds,
			},
			MayHaveDuplicates:    mayDup,
			IsSupersetOfSolution: len(binds) < len(goal),
			SatisfiedPats:        binds,
		}, nil
	case ir.MkTuple:
		return inv.invertTupleMembership(el, m.Coll, goal, bound, mayDup)
	default:
		return nil, unsupportedShape("membership element %s does not bind goal variables", ir.Format(m.Elem))
	}
}

// invertTupleMembership handles `(e1, ..., en) ∈ coll`.
//
// Each position is one of: a free goal variable (bound by enumeration),
// an already-bound variable or literal (enforced by an equality guard on
// a throwaway position name), or unsupported. At least one position must
// bind a free goal variable, and no variable may bind twice.
func (inv *inversion) invertTupleMembership(el ir.MkTuple, coll ir.Expr, goal gen.GoalPattern, bound gen.BoundContext, mayDup bool) (*gen.InversionResult, *InversionError) {
	avoid := make(map[string]bool, len(goal)+len(bound))
	for _, g := range goal {
		avoid[g] = true
	}
	for n := range bound {
		avoid[n] = true
	}

	posNames := make([]string, len(el.Elems))
	var binds []string
	var guards []ir.Expr
	seen := make(map[string]bool, len(el.Elems))
	for i, comp := range el.Elems {
		if v, ok := comp.(ir.Var); ok && goal.Contains(v.Name) && !isBound(bound, v.Name) && !seen[v.Name] {
			seen[v.Name] = true
			posNames[i] = v.Name
			binds = append(binds, v.Name)
			continue
		}
		switch c := comp.(type) {
		case ir.Var:
			if !isBound(bound, c.Name) && !seen[c.Name] {
				return nil, unsupportedShape("membership component %s is neither a goal variable nor bound", ir.Format(c))
			}
		case ir.Lit:
			// Constant position, enforced below.
		default:
			return nil, unsupportedShape("membership component %s is not a variable or literal", ir.Format(comp))
		}
		name := freshVar("t", avoid)
		avoid[name] = true
		posNames[i] = name
		guards = append(guards, ir.Compare{Op: ir.CmpEq, L: ir.Var{Name: name}, R: comp})
	}
	if len(binds) == 0 {
		return nil, unsupportedShape("membership element %s binds no free goal variable", ir.Format(el))
	}

	expr := coll
	if len(guards) > 0 {
		head := make([]ir.Expr, len(binds))
		for i, b := range binds {
			head[i] = ir.Var{Name: b}
		}
		clauses := []ir.Clause{ir.Bind{Vars: posNames, Source: coll}}
		for _, g := range guards {
			clauses = append(clauses, ir.Guard{Cond: g})
		}
		expr = ir.Comprehension{Head: head, Clauses: clauses}
	}

	return &gen.InversionResult{
		Generator: gen.Generator{
			Cardinality: gen.Finite,
			Expr:        expr,
			Binds:       binds,
		},
		MayHaveDuplicates:    mayDup || len(guards) > 0,
		IsSupersetOfSolution: len(binds) < len(goal),
		SatisfiedPats:        binds,
	}, nil
}

// collectionCardinality classifies a collection expression. The second
// return reports whether enumeration may produce duplicate elements.
func (inv *inversion) collectionCardinality(coll ir.Expr, bound gen.BoundContext) (gen.Cardinality, bool) {
	switch c := coll.(type) {
	case ir.Lit:
		if _, ok := c.Value.(ir.VList); ok {
			// Literal lists are ordered and may repeat elements.
			return gen.Finite, true
		}
		return gen.Infinite, false
	case ir.Var:
		// Bound to a known finite collection value from the enclosing
		// scope. A binding whose value is unavailable at analysis time
		// cannot be proven finite.
		if v, ok := bound[c.Name]; ok {
			if _, isList := v.(ir.VList); isList {
				return gen.Finite, true
			}
		}
		return gen.Infinite, false
	case ir.Rel:
		info, ok := inv.env.Relation(c.Name)
		if ok && info.Finite {
			// Relations are sets; the store enumerates distinct tuples.
			return gen.Finite, false
		}
		return gen.Infinite, false
	default:
		return gen.Infinite, false
	}
}

// invertConjunction handles n-ary conjunctions (dispatch rule 3).
//
// Every conjunct is inverted independently with the same goal pattern.
// Among the conjuncts that invert to a finite generator, the one binding
// the largest subset of the goal wins (ties broken by leftmost source
// order) and becomes the primary generator; every other conjunct -
// including ones that failed to invert - becomes a remaining filter.
func (inv *inversion) invertConjunction(and ir.And, goal gen.GoalPattern, bound gen.BoundContext, active activeSet, depth int) (*gen.InversionResult, *InversionError) {
	conjuncts := ir.FlattenAnd(and)

	best := -1
	var bestRes *gen.InversionResult
	var depthErr *InversionError
	for i, conjunct := range conjuncts {
		res, err := inv.invert(conjunct, goal, bound, active, depth+1)
		if err != nil {
			if err.Code == CodeDepthExceeded && depthErr == nil {
				depthErr = err
			}
			continue
		}
		if bestRes == nil || len(res.SatisfiedPats) > len(bestRes.SatisfiedPats) {
			best = i
			bestRes = res
		}
	}
	if bestRes == nil {
		// The depth bound is a hard failure; surface it rather than the
		// generic shape code so runaway definitions stay diagnosable.
		if depthErr != nil {
			return nil, depthErr
		}
		return nil, unsupportedShape("no conjunct of %s inverts to a finite generator", ir.Format(and))
	}

	filters := make([]ir.Expr, 0, len(conjuncts)-1+len(bestRes.RemainingFilters))
	filters = append(filters, bestRes.RemainingFilters...)
	for i, conjunct := range conjuncts {
		if i != best {
			filters = append(filters, conjunct)
		}
	}

	return &gen.InversionResult{
		Generator:            bestRes.Generator,
		MayHaveDuplicates:    bestRes.MayHaveDuplicates,
		IsSupersetOfSolution: len(filters) > 0 || len(bestRes.SatisfiedPats) < len(goal),
		SatisfiedPats:        bestRes.SatisfiedPats,
		RemainingFilters:     filters,
	}, nil
}

// invertDisjunction handles "or" chains (dispatch rules 4 and 5).
//
// Inside a self-recursive function body - the innermost inlined function
// appears among the disjunction's calls - the chain is the
// `base ∨ recursive` shape and closure synthesis takes over. A call to a
// *different* active function is mutual recursion, rejected. Otherwise
// the chain is flattened and its branches unioned.
func (inv *inversion) invertDisjunction(or ir.Or, goal gen.GoalPattern, bound gen.BoundContext, active activeSet, depth int) (*gen.InversionResult, *InversionError) {
	called := ir.CalledFunctions(or)
	self := active.top()
	for name := range called {
		if active.contains(name) && name != self {
			return nil, unsupportedRecursion(name, "mutual recursion through %q is not supported", name)
		}
	}
	if self != "" && called[self] {
		return inv.synthesizeClosure(or, goal, self, bound, active, depth)
	}
	return inv.invertUnion(or, goal, bound, active, depth)
}

// invertUnion merges a non-recursive disjunction into one deduplicated
// finite generator.
//
// Every branch must invert to a finite generator that binds the full
// goal with no residual filters. Dropping a failed branch would silently
// lose its solutions and per-branch filters cannot be hoisted across the
// union, so anything less is a failure, not an approximation.
func (inv *inversion) invertUnion(or ir.Or, goal gen.GoalPattern, bound gen.BoundContext, active activeSet, depth int) (*gen.InversionResult, *InversionError) {
	branches := ir.FlattenOr(or)

	gens := make([]gen.Generator, 0, len(branches))
	for _, branch := range branches {
		res, err := inv.invert(branch, goal, bound, active, depth+1)
		if err != nil {
			return nil, err
		}
		if len(res.RemainingFilters) > 0 || len(res.SatisfiedPats) != len(goal) {
			return nil, unsupportedShape("disjunct %s does not enumerate the goal exactly", ir.Format(branch))
		}
		gens = append(gens, res.Generator)
	}

	union := UnionFinite(gens)
	return &gen.InversionResult{
		Generator:     union,
		SatisfiedPats: union.Binds,
	}, nil
}

// invertExists handles bounded existentials outside recursive bodies.
//
// The body is inverted against the goal extended with the binders; the
// binders are then projected away through a comprehension so they cannot
// leak into the caller's scope.
func (inv *inversion) invertExists(ex ir.Exists, goal gen.GoalPattern, bound gen.BoundContext, active activeSet, depth int) (*gen.InversionResult, *InversionError) {
	extended := make(gen.GoalPattern, 0, len(goal)+len(ex.Vars))
	extended = append(extended, goal...)
	for _, v := range ex.Vars {
		if extended.Contains(v) {
			return nil, unsupportedShape("existential binder %q shadows a goal variable", v)
		}
		extended = append(extended, v)
	}

	res, err := inv.invert(ex.Body, extended, bound, active, depth+1)
	if err != nil {
		return nil, err
	}
	if len(res.SatisfiedPats) != len(extended) {
		return nil, unsupportedShape("existential body binds %v, need all of %v", res.SatisfiedPats, extended)
	}

	head := make([]ir.Expr, len(goal))
	for i, v := range goal {
		head[i] = ir.Var{Name: v}
	}
	clauses := []ir.Clause{ir.Bind{Vars: res.SatisfiedPats, Source: res.Generator.Expr}}
	for _, f := range res.RemainingFilters {
		clauses = append(clauses, ir.Guard{Cond: f})
	}

	return &gen.InversionResult{
		Generator: gen.Generator{
			Cardinality: gen.Finite,
			Expr:        ir.Comprehension{Head: head, Clauses: clauses},
			Binds:       []string(goal),
		},
		// Projection can merge witnesses that differ only in the binders.
		MayHaveDuplicates: true,
		SatisfiedPats:     []string(goal),
	}, nil
}

// invertCall inlines a user-defined function application (dispatch
// rule 6): substitute call arguments into parameter positions, add the
// function to the active set, and dispatch on the substituted body.
func (inv *inversion) invertCall(call ir.Call, goal gen.GoalPattern, bound gen.BoundContext, active activeSet, depth int) (*gen.InversionResult, *InversionError) {
	if active.contains(call.Fn) {
		if call.Fn == active.top() {
			// A bare self-call outside the base ∨ recursive shape: the
			// definition has no recognizable base case from here.
			return nil, unsupportedRecursion(call.Fn, "self-call to %q outside a base-or-recursive disjunction", call.Fn)
		}
		return nil, unsupportedRecursion(call.Fn, "mutual recursion through %q is not supported", call.Fn)
	}

	def, ok := inv.env.Function(call.Fn)
	if !ok {
		return nil, unsupportedShape("unknown function %q", call.Fn)
	}
	if len(def.Params) != len(call.Args) {
		return nil, unsupportedShape("function %q expects %d arguments, got %d", call.Fn, len(def.Params), len(call.Args))
	}
	if active.depth()+1 > inv.maxDepth {
		return nil, &InversionError{
			Code:    CodeDepthExceeded,
			Message: "inlining depth bound exceeded",
			Fn:      call.Fn,
		}
	}

	subst := make(map[string]ir.Expr, len(def.Params))
	for i, p := range def.Params {
		subst[p] = call.Args[i]
	}
	body := ir.Substitute(def.Body, subst)

	inv.logger.Debug("inlining function", "fn", call.Fn, "depth", active.depth()+1)
	return inv.invert(body, goal, bound, active.push(call.Fn), depth+1)
}

func isBound(bound gen.BoundContext, name string) bool {
	_, ok := bound[name]
	return ok
}

// boundNames fingerprints a bound context for memo keys: sorted names,
// each tagged with its static value when one is available. Two contexts
// that bind the same names to the same known values dispatch identically.
func boundNames(bound gen.BoundContext) []string {
	if len(bound) == 0 {
		return nil
	}
	names := make([]string, 0, len(bound))
	for n, v := range bound {
		if v != nil {
			names = append(names, n+"="+ir.FormatValue(v))
		} else {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names
}
