package ir

import "fmt"

// FreeVars returns the set of variable names occurring free in e.
// Exists binders, Lambda parameters, and Comprehension Bind variables
// remove their names from the free set of the sub-expressions they scope.
func FreeVars(e Expr) map[string]bool {
	free := make(map[string]bool)
	collectFree(e, make(map[string]bool), free)
	return free
}

func collectFree(e Expr, bound map[string]bool, free map[string]bool) {
	switch ex := e.(type) {
	case Lit:
		// No variables.
	case Var:
		if !bound[ex.Name] {
			free[ex.Name] = true
		}
	case Call:
		for _, a := range ex.Args {
			collectFree(a, bound, free)
		}
	case Builtin:
		for _, a := range ex.Args {
			collectFree(a, bound, free)
		}
	case And:
		collectFree(ex.L, bound, free)
		collectFree(ex.R, bound, free)
	case Or:
		collectFree(ex.L, bound, free)
		collectFree(ex.R, bound, free)
	case Compare:
		collectFree(ex.L, bound, free)
		collectFree(ex.R, bound, free)
	case In:
		collectFree(ex.Elem, bound, free)
		collectFree(ex.Coll, bound, free)
	case Exists:
		inner := withBound(bound, ex.Vars)
		collectFree(ex.Body, inner, free)
	case MkTuple:
		for _, el := range ex.Elems {
			collectFree(el, bound, free)
		}
	case Rel:
		// Relation names are not variables.
	case Lambda:
		inner := withBound(bound, []string{ex.Param})
		collectFree(ex.Body, inner, free)
	case Comprehension:
		scope := bound
		for _, clause := range ex.Clauses {
			switch cl := clause.(type) {
			case Bind:
				collectFree(cl.Source, scope, free)
				scope = withBound(scope, cl.Vars)
			case Guard:
				collectFree(cl.Cond, scope, free)
			}
		}
		for _, h := range ex.Head {
			collectFree(h, scope, free)
		}
	}
}

func withBound(bound map[string]bool, names []string) map[string]bool {
	inner := make(map[string]bool, len(bound)+len(names))
	for k := range bound {
		inner[k] = true
	}
	for _, n := range names {
		inner[n] = true
	}
	return inner
}

// Substitute replaces free occurrences of the mapped variables with their
// replacement expressions, producing a new tree. The input is never
// mutated.
//
// Substitution is capture-avoiding: binders that shadow a mapped name
// drop that mapping for their scope, and binders whose name collides with
// a free variable of an in-scope replacement are renamed to a fresh name
// before descending.
func Substitute(e Expr, subst map[string]Expr) Expr {
	if len(subst) == 0 {
		return e
	}
	switch ex := e.(type) {
	case Lit:
		return ex
	case Var:
		if repl, ok := subst[ex.Name]; ok {
			return repl
		}
		return ex
	case Call:
		return Call{Fn: ex.Fn, Args: substituteAll(ex.Args, subst)}
	case Builtin:
		return Builtin{Op: ex.Op, Args: substituteAll(ex.Args, subst)}
	case And:
		return And{L: Substitute(ex.L, subst), R: Substitute(ex.R, subst)}
	case Or:
		return Or{L: Substitute(ex.L, subst), R: Substitute(ex.R, subst)}
	case Compare:
		return Compare{Op: ex.Op, L: Substitute(ex.L, subst), R: Substitute(ex.R, subst)}
	case In:
		return In{Elem: Substitute(ex.Elem, subst), Coll: Substitute(ex.Coll, subst)}
	case Exists:
		vars, body, inner := enterScope(ex.Vars, ex.Body, subst)
		return Exists{Vars: vars, Body: Substitute(body, inner)}
	case MkTuple:
		return MkTuple{Elems: substituteAll(ex.Elems, subst)}
	case Rel:
		return ex
	case Lambda:
		params, body, inner := enterScope([]string{ex.Param}, ex.Body, subst)
		return Lambda{Param: params[0], Body: Substitute(body, inner)}
	case Comprehension:
		return substituteComprehension(ex, subst)
	default:
		panic(fmt.Sprintf("ir: substitute over unknown expression type %T", e))
	}
}

func substituteAll(exprs []Expr, subst map[string]Expr) []Expr {
	out := make([]Expr, len(exprs))
	for i, e := range exprs {
		out[i] = Substitute(e, subst)
	}
	return out
}

// enterScope prepares a binder scope for substitution: mappings shadowed
// by the binders are dropped, and binders captured by a replacement's
// free variables are alpha-renamed inside the body.
func enterScope(binders []string, body Expr, subst map[string]Expr) ([]string, Expr, map[string]Expr) {
	inner := make(map[string]Expr, len(subst))
	replFree := make(map[string]bool)
	shadowed := make(map[string]bool, len(binders))
	for _, b := range binders {
		shadowed[b] = true
	}
	for name, repl := range subst {
		if shadowed[name] {
			continue
		}
		inner[name] = repl
		for fv := range FreeVars(repl) {
			replFree[fv] = true
		}
	}
	if len(inner) == 0 {
		return binders, body, inner
	}

	renamed := make([]string, len(binders))
	var rename map[string]Expr
	avoid := make(map[string]bool)
	for fv := range replFree {
		avoid[fv] = true
	}
	for fv := range FreeVars(body) {
		avoid[fv] = true
	}
	for i, b := range binders {
		if !replFree[b] {
			renamed[i] = b
			continue
		}
		fresh := freshName(b, avoid)
		avoid[fresh] = true
		renamed[i] = fresh
		if rename == nil {
			rename = make(map[string]Expr)
		}
		rename[b] = Var{Name: fresh}
	}
	if rename != nil {
		body = Substitute(body, rename)
	}
	return renamed, body, inner
}

func freshName(base string, avoid map[string]bool) string {
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s_%d", base, i)
		if !avoid[candidate] {
			return candidate
		}
	}
}

func substituteComprehension(c Comprehension, subst map[string]Expr) Comprehension {
	// Clauses scope left to right; each Bind narrows the substitution for
	// everything after it. Binder renaming is not needed here because the
	// engine only substitutes into elaborator-produced trees, which never
	// contain comprehensions; this path exists for completeness.
	clauses := make([]Clause, len(c.Clauses))
	current := subst
	for i, clause := range c.Clauses {
		switch cl := clause.(type) {
		case Bind:
			clauses[i] = Bind{Vars: cl.Vars, Source: Substitute(cl.Source, current)}
			current = dropMappings(current, cl.Vars)
		case Guard:
			clauses[i] = Guard{Cond: Substitute(cl.Cond, current)}
		}
	}
	return Comprehension{Head: substituteAll(c.Head, current), Clauses: clauses}
}

func dropMappings(subst map[string]Expr, names []string) map[string]Expr {
	out := make(map[string]Expr, len(subst))
	for k, v := range subst {
		out[k] = v
	}
	for _, n := range names {
		delete(out, n)
	}
	return out
}

// CountCalls returns the number of applications of the named user
// function anywhere in e, including under binders.
func CountCalls(e Expr, fn string) int {
	count := 0
	walkExprs(e, func(sub Expr) {
		if call, ok := sub.(Call); ok && call.Fn == fn {
			count++
		}
	})
	return count
}

// CalledFunctions returns the names of all user functions applied
// anywhere in e.
func CalledFunctions(e Expr) map[string]bool {
	called := make(map[string]bool)
	walkExprs(e, func(sub Expr) {
		if call, ok := sub.(Call); ok {
			called[call.Fn] = true
		}
	})
	return called
}

// walkExprs invokes visit on e and every sub-expression, pre-order.
func walkExprs(e Expr, visit func(Expr)) {
	visit(e)
	switch ex := e.(type) {
	case Lit, Var, Rel:
		// Leaves.
	case Call:
		for _, a := range ex.Args {
			walkExprs(a, visit)
		}
	case Builtin:
		for _, a := range ex.Args {
			walkExprs(a, visit)
		}
	case And:
		walkExprs(ex.L, visit)
		walkExprs(ex.R, visit)
	case Or:
		walkExprs(ex.L, visit)
		walkExprs(ex.R, visit)
	case Compare:
		walkExprs(ex.L, visit)
		walkExprs(ex.R, visit)
	case In:
		walkExprs(ex.Elem, visit)
		walkExprs(ex.Coll, visit)
	case Exists:
		walkExprs(ex.Body, visit)
	case MkTuple:
		for _, el := range ex.Elems {
			walkExprs(el, visit)
		}
	case Lambda:
		walkExprs(ex.Body, visit)
	case Comprehension:
		for _, clause := range ex.Clauses {
			switch cl := clause.(type) {
			case Bind:
				walkExprs(cl.Source, visit)
			case Guard:
				walkExprs(cl.Cond, visit)
			}
		}
		for _, h := range ex.Head {
			walkExprs(h, visit)
		}
	}
}
