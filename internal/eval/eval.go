package eval

import (
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/calyx-lang/calyx/internal/ir"
)

// Default quotas. Both are deliberately generous: reference evaluation
// is a correctness oracle, not a production fast path.
const (
	DefaultMaxRounds = 10_000
	DefaultMaxCalls  = 100_000
)

// RelationSource supplies the tuples of named finite relations.
// Implemented by the SQLite-backed store and by in-memory test fixtures.
type RelationSource interface {
	// EnumerateRelation returns the distinct elements of the named
	// relation: scalars for arity 1, tuples otherwise.
	EnumerateRelation(name string) ([]ir.Value, error)
}

// Binding maps variable names to values during one evaluation.
type Binding map[string]ir.Value

// extend returns a copy of the binding with one more variable.
// Bindings are copied, never mutated; enclosing rows stay intact.
func (b Binding) extend(name string, v ir.Value) Binding {
	out := make(Binding, len(b)+1)
	for k, val := range b {
		out[k] = val
	}
	out[name] = v
	return out
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithMaxRounds overrides the fixpoint round quota.
func WithMaxRounds(n int) Option {
	return func(ev *Evaluator) {
		if n > 0 {
			ev.maxRounds = n
		}
	}
}

// WithMaxCalls overrides the direct-evaluation inlining quota.
func WithMaxCalls(n int) Option {
	return func(ev *Evaluator) {
		if n > 0 {
			ev.maxCalls = n
		}
	}
}

// WithUniverse supplies the bounded domain used to search existential
// witnesses during direct evaluation. Without one, existentials whose
// witnesses cannot be drawn from a membership conjunct fail.
func WithUniverse(vals []ir.Value) Option {
	return func(ev *Evaluator) {
		ev.universe = vals
	}
}

// WithLogger sets a structured logger. By default logs are discarded.
func WithLogger(l *slog.Logger) Option {
	return func(ev *Evaluator) {
		if l != nil {
			ev.logger = l
		}
	}
}

// Evaluator executes expressions and enumerates generators. It is the
// runtime collaborator the inversion engine synthesizes code for, and
// doubles as the reference oracle in conformance tests.
//
// An Evaluator is read-only with respect to its environment and source;
// it carries no mutable state between calls and is safe for sequential
// reuse.
type Evaluator struct {
	env       ir.Env
	src       RelationSource
	universe  []ir.Value
	maxRounds int
	maxCalls  int
	logger    *slog.Logger
}

// New creates an Evaluator over an environment and a relation source.
// src may be nil when no relation references will be evaluated.
func New(env ir.Env, src RelationSource, opts ...Option) *Evaluator {
	ev := &Evaluator{
		env:       env,
		src:       src,
		maxRounds: DefaultMaxRounds,
		maxCalls:  DefaultMaxCalls,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(ev)
	}
	ev.logger = ev.logger.With("evaluator", uuid.NewString())
	return ev
}

// Eval evaluates an expression to a value under the binding.
func (ev *Evaluator) Eval(e ir.Expr, binding Binding) (ir.Value, error) {
	return ev.eval(e, binding, newCallQuota(ev.maxCalls))
}

// EvalBool evaluates a predicate expression, requiring a boolean result.
func (ev *Evaluator) EvalBool(e ir.Expr, binding Binding) (bool, error) {
	v, err := ev.Eval(e, binding)
	if err != nil {
		return false, err
	}
	b, ok := v.(ir.VBool)
	if !ok {
		return false, &EvalError{
			Code:    ErrCodeTypeMismatch,
			Message: "predicate did not evaluate to a boolean",
			Expr:    ir.Format(e),
		}
	}
	return bool(b), nil
}

func (ev *Evaluator) eval(e ir.Expr, binding Binding, calls *callQuota) (ir.Value, error) {
	switch ex := e.(type) {
	case ir.Lit:
		return ex.Value, nil

	case ir.Var:
		v, ok := binding[ex.Name]
		if !ok || v == nil {
			return nil, evalErrorf(ErrCodeUnboundVariable, "variable %q is unbound", ex.Name)
		}
		return v, nil

	case ir.And:
		l, err := ev.evalCondition(ex.L, binding, calls)
		if err != nil {
			return nil, err
		}
		if !l {
			return ir.VBool(false), nil
		}
		r, err := ev.evalCondition(ex.R, binding, calls)
		if err != nil {
			return nil, err
		}
		return ir.VBool(r), nil

	case ir.Or:
		l, err := ev.evalCondition(ex.L, binding, calls)
		if err != nil {
			return nil, err
		}
		if l {
			return ir.VBool(true), nil
		}
		r, err := ev.evalCondition(ex.R, binding, calls)
		if err != nil {
			return nil, err
		}
		return ir.VBool(r), nil

	case ir.Compare:
		return ev.evalCompare(ex, binding, calls)

	case ir.In:
		elem, err := ev.eval(ex.Elem, binding, calls)
		if err != nil {
			return nil, err
		}
		coll, err := ev.enumerate(ex.Coll, binding, calls)
		if err != nil {
			return nil, err
		}
		for _, v := range coll {
			if ir.ValueEqual(elem, v) {
				return ir.VBool(true), nil
			}
		}
		return ir.VBool(false), nil

	case ir.Exists:
		return ev.evalExists(ex, binding, calls)

	case ir.MkTuple:
		vals := make([]ir.Value, len(ex.Elems))
		for i, el := range ex.Elems {
			v, err := ev.eval(el, binding, calls)
			if err != nil {
				return nil, err
			}
			vals[i] = v
		}
		return ir.VTuple(vals), nil

	case ir.Call:
		return ev.evalCall(ex, binding, calls)

	case ir.Rel, ir.Builtin, ir.Comprehension:
		return nil, &EvalError{
			Code:    ErrCodeTypeMismatch,
			Message: "collection expression used where a value was expected",
			Expr:    ir.Format(e),
		}

	case ir.Lambda:
		return nil, &EvalError{
			Code:    ErrCodeTypeMismatch,
			Message: "lambda used where a value was expected",
			Expr:    ir.Format(e),
		}

	default:
		return nil, evalErrorf(ErrCodeTypeMismatch, "unknown expression type %T", e)
	}
}

func (ev *Evaluator) evalCondition(e ir.Expr, binding Binding, calls *callQuota) (bool, error) {
	v, err := ev.eval(e, binding, calls)
	if err != nil {
		return false, err
	}
	b, ok := v.(ir.VBool)
	if !ok {
		return false, &EvalError{
			Code:    ErrCodeTypeMismatch,
			Message: "condition did not evaluate to a boolean",
			Expr:    ir.Format(e),
		}
	}
	return bool(b), nil
}

func (ev *Evaluator) evalCompare(cmp ir.Compare, binding Binding, calls *callQuota) (ir.Value, error) {
	l, err := ev.eval(cmp.L, binding, calls)
	if err != nil {
		return nil, err
	}
	r, err := ev.eval(cmp.R, binding, calls)
	if err != nil {
		return nil, err
	}

	switch cmp.Op {
	case ir.CmpEq:
		return ir.VBool(ir.ValueEqual(l, r)), nil
	case ir.CmpNe:
		return ir.VBool(!ir.ValueEqual(l, r)), nil
	}

	// Ordering comparisons require both operands to share an ordered kind.
	switch lv := l.(type) {
	case ir.VInt:
		rv, ok := r.(ir.VInt)
		if !ok {
			return nil, orderingMismatch(cmp)
		}
		return ir.VBool(intOrdered(cmp.Op, int64(lv), int64(rv))), nil
	case ir.VString:
		rv, ok := r.(ir.VString)
		if !ok {
			return nil, orderingMismatch(cmp)
		}
		return ir.VBool(stringOrdered(cmp.Op, string(lv), string(rv))), nil
	default:
		return nil, orderingMismatch(cmp)
	}
}

func orderingMismatch(cmp ir.Compare) *EvalError {
	return &EvalError{
		Code:    ErrCodeTypeMismatch,
		Message: "ordering comparison requires two ints or two strings",
		Expr:    ir.Format(cmp),
	}
}

func intOrdered(op ir.CmpOp, l, r int64) bool {
	switch op {
	case ir.CmpLt:
		return l < r
	case ir.CmpLe:
		return l <= r
	case ir.CmpGt:
		return l > r
	case ir.CmpGe:
		return l >= r
	}
	return false
}

func stringOrdered(op ir.CmpOp, l, r string) bool {
	switch op {
	case ir.CmpLt:
		return l < r
	case ir.CmpLe:
		return l <= r
	case ir.CmpGt:
		return l > r
	case ir.CmpGe:
		return l >= r
	}
	return false
}

// evalExists searches for a witness assignment of the binders.
// Candidates come from the configured universe; every combination is
// tried until the body holds.
func (ev *Evaluator) evalExists(ex ir.Exists, binding Binding, calls *callQuota) (ir.Value, error) {
	if len(ev.universe) == 0 {
		return nil, &EvalError{
			Code:    ErrCodeNotEnumerable,
			Message: "existential evaluation requires a bounded universe",
			Expr:    ir.Format(ex),
		}
	}
	found, err := ev.searchWitness(ex.Vars, ex.Body, binding, calls)
	if err != nil {
		return nil, err
	}
	return ir.VBool(found), nil
}

func (ev *Evaluator) searchWitness(vars []string, body ir.Expr, binding Binding, calls *callQuota) (bool, error) {
	if len(vars) == 0 {
		return ev.evalCondition(body, binding, calls)
	}
	for _, candidate := range ev.universe {
		extended := binding.extend(vars[0], candidate)
		found, err := ev.searchWitness(vars[1:], body, extended, calls)
		if err != nil {
			return false, err
		}
		if found {
			return true, nil
		}
	}
	return false, nil
}

// evalCall applies a user-defined function by substituting arguments
// into its body. The call quota bounds total expansion per Eval.
func (ev *Evaluator) evalCall(call ir.Call, binding Binding, calls *callQuota) (ir.Value, error) {
	if err := calls.check(call.Fn); err != nil {
		return nil, err
	}
	def, ok := ev.env.Function(call.Fn)
	if !ok {
		return nil, evalErrorf(ErrCodeUnknownRelation, "unknown function %q", call.Fn)
	}
	if len(def.Params) != len(call.Args) {
		return nil, evalErrorf(ErrCodeTypeMismatch,
			"function %q expects %d arguments, got %d", call.Fn, len(def.Params), len(call.Args))
	}

	inner := make(Binding, len(def.Params))
	for i, p := range def.Params {
		v, err := ev.eval(call.Args[i], binding, calls)
		if err != nil {
			return nil, err
		}
		inner[p] = v
	}
	return ev.eval(def.Body, inner, calls)
}
