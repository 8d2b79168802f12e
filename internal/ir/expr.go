package ir

// Expr represents a typed predicate/query expression.
//
// This is a sealed interface - only types in this package implement it.
// The marker method pattern prevents external implementations and enables
// exhaustive type switches in the inversion dispatcher and the evaluator.
//
// Expression trees are immutable and acyclic with no parent back-pointers.
// Sub-expressions may be shared between parents; sharing is read-only.
// Every transformation produces new nodes and leaves its input untouched.
//
// Input variants (produced by the elaborator):
//   - Lit: constant literal
//   - Var: variable reference
//   - Call: user-defined function application
//   - And, Or: binary conjunction/disjunction (canonical left-fold form)
//   - Compare: comparison between two expressions
//   - In: membership test (value ∈ collection)
//   - Exists: bounded existential quantification
//   - MkTuple: tuple construction
//   - Rel: named relation reference (finite or unbounded per catalog)
//
// Synthesis variants (produced by the inversion engine, consumed by the
// external evaluator):
//   - Builtin: built-in application ("iterate", "union")
//   - Lambda: single-parameter step function
//   - Comprehension: bind/guard clause list producing a set of tuples
type Expr interface {
	exprNode() // Marker method - seals interface to this package
}

// Lit is a constant literal.
type Lit struct {
	Value Value
}

func (Lit) exprNode() {}

// Var is a reference to a variable bound in an enclosing scope, a goal
// variable, or an existential binder.
type Var struct {
	Name string
}

func (Var) exprNode() {}

// Call is an application of a user-defined function.
// Args are substituted into the function's parameter positions when the
// dispatcher inlines the body.
type Call struct {
	Fn   string
	Args []Expr
}

func (Call) exprNode() {}

// Builtin is an application of an engine/runtime primitive.
//
// The inversion engine synthesizes two of these:
//   - BuiltinIterate(seed, step): iterate-to-fixpoint over a seed relation
//   - BuiltinUnion(g1, ..., gn): deduplicated concatenation of generators
//
// Termination of iterate for well-founded step relations is the runtime
// evaluator's contract, not verified here.
type Builtin struct {
	Op   string
	Args []Expr
}

func (Builtin) exprNode() {}

// Built-in operator names.
const (
	BuiltinIterate = "iterate"
	BuiltinUnion   = "union"
)

// And is a binary conjunction.
//
// N-ary conjunctions are represented canonically as a binary left-fold:
// a ∧ b ∧ c becomes And{And{a, b}, c}. Use NewAnd to build the canonical
// form and FlattenAnd to recover the operand list.
type And struct {
	L Expr
	R Expr
}

func (And) exprNode() {}

// Or is a binary disjunction, same canonical left-fold shape as And.
type Or struct {
	L Expr
	R Expr
}

func (Or) exprNode() {}

// CmpOp identifies a comparison operator.
type CmpOp string

const (
	CmpEq CmpOp = "=="
	CmpNe CmpOp = "!="
	CmpLt CmpOp = "<"
	CmpLe CmpOp = "<="
	CmpGt CmpOp = ">"
	CmpGe CmpOp = ">="
)

// Compare is a comparison between two expressions.
// A comparison with a free variable is never finitely enumerable on its
// own; the dispatcher only admits it as a post-filter inside conjunctions.
type Compare struct {
	Op CmpOp
	L  Expr
	R  Expr
}

func (Compare) exprNode() {}

// In is a membership test: Elem ∈ Coll.
// When Coll is statically known finite (literal list, bound finite value,
// finite relation), this is the primary source of finite generators.
type In struct {
	Elem Expr
	Coll Expr
}

func (In) exprNode() {}

// Exists is a bounded existential: exists Vars where Body.
// The binders scope over Body only.
type Exists struct {
	Vars []string
	Body Expr
}

func (Exists) exprNode() {}

// MkTuple constructs a tuple from component expressions.
type MkTuple struct {
	Elems []Expr
}

func (MkTuple) exprNode() {}

// Rel is a reference to a named relation in the environment catalog.
// Finiteness comes from the catalog entry, not from the node itself:
// a Rel over an unbounded domain is a legal expression that can never
// become a terminal generator.
type Rel struct {
	Name string
}

func (Rel) exprNode() {}

// Lambda is a single-parameter function expression.
// The inversion engine synthesizes lambdas as fixpoint step functions;
// Param is bound to the currently-accumulated relation.
type Lambda struct {
	Param string
	Body  Expr
}

func (Lambda) exprNode() {}

// Comprehension denotes the set of Head tuples produced by executing the
// clause list left to right: Bind clauses enumerate, Guard clauses filter.
//
// All guard conditions are ground by the time they run - every free
// variable is supplied by an earlier Bind or by the enclosing scope. The
// synthesizer guarantees this by construction; the evaluator rejects
// violations at run time.
type Comprehension struct {
	Head    []Expr
	Clauses []Clause
}

func (Comprehension) exprNode() {}

// Clause is a sealed interface over comprehension clauses.
type Clause interface {
	clauseNode() // Marker method - seals interface to this package
}

// Bind enumerates Source and destructures each produced tuple into Vars.
// A single-variable Bind accepts scalar elements; multi-variable Binds
// require tuples of matching arity.
type Bind struct {
	Vars   []string
	Source Expr
}

func (Bind) clauseNode() {}

// Guard filters the bindings accumulated so far; Cond must evaluate to
// a boolean with all variables bound.
type Guard struct {
	Cond Expr
}

func (Guard) clauseNode() {}

// NewAnd folds a non-empty operand list into the canonical binary
// left-associative conjunction. A single operand is returned unchanged.
func NewAnd(exprs ...Expr) Expr {
	return foldBinary(exprs, func(l, r Expr) Expr { return And{L: l, R: r} })
}

// NewOr folds a non-empty operand list into the canonical binary
// left-associative disjunction. A single operand is returned unchanged.
func NewOr(exprs ...Expr) Expr {
	return foldBinary(exprs, func(l, r Expr) Expr { return Or{L: l, R: r} })
}

func foldBinary(exprs []Expr, join func(l, r Expr) Expr) Expr {
	if len(exprs) == 0 {
		panic("ir: fold over empty operand list")
	}
	acc := exprs[0]
	for _, e := range exprs[1:] {
		acc = join(acc, e)
	}
	return acc
}

// FlattenAnd recovers the operand list of a left-associative conjunction
// chain in source order. Non-And expressions flatten to themselves.
func FlattenAnd(e Expr) []Expr {
	if and, ok := e.(And); ok {
		return append(FlattenAnd(and.L), and.R)
	}
	return []Expr{e}
}

// FlattenOr recovers the operand list of a left-associative disjunction
// chain in source order. Non-Or expressions flatten to themselves.
// Termination is bounded by the input tree size.
func FlattenOr(e Expr) []Expr {
	if or, ok := e.(Or); ok {
		return append(FlattenOr(or.L), or.R)
	}
	return []Expr{e}
}

// ExprEqual reports structural equality of two expressions.
func ExprEqual(a, b Expr) bool {
	return HashExpr(a) == HashExpr(b)
}
