package invert

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calyx-lang/calyx/internal/gen"
	"github.com/calyx-lang/calyx/internal/ir"
	"github.com/calyx-lang/calyx/internal/testutil"
)

// pathBody builds the canonical transitive-closure definition:
//
//	path(a, b) = (a, b) in edge || exists z: path(a, z) && (z, b) in edge
func pathBody() ir.Expr {
	return ir.NewOr(
		testutil.Member("edge", "a", "b"),
		ir.Exists{Vars: []string{"z"}, Body: ir.NewAnd(
			ir.Call{Fn: "path", Args: testutil.Vars("a", "z")},
			testutil.Member("edge", "z", "b"),
		)},
	)
}

func pathEnv() *testutil.Fixture {
	return graphEnv().AddFunc("path", []string{"a", "b"}, pathBody())
}

func TestSynthesizeClosureTransitivePath(t *testing.T) {
	expr := ir.Call{Fn: "path", Args: testutil.Vars("x", "y")}

	res, err := Invert(pathEnv(), expr, mustGoal(t, "x", "y"), gen.BoundContext{})
	require.NoError(t, err)
	require.NoError(t, gen.Validate(res))

	assert.Equal(t, gen.Finite, res.Generator.Cardinality)
	assert.Equal(t, []string{"x", "y"}, res.SatisfiedPats)
	assert.True(t, res.MayHaveDuplicates, "different inference chains may re-derive a tuple")
	assert.Empty(t, res.RemainingFilters)

	it, ok := res.Generator.Expr.(ir.Builtin)
	require.True(t, ok, "closure generator must be an iterate call, got %s", ir.Format(res.Generator.Expr))
	assert.Equal(t, ir.BuiltinIterate, it.Op)
	require.Len(t, it.Args, 2)

	// Seed is the base case verbatim; the step is a closed lambda.
	assert.Equal(t, "$edge", ir.Format(it.Args[0]))
	step, ok := it.Args[1].(ir.Lambda)
	require.True(t, ok)
	assert.Empty(t, ir.FreeVars(step), "step must be closed")
	assert.True(t, strings.HasPrefix(ir.Format(step), "(fun acc -> { (x, y) | x, z <- acc; "),
		"unexpected step shape: %s", ir.Format(step))
}

func TestSynthesizeClosureUnionsMultipleBases(t *testing.T) {
	env := graphEnv().
		AddRelation("road", 2, testutil.IntTuples([]int64{3, 4})).
		AddFunc("link", []string{"a", "b"}, ir.NewOr(
			testutil.Member("edge", "a", "b"),
			testutil.Member("road", "a", "b"),
			ir.Exists{Vars: []string{"z"}, Body: ir.NewAnd(
				ir.Call{Fn: "link", Args: testutil.Vars("a", "z")},
				testutil.Member("edge", "z", "b"),
			)},
		))

	res, err := Invert(env, ir.Call{Fn: "link", Args: testutil.Vars("x", "y")}, mustGoal(t, "x", "y"), gen.BoundContext{})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(ir.Format(res.Generator.Expr), "@iterate(@union($edge, $road), "),
		"unexpected generator: %s", ir.Format(res.Generator.Expr))
}

func TestSynthesizeClosureUnboundedBase(t *testing.T) {
	// The soundness gate: a base case over an open relation must abort
	// before any iterate call is constructed.
	env := graphEnv().
		AddOpenRelation("anyedge", 2).
		AddFunc("reach", []string{"a", "b"}, ir.NewOr(
			testutil.Member("anyedge", "a", "b"),
			ir.Exists{Vars: []string{"z"}, Body: ir.NewAnd(
				ir.Call{Fn: "reach", Args: testutil.Vars("a", "z")},
				testutil.Member("edge", "z", "b"),
			)},
		))

	_, err := Invert(env, ir.Call{Fn: "reach", Args: testutil.Vars("x", "y")}, mustGoal(t, "x", "y"), gen.BoundContext{})
	require.Error(t, err)
	assert.True(t, IsUnboundedBase(err), "want UNBOUNDED_BASE, got %v", err)
}

func TestSynthesizeClosureRejectsMutualRecursion(t *testing.T) {
	even := ir.NewOr(
		ir.In{Elem: ir.Var{Name: "a"}, Coll: testutil.ListLit(testutil.Ints(0)...)},
		ir.Call{Fn: "odd", Args: testutil.Vars("a")},
	)
	odd := ir.NewOr(
		ir.In{Elem: ir.Var{Name: "a"}, Coll: testutil.ListLit(testutil.Ints(1)...)},
		ir.Call{Fn: "even", Args: testutil.Vars("a")},
	)
	env := graphEnv().
		AddFunc("even", []string{"a"}, even).
		AddFunc("odd", []string{"a"}, odd)

	_, err := Invert(env, ir.Call{Fn: "even", Args: testutil.Vars("x")}, mustGoal(t, "x"), gen.BoundContext{})
	require.Error(t, err)
	assert.Equal(t, CodeUnsupportedRecursion, CodeOf(err))
}

func TestSynthesizeClosureRejectsBareSelfCall(t *testing.T) {
	env := graphEnv().AddFunc("loop", []string{"a"}, ir.Call{Fn: "loop", Args: testutil.Vars("a")})

	_, err := Invert(env, ir.Call{Fn: "loop", Args: testutil.Vars("x")}, mustGoal(t, "x"), gen.BoundContext{})
	require.Error(t, err)
	assert.Equal(t, CodeUnsupportedRecursion, CodeOf(err))
}

func TestSynthesizeClosureRejectsTwoRecursiveDisjuncts(t *testing.T) {
	recursiveBranch := func() ir.Expr {
		return ir.Exists{Vars: []string{"z"}, Body: ir.NewAnd(
			ir.Call{Fn: "p", Args: testutil.Vars("a", "z")},
			testutil.Member("edge", "z", "b"),
		)}
	}
	env := graphEnv().AddFunc("p", []string{"a", "b"}, ir.NewOr(
		testutil.Member("edge", "a", "b"),
		recursiveBranch(),
		recursiveBranch(),
	))

	// The two recursive branches are identical expressions; they still
	// violate the single-recursive-disjunct shape.
	_, err := Invert(env, ir.Call{Fn: "p", Args: testutil.Vars("x", "y")}, mustGoal(t, "x", "y"), gen.BoundContext{})
	require.Error(t, err)
	assert.Equal(t, CodeUnsupportedRecursion, CodeOf(err))
}

func TestSynthesizeClosureRejectsTwoSelfCallsInOneDisjunct(t *testing.T) {
	// p(a, b) = base || exists z: p(a, z) && p(z, b) - a doubly recursive
	// join is outside the recognized shape.
	env := graphEnv().AddFunc("p", []string{"a", "b"}, ir.NewOr(
		testutil.Member("edge", "a", "b"),
		ir.Exists{Vars: []string{"z"}, Body: ir.NewAnd(
			ir.Call{Fn: "p", Args: testutil.Vars("a", "z")},
			ir.Call{Fn: "p", Args: testutil.Vars("z", "b")},
		)},
	))

	_, err := Invert(env, ir.Call{Fn: "p", Args: testutil.Vars("x", "y")}, mustGoal(t, "x", "y"), gen.BoundContext{})
	require.Error(t, err)
	assert.Equal(t, CodeUnsupportedRecursion, CodeOf(err))
}

func TestSynthesizeClosureRejectsNonVariableSelfCallArg(t *testing.T) {
	env := graphEnv().AddFunc("p", []string{"a", "b"}, ir.NewOr(
		testutil.Member("edge", "a", "b"),
		ir.Exists{Vars: []string{"z"}, Body: ir.NewAnd(
			ir.Call{Fn: "p", Args: []ir.Expr{ir.Var{Name: "a"}, ir.Lit{Value: ir.NewVInt(1)}}},
			testutil.Member("edge", "z", "b"),
		)},
	))

	_, err := Invert(env, ir.Call{Fn: "p", Args: testutil.Vars("x", "y")}, mustGoal(t, "x", "y"), gen.BoundContext{})
	require.Error(t, err)
	assert.Equal(t, CodeUnsupportedShape, CodeOf(err))
}

func TestSynthesizeClosureRejectsNoNewVariable(t *testing.T) {
	// The self-call already covers the whole goal; the recursive case
	// derives nothing and the fixpoint could never grow.
	env := graphEnv().AddFunc("p", []string{"a", "b"}, ir.NewOr(
		testutil.Member("edge", "a", "b"),
		ir.NewAnd(
			ir.Call{Fn: "p", Args: testutil.Vars("a", "b")},
			testutil.Member("edge", "a", "b"),
		),
	))

	_, err := Invert(env, ir.Call{Fn: "p", Args: testutil.Vars("x", "y")}, mustGoal(t, "x", "y"), gen.BoundContext{})
	require.Error(t, err)
	assert.Equal(t, CodeUnsupportedShape, CodeOf(err))
}

func TestSynthesizeClosureRejectsMissingEdgeCondition(t *testing.T) {
	env := graphEnv().AddFunc("p", []string{"a", "b"}, ir.NewOr(
		testutil.Member("edge", "a", "b"),
		ir.Exists{Vars: []string{"z"}, Body: ir.Call{Fn: "p", Args: testutil.Vars("a", "z")}},
	))

	_, err := Invert(env, ir.Call{Fn: "p", Args: testutil.Vars("x", "y")}, mustGoal(t, "x", "y"), gen.BoundContext{})
	require.Error(t, err)
	assert.Equal(t, CodeUnsupportedShape, CodeOf(err))
}

func TestSynthesizeClosureRejectsInfiniteEdge(t *testing.T) {
	env := graphEnv().
		AddOpenRelation("anyedge", 2).
		AddFunc("p", []string{"a", "b"}, ir.NewOr(
			testutil.Member("edge", "a", "b"),
			ir.Exists{Vars: []string{"z"}, Body: ir.NewAnd(
				ir.Call{Fn: "p", Args: testutil.Vars("a", "z")},
				testutil.Member("anyedge", "z", "b"),
			)},
		))

	_, err := Invert(env, ir.Call{Fn: "p", Args: testutil.Vars("x", "y")}, mustGoal(t, "x", "y"), gen.BoundContext{})
	require.Error(t, err)
	assert.Equal(t, CodeUnsupportedShape, CodeOf(err))
}
