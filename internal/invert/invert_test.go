package invert

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calyx-lang/calyx/internal/gen"
	"github.com/calyx-lang/calyx/internal/ir"
	"github.com/calyx-lang/calyx/internal/testutil"
)

// graphEnv declares a finite edge relation and an open (never
// enumerable) nat relation.
func graphEnv() *testutil.Fixture {
	return testutil.NewFixture().
		AddRelation("edge", 2, testutil.IntTuples([]int64{1, 2}, []int64{2, 3})).
		AddOpenRelation("nat", 1)
}

func mustGoal(t *testing.T, vars ...string) gen.GoalPattern {
	t.Helper()
	goal, err := gen.NewGoalPattern(vars...)
	require.NoError(t, err)
	return goal
}

func TestInvertMembershipVariableInLiteralList(t *testing.T) {
	expr := ir.In{Elem: ir.Var{Name: "x"}, Coll: testutil.ListLit(testutil.Ints(1, 2, 2)...)}

	res, err := Invert(graphEnv(), expr, mustGoal(t, "x"), gen.BoundContext{})
	require.NoError(t, err)

	assert.Equal(t, gen.Finite, res.Generator.Cardinality)
	assert.Equal(t, []string{"x"}, res.SatisfiedPats)
	assert.True(t, res.MayHaveDuplicates, "literal lists may repeat elements")
	assert.False(t, res.IsSupersetOfSolution)
	assert.Empty(t, res.RemainingFilters)
	assert.Equal(t, "[1, 2, 2]", ir.Format(res.Generator.Expr))
}

func TestInvertMembershipTupleInFiniteRelation(t *testing.T) {
	expr := testutil.Member("edge", "x", "y")

	res, err := Invert(graphEnv(), expr, mustGoal(t, "x", "y"), gen.BoundContext{})
	require.NoError(t, err)

	assert.Equal(t, []string{"x", "y"}, res.SatisfiedPats)
	assert.False(t, res.MayHaveDuplicates, "relations enumerate distinct tuples")
	assert.Equal(t, "$edge", ir.Format(res.Generator.Expr))
}

func TestInvertMembershipBoundCollectionVariable(t *testing.T) {
	expr := ir.In{Elem: ir.Var{Name: "x"}, Coll: ir.Var{Name: "xs"}}
	bound := gen.BoundContext{"xs": ir.NewVList(testutil.Ints(4, 5)...)}

	res, err := Invert(graphEnv(), expr, mustGoal(t, "x"), bound)
	require.NoError(t, err)
	assert.Equal(t, "xs", ir.Format(res.Generator.Expr))
}

func TestInvertMembershipFailures(t *testing.T) {
	env := graphEnv()
	goalX := mustGoal(t, "x")

	tests := []struct {
		name  string
		expr  ir.Expr
		goal  gen.GoalPattern
		bound gen.BoundContext
	}{
		{
			"open relation is not finite",
			testutil.Member("nat", "x"),
			goalX,
			gen.BoundContext{},
		},
		{
			"unbound collection variable",
			ir.In{Elem: ir.Var{Name: "x"}, Coll: ir.Var{Name: "xs"}},
			goalX,
			gen.BoundContext{},
		},
		{
			"element is not a goal variable",
			ir.In{Elem: ir.Var{Name: "z"}, Coll: testutil.ListLit(testutil.Ints(1)...)},
			goalX,
			gen.BoundContext{},
		},
		{
			"element already bound",
			ir.In{Elem: ir.Var{Name: "x"}, Coll: testutil.ListLit(testutil.Ints(1)...)},
			goalX,
			gen.BoundContext{"x": ir.NewVInt(1)},
		},
		{
			"tuple of only literals",
			ir.In{
				Elem: ir.MkTuple{Elems: []ir.Expr{ir.Lit{Value: ir.NewVInt(1)}, ir.Lit{Value: ir.NewVInt(2)}}},
				Coll: ir.Rel{Name: "edge"},
			},
			mustGoal(t, "x", "y"),
			gen.BoundContext{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Invert(env, tt.expr, tt.goal, tt.bound)
			require.Error(t, err)
			assert.Equal(t, CodeUnsupportedShape, CodeOf(err))
		})
	}
}

func TestInvertTupleMembershipProjectsBoundPositions(t *testing.T) {
	// (x, y) in edge with y already bound: the generator enumerates edge,
	// guards the second position against y, and projects to x alone.
	expr := testutil.Member("edge", "x", "y")
	bound := gen.BoundContext{"y": ir.NewVInt(3)}

	res, err := Invert(graphEnv(), expr, mustGoal(t, "x", "y"), bound)
	require.NoError(t, err)

	assert.Equal(t, []string{"x"}, res.SatisfiedPats)
	assert.True(t, res.IsSupersetOfSolution, "only part of the goal is enumerated")
	assert.True(t, res.MayHaveDuplicates)
	assert.Equal(t, "{ (x) | x, t_1 <- $edge; (t_1 == y) }", ir.Format(res.Generator.Expr))
}

func TestInvertTupleMembershipLiteralPosition(t *testing.T) {
	expr := ir.In{
		Elem: ir.MkTuple{Elems: []ir.Expr{ir.Var{Name: "x"}, ir.Lit{Value: ir.NewVInt(3)}}},
		Coll: ir.Rel{Name: "edge"},
	}

	res, err := Invert(graphEnv(), expr, mustGoal(t, "x"), gen.BoundContext{})
	require.NoError(t, err)
	assert.Equal(t, "{ (x) | x, t_1 <- $edge; (t_1 == 3) }", ir.Format(res.Generator.Expr))
}

func TestInvertComparisonNeverGenerates(t *testing.T) {
	expr := ir.Compare{Op: ir.CmpLt, L: ir.Var{Name: "x"}, R: ir.Lit{Value: ir.NewVInt(10)}}

	_, err := Invert(graphEnv(), expr, mustGoal(t, "x"), gen.BoundContext{})
	require.Error(t, err)
	assert.Equal(t, CodeUnsupportedShape, CodeOf(err))
}

func TestInvertConjunctionGeneratorPlusFilter(t *testing.T) {
	// (x, y) in edge && x < y: membership generates, comparison filters.
	member := testutil.Member("edge", "x", "y")
	cmp := ir.Compare{Op: ir.CmpLt, L: ir.Var{Name: "x"}, R: ir.Var{Name: "y"}}
	expr := ir.NewAnd(member, cmp)

	res, err := Invert(graphEnv(), expr, mustGoal(t, "x", "y"), gen.BoundContext{})
	require.NoError(t, err)

	assert.Equal(t, []string{"x", "y"}, res.SatisfiedPats)
	assert.Equal(t, "$edge", ir.Format(res.Generator.Expr))
	require.Len(t, res.RemainingFilters, 1)
	assert.True(t, ir.ExprEqual(cmp, res.RemainingFilters[0]))
	assert.True(t, res.IsSupersetOfSolution)
}

func TestInvertConjunctionPrefersLargestBinding(t *testing.T) {
	// x in [1] binds one goal variable, (x, y) in edge binds both; the
	// wider conjunct wins regardless of position, the narrower filters.
	narrow := ir.In{Elem: ir.Var{Name: "x"}, Coll: testutil.ListLit(testutil.Ints(1)...)}
	wide := testutil.Member("edge", "x", "y")
	expr := ir.NewAnd(narrow, wide)

	res, err := Invert(graphEnv(), expr, mustGoal(t, "x", "y"), gen.BoundContext{})
	require.NoError(t, err)

	assert.Equal(t, "$edge", ir.Format(res.Generator.Expr))
	require.Len(t, res.RemainingFilters, 1)
	assert.True(t, ir.ExprEqual(narrow, res.RemainingFilters[0]))
}

func TestInvertConjunctionTieBreaksLeftmost(t *testing.T) {
	left := ir.In{Elem: ir.Var{Name: "x"}, Coll: testutil.ListLit(testutil.Ints(1, 2)...)}
	right := ir.In{Elem: ir.Var{Name: "x"}, Coll: testutil.ListLit(testutil.Ints(3)...)}

	res, err := Invert(graphEnv(), ir.NewAnd(left, right), mustGoal(t, "x"), gen.BoundContext{})
	require.NoError(t, err)

	assert.Equal(t, "[1, 2]", ir.Format(res.Generator.Expr))
	require.Len(t, res.RemainingFilters, 1)
	assert.True(t, ir.ExprEqual(right, res.RemainingFilters[0]))
}

func TestInvertConjunctionNoFiniteConjunct(t *testing.T) {
	expr := ir.NewAnd(
		ir.Compare{Op: ir.CmpLt, L: ir.Var{Name: "x"}, R: ir.Lit{Value: ir.NewVInt(10)}},
		testutil.Member("nat", "x"),
	)

	_, err := Invert(graphEnv(), expr, mustGoal(t, "x"), gen.BoundContext{})
	require.Error(t, err)
	assert.Equal(t, CodeUnsupportedShape, CodeOf(err))
}

func TestInvertDisjunctionUnionsBranches(t *testing.T) {
	expr := ir.NewOr(
		ir.In{Elem: ir.Var{Name: "x"}, Coll: testutil.ListLit(testutil.Ints(1, 2)...)},
		ir.In{Elem: ir.Var{Name: "x"}, Coll: testutil.ListLit(testutil.Ints(2, 3)...)},
	)

	res, err := Invert(graphEnv(), expr, mustGoal(t, "x"), gen.BoundContext{})
	require.NoError(t, err)

	assert.Equal(t, "@union([1, 2], [2, 3])", ir.Format(res.Generator.Expr))
	assert.Equal(t, []string{"x"}, res.SatisfiedPats)
	assert.Empty(t, res.RemainingFilters)
}

func TestInvertDisjunctionFailsIfAnyBranchFails(t *testing.T) {
	// Dropping the failing branch would silently lose its solutions.
	expr := ir.NewOr(
		ir.In{Elem: ir.Var{Name: "x"}, Coll: testutil.ListLit(testutil.Ints(1)...)},
		testutil.Member("nat", "x"),
	)

	_, err := Invert(graphEnv(), expr, mustGoal(t, "x"), gen.BoundContext{})
	require.Error(t, err)
	assert.Equal(t, CodeUnsupportedShape, CodeOf(err))
}

func TestInvertDisjunctionFailsIfBranchNeedsFilter(t *testing.T) {
	// The left branch inverts but with a residual filter; per-branch
	// filters cannot be hoisted across a union.
	filtered := ir.NewAnd(
		testutil.Member("edge", "x", "y"),
		ir.Compare{Op: ir.CmpLt, L: ir.Var{Name: "x"}, R: ir.Var{Name: "y"}},
	)
	expr := ir.NewOr(filtered, testutil.Member("edge", "x", "y"))

	_, err := Invert(graphEnv(), expr, mustGoal(t, "x", "y"), gen.BoundContext{})
	require.Error(t, err)
	assert.Equal(t, CodeUnsupportedShape, CodeOf(err))
}

func TestInvertExistsProjectsBinders(t *testing.T) {
	// exists y: (x, y) in edge - y is enumerated, then projected away.
	expr := ir.Exists{Vars: []string{"y"}, Body: testutil.Member("edge", "x", "y")}

	res, err := Invert(graphEnv(), expr, mustGoal(t, "x"), gen.BoundContext{})
	require.NoError(t, err)

	assert.Equal(t, []string{"x"}, res.SatisfiedPats)
	assert.True(t, res.MayHaveDuplicates, "projection can merge witnesses")
	assert.Equal(t, "{ (x) | x, y <- $edge }", ir.Format(res.Generator.Expr))
}

func TestInvertExistsBinderShadowsGoal(t *testing.T) {
	expr := ir.Exists{Vars: []string{"x"}, Body: testutil.Member("edge", "x", "y")}

	_, err := Invert(graphEnv(), expr, mustGoal(t, "x", "y"), gen.BoundContext{})
	require.Error(t, err)
	assert.Equal(t, CodeUnsupportedShape, CodeOf(err))
}

func TestInvertCallInlinesBody(t *testing.T) {
	env := graphEnv().AddFunc("adjacent", []string{"a", "b"}, testutil.Member("edge", "a", "b"))
	expr := ir.Call{Fn: "adjacent", Args: testutil.Vars("x", "y")}

	res, err := Invert(env, expr, mustGoal(t, "x", "y"), gen.BoundContext{})
	require.NoError(t, err)
	assert.Equal(t, "$edge", ir.Format(res.Generator.Expr))
	assert.Equal(t, []string{"x", "y"}, res.SatisfiedPats)
}

func TestInvertCallErrors(t *testing.T) {
	env := graphEnv().AddFunc("adjacent", []string{"a", "b"}, testutil.Member("edge", "a", "b"))

	t.Run("unknown function", func(t *testing.T) {
		_, err := Invert(env, ir.Call{Fn: "missing", Args: testutil.Vars("x")}, mustGoal(t, "x"), gen.BoundContext{})
		require.Error(t, err)
		assert.Equal(t, CodeUnsupportedShape, CodeOf(err))
	})

	t.Run("arity mismatch", func(t *testing.T) {
		_, err := Invert(env, ir.Call{Fn: "adjacent", Args: testutil.Vars("x")}, mustGoal(t, "x"), gen.BoundContext{})
		require.Error(t, err)
		assert.Equal(t, CodeUnsupportedShape, CodeOf(err))
	})
}

func TestInvertDepthBound(t *testing.T) {
	env := graphEnv().
		AddFunc("outer", []string{"a"}, ir.Call{Fn: "inner", Args: testutil.Vars("a")}).
		AddFunc("inner", []string{"b"}, ir.In{Elem: ir.Var{Name: "b"}, Coll: testutil.ListLit(testutil.Ints(1)...)})

	// Depth 2 suffices for outer -> inner.
	_, err := Invert(env, ir.Call{Fn: "outer", Args: testutil.Vars("x")}, mustGoal(t, "x"), gen.BoundContext{}, WithMaxDepth(2))
	require.NoError(t, err)

	// Depth 1 does not.
	_, err = Invert(env, ir.Call{Fn: "outer", Args: testutil.Vars("x")}, mustGoal(t, "x"), gen.BoundContext{}, WithMaxDepth(1))
	require.Error(t, err)
	assert.True(t, IsDepthExceeded(err))
}

func TestInvertInvalidGoalPattern(t *testing.T) {
	_, err := Invert(graphEnv(), testutil.Member("edge", "x", "y"), gen.GoalPattern{"x", "x"}, gen.BoundContext{})
	require.Error(t, err)
	assert.Equal(t, CodeUnsupportedShape, CodeOf(err))
}

func TestInvertResultAlwaysValidates(t *testing.T) {
	exprs := []ir.Expr{
		testutil.Member("edge", "x", "y"),
		ir.NewAnd(testutil.Member("edge", "x", "y"), ir.Compare{Op: ir.CmpNe, L: ir.Var{Name: "x"}, R: ir.Var{Name: "y"}}),
		ir.Exists{Vars: []string{"y"}, Body: testutil.Member("edge", "x", "y")},
	}
	goals := []gen.GoalPattern{mustGoal(t, "x", "y"), mustGoal(t, "x", "y"), mustGoal(t, "x")}

	for i, expr := range exprs {
		res, err := Invert(graphEnv(), expr, goals[i], gen.BoundContext{})
		require.NoError(t, err)
		assert.NoError(t, gen.Validate(res))
	}
}
