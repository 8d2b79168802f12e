package harness

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestScenarios runs every scenario under testdata/scenarios against its
// golden snapshot. Add a scenario by dropping a YAML file there and
// regenerating goldens with -update.
func TestScenarios(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("testdata", "scenarios", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		name := strings.TrimSuffix(filepath.Base(path), ".yaml")
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)
			require.NoError(t, RunWithGolden(t, scenario))
		})
	}
}

func TestRunReportsUnexpectedFailure(t *testing.T) {
	scenario := &Scenario{
		Name:        "wants-generator",
		Description: "expects inversion to succeed against a mutually recursive query",
		Definitions: filepath.Join("testdata", "mutual.cue"),
		Query:       "evens",
		Expect:      ExpectClause{Inverted: true},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Passed())
	assert.Equal(t, "UNSUPPORTED_RECURSION", result.FailureCode)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "expected a generator")
}

func TestRunReportsTupleMismatch(t *testing.T) {
	scenario := &Scenario{
		Name:        "wrong-tuples",
		Description: "expects a tuple the union does not produce",
		Definitions: filepath.Join("testdata", "union.cue"),
		Query:       "linked",
		Expect: ExpectClause{
			Inverted: true,
			Tuples:   []interface{}{[]interface{}{9, 9}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Inverted)
	assert.False(t, result.Passed())
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "tuple mismatch")
}

func TestRunReportsWrongFailureCode(t *testing.T) {
	scenario := &Scenario{
		Name:        "wrong-code",
		Description: "expects a different failure code",
		Definitions: filepath.Join("testdata", "mutual.cue"),
		Query:       "evens",
		Expect:      ExpectClause{Inverted: false, FailureCode: "UNBOUNDED_BASE"},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Passed())
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "expected failure code UNBOUNDED_BASE")
}

func TestRunInlineScenario(t *testing.T) {
	scenario := &Scenario{
		Name:        "union-set",
		Description: "full union tuple set without expectations",
		Definitions: filepath.Join("testdata", "union.cue"),
		Query:       "linked",
		Expect: ExpectClause{
			Inverted: true,
			Tuples: []interface{}{
				[]interface{}{1, 2},
				[]interface{}{2, 3},
				[]interface{}{3, 4},
			},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Passed(), "errors: %v", result.Errors)
	assert.Equal(t, []string{"(1, 2)", "(2, 3)", "(3, 4)"}, result.Tuples)
	assert.Equal(t, "@union($edge, $road)", result.GeneratorText)
}

func TestRunUnknownQuery(t *testing.T) {
	scenario := &Scenario{
		Name:        "unknown-query",
		Description: "names a query the definition file lacks",
		Definitions: filepath.Join("testdata", "union.cue"),
		Query:       "missing",
		Expect:      ExpectClause{Inverted: true},
	}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
