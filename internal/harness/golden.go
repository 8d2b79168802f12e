package harness

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// RunWithGolden executes a scenario and compares its outcome against a
// golden file in testdata/golden/{scenario.Name}.golden.
//
// The snapshot renders the failure code or the synthesized generator
// expression plus the sorted tuple set, so golden files double as a
// readable record of what each scenario synthesizes.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns an error if scenario execution fails; expectation failures and
// golden mismatches are reported through t.
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}

	for _, msg := range result.Errors {
		t.Errorf("%s: %s", scenario.Name, msg)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, renderSnapshot(scenario, result))

	return nil
}

// renderSnapshot produces the deterministic textual form compared against
// the golden file. Tuples are already sorted by Run.
func renderSnapshot(scenario *Scenario, result *Result) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "scenario: %s\n", scenario.Name)
	if !result.Inverted {
		fmt.Fprintf(&buf, "inverted: false\n")
		fmt.Fprintf(&buf, "failure_code: %s\n", result.FailureCode)
		return buf.Bytes()
	}
	fmt.Fprintf(&buf, "inverted: true\n")
	fmt.Fprintf(&buf, "cardinality: %s\n", result.Cardinality)
	fmt.Fprintf(&buf, "may_have_duplicates: %t\n", result.MayHaveDuplicates)
	fmt.Fprintf(&buf, "generator: %s\n", result.GeneratorText)
	fmt.Fprintf(&buf, "tuples:\n")
	for _, tup := range result.Tuples {
		fmt.Fprintf(&buf, "  %s\n", tup)
	}
	return buf.Bytes()
}
