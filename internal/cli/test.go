package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/calyx-lang/calyx/internal/harness"
)

// TestReport summarizes a scenario run.
type TestReport struct {
	Scenarios int              `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Failures  []ScenarioResult `json:"failures,omitempty"`
}

// ScenarioResult is one failed scenario and its expectation errors.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Errors []string `json:"errors"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "test <scenario.yaml>...",
		Short: "Run conformance scenarios",
		Long: `Test runs one or more YAML conformance scenarios against fresh
in-memory databases and reports expectation failures.

Exit code 1 means at least one scenario failed; exit code 2 means a
scenario could not be executed at all.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTest(rootOpts, args, cmd)
		},
	}
}

func runTest(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	report := &TestReport{}
	for _, path := range paths {
		scenario, err := harness.LoadScenario(path)
		if err != nil {
			formatter.Error(ErrCodeScenario, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to load scenario", err)
		}

		result, err := harness.Run(scenario)
		if err != nil {
			formatter.Error(ErrCodeScenario, err.Error(), nil)
			return WrapExitError(ExitCommandError, fmt.Sprintf("scenario %q failed to run", scenario.Name), err)
		}

		report.Scenarios++
		if result.Passed() {
			report.Passed++
			formatter.VerboseLog("PASS %s", scenario.Name)
			continue
		}
		report.Failed++
		report.Failures = append(report.Failures, ScenarioResult{
			Name:   scenario.Name,
			Errors: result.Errors,
		})
		formatter.VerboseLog("FAIL %s", scenario.Name)
	}

	if done, err := formatter.SuccessJSON(report); done || err != nil {
		if report.Failed > 0 {
			return WrapExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", report.Failed), nil)
		}
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%d scenario(s): %d passed, %d failed\n", report.Scenarios, report.Passed, report.Failed)
	for _, failure := range report.Failures {
		fmt.Fprintf(w, "FAIL %s\n", failure.Name)
		for _, msg := range failure.Errors {
			fmt.Fprintf(w, "  %s\n", msg)
		}
	}
	if report.Failed > 0 {
		return WrapExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", report.Failed), nil)
	}
	return nil
}
