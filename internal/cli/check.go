package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/calyx-lang/calyx/internal/elaborate"
	"github.com/calyx-lang/calyx/internal/invert"
)

// CheckReport summarizes a definition file.
type CheckReport struct {
	Relations int                       `json:"relations"`
	Functions int                       `json:"functions"`
	Queries   int                       `json:"queries"`
	Warnings  []invert.RecursionWarning `json:"warnings,omitempty"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check <definitions.cue>",
		Short: "Elaborate a definition file and report recursion warnings",
		Long: `Check elaborates a CUE definition file, validates relations, data,
functions, and queries, and analyzes the function call graph for
recursion shapes the inversion engine cannot handle (mutual recursion).`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(rootOpts, args[0], cmd)
		},
	}
}

func runCheck(opts *RootOptions, defPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	doc, err := elaborate.LoadFile(defPath)
	if err != nil {
		formatter.Error(ErrCodeElaborate, err.Error(), nil)
		return WrapExitError(ExitCommandError, "check failed", err)
	}

	report := &CheckReport{
		Relations: len(doc.Relations),
		Functions: len(doc.Functions),
		Queries:   len(doc.Queries),
		Warnings:  invert.AnalyzeRecursion(doc.Functions),
	}

	if done, err := formatter.SuccessJSON(report); done || err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%s: %d relation(s), %d function(s), %d quer%s\n",
		defPath, report.Relations, report.Functions, report.Queries, plural(report.Queries, "y", "ies"))
	for _, warn := range report.Warnings {
		fmt.Fprintf(w, "  [%s] %s\n", warn.Level, warn.Message)
	}
	return nil
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
