package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/calyx-lang/calyx/internal/invert"
	"github.com/calyx-lang/calyx/internal/ir"
)

// InvertOptions holds flags for the invert command.
type InvertOptions struct {
	*RootOptions
	Query    string
	DB       string
	Bound    []string
	MaxDepth int
}

// InvertReport describes an inversion outcome.
type InvertReport struct {
	Query             string   `json:"query"`
	Inverted          bool     `json:"inverted"`
	FailureCode       string   `json:"failure_code,omitempty"`
	Cardinality       string   `json:"cardinality,omitempty"`
	MayHaveDuplicates bool     `json:"may_have_duplicates,omitempty"`
	SatisfiedPats     []string `json:"satisfied_pats,omitempty"`
	Generator         string   `json:"generator,omitempty"`
	Filters           []string `json:"filters,omitempty"`
}

// NewInvertCommand creates the invert command.
func NewInvertCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InvertOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "invert <definitions.cue>",
		Short: "Invert a query into a finite generator",
		Long: `Invert runs a query's predicate through the inversion engine and
prints the synthesized generator expression, or the structured failure
code when the predicate cannot be finitely enumerated.

Exit code 1 means the engine refused the predicate; a caller would fall
back to exhaustive enumeration (see the eval command).`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInvert(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Query, "query", "q", "", "query name (defaults to the file's only query)")
	cmd.Flags().StringVar(&opts.DB, "db", "", "database path (defaults to in-memory)")
	cmd.Flags().StringArrayVar(&opts.Bound, "bound", nil, "pre-bound variable as name=value (repeatable)")
	cmd.Flags().IntVar(&opts.MaxDepth, "max-depth", 0, "recursion depth bound (0 = engine default)")

	return cmd
}

func runInvert(opts *InvertOptions, defPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	sess, err := openSession(defPath, opts.DB)
	if err != nil {
		formatter.Error(ErrCodeStore, err.Error(), nil)
		return err
	}
	defer sess.Close()

	query, err := sess.query(opts.Query)
	if err != nil {
		formatter.Error(ErrCodeQuery, err.Error(), nil)
		return err
	}
	goal, err := query.GoalPattern()
	if err != nil {
		formatter.Error(ErrCodeQuery, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid goal", err)
	}
	bound, _, err := parseBindings(opts.Bound)
	if err != nil {
		formatter.Error(ErrCodeQuery, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid binding", err)
	}

	var invOpts []invert.Option
	if opts.MaxDepth > 0 {
		invOpts = append(invOpts, invert.WithMaxDepth(opts.MaxDepth))
	}

	report := &InvertReport{Query: query.Name}
	res, err := invert.Invert(sess.env, query.Expr, goal, bound, invOpts...)
	if err != nil {
		code := invert.CodeOf(err)
		if code == "" {
			formatter.Error(ErrCodeInversion, err.Error(), nil)
			return WrapExitError(ExitCommandError, "inversion failed", err)
		}
		report.FailureCode = string(code)
		formatter.Error(ErrCodeInversion, err.Error(), report)
		return WrapExitError(ExitFailure, "predicate not invertible", err)
	}

	report.Inverted = true
	report.Cardinality = string(res.Generator.Cardinality)
	report.MayHaveDuplicates = res.MayHaveDuplicates
	report.SatisfiedPats = res.SatisfiedPats
	report.Generator = ir.Format(res.Generator.Expr)
	for _, f := range res.RemainingFilters {
		report.Filters = append(report.Filters, ir.Format(f))
	}

	if done, err := formatter.SuccessJSON(report); done || err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "query:       %s\n", report.Query)
	fmt.Fprintf(w, "cardinality: %s\n", report.Cardinality)
	fmt.Fprintf(w, "binds:       %v\n", report.SatisfiedPats)
	fmt.Fprintf(w, "generator:   %s\n", report.Generator)
	for _, f := range report.Filters {
		fmt.Fprintf(w, "filter:      %s\n", f)
	}
	return nil
}
