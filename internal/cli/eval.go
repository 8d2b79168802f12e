package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/calyx-lang/calyx/internal/eval"
	"github.com/calyx-lang/calyx/internal/invert"
	"github.com/calyx-lang/calyx/internal/ir"
)

// EvalOptions holds flags for the eval command.
type EvalOptions struct {
	*RootOptions
	Query    string
	DB       string
	Bound    []string
	MaxDepth int
}

// EvalReport holds the enumerated bindings for a query.
type EvalReport struct {
	Query    string   `json:"query"`
	Strategy string   `json:"strategy"` // "generator" or "fallback"
	Tuples   []string `json:"tuples"`
}

// NewEvalCommand creates the eval command.
func NewEvalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EvalOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "eval <definitions.cue>",
		Short: "Enumerate a query's satisfying bindings",
		Long: `Eval inverts a query and materializes the synthesized generator.
When the engine refuses the predicate, eval falls back to exhaustive
enumeration over the scalars found in the relation data, so the answer
set is the same either way - only the cost differs.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEval(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Query, "query", "q", "", "query name (defaults to the file's only query)")
	cmd.Flags().StringVar(&opts.DB, "db", "", "database path (defaults to in-memory)")
	cmd.Flags().StringArrayVar(&opts.Bound, "bound", nil, "pre-bound variable as name=value (repeatable)")
	cmd.Flags().IntVar(&opts.MaxDepth, "max-depth", 0, "recursion depth bound (0 = engine default)")

	return cmd
}

func runEval(opts *EvalOptions, defPath string, cmd *cobra.Command) error {
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
	bound, binding, err := parseBindings(opts.Bound)
	if err != nil {
		formatter.Error(ErrCodeQuery, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid binding", err)
	}

	universe, err := sess.universe()
	if err != nil {
		formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "eval failed", err)
	}
	ev := eval.New(sess.env, sess.st, eval.WithUniverse(universe))

	report := &EvalReport{Query: query.Name}

	var invOpts []invert.Option
	if opts.MaxDepth > 0 {
		invOpts = append(invOpts, invert.WithMaxDepth(opts.MaxDepth))
	}

	res, err := invert.Invert(sess.env, query.Expr, goal, bound, invOpts...)
	switch {
	case err == nil:
		report.Strategy = "generator"
		formatter.VerboseLog("generator: %s", ir.Format(res.Generator.Expr))
		rows, err := ev.Materialize(res, binding)
		if err != nil {
			formatter.Error(ErrCodeEval, err.Error(), nil)
			return WrapExitError(ExitCommandError, "materialization failed", err)
		}
		report.Tuples = formatSorted(rows)

	case invert.CodeOf(err) != "":
		report.Strategy = "fallback"
		formatter.VerboseLog("inversion refused (%s); enumerating exhaustively", invert.CodeOf(err))
		domains := map[string][]ir.Value{}
		for _, v := range goal {
			domains[v] = universe
		}
		rows, err := ev.Fallback(query.Expr, goal, domains, binding)
		if err != nil {
			formatter.Error(ErrCodeEval, err.Error(), nil)
			return WrapExitError(ExitCommandError, "fallback enumeration failed", err)
		}
		report.Tuples = formatSorted(rows)

	default:
		formatter.Error(ErrCodeInversion, err.Error(), nil)
		return WrapExitError(ExitCommandError, "eval failed", err)
	}

	if done, err := formatter.SuccessJSON(report); done || err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "query:    %s\n", report.Query)
	fmt.Fprintf(w, "strategy: %s\n", report.Strategy)
	fmt.Fprintf(w, "tuples:   %d\n", len(report.Tuples))
	for _, tup := range report.Tuples {
		fmt.Fprintf(w, "  %s\n", tup)
	}
	return nil
}

func formatSorted(vals []ir.Value) []string {
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = ir.FormatValue(v)
	}
	sort.Strings(out)
	return out
}
