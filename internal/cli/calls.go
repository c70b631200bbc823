package cli

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/tlcomm/internal/callquery"
	"github.com/roach88/tlcomm/internal/store"
)

// CallsOptions holds flags for the calls command.
type CallsOptions struct {
	*RootOptions
	DB     string
	Op     string
	Effect string
	Kernel string
	Build  string
	Limit  int
}

// NewCallsCommand creates the calls command.
func NewCallsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CallsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "calls",
		Short: "Query stored call sites",
		Long: `List call sites recorded by "compile --db".

Filters combine with AND. Results are ordered by kernel hash, then by
evaluation order within the kernel.

Examples:
  tlcomm calls --db tlcomm.db --op comm_put
  tlcomm calls --db tlcomm.db --kernel ring --effect opaque`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCalls(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DB, "db", "", "artifact store path (required)")
	cmd.Flags().StringVar(&opts.Op, "op", "", "only calls to this intrinsic")
	cmd.Flags().StringVar(&opts.Effect, "effect", "", "only calls with this effect (pure or opaque)")
	cmd.Flags().StringVar(&opts.Kernel, "kernel", "", "only calls in kernels with this name")
	cmd.Flags().StringVar(&opts.Build, "build", "", "only calls in kernels of this build")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum rows (0 for all)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runCalls(ctx context.Context, opts *CallsOptions, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	q := callquery.Where(map[callquery.Field]string{
		callquery.FieldOp:     opts.Op,
		callquery.FieldEffect: opts.Effect,
		callquery.FieldKernel: opts.Kernel,
		callquery.FieldBuild:  opts.Build,
	})
	q.Limit = opts.Limit
	if err := callquery.Validate(q); err != nil {
		return failWith(formatter, ErrCodeGeneric, err.Error())
	}

	st, err := openExistingStore(opts.DB)
	if err != nil {
		return failWith(formatter, ErrCodeStore, err.Error())
	}
	defer st.Close()

	calls, err := st.FindCalls(ctx, q)
	if err != nil {
		if errors.Is(err, callquery.ErrInvalidQuery) {
			return failWith(formatter, ErrCodeGeneric, err.Error())
		}
		return failWith(formatter, ErrCodeStore, err.Error())
	}

	if formatter.IsJSON() {
		return formatter.Success(calls)
	}
	return outputCallsTable(formatter, calls)
}

func outputCallsTable(formatter *OutputFormatter, calls []store.CallMatch) error {
	if len(calls) == 0 {
		fmt.Fprintln(formatter.Writer, "No matching calls.")
		return nil
	}

	tw := tabwriter.NewWriter(formatter.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KERNEL\tHASH\tSEQ\tID\tOP\tARGC\tEFFECT")
	for _, c := range calls {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%d\t%s\n",
			c.Kernel, shortHash(c.KernelHash), c.Seq, c.CallID, c.Op, c.Argc, c.Effect)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	formatter.VerboseLog("%d call(s)", len(calls))
	return nil
}
