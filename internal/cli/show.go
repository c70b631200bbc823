package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/tlcomm/internal/intrinsic"
	"github.com/roach88/tlcomm/internal/ir"
	"github.com/roach88/tlcomm/internal/store"
)

// ShowOptions holds flags for the show command.
type ShowOptions struct {
	*RootOptions
	DB string
}

// ShowResult is a stored kernel with its call rows.
type ShowResult struct {
	*store.KernelRecord
	Calls []store.CallRecord `json:"calls"`
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShowOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "show <hash>",
		Short: "Print a stored kernel",
		Long: `Print a kernel recorded by "compile --db".

The hash may be abbreviated to any unique prefix.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DB, "db", "", "artifact store path (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runShow(ctx context.Context, opts *ShowOptions, prefix string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	st, err := openExistingStore(opts.DB)
	if err != nil {
		return failWith(formatter, ErrCodeStore, err.Error())
	}
	defer st.Close()

	hash, err := st.ResolveHash(ctx, prefix)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return failWith(formatter, ErrCodeBadHash, fmt.Sprintf("no kernel with hash %q", prefix))
	case errors.Is(err, store.ErrAmbiguous):
		return failWith(formatter, ErrCodeBadHash, fmt.Sprintf("hash prefix %q is ambiguous", prefix))
	case err != nil:
		return failWith(formatter, ErrCodeBadHash, err.Error())
	}

	rec, err := st.ReadKernel(ctx, hash)
	if err != nil {
		return failWith(formatter, ErrCodeStore, err.Error())
	}
	calls, err := st.ReadCalls(ctx, hash)
	if err != nil {
		return failWith(formatter, ErrCodeStore, err.Error())
	}

	if formatter.IsJSON() {
		return formatter.Success(ShowResult{KernelRecord: rec, Calls: calls})
	}

	w := formatter.Writer
	fmt.Fprintf(w, "# %s (%s)\n", rec.Hash, rec.Source)
	if err := ir.Print(w, rec.Kernel, intrinsic.Default()); err != nil {
		return err
	}
	if formatter.Verbose {
		fmt.Fprintln(w)
		for _, c := range calls {
			fmt.Fprintf(w, "  #%d %s/%d %s\n", c.CallID, c.Op, c.Argc, c.Effect)
		}
	}
	return nil
}

// openExistingStore opens a store that must already exist; Open alone would
// create an empty one.
func openExistingStore(path string) (*store.Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("database not found: %s", path)
	}
	return store.Open(path)
}
