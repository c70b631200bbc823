package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/tlcomm/internal/intrinsic"
)

// IntrinsicsResult lists the registry.
type IntrinsicsResult struct {
	Hash       string                 `json:"hash"`
	Intrinsics []intrinsic.Descriptor `json:"intrinsics"`
}

// NewIntrinsicsCommand creates the intrinsics command.
func NewIntrinsicsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "intrinsics",
		Short:         "List the registered intrinsics",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := &OutputFormatter{
				Format:  rootOpts.Format,
				Writer:  cmd.OutOrStdout(),
				Verbose: rootOpts.Verbose,
			}
			return runIntrinsics(formatter, intrinsic.Default())
		},
	}
	return cmd
}

func runIntrinsics(formatter *OutputFormatter, reg *intrinsic.Registry) error {
	result := IntrinsicsResult{Hash: reg.Hash(), Intrinsics: reg.Descriptors()}
	if formatter.IsJSON() {
		return formatter.Success(result)
	}

	tw := tabwriter.NewWriter(formatter.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tARITY\tEFFECT\tPARAMS")
	for _, d := range result.Intrinsics {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", d.QualifiedName(), d.Arity, d.Effect, strings.Join(d.Params, ", "))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if formatter.Verbose {
		fmt.Fprintf(formatter.Writer, "\nregistry %s\n", result.Hash)
	}
	return nil
}
