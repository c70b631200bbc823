package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/tlcomm/internal/compiler"
	"github.com/roach88/tlcomm/internal/intrinsic"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid   bool       `json:"valid"`
	Files   int        `json:"files"`
	Kernels int        `json:"kernels"`
	Errors  []CLIError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <dir|file>",
		Short: "Check kernels without optimizing them",
		Long: `Run the front-end over .tl sources and check the resulting IR.

Reports every error (unknown intrinsics, arity mismatches, undefined names,
cores outside the target mesh) without running passes or writing output.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, input string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	cfg, err := loadConfig(opts, input)
	if err != nil {
		return failWith(formatter, ErrCodeConfig, err.Error())
	}

	reg := intrinsic.Default()
	m, files, err := compileInput(formatter, cfg, reg, input)
	if err != nil {
		return err
	}

	// The front-end guarantees these; a failure here is a compiler bug.
	var errs []CLIError
	for _, k := range m.Kernels {
		formatter.VerboseLog("Validating kernel: %s", k.Name)
		for _, ve := range compiler.Validate(k, reg) {
			errs = append(errs, CLIError{Code: ve.Code, Message: ve.Message, Pos: k.Source + ": " + k.Name + "." + ve.Field})
		}
	}
	if len(errs) > 0 {
		_ = formatter.Diagnostics("Validation failed", errs)
		return NewExitError(ExitCommandError, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	result := ValidationResult{Valid: true, Files: files, Kernels: len(m.Kernels)}
	if formatter.IsJSON() {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "✓ %d kernel(s) in %d file(s) are valid\n", result.Kernels, result.Files)
	return nil
}
