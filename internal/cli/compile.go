package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/tlcomm/internal/compiler"
	"github.com/roach88/tlcomm/internal/config"
	"github.com/roach88/tlcomm/internal/intrinsic"
	"github.com/roach88/tlcomm/internal/ir"
	"github.com/roach88/tlcomm/internal/opt"
	"github.com/roach88/tlcomm/internal/store"
)

// Emit modes for the compile command.
const (
	EmitSummary = "summary"
	EmitIR      = "ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // JSON module file
	DB     string // artifact store path
	Emit   string // summary | ir
}

// KernelSummary describes one compiled kernel.
type KernelSummary struct {
	Name       string `json:"name"`
	Source     string `json:"source"`
	Hash       string `json:"hash"`
	Statements int    `json:"statements"`
	Calls      int    `json:"calls"`
	Opaque     int    `json:"opaque"`
}

// CompileSummary is the result of the compile command.
type CompileSummary struct {
	Files        int              `json:"files"`
	Target       string           `json:"target,omitempty"`
	RegistryHash string           `json:"registry_hash"`
	Kernels      []KernelSummary  `json:"kernels"`
	Passes       []opt.PassResult `json:"passes"`
	BuildID      string           `json:"build_id,omitempty"`
	Module       *ir.Module       `json:"module,omitempty"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <dir|file>",
		Short: "Compile kernels and run the optimizer",
		Long: `Compile .tl kernel sources to IR and run the configured passes.

Every call is resolved through the intrinsic registry. After each pass the
sequence of opaque calls is verified to be unchanged.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the module as JSON to this file")
	cmd.Flags().StringVar(&opts.DB, "db", "", "record the build in this artifact store")
	cmd.Flags().StringVar(&opts.Emit, "emit", EmitSummary, "text output: summary or ir")

	return cmd
}

func runCompile(ctx context.Context, opts *CompileOptions, input string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	if opts.Emit != EmitSummary && opts.Emit != EmitIR {
		return failWith(formatter, ErrCodeGeneric, fmt.Sprintf("invalid --emit %q: must be %s or %s", opts.Emit, EmitSummary, EmitIR))
	}

	cfg, err := loadConfig(opts.RootOptions, input)
	if err != nil {
		return failWith(formatter, ErrCodeConfig, err.Error())
	}

	reg := intrinsic.Default()
	m, files, err := compileInput(formatter, cfg, reg, input)
	if err != nil {
		return err
	}

	pipeline, err := opt.FromNames(slog.Default(), cfg.Passes)
	if err != nil {
		return failWith(formatter, ErrCodeConfig, err.Error())
	}
	formatter.VerboseLog("Running passes: %v", pipeline.Names())

	optimized, passes, err := pipeline.RunModule(m)
	if err != nil {
		var ov *opt.OrderingViolationError
		if errors.As(err, &ov) {
			return failWith(formatter, ErrCodeOrderingViolation, err.Error())
		}
		return failWith(formatter, ErrCodeGeneric, err.Error())
	}

	kernels, err := summarizeKernels(optimized)
	if err != nil {
		return failWith(formatter, ErrCodeGeneric, err.Error())
	}
	summary := CompileSummary{
		Files:        files,
		Target:       optimized.Target,
		RegistryHash: optimized.RegistryHash,
		Kernels:      kernels,
		Passes:       passes,
	}
	if summary.Passes == nil {
		summary.Passes = []opt.PassResult{}
	}

	if opts.DB != "" {
		buildID, err := persistModule(ctx, opts.DB, optimized)
		if err != nil {
			return failWith(formatter, ErrCodeStore, err.Error())
		}
		summary.BuildID = buildID
		formatter.VerboseLog("Recorded build %s in %s", buildID, opts.DB)
	}

	if opts.Output != "" {
		if err := writeModuleFile(optimized, opts.Output); err != nil {
			return failWith(formatter, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err))
		}
	}

	if formatter.IsJSON() {
		summary.Module = optimized
		return formatter.Success(summary)
	}
	if opts.Emit == EmitIR {
		return ir.PrintModule(formatter.Writer, optimized, reg)
	}
	outputCompileSummary(formatter, summary, opts.Output)
	return nil
}

// compileInput loads and compiles the sources under input. Compile errors
// are reported through the formatter and returned as a command error.
func compileInput(formatter *OutputFormatter, cfg *config.Config, reg *intrinsic.Registry, input string) (*ir.Module, int, error) {
	loaded, loadErr := LoadSources(input)
	if loadErr != nil {
		return nil, 0, failWith(formatter, loadErr.Code, loadErr.Message)
	}
	formatter.VerboseLog("Found %d %s file(s) in %s", len(loaded.Files), SourceExt, input)

	c := compiler.New(compiler.Options{
		Registry: reg,
		Target:   cfg.Target,
		Mode:     compiler.CollectAll,
	})
	m, err := c.Compile(loaded.Files)
	if err != nil {
		var list compiler.ErrorList
		if !errors.As(err, &list) {
			return nil, 0, failWith(formatter, ErrCodeGeneric, err.Error())
		}
		_ = formatter.Diagnostics("Compilation failed", diagnostics(list))
		return nil, 0, NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(list)))
	}
	for _, k := range m.Kernels {
		formatter.VerboseLog("Compiled kernel: %s (%s)", k.Name, k.Source)
	}
	return m, len(loaded.Files), nil
}

// diagnostics converts compile errors for output.
func diagnostics(list compiler.ErrorList) []CLIError {
	out := make([]CLIError, len(list))
	for i, ce := range list {
		out[i] = CLIError{Code: ce.Code, Message: ce.Message}
		if ce.Pos.IsValid() {
			out[i].Pos = ce.Pos.String()
		}
	}
	return out
}

func summarizeKernels(m *ir.Module) ([]KernelSummary, error) {
	out := make([]KernelSummary, len(m.Kernels))
	for i, k := range m.Kernels {
		hash, err := ir.KernelHash(k)
		if err != nil {
			return nil, fmt.Errorf("kernel %s: %w", k.Name, err)
		}
		out[i] = KernelSummary{
			Name:       k.Name,
			Source:     k.Source,
			Hash:       hash,
			Statements: len(k.Body),
			Calls:      len(k.Calls()),
			Opaque:     len(k.OpaqueIDs()),
		}
	}
	return out, nil
}

// persistModule records the module in the store at path.
func persistModule(ctx context.Context, path string, m *ir.Module) (string, error) {
	st, err := store.Open(path)
	if err != nil {
		return "", err
	}
	defer st.Close()

	buildID, _, err := st.WriteModule(ctx, m)
	return buildID, err
}

// outputCompileSummary prints the human-readable summary.
func outputCompileSummary(formatter *OutputFormatter, s CompileSummary, outputFile string) {
	w := formatter.Writer
	fmt.Fprintf(w, "✓ Compiled %d kernel(s) from %d file(s)\n\n", len(s.Kernels), s.Files)

	if len(s.Kernels) > 0 {
		fmt.Fprintln(w, "Kernels:")
		for _, k := range s.Kernels {
			fmt.Fprintf(w, "  %s: %d statement(s), %d call(s), %d opaque  [%s]\n",
				k.Name, k.Statements, k.Calls, k.Opaque, shortHash(k.Hash))
		}
		fmt.Fprintln(w)
	}

	var changed []opt.PassResult
	for _, p := range s.Passes {
		if p.Stats.Changed() {
			changed = append(changed, p)
		}
	}
	if len(changed) > 0 {
		fmt.Fprintln(w, "Passes:")
		for _, p := range changed {
			fmt.Fprintf(w, "  %s %s: removed %d, merged %d, moved %d\n",
				p.Kernel, p.Pass, p.Stats.Removed, p.Stats.Merged, p.Stats.Moved)
		}
		fmt.Fprintln(w)
	}

	if s.BuildID != "" {
		fmt.Fprintf(w, "Recorded build %s\n", s.BuildID)
	}
	if outputFile != "" {
		fmt.Fprintf(w, "Wrote module to %s\n", outputFile)
	}
}

// shortHash trims a kernel hash for display.
func shortHash(h string) string {
	const keep = 12
	if len(h) > keep {
		return h[:keep]
	}
	return h
}

// writeModuleFile writes the module as indented JSON.
func writeModuleFile(m *ir.Module, filename string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling module: %w", err)
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}
