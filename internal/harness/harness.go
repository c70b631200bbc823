package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/tlcomm/internal/compiler"
	"github.com/roach88/tlcomm/internal/intrinsic"
	"github.com/roach88/tlcomm/internal/opt"
	"github.com/roach88/tlcomm/internal/store"
)

// Harness is the test execution engine.
// It compiles a scenario, optimizes it and records the module in a store.
type Harness struct {
	store    *store.Store
	registry *intrinsic.Registry
	logger   *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Create fresh in-memory database
// 2. Build the intrinsic registry
// 3. Compile the source, collecting every error
// 4. Run the optimizer passes
// 5. Store the optimized module and build the trace
// 6. Evaluate assertions
//
// Compile errors are part of the result, not a returned error, so scenarios
// can assert on them. The returned error is reserved for harness failures.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	reg, err := scenario.registry()
	if err != nil {
		return nil, fmt.Errorf("failed to build registry: %w", err)
	}

	h := &Harness{
		store:    st,
		registry: reg,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}

	ctx := context.Background()
	result := NewResult()
	result.Registry = reg

	if err := h.execute(ctx, scenario, result); err != nil {
		return nil, err
	}

	actx := &AssertionContext{
		Store: st,
		Ctx:   ctx,
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	// Compile errors nobody asked about fail the scenario.
	if len(result.CompileErrors) > 0 && !expectsCompileError(scenario.Assertions) {
		for _, ce := range result.CompileErrors {
			result.AddError("unexpected compile error: " + ce.Error())
		}
	}

	return result, nil
}

func (h *Harness) execute(ctx context.Context, scenario *Scenario, result *Result) error {
	c := compiler.New(compiler.Options{
		Registry: h.registry,
		Target:   scenario.target(),
		Mode:     compiler.CollectAll,
	})
	m, err := c.Compile([]compiler.SourceFile{{Name: scenario.fileName(), Data: []byte(scenario.Source)}})
	if err != nil {
		var list compiler.ErrorList
		if !errors.As(err, &list) {
			return fmt.Errorf("failed to compile: %w", err)
		}
		result.CompileErrors = list
		h.logger.Info("scenario did not compile", "scenario", scenario.Name, "errors", len(list))
		return nil
	}

	pipeline, err := opt.FromNames(h.logger, scenario.passes())
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}
	optimized, passes, err := pipeline.RunModule(m)
	result.Passes = passes
	if err != nil {
		result.AddError(fmt.Sprintf("optimizer: %v", err))
		return nil
	}
	result.Module = optimized

	buildID, hashes, err := h.store.WriteModule(ctx, optimized)
	if err != nil {
		return fmt.Errorf("failed to store module: %w", err)
	}
	result.BuildID = buildID
	result.Hashes = hashes

	for _, k := range optimized.Kernels {
		for _, call := range k.Calls() {
			result.AddCallTrace(k.Name, call)
		}
	}

	h.logger.Info("scenario compiled",
		"scenario", scenario.Name,
		"kernels", len(optimized.Kernels),
		"calls", len(result.Trace),
		"build_id", buildID,
	)
	return nil
}

func expectsCompileError(assertions []Assertion) bool {
	for _, a := range assertions {
		if a.Type == AssertCompileError {
			return true
		}
	}
	return false
}
