package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/tlcomm/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s #%d %s (%s)\n", event.Seq, event.Kernel, event.CallID, event.Op, event.Effect)
		}
	}

	return buf.String()
}

// assertTraceContains checks if the trace contains a call to the op,
// optionally with the given effect.
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	for _, event := range trace {
		if event.Op != assertion.Op {
			continue
		}
		if assertion.Effect == "" || event.Effect == assertion.Effect {
			return nil
		}
	}

	expected := "call to " + assertion.Op
	if assertion.Effect != "" {
		expected += " with effect " + assertion.Effect
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: expected,
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks if ops appear in the specified order.
// Ops don't need to be consecutive (intervening calls are allowed); each op
// is matched at its first occurrence after the previous match.
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	pos := 0
	for _, op := range assertion.Ops {
		found := false
		for pos < len(trace) {
			event := trace[pos]
			pos++
			if event.Op == op {
				found = true
				break
			}
		}
		if !found {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("calls in order: %v", assertion.Ops),
				Actual:   fmt.Sprintf("no %s after position %d", op, positionBefore(trace, pos)),
				Trace:    trace,
			}
		}
	}
	return nil
}

func positionBefore(trace []TraceEvent, pos int) int64 {
	if pos == 0 || len(trace) == 0 {
		return 0
	}
	return trace[pos-1].Seq
}

// assertTraceCount checks if the op appears exactly the specified number of times.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Op == assertion.Op {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.Op),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertStoredCalls checks the number of stored call rows for the op.
func assertStoredCalls(ctx context.Context, st *store.Store, assertion Assertion) error {
	calls, err := st.CallsByOp(ctx, assertion.Op)
	if err != nil {
		return &AssertionError{
			Type:     AssertStoredCalls,
			Expected: fmt.Sprintf("query calls to %s", assertion.Op),
			Actual:   fmt.Sprintf("query error: %v", err),
		}
	}
	if len(calls) != assertion.Count {
		return &AssertionError{
			Type:     AssertStoredCalls,
			Expected: fmt.Sprintf("%d stored calls to %s", assertion.Count, assertion.Op),
			Actual:   fmt.Sprintf("%d stored calls", len(calls)),
		}
	}
	return nil
}

// assertStmtCount checks the statement count of a kernel after the passes.
func assertStmtCount(result *Result, assertion Assertion) error {
	if result.Module == nil {
		return &AssertionError{
			Type:     AssertStmtCount,
			Expected: fmt.Sprintf("kernel %s with %d statements", assertion.Kernel, assertion.Count),
			Actual:   "no module (compilation failed)",
		}
	}
	for _, k := range result.Module.Kernels {
		if k.Name != assertion.Kernel {
			continue
		}
		if len(k.Body) != assertion.Count {
			return &AssertionError{
				Type:     AssertStmtCount,
				Expected: fmt.Sprintf("kernel %s with %d statements", assertion.Kernel, assertion.Count),
				Actual:   fmt.Sprintf("%d statements", len(k.Body)),
			}
		}
		return nil
	}
	return &AssertionError{
		Type:     AssertStmtCount,
		Expected: fmt.Sprintf("kernel %s", assertion.Kernel),
		Actual:   "kernel not found",
	}
}

// assertCompileError checks that compilation reported an error with the code
// and, if given, a message containing the substring.
func assertCompileError(result *Result, assertion Assertion) error {
	for _, ce := range result.CompileErrors {
		if ce.Code == assertion.Code && strings.Contains(ce.Message, assertion.Contains) {
			return nil
		}
	}

	expected := "compile error " + assertion.Code
	if assertion.Contains != "" {
		expected += fmt.Sprintf(" containing %q", assertion.Contains)
	}
	actual := "compiled without errors"
	if len(result.CompileErrors) > 0 {
		actual = result.CompileErrors.Error()
	}
	return &AssertionError{
		Type:     AssertCompileError,
		Expected: expected,
		Actual:   actual,
	}
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Store *store.Store
	Ctx   context.Context
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertStoredCalls:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: stored_calls requires database context", i)
			} else {
				err = assertStoredCalls(actx.Ctx, actx.Store, assertion)
			}
		case AssertStmtCount:
			err = assertStmtCount(result, assertion)
		case AssertCompileError:
			err = assertCompileError(result, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
