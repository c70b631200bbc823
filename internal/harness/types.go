package harness

import (
	"github.com/roach88/tlcomm/internal/compiler"
	"github.com/roach88/tlcomm/internal/intrinsic"
	"github.com/roach88/tlcomm/internal/ir"
	"github.com/roach88/tlcomm/internal/opt"
)

// TraceEvent is one call node of the optimized module, in evaluation order.
type TraceEvent struct {
	Kernel string `json:"kernel"`
	CallID int    `json:"call_id"`
	Op     string `json:"op"`
	Effect string `json:"effect"`
	Seq    int64  `json:"seq"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every assertion holds.
	Pass bool `json:"pass"`

	// Trace contains every call of the optimized module in evaluation order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Module is the optimized module; nil when compilation failed.
	Module *ir.Module `json:"-"`

	// Registry is the table the scenario compiled against.
	Registry *intrinsic.Registry `json:"-"`

	// CompileErrors holds front-end errors, in source order.
	CompileErrors compiler.ErrorList `json:"-"`

	// Passes records every pass run, per kernel.
	Passes []opt.PassResult `json:"passes,omitempty"`

	// BuildID and Hashes identify the module in the scenario's store.
	BuildID string   `json:"build_id,omitempty"`
	Hashes  []string `json:"hashes,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddCallTrace appends a call to the trace.
func (r *Result) AddCallTrace(kernel string, c *ir.Call) {
	r.Trace = append(r.Trace, TraceEvent{
		Kernel: kernel,
		CallID: c.ID,
		Op:     c.Op,
		Effect: c.Effect.String(),
		Seq:    int64(len(r.Trace) + 1),
	})
}
