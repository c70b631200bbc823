package compiler

import (
	"fmt"

	"github.com/roach88/tlcomm/internal/intrinsic"
	"github.com/roach88/tlcomm/internal/ir"
)

// ValidationError is a structural problem in an IR kernel.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate re-checks a kernel against the registry. It is meant for IR that
// did not come straight from the front-end: decoded from JSON, read from the
// store, or rewritten by a pass.
//
// Returns all errors found (does not fail-fast).
func Validate(k *ir.Kernel, reg *intrinsic.Registry) []ValidationError {
	var errs []ValidationError

	buffers := make(map[string]bool, len(k.Buffers))
	for i, b := range k.Buffers {
		if buffers[b] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("buffers[%d]", i),
				Message: fmt.Sprintf("buffer %q is declared twice", b),
				Code:    ErrDuplicateBinding,
			})
		}
		buffers[b] = true
	}

	bound := make(map[string]bool)
	ids := make(map[int]string)
	for i, s := range k.Body {
		field := fmt.Sprintf("body[%d]", i)
		e := ir.StmtExpr(s)
		if ev, ok := s.(*ir.Eval); e == nil || (ok && ev.Call == nil) {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: "statement has no expression",
				Code:    ErrUnsupportedExpr,
			})
			continue
		}

		errs = append(errs, validateRefs(field, e, buffers, bound)...)
		for _, c := range ir.Calls(e) {
			errs = append(errs, validateCall(field, c, reg, ids)...)
		}

		if let, ok := s.(*ir.Let); ok {
			if buffers[let.Name] || bound[let.Name] {
				errs = append(errs, ValidationError{
					Field:   field + ".name",
					Message: fmt.Sprintf("%q is already bound", let.Name),
					Code:    ErrDuplicateBinding,
				})
			}
			bound[let.Name] = true
		}
	}
	return errs
}

func validateRefs(field string, e ir.Expr, buffers, bound map[string]bool) []ValidationError {
	var errs []ValidationError
	ir.Walk(e, func(x ir.Expr) bool {
		switch v := x.(type) {
		case ir.BufferRef:
			if !buffers[string(v)] {
				errs = append(errs, ValidationError{
					Field:   field,
					Message: fmt.Sprintf("buffer %q is not declared by the kernel", string(v)),
					Code:    ErrUndeclaredBuffer,
				})
			}
		case ir.VarRef:
			if !bound[string(v)] {
				errs = append(errs, ValidationError{
					Field:   field,
					Message: fmt.Sprintf("%q is used before it is bound", string(v)),
					Code:    ErrUndefinedIdent,
				})
			}
		}
		return true
	})
	return errs
}

func validateCall(field string, c *ir.Call, reg *intrinsic.Registry, ids map[int]string) []ValidationError {
	var errs []ValidationError
	field = fmt.Sprintf("%s.call[%d]", field, c.ID)

	if prev, dup := ids[c.ID]; dup {
		errs = append(errs, ValidationError{
			Field:   field,
			Message: fmt.Sprintf("call ID %d is shared by %s and %s", c.ID, prev, c.Op),
			Code:    ErrDuplicateCallID,
		})
	}
	ids[c.ID] = c.Op

	d, err := reg.ValidateCall(c.Op, len(c.Args))
	if err != nil {
		errs = append(errs, ValidationError{
			Field:   field,
			Message: err.Error(),
			Code:    registryError(err, ir.Pos{}).Code,
		})
		return errs
	}
	if c.Effect != d.Effect {
		errs = append(errs, ValidationError{
			Field:   field,
			Message: fmt.Sprintf("%s is tagged %s but the registry declares it %s", c.Op, c.Effect, d.Effect),
			Code:    ErrEffectMismatch,
		})
	}
	return errs
}
