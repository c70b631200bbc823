package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/tlcomm/internal/ir"
)

// Front-end error codes (E200-E299). E203 and E209 are raised outside the
// front-end (registry construction, pass verification) and mapped by the CLI.
const (
	ErrUnknownIntrinsic = "E201" // call to a name the registry does not know
	ErrArityMismatch    = "E202" // wrong argument count for a checked intrinsic
	ErrSyntax           = "E204" // malformed kernel or expression
	ErrUndefinedIdent   = "E205" // identifier is neither a buffer nor a binding
	ErrUnsupportedExpr  = "E206" // expression form the IR cannot represent
	ErrCoreOutOfMesh    = "E207" // core index or coordinate outside the target mesh
	ErrDuplicateBinding = "E208" // name bound twice, or duplicate kernel/buffer
	ErrEffectMismatch   = "E210" // call effect disagrees with the registry
	ErrDuplicateCallID  = "E211" // two call nodes share an ID
	ErrUndeclaredBuffer = "E212" // buffer reference not in the kernel signature
)

// CompileError is a front-end error with a source position.
type CompileError struct {
	Code    string
	Message string
	Pos     ir.Pos
	Err     error // underlying registry error, if any
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s: [%s] %s", e.Pos, e.Code, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *CompileError) Unwrap() error { return e.Err }

func errorf(code string, pos ir.Pos, format string, args ...any) *CompileError {
	return &CompileError{Code: code, Message: fmt.Sprintf(format, args...), Pos: pos}
}

// ErrorList is every error found while compiling, in source order.
type ErrorList []*CompileError

func (l ErrorList) Error() string {
	msgs := make([]string, len(l))
	for i, e := range l {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "\n")
}

// Unwrap exposes the individual errors to errors.Is and errors.As.
func (l ErrorList) Unwrap() []error {
	errs := make([]error, len(l))
	for i, e := range l {
		errs[i] = e
	}
	return errs
}

// Mode controls how many errors a compile reports.
type Mode int

const (
	// FailFast stops at the first error.
	FailFast Mode = iota
	// CollectAll keeps compiling and reports every error.
	CollectAll
)

// errorSink accumulates errors according to a Mode.
type errorSink struct {
	mode Mode
	errs ErrorList
}

// report records err and reports whether compilation should continue.
func (s *errorSink) report(err *CompileError) bool {
	s.errs = append(s.errs, err)
	return s.mode == CollectAll
}

func (s *errorSink) stopped() bool {
	return s.mode == FailFast && len(s.errs) > 0
}

func (s *errorSink) err() error {
	if len(s.errs) == 0 {
		return nil
	}
	return s.errs
}
