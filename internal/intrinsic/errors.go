package intrinsic

import (
	"errors"
	"fmt"
)

var (
	// ErrFrozen is returned by Register once the registry has been frozen.
	ErrFrozen = errors.New("intrinsic: registry is frozen")
	// ErrNotFrozen is returned by lookups issued before Freeze.
	ErrNotFrozen = errors.New("intrinsic: registry is not frozen")
	// ErrInvalidDescriptor wraps descriptor validation failures.
	ErrInvalidDescriptor = errors.New("intrinsic: invalid descriptor")
)

// DuplicateIntrinsicError is returned when a name is registered twice.
// It indicates a bug in the compiler's own intrinsic table.
type DuplicateIntrinsicError struct {
	Name string
}

func (e *DuplicateIntrinsicError) Error() string {
	return fmt.Sprintf("intrinsic %q is already registered", e.Name)
}

// UnknownIntrinsicError is returned when a name has no descriptor.
// Suggestion holds the closest registered name, if any is close enough.
type UnknownIntrinsicError struct {
	Name       string
	Suggestion string
}

func (e *UnknownIntrinsicError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("unknown intrinsic %q (did you mean %q?)", e.Name, e.Suggestion)
	}
	return fmt.Sprintf("unknown intrinsic %q", e.Name)
}

// ArityMismatchError is returned when a call site passes the wrong number of
// arguments to a checked-arity intrinsic.
type ArityMismatchError struct {
	Name     string
	Expected int
	Actual   int
}

func (e *ArityMismatchError) Error() string {
	return fmt.Sprintf("intrinsic %q expects %d argument(s), got %d", e.Name, e.Expected, e.Actual)
}
