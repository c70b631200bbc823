package opt

import (
	"fmt"
	"slices"

	"github.com/roach88/tlcomm/internal/ir"
)

// OrderingViolationError reports that a transformation dropped, merged,
// duplicated or reordered Opaque calls.
type OrderingViolationError struct {
	Pass   string // empty when not run by a Pipeline
	Kernel string
	Before []int // opaque call IDs in evaluation order
	After  []int
	Index  int // first position where the sequences differ
}

func (e *OrderingViolationError) Error() string {
	who := "transformation"
	if e.Pass != "" {
		who = fmt.Sprintf("pass %q", e.Pass)
	}
	return fmt.Sprintf("%s changed opaque calls of kernel %q at position %d: before %v, after %v",
		who, e.Kernel, e.Index, e.Before, e.After)
}

// VerifyEffectOrder checks that after executes exactly the Opaque calls of
// before, in the same order.
func VerifyEffectOrder(before, after *ir.Kernel) error {
	b, a := before.OpaqueIDs(), after.OpaqueIDs()
	if slices.Equal(b, a) {
		return nil
	}
	i := 0
	for i < len(b) && i < len(a) && b[i] == a[i] {
		i++
	}
	return &OrderingViolationError{Kernel: before.Name, Before: b, After: a, Index: i}
}
