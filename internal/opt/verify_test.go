package opt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tlcomm/internal/ir"
)

func threeOpaque() *ir.Kernel {
	return kernel(
		eval(opaque(0, "comm_fence")),
		eval(put(1, ir.IntLit(2), ir.IntLit(128))),
		eval(opaque(2, "comm_barrier")),
	)
}

func TestVerifyEffectOrder(t *testing.T) {
	before := threeOpaque()

	tests := []struct {
		name  string
		after func() *ir.Kernel
		index int
	}{
		{"dropped", func() *ir.Kernel {
			k := threeOpaque()
			k.Body = k.Body[:2]
			return k
		}, 2},
		{"reordered", func() *ir.Kernel {
			k := threeOpaque()
			k.Body[1], k.Body[2] = k.Body[2], k.Body[1]
			return k
		}, 1},
		{"merged", func() *ir.Kernel {
			k := threeOpaque()
			k.Body[1] = k.Body[0]
			return k
		}, 1},
		{"duplicated", func() *ir.Kernel {
			k := threeOpaque()
			k.Body = append(k.Body, k.Body[2])
			return k
		}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VerifyEffectOrder(before, tt.after())
			var ov *OrderingViolationError
			require.ErrorAs(t, err, &ov)
			assert.Equal(t, tt.index, ov.Index)
			assert.Equal(t, []int{0, 1, 2}, ov.Before)
		})
	}
}

func TestVerifyEffectOrderAcceptsPureChanges(t *testing.T) {
	before := threeOpaque()
	after := threeOpaque()
	after.Body = append([]ir.Stmt{let("x", ir.IntLit(1))}, after.Body...)

	assert.NoError(t, VerifyEffectOrder(before, after))
	assert.NoError(t, VerifyEffectOrder(before, before))
}

func TestOrderingViolationErrorMessage(t *testing.T) {
	err := &OrderingViolationError{Pass: "cse", Kernel: "k", Before: []int{0, 1}, After: []int{0}, Index: 1}
	assert.Equal(t, `pass "cse" changed opaque calls of kernel "k" at position 1: before [0 1], after [0]`, err.Error())

	err.Pass = ""
	assert.Contains(t, err.Error(), "transformation changed")
}
