package opt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tlcomm/internal/ir"
)

func TestDCEKeepsDiscardedOpaqueCalls(t *testing.T) {
	k := kernel(
		let("x", pure(0, "add", ir.IntLit(1), ir.IntLit(2))),
		eval(pure(1, "add", ir.IntLit(3), ir.IntLit(4))),
		eval(put(2, ir.IntLit(2), ir.IntLit(128))),
		let("me", opaque(3, "comm_current_core")),
	)

	out, stats := DeadCodeElim{}.Run(k)

	assert.Equal(t, []string{"comm_put", "me="}, shape(out))
	assert.Equal(t, 2, stats.Removed)
	assert.Equal(t, []int{2, 3}, out.OpaqueIDs())
	assert.NoError(t, VerifyEffectOrder(k, out))
}

func TestDCEIteratesToFixpoint(t *testing.T) {
	k := kernel(
		let("a", ir.IntLit(1)),
		let("b", pure(0, "add", ir.VarRef("a"), ir.IntLit(1))),
		let("c", pure(1, "add", ir.VarRef("b"), ir.IntLit(1))),
		eval(opaque(2, "comm_fence")),
	)

	out, stats := DeadCodeElim{}.Run(k)
	assert.Equal(t, []string{"comm_fence"}, shape(out))
	assert.Equal(t, 3, stats.Removed)

	capped, stats := DeadCodeElim{MaxIterations: 1}.Run(k)
	assert.Equal(t, []string{"a=", "b=", "comm_fence"}, shape(capped))
	assert.Equal(t, 1, stats.Removed)
}

func TestDCEKeepsUsedPureLets(t *testing.T) {
	k := kernel(
		let("n", ir.IntLit(128)),
		eval(put(0, ir.IntLit(2), ir.VarRef("n"))),
	)

	out, stats := DeadCodeElim{}.Run(k)
	assert.Equal(t, []string{"n=", "comm_put"}, shape(out))
	assert.False(t, stats.Changed())
}

func TestDCEDoesNotModifyInput(t *testing.T) {
	k := kernel(
		let("x", ir.IntLit(1)),
		eval(opaque(0, "comm_fence")),
	)
	before := ir.Sprint(k, nil)

	out, _ := DeadCodeElim{}.Run(k)
	require.Len(t, out.Body, 1)
	assert.Equal(t, before, ir.Sprint(k, nil))
}

func TestDCEKeepsPureValueWrappingOpaqueCall(t *testing.T) {
	k := kernel(
		let("x", pure(1, "add", opaque(0, "comm_current_core"), ir.IntLit(1))),
	)

	out, stats := DeadCodeElim{}.Run(k)
	assert.Len(t, out.Body, 1)
	assert.Zero(t, stats.Removed)
}
