package opt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tlcomm/internal/ir"
)

func TestCSEMergesPureLets(t *testing.T) {
	k := kernel(
		let("x", pure(0, "add", ir.IntLit(1), ir.IntLit(2))),
		let("y", pure(1, "add", ir.IntLit(1), ir.IntLit(2))),
		eval(put(2, ir.VarRef("x"), ir.VarRef("y"))),
	)

	out, stats := CommonSubexprElim{}.Run(k)

	assert.Equal(t, []string{"x=", "comm_put"}, shape(out))
	assert.Equal(t, 1, stats.Merged)
	args := out.Body[1].(*ir.Eval).Call.Args
	assert.Equal(t, ir.VarRef("x"), args[2])
	assert.Equal(t, ir.VarRef("x"), args[3])

	// input untouched
	assert.Equal(t, ir.VarRef("y"), k.Body[2].(*ir.Eval).Call.Args[3])
}

func TestCSENeverMergesOpaqueCalls(t *testing.T) {
	k := kernel(
		let("a", opaque(0, "comm_current_core")),
		let("b", opaque(1, "comm_current_core")),
		eval(put(2, ir.IntLit(2), ir.IntLit(128))),
		eval(put(3, ir.IntLit(2), ir.IntLit(128))),
		let("s", pure(5, "add", opaque(4, "comm_current_core"), ir.IntLit(1))),
		let("t", pure(7, "add", opaque(6, "comm_current_core"), ir.IntLit(1))),
	)

	out, stats := CommonSubexprElim{}.Run(k)

	assert.Zero(t, stats.Merged)
	assert.Len(t, out.Body, 6)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 6}, out.OpaqueIDs())
	assert.NoError(t, VerifyEffectOrder(k, out))
}

func TestCSEFollowsRenames(t *testing.T) {
	k := kernel(
		let("a", ir.IntLit(1)),
		let("b", ir.IntLit(1)),
		let("c", pure(0, "add", ir.VarRef("b"), ir.IntLit(2))),
		let("d", pure(1, "add", ir.VarRef("a"), ir.IntLit(2))),
		let("e", ir.VarRef("d")),
		eval(put(2, ir.VarRef("e"), ir.VarRef("c"))),
	)

	out, stats := CommonSubexprElim{}.Run(k)

	assert.Equal(t, 2, stats.Merged)
	assert.Equal(t, []string{"a=", "c=", "e=", "comm_put"}, shape(out))
	assert.Equal(t, ir.VarRef("c"), out.Body[2].(*ir.Let).Value, "root VarRef values are rewritten too")
	require.Len(t, out.Body[1].(*ir.Let).Value.(*ir.Call).Args, 2)
	assert.Equal(t, ir.VarRef("a"), out.Body[1].(*ir.Let).Value.(*ir.Call).Args[0])
}

func TestCSEDistinguishesLiteralKinds(t *testing.T) {
	k := kernel(
		let("a", ir.IntLit(1)),
		let("b", ir.StrLit("1")),
		let("c", ir.BoolLit(true)),
		let("d", ir.Tuple{ir.IntLit(1)}),
		let("e", ir.BufferRef("A")),
	)

	_, stats := CommonSubexprElim{}.Run(k)
	assert.Zero(t, stats.Merged)
}
