package opt

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tlcomm/internal/ir"
)

func mixedKernel() *ir.Kernel {
	return kernel(
		let("n", ir.IntLit(128)),
		let("m", ir.IntLit(128)),
		let("dead", pure(0, "add", ir.IntLit(1), ir.IntLit(1))),
		let("me", opaque(1, "comm_current_core")),
		eval(opaque(2, "comm_fence")),
		eval(put(3, ir.VarRef("me"), ir.VarRef("m"))),
		eval(put(4, ir.VarRef("me"), ir.VarRef("n"))),
	)
}

func TestPipelineDefaultPasses(t *testing.T) {
	p, err := FromNames(nil, []string{"dce", "cse", "sink"})
	require.NoError(t, err)
	assert.Equal(t, []string{"dce", "cse", "sink"}, p.Names())

	k := mixedKernel()
	out, results, err := p.Run(k)
	require.NoError(t, err)

	assert.Equal(t, []string{"me=", "comm_fence", "n=", "comm_put", "comm_put"}, shape(out))
	assert.Equal(t, k.OpaqueIDs(), out.OpaqueIDs())
	require.Len(t, results, 3)
	assert.Equal(t, PassResult{Kernel: "k", Pass: "dce", Stats: Stats{Removed: 1}}, results[0])
	assert.Equal(t, 1, results[1].Stats.Merged)
	assert.Equal(t, 1, results[2].Stats.Moved)

	assert.Len(t, k.Body, 7, "input kernel is not modified")
}

func TestFromNamesUnknownPass(t *testing.T) {
	_, err := FromNames(nil, []string{"dce", "inline"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown pass "inline"`)
	assert.Equal(t, []string{"cse", "dce", "sink"}, PassNames())
}

// swapOpaque is a deliberately broken pass that swaps the first two Evals.
type swapOpaque struct{}

func (swapOpaque) Name() string { return "swap" }

func (swapOpaque) Run(k *ir.Kernel) (*ir.Kernel, Stats) {
	out := k.Clone()
	var idx []int
	for i, s := range out.Body {
		if _, ok := s.(*ir.Eval); ok {
			idx = append(idx, i)
		}
	}
	if len(idx) >= 2 {
		out.Body[idx[0]], out.Body[idx[1]] = out.Body[idx[1]], out.Body[idx[0]]
	}
	return out, Stats{Moved: 2}
}

func TestPipelineRejectsOrderingViolation(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	p := NewPipeline(logger, DeadCodeElim{}, swapOpaque{})

	_, results, err := p.Run(mixedKernel())

	var ov *OrderingViolationError
	require.True(t, errors.As(err, &ov))
	assert.Equal(t, "swap", ov.Pass)
	assert.Equal(t, "k", ov.Kernel)
	assert.Equal(t, 1, ov.Index)
	require.Len(t, results, 1, "results of passes that succeeded are returned")
	assert.Contains(t, logs.String(), "pass=dce")
	assert.Contains(t, logs.String(), "pass broke effect order")
}

func TestPipelineRunModule(t *testing.T) {
	m := &ir.Module{IRVersion: ir.IRVersion, Kernels: []*ir.Kernel{mixedKernel(), threeOpaque()}}
	m.Kernels[1].Name = "k2"

	out, results, err := NewPipeline(nil, DeadCodeElim{}).RunModule(m)
	require.NoError(t, err)
	require.Len(t, out.Kernels, 2)
	assert.Equal(t, ir.IRVersion, out.IRVersion)
	assert.Len(t, results, 2)
	assert.Len(t, m.Kernels[0].Body, 7)
	assert.Len(t, out.Kernels[0].Body, 6)

	_, _, err = NewPipeline(nil, swapOpaque{}).RunModule(m)
	var ov *OrderingViolationError
	assert.ErrorAs(t, err, &ov)
}

func TestEmptyPipelineIsIdentity(t *testing.T) {
	k := mixedKernel()
	out, results, err := NewPipeline(nil).Run(k)
	require.NoError(t, err)
	assert.Same(t, k, out)
	assert.Empty(t, results)
}

// randomKernel builds a kernel mixing pure and opaque statements. Pure lets
// may reference any earlier binding.
func randomKernel(r *rand.Rand) *ir.Kernel {
	k := kernel()
	var names []string
	id := 0
	ref := func() ir.Expr {
		if len(names) == 0 || r.Intn(3) == 0 {
			return ir.IntLit(r.Intn(3))
		}
		return ir.VarRef(names[r.Intn(len(names))])
	}
	for i := 0; i < 5+r.Intn(20); i++ {
		switch r.Intn(5) {
		case 0:
			name := fmt.Sprintf("p%d", i)
			k.Body = append(k.Body, let(name, pure(id, "add", ref(), ref())))
			names = append(names, name)
		case 1:
			name := fmt.Sprintf("v%d", i)
			k.Body = append(k.Body, let(name, ref()))
			names = append(names, name)
		case 2:
			name := fmt.Sprintf("o%d", i)
			k.Body = append(k.Body, let(name, opaque(id, "comm_current_core")))
			names = append(names, name)
		case 3:
			k.Body = append(k.Body, eval(put(id, ref(), ref())))
		default:
			k.Body = append(k.Body, eval(pure(id, "add", ref(), ref())))
		}
		id++
	}
	return k
}

func TestPipelinePreservesOpaqueSequence(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	p, err := FromNames(nil, []string{"cse", "sink", "dce", "cse", "sink"})
	require.NoError(t, err)

	for i := 0; i < 200; i++ {
		k := randomKernel(r)
		out, _, err := p.Run(k)
		require.NoError(t, err, "kernel %d:\n%s", i, ir.Sprint(k, nil))
		assert.Equal(t, k.OpaqueIDs(), out.OpaqueIDs())
		assertBindsBeforeUse(t, out)
	}
}

func assertBindsBeforeUse(t *testing.T, k *ir.Kernel) {
	t.Helper()
	bound := make(map[string]bool)
	for _, s := range k.Body {
		for _, name := range ir.VarsUsed(ir.StmtExpr(s)) {
			assert.True(t, bound[name], "%s used before bound in\n%s", name, ir.Sprint(k, nil))
		}
		if l, ok := s.(*ir.Let); ok {
			bound[l.Name] = true
		}
	}
}
