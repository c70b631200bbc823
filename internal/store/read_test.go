package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tlcomm/internal/callquery"
	"github.com/roach88/tlcomm/internal/ir"
)

func TestReadKernel_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	buildID := createTestBuild(t, s)

	k := createTestKernel("ring_put")
	hash, err := s.WriteKernel(ctx, buildID, 0, k)
	require.NoError(t, err)

	rec, err := s.ReadKernel(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, hash, rec.Hash)
	assert.Equal(t, "ring_put", rec.Name)
	assert.Equal(t, ir.Sprint(k, nil), ir.Sprint(rec.Kernel, nil))
	assert.Equal(t, ir.Pos{File: "ring.tl", Line: 2, Column: 3}, rec.Kernel.Body[0].(*ir.Let).Pos)
	assert.Equal(t, hash, ir.MustKernelHash(rec.Kernel), "stored kernel hashes to its key")
}

func TestReadKernel_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.ReadKernel(context.Background(), "deadbeef")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.ReadBuild(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListKernels_DeterministicOrder(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	buildID := createTestBuild(t, s)

	empty, err := s.ListKernels(ctx)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	zeta := createTestKernel("zeta")
	alpha := createTestKernel("alpha")
	alpha.Body = alpha.Body[:1] // only the pure let
	_, err = s.WriteKernel(ctx, buildID, 0, zeta)
	require.NoError(t, err)
	_, err = s.WriteKernel(ctx, buildID, 1, alpha)
	require.NoError(t, err)

	list, err := s.ListKernels(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "alpha", list[0].Name)
	assert.Equal(t, 0, list[0].Calls)
	assert.Equal(t, 0, list[0].Opaque)
	assert.Equal(t, "zeta", list[1].Name)
	assert.Equal(t, 3, list[1].Calls)
	assert.Equal(t, 3, list[1].Opaque)
}

func TestReadCalls_MixedEffects(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	buildID := createTestBuild(t, s)

	k := &ir.Kernel{Name: "k", Buffers: []string{}, Body: []ir.Stmt{
		&ir.Let{Name: "x", Value: &ir.Call{ID: 0, Op: "add", Effect: ir.Pure, Args: []ir.Expr{ir.IntLit(1), ir.IntLit(2)}}},
		&ir.Eval{Call: &ir.Call{ID: 1, Op: "comm_barrier", Effect: ir.Opaque, Args: []ir.Expr{ir.VarRef("x")}}},
	}}
	hash, err := s.WriteKernel(ctx, buildID, 0, k)
	require.NoError(t, err)

	calls, err := s.ReadCalls(ctx, hash)
	require.NoError(t, err)
	require.Len(t, calls, 2)
	assert.Equal(t, ir.Pure, calls[0].Effect)
	assert.Equal(t, ir.Opaque, calls[1].Effect)

	barriers, err := s.CallsByOp(ctx, "comm_barrier")
	require.NoError(t, err)
	require.Len(t, barriers, 1)
	assert.Equal(t, 1, barriers[0].Argc)

	none, err := s.ReadCalls(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestResolveHash(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	buildID := createTestBuild(t, s)

	h1, err := s.WriteKernel(ctx, buildID, 0, createTestKernel("one"))
	require.NoError(t, err)
	h2, err := s.WriteKernel(ctx, buildID, 1, createTestKernel("two"))
	require.NoError(t, err)
	require.NotEqual(t, h1, h2)

	full, err := s.ResolveHash(ctx, h1)
	require.NoError(t, err)
	assert.Equal(t, h1, full)

	// Find the shortest prefix that tells them apart.
	n := 1
	for h1[:n] == h2[:n] {
		n++
	}
	got, err := s.ResolveHash(ctx, h2[:n])
	require.NoError(t, err)
	assert.Equal(t, h2, got)

	if n > 1 {
		_, err = s.ResolveHash(ctx, h1[:n-1])
		assert.ErrorIs(t, err, ErrAmbiguous)
	}

	_, err = s.ResolveHash(ctx, "zzzz")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.ResolveHash(ctx, "")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.ResolveHash(ctx, "%")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFindCalls(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	first := createTestBuild(t, s)
	second := createTestBuild(t, s)

	ringHash, err := s.WriteKernel(ctx, first, 0, createTestKernel("ring"))
	require.NoError(t, err)
	haloHash, err := s.WriteKernel(ctx, second, 0, createTestKernel("halo"))
	require.NoError(t, err)

	all, err := s.FindCalls(ctx, callquery.Query{})
	require.NoError(t, err)
	assert.Len(t, all, 6)

	puts, err := s.FindCalls(ctx, callquery.Where(map[callquery.Field]string{
		callquery.FieldOp:     "comm_put",
		callquery.FieldKernel: "halo",
	}))
	require.NoError(t, err)
	require.Len(t, puts, 1)
	assert.Equal(t, haloHash, puts[0].KernelHash)
	assert.Equal(t, "halo", puts[0].Kernel)
	assert.Equal(t, 1, puts[0].CallID)
	assert.Equal(t, 4, puts[0].Argc)

	inBuild, err := s.FindCalls(ctx, callquery.Where(map[callquery.Field]string{callquery.FieldBuild: first}))
	require.NoError(t, err)
	require.Len(t, inBuild, 3)
	for i, c := range inBuild {
		assert.Equal(t, ringHash, c.KernelHash)
		assert.Equal(t, i, c.Seq, "evaluation order")
	}

	limited, err := s.FindCalls(ctx, callquery.Query{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	none, err := s.FindCalls(ctx, callquery.Where(map[callquery.Field]string{callquery.FieldEffect: "pure"}))
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestFindCalls_InvalidQuery(t *testing.T) {
	s := createTestStore(t)

	_, err := s.FindCalls(context.Background(), callquery.Query{Filter: callquery.Equals{Field: "argc", Value: "4"}})
	assert.ErrorIs(t, err, callquery.ErrInvalidQuery)
}
