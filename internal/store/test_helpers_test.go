package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/tlcomm/internal/ir"
)

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestBuild writes a build row and returns its ID.
func createTestBuild(t *testing.T, s *Store) string {
	t.Helper()
	id, err := s.WriteBuild(context.Background(), Build{
		RegistryHash:    "test-registry",
		IRVersion:       ir.IRVersion,
		CompilerVersion: ir.CompilerVersion,
		KernelCount:     1,
	})
	if err != nil {
		t.Fatalf("WriteBuild() failed: %v", err)
	}
	return id
}

// createTestKernel returns a kernel with one pure let and two opaque calls.
func createTestKernel(name string) *ir.Kernel {
	return &ir.Kernel{
		Name:    name,
		Buffers: []string{"A", "B"},
		Source:  "ring.tl",
		Body: []ir.Stmt{
			&ir.Let{Name: "n", Value: ir.IntLit(128), Pos: ir.Pos{File: "ring.tl", Line: 2, Column: 3}},
			&ir.Eval{Call: &ir.Call{ID: 1, Op: "comm_put", Effect: ir.Opaque, Args: []ir.Expr{
				ir.BufferRef("A"), ir.BufferRef("B"),
				&ir.Call{ID: 0, Op: "CoreId", Effect: ir.Opaque, Args: []ir.Expr{ir.IntLit(2)}},
				ir.VarRef("n"),
			}}},
			&ir.Eval{Call: &ir.Call{ID: 2, Op: "comm_fence", Effect: ir.Opaque, Args: []ir.Expr{}}},
		},
	}
}
