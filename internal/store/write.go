package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/roach88/tlcomm/internal/ir"
)

// Build is one compile session.
type Build struct {
	ID              string `json:"id"`
	Seq             int64  `json:"seq"`
	RegistryHash    string `json:"registry_hash"`
	IRVersion       string `json:"ir_version"`
	CompilerVersion string `json:"compiler_version"`
	Target          string `json:"target,omitempty"`
	KernelCount     int    `json:"kernel_count"`
}

// NewBuildID returns a fresh time-ordered build ID.
func NewBuildID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate build id: %w", err)
	}
	return id.String(), nil
}

// WriteBuild records a compile session and returns its ID. An empty b.ID is
// replaced by a new UUIDv7. Seq is assigned by the store.
// Uses ON CONFLICT(id) DO NOTHING for idempotency.
func (s *Store) WriteBuild(ctx context.Context, b Build) (string, error) {
	if b.ID == "" {
		id, err := NewBuildID()
		if err != nil {
			return "", fmt.Errorf("write build: %w", err)
		}
		b.ID = id
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO builds
		(id, seq, registry_hash, ir_version, compiler_version, target, kernel_count)
		VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM builds), ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		b.ID,
		b.RegistryHash,
		b.IRVersion,
		b.CompilerVersion,
		b.Target,
		b.KernelCount,
	)
	if err != nil {
		return "", fmt.Errorf("write build: %w", err)
	}
	return b.ID, nil
}

// WriteKernel stores k under its content hash, links it to the build at the
// given module position, and records its call nodes. It returns the hash.
//
// All inserts use ON CONFLICT DO NOTHING: writing an identical kernel again
// keeps the first copy. The build must already exist (foreign key).
func (s *Store) WriteKernel(ctx context.Context, buildID string, position int, k *ir.Kernel) (string, error) {
	hash, err := ir.KernelHash(k)
	if err != nil {
		return "", fmt.Errorf("write kernel %s: %w", k.Name, err)
	}
	body, err := marshalKernel(k)
	if err != nil {
		return "", fmt.Errorf("write kernel %s: %w", k.Name, err)
	}

	err = s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO kernels (hash, name, source, body)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(hash) DO NOTHING
		`, hash, k.Name, k.Source, body); err != nil {
			return fmt.Errorf("insert kernel: %w", err)
		}

		for seq, c := range k.Calls() {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO calls (kernel_hash, seq, call_id, op, effect, argc)
				VALUES (?, ?, ?, ?, ?, ?)
				ON CONFLICT DO NOTHING
			`, hash, seq, c.ID, c.Op, c.Effect.String(), len(c.Args)); err != nil {
				return fmt.Errorf("insert call %d: %w", c.ID, err)
			}
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO build_kernels (build_id, kernel_hash, position)
			VALUES (?, ?, ?)
			ON CONFLICT DO NOTHING
		`, buildID, hash, position); err != nil {
			return fmt.Errorf("link kernel to build: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("write kernel %s: %w", k.Name, err)
	}
	return hash, nil
}

// WriteModule records a build for m and stores all of its kernels.
// It returns the build ID and the kernel hashes in module order.
func (s *Store) WriteModule(ctx context.Context, m *ir.Module) (string, []string, error) {
	buildID, err := s.WriteBuild(ctx, Build{
		RegistryHash:    m.RegistryHash,
		IRVersion:       m.IRVersion,
		CompilerVersion: m.CompilerVersion,
		Target:          m.Target,
		KernelCount:     len(m.Kernels),
	})
	if err != nil {
		return "", nil, err
	}

	hashes := make([]string, len(m.Kernels))
	for i, k := range m.Kernels {
		h, err := s.WriteKernel(ctx, buildID, i, k)
		if err != nil {
			return buildID, nil, err
		}
		hashes[i] = h
	}
	return buildID, hashes, nil
}

// inTx runs fn in a transaction, committing on success.
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
