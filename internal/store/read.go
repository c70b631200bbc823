package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/tlcomm/internal/callquery"
	"github.com/roach88/tlcomm/internal/ir"
)

// KernelRecord is a stored kernel.
type KernelRecord struct {
	Hash   string     `json:"hash"`
	Name   string     `json:"name"`
	Source string     `json:"source,omitempty"`
	Kernel *ir.Kernel `json:"kernel"`
}

// KernelSummary is a kernel row with call counts, for listings.
type KernelSummary struct {
	Hash   string `json:"hash"`
	Name   string `json:"name"`
	Source string `json:"source,omitempty"`
	Calls  int    `json:"calls"`
	Opaque int    `json:"opaque"`
}

// CallRecord is one stored call node.
type CallRecord struct {
	Seq    int       `json:"seq"`
	CallID int       `json:"call_id"`
	Op     string    `json:"op"`
	Effect ir.Effect `json:"effect"`
	Argc   int       `json:"argc"`
}

// ReadKernel returns the kernel stored under hash, or ErrNotFound.
func (s *Store) ReadKernel(ctx context.Context, hash string) (*KernelRecord, error) {
	var (
		rec  KernelRecord
		body string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT hash, name, source, body
		FROM kernels
		WHERE hash = ?
	`, hash).Scan(&rec.Hash, &rec.Name, &rec.Source, &body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("kernel %s: %w", hash, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query kernel: %w", err)
	}

	rec.Kernel, err = unmarshalKernel(body)
	if err != nil {
		return nil, fmt.Errorf("kernel %s: %w", hash, err)
	}
	return &rec, nil
}

// ResolveHash expands a hash prefix to the full kernel hash. It fails with
// ErrNotFound when nothing matches and ErrAmbiguous when several kernels do.
func (s *Store) ResolveHash(ctx context.Context, prefix string) (string, error) {
	if prefix == "" || strings.ContainsAny(prefix, "%_") {
		return "", fmt.Errorf("invalid hash prefix %q: %w", prefix, ErrNotFound)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT hash FROM kernels
		WHERE hash LIKE ? || '%'
		ORDER BY hash COLLATE BINARY ASC
		LIMIT 2
	`, prefix)
	if err != nil {
		return "", fmt.Errorf("query kernel hashes: %w", err)
	}
	defer rows.Close()

	var matches []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return "", fmt.Errorf("scan kernel hash: %w", err)
		}
		matches = append(matches, h)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("iterate kernel hashes: %w", err)
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("kernel %s: %w", prefix, ErrNotFound)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("kernel %s: %w", prefix, ErrAmbiguous)
	}
}

// ListKernels returns every stored kernel ordered by name, then hash.
//
// Returns an empty slice (not nil) if the store is empty.
func (s *Store) ListKernels(ctx context.Context) ([]KernelSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT k.hash, k.name, k.source,
		       COUNT(c.seq),
		       COALESCE(SUM(c.effect = 'opaque'), 0)
		FROM kernels k
		LEFT JOIN calls c ON c.kernel_hash = k.hash
		GROUP BY k.hash
		ORDER BY k.name COLLATE BINARY ASC, k.hash COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query kernels: %w", err)
	}
	defer rows.Close()

	out := []KernelSummary{}
	for rows.Next() {
		var ks KernelSummary
		if err := rows.Scan(&ks.Hash, &ks.Name, &ks.Source, &ks.Calls, &ks.Opaque); err != nil {
			return nil, fmt.Errorf("scan kernel: %w", err)
		}
		out = append(out, ks)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate kernels: %w", err)
	}
	return out, nil
}

// ReadCalls returns the call nodes of a kernel in evaluation order.
//
// Returns an empty slice (not nil) if the kernel has no calls.
func (s *Store) ReadCalls(ctx context.Context, hash string) ([]CallRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, call_id, op, effect, argc
		FROM calls
		WHERE kernel_hash = ?
		ORDER BY seq ASC
	`, hash)
	if err != nil {
		return nil, fmt.Errorf("query calls: %w", err)
	}
	defer rows.Close()
	return scanCalls(rows)
}

// CallMatch is a call row with the kernel it belongs to.
type CallMatch struct {
	KernelHash string `json:"kernel_hash"`
	Kernel     string `json:"kernel"`
	CallRecord
}

// FindCalls returns the calls matching q, ordered by kernel hash and
// evaluation order.
//
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) FindCalls(ctx context.Context, q callquery.Query) ([]CallMatch, error) {
	query, params, err := callquery.Compile(q)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("query calls: %w", err)
	}
	defer rows.Close()

	out := []CallMatch{}
	for rows.Next() {
		var (
			m      CallMatch
			effect string
		)
		if err := rows.Scan(&m.KernelHash, &m.Kernel, &m.Seq, &m.CallID, &m.Op, &effect, &m.Argc); err != nil {
			return nil, fmt.Errorf("scan call: %w", err)
		}
		if m.Effect, err = ir.ParseEffect(effect); err != nil {
			return nil, fmt.Errorf("scan call: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate calls: %w", err)
	}
	return out, nil
}

// CallsByOp returns every stored call to op, ordered by kernel hash and
// evaluation order.
func (s *Store) CallsByOp(ctx context.Context, op string) ([]CallRecord, error) {
	matches, err := s.FindCalls(ctx, callquery.Where(map[callquery.Field]string{callquery.FieldOp: op}))
	if err != nil {
		return nil, err
	}
	out := make([]CallRecord, len(matches))
	for i, m := range matches {
		out[i] = m.CallRecord
	}
	return out, nil
}

func scanCalls(rows *sql.Rows) ([]CallRecord, error) {
	out := []CallRecord{}
	for rows.Next() {
		var (
			c      CallRecord
			effect string
		)
		if err := rows.Scan(&c.Seq, &c.CallID, &c.Op, &effect, &c.Argc); err != nil {
			return nil, fmt.Errorf("scan call: %w", err)
		}
		e, err := ir.ParseEffect(effect)
		if err != nil {
			return nil, fmt.Errorf("scan call: %w", err)
		}
		c.Effect = e
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate calls: %w", err)
	}
	return out, nil
}

// ReadBuild returns the build with the given ID, or ErrNotFound.
func (s *Store) ReadBuild(ctx context.Context, id string) (*Build, error) {
	var b Build
	err := s.db.QueryRowContext(ctx, `
		SELECT id, seq, registry_hash, ir_version, compiler_version, target, kernel_count
		FROM builds
		WHERE id = ?
	`, id).Scan(&b.ID, &b.Seq, &b.RegistryHash, &b.IRVersion, &b.CompilerVersion, &b.Target, &b.KernelCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("build %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query build: %w", err)
	}
	return &b, nil
}

// BuildKernels returns the kernel hashes of a build in module order.
func (s *Store) BuildKernels(ctx context.Context, buildID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kernel_hash
		FROM build_kernels
		WHERE build_id = ?
		ORDER BY position ASC, kernel_hash COLLATE BINARY ASC
	`, buildID)
	if err != nil {
		return nil, fmt.Errorf("query build kernels: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("scan build kernel: %w", err)
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate build kernels: %w", err)
	}
	return out, nil
}
