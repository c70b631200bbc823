package opt

import (
	"github.com/roach88/tlcomm/internal/ir"
)

// DefaultMaxIterations bounds the DCE fixpoint loop.
const DefaultMaxIterations = 100

// DeadCodeElim removes pure statements whose results are never used: Evals
// of pure calls, and Lets of pure values whose name is never referenced.
// Removing one binding can make another dead, so it iterates to a fixpoint.
//
// Statements containing an Opaque call are always kept, even when their
// result is discarded.
type DeadCodeElim struct {
	// MaxIterations caps the fixpoint loop. Zero means DefaultMaxIterations.
	MaxIterations int
}

func (DeadCodeElim) Name() string { return "dce" }

func (d DeadCodeElim) Run(k *ir.Kernel) (*ir.Kernel, Stats) {
	limit := d.MaxIterations
	if limit <= 0 {
		limit = DefaultMaxIterations
	}

	out := k.Clone()
	var stats Stats
	for i := 0; i < limit; i++ {
		removed := sweep(out)
		if removed == 0 {
			break
		}
		stats.Removed += removed
	}
	return out, stats
}

// sweep drops dead statements once and returns how many it dropped.
func sweep(k *ir.Kernel) int {
	used := make(map[string]bool)
	for _, s := range k.Body {
		for _, name := range ir.VarsUsed(ir.StmtExpr(s)) {
			used[name] = true
		}
	}

	body := k.Body[:0]
	removed := 0
	for _, s := range k.Body {
		if isPureStmt(s) {
			if let, ok := s.(*ir.Let); !ok || !used[let.Name] {
				removed++
				continue
			}
		}
		body = append(body, s)
	}
	k.Body = body
	return removed
}
