package opt

import (
	"github.com/roach88/tlcomm/internal/ir"
)

// SinkPure moves each pure Let down to just before its first use, shortening
// live ranges. Statements with Opaque calls keep their relative order, and
// unused pure Lets stay at the end in their original order.
type SinkPure struct{}

func (SinkPure) Name() string { return "sink" }

func (SinkPure) Run(k *ir.Kernel) (*ir.Kernel, Stats) {
	out := k.Clone()

	origin := make(map[ir.Stmt]int, len(out.Body))
	for i, s := range out.Body {
		origin[s] = i
	}

	pending := make(map[string]*ir.Let)
	var order []*ir.Let // pending lets in source order
	body := make([]ir.Stmt, 0, len(out.Body))

	var emit func(s ir.Stmt)
	emit = func(s ir.Stmt) {
		for _, name := range ir.VarsUsed(ir.StmtExpr(s)) {
			if dep, ok := pending[name]; ok {
				delete(pending, name)
				emit(dep)
			}
		}
		body = append(body, s)
	}

	for _, s := range out.Body {
		if let, ok := s.(*ir.Let); ok && isPureStmt(s) {
			pending[let.Name] = let
			order = append(order, let)
			continue
		}
		emit(s)
	}
	for _, let := range order {
		if _, ok := pending[let.Name]; ok {
			delete(pending, let.Name)
			emit(let)
		}
	}

	var stats Stats
	for i, s := range body {
		if _, ok := s.(*ir.Let); ok && isPureStmt(s) && origin[s] != i {
			stats.Moved++
		}
	}
	out.Body = body
	return out, stats
}
