package opt

import (
	"github.com/roach88/tlcomm/internal/ir"
)

// CommonSubexprElim merges Lets that bind structurally identical pure values.
// Later uses of the duplicate are rewritten to the first binding.
//
// A value containing an Opaque call is never merged: two identical
// comm_put calls are two transfers.
type CommonSubexprElim struct{}

func (CommonSubexprElim) Name() string { return "cse" }

func (CommonSubexprElim) Run(k *ir.Kernel) (*ir.Kernel, Stats) {
	out := k.Clone()
	var stats Stats

	first := make(map[string]string) // structural key -> bound name
	rename := make(map[string]string)
	body := out.Body[:0]
	for _, s := range out.Body {
		if len(rename) > 0 {
			substitute(s, rename)
		}
		let, ok := s.(*ir.Let)
		if !ok || ir.HasOpaque(let.Value) {
			body = append(body, s)
			continue
		}
		key := ir.StructuralKey(let.Value)
		if name, dup := first[key]; dup {
			rename[let.Name] = name
			stats.Merged++
			continue
		}
		first[key] = let.Name
		body = append(body, s)
	}
	out.Body = body
	return out, stats
}

func substitute(s ir.Stmt, rename map[string]string) {
	switch v := s.(type) {
	case *ir.Let:
		v.Value = ir.SubstituteVars(v.Value, rename)
	case *ir.Eval:
		ir.SubstituteVars(v.Call, rename)
	}
}
