package opt

import (
	"github.com/roach88/tlcomm/internal/ir"
)

func opaque(id int, op string, args ...ir.Expr) *ir.Call {
	return &ir.Call{ID: id, Op: op, Args: args, Effect: ir.Opaque}
}

func pure(id int, op string, args ...ir.Expr) *ir.Call {
	return &ir.Call{ID: id, Op: op, Args: args, Effect: ir.Pure}
}

func let(name string, v ir.Expr) *ir.Let { return &ir.Let{Name: name, Value: v} }

func eval(c *ir.Call) *ir.Eval { return &ir.Eval{Call: c} }

func kernel(body ...ir.Stmt) *ir.Kernel {
	return &ir.Kernel{Name: "k", Buffers: []string{"A", "B"}, Body: body}
}

func put(id int, core, size ir.Expr) *ir.Call {
	return opaque(id, "comm_put", ir.BufferRef("A"), ir.BufferRef("B"), core, size)
}

// shape renders a body as "x=", "op" entries for compact assertions.
func shape(k *ir.Kernel) []string {
	out := make([]string, len(k.Body))
	for i, s := range k.Body {
		switch v := s.(type) {
		case *ir.Let:
			out[i] = v.Name + "="
		case *ir.Eval:
			out[i] = v.Call.Op
		}
	}
	return out
}
