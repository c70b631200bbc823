package ir

import (
	"strconv"
	"strings"
)

// Walk visits e and its sub-expressions in pre-order.
// If fn returns false the children of that node are skipped.
func Walk(e Expr, fn func(Expr) bool) {
	if e == nil || !fn(e) {
		return
	}
	switch v := e.(type) {
	case Tuple:
		for _, item := range v {
			Walk(item, fn)
		}
	case *Call:
		for _, arg := range v.Args {
			Walk(arg, fn)
		}
	}
}

// Calls returns every call node in e in evaluation order: arguments left to
// right, then the call itself.
func Calls(e Expr) []*Call {
	var out []*Call
	collectCalls(e, &out)
	return out
}

func collectCalls(e Expr, out *[]*Call) {
	switch v := e.(type) {
	case Tuple:
		for _, item := range v {
			collectCalls(item, out)
		}
	case *Call:
		for _, arg := range v.Args {
			collectCalls(arg, out)
		}
		*out = append(*out, v)
	}
}

// HasOpaque reports whether e contains an Opaque call at any depth.
func HasOpaque(e Expr) bool {
	found := false
	Walk(e, func(x Expr) bool {
		if c, ok := x.(*Call); ok && c.Effect == Opaque {
			found = true
		}
		return !found
	})
	return found
}

// VarsUsed returns the names referenced by VarRef nodes in e, in first-use order.
func VarsUsed(e Expr) []string {
	var names []string
	seen := make(map[string]bool)
	Walk(e, func(x Expr) bool {
		if v, ok := x.(VarRef); ok && !seen[string(v)] {
			seen[string(v)] = true
			names = append(names, string(v))
		}
		return true
	})
	return names
}

// StmtExpr returns the expression a statement evaluates.
func StmtExpr(s Stmt) Expr {
	switch v := s.(type) {
	case *Let:
		return v.Value
	case *Eval:
		return v.Call
	}
	return nil
}

// Calls returns all call nodes of the kernel in evaluation order.
func (k *Kernel) Calls() []*Call {
	var out []*Call
	for _, s := range k.Body {
		collectCalls(StmtExpr(s), &out)
	}
	return out
}

// OpaqueIDs returns the IDs of Opaque calls in evaluation order.
// Any correct transformation of the kernel preserves this sequence exactly.
func (k *Kernel) OpaqueIDs() []int {
	var ids []int
	for _, c := range k.Calls() {
		if c.Effect == Opaque {
			ids = append(ids, c.ID)
		}
	}
	return ids
}

// Clone returns a deep copy of the kernel.
func (k *Kernel) Clone() *Kernel {
	out := &Kernel{
		Name:    k.Name,
		Buffers: append([]string(nil), k.Buffers...),
		Body:    make([]Stmt, len(k.Body)),
		Source:  k.Source,
	}
	for i, s := range k.Body {
		out.Body[i] = CloneStmt(s)
	}
	return out
}

// CloneStmt returns a deep copy of a statement.
func CloneStmt(s Stmt) Stmt {
	switch v := s.(type) {
	case *Let:
		return &Let{Name: v.Name, Value: CloneExpr(v.Value), Pos: v.Pos}
	case *Eval:
		return &Eval{Call: CloneExpr(v.Call).(*Call)}
	}
	return s
}

// CloneExpr returns a deep copy of an expression. Call IDs are preserved.
func CloneExpr(e Expr) Expr {
	switch v := e.(type) {
	case Tuple:
		t := make(Tuple, len(v))
		for i, item := range v {
			t[i] = CloneExpr(item)
		}
		return t
	case *Call:
		c := *v
		c.Args = make([]Expr, len(v.Args))
		for i, arg := range v.Args {
			c.Args[i] = CloneExpr(arg)
		}
		return &c
	}
	return e
}

// SubstituteVars rewrites VarRef names according to m in place and returns
// the (possibly replaced) root.
func SubstituteVars(e Expr, m map[string]string) Expr {
	switch v := e.(type) {
	case VarRef:
		if to, ok := m[string(v)]; ok {
			return VarRef(to)
		}
	case Tuple:
		for i, item := range v {
			v[i] = SubstituteVars(item, m)
		}
	case *Call:
		for i, arg := range v.Args {
			v.Args[i] = SubstituteVars(arg, m)
		}
	}
	return e
}

// StructuralKey renders e ignoring call IDs and positions. Two expressions
// with equal keys compute the same value if, and only if, they are pure.
func StructuralKey(e Expr) string {
	var b strings.Builder
	writeKey(&b, e)
	return b.String()
}

func writeKey(b *strings.Builder, e Expr) {
	switch v := e.(type) {
	case IntLit:
		b.WriteString(strconv.FormatInt(int64(v), 10))
	case StrLit:
		b.WriteString(strconv.Quote(string(v)))
	case BoolLit:
		b.WriteString(strconv.FormatBool(bool(v)))
	case BufferRef:
		b.WriteString("buf:")
		b.WriteString(string(v))
	case VarRef:
		b.WriteString("var:")
		b.WriteString(string(v))
	case Tuple:
		b.WriteByte('[')
		for i, item := range v {
			if i > 0 {
				b.WriteByte(',')
			}
			writeKey(b, item)
		}
		b.WriteByte(']')
	case *Call:
		b.WriteString(v.Op)
		b.WriteByte('(')
		for i, arg := range v.Args {
			if i > 0 {
				b.WriteByte(',')
			}
			writeKey(b, arg)
		}
		b.WriteByte(')')
	}
}
