package ir

import (
	"encoding/json"
	"fmt"
)

// Expr is a sealed interface for call arguments and let values.
// Only IntLit, StrLit, BoolLit, BufferRef, VarRef, Tuple and *Call implement it.
type Expr interface {
	expr() // Sealed - only these types implement it
}

// IntLit is an integer literal. Always int64, never float.
type IntLit int64

func (IntLit) expr() {}

// StrLit is a string literal (e.g. the reduce operator "sum").
type StrLit string

func (StrLit) expr() {}

// BoolLit is a boolean literal.
type BoolLit bool

func (BoolLit) expr() {}

// BufferRef names a buffer declared in the kernel signature.
type BufferRef string

func (BufferRef) expr() {}

// VarRef names a value bound by an earlier Let.
type VarRef string

func (VarRef) expr() {}

// Tuple is an ordered list of expressions (core coordinates, groups).
type Tuple []Expr

func (Tuple) expr() {}

// Pos is a source position. Line and Column are 1-based; zero means unknown.
type Pos struct {
	File   string `json:"file,omitempty"`
	Line   int    `json:"line,omitempty"`
	Column int    `json:"column,omitempty"`
}

// IsValid reports whether the position carries a line number.
func (p Pos) IsValid() bool { return p.Line > 0 }

// String formats the position as file:line:col.
func (p Pos) String() string {
	if !p.IsValid() {
		return p.File
	}
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
}

// Call is a call node referencing an intrinsic by name.
//
// ID is unique within a kernel and assigned in source order. It is the
// identity of the operation: passes compare opaque calls by ID, never by
// arguments.
type Call struct {
	ID     int
	Op     string
	Args   []Expr
	Effect Effect
	Pos    Pos
}

func (*Call) expr() {}

// callJSON is the wire shape of a Call.
type callJSON struct {
	ID     int               `json:"id"`
	Op     string            `json:"op"`
	Args   []json.RawMessage `json:"args"`
	Effect Effect            `json:"effect"`
	Pos    Pos               `json:"pos"`
}

// MarshalJSON implements json.Marshaler for Call.
func (c *Call) MarshalJSON() ([]byte, error) {
	args := make([]json.RawMessage, len(c.Args))
	for i, a := range c.Args {
		b, err := MarshalExpr(a)
		if err != nil {
			return nil, fmt.Errorf("call %s arg %d: %w", c.Op, i, err)
		}
		args[i] = b
	}
	return json.Marshal(callJSON{ID: c.ID, Op: c.Op, Args: args, Effect: c.Effect, Pos: c.Pos})
}

// UnmarshalJSON implements json.Unmarshaler for Call.
func (c *Call) UnmarshalJSON(data []byte) error {
	var raw callJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	args := make([]Expr, len(raw.Args))
	for i, a := range raw.Args {
		e, err := UnmarshalExpr(a)
		if err != nil {
			return fmt.Errorf("call %s arg %d: %w", raw.Op, i, err)
		}
		args[i] = e
	}
	*c = Call{ID: raw.ID, Op: raw.Op, Args: args, Effect: raw.Effect, Pos: raw.Pos}
	return nil
}

// exprJSON is the tagged wire shape of an Expr. Exactly one field is set.
type exprJSON struct {
	Int    *int64             `json:"int,omitempty"`
	Str    *string            `json:"str,omitempty"`
	Bool   *bool              `json:"bool,omitempty"`
	Buffer *string            `json:"buffer,omitempty"`
	Var    *string            `json:"var,omitempty"`
	Tuple  *[]json.RawMessage `json:"tuple,omitempty"`
	Call   *Call              `json:"call,omitempty"`
}

// MarshalExpr marshals an Expr to its tagged JSON form, e.g. {"buffer":"A"}.
func MarshalExpr(e Expr) ([]byte, error) {
	var out exprJSON
	switch v := e.(type) {
	case IntLit:
		n := int64(v)
		out.Int = &n
	case StrLit:
		s := string(v)
		out.Str = &s
	case BoolLit:
		b := bool(v)
		out.Bool = &b
	case BufferRef:
		s := string(v)
		out.Buffer = &s
	case VarRef:
		s := string(v)
		out.Var = &s
	case Tuple:
		items := make([]json.RawMessage, len(v))
		for i, item := range v {
			b, err := MarshalExpr(item)
			if err != nil {
				return nil, fmt.Errorf("tuple[%d]: %w", i, err)
			}
			items[i] = b
		}
		out.Tuple = &items
	case *Call:
		if v == nil {
			return nil, fmt.Errorf("nil call")
		}
		out.Call = v
	default:
		return nil, fmt.Errorf("unknown Expr type: %T", e)
	}
	return json.Marshal(out)
}

// UnmarshalExpr decodes the tagged JSON form produced by MarshalExpr.
func UnmarshalExpr(data []byte) (Expr, error) {
	var raw exprJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	switch {
	case raw.Int != nil:
		return IntLit(*raw.Int), nil
	case raw.Str != nil:
		return StrLit(*raw.Str), nil
	case raw.Bool != nil:
		return BoolLit(*raw.Bool), nil
	case raw.Buffer != nil:
		return BufferRef(*raw.Buffer), nil
	case raw.Var != nil:
		return VarRef(*raw.Var), nil
	case raw.Tuple != nil:
		t := make(Tuple, len(*raw.Tuple))
		for i, item := range *raw.Tuple {
			e, err := UnmarshalExpr(item)
			if err != nil {
				return nil, fmt.Errorf("tuple[%d]: %w", i, err)
			}
			t[i] = e
		}
		return t, nil
	case raw.Call != nil:
		return raw.Call, nil
	default:
		return nil, fmt.Errorf("empty expression: %s", string(data))
	}
}
