package ir

import (
	"encoding/json"
	"fmt"
)

// Stmt is a sealed interface for kernel body statements.
// Only *Let and *Eval implement it.
type Stmt interface {
	stmt()
}

// Let binds the value of an expression to a name usable by later statements.
type Let struct {
	Name  string
	Value Expr
	Pos   Pos
}

func (*Let) stmt() {}

// Eval evaluates a call for its effect; the result is discarded.
type Eval struct {
	Call *Call
}

func (*Eval) stmt() {}

// Kernel is one compiled tensor-program function.
type Kernel struct {
	Name    string   `json:"name"`
	Buffers []string `json:"buffers"`
	Body    []Stmt   `json:"-"`
	Source  string   `json:"source,omitempty"` // originating file
}

// Module is the output of compiling a set of source files.
type Module struct {
	IRVersion       string    `json:"ir_version"`
	CompilerVersion string    `json:"compiler_version"`
	RegistryHash    string    `json:"registry_hash"` // hash of the intrinsic table used
	Target          string    `json:"target,omitempty"`
	Kernels         []*Kernel `json:"kernels"`
}

// stmtJSON is the tagged wire shape of a Stmt.
type stmtJSON struct {
	Let  *letJSON `json:"let,omitempty"`
	Eval *Call    `json:"eval,omitempty"`
}

type letJSON struct {
	Name  string          `json:"name"`
	Value json.RawMessage `json:"value"`
	Pos   Pos             `json:"pos"`
}

// MarshalStmt marshals a Stmt to its tagged JSON form.
func MarshalStmt(s Stmt) ([]byte, error) {
	switch v := s.(type) {
	case *Let:
		val, err := MarshalExpr(v.Value)
		if err != nil {
			return nil, fmt.Errorf("let %s: %w", v.Name, err)
		}
		return json.Marshal(stmtJSON{Let: &letJSON{Name: v.Name, Value: val, Pos: v.Pos}})
	case *Eval:
		if v.Call == nil {
			return nil, fmt.Errorf("eval without call")
		}
		return json.Marshal(stmtJSON{Eval: v.Call})
	default:
		return nil, fmt.Errorf("unknown Stmt type: %T", s)
	}
}

// UnmarshalStmt decodes the tagged JSON form produced by MarshalStmt.
func UnmarshalStmt(data []byte) (Stmt, error) {
	var raw stmtJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	switch {
	case raw.Let != nil:
		val, err := UnmarshalExpr(raw.Let.Value)
		if err != nil {
			return nil, fmt.Errorf("let %s: %w", raw.Let.Name, err)
		}
		return &Let{Name: raw.Let.Name, Value: val, Pos: raw.Let.Pos}, nil
	case raw.Eval != nil:
		return &Eval{Call: raw.Eval}, nil
	default:
		return nil, fmt.Errorf("empty statement: %s", string(data))
	}
}

// kernelJSON mirrors Kernel with an encoded body.
type kernelJSON struct {
	Name    string            `json:"name"`
	Buffers []string          `json:"buffers"`
	Body    []json.RawMessage `json:"body"`
	Source  string            `json:"source,omitempty"`
}

// MarshalJSON implements json.Marshaler for Kernel.
func (k *Kernel) MarshalJSON() ([]byte, error) {
	body := make([]json.RawMessage, len(k.Body))
	for i, s := range k.Body {
		b, err := MarshalStmt(s)
		if err != nil {
			return nil, fmt.Errorf("kernel %s body[%d]: %w", k.Name, i, err)
		}
		body[i] = b
	}
	buffers := k.Buffers
	if buffers == nil {
		buffers = []string{}
	}
	return json.Marshal(kernelJSON{Name: k.Name, Buffers: buffers, Body: body, Source: k.Source})
}

// UnmarshalJSON implements json.Unmarshaler for Kernel.
func (k *Kernel) UnmarshalJSON(data []byte) error {
	var raw kernelJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	body := make([]Stmt, len(raw.Body))
	for i, b := range raw.Body {
		s, err := UnmarshalStmt(b)
		if err != nil {
			return fmt.Errorf("kernel %s body[%d]: %w", raw.Name, i, err)
		}
		body[i] = s
	}
	*k = Kernel{Name: raw.Name, Buffers: raw.Buffers, Body: body, Source: raw.Source}
	return nil
}
