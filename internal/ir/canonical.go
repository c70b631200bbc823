package ir

import (
	"bytes"
	"fmt"
	"slices"
	"strconv"
	"unicode/utf16"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical produces RFC 8785 canonical JSON for hashing.
// This is the ONLY serialization used for content-addressed identity.
//
// Accepted values: string, int, int64, bool, []any, map[string]any, and the
// IR types Expr, Stmt and *Kernel (converted through their canonical trees).
//
// Differences from encoding/json:
//  1. Object keys sorted by UTF-16 code units (not UTF-8 bytes)
//  2. No HTML escaping, U+2028/U+2029 emitted literally
//  3. Strings are NFC normalized
//  4. No floats, no null (returns error)
func MarshalCanonical(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeCanonical(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		return fmt.Errorf("null is forbidden in canonical JSON")
	case string:
		writeCanonicalString(buf, val)
	case int:
		buf.WriteString(strconv.Itoa(val))
	case int64:
		buf.WriteString(strconv.FormatInt(val, 10))
	case bool:
		buf.WriteString(strconv.FormatBool(val))
	case []any:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, elem); err != nil {
				return fmt.Errorf("array[%d]: %w", i, err)
			}
		}
		buf.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		slices.SortFunc(keys, compareKeysRFC8785)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeCanonicalString(buf, k)
			buf.WriteByte(':')
			if err := writeCanonical(buf, val[k]); err != nil {
				return fmt.Errorf("object[%q]: %w", k, err)
			}
		}
		buf.WriteByte('}')
	case *Kernel:
		tree, err := kernelTree(val)
		if err != nil {
			return err
		}
		return writeCanonical(buf, tree)
	case Stmt:
		tree, err := stmtTree(val)
		if err != nil {
			return err
		}
		return writeCanonical(buf, tree)
	case Expr:
		tree, err := exprTree(val)
		if err != nil {
			return err
		}
		return writeCanonical(buf, tree)
	case float32, float64:
		return fmt.Errorf("floats are forbidden in canonical JSON: %v", val)
	default:
		return fmt.Errorf("unsupported type for canonical JSON: %T", v)
	}
	return nil
}

// exprTree converts an expression to plain canonical values.
// Positions are excluded: identity does not depend on source layout.
func exprTree(e Expr) (any, error) {
	switch v := e.(type) {
	case IntLit:
		return map[string]any{"int": int64(v)}, nil
	case StrLit:
		return map[string]any{"str": string(v)}, nil
	case BoolLit:
		return map[string]any{"bool": bool(v)}, nil
	case BufferRef:
		return map[string]any{"buffer": string(v)}, nil
	case VarRef:
		return map[string]any{"var": string(v)}, nil
	case Tuple:
		items := make([]any, len(v))
		for i, item := range v {
			t, err := exprTree(item)
			if err != nil {
				return nil, fmt.Errorf("tuple[%d]: %w", i, err)
			}
			items[i] = t
		}
		return map[string]any{"tuple": items}, nil
	case *Call:
		if v == nil {
			return nil, fmt.Errorf("nil call")
		}
		args := make([]any, len(v.Args))
		for i, arg := range v.Args {
			t, err := exprTree(arg)
			if err != nil {
				return nil, fmt.Errorf("%s arg %d: %w", v.Op, i, err)
			}
			args[i] = t
		}
		return map[string]any{"call": map[string]any{
			"id":     v.ID,
			"op":     v.Op,
			"effect": v.Effect.String(),
			"args":   args,
		}}, nil
	default:
		return nil, fmt.Errorf("unsupported expression: %T", e)
	}
}

func stmtTree(s Stmt) (any, error) {
	switch v := s.(type) {
	case *Let:
		val, err := exprTree(v.Value)
		if err != nil {
			return nil, fmt.Errorf("let %s: %w", v.Name, err)
		}
		return map[string]any{"let": map[string]any{"name": v.Name, "value": val}}, nil
	case *Eval:
		call, err := exprTree(v.Call)
		if err != nil {
			return nil, err
		}
		return map[string]any{"eval": call}, nil
	default:
		return nil, fmt.Errorf("unsupported statement: %T", s)
	}
}

func kernelTree(k *Kernel) (any, error) {
	buffers := make([]any, len(k.Buffers))
	for i, b := range k.Buffers {
		buffers[i] = b
	}
	body := make([]any, len(k.Body))
	for i, s := range k.Body {
		t, err := stmtTree(s)
		if err != nil {
			return nil, fmt.Errorf("kernel %s body[%d]: %w", k.Name, i, err)
		}
		body[i] = t
	}
	return map[string]any{"name": k.Name, "buffers": buffers, "body": body}, nil
}

// compareKeysRFC8785 compares strings by UTF-16 code units as RFC 8785
// requires. Go's native string order is UTF-8 and differs for supplementary
// characters.
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))
	return slices.Compare(a16, b16)
}

// writeCanonicalString writes an NFC-normalized JSON string. Only the quote,
// the backslash and control characters below U+0020 are escaped.
func writeCanonicalString(buf *bytes.Buffer, s string) {
	s = norm.NFC.String(s)
	buf.WriteByte('"')
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		switch {
		case r == '"':
			buf.WriteString(`\"`)
		case r == '\\':
			buf.WriteString(`\\`)
		case r == '\b':
			buf.WriteString(`\b`)
		case r == '\f':
			buf.WriteString(`\f`)
		case r == '\n':
			buf.WriteString(`\n`)
		case r == '\r':
			buf.WriteString(`\r`)
		case r == '\t':
			buf.WriteString(`\t`)
		case r < 0x20:
			fmt.Fprintf(buf, `\u%04x`, r)
		default:
			buf.WriteString(s[i : i+size])
		}
		i += size
	}
	buf.WriteByte('"')
}
