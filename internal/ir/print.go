package ir

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Namer maps an op name to the name shown in printed IR.
// The intrinsic registry implements it; a nil Namer prints raw op names.
type Namer interface {
	DisplayName(op string) string
}

// PrintPrefix is prepended to every printed call, mirroring the T. namespace
// used by tensor-program scripts.
const PrintPrefix = "T."

// Print writes a textual form of the kernel. Statements that contain an
// Opaque call are annotated with "# opaque".
func Print(w io.Writer, k *Kernel, names Namer) error {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "kernel %s(%s) {\n", k.Name, strings.Join(k.Buffers, ", "))
	for _, s := range k.Body {
		buf.WriteString("  ")
		switch v := s.(type) {
		case *Let:
			buf.WriteString(v.Name)
			buf.WriteString(" = ")
			writeExpr(&buf, v.Value, names)
		case *Eval:
			writeExpr(&buf, v.Call, names)
		}
		if HasOpaque(StmtExpr(s)) {
			buf.WriteString("  # opaque")
		}
		buf.WriteByte('\n')
	}
	buf.WriteString("}\n")
	_, err := w.Write(buf.Bytes())
	return err
}

// PrintModule prints every kernel of the module, separated by blank lines.
func PrintModule(w io.Writer, m *Module, names Namer) error {
	for i, k := range m.Kernels {
		if i > 0 {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
		}
		if err := Print(w, k, names); err != nil {
			return err
		}
	}
	return nil
}

// Sprint returns the printed kernel as a string.
func Sprint(k *Kernel, names Namer) string {
	var b strings.Builder
	_ = Print(&b, k, names)
	return b.String()
}

// SprintExpr returns the printed form of a single expression.
func SprintExpr(e Expr, names Namer) string {
	var buf bytes.Buffer
	writeExpr(&buf, e, names)
	return buf.String()
}

func writeExpr(buf *bytes.Buffer, e Expr, names Namer) {
	switch v := e.(type) {
	case IntLit:
		buf.WriteString(strconv.FormatInt(int64(v), 10))
	case StrLit:
		buf.WriteString(strconv.Quote(string(v)))
	case BoolLit:
		buf.WriteString(strconv.FormatBool(bool(v)))
	case BufferRef:
		buf.WriteString(string(v))
	case VarRef:
		buf.WriteString(string(v))
	case Tuple:
		buf.WriteByte('[')
		for i, item := range v {
			if i > 0 {
				buf.WriteString(", ")
			}
			writeExpr(buf, item, names)
		}
		buf.WriteByte(']')
	case *Call:
		name := v.Op
		if names != nil {
			name = names.DisplayName(v.Op)
		}
		buf.WriteString(PrintPrefix)
		buf.WriteString(name)
		buf.WriteByte('(')
		for i, arg := range v.Args {
			if i > 0 {
				buf.WriteString(", ")
			}
			writeExpr(buf, arg, names)
		}
		buf.WriteByte(')')
	default:
		fmt.Fprintf(buf, "<%T>", e)
	}
}
