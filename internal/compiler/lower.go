package compiler

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"

	"github.com/roach88/tlcomm/internal/config"
	"github.com/roach88/tlcomm/internal/intrinsic"
	"github.com/roach88/tlcomm/internal/ir"
)

// Parameter names that receive core coordinate sugar.
var (
	coreParams  = map[string]bool{"dst_core": true, "src_core": true}
	groupParams = map[string]bool{"group": true}
)

// lowerer turns HCL expressions of one kernel into IR.
type lowerer struct {
	reg     *intrinsic.Registry
	target  *config.Target
	buffers map[string]bool
	lets    map[string]bool
	failed  map[string]bool
	nextID  int
}

func posOf(r hcl.Range) ir.Pos {
	return ir.Pos{File: r.Filename, Line: r.Start.Line, Column: r.Start.Column}
}

// parse parses the expression text of a statement. start is the position of
// text's first byte.
func parse(text string, start ir.Pos, off int) (hclsyntax.Expression, *CompileError) {
	e, diags := hclsyntax.ParseExpression([]byte(text), start.File, hcl.Pos{
		Line:   start.Line,
		Column: start.Column,
		Byte:   off,
	})
	if diags.HasErrors() {
		return nil, diagError(diags, start)
	}
	return e, nil
}

// diagError converts the first error diagnostic to a CompileError.
func diagError(diags hcl.Diagnostics, fallback ir.Pos) *CompileError {
	for _, d := range diags {
		if d.Severity != hcl.DiagError {
			continue
		}
		pos := fallback
		if d.Subject != nil {
			pos = posOf(*d.Subject)
		}
		msg := d.Summary
		if d.Detail != "" {
			msg += ": " + d.Detail
		}
		return errorf(ErrSyntax, pos, "%s", msg)
	}
	return errorf(ErrSyntax, fallback, "%s", diags.Error())
}

func (l *lowerer) lower(e hclsyntax.Expression) (ir.Expr, *CompileError) {
	if isConstant(e) {
		return l.fold(e)
	}
	switch e := e.(type) {
	case *hclsyntax.FunctionCallExpr:
		return l.call(e)
	case *hclsyntax.ScopeTraversalExpr:
		return l.ident(e)
	case *hclsyntax.TupleConsExpr:
		t := make(ir.Tuple, len(e.Exprs))
		for i, item := range e.Exprs {
			v, err := l.lower(item)
			if err != nil {
				return nil, err
			}
			t[i] = v
		}
		return t, nil
	case *hclsyntax.ParenthesesExpr:
		return l.lower(e.Expression)
	case *hclsyntax.BinaryOpExpr, *hclsyntax.UnaryOpExpr:
		return nil, errorf(ErrUnsupportedExpr, posOf(e.Range()), "arithmetic is only supported on constants")
	case *hclsyntax.TemplateExpr, *hclsyntax.TemplateWrapExpr:
		return nil, errorf(ErrUnsupportedExpr, posOf(e.Range()), "string interpolation is not supported")
	default:
		return nil, errorf(ErrUnsupportedExpr, posOf(e.Range()), "unsupported expression")
	}
}

// isConstant reports whether e references no variables and calls nothing,
// so it can be evaluated without a context.
func isConstant(e hclsyntax.Expression) bool {
	if len(e.Variables()) > 0 {
		return false
	}
	calls := false
	hclsyntax.VisitAll(e, func(n hclsyntax.Node) hcl.Diagnostics {
		if _, ok := n.(*hclsyntax.FunctionCallExpr); ok {
			calls = true
		}
		return nil
	})
	return !calls
}

// fold evaluates a constant expression and converts the result.
func (l *lowerer) fold(e hclsyntax.Expression) (ir.Expr, *CompileError) {
	pos := posOf(e.Range())
	v, diags := e.Value(nil)
	if diags.HasErrors() {
		err := diagError(diags, pos)
		err.Code = ErrUnsupportedExpr
		return nil, err
	}
	out, err := ctyToExpr(v)
	if err != nil {
		return nil, errorf(ErrUnsupportedExpr, pos, "%v", err)
	}
	return out, nil
}

// ctyToExpr converts a known constant to an IR literal.
func ctyToExpr(v cty.Value) (ir.Expr, error) {
	if !v.IsKnown() {
		return nil, errors.New("value is not known at compile time")
	}
	if v.IsNull() {
		return nil, errors.New("null is not supported")
	}
	ty := v.Type()
	switch {
	case ty == cty.Number:
		bf := v.AsBigFloat()
		if !bf.IsInt() {
			return nil, fmt.Errorf("%s is not an integer", bf.Text('g', -1))
		}
		n, acc := bf.Int64()
		if acc != big.Exact {
			return nil, fmt.Errorf("%s overflows int64", bf.Text('f', 0))
		}
		return ir.IntLit(n), nil
	case ty == cty.String:
		return ir.StrLit(v.AsString()), nil
	case ty == cty.Bool:
		return ir.BoolLit(v.True()), nil
	case ty.IsTupleType() || ty.IsListType():
		items := v.AsValueSlice()
		t := make(ir.Tuple, len(items))
		for i, item := range items {
			x, err := ctyToExpr(item)
			if err != nil {
				return nil, err
			}
			t[i] = x
		}
		return t, nil
	}
	return nil, fmt.Errorf("%s values are not supported", ty.FriendlyName())
}

func (l *lowerer) ident(e *hclsyntax.ScopeTraversalExpr) (ir.Expr, *CompileError) {
	pos := posOf(e.SrcRange)
	if len(e.Traversal) != 1 {
		return nil, errorf(ErrUnsupportedExpr, pos, "attribute and index access are not supported")
	}
	name := e.Traversal.RootName()
	switch {
	case l.buffers[name]:
		return ir.BufferRef(name), nil
	case l.lets[name], l.failed[name]:
		return ir.VarRef(name), nil
	}
	return nil, errorf(ErrUndefinedIdent, pos, "undefined identifier %q", name)
}

func (l *lowerer) call(e *hclsyntax.FunctionCallExpr) (ir.Expr, *CompileError) {
	pos := posOf(e.NameRange)
	name := strings.ReplaceAll(e.Name, "::", ".")
	if e.ExpandFinal {
		return nil, errorf(ErrUnsupportedExpr, pos, "argument expansion is not supported in call to %s", name)
	}

	d, err := l.reg.ValidateCall(name, len(e.Args))
	if err != nil {
		return nil, registryError(err, pos)
	}

	args := make([]ir.Expr, len(e.Args))
	for i, a := range e.Args {
		v, cerr := l.lower(a)
		if cerr != nil {
			return nil, cerr
		}
		args[i] = v
	}

	if d.Name == intrinsic.CoreID {
		if args[0], err = l.coreIndex(args[0]); err != nil {
			return nil, asCompileError(err, pos)
		}
	} else if err := l.sugar(d, args, pos); err != nil {
		return nil, err
	}

	return l.emit(d, args, pos), nil
}

// emit allocates the next call ID. Arguments are lowered first, so IDs follow
// evaluation order.
func (l *lowerer) emit(d intrinsic.Descriptor, args []ir.Expr, pos ir.Pos) *ir.Call {
	c := &ir.Call{ID: l.nextID, Op: d.Name, Args: args, Effect: d.Effect, Pos: pos}
	l.nextID++
	return c
}

// sugar wraps coordinate tuples passed to core and group parameters in
// CoreId calls.
func (l *lowerer) sugar(d intrinsic.Descriptor, args []ir.Expr, pos ir.Pos) *CompileError {
	for i, arg := range args {
		if i >= len(d.Params) {
			break
		}
		t, ok := arg.(ir.Tuple)
		if !ok {
			continue
		}
		switch {
		case coreParams[d.Params[i]]:
			c, err := l.wrapCore(t, pos)
			if err != nil {
				return err
			}
			args[i] = c
		case groupParams[d.Params[i]]:
			if !allTuples(t) {
				continue
			}
			for j, member := range t {
				c, err := l.wrapCore(member.(ir.Tuple), pos)
				if err != nil {
					return err
				}
				t[j] = c
			}
		}
	}
	return nil
}

func allTuples(t ir.Tuple) bool {
	if len(t) == 0 {
		return false
	}
	for _, item := range t {
		if _, ok := item.(ir.Tuple); !ok {
			return false
		}
	}
	return true
}

func (l *lowerer) wrapCore(coord ir.Tuple, pos ir.Pos) (*ir.Call, *CompileError) {
	d, err := l.reg.Lookup(intrinsic.CoreID)
	if err != nil {
		return nil, registryError(err, pos)
	}
	idx, err := l.coreIndex(coord)
	if err != nil {
		return nil, asCompileError(err, pos)
	}
	return l.emit(d, []ir.Expr{idx}, pos), nil
}

// coreIndex resolves the argument of CoreId. A [row, col] coordinate is
// linearized row-major against the target mesh; an integer index is
// bounds-checked when a target is configured.
func (l *lowerer) coreIndex(arg ir.Expr) (ir.Expr, error) {
	switch v := arg.(type) {
	case ir.IntLit:
		if l.target != nil && (v < 0 || int64(v) >= int64(l.target.Mesh.Cores())) {
			return nil, errorf(ErrCoreOutOfMesh, ir.Pos{}, "core %d is outside the %dx%d mesh of target %q",
				int64(v), l.target.Mesh.X, l.target.Mesh.Y, l.target.Name)
		}
		return v, nil
	case ir.Tuple:
		row, col, ok := coordinate(v)
		if !ok {
			return nil, errorf(ErrUnsupportedExpr, ir.Pos{}, "core coordinate must be [row, col] integer constants")
		}
		if l.target == nil {
			return nil, errorf(ErrCoreOutOfMesh, ir.Pos{}, "core coordinate [%d, %d] needs a target mesh", row, col)
		}
		if !l.target.Mesh.Contains(row, col) {
			return nil, errorf(ErrCoreOutOfMesh, ir.Pos{}, "core [%d, %d] is outside the %dx%d mesh of target %q",
				row, col, l.target.Mesh.X, l.target.Mesh.Y, l.target.Name)
		}
		return ir.IntLit(l.target.Mesh.Linear(row, col)), nil
	}
	return arg, nil
}

func coordinate(t ir.Tuple) (row, col int64, ok bool) {
	if len(t) != 2 {
		return 0, 0, false
	}
	r, ok1 := t[0].(ir.IntLit)
	c, ok2 := t[1].(ir.IntLit)
	return int64(r), int64(c), ok1 && ok2
}

// asCompileError fills in a position for errors raised without one.
func asCompileError(err error, pos ir.Pos) *CompileError {
	var ce *CompileError
	if errors.As(err, &ce) {
		if !ce.Pos.IsValid() {
			ce.Pos = pos
		}
		return ce
	}
	return &CompileError{Code: ErrUnsupportedExpr, Message: err.Error(), Pos: pos, Err: err}
}

// registryError maps a registry rejection to its front-end code.
func registryError(err error, pos ir.Pos) *CompileError {
	code := ErrUnknownIntrinsic
	var arity *intrinsic.ArityMismatchError
	if errors.As(err, &arity) {
		code = ErrArityMismatch
	}
	return &CompileError{Code: code, Message: err.Error(), Pos: pos, Err: err}
}
