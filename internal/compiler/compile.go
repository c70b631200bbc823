// Package compiler is the front-end: it turns tensor-program source into IR
// kernels, resolving every call through the intrinsic registry.
//
// A source file holds kernel blocks whose statements are HCL native-syntax
// expressions:
//
//	kernel ring_put(A, B) {
//	  me = comm_current_core()
//	  comm_put(A, B, CoreId([0, 1]), 128)
//	  comm_fence()
//	}
//
// Each call node carries the effect the registry declares for its intrinsic,
// which is what later passes rely on to keep communication in place.
package compiler

import (
	"github.com/hashicorp/hcl/v2/hclsyntax"

	"github.com/roach88/tlcomm/internal/config"
	"github.com/roach88/tlcomm/internal/intrinsic"
	"github.com/roach88/tlcomm/internal/ir"
)

// Options configure a Compiler.
type Options struct {
	// Registry resolves calls. Nil means intrinsic.Default().
	Registry *intrinsic.Registry

	// Target enables core bounds checks and coordinate linearization.
	Target *config.Target

	Mode Mode
}

// Compiler compiles source files. It is safe for concurrent use.
type Compiler struct {
	reg    *intrinsic.Registry
	target *config.Target
	mode   Mode
}

// New returns a Compiler for opts.
func New(opts Options) *Compiler {
	reg := opts.Registry
	if reg == nil {
		reg = intrinsic.Default()
	}
	return &Compiler{reg: reg, target: opts.Target, mode: opts.Mode}
}

// SourceFile is a named source buffer.
type SourceFile struct {
	Name string
	Data []byte
}

// Compile compiles files in order into a Module. On failure the error is an
// ErrorList.
func (c *Compiler) Compile(files []SourceFile) (*ir.Module, error) {
	m := &ir.Module{
		IRVersion:       ir.IRVersion,
		CompilerVersion: ir.CompilerVersion,
		RegistryHash:    c.reg.Hash(),
		Kernels:         []*ir.Kernel{},
	}
	if c.target != nil {
		m.Target = c.target.Name
	}

	sink := &errorSink{mode: c.mode}
	seen := make(map[string]ir.Pos)
	for _, f := range files {
		for _, k := range c.compileFile(f, sink) {
			if prev, dup := seen[k.Name]; dup {
				if !sink.report(errorf(ErrDuplicateBinding, ir.Pos{File: k.Source},
					"kernel %q is already defined at %s", k.Name, prev)) {
					return nil, sink.err()
				}
				continue
			}
			seen[k.Name] = ir.Pos{File: k.Source}
			m.Kernels = append(m.Kernels, k)
		}
		if sink.stopped() {
			return nil, sink.err()
		}
	}
	if err := sink.err(); err != nil {
		return nil, err
	}
	return m, nil
}

// CompileFile compiles one file and returns its kernels.
func (c *Compiler) CompileFile(name string, src []byte) ([]*ir.Kernel, error) {
	sink := &errorSink{mode: c.mode}
	kernels := c.compileFile(SourceFile{Name: name, Data: src}, sink)
	if err := sink.err(); err != nil {
		return nil, err
	}
	return kernels, nil
}

func (c *Compiler) compileFile(f SourceFile, sink *errorSink) []*ir.Kernel {
	blocks, err := splitSource(f.Name, f.Data)
	if err != nil {
		sink.report(err)
		return nil
	}

	var kernels []*ir.Kernel
	names := make(map[string]bool)
	for _, b := range blocks {
		if names[b.name] {
			if !sink.report(errorf(ErrDuplicateBinding, b.pos, "kernel %q is defined twice", b.name)) {
				return nil
			}
			continue
		}
		names[b.name] = true

		k := c.compileKernel(b, sink)
		if sink.stopped() {
			return nil
		}
		if k != nil {
			kernels = append(kernels, k)
		}
	}
	return kernels
}

// compileKernel lowers one kernel block. It returns nil if any statement
// failed.
func (c *Compiler) compileKernel(b kernelSource, sink *errorSink) *ir.Kernel {
	before := len(sink.errs)
	l := &lowerer{
		reg:     c.reg,
		target:  c.target,
		buffers: make(map[string]bool, len(b.buffers)),
		lets:    make(map[string]bool),
		failed:  make(map[string]bool),
	}
	for i, name := range b.buffers {
		if l.buffers[name] {
			if !sink.report(errorf(ErrDuplicateBinding, b.bufPos[i], "buffer %q is declared twice", name)) {
				return nil
			}
		}
		l.buffers[name] = true
	}

	k := &ir.Kernel{
		Name:    b.name,
		Buffers: b.buffers,
		Body:    []ir.Stmt{},
		Source:  b.pos.File,
	}
	if k.Buffers == nil {
		k.Buffers = []string{}
	}

	for _, st := range b.stmts {
		s, err := c.compileStmt(l, st)
		if err != nil {
			if !sink.report(err) {
				return nil
			}
			continue
		}
		k.Body = append(k.Body, s)
	}

	if len(sink.errs) > before {
		return nil
	}
	return k
}

func (c *Compiler) compileStmt(l *lowerer, st stmtSource) (ir.Stmt, *CompileError) {
	if name, off, ok := splitBinding(st.text); ok {
		if l.buffers[name] || l.lets[name] || l.failed[name] {
			return nil, errorf(ErrDuplicateBinding, st.pos, "%q is already bound", name)
		}

		pos := st.pos
		pos.Column += off
		e, err := parse(st.text[off:], pos, st.off+off)
		if err == nil {
			var v ir.Expr
			if v, err = l.lower(e); err == nil {
				l.lets[name] = true
				return &ir.Let{Name: name, Value: v, Pos: st.pos}, nil
			}
		}
		// The name is in scope only after its value; a failed value still
		// marks it so later uses do not report undefined identifiers.
		l.failed[name] = true
		return nil, err
	}

	e, err := parse(st.text, st.pos, st.off)
	if err != nil {
		return nil, err
	}
	if p, ok := e.(*hclsyntax.ParenthesesExpr); ok {
		e = p.Expression
	}
	if _, ok := e.(*hclsyntax.FunctionCallExpr); !ok {
		return nil, errorf(ErrUnsupportedExpr, st.pos, "statement must be an intrinsic call or a binding")
	}
	v, err := l.lower(e)
	if err != nil {
		return nil, err
	}
	return &ir.Eval{Call: v.(*ir.Call)}, nil
}
