package compiler

import (
	"strconv"
	"strings"

	"github.com/roach88/tlcomm/internal/ir"
)

// kernelSource is one kernel block cut out of a source file, with its body
// split into statements. Expressions are parsed later, per statement.
type kernelSource struct {
	name    string
	buffers []string
	bufPos  []ir.Pos
	pos     ir.Pos
	stmts   []stmtSource
}

// stmtSource is the raw text of one statement and where it starts.
type stmtSource struct {
	text string
	pos  ir.Pos
	off  int // byte offset of text in the file
}

// scanner walks a source file byte by byte, tracking line and column.
type scanner struct {
	file string
	src  []byte
	off  int
	line int
	col  int
}

func newScanner(file string, src []byte) *scanner {
	return &scanner{file: file, src: src, line: 1, col: 1}
}

func (s *scanner) eof() bool { return s.off >= len(s.src) }

func (s *scanner) peek() byte {
	if s.eof() {
		return 0
	}
	return s.src[s.off]
}

func (s *scanner) peekAt(n int) byte {
	if s.off+n >= len(s.src) {
		return 0
	}
	return s.src[s.off+n]
}

func (s *scanner) next() byte {
	c := s.src[s.off]
	s.off++
	if c == '\n' {
		s.line++
		s.col = 1
	} else {
		s.col++
	}
	return c
}

func (s *scanner) pos() ir.Pos {
	return ir.Pos{File: s.file, Line: s.line, Column: s.col}
}

func (s *scanner) atComment() bool {
	c := s.peek()
	return c == '#' || (c == '/' && s.peekAt(1) == '/')
}

// skipComment consumes a comment up to, but not including, the newline.
func (s *scanner) skipComment() {
	for !s.eof() && s.peek() != '\n' {
		s.next()
	}
}

// skipSpace consumes whitespace, newlines and comments.
func (s *scanner) skipSpace() {
	for !s.eof() {
		switch {
		case isSpace(s.peek()) || s.peek() == '\n':
			s.next()
		case s.atComment():
			s.skipComment()
		default:
			return
		}
	}
}

func (s *scanner) ident() string {
	start := s.off
	for !s.eof() && isIdentByte(s.peek(), s.off == start) {
		s.next()
	}
	return string(s.src[start:s.off])
}

func (s *scanner) expect(c byte, what string) *CompileError {
	s.skipSpace()
	if s.peek() != c {
		return errorf(ErrSyntax, s.pos(), "expected %q %s, found %s", c, what, s.describe())
	}
	s.next()
	return nil
}

func (s *scanner) describe() string {
	if s.eof() {
		return "end of file"
	}
	return strconv.QuoteRune(rune(s.peek()))
}

// splitSource cuts a file into kernel blocks:
//
//	kernel name(A, B) {
//	  x = comm_current_core()
//	  comm_fence(); comm_barrier()
//	}
//
// Statements end at a newline or ';' unless a bracket is still open.
func splitSource(file string, src []byte) ([]kernelSource, *CompileError) {
	s := newScanner(file, src)
	var kernels []kernelSource
	for {
		s.skipSpace()
		if s.eof() {
			return kernels, nil
		}
		k, err := s.kernel()
		if err != nil {
			return nil, err
		}
		kernels = append(kernels, k)
	}
}

func (s *scanner) kernel() (kernelSource, *CompileError) {
	var k kernelSource
	k.pos = s.pos()
	if kw := s.ident(); kw != "kernel" {
		if kw == "" {
			kw = s.describe()
		}
		return k, errorf(ErrSyntax, k.pos, "expected \"kernel\", found %q", kw)
	}

	s.skipSpace()
	namePos := s.pos()
	if k.name = s.ident(); k.name == "" {
		return k, errorf(ErrSyntax, namePos, "expected kernel name, found %s", s.describe())
	}

	if err := s.expect('(', "after kernel name"); err != nil {
		return k, err
	}
	s.skipSpace()
	if s.peek() != ')' {
		for {
			s.skipSpace()
			p := s.pos()
			buf := s.ident()
			if buf == "" {
				return k, errorf(ErrSyntax, p, "expected buffer name, found %s", s.describe())
			}
			k.buffers = append(k.buffers, buf)
			k.bufPos = append(k.bufPos, p)
			s.skipSpace()
			if s.peek() != ',' {
				break
			}
			s.next()
		}
	}
	if err := s.expect(')', "after buffer list"); err != nil {
		return k, err
	}
	if err := s.expect('{', "to open kernel body"); err != nil {
		return k, err
	}

	if err := s.body(&k); err != nil {
		return k, err
	}
	return k, nil
}

// body reads statements up to the kernel's closing brace.
func (s *scanner) body(k *kernelSource) *CompileError {
	var (
		text  strings.Builder
		start ir.Pos
		off   int
		depth int
	)
	flush := func() {
		if t := strings.TrimRight(text.String(), " \t\r\n"); t != "" {
			k.stmts = append(k.stmts, stmtSource{text: t, pos: start, off: off})
		}
		text.Reset()
	}

	for {
		if s.eof() {
			return errorf(ErrSyntax, k.pos, "kernel %q is missing its closing brace", k.name)
		}
		c := s.peek()
		switch {
		case c == '"':
			if text.Len() == 0 {
				start, off = s.pos(), s.off
			}
			if err := s.copyString(&text); err != nil {
				return err
			}
		case s.atComment():
			s.skipComment()
		case depth == 0 && (c == '\n' || c == ';'):
			s.next()
			flush()
		case depth == 0 && c == '}':
			s.next()
			flush()
			return nil
		case text.Len() == 0 && (isSpace(c) || c == '\n'):
			s.next()
		default:
			if text.Len() == 0 {
				start, off = s.pos(), s.off
			}
			switch c {
			case '(', '[', '{':
				depth++
			case ')', ']', '}':
				depth--
				if depth < 0 {
					return errorf(ErrSyntax, s.pos(), "unbalanced %q", c)
				}
			}
			text.WriteByte(s.next())
		}
	}
}

// copyString copies a double-quoted literal, escapes included, verbatim.
func (s *scanner) copyString(text *strings.Builder) *CompileError {
	open := s.pos()
	text.WriteByte(s.next())
	for {
		if s.eof() || s.peek() == '\n' {
			return errorf(ErrSyntax, open, "unterminated string literal")
		}
		c := s.next()
		text.WriteByte(c)
		switch c {
		case '\\':
			if s.eof() {
				return errorf(ErrSyntax, open, "unterminated string literal")
			}
			text.WriteByte(s.next())
		case '"':
			return nil
		}
	}
}

// splitBinding recognizes "name = expr". It returns the bound name and the
// offset of expr within text.
func splitBinding(text string) (name string, exprOff int, ok bool) {
	i := 0
	for i < len(text) && isIdentByte(text[i], i == 0) {
		i++
	}
	if i == 0 {
		return "", 0, false
	}
	name = text[:i]
	for i < len(text) && isSpace(text[i]) {
		i++
	}
	if i >= len(text) || text[i] != '=' || (i+1 < len(text) && text[i+1] == '=') {
		return "", 0, false
	}
	i++
	for i < len(text) && isSpace(text[i]) {
		i++
	}
	return name, i, true
}

func isSpace(c byte) bool { return c == ' ' || c == '\t' || c == '\r' }

func isIdentByte(c byte, first bool) bool {
	switch {
	case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		return true
	case c >= '0' && c <= '9':
		return !first
	}
	return false
}
