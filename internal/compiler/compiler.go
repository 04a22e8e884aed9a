// Package compiler implements the single-pass Pratt parser/compiler
// (spec.md §4.3): it consumes internal/lexer tokens and emits directly
// into a value.Chunk, with no intermediate AST. This replaces the
// teacher's AST-walking compiler (internal/parser + internal/compiler's
// Visit* methods) with the clox/kuroko architecture. Nested functions are
// compiled in a stack of Frames chained through Frame.enclosing, which is
// how locals and upvalues are resolved.
package compiler

import (
	"fmt"

	"kuroko/internal/heap"
	"kuroko/internal/lexer"
	"kuroko/internal/value"
)

// FunctionType distinguishes the kind of function a Frame is building,
// controlling slot-0 reservation and implicit-return shape (spec.md
// §4.3 "Function emission").
type FunctionType int

const (
	FuncModule FunctionType = iota
	FuncFunction
	FuncMethod
	FuncInit
	FuncLambda
	FuncStatic
	FuncProperty
)

// Local is one entry of a frame's locals table.
type Local struct {
	Name       string
	Depth      int // -1 while declared-but-uninitialized
	IsCaptured bool
}

// UpvalueRef records how a child frame reaches a variable in an enclosing
// frame: either directly (IsLocal, Index is the enclosing frame's local
// slot) or transitively (Index is the enclosing frame's own upvalue
// index) — spec.md §4.3 "Locals and upvalues".
type UpvalueRef struct {
	IsLocal bool
	Index   int
}

type loopContext struct {
	breakJumps    []int
	continueStart int
	localBase     int // locals count at loop start, for break/continue unwinding
	parent        *loopContext
}

// Frame is one nested Compiler activation — one per function/lambda/module
// body/comprehension being compiled (spec.md §4.3).
type Frame struct {
	enclosing   *Frame
	fn          *value.FunctionObj
	chunk       *value.Chunk
	Type        FunctionType
	scopeDepth  int
	locals      []Local
	upvalues    []UpvalueRef
	loop        *loopContext
	sawYield    bool // set by a `yield` compiled anywhere in this frame's own body
}

// classFrame tracks the enclosing class name for validating self/super
// (spec.md §4.3).
type classFrame struct {
	name       string
	hasBase    bool
	enclosing  *classFrame
}

// Compiler drives the whole single-pass translation. One Compiler handles
// one full source compile (possibly pushing many nested Frames for nested
// functions/comprehensions).
type Compiler struct {
	scanner *lexer.Scanner
	heap    *heap.Heap
	file    string

	cur   Token
	prev  Token
	hadError  bool
	panicMode bool
	errMsg    string

	frame      *Frame
	classFrame *classFrame

	// indentWidths tracks the enclosing-block indentation width stack used
	// by block()/matchSiblingClause() (spec.md §4.3 "Indentation-based
	// blocks").
	indentWidths []int

	// inClassBody is true only while compiling a class's own immediate
	// suite (not inside a method's nested body), so `def` there binds as
	// a method instead of a function (spec.md §4.3 "Classes").
	inClassBody bool
	inDel       bool
}

// Token is a thin rename of lexer.Token kept local so compiler files don't
// need to prefix every reference with `lexer.`.
type Token = lexer.Token

// New creates a Compiler ready to compile one module.
func New(src, filename string, h *heap.Heap) *Compiler {
	c := &Compiler{
		scanner: lexer.New(src, filename),
		heap:    h,
		file:    filename,
	}
	moduleFn := &value.FunctionObj{Name: "<module>", Chunk: value.NewChunk(filename)}
	c.frame = &Frame{fn: moduleFn, chunk: moduleFn.Chunk, Type: FuncModule}
	// slot 0 is reserved for the module instance itself, mirroring how
	// methods reserve slot 0 for `self` (spec.md §4.3 step 1).
	c.frame.locals = append(c.frame.locals, Local{Name: "", Depth: 0})
	return c
}

// Compile parses and compiles the whole token stream, returning the
// top-level Function (spec.md §6 entry point `compile`).
func Compile(src, filename string, h *heap.Heap) (*value.FunctionObj, error) {
	c := New(src, filename, h)
	c.advance()
	c.skipBlankLines()
	for !c.check(lexer.TokenEOF) {
		c.declaration()
		c.skipBlankLines()
	}
	c.emitByte(byte(opReturnModule))
	if c.hadError {
		return nil, &CompileError{Message: c.errMsg}
	}
	return c.frame.fn, nil
}

// CompileError is returned by Compile on the first unrecoverable parse
// error once panic-mode synchronization gives up (spec.md §7).
type CompileError struct {
	Message string
}

func (e *CompileError) Error() string { return e.Message }

// --- token stream helpers --------------------------------------------------

func (c *Compiler) advance() {
	c.prev = c.cur
	for {
		tok := c.scanner.ScanToken()
		if tok.Type == lexer.TokenIndentation {
			// Blank/comment-only lines produce an indentation token whose
			// very next token is EOL; those carry no block structure and
			// are swallowed here so block()/matchDedent() only ever see
			// indentation tokens that start a real statement line.
			next := c.scanner.ScanToken()
			if next.Type == lexer.TokenEOL {
				continue
			}
			c.scanner.Unget(next)
			c.cur = tok
			break
		}
		if tok.Type != lexer.TokenError {
			c.cur = tok
			break
		}
		c.errorAtCurrent(tok.Message)
	}
}

func (c *Compiler) skipBlankLines() {
	for c.check(lexer.TokenEOL) {
		c.advance()
	}
}

func (c *Compiler) check(t lexer.TokenType) bool { return c.cur.Type == t }

func (c *Compiler) checkPrev(t lexer.TokenType) bool { return c.prev.Type == t }

func (c *Compiler) match(t lexer.TokenType) bool {
	if !c.check(t) {
		return false
	}
	c.advance()
	return true
}

func (c *Compiler) consume(t lexer.TokenType, msg string) {
	if c.cur.Type == t {
		c.advance()
		return
	}
	c.errorAtCurrent(msg)
}

func (c *Compiler) errorAtCurrent(msg string) { c.errorAt(c.cur, msg) }
func (c *Compiler) error(msg string)          { c.errorAt(c.prev, msg) }

func (c *Compiler) errorAt(tok Token, msg string) {
	if c.panicMode {
		return
	}
	c.panicMode = true
	c.hadError = true
	loc := fmt.Sprintf("%s:%d:%d", c.file, tok.Line, tok.Column)
	c.errMsg = fmt.Sprintf("SyntaxError: %s (%s)", msg, loc)
}

// synchronize consumes tokens until a statement boundary, per spec.md §7.
func (c *Compiler) synchronize() {
	c.panicMode = false
	for c.cur.Type != lexer.TokenEOF {
		if c.prev.Type == lexer.TokenEOL {
			return
		}
		switch c.cur.Type {
		case lexer.TokenClass, lexer.TokenDef, lexer.TokenLet, lexer.TokenFor,
			lexer.TokenIf, lexer.TokenWhile, lexer.TokenReturn:
			return
		}
		c.advance()
	}
}

// --- emission ---------------------------------------------------------------

func (c *Compiler) currentChunk() *value.Chunk { return c.frame.chunk }

func (c *Compiler) emitByte(b byte) {
	c.currentChunk().Write(b, c.prev.Line)
}

func (c *Compiler) emitBytes(bs ...byte) {
	for _, b := range bs {
		c.emitByte(b)
	}
}

func (c *Compiler) emitU24(n int) {
	c.emitBytes(byte(n>>16), byte(n>>8), byte(n))
}

func (c *Compiler) emitReturnNone() {
	c.emitByte(byte(opNone))
	c.emitByte(byte(opReturn))
}

// emitConstant appends v to the constant pool and emits the
// short/long-operand CONSTANT form depending on index size (spec.md
// §4.3 "Bytecode emission").
func (c *Compiler) emitConstant(v value.Value) {
	idx := c.currentChunk().AddConstant(v)
	c.emitIndexed(opConstant, idx)
}

func (c *Compiler) internString(s string) value.Value {
	return value.ObjVal(c.heap.InternString(s))
}

// emitJump emits a two-byte-operand jump opcode with a placeholder offset
// and returns the offset of the placeholder for later patching (spec.md
// §4.3 "Bytecode emission").
func (c *Compiler) emitJump(op byte) int {
	c.emitByte(op)
	c.emitByte(0xff)
	c.emitByte(0xff)
	return c.currentChunk().Count() - 2
}

func (c *Compiler) patchJump(offset int) {
	jump := c.currentChunk().Count() - offset - 2
	if jump > 0xFFFF {
		c.error("jump offset too large")
		return
	}
	c.currentChunk().Code[offset] = byte(jump >> 8)
	c.currentChunk().Code[offset+1] = byte(jump)
}

func (c *Compiler) emitLoop(loopStart int) {
	c.emitByte(byte(opLoop))
	offset := c.currentChunk().Count() - loopStart + 2
	if offset > 0xFFFF {
		c.error("loop body too large")
	}
	c.emitByte(byte(offset >> 8))
	c.emitByte(byte(offset))
}
