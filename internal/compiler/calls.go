package compiler

import (
	"kuroko/internal/lexer"
	"kuroko/internal/value"
)

// call compiles a call's argument list: positional expressions, `*expr`/
// `**expr` expansion, and `name=value` keywords. argumentList always tags
// each logical argument with a leading marker (plain/list-expand/
// dict-expand/keyword-name), and KWARGS always runs to collapse those
// tagged forms into a clean positional+keyword bundle before CALL — unlike
// the untagged, fixed-arity argument lists emitGlobalInvoke emits for
// compiler-desugared dunder calls, which CALL/INVOKE consume directly off
// the stack with no KWARGS step (spec.md §4.3 "Calls").
func (c *Compiler) call(canAssign bool) {
	argc, _ := c.argumentList()
	c.emitIndexed(opKwargs, argc)
	c.emitIndexed(opCall, argc)
}

// argumentList parses `( ... )` and returns the number of logical
// arguments (each of which pushes two slots, a tag and a value; the callee
// is not counted) and whether any of them were keyword/expansion forms.
func (c *Compiler) argumentList() (int, bool) {
	argc := 0
	hasSpecial := false
	if !c.check(lexer.TokenRParen) {
		for {
			if c.match(lexer.TokenStar) {
				// Every special (non-plain) argument form pushes its tag
				// BEFORE its value, so OpKwargs can walk the argc logical
				// forms uniformly regardless of which form each one is.
				c.emitConstant(value.Kwargs(value.KwargsList))
				c.expressionAllowTernary()
				hasSpecial = true
			} else if c.match(lexer.TokenStarStar) {
				c.emitConstant(value.Kwargs(value.KwargsDict))
				c.expressionAllowTernary()
				hasSpecial = true
			} else if c.check(lexer.TokenIdent) && c.peekIsKeywordArg() {
				c.advance()
				name := c.prev.Lexeme
				c.advance() // '='
				c.emitConstant(c.internString(name))
				c.expressionAllowTernary()
				hasSpecial = true
			} else {
				c.emitConstant(value.Kwargs(value.KwargsNil)) // "plain positional" tag
				c.expressionAllowTernary()
			}
			argc++
			if !c.match(lexer.TokenComma) {
				break
			}
			if c.check(lexer.TokenRParen) {
				break
			}
		}
	}
	c.consume(lexer.TokenRParen, "expected ')' after arguments")
	return argc, hasSpecial
}

// peekIsKeywordArg looks one token ahead (via scanner Tell/Rewind, per
// spec.md §4.3's speculative-parsing discipline) to tell `name=value` from
// a plain expression starting with an identifier.
func (c *Compiler) peekIsKeywordArg() bool {
	st := c.scanner.Tell()
	savedCur, savedPrev := c.cur, c.prev
	next := c.scanner.ScanToken()
	isKw := next.Type == lexer.TokenEq
	c.scanner.Rewind(st)
	c.cur, c.prev = savedCur, savedPrev
	return isKw
}

func (c *Compiler) dot(canAssign bool) {
	if c.match(lexer.TokenLParen) {
		c.attributePack(canAssign)
		return
	}
	c.consume(lexer.TokenIdent, "expected property name after '.'")
	name := c.prev.Lexeme
	idx := c.currentChunk().AddConstant(c.internString(name))

	if c.inDel && c.atEndOfTarget() {
		c.emitIndexed(opDelProperty, idx)
		return
	}
	if canAssign && c.match(lexer.TokenEq) {
		c.expressionAllowTernary()
		c.emitIndexed(opSetProperty, idx)
		return
	}
	if canAssign && isCompoundAssign(c.cur.Type) {
		op := c.cur.Type
		c.advance()
		c.emitByte(byte(opDup))
		c.emitIndexed(opGetProperty, idx)
		c.expressionAllowTernary()
		c.emitCompoundOp(op)
		c.emitIndexed(opSetProperty, idx)
		return
	}
	if c.check(lexer.TokenLParen) {
		c.advance()
		argc, _ := c.argumentList()
		c.emitIndexed(opKwargs, argc)
		c.emitByte(byte(opInvoke))
		c.emitU24(idx)
		c.emitByte(byte(argc))
		return
	}
	c.emitIndexed(opGetProperty, idx)
}

// atEndOfTarget is a crude lookahead used by `del` targets: true when the
// attribute reference is not itself further subscripted/dotted, i.e. it is
// the final component of the del target.
func (c *Compiler) atEndOfTarget() bool {
	return !c.check(lexer.TokenDot) && !c.check(lexer.TokenLBracket)
}

// attributePack compiles `a.(x, y, z)`: either reads N attributes as a
// tuple, or — when followed by `=` — unpacks/distributes into them (spec.md
// §4.3 "Attribute pack").
func (c *Compiler) attributePack(canAssign bool) {
	var names []string
	for {
		c.consume(lexer.TokenIdent, "expected attribute name")
		names = append(names, c.prev.Lexeme)
		if !c.match(lexer.TokenComma) {
			break
		}
	}
	c.consume(lexer.TokenRParen, "expected ')' after attribute list")

	if canAssign && c.match(lexer.TokenEq) {
		// Entering here the object is on the stack exactly once. For each
		// target but the last we DUP it, consume one rhs expression, SETPROP
		// (which leaves the assigned value back on top), then POP that value
		// so the next iteration sees a clean [obj] again. The final
		// iteration's assigned value is left as the whole pack-assignment's
		// result, with the original obj swapped out from under it. Unlike a
		// single-target `a.(x) = t`, this does not unpack one tuple rhs
		// across multiple names — each name takes its own comma-separated
		// expression.
		for i, n := range names {
			if i > 0 {
				c.consume(lexer.TokenComma, "expected ',' between attribute-pack targets' values")
			}
			if i < len(names)-1 {
				c.emitByte(byte(opDup))
			}
			c.expressionAllowTernary()
			idx := c.currentChunk().AddConstant(c.internString(n))
			c.emitIndexed(opSetProperty, idx)
			if i < len(names)-1 {
				c.emitByte(byte(opPop))
			}
		}
		c.emitByte(byte(opSwap))
		c.emitByte(byte(opPop))
		return
	}

	for _, n := range names {
		c.emitByte(byte(opDup))
		idx := c.currentChunk().AddConstant(c.internString(n))
		c.emitIndexed(opGetProperty, idx)
	}
	c.emitIndexed(opBuildTupleN, len(names))
	c.emitByte(byte(opSwap))
	c.emitByte(byte(opPop)) // drop the original object reference
}

func (c *Compiler) subscript(canAssign bool) {
	if c.matchSliceColon(canAssign) {
		return
	}
	c.expressionAllowTernary()
	if c.match(lexer.TokenColon) {
		c.sliceTail(canAssign)
		return
	}
	c.consume(lexer.TokenRBracket, "expected ']'")

	if c.inDel {
		c.emitGlobalInvoke("__delitem__", 1)
		return
	}
	if canAssign && c.match(lexer.TokenEq) {
		c.expressionAllowTernary()
		c.emitGlobalInvoke("__setitem__", 2)
		return
	}
	if canAssign && isCompoundAssign(c.cur.Type) {
		op := c.cur.Type
		c.advance()
		c.emitByte(byte(opDup)) // obj
		// stack: obj, obj, index -- need to preserve both obj and index for setitem
		c.emitGlobalInvoke("__getitem__", 1)
		c.expressionAllowTernary()
		c.emitCompoundOp(op)
		c.emitGlobalInvoke("__setitem__", 2)
		return
	}
	c.emitGlobalInvoke("__getitem__", 1)
}

// matchSliceColon handles the rare `a[:j]` form where the start index is
// omitted; returns false (deferring to the normal path) in all other
// cases — kept simple since step slicing is explicitly unsupported
// (spec.md §4.3 "Subscript ... Step is not supported").
func (c *Compiler) matchSliceColon(canAssign bool) bool {
	if !c.match(lexer.TokenColon) {
		return false
	}
	c.emitByte(byte(opNone)) // omitted start
	c.sliceTail(canAssign)
	return true
}

func (c *Compiler) sliceTail(canAssign bool) {
	if !c.check(lexer.TokenRBracket) {
		c.expressionAllowTernary()
	} else {
		c.emitByte(byte(opNone))
	}
	c.consume(lexer.TokenRBracket, "expected ']' after slice")
	if c.inDel {
		c.emitGlobalInvoke("__delslice__", 2)
		return
	}
	if canAssign && c.match(lexer.TokenEq) {
		c.expressionAllowTernary()
		c.emitGlobalInvoke("__setslice__", 3)
		return
	}
	c.emitGlobalInvoke("__getslice__", 2)
}

// emitGlobalInvoke emits an INVOKE of a dunder method on whatever object is
// under the already-pushed arguments (used for subscript sugar, which
// desugars to __getitem__/__setitem__/etc. calls per spec.md §4.3).
func (c *Compiler) emitGlobalInvoke(method string, argc int) {
	idx := c.currentChunk().AddConstant(c.internString(method))
	c.emitByte(byte(opInvoke))
	c.emitU24(idx)
	c.emitByte(byte(argc))
}

// emitGlobalCall compiles a call to a global name with argc already-pushed
// positional arguments (used for desugaring bytes-literal construction).
func (c *Compiler) emitGlobalCall(name string, argc int) {
	c.namedVariableLoadOnly(name)
	c.emitIndexed(opCall, argc)
}

func (c *Compiler) namedVariableLoadOnly(name string) {
	idx := c.currentChunk().AddConstant(c.internString(name))
	c.emitIndexed(opGetGlobal, idx)
}
