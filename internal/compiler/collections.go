package compiler

import "kuroko/internal/lexer"

// listOrComprehension compiles `[ ... ]`: an element list, or — when the
// first element is followed by `for` — a list comprehension (spec.md §4.3
// "Comprehensions", desugared to a loop appending into a fresh list rather
// than a dedicated opcode, matching how the VM exposes append() as a
// regular list method).
func (c *Compiler) listOrComprehension(canAssign bool) {
	if c.match(lexer.TokenRBracket) {
		c.emitIndexed(opBuildListN, 0)
		return
	}

	// A lookahead past the first element decides plain-list vs
	// comprehension before any element code is emitted, since the two
	// forms build the result in incompatible ways (BuildListN vs an
	// append loop).
	if c.checkComprehensionAhead() {
		c.listComprehension()
		return
	}

	n := 0
	for {
		c.expressionAllowTernary()
		n++
		if !c.match(lexer.TokenComma) {
			break
		}
		if c.check(lexer.TokenRBracket) {
			break
		}
	}
	c.consume(lexer.TokenRBracket, "expected ']'")
	c.emitIndexed(opBuildListN, n)
}

// checkComprehensionAhead scans ahead past one balanced expression to see
// whether `for` follows, without disturbing the token stream for the
// non-comprehension path (spec.md §4.3's speculative-parse discipline, used
// here instead of a full backtracking parse since only one keyword's
// presence needs to be known).
func (c *Compiler) checkComprehensionAhead() bool {
	st := c.scanner.Tell()
	savedCur, savedPrev := c.cur, c.prev
	depth := 0
	found := false
	for {
		if c.cur.Type == lexer.TokenEOF {
			break
		}
		if depth == 0 && c.cur.Type == lexer.TokenFor {
			found = true
			break
		}
		if depth == 0 && (c.cur.Type == lexer.TokenRBracket || c.cur.Type == lexer.TokenRBrace || c.cur.Type == lexer.TokenEOL) {
			break
		}
		switch c.cur.Type {
		case lexer.TokenLBracket, lexer.TokenLBrace, lexer.TokenLParen:
			depth++
		case lexer.TokenRBracket, lexer.TokenRBrace, lexer.TokenRParen:
			depth--
		}
		c.prev = c.cur
		c.cur = c.scanner.ScanToken()
	}
	c.scanner.Rewind(st)
	c.cur, c.prev = savedCur, savedPrev
	return found
}

// listComprehension compiles `[expr for target in iter (if cond)*]`. It
// opens a fresh scope so the comprehension's loop variable(s) don't leak
// (spec.md §4.3).
func (c *Compiler) listComprehension() {
	c.emitIndexed(opBuildListN, 0)
	c.beginScope()
	c.compileCompClauses(func() {
		c.emitByte(byte(opDup))
		c.expressionAllowTernary()
		c.emitGlobalInvoke("append", 1)
		c.emitByte(byte(opPop))
	})
	c.endScope()
	c.consume(lexer.TokenRBracket, "expected ']' after comprehension")
}

// compileCompClauses compiles the `for target in iter (if cond)*` tail
// shared by list/set/dict comprehensions, invoking elementEmit to push the
// comprehension's element(s) once per admitted iteration. The accumulator
// (list/set/dict, built by the caller) must be on the stack below where
// this is invoked and stays there across the whole loop.
func (c *Compiler) compileCompClauses(elementEmit func()) {
	c.consume(lexer.TokenFor, "expected 'for' in comprehension")
	bind := c.parseForTargets()
	c.consume(lexer.TokenIn, "expected 'in' in comprehension")
	c.expressionAllowTernary()

	c.forIn(bind, func() {
		var skips []int
		for c.match(lexer.TokenIf) {
			c.expressionAllowTernary()
			skips = append(skips, c.emitJump(byte(opJumpIfFalse)))
		}
		elementEmit()
		for _, j := range skips {
			c.patchJump(j)
		}
	})
}

// dictOrSetOrComprehension compiles `{ ... }`: empty braces make an empty
// dict (spec.md §4.3 picks dict as the empty-literal default, matching
// Python), `{k: v, ...}` / `{k: v for ...}` make a dict, `{x, ...}` /
// `{x for ...}` make a set.
func (c *Compiler) dictOrSetOrComprehension(canAssign bool) {
	if c.match(lexer.TokenRBrace) {
		c.emitIndexed(opBuildMapN, 0)
		return
	}

	if c.checkComprehensionAhead() {
		c.braceComprehension()
		return
	}

	c.expressionAllowTernary()
	if c.match(lexer.TokenColon) {
		c.dictTail()
		return
	}
	c.setTail()
}

// braceComprehension compiles `{k: v for ...}` or `{x for ...}`, deciding
// dict-vs-set by checking whether a top-level `:` precedes the `for` — safe
// to do before emitting any code since checkComprehensionAhead already
// proved a `for` is present at depth 0.
func (c *Compiler) braceComprehension() {
	if c.isDictEntryAhead() {
		c.emitIndexed(opBuildMapN, 0)
		c.beginScope()
		c.compileCompClauses(func() {
			c.emitByte(byte(opDup))
			c.expressionAllowTernary()
			c.consume(lexer.TokenColon, "expected ':' in dict comprehension")
			c.expressionAllowTernary()
			c.emitGlobalInvoke("__setitem__", 2)
			c.emitByte(byte(opPop))
		})
		c.endScope()
		c.consume(lexer.TokenRBrace, "expected '}' after comprehension")
		return
	}
	c.emitIndexed(opBuildSetN, 0)
	c.beginScope()
	c.compileCompClauses(func() {
		c.emitByte(byte(opDup))
		c.expressionAllowTernary()
		c.emitGlobalInvoke("add", 1)
		c.emitByte(byte(opPop))
	})
	c.endScope()
	c.consume(lexer.TokenRBrace, "expected '}' after comprehension")
}

// isDictEntryAhead looks for a top-level `:` before the `for` that
// checkComprehensionAhead already confirmed is present.
func (c *Compiler) isDictEntryAhead() bool {
	st := c.scanner.Tell()
	savedCur, savedPrev := c.cur, c.prev
	depth := 0
	isDict := false
	for {
		if c.cur.Type == lexer.TokenEOF || (depth == 0 && c.cur.Type == lexer.TokenFor) {
			break
		}
		if depth == 0 && c.cur.Type == lexer.TokenColon {
			isDict = true
			break
		}
		switch c.cur.Type {
		case lexer.TokenLBracket, lexer.TokenLBrace, lexer.TokenLParen:
			depth++
		case lexer.TokenRBracket, lexer.TokenRBrace, lexer.TokenRParen:
			depth--
		}
		c.prev = c.cur
		c.cur = c.scanner.ScanToken()
	}
	c.scanner.Rewind(st)
	c.cur, c.prev = savedCur, savedPrev
	return isDict
}

func (c *Compiler) dictTail() {
	// first key already on stack; consume its value now.
	c.expressionAllowTernary()
	n := 1
	for c.match(lexer.TokenComma) {
		if c.check(lexer.TokenRBrace) {
			break
		}
		c.expressionAllowTernary()
		c.consume(lexer.TokenColon, "expected ':' in dict literal")
		c.expressionAllowTernary()
		n++
	}
	c.consume(lexer.TokenRBrace, "expected '}'")
	c.emitIndexed(opBuildMapN, n)
}

func (c *Compiler) setTail() {
	n := 1
	for c.match(lexer.TokenComma) {
		if c.check(lexer.TokenRBrace) {
			break
		}
		c.expressionAllowTernary()
		n++
	}
	c.consume(lexer.TokenRBrace, "expected '}'")
	c.emitIndexed(opBuildSetN, n)
}
