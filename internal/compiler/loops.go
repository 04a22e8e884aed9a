package compiler

import "kuroko/internal/lexer"

// forIn compiles the shared shape behind both the `for x in expr:` statement
// and comprehensions: evaluate expr, get its iterator, then loop calling
// FOR_ITER until it yields itself back (the sentinel-exhaustion protocol,
// spec.md §4.3/§5 "Iterator protocol") — no separate StopIteration opcode.
// bindTarget runs once per iteration with the loop value on top of stack and
// must consume it (binding to a local or doing whatever a comprehension
// body needs); body then runs for the loop body/element expression.
func (c *Compiler) forIn(bindTarget func(), body func()) {
	c.emitGlobalInvoke("__iter__", 0)

	loop := &loopContext{parent: c.frame.loop, localBase: len(c.frame.locals)}
	c.frame.loop = loop

	loopStart := c.currentChunk().Count()
	loop.continueStart = loopStart
	exitJump := c.emitJump(byte(opForIter))
	bindTarget()
	body()
	c.emitLoop(loopStart)
	c.patchJump(exitJump)
	c.emitByte(byte(opPop)) // discard the exhausted iterator

	for _, j := range loop.breakJumps {
		c.patchJump(j)
	}
	c.frame.loop = loop.parent
}

// whileLoop compiles `while cond: body`.
func (c *Compiler) whileLoop(cond func(), body func()) {
	loop := &loopContext{parent: c.frame.loop, localBase: len(c.frame.locals)}
	c.frame.loop = loop

	loopStart := c.currentChunk().Count()
	loop.continueStart = loopStart
	cond()
	exitJump := c.emitJump(byte(opJumpIfFalse))
	body()
	c.emitLoop(loopStart)
	c.patchJump(exitJump)

	for _, j := range loop.breakJumps {
		c.patchJump(j)
	}
	c.frame.loop = loop.parent
}

func (c *Compiler) compileBreak() {
	if c.frame.loop == nil {
		c.error("'break' outside a loop")
		return
	}
	loop := c.frame.loop
	for i := len(c.frame.locals) - 1; i >= loop.localBase; i-- {
		if c.frame.locals[i].IsCaptured {
			c.emitByte(byte(opCloseUpvalue))
		} else {
			c.emitByte(byte(opPop))
		}
	}
	j := c.emitJump(byte(opJump))
	loop.breakJumps = append(loop.breakJumps, j)
}

func (c *Compiler) compileContinue() {
	if c.frame.loop == nil {
		c.error("'continue' outside a loop")
		return
	}
	loop := c.frame.loop
	for i := len(c.frame.locals) - 1; i >= loop.localBase; i-- {
		if c.frame.locals[i].IsCaptured {
			c.emitByte(byte(opCloseUpvalue))
		} else {
			c.emitByte(byte(opPop))
		}
	}
	c.emitLoop(loop.continueStart)
}

// parseForTargets parses the `x` / `x, y` target list of a `for ... in`
// clause, declaring each as a new local in the current (already-opened)
// scope, and returns a bindTarget thunk for forIn.
func (c *Compiler) parseForTargets() func() {
	var names []string
	c.consume(lexer.TokenIdent, "expected loop variable name")
	names = append(names, c.prev.Lexeme)
	for c.match(lexer.TokenComma) {
		c.consume(lexer.TokenIdent, "expected loop variable name")
		names = append(names, c.prev.Lexeme)
	}
	return func() {
		if len(names) > 1 {
			c.emitIndexed(opUnpackN, len(names))
		}
		for _, n := range names {
			c.declareLocal(n)
			c.markInitialized()
		}
	}
}
