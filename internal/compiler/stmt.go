package compiler

import "kuroko/internal/lexer"

// --- indentation-based blocks ----------------------------------------------

// currentWidth returns the indentation width of the block currently being
// compiled (0 at module level), per spec.md §4.3 "Indentation-based blocks".
func (c *Compiler) currentWidth() int {
	if n := len(c.indentWidths); n > 0 {
		return c.indentWidths[n-1]
	}
	return 0
}

// block compiles an indented suite following a `:`. Module-level lines carry
// no TokenIndentation at all (the scanner only emits one for indented
// lines), so a block's first line is always a genuine INDENTATION token
// whose width exceeds the enclosing block's.
func (c *Compiler) block() {
	if !c.match(lexer.TokenEOL) {
		// allow a single-line suite: `if x: y`
		c.statementOrDeclaration()
		return
	}
	c.skipBlankLines()
	if !c.check(lexer.TokenIndentation) {
		c.errorAtCurrent("expected an indented block")
		return
	}
	width := c.cur.Indent
	if width <= c.currentWidth() {
		c.errorAtCurrent("expected an indented block")
		return
	}
	c.indentWidths = append(c.indentWidths, width)
	for c.check(lexer.TokenIndentation) && c.cur.Indent == width {
		c.advance() // consume this line's indentation token
		c.declaration()
		c.skipBlankLines()
	}
	c.indentWidths = c.indentWidths[:len(c.indentWidths)-1]
}

func (c *Compiler) statementOrDeclaration() {
	switch {
	case c.match(lexer.TokenDef):
		ft := FuncFunction
		if c.inClassBody {
			ft = FuncMethod
		}
		c.funcDeclaration(ft)
	case c.match(lexer.TokenClass):
		c.classDeclaration()
	case c.match(lexer.TokenLet):
		c.letDeclaration()
	default:
		c.statement()
	}
}

// peekClauseAt looks past the current position to decide whether a sibling
// clause (`elif`/`else`/`except`/`finally`, or a continuation `@decorator`/
// `def`) follows at the same indentation width as the statement that just
// finished its own block — without consuming anything when it doesn't
// (spec.md §4.3's speculative-parse discipline, the same Tell/Rewind
// technique checkComprehensionAhead uses).
func (c *Compiler) peekClauseAt(width int, tokType lexer.TokenType) bool {
	if width == 0 {
		return c.check(tokType)
	}
	if !c.check(lexer.TokenIndentation) || c.cur.Indent != width {
		return false
	}
	st := c.scanner.Tell()
	savedCur, savedPrev := c.cur, c.prev
	c.advance() // steps past the indentation token, onto the line's first token
	isMatch := c.cur.Type == tokType
	c.scanner.Rewind(st)
	c.cur, c.prev = savedCur, savedPrev
	return isMatch
}

// matchSiblingClause consumes width's indentation token (if any) plus
// tokType when peekClauseAt confirms the match; otherwise leaves the token
// stream untouched so the enclosing block() loop sees the line normally.
func (c *Compiler) matchSiblingClause(width int, tokType lexer.TokenType) bool {
	if !c.peekClauseAt(width, tokType) {
		return false
	}
	if width > 0 {
		c.advance()
	}
	c.advance()
	return true
}

// endStatement consumes a simple statement's terminator: `;` (allowing
// several simple statements on one line), a newline, or EOF.
func (c *Compiler) endStatement() {
	if c.match(lexer.TokenSemicolon) {
		return
	}
	if c.match(lexer.TokenEOL) {
		return
	}
	if c.check(lexer.TokenEOF) {
		return
	}
	c.errorAtCurrent("expected newline after statement")
}

// --- declarations ------------------------------------------------------------

func (c *Compiler) declaration() {
	if c.panicMode {
		c.synchronize()
	}
	switch {
	case c.match(lexer.TokenAt):
		c.decorated()
	case c.match(lexer.TokenDef):
		ft := FuncFunction
		if c.inClassBody {
			ft = FuncMethod
		}
		c.funcDeclaration(ft)
	case c.match(lexer.TokenClass):
		c.classDeclaration()
	case c.match(lexer.TokenLet):
		c.letDeclaration()
	default:
		c.statement()
	}
}

// letDeclaration compiles `let name` / `let name = expr`. Inside a class
// body's immediate suite it instead binds a class-level field (spec.md
// §4.3 "Classes"), desugared to SETPROPERTY on the class object sitting on
// the stack throughout the suite.
func (c *Compiler) letDeclaration() {
	c.consume(lexer.TokenIdent, "expected variable name")
	name := c.prev.Lexeme

	if c.inClassBody {
		c.emitByte(byte(opDup))
		if c.match(lexer.TokenEq) {
			c.expressionAllowTernary()
		} else {
			c.emitByte(byte(opNone))
		}
		idx := c.currentChunk().AddConstant(c.internString(name))
		c.emitIndexed(opSetProperty, idx)
		c.emitByte(byte(opPop))
		c.endStatement()
		return
	}

	isLocal := c.frame.scopeDepth > 0
	if isLocal {
		c.declareLocal(name)
	}
	if c.match(lexer.TokenEq) {
		c.expressionAllowTernary()
	} else {
		c.emitByte(byte(opNone))
	}
	if isLocal {
		c.markInitialized()
	} else {
		idx := c.currentChunk().AddConstant(c.internString(name))
		c.emitIndexed(opDefineGlobal, idx)
	}
	c.endStatement()
}

// funcDeclaration compiles `def name(params): body`, binding the result as
// a method (inside a class's own suite), a local, or a global depending on
// context (spec.md §4.3 "Function emission").
func (c *Compiler) funcDeclaration(ft FunctionType) {
	wasInClassBody := c.inClassBody
	c.consume(lexer.TokenIdent, "expected function name")
	name := c.prev.Lexeme
	if wasInClassBody && name == "init" {
		ft = FuncInit
	}

	isLocal := !wasInClassBody && c.frame.scopeDepth > 0
	if isLocal {
		// Declared (and marked initialized) before the body compiles so a
		// recursive call inside the body resolves as an upvalue/local
		// referring to this very function.
		c.declareLocal(name)
		c.markInitialized()
	}

	nameIdx := c.currentChunk().AddConstant(c.internString(name))

	c.inClassBody = false
	c.emitFunction(ft, name, func() {
		c.parameterList()
		c.consume(lexer.TokenColon, "expected ':' after parameters")
		c.block()
	})
	c.inClassBody = wasInClassBody

	switch {
	case wasInClassBody:
		c.emitIndexed(opMethod, nameIdx)
	case !isLocal:
		c.emitIndexed(opDefineGlobal, nameIdx)
	}
}

// decorated compiles one or more stacked `@decorator` lines followed by a
// `def`, recognizing `staticmethod`/`property` inside a class body (spec.md
// §4.3 "Classes"). Unrecognized decorator names are accepted but have no
// effect beyond the generic FuncMethod binding — this mirrors how plain
// `def` is handled, there being no general decorator-application opcode.
func (c *Compiler) decorated() {
	width := c.currentWidth()
	c.consume(lexer.TokenIdent, "expected decorator name")
	names := []string{c.prev.Lexeme}
	c.endStatement()
	for c.matchSiblingClause(width, lexer.TokenAt) {
		c.consume(lexer.TokenIdent, "expected decorator name")
		names = append(names, c.prev.Lexeme)
		c.endStatement()
	}
	if !c.matchSiblingClause(width, lexer.TokenDef) {
		c.errorAtCurrent("expected 'def' after decorator")
		return
	}

	isStatic, isProperty := false, false
	for _, d := range names {
		switch d {
		case "staticmethod":
			isStatic = true
		case "property":
			isProperty = true
		}
	}
	ft := FuncFunction
	if c.inClassBody {
		ft = funcTypeForDecorators(isStatic, isProperty)
	}
	c.funcDeclaration(ft)
}

// classDeclaration compiles `class Name(Base):` / `class Name:`. The class
// object is built once with OpClass and left on the stack for the whole
// suite; each `def` inside binds a method onto it with OpMethod, each `let`
// sets a field onto it directly (spec.md §4.3 "Classes").
func (c *Compiler) classDeclaration() {
	c.consume(lexer.TokenIdent, "expected class name")
	name := c.prev.Lexeme
	isLocal := c.frame.scopeDepth > 0
	if isLocal {
		c.declareLocal(name)
		c.markInitialized()
	}

	hasBase := false
	if c.match(lexer.TokenLParen) {
		if !c.check(lexer.TokenRParen) {
			c.consume(lexer.TokenIdent, "expected base class name")
			c.namedVariableLoadOnly(c.prev.Lexeme)
			hasBase = true
		}
		c.consume(lexer.TokenRParen, "expected ')' after base class list")
	}

	nameIdx := c.currentChunk().AddConstant(c.internString(name))
	c.emitIndexed(opClass, nameIdx)
	if hasBase {
		c.emitByte(byte(opInherit))
	}

	cf := &classFrame{name: name, hasBase: hasBase, enclosing: c.classFrame}
	c.classFrame = cf
	wasInClassBody := c.inClassBody
	c.inClassBody = true

	c.consume(lexer.TokenColon, "expected ':' after class header")
	c.beginScope()
	c.block()
	c.endScope()

	c.inClassBody = wasInClassBody
	c.classFrame = cf.enclosing

	if !isLocal {
		c.emitIndexed(opDefineGlobal, nameIdx)
	}
}

// --- statements --------------------------------------------------------------

func (c *Compiler) statement() {
	switch {
	case c.match(lexer.TokenIf):
		c.ifStatement()
	case c.match(lexer.TokenWhile):
		c.whileStatement()
	case c.match(lexer.TokenFor):
		c.forStatement()
	case c.match(lexer.TokenTry):
		c.tryStatement()
	case c.match(lexer.TokenWith):
		c.withStatement()
	case c.match(lexer.TokenReturn):
		c.returnStatement()
	case c.match(lexer.TokenYield):
		c.yieldStatement()
	case c.match(lexer.TokenRaise):
		c.raiseStatement()
	case c.match(lexer.TokenBreak):
		c.compileBreak()
		c.endStatement()
	case c.match(lexer.TokenContinue):
		c.compileContinue()
		c.endStatement()
	case c.match(lexer.TokenPass):
		c.endStatement()
	case c.match(lexer.TokenDel):
		c.delStatement()
	case c.match(lexer.TokenImport):
		c.importStatement()
	case c.match(lexer.TokenFrom):
		c.fromImportStatement()
	default:
		c.expressionStatement()
	}
}

func (c *Compiler) expressionStatement() {
	c.expressionAllowTernary()
	c.emitByte(byte(opPop))
	c.endStatement()
}

// ifStatement compiles `if cond: body (elif cond: body)* (else: body)?`.
// elif/else clauses sit as sibling lines at the same indentation as the
// `if` itself, so each is discovered via matchSiblingClause rather than
// being nested inside the if's own block() (spec.md §4.3 "if/elif/else").
func (c *Compiler) ifStatement() {
	c.compileIfChain(c.currentWidth())
}

func (c *Compiler) compileIfChain(width int) {
	c.expressionAllowTernary()
	c.consume(lexer.TokenColon, "expected ':' after condition")
	thenJump := c.emitJump(byte(opJumpIfFalse))
	c.beginScope()
	c.block()
	c.endScope()
	endJump := c.emitJump(byte(opJump))
	c.patchJump(thenJump)

	if c.matchSiblingClause(width, lexer.TokenElif) {
		c.compileIfChain(width)
		c.patchJump(endJump)
		return
	}
	if c.matchSiblingClause(width, lexer.TokenElse) {
		c.consume(lexer.TokenColon, "expected ':' after 'else'")
		c.beginScope()
		c.block()
		c.endScope()
	}
	c.patchJump(endJump)
}

func (c *Compiler) whileStatement() {
	c.whileLoop(
		func() { c.expressionAllowTernary() },
		func() {
			c.consume(lexer.TokenColon, "expected ':' after while condition")
			c.beginScope()
			c.block()
			c.endScope()
		},
	)
}

// forStatement compiles `for target(, target)* in expr: body`. Spec.md's
// iterator protocol covers every iterable the language exposes, so there is
// no separate C-style `for init; cond; post:` form.
func (c *Compiler) forStatement() {
	c.beginScope()
	bind := c.parseForTargets()
	c.consume(lexer.TokenIn, "expected 'in' after for-loop targets")
	c.expressionAllowTernary()
	c.consume(lexer.TokenColon, "expected ':' after for-loop iterable")
	c.forIn(bind, func() {
		c.block()
	})
	c.endScope()
}

// tryStatement compiles `try: ... (except [Class [as name]]: ...)*
// (finally: ...)?`. PushTry installs a Handler marker the VM's unwind logic
// consults (spec.md §4.3 "Exceptions"); each matched except clause pops it
// before running its body, and falling through every except without a match
// re-raises.
func (c *Compiler) tryStatement() {
	width := c.currentWidth()
	c.consume(lexer.TokenColon, "expected ':' after 'try'")

	// The Handler marker is tracked as an ordinary (unnamed) local of the
	// try-body's own scope, so the existing beginScope/endScope bookkeeping
	// (and break/continue's unwind loop) pops it like any other local on
	// every normal, break, or continue exit path — no separate opPopTry
	// emission needed here.
	c.beginScope()
	pushTry := c.emitJump(byte(opPushTry))
	c.declareLocal("")
	c.markInitialized()
	c.block()
	c.endScope()

	var endJumps []int
	endJumps = append(endJumps, c.emitJump(byte(opJump)))
	c.patchJump(pushTry)

	hasExcept := false
	for c.matchSiblingClause(width, lexer.TokenExcept) {
		hasExcept = true
		hasClass := !c.check(lexer.TokenColon) && !c.check(lexer.TokenAs)
		var className string
		if hasClass {
			c.consume(lexer.TokenIdent, "expected exception class name")
			className = c.prev.Lexeme
		}
		hasAs := false
		var asName string
		if c.match(lexer.TokenAs) {
			c.consume(lexer.TokenIdent, "expected name after 'as'")
			asName = c.prev.Lexeme
			hasAs = true
		}
		c.consume(lexer.TokenColon, "expected ':' after except clause")

		nextJump := -1
		if hasClass {
			c.emitByte(byte(opDup))
			c.namedVariableLoadOnly(className)
			c.emitGlobalInvoke("__matches__", 1)
			nextJump = c.emitJump(byte(opJumpIfFalse))
		}

		c.beginScope()
		if hasAs {
			c.declareLocal(asName)
			c.markInitialized()
		} else {
			c.emitByte(byte(opPop))
		}
		c.block()
		c.endScope()
		endJumps = append(endJumps, c.emitJump(byte(opJump)))

		if nextJump != -1 {
			c.patchJump(nextJump)
		}
	}
	if hasExcept {
		c.emitByte(byte(opReraise))
	}
	for _, j := range endJumps {
		c.patchJump(j)
	}

	if c.matchSiblingClause(width, lexer.TokenFinally) {
		c.consume(lexer.TokenColon, "expected ':' after 'finally'")
		c.beginScope()
		c.block()
		c.endScope()
	}
}

// withStatement compiles `with expr (as name):`. The context-manager value
// and the Handler marker PushWith installs are both tracked as unnamed
// locals of one shared scope, so endScope's normal unwind (which also
// fires on break/continue out of the block) pops them in the right order
// with no dedicated "pop the handler" opcode. The VM locates the
// context-manager for an out-of-band __exit__ call during unwind at a
// fixed offset (one slot below the Handler), an invariant this layout
// guarantees.
func (c *Compiler) withStatement() {
	c.beginScope()
	c.expressionAllowTernary()
	c.declareLocal("$with_ctx")
	c.markInitialized()
	ctxSlot := len(c.frame.locals) - 1

	pushWith := c.emitJump(byte(opPushWith))
	c.declareLocal("$with_handler")
	c.markInitialized()

	c.emitIndexed(opGetLocal, ctxSlot)
	c.emitGlobalInvoke("__enter__", 0)
	if c.match(lexer.TokenAs) {
		c.consume(lexer.TokenIdent, "expected name after 'as'")
		c.declareLocal(c.prev.Lexeme)
		c.markInitialized()
	} else {
		c.emitByte(byte(opPop))
	}

	c.consume(lexer.TokenColon, "expected ':' after with-statement target")
	c.block()

	c.emitIndexed(opGetLocal, ctxSlot)
	c.emitGlobalInvoke("__exit__", 0)
	c.emitByte(byte(opPop))

	c.endScope()
	c.patchJump(pushWith)
}

func (c *Compiler) returnStatement() {
	if c.frame.Type == FuncModule {
		c.error("'return' outside a function")
	}
	if c.check(lexer.TokenEOL) || c.check(lexer.TokenEOF) || c.check(lexer.TokenSemicolon) {
		if c.frame.Type == FuncInit {
			c.emitIndexed(opGetLocal, 0)
		} else {
			c.emitByte(byte(opNone))
		}
	} else {
		if c.frame.Type == FuncInit {
			c.error("'__init__' cannot return a value")
		}
		c.expressionAllowTernary()
	}
	c.emitByte(byte(opReturn))
	c.endStatement()
}

// yieldStatement compiles `yield expr` (spec.md §4.3 "Generators"): the
// expression's value is suspended out to whoever called __next__/send, and
// marking the enclosing frame's fn.IsGenerator (done once in emitFunction,
// after the whole body has been seen) is what makes a plain CALL on this
// function build a suspended generator instead of running it to completion.
func (c *Compiler) yieldStatement() {
	if c.frame.Type == FuncModule {
		c.error("'yield' outside a function")
	}
	if c.check(lexer.TokenEOL) || c.check(lexer.TokenEOF) || c.check(lexer.TokenSemicolon) {
		c.emitByte(byte(opNone))
	} else {
		c.expressionAllowTernary()
	}
	c.emitByte(byte(opYield))
	c.frame.sawYield = true
	c.endStatement()
}

func (c *Compiler) raiseStatement() {
	if c.check(lexer.TokenEOL) || c.check(lexer.TokenEOF) || c.check(lexer.TokenSemicolon) {
		c.emitByte(byte(opReraise))
	} else {
		c.expressionAllowTernary()
		c.emitByte(byte(opRaise))
	}
	c.endStatement()
}

// delStatement compiles `del target(, target)*`, letting each target's own
// compiled form (namedVariable/dot/subscript) do the deletion while inDel
// is set (spec.md §4.3 "del").
func (c *Compiler) delStatement() {
	c.inDel = true
	c.expressionAllowTernary()
	for c.match(lexer.TokenComma) {
		c.expressionAllowTernary()
	}
	c.inDel = false
	c.endStatement()
}

// defineNamed binds whatever value is currently on top of the stack to
// name, as a local (if inside a scope) or a global — used by import forms
// where, unlike funcDeclaration, there is no function body that could
// recursively reference the name early.
func (c *Compiler) defineNamed(name string) {
	if c.frame.scopeDepth > 0 {
		c.declareLocal(name)
		c.markInitialized()
	} else {
		idx := c.currentChunk().AddConstant(c.internString(name))
		c.emitIndexed(opDefineGlobal, idx)
	}
}

func (c *Compiler) importStatement() {
	for {
		c.consume(lexer.TokenIdent, "expected module name")
		modName := c.prev.Lexeme
		idx := c.currentChunk().AddConstant(c.internString(modName))
		c.emitIndexed(opImport, idx)
		localName := modName
		if c.match(lexer.TokenAs) {
			c.consume(lexer.TokenIdent, "expected name after 'as'")
			localName = c.prev.Lexeme
		}
		c.defineNamed(localName)
		if !c.match(lexer.TokenComma) {
			break
		}
	}
	c.endStatement()
}

// fromImportStatement compiles `from module import name (as alias)?
// (, name (as alias)?)*`. There is no dedicated "import member" opcode:
// the module object (pushed once by OpImport) is DUPed and GETPROPERTYed
// per imported name, reusing the same mechanism as any other attribute
// access.
func (c *Compiler) fromImportStatement() {
	c.consume(lexer.TokenIdent, "expected module name")
	modName := c.prev.Lexeme
	c.consume(lexer.TokenImport, "expected 'import' after module name")
	midx := c.currentChunk().AddConstant(c.internString(modName))
	c.emitIndexed(opImport, midx)
	for {
		c.consume(lexer.TokenIdent, "expected imported name")
		item := c.prev.Lexeme
		c.emitByte(byte(opDup))
		iidx := c.currentChunk().AddConstant(c.internString(item))
		c.emitIndexed(opGetProperty, iidx)
		localName := item
		if c.match(lexer.TokenAs) {
			c.consume(lexer.TokenIdent, "expected name after 'as'")
			localName = c.prev.Lexeme
		}
		c.defineNamed(localName)
		if !c.match(lexer.TokenComma) {
			break
		}
	}
	c.emitByte(byte(opPop)) // drop the module reference itself
	c.endStatement()
}
