package compiler

import (
	"kuroko/internal/lexer"
	"kuroko/internal/value"
)

func kwargsNilConst() value.Value { return value.Kwargs(value.KwargsNil) }

// lambda compiles `lambda params: expr`, a single-expression function body
// whose value is implicitly returned (spec.md §4.3 "Function emission").
func (c *Compiler) lambda(canAssign bool) {
	c.emitFunction(FuncLambda, "<lambda>", func() {
		c.lambdaParams()
		c.consume(lexer.TokenColon, "expected ':' after lambda parameters")
		c.expressionAllowTernary()
		c.emitByte(byte(opReturn))
	})
}

// lambdaParams compiles lambda's parenthesis-free parameter list, reusing
// parameterList's declaration/default-prologue logic by scanning up to the
// ':' the way parameterList scans up to ')'.
func (c *Compiler) lambdaParams() {
	if c.check(lexer.TokenColon) {
		return
	}
	f := c.frame
	for {
		if c.match(lexer.TokenStarStar) {
			c.consume(lexer.TokenIdent, "expected parameter name after '**'")
			c.declareLocal(c.prev.Lexeme)
			c.markInitialized()
			f.fn.CollectsKeywords = true
		} else if c.match(lexer.TokenStar) {
			c.consume(lexer.TokenIdent, "expected parameter name after '*'")
			c.declareLocal(c.prev.Lexeme)
			c.markInitialized()
			f.fn.CollectsArgs = true
		} else {
			c.consume(lexer.TokenIdent, "expected parameter name")
			name := c.prev.Lexeme
			c.declareLocal(name)
			c.markInitialized()
			idx := len(f.locals) - 1
			if c.match(lexer.TokenEq) {
				c.emitIndexed(opGetLocal, idx)
				c.emitConstant(kwargsNilConst())
				c.emitByte(byte(opEqual))
				skip := c.emitJump(byte(opJumpIfFalse))
				c.expressionAllowTernary()
				c.emitIndexed(opSetLocal, idx)
				c.emitByte(byte(opPop))
				c.patchJump(skip)
				f.fn.KeywordArgNames = append(f.fn.KeywordArgNames, name)
				f.fn.KeywordArgs++
			} else {
				f.fn.RequiredArgNames = append(f.fn.RequiredArgNames, name)
				f.fn.RequiredArgs++
			}
		}
		if !c.match(lexer.TokenComma) {
			break
		}
	}
}
