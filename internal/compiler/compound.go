package compiler

import "kuroko/internal/lexer"

// emitCompoundOp emits the binary opcode a compound-assignment token
// desugars to. Callers have already emitted the "get" half (current value)
// and the RHS expression; this just supplies the missing arithmetic/bitwise
// op before the "set" half (spec.md §4.3 "Assignment / compound
// assignment").
func (c *Compiler) emitCompoundOp(op lexer.TokenType) {
	switch op {
	case lexer.TokenPlusEq:
		c.emitByte(byte(opAdd))
	case lexer.TokenMinusEq:
		c.emitByte(byte(opSub))
	case lexer.TokenStarEq:
		c.emitByte(byte(opMul))
	case lexer.TokenSlashEq:
		c.emitByte(byte(opDiv))
	case lexer.TokenSlash2Eq:
		c.emitByte(byte(opFloorDiv))
	case lexer.TokenPercentEq:
		c.emitByte(byte(opMod))
	case lexer.TokenStarStarEq:
		c.emitByte(byte(opPow))
	case lexer.TokenAmpEq:
		c.emitByte(byte(opBitAnd))
	case lexer.TokenPipeEq:
		c.emitByte(byte(opBitOr))
	case lexer.TokenCaretEq:
		c.emitByte(byte(opBitXor))
	case lexer.TokenShlEq:
		c.emitByte(byte(opShl))
	case lexer.TokenShrEq:
		c.emitByte(byte(opShr))
	default:
		c.error("unknown compound-assignment operator")
	}
}
