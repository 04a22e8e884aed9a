package compiler

import "kuroko/internal/lexer"

// Precedence levels, lowest to highest, per spec.md §4.3:
//   Assignment < Ternary < Or < And < Comparison < BitOr < BitXor <
//   BitAnd < Shift < Term < Factor < Unary < Exponent < Call < Primary
type Precedence int

const (
	PrecNone Precedence = iota
	PrecAssignment
	PrecTernary
	PrecOr
	PrecAnd
	PrecComparison
	PrecBitOr
	PrecBitXor
	PrecBitAnd
	PrecShift
	PrecTerm
	PrecFactor
	PrecUnary
	PrecExponent
	PrecCall
	PrecPrimary
)

type (
	prefixFn func(c *Compiler, canAssign bool)
	infixFn  func(c *Compiler, canAssign bool)
)

type rule struct {
	prefix prefixFn
	infix  infixFn
	prec   Precedence
}

var rules map[lexer.TokenType]rule

func init() {
	rules = map[lexer.TokenType]rule{
		lexer.TokenLParen:   {prefix: (*Compiler).grouping, infix: (*Compiler).call, prec: PrecCall},
		lexer.TokenLBracket: {prefix: (*Compiler).listOrComprehension, infix: (*Compiler).subscript, prec: PrecCall},
		lexer.TokenLBrace:   {prefix: (*Compiler).dictOrSetOrComprehension},
		lexer.TokenDot:      {infix: (*Compiler).dot, prec: PrecCall},

		lexer.TokenMinus: {prefix: (*Compiler).unary, infix: (*Compiler).binary, prec: PrecTerm},
		lexer.TokenPlus:  {infix: (*Compiler).binary, prec: PrecTerm},
		lexer.TokenSlash: {infix: (*Compiler).binary, prec: PrecFactor},
		lexer.TokenSlash2: {infix: (*Compiler).binary, prec: PrecFactor},
		lexer.TokenStar:   {infix: (*Compiler).binary, prec: PrecFactor},
		lexer.TokenPercent: {infix: (*Compiler).binary, prec: PrecFactor},
		lexer.TokenStarStar: {infix: (*Compiler).binaryRightAssoc, prec: PrecExponent},

		lexer.TokenAmp:   {infix: (*Compiler).binary, prec: PrecBitAnd},
		lexer.TokenPipe:  {infix: (*Compiler).binary, prec: PrecBitOr},
		lexer.TokenCaret: {infix: (*Compiler).binary, prec: PrecBitXor},
		lexer.TokenShl:   {infix: (*Compiler).binary, prec: PrecShift},
		lexer.TokenShr:   {infix: (*Compiler).binary, prec: PrecShift},
		lexer.TokenTilde: {prefix: (*Compiler).unary},

		lexer.TokenBang:  {prefix: (*Compiler).unary},
		lexer.TokenNot:   {prefix: (*Compiler).unary},
		lexer.TokenAnd:   {infix: (*Compiler).and_, prec: PrecAnd},
		lexer.TokenOr:    {infix: (*Compiler).or_, prec: PrecOr},

		lexer.TokenEqEq:  {infix: (*Compiler).binary, prec: PrecComparison},
		lexer.TokenNotEq: {infix: (*Compiler).binary, prec: PrecComparison},
		lexer.TokenLt:    {infix: (*Compiler).binary, prec: PrecComparison},
		lexer.TokenLe:    {infix: (*Compiler).binary, prec: PrecComparison},
		lexer.TokenGt:    {infix: (*Compiler).binary, prec: PrecComparison},
		lexer.TokenGe:    {infix: (*Compiler).binary, prec: PrecComparison},
		lexer.TokenIs:    {infix: (*Compiler).isCompare, prec: PrecComparison},
		lexer.TokenIn:    {infix: (*Compiler).inCompare, prec: PrecComparison},

		lexer.TokenIf: {infix: (*Compiler).ternary, prec: PrecTernary},

		lexer.TokenInt:     {prefix: (*Compiler).integer},
		lexer.TokenFloat:   {prefix: (*Compiler).float},
		lexer.TokenString:  {prefix: (*Compiler).stringLit},
		lexer.TokenFString: {prefix: (*Compiler).fstring},
		lexer.TokenBString: {prefix: (*Compiler).bytesLit},
		lexer.TokenTrue:    {prefix: (*Compiler).literalBool},
		lexer.TokenFalse:   {prefix: (*Compiler).literalBool},
		lexer.TokenNone:    {prefix: (*Compiler).literalNone},
		lexer.TokenIdent:   {prefix: (*Compiler).variable},
		lexer.TokenSelf:    {prefix: (*Compiler).self},
		lexer.TokenSuper:   {prefix: (*Compiler).super},
		lexer.TokenLambda:  {prefix: (*Compiler).lambda},
	}
}

func (c *Compiler) getRule(t lexer.TokenType) rule { return rules[t] }

// parsePrecedence is the core Pratt loop (spec.md §4.3).
func (c *Compiler) parsePrecedence(p Precedence) {
	c.advance()
	prefix := c.getRule(c.prev.Type).prefix
	if prefix == nil {
		c.error("expected expression")
		return
	}
	canAssign := p <= PrecAssignment
	prefix(c, canAssign)

	for p <= c.getRule(c.cur.Type).prec {
		c.advance()
		infix := c.getRule(c.prev.Type).infix
		if infix == nil {
			c.error("expected expression")
			return
		}
		infix(c, canAssign)
	}

	if canAssign && (c.check(lexer.TokenEq) || isCompoundAssign(c.cur.Type)) {
		c.error("invalid assignment target")
	}
}

func (c *Compiler) expression() { c.parsePrecedence(PrecTernary + 1) }

// expressionAllowTernary parses an expression that may itself be the
// condition/branches of a ternary — used at statement level and inside
// brackets where `a if c else b` is legal.
func (c *Compiler) expressionAllowTernary() { c.parsePrecedence(PrecAssignment + 1) }

func isCompoundAssign(t lexer.TokenType) bool {
	switch t {
	case lexer.TokenPlusEq, lexer.TokenMinusEq, lexer.TokenStarEq, lexer.TokenSlashEq,
		lexer.TokenSlash2Eq, lexer.TokenPercentEq, lexer.TokenStarStarEq,
		lexer.TokenAmpEq, lexer.TokenPipeEq, lexer.TokenCaretEq,
		lexer.TokenShlEq, lexer.TokenShrEq:
		return true
	}
	return false
}
