package compiler

import "kuroko/internal/lexer"

// fstring compiles an f-string literal by splitting it into literal text
// and `{expr}`/`{expr!s}`/`{expr!r}` substitutions at compile time (the
// scanner hands the whole literal over as one token's Lexeme; spec.md §4.1
// leaves `{...}` interpolation to the compiler rather than the scanner).
// Each piece is pushed and joined with OP_ADD, a fresh sub-Scanner compiling
// the expression inside each `{...}` (spec.md §4.3 "f-strings").
func (c *Compiler) fstring(canAssign bool) {
	src := c.prev.Lexeme
	segments := splitFString(src)
	if len(segments) == 0 {
		c.emitConstant(c.internString(""))
		return
	}

	first := true
	for _, seg := range segments {
		if seg.isExpr {
			c.compileFStringExpr(seg.text, seg.conv)
		} else {
			c.emitConstant(c.internString(seg.text))
		}
		if !first {
			c.emitByte(byte(opAdd))
		}
		first = false
	}
}

type fstringSegment struct {
	text   string
	isExpr bool
	conv   byte // 0 none, 1 !s, 2 !r
}

// splitFString walks the raw literal text splitting `{` `}` substitution
// spans from literal spans, honoring `{{`/`}}` escapes.
func splitFString(s string) []fstringSegment {
	var segs []fstringSegment
	var lit []byte
	i := 0
	flush := func() {
		if len(lit) > 0 {
			segs = append(segs, fstringSegment{text: string(lit)})
			lit = nil
		}
	}
	for i < len(s) {
		c := s[i]
		switch c {
		case '{':
			if i+1 < len(s) && s[i+1] == '{' {
				lit = append(lit, '{')
				i += 2
				continue
			}
			flush()
			j := i + 1
			depth := 1
			for j < len(s) && depth > 0 {
				switch s[j] {
				case '{':
					depth++
				case '}':
					depth--
					if depth == 0 {
						goto done
					}
				}
				j++
			}
		done:
			inner := s[i+1 : j]
			conv := byte(0)
			if len(inner) >= 2 && inner[len(inner)-2] == '!' {
				switch inner[len(inner)-1] {
				case 's':
					conv = 1
				case 'r':
					conv = 2
				}
				if conv != 0 {
					inner = inner[:len(inner)-2]
				}
			}
			segs = append(segs, fstringSegment{text: inner, isExpr: true, conv: conv})
			i = j + 1
		case '}':
			if i+1 < len(s) && s[i+1] == '}' {
				lit = append(lit, '}')
				i += 2
				continue
			}
			lit = append(lit, c)
			i++
		default:
			lit = append(lit, c)
			i++
		}
	}
	flush()
	return segs
}

// compileFStringExpr compiles one `{...}` substitution by handing its text
// to a nested Scanner/parse, then emits OP_FORMAT with the conversion flag
// so the VM renders it (str() or repr()) before the surrounding OP_ADD
// concatenation.
func (c *Compiler) compileFStringExpr(exprSrc string, conv byte) {
	sub := New(exprSrc, c.file, c.heap)
	sub.frame = c.frame
	sub.classFrame = c.classFrame
	sub.advance()
	sub.expressionAllowTernary()
	if !sub.check(lexer.TokenEOF) {
		sub.error("unexpected trailing tokens in f-string expression")
	}
	if sub.hadError {
		c.hadError = true
		c.errMsg = sub.errMsg
	}
	c.emitByte(byte(opFormat))
	c.emitByte(conv)
}
