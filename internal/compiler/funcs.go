package compiler

import (
	"kuroko/internal/lexer"
	"kuroko/internal/value"
)

// paramSpec describes one parameter slot compiled by parameterList.
type paramSpec struct {
	name       string
	hasDefault bool
	isArgs     bool // *args
	isKwargs   bool // **kwargs
}

// pushFrame opens a new Frame for a function/method/lambda body, reserving
// local slot 0 for `self` on methods (spec.md §4.3 "Function emission").
func (c *Compiler) pushFrame(ft FunctionType, name string) *Frame {
	fn := &value.FunctionObj{Name: name, Chunk: value.NewChunk(c.file)}
	f := &Frame{enclosing: c.frame, fn: fn, chunk: fn.Chunk, Type: ft}
	slot0 := ""
	if ft == FuncMethod || ft == FuncInit {
		slot0 = "self"
	}
	f.locals = append(f.locals, Local{Name: slot0, Depth: 0})
	c.frame = f
	return f
}

func (c *Compiler) popFrame() *Frame {
	f := c.frame
	c.frame = f.enclosing
	return f
}

// parameterList compiles `(p1, p2=default, *args, **kwargs)`, emitting the
// default-argument prologue (spec.md §4.3): each defaulted parameter's
// local slot is checked against the KWARGS "unset" sentinel and assigned
// its default expression's value when absent.
func (c *Compiler) parameterList() []paramSpec {
	var params []paramSpec
	f := c.frame
	c.consume(lexer.TokenLParen, "expected '(' after function name")
	if !c.check(lexer.TokenRParen) {
		for {
			if c.match(lexer.TokenStarStar) {
				c.consume(lexer.TokenIdent, "expected parameter name after '**'")
				name := c.prev.Lexeme
				c.declareLocal(name)
				c.markInitialized()
				f.fn.CollectsKeywords = true
				params = append(params, paramSpec{name: name, isKwargs: true})
			} else if c.match(lexer.TokenStar) {
				c.consume(lexer.TokenIdent, "expected parameter name after '*'")
				name := c.prev.Lexeme
				c.declareLocal(name)
				c.markInitialized()
				f.fn.CollectsArgs = true
				params = append(params, paramSpec{name: name, isArgs: true})
			} else {
				c.consume(lexer.TokenIdent, "expected parameter name")
				name := c.prev.Lexeme
				c.declareLocal(name)
				c.markInitialized()
				idx := len(f.locals) - 1
				p := paramSpec{name: name}
				if c.match(lexer.TokenEq) {
					p.hasDefault = true
					// Default-argument prologue (spec.md §4.3): the VM
					// prefills unset optional slots with the KWARGS "nil"
					// sentinel before the body runs, so the check below
					// only ever assigns when the caller omitted the arg.
					c.emitIndexed(opGetLocal, idx)
					c.emitConstant(value.Kwargs(value.KwargsNil))
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
				params = append(params, p)
			}
			if !c.match(lexer.TokenComma) {
				break
			}
			if c.check(lexer.TokenRParen) {
				break
			}
		}
	}
	c.consume(lexer.TokenRParen, "expected ')' after parameters")
	return params
}

// emitFunction compiles a complete function/method/lambda: pushFrame,
// parameters, body (via bodyFn, which runs with c.frame already set to the
// new Frame), implicit return, then emits CLOSURE with the captured
// upvalue triplets the enclosing frame's compiled code needs (spec.md §4.3
// "Function emission" / "Locals and upvalues").
func (c *Compiler) emitFunction(ft FunctionType, name string, bodyFn func()) {
	c.pushFrame(ft, name)
	f := c.frame
	c.beginScope()
	bodyFn()
	f.scopeDepth--

	if ft == FuncInit {
		c.emitIndexed(opGetLocal, 0)
		c.emitByte(byte(opReturn))
	} else {
		c.emitReturnNone()
	}

	fn := f.fn
	fn.UpvalueCount = len(f.upvalues)
	fn.IsGenerator = f.sawYield
	upvalues := f.upvalues
	c.popFrame()

	fnObj := c.heap.NewFunction(fn)
	idx := c.currentChunk().AddConstant(value.ObjVal(fnObj))
	c.emitIndexed(opClosure, idx)
	for _, uv := range upvalues {
		if uv.IsLocal {
			c.emitByte(1)
		} else {
			c.emitByte(0)
		}
		c.emitByte(byte(uv.Index))
	}
}

func funcTypeForDecorators(isStatic, isProperty bool) FunctionType {
	switch {
	case isStatic:
		return FuncStatic
	case isProperty:
		return FuncProperty
	default:
		return FuncMethod
	}
}
