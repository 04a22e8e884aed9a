package compiler

import "kuroko/internal/bytecode"

// Local short aliases for the opcodes this package emits, so expr.go/
// stmt.go read as bytecode mnemonics rather than `bytecode.OpWhatever`
// everywhere.
const (
	opNone         = bytecode.OpNone
	opTrue         = bytecode.OpTrue
	opFalse        = bytecode.OpFalse
	opPop          = bytecode.OpPop
	opDup          = bytecode.OpDup
	opSwap         = bytecode.OpSwap
	opAdd          = bytecode.OpAdd
	opSub          = bytecode.OpSubtract
	opMul          = bytecode.OpMultiply
	opDiv          = bytecode.OpDivide
	opFloorDiv     = bytecode.OpFloorDivide
	opMod          = bytecode.OpModulo
	opPow          = bytecode.OpPower
	opNegate       = bytecode.OpNegate
	opNot          = bytecode.OpNot
	opBitAnd       = bytecode.OpBitAnd
	opBitOr        = bytecode.OpBitOr
	opBitXor       = bytecode.OpBitXor
	opBitNot       = bytecode.OpBitNot
	opShl          = bytecode.OpShiftLeft
	opShr          = bytecode.OpShiftRight
	opEqual        = bytecode.OpEqual
	opNotEqual     = bytecode.OpNotEqual
	opGreater      = bytecode.OpGreater
	opGreaterEqual = bytecode.OpGreaterEqual
	opLess         = bytecode.OpLess
	opLessEqual    = bytecode.OpLessEqual
	opIs           = bytecode.OpIs
	opIn           = bytecode.OpIn
	opReturn       = bytecode.OpReturn
	opReturnModule = bytecode.OpReturnNone
	opRaise        = bytecode.OpRaise
	opReraise      = bytecode.OpReraise
	opCloseUpvalue = bytecode.OpCloseUpvalue
	opInherit      = bytecode.OpInherit
	opPopTry       = bytecode.OpPopTry
	opYield        = bytecode.OpYield

	opConstant      = bytecode.OpConstant
	opDefineGlobal  = bytecode.OpDefineGlobal
	opGetGlobal     = bytecode.OpGetGlobal
	opSetGlobal     = bytecode.OpSetGlobal
	opDelGlobal     = bytecode.OpDelGlobal
	opGetLocal      = bytecode.OpGetLocal
	opSetLocal      = bytecode.OpSetLocal
	opGetUpvalue    = bytecode.OpGetUpvalue
	opSetUpvalue    = bytecode.OpSetUpvalue
	opGetProperty   = bytecode.OpGetProperty
	opSetProperty   = bytecode.OpSetProperty
	opDelProperty   = bytecode.OpDelProperty
	opGetSuper      = bytecode.OpGetSuper
	opMethod        = bytecode.OpMethod
	opClass         = bytecode.OpClass
	opCall          = bytecode.OpCall
	opInvoke        = bytecode.OpInvoke
	opSuperCall     = bytecode.OpSuperCall
	opClosure       = bytecode.OpClosure
	opKwargs        = bytecode.OpKwargs
	opBuildTupleN   = bytecode.OpBuildTupleN
	opBuildListN    = bytecode.OpBuildListN
	opBuildSetN     = bytecode.OpBuildSetN
	opBuildMapN     = bytecode.OpBuildMapN
	opUnpackN       = bytecode.OpUnpackN
	opImport        = bytecode.OpImport
	opImportFrom    = bytecode.OpImportFrom
	opMakeGenerator = bytecode.OpMakeGenerator
	opFormat        = bytecode.OpFormat

	opJump              = bytecode.OpJump
	opJumpIfFalse       = bytecode.OpJumpIfFalse
	opJumpIfTrue        = bytecode.OpJumpIfTrue
	opJumpIfFalseNoPop  = bytecode.OpJumpIfFalseNoPop
	opJumpIfTrueNoPop   = bytecode.OpJumpIfTrueNoPop
	opLoop              = bytecode.OpLoop
	opPushTry           = bytecode.OpPushTry
	opPushWith          = bytecode.OpPushWith
	opForIter           = bytecode.OpForIter
)

// emitIndexed writes op with operand idx, switching to op's long (24-bit)
// form when idx doesn't fit in a byte (spec.md §4.3 "Bytecode emission").
func (c *Compiler) emitIndexed(op bytecode.OpCode, idx int) {
	if idx <= 0xFF {
		c.emitByte(byte(op))
		c.emitByte(byte(idx))
		return
	}
	long, ok := bytecode.LongForm(op)
	if !ok {
		c.error("operand index too large for this instruction")
		return
	}
	c.emitByte(byte(long))
	c.emitU24(idx)
}
