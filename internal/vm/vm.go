// Package vm implements the bytecode interpreter (spec.md §5 "Execution
// model"): a flat value stack plus a stack of call frames, executing the
// instructions internal/compiler emits against internal/value's tagged
// Value/Obj model. It replaces the teacher's tree-walking
// internal/vm/vm.go (built for an entirely different, interface{}-typed
// Value and opcode set) with the register-free, stack-machine shape
// original_source/vm.c describes, while keeping the teacher's habit of
// splitting the interpreter across several files by concern
// (calls/exceptions/values/generators/modules) rather than one monolith.
package vm

import (
	"fmt"

	"kuroko/internal/bytecode"
	"kuroko/internal/heap"
	"kuroko/internal/value"
)

// callFrame is one active function/method/module activation. base is the
// index into vm.stack where this frame's local slot 0 lives.
type callFrame struct {
	closure *value.ClosureObj
	ip      int
	base    int
}

// builtinClasses caches the classes internal/builtins installs, so the VM
// can raise well-known exception types and construct list/dict/set/
// generator instances without a string-keyed global lookup on every
// operation (spec.md §3 "cached... dunder methods" extended to the
// handful of classes the interpreter itself must construct directly).
type builtinClasses struct {
	Object, Str, Int, Float, Bool, List, Dict, Set, Tuple, Bytes          *value.ClassObj
	Function, Generator, Module, BoundMethod, Property                   *value.ClassObj
	Exception, TypeError, ValueError, NameError, AttributeError          *value.ClassObj
	IndexError, KeyError, ZeroDivisionError, StopIteration, ImportError  *value.ClassObj
	ArgumentError, RuntimeError                                           *value.ClassObj
}

// VM is one interpreter instance: one Heap, one global namespace, one call
// stack. A fresh VM is created per top-level script run.
type VM struct {
	Heap    *heap.Heap
	Globals *value.Table

	stack  []value.Value
	frames []*callFrame

	openUpvalues *value.UpvalueObj

	// lastReturnedFrame is set by doReturn to the frame it just popped, the
	// identity runFrame compares against to tell "my call returned
	// normally" apart from "an exception unwound past my call".
	lastReturnedFrame *callFrame

	// yielding/yieldValue are OpYield's counterpart to lastReturnedFrame:
	// set when the named frame suspended instead of returning. Only
	// resumeGenerator (generator.go) ever looks at these — runFrame's own
	// loop never runs a generator's frame directly.
	yielding   *callFrame
	yieldValue value.Value

	pendingException *value.Value
	pendingArgs      []value.Value
	pendingKwargs    *value.Table

	modules       map[string]value.Value
	nativeModules map[string]func(vm *VM) value.Value
	loader        Loader

	Classes builtinClasses

	Stdout interface {
		WriteString(string) (int, error)
	}

	recursionLimit int
}

// StdoutWriter adapts an io.Writer into the minimal WriteString surface
// the VM's print builtin needs, avoiding an io import here for the single
// call site.
type StdoutWriter interface {
	WriteString(string) (int, error)
}

func New(h *heap.Heap) *VM {
	vm := &VM{
		Heap:           h,
		Globals:        value.NewTable(),
		modules:        make(map[string]value.Value),
		nativeModules:  make(map[string]func(vm *VM) value.Value),
		recursionLimit: 768,
	}
	h.Roots = vm.markRoots
	return vm
}

// RegisterNativeModule wires name (as imported via `import name`) to a
// constructor run lazily on first import — the seam native modules hook
// into (spec.md's DOMAIN STACK).
func (vm *VM) RegisterNativeModule(name string, build func(vm *VM) value.Value) {
	vm.nativeModules[name] = build
}

func (vm *VM) markRoots(mark func(value.Value)) {
	for _, v := range vm.stack {
		mark(v)
	}
	for _, f := range vm.frames {
		mark(value.ObjVal(f.closure.Obj))
	}
	if vm.Globals != nil {
		vm.Globals.Each(func(k, v value.Value) { mark(k); mark(v) })
	}
	for uv := vm.openUpvalues; uv != nil; uv = uv.Next {
		mark(value.ObjVal(uv.Obj))
	}
	for _, v := range vm.modules {
		mark(v)
	}
	for _, v := range vm.pendingArgs {
		mark(v)
	}
}

// --- stack primitives --------------------------------------------------------

func (vm *VM) push(v value.Value) { vm.stack = append(vm.stack, v) }

func (vm *VM) pop() value.Value {
	n := len(vm.stack) - 1
	v := vm.stack[n]
	vm.stack = vm.stack[:n]
	return v
}

func (vm *VM) popN(n int) {
	vm.stack = vm.stack[:len(vm.stack)-n]
}

func (vm *VM) peek(distance int) value.Value {
	return vm.stack[len(vm.stack)-1-distance]
}

func (vm *VM) setPeek(distance int, v value.Value) {
	vm.stack[len(vm.stack)-1-distance] = v
}

// --- bytecode reading ---------------------------------------------------------

func (f *callFrame) chunk() *value.Chunk { return f.closure.Function.Chunk }

func (vm *VM) readByte(f *callFrame) byte {
	b := f.chunk().Code[f.ip]
	f.ip++
	return b
}

func (vm *VM) readU16(f *callFrame) int {
	hi := vm.readByte(f)
	lo := vm.readByte(f)
	return int(hi)<<8 | int(lo)
}

func (vm *VM) readU24(f *callFrame) int {
	b0 := vm.readByte(f)
	b1 := vm.readByte(f)
	b2 := vm.readByte(f)
	return int(b0)<<16 | int(b1)<<8 | int(b2)
}

func (vm *VM) readConstant(f *callFrame, idx int) value.Value {
	return f.chunk().Constants[idx]
}

// RuntimeError is returned by Interpret when a raised exception is never
// caught (spec.md §7 "Uncaught exceptions").
type RuntimeError struct {
	ClassName string
	Message   string
	Frames    []string
}

func (e *RuntimeError) Error() string {
	s := fmt.Sprintf("%s: %s", e.ClassName, e.Message)
	for _, f := range e.Frames {
		s += "\n  at " + f
	}
	return s
}

// Interpret runs a freshly compiled module function to completion,
// returning its final expression-statement value (spec.md §6 entry point
// `interpret`). Slot 0 of the module frame — reserved by the compiler for
// "the module instance itself" — is left None for a bare script run;
// Import populates it with a real module Instance for imported files.
func (vm *VM) Interpret(fn *value.FunctionObj) (value.Value, error) {
	closure := &value.ClosureObj{Function: fn}
	closureObj := vm.Heap.NewClosure(closure)
	vm.push(value.ObjVal(closureObj))
	vm.push(value.None()) // slot 0
	vm.frames = append(vm.frames, &callFrame{closure: closure, base: len(vm.stack) - 1})
	result, ok := vm.runFrame()
	if !ok {
		return value.None(), vm.uncaughtError()
	}
	return result, nil
}

func (vm *VM) currentFrame() *callFrame { return vm.frames[len(vm.frames)-1] }

// runFrame drives step() until the frame that was on top when it was
// entered is gone — either because it returned normally (in which case its
// result is sitting on the new top frame's stack, left there by doReturn)
// or because a raised exception unwound past it entirely (nothing to
// return, propagate the failure up through Go's own call stack — every
// nested runFrame on the way back out sees the same "my frame vanished
// without a doReturn of its own" signal and also bails). This recursive
// shape (rather than one flat dispatch loop) is what lets natives call back
// into language-level callables synchronously (NativeVM.Call, __iter__/
// __next__, property getters, __init__) without a second interpreter.
func (vm *VM) runFrame() (value.Value, bool) {
	depth := len(vm.frames)
	myFrame := vm.frames[depth-1]
	for len(vm.frames) >= depth {
		if !vm.step() {
			return value.None(), false
		}
	}
	if vm.lastReturnedFrame == myFrame {
		return vm.pop(), true
	}
	return value.None(), false
}

// step executes exactly one instruction of the current top frame, plus the
// exception check every instruction ends with (spec.md §5 "Execution
// model"). Returns false when the step left an exception pending with no
// handler anywhere on the frame stack — the only case callers must treat
// as "stop entirely".
func (vm *VM) step() bool {
	frame := vm.currentFrame()
	op := bytecode.OpCode(vm.readByte(frame))

	switch op {
		case bytecode.OpNone:
			vm.push(value.None())
		case bytecode.OpTrue:
			vm.push(value.Bool(true))
		case bytecode.OpFalse:
			vm.push(value.Bool(false))
		case bytecode.OpPop:
			vm.pop()
		case bytecode.OpDup:
			vm.push(vm.peek(0))
		case bytecode.OpSwap:
			a, b := vm.pop(), vm.pop()
			vm.push(a)
			vm.push(b)

		case bytecode.OpAdd, bytecode.OpSubtract, bytecode.OpMultiply, bytecode.OpDivide,
			bytecode.OpFloorDivide, bytecode.OpModulo, bytecode.OpPower,
			bytecode.OpBitAnd, bytecode.OpBitOr, bytecode.OpBitXor,
			bytecode.OpShiftLeft, bytecode.OpShiftRight:
			b := vm.pop()
			a := vm.pop()
			res, ok := vm.binaryOp(op, a, b)
			if !ok {
				break
			}
			vm.push(res)

		case bytecode.OpNegate:
			v := vm.pop()
			res, ok := vm.negate(v)
			if !ok {
				break
			}
			vm.push(res)
		case bytecode.OpNot:
			vm.push(value.Bool(!vm.pop().Truthy()))
		case bytecode.OpBitNot:
			v := vm.pop()
			if !v.IsInt() {
				vm.raiseString("TypeError", "bad operand type for unary ~")
				break
			}
			vm.push(value.Int(^v.AsInt()))

		case bytecode.OpEqual:
			b, a := vm.pop(), vm.pop()
			vm.push(value.Bool(vm.valuesEqual(a, b)))
		case bytecode.OpNotEqual:
			b, a := vm.pop(), vm.pop()
			vm.push(value.Bool(!vm.valuesEqual(a, b)))
		case bytecode.OpGreater, bytecode.OpGreaterEqual, bytecode.OpLess, bytecode.OpLessEqual:
			b, a := vm.pop(), vm.pop()
			res, ok := vm.compare(op, a, b)
			if !ok {
				break
			}
			vm.push(value.Bool(res))
		case bytecode.OpIs:
			b, a := vm.pop(), vm.pop()
			vm.push(value.Bool(value.Same(a, b)))
		case bytecode.OpIn:
			b, a := vm.pop(), vm.pop()
			res, ok := vm.contains(b, a)
			if !ok {
				break
			}
			vm.push(value.Bool(res))

		case bytecode.OpJump:
			off := vm.readU16(frame)
			frame.ip += off
		case bytecode.OpJumpIfFalse:
			off := vm.readU16(frame)
			if !vm.pop().Truthy() {
				frame.ip += off
			}
		case bytecode.OpJumpIfTrue:
			off := vm.readU16(frame)
			if vm.pop().Truthy() {
				frame.ip += off
			}
		case bytecode.OpJumpIfFalseNoPop:
			off := vm.readU16(frame)
			if !vm.peek(0).Truthy() {
				frame.ip += off
			}
		case bytecode.OpJumpIfTrueNoPop:
			off := vm.readU16(frame)
			if vm.peek(0).Truthy() {
				frame.ip += off
			}
		case bytecode.OpLoop:
			off := vm.readU16(frame)
			frame.ip -= off
			if vm.Heap.ShouldCollect() {
				vm.Heap.Collect()
			}

		case bytecode.OpConstant:
			idx := int(vm.readByte(frame))
			vm.push(vm.readConstant(frame, idx))
		case bytecode.OpConstantLong:
			idx := vm.readU24(frame)
			vm.push(vm.readConstant(frame, idx))

		case bytecode.OpDefineGlobal:
			idx := int(vm.readByte(frame))
			vm.defineGlobal(frame, idx)
		case bytecode.OpDefineGlobalLong:
			idx := vm.readU24(frame)
			vm.defineGlobal(frame, idx)
		case bytecode.OpGetGlobal:
			idx := int(vm.readByte(frame))
			vm.getGlobal(frame, idx)
		case bytecode.OpGetGlobalLong:
			idx := vm.readU24(frame)
			vm.getGlobal(frame, idx)
		case bytecode.OpSetGlobal:
			idx := int(vm.readByte(frame))
			vm.setGlobal(frame, idx)
		case bytecode.OpSetGlobalLong:
			idx := vm.readU24(frame)
			vm.setGlobal(frame, idx)
		case bytecode.OpDelGlobal:
			idx := int(vm.readByte(frame))
			name := vm.readConstant(frame, idx)
			if !vm.globalsTable(frame).Delete(name) {
				vm.raiseString("NameError", "name '%s' is not defined", value.AsString(name.AsObject()).Chars)
			}

		case bytecode.OpGetLocal:
			idx := int(vm.readByte(frame))
			vm.push(vm.stack[frame.base+idx])
		case bytecode.OpGetLocalLong:
			idx := vm.readU24(frame)
			vm.push(vm.stack[frame.base+idx])
		case bytecode.OpSetLocal:
			idx := int(vm.readByte(frame))
			vm.stack[frame.base+idx] = vm.peek(0)
		case bytecode.OpSetLocalLong:
			idx := vm.readU24(frame)
			vm.stack[frame.base+idx] = vm.peek(0)

		case bytecode.OpGetUpvalue:
			idx := int(vm.readByte(frame))
			vm.push(vm.readUpvalue(frame, idx))
		case bytecode.OpGetUpvalueLong:
			idx := vm.readU24(frame)
			vm.push(vm.readUpvalue(frame, idx))
		case bytecode.OpSetUpvalue:
			idx := int(vm.readByte(frame))
			vm.writeUpvalue(frame, idx, vm.peek(0))
		case bytecode.OpSetUpvalueLong:
			idx := vm.readU24(frame)
			vm.writeUpvalue(frame, idx, vm.peek(0))

		case bytecode.OpGetProperty:
			idx := int(vm.readByte(frame))
			vm.opGetProperty(frame, idx)
		case bytecode.OpGetPropertyLong:
			idx := vm.readU24(frame)
			vm.opGetProperty(frame, idx)
		case bytecode.OpSetProperty:
			idx := int(vm.readByte(frame))
			vm.opSetProperty(frame, idx)
		case bytecode.OpSetPropertyLong:
			idx := vm.readU24(frame)
			vm.opSetProperty(frame, idx)
		case bytecode.OpDelProperty:
			idx := int(vm.readByte(frame))
			vm.opDelProperty(frame, idx)

		case bytecode.OpGetSuper:
			idx := int(vm.readByte(frame))
			vm.opGetSuper(frame, idx)

		case bytecode.OpClosure:
			idx := int(vm.readByte(frame))
			vm.opClosure(frame, idx)
		case bytecode.OpClosureLong:
			idx := vm.readU24(frame)
			vm.opClosure(frame, idx)

		case bytecode.OpCloseUpvalue:
			vm.closeUpvalues(len(vm.stack) - 1)
			vm.pop()

		case bytecode.OpClass:
			idx := int(vm.readByte(frame))
			name := value.AsString(vm.readConstant(frame, idx).AsObject()).Chars
			cls := vm.Heap.NewClass(&value.ClassObj{Name: name, Base: vm.Classes.Object})
			vm.push(value.ObjVal(cls))
		case bytecode.OpInherit:
			base := vm.pop()
			if !base.IsObjType(value.ObjTypeClass) {
				vm.raiseString("TypeError", "base is not a class")
				break
			}
			sub := value.AsClass(vm.peek(0).AsObject())
			sub.Base = value.AsClass(base.AsObject())
		case bytecode.OpMethod:
			idx := int(vm.readByte(frame))
			name := value.AsString(vm.readConstant(frame, idx).AsObject()).Chars
			vm.opMethod(name)

		case bytecode.OpCall:
			argc := int(vm.readByte(frame))
			vm.opCall(argc)
		case bytecode.OpInvoke:
			idx := vm.readU24(frame)
			argc := int(vm.readByte(frame))
			name := value.AsString(vm.readConstant(frame, idx).AsObject()).Chars
			vm.opInvoke(name, argc)
		case bytecode.OpSuperCall:
			// Unused by the compiler (super() dispatch is GETSUPER followed
			// by an ordinary CALL on the resulting bound method) — kept
			// defined for forward compatibility, not reached.
			idx := vm.readU24(frame)
			argc := int(vm.readByte(frame))
			_, _ = idx, argc
			vm.raiseString("RuntimeError", "OpSuperCall is not used by this compiler")

		case bytecode.OpKwargs:
			argc := int(vm.readByte(frame))
			vm.opKwargs(argc)

		case bytecode.OpBuildTupleN:
			n := int(vm.readByte(frame))
			vm.opBuildTuple(n)
		case bytecode.OpBuildListN:
			n := int(vm.readByte(frame))
			vm.opBuildList(n)
		case bytecode.OpBuildSetN:
			n := int(vm.readByte(frame))
			vm.opBuildSet(n)
		case bytecode.OpBuildMapN:
			n := int(vm.readByte(frame))
			vm.opBuildMap(n)
		case bytecode.OpUnpackN:
			n := int(vm.readByte(frame))
			vm.opUnpack(n)

		case bytecode.OpImport:
			idx := int(vm.readByte(frame))
			name := value.AsString(vm.readConstant(frame, idx).AsObject()).Chars
			vm.opImport(name)
		case bytecode.OpImportFrom:
			idx := vm.readU24(frame)
			_ = idx
			vm.raiseString("ImportError", "from-import member op is unused (desugared at compile time)")

		case bytecode.OpFormat:
			flag := int(vm.readByte(frame))
			vm.opFormat(flag)

		case bytecode.OpMakeGenerator:
			// Vestigial: generator construction happens at call-dispatch
			// time (callValue checks Function.IsGenerator and diverts to
			// makeGenerator before any frame for the call ever runs), not
			// via an opcode inside the generator's own compiled body, so
			// the compiler never emits this. Mirrors OpSuperCall above.
			vm.readByte(frame)

		case bytecode.OpYield:
			v := vm.pop()
			vm.yielding = frame
			vm.yieldValue = v

		case bytecode.OpForIter:
			off := vm.readU16(frame)
			vm.opForIter(frame, off)

		case bytecode.OpPushTry:
			off := vm.readU16(frame)
			vm.push(value.HandlerVal(value.Handler{Kind: value.HandlerTry, Target: frame.ip + off}))
		case bytecode.OpPushWith:
			off := vm.readU16(frame)
			vm.push(value.HandlerVal(value.Handler{Kind: value.HandlerWith, Target: frame.ip + off}))
		case bytecode.OpPopTry:
			vm.pop()

		case bytecode.OpRaise:
			exc := vm.pop()
			vm.raiseValue(exc)
		case bytecode.OpReraise:
			exc := vm.peek(0)
			vm.pop()
			vm.raiseValue(exc)

		case bytecode.OpReturn, bytecode.OpReturnNone:
			var result value.Value
			if op == bytecode.OpReturnNone {
				result = value.None()
			} else {
				result = vm.pop()
			}
			vm.doReturn(result)

		default:
			vm.raiseString("RuntimeError", "unimplemented opcode %v", op)
		}

		if vm.pendingException != nil {
			if !vm.handleException() {
				return false
			}
		}
		return true
}

// doReturn pops the current (topmost) frame, closes its upvalues, and
// pushes result for whatever frame is now on top — always, even when that
// leaves no frames at all (Interpret's runFrame reads the final value back
// off the stack the same way any other caller does). lastReturnedFrame
// records which *callFrame this was, the identity runFrame uses to tell "my
// call returned normally" apart from "an exception unwound past my call
// entirely" once both leave the frame stack shorter than expected.
func (vm *VM) doReturn(result value.Value) {
	frame := vm.frames[len(vm.frames)-1]
	vm.closeUpvalues(frame.base)
	vm.stack = vm.stack[:frame.base-1] // drop locals and the callee closure itself
	vm.frames = vm.frames[:len(vm.frames)-1]
	vm.lastReturnedFrame = frame
	vm.push(result)
}

// globalsTable returns the namespace GET/SET/DEFINE_GLOBAL resolve against:
// an imported module's own Fields table when its function carries a
// GlobalsContext (spec.md's per-module namespace, so `import os; os.path`
// sees the module's top-level defs as attributes rather than leaking them
// into every other module), or the single shared namespace for the
// top-level script and anything it defines with no module of its own.
func (vm *VM) globalsTable(frame *callFrame) *value.Table {
	if ctx := frame.closure.Function.GlobalsContext; ctx != nil {
		return ctx.Fields
	}
	return vm.Globals
}

func (vm *VM) defineGlobal(frame *callFrame, idx int) {
	name := vm.readConstant(frame, idx)
	vm.globalsTable(frame).Set(name, vm.pop())
}

func (vm *VM) getGlobal(frame *callFrame, idx int) {
	name := vm.readConstant(frame, idx)
	v, ok := vm.globalsTable(frame).Get(name)
	if !ok {
		vm.raiseString("NameError", "name '%s' is not defined", value.AsString(name.AsObject()).Chars)
		return
	}
	vm.push(v)
}

func (vm *VM) setGlobal(frame *callFrame, idx int) {
	name := vm.readConstant(frame, idx)
	table := vm.globalsTable(frame)
	if _, ok := table.Get(name); !ok {
		vm.raiseString("NameError", "name '%s' is not defined", value.AsString(name.AsObject()).Chars)
		return
	}
	table.Set(name, vm.peek(0))
}
