package vm

import (
	"fmt"

	"kuroko/internal/value"
)

// lookupExceptionClass maps a builtin exception name to the cached class
// the interpreter raises against. Names internal/builtins adds beyond this
// fixed set (spec.md §3's exception hierarchy is open-ended) are resolved
// through the global namespace instead, falling back to the generic
// Exception class so a raise from deep inside the interpreter never panics
// for want of a class object.
func (vm *VM) lookupExceptionClass(name string) *value.ClassObj {
	switch name {
	case "Exception":
		return vm.Classes.Exception
	case "TypeError":
		return vm.Classes.TypeError
	case "ValueError":
		return vm.Classes.ValueError
	case "NameError":
		return vm.Classes.NameError
	case "AttributeError":
		return vm.Classes.AttributeError
	case "IndexError":
		return vm.Classes.IndexError
	case "KeyError":
		return vm.Classes.KeyError
	case "ZeroDivisionError":
		return vm.Classes.ZeroDivisionError
	case "StopIteration":
		return vm.Classes.StopIteration
	case "ImportError":
		return vm.Classes.ImportError
	case "ArgumentError":
		return vm.Classes.ArgumentError
	case "RuntimeError":
		return vm.Classes.RuntimeError
	}
	if g, ok := vm.Globals.Get(vm.intern(name)); ok && g.IsObjType(value.ObjTypeClass) {
		return value.AsClass(g.AsObject())
	}
	return vm.Classes.Exception
}

// raiseString constructs an instance of the named exception class carrying
// a formatted message and marks it as the VM's pending exception — the
// path every built-in error (TypeError, NameError, ZeroDivisionError, ...)
// raises through (spec.md §4.3 "Exceptions"). It also implements
// value.NativeVM's RaiseString method so native functions can raise the
// same way language code does.
func (vm *VM) raiseString(class string, format string, args ...interface{}) value.Value {
	msg := fmt.Sprintf(format, args...)
	cls := vm.lookupExceptionClass(class)
	inst := vm.Heap.NewInstance(cls)
	value.AsInstance(inst).Fields.Set(vm.intern("message"), vm.intern(msg))
	excVal := value.ObjVal(inst)
	vm.pendingException = &excVal
	return excVal
}

// raiseValue marks an already-constructed value (from `raise expr` or a
// bare `raise` re-raising the active exception) as pending.
func (vm *VM) raiseValue(exc value.Value) {
	vm.pendingException = &exc
}

// invoke calls method on receiver the same way OPINVOKE does, for the
// interpreter's own synchronous use (iterator protocol, with-statement
// cleanup, equality dunders). ok is false exactly when the call left an
// exception pending — callers must propagate that, not the zero Value.
func (vm *VM) invoke(receiver value.Value, method string, args []value.Value) (value.Value, bool) {
	nameVal := vm.intern(method)
	cls := vm.classOf(receiver)
	if m, ok := lookupMethod(cls, nameVal); ok {
		full := append([]value.Value{receiver}, args...)
		return vm.callValue(value.ObjVal(m), full, nil)
	}
	v, ok := vm.getAttr(receiver, nameVal)
	if !ok {
		return value.None(), false
	}
	return vm.callValue(v, args, nil)
}

// invokeDunderDiscard best-effort calls a cleanup dunder (__exit__ during
// with-statement unwind) while a different exception is already propagating:
// the original pendingException is parked so the cleanup call runs as if
// nothing were pending, and anything __exit__ itself raises is swallowed in
// favor of re-propagating the original (spec.md §4.3 "with" does not define
// a chained-exception model, so the simplest rule — the first exception
// wins — applies).
func (vm *VM) invokeDunderDiscard(receiver value.Value, method string) {
	saved := vm.pendingException
	vm.pendingException = nil
	vm.invoke(receiver, method, nil)
	vm.pendingException = saved
}

// handleException is step()'s tail call whenever an instruction left
// vm.pendingException set. It walks frames innermost-first, and within
// each frame scans the value stack top-down for a Handler marker (spec.md
// §4.3 "try/except", "with"): a HandlerWith marker triggers __exit__ on the
// context manager sitting just below it and keeps scanning downward in the
// same frame (so nested `with` blocks unwind like a finally chain); a
// HandlerTry marker catches — the stack is truncated to the marker, the
// exception value is pushed in its place, and frame.ip is repointed at the
// handler's compiled except-dispatch code. A frame with no handler at all
// is popped whole and the search continues one frame out. Returns false
// only when every frame has been scanned with nothing found, leaving
// pendingException set for uncaughtError to read.
func (vm *VM) handleException() bool {
	for fi := len(vm.frames) - 1; fi >= 0; fi-- {
		frame := vm.frames[fi]
		for i := len(vm.stack) - 1; i >= frame.base; i-- {
			v := vm.stack[i]
			if !v.IsHandler() {
				continue
			}
			h := v.AsHandler()
			switch h.Kind {
			case value.HandlerWith:
				ctxMgr := vm.stack[i-1]
				vm.invokeDunderDiscard(ctxMgr, "__exit__")
				vm.stack = append(vm.stack[:i-1], vm.stack[i+1:]...)
				i -= 1 // account for the two slots just removed; loop's i-- continues from there
			case value.HandlerTry:
				exc := *vm.pendingException
				vm.stack = vm.stack[:i]
				vm.push(exc)
				frame.ip = h.Target
				vm.pendingException = nil
				return true
			}
		}
		// No handler anywhere in this frame: pop it whole and keep
		// propagating into the caller, same bookkeeping as doReturn but
		// without producing a result.
		vm.closeUpvalues(frame.base)
		vm.stack = vm.stack[:frame.base-1]
		vm.frames = vm.frames[:fi]
	}
	return false
}

// uncaughtError converts a still-pending exception into the error Interpret
// returns, with a best-effort traceback built from the frames that were
// still live at the point of failure (spec.md §7 "Uncaught exceptions").
// Called only after handleException has already confirmed nothing caught
// it, so vm.frames/vm.stack may already be empty.
func (vm *VM) uncaughtError() error {
	exc := vm.pendingException
	vm.pendingException = nil
	if exc == nil {
		return &RuntimeError{ClassName: "Exception", Message: "unknown error"}
	}
	cls := vm.classOf(*exc)
	msg := ""
	if exc.IsObjType(value.ObjTypeInstance) {
		inst := value.AsInstance(exc.AsObject())
		if m, ok := inst.Fields.Get(vm.intern("message")); ok {
			if isString(m) {
				msg = strOf(m)
			} else if s, ok := vm.stringify(m, false); ok {
				msg = s
			}
		}
	}
	if msg == "" {
		msg, _ = vm.stringify(*exc, false)
	}
	frames := make([]string, 0, len(vm.frames))
	for i := len(vm.frames) - 1; i >= 0; i-- {
		f := vm.frames[i]
		line := f.chunk().LineAt(f.ip)
		frames = append(frames, fmt.Sprintf("%s:%d in %s", f.chunk().Filename, line, displayName(f.closure.Function)))
	}
	return &RuntimeError{ClassName: cls.Name, Message: msg, Frames: frames}
}
