package vm

import "kuroko/internal/value"

// GeneratorState holds a suspended generator's call frame between resumes:
// the closure it is running, the next instruction to execute, and the live
// argument/local-slot values that would otherwise sit on the VM stack while
// the frame is running (spec.md §4.3 "Generators": "a generator object
// holding its closure, its saved ip, and a saved argument/local region").
type GeneratorState struct {
	closure *value.ClosureObj
	ip      int
	locals  []value.Value
	started bool
	done    bool
}

// makeGenerator is callValue's diversion for a closure whose
// Function.IsGenerator is set: it binds args/kwargs into the function's
// initial local slots exactly as callClosure would, but instead of running
// the frame it parks the bound values in a GeneratorState and returns a
// suspended generator instance. The body (including the default-argument
// prologue emitted ahead of it) only runs once GeneratorNext resumes it
// (spec.md §4.3: "On first call, a frame is constructed... On suspension,
// the current frame's argument and local region is copied into the
// generator; on resume, it is restored").
func (vm *VM) makeGenerator(closure *value.ClosureObj, args []value.Value, kwargs *value.Table) (value.Value, bool) {
	fn := closure.Function
	base := len(vm.stack) + 1
	vm.push(value.ObjVal(closure.Obj))

	required := fn.RequiredArgNames
	keyword := fn.KeywordArgNames
	positional := args
	for i := range required {
		if i < len(positional) {
			vm.push(positional[i])
		} else {
			vm.stack = vm.stack[:base-1]
			vm.raiseString("ArgumentError", "%s() missing required argument '%s'", displayName(fn), required[i])
			return value.None(), false
		}
	}
	consumed := len(required)
	for i, name := range keyword {
		argIdx := consumed + i
		if kwargs != nil {
			if v, ok := kwargs.Get(vm.intern(name)); ok {
				vm.push(v)
				continue
			}
		}
		if argIdx < len(positional) {
			vm.push(positional[argIdx])
		} else {
			vm.push(value.Kwargs(value.KwargsNil))
		}
	}
	consumed += len(keyword)

	if fn.CollectsArgs {
		extra := []value.Value{}
		if consumed < len(positional) {
			extra = append(extra, positional[consumed:]...)
		}
		vm.push(value.ObjVal(vm.newTuple(extra)))
	}
	if fn.CollectsKeywords {
		extra := value.NewTable()
		if kwargs != nil {
			kwargs.Each(func(k, v value.Value) {
				if !containsName(keyword, k) {
					extra.Set(k, v)
				}
			})
		}
		vm.push(value.ObjVal(vm.tableObj(extra)))
	}

	state := &GeneratorState{closure: closure, locals: append([]value.Value(nil), vm.stack[base:]...)}
	vm.stack = vm.stack[:base-1]

	genObj := vm.Heap.NewInstance(vm.Classes.Generator)
	value.AsInstance(genObj).Native = state
	return value.ObjVal(genObj), true
}

// resumeGenerator is runFrame's sibling for the one kind of frame whose
// lifetime can outlive a single call: it drives frame (already pushed onto
// vm.frames by the caller) until it suspends on a yield, returns, or raises,
// the "single-frame reentry entry point" spec.md §4.3 describes, without
// assuming the frame ever gets popped the way an ordinary call's does.
func (vm *VM) resumeGenerator(frame *callFrame) (result value.Value, yielded bool, ok bool) {
	depth := len(vm.frames)
	for len(vm.frames) >= depth {
		if !vm.step() {
			return value.None(), false, false
		}
		if vm.yielding == frame {
			vm.yielding = nil
			return vm.yieldValue, true, true
		}
	}
	if vm.lastReturnedFrame == frame {
		return vm.pop(), false, true
	}
	return value.None(), false, false
}

// GeneratorNext resumes state by value.Same sentinel convention: an already
// exhausted generator's next() returns the generator object itself rather
// than raising StopIteration (spec.md §4.3 "Generator identity sentinel"),
// the same signal OpForIter already checks for every iterator. sent is the
// value send() hands back in for a `x = yield ...` expression to evaluate
// to; next() passes None (spec.md: "send() requires None for a just-started
// generator").
func (vm *VM) GeneratorNext(genVal value.Value, sent value.Value) (value.Value, bool) {
	inst := value.AsInstance(genVal.AsObject())
	state, _ := inst.Native.(*GeneratorState)
	if state == nil || state.done {
		return genVal, true
	}

	base := len(vm.stack) + 1
	vm.push(value.ObjVal(state.closure.Obj))
	for _, l := range state.locals {
		vm.push(l)
	}
	if state.started {
		vm.setPeek(0, sent)
	}
	state.started = true

	frame := &callFrame{closure: state.closure, base: base, ip: state.ip}
	vm.frames = append(vm.frames, frame)

	result, yielded, ok := vm.resumeGenerator(frame)
	if !ok {
		state.done = true
		return value.None(), false
	}
	if yielded {
		state.ip = frame.ip
		state.locals = append([]value.Value(nil), vm.stack[frame.base:]...)
		vm.stack = vm.stack[:frame.base-1]
		vm.frames = vm.frames[:len(vm.frames)-1]
		return result, true
	}
	state.done = true
	return genVal, true
}
