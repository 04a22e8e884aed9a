package vm

import "kuroko/internal/value"

// classOf returns the class whose method table governs attribute/method
// lookup for v, mirroring kuroko's "every value has a class" model: numbers
// and strings are not Instances but still dispatch through a class the
// builtins package installs once at startup (spec.md §3 "Object model").
func (vm *VM) classOf(v value.Value) *value.ClassObj {
	switch v.Kind() {
	case value.KindNone:
		return vm.Classes.Object
	case value.KindBoolean:
		return vm.Classes.Bool
	case value.KindInteger:
		return vm.Classes.Int
	case value.KindFloating:
		return vm.Classes.Float
	case value.KindObject:
		o := v.AsObject()
		switch o.Type {
		case value.ObjTypeString:
			return vm.Classes.Str
		case value.ObjTypeBytes:
			return vm.Classes.Bytes
		case value.ObjTypeTuple:
			return vm.Classes.Tuple
		case value.ObjTypeInstance:
			return value.AsInstance(o).Class
		case value.ObjTypeClosure, value.ObjTypeFunction:
			return vm.Classes.Function
		case value.ObjTypeBoundMethod:
			return vm.Classes.BoundMethod
		case value.ObjTypeClass:
			return vm.Classes.Object
		case value.ObjTypeProperty:
			return vm.Classes.Object
		case value.ObjTypeNative:
			return vm.Classes.Function
		}
	}
	return vm.Classes.Object
}

// lookupMethod walks cls and its Base chain for name, the same linear
// search original_source/object.c's krk_bindMethod performs.
func lookupMethod(cls *value.ClassObj, name value.Value) (*value.Obj, bool) {
	for c := cls; c != nil; c = c.Base {
		if m, ok := c.Methods.Get(name); ok {
			return m.AsObject(), true
		}
	}
	return nil, false
}

// getAttr implements GETPROPERTY/INVOKE's shared attribute resolution:
// instance fields shadow methods, properties auto-invoke, methods bind to
// the receiver (spec.md §4.3 "Attribute access").
func (vm *VM) getAttr(receiver value.Value, name value.Value) (value.Value, bool) {
	if receiver.IsObjType(value.ObjTypeInstance) {
		inst := value.AsInstance(receiver.AsObject())
		if f, ok := inst.Fields.Get(name); ok {
			return f, true
		}
	}
	if receiver.IsObjType(value.ObjTypeClass) {
		cls := value.AsClass(receiver.AsObject())
		if f, ok := cls.Fields.Get(name); ok {
			return f, true
		}
		if m, ok := lookupMethod(cls, name); ok {
			return value.ObjVal(m), true
		}
	}
	cls := vm.classOf(receiver)
	if m, ok := lookupMethod(cls, name); ok {
		if m.Type == value.ObjTypeProperty {
			return vm.callValue(value.ObjVal(m), []value.Value{receiver}, nil)
		}
		bound := vm.Heap.NewBoundMethod(&value.BoundMethodObj{Receiver: receiver, Method: m})
		return value.ObjVal(bound), true
	}
	if cls.GetAttr != nil {
		nameStr := value.AsString(name.AsObject()).Chars
		return vm.callValue(value.ObjVal(cls.GetAttr), []value.Value{receiver, vm.intern(nameStr)}, nil)
	}
	vm.raiseString("AttributeError", "'%s' object has no attribute '%s'", cls.Name, value.AsString(name.AsObject()).Chars)
	return value.None(), false
}

func (vm *VM) intern(s string) value.Value { return value.ObjVal(vm.Heap.InternString(s)) }

func (vm *VM) opGetProperty(frame *callFrame, idx int) {
	name := vm.readConstant(frame, idx)
	receiver := vm.pop()
	v, ok := vm.getAttr(receiver, name)
	if !ok {
		return
	}
	vm.push(v)
}

func (vm *VM) opSetProperty(frame *callFrame, idx int) {
	name := vm.readConstant(frame, idx)
	val := vm.pop()
	receiver := vm.pop()
	if receiver.IsObjType(value.ObjTypeInstance) {
		value.AsInstance(receiver.AsObject()).Fields.Set(name, val)
		vm.push(val)
		return
	}
	if receiver.IsObjType(value.ObjTypeClass) {
		value.AsClass(receiver.AsObject()).Fields.Set(name, val)
		vm.push(val)
		return
	}
	vm.raiseString("AttributeError", "'%s' object attributes are read-only", vm.classOf(receiver).Name)
}

func (vm *VM) opDelProperty(frame *callFrame, idx int) {
	name := vm.readConstant(frame, idx)
	receiver := vm.pop()
	if receiver.IsObjType(value.ObjTypeInstance) {
		if value.AsInstance(receiver.AsObject()).Fields.Delete(name) {
			return
		}
	}
	vm.raiseString("AttributeError", "'%s' object has no attribute '%s'", vm.classOf(receiver).Name, value.AsString(name.AsObject()).Chars)
}

// opGetSuper resolves a method by name starting one level above the
// currently executing method's Owner class (spec.md §4.3 "super"),
// binding it to `self` (already on the stack per emitByte(opGetLocal,0)
// compiled ahead of this instruction).
func (vm *VM) opGetSuper(frame *callFrame, idx int) {
	name := vm.readConstant(frame, idx)
	self := vm.pop()
	owner := frame.closure.Function.Owner
	if owner == nil || owner.Base == nil {
		vm.raiseString("RuntimeError", "super() used outside of a method with a base class")
		return
	}
	m, ok := lookupMethod(owner.Base, name)
	if !ok {
		vm.raiseString("AttributeError", "'%s' object has no attribute '%s'", owner.Base.Name, value.AsString(name.AsObject()).Chars)
		return
	}
	bound := vm.Heap.NewBoundMethod(&value.BoundMethodObj{Receiver: self, Method: m})
	vm.push(value.ObjVal(bound))
}

// opClosure materializes a CLOSURE instruction: read the function constant,
// then UpvalueCount raw (isLocal, index) byte-pairs trailing the operand
// (see internal/compiler/funcs.go emitFunction), resolving each to either a
// live stack slot (captured as a new open upvalue) or a slot already
// captured by the enclosing closure (shared).
func (vm *VM) opClosure(frame *callFrame, idx int) {
	fn := value.AsFunction(vm.readConstant(frame, idx).AsObject())
	closure := &value.ClosureObj{Function: fn, Upvalues: make([]*value.UpvalueObj, fn.UpvalueCount)}
	for i := 0; i < fn.UpvalueCount; i++ {
		isLocal := vm.readByte(frame)
		index := int(vm.readByte(frame))
		if isLocal != 0 {
			closure.Upvalues[i] = vm.captureUpvalue(frame.base + index)
		} else {
			closure.Upvalues[i] = frame.closure.Upvalues[index]
		}
	}
	obj := vm.Heap.NewClosure(closure)
	vm.push(value.ObjVal(obj))
}

// captureUpvalue returns the existing open upvalue for stackIndex if one is
// already on vm.openUpvalues, else links a new one in sorted order (spec.md
// §3 "Open upvalues... linked, sorted by stack index").
func (vm *VM) captureUpvalue(stackIndex int) *value.UpvalueObj {
	var prev *value.UpvalueObj
	cur := vm.openUpvalues
	for cur != nil && cur.Location > stackIndex {
		prev = cur
		cur = cur.Next
	}
	if cur != nil && cur.Location == stackIndex {
		return cur
	}
	uv := &value.UpvalueObj{Location: stackIndex}
	vm.Heap.NewUpvalue(uv)
	uv.Next = cur
	if prev == nil {
		vm.openUpvalues = uv
	} else {
		prev.Next = uv
	}
	return uv
}

// closeUpvalues closes every open upvalue at or above stackFloor, copying
// its stack slot's value into the upvalue itself so it survives frame exit.
func (vm *VM) closeUpvalues(stackFloor int) {
	for vm.openUpvalues != nil && vm.openUpvalues.Location >= stackFloor {
		uv := vm.openUpvalues
		uv.Closed = vm.stack[uv.Location]
		uv.IsClosed = true
		vm.openUpvalues = uv.Next
	}
}

func (vm *VM) readUpvalue(frame *callFrame, idx int) value.Value {
	uv := frame.closure.Upvalues[idx]
	if uv.IsClosed {
		return uv.Closed
	}
	return vm.stack[uv.Location]
}

func (vm *VM) writeUpvalue(frame *callFrame, idx int, v value.Value) {
	uv := frame.closure.Upvalues[idx]
	if uv.IsClosed {
		uv.Closed = v
	} else {
		vm.stack[uv.Location] = v
	}
}

// opMethod installs the closure on top of the stack into the class just
// below it under name, stamping Owner so super() can find it later, and
// refreshing the class's cached dunder slot when name matches one of the
// hot set (spec.md §3 "cached... dunder methods").
func (vm *VM) opMethod(name string) {
	methodVal := vm.pop()
	cls := value.AsClass(vm.peek(0).AsObject())
	if methodVal.IsObjType(value.ObjTypeClosure) {
		value.AsClosure(methodVal.AsObject()).Function.Owner = cls
	}
	cls.Methods.Set(vm.intern(name), methodVal)
	m := methodVal.AsObject()
	switch name {
	case "__getitem__":
		cls.GetItem = m
	case "__setitem__":
		cls.SetItem = m
	case "__repr__":
		cls.Repr = m
	case "__str__":
		cls.Str = m
	case "__call__":
		cls.Call = m
	case "__init__":
		cls.Init = m
	case "__eq__":
		cls.Eq = m
	case "__len__":
		cls.Len = m
	case "__enter__":
		cls.Enter = m
	case "__exit__":
		cls.Exit = m
	case "__delitem__":
		cls.DelItem = m
	case "__iter__":
		cls.Iter = m
	case "__getattr__":
		cls.GetAttr = m
	case "__dir__":
		cls.Dir = m
	case "__getslice__":
		cls.GetSlice = m
	case "__setslice__":
		cls.SetSlice = m
	case "__delslice__":
		cls.DelSlice = m
	}
}

// --- calling convention -------------------------------------------------------

// opKwargs collapses the argc tag/value pairs argumentList emitted into a
// clean positional-args slice plus an optional keyword Table, handed off to
// the CALL/INVOKE instruction that always immediately follows (spec.md
// §4.3 "Calls"). It never touches the callee/receiver sitting below them.
func (vm *VM) opKwargs(argc int) {
	n := 2 * argc
	raw := make([]value.Value, n)
	copy(raw, vm.stack[len(vm.stack)-n:])
	vm.popN(n)

	positional := make([]value.Value, 0, argc)
	var kwargs *value.Table
	ensure := func() *value.Table {
		if kwargs == nil {
			kwargs = value.NewTable()
		}
		return kwargs
	}
	for i := 0; i < n; i += 2 {
		tag := raw[i]
		val := raw[i+1]
		if tag.IsKwargs() {
			switch tag.AsInt() {
			case value.KwargsNil:
				positional = append(positional, val)
			case value.KwargsList:
				items, ok := vm.expandIterable(val)
				if !ok {
					return
				}
				positional = append(positional, items...)
			case value.KwargsDict:
				t, ok := vm.asTable(val)
				if !ok {
					return
				}
				t.Each(func(k, v value.Value) { ensure().Set(k, v) })
			default:
				vm.raiseString("RuntimeError", "malformed call arguments")
				return
			}
		} else {
			ensure().Set(tag, val)
		}
	}
	vm.pendingArgs = positional
	vm.pendingKwargs = kwargs
}

// takePendingArgs consumes the one-shot handoff OpKwargs leaves, or — if no
// OpKwargs ran (the untagged emitGlobalInvoke/dunder convention) — pops argc
// raw positional values straight off the stack.
func (vm *VM) takePendingArgs(argc int) ([]value.Value, *value.Table) {
	if vm.pendingArgs != nil || vm.pendingKwargs != nil {
		args, kw := vm.pendingArgs, vm.pendingKwargs
		vm.pendingArgs, vm.pendingKwargs = nil, nil
		return args, kw
	}
	args := make([]value.Value, argc)
	copy(args, vm.stack[len(vm.stack)-argc:])
	vm.popN(argc)
	return args, nil
}

func (vm *VM) opCall(argc int) {
	args, kwargs := vm.takePendingArgs(argc)
	callee := vm.pop()
	result, ok := vm.callValue(callee, args, kwargs)
	if !ok {
		return
	}
	vm.push(result)
}

func (vm *VM) opInvoke(name string, argc int) {
	args, kwargs := vm.takePendingArgs(argc)
	receiver := vm.pop()
	cls := vm.classOf(receiver)
	nameVal := vm.intern(name)
	m, ok := lookupMethod(cls, nameVal)
	if !ok {
		v, ok2 := vm.getAttr(receiver, nameVal)
		if !ok2 {
			return
		}
		result, ok3 := vm.callValue(v, args, kwargs)
		if !ok3 {
			return
		}
		vm.push(result)
		return
	}
	full := append([]value.Value{receiver}, args...)
	result, ok := vm.callValue(value.ObjVal(m), full, kwargs)
	if !ok {
		return
	}
	vm.push(result)
}

// callValue is the single call-dispatch point every opcode (CALL, INVOKE,
// builtins' vm.Call, generator resumption) funnels through: closures run on
// a fresh interpreter frame, natives run directly in Go, bound methods
// prepend their receiver, classes construct a new instance and run __init__
// (spec.md §4.3 "Calls").
func (vm *VM) callValue(callee value.Value, args []value.Value, kwargs *value.Table) (value.Value, bool) {
	if !callee.IsObject() {
		vm.raiseString("TypeError", "'%s' object is not callable", vm.classOf(callee).Name)
		return value.None(), false
	}
	obj := callee.AsObject()
	switch obj.Type {
	case value.ObjTypeClosure:
		closure := value.AsClosure(obj)
		if closure.Function.IsGenerator {
			return vm.makeGenerator(closure, args, kwargs)
		}
		return vm.callClosure(closure, args, kwargs)
	case value.ObjTypeNative:
		n := value.AsNative(obj)
		result := vm.callNative(n, args, kwargs)
		return result, vm.pendingException == nil
	case value.ObjTypeBoundMethod:
		b := value.AsBoundMethod(obj)
		full := append([]value.Value{b.Receiver}, args...)
		return vm.callValue(value.ObjVal(b.Method), full, kwargs)
	case value.ObjTypeClass:
		cls := value.AsClass(obj)
		inst := vm.Heap.NewInstance(cls)
		if cls.Init != nil {
			full := append([]value.Value{value.ObjVal(inst)}, args...)
			if _, ok := vm.callValue(value.ObjVal(cls.Init), full, kwargs); !ok {
				return value.None(), false
			}
		}
		return value.ObjVal(inst), true
	case value.ObjTypeInstance:
		inst := value.AsInstance(obj)
		if inst.Class.Call != nil {
			full := append([]value.Value{callee}, args...)
			return vm.callValue(value.ObjVal(inst.Class.Call), full, kwargs)
		}
	}
	vm.raiseString("TypeError", "'%s' object is not callable", vm.classOf(callee).Name)
	return value.None(), false
}

func (vm *VM) callNative(n *value.NativeObj, args []value.Value, kwargs *value.Table) value.Value {
	if kwargs != nil {
		args = append(args, value.ObjVal(vm.tableObj(kwargs)))
	}
	return n.Fn(vm, args, kwargs != nil)
}

// tableObj wraps a raw kwargs Table as a dict instance so native functions
// see the same dict type language code would pass; internal/builtins'
// dict class installs the Native payload type this assumes.
func (vm *VM) tableObj(t *value.Table) *value.Obj {
	inst := vm.Heap.NewInstance(vm.Classes.Dict)
	value.AsInstance(inst).Native = t
	return inst
}

func (vm *VM) asTable(v value.Value) (*value.Table, bool) {
	if v.IsObjType(value.ObjTypeInstance) {
		inst := value.AsInstance(v.AsObject())
		if t, ok := inst.Native.(*value.Table); ok {
			return t, true
		}
	}
	vm.raiseString("TypeError", "'%s' object is not a mapping", vm.classOf(v).Name)
	return nil, false
}

// callClosure binds args/kwargs into a fresh frame's locals per the
// function's required/keyword/collects-args/collects-kwargs signature
// (spec.md §4.3 "Default arguments", "*args/**kwargs"), prefilling unset
// optional locals with the KwargsNil sentinel the compiled prologue checks.
func (vm *VM) callClosure(closure *value.ClosureObj, args []value.Value, kwargs *value.Table) (value.Value, bool) {
	fn := closure.Function
	if len(vm.frames) >= vm.recursionLimit {
		vm.raiseString("RuntimeError", "maximum recursion depth exceeded")
		return value.None(), false
	}

	base := len(vm.stack) + 1
	vm.push(value.ObjVal(closure.Obj))

	required := fn.RequiredArgNames
	keyword := fn.KeywordArgNames

	positional := args
	// Consume positional args for required slots first, then keyword slots.
	for i := range required {
		if i < len(positional) {
			vm.push(positional[i])
		} else {
			vm.raiseString("ArgumentError", "%s() missing required argument '%s'", displayName(fn), required[i])
			vm.stack = vm.stack[:base-1]
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

	vm.frames = append(vm.frames, &callFrame{closure: closure, base: base})
	result, ok := vm.runFrame()
	return result, ok
}

func containsName(names []string, key value.Value) bool {
	if !key.IsObjType(value.ObjTypeString) {
		return false
	}
	s := value.AsString(key.AsObject()).Chars
	for _, n := range names {
		if n == s {
			return true
		}
	}
	return false
}

func displayName(fn *value.FunctionObj) string {
	if fn.Name == "" {
		return "<anonymous>"
	}
	return fn.Name
}

func (vm *VM) newTuple(vals []value.Value) *value.Obj { return vm.Heap.NewTuple(vals) }
