package vm

import (
	"fmt"
	"math"
	"strings"

	"kuroko/internal/bytecode"
	"kuroko/internal/value"
)

// --- container payload conventions ------------------------------------------
//
// list/dict/set are ordinary Instances of vm.Classes.{List,Dict,Set} whose
// Go-native storage lives in InstanceObj.Native (spec.md §3's "builtin
// container types are also Instances" note on kuroko's KrkList/KrkDict
// embedding a KrkInstance). A list's Native is *[]value.Value so append can
// grow it in place; dict/set share *value.Table, a set simply ignoring the
// stored values. internal/builtins installs the classes (and their
// __getitem__/append/etc. methods) that operate on this same payload; the
// VM only needs to be able to construct and iterate them.

func (vm *VM) newListObj(items []value.Value) *value.Obj {
	cp := make([]value.Value, len(items))
	copy(cp, items)
	inst := vm.Heap.NewInstance(vm.Classes.List)
	value.AsInstance(inst).Native = &cp
	return inst
}

func (vm *VM) asList(v value.Value) (*[]value.Value, bool) {
	if v.IsObjType(value.ObjTypeInstance) {
		if l, ok := value.AsInstance(v.AsObject()).Native.(*[]value.Value); ok {
			return l, true
		}
	}
	vm.raiseString("TypeError", "'%s' object is not a list", vm.classOf(v).Name)
	return nil, false
}

func (vm *VM) newSetObj(items []value.Value) *value.Obj {
	t := value.NewTable()
	for _, it := range items {
		t.Set(it, value.Bool(true))
	}
	inst := vm.Heap.NewInstance(vm.Classes.Set)
	value.AsInstance(inst).Native = t
	return inst
}

func (vm *VM) newDictObj(t *value.Table) *value.Obj { return vm.tableObj(t) }

// --- arithmetic --------------------------------------------------------------

func toFloat(v value.Value) (float64, bool) {
	switch v.Kind() {
	case value.KindInteger:
		return float64(v.AsInt()), true
	case value.KindFloating:
		return v.AsFloat(), true
	case value.KindBoolean:
		if v.AsBool() {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

func isString(v value.Value) bool { return v.IsObjType(value.ObjTypeString) }
func strOf(v value.Value) string  { return value.AsString(v.AsObject()).Chars }

// binaryOp implements the arithmetic/bitwise opcodes (spec.md §4.3
// "Operators"): numeric promotion to float when either side is floating,
// string/list/tuple +, string and list repetition by an int (tuple * int is
// a TypeError), bitwise/shift requiring both operands be integers.
func (vm *VM) binaryOp(op bytecode.OpCode, a, b value.Value) (value.Value, bool) {
	if op == bytecode.OpAdd {
		if isString(a) && isString(b) {
			return vm.intern(strOf(a) + strOf(b)), true
		}
		if la, ok := vm.tryAsList(a); ok {
			if lb, ok := vm.tryAsList(b); ok {
				out := append(append([]value.Value{}, *la...), *lb...)
				return value.ObjVal(vm.newListObj(out)), true
			}
		}
		if a.IsObjType(value.ObjTypeTuple) && b.IsObjType(value.ObjTypeTuple) {
			ta := value.AsTuple(a.AsObject()).Values
			tb := value.AsTuple(b.AsObject()).Values
			out := append(append([]value.Value{}, ta...), tb...)
			return value.ObjVal(vm.newTuple(out)), true
		}
	}
	if op == bytecode.OpMultiply {
		if isString(a) && b.IsInt() {
			return vm.intern(strings.Repeat(strOf(a), int(b.AsInt()))), true
		}
		if isString(b) && a.IsInt() {
			return vm.intern(strings.Repeat(strOf(b), int(a.AsInt()))), true
		}
		if la, ok := vm.tryAsList(a); ok && b.IsInt() {
			return value.ObjVal(vm.newListObj(repeatValues(*la, int(b.AsInt())))), true
		}
	}

	switch op {
	case bytecode.OpBitAnd, bytecode.OpBitOr, bytecode.OpBitXor, bytecode.OpShiftLeft, bytecode.OpShiftRight:
		if !a.IsInt() || !b.IsInt() {
			vm.raiseString("TypeError", "bitwise operator requires integer operands")
			return value.None(), false
		}
		ai, bi := a.AsInt(), b.AsInt()
		switch op {
		case bytecode.OpBitAnd:
			return value.Int(ai & bi), true
		case bytecode.OpBitOr:
			return value.Int(ai | bi), true
		case bytecode.OpBitXor:
			return value.Int(ai ^ bi), true
		case bytecode.OpShiftLeft:
			return value.Int(ai << uint(bi)), true
		case bytecode.OpShiftRight:
			return value.Int(ai >> uint(bi)), true
		}
	}

	if !a.IsNumber() || !b.IsNumber() {
		vm.raiseString("TypeError", "unsupported operand type(s) for %s: '%s' and '%s'",
			opSymbol(op), vm.classOf(a).Name, vm.classOf(b).Name)
		return value.None(), false
	}

	bothInt := a.IsInt() && b.IsInt()
	if op == bytecode.OpFloorDivide || op == bytecode.OpModulo {
		bothInt = bothInt || (a.Kind() == value.KindBoolean && b.Kind() == value.KindBoolean)
	}

	af, _ := toFloat(a)
	bf, _ := toFloat(b)

	switch op {
	case bytecode.OpAdd:
		if bothInt {
			return value.Int(a.AsInt() + b.AsInt()), true
		}
		return value.Float(af + bf), true
	case bytecode.OpSubtract:
		if bothInt {
			return value.Int(a.AsInt() - b.AsInt()), true
		}
		return value.Float(af - bf), true
	case bytecode.OpMultiply:
		if bothInt {
			return value.Int(a.AsInt() * b.AsInt()), true
		}
		return value.Float(af * bf), true
	case bytecode.OpDivide:
		if bf == 0 {
			vm.raiseString("ZeroDivisionError", "division by zero")
			return value.None(), false
		}
		return value.Float(af / bf), true
	case bytecode.OpFloorDivide:
		if bf == 0 {
			vm.raiseString("ZeroDivisionError", "division by zero")
			return value.None(), false
		}
		if bothInt {
			q := a.AsInt() / b.AsInt()
			if (a.AsInt()%b.AsInt() != 0) && ((a.AsInt() < 0) != (b.AsInt() < 0)) {
				q--
			}
			return value.Int(q), true
		}
		return value.Float(math.Floor(af / bf)), true
	case bytecode.OpModulo:
		if bothInt {
			if b.AsInt() == 0 {
				vm.raiseString("ZeroDivisionError", "modulo by zero")
				return value.None(), false
			}
			m := a.AsInt() % b.AsInt()
			if m != 0 && (m < 0) != (b.AsInt() < 0) {
				m += b.AsInt()
			}
			return value.Int(m), true
		}
		if bf == 0 {
			vm.raiseString("ZeroDivisionError", "modulo by zero")
			return value.None(), false
		}
		m := math.Mod(af, bf)
		if m != 0 && (m < 0) != (bf < 0) {
			m += bf
		}
		return value.Float(m), true
	case bytecode.OpPower:
		if bothInt && b.AsInt() >= 0 {
			return value.Int(intPow(a.AsInt(), b.AsInt())), true
		}
		return value.Float(math.Pow(af, bf)), true
	}
	vm.raiseString("RuntimeError", "unimplemented binary operator")
	return value.None(), false
}

func (vm *VM) tryAsList(v value.Value) (*[]value.Value, bool) {
	if v.IsObjType(value.ObjTypeInstance) {
		if l, ok := value.AsInstance(v.AsObject()).Native.(*[]value.Value); ok {
			return l, true
		}
	}
	return nil, false
}

func repeatValues(items []value.Value, n int) []value.Value {
	if n <= 0 {
		return nil
	}
	out := make([]value.Value, 0, len(items)*n)
	for i := 0; i < n; i++ {
		out = append(out, items...)
	}
	return out
}

func intPow(base, exp int64) int64 {
	var result int64 = 1
	for exp > 0 {
		if exp&1 == 1 {
			result *= base
		}
		base *= base
		exp >>= 1
	}
	return result
}

func opSymbol(op bytecode.OpCode) string {
	switch op {
	case bytecode.OpAdd:
		return "+"
	case bytecode.OpSubtract:
		return "-"
	case bytecode.OpMultiply:
		return "*"
	case bytecode.OpDivide:
		return "/"
	case bytecode.OpFloorDivide:
		return "//"
	case bytecode.OpModulo:
		return "%"
	case bytecode.OpPower:
		return "**"
	default:
		return "?"
	}
}

func (vm *VM) negate(v value.Value) (value.Value, bool) {
	switch {
	case v.IsInt():
		return value.Int(-v.AsInt()), true
	case v.IsFloat():
		return value.Float(-v.AsFloat()), true
	case v.Kind() == value.KindBoolean:
		if v.AsBool() {
			return value.Int(-1), true
		}
		return value.Int(0), true
	}
	vm.raiseString("TypeError", "bad operand type for unary -: '%s'", vm.classOf(v).Name)
	return value.None(), false
}

// compare implements ordering comparisons: numeric promotion like binaryOp,
// lexicographic for strings, otherwise a TypeError (spec.md §4.3 leaves
// ordering comparisons on arbitrary objects undefined).
func (vm *VM) compare(op bytecode.OpCode, a, b value.Value) (bool, bool) {
	if isString(a) && isString(b) {
		sa, sb := strOf(a), strOf(b)
		switch op {
		case bytecode.OpGreater:
			return sa > sb, true
		case bytecode.OpGreaterEqual:
			return sa >= sb, true
		case bytecode.OpLess:
			return sa < sb, true
		case bytecode.OpLessEqual:
			return sa <= sb, true
		}
	}
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if !aok || !bok {
		vm.raiseString("TypeError", "'%s' not supported between instances of '%s' and '%s'",
			opSymbol(op), vm.classOf(a).Name, vm.classOf(b).Name)
		return false, false
	}
	switch op {
	case bytecode.OpGreater:
		return af > bf, true
	case bytecode.OpGreaterEqual:
		return af >= bf, true
	case bytecode.OpLess:
		return af < bf, true
	case bytecode.OpLessEqual:
		return af <= bf, true
	}
	return false, false
}

// contains implements the `in` operator: substring test for strings, key
// membership for dict/set, linear scan (via valuesEqual) for list/tuple and
// any other iterable.
func (vm *VM) contains(container, item value.Value) (bool, bool) {
	if isString(container) {
		if !isString(item) {
			vm.raiseString("TypeError", "'in <string>' requires string as left operand")
			return false, false
		}
		return strings.Contains(strOf(container), strOf(item)), true
	}
	if container.IsObjType(value.ObjTypeInstance) {
		inst := value.AsInstance(container.AsObject())
		if t, ok := inst.Native.(*value.Table); ok {
			_, found := t.Get(item)
			return found, true
		}
	}
	items, ok := vm.expandIterable(container)
	if !ok {
		return false, false
	}
	for _, it := range items {
		if vm.valuesEqual(it, item) {
			return true, true
		}
	}
	return false, true
}

// valuesEqual implements "==": dispatches to a class's cached __eq__ for
// Instances that define one (spec.md §3 "cached... dunder methods"),
// otherwise falls back to value.Equal's structural rules.
func (vm *VM) valuesEqual(a, b value.Value) bool {
	if a.IsObjType(value.ObjTypeInstance) {
		cls := value.AsInstance(a.AsObject()).Class
		if cls.Eq != nil {
			res, ok := vm.callValue(value.ObjVal(cls.Eq), []value.Value{a, b}, nil)
			if !ok {
				return false
			}
			return res.Truthy()
		}
	}
	if la, ok := vm.tryAsList(a); ok {
		if lb, ok := vm.tryAsList(b); ok {
			return sliceEqual(vm, *la, *lb)
		}
		return false
	}
	return value.Equal(a, b)
}

func sliceEqual(vm *VM, a, b []value.Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !vm.valuesEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

// --- iteration -----------------------------------------------------------

// expandIterable fully drains val into a slice, used by *args call
// expansion, `in`, and sequence unpacking (**dict expansion goes through
// asTable instead). Tuples/lists/sets/dicts are read
// directly off their native payload; strings expand into one-codepoint
// strings each; everything else is driven through the __iter__/__next__
// protocol synchronously (spec.md §4.4 "Iterator protocol").
func (vm *VM) expandIterable(val value.Value) ([]value.Value, bool) {
	if val.IsObjType(value.ObjTypeTuple) {
		return append([]value.Value{}, value.AsTuple(val.AsObject()).Values...), true
	}
	if l, ok := vm.tryAsList(val); ok {
		return append([]value.Value{}, *l...), true
	}
	if isString(val) {
		s := strOf(val)
		out := make([]value.Value, 0, len(s))
		for _, r := range s {
			out = append(out, vm.intern(string(r)))
		}
		return out, true
	}
	if val.IsObjType(value.ObjTypeInstance) {
		inst := value.AsInstance(val.AsObject())
		if t, ok := inst.Native.(*value.Table); ok {
			return append([]value.Value{}, t.Keys()...), true
		}
	}

	iter, ok := vm.invoke(val, "__iter__", nil)
	if !ok {
		return nil, false
	}
	var out []value.Value
	for {
		next, ok := vm.invoke(iter, "__next__", nil)
		if !ok {
			return nil, false
		}
		if value.Same(next, iter) {
			return out, true
		}
		out = append(out, next)
	}
}

// opForIter implements FOR_ITER's peek-don't-pop contract (see
// internal/compiler/loops.go's forIn): it synchronously calls __next__ on
// whatever sits on top of the stack, leaving the iterator in place and
// either pushing the yielded value or jumping past the loop body on
// sentinel exhaustion.
func (vm *VM) opForIter(frame *callFrame, off int) {
	iter := vm.peek(0)
	next, ok := vm.invoke(iter, "__next__", nil)
	if !ok {
		return
	}
	if value.Same(next, iter) {
		frame.ip += off
		return
	}
	vm.push(next)
}

// --- container construction ------------------------------------------------

func (vm *VM) opBuildTuple(n int) {
	items := vm.popInOrder(n)
	vm.push(value.ObjVal(vm.newTuple(items)))
}

func (vm *VM) opBuildList(n int) {
	items := vm.popInOrder(n)
	vm.push(value.ObjVal(vm.newListObj(items)))
}

func (vm *VM) opBuildSet(n int) {
	items := vm.popInOrder(n)
	vm.push(value.ObjVal(vm.newSetObj(items)))
}

func (vm *VM) opBuildMap(n int) {
	raw := vm.popInOrder(2 * n)
	t := value.NewTable()
	for i := 0; i < len(raw); i += 2 {
		t.Set(raw[i], raw[i+1])
	}
	vm.push(value.ObjVal(vm.newDictObj(t)))
}

// popInOrder pops the top n stack slots, returning them oldest-pushed-first.
func (vm *VM) popInOrder(n int) []value.Value {
	out := make([]value.Value, n)
	copy(out, vm.stack[len(vm.stack)-n:])
	vm.popN(n)
	return out
}

// opUnpack pops one iterable and pushes its elements oldest-first, so the
// bindTarget declareLocal sequence that follows assigns names left-to-right
// (internal/compiler/loops.go's parseForTargets).
func (vm *VM) opUnpack(n int) {
	v := vm.pop()
	items, ok := vm.expandIterable(v)
	if !ok {
		return
	}
	if len(items) != n {
		vm.raiseString("ValueError", "expected %d values to unpack, got %d", n, len(items))
		return
	}
	for _, it := range items {
		vm.push(it)
	}
}

// --- f-string formatting ---------------------------------------------------

// opFormat renders the popped value per the f-string conversion flag (0/1:
// str(), 2: repr()) and pushes the resulting string, ready for the OP_ADD
// concatenation internal/compiler/fstring.go emits around it.
func (vm *VM) opFormat(flag int) {
	v := vm.pop()
	s, ok := vm.stringify(v, flag == 2)
	if !ok {
		return
	}
	vm.push(vm.intern(s))
}

// stringify implements str()/repr() for any value: cached __str__/__repr__
// dunders for Instances that define them, direct formatting for the
// built-in scalar/container shapes otherwise (spec.md §4.3 "str/repr").
func (vm *VM) stringify(v value.Value, repr bool) (string, bool) {
	if v.IsObjType(value.ObjTypeInstance) {
		cls := value.AsInstance(v.AsObject()).Class
		target := cls.Str
		if repr && cls.Repr != nil {
			target = cls.Repr
		}
		if target != nil {
			res, ok := vm.callValue(value.ObjVal(target), []value.Value{v}, nil)
			if !ok {
				return "", false
			}
			if isString(res) {
				return strOf(res), true
			}
			return "", false
		}
	}
	return vm.defaultStringify(v, repr), true
}

func (vm *VM) defaultStringify(v value.Value, repr bool) string {
	switch v.Kind() {
	case value.KindNone:
		return "None"
	case value.KindBoolean:
		if v.AsBool() {
			return "True"
		}
		return "False"
	case value.KindInteger:
		return fmt.Sprintf("%d", v.AsInt())
	case value.KindFloating:
		return fmt.Sprintf("%g", v.AsFloat())
	case value.KindObject:
		o := v.AsObject()
		switch o.Type {
		case value.ObjTypeString:
			if repr {
				return "'" + strOf(v) + "'"
			}
			return strOf(v)
		case value.ObjTypeBytes:
			return fmt.Sprintf("b%q", value.AsBytes(o).Bytes)
		case value.ObjTypeTuple:
			t := value.AsTuple(o)
			parts := make([]string, len(t.Values))
			for i, e := range t.Values {
				parts[i], _ = vm.stringify(e, true)
			}
			suffix := ""
			if len(parts) == 1 {
				suffix = ","
			}
			return "(" + strings.Join(parts, ", ") + suffix + ")"
		case value.ObjTypeInstance:
			inst := value.AsInstance(o)
			if l, ok := inst.Native.(*[]value.Value); ok {
				parts := make([]string, len(*l))
				for i, e := range *l {
					parts[i], _ = vm.stringify(e, true)
				}
				return "[" + strings.Join(parts, ", ") + "]"
			}
			if t, ok := inst.Native.(*value.Table); ok {
				if inst.Class == vm.Classes.Set {
					parts := make([]string, 0, t.Count())
					for _, k := range t.Keys() {
						s, _ := vm.stringify(k, true)
						parts = append(parts, s)
					}
					return "{" + strings.Join(parts, ", ") + "}"
				}
				parts := make([]string, 0, t.Count())
				t.Each(func(k, val value.Value) {
					ks, _ := vm.stringify(k, true)
					vs, _ := vm.stringify(val, true)
					parts = append(parts, ks+": "+vs)
				})
				return "{" + strings.Join(parts, ", ") + "}"
			}
			return fmt.Sprintf("<%s object>", inst.Class.Name)
		case value.ObjTypeClass:
			return fmt.Sprintf("<class '%s'>", value.AsClass(o).Name)
		case value.ObjTypeFunction:
			return fmt.Sprintf("<function %s>", displayName(value.AsFunction(o)))
		case value.ObjTypeClosure:
			return fmt.Sprintf("<function %s>", displayName(value.AsClosure(o).Function))
		case value.ObjTypeBoundMethod:
			return "<bound method>"
		case value.ObjTypeNative:
			return fmt.Sprintf("<built-in function %s>", value.AsNative(o).Name)
		}
	}
	return "<?>"
}
