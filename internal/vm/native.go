package vm

import "kuroko/internal/value"

// Native-facing adapter: *VM already satisfies value.NativeVM (Push/Pop/
// Intern/RaiseString/Call below), the minimal surface internal/builtins'
// NativeFn closures get without builtins importing this package back
// (object.go's NativeVM doc comment explains the cycle this avoids).

func (vm *VM) Push(v value.Value) { vm.push(v) }
func (vm *VM) Pop() value.Value   { return vm.pop() }
func (vm *VM) Intern(s string) value.Value { return vm.intern(s) }
func (vm *VM) RaiseString(class string, format string, args ...interface{}) value.Value {
	return vm.raiseString(class, format, args...)
}

// Call lets a native function call back into a language-level callable
// (e.g. a key function passed to a sort builtin) through the exact same
// callValue dispatch CALL/INVOKE use.
func (vm *VM) Call(callee value.Value, args []value.Value) (value.Value, bool) {
	return vm.callValue(callee, args, nil)
}
