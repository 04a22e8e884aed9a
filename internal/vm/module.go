package vm

import (
	"kuroko/internal/compiler"
	"kuroko/internal/value"
)

// Loader resolves an `import name` to source text, the seam an embedder
// wires to a filesystem search path (spec.md §4.3 "Modules" leaves module
// resolution to the embedder, same as original_source's KRK_PATH search).
type Loader func(name string) (src string, filename string, ok bool)

// SetLoader installs the file-based import resolver. Native modules
// registered via RegisterNativeModule are always tried first and never
// consult the loader.
func (vm *VM) SetLoader(l Loader) { vm.loader = l }

// opImport resolves `import name` (spec.md §4.3 "Modules"): a module is
// imported at most once per VM and cached by name, first against natives
// registered with RegisterNativeModule, then by compiling and running
// source the Loader resolves. Each imported module's top-level DEFINE_GLOBAL
// lands in its own Instance's Fields table rather than the shared globals,
// via FunctionObj.GlobalsContext (see globalsTable).
func (vm *VM) opImport(name string) {
	if mod, ok := vm.modules[name]; ok {
		vm.push(mod)
		return
	}
	if build, ok := vm.nativeModules[name]; ok {
		mod := build(vm)
		vm.modules[name] = mod
		vm.push(mod)
		return
	}
	if vm.loader == nil {
		vm.raiseString("ImportError", "no module named '%s'", name)
		return
	}
	src, filename, ok := vm.loader(name)
	if !ok {
		vm.raiseString("ImportError", "no module named '%s'", name)
		return
	}
	fn, err := compiler.Compile(src, filename, vm.Heap)
	if err != nil {
		vm.raiseString("ImportError", "error importing '%s': %s", name, err.Error())
		return
	}

	modObj := vm.Heap.NewInstance(vm.Classes.Module)
	modInst := value.AsInstance(modObj)
	fn.GlobalsContext = modInst

	closure := &value.ClosureObj{Function: fn}
	closureObj := vm.Heap.NewClosure(closure)
	vm.push(value.ObjVal(closureObj))
	vm.push(value.ObjVal(modObj)) // slot 0: the module instance itself
	vm.frames = append(vm.frames, &callFrame{closure: closure, base: len(vm.stack) - 1})
	if _, ok := vm.runFrame(); !ok {
		return // exception already propagating
	}

	modVal := value.ObjVal(modObj)
	vm.modules[name] = modVal
	vm.push(modVal)
}
