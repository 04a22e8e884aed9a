package value

// ObjType tags the heap-object variant, mirroring original_source/object.h's
// ObjType enum (spec.md §3's Object table).
type ObjType uint8

const (
	ObjTypeString ObjType = iota
	ObjTypeBytes
	ObjTypeTuple
	ObjTypeFunction
	ObjTypeClosure
	ObjTypeUpvalue
	ObjTypeClass
	ObjTypeInstance
	ObjTypeBoundMethod
	ObjTypeNative
	ObjTypeProperty
)

func (t ObjType) String() string {
	switch t {
	case ObjTypeString:
		return "str"
	case ObjTypeBytes:
		return "bytes"
	case ObjTypeTuple:
		return "tuple"
	case ObjTypeFunction:
		return "function"
	case ObjTypeClosure:
		return "closure"
	case ObjTypeUpvalue:
		return "upvalue"
	case ObjTypeClass:
		return "class"
	case ObjTypeInstance:
		return "instance"
	case ObjTypeBoundMethod:
		return "method"
	case ObjTypeNative:
		return "nativefn"
	case ObjTypeProperty:
		return "property"
	default:
		return "?"
	}
}

// Obj is the header every heap object embeds, identical in spirit to
// original_source/object.h's `struct Obj`. Every concrete variant below
// points back to its header through its Obj field, and the header holds a
// pointer to the variant payload, so a *Obj can be type-switched on Type and
// then mapped to its concrete variant by the As* helpers.
type Obj struct {
	Type       ObjType
	Marked     bool
	InRepr     bool
	Generation uint8
	Immortal   bool
	Hash       uint32
	Next       *Obj // global intrusive heap list, see heap.Heap

	// Variant payload. Exactly one of these is non-nil, selected by Type.
	// A pointer-union kept as named fields (rather than an interface{})
	// keeps allocation to one struct per object, same as the C layout.
	str    *StringObj
	bytes  *BytesObj
	tuple  *TupleObj
	fn     *FunctionObj
	clo    *ClosureObj
	upv    *UpvalueObj
	cls    *ClassObj
	inst   *InstanceObj
	bound  *BoundMethodObj
	native *NativeObj
	prop   *PropertyObj
}

// CodepointWidth records how many bytes each decoded codepoint of a String
// occupies in its lazily-built codepoint array, per original_source's
// KrkStringType (ASCII/UCS1/UCS2/UCS4) — see SPEC_FULL.md "Supplemented
// features".
type CodepointWidth uint8

const (
	WidthASCII   CodepointWidth = 0
	WidthUCS1    CodepointWidth = 1
	WidthUCS2    CodepointWidth = 2
	WidthUCS4    CodepointWidth = 4
	WidthInvalid CodepointWidth = 5
)

// StringObj is an interned, immutable byte string.
type StringObj struct {
	Obj        *Obj
	Chars      string // UTF-8 bytes
	Length     int    // byte length
	CodesLen   int    // codepoint count
	Width      CodepointWidth
	codes      []rune // lazily populated codepoint cache
}

func (s *StringObj) Codes() []rune {
	if s.codes == nil && s.CodesLen > 0 {
		s.codes = []rune(s.Chars)
	}
	return s.codes
}

// BytesObj is a mutable raw byte sequence (the `bytes` builtin).
type BytesObj struct {
	Obj   *Obj
	Bytes []byte
}

// TupleObj is an immutable fixed-size array of Values; its hash is fixed at
// construction (combined from element hashes in an order-sensitive way by
// heap.NewTuple, per spec.md §3).
type TupleObj struct {
	Obj    *Obj
	Values []Value
}

// LocalEntry is one row of a Function's debug-local table (spec.md §3).
type LocalEntry struct {
	ID       int
	Birthday int
	Deathday int
	Name     string
}

// FunctionObj is a compiled function prototype: its chunk plus arity and
// debug metadata. Closures wrap a FunctionObj with captured upvalues.
type FunctionObj struct {
	Obj               *Obj
	Name              string
	Doc               string
	RequiredArgs      int
	KeywordArgs       int
	RequiredArgNames  []string
	KeywordArgNames   []string
	CollectsArgs      bool
	CollectsKeywords  bool
	UpvalueCount      int
	Chunk             *Chunk
	LocalNames        []LocalEntry
	GlobalsContext    *InstanceObj // the owning module instance
	Owner             *ClassObj    // the class a method was installed on, for super() dispatch
	IsGenerator       bool         // body contains `yield`; calling it builds a suspended generator instead of running
}

// ClosureObj couples a FunctionObj with the Upvalues it captured at
// creation time.
type ClosureObj struct {
	Obj      *Obj
	Function *FunctionObj
	Upvalues []*UpvalueObj
}

// UpvalueObj is open (Location indexes a live VM stack slot) or closed
// (Closed holds the owned Value). Open upvalues are linked, sorted by
// stack index, into the owning thread's open-upvalue list via Next so that
// closing from the top of the stack is O(k) — see spec.md §3 invariants.
type UpvalueObj struct {
	Obj      *Obj
	Location int
	Closed   Value
	IsClosed bool
	Next     *UpvalueObj
}

// GCCallback lets a Class customize mark/sweep for instances whose payload
// isn't just the generic Fields table (list/dict/set wrap Go-native
// storage behind their Instance).
type GCCallback func(inst *InstanceObj, mark func(Value))

// ClassObj is a class: a method table, class-level fields, and — for
// O(1) dispatch — cached pointers to the hot dunder methods, exactly the
// slot list in spec.md §3.
type ClassObj struct {
	Obj        *Obj
	Name       string
	Base       *ClassObj
	Methods    *Table
	Fields     *Table
	AllocSize  int
	OnGCScan   GCCallback
	OnGCSweep  func(inst *InstanceObj)

	GetItem   *Obj
	SetItem   *Obj
	Repr      *Obj
	Str       *Obj
	Call      *Obj
	Init      *Obj
	Eq        *Obj
	Len       *Obj
	Enter     *Obj
	Exit      *Obj
	DelItem   *Obj
	Iter      *Obj
	GetAttr   *Obj
	Dir       *Obj
	GetSlice  *Obj
	SetSlice  *Obj
	DelSlice  *Obj
}

// InstanceObj is a plain instance of a Class. Builtin container types
// (list/dict/set/generator/module) are also Instances, with their
// Go-native payload stashed in Native and scanned/swept via the owning
// Class's OnGCScan/OnGCSweep, matching kuroko's KrkList/KrkDict embedding
// a KrkInstance.
type InstanceObj struct {
	Obj    *Obj
	Class  *ClassObj
	Fields *Table
	Native interface{}
}

// BoundMethodObj pairs a receiver with an unbound method (closure or
// native).
type BoundMethodObj struct {
	Obj      *Obj
	Receiver Value
	Method   *Obj
}

// NativeFn is the signature of a builtin: positional args, a flag marking
// whether the final argument is a kwargs dict, returns a Value. To raise, a
// native calls vm.RaiseString, which marks the exception pending, and
// returns the value it gives back.
type NativeFn func(vm NativeVM, args []Value, hasKwargs bool) Value

// NativeVM is the minimal surface natives need from the VM (pushing for
// GC safety, raising exceptions, calling back into the language) without
// importing the vm package here (which would cycle).
type NativeVM interface {
	Push(Value)
	Pop() Value
	Intern(s string) Value
	RaiseString(class string, format string, args ...interface{}) Value
	Call(callee Value, args []Value) (Value, bool)
}

// NativeObj is a Go-implemented builtin function or method.
type NativeObj struct {
	Obj      *Obj
	Name     string
	Doc      string
	IsMethod bool
	Fn       NativeFn
}

// PropertyObj wraps a callable invoked on attribute access with no call
// syntax (the `@property` decorator target).
type PropertyObj struct {
	Obj    *Obj
	Method Value
}

// The As* family recovers the concrete variant from a generic *Obj. Callers
// are expected to have checked Type (or used Value.IsObjType) first, same
// discipline as kuroko's AS_* macros.
func AsString(o *Obj) *StringObj         { return o.str }
func AsBytes(o *Obj) *BytesObj           { return o.bytes }
func AsTuple(o *Obj) *TupleObj           { return o.tuple }
func AsFunction(o *Obj) *FunctionObj     { return o.fn }
func AsClosure(o *Obj) *ClosureObj       { return o.clo }
func AsUpvalue(o *Obj) *UpvalueObj       { return o.upv }
func AsClass(o *Obj) *ClassObj           { return o.cls }
func AsInstance(o *Obj) *InstanceObj     { return o.inst }
func AsBoundMethod(o *Obj) *BoundMethodObj { return o.bound }
func AsNative(o *Obj) *NativeObj         { return o.native }
func AsProperty(o *Obj) *PropertyObj     { return o.prop }

// The New* family allocates a bare *Obj with header zeroed and the variant
// payload wired up. They do NOT link into any heap list or compute a
// hash/intern — that is the heap package's job (heap.Heap.New*), since
// object lifetime and GC linkage are a distinct spec component from value
// representation.
func NewStringObj(s *StringObj) *Obj {
	o := &Obj{Type: ObjTypeString, str: s}
	s.Obj = o
	return o
}

func NewBytesObj(b *BytesObj) *Obj {
	o := &Obj{Type: ObjTypeBytes, bytes: b}
	b.Obj = o
	return o
}

func NewTupleObj(t *TupleObj) *Obj {
	o := &Obj{Type: ObjTypeTuple, tuple: t}
	t.Obj = o
	return o
}

func NewFunctionObj(f *FunctionObj) *Obj {
	o := &Obj{Type: ObjTypeFunction, fn: f}
	f.Obj = o
	return o
}

func NewClosureObj(c *ClosureObj) *Obj {
	o := &Obj{Type: ObjTypeClosure, clo: c}
	c.Obj = o
	return o
}

func NewUpvalueObj(u *UpvalueObj) *Obj {
	o := &Obj{Type: ObjTypeUpvalue, upv: u}
	u.Obj = o
	return o
}

func NewClassObj(c *ClassObj) *Obj {
	o := &Obj{Type: ObjTypeClass, cls: c}
	c.Obj = o
	return o
}

func NewInstanceObj(i *InstanceObj) *Obj {
	o := &Obj{Type: ObjTypeInstance, inst: i}
	i.Obj = o
	return o
}

func NewBoundMethodObj(b *BoundMethodObj) *Obj {
	o := &Obj{Type: ObjTypeBoundMethod, bound: b}
	b.Obj = o
	return o
}

func NewNativeObj(n *NativeObj) *Obj {
	o := &Obj{Type: ObjTypeNative, native: n}
	n.Obj = o
	return o
}

func NewPropertyObj(p *PropertyObj) *Obj {
	o := &Obj{Type: ObjTypeProperty, prop: p}
	p.Obj = o
	return o
}
