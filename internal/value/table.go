package value

// Table is the open-addressed hash map keyed by Value described in spec.md
// §4 and grounded on kuroko's table.c (original_source/obj_set.c shows the
// entries/capacity/tombstone shape this ports). It backs string interning,
// instance/class field tables, globals, and the `dict` builtin.
//
// It lives in the value package (rather than its own internal/hashtable
// package, as originally sketched) because ClassObj and InstanceObj embed
// *Table fields directly: hashtable.Table cannot embed value.Value without
// importing value, and value cannot import hashtable back without a cycle.
// internal/hashtable now just re-exports this type for callers that prefer
// the more specific import name.
type Table struct {
	entries   []tableEntry
	count     int // live entries
	tombCount int
}

const tableMaxLoad = 0.75

type tableEntry struct {
	Key     Value
	Val     Value
	present bool
	deleted bool
}

func NewTable() *Table { return &Table{} }

func tombstoneKey() Value { return Kwargs(0) }

// Count returns the number of live key/value pairs.
func (t *Table) Count() int { return t.count }

// Capacity returns the allocated slot count (for builtin repr of empty
// dicts/sets, which print differently depending on whether storage was
// ever allocated).
func (t *Table) Capacity() int { return len(t.entries) }

func (t *Table) Get(key Value) (Value, bool) {
	if len(t.entries) == 0 {
		return None(), false
	}
	idx, found := t.find(key)
	if !found {
		return None(), false
	}
	return t.entries[idx].Val, true
}

// Set inserts or overwrites key. Returns true if this was a new key.
func (t *Table) Set(key Value, val Value) bool {
	if float64(t.count+1) > float64(len(t.entries))*tableMaxLoad {
		t.grow()
	}
	idx := t.findSlot(key)
	e := &t.entries[idx]
	isNew := !e.present
	if isNew {
		t.count++
		if e.deleted {
			t.tombCount--
		}
	}
	e.Key = key
	e.Val = val
	e.present = true
	e.deleted = false
	return isNew
}

// Delete removes key, leaving a tombstone behind so later probes still find
// entries that were inserted after a collision with it.
func (t *Table) Delete(key Value) bool {
	if len(t.entries) == 0 {
		return false
	}
	idx, found := t.find(key)
	if !found {
		return false
	}
	t.entries[idx] = tableEntry{Key: tombstoneKey(), present: false, deleted: true}
	t.count--
	t.tombCount++
	return true
}

func (t *Table) find(key Value) (int, bool) {
	cap := len(t.entries)
	if cap == 0 {
		return 0, false
	}
	idx := int(Hash(key)) % cap
	if idx < 0 {
		idx += cap
	}
	for {
		e := &t.entries[idx]
		if !e.present && !e.deleted {
			return 0, false
		}
		if e.present && Equal(e.Key, key) {
			return idx, true
		}
		idx = (idx + 1) % cap
	}
}

// findSlot locates the slot key belongs in: an existing live entry, or the
// first tombstone/empty slot seen along the probe sequence (so repeated
// delete/insert cycles reclaim tombstones instead of growing forever).
func (t *Table) findSlot(key Value) int {
	cap := len(t.entries)
	idx := int(Hash(key)) % cap
	if idx < 0 {
		idx += cap
	}
	firstTomb := -1
	for {
		e := &t.entries[idx]
		if e.deleted {
			if firstTomb == -1 {
				firstTomb = idx
			}
		} else if !e.present {
			if firstTomb != -1 {
				return firstTomb
			}
			return idx
		} else if Equal(e.Key, key) {
			return idx
		}
		idx = (idx + 1) % cap
	}
}

func (t *Table) grow() {
	newCap := 8
	if len(t.entries) > 0 {
		newCap = len(t.entries) * 2
	}
	old := t.entries
	t.entries = make([]tableEntry, newCap)
	t.count = 0
	t.tombCount = 0
	for _, e := range old {
		if e.present {
			t.Set(e.Key, e.Val)
		}
	}
}

// Each calls fn for every live entry in slot order. Mutating the table from
// within fn is not supported (matches kuroko's iteration contract).
func (t *Table) Each(fn func(key, val Value)) {
	for _, e := range t.entries {
		if e.present {
			fn(e.Key, e.Val)
		}
	}
}

// Keys returns live keys in slot order.
func (t *Table) Keys() []Value {
	out := make([]Value, 0, t.count)
	for _, e := range t.entries {
		if e.present {
			out = append(out, e.Key)
		}
	}
	return out
}

// AddAll copies every live entry of src into t (used by set union/dict
// update).
func (t *Table) AddAll(src *Table) {
	src.Each(func(k, v Value) {
		t.Set(k, v)
	})
}

// FindInternedString looks up an interned string by raw bytes without
// materializing a Value first — mirrors kuroko's krk_findString, used by
// the allocator to check "has this byte sequence already been interned"
// before creating a new StringObj.
func (t *Table) FindInternedString(chars string, hash uint32) *StringObj {
	if len(t.entries) == 0 {
		return nil
	}
	cap := len(t.entries)
	idx := int(hash) % cap
	if idx < 0 {
		idx += cap
	}
	for {
		e := &t.entries[idx]
		if !e.present && !e.deleted {
			return nil
		}
		if e.present && e.Key.IsObjType(ObjTypeString) {
			s := AsString(e.Key.AsObject())
			if s.Obj.Hash == hash && s.Chars == chars {
				return s
			}
		}
		idx = (idx + 1) % cap
	}
}
