// Package hashtable re-exports value.Table under the name callers outside
// the value package reach for when they mean "a hash table" rather than
// "a class/instance field table" — the concrete type and all its methods
// live in internal/value (see value.Table's doc comment for why: ClassObj
// and InstanceObj embed it directly, which rules out a separate package
// importing value without a cycle).
package hashtable

import "kuroko/internal/value"

type Table = value.Table

func New() *Table { return value.NewTable() }
