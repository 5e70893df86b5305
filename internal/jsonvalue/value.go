// Package jsonvalue defines the tagged JSON value sum type shared by the
// codec, diff engine, and conflict detector. A Value is always one of
// null, bool, number, string, array, or object; there is no "undefined".
package jsonvalue

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Kind identifies which alternative of the JSON value sum a Value holds.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// IsScalar reports whether values of this kind are atomic for diffing
// purposes: null, bool, number, and string never recurse.
func (k Kind) IsScalar() bool {
	return k == KindNull || k == KindBool || k == KindNumber || k == KindString
}

// Object is an insertion-ordered string-to-Value map. The default codec
// keeps source key order when decoding but sorts keys when encoding, so the
// order does not survive an encode/decode round trip; key order is not
// semantically significant for equality.
type Object = orderedmap.OrderedMap[string, Value]

// Value is the tagged sum null | bool | number | string | array | object.
type Value struct {
	kind Kind
	b    bool
	n    float64
	s    string
	arr  []Value
	obj  *Object
}

func Null() Value                 { return Value{kind: KindNull} }
func Bool(b bool) Value           { return Value{kind: KindBool, b: b} }
func Number(n float64) Value      { return Value{kind: KindNumber, n: n} }
func String(s string) Value       { return Value{kind: KindString, s: s} }
func Array(items []Value) Value   { return Value{kind: KindArray, arr: items} }
func Object_(o *Object) Value     { return Value{kind: KindObject, obj: o} }
func NewObject() *Object          { return orderedmap.New[string, Value]() }

func (v Value) Kind() Kind     { return v.kind }
func (v Value) BoolValue() bool { return v.b }
func (v Value) NumberValue() float64 { return v.n }
func (v Value) StringValue() string  { return v.s }
func (v Value) ArrayItems() []Value  { return v.arr }
func (v Value) ObjectMap() *Object   { return v.obj }

// Len returns the number of entries for array/object values, 0 otherwise.
func (v Value) Len() int {
	switch v.kind {
	case KindArray:
		return len(v.arr)
	case KindObject:
		if v.obj == nil {
			return 0
		}
		return v.obj.Len()
	default:
		return 0
	}
}

// Get looks up an object field by name.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != KindObject || v.obj == nil {
		return Value{}, false
	}
	return v.obj.Get(key)
}

// Index looks up an array element by position.
func (v Value) Index(i int) (Value, bool) {
	if v.kind != KindArray || i < 0 || i >= len(v.arr) {
		return Value{}, false
	}
	return v.arr[i], true
}

// Keys returns object field names in insertion order, or array indices as
// decimal strings in ascending order — the shared "key/index" domain that
// the diff engine and conflict detector operate over.
func (v Value) Keys() []string {
	switch v.kind {
	case KindObject:
		if v.obj == nil {
			return nil
		}
		keys := make([]string, 0, v.obj.Len())
		for pair := v.obj.Oldest(); pair != nil; pair = pair.Next() {
			keys = append(keys, pair.Key)
		}
		return keys
	case KindArray:
		keys := make([]string, len(v.arr))
		for i := range v.arr {
			keys[i] = itoa(i)
		}
		return keys
	default:
		return nil
	}
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var buf [20]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}

// Equal reports whether two values are deeply, semantically equal: object
// key order never matters, array order always does.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindBool:
		return a.b == b.b
	case KindNumber:
		return a.n == b.n
	case KindString:
		return a.s == b.s
	case KindArray:
		if len(a.arr) != len(b.arr) {
			return false
		}
		for i := range a.arr {
			if !Equal(a.arr[i], b.arr[i]) {
				return false
			}
		}
		return true
	case KindObject:
		aLen, bLen := a.Len(), b.Len()
		if aLen != bLen {
			return false
		}
		if aLen == 0 {
			return true
		}
		for pair := a.obj.Oldest(); pair != nil; pair = pair.Next() {
			bv, ok := b.obj.Get(pair.Key)
			if !ok || !Equal(pair.Value, bv) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Native converts a Value into plain Go data (map[string]any, []any,
// string, float64, bool, nil) suitable for hashstructure-based hashing or
// for handing to encoding/json.
func (v Value) Native() any {
	switch v.kind {
	case KindNull:
		return nil
	case KindBool:
		return v.b
	case KindNumber:
		return v.n
	case KindString:
		return v.s
	case KindArray:
		out := make([]any, len(v.arr))
		for i, item := range v.arr {
			out[i] = item.Native()
		}
		return out
	case KindObject:
		out := make(map[string]any, v.Len())
		if v.obj != nil {
			for pair := v.obj.Oldest(); pair != nil; pair = pair.Next() {
				out[pair.Key] = pair.Value.Native()
			}
		}
		return out
	default:
		return nil
	}
}

// FromNative builds a Value from plain Go data as produced by
// encoding/json.Unmarshal into an any (map[string]any/[]any/float64/...).
// Object key order follows the source map's (undefined) iteration order;
// callers that need a stable order should build values through NewObject
// and Set directly instead.
func FromNative(n any) Value {
	switch t := n.(type) {
	case nil:
		return Null()
	case bool:
		return Bool(t)
	case float64:
		return Number(t)
	case string:
		return String(t)
	case []any:
		items := make([]Value, len(t))
		for i, item := range t {
			items[i] = FromNative(item)
		}
		return Array(items)
	case map[string]any:
		obj := NewObject()
		for k, vv := range t {
			obj.Set(k, FromNative(vv))
		}
		return Object_(obj)
	default:
		return Null()
	}
}
