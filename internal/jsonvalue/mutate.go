package jsonvalue

// cloneObject returns a shallow copy of o's key/value pairs in the same
// order, so mutation helpers never alias a caller's map.
func cloneObject(o *Object) *Object {
	out := NewObject()
	if o == nil {
		return out
	}
	for pair := o.Oldest(); pair != nil; pair = pair.Next() {
		out.Set(pair.Key, pair.Value)
	}
	return out
}

// SetField returns a copy of v with key set to val. It reports false if v
// is not an object.
func SetField(v Value, key string, val Value) (Value, bool) {
	if v.kind != KindObject {
		return Value{}, false
	}
	obj := cloneObject(v.obj)
	obj.Set(key, val)
	return Object_(obj), true
}

// DeleteField returns a copy of v with key removed. It reports false if v
// is not an object or does not carry key.
func DeleteField(v Value, key string) (Value, bool) {
	if v.kind != KindObject || v.obj == nil {
		return Value{}, false
	}
	if _, ok := v.obj.Get(key); !ok {
		return Value{}, false
	}
	obj := cloneObject(v.obj)
	obj.Delete(key)
	return Object_(obj), true
}

// SetIndex returns a copy of v with index i replaced by val. It reports
// false if v is not an array or i is out of range.
func SetIndex(v Value, i int, val Value) (Value, bool) {
	if v.kind != KindArray || i < 0 || i >= len(v.arr) {
		return Value{}, false
	}
	out := make([]Value, len(v.arr))
	copy(out, v.arr)
	out[i] = val
	return Array(out), true
}

// DeleteIndex returns a copy of v with index i removed. It reports false
// if v is not an array or i is out of range.
func DeleteIndex(v Value, i int) (Value, bool) {
	if v.kind != KindArray || i < 0 || i >= len(v.arr) {
		return Value{}, false
	}
	out := make([]Value, 0, len(v.arr)-1)
	out = append(out, v.arr[:i]...)
	out = append(out, v.arr[i+1:]...)
	return Array(out), true
}

// AppendItem returns a copy of v with val appended. It reports false if v
// is not an array.
func AppendItem(v Value, val Value) (Value, bool) {
	if v.kind != KindArray {
		return Value{}, false
	}
	out := make([]Value, len(v.arr)+1)
	copy(out, v.arr)
	out[len(v.arr)] = val
	return Array(out), true
}
