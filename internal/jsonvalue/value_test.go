package jsonvalue_test

import (
	"testing"

	"github.com/foldline/jsongit/internal/jsonvalue"
)

func obj(pairs ...any) jsonvalue.Value {
	m := jsonvalue.NewObject()
	for i := 0; i+1 < len(pairs); i += 2 {
		m.Set(pairs[i].(string), pairs[i+1].(jsonvalue.Value))
	}
	return jsonvalue.Object_(m)
}

func TestEqualIgnoresObjectKeyOrder(t *testing.T) {
	a := obj("a", jsonvalue.Number(1), "b", jsonvalue.Number(2))
	b := obj("b", jsonvalue.Number(2), "a", jsonvalue.Number(1))
	if !jsonvalue.Equal(a, b) {
		t.Fatalf("expected objects with different key order to be equal")
	}
}

func TestEqualRespectsArrayOrder(t *testing.T) {
	a := jsonvalue.Array([]jsonvalue.Value{jsonvalue.Number(1), jsonvalue.Number(2)})
	b := jsonvalue.Array([]jsonvalue.Value{jsonvalue.Number(2), jsonvalue.Number(1)})
	if jsonvalue.Equal(a, b) {
		t.Fatalf("expected arrays with different order to be unequal")
	}
}

func TestEqualDifferentKinds(t *testing.T) {
	if jsonvalue.Equal(jsonvalue.Number(1), jsonvalue.String("1")) {
		t.Fatalf("values of differing kind must never be equal")
	}
}

func TestQuickEqualMatchesEqual(t *testing.T) {
	a := obj("a", jsonvalue.Number(1), "b", jsonvalue.Array([]jsonvalue.Value{jsonvalue.Bool(true)}))
	b := obj("b", jsonvalue.Array([]jsonvalue.Value{jsonvalue.Bool(true)}), "a", jsonvalue.Number(1))
	if !jsonvalue.QuickEqual(a, b) {
		t.Fatalf("expected QuickEqual to agree with Equal for reordered objects")
	}

	c := obj("a", jsonvalue.Number(2))
	if jsonvalue.QuickEqual(a, c) {
		t.Fatalf("expected QuickEqual to detect inequality")
	}
}

func TestKeysForArrayAndObject(t *testing.T) {
	arr := jsonvalue.Array([]jsonvalue.Value{jsonvalue.Number(1), jsonvalue.Number(2), jsonvalue.Number(3)})
	if got := arr.Keys(); len(got) != 3 || got[0] != "0" || got[2] != "2" {
		t.Fatalf("unexpected array keys: %v", got)
	}

	o := obj("x", jsonvalue.Number(1), "y", jsonvalue.Number(2))
	if got := o.Keys(); len(got) != 2 || got[0] != "x" || got[1] != "y" {
		t.Fatalf("unexpected object keys (order not preserved): %v", got)
	}
}

func TestNativeRoundTrip(t *testing.T) {
	v := obj("n", jsonvalue.Number(3.5), "arr", jsonvalue.Array([]jsonvalue.Value{jsonvalue.String("x"), jsonvalue.Null()}))
	native := v.Native()
	back := jsonvalue.FromNative(native)
	if !jsonvalue.Equal(v, back) {
		t.Fatalf("Native/FromNative round trip changed value: %#v vs %#v", v, back)
	}
}
