// Package diff implements the structural diff engine: computing a typed,
// recursive description of how one JSON value differs from another, and
// applying such a description to a base value to reconstruct the derived
// value.
package diff

import (
	"sort"
	"strconv"

	"github.com/foldline/jsongit/internal/jsonvalue"
)

// Diff is the tagged union Replace(v) | Structural{removals, updates, appends}.
// A nil Replace means the diff is Structural; all three maps may be nil,
// which is equivalent to empty (the identity diff).
type Diff struct {
	Replace  *jsonvalue.Value
	Removals map[string]jsonvalue.Value
	Updates  map[string]*Diff
	Appends  map[string]jsonvalue.Value
}

// IsReplace reports whether this is a Replace diff.
func (d *Diff) IsReplace() bool { return d != nil && d.Replace != nil }

// IsIdentity reports whether this Structural diff carries no changes at all.
func (d *Diff) IsIdentity() bool {
	return d != nil && d.Replace == nil &&
		len(d.Removals) == 0 && len(d.Updates) == 0 && len(d.Appends) == 0
}

func replaceDiff(v jsonvalue.Value) *Diff {
	vv := v
	return &Diff{Replace: &vv}
}

// Compute produces the diff that Apply(Compute(a, b), a) reproduces as b.
//
//  1. If a and b are deeply equal, the result is an identity Structural
//     diff.
//  2. If the two values have different kinds, or either is a scalar, the
//     result is Replace(b).
//  3. Otherwise both are containers of the same kind and the result
//     records per-key/per-index removals, updates, and appends.
func Compute(a, b jsonvalue.Value) *Diff {
	if jsonvalue.QuickEqual(a, b) && jsonvalue.Equal(a, b) {
		return &Diff{}
	}
	if a.Kind() != b.Kind() || a.Kind().IsScalar() {
		return replaceDiff(b)
	}

	aKeys := a.Keys()
	bKeys := b.Keys()
	bSet := make(map[string]bool, len(bKeys))
	for _, k := range bKeys {
		bSet[k] = true
	}
	aSet := make(map[string]bool, len(aKeys))
	for _, k := range aKeys {
		aSet[k] = true
	}

	d := &Diff{}
	for _, k := range aKeys {
		if !bSet[k] {
			av := getChild(a, k)
			if d.Removals == nil {
				d.Removals = map[string]jsonvalue.Value{}
			}
			d.Removals[k] = av
			continue
		}
		av := getChild(a, k)
		bv := getChild(b, k)
		if !jsonvalue.Equal(av, bv) {
			if d.Updates == nil {
				d.Updates = map[string]*Diff{}
			}
			d.Updates[k] = Compute(av, bv)
		}
	}
	for _, k := range bKeys {
		if !aSet[k] {
			bv := getChild(b, k)
			if d.Appends == nil {
				d.Appends = map[string]jsonvalue.Value{}
			}
			d.Appends[k] = bv
		}
	}
	return d
}

func getChild(v jsonvalue.Value, key string) jsonvalue.Value {
	if v.Kind() == jsonvalue.KindArray {
		child, _ := v.Index(mustAtoi(key))
		return child
	}
	child, _ := v.Get(key)
	return child
}

func mustAtoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// Apply reconstructs the derived value by applying d to base.
func Apply(d *Diff, base jsonvalue.Value) jsonvalue.Value {
	if d.IsReplace() {
		return *d.Replace
	}
	if d.IsIdentity() {
		return base
	}
	switch base.Kind() {
	case jsonvalue.KindArray:
		return applyArray(d, base)
	case jsonvalue.KindObject:
		return applyObject(d, base)
	default:
		// A non-identity, non-replace Structural diff against a scalar
		// base cannot occur from Compute, but defensively return base
		// unchanged rather than panic.
		return base
	}
}

func applyObject(d *Diff, base jsonvalue.Value) jsonvalue.Value {
	result := jsonvalue.NewObject()
	if m := base.ObjectMap(); m != nil {
		for pair := m.Oldest(); pair != nil; pair = pair.Next() {
			if _, removed := d.Removals[pair.Key]; removed {
				continue
			}
			result.Set(pair.Key, pair.Value)
		}
	}
	for k, sub := range d.Updates {
		baseChild, _ := base.Get(k)
		result.Set(k, Apply(sub, baseChild))
	}
	appendKeys := make([]string, 0, len(d.Appends))
	for k := range d.Appends {
		appendKeys = append(appendKeys, k)
	}
	sort.Strings(appendKeys)
	for _, k := range appendKeys {
		result.Set(k, d.Appends[k])
	}
	return jsonvalue.Object_(result)
}

// applyArray relies on an invariant that Compute always upholds: for
// arrays, every updates key is smaller than every removals key (updates
// only ever touch the index range common to both compared arrays, and
// removals only ever cover the tail beyond it). That means removing the
// tail never shifts the positions updates refer to.
func applyArray(d *Diff, base jsonvalue.Value) jsonvalue.Value {
	items := base.ArrayItems()
	kept := make([]jsonvalue.Value, 0, len(items))
	for i, item := range items {
		if _, removed := d.Removals[strconv.Itoa(i)]; removed {
			continue
		}
		kept = append(kept, item)
	}
	for k, sub := range d.Updates {
		idx := mustAtoi(k)
		if idx >= 0 && idx < len(kept) {
			baseChild, _ := base.Index(idx)
			kept[idx] = Apply(sub, baseChild)
		}
	}

	appendKeys := make([]int, 0, len(d.Appends))
	for k := range d.Appends {
		appendKeys = append(appendKeys, mustAtoi(k))
	}
	sort.Ints(appendKeys)
	for _, idx := range appendKeys {
		v := d.Appends[strconv.Itoa(idx)]
		pos := idx
		if pos > len(kept) {
			pos = len(kept)
		}
		if pos < 0 {
			pos = 0
		}
		kept = append(kept, jsonvalue.Value{})
		copy(kept[pos+1:], kept[pos:])
		kept[pos] = v
	}
	return jsonvalue.Array(kept)
}
