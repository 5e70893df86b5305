// Package conflict implements the conflict detector: given two diffs
// computed against the same ancestor, it classifies overlapping edits and
// produces a (possibly empty) Conflict description.
package conflict

import (
	"github.com/foldline/jsongit/internal/diff"
	"github.com/foldline/jsongit/internal/jsonvalue"
)

// ValueEntry pairs the left and right effect of a contested key/index
// whose recorded change is a plain value (a removal or an append). A nil
// side is the "absent" sentinel for a key that has no effect.
type ValueEntry struct {
	Left, Right *jsonvalue.Value
}

// DiffEntry pairs the left and right nested diffs of a contested key
// reported whole under updates, without recursing into them.
type DiffEntry struct {
	Left, Right *diff.Diff
}

// ReplaceEntry pairs the left and right wholesale-replacement values. A
// nil side means that side's diff was Structural, not Replace.
type ReplaceEntry struct {
	Left, Right *jsonvalue.Value
}

// Conflict is the structural summary of overlapping, incompatible edits
// from two diffs sharing an ancestor.
type Conflict struct {
	Replace  *ReplaceEntry
	Removals map[string]ValueEntry
	Updates  map[string]DiffEntry
	Appends  map[string]ValueEntry
}

// Empty reports whether the conflict carries no contested entries at all.
func (c *Conflict) Empty() bool {
	if c == nil {
		return true
	}
	return c.Replace == nil && len(c.Removals) == 0 && len(c.Updates) == 0 && len(c.Appends) == 0
}

// Detect compares left and right, two diffs computed against a common
// ancestor, and reports the conflicts between them.
func Detect(left, right *diff.Diff) *Conflict {
	if left.IsReplace() || right.IsReplace() {
		return detectWithReplace(left, right)
	}
	return detectStructural(left, right)
}

func detectWithReplace(left, right *diff.Diff) *Conflict {
	if left.IsReplace() && right.IsReplace() {
		if jsonvalue.Equal(*left.Replace, *right.Replace) {
			return &Conflict{}
		}
		return &Conflict{Replace: &ReplaceEntry{Left: left.Replace, Right: right.Replace}}
	}

	// Exactly one side is Replace. If the other made no structural change
	// at all, there is nothing to conflict with.
	var replaceVal *jsonvalue.Value
	var other *diff.Diff
	var replaceIsLeft bool
	if left.IsReplace() {
		replaceVal, other, replaceIsLeft = left.Replace, right, true
	} else {
		replaceVal, other, replaceIsLeft = right.Replace, left, false
	}
	if other.IsIdentity() {
		return &Conflict{}
	}
	if replaceIsLeft {
		return &Conflict{Replace: &ReplaceEntry{Left: replaceVal, Right: nil}}
	}
	return &Conflict{Replace: &ReplaceEntry{Left: nil, Right: replaceVal}}
}

func detectStructural(left, right *diff.Diff) *Conflict {
	c := &Conflict{}

	// Same-verb collisions: a conflict only if the recorded effect differs.
	for k, lv := range left.Removals {
		if rv, ok := right.Removals[k]; ok {
			if !jsonvalue.Equal(lv, rv) {
				setValueConflict(&c.Removals, k, &lv, &rv)
			}
		}
	}
	for k, lv := range left.Appends {
		if rv, ok := right.Appends[k]; ok {
			if !jsonvalue.Equal(lv, rv) {
				setValueConflict(&c.Appends, k, &lv, &rv)
			}
		}
	}
	for k, ld := range left.Updates {
		if rd, ok := right.Updates[k]; ok {
			if !diffEqual(ld, rd) {
				setDiffConflict(&c.Updates, k, ld, rd)
			}
		}
	}

	// Cross-verb collisions: always a conflict, recorded on both sides.
	for k, lv := range left.Removals {
		if rd, ok := right.Updates[k]; ok {
			setValueConflict(&c.Removals, k, &lv, nil)
			setDiffConflict(&c.Updates, k, nil, rd)
		}
		if rv, ok := right.Appends[k]; ok {
			setValueConflict(&c.Removals, k, &lv, nil)
			setValueConflict(&c.Appends, k, nil, &rv)
		}
	}
	for k, ld := range left.Updates {
		if rv, ok := right.Removals[k]; ok {
			setDiffConflict(&c.Updates, k, ld, nil)
			setValueConflict(&c.Removals, k, nil, &rv)
		}
		if rv, ok := right.Appends[k]; ok {
			setDiffConflict(&c.Updates, k, ld, nil)
			setValueConflict(&c.Appends, k, nil, &rv)
		}
	}
	for k, lv := range left.Appends {
		if rv, ok := right.Removals[k]; ok {
			setValueConflict(&c.Appends, k, &lv, nil)
			setValueConflict(&c.Removals, k, nil, &rv)
		}
		if rd, ok := right.Updates[k]; ok {
			setValueConflict(&c.Appends, k, &lv, nil)
			setDiffConflict(&c.Updates, k, nil, rd)
		}
	}

	return c
}

func setValueConflict(m *map[string]ValueEntry, k string, left, right *jsonvalue.Value) {
	if *m == nil {
		*m = map[string]ValueEntry{}
	}
	entry := (*m)[k]
	if left != nil {
		entry.Left = left
	}
	if right != nil {
		entry.Right = right
	}
	(*m)[k] = entry
}

func setDiffConflict(m *map[string]DiffEntry, k string, left, right *diff.Diff) {
	if *m == nil {
		*m = map[string]DiffEntry{}
	}
	entry := (*m)[k]
	if left != nil {
		entry.Left = left
	}
	if right != nil {
		entry.Right = right
	}
	(*m)[k] = entry
}

// diffEqual reports whether two diffs are structurally identical. It is
// used only to cancel a same-key, same-verb "updates" collision when both
// sides recorded the literal same edit; it is not a compatibility check
// and the detector never recurses to ask whether two different nested
// diffs could merge cleanly: intentional over-approximation.
func diffEqual(a, b *diff.Diff) bool {
	if a.IsReplace() != b.IsReplace() {
		return false
	}
	if a.IsReplace() {
		return jsonvalue.Equal(*a.Replace, *b.Replace)
	}
	if len(a.Removals) != len(b.Removals) || len(a.Updates) != len(b.Updates) || len(a.Appends) != len(b.Appends) {
		return false
	}
	for k, v := range a.Removals {
		bv, ok := b.Removals[k]
		if !ok || !jsonvalue.Equal(v, bv) {
			return false
		}
	}
	for k, v := range a.Appends {
		bv, ok := b.Appends[k]
		if !ok || !jsonvalue.Equal(v, bv) {
			return false
		}
	}
	for k, v := range a.Updates {
		bv, ok := b.Updates[k]
		if !ok || !diffEqual(v, bv) {
			return false
		}
	}
	return true
}
