package resolve

import (
	"testing"

	"github.com/foldline/jsongit/internal/conflict"
	"github.com/foldline/jsongit/internal/diff"
	"github.com/foldline/jsongit/internal/jsonvalue"
)

func TestContestedKeysIsSortedUnion(t *testing.T) {
	left := jsonvalue.String("left")
	right := jsonvalue.String("right")
	c := &conflict.Conflict{
		Removals: map[string]conflict.ValueEntry{"b": {Left: &left}},
		Appends:  map[string]conflict.ValueEntry{"a": {Right: &right}},
		Updates:  map[string]conflict.DiffEntry{"c": {}},
	}
	got := contestedKeys(c)
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestResolveValueRemovalPicksChosenSide(t *testing.T) {
	// Left removed "name"; right updated it. This is the cross-verb shape
	// conflict.Detect produces for a removal/update collision.
	ancestor := jsonvalue.FromNative(map[string]any{"name": "old"})
	removed := jsonvalue.String("old")
	c := &conflict.Conflict{
		Removals: map[string]conflict.ValueEntry{"name": {Left: &removed, Right: nil}},
		Updates:  map[string]conflict.DiffEntry{"name": {Left: nil, Right: diff.Compute(jsonvalue.String("old"), jsonvalue.String("new"))}},
	}
	got := resolveValue(c, "name", choiceLeft, ancestor)
	if got.Kind() != jsonvalue.KindNull {
		t.Fatalf("expected null for keeping the side that removed the key, got %v", got.Native())
	}

	got = resolveValue(c, "name", choiceRight, ancestor)
	if got.StringValue() != "new" {
		t.Fatalf("expected the right side's update, got %v", got.Native())
	}
}

func TestResolveValueAppendBothCombinesIntoArray(t *testing.T) {
	left := jsonvalue.Number(1)
	right := jsonvalue.Number(2)
	c := &conflict.Conflict{
		Appends: map[string]conflict.ValueEntry{"0": {Left: &left, Right: &right}},
	}
	got := resolveValue(c, "0", choiceBoth, jsonvalue.Null())
	if got.Kind() != jsonvalue.KindArray || got.Len() != 2 {
		t.Fatalf("expected a 2-element array, got %v", got.Native())
	}
}

func TestResolveValueUpdateAppliesWinningDiffToAncestorChild(t *testing.T) {
	ancestor := jsonvalue.FromNative(map[string]any{"count": float64(1)})
	leftDiff := diff.Compute(jsonvalue.Number(1), jsonvalue.Number(2))
	c := &conflict.Conflict{
		Updates: map[string]conflict.DiffEntry{"count": {Left: leftDiff, Right: diff.Compute(jsonvalue.Number(1), jsonvalue.Number(3))}},
	}
	got := resolveValue(c, "count", choiceLeft, ancestor)
	if got.NumberValue() != 2 {
		t.Fatalf("got %v", got.Native())
	}
}

func TestRunReturnsNilForEmptyConflict(t *testing.T) {
	overrides, err := Run(&conflict.Conflict{}, jsonvalue.Null())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if overrides != nil {
		t.Fatalf("expected no overrides for an empty conflict, got %v", overrides)
	}
}
