// Package resolve is the interactive conflict resolver: given a non-empty
// conflict.Conflict, it walks a user through each contested key with a
// terminal form and produces explicit override values a caller can splice
// back into the three-way merge via repo.MergeOptions.Overrides.
package resolve

import (
	"fmt"
	"sort"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/foldline/jsongit/internal/conflict"
	"github.com/foldline/jsongit/internal/diff"
	"github.com/foldline/jsongit/internal/jsonvalue"
)

const (
	choiceLeft  = "left"
	choiceRight = "right"
	choiceBoth  = "both"
)

var (
	paneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1).
			Width(40)

	labelStyle = lipgloss.NewStyle().Bold(true)
)

// Run walks c's contested keys (and, if present, its whole-document
// Replace) with one huh.NewSelect per entry offering "keep left" / "keep
// right", plus "keep both (array)" for append collisions. ancestor is the
// common-ancestor value the conflicting diffs were computed against; it is
// needed to resolve an Updates collision's winning side back into a
// concrete value. The result is ready to pass as repo.MergeOptions.Overrides
// on a retried Merge call.
//
// A key one side removed and the other kept resolves "keep <remover>" to a
// JSON null rather than truly deleting the key — the override channel
// carries one value per key, not a delete instruction. This never fires for
// a clean (non-conflicting) removal, only for the explicit tie-break a user
// makes here.
//
// Run returns huh.ErrUserAborted unchanged if the user cancels the form.
func Run(c *conflict.Conflict, ancestor jsonvalue.Value) (map[string]jsonvalue.Value, error) {
	if c.Empty() {
		return nil, nil
	}

	if c.Replace != nil {
		return runReplace(c.Replace)
	}
	return runStructural(c, ancestor)
}

func runReplace(entry *conflict.ReplaceEntry) (map[string]jsonvalue.Value, error) {
	var choice string
	field := huh.NewSelect[string]().
		Title("Whole document was replaced on both sides — keep which?").
		Description(renderSides(describeValue(entry.Left), describeValue(entry.Right))).
		Options(huh.NewOption("Keep left", choiceLeft), huh.NewOption("Keep right", choiceRight)).
		Value(&choice)

	if err := huh.NewForm(huh.NewGroup(field)).Run(); err != nil {
		return nil, err
	}

	v := entry.Left
	if choice == choiceRight {
		v = entry.Right
	}
	if v == nil {
		return map[string]jsonvalue.Value{"": jsonvalue.Null()}, nil
	}
	return map[string]jsonvalue.Value{"": *v}, nil
}

func runStructural(c *conflict.Conflict, ancestor jsonvalue.Value) (map[string]jsonvalue.Value, error) {
	keys := contestedKeys(c)
	choices := make([]string, len(keys))

	var fields []huh.Field
	for i, key := range keys {
		left, right := describeSides(c, key)
		fields = append(fields, huh.NewNote().
			Title(key).
			Description(renderSides(left, right)))
		fields = append(fields, huh.NewSelect[string]().
			Title(fmt.Sprintf("Keep which side for %q?", key)).
			Options(optionsFor(key, c)...).
			Value(&choices[i]))
	}

	if err := huh.NewForm(huh.NewGroup(fields...)).Run(); err != nil {
		return nil, err
	}

	overrides := make(map[string]jsonvalue.Value, len(keys))
	for i, key := range keys {
		overrides[key] = resolveValue(c, key, choices[i], ancestor)
	}
	return overrides, nil
}

// contestedKeys returns every key touched by c.Removals, c.Updates, or
// c.Appends, sorted for deterministic prompt order.
func contestedKeys(c *conflict.Conflict) []string {
	seen := map[string]bool{}
	for k := range c.Removals {
		seen[k] = true
	}
	for k := range c.Updates {
		seen[k] = true
	}
	for k := range c.Appends {
		seen[k] = true
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func optionsFor(key string, c *conflict.Conflict) []huh.Option[string] {
	opts := []huh.Option[string]{
		huh.NewOption("Keep left", choiceLeft),
		huh.NewOption("Keep right", choiceRight),
	}
	if _, ok := c.Appends[key]; ok {
		opts = append(opts, huh.NewOption("Keep both (array)", choiceBoth))
	}
	return opts
}

// resolveValue turns a user's left/right/both pick for key into the
// concrete value the merge should splice in.
func resolveValue(c *conflict.Conflict, key, choice string, ancestor jsonvalue.Value) jsonvalue.Value {
	if v, ok := c.Appends[key]; ok {
		switch choice {
		case choiceBoth:
			items := []jsonvalue.Value{}
			if v.Left != nil {
				items = append(items, *v.Left)
			}
			if v.Right != nil {
				items = append(items, *v.Right)
			}
			return jsonvalue.Array(items)
		case choiceRight:
			return orNull(v.Right)
		default:
			return orNull(v.Left)
		}
	}
	if v, ok := c.Removals[key]; ok {
		// A Removals side holds the value that side removed, so a non-nil
		// side means the user kept the remover. Otherwise the chosen side's
		// own edit is recorded under Updates below.
		removed := v.Left
		if choice == choiceRight {
			removed = v.Right
		}
		if removed != nil {
			return jsonvalue.Null()
		}
	}
	if d, ok := c.Updates[key]; ok {
		child, _ := ancestor.Get(key)
		sub := d.Left
		if choice == choiceRight {
			sub = d.Right
		}
		if sub == nil {
			return child
		}
		return diff.Apply(sub, child)
	}
	return jsonvalue.Null()
}

func orNull(v *jsonvalue.Value) jsonvalue.Value {
	if v == nil {
		return jsonvalue.Null()
	}
	return *v
}

func describeSides(c *conflict.Conflict, key string) (left, right string) {
	if v, ok := c.Removals[key]; ok {
		return describeValue(v.Left), describeValue(v.Right)
	}
	if v, ok := c.Appends[key]; ok {
		return describeValue(v.Left), describeValue(v.Right)
	}
	if d, ok := c.Updates[key]; ok {
		return describeDiff(d.Left), describeDiff(d.Right)
	}
	return "(no change)", "(no change)"
}

func describeValue(v *jsonvalue.Value) string {
	if v == nil {
		return "(absent)"
	}
	return fmt.Sprintf("%v", v.Native())
}

func describeDiff(d *diff.Diff) string {
	if d == nil {
		return "(no change)"
	}
	return "(nested change)"
}

func renderSides(left, right string) string {
	l := paneStyle.Render(labelStyle.Render("left") + "\n" + left)
	r := paneStyle.Render(labelStyle.Render("right") + "\n" + right)
	return lipgloss.JoinHorizontal(lipgloss.Top, l, r)
}
