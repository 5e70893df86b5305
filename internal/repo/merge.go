package repo

import (
	"context"
	"fmt"
	"strconv"

	"github.com/foldline/jsongit/internal/conflict"
	"github.com/foldline/jsongit/internal/diff"
	"github.com/foldline/jsongit/internal/jsonvalue"
	"github.com/foldline/jsongit/internal/objstore"
)

// MergeOptions carries the optional signatures for the merge commit, plus
// any explicit per-key overrides an interactive resolver already collected
// for a prior Merge call's conflict.
type MergeOptions struct {
	Author    *objstore.Signature
	Committer *objstore.Signature

	// Overrides supplies the resolved value for each contested key a
	// conflict reported, keyed the same way as Conflict.Removals /
	// Conflict.Updates / Conflict.Appends. The empty-string key resolves
	// a whole-document Conflict.Replace. A retry only succeeds once every
	// contested key from the original Conflict has a matching override;
	// Merge never guesses a resolution for an uncovered key.
	Overrides map[string]jsonvalue.Value
}

// MergeResult is the outcome of Repository.Merge. ResolvedBy is
// display-only bookkeeping for callers that ran an interactive resolver
// before retrying; it is never set by Merge itself.
type MergeResult struct {
	Successful   bool
	SourceCommit objstore.ID
	DestCommit   objstore.ID
	Message      string
	Conflict     *conflict.Conflict
	ResolvedBy   string

	// Ancestor is the common-ancestor value the reported Conflict's diffs
	// were computed against. It is only populated alongside a non-nil
	// Conflict, and exists so a caller can feed an interactive resolver
	// (which needs the ancestor to resolve an Updates collision) without
	// Merge's internals leaking any further.
	Ancestor jsonvalue.Value
}

// Merge combines sourceKey's lineage into destKey, per the fast-forward /
// three-way-merge / conflict decision tree.
func (r *Repository) Merge(ctx context.Context, sourceKey, destKey string, opts MergeOptions) (*MergeResult, error) {
	source, err := r.Head(ctx, sourceKey)
	if err != nil {
		return nil, err
	}
	dest, err := r.Head(ctx, destKey)
	if err != nil {
		return nil, err
	}

	if source.ID == dest.ID {
		r.log.Debug("merge: same commit", "source_key", sourceKey, "dest_key", destKey)
		return &MergeResult{Successful: true, SourceCommit: source.ID, DestCommit: dest.ID, Message: "Same commit"}, nil
	}

	sourceAncestors, sourceOrder, err := r.walkIDs(ctx, source.ID)
	if err != nil {
		return nil, err
	}
	if sourceAncestors[dest.ID] {
		if err := r.FastForward(ctx, sourceKey, destKey); err != nil {
			return nil, err
		}
		r.log.Info("merge: fast forward", "source_key", sourceKey, "dest_key", destKey, "commit", source.ID.Hex())
		return &MergeResult{Successful: true, SourceCommit: source.ID, DestCommit: source.ID, Message: "Fast forward"}, nil
	}

	_, destOrder, err := r.walkIDs(ctx, dest.ID)
	if err != nil {
		return nil, err
	}

	var ancestorID objstore.ID
	found := false
	for _, id := range destOrder {
		if sourceAncestors[id] {
			ancestorID = id
			found = true
			break
		}
	}
	if !found {
		r.log.Warn("merge: no shared parent", "source_key", sourceKey, "dest_key", destKey)
		return &MergeResult{Successful: false, SourceCommit: source.ID, DestCommit: dest.ID, Message: "No shared parent"}, nil
	}

	ancestorCommit, err := r.store.ReadCommit(ctx, ancestorID)
	if err != nil {
		return nil, fmt.Errorf("jsongit: read ancestor commit: %w", err)
	}
	ancestorValue, err := r.readTreeValue(ctx, ancestorCommit.Tree)
	if err != nil {
		return nil, err
	}
	sourceValue, err := r.readTreeValue(ctx, source.Tree)
	if err != nil {
		return nil, err
	}
	destValue, err := r.readTreeValue(ctx, dest.Tree)
	if err != nil {
		return nil, err
	}

	sourceDiff := diff.Compute(ancestorValue, sourceValue)
	destDiff := diff.Compute(ancestorValue, destValue)

	c := conflict.Detect(sourceDiff, destDiff)
	var merged jsonvalue.Value
	if !c.Empty() {
		resolved, ok := applyOverrides(c, sourceDiff, destDiff, ancestorValue, opts.Overrides)
		if !ok {
			r.log.Warn("merge: conflict detected", "source_key", sourceKey, "dest_key", destKey, "ancestor", ancestorID.Hex())
			return &MergeResult{Successful: false, SourceCommit: source.ID, DestCommit: dest.ID, Message: "Merge conflict", Conflict: c, Ancestor: ancestorValue}, nil
		}
		r.log.Info("merge: conflict resolved by overrides", "source_key", sourceKey, "dest_key", destKey, "keys", len(opts.Overrides))
		merged = resolved
	} else {
		merged = diff.Apply(destDiff, diff.Apply(sourceDiff, ancestorValue))
	}

	message := fmt.Sprintf("Auto-merge from %s", ancestorID.Hex())
	updated, err := r.Commit(ctx, destKey, merged, CommitOptions{
		Message:   &message,
		Author:    opts.Author,
		Committer: opts.Committer,
		Parents:   []objstore.ID{source.ID, dest.ID},
	})
	if err != nil {
		return nil, err
	}

	r.log.Info("merge: auto-merged", "source_key", sourceKey, "dest_key", destKey, "commit", updated.head.ID.Hex())
	return &MergeResult{Successful: true, SourceCommit: source.ID, DestCommit: updated.head.ID, Message: message}, nil
}

// applyOverrides builds the merged value for a contested merge whose caller
// supplied explicit per-key resolutions, normally collected by an
// interactive resolver. It reports ok=false if c.Replace is unresolved or
// any contested key lacks a matching override — Merge never guesses.
func applyOverrides(c *conflict.Conflict, sourceDiff, destDiff *diff.Diff, ancestor jsonvalue.Value, overrides map[string]jsonvalue.Value) (jsonvalue.Value, bool) {
	if c.Replace != nil {
		v, ok := overrides[""]
		return v, ok
	}

	keys := contestedKeys(c)
	for _, k := range keys {
		if _, ok := overrides[k]; !ok {
			return jsonvalue.Value{}, false
		}
	}

	merged := diff.Apply(stripKeys(destDiff, keys), diff.Apply(stripKeys(sourceDiff, keys), ancestor))

	for _, k := range keys {
		val := overrides[k]
		switch merged.Kind() {
		case jsonvalue.KindObject:
			merged, _ = jsonvalue.SetField(merged, k, val)
		case jsonvalue.KindArray:
			if next, ok := jsonvalue.SetIndex(merged, mustAtoi(k), val); ok {
				merged = next
			} else if next, ok := jsonvalue.AppendItem(merged, val); ok {
				merged = next
			}
		}
	}
	return merged, true
}

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
	return keys
}

// stripKeys clones d with every entry named in keys removed from its
// Removals/Updates/Appends maps, so the uncontested part of a diff can
// still be applied normally while the contested keys are spliced in
// separately from explicit overrides.
func stripKeys(d *diff.Diff, keys []string) *diff.Diff {
	if d.IsReplace() {
		return d
	}
	out := &diff.Diff{}
	for k, v := range d.Removals {
		if !contains(keys, k) {
			if out.Removals == nil {
				out.Removals = map[string]jsonvalue.Value{}
			}
			out.Removals[k] = v
		}
	}
	for k, v := range d.Updates {
		if !contains(keys, k) {
			if out.Updates == nil {
				out.Updates = map[string]*diff.Diff{}
			}
			out.Updates[k] = v
		}
	}
	for k, v := range d.Appends {
		if !contains(keys, k) {
			if out.Appends == nil {
				out.Appends = map[string]jsonvalue.Value{}
			}
			out.Appends[k] = v
		}
	}
	return out
}

func contains(keys []string, k string) bool {
	for _, x := range keys {
		if x == k {
			return true
		}
	}
	return false
}

func mustAtoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// walkIDs returns both a membership set and the ordered (topological)
// commit id list reachable from start, per the store's own Walk order.
// The lowest-common-ancestor approximation relies on that order directly:
// it is the first commit in dest's topological walk that also appears in
// source's ancestor set, not a graph-theoretic LCA.
func (r *Repository) walkIDs(ctx context.Context, start objstore.ID) (map[objstore.ID]bool, []objstore.ID, error) {
	iter, err := r.store.Walk(ctx, start, objstore.OrderTopological)
	if err != nil {
		return nil, nil, fmt.Errorf("jsongit: walk history: %w", err)
	}
	set := map[objstore.ID]bool{}
	var order []objstore.ID
	for iter.Next() {
		id := iter.ID()
		set[id] = true
		order = append(order, id)
	}
	if err := iter.Err(); err != nil {
		return nil, nil, fmt.Errorf("jsongit: walk history: %w", err)
	}
	return set, order, nil
}
