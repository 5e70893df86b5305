package repo_test

import (
	"context"
	"errors"
	"testing"

	"github.com/foldline/jsongit/internal/codec"
	"github.com/foldline/jsongit/internal/jsonvalue"
	"github.com/foldline/jsongit/internal/objstore"
	"github.com/foldline/jsongit/internal/objstore/memstore"
	"github.com/foldline/jsongit/internal/repo"
)

func newTestRepo() *repo.Repository {
	return repo.New(memstore.New(), codec.Default(), repo.Identity{Name: "tester", Email: "tester@example.com"})
}

func obj(pairs ...any) jsonvalue.Value {
	m := jsonvalue.NewObject()
	for i := 0; i+1 < len(pairs); i += 2 {
		m.Set(pairs[i].(string), pairs[i+1].(jsonvalue.Value))
	}
	return jsonvalue.Object_(m)
}

func num(n float64) jsonvalue.Value { return jsonvalue.Number(n) }

func TestEmptyRepository(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo()

	has, err := r.Has(ctx, "k")
	if err != nil || has {
		t.Fatalf("expected has(k) == false, got %v err=%v", has, err)
	}
	if _, err := r.Head(ctx, "k"); !errors.Is(err, objstore.ErrNotFound) {
		t.Fatalf("expected NotFound from Head, got %v", err)
	}
	if _, err := r.Get(ctx, repo.GetOptions{Key: "k"}); !errors.Is(err, objstore.ErrNotFound) {
		t.Fatalf("expected NotFound from Get, got %v", err)
	}
}

func TestFirstCommit(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo()

	if _, err := r.Commit(ctx, "k", obj("a", num(1)), repo.CommitOptions{}); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	doc, err := r.Get(ctx, repo.GetOptions{Key: "k"})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !jsonvalue.Equal(doc.Value(), obj("a", num(1))) {
		t.Fatalf("unexpected value: %#v", doc.Value())
	}
	if doc.Dirty() {
		t.Fatalf("freshly loaded document must not be dirty")
	}

	iter, err := r.Log(ctx, "k", objstore.OrderTopological)
	if err != nil {
		t.Fatalf("Log: %v", err)
	}
	count := 0
	var message string
	for iter.Next() {
		count++
		c, err := r.Head(ctx, "k")
		if err == nil {
			message = c.Message
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one commit, got %d", count)
	}
	if message != "first commit" {
		t.Fatalf("expected message 'first commit', got %q", message)
	}
}

func TestLinearUpdate(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo()

	if _, err := r.Commit(ctx, "k", obj("a", num(1)), repo.CommitOptions{}); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if _, err := r.Commit(ctx, "k", obj("a", num(1), "b", num(2)), repo.CommitOptions{}); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	iter, err := r.Log(ctx, "k", objstore.OrderTopological)
	if err != nil {
		t.Fatalf("Log: %v", err)
	}
	count := 0
	for iter.Next() {
		count++
	}
	if count != 2 {
		t.Fatalf("expected two commits, got %d", count)
	}
}

func TestFastForwardMerge(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo()

	if _, err := r.Commit(ctx, "base", obj("a", num(1)), repo.CommitOptions{}); err != nil {
		t.Fatalf("Commit base: %v", err)
	}
	baseHead, err := r.Head(ctx, "base")
	if err != nil {
		t.Fatalf("Head base: %v", err)
	}

	if err := r.FastForward(ctx, "dest-unused", "dest"); err == nil {
		t.Fatalf("expected fast forward from a nonexistent key to fail")
	}

	if err := copyRef(ctx, r, "base", "dest"); err != nil {
		t.Fatalf("seed dest: %v", err)
	}
	if err := copyRef(ctx, r, "base", "source"); err != nil {
		t.Fatalf("seed source: %v", err)
	}

	if _, err := r.Commit(ctx, "source", obj("a", num(1), "b", num(2)), repo.CommitOptions{
		Parents: []objstore.ID{baseHead.ID},
	}); err != nil {
		t.Fatalf("Commit source: %v", err)
	}

	result, err := r.Merge(ctx, "source", "dest", repo.MergeOptions{})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if !result.Successful || result.Message != "Fast forward" {
		t.Fatalf("expected a fast-forward success, got %#v", result)
	}

	destHead, err := r.Head(ctx, "dest")
	if err != nil {
		t.Fatalf("Head dest: %v", err)
	}
	sourceHead, err := r.Head(ctx, "source")
	if err != nil {
		t.Fatalf("Head source: %v", err)
	}
	if destHead.ID != sourceHead.ID {
		t.Fatalf("expected dest head to equal source head after fast forward")
	}
}

// copyRef points key to base's current head without writing a new commit,
// mirroring what a real VCS clone/branch operation would do to set up a
// shared-ancestor scenario for merge tests.
func copyRef(ctx context.Context, r *repo.Repository, base, key string) error {
	return r.FastForward(ctx, base, key)
}

func TestThreeWayAutoMerge(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo()

	if _, err := r.Commit(ctx, "base", obj("a", num(1)), repo.CommitOptions{}); err != nil {
		t.Fatalf("Commit base: %v", err)
	}
	baseHead, err := r.Head(ctx, "base")
	if err != nil {
		t.Fatalf("Head base: %v", err)
	}
	if err := copyRef(ctx, r, "base", "source"); err != nil {
		t.Fatalf("seed source: %v", err)
	}
	if err := copyRef(ctx, r, "base", "dest"); err != nil {
		t.Fatalf("seed dest: %v", err)
	}

	if _, err := r.Commit(ctx, "source", obj("a", num(1), "b", num(2)), repo.CommitOptions{
		Parents: []objstore.ID{baseHead.ID},
	}); err != nil {
		t.Fatalf("Commit source: %v", err)
	}
	if _, err := r.Commit(ctx, "dest", obj("a", num(1), "c", num(3)), repo.CommitOptions{
		Parents: []objstore.ID{baseHead.ID},
	}); err != nil {
		t.Fatalf("Commit dest: %v", err)
	}

	result, err := r.Merge(ctx, "source", "dest", repo.MergeOptions{})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if !result.Successful {
		t.Fatalf("expected merge success, got %#v", result)
	}

	doc, err := r.Get(ctx, repo.GetOptions{Key: "dest"})
	if err != nil {
		t.Fatalf("Get dest: %v", err)
	}
	want := obj("a", num(1), "b", num(2), "c", num(3))
	if !jsonvalue.Equal(doc.Value(), want) {
		t.Fatalf("unexpected merged value: %#v want %#v", doc.Value(), want)
	}
	if len(doc.Head().Parents) != 2 {
		t.Fatalf("expected merge commit to carry two parents, got %d", len(doc.Head().Parents))
	}
}

func TestMergeConflict(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo()

	if _, err := r.Commit(ctx, "base", obj("a", num(1)), repo.CommitOptions{}); err != nil {
		t.Fatalf("Commit base: %v", err)
	}
	baseHead, err := r.Head(ctx, "base")
	if err != nil {
		t.Fatalf("Head base: %v", err)
	}
	if err := copyRef(ctx, r, "base", "source"); err != nil {
		t.Fatalf("seed source: %v", err)
	}
	if err := copyRef(ctx, r, "base", "dest"); err != nil {
		t.Fatalf("seed dest: %v", err)
	}

	if _, err := r.Commit(ctx, "source", obj("a", num(2)), repo.CommitOptions{
		Parents: []objstore.ID{baseHead.ID},
	}); err != nil {
		t.Fatalf("Commit source: %v", err)
	}
	if _, err := r.Commit(ctx, "dest", obj("a", num(3)), repo.CommitOptions{
		Parents: []objstore.ID{baseHead.ID},
	}); err != nil {
		t.Fatalf("Commit dest: %v", err)
	}

	destHeadBefore, err := r.Head(ctx, "dest")
	if err != nil {
		t.Fatalf("Head dest: %v", err)
	}

	result, err := r.Merge(ctx, "source", "dest", repo.MergeOptions{})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if result.Successful || result.Message != "Merge conflict" {
		t.Fatalf("expected a merge conflict, got %#v", result)
	}
	entry, ok := result.Conflict.Updates["a"]
	if !ok {
		t.Fatalf("expected a conflict entry for key a")
	}
	if !entry.Left.IsReplace() || !jsonvalue.Equal(*entry.Left.Replace, num(2)) {
		t.Fatalf("expected left replace with 2, got %#v", entry.Left)
	}
	if !entry.Right.IsReplace() || !jsonvalue.Equal(*entry.Right.Replace, num(3)) {
		t.Fatalf("expected right replace with 3, got %#v", entry.Right)
	}

	destHeadAfter, err := r.Head(ctx, "dest")
	if err != nil {
		t.Fatalf("Head dest: %v", err)
	}
	if destHeadAfter.ID != destHeadBefore.ID {
		t.Fatalf("expected dest head to be unchanged after a conflicting merge")
	}
}

func TestMergeConflictResolvedByOverrides(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo()

	if _, err := r.Commit(ctx, "base", obj("a", num(1)), repo.CommitOptions{}); err != nil {
		t.Fatalf("Commit base: %v", err)
	}
	baseHead, err := r.Head(ctx, "base")
	if err != nil {
		t.Fatalf("Head base: %v", err)
	}
	if err := copyRef(ctx, r, "base", "source"); err != nil {
		t.Fatalf("seed source: %v", err)
	}
	if err := copyRef(ctx, r, "base", "dest"); err != nil {
		t.Fatalf("seed dest: %v", err)
	}

	if _, err := r.Commit(ctx, "source", obj("a", num(2)), repo.CommitOptions{
		Parents: []objstore.ID{baseHead.ID},
	}); err != nil {
		t.Fatalf("Commit source: %v", err)
	}
	if _, err := r.Commit(ctx, "dest", obj("a", num(3)), repo.CommitOptions{
		Parents: []objstore.ID{baseHead.ID},
	}); err != nil {
		t.Fatalf("Commit dest: %v", err)
	}

	first, err := r.Merge(ctx, "source", "dest", repo.MergeOptions{})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if first.Successful {
		t.Fatalf("expected a conflict on the first attempt, got %#v", first)
	}

	retried, err := r.Merge(ctx, "source", "dest", repo.MergeOptions{
		Overrides: map[string]jsonvalue.Value{"a": num(2)},
	})
	if err != nil {
		t.Fatalf("Merge with overrides: %v", err)
	}
	if !retried.Successful {
		t.Fatalf("expected the override to resolve the conflict, got %#v", retried)
	}

	doc, err := r.Get(ctx, repo.GetOptions{Key: "dest"})
	if err != nil {
		t.Fatalf("Get dest: %v", err)
	}
	if !jsonvalue.Equal(doc.Value(), obj("a", num(2))) {
		t.Fatalf("unexpected merged value: %#v", doc.Value())
	}
}

func TestMergeConflictOverrideMissingKeyStillFails(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo()

	if _, err := r.Commit(ctx, "base", obj("a", num(1)), repo.CommitOptions{}); err != nil {
		t.Fatalf("Commit base: %v", err)
	}
	baseHead, err := r.Head(ctx, "base")
	if err != nil {
		t.Fatalf("Head base: %v", err)
	}
	if err := copyRef(ctx, r, "base", "source"); err != nil {
		t.Fatalf("seed source: %v", err)
	}
	if err := copyRef(ctx, r, "base", "dest"); err != nil {
		t.Fatalf("seed dest: %v", err)
	}
	if _, err := r.Commit(ctx, "source", obj("a", num(2)), repo.CommitOptions{Parents: []objstore.ID{baseHead.ID}}); err != nil {
		t.Fatalf("Commit source: %v", err)
	}
	if _, err := r.Commit(ctx, "dest", obj("a", num(3)), repo.CommitOptions{Parents: []objstore.ID{baseHead.ID}}); err != nil {
		t.Fatalf("Commit dest: %v", err)
	}

	result, err := r.Merge(ctx, "source", "dest", repo.MergeOptions{
		Overrides: map[string]jsonvalue.Value{"wrong-key": num(9)},
	})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if result.Successful {
		t.Fatalf("expected the merge to still fail when the contested key has no override")
	}
}

func TestMergeSameCommitIsIdempotent(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo()
	if _, err := r.Commit(ctx, "k", obj("a", num(1)), repo.CommitOptions{}); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := copyRef(ctx, r, "k", "k2"); err != nil {
		t.Fatalf("copyRef: %v", err)
	}

	result, err := r.Merge(ctx, "k", "k2", repo.MergeOptions{})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if !result.Successful || result.Message != "Same commit" {
		t.Fatalf("expected 'Same commit' success, got %#v", result)
	}
}

func TestDocumentDirtyFlagAndAutocommit(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo()
	if _, err := r.Commit(ctx, "k", obj("a", num(1)), repo.CommitOptions{}); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	doc, err := r.Get(ctx, repo.GetOptions{Key: "k", Autocommit: true})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if doc.Dirty() {
		t.Fatalf("freshly loaded document must not be dirty")
	}

	if err := doc.Set(ctx, "b", num(2)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if doc.Dirty() {
		t.Fatalf("autocommit must clear dirty after a successful mutation")
	}

	reloaded, err := r.Get(ctx, repo.GetOptions{Key: "k"})
	if err != nil {
		t.Fatalf("Get after autocommit: %v", err)
	}
	if !jsonvalue.Equal(reloaded.Value(), obj("a", num(1), "b", num(2))) {
		t.Fatalf("unexpected autocommitted value: %#v", reloaded.Value())
	}
}

func TestDocumentMutationTypeMismatchLeavesDirtyUnchanged(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo()
	if _, err := r.Commit(ctx, "k", obj("a", num(1)), repo.CommitOptions{}); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	doc, err := r.Get(ctx, repo.GetOptions{Key: "k"})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	if err := doc.Append(ctx, num(1)); !errors.Is(err, repo.ErrTypeMismatch) {
		t.Fatalf("expected TypeMismatch appending to an object, got %v", err)
	}
	if doc.Dirty() {
		t.Fatalf("a failed mutation must not set dirty")
	}
}

func TestDocumentMergeRejectsDifferentRepo(t *testing.T) {
	ctx := context.Background()
	r1 := newTestRepo()
	r2 := newTestRepo()

	if _, err := r1.Commit(ctx, "k", obj("a", num(1)), repo.CommitOptions{}); err != nil {
		t.Fatalf("Commit r1: %v", err)
	}
	if _, err := r2.Commit(ctx, "k", obj("a", num(1)), repo.CommitOptions{}); err != nil {
		t.Fatalf("Commit r2: %v", err)
	}

	d1, err := r1.Get(ctx, repo.GetOptions{Key: "k"})
	if err != nil {
		t.Fatalf("Get r1: %v", err)
	}
	d2, err := r2.Get(ctx, repo.GetOptions{Key: "k"})
	if err != nil {
		t.Fatalf("Get r2: %v", err)
	}

	if _, err := d1.Merge(ctx, d2); !errors.Is(err, repo.ErrDifferentRepo) {
		t.Fatalf("expected DifferentRepo, got %v", err)
	}
}
