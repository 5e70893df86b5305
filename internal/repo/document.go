package repo

import (
	"context"
	"fmt"

	"github.com/foldline/jsongit/internal/jsonvalue"
	"github.com/foldline/jsongit/internal/objstore"
)

// Document is a live in-memory projection of a key's current value, with
// mutation and autocommit semantics. A Document dispatches member access
// and mutation according to jsonvalue.Kind instead of relying on
// reflection over the underlying Go value.
type Document struct {
	repo       *Repository
	key        string
	head       objstore.Commit
	value      jsonvalue.Value
	dirty      bool
	autocommit bool
}

// Key is the logical lineage name this document was loaded from. It is
// empty for documents loaded by explicit commit id.
func (d *Document) Key() string { return d.key }

// Head is the commit the document was loaded from or last committed to.
func (d *Document) Head() objstore.Commit { return d.head }

// Value is the document's current decoded JSON value.
func (d *Document) Value() jsonvalue.Value { return d.value }

// Dirty reports whether the value has been mutated since the last
// load/refresh/commit.
func (d *Document) Dirty() bool { return d.dirty }

// Kind is the underlying value's jsonvalue.Kind, the dispatch key for
// every mutating operation below.
func (d *Document) Kind() jsonvalue.Kind { return d.value.Kind() }

// Get looks up an object field. TypeMismatch if the document is not an
// object.
func (d *Document) Get(key string) (jsonvalue.Value, error) {
	if d.Kind() != jsonvalue.KindObject {
		return jsonvalue.Value{}, fmt.Errorf("%w: Get requires an object, got %s", ErrTypeMismatch, d.Kind())
	}
	v, ok := d.value.Get(key)
	if !ok {
		return jsonvalue.Value{}, fmt.Errorf("%w: no field %q", objstore.ErrNotFound, key)
	}
	return v, nil
}

// Index looks up an array element. TypeMismatch if the document is not
// an array.
func (d *Document) Index(i int) (jsonvalue.Value, error) {
	if d.Kind() != jsonvalue.KindArray {
		return jsonvalue.Value{}, fmt.Errorf("%w: Index requires an array, got %s", ErrTypeMismatch, d.Kind())
	}
	v, ok := d.value.Index(i)
	if !ok {
		return jsonvalue.Value{}, fmt.Errorf("%w: index %d out of range", objstore.ErrNotFound, i)
	}
	return v, nil
}

// Len returns the number of entries for object/array documents.
func (d *Document) Len() int { return d.value.Len() }

// Set assigns key to val on an object document, marks the handle dirty,
// and fires autocommit if enabled.
func (d *Document) Set(ctx context.Context, key string, val jsonvalue.Value) error {
	next, ok := jsonvalue.SetField(d.value, key, val)
	if !ok {
		return fmt.Errorf("%w: Set requires an object, got %s", ErrTypeMismatch, d.Kind())
	}
	return d.applyMutation(ctx, next)
}

// DeleteKey removes key from an object document.
func (d *Document) DeleteKey(ctx context.Context, key string) error {
	next, ok := jsonvalue.DeleteField(d.value, key)
	if !ok {
		return fmt.Errorf("%w: DeleteKey requires an object carrying %q", ErrTypeMismatch, key)
	}
	return d.applyMutation(ctx, next)
}

// SetIndex replaces element i on an array document.
func (d *Document) SetIndex(ctx context.Context, i int, val jsonvalue.Value) error {
	next, ok := jsonvalue.SetIndex(d.value, i, val)
	if !ok {
		return fmt.Errorf("%w: SetIndex requires an array with index %d in range", ErrTypeMismatch, i)
	}
	return d.applyMutation(ctx, next)
}

// DeleteIndex removes element i from an array document.
func (d *Document) DeleteIndex(ctx context.Context, i int) error {
	next, ok := jsonvalue.DeleteIndex(d.value, i)
	if !ok {
		return fmt.Errorf("%w: DeleteIndex requires an array with index %d in range", ErrTypeMismatch, i)
	}
	return d.applyMutation(ctx, next)
}

// Append adds val to the end of an array document.
func (d *Document) Append(ctx context.Context, val jsonvalue.Value) error {
	next, ok := jsonvalue.AppendItem(d.value, val)
	if !ok {
		return fmt.Errorf("%w: Append requires an array, got %s", ErrTypeMismatch, d.Kind())
	}
	return d.applyMutation(ctx, next)
}

// applyMutation installs next as the document's value, sets dirty, and
// commits immediately when autocommit is enabled. The dirty flag is only
// set once the mutation itself has already succeeded; a failed mutation
// (caught above, before this is called) leaves dirty untouched.
func (d *Document) applyMutation(ctx context.Context, next jsonvalue.Value) error {
	d.value = next
	d.dirty = true
	if d.autocommit {
		return d.Commit(ctx, nil)
	}
	return nil
}

// Commit persists the document's current value as a new commit on its
// key, clearing dirty. message, when nil, is resolved by Repository.Commit
// the same way a direct Repository.Commit call would.
func (d *Document) Commit(ctx context.Context, message *string) error {
	if d.key == "" {
		return fmt.Errorf("%w: document was loaded by commit id, not a key", ErrInvalidArgument)
	}
	updated, err := d.repo.Commit(ctx, d.key, d.value, CommitOptions{Message: message, Autocommit: d.autocommit})
	if err != nil {
		return err
	}
	d.head = updated.head
	d.dirty = false
	return nil
}

// Refresh reloads value and head from the current reference state and
// clears the dirty flag.
func (d *Document) Refresh(ctx context.Context) error {
	if d.key == "" {
		return fmt.Errorf("%w: document was loaded by commit id, not a key", ErrInvalidArgument)
	}
	fresh, err := d.repo.Get(ctx, GetOptions{Key: d.key, Autocommit: d.autocommit})
	if err != nil {
		return err
	}
	d.head = fresh.head
	d.value = fresh.value
	d.dirty = false
	return nil
}

// Merge delegates to Repository.Merge(other.key, self.key), rejecting
// cross-repository handles. On success the handle refreshes.
func (d *Document) Merge(ctx context.Context, other *Document) (*MergeResult, error) {
	if other.repo != d.repo {
		return nil, ErrDifferentRepo
	}
	result, err := d.repo.Merge(ctx, other.key, d.key, MergeOptions{})
	if err != nil {
		return nil, err
	}
	if result.Successful {
		if err := d.Refresh(ctx); err != nil {
			return result, err
		}
	}
	return result, nil
}
