// Package repo is the repository manager: the façade tying the object
// store, JSON codec, diff engine, and conflict detector into commit, get,
// log, fast-forward, and three-way merge operations over named document
// lineages.
package repo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/foldline/jsongit/internal/codec"
	"github.com/foldline/jsongit/internal/jsonvalue"
	"github.com/foldline/jsongit/internal/objstore"
)

func refName(key string) string { return fmt.Sprintf("refs/%s/HEAD", key) }

// Repository ties an object store, a codec, and a default identity
// together into the commit/get/log/merge operations over named lineages.
type Repository struct {
	store    objstore.Store
	codec    codec.Codec
	identity Identity
	now      func() time.Time
	log      *slog.Logger
}

// New builds a Repository over store, using codec for encoding values to
// blob bytes and identity as the default author/committer.
func New(store objstore.Store, c codec.Codec, identity Identity) *Repository {
	return &Repository{store: store, codec: c, identity: identity, now: time.Now, log: slog.Default()}
}

// WithLogger returns a shallow copy of r that logs decision points (merge
// outcomes, fast-forwards) through logger instead of the default logger.
func (r *Repository) WithLogger(logger *slog.Logger) *Repository {
	out := *r
	out.log = logger
	return &out
}

func (r *Repository) resolveSignature(sig *objstore.Signature) objstore.Signature {
	if sig != nil {
		out := *sig
		if out.When.IsZero() {
			out.When = r.now()
		}
		return out
	}
	return objstore.Signature{Name: r.identity.Name, Email: r.identity.Email, When: r.now()}
}

func validateKey(key string) error {
	if key == "" {
		return ErrBadKey
	}
	return nil
}

// CommitOptions carries the optional parameters to Commit; a nil pointer
// field means "not supplied".
type CommitOptions struct {
	Message    *string
	Author     *objstore.Signature
	Committer  *objstore.Signature
	Parents    []objstore.ID
	Autocommit bool
}

// commitRetryAttempts bounds the optimistic-concurrency retry loop in
// Commit: this is contention handling for concurrent goroutines sharing
// one process, not a distributed consensus protocol.
const commitRetryAttempts = 3

// Commit encodes value, writes the blob/tree/commit chain, and advances
// key's reference to the new commit. When the underlying store supports
// compare-and-set on reference updates, a concurrent writer racing for
// the same key is retried up to commitRetryAttempts times before
// ErrRefChanged is surfaced to the caller.
func (r *Repository) Commit(ctx context.Context, key string, value jsonvalue.Value, opts CommitOptions) (*Document, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	data, err := r.codec.Encode(value)
	if err != nil {
		return nil, err
	}

	author := r.resolveSignature(opts.Author)
	committer := r.resolveSignature(opts.Committer)

	blob, err := r.store.WriteBlob(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("jsongit: write blob: %w", err)
	}
	tree, err := r.store.WriteTreeSingle(ctx, objstore.DataEntryName, blob, objstore.DataEntryMode)
	if err != nil {
		return nil, fmt.Errorf("jsongit: write tree: %w", err)
	}

	var commitID objstore.ID
	var lastErr error
	for attempt := 0; attempt < commitRetryAttempts; attempt++ {
		existingHead, hasHead := r.tryHead(ctx, key)

		parents := opts.Parents
		if parents == nil {
			if hasHead {
				parents = []objstore.ID{existingHead.ID}
			} else {
				parents = []objstore.ID{}
			}
		}

		message := ""
		if opts.Message != nil {
			message = *opts.Message
		} else if !hasHead {
			message = "first commit"
		}

		var expectedPrevious objstore.ID
		if hasHead {
			expectedPrevious = existingHead.ID
		}

		commitID, lastErr = r.store.CreateCommit(ctx, refName(key), tree, parents, author, committer, message, expectedPrevious)
		if lastErr == nil {
			break
		}
		if !errors.Is(lastErr, objstore.ErrRefChanged) {
			return nil, fmt.Errorf("jsongit: create commit: %w", lastErr)
		}
		r.log.Debug("commit: ref changed, retrying", "key", key, "attempt", attempt+1)
	}
	if lastErr != nil {
		return nil, fmt.Errorf("jsongit: create commit: %w", lastErr)
	}

	commit, err := r.store.ReadCommit(ctx, commitID)
	if err != nil {
		return nil, fmt.Errorf("jsongit: read back commit: %w", err)
	}

	r.log.Debug("commit", "key", key, "commit", commit.ID.Hex(), "parents", len(commit.Parents))

	return &Document{
		repo:       r,
		key:        key,
		head:       commit,
		value:      value,
		dirty:      false,
		autocommit: opts.Autocommit,
	}, nil
}

func (r *Repository) tryHead(ctx context.Context, key string) (objstore.Commit, bool) {
	id, err := r.store.LookupRef(ctx, refName(key))
	if err != nil {
		return objstore.Commit{}, false
	}
	c, err := r.store.ReadCommit(ctx, id)
	if err != nil {
		return objstore.Commit{}, false
	}
	return c, true
}

// Has reports whether key's reference currently exists.
func (r *Repository) Has(ctx context.Context, key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}
	_, ok := r.tryHead(ctx, key)
	return ok, nil
}

// Head returns the commit key's reference currently points to.
func (r *Repository) Head(ctx context.Context, key string) (objstore.Commit, error) {
	if err := validateKey(key); err != nil {
		return objstore.Commit{}, err
	}
	c, ok := r.tryHead(ctx, key)
	if !ok {
		return objstore.Commit{}, fmt.Errorf("%w: key %q", objstore.ErrNotFound, key)
	}
	return c, nil
}

// GetOptions selects how Get resolves the document to load: exactly one
// of Key or Commit must be set.
type GetOptions struct {
	Key        string
	Commit     *objstore.ID
	Autocommit bool
}

// Get loads the document named by exactly one of opts.Key or opts.Commit.
func (r *Repository) Get(ctx context.Context, opts GetOptions) (*Document, error) {
	haveKey := opts.Key != ""
	haveCommit := opts.Commit != nil
	if haveKey == haveCommit {
		return nil, fmt.Errorf("%w: get requires exactly one of key or commit", ErrInvalidArgument)
	}

	var commit objstore.Commit
	var key string
	if haveKey {
		key = opts.Key
		var err error
		commit, err = r.Head(ctx, key)
		if err != nil {
			return nil, err
		}
	} else {
		var err error
		commit, err = r.store.ReadCommit(ctx, *opts.Commit)
		if err != nil {
			return nil, fmt.Errorf("jsongit: read commit: %w", err)
		}
	}

	value, err := r.readTreeValue(ctx, commit.Tree)
	if err != nil {
		return nil, err
	}

	return &Document{
		repo:       r,
		key:        key,
		head:       commit,
		value:      value,
		dirty:      false,
		autocommit: opts.Autocommit,
	}, nil
}

func (r *Repository) readTreeValue(ctx context.Context, tree objstore.ID) (jsonvalue.Value, error) {
	entry, err := r.store.ReadTree(ctx, tree)
	if err != nil {
		return jsonvalue.Value{}, fmt.Errorf("jsongit: read tree: %w", err)
	}
	data, err := r.store.ReadBlob(ctx, entry.Blob)
	if err != nil {
		return jsonvalue.Value{}, fmt.Errorf("jsongit: read data blob: %w", err)
	}
	return r.codec.Decode(data)
}

// FastForward deletes destKey's reference and recreates it pointing at
// head(sourceKey), writing no new commit.
func (r *Repository) FastForward(ctx context.Context, sourceKey, destKey string) error {
	if sourceKey == destKey {
		return fmt.Errorf("%w: fast_forward requires source != dest", ErrInvalidArgument)
	}
	if err := validateKey(sourceKey); err != nil {
		return err
	}
	if err := validateKey(destKey); err != nil {
		return err
	}

	sourceHead, err := r.Head(ctx, sourceKey)
	if err != nil {
		return err
	}

	if err := r.store.DeleteRef(ctx, refName(destKey)); err != nil {
		return fmt.Errorf("jsongit: delete dest ref: %w", err)
	}
	if err := r.store.CreateRef(ctx, refName(destKey), sourceHead.ID); err != nil {
		return fmt.Errorf("jsongit: create dest ref: %w", err)
	}
	r.log.Debug("fast forward", "source_key", sourceKey, "dest_key", destKey, "commit", sourceHead.ID.Hex())
	return nil
}

// Log walks from head(key) in the requested order.
func (r *Repository) Log(ctx context.Context, key string, order objstore.Order) (objstore.CommitIter, error) {
	head, err := r.Head(ctx, key)
	if err != nil {
		return nil, err
	}
	return r.store.Walk(ctx, head.ID, order)
}

// ReadCommit resolves a commit id to its full record, for callers (e.g.
// the CLI's log/show commands) that only have an ID from a CommitIter.
func (r *Repository) ReadCommit(ctx context.Context, id objstore.ID) (objstore.Commit, error) {
	return r.store.ReadCommit(ctx, id)
}

// ReadDocument decodes the JSON value stored at a commit's tree, for
// callers comparing two arbitrary commits (e.g. `jsongit show --diff`)
// rather than two named lineages.
func (r *Repository) ReadDocument(ctx context.Context, commit objstore.Commit) (jsonvalue.Value, error) {
	return r.readTreeValue(ctx, commit.Tree)
}

// GC delegates to the object store's own garbage collector, where one is
// offered; adapters without durable storage to reclaim treat this as a
// no-op.
func (r *Repository) GC(ctx context.Context) error {
	gcer, ok := r.store.(interface{ GC(ctx context.Context) error })
	if !ok {
		return nil
	}
	return gcer.GC(ctx)
}

// Watch polls head(key) and emits a Commit on the returned channel each
// time the reference advances. The channel is closed when ctx is done.
func (r *Repository) Watch(ctx context.Context, key string) (<-chan objstore.Commit, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	// A 500ms poll is the baseline (always correct, works against any
	// adapter); a store that exposes a backing file additionally gets an
	// fsnotify watch on its directory, which wakes the same check loop the
	// instant another process advances the ref instead of waiting out the
	// tick.
	var nudge <-chan fsnotify.Event
	if hint, ok := r.store.(objstore.PathHint); ok {
		if watcher, err := fsnotify.NewWatcher(); err == nil {
			if err := watcher.Add(filepath.Dir(hint.Path())); err == nil {
				nudge = watcher.Events
				go func() {
					<-ctx.Done()
					watcher.Close()
				}()
			} else {
				watcher.Close()
			}
		}
	}

	out := make(chan objstore.Commit)
	go func() {
		defer close(out)
		var last objstore.ID
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
		check := func() bool {
			head, ok := r.tryHead(ctx, key)
			if !ok || head.ID == last {
				return true
			}
			last = head.ID
			select {
			case out <- head:
				return true
			case <-ctx.Done():
				return false
			}
		}
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !check() {
					return
				}
			case _, ok := <-nudge:
				if !ok {
					nudge = nil
					continue
				}
				if !check() {
					return
				}
			}
		}
	}()
	return out, nil
}
