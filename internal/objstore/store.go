// Package objstore defines the contract over a content-addressed object
// store: write a blob, write a single-entry tree, create a commit, look
// up/create/delete a reference, fetch objects by id, and walk history.
// The repository manager (internal/repo) treats everything here as an
// external collaborator; this package and its memstore/sqlitestore
// subpackages are the shipped implementations of that collaborator.
package objstore

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ID is a content hash identifying a blob, tree, or commit.
type ID [32]byte

// Zero reports whether this is the zero-value ID (used as "no parent" /
// "no previous commit" sentinel in compare-and-set ref updates).
func (id ID) Zero() bool { return id == ID{} }

// Hex renders the id as lowercase hex, the stable field surfaced on
// Commit.
func (id ID) Hex() string { return hexEncode(id[:]) }

func hexEncode(b []byte) string {
	const digits = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, c := range b {
		out[i*2] = digits[c>>4]
		out[i*2+1] = digits[c&0x0f]
	}
	return string(out)
}

// ParseID parses the lowercase hex form an ID.Hex() produces, for callers
// (such as the CLI's --commit flag) that only have the text form of an id.
func ParseID(s string) (ID, error) {
	var id ID
	if len(s) != len(id)*2 {
		return ID{}, fmt.Errorf("jsongit: invalid object id %q", s)
	}
	for i := range id {
		hi, ok := hexDigit(s[i*2])
		lo, ok2 := hexDigit(s[i*2+1])
		if !ok || !ok2 {
			return ID{}, fmt.Errorf("jsongit: invalid object id %q", s)
		}
		id[i] = hi<<4 | lo
	}
	return id, nil
}

func hexDigit(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	default:
		return 0, false
	}
}

// DataEntryName is the fixed literal name of the single entry every tree
// persisted by this system carries.
const DataEntryName = "data"

// DataEntryMode is the fixed file mode for that entry.
const DataEntryMode uint32 = 0o100644

// Signature identifies an author or committer.
type Signature struct {
	Name  string
	Email string
	When  time.Time
}

// Commit is the immutable tuple (tree, parents, signatures, message).
type Commit struct {
	ID        ID
	Tree      ID
	Parents   []ID
	Author    Signature
	Committer Signature
	Message   string
}

// TreeEntry is the single (name, blob, mode) entry every tree persisted
// by this system carries.
type TreeEntry struct {
	Name string
	Blob ID
	Mode uint32
}

// Order selects how Walk traverses history.
type Order int

const (
	// OrderTopological lists parents after children; sibling order is
	// unspecified but deterministic for a given store implementation.
	OrderTopological Order = iota
	// OrderTime lists commits by committer time, most recent first.
	OrderTime
)

// Sentinel errors.
var (
	ErrNotFound    = errors.New("jsongit: reference not found")
	ErrRefChanged  = errors.New("jsongit: reference changed concurrently")
	ErrStoreClosed = errors.New("jsongit: object store is closed")
)

// CommitIter is a lazy, finite sequence of commit ids produced by Walk.
type CommitIter interface {
	// Next advances to the next commit id. It returns false when the
	// walk is exhausted or an error occurred; callers must check Err
	// after Next returns false.
	Next() bool
	ID() ID
	Err() error
}

// PathHint is implemented by adapters backed by a single file on disk. A
// caller that wants to react to external writes (another process advancing
// a ref) without pure polling can watch the directory Path lives in.
type PathHint interface {
	Path() string
}

// Store is the C1 object store adapter contract.
type Store interface {
	WriteBlob(ctx context.Context, data []byte) (ID, error)
	WriteTreeSingle(ctx context.Context, entryName string, blob ID, mode uint32) (ID, error)

	// CreateCommit writes a commit object and atomically updates ref to
	// point at it. expectedPrevious, when non-zero, asks the adapter to
	// fail with ErrRefChanged if ref does not currently point at that
	// commit (optimistic concurrency); the zero ID asks it to fail with
	// ErrRefChanged if ref already exists. Adapters that cannot offer
	// compare-and-set ignore it and perform an unconditional update.
	CreateCommit(ctx context.Context, ref string, tree ID, parents []ID, author, committer Signature, message string, expectedPrevious ID) (ID, error)

	LookupRef(ctx context.Context, name string) (ID, error)
	CreateRef(ctx context.Context, name string, commit ID) error
	DeleteRef(ctx context.Context, name string) error

	ReadBlob(ctx context.Context, id ID) ([]byte, error)
	ReadCommit(ctx context.Context, id ID) (Commit, error)
	ReadTree(ctx context.Context, tree ID) (TreeEntry, error)
	TreeOf(ctx context.Context, commit ID) (ID, error)

	Walk(ctx context.Context, start ID, order Order) (CommitIter, error)

	Close() error
}
