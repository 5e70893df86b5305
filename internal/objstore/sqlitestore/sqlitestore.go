// Package sqlitestore is the durable objstore.Store adapter, backed by
// the pure-Go WASM-hosted SQLite build from ncruces/go-sqlite3. It offers
// true compare-and-set on reference updates via BEGIN IMMEDIATE
// transactions, and guards whole-database maintenance operations
// (Destroy, GC) with an on-disk flock so two processes never run them
// concurrently against the same file.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"golang.org/x/crypto/blake2b"

	"github.com/foldline/jsongit/internal/objstore"
)

// Store is a SQLite-backed object store rooted at a single database file.
type Store struct {
	db   *sql.DB
	path string
	lock *flock.Flock
}

// Open creates (if needed) and opens the database file at path, applying
// the schema idempotently.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(wal)")
	if err != nil {
		return nil, fmt.Errorf("jsongit: open sqlite store: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("jsongit: apply schema: %w", err)
	}
	return &Store{db: db, path: path, lock: flock.New(path + ".lock")}, nil
}

// Path returns the database file backing this store, satisfying the
// optional objstore.PathHint interface so callers watching for external
// changes (jsongit watch) know a directory to watch instead of pure polling.
func (s *Store) Path() string { return s.path }

func idHex(id objstore.ID) string { return id.Hex() }

func parseID(s string) (objstore.ID, error) {
	var id objstore.ID
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != len(id) {
		return objstore.ID{}, fmt.Errorf("jsongit: malformed object id %q", s)
	}
	copy(id[:], b)
	return id, nil
}

func hashOf(kind byte, parts ...[]byte) objstore.ID {
	h, _ := blake2b.New256(nil)
	h.Write([]byte{kind})
	for _, p := range parts {
		h.Write(p)
	}
	var id objstore.ID
	copy(id[:], h.Sum(nil))
	return id
}

func (s *Store) WriteBlob(ctx context.Context, data []byte) (objstore.ID, error) {
	id := hashOf('b', data)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO blobs (id, data) VALUES (?, ?) ON CONFLICT(id) DO NOTHING`,
		idHex(id), data)
	if err != nil {
		return objstore.ID{}, fmt.Errorf("jsongit: write blob: %w", err)
	}
	return id, nil
}

func (s *Store) WriteTreeSingle(ctx context.Context, entryName string, blob objstore.ID, mode uint32) (objstore.ID, error) {
	id := hashOf('t', []byte(entryName), blob[:], []byte{byte(mode)})
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO trees (id, entry_name, blob_id, mode) VALUES (?, ?, ?, ?) ON CONFLICT(id) DO NOTHING`,
		idHex(id), entryName, idHex(blob), mode)
	if err != nil {
		return objstore.ID{}, fmt.Errorf("jsongit: write tree: %w", err)
	}
	return id, nil
}

func encodeParents(parents []objstore.ID) string {
	hexes := make([]string, len(parents))
	for i, p := range parents {
		hexes[i] = idHex(p)
	}
	return strings.Join(hexes, ",")
}

func decodeParents(s string) []objstore.ID {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]objstore.ID, 0, len(parts))
	for _, p := range parts {
		id, err := parseID(p)
		if err == nil {
			out = append(out, id)
		}
	}
	return out
}

// CreateCommit writes a commit row and compare-and-sets the named ref,
// inside a single BEGIN IMMEDIATE transaction so two writers racing on
// the same ref never both succeed.
func (s *Store) CreateCommit(ctx context.Context, ref string, tree objstore.ID, parents []objstore.ID, author, committer objstore.Signature, message string, expectedPrevious objstore.ID) (objstore.ID, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return objstore.ID{}, fmt.Errorf("jsongit: begin immediate: %w", err)
	}
	defer tx.Rollback()

	var current objstore.ID
	var currentHex string
	err = tx.QueryRowContext(ctx, `SELECT commit_id FROM refs WHERE name = ?`, ref).Scan(&currentHex)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		current = objstore.ID{}
	case err != nil:
		return objstore.ID{}, fmt.Errorf("jsongit: read ref: %w", err)
	default:
		current, err = parseID(currentHex)
		if err != nil {
			return objstore.ID{}, err
		}
	}
	if !expectedPrevious.Zero() && current != expectedPrevious {
		return objstore.ID{}, objstore.ErrRefChanged
	}
	if expectedPrevious.Zero() && !current.Zero() {
		// A caller passing the zero id means "no ref yet expected"; if one
		// already exists this is also a concurrent-change signal.
		return objstore.ID{}, objstore.ErrRefChanged
	}

	parentBytes := make([]byte, 0, len(parents)*32)
	for _, p := range parents {
		parentBytes = append(parentBytes, p[:]...)
	}
	id := hashOf('c', tree[:], parentBytes, []byte(message),
		[]byte(author.Name), []byte(author.Email), []byte(author.When.Format(time.RFC3339Nano)))

	_, err = tx.ExecContext(ctx,
		`INSERT INTO commits (id, tree_id, parents, author_name, author_email, author_when, committer_name, committer_email, committer_when, message)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?) ON CONFLICT(id) DO NOTHING`,
		idHex(id), idHex(tree), encodeParents(parents),
		author.Name, author.Email, author.When.Format(time.RFC3339Nano),
		committer.Name, committer.Email, committer.When.Format(time.RFC3339Nano),
		message)
	if err != nil {
		return objstore.ID{}, fmt.Errorf("jsongit: insert commit: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO refs (name, commit_id) VALUES (?, ?)
		 ON CONFLICT(name) DO UPDATE SET commit_id = excluded.commit_id`,
		ref, idHex(id))
	if err != nil {
		return objstore.ID{}, fmt.Errorf("jsongit: update ref: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return objstore.ID{}, fmt.Errorf("jsongit: commit transaction: %w", err)
	}
	return id, nil
}

func (s *Store) LookupRef(ctx context.Context, name string) (objstore.ID, error) {
	var h string
	err := s.db.QueryRowContext(ctx, `SELECT commit_id FROM refs WHERE name = ?`, name).Scan(&h)
	if errors.Is(err, sql.ErrNoRows) {
		return objstore.ID{}, fmt.Errorf("%w: %s", objstore.ErrNotFound, name)
	}
	if err != nil {
		return objstore.ID{}, fmt.Errorf("jsongit: lookup ref: %w", err)
	}
	return parseID(h)
}

func (s *Store) CreateRef(ctx context.Context, name string, commit objstore.ID) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO refs (name, commit_id) VALUES (?, ?)
		 ON CONFLICT(name) DO UPDATE SET commit_id = excluded.commit_id`,
		name, idHex(commit))
	if err != nil {
		return fmt.Errorf("jsongit: create ref: %w", err)
	}
	return nil
}

func (s *Store) DeleteRef(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM refs WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("jsongit: delete ref: %w", err)
	}
	return nil
}

func (s *Store) ReadBlob(ctx context.Context, id objstore.ID) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM blobs WHERE id = ?`, idHex(id)).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: blob %s", objstore.ErrNotFound, id.Hex())
	}
	if err != nil {
		return nil, fmt.Errorf("jsongit: read blob: %w", err)
	}
	return data, nil
}

func (s *Store) ReadCommit(ctx context.Context, id objstore.ID) (objstore.Commit, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT tree_id, parents, author_name, author_email, author_when, committer_name, committer_email, committer_when, message
		 FROM commits WHERE id = ?`, idHex(id))

	var treeHex, parentsStr, authorName, authorEmail, authorWhen string
	var committerName, committerEmail, committerWhen, message string
	err := row.Scan(&treeHex, &parentsStr, &authorName, &authorEmail, &authorWhen, &committerName, &committerEmail, &committerWhen, &message)
	if errors.Is(err, sql.ErrNoRows) {
		return objstore.Commit{}, fmt.Errorf("%w: commit %s", objstore.ErrNotFound, id.Hex())
	}
	if err != nil {
		return objstore.Commit{}, fmt.Errorf("jsongit: read commit: %w", err)
	}

	tree, err := parseID(treeHex)
	if err != nil {
		return objstore.Commit{}, err
	}
	authorWhenT, err := time.Parse(time.RFC3339Nano, authorWhen)
	if err != nil {
		return objstore.Commit{}, fmt.Errorf("jsongit: parse author time: %w", err)
	}
	committerWhenT, err := time.Parse(time.RFC3339Nano, committerWhen)
	if err != nil {
		return objstore.Commit{}, fmt.Errorf("jsongit: parse committer time: %w", err)
	}

	return objstore.Commit{
		ID:      id,
		Tree:    tree,
		Parents: decodeParents(parentsStr),
		Author: objstore.Signature{
			Name: authorName, Email: authorEmail, When: authorWhenT,
		},
		Committer: objstore.Signature{
			Name: committerName, Email: committerEmail, When: committerWhenT,
		},
		Message: message,
	}, nil
}

func (s *Store) ReadTree(ctx context.Context, tree objstore.ID) (objstore.TreeEntry, error) {
	var entryName, blobHex string
	var mode uint32
	err := s.db.QueryRowContext(ctx,
		`SELECT entry_name, blob_id, mode FROM trees WHERE id = ?`, idHex(tree)).
		Scan(&entryName, &blobHex, &mode)
	if errors.Is(err, sql.ErrNoRows) {
		return objstore.TreeEntry{}, fmt.Errorf("%w: tree %s", objstore.ErrNotFound, tree.Hex())
	}
	if err != nil {
		return objstore.TreeEntry{}, fmt.Errorf("jsongit: read tree: %w", err)
	}
	blob, err := parseID(blobHex)
	if err != nil {
		return objstore.TreeEntry{}, err
	}
	return objstore.TreeEntry{Name: entryName, Blob: blob, Mode: mode}, nil
}

func (s *Store) TreeOf(ctx context.Context, commit objstore.ID) (objstore.ID, error) {
	var treeHex string
	err := s.db.QueryRowContext(ctx, `SELECT tree_id FROM commits WHERE id = ?`, idHex(commit)).Scan(&treeHex)
	if errors.Is(err, sql.ErrNoRows) {
		return objstore.ID{}, fmt.Errorf("%w: commit %s", objstore.ErrNotFound, commit.Hex())
	}
	if err != nil {
		return objstore.ID{}, fmt.Errorf("jsongit: tree of commit: %w", err)
	}
	return parseID(treeHex)
}

func (s *Store) Walk(ctx context.Context, start objstore.ID, order objstore.Order) (objstore.CommitIter, error) {
	visited := map[objstore.ID]bool{}
	var list []objstore.Commit

	var walk func(id objstore.ID) error
	walk = func(id objstore.ID) error {
		if visited[id] {
			return nil
		}
		visited[id] = true
		c, err := s.ReadCommit(ctx, id)
		if errors.Is(err, objstore.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		parents := append([]objstore.ID(nil), c.Parents...)
		sort.Slice(parents, func(i, j int) bool { return parents[i].Hex() < parents[j].Hex() })
		for _, p := range parents {
			if err := walk(p); err != nil {
				return err
			}
		}
		list = append(list, c)
		return nil
	}
	if err := walk(start); err != nil {
		return nil, err
	}
	// list is in post-order (every parent before its children); reversing
	// it lists every commit before all of its parents.
	for i, j := 0, len(list)-1; i < j; i, j = i+1, j-1 {
		list[i], list[j] = list[j], list[i]
	}

	if order == objstore.OrderTime {
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].Committer.When.After(list[j].Committer.When)
		})
	}

	ids := make([]objstore.ID, len(list))
	for i, c := range list {
		ids[i] = c.ID
	}
	return &sliceIter{ids: ids, pos: -1}, nil
}

// Destroy removes every row from every table, guarded by an on-disk
// flock so a concurrent GC in another process cannot interleave with it.
func (s *Store) Destroy(ctx context.Context) error {
	locked, err := s.lock.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil {
		return fmt.Errorf("jsongit: acquire destroy lock: %w", err)
	}
	if !locked {
		return errors.New("jsongit: store is locked by another process")
	}
	defer s.lock.Unlock()

	for _, table := range []string{"blobs", "trees", "commits", "refs"} {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return fmt.Errorf("jsongit: destroy %s: %w", table, err)
		}
	}
	return nil
}

// GC removes blobs and trees unreachable from any ref, guarded the same
// way as Destroy.
func (s *Store) GC(ctx context.Context) error {
	locked, err := s.lock.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil {
		return fmt.Errorf("jsongit: acquire gc lock: %w", err)
	}
	if !locked {
		return errors.New("jsongit: store is locked by another process")
	}
	defer s.lock.Unlock()

	rows, err := s.db.QueryContext(ctx, `SELECT commit_id FROM refs`)
	if err != nil {
		return fmt.Errorf("jsongit: gc: list refs: %w", err)
	}
	var heads []objstore.ID
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			rows.Close()
			return fmt.Errorf("jsongit: gc: scan ref: %w", err)
		}
		id, err := parseID(h)
		if err != nil {
			rows.Close()
			return err
		}
		heads = append(heads, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	liveTrees := map[string]bool{}
	liveBlobs := map[string]bool{}
	for _, head := range heads {
		iter, err := s.Walk(ctx, head, objstore.OrderTopological)
		if err != nil {
			return fmt.Errorf("jsongit: gc: walk: %w", err)
		}
		for iter.Next() {
			commit, err := s.ReadCommit(ctx, iter.ID())
			if err != nil {
				return err
			}
			liveTrees[idHex(commit.Tree)] = true
			var blobHex string
			err = s.db.QueryRowContext(ctx, `SELECT blob_id FROM trees WHERE id = ?`, idHex(commit.Tree)).Scan(&blobHex)
			if err == nil {
				liveBlobs[blobHex] = true
			}
		}
		if err := iter.Err(); err != nil {
			return err
		}
	}

	if err := gcTable(ctx, s.db, "trees", "id", liveTrees); err != nil {
		return err
	}
	return gcTable(ctx, s.db, "blobs", "id", liveBlobs)
}

func gcTable(ctx context.Context, db *sql.DB, table, idCol string, live map[string]bool) error {
	rows, err := db.QueryContext(ctx, `SELECT `+idCol+` FROM `+table)
	if err != nil {
		return fmt.Errorf("jsongit: gc: list %s: %w", table, err)
	}
	var dead []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		if !live[id] {
			dead = append(dead, id)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	for i, id := range dead {
		if _, err := db.ExecContext(ctx, `DELETE FROM `+table+` WHERE `+idCol+` = ?`, id); err != nil {
			return fmt.Errorf("jsongit: gc: delete %s row %d: %w", table, i, err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

type sliceIter struct {
	ids []objstore.ID
	pos int
}

func (it *sliceIter) Next() bool {
	it.pos++
	return it.pos < len(it.ids)
}

func (it *sliceIter) ID() objstore.ID {
	if it.pos < 0 || it.pos >= len(it.ids) {
		return objstore.ID{}
	}
	return it.ids[it.pos]
}

func (it *sliceIter) Err() error { return nil }
