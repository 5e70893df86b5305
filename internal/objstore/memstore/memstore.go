// Package memstore is an in-memory objstore.Store backed by plain Go
// maps. It offers no durability and no compare-and-set on reference
// updates: concurrent commits on the same key observe last-writer-wins.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/foldline/jsongit/internal/objstore"
)

type treeEntry struct {
	name string
	blob objstore.ID
	mode uint32
}

// Store is a goroutine-safe in-memory object store.
type Store struct {
	mu      sync.RWMutex
	blobs   map[objstore.ID][]byte
	trees   map[objstore.ID]treeEntry
	commits map[objstore.ID]objstore.Commit
	refs    map[string]objstore.ID
	closed  bool
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{
		blobs:   make(map[objstore.ID][]byte),
		trees:   make(map[objstore.ID]treeEntry),
		commits: make(map[objstore.ID]objstore.Commit),
		refs:    make(map[string]objstore.ID),
	}
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

func (s *Store) checkOpen() error {
	if s.closed {
		return objstore.ErrStoreClosed
	}
	return nil
}

func (s *Store) WriteBlob(_ context.Context, data []byte) (objstore.ID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return objstore.ID{}, err
	}
	id := hashOf('b', data)
	if _, ok := s.blobs[id]; !ok {
		cp := make([]byte, len(data))
		copy(cp, data)
		s.blobs[id] = cp
	}
	return id, nil
}

func (s *Store) WriteTreeSingle(_ context.Context, entryName string, blob objstore.ID, mode uint32) (objstore.ID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return objstore.ID{}, err
	}
	id := hashOf('t', []byte(entryName), blob[:], []byte{byte(mode)})
	if _, ok := s.trees[id]; !ok {
		s.trees[id] = treeEntry{name: entryName, blob: blob, mode: mode}
	}
	return id, nil
}

func (s *Store) CreateCommit(_ context.Context, ref string, tree objstore.ID, parents []objstore.ID, author, committer objstore.Signature, message string, _ objstore.ID) (objstore.ID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return objstore.ID{}, err
	}

	parentBytes := make([]byte, 0, len(parents)*32)
	for _, p := range parents {
		parentBytes = append(parentBytes, p[:]...)
	}
	id := hashOf('c', tree[:], parentBytes, []byte(message),
		[]byte(author.Name), []byte(author.Email), []byte(author.When.Format(time.RFC3339Nano)))

	c := objstore.Commit{
		ID:        id,
		Tree:      tree,
		Parents:   append([]objstore.ID(nil), parents...),
		Author:    author,
		Committer: committer,
		Message:   message,
	}
	s.commits[id] = c
	s.refs[ref] = id
	return id, nil
}

func (s *Store) LookupRef(_ context.Context, name string) (objstore.ID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.refs[name]
	if !ok {
		return objstore.ID{}, fmt.Errorf("%w: %s", objstore.ErrNotFound, name)
	}
	return id, nil
}

func (s *Store) CreateRef(_ context.Context, name string, commit objstore.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}
	s.refs[name] = commit
	return nil
}

func (s *Store) DeleteRef(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.refs, name)
	return nil
}

func (s *Store) ReadBlob(_ context.Context, id objstore.ID) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.blobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: blob %s", objstore.ErrNotFound, id.Hex())
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

func (s *Store) ReadCommit(_ context.Context, id objstore.ID) (objstore.Commit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.commits[id]
	if !ok {
		return objstore.Commit{}, fmt.Errorf("%w: commit %s", objstore.ErrNotFound, id.Hex())
	}
	return c, nil
}

func (s *Store) ReadTree(_ context.Context, tree objstore.ID) (objstore.TreeEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.trees[tree]
	if !ok {
		return objstore.TreeEntry{}, fmt.Errorf("%w: tree %s", objstore.ErrNotFound, tree.Hex())
	}
	return objstore.TreeEntry{Name: t.name, Blob: t.blob, Mode: t.mode}, nil
}

func (s *Store) TreeOf(_ context.Context, commit objstore.ID) (objstore.ID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.commits[commit]
	if !ok {
		return objstore.ID{}, fmt.Errorf("%w: commit %s", objstore.ErrNotFound, commit.Hex())
	}
	return c.Tree, nil
}

func (s *Store) Walk(_ context.Context, start objstore.ID, order objstore.Order) (objstore.CommitIter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.commits[start]; !ok {
		return &sliceIter{}, nil
	}

	visited := map[objstore.ID]bool{}
	var list []objstore.Commit
	var walk func(id objstore.ID)
	walk = func(id objstore.ID) {
		if visited[id] {
			return
		}
		visited[id] = true
		c, ok := s.commits[id]
		if !ok {
			return
		}
		parents := append([]objstore.ID(nil), c.Parents...)
		sort.Slice(parents, func(i, j int) bool { return parents[i].Hex() < parents[j].Hex() })
		for _, p := range parents {
			walk(p)
		}
		list = append(list, c)
	}
	walk(start)
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

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
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
