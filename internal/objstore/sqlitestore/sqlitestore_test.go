package sqlitestore_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/foldline/jsongit/internal/objstore"
	"github.com/foldline/jsongit/internal/objstore/sqlitestore"
)

func openTemp(t *testing.T) *sqlitestore.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "store.db")
	s, err := sqlitestore.Open(context.Background(), path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sig(name string) objstore.Signature {
	return objstore.Signature{Name: name, Email: name + "@example.com", When: time.Unix(1700000000, 0).UTC()}
}

func TestCreateCommitAndLookupRefRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)

	blob, err := s.WriteBlob(ctx, []byte(`{"a":1}`))
	if err != nil {
		t.Fatalf("WriteBlob: %v", err)
	}
	tree, err := s.WriteTreeSingle(ctx, objstore.DataEntryName, blob, objstore.DataEntryMode)
	if err != nil {
		t.Fatalf("WriteTreeSingle: %v", err)
	}
	commitID, err := s.CreateCommit(ctx, "main", tree, nil, sig("alice"), sig("alice"), "first commit", objstore.ID{})
	if err != nil {
		t.Fatalf("CreateCommit: %v", err)
	}

	got, err := s.LookupRef(ctx, "main")
	if err != nil {
		t.Fatalf("LookupRef: %v", err)
	}
	if got != commitID {
		t.Fatalf("expected ref to point at %s, got %s", commitID.Hex(), got.Hex())
	}

	data, err := s.ReadBlob(ctx, blob)
	if err != nil {
		t.Fatalf("ReadBlob: %v", err)
	}
	if string(data) != `{"a":1}` {
		t.Fatalf("unexpected blob contents: %s", data)
	}
}

func TestCreateCommitRejectsStaleExpectedPrevious(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)

	blob, _ := s.WriteBlob(ctx, []byte(`{}`))
	tree, _ := s.WriteTreeSingle(ctx, objstore.DataEntryName, blob, objstore.DataEntryMode)

	first, err := s.CreateCommit(ctx, "main", tree, nil, sig("a"), sig("a"), "first", objstore.ID{})
	if err != nil {
		t.Fatalf("CreateCommit: %v", err)
	}

	// A second writer still believes the ref is unset.
	_, err = s.CreateCommit(ctx, "main", tree, nil, sig("b"), sig("b"), "racing write", objstore.ID{})
	if err == nil {
		t.Fatalf("expected ErrRefChanged for a racing writer")
	}

	// The correct expectedPrevious succeeds.
	second, err := s.CreateCommit(ctx, "main", tree, []objstore.ID{first}, sig("a"), sig("a"), "second", first)
	if err != nil {
		t.Fatalf("CreateCommit with correct expectedPrevious: %v", err)
	}
	if second == first {
		t.Fatalf("expected a distinct commit id for the second commit")
	}
}

func TestGCRemovesUnreachableBlobsAndTrees(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)

	keptBlob, _ := s.WriteBlob(ctx, []byte(`{"kept":true}`))
	keptTree, _ := s.WriteTreeSingle(ctx, objstore.DataEntryName, keptBlob, objstore.DataEntryMode)
	if _, err := s.CreateCommit(ctx, "main", keptTree, nil, sig("a"), sig("a"), "keep", objstore.ID{}); err != nil {
		t.Fatalf("CreateCommit: %v", err)
	}

	danglingBlob, err := s.WriteBlob(ctx, []byte(`{"dangling":true}`))
	if err != nil {
		t.Fatalf("WriteBlob: %v", err)
	}

	if err := s.GC(ctx); err != nil {
		t.Fatalf("GC: %v", err)
	}

	if _, err := s.ReadBlob(ctx, keptBlob); err != nil {
		t.Fatalf("expected reachable blob to survive GC: %v", err)
	}
	if _, err := s.ReadBlob(ctx, danglingBlob); err == nil {
		t.Fatalf("expected unreachable blob to be collected")
	}
}

func TestDestroyClearsAllTables(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)

	blob, _ := s.WriteBlob(ctx, []byte(`{}`))
	tree, _ := s.WriteTreeSingle(ctx, objstore.DataEntryName, blob, objstore.DataEntryMode)
	if _, err := s.CreateCommit(ctx, "main", tree, nil, sig("a"), sig("a"), "c", objstore.ID{}); err != nil {
		t.Fatalf("CreateCommit: %v", err)
	}

	if err := s.Destroy(ctx); err != nil {
		t.Fatalf("Destroy: %v", err)
	}

	if _, err := s.LookupRef(ctx, "main"); err == nil {
		t.Fatalf("expected ref to be gone after Destroy")
	}
	if _, err := s.ReadBlob(ctx, blob); err == nil {
		t.Fatalf("expected blob to be gone after Destroy")
	}
}
