package meta

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *BoltStore {
	t.Helper()
	store, err := NewBoltStore(filepath.Join(t.TempDir(), "meta.db"), zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestPutAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	url := "https://example.org/api/Illustris-3/"
	body := []byte(`{"name":"Illustris-3","cosmology":"WMAP-9"}`)
	if err := store.Put(ctx, url, body); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, ok, err := store.Get(ctx, url)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !ok {
		t.Fatal("expected cached document")
	}
	if string(got) != string(body) {
		t.Errorf("got %q, want %q", got, body)
	}

	_, ok, err = store.Get(ctx, "https://example.org/api/missing/")
	if err != nil || ok {
		t.Errorf("expected clean miss, got ok=%v err=%v", ok, err)
	}
}

func TestLookupNotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Lookup(context.Background(), "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPutReplaces(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return base }
	store.Put(ctx, "u", []byte("one"))
	store.now = func() time.Time { return base.Add(time.Hour) }
	store.Put(ctx, "u", []byte("two"))

	entry, err := store.Lookup(ctx, "u")
	if err != nil {
		t.Fatal(err)
	}
	if string(entry.Body) != "two" {
		t.Errorf("expected replaced body, got %q", entry.Body)
	}
	if !entry.FetchedAt.Equal(base.Add(time.Hour)) {
		t.Errorf("unexpected fetched time %v", entry.FetchedAt)
	}

	// The old index entry must be gone, so pruning before the second write
	// removes nothing.
	n, err := store.PruneBefore(ctx, base.Add(30*time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("expected nothing pruned, got %d", n)
	}
}

func TestListByPrefix(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, u := range []string{
		"https://x/api/TNG100-1/",
		"https://x/api/TNG100-1/snapshots/99/",
		"https://x/api/TNG300-1/",
	} {
		if err := store.Put(ctx, u, []byte("{}")); err != nil {
			t.Fatal(err)
		}
	}

	docs, err := store.List(ctx, "https://x/api/TNG100-1/")
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	if docs[0].URL != "https://x/api/TNG100-1/" {
		t.Errorf("unexpected order: %s", docs[0].URL)
	}
}

func TestDeleteAndCount(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	store.Put(ctx, "a", []byte("1"))
	store.Put(ctx, "b", []byte("2"))

	if n, _ := store.Count(ctx); n != 2 {
		t.Fatalf("expected 2 documents, got %d", n)
	}
	if err := store.Delete(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	if n, _ := store.Count(ctx); n != 1 {
		t.Fatalf("expected 1 document, got %d", n)
	}
	if err := store.Delete(ctx, "a"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestPruneBefore(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, u := range []string{"old-1", "old-2", "new"} {
		store.now = func() time.Time { return base.Add(time.Duration(i) * time.Hour) }
		if err := store.Put(ctx, u, []byte("{}")); err != nil {
			t.Fatal(err)
		}
	}

	n, err := store.PruneBefore(ctx, base.Add(90*time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("expected 2 pruned, got %d", n)
	}
	if _, ok, _ := store.Get(ctx, "new"); !ok {
		t.Error("recent document should survive pruning")
	}
	if _, ok, _ := store.Get(ctx, "old-1"); ok {
		t.Error("old document should be pruned")
	}
}

func TestPing(t *testing.T) {
	store := newTestStore(t)
	if err := store.Ping(); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}
