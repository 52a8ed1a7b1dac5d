package lifecycle

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gftdcojp/tng-client/internal/meta"
	"go.uber.org/zap"
)

func newTestMeta(t *testing.T) *meta.BoltStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	store, err := meta.NewBoltStore(path, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

type fakePruner struct {
	mu      sync.Mutex
	cutoffs []time.Time
	err     error
}

func (f *fakePruner) PruneBefore(_ context.Context, cutoff time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cutoffs = append(f.cutoffs, cutoff)
	return 0, f.err
}

func (f *fakePruner) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.cutoffs)
}

func TestManager_PruneExpiresOldDocuments(t *testing.T) {
	store := newTestMeta(t)
	ctx := context.Background()
	if err := store.Put(ctx, "https://example.org/api/Illustris-3/", []byte(`{}`)); err != nil {
		t.Fatal(err)
	}

	mgr := NewManager(store, time.Hour, zap.NewNop())

	n, err := mgr.Prune(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("fresh document should survive, pruned %d", n)
	}

	mgr.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	n, err = mgr.Prune(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected 1 expired document, got %d", n)
	}
	if count, _ := store.Count(ctx); count != 0 {
		t.Errorf("expected empty cache, got %d documents", count)
	}
}

func TestManager_ZeroMaxAgeDisablesExpiry(t *testing.T) {
	p := &fakePruner{}
	mgr := NewManager(p, 0, nil)
	if n, err := mgr.Prune(context.Background()); n != 0 || err != nil {
		t.Fatalf("expected no-op, got n=%d err=%v", n, err)
	}
	if p.calls() != 0 {
		t.Error("store should not be touched without a max age")
	}
}

func TestManager_PruneCutoff(t *testing.T) {
	p := &fakePruner{}
	mgr := NewManager(p, 24*time.Hour, nil)
	now := time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)
	mgr.now = func() time.Time { return now }

	if _, err := mgr.Prune(context.Background()); err != nil {
		t.Fatal(err)
	}
	if want := now.Add(-24 * time.Hour); !p.cutoffs[0].Equal(want) {
		t.Errorf("expected cutoff %v, got %v", want, p.cutoffs[0])
	}

	p.err = errors.New("locked")
	if _, err := mgr.Prune(context.Background()); err == nil {
		t.Error("expected store error")
	}
}

func TestManager_RunStopsOnCancel(t *testing.T) {
	p := &fakePruner{}
	mgr := NewManager(p, time.Hour, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- mgr.Run(ctx, 10*time.Millisecond) }()

	deadline := time.Now().Add(2 * time.Second)
	for p.calls() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if p.calls() < 2 {
		t.Errorf("expected an immediate and a periodic prune, got %d", p.calls())
	}
}
