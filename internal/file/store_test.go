package file

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"
)

func newTestFileStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "downloads"), zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestFileStore_PutReadBack(t *testing.T) {
	store := newTestFileStore(t)
	ctx := context.Background()

	path, err := store.Put(ctx, "cutout_2.hdf5", strings.NewReader("HDF5 payload"))
	if err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "HDF5 payload" {
		t.Errorf("unexpected content %q", got)
	}

	ok, err := store.Exists("cutout_2.hdf5")
	if err != nil || !ok {
		t.Errorf("expected file to exist, ok=%v err=%v", ok, err)
	}
}

func TestFileStore_PathStripsDirectories(t *testing.T) {
	store := newTestFileStore(t)
	for _, name := range []string{"../../etc/passwd", "/abs/name.bin", "a/b/c.bin"} {
		p, err := store.Path(name)
		if err != nil {
			t.Fatalf("Path(%q): %v", name, err)
		}
		if filepath.Dir(p) != store.dataDir {
			t.Errorf("Path(%q) = %q escapes %q", name, p, store.dataDir)
		}
	}
}

func TestFileStore_RejectsUnusableNames(t *testing.T) {
	store := newTestFileStore(t)
	for _, name := range []string{"", ".", "..", "/", "a/..", "../.."} {
		if _, err := store.Path(name); !errors.Is(err, ErrNoFilename) {
			t.Errorf("Path(%q): expected ErrNoFilename, got %v", name, err)
		}
		if _, err := store.Put(context.Background(), name, strings.NewReader("x")); !errors.Is(err, ErrNoFilename) {
			t.Errorf("Put(%q): expected ErrNoFilename, got %v", name, err)
		}
	}
	entries, err := os.ReadDir(store.dataDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no files written, found %d", len(entries))
	}
}

type failingReader struct {
	data []byte
	sent bool
}

func (f *failingReader) Read(p []byte) (int, error) {
	if !f.sent {
		f.sent = true
		return copy(p, f.data), nil
	}
	return 0, errors.New("connection reset")
}

func TestWriteAtomic_FailureLeavesNoFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cutout.hdf5")

	_, err := WriteAtomic(context.Background(), path, &failingReader{data: []byte("partial")})
	if err == nil {
		t.Fatal("expected error from failing reader")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("target should not exist after failure, stat err=%v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("temporary files left behind: %v", entries)
	}
}

func TestWriteAtomic_KeepsPreviousOnFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cutout.hdf5")
	if err := os.WriteFile(path, []byte("good"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := WriteAtomic(context.Background(), path, &failingReader{data: []byte("bad")}); err == nil {
		t.Fatal("expected error")
	}
	got, _ := os.ReadFile(path)
	if string(got) != "good" {
		t.Errorf("previous content lost: %q", got)
	}
}

func TestWriteAtomic_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	path := filepath.Join(t.TempDir(), "f")
	_, err := WriteAtomic(ctx, path, bytes.NewReader([]byte("data")))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestEnsureDir_Concurrent(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b", "c")
	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- EnsureDir(dir)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent EnsureDir: %v", err)
		}
	}
}

func TestFileStore_ConcurrentPut(t *testing.T) {
	store := newTestFileStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := store.Put(ctx, fmt.Sprintf("f%d", i), io.LimitReader(strings.NewReader("0123456789"), 4)); err != nil {
				t.Errorf("put %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < 8; i++ {
		p, err := store.Path(fmt.Sprintf("f%d", i))
		if err != nil {
			t.Fatal(err)
		}
		got, err := os.ReadFile(p)
		if err != nil || string(got) != "0123" {
			t.Errorf("f%d: got %q err=%v", i, got, err)
		}
	}
}
