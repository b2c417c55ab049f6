package fswatch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func startWatcher(t *testing.T, dir string, opts ...Option) (*Watcher, chan string) {
	t.Helper()
	w, err := New(opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { w.Stop() })

	if err := w.Add(dir); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	changed := make(chan string, 16)
	w.OnChange(func(path string) {
		select {
		case changed <- path:
		default:
		}
	})
	go w.Run(context.Background())
	time.Sleep(50 * time.Millisecond)
	return w, changed
}

func TestWatcher_AddNonexistentDir(t *testing.T) {
	w, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer w.Stop()

	if err := w.Add("/nonexistent/path"); err == nil {
		t.Error("Add() expected error for nonexistent directory")
	}
}

func TestWatcher_FileCreate(t *testing.T) {
	dir := t.TempDir()
	_, changed := startWatcher(t, dir)

	path := filepath.Join(dir, "CATALOG")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	select {
	case got := <-changed:
		if got != path {
			t.Errorf("callback path = %q, want %q", got, path)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("callback was not triggered within timeout")
	}
}

func TestWatcher_RenameIntoDir(t *testing.T) {
	dir := t.TempDir()
	_, changed := startWatcher(t, dir, WithFilter(func(p string) bool {
		return strings.HasSuffix(p, ".md5")
	}))

	tmp := filepath.Join(dir, "CATALOG.md5.tmp-1")
	if err := os.WriteFile(tmp, []byte("sum"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	final := filepath.Join(dir, "CATALOG.md5")
	if err := os.Rename(tmp, final); err != nil {
		t.Fatalf("Rename() error = %v", err)
	}

	select {
	case got := <-changed:
		if got != final {
			t.Errorf("callback path = %q, want %q", got, final)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("rename was not reported within timeout")
	}
}

func TestWatcher_MultipleCallbacks(t *testing.T) {
	w, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer w.Stop()

	var (
		mu    sync.Mutex
		count int
	)
	for i := 0; i < 3; i++ {
		w.OnChange(func(string) {
			mu.Lock()
			count++
			mu.Unlock()
		})
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.notify("/x")
		}()
	}
	wg.Wait()

	if count != 30 {
		t.Errorf("count = %d, want 30", count)
	}
}

func TestWatcher_RunStops(t *testing.T) {
	w, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := w.Run(ctx); !errors.Is(err, context.Canceled) && !errors.Is(err, ErrStopped) {
		t.Errorf("Run() with cancelled ctx = %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- w.Run(context.Background()) }()
	if err := w.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
	select {
	case err := <-done:
		if !errors.Is(err, ErrStopped) {
			t.Errorf("Run() = %v, want ErrStopped", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run() did not return after Stop()")
	}
}
