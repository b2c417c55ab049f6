package checkpoint

import (
	"bytes"
	"context"
	"crypto/md5"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func createTemp(t *testing.T) *os.File {
	t.Helper()
	f, err := os.Create(filepath.Join(t.TempDir(), "payload"))
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func TestDigestWriter_HashesEveryByte(t *testing.T) {
	f := createTemp(t)
	w := newDigestWriter(context.Background(), f, md5.New(), 16, nil)

	var all []byte
	for _, p := range [][]byte{[]byte("a"), bytes.Repeat([]byte("b"), 100), nil, []byte("tail")} {
		n, err := w.Write(p)
		if err != nil || n != len(p) {
			t.Fatalf("Write(%d) = %d, %v", len(p), n, err)
		}
		all = append(all, p...)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	want := md5.Sum(all)
	if !bytes.Equal(w.Sum(), want[:]) {
		t.Errorf("Sum = %x, want %x", w.Sum(), want)
	}
	if w.Count() != int64(len(all)) {
		t.Errorf("Count = %d, want %d", w.Count(), len(all))
	}

	onDisk, _ := os.ReadFile(f.Name())
	if !bytes.Equal(onDisk, all) {
		t.Errorf("file holds %d bytes, want %d", len(onDisk), len(all))
	}
	if _, err := w.Write([]byte("x")); !errors.Is(err, os.ErrClosed) {
		t.Errorf("Write after Close err = %v, want os.ErrClosed", err)
	}
}

func TestDigestWriter_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	f := createTemp(t)
	w := newDigestWriter(ctx, f, md5.New(), 0, nil)

	if _, err := w.Write([]byte("before")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	cancel()
	if _, err := w.Write([]byte("after")); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	w.Close()

	// Close always releases the file.
	if err := f.Close(); !errors.Is(err, os.ErrClosed) {
		t.Errorf("file still open after Close: %v", err)
	}
	if w.Count() != int64(len("before")) {
		t.Errorf("Count = %d", w.Count())
	}
}

func TestDigestReader_HashesOnlyConsumedBytes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "payload")
	if err := os.WriteFile(path, []byte("0123456789"), 0o644); err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}

	r := newDigestReader(context.Background(), f, md5.New(), 0, nil)
	b, err := r.ReadByte()
	if err != nil || b != '0' {
		t.Fatalf("ReadByte = %q, %v", b, err)
	}
	p := make([]byte, 3)
	if _, err := io.ReadFull(r, p); err != nil {
		t.Fatalf("ReadFull: %v", err)
	}
	r.Close()

	want := md5.Sum([]byte("0123"))
	if !bytes.Equal(r.Sum(), want[:]) {
		t.Errorf("Sum = %x, want digest of consumed bytes", r.Sum())
	}
	if r.Count() != 4 {
		t.Errorf("Count = %d, want 4", r.Count())
	}
	if _, err := r.Read(p); !errors.Is(err, os.ErrClosed) {
		t.Errorf("Read after Close err = %v, want os.ErrClosed", err)
	}
}

func TestDigestReader_Canceled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "payload")
	os.WriteFile(path, []byte("data"), 0o644)
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := newDigestReader(ctx, f, md5.New(), 0, nil)
	defer r.Close()
	if _, err := r.Read(make([]byte, 4)); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestNewLimiter(t *testing.T) {
	if l := newLimiter(0, 1024); l != nil {
		t.Error("newLimiter(0) != nil")
	}
	if l := newLimiter(-5, 1024); l != nil {
		t.Error("newLimiter(-5) != nil")
	}
	if l := newLimiter(100, 1024); l == nil || l.Burst() != 100 {
		t.Errorf("burst not capped to rate: %v", l)
	}
	if l := newLimiter(1<<20, 0); l.Burst() != DefaultBufferSize {
		t.Errorf("Burst = %d, want %d", l.Burst(), DefaultBufferSize)
	}
}
