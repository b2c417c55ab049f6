package catalog

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/yndnr/metackpt/internal/core/domain"
)

func TestCatalog_PutGetDelete(t *testing.T) {
	c := New()

	if err := c.Put("inodes", 42); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if v, ok := c.Get("inodes"); !ok || v != 42 {
		t.Fatalf("Get = (%d, %v), want (42, true)", v, ok)
	}
	if got, _ := c.Add("inodes", -2); got != 40 {
		t.Fatalf("Add = %d, want 40", got)
	}
	if got, _ := c.Add("blocks", 7); got != 7 {
		t.Fatalf("Add on new key = %d, want 7", got)
	}
	if c.Len() != 2 {
		t.Fatalf("Len = %d, want 2", c.Len())
	}
	if !c.Delete("blocks") {
		t.Fatal("Delete(blocks) = false")
	}
	if c.Delete("blocks") {
		t.Fatal("second Delete(blocks) = true")
	}
	if got := strings.Join(c.Keys(), ","); got != "inodes" {
		t.Fatalf("Keys = %q", got)
	}
}

func TestCatalog_InvalidKey(t *testing.T) {
	c := New()

	for _, key := range []string{"", strings.Repeat("k", MaxKeyLen+1)} {
		if err := c.Put(key, 1); !errors.Is(err, domain.ErrInvalidCatalogKey) {
			t.Errorf("Put(len=%d) err = %v, want ErrInvalidCatalogKey", len(key), err)
		}
	}
}

func TestCatalog_CheckpointName(t *testing.T) {
	if got := New().CheckpointName(); got != domain.CheckpointCatalog {
		t.Errorf("default name = %q", got)
	}
	if got := New(WithName("MOUNT_TABLE")).CheckpointName(); got != "MOUNT_TABLE" {
		t.Errorf("WithName = %q", got)
	}
}

func TestCatalog_PayloadLayout(t *testing.T) {
	c, err := FromMap(map[string]int64{"c": 3, "a": 1, "b": 2})
	if err != nil {
		t.Fatalf("FromMap: %v", err)
	}

	var buf bytes.Buffer
	if err := c.WriteCheckpoint(context.Background(), &buf); err != nil {
		t.Fatalf("WriteCheckpoint: %v", err)
	}

	want := []byte{
		'C', 'T', 'L', 1, 0, 0, 0, 3,
		1, 'a', 0, 0, 0, 0, 0, 0, 0, 1,
		1, 'b', 0, 0, 0, 0, 0, 0, 0, 2,
		1, 'c', 0, 0, 0, 0, 0, 0, 0, 3,
	}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Fatalf("payload = %v\nwant      %v", buf.Bytes(), want)
	}
}

func TestCatalog_RestoreIsStaged(t *testing.T) {
	src, _ := FromMap(map[string]int64{"a": 1, "b": -2})
	var buf bytes.Buffer
	if err := src.WriteCheckpoint(context.Background(), &buf); err != nil {
		t.Fatalf("WriteCheckpoint: %v", err)
	}
	payload := buf.Bytes()

	dst, _ := FromMap(map[string]int64{"old": 9})

	if err := dst.RestoreCheckpoint(context.Background(), bytes.NewReader(payload)); err != nil {
		t.Fatalf("RestoreCheckpoint: %v", err)
	}
	if v, ok := dst.Get("old"); !ok || v != 9 {
		t.Fatal("restore became visible before commit")
	}

	dst.AbortRestore()
	dst.CommitRestore()
	if dst.Len() != 1 {
		t.Fatalf("Len after abort = %d, want 1", dst.Len())
	}

	if err := dst.RestoreCheckpoint(context.Background(), bytes.NewReader(payload)); err != nil {
		t.Fatalf("RestoreCheckpoint: %v", err)
	}
	dst.CommitRestore()
	got := dst.Snapshot()
	if len(got) != 2 || got["a"] != 1 || got["b"] != -2 {
		t.Fatalf("Snapshot after commit = %v", got)
	}
}

func TestCatalog_RestoreErrors(t *testing.T) {
	src, _ := FromMap(map[string]int64{"a": 1, "b": 2})
	var buf bytes.Buffer
	if err := src.WriteCheckpoint(context.Background(), &buf); err != nil {
		t.Fatalf("WriteCheckpoint: %v", err)
	}
	good := buf.Bytes()

	tests := []struct {
		name    string
		payload []byte
		want    error
	}{
		{"empty", nil, io.EOF},
		{"short header", good[:5], io.ErrUnexpectedEOF},
		{"bad magic", append([]byte("XYZ"), good[3:]...), ErrBadHeader},
		{"bad version", append([]byte("CTL\x07"), good[4:]...), ErrBadHeader},
		{"truncated key", good[:9], io.ErrUnexpectedEOF},
		{"truncated value", good[:len(good)-3], io.ErrUnexpectedEOF},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New()
			err := c.RestoreCheckpoint(context.Background(), bytes.NewReader(tt.payload))
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			c.CommitRestore()
			if c.Len() != 0 {
				t.Fatalf("failed restore left %d entries", c.Len())
			}
		})
	}
}

func TestCatalog_RestoreLeavesTrailingBytes(t *testing.T) {
	src, _ := FromMap(map[string]int64{"a": 1})
	var buf bytes.Buffer
	if err := src.WriteCheckpoint(context.Background(), &buf); err != nil {
		t.Fatalf("WriteCheckpoint: %v", err)
	}
	buf.WriteString("trailer")

	r := bytes.NewReader(buf.Bytes())
	c := New()
	if err := c.RestoreCheckpoint(context.Background(), r); err != nil {
		t.Fatalf("RestoreCheckpoint: %v", err)
	}
	if r.Len() != len("trailer") {
		t.Fatalf("unread = %d, want %d", r.Len(), len("trailer"))
	}
}

func TestCatalog_WriteCanceled(t *testing.T) {
	c, _ := FromMap(map[string]int64{"a": 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := c.WriteCheckpoint(ctx, io.Discard); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

// plainReader hides the io.ByteReader of its source.
type plainReader struct{ r io.Reader }

func (p plainReader) Read(b []byte) (int, error) { return p.r.Read(b) }

func TestCatalog_RestoreFromPlainReader(t *testing.T) {
	src, _ := FromMap(map[string]int64{"alpha": 10, "beta": 20})
	var buf bytes.Buffer
	if err := src.WriteCheckpoint(context.Background(), &buf); err != nil {
		t.Fatalf("WriteCheckpoint: %v", err)
	}

	c := New()
	if err := c.RestoreCheckpoint(context.Background(), plainReader{&buf}); err != nil {
		t.Fatalf("RestoreCheckpoint: %v", err)
	}
	c.CommitRestore()
	if v, _ := c.Get("beta"); v != 20 {
		t.Fatalf("Get(beta) = %d, want 20", v)
	}
}
