package catalog

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/yndnr/metackpt/pkg/cmap"
)

const (
	magic   = "CTL"
	version = 1

	headerSize = len(magic) + 1 + 4

	// ctxCheckInterval is how many entries are encoded or decoded between
	// context checks.
	ctxCheckInterval = 1024
)

// ErrBadHeader is returned when a payload does not start with a catalog header.
var ErrBadHeader = errors.New("catalog: bad payload header")

// WriteCheckpoint implements checkpoint.Checkpointed.
func (c *Catalog) WriteCheckpoint(ctx context.Context, w io.Writer) error {
	snap := c.Snapshot()
	keys := make([]string, 0, len(snap))
	for k := range snap {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var hdr [headerSize]byte
	copy(hdr[:], magic)
	hdr[len(magic)] = version
	binary.BigEndian.PutUint32(hdr[len(magic)+1:], uint32(len(keys)))
	if _, err := w.Write(hdr[:]); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	buf := make([]byte, 0, 64)
	for i, k := range keys {
		if i%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		buf = binary.AppendUvarint(buf[:0], uint64(len(k)))
		buf = append(buf, k...)
		buf = binary.BigEndian.AppendUint64(buf, uint64(snap[k]))
		if _, err := w.Write(buf); err != nil {
			return fmt.Errorf("write entry %q: %w", k, err)
		}
	}
	return nil
}

// RestoreCheckpoint implements checkpoint.Checkpointed. The decoded state
// is staged and becomes visible on CommitRestore. Bytes after the last
// entry are left unread.
func (c *Catalog) RestoreCheckpoint(ctx context.Context, r io.Reader) error {
	br, ok := r.(io.ByteReader)
	if !ok {
		br = byteReader{r}
	}

	var hdr [headerSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	if string(hdr[:len(magic)]) != magic {
		return fmt.Errorf("%w: magic %q", ErrBadHeader, hdr[:len(magic)])
	}
	if v := hdr[len(magic)]; v != version {
		return fmt.Errorf("%w: unsupported version %d", ErrBadHeader, v)
	}
	count := binary.BigEndian.Uint32(hdr[len(magic)+1:])

	m := cmap.New[string, int64]()
	var val [8]byte
	for i := uint32(0); i < count; i++ {
		if i%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		n, err := binary.ReadUvarint(br)
		if err != nil {
			return fmt.Errorf("read entry %d key length: %w", i, unexpected(err))
		}
		if n == 0 || n > MaxKeyLen {
			return fmt.Errorf("read entry %d: key length %d out of range", i, n)
		}
		key := make([]byte, n)
		if _, err := io.ReadFull(r, key); err != nil {
			return fmt.Errorf("read entry %d key: %w", i, unexpected(err))
		}
		if _, err := io.ReadFull(r, val[:]); err != nil {
			return fmt.Errorf("read entry %d value: %w", i, unexpected(err))
		}
		m.Set(string(key), int64(binary.BigEndian.Uint64(val[:])))
	}

	c.mu.Lock()
	c.staged = m
	c.mu.Unlock()
	return nil
}

func unexpected(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}

// byteReader reads single bytes without buffering ahead.
type byteReader struct {
	r io.Reader
}

func (b byteReader) ReadByte() (byte, error) {
	var p [1]byte
	if _, err := io.ReadFull(b.r, p[:]); err != nil {
		return 0, err
	}
	return p[0], nil
}
