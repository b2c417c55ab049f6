package checkpoint

import (
	"bufio"
	"context"
	"hash"
	"io"
	"os"

	"golang.org/x/time/rate"
)

// DefaultBufferSize is the buffer placed between a component and its file.
const DefaultBufferSize = 64 << 10

// digestWriter feeds every byte accepted from the component into a running
// digest before buffering it for the payload file.
type digestWriter struct {
	ctx     context.Context
	file    *os.File
	buf     *bufio.Writer
	hash    hash.Hash
	limiter *rate.Limiter
	n       int64
	closed  bool
}

func newDigestWriter(ctx context.Context, f *os.File, h hash.Hash, bufSize int, limiter *rate.Limiter) *digestWriter {
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	return &digestWriter{
		ctx:     ctx,
		file:    f,
		buf:     bufio.NewWriterSize(f, bufSize),
		hash:    h,
		limiter: limiter,
	}
}

// Write implements io.Writer. It returns ctx.Err() once the operation has
// been cancelled, even if the component does not watch its context.
func (w *digestWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, os.ErrClosed
	}

	written := 0
	for len(p) > 0 {
		if err := w.ctx.Err(); err != nil {
			return written, err
		}

		chunk := p
		if w.limiter != nil {
			if b := w.limiter.Burst(); b > 0 && len(chunk) > b {
				chunk = chunk[:b]
			}
			if err := w.limiter.WaitN(w.ctx, len(chunk)); err != nil {
				return written, err
			}
		}

		n, err := w.buf.Write(chunk)
		w.hash.Write(chunk[:n])
		w.n += int64(n)
		written += n
		if err != nil {
			return written, err
		}
		p = p[n:]
	}
	return written, nil
}

// Close flushes, syncs and closes the payload file. The file is closed
// even when flushing fails.
func (w *digestWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	err := w.buf.Flush()
	if err == nil {
		err = w.file.Sync()
	}
	if cerr := w.file.Close(); err == nil {
		err = cerr
	}
	return err
}

// Sum returns the digest of every byte written so far.
func (w *digestWriter) Sum() []byte {
	return w.hash.Sum(nil)
}

// Count returns the number of bytes written so far.
func (w *digestWriter) Count() int64 {
	return w.n
}

// digestReader feeds every byte handed to the component into a running
// digest. Bytes left unread in the file are not digested.
type digestReader struct {
	ctx     context.Context
	file    *os.File
	buf     *bufio.Reader
	hash    hash.Hash
	limiter *rate.Limiter
	n       int64
	closed  bool
}

func newDigestReader(ctx context.Context, f *os.File, h hash.Hash, bufSize int, limiter *rate.Limiter) *digestReader {
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	return &digestReader{
		ctx:     ctx,
		file:    f,
		buf:     bufio.NewReaderSize(f, bufSize),
		hash:    h,
		limiter: limiter,
	}
}

// Read implements io.Reader.
func (r *digestReader) Read(p []byte) (int, error) {
	if r.closed {
		return 0, os.ErrClosed
	}
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	if r.limiter != nil {
		if b := r.limiter.Burst(); b > 0 && len(p) > b {
			p = p[:b]
		}
	}

	n, err := r.buf.Read(p)
	if n > 0 {
		r.hash.Write(p[:n])
		r.n += int64(n)
		if r.limiter != nil {
			if werr := r.limiter.WaitN(r.ctx, n); werr != nil && err == nil {
				err = werr
			}
		}
	}
	return n, err
}

// ReadByte implements io.ByteReader so decoders such as binary.ReadUvarint
// do not need another buffer on top.
func (r *digestReader) ReadByte() (byte, error) {
	var b [1]byte
	n, err := r.Read(b[:])
	if n == 1 {
		return b[0], nil
	}
	if err == nil {
		err = io.ErrNoProgress
	}
	return 0, err
}

// Close closes the payload file.
func (r *digestReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.file.Close()
}

// Sum returns the digest of every byte read so far.
func (r *digestReader) Sum() []byte {
	return r.hash.Sum(nil)
}

// Count returns the number of bytes read so far.
func (r *digestReader) Count() int64 {
	return r.n
}

// newLimiter returns a limiter for bytesPerSec, or nil when unlimited.
func newLimiter(bytesPerSec int64, burst int) *rate.Limiter {
	if bytesPerSec <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = DefaultBufferSize
	}
	if int64(burst) > bytesPerSec {
		burst = int(bytesPerSec)
	}
	return rate.NewLimiter(rate.Limit(bytesPerSec), burst)
}
