package checkpoint

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/yndnr/metackpt/internal/core/domain"
	"github.com/yndnr/metackpt/internal/telemetry/logger"
	"github.com/yndnr/metackpt/internal/telemetry/metric"
	"github.com/yndnr/metackpt/pkg/workerpool"
)

// Option configures a Driver.
type Option func(*Driver)

// WithLogger sets the logger used for task start/finish records.
func WithLogger(l logger.Logger) Option {
	return func(d *Driver) {
		if l != nil {
			d.log = l
		}
	}
}

// WithMetrics sets the metrics sink. A nil value disables metrics.
func WithMetrics(m *metric.Checkpoint) Option {
	return func(d *Driver) {
		d.metrics = m
	}
}

// WithDigest selects the digest algorithm by name. The name is resolved
// when an operation runs, so an unknown name fails each task.
func WithDigest(name string) Option {
	return func(d *Driver) {
		d.digest = name
	}
}

// WithBufferSize sets the buffer size between entities and their files.
func WithBufferSize(n int) Option {
	return func(d *Driver) {
		d.bufSize = n
	}
}

// WithBandwidthLimit throttles each operation to bytesPerSec.
// Zero or negative means unlimited.
func WithBandwidthLimit(bytesPerSec int64) Option {
	return func(d *Driver) {
		d.bandwidth = bytesPerSec
	}
}

// WithAtomicPayload makes Write stage the payload in a temp file and rename
// it into place only after it was closed successfully.
func WithAtomicPayload(on bool) Option {
	return func(d *Driver) {
		d.atomic = on
	}
}

// Driver runs checkpoint writes and restores as tasks on a worker pool.
// A Driver holds no per-entity state and may be shared.
type Driver struct {
	pool      *workerpool.Pool
	log       logger.Logger
	metrics   *metric.Checkpoint
	digest    string
	bufSize   int
	bandwidth int64
	atomic    bool
}

// NewDriver creates a driver submitting to pool. The pool is owned by the
// caller and must outlive every task.
func NewDriver(pool *workerpool.Pool, opts ...Option) *Driver {
	d := &Driver{
		pool:    pool,
		log:     logger.Discard(),
		digest:  DefaultDigest,
		bufSize: DefaultBufferSize,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Digest returns the configured digest algorithm name.
func (d *Driver) Digest() string {
	return d.digest
}

// Write checkpoints e into dir. The returned task completes once the
// payload and its digest sidecar are on disk, or with an internal error.
func (d *Driver) Write(ctx context.Context, e Checkpointed, dir string) *Task {
	return d.submit(ctx, OpWrite, e, dir)
}

// Restore loads e from the checkpoint in dir. The task fails with a
// corruption error when the payload does not match its sidecar.
func (d *Driver) Restore(ctx context.Context, e Checkpointed, dir string) *Task {
	return d.submit(ctx, OpRestore, e, dir)
}

func (d *Driver) submit(ctx context.Context, op Op, e Checkpointed, dir string) *Task {
	var name domain.CheckpointName
	if e != nil {
		name = e.CheckpointName()
	}
	t := newTask(ctx, op, name)
	log := d.log.With("task_id", t.id, "op", string(op), "checkpoint", string(name))

	run := func() {
		start := time.Now()
		log.Debug("checkpoint task started", "dir", dir)

		var (
			n   int64
			err error
		)
		switch {
		case e == nil:
			err = errors.New("nil entity")
		default:
			err = t.ctx.Err()
		}
		if err == nil {
			taskCtx := logger.WithTaskID(logger.WithLogger(t.ctx, d.log), t.id)
			if op == OpWrite {
				n, err = d.write(taskCtx, e, dir)
			} else {
				n, err = d.restore(taskCtx, e, dir)
			}
		}

		err = classify(op, name, err)
		d.observe(op, err, n, start)
		if err != nil {
			if domain.IsCorruption(err) {
				log.Error("checkpoint task failed", "error", err, "elapsed", time.Since(start))
			} else {
				log.Debug("checkpoint task failed", "error", err, "elapsed", time.Since(start))
			}
		} else {
			log.Debug("checkpoint task finished", "bytes", n, "elapsed", time.Since(start))
		}
		t.finish(err)
	}

	if err := d.pool.Submit(t.ctx, run); err != nil {
		if errors.Is(err, workerpool.ErrClosed) {
			err = domain.ErrPoolClosed.WithCause(err)
		}
		err = classify(op, name, err)
		d.observe(op, err, 0, time.Now())
		log.Debug("checkpoint task rejected", "error", err)
		t.finish(err)
	}
	return t
}

func (d *Driver) write(ctx context.Context, e Checkpointed, dir string) (n int64, err error) {
	name := e.CheckpointName()
	if err := ValidateName(name); err != nil {
		return 0, err
	}
	algo, err := LookupAlgorithm(d.digest)
	if err != nil {
		return 0, err
	}

	path := Path(dir, name)
	sidecar := DigestPath(dir, name, algo)

	// Without AtomicPayload the payload is rewritten in place, so the old
	// sidecar must go first. With it the previous pair stays valid until
	// the new payload is renamed over it.
	target := path
	if d.atomic {
		target = tempPath(path)
	} else if err := removeIfExists(sidecar); err != nil {
		return 0, fmt.Errorf("remove stale sidecar: %w", err)
	}
	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, fmt.Errorf("create checkpoint file: %w", err)
	}

	w := newDigestWriter(ctx, f, algo.New(), d.bufSize, newLimiter(d.bandwidth, d.bufSize))
	defer func() {
		w.Close()
		if err != nil && d.atomic {
			os.Remove(target)
		}
	}()

	if err = protect(func() error { return e.WriteCheckpoint(ctx, w) }); err != nil {
		return w.Count(), fmt.Errorf("serialize: %w", err)
	}
	// The entity may have swallowed a cancelled write.
	if err = ctx.Err(); err != nil {
		return w.Count(), err
	}
	if err = w.Close(); err != nil {
		return w.Count(), fmt.Errorf("close checkpoint file: %w", err)
	}
	if d.atomic {
		if err = removeIfExists(sidecar); err != nil {
			return w.Count(), fmt.Errorf("remove stale sidecar: %w", err)
		}
		if err = os.Rename(target, path); err != nil {
			return w.Count(), fmt.Errorf("rename checkpoint file: %w", err)
		}
	}
	if err = writeSidecar(sidecar, w.Sum()); err != nil {
		return w.Count(), err
	}
	return w.Count(), nil
}

func (d *Driver) restore(ctx context.Context, e Checkpointed, dir string) (n int64, err error) {
	name := e.CheckpointName()
	if err := ValidateName(name); err != nil {
		return 0, err
	}
	algo, err := LookupAlgorithm(d.digest)
	if err != nil {
		return 0, err
	}

	if stager, ok := e.(Stager); ok {
		defer func() {
			if err != nil {
				stager.AbortRestore()
				return
			}
			err = protect(func() error {
				stager.CommitRestore()
				return nil
			})
		}()
	}

	f, err := os.Open(Path(dir, name))
	if err != nil {
		return 0, fmt.Errorf("open checkpoint file: %w", err)
	}
	r := newDigestReader(ctx, f, algo.New(), d.bufSize, newLimiter(d.bandwidth, d.bufSize))
	defer r.Close()

	if err = protect(func() error { return e.RestoreCheckpoint(ctx, r) }); err != nil {
		return r.Count(), fmt.Errorf("deserialize: %w", err)
	}
	if err = ctx.Err(); err != nil {
		return r.Count(), err
	}
	if err = r.Close(); err != nil {
		return r.Count(), fmt.Errorf("close checkpoint file: %w", err)
	}

	want, err := os.ReadFile(DigestPath(dir, name, algo))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return r.Count(), corrupted(name, "digest sidecar missing")
		}
		return r.Count(), fmt.Errorf("read sidecar: %w", err)
	}
	if !bytes.Equal(r.Sum(), want) {
		return r.Count(), corrupted(name, "digest mismatch")
	}
	return r.Count(), nil
}

func (d *Driver) observe(op Op, err error, n int64, start time.Time) {
	d.metrics.Observe(string(op), status(err), n, time.Since(start))
}

func corrupted(name domain.CheckpointName, reason string) error {
	return domain.ErrCheckpointCorrupted.WithDetails(fmt.Sprintf("%s: %s", name, reason))
}

// classify maps a task failure onto the checkpoint error taxonomy.
// Corruption errors pass through; everything else becomes internal.
func classify(op Op, name domain.CheckpointName, err error) error {
	if err == nil || domain.IsCorruption(err) {
		return err
	}
	details := fmt.Sprintf("failed to restore checkpoint %s", name)
	if op == OpWrite {
		details = fmt.Sprintf("failed to take checkpoint %s", name)
	}
	return domain.ErrCheckpointInternal.WithDetails(details).WithCause(err)
}

func status(err error) string {
	switch {
	case err == nil:
		return metric.StatusSuccess
	case domain.IsCorruption(err):
		return metric.StatusCorrupted
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return metric.StatusCanceled
	default:
		return metric.StatusInternal
	}
}

// protect turns a panic in entity code into an error so the worker survives.
func protect(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}
