package checkpoint

import (
	"context"

	"github.com/oklog/ulid/v2"

	"github.com/yndnr/metackpt/internal/core/domain"
)

// Op is the kind of checkpoint operation a Task performs.
type Op string

const (
	OpWrite   Op = "write"
	OpRestore Op = "restore"
)

// Task is the handle of a submitted checkpoint operation.
type Task struct {
	id     string
	op     Op
	name   domain.CheckpointName
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

func newTask(parent context.Context, op Op, name domain.CheckpointName) *Task {
	ctx, cancel := context.WithCancel(parent)
	return &Task{
		id:     ulid.Make().String(),
		op:     op,
		name:   name,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// ID returns the unique task ID.
func (t *Task) ID() string { return t.id }

// Op returns the operation kind.
func (t *Task) Op() Op { return t.op }

// Name returns the checkpoint name the task operates on.
func (t *Task) Name() domain.CheckpointName { return t.name }

// Done returns a channel closed when the task has finished.
func (t *Task) Done() <-chan struct{} { return t.done }

// Err returns the task result, or nil while it is still running.
func (t *Task) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// Wait blocks until the task finishes and returns its result. If ctx is
// done first, Wait returns ctx.Err() and the task keeps running.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel asks the task to stop. A task that has not started fails without
// running; a running task fails on its next read or write.
func (t *Task) Cancel() {
	t.cancel()
}

func (t *Task) finish(err error) {
	t.err = err
	t.cancel()
	close(t.done)
}

// WaitAll waits for every task and returns the first error encountered.
func WaitAll(ctx context.Context, tasks ...*Task) error {
	var first error
	for _, t := range tasks {
		if err := t.Wait(ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}
