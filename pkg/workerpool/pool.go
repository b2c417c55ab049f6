package workerpool

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ErrClosed is returned by Submit after Close has been called.
var ErrClosed = errors.New("workerpool: closed")

// DefaultQueueSize is the queue length used when none is given.
const DefaultQueueSize = 64

// Pool runs submitted functions on a fixed set of workers.
type Pool struct {
	size  int
	queue chan func()
	group errgroup.Group

	mu     sync.RWMutex
	closed bool
}

// New creates a pool with size workers and a queue of queueSize pending tasks.
// A non-positive size defaults to GOMAXPROCS.
func New(size, queueSize int) *Pool {
	if size <= 0 {
		size = runtime.GOMAXPROCS(0)
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	p := &Pool{
		size:  size,
		queue: make(chan func(), queueSize),
	}
	for i := 0; i < size; i++ {
		p.group.Go(p.work)
	}
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return p.size
}

// Submit queues fn for execution. It blocks while the queue is full and
// returns ctx.Err() if ctx is done first.
func (p *Pool) Submit(ctx context.Context, fn func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrClosed
	}

	select {
	case p.queue <- fn:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting tasks, runs everything already queued and waits for
// the workers to exit. It is safe to call more than once.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	return p.group.Wait()
}

func (p *Pool) work() error {
	for fn := range p.queue {
		fn()
	}
	return nil
}
