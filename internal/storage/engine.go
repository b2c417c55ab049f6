package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/yndnr/metackpt/internal/core/domain"
	"github.com/yndnr/metackpt/internal/storage/checkpoint"
	"github.com/yndnr/metackpt/internal/telemetry/logger"
)

// ErrDuplicateComponent is returned when two components share a name.
var ErrDuplicateComponent = errors.New("storage: duplicate checkpoint name")

// Engine writes and restores a set of components as one checkpoint set.
type Engine struct {
	dir    string
	driver *checkpoint.Driver
	log    logger.Logger

	mu         sync.Mutex
	components map[domain.CheckpointName]checkpoint.Checkpointed

	// ckptMu serializes Checkpoint so a name never has two writers.
	ckptMu sync.Mutex
}

// New creates an engine that keeps its checkpoint set in dir, creating the
// directory if needed.
func New(driver *checkpoint.Driver, dir string, log logger.Logger) (*Engine, error) {
	if dir == "" {
		return nil, fmt.Errorf("storage: dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create dir: %w", err)
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Engine{
		dir:        dir,
		driver:     driver,
		log:        log,
		components: make(map[domain.CheckpointName]checkpoint.Checkpointed),
	}, nil
}

// Dir returns the checkpoint directory.
func (e *Engine) Dir() string {
	return e.dir
}

// Register adds c to the checkpoint set.
func (e *Engine) Register(c checkpoint.Checkpointed) error {
	name := c.CheckpointName()
	if err := checkpoint.ValidateName(name); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.components[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateComponent, name)
	}
	e.components[name] = c
	return nil
}

// Names returns the registered names in sorted order.
func (e *Engine) Names() []domain.CheckpointName {
	e.mu.Lock()
	defer e.mu.Unlock()
	names := make([]domain.CheckpointName, 0, len(e.components))
	for name := range e.components {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

func (e *Engine) snapshot() []checkpoint.Checkpointed {
	names := e.Names()
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]checkpoint.Checkpointed, 0, len(names))
	for _, name := range names {
		out = append(out, e.components[name])
	}
	return out
}

// Checkpoint writes every registered component concurrently and waits for
// all of them. The returned error joins every failure.
func (e *Engine) Checkpoint(ctx context.Context) error {
	e.ckptMu.Lock()
	defer e.ckptMu.Unlock()

	start := time.Now()
	components := e.snapshot()
	tasks := make([]*checkpoint.Task, 0, len(components))
	for _, c := range components {
		tasks = append(tasks, e.driver.Write(ctx, c, e.dir))
	}

	err := e.wait(ctx, tasks)
	if err != nil {
		e.log.Error("checkpoint failed", "dir", e.dir, "error", err)
		return err
	}
	e.log.Info("checkpoint completed",
		"dir", e.dir,
		"components", len(components),
		"elapsed", time.Since(start))
	return nil
}

// Recover restores every registered component from the checkpoint set.
// A component with neither payload nor sidecar on disk is left as it is,
// which is how a fresh directory starts. Any other failure, including a
// sidecar without its payload, is returned.
func (e *Engine) Recover(ctx context.Context) error {
	start := time.Now()
	digest, err := checkpoint.LookupAlgorithm(e.driver.Digest())
	if err != nil {
		return err
	}

	var tasks []*checkpoint.Task
	skipped := 0
	for _, c := range e.snapshot() {
		name := c.CheckpointName()
		if !exists(checkpoint.Path(e.dir, name)) && !exists(checkpoint.DigestPath(e.dir, name, digest)) {
			e.log.Info("no checkpoint found, starting empty", "checkpoint", string(name))
			skipped++
			continue
		}
		tasks = append(tasks, e.driver.Restore(ctx, c, e.dir))
	}

	if err := e.wait(ctx, tasks); err != nil {
		e.log.Error("recovery failed", "dir", e.dir, "error", err)
		return err
	}
	e.log.Info("recovery completed",
		"dir", e.dir,
		"restored", len(tasks),
		"skipped", skipped,
		"elapsed", time.Since(start))
	return nil
}

// wait waits for every task. If ctx ends first the remaining tasks are
// cancelled and still awaited, so no worker outlives the call.
func (e *Engine) wait(ctx context.Context, tasks []*checkpoint.Task) error {
	var errs []error
	for _, t := range tasks {
		if err := t.Wait(ctx); err != nil {
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				for _, rest := range tasks {
					rest.Cancel()
				}
				err = t.Wait(context.Background())
			}
			if err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, fs.ErrNotExist)
}
