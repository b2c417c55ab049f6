package kv

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/yndnr/metackpt/internal/core/domain"
	"github.com/yndnr/metackpt/internal/telemetry/logger"
	"github.com/yndnr/metackpt/internal/telemetry/metric"
)

// loadPendingWrites bounds the batches in flight while loading a backup.
const loadPendingWrites = 256

// Engine is a Badger-backed key/value store implementing
// checkpoint.Checkpointed.
type Engine struct {
	db  *badger.DB
	cfg Config
	log logger.Logger

	// mu is held exclusively while a restore replaces the contents.
	mu     sync.RWMutex
	closed atomic.Bool

	lastGCTime atomic.Int64 // Unix milliseconds
	gcRewrites atomic.Uint64

	stopCh chan struct{}
	doneCh chan struct{}
}

// Open opens or creates the store described by cfg.
func Open(cfg Config, log logger.Logger) (*Engine, error) {
	if cfg.Dir == "" && !cfg.InMemory {
		return nil, fmt.Errorf("badger: dir is required")
	}
	if log == nil {
		log = logger.Discard()
	}
	if cfg.Name == "" {
		cfg.Name = domain.CheckpointBlockStore
	}
	if err := cfg.Name.Validate(); err != nil {
		return nil, err
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(cfg.Dir)
	}
	opts.Logger = &badgerLogger{log: log.With("component", "badger")}
	if cfg.CacheSize > 0 {
		opts.BlockCacheSize = cfg.CacheSize
	}
	if cfg.ValueLogFileSize > 0 {
		opts.ValueLogFileSize = cfg.ValueLogFileSize
	}
	if cfg.NumMemtables > 0 {
		opts.NumMemtables = cfg.NumMemtables
	}
	if cfg.NumLevelZeroTables > 0 {
		opts.NumLevelZeroTables = cfg.NumLevelZeroTables
	}
	if cfg.NumLevelZeroTablesStall > 0 {
		opts.NumLevelZeroTablesStall = cfg.NumLevelZeroTablesStall
	}
	opts.SyncWrites = cfg.SyncWrites

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger: open db: %w", err)
	}

	e := &Engine{
		db:     db,
		cfg:    cfg,
		log:    log,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	go e.gcLoop()

	log.Info("badger engine started",
		"dir", cfg.Dir,
		"in_memory", cfg.InMemory,
		"cache_size", opts.BlockCacheSize,
		"gc_interval", cfg.GCInterval)
	return e, nil
}

// CheckpointName implements checkpoint.Checkpointed.
func (e *Engine) CheckpointName() domain.CheckpointName {
	return e.cfg.Name
}

// Get retrieves a value by key.
func (e *Engine) Get(_ context.Context, key []byte) ([]byte, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed.Load() {
		return nil, ErrClosed
	}

	var value []byte
	err := e.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrKeyNotFound
			}
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Set stores a key-value pair.
func (e *Engine) Set(_ context.Context, key, value []byte) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed.Load() {
		return ErrClosed
	}
	return e.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

// Delete removes a key.
func (e *Engine) Delete(_ context.Context, key []byte) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed.Load() {
		return ErrClosed
	}
	return e.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

// Scan calls fn for every key with the given prefix, in key order, until
// fn returns false.
func (e *Engine) Scan(ctx context.Context, prefix []byte, fn func(key, value []byte) bool) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed.Load() {
		return ErrClosed
	}

	return e.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if !fn(item.KeyCopy(nil), value) {
				break
			}
		}
		return nil
	})
}

// WriteCheckpoint implements checkpoint.Checkpointed by streaming a full
// Badger backup to w.
func (e *Engine) WriteCheckpoint(ctx context.Context, w io.Writer) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed.Load() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	version, err := e.db.Backup(w, 0)
	if err != nil {
		return fmt.Errorf("backup: %w", err)
	}
	e.log.Debug("badger backup written", "version", version)
	return nil
}

// RestoreCheckpoint implements checkpoint.Checkpointed. Every existing key
// is dropped before the backup in r is loaded.
func (e *Engine) RestoreCheckpoint(ctx context.Context, r io.Reader) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed.Load() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := e.db.DropAll(); err != nil {
		return fmt.Errorf("drop all: %w", err)
	}
	if err := e.db.Load(r, loadPendingWrites); err != nil {
		return fmt.Errorf("load backup: %w", err)
	}
	e.log.Info("badger backup restored")
	return nil
}

// GC runs value log garbage collection until nothing is left to rewrite
// and returns the number of rewritten value log files.
func (e *Engine) GC(ctx context.Context) (int, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed.Load() {
		return 0, ErrClosed
	}
	if e.cfg.InMemory {
		return 0, nil
	}

	start := time.Now()
	rewrites := 0
	for {
		if err := ctx.Err(); err != nil {
			return rewrites, err
		}
		err := e.db.RunValueLogGC(e.cfg.GCThreshold)
		if err != nil {
			if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrRejected) {
				break
			}
			return rewrites, fmt.Errorf("gc: %w", err)
		}
		rewrites++
	}

	e.lastGCTime.Store(time.Now().UnixMilli())
	e.gcRewrites.Add(uint64(rewrites))
	e.log.Debug("gc completed", "rewrites", rewrites, "elapsed", time.Since(start))
	return rewrites, nil
}

// Stats returns storage statistics. Keys are counted by iteration.
func (e *Engine) Stats(ctx context.Context) (*Stats, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed.Load() {
		return nil, ErrClosed
	}

	var keys uint64
	err := e.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if keys%1024 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			keys++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	lsm, vlog := e.db.Size()
	return &Stats{
		Keys:         keys,
		TotalSize:    uint64(lsm + vlog),
		LSMSize:      uint64(lsm),
		ValueLogSize: uint64(vlog),
		LastGCTime:   e.lastGCTime.Load(),
		GCRewrites:   e.gcRewrites.Load(),
	}, nil
}

// Close stops the GC loop and closes the database.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(e.stopCh)
	<-e.doneCh

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.db.Close(); err != nil {
		return fmt.Errorf("close db: %w", err)
	}
	e.log.Info("badger engine closed")
	return nil
}

// RegisterMetrics registers size and GC gauges with reg.
func (e *Engine) RegisterMetrics(reg prometheus.Registerer) error {
	size := func(pick func(lsm, vlog int64) int64) func() float64 {
		return func() float64 {
			if e.closed.Load() {
				return 0
			}
			return float64(pick(e.db.Size()))
		}
	}

	collectors := []prometheus.Collector{
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metric.Namespace,
			Subsystem: "kv",
			Name:      "lsm_size_bytes",
			Help:      "Badger LSM tree size in bytes",
		}, size(func(lsm, _ int64) int64 { return lsm })),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metric.Namespace,
			Subsystem: "kv",
			Name:      "value_log_size_bytes",
			Help:      "Badger value log size in bytes",
		}, size(func(_, vlog int64) int64 { return vlog })),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metric.Namespace,
			Subsystem: "kv",
			Name:      "last_gc_timestamp_seconds",
			Help:      "Unix timestamp of the last value log GC run",
		}, func() float64 { return float64(e.lastGCTime.Load()) / 1000 }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "kv",
			Name:      "gc_rewrites_total",
			Help:      "Value log files rewritten by GC",
		}, func() float64 { return float64(e.gcRewrites.Load()) }),
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) gcLoop() {
	defer close(e.doneCh)
	if e.cfg.GCInterval <= 0 {
		<-e.stopCh
		return
	}

	ticker := time.NewTicker(e.cfg.GCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			if _, err := e.GC(ctx); err != nil && !errors.Is(err, ErrClosed) {
				e.log.Error("auto gc failed", "error", err)
			}
			cancel()
		case <-e.stopCh:
			return
		}
	}
}

// badgerLogger adapts Logger to Badger's Logger interface.
type badgerLogger struct {
	log logger.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.log.Error(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.log.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.log.Info(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.log.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}
