package kv

import (
	"errors"
	"time"

	"github.com/yndnr/metackpt/internal/core/domain"
)

// Common errors
var (
	ErrKeyNotFound = errors.New("kv: key not found")
	ErrClosed      = errors.New("kv: engine closed")
)

// Config configures the Badger engine.
type Config struct {
	// Dir is the storage directory. Ignored when InMemory is set.
	Dir string `koanf:"dir"`

	// InMemory keeps everything in memory. Used by tests and dry runs.
	InMemory bool `koanf:"in_memory"`

	// Name is the checkpoint name. Default: BLOCK_STORE
	Name domain.CheckpointName `koanf:"name"`

	// GCInterval is the interval between automatic value log GC runs.
	// Zero disables the loop. Default: 10m
	GCInterval time.Duration `koanf:"gc_interval"`

	// GCThreshold is the discard ratio passed to RunValueLogGC.
	// Default: 0.5
	GCThreshold float64 `koanf:"gc_threshold"`

	// CacheSize is the block cache size in bytes. Default: 64MB
	CacheSize int64 `koanf:"cache_size"`

	// ValueLogFileSize is the max value log file size in bytes. Default: 1GB
	ValueLogFileSize int64 `koanf:"value_log_file_size"`

	NumMemtables            int `koanf:"num_memtables"`
	NumLevelZeroTables      int `koanf:"num_level_zero_tables"`
	NumLevelZeroTablesStall int `koanf:"num_level_zero_tables_stall"`

	// SyncWrites fsyncs after each write. Default: false
	SyncWrites bool `koanf:"sync_writes"`
}

// DefaultConfig returns the default configuration for dir.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:                     dir,
		Name:                    domain.CheckpointBlockStore,
		GCInterval:              10 * time.Minute,
		GCThreshold:             0.5,
		CacheSize:               64 << 20,
		ValueLogFileSize:        1 << 30,
		NumMemtables:            2,
		NumLevelZeroTables:      5,
		NumLevelZeroTablesStall: 10,
	}
}

// Stats contains storage engine statistics.
type Stats struct {
	Keys         uint64 `json:"keys" yaml:"keys"`
	TotalSize    uint64 `json:"total_size" yaml:"total_size"`
	LSMSize      uint64 `json:"lsm_size" yaml:"lsm_size"`
	ValueLogSize uint64 `json:"value_log_size" yaml:"value_log_size"`
	LastGCTime   int64  `json:"last_gc_time" yaml:"last_gc_time"` // Unix milliseconds
	GCRewrites   uint64 `json:"gc_rewrites" yaml:"gc_rewrites"`   // value log files rewritten
}
