package config

import (
	"github.com/yndnr/metackpt/internal/storage/checkpoint"
	"github.com/yndnr/metackpt/internal/storage/kv"
	"github.com/yndnr/metackpt/pkg/workerpool"
)

// Default configuration values.
const (
	DefaultCheckpointDir = "/var/lib/metackpt/checkpoints"
	DefaultKVDir         = "/var/lib/metackpt/kv"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Checkpoint: CheckpointSection{
			Dir:        DefaultCheckpointDir,
			Digest:     checkpoint.DefaultDigest,
			BufferSize: checkpoint.DefaultBufferSize,
		},
		Workers: WorkersSection{
			Queue: workerpool.DefaultQueueSize,
		},
		KV: kv.DefaultConfig(DefaultKVDir),
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
