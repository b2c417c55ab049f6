package config

import "github.com/yndnr/metackpt/internal/storage/kv"

// Config is the root configuration for metackpt.
type Config struct {
	Checkpoint CheckpointSection `koanf:"checkpoint"`
	Workers    WorkersSection    `koanf:"workers"`
	KV         kv.Config         `koanf:"kv"`
	Log        LogSection        `koanf:"log"`
	Metrics    MetricsSection    `koanf:"metrics"`
}

// CheckpointSection configures the checkpoint driver.
type CheckpointSection struct {
	// Dir holds checkpoint payloads and their digest sidecars.
	Dir string `koanf:"dir"`

	// Digest is the sidecar digest algorithm (md5, sha256, murmur3, blake2b).
	Digest string `koanf:"digest"`

	// AtomicPayload writes payloads through a temp file and rename.
	AtomicPayload bool `koanf:"atomic_payload"`

	// BandwidthLimit caps each operation in bytes per second. 0 = unlimited.
	BandwidthLimit int64 `koanf:"bandwidth_limit"`

	// BufferSize is the buffer between a component and its file.
	BufferSize int `koanf:"buffer_size"`
}

// WorkersSection configures the worker pool that runs checkpoint tasks.
type WorkersSection struct {
	// Size is the number of workers. 0 = GOMAXPROCS.
	Size int `koanf:"size"`

	// Queue is the number of tasks that may wait for a worker.
	Queue int `koanf:"queue"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// MetricsSection configures the Prometheus endpoint.
type MetricsSection struct {
	// Addr is the listen address of /metrics. Empty disables it.
	Addr string `koanf:"addr"`
}
