package config

import (
	"fmt"

	"github.com/yndnr/metackpt/internal/infra/confloader"
	"github.com/yndnr/metackpt/internal/storage/checkpoint"
	"github.com/yndnr/metackpt/internal/telemetry/logger"
	"github.com/yndnr/metackpt/internal/telemetry/metric"
)

// Load builds the configuration from defaults, the optional file at path,
// the environment and overrides (dotted keys, e.g. "checkpoint.dir"), in
// that order, and verifies it.
func Load(path string, overrides map[string]any) (*Config, error) {
	cfg := Default()

	l := confloader.NewLoader(confloader.WithConfigFile(path))
	if len(overrides) > 0 {
		l.Override(overrides)
	}
	if err := l.Load(cfg); err != nil {
		return nil, err
	}
	if err := Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoggerConfig returns the logger configuration.
func (c *Config) LoggerConfig() logger.Config {
	lc := logger.DefaultConfig()
	lc.Level = c.Log.Level
	lc.Format = c.Log.Format
	return lc
}

// DriverOptions returns the checkpoint driver options described by c.
func (c *Config) DriverOptions(log logger.Logger, m *metric.Checkpoint) []checkpoint.Option {
	return []checkpoint.Option{
		checkpoint.WithLogger(log),
		checkpoint.WithMetrics(m),
		checkpoint.WithDigest(c.Checkpoint.Digest),
		checkpoint.WithBufferSize(c.Checkpoint.BufferSize),
		checkpoint.WithBandwidthLimit(c.Checkpoint.BandwidthLimit),
		checkpoint.WithAtomicPayload(c.Checkpoint.AtomicPayload),
	}
}
