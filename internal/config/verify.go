package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/yndnr/metackpt/internal/storage/checkpoint"
	"github.com/yndnr/metackpt/internal/storage/kv"
)

// Verify validates the configuration.
func Verify(cfg *Config) error {
	if err := verifyCheckpoint(&cfg.Checkpoint); err != nil {
		return err
	}
	if err := verifyWorkers(&cfg.Workers); err != nil {
		return err
	}
	if err := verifyKV(&cfg.KV); err != nil {
		return err
	}
	return verifyLog(&cfg.Log)
}

func verifyCheckpoint(cfg *CheckpointSection) error {
	if cfg.Dir == "" {
		return errors.New("checkpoint.dir is required")
	}
	if _, err := checkpoint.LookupAlgorithm(cfg.Digest); err != nil {
		return fmt.Errorf("checkpoint.digest: %w (have %s)", err, strings.Join(checkpoint.Algorithms(), ", "))
	}
	if cfg.BandwidthLimit < 0 {
		return errors.New("checkpoint.bandwidth_limit must not be negative")
	}
	if cfg.BufferSize < 0 {
		return errors.New("checkpoint.buffer_size must not be negative")
	}
	return nil
}

func verifyWorkers(cfg *WorkersSection) error {
	if cfg.Size < 0 {
		return errors.New("workers.size must not be negative")
	}
	if cfg.Queue < 0 {
		return errors.New("workers.queue must not be negative")
	}
	return nil
}

func verifyKV(cfg *kv.Config) error {
	if cfg.Dir == "" && !cfg.InMemory {
		return errors.New("kv.dir is required unless kv.in_memory is set")
	}
	if cfg.GCThreshold <= 0 || cfg.GCThreshold >= 1 {
		return errors.New("kv.gc_threshold must be between 0 and 1")
	}
	if cfg.GCInterval < 0 {
		return errors.New("kv.gc_interval must not be negative")
	}
	return nil
}

func verifyLog(cfg *LogSection) error {
	switch strings.ToLower(cfg.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", cfg.Level)
	}
	switch strings.ToLower(cfg.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("log.format %q is not one of json, text", cfg.Format)
	}
	return nil
}
