package confloader

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

type testConfig struct {
	Checkpoint struct {
		Dir        string `koanf:"dir"`
		Digest     string `koanf:"digest"`
		BufferSize int    `koanf:"buffer_size"`
	} `koanf:"checkpoint"`
	KV struct {
		GCInterval time.Duration `koanf:"gc_interval"`
		InMemory   bool          `koanf:"in_memory"`
	} `koanf:"kv"`
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "metackpt.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	return path
}

func TestNewLoader_WithOptions(t *testing.T) {
	l := NewLoader()
	if l.envPrefix != DefaultEnvPrefix {
		t.Errorf("envPrefix = %q, want %q", l.envPrefix, DefaultEnvPrefix)
	}

	l = NewLoader(WithEnvPrefix("TEST_"), WithConfigFile("/etc/metackpt.yaml"))
	if l.envPrefix != "TEST_" || l.filePath != "/etc/metackpt.yaml" {
		t.Errorf("options not applied: prefix=%q file=%q", l.envPrefix, l.filePath)
	}
}

func TestLoader_LoadFile(t *testing.T) {
	path := writeFile(t, `
checkpoint:
  dir: /data/ckpt
  digest: sha256
kv:
  gc_interval: 5m
`)
	l := NewLoader()
	if err := l.LoadFile(path); err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if got := l.String("checkpoint.digest"); got != "sha256" {
		t.Errorf("checkpoint.digest = %q", got)
	}
	if err := l.LoadFile(""); err != nil {
		t.Errorf("LoadFile(\"\") error = %v", err)
	}
	if err := l.LoadFile("/nonexistent/metackpt.yaml"); err == nil {
		t.Error("LoadFile() on missing file should fail")
	}
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"CHECKPOINT_BUFFER_SIZE": "checkpoint.buffer_size",
		"KV_GC_INTERVAL":         "kv.gc_interval",
		"LOG_LEVEL":              "log.level",
		"DEBUG":                  "debug",
	}
	for in, want := range tests {
		if got := envKey(in); got != want {
			t.Errorf("envKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLoader_LoadEnv(t *testing.T) {
	t.Setenv("METACKPT_CHECKPOINT_BUFFER_SIZE", "4096")
	t.Setenv("MYAPP_CHECKPOINT_DIR", "/other")

	l := NewLoader()
	if err := l.LoadEnv(); err != nil {
		t.Fatalf("LoadEnv() error = %v", err)
	}
	if got := l.String("checkpoint.buffer_size"); got != "4096" {
		t.Errorf("checkpoint.buffer_size = %q, want 4096", got)
	}
	if l.Get("checkpoint.dir") != nil {
		t.Error("variable with another prefix was loaded")
	}

	l = NewLoader(WithEnvPrefix("MYAPP_"))
	if err := l.LoadEnv(); err != nil {
		t.Fatalf("LoadEnv() error = %v", err)
	}
	if got := l.String("checkpoint.dir"); got != "/other" {
		t.Errorf("checkpoint.dir = %q, want /other", got)
	}
}

func TestLoader_Load_Priority(t *testing.T) {
	path := writeFile(t, `
checkpoint:
  dir: /from-file
  digest: sha256
  buffer_size: 1024
kv:
  gc_interval: 5m
`)
	t.Setenv("METACKPT_CHECKPOINT_DIR", "/from-env")
	t.Setenv("METACKPT_CHECKPOINT_DIGEST", "murmur3")

	var cfg testConfig
	cfg.Checkpoint.Digest = "md5"
	cfg.KV.InMemory = true

	l := NewLoader(WithConfigFile(path))
	l.Override(map[string]any{"checkpoint.digest": "blake2b"})
	if err := l.Load(&cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Checkpoint.Dir != "/from-env" {
		t.Errorf("Dir = %q, env should override file", cfg.Checkpoint.Dir)
	}
	if cfg.Checkpoint.Digest != "blake2b" {
		t.Errorf("Digest = %q, override should win", cfg.Checkpoint.Digest)
	}
	if cfg.Checkpoint.BufferSize != 1024 {
		t.Errorf("BufferSize = %d, want 1024 from file", cfg.Checkpoint.BufferSize)
	}
	if cfg.KV.GCInterval != 5*time.Minute {
		t.Errorf("GCInterval = %v, want 5m", cfg.KV.GCInterval)
	}
	if !cfg.KV.InMemory {
		t.Error("unset field lost its default")
	}
}

func TestLoader_Load_MissingFile(t *testing.T) {
	var cfg testConfig
	if err := NewLoader(WithConfigFile("/nonexistent/metackpt.yaml")).Load(&cfg); err == nil {
		t.Fatal("Load() with missing file should fail")
	}
}

func TestLoader_LoadMap(t *testing.T) {
	l := NewLoader()
	if err := l.LoadMap(map[string]any{"checkpoint.dir": "/x", "debug": true}); err != nil {
		t.Fatalf("LoadMap() error = %v", err)
	}

	var cfg testConfig
	if err := l.Load(&cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Checkpoint.Dir != "/x" {
		t.Errorf("Dir = %q, want /x", cfg.Checkpoint.Dir)
	}
	if len(l.Keys()) != 2 {
		t.Errorf("Keys() = %v", l.Keys())
	}
}

func TestMapProvider_ReadBytes(t *testing.T) {
	if _, err := mapProvider(nil).ReadBytes(); err != ErrReadBytesNotSupported {
		t.Errorf("ReadBytes() error = %v", err)
	}
}
