package command

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/metackpt/internal/config"
	"github.com/yndnr/metackpt/internal/core/domain"
	"github.com/yndnr/metackpt/internal/infra/fswatch"
	"github.com/yndnr/metackpt/internal/infra/shutdown"
	"github.com/yndnr/metackpt/internal/storage/checkpoint"
	"github.com/yndnr/metackpt/internal/storage/kv"
	"github.com/yndnr/metackpt/internal/telemetry/metric"
)

// opVerify labels verifications in the checkpoint metrics.
const opVerify = "verify"

// WatchCommand verifies checkpoint pairs whenever a sidecar lands in the
// checkpoint directory.
func WatchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Verify checkpoints as they are written and expose metrics",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "metrics-addr",
				Usage:   "Serve /metrics on this address",
				EnvVars: []string{"METACKPT_METRICS_ADDR"},
			},
			&cli.BoolFlag{
				Name:  "with-kv",
				Usage: "Open the key-value store, run its GC loop and export its metrics",
			},
			&cli.DurationFlag{
				Name:  "shutdown-timeout",
				Usage: "Time allowed for cleanup after a signal",
				Value: 10 * time.Second,
			},
		},
		Action: watch,
	}
}

func watch(c *cli.Context) error {
	e := getEnv(c)
	dir := e.cfg.Checkpoint.Dir
	algo, err := checkpoint.LookupAlgorithm(e.cfg.Checkpoint.Digest)
	if err != nil {
		return exitErr(err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return exitErr(err)
	}

	h := shutdown.NewHandler(c.Duration("shutdown-timeout"))
	ctx, stop := h.Context(c.Context)
	defer stop()

	if c.Bool("with-kv") {
		store, err := kv.Open(e.cfg.KV, e.log)
		if err != nil {
			return exitErr(err)
		}
		h.OnShutdown(func(context.Context) error { return store.Close() })
		if err := store.RegisterMetrics(e.reg); err != nil {
			h.Shutdown()
			return exitErr(err)
		}
	}

	w, err := fswatch.New(
		fswatch.WithLogger(e.log.With("component", "watch")),
		fswatch.WithFilter(func(path string) bool { return strings.HasSuffix(path, algo.Suffix) }),
	)
	if err != nil {
		h.Shutdown()
		return exitErr(err)
	}
	h.OnShutdown(func(context.Context) error { return w.Stop() })
	if err := w.Add(dir); err != nil {
		h.Shutdown()
		return exitErr(err)
	}
	w.OnChange(func(path string) {
		name := domain.CheckpointName(strings.TrimSuffix(filepath.Base(path), algo.Suffix))
		verifyOne(e, dir, name, algo.Name)
	})

	if err := watchConfig(e, h); err != nil {
		h.Shutdown()
		return exitErr(err)
	}

	addr := e.cfg.Metrics.Addr
	if c.IsSet("metrics-addr") {
		addr = c.String("metrics-addr")
	}
	if addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metric.Handler(e.reg))
		srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				e.log.Error("metrics server failed", "addr", addr, "error", err)
			}
		}()
		h.OnShutdown(srv.Shutdown)
		e.log.Info("metrics server listening", "addr", addr)
	}

	// Report the state found at startup before waiting for changes.
	if infos, err := checkpoint.List(dir, algo.Name, true); err == nil {
		for _, info := range infos {
			if info.Status != checkpoint.StatusOK {
				e.log.Warn("checkpoint not valid", "checkpoint", string(info.Name), "status", info.Status)
			}
		}
	}

	e.log.Info("watching checkpoint directory", "dir", dir, "digest", algo.Name)
	go w.Run(ctx)
	<-ctx.Done()
	e.log.Info("shutting down")
	return h.Shutdown()
}

// verifyOne checks a pair whose sidecar just changed.
func verifyOne(e *env, dir string, name domain.CheckpointName, digest string) {
	start := time.Now()
	info, err := checkpoint.Verify(dir, name, digest)

	status := metric.StatusSuccess
	var n int64
	if info != nil {
		n = info.Size
	}
	switch {
	case err == nil:
		e.log.Info("checkpoint verified", "checkpoint", string(name), "size", n, "sum", info.Sum)
	case domain.IsCorruption(err):
		status = metric.StatusCorrupted
		e.log.Error("checkpoint corrupted", "checkpoint", string(name), "error", err)
	default:
		// A payload replaced mid-write shows up here and is rechecked
		// when its next sidecar lands.
		status = metric.StatusInternal
		e.log.Debug("checkpoint verify failed", "checkpoint", string(name), "error", err)
	}
	e.metrics.Observe(opVerify, status, n, time.Since(start))
}

// watchConfig reloads the configuration file on change and applies the
// new log level.
func watchConfig(e *env, h *shutdown.Handler) error {
	if e.cfgPath == "" {
		return nil
	}
	path, err := filepath.Abs(e.cfgPath)
	if err != nil {
		return err
	}

	w, err := fswatch.New(
		fswatch.WithLogger(e.log.With("component", "config")),
		fswatch.WithFilter(func(p string) bool { return p == path }),
	)
	if err != nil {
		return err
	}
	h.OnShutdown(func(context.Context) error { return w.Stop() })
	if err := w.Add(filepath.Dir(path)); err != nil {
		return err
	}
	w.OnChange(func(string) {
		cfg, err := config.Load(path, nil)
		if err != nil {
			e.log.Warn("config reload failed", "path", path, "error", err)
			return
		}
		if cfg.Log.Level != e.log.Level() {
			e.log.SetLevel(cfg.Log.Level)
			e.log.Info("log level changed", "level", cfg.Log.Level)
		}
	})
	go w.Run(context.Background())
	return nil
}
