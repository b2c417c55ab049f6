package command

import (
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"

	"github.com/yndnr/metackpt/internal/cli/output"
	"github.com/yndnr/metackpt/internal/config"
	"github.com/yndnr/metackpt/internal/core/domain"
	"github.com/yndnr/metackpt/internal/infra/buildinfo"
	"github.com/yndnr/metackpt/internal/storage/checkpoint"
	"github.com/yndnr/metackpt/internal/telemetry/logger"
	"github.com/yndnr/metackpt/internal/telemetry/metric"
	"github.com/yndnr/metackpt/pkg/workerpool"
)

// Exit codes.
const (
	ExitError     = 1
	ExitCorrupted = 2
)

const envKey = "env"

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "metackpt",
		Usage:   "Checkpoint and restore metadata components with digest sidecars",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			ListCommand(),
			VerifyCommand(),
			CatalogCommand(),
			KVCommand(),
			SnapshotCommand(),
			RestoreCommand(),
			WatchCommand(),
			VersionCommand(),
		},
		Before: setup,
		After:  teardown,
	}
}

// flagKeys maps global flags onto configuration keys.
var flagKeys = map[string]string{
	"dir":             "checkpoint.dir",
	"digest":          "checkpoint.digest",
	"atomic":          "checkpoint.atomic_payload",
	"bandwidth-limit": "checkpoint.bandwidth_limit",
	"workers":         "workers.size",
	"kv-dir":          "kv.dir",
	"log-level":       "log.level",
	"log-format":      "log.format",
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to the YAML configuration file",
			EnvVars: []string{"METACKPT_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "dir",
			Aliases: []string{"d"},
			Usage:   "Checkpoint directory",
		},
		&cli.StringFlag{
			Name:  "digest",
			Usage: "Digest algorithm for sidecars (md5, sha256, murmur3, blake2b)",
		},
		&cli.BoolFlag{
			Name:  "atomic",
			Usage: "Write payloads through a temp file and rename",
		},
		&cli.Int64Flag{
			Name:  "bandwidth-limit",
			Usage: "Per-operation throughput cap in bytes per second (0 = unlimited)",
		},
		&cli.IntFlag{
			Name:  "workers",
			Usage: "Number of checkpoint workers (0 = GOMAXPROCS)",
		},
		&cli.StringFlag{
			Name:  "kv-dir",
			Usage: "Directory of the key-value store",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level: debug, info, warn, error",
		},
		&cli.StringFlag{
			Name:  "log-format",
			Usage: "Log format: json, text",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
			Value:   "table",
		},
		&cli.BoolFlag{
			Name:    "wide",
			Aliases: []string{"w"},
			Usage:   "Show wide output (more columns)",
		},
	}
}

// env is the state shared by the commands of one invocation.
type env struct {
	cfgPath   string
	cfg       *config.Config
	log       logger.Logger
	reg       *prometheus.Registry
	metrics   *metric.Checkpoint
	pool      *workerpool.Pool
	driver    *checkpoint.Driver
	formatter output.Formatter
}

func setup(c *cli.Context) error {
	overrides := make(map[string]any)
	for name, key := range flagKeys {
		if c.IsSet(name) {
			overrides[key] = c.Value(name)
		}
	}

	cfg, err := config.Load(c.String("config"), overrides)
	if err != nil {
		return cli.Exit(err, ExitError)
	}
	format, err := output.ParseFormat(c.String("output"))
	if err != nil {
		return cli.Exit(err, ExitError)
	}

	lc := cfg.LoggerConfig()
	lc.Output = errWriter(c)
	log, err := logger.New(lc)
	if err != nil {
		return cli.Exit(err, ExitError)
	}

	reg := prometheus.NewRegistry()
	m, err := metric.NewCheckpoint(reg)
	if err != nil {
		return err
	}
	pool := workerpool.New(cfg.Workers.Size, cfg.Workers.Queue)

	if c.App.Metadata == nil {
		c.App.Metadata = make(map[string]any)
	}
	c.App.Metadata[envKey] = &env{
		cfgPath:   c.String("config"),
		cfg:       cfg,
		log:       log,
		reg:       reg,
		metrics:   m,
		pool:      pool,
		driver:    checkpoint.NewDriver(pool, cfg.DriverOptions(log, m)...),
		formatter: output.NewFormatter(format, c.Bool("wide")),
	}
	return nil
}

func teardown(c *cli.Context) error {
	if e, ok := c.App.Metadata[envKey].(*env); ok {
		return e.pool.Close()
	}
	return nil
}

func getEnv(c *cli.Context) *env {
	return c.App.Metadata[envKey].(*env)
}

func (e *env) render(c *cli.Context, data any) error {
	return e.formatter.Format(c.App.Writer, data)
}

func errWriter(c *cli.Context) io.Writer {
	if c.App.ErrWriter != nil {
		return c.App.ErrWriter
	}
	return os.Stderr
}

// exitErr maps err onto an exit code. Corruption is reported separately
// so scripts can tell a bad checkpoint from a failed run.
func exitErr(err error) error {
	if err == nil {
		return nil
	}
	if domain.IsCorruption(err) {
		return cli.Exit(err, ExitCorrupted)
	}
	return cli.Exit(err, ExitError)
}

// VersionCommand prints build information.
func VersionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show build information",
		Action: func(c *cli.Context) error {
			return getEnv(c).render(c, buildinfo.Get())
		},
	}
}

func usageErr(c *cli.Context, format string, args ...any) error {
	return cli.Exit(fmt.Sprintf("%s: %s", c.Command.FullName(), fmt.Sprintf(format, args...)), ExitError)
}
