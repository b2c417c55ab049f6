package command

import (
	"errors"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/metackpt/internal/storage/kv"
)

// KVCommand returns the kv subcommand group operating on the live store.
func KVCommand() *cli.Command {
	return &cli.Command{
		Name:  "kv",
		Usage: "Operate on the BLOCK_STORE key-value store",
		Subcommands: []*cli.Command{
			{
				Name:      "get",
				Usage:     "Print the value of a key",
				ArgsUsage: "KEY",
				Action:    withKV(kvGet),
			},
			{
				Name:      "set",
				Usage:     "Store a value",
				ArgsUsage: "KEY VALUE",
				Action:    withKV(kvSet),
			},
			{
				Name:      "delete",
				Aliases:   []string{"rm"},
				Usage:     "Remove keys",
				ArgsUsage: "KEY...",
				Action:    withKV(kvDelete),
			},
			{
				Name:      "scan",
				Usage:     "List keys with a prefix",
				ArgsUsage: "[PREFIX]",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of entries (0 = all)",
					},
				},
				Action: withKV(kvScan),
			},
			{
				Name:   "stats",
				Usage:  "Show store statistics",
				Action: withKV(kvStats),
			},
			{
				Name:   "gc",
				Usage:  "Run value log garbage collection",
				Action: withKV(kvGC),
			},
		},
	}
}

type kvEntry struct {
	Key   string `json:"key" yaml:"key"`
	Value string `json:"value" yaml:"value"`
}

// withKV opens the store for the duration of one action.
func withKV(fn func(*cli.Context, *env, *kv.Engine) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		e := getEnv(c)
		store, err := kv.Open(e.cfg.KV, e.log)
		if err != nil {
			return exitErr(err)
		}
		defer store.Close()
		return fn(c, e, store)
	}
}

func kvGet(c *cli.Context, e *env, store *kv.Engine) error {
	if c.NArg() != 1 {
		return usageErr(c, "expected KEY")
	}
	value, err := store.Get(c.Context, []byte(c.Args().First()))
	if errors.Is(err, kv.ErrKeyNotFound) {
		return usageErr(c, "key %q not found", c.Args().First())
	}
	if err != nil {
		return exitErr(err)
	}
	return e.render(c, kvEntry{Key: c.Args().First(), Value: string(value)})
}

func kvSet(c *cli.Context, e *env, store *kv.Engine) error {
	if c.NArg() != 2 {
		return usageErr(c, "expected KEY VALUE")
	}
	return exitErr(store.Set(c.Context, []byte(c.Args().First()), []byte(c.Args().Get(1))))
}

func kvDelete(c *cli.Context, e *env, store *kv.Engine) error {
	if c.NArg() == 0 {
		return usageErr(c, "expected at least one KEY")
	}
	for _, key := range c.Args().Slice() {
		if err := store.Delete(c.Context, []byte(key)); err != nil {
			return exitErr(err)
		}
	}
	return nil
}

func kvScan(c *cli.Context, e *env, store *kv.Engine) error {
	limit := c.Int("limit")
	entries := []kvEntry{}
	err := store.Scan(c.Context, []byte(c.Args().First()), func(key, value []byte) bool {
		entries = append(entries, kvEntry{Key: string(key), Value: string(value)})
		return limit <= 0 || len(entries) < limit
	})
	if err != nil {
		return exitErr(err)
	}
	return e.render(c, entries)
}

func kvStats(c *cli.Context, e *env, store *kv.Engine) error {
	stats, err := store.Stats(c.Context)
	if err != nil {
		return exitErr(err)
	}
	return e.render(c, stats)
}

func kvGC(c *cli.Context, e *env, store *kv.Engine) error {
	n, err := store.GC(c.Context)
	if err != nil {
		return exitErr(err)
	}
	return e.render(c, map[string]int{"rewrites": n})
}
