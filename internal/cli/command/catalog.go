package command

import (
	"context"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/metackpt/internal/storage"
	"github.com/yndnr/metackpt/internal/storage/catalog"
)

// CatalogCommand returns the catalog subcommand group. Every change is
// recovered from and checkpointed back to the checkpoint directory.
func CatalogCommand() *cli.Command {
	return &cli.Command{
		Name:  "catalog",
		Usage: "Read and update the CATALOG counters",
		Subcommands: []*cli.Command{
			{
				Name:      "get",
				Usage:     "Show counters (all when no key is given)",
				ArgsUsage: "[KEY...]",
				Action:    catalogGet,
			},
			{
				Name:      "put",
				Usage:     "Set a counter",
				ArgsUsage: "KEY VALUE",
				Action:    catalogPut,
			},
			{
				Name:      "add",
				Usage:     "Add a delta to a counter",
				ArgsUsage: "KEY DELTA",
				Action:    catalogAdd,
			},
			{
				Name:      "delete",
				Aliases:   []string{"rm"},
				Usage:     "Remove counters",
				ArgsUsage: "KEY...",
				Action:    catalogDelete,
			},
		},
	}
}

// openCatalog recovers the catalog from the checkpoint directory.
func openCatalog(ctx context.Context, e *env) (*storage.Engine, *catalog.Catalog, error) {
	eng, err := storage.New(e.driver, e.cfg.Checkpoint.Dir, e.log)
	if err != nil {
		return nil, nil, err
	}
	cat := catalog.New()
	if err := eng.Register(cat); err != nil {
		return nil, nil, err
	}
	if err := eng.Recover(ctx); err != nil {
		return nil, nil, err
	}
	return eng, cat, nil
}

func catalogGet(c *cli.Context) error {
	e := getEnv(c)
	_, cat, err := openCatalog(c.Context, e)
	if err != nil {
		return exitErr(err)
	}

	snap := cat.Snapshot()
	if c.NArg() > 0 {
		picked := make(map[string]int64, c.NArg())
		for _, key := range c.Args().Slice() {
			v, ok := snap[key]
			if !ok {
				return usageErr(c, "key %q not found", key)
			}
			picked[key] = v
		}
		snap = picked
	}
	return e.render(c, snap)
}

func catalogPut(c *cli.Context) error {
	if c.NArg() != 2 {
		return usageErr(c, "expected KEY VALUE")
	}
	value, err := strconv.ParseInt(c.Args().Get(1), 10, 64)
	if err != nil {
		return usageErr(c, "invalid value: %v", err)
	}
	return updateCatalog(c, func(cat *catalog.Catalog) error {
		return cat.Put(c.Args().First(), value)
	})
}

func catalogAdd(c *cli.Context) error {
	if c.NArg() != 2 {
		return usageErr(c, "expected KEY DELTA")
	}
	delta, err := strconv.ParseInt(c.Args().Get(1), 10, 64)
	if err != nil {
		return usageErr(c, "invalid delta: %v", err)
	}
	return updateCatalog(c, func(cat *catalog.Catalog) error {
		_, err := cat.Add(c.Args().First(), delta)
		return err
	})
}

func catalogDelete(c *cli.Context) error {
	if c.NArg() == 0 {
		return usageErr(c, "expected at least one KEY")
	}
	return updateCatalog(c, func(cat *catalog.Catalog) error {
		for _, key := range c.Args().Slice() {
			cat.Delete(key)
		}
		return nil
	})
}

// updateCatalog applies fn to the recovered catalog and checkpoints it.
func updateCatalog(c *cli.Context, fn func(*catalog.Catalog) error) error {
	e := getEnv(c)
	eng, cat, err := openCatalog(c.Context, e)
	if err != nil {
		return exitErr(err)
	}
	if err := fn(cat); err != nil {
		return exitErr(err)
	}
	if err := eng.Checkpoint(c.Context); err != nil {
		return exitErr(err)
	}
	return e.render(c, cat.Snapshot())
}
