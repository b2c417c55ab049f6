package command

import (
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/metackpt/internal/core/domain"
	"github.com/yndnr/metackpt/internal/storage"
	"github.com/yndnr/metackpt/internal/storage/catalog"
	"github.com/yndnr/metackpt/internal/storage/checkpoint"
	"github.com/yndnr/metackpt/internal/storage/kv"
)

// SnapshotCommand checkpoints every component into the checkpoint directory.
func SnapshotCommand() *cli.Command {
	return &cli.Command{
		Name:   "snapshot",
		Usage:  "Checkpoint the catalog and the key-value store",
		Action: snapshot,
	}
}

// RestoreCommand restores every component from the checkpoint directory.
func RestoreCommand() *cli.Command {
	return &cli.Command{
		Name:   "restore",
		Usage:  "Replace the key-value store with its checkpoint and validate the catalog",
		Action: restore,
	}
}

// statusAbsent marks a component with no payload on disk.
const statusAbsent = "absent"

type componentResult struct {
	Name   domain.CheckpointName `json:"name" yaml:"name"`
	Status string                `json:"status" yaml:"status"`
	Size   int64                 `json:"size" yaml:"size"`
}

func snapshot(c *cli.Context) error {
	e := getEnv(c)
	start := time.Now()

	// The catalog only lives in its checkpoint, so it is recovered before
	// being written back next to a fresh store backup.
	eng, _, err := openCatalog(c.Context, e)
	if err != nil {
		return exitErr(err)
	}
	store, err := kv.Open(e.cfg.KV, e.log)
	if err != nil {
		return exitErr(err)
	}
	defer store.Close()
	if err := eng.Register(store); err != nil {
		return exitErr(err)
	}

	if err := eng.Checkpoint(c.Context); err != nil {
		return exitErr(err)
	}
	e.log.Debug("snapshot finished", "elapsed", time.Since(start))
	return e.render(c, results(e, eng))
}

func restore(c *cli.Context) error {
	e := getEnv(c)

	eng, err := storage.New(e.driver, e.cfg.Checkpoint.Dir, e.log)
	if err != nil {
		return exitErr(err)
	}
	store, err := kv.Open(e.cfg.KV, e.log)
	if err != nil {
		return exitErr(err)
	}
	defer store.Close()

	for _, comp := range []checkpoint.Checkpointed{catalog.New(), store} {
		if err := eng.Register(comp); err != nil {
			return exitErr(err)
		}
	}
	if err := eng.Recover(c.Context); err != nil {
		return exitErr(err)
	}
	return e.render(c, results(e, eng))
}

func results(e *env, eng *storage.Engine) []componentResult {
	var out []componentResult
	for _, name := range eng.Names() {
		r := componentResult{Name: name, Status: statusAbsent}
		if info, _ := checkpoint.Verify(eng.Dir(), name, e.cfg.Checkpoint.Digest); info != nil {
			r.Status, r.Size = info.Status, info.Size
		}
		out = append(out, r)
	}
	return out
}
