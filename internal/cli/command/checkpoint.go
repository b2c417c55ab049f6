package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/metackpt/internal/core/domain"
	"github.com/yndnr/metackpt/internal/storage/checkpoint"
)

// ListCommand lists the checkpoint pairs in the checkpoint directory.
func ListCommand() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "List checkpoints and their sidecar status",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "verify",
				Usage: "Recompute every digest",
			},
		},
		Action: listCheckpoints,
	}
}

// VerifyCommand checks payloads against their sidecars without restoring.
func VerifyCommand() *cli.Command {
	return &cli.Command{
		Name:      "verify",
		Usage:     "Check checkpoint payloads against their digest sidecars",
		ArgsUsage: "[NAME...]",
		Action:    verifyCheckpoints,
	}
}

func listCheckpoints(c *cli.Context) error {
	e := getEnv(c)
	infos, err := checkpoint.List(e.cfg.Checkpoint.Dir, e.cfg.Checkpoint.Digest, c.Bool("verify"))
	if err != nil {
		return exitErr(err)
	}
	if err := e.render(c, infos); err != nil {
		return err
	}
	if c.Bool("verify") {
		return exitErr(firstBad(infos))
	}
	return nil
}

func verifyCheckpoints(c *cli.Context) error {
	e := getEnv(c)
	dir, digest := e.cfg.Checkpoint.Dir, e.cfg.Checkpoint.Digest

	var infos []*checkpoint.Info
	if c.NArg() == 0 {
		all, err := checkpoint.List(dir, digest, true)
		if err != nil {
			return exitErr(err)
		}
		infos = all
	} else {
		for _, name := range c.Args().Slice() {
			info, err := checkpoint.Verify(dir, domain.CheckpointName(name), digest)
			if info == nil {
				return exitErr(err)
			}
			infos = append(infos, info)
		}
	}

	if err := e.render(c, infos); err != nil {
		return err
	}
	return exitErr(firstBad(infos))
}

// firstBad returns a corruption error for the first pair that did not
// verify.
func firstBad(infos []*checkpoint.Info) error {
	for _, info := range infos {
		switch info.Status {
		case checkpoint.StatusOK, checkpoint.StatusUnverified:
			continue
		}
		return domain.ErrCheckpointCorrupted.WithDetails(fmt.Sprintf("%s: %s", info.Name, info.Status))
	}
	return nil
}
