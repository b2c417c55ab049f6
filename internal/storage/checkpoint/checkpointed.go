package checkpoint

import (
	"context"
	"io"

	"github.com/yndnr/metackpt/internal/core/domain"
)

// Checkpointed is implemented by every component whose state can be written
// to and restored from a checkpoint.
type Checkpointed interface {
	// CheckpointName returns the stable name used as the checkpoint file name.
	CheckpointName() domain.CheckpointName

	// WriteCheckpoint writes the complete state to w.
	// Implementations should stop early and return ctx.Err() once ctx is done.
	WriteCheckpoint(ctx context.Context, w io.Writer) error

	// RestoreCheckpoint replaces the state with the one read from r.
	RestoreCheckpoint(ctx context.Context, r io.Reader) error
}

// Stager is implemented by components that restore into a staging area.
// The driver calls CommitRestore after the digest has been verified and
// AbortRestore on every failure path, so the live state is left untouched
// by a corrupt checkpoint.
type Stager interface {
	CommitRestore()
	AbortRestore()
}
