package domain

import (
	"fmt"
	"strings"
)

// CheckpointName identifies a checkpointed component. It is used verbatim as
// the checkpoint file name and must stay stable across releases.
type CheckpointName string

// Well-known checkpoint names.
const (
	CheckpointInodeTree      CheckpointName = "INODE_TREE"
	CheckpointBlockStore     CheckpointName = "BLOCK_STORE"
	CheckpointCatalog        CheckpointName = "CATALOG"
	CheckpointMountTable     CheckpointName = "MOUNT_TABLE"
	CheckpointPathProperties CheckpointName = "PATH_PROPERTIES"
)

// String implements fmt.Stringer.
func (n CheckpointName) String() string {
	return string(n)
}

// Validate checks that the name can be used as a single file name.
func (n CheckpointName) Validate() error {
	s := string(n)
	switch {
	case s == "":
		return ErrInvalidCheckpointName.WithDetails("name is empty")
	case s == "." || s == "..":
		return ErrInvalidCheckpointName.WithDetails(fmt.Sprintf("%q is reserved", s))
	case strings.ContainsAny(s, `/\`):
		return ErrInvalidCheckpointName.WithDetails(fmt.Sprintf("%q contains a path separator", s))
	case strings.ContainsRune(s, 0):
		return ErrInvalidCheckpointName.WithDetails("name contains a NUL byte")
	}
	return nil
}
