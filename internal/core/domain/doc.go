// Package domain defines the core domain types for metackpt.
//
// Domain types are pure values without any IO dependencies. This package
// contains:
//
//   - CheckpointName: the stable identifier of a checkpointed component
//   - Errors: structured error codes shared by the checkpoint protocol
package domain
