// Package checkpoint implements the checkpoint/restore protocol.
//
// A Checkpointed component serializes its whole in-memory state into a
// single file and restores it later. Every byte crossing the file boundary
// updates a running digest; the digest is stored next to the payload in a
// sidecar file and compared on restore.
//
// On-disk layout, per component, inside a caller-chosen directory:
//
//	<dir>/<name>          opaque payload written by the component
//	<dir>/<name>.md5      raw digest bytes (suffix depends on the algorithm)
//
// Write:
//
//  1. Remove a stale sidecar for the name
//  2. Open a digest-wrapped, buffered output over the payload file
//  3. Let the component serialize itself
//  4. Flush, fsync and close the payload
//  5. Write the sidecar (tmp file + rename)
//
// Restore:
//
//  1. Open a digest-wrapped input over the payload file
//  2. Let the component deserialize itself
//  3. Close the input and compare the digest with the sidecar
//
// A mismatch or a missing sidecar is a corruption error. Components that
// implement Stager have their restore committed only after the comparison
// succeeds; all others are mutated in place and are not rolled back.
//
// Operations are submitted to a caller-owned workerpool.Pool by a Driver and
// return a cancellable Task.
package checkpoint
