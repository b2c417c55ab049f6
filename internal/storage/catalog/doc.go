// Package catalog provides an in-memory name to counter catalog that can
// be checkpointed.
//
// Entries live in a sharded concurrent map. Restores decode into a staging
// map that only replaces the live one on CommitRestore, so a checkpoint
// rejected by its digest leaves the catalog as it was.
//
// Payload layout (all integers big-endian):
//
//	"CTL" | version (1 byte) | count (uint32)
//	count x { keylen (uvarint) | key | value (int64) }
//
// Entries are written in key order, so equal catalogs produce identical
// payloads.
package catalog
