// Package kv provides a Badger-backed block metadata store whose whole
// contents can be checkpointed.
//
// The checkpoint payload is Badger's own backup stream (DB.Backup at
// version 0). Restoring drops every key and loads the stream, so a failed
// restore leaves the store partially loaded. Callers treat a failed
// BLOCK_STORE restore as fatal for the store.
package kv
