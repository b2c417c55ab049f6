// Package cmap provides a sharded concurrent map.
//
// Each shard owns its own RWMutex, so writers to different shards do not
// contend. Reads (Get, Has, Range) take the shard read lock; writes
// (Set, Delete, Update, Pop) take the shard write lock.
//
// Usage:
//
//	m := cmap.New[string, int64]()
//	m.Set("inode/42", 7)
//	v, ok := m.Get("inode/42")
//
// Range visits shards one at a time, so a concurrent writer may be seen in
// one shard and not in another. Callers that need a point-in-time view
// must stop writers first.
package cmap
