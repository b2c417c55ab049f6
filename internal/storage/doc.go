// Package storage groups the checkpointed components of a node under one
// checkpoint directory.
//
// An Engine owns no state of its own. It registers components, writes all of
// them as one checkpoint set and restores them on startup:
//
//	eng, _ := storage.New(driver, "/var/lib/metackpt/ckpt", log)
//	eng.Register(catalog.New())
//	eng.Register(blockStore)
//	if err := eng.Recover(ctx); err != nil { ... }
//	...
//	err := eng.Checkpoint(ctx)
//
// Cross-component consistency is the caller's job: stop mutation before
// calling Checkpoint if the set must describe a single point in time.
package storage
