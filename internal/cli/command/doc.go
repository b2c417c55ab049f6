// Package command defines the metackpt command tree using urfave/cli/v2.
//
//   - root.go: App, global flags, per-invocation environment
//   - checkpoint.go: list and verify checkpoint pairs on disk
//   - catalog.go: read and update the CATALOG component
//   - kv.go: operate on the BLOCK_STORE key-value store
//   - snapshot.go: checkpoint or recover every component at once
//   - watch.go: verify pairs as they are written and serve metrics
//
// Every command loads configuration through internal/config, so flags,
// METACKPT_* variables and the config file combine the same way.
package command
