// Package metric provides Prometheus metrics for metackpt.
//
// Metrics are registered on a caller-supplied prometheus.Registerer so
// tests and embedding applications can use private registries:
//
//   - metackpt_checkpoint_operations_total{op,status}
//   - metackpt_checkpoint_duration_seconds{op}
//   - metackpt_checkpoint_bytes_total{op}
//   - metackpt_checkpoint_corruptions_total
package metric
