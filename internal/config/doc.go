// Package config defines the metackpt configuration structure.
//
// Values are layered by confloader: defaults from Default, then the YAML
// file, then METACKPT_* environment variables, then command-line flags.
//
// Example file:
//
//	checkpoint:
//	  dir: /var/lib/metackpt/checkpoints
//	  digest: md5
//	  atomic_payload: false
//	  bandwidth_limit: 0
//	workers:
//	  size: 4
//	kv:
//	  dir: /var/lib/metackpt/kv
//	  gc_interval: 10m
//	log:
//	  level: info
//	  format: json
package config
