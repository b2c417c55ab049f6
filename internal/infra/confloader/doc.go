// Package confloader layers configuration sources on top of a defaults
// struct using koanf.
//
// Priority (highest to lowest):
//
//  1. Overrides (command-line flags)
//  2. Environment variables (METACKPT_SECTION_KEY)
//  3. Configuration file (YAML)
//  4. Values already present in the target struct
//
// Watching a configuration file for changes is handled by the Watcher.
package confloader
