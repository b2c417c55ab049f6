// Package output renders command results as a table, JSON or YAML.
//
// Tables are derived from struct fields: the json tag names the column and
// a `table:"-"` tag hides a field. Fields tagged `table:"wide"` only appear
// with --wide.
package output
