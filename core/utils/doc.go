// Package utils converts typed entity fields to and from the string form used in
// merge snapshots, so field-level comparison works the same for every entity.
package utils
