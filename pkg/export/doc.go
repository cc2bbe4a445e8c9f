// Package export assembles the public catalog snapshot: displayed
// artifacts grouped by academic class in reverse chronological order,
// plus aggregate counts over everything still stored. Snapshots are
// written to a well-known object key for the static read path and
// optionally mirrored into Redis.
package export
