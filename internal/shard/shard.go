// Package shard derives the secondary keys under which entities are indexed.
package shard

// SplitID splits an id into two halves used as (partition, row) of the
// by-id image index. The first half has len(id)/2 bytes; an odd-length id
// puts the extra byte in the row.
func SplitID(id string) (partition, row string) {
	half := len(id) / 2
	return id[:half], id[half:]
}

// Splittable reports whether SplitID yields two non-empty keys for id.
func Splittable(id string) bool {
	return len(id) >= 2
}
