// Package kv provides the small ordered key-value store backing the
// output queue: an in-memory map for tests and short runs, and a
// leveldb store that survives process restarts.
package kv

import "io"

// Store holds values keyed by a uint64 sequence number.
type Store[V any] interface {
	Get(key uint64) (V, bool, error)
	Set(key uint64, value V) error
	Delete(key uint64) error
	// Range visits entries in ascending key order until f returns false.
	Range(f func(key uint64, value V) bool) error

	io.Closer
}
