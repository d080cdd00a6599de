// Package cache provides cross-run result caching for flowdag graphs.
package cache

import (
	"errors"
)

// Store persists encoded node values across runs.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get retrieves the encoded value for a node.
	// Returns ErrNotFound if nothing is cached.
	Get(node string) ([]byte, error)

	// Put stores the encoded value for a node, recording the format it
	// was encoded with. Overwrites any previous value.
	Put(node, format string, data []byte) error

	// Delete removes a node's cached value.
	// Returns nil if nothing was cached.
	Delete(node string) error

	// List returns the names of all cached nodes, sorted.
	List() ([]string, error)

	// Close releases any resources (connections, files).
	Close() error
}

// Sentinel errors for cache store operations.
var (
	// ErrNotFound indicates no cached value exists for the node.
	ErrNotFound = errors.New("cached value not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("cache store closed")
)
