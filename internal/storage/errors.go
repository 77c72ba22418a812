// Package storage holds the sentinel errors shared between persistence
// implementations and the services that consume them. It stays free of
// domain imports so any layer can depend on it.
package storage

import "errors"

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a uniqueness or concurrency check fails
	ErrConflict = errors.New("conflict: entity already exists or was modified")
)
