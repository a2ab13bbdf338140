package store

import "errors"

var (
	// errTornRecord marks a final record that was cut short by a crash
	// mid-write. It is never returned to callers; Open swallows it and
	// truncates the file at the last good record boundary.
	errTornRecord = errors.New("store: torn record")

	// ErrStorageFailure wraps any durable-storage error. The consensus core
	// treats it as fatal: a node cannot keep serving requests once it can no
	// longer trust its own persisted state.
	ErrStorageFailure = errors.New("store: durable storage failure")
)
