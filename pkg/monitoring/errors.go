package monitoring

import "errors"

var (
	// ErrAllocation is returned when an aggregator could not be constructed.
	// The caller decides whether to abort stream setup.
	ErrAllocation = errors.New("cannot create metrics")

	// ErrNotFound is returned when an operation names an id or port with no entry.
	ErrNotFound = errors.New("metrics not found")
)
