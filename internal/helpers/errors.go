package helpers

import "errors"

var (
	// ErrInvalidConfig is returned by New when the configuration does not validate.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidScope is returned by New when a configured scope entry cannot be parsed.
	ErrInvalidScope = errors.New("invalid scope")

	// ErrNoIndex is returned by operations that need the SQLite index when
	// it is disabled.
	ErrNoIndex = errors.New("cache index is disabled")
)
