package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and provide specific
// information about what is wrong with the configuration.
//
// Design decision: We use package-level sentinel errors rather than
// creating new error instances in Validate(). This allows callers to use
// errors.Is() for programmatic error handling while still providing
// human-readable messages.
var (
	// ErrInvalidTimeout is returned when the HTTP timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	// A negative body size is invalid; use 0 to use the default limit.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidRateLimit is returned when the rate limit is negative.
	// Use 0 to disable rate limiting.
	ErrInvalidRateLimit = errors.New("invalid rate limit: must be non-negative")

	// ErrInvalidCacheTTL is returned when the cache TTL is negative.
	// Use 0 to keep cache entries forever.
	ErrInvalidCacheTTL = errors.New("invalid cache ttl: must be non-negative")

	// ErrNoCacheDir is returned when no cache directory is configured.
	ErrNoCacheDir = errors.New("no cache directory configured")

	// ErrNoInteractshServers is returned when the interactsh provider list is empty.
	// The list falls back to DefaultInteractshServers, so this only happens when
	// a caller explicitly clears it.
	ErrNoInteractshServers = errors.New("no interactsh servers configured")

	// ErrInvalidPollInterval is returned when the interactsh poll interval is not positive.
	ErrInvalidPollInterval = errors.New("invalid interactsh poll interval: must be positive")

	// ErrConflictingProxy is returned when both an external proxy and the
	// embedded Tor daemon are requested.
	ErrConflictingProxy = errors.New("conflicting proxy settings: --proxy and --tor cannot be used together")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified. Only one output format can be used at a time.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")
)
