package web

import "errors"

// Request errors.
var (
	// ErrOutOfScope is returned by Response.Err for synthetic scope-violation
	// responses. Dispatch itself never returns it.
	ErrOutOfScope = errors.New("target is out of scope")

	// ErrTransport wraps network-level failures: DNS resolution, connection
	// refused, TLS handshake, timeouts and cancellation.
	ErrTransport = errors.New("transport failure")

	// ErrInvalidURL is returned when a request URL cannot be parsed or is not
	// an absolute http(s) URL.
	ErrInvalidURL = errors.New("invalid URL")

	// ErrBodyTruncated ends a JSON page iteration whose page exceeded the
	// body limit and so could not be decoded.
	ErrBodyTruncated = errors.New("response body exceeds the size limit")

	// ErrHTTPStatus is used internally when a download ends with a non-2xx
	// status. It is reported in debug logs only.
	ErrHTTPStatus = errors.New("unexpected HTTP status")
)

// Cache errors.
var (
	// ErrNoCacheDir is returned by NewCache when no directory is given.
	ErrNoCacheDir = errors.New("cache directory is not configured")
)
