// Package web implements the scope-gated HTTP helpers of reconweb.
//
// The Dispatcher is the only component that talks to the network. Every
// request is checked against a scope.Gate first; targets outside the scope
// never leave the process and come back as a synthetic Response with
// OutOfScope set, so callers branch on them like on any other result.
//
// Built on the Dispatcher:
//   - Cache downloads an artifact once, publishes it atomically under a key
//     derived from the source URL and reuses it afterwards
//   - Cache.Wordlist and Lines expose a cached file as trimmed, non-empty lines
//   - PageIterator walks a templated paginated API until the first empty,
//     failed or out-of-scope page
//
// Design decision: HTTP failures are outcomes, not errors. A non-2xx status
// is returned as a normal Response by Dispatch, means "no artifact" to the
// Cache and "end of sequence" to the PageIterator. Only transport failures
// (DNS, connection, TLS, timeout) surface as errors, wrapped in ErrTransport.
package web
