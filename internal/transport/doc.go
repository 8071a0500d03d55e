// Package transport builds the HTTP clients and dialers used by reconweb.
//
// A Client either dials directly or routes every connection through a
// SOCKS5 proxy (golang.org/x/net/proxy). The proxy may be an external one
// such as a local Tor SOCKS port, or an embedded Tor daemon managed by
// tornago (see EmbeddedTor).
//
// The package is designed to be used with dependency injection - create a
// Client once and hand its http.Client to the components that need it rather
// than using global state.
package transport
