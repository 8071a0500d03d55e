// Package helpers bundles the HTTP helper components behind one facade.
//
// A Helpers value is built from a config.Config and a scope.Gate and owns
// everything a recon module needs to talk to the web: the outbound transport
// (direct, SOCKS5 proxy or embedded Tor), the scope-gated request
// dispatcher, the download cache with its SQLite index, wordlist loading,
// page iteration and interactsh clients.
//
// Modules receive the facade by dependency injection. There is no
// package-level state.
package helpers
