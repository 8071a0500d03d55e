// Package main provides the entry point for the reconweb CLI.
//
// reconweb exposes the HTTP helpers of a recon toolkit on the command line:
// scope-gated requests, a download cache, wordlists, paginated APIs and
// out-of-band interaction capture through interactsh.
//
// Usage:
//
//	reconweb request --target example.com https://example.com/
//	reconweb download https://example.com/robots.txt
//	reconweb oob
//
// See --help for all available options.
package main

// main is the entry point for reconweb.
func main() {
	Execute()
}
