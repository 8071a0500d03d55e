// Package database provides SQLite-based storage for reconweb.
//
// The Index stores:
//   - Metadata of artifacts in the download cache (source URL, size,
//     content hash, fetch time)
//   - Out-of-band interactions received from interactsh providers
//
// Design decision: We use SQLite (via modernc.org/sqlite) because the
// database is a single file next to the cache and the CGO-free driver keeps
// cross-compilation easy. WAL mode lets the CLI read the index while a
// long-running oob session writes to it.
package database
