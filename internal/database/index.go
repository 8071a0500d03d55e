package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// FileName is the name of the SQLite database file inside the data directory.
const FileName = "reconweb.db"

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrDatabaseNotFound is returned by Open when CreateIfNotExists is false
	// and no database file exists yet.
	ErrDatabaseNotFound = errors.New("database not found")
)

// Index provides SQLite-based storage for cache metadata and recorded
// out-of-band interactions.
//
// Design decision: the cache directory itself is the source of truth for
// whether an artifact is cached. The index only carries metadata that the
// file system cannot (source URL, content hash, fetch time), so a missing or
// stale index never makes a cached file invisible.
type Index struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures Index behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates an Index in dbDir.
// If CreateIfNotExists is false and the database doesn't exist,
// ErrDatabaseNotFound is returned.
func Open(dbDir string, opts Options) (*Index, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w at %s (use CreateIfNotExists option to create)", ErrDatabaseNotFound, dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a new file, mode=rwc allows it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	idx := &Index{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := idx.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return idx, nil
}

// Close closes the database connection.
func (idx *Index) Close() error {
	return idx.db.Close()
}

// Path returns the path of the database file.
func (idx *Index) Path() string {
	return idx.dbPath
}

// createTables creates the database schema if it doesn't exist.
func (idx *Index) createTables() error {
	schema := `
	-- Cache entries describe artifacts stored in the download cache
	CREATE TABLE IF NOT EXISTS cache_entries (
		key TEXT PRIMARY KEY,
		url TEXT NOT NULL,
		status_code INTEGER,
		content_type TEXT,
		size INTEGER,
		sha256 TEXT,
		fetched_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_cache_url ON cache_entries(url);
	CREATE INDEX IF NOT EXISTS idx_cache_fetched ON cache_entries(fetched_at);

	-- Interactions are out-of-band hits received from interactsh providers
	CREATE TABLE IF NOT EXISTS interactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		correlation_id TEXT NOT NULL,
		server TEXT NOT NULL,
		protocol TEXT,
		unique_id TEXT,
		full_id TEXT,
		remote_address TEXT,
		timestamp TEXT NOT NULL,
		raw TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_interactions_corr ON interactions(correlation_id);
	CREATE INDEX IF NOT EXISTS idx_interactions_timestamp ON interactions(timestamp);
	`

	_, err := idx.db.ExecContext(context.Background(), schema)
	return err
}

// timestampFormats lists formats accepted when reading timestamps back.
// Rows written by this package use storedTimeFormat, which RFC3339Nano parses; the others cover values
// produced by SQLite itself (e.g. CURRENT_TIMESTAMP in manual edits).
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999",
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// storedTimeFormat is fixed width so that timestamps sort lexically.
const storedTimeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// formatTimestamp renders t in UTC for storage. A zero t means now.
func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(storedTimeFormat)
}
