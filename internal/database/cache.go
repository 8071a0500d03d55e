package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// CacheEntry is the metadata of one artifact in the download cache.
type CacheEntry struct {
	// Key is the cache key, which is also the file name in the cache directory.
	Key string `json:"key"`

	// URL is the source URL the artifact was downloaded from.
	URL string `json:"url"`

	// StatusCode is the HTTP status of the download.
	StatusCode int `json:"status_code"`

	// ContentType is the Content-Type header of the download.
	ContentType string `json:"content_type,omitempty"`

	// Size is the artifact size in bytes.
	Size int64 `json:"size"`

	// SHA256 is the hex encoded SHA-256 of the artifact content.
	SHA256 string `json:"sha256"`

	// FetchedAt is when the artifact was published to the cache.
	FetchedAt time.Time `json:"fetched_at"`
}

// PutCacheEntry inserts or replaces the metadata for entry.Key.
func (idx *Index) PutCacheEntry(ctx context.Context, entry *CacheEntry) error {
	query := `
	INSERT INTO cache_entries (key, url, status_code, content_type, size, sha256, fetched_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET
		url = excluded.url,
		status_code = excluded.status_code,
		content_type = excluded.content_type,
		size = excluded.size,
		sha256 = excluded.sha256,
		fetched_at = excluded.fetched_at
	`

	_, err := idx.db.ExecContext(ctx, query,
		entry.Key,
		entry.URL,
		entry.StatusCode,
		entry.ContentType,
		entry.Size,
		entry.SHA256,
		formatTimestamp(entry.FetchedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to store cache entry: %w", err)
	}
	return nil
}

// GetCacheEntry returns the metadata stored for key, or ErrNotFound.
func (idx *Index) GetCacheEntry(ctx context.Context, key string) (*CacheEntry, error) {
	query := `
	SELECT key, url, status_code, content_type, size, sha256, fetched_at
	FROM cache_entries WHERE key = ?
	`

	entry, err := scanCacheEntry(idx.db.QueryRowContext(ctx, query, key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cache entry: %w", err)
	}
	return entry, nil
}

// ListCacheEntries returns all cache entries, most recently fetched first.
func (idx *Index) ListCacheEntries(ctx context.Context) ([]CacheEntry, error) {
	query := `
	SELECT key, url, status_code, content_type, size, sha256, fetched_at
	FROM cache_entries ORDER BY fetched_at DESC, key
	`

	rows, err := idx.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list cache entries: %w", err)
	}
	defer rows.Close()

	var entries []CacheEntry
	for rows.Next() {
		entry, err := scanCacheEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cache entry: %w", err)
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

// DeleteCacheEntry removes the metadata for key. Deleting a missing key is
// not an error.
func (idx *Index) DeleteCacheEntry(ctx context.Context, key string) error {
	if _, err := idx.db.ExecContext(ctx, "DELETE FROM cache_entries WHERE key = ?", key); err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

// PurgeCacheEntries removes all cache metadata and returns the number of
// rows removed.
func (idx *Index) PurgeCacheEntries(ctx context.Context) (int64, error) {
	result, err := idx.db.ExecContext(ctx, "DELETE FROM cache_entries")
	if err != nil {
		return 0, fmt.Errorf("failed to purge cache entries: %w", err)
	}
	return result.RowsAffected()
}

// rowScanner is implemented by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanCacheEntry(row rowScanner) (*CacheEntry, error) {
	var (
		entry       CacheEntry
		contentType sql.NullString
		sha         sql.NullString
		fetchedAt   string
	)
	if err := row.Scan(
		&entry.Key,
		&entry.URL,
		&entry.StatusCode,
		&contentType,
		&entry.Size,
		&sha,
		&fetchedAt,
	); err != nil {
		return nil, err
	}
	entry.ContentType = contentType.String
	entry.SHA256 = sha.String
	entry.FetchedAt = parseTimestamp(fetchedAt)
	return &entry, nil
}
