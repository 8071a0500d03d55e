package web

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/sha3"
	"golang.org/x/sync/singleflight"

	"github.com/nao1215/reconweb/internal/database"
)

const (
	// tempPrefix marks in-progress downloads. Entries never start with a dot.
	tempPrefix = ".download-"

	// keyLength is the length of a hex encoded SHA3-256 digest.
	keyLength = 64
)

// Cache is an on-disk download cache keyed by source URL.
//
// An entry exists only for a download that completed with a 2xx status and
// a fully written body: bodies are streamed to a temporary file in the cache
// directory, synced and renamed into place, so a partial file is never
// visible under its key. The file system is the source of truth; the
// optional SQLite index only adds metadata.
type Cache struct {
	dir        string
	dispatcher *Dispatcher
	index      *database.Index
	ttl        time.Duration
	group      singleflight.Group
	logger     *slog.Logger
	now        func() time.Time

	mu         sync.Mutex
	flights    map[string]*flight
	nextFlight uint64
}

// flight is one download of a key shared by its waiters. Its context is
// cancelled when the last waiter leaves.
type flight struct {
	id      uint64
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithIndex records metadata of published entries in idx.
func WithIndex(idx *database.Index) CacheOption {
	return func(c *Cache) {
		c.index = idx
	}
}

// WithTTL makes entries older than ttl count as absent. 0 keeps them forever.
func WithTTL(ttl time.Duration) CacheOption {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithCacheLogger sets the logger. The default is slog.Default().
func WithCacheLogger(logger *slog.Logger) CacheOption {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCache creates a Cache storing files in dir, which is created if needed.
func NewCache(dir string, dispatcher *Dispatcher, opts ...CacheOption) (*Cache, error) {
	if dir == "" {
		return nil, ErrNoCacheDir
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	c := &Cache{
		dir:        dir,
		dispatcher: dispatcher,
		logger:     slog.Default(),
		now:        time.Now,
		flights:    make(map[string]*flight),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Dir returns the cache directory.
func (c *Cache) Dir() string {
	return c.dir
}

// Key returns the cache key of rawURL: the hex SHA3-256 of the normalized URL.
//
// Normalization lowercases the scheme and host, drops the fragment and a
// trailing dot of the host, and keeps path and query byte for byte, since
// both are significant to the server. Unparsable input is hashed as is.
func Key(rawURL string) string {
	sum := sha3.Sum256([]byte(normalizeURL(rawURL)))
	return hex.EncodeToString(sum[:])
}

func normalizeURL(rawURL string) string {
	s := strings.TrimSpace(rawURL)
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return s
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if host := u.Hostname(); strings.HasSuffix(host, ".") {
		u.Host = strings.Replace(u.Host, host, strings.TrimSuffix(host, "."), 1)
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}

// Path returns the file path an entry for rawURL has or would have.
func (c *Cache) Path(rawURL string) string {
	return filepath.Join(c.dir, Key(rawURL))
}

// IsCached reports whether a fresh entry for rawURL exists on disk.
// It reflects persisted state, including downloads of earlier processes.
func (c *Cache) IsCached(rawURL string) bool {
	return c.fresh(c.Path(rawURL))
}

func (c *Cache) fresh(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	if c.ttl > 0 && c.now().Sub(info.ModTime()) > c.ttl {
		return false
	}
	return true
}

// Download returns the path of the cached body of rawURL, downloading it
// first when no fresh entry exists. It returns "", false when the artifact
// could not be obtained: the target is out of scope, the server answered
// with a non-2xx status, or the transfer failed.
//
// Concurrent calls for the same URL share one download. Each caller stops
// waiting when its own ctx is done; the download is aborted, and nothing is
// published, once every caller waiting for it has gone.
func (c *Cache) Download(ctx context.Context, rawURL string) (string, bool) {
	key := Key(rawURL)
	path := filepath.Join(c.dir, key)
	if c.fresh(path) {
		return path, true
	}

	f := c.join(key)
	defer c.leave(key, f)

	ch := c.group.DoChan(key+"#"+strconv.FormatUint(f.id, 10), func() (any, error) {
		return c.fetch(f.ctx, rawURL, key, path)
	})

	select {
	case result := <-ch:
		if result.Err != nil {
			c.logger.Debug("download failed", "url", rawURL, "error", result.Err)
			return "", false
		}
		return result.Val.(string), true //nolint:forcetypeassert // fetch returns string
	case <-ctx.Done():
		return "", false
	}
}

// join registers a waiter on the flight for key, starting a new flight when
// none is active.
func (c *Cache) join(key string) *flight {
	c.mu.Lock()
	defer c.mu.Unlock()

	f := c.flights[key]
	if f == nil {
		c.nextFlight++
		ctx, cancel := context.WithCancel(context.Background())
		f = &flight{id: c.nextFlight, ctx: ctx, cancel: cancel}
		c.flights[key] = f
	}
	f.waiters++
	return f
}

// leave drops a waiter. The last one cancels the flight, so a download
// nobody waits for anymore stops and later callers start a fresh one.
func (c *Cache) leave(key string, f *flight) {
	c.mu.Lock()
	defer c.mu.Unlock()

	f.waiters--
	if f.waiters > 0 {
		return
	}
	f.cancel()
	if c.flights[key] == f {
		delete(c.flights, key)
	}
}

// Wordlist downloads a wordlist through the cache. Use Lines to read it.
func (c *Cache) Wordlist(ctx context.Context, rawURL string) (string, bool) {
	return c.Download(ctx, rawURL)
}

// fetch downloads rawURL and publishes it under path.
func (c *Cache) fetch(ctx context.Context, rawURL, key, path string) (string, error) {
	// A flight that finished just before this one started may have
	// published the entry already.
	if c.fresh(path) {
		return path, nil
	}

	resp, target, err := c.dispatcher.open(ctx, Request{URL: rawURL})
	if err != nil {
		return "", err
	}
	if resp == nil {
		return "", fmt.Errorf("%w: %s", ErrOutOfScope, target)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: %d from %s", ErrHTTPStatus, resp.StatusCode, target)
	}

	tmp, err := os.CreateTemp(c.dir, tempPrefix+"*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	published := false
	defer func() {
		_ = tmp.Close()
		if !published {
			_ = os.Remove(tmpPath)
		}
	}()

	hash := sha256.New()
	size, err := io.Copy(io.MultiWriter(tmp, hash), resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: reading body of %s: %w", ErrTransport, target, err)
	}
	if err := tmp.Sync(); err != nil {
		return "", fmt.Errorf("failed to sync %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close %s: %w", tmpPath, err)
	}
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: download of %s abandoned: %w", ErrTransport, target, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return "", fmt.Errorf("failed to publish cache entry: %w", err)
	}
	published = true

	c.logger.Debug("cached download", "url", target, "key", key, "bytes", size)

	if c.index != nil {
		entry := &database.CacheEntry{
			Key:         key,
			URL:         rawURL,
			StatusCode:  resp.StatusCode,
			ContentType: resp.Header.Get("Content-Type"),
			Size:        size,
			SHA256:      hex.EncodeToString(hash.Sum(nil)),
			FetchedAt:   c.now(),
		}
		// The file is published; a failing index only loses metadata.
		if err := c.index.PutCacheEntry(context.WithoutCancel(ctx), entry); err != nil {
			c.logger.Warn("failed to index cache entry", "key", key, "error", err)
		}
	}

	return path, nil
}

// Entries lists the files in the cache directory. Metadata from the index
// is attached where available; unindexed files carry only key, size and
// modification time. Stale entries are included with their FetchedAt time.
func (c *Cache) Entries(ctx context.Context) ([]database.CacheEntry, error) {
	files, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read cache directory: %w", err)
	}

	indexed := make(map[string]database.CacheEntry)
	if c.index != nil {
		rows, err := c.index.ListCacheEntries(ctx)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			indexed[row.Key] = row
		}
	}

	entries := make([]database.CacheEntry, 0, len(files))
	for _, file := range files {
		if !isKey(file.Name()) || !file.Type().IsRegular() {
			continue
		}
		info, err := file.Info()
		if err != nil {
			continue
		}
		entry, ok := indexed[file.Name()]
		if !ok {
			entry = database.CacheEntry{Key: file.Name(), FetchedAt: info.ModTime()}
		}
		entry.Size = info.Size()
		entries = append(entries, entry)
	}
	return entries, nil
}

// Remove deletes the entry for rawURL. Removing a missing entry is not an error.
func (c *Cache) Remove(ctx context.Context, rawURL string) error {
	key := Key(rawURL)
	if err := os.Remove(filepath.Join(c.dir, key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove cache entry: %w", err)
	}
	if c.index != nil {
		return c.index.DeleteCacheEntry(ctx, key)
	}
	return nil
}

// Purge deletes every entry and leftover temporary file and returns the
// number of entries removed.
func (c *Cache) Purge(ctx context.Context) (int, error) {
	files, err := os.ReadDir(c.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read cache directory: %w", err)
	}

	removed := 0
	for _, file := range files {
		name := file.Name()
		if !isKey(name) && !strings.HasPrefix(name, tempPrefix) {
			continue
		}
		if err := os.Remove(filepath.Join(c.dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, fmt.Errorf("failed to remove %s: %w", name, err)
		}
		if isKey(name) {
			removed++
		}
	}

	if c.index != nil {
		if _, err := c.index.PurgeCacheEntries(ctx); err != nil {
			return removed, err
		}
	}
	return removed, nil
}

// isKey reports whether name has the shape of a cache key.
func isKey(name string) bool {
	if len(name) != keyLength {
		return false
	}
	_, err := hex.DecodeString(name)
	return err == nil
}
