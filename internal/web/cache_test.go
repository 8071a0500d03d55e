package web

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/reconweb/internal/database"
)

// newTestCache creates a Cache in a temporary directory.
func newTestCache(t *testing.T, d *Dispatcher, opts ...CacheOption) *Cache {
	t.Helper()

	base := []CacheOption{WithCacheLogger(discardLogger())}
	c, err := NewCache(filepath.Join(t.TempDir(), "cache"), d, append(base, opts...)...)
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	return c
}

// dirEntries returns the names in dir.
func dirEntries(t *testing.T, dir string) []string {
	t.Helper()

	files, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("failed to read dir: %v", err)
	}
	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, f.Name())
	}
	return names
}

// TestNewCache tests Cache construction.
func TestNewCache(t *testing.T) {
	t.Parallel()

	t.Run("empty dir returns ErrNoCacheDir", func(t *testing.T) {
		t.Parallel()

		if _, err := NewCache("", NewDispatcher(nil)); !errors.Is(err, ErrNoCacheDir) {
			t.Errorf("expected ErrNoCacheDir, got %v", err)
		}
	})

	t.Run("creates directory", func(t *testing.T) {
		t.Parallel()

		dir := filepath.Join(t.TempDir(), "a", "b")
		c, err := NewCache(dir, NewDispatcher(nil))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if c.Dir() != dir {
			t.Errorf("Dir() = %q", c.Dir())
		}
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Errorf("expected directory to exist: %v", err)
		}
	})
}

// TestKey tests cache key normalization.
func TestKey(t *testing.T) {
	t.Parallel()

	base := Key("http://example.com/list.txt?v=1")
	if len(base) != keyLength {
		t.Fatalf("key length = %d, expected %d", len(base), keyLength)
	}

	testCases := []struct {
		name string
		url  string
		same bool
	}{
		{"identical", "http://example.com/list.txt?v=1", true},
		{"uppercase scheme and host", "HTTP://EXAMPLE.COM/list.txt?v=1", true},
		{"fragment dropped", "http://example.com/list.txt?v=1#top", true},
		{"trailing dot host", "http://example.com./list.txt?v=1", true},
		{"surrounding whitespace", "  http://example.com/list.txt?v=1 ", true},
		{"different query", "http://example.com/list.txt?v=2", false},
		{"no query", "http://example.com/list.txt", false},
		{"path case matters", "http://example.com/LIST.txt?v=1", false},
		{"different scheme", "https://example.com/list.txt?v=1", false},
		{"different port", "http://example.com:8080/list.txt?v=1", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := Key(tc.url) == base; got != tc.same {
				t.Errorf("Key(%q) same = %v, expected %v", tc.url, got, tc.same)
			}
		})
	}
}

// TestDownload tests download caching semantics.
func TestDownload(t *testing.T) {
	t.Parallel()

	t.Run("second download is served from cache", func(t *testing.T) {
		t.Parallel()

		server, hits := countingServer(t, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, "artifact body")
		})
		c := newTestCache(t, newTestDispatcher(server, loopbackGate(t)))
		target := server.URL + "/file.txt"

		if c.IsCached(target) {
			t.Fatal("expected IsCached to be false before download")
		}

		path, ok := c.Download(context.Background(), target)
		if !ok {
			t.Fatal("expected download to succeed")
		}
		if !c.IsCached(target) {
			t.Error("expected IsCached to be true after download")
		}
		if path != c.Path(target) {
			t.Errorf("path = %q, expected %q", path, c.Path(target))
		}

		again, ok := c.Download(context.Background(), target)
		if !ok || again != path {
			t.Errorf("second download = %q, %v", again, ok)
		}
		if hits.Load() != 1 {
			t.Errorf("expected exactly 1 network call, got %d", hits.Load())
		}

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("failed to read cached file: %v", err)
		}
		if string(data) != "artifact body" {
			t.Errorf("cached content = %q", data)
		}
	})

	t.Run("404 creates no entry", func(t *testing.T) {
		t.Parallel()

		server, hits := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
			http.NotFound(w, r)
		})
		c := newTestCache(t, newTestDispatcher(server, loopbackGate(t)))
		target := server.URL + "/missing.txt"

		path, ok := c.Download(context.Background(), target)
		if ok || path != "" {
			t.Errorf("expected no result, got %q, %v", path, ok)
		}
		if c.IsCached(target) {
			t.Error("expected IsCached to remain false")
		}
		if names := dirEntries(t, c.Dir()); len(names) != 0 {
			t.Errorf("expected empty cache dir, got %v", names)
		}

		// A failed download is not cached as a failure: the next call retries.
		if _, ok := c.Download(context.Background(), target); ok {
			t.Error("expected second download to fail too")
		}
		if hits.Load() != 2 {
			t.Errorf("expected 2 network calls, got %d", hits.Load())
		}
	})

	t.Run("out-of-scope download sends nothing", func(t *testing.T) {
		t.Parallel()

		server, hits := countingServer(t, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, "x")
		})
		c := newTestCache(t, newTestDispatcher(server, denyGate()))

		if _, ok := c.Download(context.Background(), server.URL+"/x"); ok {
			t.Error("expected out-of-scope download to fail")
		}
		if hits.Load() != 0 {
			t.Errorf("expected no network calls, got %d", hits.Load())
		}
		if c.IsCached(server.URL + "/x") {
			t.Error("expected no entry")
		}
	})

	t.Run("truncated body creates no entry", func(t *testing.T) {
		t.Parallel()

		server, _ := countingServer(t, func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Length", "100")
			_, _ = io.WriteString(w, "only ten b")
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
			panic(http.ErrAbortHandler)
		})
		c := newTestCache(t, newTestDispatcher(server, loopbackGate(t)))
		target := server.URL + "/broken"

		if _, ok := c.Download(context.Background(), target); ok {
			t.Error("expected truncated download to fail")
		}
		if c.IsCached(target) {
			t.Error("expected no entry")
		}
		if names := dirEntries(t, c.Dir()); len(names) != 0 {
			t.Errorf("expected no leftover files, got %v", names)
		}
	})

	t.Run("transport failure creates no entry", func(t *testing.T) {
		t.Parallel()

		server, _ := countingServer(t, func(http.ResponseWriter, *http.Request) {})
		c := newTestCache(t, newTestDispatcher(server, loopbackGate(t)))
		target := server.URL + "/gone"
		server.Close()

		if _, ok := c.Download(context.Background(), target); ok {
			t.Error("expected download to fail")
		}
		if c.IsCached(target) {
			t.Error("expected no entry")
		}
	})

	t.Run("entry persists across Cache instances", func(t *testing.T) {
		t.Parallel()

		server, hits := countingServer(t, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, "persisted")
		})
		d := newTestDispatcher(server, loopbackGate(t))
		dir := t.TempDir()
		target := server.URL + "/p"

		first, err := NewCache(dir, d)
		if err != nil {
			t.Fatalf("failed to create cache: %v", err)
		}
		if _, ok := first.Download(context.Background(), target); !ok {
			t.Fatal("expected download to succeed")
		}

		second, err := NewCache(dir, d)
		if err != nil {
			t.Fatalf("failed to create cache: %v", err)
		}
		if !second.IsCached(target) {
			t.Error("expected entry to be visible to a new Cache")
		}
		if _, ok := second.Download(context.Background(), target); !ok {
			t.Error("expected cached download to succeed")
		}
		if hits.Load() != 1 {
			t.Errorf("expected 1 network call, got %d", hits.Load())
		}
	})
}

// TestDownloadConcurrent tests that concurrent callers share one download.
func TestDownloadConcurrent(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	server, hits := countingServer(t, func(w http.ResponseWriter, _ *http.Request) {
		<-release
		_, _ = io.WriteString(w, "shared")
	})
	c := newTestCache(t, newTestDispatcher(server, loopbackGate(t)))
	target := server.URL + "/shared"

	const callers = 8
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		paths = make(map[string]int)
	)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			path, ok := c.Download(context.Background(), target)
			mu.Lock()
			defer mu.Unlock()
			if ok {
				paths[path]++
			}
		}()
	}

	// Let the callers pile up on the in-flight download.
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	if hits.Load() != 1 {
		t.Errorf("expected exactly 1 network call, got %d", hits.Load())
	}
	if len(paths) != 1 || paths[c.Path(target)] != callers {
		t.Errorf("expected all callers to get the same path, got %v", paths)
	}
}

// TestDownloadWaiterLeaves tests that a waiter can abandon a shared
// download while another waiter still gets the result.
func TestDownloadWaiterLeaves(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	server, hits := countingServer(t, func(w http.ResponseWriter, _ *http.Request) {
		<-release
		_, _ = io.WriteString(w, "late")
	})
	c := newTestCache(t, newTestDispatcher(server, loopbackGate(t)))
	target := server.URL + "/late"

	ctx, cancel := context.WithCancel(context.Background())
	leaving := make(chan bool)
	go func() {
		_, ok := c.Download(ctx, target)
		leaving <- ok
	}()

	type result struct {
		path string
		ok   bool
	}
	staying := make(chan result)
	go func() {
		path, ok := c.Download(context.Background(), target)
		staying <- result{path, ok}
	}()

	// Both callers are waiting on the same request.
	time.Sleep(100 * time.Millisecond)
	cancel()
	select {
	case ok := <-leaving:
		if ok {
			t.Error("expected cancelled waiter to get no result")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("cancelled waiter did not return")
	}

	close(release)
	select {
	case r := <-staying:
		if !r.ok || r.path != c.Path(target) {
			t.Errorf("expected remaining waiter to get the entry, got %+v", r)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("remaining waiter did not return")
	}

	if !c.IsCached(target) {
		t.Error("expected entry to be published")
	}
	if hits.Load() != 1 {
		t.Errorf("expected 1 network call, got %d", hits.Load())
	}
}

// TestDownloadSoleWaiterCancel tests that cancelling the only waiter aborts
// the request and publishes nothing.
func TestDownloadSoleWaiterCancel(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	aborted := make(chan struct{})
	server, _ := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "partial")
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		close(started)
		select {
		case <-r.Context().Done():
			close(aborted)
		case <-time.After(10 * time.Second):
		}
	})
	c := newTestCache(t, newTestDispatcher(server, loopbackGate(t)))
	target := server.URL + "/abandoned"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan bool)
	go func() {
		_, ok := c.Download(ctx, target)
		done <- ok
	}()

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("request did not reach the server")
	}
	cancel()

	select {
	case ok := <-done:
		if ok {
			t.Error("expected cancelled caller to get no result")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("cancelled caller did not return")
	}

	select {
	case <-aborted:
	case <-time.After(5 * time.Second):
		t.Fatal("outbound request was not aborted")
	}

	// The temp file is removed once the aborted fetch unwinds.
	deadline := time.Now().Add(5 * time.Second)
	for len(dirEntries(t, c.Dir())) > 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if names := dirEntries(t, c.Dir()); len(names) != 0 {
		t.Errorf("expected empty cache directory, got %v", names)
	}
	if c.IsCached(target) {
		t.Error("expected no entry for an abandoned download")
	}
}

// TestCacheTTL tests expiry of old entries.
func TestCacheTTL(t *testing.T) {
	t.Parallel()

	server, hits := countingServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "v")
	})
	c := newTestCache(t, newTestDispatcher(server, loopbackGate(t)), WithTTL(time.Hour))
	target := server.URL + "/ttl"

	if _, ok := c.Download(context.Background(), target); !ok {
		t.Fatal("expected download to succeed")
	}
	if !c.IsCached(target) {
		t.Fatal("expected fresh entry")
	}

	c.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if c.IsCached(target) {
		t.Error("expected entry to be stale")
	}
	if _, ok := c.Download(context.Background(), target); !ok {
		t.Fatal("expected refresh to succeed")
	}
	if hits.Load() != 2 {
		t.Errorf("expected 2 network calls, got %d", hits.Load())
	}
}

// TestCacheIndexAndMaintenance tests metadata, listing, removal and purge.
func TestCacheIndexAndMaintenance(t *testing.T) {
	t.Parallel()

	server, _ := countingServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = io.WriteString(w, "indexed body")
	})

	idx, err := database.Open(t.TempDir(), database.DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open index: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })

	c := newTestCache(t, newTestDispatcher(server, loopbackGate(t)), WithIndex(idx))
	ctx := context.Background()
	first := server.URL + "/one"
	second := server.URL + "/two"

	for _, target := range []string{first, second} {
		if _, ok := c.Download(ctx, target); !ok {
			t.Fatalf("download of %s failed", target)
		}
	}

	// A stray file that was never indexed.
	stray := Key("http://example.com/manual")
	if err := os.WriteFile(filepath.Join(c.Dir(), stray), []byte("abc"), 0600); err != nil {
		t.Fatalf("failed to write stray file: %v", err)
	}
	// A leftover temp file is not an entry.
	if err := os.WriteFile(filepath.Join(c.Dir(), tempPrefix+"123"), []byte("partial"), 0600); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}

	entries, err := c.Entries(ctx)
	if err != nil {
		t.Fatalf("Entries failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d: %+v", len(entries), entries)
	}

	sum := sha256.Sum256([]byte("indexed body"))
	byKey := make(map[string]database.CacheEntry)
	for _, e := range entries {
		byKey[e.Key] = e
	}
	indexed := byKey[Key(first)]
	if indexed.URL != first || indexed.SHA256 != hex.EncodeToString(sum[:]) || indexed.ContentType != "text/plain" {
		t.Errorf("unexpected indexed entry %+v", indexed)
	}
	if indexed.Size != int64(len("indexed body")) {
		t.Errorf("Size = %d", indexed.Size)
	}
	if unindexed := byKey[stray]; unindexed.URL != "" || unindexed.Size != 3 {
		t.Errorf("unexpected unindexed entry %+v", unindexed)
	}

	if err := c.Remove(ctx, first); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if c.IsCached(first) {
		t.Error("expected entry to be removed")
	}
	if _, err := idx.GetCacheEntry(ctx, Key(first)); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("expected index row to be removed, got %v", err)
	}
	if err := c.Remove(ctx, first); err != nil {
		t.Errorf("removing a missing entry should not fail: %v", err)
	}

	removed, err := c.Purge(ctx)
	if err != nil {
		t.Fatalf("Purge failed: %v", err)
	}
	if removed != 2 {
		t.Errorf("expected 2 removed entries, got %d", removed)
	}
	if names := dirEntries(t, c.Dir()); len(names) != 0 {
		t.Errorf("expected empty cache dir, got %v", names)
	}
	rows, err := idx.ListCacheEntries(ctx)
	if err != nil {
		t.Fatalf("ListCacheEntries failed: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("expected empty index, got %d rows", len(rows))
	}
}
