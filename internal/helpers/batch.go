package helpers

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the number of parallel downloads used by
// DownloadAll when none is given.
const DefaultConcurrency = 10

// DownloadResult is the outcome of one download in a batch.
type DownloadResult struct {
	// URL is the requested URL.
	URL string `json:"url"`

	// Path is the cache file. Empty when OK is false.
	Path string `json:"path,omitempty"`

	// OK reports whether the cache holds an entry for URL.
	OK bool `json:"ok"`

	// Cached reports whether the entry was already fresh before the batch.
	Cached bool `json:"cached"`

	// Elapsed is the time spent on this URL.
	Elapsed time.Duration `json:"elapsed"`
}

// DownloadAll downloads urls into the cache with at most concurrency
// downloads in flight. Results are in the order of urls. Individual failures
// are reported in the result and do not stop the batch; only cancellation
// of ctx does, and the returned error is then ctx.Err().
//
// Duplicate URLs in one batch share a single download through the cache.
func (h *Helpers) DownloadAll(ctx context.Context, urls []string, concurrency int) ([]DownloadResult, error) {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	h.logger.Debug("starting batch download",
		"total", len(urls),
		"concurrency", concurrency,
	)

	results := make([]DownloadResult, len(urls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, url := range urls {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i] = DownloadResult{URL: url}
				return err
			}

			start := time.Now()
			cached := h.cache.IsCached(url)
			path, ok := h.cache.Download(gctx, url)
			results[i] = DownloadResult{
				URL:     url,
				Path:    path,
				OK:      ok,
				Cached:  cached && ok,
				Elapsed: time.Since(start),
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, ctx.Err()
}
