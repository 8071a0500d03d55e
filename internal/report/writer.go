package report

import (
	"io"
	"time"

	"github.com/nao1215/reconweb/internal/database"
	"github.com/nao1215/reconweb/internal/helpers"
	"github.com/nao1215/reconweb/internal/web"
)

// Writer defines the interface for result output.
// Each method returns the number of bytes written.
type Writer interface {
	// WriteResponse outputs a single HTTP response.
	WriteResponse(resp *web.Response) (int, error)

	// WriteDownloads outputs the results of a batch download.
	WriteDownloads(results []helpers.DownloadResult) (int, error)

	// WriteCacheEntries outputs a cache listing.
	WriteCacheEntries(entries []database.CacheEntry) (int, error)

	// WriteInteractions outputs out-of-band interactions.
	WriteInteractions(records []database.InteractionRecord) (int, error)
}

// MultiWriter writes to multiple Writers simultaneously.
// This is useful for outputting to both terminal and file.
//
// Design decision: We implement this as a separate type rather than
// using io.MultiWriter because each format renders the same result
// differently.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// WriteResponse outputs the response to all Writers.
// Stops on first error encountered.
func (m *MultiWriter) WriteResponse(resp *web.Response) (int, error) {
	return m.each(func(w Writer) (int, error) { return w.WriteResponse(resp) })
}

// WriteDownloads outputs the download results to all Writers.
func (m *MultiWriter) WriteDownloads(results []helpers.DownloadResult) (int, error) {
	return m.each(func(w Writer) (int, error) { return w.WriteDownloads(results) })
}

// WriteCacheEntries outputs the cache listing to all Writers.
func (m *MultiWriter) WriteCacheEntries(entries []database.CacheEntry) (int, error) {
	return m.each(func(w Writer) (int, error) { return w.WriteCacheEntries(entries) })
}

// WriteInteractions outputs the interactions to all Writers.
func (m *MultiWriter) WriteInteractions(records []database.InteractionRecord) (int, error) {
	return m.each(func(w Writer) (int, error) { return w.WriteInteractions(records) })
}

func (m *MultiWriter) each(fn func(Writer) (int, error)) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := fn(w)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// timeFormat is used for timestamps in text and Markdown output.
const timeFormat = "2006-01-02 15:04:05 MST"

// formatTime returns "-" for the zero time.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(timeFormat)
}

// shortKey abbreviates a cache key for display.
func shortKey(key string) string {
	return truncateString(key, 12)
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
