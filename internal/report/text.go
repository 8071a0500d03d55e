package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/nao1215/reconweb/internal/database"
	"github.com/nao1215/reconweb/internal/helpers"
	"github.com/nao1215/reconweb/internal/web"
)

// TextWriter outputs human-readable text for terminal display.
// Status codes and outcomes are colored unless color is disabled.
type TextWriter struct {
	baseWriter

	// showBody prints response bodies after the status line.
	showBody bool

	good    *color.Color
	notice  *color.Color
	bad     *color.Color
	subtle  *color.Color
	colored bool
}

// TextWriterOption configures a TextWriter.
type TextWriterOption func(*TextWriter)

// WithBody prints response bodies after the status line.
func WithBody(show bool) TextWriterOption {
	return func(w *TextWriter) {
		w.showBody = show
	}
}

// WithColor forces colored output on or off. By default color follows
// the terminal detection of fatih/color.
func WithColor(enabled bool) TextWriterOption {
	return func(w *TextWriter) {
		w.colored = enabled
	}
}

// NewTextWriter creates a TextWriter that outputs to the given writer.
func NewTextWriter(output io.Writer, opts ...TextWriterOption) *TextWriter {
	w := &TextWriter{
		baseWriter: newBaseWriter(output),
		colored:    !color.NoColor,
	}
	for _, opt := range opts {
		opt(w)
	}

	w.good = w.newColor(color.FgGreen)
	w.notice = w.newColor(color.FgYellow)
	w.bad = w.newColor(color.FgRed)
	w.subtle = w.newColor(color.FgCyan)
	return w
}

func (w *TextWriter) newColor(attr color.Attribute) *color.Color {
	c := color.New(attr)
	if w.colored {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c
}

// status colors a status code by class.
func (w *TextWriter) status(code int) string {
	s := fmt.Sprintf("%d", code)
	switch {
	case code >= 200 && code < 300:
		return w.good.Sprint(s)
	case code >= 300 && code < 400:
		return w.notice.Sprint(s)
	default:
		return w.bad.Sprint(s)
	}
}

// WriteResponse outputs the status line and, with WithBody, the body.
func (w *TextWriter) WriteResponse(resp *web.Response) (int, error) {
	var sb strings.Builder

	if resp.OutOfScope {
		fmt.Fprintf(&sb, "[%s] %s\n", w.bad.Sprint("OUT OF SCOPE"), resp.URL)
		return w.output.Write([]byte(sb.String()))
	}

	fmt.Fprintf(&sb, "[%s] %s  %d bytes  %s\n",
		w.status(resp.StatusCode), resp.URL, len(resp.Body), resp.Elapsed.Round(time.Millisecond))

	if w.showBody && len(resp.Body) > 0 {
		sb.Write(resp.Body)
		if resp.Body[len(resp.Body)-1] != '\n' {
			sb.WriteString("\n")
		}
	}
	return w.output.Write([]byte(sb.String()))
}

// WriteDownloads outputs one line per URL followed by a summary.
func (w *TextWriter) WriteDownloads(results []helpers.DownloadResult) (int, error) {
	var sb strings.Builder
	var ok, cached int

	for _, r := range results {
		switch {
		case r.Cached:
			cached++
			ok++
			fmt.Fprintf(&sb, "[%s] %s -> %s\n", w.subtle.Sprint("cached"), r.URL, r.Path)
		case r.OK:
			ok++
			fmt.Fprintf(&sb, "[%s] %s -> %s\n", w.good.Sprint("ok"), r.URL, r.Path)
		default:
			fmt.Fprintf(&sb, "[%s] %s\n", w.bad.Sprint("failed"), r.URL)
		}
	}

	fmt.Fprintf(&sb, "\n%d/%d downloaded (%d from cache)\n", ok, len(results), cached)
	return w.output.Write([]byte(sb.String()))
}

// WriteCacheEntries outputs one line per cache entry.
func (w *TextWriter) WriteCacheEntries(entries []database.CacheEntry) (int, error) {
	var sb strings.Builder

	if len(entries) == 0 {
		sb.WriteString("Cache is empty\n")
		return w.output.Write([]byte(sb.String()))
	}

	var total int64
	for _, e := range entries {
		total += e.Size
		url := e.URL
		if url == "" {
			url = w.subtle.Sprint("(not indexed)")
		}
		fmt.Fprintf(&sb, "%-12s  %10d  %s  %s\n", shortKey(e.Key), e.Size, formatTime(e.FetchedAt), url)
	}
	fmt.Fprintf(&sb, "\n%d entries, %d bytes\n", len(entries), total)
	return w.output.Write([]byte(sb.String()))
}

// WriteInteractions outputs one line per interaction.
func (w *TextWriter) WriteInteractions(records []database.InteractionRecord) (int, error) {
	var sb strings.Builder
	for _, r := range records {
		fmt.Fprintf(&sb, "[%s] %s from %s at %s\n",
			w.notice.Sprint(strings.ToUpper(r.Protocol)), r.FullID, r.RemoteAddress, formatTime(r.Timestamp))
	}
	return w.output.Write([]byte(sb.String()))
}
