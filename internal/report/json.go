package report

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/nao1215/reconweb/internal/database"
	"github.com/nao1215/reconweb/internal/helpers"
	"github.com/nao1215/reconweb/internal/web"
)

// JSONWriter outputs results in JSON format, one document per call.
// This format is designed for tool integration and programmatic processing.
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	// When false, output is compact (no extra whitespace).
	indent bool

	// indentPrefix is the prefix for each line in indented output.
	indentPrefix string

	// indentString is the indentation string (typically "  " or "\t").
	indentString string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
// The prefix is prepended to each line, and indent is used for each level.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint enables pretty-printed JSON with default indentation.
// This is a convenience wrapper for WithIndent("", "  ").
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// ResponseJSON is the JSON form of a web.Response.
//
// Design decision: We wrap the response rather than adding tags to
// web.Response because the body is rendered as text here and the decoded
// page value is only present in JSON page mode.
type ResponseJSON struct {
	URL        string      `json:"url"`
	StatusCode int         `json:"status_code"`
	OutOfScope bool        `json:"out_of_scope,omitempty"`
	ElapsedMS  int64       `json:"elapsed_ms"`
	Size       int         `json:"size"`
	Header     http.Header `json:"header,omitempty"`
	Body       string      `json:"body,omitempty"`
	JSON       any         `json:"json,omitempty"`
}

// NewResponseJSON converts resp. The raw body is omitted when a decoded
// page value is present.
func NewResponseJSON(resp *web.Response) *ResponseJSON {
	out := &ResponseJSON{
		URL:        resp.URL,
		StatusCode: resp.StatusCode,
		OutOfScope: resp.OutOfScope,
		ElapsedMS:  resp.Elapsed.Milliseconds(),
		Size:       len(resp.Body),
		Header:     resp.Header,
		JSON:       resp.JSON,
	}
	if resp.JSON == nil {
		out.Body = resp.Text()
	}
	return out
}

// WriteResponse outputs the response in JSON format.
func (w *JSONWriter) WriteResponse(resp *web.Response) (int, error) {
	return w.writeJSON(NewResponseJSON(resp))
}

// WriteDownloads outputs the download results as a JSON array.
func (w *JSONWriter) WriteDownloads(results []helpers.DownloadResult) (int, error) {
	return w.writeJSON(nonNil(results))
}

// WriteCacheEntries outputs the cache listing as a JSON array.
func (w *JSONWriter) WriteCacheEntries(entries []database.CacheEntry) (int, error) {
	return w.writeJSON(nonNil(entries))
}

// WriteInteractions outputs the interactions as a JSON array.
func (w *JSONWriter) WriteInteractions(records []database.InteractionRecord) (int, error) {
	return w.writeJSON(nonNil(records))
}

// writeJSON marshals the given value to JSON and writes it to the output.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var data []byte
	var err error

	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}

	if err != nil {
		return 0, err
	}

	// Add trailing newline for better terminal output
	data = append(data, '\n')

	return w.output.Write(data)
}

// nonNil makes empty results encode as [] instead of null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
