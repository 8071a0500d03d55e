package report

import (
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/reconweb/internal/database"
	"github.com/nao1215/reconweb/internal/helpers"
	"github.com/nao1215/reconweb/internal/web"
)

// maxMarkdownBody is the number of body bytes shown in a Markdown response.
const maxMarkdownBody = 4096

// MarkdownWriter outputs results in Markdown format.
// This format is designed for documentation and sharing.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation which provides type-safe tables, code blocks and
// GitHub-flavored alerts.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// WriteResponse outputs a property table and the (truncated) body.
func (w *MarkdownWriter) WriteResponse(resp *web.Response) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H2("Response")
	md.PlainText("")

	if resp.OutOfScope {
		md.Warningf("`%s` is out of scope. No request was sent.", resp.URL)
		md.PlainText("")
		return len(md.String()), md.Build()
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"URL", "`" + resp.URL + "`"},
			{"Status", strconv.Itoa(resp.StatusCode)},
			{"Content-Type", orDash(resp.Header.Get("Content-Type"))},
			{"Size", strconv.Itoa(len(resp.Body)) + " bytes"},
			{"Elapsed", resp.Elapsed.String()},
		},
	})
	md.PlainText("")

	if len(resp.Body) > 0 {
		md.CodeBlocks(markdown.SyntaxHighlightText, truncateString(resp.Text(), maxMarkdownBody))
		md.PlainText("")
	}

	return len(md.String()), md.Build()
}

// WriteDownloads outputs a table of download results.
func (w *MarkdownWriter) WriteDownloads(results []helpers.DownloadResult) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H2("Downloads")
	md.PlainText("")

	rows := make([][]string, len(results))
	failed := 0
	for i, r := range results {
		status := "✅ downloaded"
		switch {
		case r.Cached:
			status = "♻️ cached"
		case !r.OK:
			status = "❌ failed"
			failed++
		}
		rows[i] = []string{"`" + r.URL + "`", status, orDash(r.Path)}
	}

	md.Table(markdown.TableSet{
		Header: []string{"URL", "Status", "Path"},
		Rows:   rows,
	})
	md.PlainText("")

	if failed > 0 {
		md.Warningf("%d of %d download(s) failed.", failed, len(results))
		md.PlainText("")
	}

	return len(md.String()), md.Build()
}

// WriteCacheEntries outputs a table of cache entries.
func (w *MarkdownWriter) WriteCacheEntries(entries []database.CacheEntry) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H2("Download Cache")
	md.PlainText("")

	if len(entries) == 0 {
		md.PlainText("Cache is empty.")
		md.PlainText("")
		return len(md.String()), md.Build()
	}

	rows := make([][]string, len(entries))
	for i, e := range entries {
		rows[i] = []string{
			"`" + shortKey(e.Key) + "`",
			orDash(e.URL),
			strconv.FormatInt(e.Size, 10),
			formatTime(e.FetchedAt),
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Key", "URL", "Size", "Fetched"},
		Rows:   rows,
	})
	md.PlainText("")

	return len(md.String()), md.Build()
}

// WriteInteractions outputs a table of interactions and a protocol chart.
func (w *MarkdownWriter) WriteInteractions(records []database.InteractionRecord) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H2("Out-of-Band Interactions")
	md.PlainText("")

	if len(records) == 0 {
		md.Tip("No interactions received.")
		md.PlainText("")
		return len(md.String()), md.Build()
	}

	md.Importantf("%d interaction(s) received.", len(records))
	md.PlainText("")

	rows := make([][]string, len(records))
	byProtocol := make(map[string]uint64)
	for i, r := range records {
		rows[i] = []string{
			strings.ToUpper(r.Protocol),
			"`" + r.FullID + "`",
			r.RemoteAddress,
			formatTime(r.Timestamp),
		}
		byProtocol[strings.ToUpper(r.Protocol)]++
	}

	md.Table(markdown.TableSet{
		Header: []string{"Protocol", "Full ID", "Remote Address", "Time"},
		Rows:   rows,
	})
	md.PlainText("")

	if len(byProtocol) > 1 {
		chart := piechart.NewPieChart(
			io.Discard,
			piechart.WithTitle("Interactions by Protocol"),
			piechart.WithShowData(true),
		)
		for _, protocol := range slices.Sorted(maps.Keys(byProtocol)) {
			chart.LabelAndIntValue(protocol, byProtocol[protocol])
		}
		md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
		md.PlainText("")
	}

	return len(md.String()), md.Build()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
