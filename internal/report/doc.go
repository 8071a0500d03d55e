// Package report renders helper results for the command line.
//
// This package contains writers for different output formats:
//   - TextWriter: human-readable, optionally colored terminal output
//   - JSONWriter: structured JSON output for tool integration
//   - MarkdownWriter: Markdown tables for sharing results
//
// Writers implement the Writer interface, allowing them to be used
// interchangeably and composed for multi-format output.
package report
