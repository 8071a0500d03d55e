package web

import (
	"bufio"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"strings"
)

// maxLineSize bounds a single wordlist line. Longer lines end the sequence.
const maxLineSize = 1024 * 1024

// LinesOption configures Lines.
type LinesOption func(*linesConfig)

type linesConfig struct {
	logger *slog.Logger
}

// WithLinesLogger sets the logger that reports read errors. The default is
// slog.Default.
func WithLinesLogger(logger *slog.Logger) LinesOption {
	return func(c *linesConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Lines returns the lines of the file at path with surrounding whitespace
// trimmed, skipping lines that are empty after trimming, in file order.
//
// The file is checked once up front. Each range over the sequence opens the
// file again, so the sequence can be iterated any number of times and
// always reflects the current file content. A read error mid-way, including
// a line longer than maxLineSize, ends the sequence early and is logged at
// Warn level.
func Lines(path string, opts ...LinesOption) (iter.Seq[string], error) {
	cfg := linesConfig{logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}


	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open wordlist: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("failed to open wordlist: %s is a directory", path)
	}

	return func(yield func(string) bool) {
		f, err := os.Open(path) //nolint:gosec // path comes from the cache or the operator
		if err != nil {
			cfg.logger.Warn("failed to open wordlist", "path", path, "error", err)
			return
		}
		defer f.Close()

		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			if !yield(line) {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			cfg.logger.Warn("wordlist read stopped early", "path", path, "error", err)
		}
	}, nil
}
