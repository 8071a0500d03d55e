package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nao1215/reconweb/internal/helpers"
)

// errDownloadFailed is returned when at least one download did not produce
// a cache entry.
var errDownloadFailed = errors.New("one or more downloads failed")

// NewDownloadCmd creates the download command.
func NewDownloadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "download [url...]",
		Short: "Download files into the cache",
		Long: `Download fetches URLs into the on-disk cache and prints the cached paths.

A URL that is already cached (and not older than cache_ttl) is not fetched
again. Only complete 2xx responses become cache entries.

Examples:
  # Download a single file
  reconweb download https://example.com/robots.txt

  # Download every URL listed in a file, 4 at a time
  reconweb download --list urls.txt --concurrency 4`,
		Args: cobra.ArbitraryArgs,
		RunE: runDownloadCmd,
	}

	cmd.Flags().StringP("list", "l", "", "File with one URL per line")
	cmd.Flags().IntP("concurrency", "n", helpers.DefaultConcurrency, "Number of parallel downloads")

	return cmd
}

func runDownloadCmd(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	listFile, err := cmd.Flags().GetString("list")
	if err != nil {
		return err
	}
	concurrency, err := cmd.Flags().GetInt("concurrency")
	if err != nil {
		return err
	}

	urls := append([]string(nil), args...)
	if listFile != "" {
		listed, err := readURLList(listFile)
		if err != nil {
			return err
		}
		urls = append(urls, listed...)
	}
	if len(urls) == 0 {
		return errors.New("no URLs provided (specify URLs as arguments or use --list)")
	}

	s, err := openSession(ctx, cmd)
	if err != nil {
		return err
	}
	defer s.close()

	results, err := s.helpers.DownloadAll(ctx, urls, concurrency)
	if _, werr := s.writer.WriteDownloads(results); werr != nil {
		return werr
	}
	if err != nil {
		return err
	}

	for _, r := range results {
		if !r.OK {
			return errDownloadFailed
		}
	}
	return nil
}

// readURLList reads URLs from a file, one per line.
// Empty lines and lines starting with # are ignored.
func readURLList(path string) ([]string, error) {
	file, err := os.Open(path) //nolint:gosec // User-provided list path is intentional
	if err != nil {
		return nil, fmt.Errorf("failed to open URL list: %w", err)
	}
	defer file.Close()

	var urls []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read URL list: %w", err)
	}
	return urls, nil
}
