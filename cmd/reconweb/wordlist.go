package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewWordlistCmd creates the wordlist command.
func NewWordlistCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wordlist <url>",
		Short: "Fetch a wordlist through the cache and print its entries",
		Long: `Wordlist downloads a wordlist into the cache (or reuses the cached copy)
and prints its non-empty lines with surrounding whitespace removed.

Examples:
  # Print the entries of a wordlist
  reconweb wordlist https://example.com/wordlists/common.txt

  # Only print where the cached file lives
  reconweb wordlist --path https://example.com/wordlists/common.txt`,
		Args: cobra.ExactArgs(1),
		RunE: runWordlistCmd,
	}

	cmd.Flags().Bool("path", false, "Print the cached file path instead of its entries")
	cmd.Flags().Bool("count", false, "Print the number of entries instead of the entries")

	return cmd
}

func runWordlistCmd(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	pathOnly, err := cmd.Flags().GetBool("path")
	if err != nil {
		return err
	}
	countOnly, err := cmd.Flags().GetBool("count")
	if err != nil {
		return err
	}

	s, err := openSession(ctx, cmd)
	if err != nil {
		return err
	}
	defer s.close()

	path, ok := s.helpers.Wordlist(ctx, args[0])
	if !ok {
		return fmt.Errorf("failed to fetch wordlist %s", args[0])
	}

	out := cmd.OutOrStdout()
	if pathOnly {
		fmt.Fprintln(out, path)
		return nil
	}

	lines, err := s.helpers.Lines(path)
	if err != nil {
		return err
	}

	count := 0
	for line := range lines {
		count++
		if !countOnly {
			fmt.Fprintln(out, line)
		}
	}
	if countOnly {
		fmt.Fprintln(out, count)
	}
	return nil
}
