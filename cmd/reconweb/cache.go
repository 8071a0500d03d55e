package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewCacheCmd creates the cache command and its subcommands.
func NewCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the download cache",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List cached downloads",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openSession(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer s.close()

			entries, err := s.helpers.CacheEntries(cmd.Context())
			if err != nil {
				return err
			}
			_, err = s.writer.WriteCacheEntries(entries)
			return err
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <url>...",
		Short: "Remove the cache entries of the given URLs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer s.close()

			for _, url := range args {
				if err := s.helpers.RemoveCached(cmd.Context(), url); err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Removed %s\n", url)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "purge",
		Short: "Delete every cached download",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openSession(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer s.close()

			n, err := s.helpers.PurgeCache(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Purged %d cache entries from %s\n", n, s.cfg.CacheDir)
			return nil
		},
	})

	return cmd
}
