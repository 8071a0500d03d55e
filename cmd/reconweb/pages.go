package main

import (
	"fmt"
	"regexp"

	"github.com/spf13/cobra"

	"github.com/nao1215/reconweb/internal/config"
	"github.com/nao1215/reconweb/internal/report"
	"github.com/nao1215/reconweb/internal/web"
)

// NewPagesCmd creates the pages command.
func NewPagesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pages <url-template>",
		Short: "Walk a paginated API page by page",
		Long: `Pages requests page 1, 2, 3, ... of a paginated API until a page fails,
comes back empty, or the page limit is reached.

The URL template may contain {page}, {page_size} and {offset}; offset is
(page - 1) * page_size.

Examples:
  # Walk an offset-based API
  reconweb pages "https://api.example.com/items?limit={page_size}&offset={offset}"

  # Stop on empty JSON pages ([] or {})
  reconweb pages --parse-json "https://api.example.com/items?page={page}"`,
		Args: cobra.ExactArgs(1),
		RunE: runPagesCmd,
	}

	cmd.Flags().Int("page-size", config.DefaultPageSize, "Page size substituted for {page_size}")
	cmd.Flags().Bool("parse-json", false, "Decode pages as JSON and stop on an empty or invalid document")
	cmd.Flags().Int("max-pages", 0, "Maximum number of pages (0 = unlimited)")
	cmd.Flags().String("match", "", "Stop at the first page whose body does not match this regular expression")
	cmd.Flags().Bool("no-body", false, "Only print the status line of each page")

	return cmd
}

func runPagesCmd(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	flags := cmd.Flags()
	pageSize, err := flags.GetInt("page-size")
	if err != nil {
		return err
	}
	jsonMode, err := flags.GetBool("parse-json")
	if err != nil {
		return err
	}
	maxPages, err := flags.GetInt("max-pages")
	if err != nil {
		return err
	}
	match, err := flags.GetString("match")
	if err != nil {
		return err
	}
	noBody, err := flags.GetBool("no-body")
	if err != nil {
		return err
	}

	opts := []web.PageOption{web.WithMaxPages(maxPages)}
	if match != "" {
		re, err := regexp.Compile(match)
		if err != nil {
			return fmt.Errorf("invalid --match expression: %w", err)
		}
		opts = append(opts, web.WithBodyPattern(re))
	}

	s, err := openSession(ctx, cmd, report.WithBody(!noBody))
	if err != nil {
		return err
	}
	defer s.close()

	if !s.helpers.Gate().InScope(args[0]) {
		return fmt.Errorf("%w: %s", web.ErrOutOfScope, args[0])
	}

	it := s.helpers.Pages(ctx, args[0], pageSize, jsonMode, opts...)
	defer it.Close()

	for resp := range it.All() {
		if _, err := s.writer.WriteResponse(resp); err != nil {
			return err
		}
	}

	s.logger.Debug("pagination finished", "pages", it.Page())
	return it.Err()
}
