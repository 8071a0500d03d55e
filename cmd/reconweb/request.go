package main

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nao1215/reconweb/internal/report"
	"github.com/nao1215/reconweb/internal/web"
)

// errInvalidParam is returned for --param values without "=".
var errInvalidParam = errors.New(`invalid parameter: expected "name=value"`)

// NewRequestCmd creates the request command.
func NewRequestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "request <url>",
		Short: "Send a single scope-gated HTTP request",
		Long: `Request sends one HTTP request and prints the response.

Targets outside the configured scope are never contacted; the command
reports them as out of scope instead.

Examples:
  # GET a page within scope
  reconweb request -t example.com https://www.example.com/

  # POST JSON with an extra header
  reconweb request -X POST -d '{"q":1}' -H "Content-Type: application/json" https://api.example.com/search

  # Add query parameters
  reconweb request -p page=2 -p per_page=50 https://api.example.com/items`,
		Args: cobra.ExactArgs(1),
		RunE: runRequestCmd,
	}

	cmd.Flags().StringP("method", "X", http.MethodGet, "HTTP method")
	cmd.Flags().StringP("data", "d", "", `Request body; "@file" reads it from a file`)
	cmd.Flags().StringArrayP("param", "p", nil, `Query parameter ("name=value"); repeatable`)
	cmd.Flags().Bool("no-body", false, "Only print the status line")

	return cmd
}

func runRequestCmd(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	noBody, err := cmd.Flags().GetBool("no-body")
	if err != nil {
		return err
	}

	opts, err := requestOptions(cmd)
	if err != nil {
		return err
	}

	s, err := openSession(ctx, cmd, report.WithBody(!noBody))
	if err != nil {
		return err
	}
	defer s.close()

	resp, err := s.helpers.Request(ctx, args[0], opts...)
	if err != nil {
		return err
	}
	if _, err := s.writer.WriteResponse(resp); err != nil {
		return err
	}
	return resp.Err()
}

// requestOptions converts the request flags into RequestOptions.
func requestOptions(cmd *cobra.Command) ([]web.RequestOption, error) {
	flags := cmd.Flags()

	method, err := flags.GetString("method")
	if err != nil {
		return nil, err
	}
	opts := []web.RequestOption{web.WithMethod(strings.ToUpper(method))}

	data, err := flags.GetString("data")
	if err != nil {
		return nil, err
	}
	if data != "" {
		body := []byte(data)
		if path, ok := strings.CutPrefix(data, "@"); ok {
			body, err = os.ReadFile(path) //nolint:gosec // User-provided body file is intentional
			if err != nil {
				return nil, fmt.Errorf("failed to read request body: %w", err)
			}
		}
		opts = append(opts, web.WithBody(body))
	}

	params, err := flags.GetStringArray("param")
	if err != nil {
		return nil, err
	}
	if len(params) > 0 {
		values := make(url.Values, len(params))
		for _, p := range params {
			name, value, ok := strings.Cut(p, "=")
			if !ok || name == "" {
				return nil, fmt.Errorf("%w: %q", errInvalidParam, p)
			}
			values.Add(name, value)
		}
		opts = append(opts, web.WithParams(values))
	}

	return opts, nil
}
